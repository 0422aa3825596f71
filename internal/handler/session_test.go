package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ramswarooppatel/sharehub/internal/model"
	"github.com/ramswarooppatel/sharehub/internal/repository"
	"github.com/ramswarooppatel/sharehub/internal/service"
)

// stubRooms serves a single room by code; the session gate only reads.
type stubRooms struct {
	room *model.Room
}

func (s *stubRooms) Create(context.Context, *model.Room) error { return errors.New("read-only stub") }

func (s *stubRooms) GetByCode(_ context.Context, code string) (*model.Room, error) {
	if s.room != nil && s.room.RoomCode == code {
		dup := *s.room
		return &dup, nil
	}
	return nil, repository.ErrRoomNotFound
}

func (s *stubRooms) GetByID(context.Context, uint64) (*model.Room, error) {
	return nil, repository.ErrRoomNotFound
}

func (s *stubRooms) CodeExists(context.Context, string) (bool, error) { return false, nil }

func (s *stubRooms) Update(context.Context, uint64, repository.RoomPatch) (*model.Room, error) {
	return nil, errors.New("read-only stub")
}

func (s *stubRooms) Delete(context.Context, uint64) error { return errors.New("read-only stub") }

// stubLedger has no grants and records any insert attempts.
type stubLedger struct {
	inserts int
}

func (s *stubLedger) Get(context.Context, uint64, string) (*model.Membership, error) {
	return nil, nil
}

func (s *stubLedger) InsertIfAbsent(context.Context, uint64, string, *uint64, string) error {
	s.inserts++
	return nil
}

// stubFinder reports no join-request history.
type stubFinder struct{}

func (stubFinder) FindLatestByDevice(context.Context, uint64, string) (*model.JoinRequest, error) {
	return nil, nil
}

// The session gate is a pure read: a device that needs approval is
// told so and nothing is written, whatever query parameters ride along
// on the GET. Submitting goes through POST /:code/join only.
func TestSessionGetDoesNotSubmitJoinRequests(t *testing.T) {
	rm := &model.Room{ID: 1, RoomCode: "appr42", Name: "Approval Room", Policy: model.PolicyApproval, IsPermanent: true}
	ledger := &stubLedger{}
	roomSvc := service.NewRoomService(&stubRooms{room: rm}, ledger, nil, nil, nil)
	accessSvc := service.NewAccessService(ledger, stubFinder{}, nil)
	h := NewSessionHandler(roomSvc, accessSvc, nil, nil)

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet,
		"/v1/rooms/appr42/session?request=1&display_name=Alice", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("code")
	c.SetParamValues("appr42")
	c.Set("device_id", "dev-a")

	require.NoError(t, h.Get(c))
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, string(service.OutcomeApprovalRequired), body["outcome"])
	assert.NotContains(t, body, "pending_request_id")
	assert.Zero(t, ledger.inserts)
}
