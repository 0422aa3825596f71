package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/ramswarooppatel/sharehub/internal/model"
	"github.com/ramswarooppatel/sharehub/internal/queue"
	"github.com/ramswarooppatel/sharehub/internal/realtime"
	"github.com/ramswarooppatel/sharehub/internal/repository"
)

// fakeLedger is an in-memory MembershipLedger keyed by room and device.
type fakeLedger struct {
	rows      map[string]*model.Membership
	nextID    uint64
	insertErr error
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{rows: make(map[string]*model.Membership)}
}

func ledgerKey(roomID uint64, deviceID string) string {
	return fmt.Sprintf("%d:%s", roomID, deviceID)
}

func (f *fakeLedger) Get(_ context.Context, roomID uint64, deviceID string) (*model.Membership, error) {
	if m, ok := f.rows[ledgerKey(roomID, deviceID)]; ok {
		dup := *m
		return &dup, nil
	}
	return nil, nil
}

func (f *fakeLedger) InsertIfAbsent(_ context.Context, roomID uint64, deviceID string, userID *uint64, role string) error {
	if f.insertErr != nil {
		return f.insertErr
	}
	key := ledgerKey(roomID, deviceID)
	if _, ok := f.rows[key]; ok {
		return nil
	}
	f.nextID++
	f.rows[key] = &model.Membership{
		ID:       f.nextID,
		RoomID:   roomID,
		DeviceID: deviceID,
		UserID:   userID,
		Role:     role,
		JoinedAt: time.Now().UTC(),
	}
	return nil
}

// fakeRequests is an in-memory join-request store with the same
// compare-and-swap and conditional-insert semantics as the SQL
// repository. Setting stalePendingReads makes FindPendingByDevice
// return nil that many times, mimicking a second tab racing through
// the service-level pending check before the first tab's insert is
// visible to it.
type fakeRequests struct {
	byID              map[uint64]*model.JoinRequest
	nextID            uint64
	stalePendingReads int
}

func newFakeRequests() *fakeRequests {
	return &fakeRequests{byID: make(map[uint64]*model.JoinRequest)}
}

func (f *fakeRequests) Insert(_ context.Context, jr *model.JoinRequest) error {
	if pending, err := f.pendingByDevice(jr.RoomID, jr.DeviceID); err != nil {
		return err
	} else if pending != nil {
		*jr = *pending
		return nil
	}
	f.nextID++
	jr.ID = f.nextID
	jr.Status = model.RequestPending
	jr.CreatedAt = time.Now().UTC()
	dup := *jr
	f.byID[jr.ID] = &dup
	return nil
}

func (f *fakeRequests) GetByID(_ context.Context, id uint64) (*model.JoinRequest, error) {
	jr, ok := f.byID[id]
	if !ok {
		return nil, repository.ErrRequestNotFound
	}
	dup := *jr
	return &dup, nil
}

func (f *fakeRequests) FindLatestByDevice(_ context.Context, roomID uint64, deviceID string) (*model.JoinRequest, error) {
	var latest *model.JoinRequest
	for _, jr := range f.byID {
		if jr.RoomID != roomID || jr.DeviceID != deviceID {
			continue
		}
		if latest == nil || jr.ID > latest.ID {
			latest = jr
		}
	}
	if latest == nil {
		return nil, nil
	}
	dup := *latest
	return &dup, nil
}

func (f *fakeRequests) FindPendingByDevice(_ context.Context, roomID uint64, deviceID string) (*model.JoinRequest, error) {
	if f.stalePendingReads > 0 {
		f.stalePendingReads--
		return nil, nil
	}
	return f.pendingByDevice(roomID, deviceID)
}

func (f *fakeRequests) pendingByDevice(roomID uint64, deviceID string) (*model.JoinRequest, error) {
	latest, err := f.FindLatestByDevice(nil, roomID, deviceID)
	if err != nil || latest == nil || latest.Status != model.RequestPending {
		return nil, err
	}
	return latest, nil
}

func (f *fakeRequests) UpdateStatus(_ context.Context, id uint64, from, to string) (bool, error) {
	jr, ok := f.byID[id]
	if !ok || jr.Status != from {
		return false, nil
	}
	jr.Status = to
	now := time.Now().UTC()
	jr.RespondedAt = &now
	return true, nil
}

func (f *fakeRequests) ListPending(_ context.Context, roomID uint64) ([]model.JoinRequest, error) {
	out := make([]model.JoinRequest, 0)
	for _, jr := range f.byID {
		if jr.RoomID == roomID && jr.Status == model.RequestPending {
			out = append(out, *jr)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// fakeEvents records published realtime events.
type fakeEvents struct {
	events []realtime.Event
}

func (f *fakeEvents) Publish(_ context.Context, ev realtime.Event) {
	f.events = append(f.events, ev)
}

func (f *fakeEvents) ofKind(kind realtime.Kind) []realtime.Event {
	var out []realtime.Event
	for _, ev := range f.events {
		if ev.Kind == kind {
			out = append(out, ev)
		}
	}
	return out
}

// noActivity silences the broker publisher in tests.
func noActivity(context.Context, queue.RoomActivityEvent) error { return nil }

// strptr is a test shorthand.
func strptr(s string) *string { return &s }

func openRoom(id uint64) *model.Room {
	return &model.Room{ID: id, RoomCode: "open42", Name: "Open Room", Policy: model.PolicyOpen, IsPermanent: true}
}

func approvalRoom(id uint64) *model.Room {
	return &model.Room{ID: id, RoomCode: "appr42", Name: "Approval Room", Policy: model.PolicyApproval, IsPermanent: true}
}

func passwordRoom(id uint64, password string) *model.Room {
	return &model.Room{ID: id, RoomCode: "pass42", Name: "Password Room", Policy: model.PolicyPassword, IsPermanent: true, Password: strptr(password)}
}
