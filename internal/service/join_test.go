package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ramswarooppatel/sharehub/internal/model"
	"github.com/ramswarooppatel/sharehub/internal/realtime"
	"github.com/ramswarooppatel/sharehub/internal/repository"
)

func newJoin(requests *fakeRequests, ledger *fakeLedger, events *fakeEvents) *JoinService {
	svc := NewJoinService(requests, ledger, events)
	svc.activity = noActivity
	return svc
}

func TestSubmitCreatesPendingRequest(t *testing.T) {
	events := &fakeEvents{}
	svc := newJoin(newFakeRequests(), newFakeLedger(), events)

	jr, err := svc.Submit(context.Background(), approvalRoom(1), "dev-a", "Alice", "let me in")
	require.NoError(t, err)
	assert.Equal(t, model.RequestPending, jr.Status)
	assert.Equal(t, "Alice", jr.DisplayName)
	require.Len(t, events.ofKind(realtime.KindJoinRequest), 1)
}

func TestSubmitIsIdempotentPerDevice(t *testing.T) {
	requests := newFakeRequests()
	svc := newJoin(requests, newFakeLedger(), &fakeEvents{})
	rm := approvalRoom(1)

	first, err := svc.Submit(context.Background(), rm, "dev-a", "Alice", "")
	require.NoError(t, err)
	second, err := svc.Submit(context.Background(), rm, "dev-a", "Alice", "")
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Len(t, requests.byID, 1)
}

func TestSubmitAllowsAnonymousRequester(t *testing.T) {
	svc := newJoin(newFakeRequests(), newFakeLedger(), &fakeEvents{})

	jr, err := svc.Submit(context.Background(), approvalRoom(1), "dev-a", "   ", "")
	require.NoError(t, err)
	assert.Equal(t, model.RequestPending, jr.Status)
	assert.Empty(t, jr.DisplayName)
}

func TestSubmitRejectsWrongRoomKind(t *testing.T) {
	svc := newJoin(newFakeRequests(), newFakeLedger(), &fakeEvents{})

	// Only approval rooms take requests.
	_, err := svc.Submit(context.Background(), openRoom(1), "dev-a", "Alice", "")
	assert.ErrorIs(t, err, ErrValidation)
}

func TestSubmitConflictsForExistingMember(t *testing.T) {
	ledger := newFakeLedger()
	require.NoError(t, ledger.InsertIfAbsent(context.Background(), 1, "dev-a", nil, model.RoleMember))
	svc := newJoin(newFakeRequests(), ledger, &fakeEvents{})

	_, err := svc.Submit(context.Background(), approvalRoom(1), "dev-a", "Alice", "")
	assert.ErrorIs(t, err, repository.ErrConflict)
}

func TestSubmitRejectsAutoAcceptRoom(t *testing.T) {
	requests := newFakeRequests()
	ledger := newFakeLedger()
	svc := newJoin(requests, ledger, &fakeEvents{})
	rm := approvalRoom(1)
	rm.AutoAccept = true

	// The evaluator grants auto-accept rooms directly; a submitted
	// request has nothing to wait for.
	_, err := svc.Submit(context.Background(), rm, "dev-a", "Alice", "")
	assert.ErrorIs(t, err, ErrValidation)
	assert.Empty(t, requests.byID)

	m, err := ledger.Get(context.Background(), 1, "dev-a")
	require.NoError(t, err)
	assert.Nil(t, m)
}

func TestSubmitRacingTabsConvergeOnOneRequest(t *testing.T) {
	requests := newFakeRequests()
	svc := newJoin(requests, newFakeLedger(), &fakeEvents{})
	rm := approvalRoom(1)

	first, err := svc.Submit(context.Background(), rm, "dev-a", "Alice", "")
	require.NoError(t, err)

	// A second tab slips past the pending lookup before the first
	// insert is visible to it; the store's conditional insert still
	// hands it the existing row.
	requests.stalePendingReads = 1
	second, err := svc.Submit(context.Background(), rm, "dev-a", "Alice", "")
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Len(t, requests.byID, 1)
}

func TestDecideApproveWritesLedger(t *testing.T) {
	requests := newFakeRequests()
	ledger := newFakeLedger()
	events := &fakeEvents{}
	svc := newJoin(requests, ledger, events)
	rm := approvalRoom(1)

	jr, err := svc.Submit(context.Background(), rm, "dev-a", "Alice", "")
	require.NoError(t, err)

	decided, err := svc.Decide(context.Background(), rm, jr.ID, true)
	require.NoError(t, err)
	assert.Equal(t, model.RequestApproved, decided.Status)
	require.NotNil(t, decided.RespondedAt)

	m, err := ledger.Get(context.Background(), 1, "dev-a")
	require.NoError(t, err)
	require.NotNil(t, m)
	assert.Equal(t, model.RoleMember, m.Role)

	require.Len(t, events.ofKind(realtime.KindMembership), 1)
}

func TestDecideRejectLeavesLedgerAlone(t *testing.T) {
	ledger := newFakeLedger()
	svc := newJoin(newFakeRequests(), ledger, &fakeEvents{})
	rm := approvalRoom(1)

	jr, err := svc.Submit(context.Background(), rm, "dev-a", "Alice", "")
	require.NoError(t, err)

	decided, err := svc.Decide(context.Background(), rm, jr.ID, false)
	require.NoError(t, err)
	assert.Equal(t, model.RequestRejected, decided.Status)

	m, err := ledger.Get(context.Background(), 1, "dev-a")
	require.NoError(t, err)
	assert.Nil(t, m)
}

func TestDecideFirstWriterWins(t *testing.T) {
	svc := newJoin(newFakeRequests(), newFakeLedger(), &fakeEvents{})
	rm := approvalRoom(1)

	jr, err := svc.Submit(context.Background(), rm, "dev-a", "Alice", "")
	require.NoError(t, err)

	_, err = svc.Decide(context.Background(), rm, jr.ID, false)
	require.NoError(t, err)

	// A racing approval arrives after the rejection: it must lose, and
	// it must not grant membership.
	_, err = svc.Decide(context.Background(), rm, jr.ID, true)
	assert.ErrorIs(t, err, repository.ErrNotPending)
}

func TestDecideWrongRoomIsNotFound(t *testing.T) {
	svc := newJoin(newFakeRequests(), newFakeLedger(), &fakeEvents{})
	rm := approvalRoom(1)

	jr, err := svc.Submit(context.Background(), rm, "dev-a", "Alice", "")
	require.NoError(t, err)

	other := approvalRoom(2)
	_, err = svc.Decide(context.Background(), other, jr.ID, true)
	assert.ErrorIs(t, err, repository.ErrRequestNotFound)
}

func TestListPendingOldestFirst(t *testing.T) {
	svc := newJoin(newFakeRequests(), newFakeLedger(), &fakeEvents{})
	rm := approvalRoom(1)

	a, err := svc.Submit(context.Background(), rm, "dev-a", "Alice", "")
	require.NoError(t, err)
	b, err := svc.Submit(context.Background(), rm, "dev-b", "Bob", "")
	require.NoError(t, err)

	pending, err := svc.ListPending(context.Background(), rm.ID)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, a.ID, pending[0].ID)
	assert.Equal(t, b.ID, pending[1].ID)
}
