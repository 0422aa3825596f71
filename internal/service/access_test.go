package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/ramswarooppatel/sharehub/internal/model"
	"github.com/ramswarooppatel/sharehub/internal/realtime"
	"github.com/ramswarooppatel/sharehub/internal/repository"
	"github.com/ramswarooppatel/sharehub/internal/utils"
)

func newAccess(ledger *fakeLedger, requests *fakeRequests, events *fakeEvents) *AccessService {
	return NewAccessService(ledger, requests, events)
}

func TestEvaluateOpenRoomGrantsAndRecordsMembership(t *testing.T) {
	ledger := newFakeLedger()
	events := &fakeEvents{}
	svc := newAccess(ledger, newFakeRequests(), events)

	d, err := svc.Evaluate(context.Background(), openRoom(1), "dev-a", "", "", nil)
	require.NoError(t, err)
	assert.Equal(t, OutcomeGranted, d.Outcome)
	assert.Equal(t, model.RoleMember, d.Role)

	m, err := ledger.Get(context.Background(), 1, "dev-a")
	require.NoError(t, err)
	require.NotNil(t, m)
	assert.Equal(t, model.RoleMember, m.Role)

	require.Len(t, events.ofKind(realtime.KindMembership), 1)
}

func TestEvaluateGrantIsIdempotentAcrossTabs(t *testing.T) {
	ledger := newFakeLedger()
	svc := newAccess(ledger, newFakeRequests(), &fakeEvents{})

	for i := 0; i < 3; i++ {
		d, err := svc.Evaluate(context.Background(), openRoom(1), "dev-a", "", "", nil)
		require.NoError(t, err)
		assert.Equal(t, OutcomeGranted, d.Outcome)
	}
	assert.Len(t, ledger.rows, 1)
}

func TestEvaluateExpiredRoomBeatsEverything(t *testing.T) {
	ledger := newFakeLedger()
	svc := newAccess(ledger, newFakeRequests(), &fakeEvents{})

	past := time.Now().UTC().Add(-time.Hour)
	rm := openRoom(1)
	rm.IsPermanent = false
	rm.ExpiresAt = &past

	// Even an existing member is turned away once the room expires.
	require.NoError(t, ledger.InsertIfAbsent(context.Background(), 1, "dev-a", nil, model.RoleMember))

	d, err := svc.Evaluate(context.Background(), rm, "dev-a", "", "", nil)
	require.NoError(t, err)
	assert.Equal(t, OutcomeExpired, d.Outcome)
}

func TestEvaluatePasswordRoom(t *testing.T) {
	ledger := newFakeLedger()
	svc := newAccess(ledger, newFakeRequests(), &fakeEvents{})
	rm := passwordRoom(1, "hunter2")

	d, err := svc.Evaluate(context.Background(), rm, "dev-a", "", "", nil)
	require.NoError(t, err)
	assert.Equal(t, OutcomePasswordRequired, d.Outcome)

	d, err = svc.Evaluate(context.Background(), rm, "dev-a", "wrong", "", nil)
	require.NoError(t, err)
	assert.Equal(t, OutcomePasswordRequired, d.Outcome)
	assert.Equal(t, "incorrect password", d.Reason)

	d, err = svc.Evaluate(context.Background(), rm, "dev-a", "hunter2", "", nil)
	require.NoError(t, err)
	assert.Equal(t, OutcomeGranted, d.Outcome)

	// Once granted, the device re-enters without presenting the password.
	d, err = svc.Evaluate(context.Background(), rm, "dev-a", "", "", nil)
	require.NoError(t, err)
	assert.Equal(t, OutcomeGranted, d.Outcome)
}

func TestEvaluateMembershipSurvivesPolicyChange(t *testing.T) {
	ledger := newFakeLedger()
	svc := newAccess(ledger, newFakeRequests(), &fakeEvents{})

	rm := openRoom(1)
	_, err := svc.Evaluate(context.Background(), rm, "dev-a", "", "", nil)
	require.NoError(t, err)

	// Host tightens the room to PASSWORD; the earlier grant still holds.
	rm.Policy = model.PolicyPassword
	rm.Password = strptr("secret")

	d, err := svc.Evaluate(context.Background(), rm, "dev-a", "", "", nil)
	require.NoError(t, err)
	assert.Equal(t, OutcomeGranted, d.Outcome)
}

func TestEvaluateApprovalRoomRoutesByRequestState(t *testing.T) {
	ledger := newFakeLedger()
	requests := newFakeRequests()
	svc := newAccess(ledger, requests, &fakeEvents{})
	rm := approvalRoom(1)

	// Never asked: the client must submit a request.
	d, err := svc.Evaluate(context.Background(), rm, "dev-a", "", "", nil)
	require.NoError(t, err)
	assert.Equal(t, OutcomeApprovalRequired, d.Outcome)
	assert.Zero(t, d.PendingRequestID)

	// Pending: the same outcome plus the request to watch.
	jr := &model.JoinRequest{RoomID: 1, DeviceID: "dev-a", DisplayName: "A"}
	require.NoError(t, requests.Insert(context.Background(), jr))
	d, err = svc.Evaluate(context.Background(), rm, "dev-a", "", "", nil)
	require.NoError(t, err)
	assert.Equal(t, OutcomeApprovalRequired, d.Outcome)
	assert.Equal(t, jr.ID, d.PendingRequestID)

	// Rejected: denied.
	ok, err := requests.UpdateStatus(context.Background(), jr.ID, model.RequestPending, model.RequestRejected)
	require.NoError(t, err)
	require.True(t, ok)
	d, err = svc.Evaluate(context.Background(), rm, "dev-a", "", "", nil)
	require.NoError(t, err)
	assert.Equal(t, OutcomeDenied, d.Outcome)
}

func TestEvaluateMaterializesApprovedRequestLazily(t *testing.T) {
	ledger := newFakeLedger()
	requests := newFakeRequests()
	svc := newAccess(ledger, requests, &fakeEvents{})
	rm := approvalRoom(1)

	jr := &model.JoinRequest{RoomID: 1, DeviceID: "dev-a", DisplayName: "A"}
	require.NoError(t, requests.Insert(context.Background(), jr))
	ok, err := requests.UpdateStatus(context.Background(), jr.ID, model.RequestPending, model.RequestApproved)
	require.NoError(t, err)
	require.True(t, ok)

	// Approved request, no ledger row yet: evaluate writes the grant.
	d, err := svc.Evaluate(context.Background(), rm, "dev-a", "", "", nil)
	require.NoError(t, err)
	assert.Equal(t, OutcomeGranted, d.Outcome)

	m, err := ledger.Get(context.Background(), 1, "dev-a")
	require.NoError(t, err)
	require.NotNil(t, m)
	assert.Equal(t, model.RoleMember, m.Role)
}

func TestEvaluateAutoAcceptApprovalRoomGrantsDirectly(t *testing.T) {
	svc := newAccess(newFakeLedger(), newFakeRequests(), &fakeEvents{})
	rm := approvalRoom(1)
	rm.AutoAccept = true

	d, err := svc.Evaluate(context.Background(), rm, "dev-a", "", "", nil)
	require.NoError(t, err)
	assert.Equal(t, OutcomeGranted, d.Outcome)
}

func TestEvaluateHostPassphrase(t *testing.T) {
	ledger := newFakeLedger()
	svc := newAccess(ledger, newFakeRequests(), &fakeEvents{})

	hash, err := utils.HashPassword("topsecret", bcrypt.MinCost)
	require.NoError(t, err)
	rm := approvalRoom(1)
	rm.HostPassphraseHash = &hash

	// Correct passphrase grants HOST regardless of policy.
	d, err := svc.Evaluate(context.Background(), rm, "dev-h", "", "topsecret", nil)
	require.NoError(t, err)
	assert.Equal(t, OutcomeGranted, d.Outcome)
	assert.Equal(t, model.RoleHost, d.Role)

	// Wrong passphrase is an error, not a guest evaluation.
	_, err = svc.Evaluate(context.Background(), rm, "dev-h2", "", "nope", nil)
	assert.ErrorIs(t, err, repository.ErrForbidden)

	// Host-less room rejects any passphrase attempt.
	rm.HostPassphraseHash = nil
	_, err = svc.Evaluate(context.Background(), rm, "dev-h3", "", "topsecret", nil)
	assert.ErrorIs(t, err, repository.ErrForbidden)
}
