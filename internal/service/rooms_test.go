package service

import (
	"context"
	"io"
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

// fakeRoomStore is an in-memory RoomStore. conflicts forces the next n
// Create calls to fail with ErrConflict, exercising the code-retry loop.
type fakeRoomStore struct {
	byID      map[uint64]*model.Room
	nextID    uint64
	conflicts int
}

func newFakeRoomStore() *fakeRoomStore {
	return &fakeRoomStore{byID: make(map[uint64]*model.Room)}
}

func (f *fakeRoomStore) Create(_ context.Context, rm *model.Room) error {
	if f.conflicts > 0 {
		f.conflicts--
		return repository.ErrConflict
	}
	f.nextID++
	rm.ID = f.nextID
	rm.CreatedAt = time.Now().UTC()
	rm.UpdatedAt = rm.CreatedAt
	dup := *rm
	f.byID[rm.ID] = &dup
	return nil
}

func (f *fakeRoomStore) GetByCode(_ context.Context, code string) (*model.Room, error) {
	code = model.NormalizeRoomCode(code)
	for _, rm := range f.byID {
		if rm.RoomCode == code {
			dup := *rm
			return &dup, nil
		}
	}
	return nil, repository.ErrRoomNotFound
}

func (f *fakeRoomStore) GetByID(_ context.Context, id uint64) (*model.Room, error) {
	rm, ok := f.byID[id]
	if !ok {
		return nil, repository.ErrRoomNotFound
	}
	dup := *rm
	return &dup, nil
}

func (f *fakeRoomStore) CodeExists(_ context.Context, code string) (bool, error) {
	_, err := f.GetByCode(nil, code)
	return err == nil, nil
}

func (f *fakeRoomStore) Update(_ context.Context, id uint64, p repository.RoomPatch) (*model.Room, error) {
	rm, ok := f.byID[id]
	if !ok {
		return nil, repository.ErrRoomNotFound
	}
	if p.Name != nil {
		rm.Name = *p.Name
	}
	if p.Policy != nil {
		rm.Policy = *p.Policy
	}
	if p.ClearPassword {
		rm.Password = nil
	} else if p.Password != nil {
		v := *p.Password
		rm.Password = &v
	}
	if p.IsPermanent != nil {
		rm.IsPermanent = *p.IsPermanent
	}
	if p.ClearExpiresAt {
		rm.ExpiresAt = nil
	} else if p.ExpiresAt != nil {
		v := *p.ExpiresAt
		rm.ExpiresAt = &v
	}
	if p.AutoAccept != nil {
		rm.AutoAccept = *p.AutoAccept
	}
	rm.UpdatedAt = time.Now().UTC()
	dup := *rm
	return &dup, nil
}

func (f *fakeRoomStore) Delete(_ context.Context, id uint64) error {
	if _, ok := f.byID[id]; !ok {
		return repository.ErrRoomNotFound
	}
	delete(f.byID, id)
	return nil
}

// fakeFileKeys serves a fixed key list for the delete path.
type fakeFileKeys struct{ keys []string }

func (f *fakeFileKeys) ListObjectKeysByRoom(context.Context, uint64) ([]string, error) {
	return f.keys, nil
}

// fakeBlobStore records deletions.
type fakeBlobStore struct{ deleted []string }

func (f *fakeBlobStore) Upload(_ context.Context, key string, r io.Reader) (string, int64, error) {
	n, _ := io.Copy(io.Discard, r)
	return "/v1/files/" + key, n, nil
}

func (f *fakeBlobStore) Delete(_ context.Context, key string) error {
	f.deleted = append(f.deleted, key)
	return nil
}

func (f *fakeBlobStore) Path(key string) (string, error) { return key, nil }

func newRooms(store *fakeRoomStore, ledger *fakeLedger, files *fakeFileKeys, blobs *fakeBlobStore, events *fakeEvents) *RoomService {
	svc := NewRoomService(store, ledger, files, blobs, events)
	svc.activity = noActivity
	return svc
}

func validOpenInput() CreateRoomInput {
	return CreateRoomInput{Name: "Demo", Policy: model.PolicyOpen, IsPermanent: true}
}

func TestCreateRoomGeneratesCodeAndHostMembership(t *testing.T) {
	store := newFakeRoomStore()
	ledger := newFakeLedger()
	svc := newRooms(store, ledger, &fakeFileKeys{}, &fakeBlobStore{}, &fakeEvents{})

	in := validOpenInput()
	in.HostName = "Ram"
	in.HostPassphrase = "hostpass"

	rm, err := svc.Create(context.Background(), in, "dev-host")
	require.NoError(t, err)
	assert.Len(t, rm.RoomCode, roomCodeLength)
	for _, ch := range rm.RoomCode {
		assert.Contains(t, roomCodeCharset, string(ch))
	}
	require.NotNil(t, rm.HostPassphraseHash)
	assert.True(t, utils.VerifyPassword(*rm.HostPassphraseHash, "hostpass"))

	m, err := ledger.Get(context.Background(), rm.ID, "dev-host")
	require.NoError(t, err)
	require.NotNil(t, m)
	assert.Equal(t, model.RoleHost, m.Role)
}

func TestCreateRoomRetriesOnCodeCollision(t *testing.T) {
	store := newFakeRoomStore()
	store.conflicts = 2
	svc := newRooms(store, newFakeLedger(), &fakeFileKeys{}, &fakeBlobStore{}, &fakeEvents{})

	rm, err := svc.Create(context.Background(), validOpenInput(), "")
	require.NoError(t, err)
	assert.NotZero(t, rm.ID)
}

func TestCreateRoomValidation(t *testing.T) {
	svc := newRooms(newFakeRoomStore(), newFakeLedger(), &fakeFileKeys{}, &fakeBlobStore{}, &fakeEvents{})
	future := time.Now().UTC().Add(time.Hour)
	past := time.Now().UTC().Add(-time.Hour)

	cases := []struct {
		name string
		in   CreateRoomInput
	}{
		{"empty name", CreateRoomInput{Name: "  ", Policy: model.PolicyOpen, IsPermanent: true}},
		{"unknown policy", CreateRoomInput{Name: "x", Policy: "VIP", IsPermanent: true}},
		{"password on open room", CreateRoomInput{Name: "x", Policy: model.PolicyOpen, Password: "p", IsPermanent: true}},
		{"password room without password", CreateRoomInput{Name: "x", Policy: model.PolicyPassword, IsPermanent: true}},
		{"temporary without expiry", CreateRoomInput{Name: "x", Policy: model.PolicyOpen}},
		{"expiry in the past", CreateRoomInput{Name: "x", Policy: model.PolicyOpen, ExpiresAt: &past}},
		{"permanent with expiry", CreateRoomInput{Name: "x", Policy: model.PolicyOpen, IsPermanent: true, ExpiresAt: &future}},
		{"auto accept on open room", CreateRoomInput{Name: "x", Policy: model.PolicyOpen, IsPermanent: true, AutoAccept: true}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Create(context.Background(), tc.in, "")
			assert.ErrorIs(t, err, ErrValidation)
		})
	}
}

func TestGetExpiredRoom(t *testing.T) {
	store := newFakeRoomStore()
	svc := newRooms(store, newFakeLedger(), &fakeFileKeys{}, &fakeBlobStore{}, &fakeEvents{})

	future := time.Now().UTC().Add(time.Minute)
	in := CreateRoomInput{Name: "Short lived", Policy: model.PolicyOpen, ExpiresAt: &future}
	rm, err := svc.Create(context.Background(), in, "")
	require.NoError(t, err)

	got, err := svc.Get(context.Background(), rm.RoomCode)
	require.NoError(t, err)
	assert.Equal(t, rm.ID, got.ID)

	// Move the clock past the expiry.
	svc.now = func() time.Time { return future.Add(time.Second) }
	_, err = svc.Get(context.Background(), rm.RoomCode)
	assert.ErrorIs(t, err, ErrExpired)
}

func TestUpdateRoomDropsPasswordWhenLeavingPasswordPolicy(t *testing.T) {
	store := newFakeRoomStore()
	events := &fakeEvents{}
	svc := newRooms(store, newFakeLedger(), &fakeFileKeys{}, &fakeBlobStore{}, events)

	in := CreateRoomInput{Name: "Locked", Policy: model.PolicyPassword, Password: "pw", IsPermanent: true}
	rm, err := svc.Create(context.Background(), in, "")
	require.NoError(t, err)

	open := model.PolicyOpen
	updated, err := svc.Update(context.Background(), rm, UpdateRoomInput{Policy: &open})
	require.NoError(t, err)
	assert.Equal(t, model.PolicyOpen, updated.Policy)
	assert.Nil(t, updated.Password)
	require.Len(t, events.ofKind(realtime.KindRoom), 1)
}

func TestUpdateRoomEnforcesPasswordOnPolicySwitch(t *testing.T) {
	store := newFakeRoomStore()
	svc := newRooms(store, newFakeLedger(), &fakeFileKeys{}, &fakeBlobStore{}, &fakeEvents{})

	rm, err := svc.Create(context.Background(), validOpenInput(), "")
	require.NoError(t, err)

	pw := model.PolicyPassword
	_, err = svc.Update(context.Background(), rm, UpdateRoomInput{Policy: &pw})
	assert.ErrorIs(t, err, ErrValidation)

	_, err = svc.Update(context.Background(), rm, UpdateRoomInput{Policy: &pw, Password: strptr("secret")})
	require.NoError(t, err)
}

func TestUpdateRoomPermanentClearsExpiry(t *testing.T) {
	store := newFakeRoomStore()
	svc := newRooms(store, newFakeLedger(), &fakeFileKeys{}, &fakeBlobStore{}, &fakeEvents{})

	future := time.Now().UTC().Add(time.Hour)
	rm, err := svc.Create(context.Background(), CreateRoomInput{Name: "Temp", Policy: model.PolicyOpen, ExpiresAt: &future}, "")
	require.NoError(t, err)

	perm := true
	updated, err := svc.Update(context.Background(), rm, UpdateRoomInput{IsPermanent: &perm})
	require.NoError(t, err)
	assert.True(t, updated.IsPermanent)
	assert.Nil(t, updated.ExpiresAt)
}

func TestDeleteRoomCleansBlobsAndAnnounces(t *testing.T) {
	store := newFakeRoomStore()
	blobs := &fakeBlobStore{}
	events := &fakeEvents{}
	svc := newRooms(store, newFakeLedger(), &fakeFileKeys{keys: []string{"k1", "k2"}}, blobs, events)

	rm, err := svc.Create(context.Background(), validOpenInput(), "")
	require.NoError(t, err)

	require.NoError(t, svc.Delete(context.Background(), rm))
	assert.ElementsMatch(t, []string{"k1", "k2"}, blobs.deleted)

	_, err = store.GetByID(context.Background(), rm.ID)
	assert.ErrorIs(t, err, repository.ErrRoomNotFound)

	kinds := events.ofKind(realtime.KindRoom)
	require.Len(t, kinds, 1)
	assert.Equal(t, realtime.ChangeDeleted, kinds[0].Type)
}

func TestVerifyHost(t *testing.T) {
	svc := newRooms(newFakeRoomStore(), newFakeLedger(), &fakeFileKeys{}, &fakeBlobStore{}, &fakeEvents{})

	hash, err := utils.HashPassword("sesame", bcrypt.MinCost)
	require.NoError(t, err)
	rm := openRoom(1)
	rm.HostPassphraseHash = &hash

	assert.NoError(t, svc.VerifyHost(rm, "sesame"))
	assert.ErrorIs(t, svc.VerifyHost(rm, "wrong"), repository.ErrForbidden)
	assert.ErrorIs(t, svc.VerifyHost(rm, ""), repository.ErrForbidden)

	rm.HostPassphraseHash = nil
	assert.ErrorIs(t, svc.VerifyHost(rm, "sesame"), repository.ErrForbidden)
}
