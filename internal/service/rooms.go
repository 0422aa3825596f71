package service

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/ramswarooppatel/sharehub/internal/blob"
	"github.com/ramswarooppatel/sharehub/internal/model"
	"github.com/ramswarooppatel/sharehub/internal/queue"
	"github.com/ramswarooppatel/sharehub/internal/realtime"
	"github.com/ramswarooppatel/sharehub/internal/repository"
	"github.com/ramswarooppatel/sharehub/internal/utils"
)

// Room codes are short, lower-case and unambiguous: no 0/o, 1/l pairs.
const (
	roomCodeCharset  = "abcdefghjkmnpqrstuvwxyz23456789"
	roomCodeLength   = 6
	roomCodeAttempts = 10
)

// RoomStore is the slice of the room repository the room service needs.
type RoomStore interface {
	Create(ctx context.Context, rm *model.Room) error
	GetByCode(ctx context.Context, code string) (*model.Room, error)
	GetByID(ctx context.Context, id uint64) (*model.Room, error)
	CodeExists(ctx context.Context, code string) (bool, error)
	Update(ctx context.Context, id uint64, p repository.RoomPatch) (*model.Room, error)
	Delete(ctx context.Context, id uint64) error
}

// FileKeyLister exposes the stored object keys of a room's files so
// deletion can clean the blob store after the row cascade.
type FileKeyLister interface {
	ListObjectKeysByRoom(ctx context.Context, roomID uint64) ([]string, error)
}

// CreateRoomInput carries the settings for a new room. Exactly the
// fields a password-protected or expiring room needs are validated
// against the chosen policy and permanence.
type CreateRoomInput struct {
	Name           string
	Policy         string
	Password       string
	IsPermanent    bool
	ExpiresAt      *time.Time
	AutoAccept     bool
	HostName       string
	HostPassphrase string
}

// UpdateRoomInput mirrors repository.RoomPatch at the business level.
// Nil fields are left unchanged.
type UpdateRoomInput struct {
	Name           *string
	Policy         *string
	Password       *string
	ClearPassword  bool
	IsPermanent    *bool
	ExpiresAt      *time.Time
	ClearExpiresAt bool
	AutoAccept     *bool
}

// RoomService owns the room lifecycle: creation with a unique generated
// code, settings updates under the policy/expiry invariants, and
// deletion including blob cleanup.
type RoomService struct {
	rooms    RoomStore
	ledger   MembershipLedger
	files    FileKeyLister
	blobs    blob.Store
	events   EventPublisher
	activity func(ctx context.Context, event queue.RoomActivityEvent) error
	now      func() time.Time
}

// NewRoomService wires the room service. files, blobs and events may be
// nil when the corresponding subsystem is not running.
func NewRoomService(rooms RoomStore, ledger MembershipLedger, files FileKeyLister, blobs blob.Store, events EventPublisher) *RoomService {
	return &RoomService{
		rooms:    rooms,
		ledger:   ledger,
		files:    files,
		blobs:    blobs,
		events:   events,
		activity: queue.PublishActivity,
		now:      time.Now,
	}
}

// Create validates the input, generates a unique room code and inserts
// the room. When creatorDeviceID is non-empty the creating device is
// written to the membership ledger as HOST so the creator lands in the
// room without going through its own gate.
func (s *RoomService) Create(ctx context.Context, in CreateRoomInput, creatorDeviceID string) (*model.Room, error) {
	in.Name = strings.TrimSpace(in.Name)
	if in.Name == "" {
		return nil, ErrValidation
	}
	if !model.ValidPolicy(in.Policy) {
		return nil, ErrValidation
	}
	if err := checkPolicyPassword(in.Policy, in.Password != ""); err != nil {
		return nil, err
	}
	if err := checkExpiry(in.IsPermanent, in.ExpiresAt, s.now()); err != nil {
		return nil, err
	}
	if in.AutoAccept && in.Policy != model.PolicyApproval {
		return nil, ErrValidation
	}

	rm := &model.Room{
		Name:        in.Name,
		Policy:      in.Policy,
		IsPermanent: in.IsPermanent,
		ExpiresAt:   in.ExpiresAt,
		AutoAccept:  in.AutoAccept,
		HostName:    strings.TrimSpace(in.HostName),
	}
	if in.Policy == model.PolicyPassword {
		p := in.Password
		rm.Password = &p
	}
	if in.HostPassphrase != "" {
		hash, err := utils.HashPassword(in.HostPassphrase, bcrypt.DefaultCost)
		if err != nil {
			return nil, err
		}
		rm.HostPassphraseHash = &hash
	}

	// Generated codes can collide with a concurrent insert even after a
	// CodeExists check, so a duplicate-key conflict retries with a fresh
	// code instead of failing the request.
	var lastErr error
	for attempt := 0; attempt < roomCodeAttempts; attempt++ {
		code, err := randomRoomCode()
		if err != nil {
			return nil, err
		}
		taken, err := s.rooms.CodeExists(ctx, code)
		if err != nil {
			return nil, err
		}
		if taken {
			continue
		}
		rm.RoomCode = code
		if err := s.rooms.Create(ctx, rm); err != nil {
			if errors.Is(err, repository.ErrConflict) {
				lastErr = err
				continue
			}
			return nil, err
		}
		lastErr = nil
		break
	}
	if lastErr != nil || rm.ID == 0 {
		return nil, fmt.Errorf("could not allocate a unique room code")
	}

	if creatorDeviceID != "" && s.ledger != nil {
		if err := s.ledger.InsertIfAbsent(ctx, rm.ID, creatorDeviceID, nil, model.RoleHost); err != nil {
			return nil, err
		}
	}

	s.publishActivity(ctx, queue.ActionRoomCreated, rm, creatorDeviceID)
	return rm, nil
}

// Get loads a room by code. Expired rooms are surfaced as ErrExpired so
// every read path applies expiry lazily, whether or not the reaper has
// swept the row yet.
func (s *RoomService) Get(ctx context.Context, code string) (*model.Room, error) {
	rm, err := s.rooms.GetByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	if rm.IsExpired(s.now()) {
		return nil, ErrExpired
	}
	return rm, nil
}

// Update applies a settings patch under the same invariants Create
// enforces: the password exists exactly when the policy is PASSWORD,
// and the expiry exists exactly when the room is not permanent. The
// invariants are checked against the resulting state, combining the
// patch with the current row.
func (s *RoomService) Update(ctx context.Context, room *model.Room, in UpdateRoomInput) (*model.Room, error) {
	policy := room.Policy
	if in.Policy != nil {
		if !model.ValidPolicy(*in.Policy) {
			return nil, ErrValidation
		}
		policy = *in.Policy
	}
	hasPassword := room.Password != nil
	if in.ClearPassword {
		hasPassword = false
	} else if in.Password != nil {
		hasPassword = *in.Password != ""
	}
	// Leaving the PASSWORD policy drops the stored password; entering it
	// requires one in the same patch.
	if policy != model.PolicyPassword && hasPassword {
		in.ClearPassword = true
		in.Password = nil
		hasPassword = false
	}
	if err := checkPolicyPassword(policy, hasPassword); err != nil {
		return nil, err
	}

	permanent := room.IsPermanent
	if in.IsPermanent != nil {
		permanent = *in.IsPermanent
	}
	expiresAt := room.ExpiresAt
	if in.ClearExpiresAt {
		expiresAt = nil
	} else if in.ExpiresAt != nil {
		expiresAt = in.ExpiresAt
	}
	if permanent {
		in.ClearExpiresAt = true
		in.ExpiresAt = nil
		expiresAt = nil
	}
	if err := checkExpiry(permanent, expiresAt, s.now()); err != nil {
		return nil, err
	}

	autoAccept := room.AutoAccept
	if in.AutoAccept != nil {
		autoAccept = *in.AutoAccept
	}
	if autoAccept && policy != model.PolicyApproval {
		return nil, ErrValidation
	}

	if in.Name != nil {
		trimmed := strings.TrimSpace(*in.Name)
		if trimmed == "" {
			return nil, ErrValidation
		}
		in.Name = &trimmed
	}

	updated, err := s.rooms.Update(ctx, room.ID, repository.RoomPatch{
		Name:           in.Name,
		Policy:         in.Policy,
		Password:       in.Password,
		ClearPassword:  in.ClearPassword,
		IsPermanent:    in.IsPermanent,
		ExpiresAt:      in.ExpiresAt,
		ClearExpiresAt: in.ClearExpiresAt,
		AutoAccept:     in.AutoAccept,
	})
	if err != nil {
		return nil, err
	}

	if s.events != nil {
		s.events.Publish(ctx, realtime.Event{
			Kind:   realtime.KindRoom,
			Type:   realtime.ChangeUpdated,
			RoomID: updated.ID,
			Payload: map[string]interface{}{
				"name":         updated.Name,
				"policy":       updated.Policy,
				"is_permanent": updated.IsPermanent,
				"expires_at":   updated.ExpiresAt,
				"auto_accept":  updated.AutoAccept,
			},
		})
	}
	return updated, nil
}

// Delete removes a room, its rows (via the cascade) and its stored
// blobs, then announces the deletion so open clients can bail out.
func (s *RoomService) Delete(ctx context.Context, room *model.Room) error {
	var keys []string
	if s.files != nil {
		var err error
		keys, err = s.files.ListObjectKeysByRoom(ctx, room.ID)
		if err != nil {
			return err
		}
	}
	if err := s.rooms.Delete(ctx, room.ID); err != nil {
		return err
	}
	if s.blobs != nil {
		for _, key := range keys {
			_ = s.blobs.Delete(ctx, key)
		}
	}
	if s.events != nil {
		s.events.Publish(ctx, realtime.Event{
			Kind:    realtime.KindRoom,
			Type:    realtime.ChangeDeleted,
			RoomID:  room.ID,
			Payload: map[string]interface{}{"room_code": room.RoomCode},
		})
	}
	s.publishActivity(ctx, queue.ActionRoomDeleted, room, "")
	return nil
}

// VerifyHost checks a presented host passphrase against the room's
// stored hash. Host-less rooms cannot authorize host actions at all.
func (s *RoomService) VerifyHost(room *model.Room, passphrase string) error {
	if !room.HasHost() || passphrase == "" {
		return repository.ErrForbidden
	}
	if !utils.VerifyPassword(*room.HostPassphraseHash, passphrase) {
		return repository.ErrForbidden
	}
	return nil
}

func (s *RoomService) publishActivity(ctx context.Context, action string, rm *model.Room, deviceID string) {
	if s.activity == nil {
		return
	}
	_ = s.activity(ctx, queue.RoomActivityEvent{
		Action:     action,
		RoomID:     rm.ID,
		RoomCode:   rm.RoomCode,
		RoomName:   rm.Name,
		Policy:     rm.Policy,
		DeviceID:   deviceID,
		OccurredAt: s.now().UTC().Format(time.RFC3339),
	})
}

// checkPolicyPassword enforces that a password is stored exactly when
// the policy requires one.
func checkPolicyPassword(policy string, hasPassword bool) error {
	if policy == model.PolicyPassword && !hasPassword {
		return ErrValidation
	}
	if policy != model.PolicyPassword && hasPassword {
		return ErrValidation
	}
	return nil
}

// checkExpiry enforces that an expiry is set exactly when the room is
// not permanent, and lies in the future.
func checkExpiry(permanent bool, expiresAt *time.Time, now time.Time) error {
	if permanent {
		if expiresAt != nil {
			return ErrValidation
		}
		return nil
	}
	if expiresAt == nil || !expiresAt.After(now) {
		return ErrValidation
	}
	return nil
}

// randomRoomCode draws a code from the unambiguous charset using
// crypto/rand.
func randomRoomCode() (string, error) {
	b := make([]byte, roomCodeLength)
	limit := big.NewInt(int64(len(roomCodeCharset)))
	for i := range b {
		n, err := rand.Int(rand.Reader, limit)
		if err != nil {
			return "", err
		}
		b[i] = roomCodeCharset[n.Int64()]
	}
	return string(b), nil
}
