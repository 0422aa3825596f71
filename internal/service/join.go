package service

import (
	"context"
	"strings"
	"time"

	"github.com/ramswarooppatel/sharehub/internal/model"
	"github.com/ramswarooppatel/sharehub/internal/queue"
	"github.com/ramswarooppatel/sharehub/internal/realtime"
	"github.com/ramswarooppatel/sharehub/internal/repository"
)

// JoinRequestStore is the slice of the join-request repository the
// join service needs. UpdateStatus is a compare-and-swap: it reports
// false when the row was not in the expected status.
type JoinRequestStore interface {
	Insert(ctx context.Context, jr *model.JoinRequest) error
	GetByID(ctx context.Context, id uint64) (*model.JoinRequest, error)
	FindPendingByDevice(ctx context.Context, roomID uint64, deviceID string) (*model.JoinRequest, error)
	UpdateStatus(ctx context.Context, id uint64, from, to string) (bool, error)
	ListPending(ctx context.Context, roomID uint64) ([]model.JoinRequest, error)
}

// JoinService runs the join-request state machine for approval rooms:
// a device submits at most one pending request per room, and the host's
// first decision on a request is final.
type JoinService struct {
	requests JoinRequestStore
	ledger   MembershipLedger
	events   EventPublisher
	activity func(ctx context.Context, event queue.RoomActivityEvent) error
	now      func() time.Time
}

// NewJoinService wires the join-request service. events may be nil when
// no feed is running.
func NewJoinService(requests JoinRequestStore, ledger MembershipLedger, events EventPublisher) *JoinService {
	return &JoinService{
		requests: requests,
		ledger:   ledger,
		events:   events,
		activity: queue.PublishActivity,
		now:      time.Now,
	}
}

// Submit records a device's request to join an approval room. It is
// idempotent per (room, device): a device with a pending request gets
// that request back instead of a duplicate. Devices that already hold a
// membership receive ErrConflict; the session endpoint is the right way
// in for them. Auto-accept rooms never take requests, the evaluator
// grants them directly. The display name and message are optional.
func (s *JoinService) Submit(ctx context.Context, room *model.Room, deviceID, displayName, message string) (*model.JoinRequest, error) {
	if room.Policy != model.PolicyApproval || room.AutoAccept {
		return nil, ErrValidation
	}
	if room.IsExpired(s.now()) {
		return nil, ErrExpired
	}

	member, err := s.ledger.Get(ctx, room.ID, deviceID)
	if err != nil {
		return nil, err
	}
	if member != nil {
		return nil, repository.ErrConflict
	}

	if pending, err := s.requests.FindPendingByDevice(ctx, room.ID, deviceID); err != nil {
		return nil, err
	} else if pending != nil {
		return pending, nil
	}

	jr := &model.JoinRequest{
		RoomID:      room.ID,
		DeviceID:    deviceID,
		DisplayName: strings.TrimSpace(displayName),
		Message:     strings.TrimSpace(message),
	}
	if err := s.requests.Insert(ctx, jr); err != nil {
		return nil, err
	}

	s.publishRequestEvent(ctx, realtime.ChangeCreated, jr)
	s.publishActivity(ctx, queue.ActionJoinSubmitted, room, jr)
	return jr, nil
}

// Decide resolves a pending join request. The status update is a
// compare-and-swap from PENDING, so when two hosts race the first
// decision wins and the loser receives ErrNotPending. Approval writes
// the membership ledger row after the status flips; the access
// evaluator materializes the grant lazily if the process dies between
// the two writes.
func (s *JoinService) Decide(ctx context.Context, room *model.Room, requestID uint64, approve bool) (*model.JoinRequest, error) {
	jr, err := s.requests.GetByID(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if jr.RoomID != room.ID {
		return nil, repository.ErrRequestNotFound
	}

	target := model.RequestRejected
	action := queue.ActionJoinRejected
	if approve {
		target = model.RequestApproved
		action = queue.ActionJoinApproved
	}

	ok, err := s.requests.UpdateStatus(ctx, requestID, model.RequestPending, target)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, repository.ErrNotPending
	}

	if approve {
		if err := s.ledger.InsertIfAbsent(ctx, room.ID, jr.DeviceID, nil, model.RoleMember); err != nil {
			return nil, err
		}
		if s.events != nil {
			s.events.Publish(ctx, realtime.Event{
				Kind:   realtime.KindMembership,
				Type:   realtime.ChangeCreated,
				RoomID: room.ID,
				Payload: map[string]interface{}{
					"device_id": jr.DeviceID,
					"role":      model.RoleMember,
				},
			})
		}
	}

	jr, err = s.requests.GetByID(ctx, requestID)
	if err != nil {
		return nil, err
	}

	s.publishRequestEvent(ctx, realtime.ChangeUpdated, jr)
	s.publishActivity(ctx, action, room, jr)
	return jr, nil
}

// ListPending returns a room's unresolved requests, oldest first.
func (s *JoinService) ListPending(ctx context.Context, roomID uint64) ([]model.JoinRequest, error) {
	return s.requests.ListPending(ctx, roomID)
}

func (s *JoinService) publishRequestEvent(ctx context.Context, change realtime.ChangeType, jr *model.JoinRequest) {
	if s.events == nil {
		return
	}
	s.events.Publish(ctx, realtime.Event{
		Kind:   realtime.KindJoinRequest,
		Type:   change,
		RoomID: jr.RoomID,
		Payload: map[string]interface{}{
			"id":           jr.ID,
			"device_id":    jr.DeviceID,
			"display_name": jr.DisplayName,
			"message":      jr.Message,
			"status":       jr.Status,
		},
	})
}

func (s *JoinService) publishActivity(ctx context.Context, action string, room *model.Room, jr *model.JoinRequest) {
	if s.activity == nil {
		return
	}
	// Best effort; the publisher logs its own failures.
	_ = s.activity(ctx, queue.RoomActivityEvent{
		Action:     action,
		RoomID:     room.ID,
		RoomCode:   room.RoomCode,
		RoomName:   room.Name,
		Policy:     room.Policy,
		DeviceID:   jr.DeviceID,
		Requester:  jr.DisplayName,
		RequestID:  jr.ID,
		OccurredAt: s.now().UTC().Format(time.RFC3339),
	})
}
