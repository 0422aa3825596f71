package service

import (
	"context"
	"time"

	"github.com/ramswarooppatel/sharehub/internal/model"
	"github.com/ramswarooppatel/sharehub/internal/realtime"
	"github.com/ramswarooppatel/sharehub/internal/repository"
	"github.com/ramswarooppatel/sharehub/internal/utils"
)

// Outcome classifies an access decision.
type Outcome string

// Access decision outcomes.
const (
	OutcomeGranted          Outcome = "GRANTED"           // device may enter the room
	OutcomeApprovalRequired Outcome = "APPROVAL_REQUIRED" // device must submit or await a join request
	OutcomePasswordRequired Outcome = "PASSWORD_REQUIRED" // device must present the room password
	OutcomeDenied           Outcome = "DENIED"            // device was refused
	OutcomeExpired          Outcome = "EXPIRED"           // the room is past its expiry
)

// Decision is the result of evaluating a device against a room. When
// the outcome is GRANTED, Role carries the membership role. When the
// outcome is APPROVAL_REQUIRED and the device already has a pending
// request, PendingRequestID identifies it so the client can poll or
// watch for the verdict. Reason is a short human-readable note for
// negative outcomes.
type Decision struct {
	Outcome          Outcome
	Role             string
	PendingRequestID uint64
	Reason           string
}

// MembershipLedger is the slice of the membership repository the
// services need: read the stored grant and record new ones. The ledger
// insert is idempotent per (room, device), so every grant path may call
// it unconditionally.
type MembershipLedger interface {
	Get(ctx context.Context, roomID uint64, deviceID string) (*model.Membership, error)
	InsertIfAbsent(ctx context.Context, roomID uint64, deviceID string, userID *uint64, role string) error
}

// RequestFinder looks up a device's join-request history for a room.
type RequestFinder interface {
	FindLatestByDevice(ctx context.Context, roomID uint64, deviceID string) (*model.JoinRequest, error)
}

// EventPublisher pushes typed deltas onto the realtime feed. The hub
// satisfies it; tests substitute a recorder.
type EventPublisher interface {
	Publish(ctx context.Context, ev realtime.Event)
}

// AccessService is the room access evaluator. Evaluate is the single
// gate every room-scoped operation passes through; it decides whether a
// device may enter a room and records durable grants in the membership
// ledger as a side effect.
type AccessService struct {
	ledger   MembershipLedger
	requests RequestFinder
	events   EventPublisher
	now      func() time.Time
}

// NewAccessService wires the evaluator. events may be nil when no feed
// is running.
func NewAccessService(ledger MembershipLedger, requests RequestFinder, events EventPublisher) *AccessService {
	return &AccessService{ledger: ledger, requests: requests, events: events, now: time.Now}
}

// Evaluate decides whether deviceID may enter room.
//
// The checks run in a fixed order:
//  1. Expiry. An expired room answers EXPIRED for every device,
//     including existing members; the row may still exist until the
//     reaper collects it.
//  2. Host passphrase. A correct passphrase grants HOST membership
//     regardless of policy; a wrong one is an error, never a silent
//     downgrade to guest evaluation.
//  3. The membership ledger. An existing grant is honored with its
//     stored role; policy changes never revoke it.
//  4. The room policy: OPEN grants immediately; PASSWORD compares the
//     presented password; APPROVAL routes through the join-request
//     state machine, materializing the grant lazily when an approved
//     request exists without a ledger row.
func (s *AccessService) Evaluate(ctx context.Context, room *model.Room, deviceID, password, hostPassphrase string, userID *uint64) (Decision, error) {
	if room.IsExpired(s.now()) {
		return Decision{Outcome: OutcomeExpired, Reason: "room expired"}, nil
	}

	if hostPassphrase != "" {
		if !room.HasHost() || !utils.VerifyPassword(*room.HostPassphraseHash, hostPassphrase) {
			return Decision{}, repository.ErrForbidden
		}
		return s.grant(ctx, room, deviceID, userID, model.RoleHost)
	}

	member, err := s.ledger.Get(ctx, room.ID, deviceID)
	if err != nil {
		return Decision{}, err
	}
	if member != nil {
		return Decision{Outcome: OutcomeGranted, Role: member.Role}, nil
	}

	switch room.Policy {
	case model.PolicyOpen:
		return s.grant(ctx, room, deviceID, userID, model.RoleMember)

	case model.PolicyPassword:
		if password == "" {
			return Decision{Outcome: OutcomePasswordRequired}, nil
		}
		if room.Password == nil || password != *room.Password {
			return Decision{Outcome: OutcomePasswordRequired, Reason: "incorrect password"}, nil
		}
		return s.grant(ctx, room, deviceID, userID, model.RoleMember)

	case model.PolicyApproval:
		if room.AutoAccept {
			return s.grant(ctx, room, deviceID, userID, model.RoleMember)
		}
		latest, err := s.requests.FindLatestByDevice(ctx, room.ID, deviceID)
		if err != nil {
			return Decision{}, err
		}
		if latest == nil {
			return Decision{Outcome: OutcomeApprovalRequired}, nil
		}
		switch latest.Status {
		case model.RequestPending:
			return Decision{Outcome: OutcomeApprovalRequired, PendingRequestID: latest.ID}, nil
		case model.RequestApproved:
			// The request was approved but the ledger row is missing,
			// typically a crash between the two writes. Materialize the
			// grant now.
			return s.grant(ctx, room, deviceID, userID, model.RoleMember)
		default:
			return Decision{Outcome: OutcomeDenied, Reason: "join request rejected"}, nil
		}
	}

	return Decision{}, ErrValidation
}

// grant records the membership and announces it on the feed. The
// ledger insert is idempotent, so a concurrent grant from another tab
// converges on one row.
func (s *AccessService) grant(ctx context.Context, room *model.Room, deviceID string, userID *uint64, role string) (Decision, error) {
	if err := s.ledger.InsertIfAbsent(ctx, room.ID, deviceID, userID, role); err != nil {
		return Decision{}, err
	}
	if s.events != nil {
		s.events.Publish(ctx, realtime.Event{
			Kind:   realtime.KindMembership,
			Type:   realtime.ChangeCreated,
			RoomID: room.ID,
			Payload: map[string]interface{}{
				"device_id": deviceID,
				"role":      role,
			},
		})
	}
	return Decision{Outcome: OutcomeGranted, Role: role}, nil
}
