package model

import (
	"strings"
	"time"
)

// Room access policies. A room's policy decides how the access evaluator
// grants membership to a visiting device.
const (
	PolicyOpen     = "OPEN"     // anyone with the room code enters immediately
	PolicyApproval = "APPROVAL" // the host reviews a join request first
	PolicyPassword = "PASSWORD" // entry requires the room password
)

// Room represents a collaboration room as stored in the `rooms` table.
// A room is a shared space for file exchange and note-taking, addressed
// by a short human-typable code. Non-permanent rooms carry an expiry
// timestamp and are treated as gone once it passes.
//
// Fields:
//  ID                 – primary key identifier.
//  RoomCode           – unique, lower-case short code used in URLs.
//  Name               – display name chosen at creation.
//  Policy             – one of OPEN, APPROVAL, PASSWORD.
//  Password           – room password (set only when Policy is PASSWORD).
//  IsPermanent        – permanent rooms never expire.
//  ExpiresAt          – expiry timestamp (null iff IsPermanent).
//  AutoAccept         – APPROVAL rooms may self-approve join requests.
//  HostName           – display name of the host (empty for host-less rooms).
//  HostPassphraseHash – bcrypt hash of the host passphrase (nullable).
//  CreatedAt          – timestamp of creation.
//  UpdatedAt          – timestamp of last settings change.
type Room struct {
	ID                 uint64     // rooms.id
	RoomCode           string     // rooms.room_code
	Name               string     // rooms.name
	Policy             string     // rooms.policy
	Password           *string    // rooms.password (nullable)
	IsPermanent        bool       // rooms.is_permanent
	ExpiresAt          *time.Time // rooms.expires_at (nullable)
	AutoAccept         bool       // rooms.auto_accept
	HostName           string     // rooms.host_name
	HostPassphraseHash *string    // rooms.host_passphrase_hash (nullable)
	CreatedAt          time.Time  // rooms.created_at
	UpdatedAt          time.Time  // rooms.updated_at
}

// IsExpired reports whether the room is past its expiry at the given
// instant. Permanent rooms never expire regardless of ExpiresAt.
func (r *Room) IsExpired(now time.Time) bool {
	if r.IsPermanent || r.ExpiresAt == nil {
		return false
	}
	return !now.Before(*r.ExpiresAt)
}

// HasHost reports whether the room has a host credential configured.
// Host-less rooms cannot perform host-only actions such as approving
// join requests or changing settings.
func (r *Room) HasHost() bool {
	return r.HostPassphraseHash != nil && *r.HostPassphraseHash != ""
}

// NormalizeRoomCode canonicalizes a room code for lookups and storage:
// codes are compared case-insensitively and without surrounding space.
func NormalizeRoomCode(code string) string {
	return strings.ToLower(strings.TrimSpace(code))
}

// ValidPolicy reports whether p names a known room policy.
func ValidPolicy(p string) bool {
	switch p {
	case PolicyOpen, PolicyApproval, PolicyPassword:
		return true
	}
	return false
}
