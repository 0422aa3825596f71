package model

import "time"

// Membership roles.
const (
	RoleHost   = "HOST"
	RoleMember = "MEMBER"
)

// Membership records that a device has been granted access to a room.
// It is stored in the `memberships` table with a UNIQUE(room_id,
// device_id) constraint, making inserts idempotent across racing tabs.
// The presence of a row is the sole authority for "this device has
// access"; rows are only ever removed by room deletion or an explicit
// admin action, never implicitly.
//
// Fields:
//  ID       – primary key identifier.
//  RoomID   – room the device may access.
//  DeviceID – opaque client-generated device identity.
//  UserID   – registered account, when the caller was logged in (nullable).
//  Role     – HOST or MEMBER.
//  JoinedAt – when access was granted.
type Membership struct {
	ID       uint64    // memberships.id
	RoomID   uint64    // memberships.room_id
	DeviceID string    // memberships.device_id
	UserID   *uint64   // memberships.user_id (nullable)
	Role     string    // memberships.role
	JoinedAt time.Time // memberships.joined_at
}
