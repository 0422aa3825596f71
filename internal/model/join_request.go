package model

import "time"

// Join request statuses. A request is created pending and resolved exactly
// once: pending -> approved or pending -> rejected. Both outcomes are
// terminal.
const (
	RequestPending  = "PENDING"
	RequestApproved = "APPROVED"
	RequestRejected = "REJECTED"
)

// JoinRequest represents a device's pending ask to enter an
// approval-gated room, stored in the `join_requests` table. At most one
// pending request exists per (room, device); a repeated submission from
// the same device is answered with the existing row.
//
// Fields:
//  ID          – primary key identifier.
//  RoomID      – room the device wants to enter.
//  DeviceID    – opaque client-generated device identity.
//  DisplayName – optional requester-supplied name shown to the host.
//  Message     – optional note to the host.
//  Status      – PENDING, APPROVED or REJECTED.
//  CreatedAt   – when the request was submitted.
//  RespondedAt – when the host resolved it (null while pending).
type JoinRequest struct {
	ID          uint64     // join_requests.id
	RoomID      uint64     // join_requests.room_id
	DeviceID    string     // join_requests.device_id
	DisplayName string     // join_requests.display_name
	Message     string     // join_requests.message
	Status      string     // join_requests.status
	CreatedAt   time.Time  // join_requests.created_at
	RespondedAt *time.Time // join_requests.responded_at (nullable)
}
