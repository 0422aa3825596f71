// Package queue defines message payloads exchanged over the message broker.
package queue

// Room activity actions published to the broker. They form the durable
// audit trail of room lifecycle and join-request decisions; realtime
// fan-out to connected clients happens separately on the event hub.
const (
	ActionRoomCreated   = "room.created"
	ActionRoomDeleted   = "room.deleted"
	ActionJoinSubmitted = "join.submitted"
	ActionJoinApproved  = "join.approved"
	ActionJoinRejected  = "join.rejected"
)

// RoomActivityEvent is published whenever something audit-worthy
// happens to a room. It contains enough information for downstream
// consumers to log, notify, or trigger analytics without querying the
// primary database.
type RoomActivityEvent struct {
	Action     string `json:"action"`
	RoomID     uint64 `json:"room_id"`
	RoomCode   string `json:"room_code"`
	RoomName   string `json:"room_name"`
	Policy     string `json:"policy"`
	DeviceID   string `json:"device_id,omitempty"`
	Requester  string `json:"requester,omitempty"`
	RequestID  uint64 `json:"request_id,omitempty"`
	OccurredAt string `json:"occurred_at"`
}
