// Package realtime distributes entity mutations to every session
// watching a room, so open clients reconverge without polling. Events
// are typed deltas (one entity kind, one change type, one payload row)
// published by the write paths and fanned out to per-room subscribers.
// Delivery is at-least-once; ordering holds per kind per row because
// each write path publishes exactly one event per committed mutation.
package realtime

import "encoding/json"

// Kind names the entity a delta belongs to.
type Kind string

// Entity kinds carried on the feed.
const (
	KindRoom        Kind = "room"
	KindJoinRequest Kind = "join_request"
	KindMembership  Kind = "membership"
	KindFile        Kind = "file"
	KindNote        Kind = "note"
)

// ChangeType names what happened to the row.
type ChangeType string

// Change types carried on the feed.
const (
	ChangeCreated ChangeType = "created"
	ChangeUpdated ChangeType = "updated"
	ChangeDeleted ChangeType = "deleted"
)

// Event is one typed delta on a room's feed. Payload carries the
// affected row (or its id for deletions) and is serialized as-is to
// subscribers. Origin identifies the publishing hub instance so the
// redis bridge can skip echoes of its own messages.
type Event struct {
	Kind    Kind        `json:"kind"`
	Type    ChangeType  `json:"type"`
	RoomID  uint64      `json:"room_id"`
	Payload interface{} `json:"payload,omitempty"`
	Origin  string      `json:"origin,omitempty"`
}

// Encode serializes the event for the redis bridge and for websocket
// delivery.
func (e Event) Encode() ([]byte, error) { return json.Marshal(e) }
