package model

import "time"

// Note is a shared markdown note inside a room, stored in the
// `room_notes` table. The service stores raw markdown only; rendering
// happens on the client.
//
// Fields:
//  ID        – primary key identifier.
//  RoomID    – room the note belongs to.
//  DeviceID  – device that last edited the note.
//  Title     – short title shown in the note list.
//  Body      – raw markdown content.
//  CreatedAt – creation timestamp.
//  UpdatedAt – last edit timestamp.
type Note struct {
	ID        uint64    // room_notes.id
	RoomID    uint64    // room_notes.room_id
	DeviceID  string    // room_notes.device_id
	Title     string    // room_notes.title
	Body      string    // room_notes.body
	CreatedAt time.Time // room_notes.created_at
	UpdatedAt time.Time // room_notes.updated_at
}
