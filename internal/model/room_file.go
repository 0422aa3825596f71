package model

import "time"

// RoomFile describes an uploaded file shared inside a room, stored in the
// `room_files` table. The bytes themselves live in the blob store under
// ObjectKey; this row only carries metadata and the download URL handed
// back by the store.
//
// Fields:
//  ID        – primary key identifier.
//  RoomID    – room the file belongs to.
//  DeviceID  – device that uploaded the file.
//  Name      – original file name as uploaded.
//  SizeBytes – size of the stored object.
//  ObjectKey – opaque key of the object in the blob store.
//  URL       – download URL returned by the blob store.
//  CreatedAt – upload timestamp.
type RoomFile struct {
	ID        uint64    // room_files.id
	RoomID    uint64    // room_files.room_id
	DeviceID  string    // room_files.device_id
	Name      string    // room_files.name
	SizeBytes int64     // room_files.size_bytes
	ObjectKey string    // room_files.object_key
	URL       string    // room_files.url
	CreatedAt time.Time // room_files.created_at
}
