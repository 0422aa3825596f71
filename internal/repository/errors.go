// Package repository defines error types that are reused across multiple
// repositories. These sentinel values allow higher layers such as
// handlers to distinguish between different failure scenarios. For
// example, ErrNotPending indicates that a join request was already
// resolved by another actor, while ErrConflict signals a uniqueness
// violation such as a duplicate room code.
package repository

import "errors"

// ErrRoomNotFound is returned when a room code or id does not resolve
// to an existing row. Handlers should translate this into an HTTP 404
// response.
var ErrRoomNotFound = errors.New("room not found")

// ErrRequestNotFound is returned when a join request id does not
// resolve to an existing row.
var ErrRequestNotFound = errors.New("join request not found")

// ErrConflict is returned when an insert or update cannot be performed
// because of conflicting state, such as creating a room with a code
// that is already taken. Handlers should translate this into an HTTP
// 409 response.
var ErrConflict = errors.New("conflict")

// ErrNotPending is returned when a status transition is attempted on a
// join request that is no longer pending. The compare-and-swap update
// guarantees that the first decision wins; the losing caller receives
// this error instead of silently overwriting the outcome.
var ErrNotPending = errors.New("join request is not pending")

// ErrForbidden is returned when the caller attempts an operation on a
// resource they do not control, such as deleting another device's file.
// Handlers should translate this into an HTTP 403 response.
var ErrForbidden = errors.New("forbidden")

// ErrEmailExists is returned by the user repository when registering an
// email address that is already taken.
var ErrEmailExists = errors.New("email already exists")
