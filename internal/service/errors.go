// Package service implements the application rules of the room system:
// room lifecycle, access evaluation, and the join-request state machine.
// Services work against small store interfaces so that the rules can be
// tested without a database; the repository types satisfy them.
package service

import "errors"

// ErrValidation is returned when input fails a business rule, such as a
// missing room name or a password supplied for an open room. Handlers
// should translate this into an HTTP 400 response.
var ErrValidation = errors.New("validation failed")

// ErrExpired is returned when an operation targets a room that is past
// its expiry. Expiry is evaluated lazily at access time; the row may
// still exist until the reaper collects it. Handlers should translate
// this into an HTTP 410 response.
var ErrExpired = errors.New("room expired")
