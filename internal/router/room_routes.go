package router

import (
	"github.com/labstack/echo/v4"

	"github.com/ramswarooppatel/sharehub/internal/handler"
	"github.com/ramswarooppatel/sharehub/internal/middleware"
)

// RoomHandlers collects the handlers that make up the room surface so
// registration stays a single call from main.
type RoomHandlers struct {
	Rooms    *handler.RoomHandler
	Sessions *handler.SessionHandler
	Join     *handler.JoinHandler
	Files    *handler.FileHandler
	Notes    *handler.NoteHandler
	Feed     *handler.FeedHandler
}

// RegisterRooms registers every room-scoped route under /v1/rooms. The
// device middleware runs on all of them: device identity is how the
// access evaluator, the membership ledger and the join-request state
// machine recognize a caller. OptionalJWT attaches an account when one
// is logged in without requiring it.
func RegisterRooms(e *echo.Echo, h RoomHandlers, jwtSecret string) {
	g := e.Group("/v1/rooms")
	g.Use(middleware.DeviceID())
	g.Use(middleware.OptionalJWT(jwtSecret))

	// Room lifecycle.
	g.POST("", h.Rooms.Create)
	g.GET("/:code", h.Rooms.Get)
	g.PATCH("/:code", h.Rooms.Update)
	g.DELETE("/:code", h.Rooms.Delete)

	// Access evaluation and membership.
	g.GET("/:code/session", h.Sessions.Get)
	g.GET("/:code/members", h.Sessions.ListMembers)
	g.DELETE("/:code/members/:id", h.Sessions.Evict)

	// Join-request lifecycle.
	g.POST("/:code/join", h.Join.Submit)
	g.GET("/:code/requests", h.Join.ListPending)
	g.POST("/:code/requests/:id", h.Join.Decide)

	// Shared content.
	g.POST("/:code/files", h.Files.Upload)
	g.GET("/:code/files", h.Files.List)
	g.DELETE("/:code/files/:id", h.Files.Delete)
	g.POST("/:code/notes", h.Notes.Create)
	g.GET("/:code/notes", h.Notes.List)
	g.PUT("/:code/notes/:id", h.Notes.Update)
	g.DELETE("/:code/notes/:id", h.Notes.Delete)

	// Realtime feed.
	g.GET("/:code/ws", h.Feed.Subscribe)
}
