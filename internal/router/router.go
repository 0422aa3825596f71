// Package router wires handlers onto the Echo instance. Route
// registration is split by feature area: infrastructure routes here,
// account routes in auth_routes.go and the room surface in
// room_routes.go.
package router

import (
	"github.com/labstack/echo/v4"

	"github.com/ramswarooppatel/sharehub/internal/handler"
)

// RegisterRoutes registers infrastructure routes that carry no
// middleware: the health probe and blob downloads. Download URLs are
// capability links, so no device or auth context is needed to follow
// them.
func RegisterRoutes(e *echo.Echo, files *handler.FileHandler) {
	e.GET("/healthz", handler.Health)
	e.GET("/v1/files/:key", files.Serve)
}
