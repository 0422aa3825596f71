// Package handler exposes the HTTP surface of the room service. Every
// handler resolves the caller's device identity from the request
// context (set by the device middleware), translates service and
// repository errors to HTTP statuses in one place, and shapes JSON
// responses with echo.Map.
package handler

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/ramswarooppatel/sharehub/internal/model"
	"github.com/ramswarooppatel/sharehub/internal/repository"
	"github.com/ramswarooppatel/sharehub/internal/service"
)

// dbTimeout bounds every database round-trip made from a handler.
const dbTimeout = 5 * time.Second

// HostPassphraseHeader carries the host passphrase on host-only
// requests. The passphrase is verified per action against the room's
// stored hash; there is no host session.
const HostPassphraseHeader = "X-Host-Passphrase"

// deviceID returns the caller's device identity set by the device
// middleware. It is always present on routes behind that middleware.
func deviceID(c echo.Context) string {
	id, _ := c.Get("device_id").(string)
	return id
}

// userID returns the authenticated account id when an access token was
// presented, nil otherwise. JWT numeric claims arrive as float64.
func userID(c echo.Context) *uint64 {
	switch v := c.Get("user_id").(type) {
	case float64:
		u := uint64(v)
		return &u
	case uint64:
		return &v
	case int64:
		u := uint64(v)
		return &u
	}
	return nil
}

// writeErr maps service and repository errors onto HTTP responses. All
// handlers funnel unexpected errors through here so the status mapping
// lives in one place.
func writeErr(c echo.Context, err error) error {
	switch {
	case errors.Is(err, service.ErrValidation):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid input"})
	case errors.Is(err, service.ErrExpired):
		return c.JSON(http.StatusGone, echo.Map{"error": "room expired"})
	case errors.Is(err, repository.ErrRoomNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "room not found"})
	case errors.Is(err, repository.ErrRequestNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "join request not found"})
	case errors.Is(err, sql.ErrNoRows):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "not found"})
	case errors.Is(err, repository.ErrForbidden):
		return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
	case errors.Is(err, repository.ErrNotPending):
		return c.JSON(http.StatusConflict, echo.Map{"error": "join request already resolved"})
	case errors.Is(err, repository.ErrConflict):
		return c.JSON(http.StatusConflict, echo.Map{"error": "conflict"})
	}
	return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
}

// roomJSON shapes a room for responses. The password and the host
// passphrase hash never leave the server; the response only says
// whether they are set.
func roomJSON(rm *model.Room) echo.Map {
	return echo.Map{
		"id":           rm.ID,
		"room_code":    rm.RoomCode,
		"name":         rm.Name,
		"policy":       rm.Policy,
		"has_password": rm.Password != nil,
		"is_permanent": rm.IsPermanent,
		"expires_at":   rm.ExpiresAt,
		"auto_accept":  rm.AutoAccept,
		"host_name":    rm.HostName,
		"has_host":     rm.HasHost(),
		"created_at":   rm.CreatedAt,
		"updated_at":   rm.UpdatedAt,
	}
}

// requireMember loads the caller's membership row for a room and
// returns ErrForbidden when the device holds no grant. Content
// endpoints gate on the ledger, never on re-running policy checks.
func requireMember(ctx context.Context, members *repository.MembershipRepo, roomID uint64, device string) (*model.Membership, error) {
	m, err := members.Get(ctx, roomID, device)
	if err != nil {
		return nil, err
	}
	if m == nil {
		return nil, repository.ErrForbidden
	}
	return m, nil
}

// joinRequestJSON shapes a join request for responses.
func joinRequestJSON(jr *model.JoinRequest) echo.Map {
	return echo.Map{
		"id":           jr.ID,
		"room_id":      jr.RoomID,
		"device_id":    jr.DeviceID,
		"display_name": jr.DisplayName,
		"message":      jr.Message,
		"status":       jr.Status,
		"created_at":   jr.CreatedAt,
		"responded_at": jr.RespondedAt,
	}
}
