package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/ramswarooppatel/sharehub/internal/service"
)

// RoomHandler bundles dependencies for room lifecycle endpoints.
type RoomHandler struct {
	Rooms *service.RoomService
}

// NewRoomHandler constructs a RoomHandler.
func NewRoomHandler(rooms *service.RoomService) *RoomHandler {
	return &RoomHandler{Rooms: rooms}
}

// ----- DTOs -----

type createRoomReq struct {
	Name           string     `json:"name"`
	Policy         string     `json:"policy"` // OPEN | APPROVAL | PASSWORD
	Password       string     `json:"password,omitempty"`
	IsPermanent    bool       `json:"is_permanent"`
	ExpiresAt      *time.Time `json:"expires_at,omitempty"`
	TTLMinutes     int        `json:"ttl_minutes,omitempty"` // convenience alternative to expires_at
	AutoAccept     bool       `json:"auto_accept"`
	HostName       string     `json:"host_name,omitempty"`
	HostPassphrase string     `json:"host_passphrase,omitempty"`
}

type updateRoomReq struct {
	Name           *string    `json:"name"`
	Policy         *string    `json:"policy"`
	Password       *string    `json:"password"`
	ClearPassword  bool       `json:"clear_password"`
	IsPermanent    *bool      `json:"is_permanent"`
	ExpiresAt      *time.Time `json:"expires_at"`
	ClearExpiresAt bool       `json:"clear_expires_at"`
	AutoAccept     *bool      `json:"auto_accept"`
}

// Create handles POST /v1/rooms. Anyone may create a room; the creating
// device is recorded as HOST in the ledger. The room code is generated
// server-side and returned in the response.
func (h *RoomHandler) Create(c echo.Context) error {
	var req createRoomReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if req.ExpiresAt == nil && req.TTLMinutes > 0 {
		t := time.Now().UTC().Add(time.Duration(req.TTLMinutes) * time.Minute)
		req.ExpiresAt = &t
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	rm, err := h.Rooms.Create(ctx, service.CreateRoomInput{
		Name:           req.Name,
		Policy:         req.Policy,
		Password:       req.Password,
		IsPermanent:    req.IsPermanent,
		ExpiresAt:      req.ExpiresAt,
		AutoAccept:     req.AutoAccept,
		HostName:       req.HostName,
		HostPassphrase: req.HostPassphrase,
	}, deviceID(c))
	if err != nil {
		return writeErr(c, err)
	}
	return c.JSON(http.StatusCreated, roomJSON(rm))
}

// Get handles GET /v1/rooms/:code. The summary is public: it tells a
// visitor what kind of gate the room has before they attempt entry, but
// nothing gated lives in it.
func (h *RoomHandler) Get(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	rm, err := h.Rooms.Get(ctx, c.Param("code"))
	if err != nil {
		return writeErr(c, err)
	}
	return c.JSON(http.StatusOK, roomJSON(rm))
}

// Update handles PATCH /v1/rooms/:code. Host only: the passphrase in
// the X-Host-Passphrase header is verified against the room before any
// setting changes.
func (h *RoomHandler) Update(c echo.Context) error {
	var req updateRoomReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	rm, err := h.Rooms.Get(ctx, c.Param("code"))
	if err != nil {
		return writeErr(c, err)
	}
	if err := h.Rooms.VerifyHost(rm, c.Request().Header.Get(HostPassphraseHeader)); err != nil {
		return writeErr(c, err)
	}

	updated, err := h.Rooms.Update(ctx, rm, service.UpdateRoomInput{
		Name:           req.Name,
		Policy:         req.Policy,
		Password:       req.Password,
		ClearPassword:  req.ClearPassword,
		IsPermanent:    req.IsPermanent,
		ExpiresAt:      req.ExpiresAt,
		ClearExpiresAt: req.ClearExpiresAt,
		AutoAccept:     req.AutoAccept,
	})
	if err != nil {
		return writeErr(c, err)
	}
	return c.JSON(http.StatusOK, roomJSON(updated))
}

// Delete handles DELETE /v1/rooms/:code. Host only. Deletion cascades
// to requests, memberships, files and notes, removes the stored blobs
// and announces the teardown on the realtime feed.
func (h *RoomHandler) Delete(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	rm, err := h.Rooms.Get(ctx, c.Param("code"))
	if err != nil {
		return writeErr(c, err)
	}
	if err := h.Rooms.VerifyHost(rm, c.Request().Header.Get(HostPassphraseHeader)); err != nil {
		return writeErr(c, err)
	}
	if err := h.Rooms.Delete(ctx, rm); err != nil {
		return writeErr(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}
