package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/ramswarooppatel/sharehub/internal/service"
)

// JoinHandler exposes the join-request lifecycle of approval rooms:
// visitors submit requests, hosts list and decide them.
type JoinHandler struct {
	Rooms *service.RoomService
	Join  *service.JoinService
}

// NewJoinHandler constructs a JoinHandler.
func NewJoinHandler(rooms *service.RoomService, join *service.JoinService) *JoinHandler {
	return &JoinHandler{Rooms: rooms, Join: join}
}

// ----- DTOs -----

type submitJoinReq struct {
	DisplayName string `json:"display_name"`
	Message     string `json:"message,omitempty"`
}

type decideJoinReq struct {
	Approve bool `json:"approve"`
}

// Submit handles POST /v1/rooms/:code/join. Submitting twice from the
// same device returns the existing pending request rather than creating
// a duplicate, so clients can retry freely.
func (h *JoinHandler) Submit(c echo.Context) error {
	var req submitJoinReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	rm, err := h.Rooms.Get(ctx, c.Param("code"))
	if err != nil {
		return writeErr(c, err)
	}

	jr, err := h.Join.Submit(ctx, rm, deviceID(c), req.DisplayName, req.Message)
	if err != nil {
		return writeErr(c, err)
	}
	return c.JSON(http.StatusCreated, joinRequestJSON(jr))
}

// ListPending handles GET /v1/rooms/:code/requests. Host only; requests
// come back oldest first, the order a host reviews them in.
func (h *JoinHandler) ListPending(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	rm, err := h.Rooms.Get(ctx, c.Param("code"))
	if err != nil {
		return writeErr(c, err)
	}
	if err := h.Rooms.VerifyHost(rm, c.Request().Header.Get(HostPassphraseHeader)); err != nil {
		return writeErr(c, err)
	}

	pending, err := h.Join.ListPending(ctx, rm.ID)
	if err != nil {
		return writeErr(c, err)
	}
	out := make([]echo.Map, 0, len(pending))
	for i := range pending {
		out = append(out, joinRequestJSON(&pending[i]))
	}
	return c.JSON(http.StatusOK, echo.Map{"requests": out})
}

// Decide handles POST /v1/rooms/:code/requests/:id. Host only. The
// first decision wins: a request that was already resolved answers 409
// regardless of which verdict got there first.
func (h *JoinHandler) Decide(c echo.Context) error {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request id"})
	}
	var req decideJoinReq
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

	jr, err := h.Join.Decide(ctx, rm, id, req.Approve)
	if err != nil {
		return writeErr(c, err)
	}
	return c.JSON(http.StatusOK, joinRequestJSON(jr))
}
