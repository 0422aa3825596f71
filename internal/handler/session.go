package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/ramswarooppatel/sharehub/internal/realtime"
	"github.com/ramswarooppatel/sharehub/internal/repository"
	"github.com/ramswarooppatel/sharehub/internal/service"
)

// SessionHandler answers the single question every client asks before
// rendering a room: may this device enter, and if not, what does it
// need to do. It is the HTTP face of the access evaluator. It also
// carries the membership endpoints, which read the same ledger the
// evaluator writes.
type SessionHandler struct {
	Rooms   *service.RoomService
	Access  *service.AccessService
	Members *repository.MembershipRepo
	Events  service.EventPublisher
}

// NewSessionHandler constructs a SessionHandler. events may be nil.
func NewSessionHandler(rooms *service.RoomService, access *service.AccessService, members *repository.MembershipRepo, events service.EventPublisher) *SessionHandler {
	return &SessionHandler{Rooms: rooms, Access: access, Members: members, Events: events}
}

// Get handles GET /v1/rooms/:code/session. The room password may be
// supplied as the `password` query parameter so shared deep links work;
// the host passphrase comes in the X-Host-Passphrase header. The
// response always carries the outcome, and on GRANTED additionally the
// role, the room detail and the member count. Reading the gate never
// writes anything; a device told APPROVAL_REQUIRED without a pending
// id submits through POST /:code/join.
func (h *SessionHandler) Get(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	rm, err := h.Rooms.Get(ctx, c.Param("code"))
	if err != nil {
		return writeErr(c, err)
	}

	decision, err := h.Access.Evaluate(ctx, rm, deviceID(c),
		c.QueryParam("password"), c.Request().Header.Get(HostPassphraseHeader), userID(c))
	if err != nil {
		return writeErr(c, err)
	}

	resp := echo.Map{"outcome": decision.Outcome}
	if decision.Reason != "" {
		resp["reason"] = decision.Reason
	}
	switch decision.Outcome {
	case service.OutcomeGranted:
		resp["role"] = decision.Role
		resp["room"] = roomJSON(rm)
		if n, err := h.Members.Count(ctx, rm.ID); err == nil {
			resp["member_count"] = n
		}
		return c.JSON(http.StatusOK, resp)
	case service.OutcomeApprovalRequired:
		if decision.PendingRequestID != 0 {
			resp["pending_request_id"] = decision.PendingRequestID
		}
		return c.JSON(http.StatusOK, resp)
	case service.OutcomePasswordRequired:
		return c.JSON(http.StatusOK, resp)
	case service.OutcomeExpired:
		return c.JSON(http.StatusGone, resp)
	}
	return c.JSON(http.StatusForbidden, resp)
}

// ListMembers handles GET /v1/rooms/:code/members. Members only.
func (h *SessionHandler) ListMembers(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	rm, err := h.Rooms.Get(ctx, c.Param("code"))
	if err != nil {
		return writeErr(c, err)
	}
	if _, err := requireMember(ctx, h.Members, rm.ID, deviceID(c)); err != nil {
		return writeErr(c, err)
	}

	members, err := h.Members.ListByRoom(ctx, rm.ID)
	if err != nil {
		return writeErr(c, err)
	}
	out := make([]echo.Map, 0, len(members))
	for i := range members {
		m := &members[i]
		out = append(out, echo.Map{
			"id":        m.ID,
			"device_id": m.DeviceID,
			"role":      m.Role,
			"joined_at": m.JoinedAt,
		})
	}
	return c.JSON(http.StatusOK, echo.Map{"members": out})
}

// Evict handles DELETE /v1/rooms/:code/members/:id. Host only; this is
// the one path besides room deletion that removes a ledger row. The
// evicted device goes back through the room's gate on its next visit.
func (h *SessionHandler) Evict(c echo.Context) error {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid member id"})
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

	if err := h.Members.Delete(ctx, rm.ID, id); err != nil {
		return writeErr(c, err)
	}
	if h.Events != nil {
		h.Events.Publish(ctx, realtime.Event{
			Kind:    realtime.KindMembership,
			Type:    realtime.ChangeDeleted,
			RoomID:  rm.ID,
			Payload: echo.Map{"id": id},
		})
	}
	return c.NoContent(http.StatusNoContent)
}
