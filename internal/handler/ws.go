package handler

import (
	"context"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/ramswarooppatel/sharehub/internal/realtime"
	"github.com/ramswarooppatel/sharehub/internal/repository"
	"github.com/ramswarooppatel/sharehub/internal/service"
)

// upgrader accepts cross-origin websocket upgrades; room access is
// enforced by the ledger/request check below, not by origin.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// FeedHandler upgrades clients onto a room's realtime feed.
type FeedHandler struct {
	Rooms    *service.RoomService
	Members  *repository.MembershipRepo
	Requests service.RequestFinder
	Hub      *realtime.Hub
}

// NewFeedHandler constructs a FeedHandler.
func NewFeedHandler(rooms *service.RoomService, members *repository.MembershipRepo, requests service.RequestFinder, hub *realtime.Hub) *FeedHandler {
	return &FeedHandler{Rooms: rooms, Members: members, Requests: requests, Hub: hub}
}

// Subscribe handles GET /v1/rooms/:code/ws. Two audiences attach here:
// members watching room/file/note/membership deltas, and waiting
// devices with a join request watching for their verdict. Everyone
// else gets 403. The device cookie rides along on the upgrade request,
// so the same identity used on the REST surface gates the feed. After
// the upgrade the connection only ever receives events; delivery is
// at-least-once and a dropped connection means reconnect and refetch.
func (h *FeedHandler) Subscribe(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	rm, err := h.Rooms.Get(ctx, c.Param("code"))
	if err != nil {
		return writeErr(c, err)
	}

	device := deviceID(c)
	member, err := h.Members.Get(ctx, rm.ID, device)
	if err != nil {
		return writeErr(c, err)
	}
	if member == nil {
		jr, err := h.Requests.FindLatestByDevice(ctx, rm.ID, device)
		if err != nil {
			return writeErr(c, err)
		}
		if jr == nil {
			return writeErr(c, repository.ErrForbidden)
		}
	}

	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		// Upgrade already wrote the failure response.
		logrus.WithError(err).Debug("websocket upgrade failed")
		return nil
	}

	sub := h.Hub.Subscribe(rm.ID)
	realtime.NewClient(conn, sub).Run()
	return nil
}
