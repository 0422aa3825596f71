package handler

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/ramswarooppatel/sharehub/internal/model"
	"github.com/ramswarooppatel/sharehub/internal/realtime"
	"github.com/ramswarooppatel/sharehub/internal/repository"
	"github.com/ramswarooppatel/sharehub/internal/service"
)

// NoteHandler exposes shared notes inside a room. Notes store raw
// markdown; any member may edit any note, which keeps the collaboration
// model simple and matches the last-write-wins storage.
type NoteHandler struct {
	Rooms   *service.RoomService
	Members *repository.MembershipRepo
	Notes   *repository.NoteRepo
	Events  service.EventPublisher
}

// NewNoteHandler constructs a NoteHandler. events may be nil.
func NewNoteHandler(rooms *service.RoomService, members *repository.MembershipRepo, notes *repository.NoteRepo, events service.EventPublisher) *NoteHandler {
	return &NoteHandler{Rooms: rooms, Members: members, Notes: notes, Events: events}
}

type noteReq struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

func noteJSON(n *model.Note) echo.Map {
	return echo.Map{
		"id":         n.ID,
		"room_id":    n.RoomID,
		"device_id":  n.DeviceID,
		"title":      n.Title,
		"body":       n.Body,
		"created_at": n.CreatedAt,
		"updated_at": n.UpdatedAt,
	}
}

// memberRoom loads the room and verifies the caller's membership, the
// shared precondition of every note endpoint.
func (h *NoteHandler) memberRoom(c echo.Context, ctx context.Context) (*model.Room, error) {
	rm, err := h.Rooms.Get(ctx, c.Param("code"))
	if err != nil {
		return nil, err
	}
	if _, err := requireMember(ctx, h.Members, rm.ID, deviceID(c)); err != nil {
		return nil, err
	}
	return rm, nil
}

// Create handles POST /v1/rooms/:code/notes. Members only.
func (h *NoteHandler) Create(c echo.Context) error {
	var req noteReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if strings.TrimSpace(req.Title) == "" && strings.TrimSpace(req.Body) == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "empty note"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	rm, err := h.memberRoom(c, ctx)
	if err != nil {
		return writeErr(c, err)
	}

	n := &model.Note{RoomID: rm.ID, DeviceID: deviceID(c), Title: req.Title, Body: req.Body}
	if err := h.Notes.Insert(ctx, n); err != nil {
		return writeErr(c, err)
	}
	h.publish(ctx, realtime.ChangeCreated, rm.ID, noteJSON(n))
	return c.JSON(http.StatusCreated, noteJSON(n))
}

// List handles GET /v1/rooms/:code/notes. Members only; most recently
// edited first.
func (h *NoteHandler) List(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	rm, err := h.memberRoom(c, ctx)
	if err != nil {
		return writeErr(c, err)
	}
	notes, err := h.Notes.ListByRoom(ctx, rm.ID)
	if err != nil {
		return writeErr(c, err)
	}
	out := make([]echo.Map, 0, len(notes))
	for i := range notes {
		out = append(out, noteJSON(&notes[i]))
	}
	return c.JSON(http.StatusOK, echo.Map{"notes": out})
}

// Update handles PUT /v1/rooms/:code/notes/:id. Members only; the note
// records the last editing device.
func (h *NoteHandler) Update(c echo.Context) error {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid note id"})
	}
	var req noteReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	rm, err := h.memberRoom(c, ctx)
	if err != nil {
		return writeErr(c, err)
	}

	existing, err := h.Notes.GetByID(ctx, id)
	if err != nil {
		return writeErr(c, err)
	}
	if existing.RoomID != rm.ID {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "not found"})
	}

	n, err := h.Notes.Update(ctx, id, deviceID(c), req.Title, req.Body)
	if err != nil {
		return writeErr(c, err)
	}
	h.publish(ctx, realtime.ChangeUpdated, rm.ID, noteJSON(n))
	return c.JSON(http.StatusOK, noteJSON(n))
}

// Delete handles DELETE /v1/rooms/:code/notes/:id. The author may
// delete their own note; the host passphrase overrides for any note.
func (h *NoteHandler) Delete(c echo.Context) error {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid note id"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	rm, err := h.memberRoom(c, ctx)
	if err != nil {
		return writeErr(c, err)
	}

	existing, err := h.Notes.GetByID(ctx, id)
	if err != nil {
		return writeErr(c, err)
	}
	if existing.RoomID != rm.ID {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "not found"})
	}
	if existing.DeviceID != deviceID(c) {
		if err := h.Rooms.VerifyHost(rm, c.Request().Header.Get(HostPassphraseHeader)); err != nil {
			return writeErr(c, err)
		}
	}

	if err := h.Notes.Delete(ctx, id); err != nil {
		return writeErr(c, err)
	}
	h.publish(ctx, realtime.ChangeDeleted, rm.ID, echo.Map{"id": id})
	return c.NoContent(http.StatusNoContent)
}

func (h *NoteHandler) publish(ctx context.Context, change realtime.ChangeType, roomID uint64, payload interface{}) {
	if h.Events == nil {
		return
	}
	h.Events.Publish(ctx, realtime.Event{Kind: realtime.KindNote, Type: change, RoomID: roomID, Payload: payload})
}
