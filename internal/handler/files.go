package handler

import (
	"context"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/ramswarooppatel/sharehub/internal/blob"
	"github.com/ramswarooppatel/sharehub/internal/model"
	"github.com/ramswarooppatel/sharehub/internal/realtime"
	"github.com/ramswarooppatel/sharehub/internal/repository"
	"github.com/ramswarooppatel/sharehub/internal/service"
)

// FileHandler exposes file sharing inside a room: members upload,
// list and delete files; the bytes live in the blob store and are
// served under capability URLs keyed by unguessable object keys.
type FileHandler struct {
	Rooms   *service.RoomService
	Members *repository.MembershipRepo
	Files   *repository.FileRepo
	Blobs   blob.Store
	Events  service.EventPublisher
}

// NewFileHandler constructs a FileHandler. events may be nil.
func NewFileHandler(rooms *service.RoomService, members *repository.MembershipRepo, files *repository.FileRepo, blobs blob.Store, events service.EventPublisher) *FileHandler {
	return &FileHandler{Rooms: rooms, Members: members, Files: files, Blobs: blobs, Events: events}
}

func fileJSON(f *model.RoomFile) echo.Map {
	return echo.Map{
		"id":         f.ID,
		"room_id":    f.RoomID,
		"device_id":  f.DeviceID,
		"name":       f.Name,
		"size_bytes": f.SizeBytes,
		"url":        f.URL,
		"created_at": f.CreatedAt,
	}
}

// Upload handles POST /v1/rooms/:code/files (multipart, field "file").
// Members only. The stored object key is a fresh uuid, so download
// URLs cannot be guessed from file names.
func (h *FileHandler) Upload(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	rm, err := h.Rooms.Get(ctx, c.Param("code"))
	if err != nil {
		return writeErr(c, err)
	}
	device := deviceID(c)
	if _, err := requireMember(ctx, h.Members, rm.ID, device); err != nil {
		return writeErr(c, err)
	}

	fh, err := c.FormFile("file")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "file field required"})
	}
	src, err := fh.Open()
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "unreadable upload"})
	}
	defer src.Close()

	ext := strings.ToLower(filepath.Ext(fh.Filename))
	if len(ext) > 10 {
		ext = ""
	}
	key := uuid.NewString() + ext

	url, size, err := h.Blobs.Upload(c.Request().Context(), key, src)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "store upload failed"})
	}

	f := &model.RoomFile{
		RoomID:    rm.ID,
		DeviceID:  device,
		Name:      filepath.Base(fh.Filename),
		SizeBytes: size,
		ObjectKey: key,
		URL:       url,
	}
	if err := h.Files.Insert(ctx, f); err != nil {
		// Keep the store and the table consistent when the row fails.
		_ = h.Blobs.Delete(c.Request().Context(), key)
		return writeErr(c, err)
	}

	if h.Events != nil {
		h.Events.Publish(ctx, realtime.Event{
			Kind: realtime.KindFile, Type: realtime.ChangeCreated, RoomID: rm.ID,
			Payload: fileJSON(f),
		})
	}
	return c.JSON(http.StatusCreated, fileJSON(f))
}

// List handles GET /v1/rooms/:code/files. Members only; newest first.
func (h *FileHandler) List(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	rm, err := h.Rooms.Get(ctx, c.Param("code"))
	if err != nil {
		return writeErr(c, err)
	}
	if _, err := requireMember(ctx, h.Members, rm.ID, deviceID(c)); err != nil {
		return writeErr(c, err)
	}

	files, err := h.Files.ListByRoom(ctx, rm.ID)
	if err != nil {
		return writeErr(c, err)
	}
	out := make([]echo.Map, 0, len(files))
	for i := range files {
		out = append(out, fileJSON(&files[i]))
	}
	return c.JSON(http.StatusOK, echo.Map{"files": out})
}

// Delete handles DELETE /v1/rooms/:code/files/:id. The uploader may
// delete their own file; the host passphrase overrides for any file.
func (h *FileHandler) Delete(c echo.Context) error {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid file id"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	rm, err := h.Rooms.Get(ctx, c.Param("code"))
	if err != nil {
		return writeErr(c, err)
	}
	device := deviceID(c)
	if _, err := requireMember(ctx, h.Members, rm.ID, device); err != nil {
		return writeErr(c, err)
	}

	f, err := h.Files.GetByID(ctx, id)
	if err != nil {
		return writeErr(c, err)
	}
	if f.RoomID != rm.ID {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "not found"})
	}
	if f.DeviceID != device {
		if err := h.Rooms.VerifyHost(rm, c.Request().Header.Get(HostPassphraseHeader)); err != nil {
			return writeErr(c, err)
		}
	}

	if err := h.Files.Delete(ctx, f.ID); err != nil {
		return writeErr(c, err)
	}
	_ = h.Blobs.Delete(c.Request().Context(), f.ObjectKey)

	if h.Events != nil {
		h.Events.Publish(ctx, realtime.Event{
			Kind: realtime.KindFile, Type: realtime.ChangeDeleted, RoomID: rm.ID,
			Payload: echo.Map{"id": f.ID},
		})
	}
	return c.NoContent(http.StatusNoContent)
}

// Serve handles GET /v1/files/:key. Download URLs are capabilities:
// whoever holds the uuid key may fetch the bytes, which is what makes
// shared links work outside a member's browser session.
func (h *FileHandler) Serve(c echo.Context) error {
	path, err := h.Blobs.Path(c.Param("key"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid key"})
	}
	return c.File(path)
}
