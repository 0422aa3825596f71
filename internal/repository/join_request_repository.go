package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/ramswarooppatel/sharehub/internal/model"
)

// JoinRequestRepo provides data access to the `join_requests` table.
// Status transitions go through UpdateStatus, which is a
// compare-and-swap on the status column: a request leaves PENDING
// exactly once, and the first writer wins. All timestamps are stored
// in UTC.
type JoinRequestRepo struct {
	db *sql.DB
}

// NewJoinRequestRepo returns a new JoinRequestRepo bound to the given database.
func NewJoinRequestRepo(db *sql.DB) *JoinRequestRepo { return &JoinRequestRepo{db: db} }

const joinRequestColumns = `id, room_id, device_id, display_name, message, status, created_at, responded_at`

func scanJoinRequest(row interface{ Scan(...interface{}) error }) (*model.JoinRequest, error) {
	var (
		jr        model.JoinRequest
		responded sql.NullTime
	)
	err := row.Scan(&jr.ID, &jr.RoomID, &jr.DeviceID, &jr.DisplayName, &jr.Message,
		&jr.Status, &jr.CreatedAt, &responded)
	if err != nil {
		return nil, err
	}
	if responded.Valid {
		t := responded.Time.UTC()
		jr.RespondedAt = &t
	}
	return &jr, nil
}

// Insert creates a new pending join request and populates the
// generated ID and timestamps on the passed model. The insert is
// conditional on no pending request existing for (room, device), so
// two tabs racing past the service-level pending check still end up
// with a single row; when the insert is skipped the existing pending
// request is loaded into jr instead.
func (r *JoinRequestRepo) Insert(ctx context.Context, jr *model.JoinRequest) error {
	const q = `INSERT INTO join_requests (room_id, device_id, display_name, message, status)
		SELECT ?, ?, ?, ?, ? FROM DUAL
		WHERE NOT EXISTS (
			SELECT 1 FROM join_requests WHERE room_id = ? AND device_id = ? AND status = ?
		)`
	res, err := r.db.ExecContext(ctx, q,
		jr.RoomID, jr.DeviceID, jr.DisplayName, jr.Message, model.RequestPending,
		jr.RoomID, jr.DeviceID, model.RequestPending)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		existing, err := r.FindPendingByDevice(ctx, jr.RoomID, jr.DeviceID)
		if err != nil {
			return err
		}
		if existing == nil {
			return ErrConflict
		}
		*jr = *existing
		return nil
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	jr.ID = uint64(id)
	row := r.db.QueryRowContext(ctx, `SELECT `+joinRequestColumns+` FROM join_requests WHERE id = ?`, jr.ID)
	loaded, err := scanJoinRequest(row)
	if err != nil {
		return err
	}
	*jr = *loaded
	return nil
}

// GetByID loads a join request by primary key. It returns
// ErrRequestNotFound when no row exists.
func (r *JoinRequestRepo) GetByID(ctx context.Context, id uint64) (*model.JoinRequest, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+joinRequestColumns+` FROM join_requests WHERE id = ?`, id)
	jr, err := scanJoinRequest(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRequestNotFound
	}
	return jr, err
}

// FindLatestByDevice returns the most recent join request a device has
// made for a room, or nil when the device never asked. The access
// evaluator uses this to route returning devices to the right gate.
func (r *JoinRequestRepo) FindLatestByDevice(ctx context.Context, roomID uint64, deviceID string) (*model.JoinRequest, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+joinRequestColumns+` FROM join_requests
		 WHERE room_id = ? AND device_id = ?
		 ORDER BY created_at DESC, id DESC LIMIT 1`, roomID, deviceID)
	jr, err := scanJoinRequest(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return jr, err
}

// FindPendingByDevice returns the device's pending request for a room,
// or nil when none is pending. Submit uses this to stay idempotent per
// (room, device).
func (r *JoinRequestRepo) FindPendingByDevice(ctx context.Context, roomID uint64, deviceID string) (*model.JoinRequest, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+joinRequestColumns+` FROM join_requests
		 WHERE room_id = ? AND device_id = ? AND status = ?
		 ORDER BY created_at DESC, id DESC LIMIT 1`, roomID, deviceID, model.RequestPending)
	jr, err := scanJoinRequest(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return jr, err
}

// UpdateStatus transitions a request from one status to another. It
// returns false when the row's current status did not match `from`;
// that compare-and-swap guard makes concurrent decisions safe. The
// responded_at column is stamped on any transition out of PENDING.
func (r *JoinRequestRepo) UpdateStatus(ctx context.Context, id uint64, from, to string) (bool, error) {
	const q = `UPDATE join_requests
		SET status = ?, responded_at = UTC_TIMESTAMP()
		WHERE id = ? AND status = ?`
	res, err := r.db.ExecContext(ctx, q, to, id, from)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// ListPending returns all pending requests for a room ordered oldest
// first, matching the order a host reviews them in.
func (r *JoinRequestRepo) ListPending(ctx context.Context, roomID uint64) ([]model.JoinRequest, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+joinRequestColumns+` FROM join_requests
		 WHERE room_id = ? AND status = ?
		 ORDER BY created_at ASC, id ASC`, roomID, model.RequestPending)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.JoinRequest, 0)
	for rows.Next() {
		jr, err := scanJoinRequest(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *jr)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
