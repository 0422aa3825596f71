package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/ramswarooppatel/sharehub/internal/model"
)

// MembershipRepo provides data access to the `memberships` table, the
// membership ledger. The table carries UNIQUE(room_id, device_id), so
// InsertIfAbsent is safe to call from every code path that grants
// access: racing tabs and duplicate evaluations converge on a single
// row. Rows are never removed here except by explicit Delete or by the
// room-deletion cascade.
type MembershipRepo struct {
	db *sql.DB
}

// NewMembershipRepo returns a new MembershipRepo bound to the given database.
func NewMembershipRepo(db *sql.DB) *MembershipRepo { return &MembershipRepo{db: db} }

const membershipColumns = `id, room_id, device_id, user_id, role, joined_at`

func scanMembership(row interface{ Scan(...interface{}) error }) (*model.Membership, error) {
	var (
		m      model.Membership
		userID sql.NullInt64
	)
	if err := row.Scan(&m.ID, &m.RoomID, &m.DeviceID, &userID, &m.Role, &m.JoinedAt); err != nil {
		return nil, err
	}
	if userID.Valid {
		u := uint64(userID.Int64)
		m.UserID = &u
	}
	return &m, nil
}

// Exists reports whether a membership row exists for (room, device).
func (r *MembershipRepo) Exists(ctx context.Context, roomID uint64, deviceID string) (bool, error) {
	var one int
	err := r.db.QueryRowContext(ctx,
		`SELECT 1 FROM memberships WHERE room_id = ? AND device_id = ? LIMIT 1`,
		roomID, deviceID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Get returns the membership row for (room, device), or nil when the
// device has no access. The evaluator uses the stored role rather than
// recomputing it.
func (r *MembershipRepo) Get(ctx context.Context, roomID uint64, deviceID string) (*model.Membership, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+membershipColumns+` FROM memberships WHERE room_id = ? AND device_id = ?`,
		roomID, deviceID)
	m, err := scanMembership(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return m, err
}

// InsertIfAbsent grants access to (room, device) with the given role.
// The INSERT IGNORE relies on the unique key, so a concurrent or
// repeated grant is a no-op rather than an error or a duplicate row.
func (r *MembershipRepo) InsertIfAbsent(ctx context.Context, roomID uint64, deviceID string, userID *uint64, role string) error {
	const q = `INSERT IGNORE INTO memberships (room_id, device_id, user_id, role) VALUES (?, ?, ?, ?)`
	_, err := r.db.ExecContext(ctx, q, roomID, deviceID, userID, role)
	return err
}

// Count returns the number of devices granted access to a room. Used
// for the live participant count shown inside the room.
func (r *MembershipRepo) Count(ctx context.Context, roomID uint64) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM memberships WHERE room_id = ?`, roomID).Scan(&n)
	return n, err
}

// ListByRoom returns all membership rows for a room ordered by join
// time. Used by the host's participant view.
func (r *MembershipRepo) ListByRoom(ctx context.Context, roomID uint64) ([]model.Membership, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+membershipColumns+` FROM memberships WHERE room_id = ? ORDER BY joined_at ASC, id ASC`,
		roomID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.Membership, 0)
	for rows.Next() {
		m, err := scanMembership(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// Delete removes a single membership row, scoped to the room so a
// caller cannot reach rows of other rooms by id. This is the explicit
// host eviction path; nothing else deletes ledger rows besides the
// room-deletion cascade.
func (r *MembershipRepo) Delete(ctx context.Context, roomID, id uint64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM memberships WHERE id = ? AND room_id = ?`, id, roomID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}
