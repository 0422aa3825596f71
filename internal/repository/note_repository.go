package repository

import (
	"context"
	"database/sql"

	"github.com/ramswarooppatel/sharehub/internal/model"
)

// NoteRepo provides data access to the `room_notes` table. Notes store
// raw markdown; rendering is a client concern.
type NoteRepo struct {
	db *sql.DB
}

// NewNoteRepo returns a new NoteRepo bound to the given database.
func NewNoteRepo(db *sql.DB) *NoteRepo { return &NoteRepo{db: db} }

const noteColumns = `id, room_id, device_id, title, body, created_at, updated_at`

func scanNote(row interface{ Scan(...interface{}) error }) (*model.Note, error) {
	var n model.Note
	err := row.Scan(&n.ID, &n.RoomID, &n.DeviceID, &n.Title, &n.Body, &n.CreatedAt, &n.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &n, nil
}

// Insert creates a note and populates the generated ID and timestamps
// on the passed model.
func (r *NoteRepo) Insert(ctx context.Context, n *model.Note) error {
	const q = `INSERT INTO room_notes (room_id, device_id, title, body) VALUES (?, ?, ?, ?)`
	res, err := r.db.ExecContext(ctx, q, n.RoomID, n.DeviceID, n.Title, n.Body)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	n.ID = uint64(id)
	row := r.db.QueryRowContext(ctx, `SELECT `+noteColumns+` FROM room_notes WHERE id = ?`, n.ID)
	loaded, err := scanNote(row)
	if err != nil {
		return err
	}
	*n = *loaded
	return nil
}

// GetByID loads a note by primary key.
func (r *NoteRepo) GetByID(ctx context.Context, id uint64) (*model.Note, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+noteColumns+` FROM room_notes WHERE id = ?`, id)
	return scanNote(row)
}

// ListByRoom returns all notes in a room, newest first.
func (r *NoteRepo) ListByRoom(ctx context.Context, roomID uint64) ([]model.Note, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+noteColumns+` FROM room_notes WHERE room_id = ? ORDER BY updated_at DESC, id DESC`,
		roomID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.Note, 0)
	for rows.Next() {
		n, err := scanNote(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *n)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// Update replaces a note's title and body. It returns sql.ErrNoRows
// when the note does not exist.
func (r *NoteRepo) Update(ctx context.Context, id uint64, deviceID, title, body string) (*model.Note, error) {
	const q = `UPDATE room_notes SET device_id = ?, title = ?, body = ?, updated_at = UTC_TIMESTAMP() WHERE id = ?`
	if _, err := r.db.ExecContext(ctx, q, deviceID, title, body, id); err != nil {
		return nil, err
	}
	return r.GetByID(ctx, id)
}

// Delete removes a note by id.
func (r *NoteRepo) Delete(ctx context.Context, id uint64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM room_notes WHERE id = ?`, id)
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
