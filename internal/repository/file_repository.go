package repository

import (
	"context"
	"database/sql"

	"github.com/ramswarooppatel/sharehub/internal/model"
)

// FileRepo provides data access to the `room_files` table, the metadata
// side of the blob store. Object bytes live outside the database; rows
// here carry the object key needed to delete them when a file or its
// room goes away.
type FileRepo struct {
	db *sql.DB
}

// NewFileRepo returns a new FileRepo bound to the given database.
func NewFileRepo(db *sql.DB) *FileRepo { return &FileRepo{db: db} }

const fileColumns = `id, room_id, device_id, name, size_bytes, object_key, url, created_at`

func scanFile(row interface{ Scan(...interface{}) error }) (*model.RoomFile, error) {
	var f model.RoomFile
	err := row.Scan(&f.ID, &f.RoomID, &f.DeviceID, &f.Name, &f.SizeBytes, &f.ObjectKey, &f.URL, &f.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &f, nil
}

// Insert records an uploaded file and populates the generated ID and
// timestamp on the passed model.
func (r *FileRepo) Insert(ctx context.Context, f *model.RoomFile) error {
	const q = `INSERT INTO room_files (room_id, device_id, name, size_bytes, object_key, url)
		VALUES (?, ?, ?, ?, ?, ?)`
	res, err := r.db.ExecContext(ctx, q, f.RoomID, f.DeviceID, f.Name, f.SizeBytes, f.ObjectKey, f.URL)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	f.ID = uint64(id)
	row := r.db.QueryRowContext(ctx, `SELECT `+fileColumns+` FROM room_files WHERE id = ?`, f.ID)
	loaded, err := scanFile(row)
	if err != nil {
		return err
	}
	*f = *loaded
	return nil
}

// GetByID loads a file row by primary key.
func (r *FileRepo) GetByID(ctx context.Context, id uint64) (*model.RoomFile, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+fileColumns+` FROM room_files WHERE id = ?`, id)
	return scanFile(row)
}

// ListByRoom returns all files shared in a room, newest first.
func (r *FileRepo) ListByRoom(ctx context.Context, roomID uint64) ([]model.RoomFile, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+fileColumns+` FROM room_files WHERE room_id = ? ORDER BY created_at DESC, id DESC`,
		roomID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.RoomFile, 0)
	for rows.Next() {
		f, err := scanFile(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *f)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// ListObjectKeysByRoom returns the blob keys of all files in a room so
// room deletion can clean up the blob store after the row cascade.
func (r *FileRepo) ListObjectKeysByRoom(ctx context.Context, roomID uint64) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT object_key FROM room_files WHERE room_id = ?`, roomID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, err
		}
		keys = append(keys, k)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return keys, nil
}

// Delete removes a file row by id.
func (r *FileRepo) Delete(ctx context.Context, id uint64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM room_files WHERE id = ?`, id)
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
