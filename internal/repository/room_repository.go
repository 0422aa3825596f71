package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/ramswarooppatel/sharehub/internal/model"
)

// RoomRepo provides data access to the `rooms` table. It is the single
// source of truth for room records; all policy and expiry decisions are
// made against rows loaded through this repository. All timestamps are
// stored in UTC.
type RoomRepo struct {
	db *sql.DB
}

// NewRoomRepo returns a new RoomRepo bound to the provided database.
func NewRoomRepo(db *sql.DB) *RoomRepo { return &RoomRepo{db: db} }

const roomColumns = `id, room_code, name, policy, password, is_permanent, expires_at,
	auto_accept, host_name, host_passphrase_hash, created_at, updated_at`

// scanRoom reads one room row from a scanner into a model.Room,
// converting nullable columns.
func scanRoom(row interface{ Scan(...interface{}) error }) (*model.Room, error) {
	var (
		rm        model.Room
		password  sql.NullString
		expiresAt sql.NullTime
		hostHash  sql.NullString
	)
	err := row.Scan(
		&rm.ID, &rm.RoomCode, &rm.Name, &rm.Policy, &password, &rm.IsPermanent, &expiresAt,
		&rm.AutoAccept, &rm.HostName, &hostHash, &rm.CreatedAt, &rm.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if password.Valid {
		p := password.String
		rm.Password = &p
	}
	if expiresAt.Valid {
		t := expiresAt.Time.UTC()
		rm.ExpiresAt = &t
	}
	if hostHash.Valid {
		h := hostHash.String
		rm.HostPassphraseHash = &h
	}
	return &rm, nil
}

// Create inserts a new room and populates the generated ID and
// timestamps on the passed model. A duplicate room code surfaces as
// ErrConflict so the caller can retry with a fresh code.
func (r *RoomRepo) Create(ctx context.Context, rm *model.Room) error {
	const q = `INSERT INTO rooms
		(room_code, name, policy, password, is_permanent, expires_at, auto_accept, host_name, host_passphrase_hash)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`
	var expires interface{}
	if rm.ExpiresAt != nil {
		expires = rm.ExpiresAt.UTC().Format("2006-01-02 15:04:05")
	}
	res, err := r.db.ExecContext(ctx, q,
		rm.RoomCode, rm.Name, rm.Policy, rm.Password, rm.IsPermanent, expires,
		rm.AutoAccept, rm.HostName, rm.HostPassphraseHash,
	)
	if err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "1062") {
			return ErrConflict
		}
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	rm.ID = uint64(id)
	// Query back the full row to populate timestamps and defaults.
	return r.reload(ctx, rm)
}

func (r *RoomRepo) reload(ctx context.Context, rm *model.Room) error {
	row := r.db.QueryRowContext(ctx, `SELECT `+roomColumns+` FROM rooms WHERE id = ?`, rm.ID)
	loaded, err := scanRoom(row)
	if err != nil {
		return err
	}
	*rm = *loaded
	return nil
}

// GetByCode loads a room by its normalized room code. It returns
// ErrRoomNotFound when the code does not resolve.
func (r *RoomRepo) GetByCode(ctx context.Context, code string) (*model.Room, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+roomColumns+` FROM rooms WHERE room_code = ?`, model.NormalizeRoomCode(code))
	rm, err := scanRoom(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRoomNotFound
	}
	return rm, err
}

// GetByID loads a room by primary key. It returns ErrRoomNotFound when
// no row exists.
func (r *RoomRepo) GetByID(ctx context.Context, id uint64) (*model.Room, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+roomColumns+` FROM rooms WHERE id = ?`, id)
	rm, err := scanRoom(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRoomNotFound
	}
	return rm, err
}

// CodeExists reports whether a room code is already taken. Used by the
// room service's unique-code generation loop.
func (r *RoomRepo) CodeExists(ctx context.Context, code string) (bool, error) {
	var one int
	err := r.db.QueryRowContext(ctx,
		`SELECT 1 FROM rooms WHERE room_code = ? LIMIT 1`, model.NormalizeRoomCode(code)).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// RoomPatch carries the mutable settings of a room. Nil fields are left
// unchanged. Clearing a nullable column (password, expiry) is expressed
// by pointing at an empty value via the matching Clear flag.
type RoomPatch struct {
	Name           *string
	Policy         *string
	Password       *string
	ClearPassword  bool
	IsPermanent    *bool
	ExpiresAt      *time.Time
	ClearExpiresAt bool
	AutoAccept     *bool
}

// Update applies a patch to a room row and returns the updated record.
// It returns ErrRoomNotFound when the room does not exist.
func (r *RoomRepo) Update(ctx context.Context, id uint64, p RoomPatch) (*model.Room, error) {
	sets := make([]string, 0, 6)
	args := make([]interface{}, 0, 7)
	if p.Name != nil {
		sets = append(sets, "name = ?")
		args = append(args, *p.Name)
	}
	if p.Policy != nil {
		sets = append(sets, "policy = ?")
		args = append(args, *p.Policy)
	}
	if p.ClearPassword {
		sets = append(sets, "password = NULL")
	} else if p.Password != nil {
		sets = append(sets, "password = ?")
		args = append(args, *p.Password)
	}
	if p.IsPermanent != nil {
		sets = append(sets, "is_permanent = ?")
		args = append(args, *p.IsPermanent)
	}
	if p.ClearExpiresAt {
		sets = append(sets, "expires_at = NULL")
	} else if p.ExpiresAt != nil {
		sets = append(sets, "expires_at = ?")
		args = append(args, p.ExpiresAt.UTC().Format("2006-01-02 15:04:05"))
	}
	if p.AutoAccept != nil {
		sets = append(sets, "auto_accept = ?")
		args = append(args, *p.AutoAccept)
	}
	if len(sets) == 0 {
		return r.GetByID(ctx, id)
	}
	q := `UPDATE rooms SET ` + strings.Join(sets, ", ") + `, updated_at = UTC_TIMESTAMP() WHERE id = ?`
	args = append(args, id)
	if _, err := r.db.ExecContext(ctx, q, args...); err != nil {
		return nil, err
	}
	// Zero rows affected can mean a no-op patch as well as a missing
	// room, so reload instead of checking RowsAffected.
	return r.GetByID(ctx, id)
}

// Delete removes a room. Join requests, memberships, files and notes
// are removed by ON DELETE CASCADE foreign keys; callers are
// responsible for deleting the corresponding blobs. It returns
// ErrRoomNotFound when no row was deleted.
func (r *RoomRepo) Delete(ctx context.Context, id uint64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM rooms WHERE id = ?`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrRoomNotFound
	}
	return nil
}

// ListExpired returns the ids of non-permanent rooms whose expiry has
// passed. The reaper job uses this to sweep dead rooms; the access path
// never depends on the sweep because expiry is re-evaluated on load.
func (r *RoomRepo) ListExpired(ctx context.Context, now time.Time) ([]uint64, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id FROM rooms WHERE is_permanent = FALSE AND expires_at IS NOT NULL AND expires_at <= ?`,
		now.UTC().Format("2006-01-02 15:04:05"))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []uint64
	for rows.Next() {
		var id uint64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return ids, nil
}
