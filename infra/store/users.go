package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/kilianp07/vendpoint/core/ledger"
)

const userColumns = `id, request_count, api_request_count, enabled, is_admin, created_at, updated_at`

func (s *SQLiteStore) EnsureUser(ctx context.Context, id string) (ledger.User, error) {
	if id == "" {
		return ledger.User{}, ledger.ErrUserNotFound
	}
	now := s.now().Unix()
	if _, err := s.db.ExecContext(ctx, `INSERT OR IGNORE INTO users (id, created_at, updated_at) VALUES (?, ?, ?)`,
		id, now, now); err != nil {
		return ledger.User{}, fmt.Errorf("insert user: %w", err)
	}
	return s.GetUser(ctx, id)
}

func (s *SQLiteStore) GetUser(ctx context.Context, id string) (ledger.User, error) {
	u, err := scanUser(s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return ledger.User{}, ledger.ErrUserNotFound
	}
	return u, err
}

func (s *SQLiteStore) ListUsers(ctx context.Context) ([]ledger.User, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+userColumns+` FROM users ORDER BY created_at DESC, id`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var out []ledger.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) UpdateUser(ctx context.Context, id string, p ledger.UserPatch) (ledger.User, error) {
	var (
		sets []string
		args []any
	)
	if p.Enabled != nil {
		sets = append(sets, "enabled = ?")
		args = append(args, *p.Enabled)
	}
	if p.IsAdmin != nil {
		sets = append(sets, "is_admin = ?")
		args = append(args, *p.IsAdmin)
	}
	if len(sets) == 0 {
		return s.GetUser(ctx, id)
	}
	sets = append(sets, "updated_at = ?")
	args = append(args, s.now().Unix(), id)
	res, err := s.db.ExecContext(ctx, `UPDATE users SET `+strings.Join(sets, ", ")+` WHERE id = ?`, args...)
	if err != nil {
		return ledger.User{}, fmt.Errorf("update user: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ledger.User{}, ledger.ErrUserNotFound
	}
	return s.GetUser(ctx, id)
}

func scanUser(sc scanner) (ledger.User, error) {
	var (
		u                ledger.User
		created, updated int64
	)
	if err := sc.Scan(&u.ID, &u.RequestCount, &u.APIRequestCount, &u.Enabled, &u.IsAdmin, &created, &updated); err != nil {
		return ledger.User{}, err
	}
	u.CreatedAt = time.Unix(created, 0)
	u.UpdatedAt = time.Unix(updated, 0)
	return u, nil
}
