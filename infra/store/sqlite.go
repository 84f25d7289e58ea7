// Package store persists users, API keys and usage counters in SQLite.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/kilianp07/vendpoint/core/ledger"
	"github.com/kilianp07/vendpoint/core/ratelimit"
)

const apiKeySchema = `CREATE TABLE IF NOT EXISTS api_keys (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        api_key TEXT NOT NULL UNIQUE,
        api_key_hint TEXT NOT NULL,
        name TEXT,
        user_id TEXT,
        request_count INTEGER NOT NULL DEFAULT 0,
        api_request_count INTEGER NOT NULL DEFAULT 0,
        valid_until INTEGER NOT NULL DEFAULT -1,
        credits INTEGER NOT NULL DEFAULT -1,
        enabled INTEGER NOT NULL DEFAULT 1,
        rate_limits TEXT,
        rate_limits_enabled INTEGER NOT NULL DEFAULT 0,
        created_at INTEGER NOT NULL,
        updated_at INTEGER NOT NULL
    );`

const userSchema = `CREATE TABLE IF NOT EXISTS users (
        id TEXT PRIMARY KEY,
        request_count INTEGER NOT NULL DEFAULT 0,
        api_request_count INTEGER NOT NULL DEFAULT 0,
        enabled INTEGER NOT NULL DEFAULT 1,
        is_admin INTEGER NOT NULL DEFAULT 0,
        created_at INTEGER NOT NULL,
        updated_at INTEGER NOT NULL
    );`

const keyColumns = `id, api_key, api_key_hint, name, user_id, request_count, api_request_count, valid_until,
        credits, enabled, rate_limits, rate_limits_enabled, created_at, updated_at`

// SQLiteStore implements ledger.KeyStore, ledger.UserStore and ledger.Ledger.
type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

// Config holds the database location.
type Config struct {
	Path string `json:"path"`
}

// SetDefaults applies sane defaults.
func (c *Config) SetDefaults() {
	if c.Path == "" {
		c.Path = "vendpoint.db"
	}
}

// NewSQLiteStore opens or creates the database at path and ensures schema.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// sqlite serializes writers; one connection avoids SQLITE_BUSY
	db.SetMaxOpenConns(1)
	if err := migrate(db); err != nil {
		if cerr := db.Close(); cerr != nil {
			return nil, fmt.Errorf("close db: %v (schema err: %w)", cerr, err)
		}
		return nil, err
	}
	return &SQLiteStore{db: db, now: time.Now}, nil
}

// migrate creates the tables and adds the owner column to key tables
// created before users existed.
func migrate(db *sql.DB) error {
	for _, stmt := range []string{apiKeySchema, userSchema} {
		if _, err := db.Exec(stmt); err != nil {
			return err
		}
	}
	var n int
	if err := db.QueryRow(`SELECT COUNT(*) FROM pragma_table_info('api_keys') WHERE name = 'user_id'`).Scan(&n); err != nil {
		return err
	}
	if n == 0 {
		if _, err := db.Exec(`ALTER TABLE api_keys ADD COLUMN user_id TEXT`); err != nil {
			return fmt.Errorf("add user_id column: %w", err)
		}
	}
	_, err := db.Exec(`CREATE INDEX IF NOT EXISTS api_keys_user_id ON api_keys (user_id)`)
	return err
}

func (s *SQLiteStore) Create(ctx context.Context, nk ledger.NewKey) (ledger.APIKey, error) {
	key := nk.Key
	if key == "" {
		var err error
		if key, err = ledger.GenerateKey(); err != nil {
			return ledger.APIKey{}, err
		}
	}
	validUntil, credits, enabled := ledger.NeverExpires, ledger.Unlimited, true
	if nk.ValidUntil != nil {
		validUntil = *nk.ValidUntil
	}
	if nk.Credits != nil {
		credits = *nk.Credits
	}
	if nk.Enabled != nil {
		enabled = *nk.Enabled
	}
	now := s.now().Unix()
	owner := sql.NullString{String: nk.UserID, Valid: nk.UserID != ""}
	res, err := s.db.ExecContext(ctx, `INSERT INTO api_keys
        (api_key, api_key_hint, name, user_id, valid_until, credits, enabled, rate_limits, created_at, updated_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, '[]', ?, ?)`,
		key, ledger.Hint(key), nk.Name, owner, validUntil, credits, enabled, now, now)
	if err != nil {
		return ledger.APIKey{}, fmt.Errorf("insert api key: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return ledger.APIKey{}, err
	}
	return s.Get(ctx, strconv.FormatInt(id, 10))
}

// Get finds a key by numeric id or by the key itself.
func (s *SQLiteStore) Get(ctx context.Context, query string) (ledger.APIKey, error) {
	id, err := strconv.ParseInt(query, 10, 64)
	if err != nil {
		id = -1
	}
	row := s.db.QueryRowContext(ctx, `SELECT `+keyColumns+` FROM api_keys WHERE id = ? OR api_key = ? ORDER BY id = ? DESC LIMIT 1`, id, query, id)
	k, err := scanKey(row)
	if errors.Is(err, sql.ErrNoRows) {
		return ledger.APIKey{}, ledger.ErrKeyNotFound
	}
	return k, err
}

func (s *SQLiteStore) List(ctx context.Context) ([]ledger.APIKey, error) {
	return s.listKeys(ctx, `SELECT `+keyColumns+` FROM api_keys ORDER BY id DESC`)
}

// ListOwned returns the keys of one user, newest first.
func (s *SQLiteStore) ListOwned(ctx context.Context, userID string) ([]ledger.APIKey, error) {
	return s.listKeys(ctx, `SELECT `+keyColumns+` FROM api_keys WHERE user_id = ? ORDER BY id DESC`, userID)
}

func (s *SQLiteStore) listKeys(ctx context.Context, query string, args ...any) ([]ledger.APIKey, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var out []ledger.APIKey
	for rows.Next() {
		k, err := scanKey(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, k)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) Update(ctx context.Context, query string, p ledger.Patch) (ledger.APIKey, error) {
	k, err := s.Get(ctx, query)
	if err != nil {
		return ledger.APIKey{}, err
	}
	var (
		sets []string
		args []any
	)
	set := func(col string, v any) {
		sets = append(sets, col+" = ?")
		args = append(args, v)
	}
	if p.Name != nil {
		set("name", *p.Name)
	}
	if p.ValidUntil != nil {
		set("valid_until", *p.ValidUntil)
	}
	if p.Credits != nil {
		set("credits", *p.Credits)
	}
	if p.Enabled != nil {
		set("enabled", *p.Enabled)
	}
	if p.RateLimits != nil {
		for _, r := range *p.RateLimits {
			if err := r.Validate(); err != nil {
				return ledger.APIKey{}, err
			}
		}
		b, err := json.Marshal(*p.RateLimits)
		if err != nil {
			return ledger.APIKey{}, err
		}
		set("rate_limits", string(b))
	}
	if p.RateLimitsEnabled != nil {
		set("rate_limits_enabled", *p.RateLimitsEnabled)
	}
	if len(sets) == 0 {
		return k, nil
	}
	set("updated_at", s.now().Unix())
	args = append(args, k.ID)
	if _, err := s.db.ExecContext(ctx, `UPDATE api_keys SET `+strings.Join(sets, ", ")+` WHERE id = ?`, args...); err != nil {
		return ledger.APIKey{}, fmt.Errorf("update api key: %w", err)
	}
	return s.Get(ctx, strconv.FormatInt(k.ID, 10))
}

func (s *SQLiteStore) Delete(ctx context.Context, query string) error {
	k, err := s.Get(ctx, query)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `DELETE FROM api_keys WHERE id = ?`, k.ID)
	return err
}

// Charge applies the usage delta to the key and its owner in one
// transaction. Unlimited keys keep their balance and limited balances never
// drop below zero.
func (s *SQLiteStore) Charge(ctx context.Context, key string, c ledger.Charge) (err error) {
	var credits int64
	if c.Credits != nil {
		credits = *c.Credits
	}
	now := s.now().Unix()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("charge api key: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()
	res, err := tx.ExecContext(ctx, `UPDATE api_keys SET
            api_request_count = api_request_count + ?,
            request_count = request_count + ?,
            credits = CASE WHEN credits = -1 THEN -1 ELSE MAX(credits - ?, 0) END,
            updated_at = ?
        WHERE api_key = ?`,
		c.APIRequests, c.NetworkRequests, credits, now, key)
	if err != nil {
		return fmt.Errorf("charge api key: %w", err)
	}
	if n, rerr := res.RowsAffected(); rerr == nil && n == 0 {
		return ledger.ErrKeyNotFound
	}
	if _, err = tx.ExecContext(ctx, `UPDATE users SET
            api_request_count = api_request_count + ?,
            request_count = request_count + ?,
            updated_at = ?
        WHERE id = (SELECT user_id FROM api_keys WHERE api_key = ?)`,
		c.APIRequests, c.NetworkRequests, now, key); err != nil {
		return fmt.Errorf("charge key owner: %w", err)
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("charge api key: %w", err)
	}
	return nil
}

// ChargeUser counts a call made directly with a user token.
func (s *SQLiteStore) ChargeUser(ctx context.Context, userID string, c ledger.Charge) error {
	res, err := s.db.ExecContext(ctx, `UPDATE users SET
            api_request_count = api_request_count + ?,
            request_count = request_count + ?,
            updated_at = ?
        WHERE id = ?`,
		c.APIRequests, c.NetworkRequests, s.now().Unix(), userID)
	if err != nil {
		return fmt.Errorf("charge user: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ledger.ErrUserNotFound
	}
	return nil
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error { return s.db.Close() }

type scanner interface {
	Scan(dest ...any) error
}

func scanKey(sc scanner) (ledger.APIKey, error) {
	var (
		k                ledger.APIKey
		name, owner      sql.NullString
		limits           sql.NullString
		created, updated int64
	)
	err := sc.Scan(&k.ID, &k.Key, &k.Hint, &name, &owner, &k.RequestCount, &k.APIRequestCount, &k.ValidUntil,
		&k.Credits, &k.Enabled, &limits, &k.RateLimitsEnabled, &created, &updated)
	if err != nil {
		return ledger.APIKey{}, err
	}
	k.Name = name.String
	k.UserID = owner.String
	k.CreatedAt = time.Unix(created, 0)
	k.UpdatedAt = time.Unix(updated, 0)
	k.RateLimits = []ratelimit.Rule{}
	if limits.Valid && limits.String != "" {
		if err := json.Unmarshal([]byte(limits.String), &k.RateLimits); err != nil {
			return ledger.APIKey{}, fmt.Errorf("decode rate limits of key %d: %w", k.ID, err)
		}
	}
	return k, nil
}
