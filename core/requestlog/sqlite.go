package requestlog

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore persists records to a SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

const requestLogSchema = `CREATE TABLE IF NOT EXISTS request_logs (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        ts INTEGER NOT NULL,
        correlation_id TEXT NOT NULL,
        key_hint TEXT,
        uid INTEGER NOT NULL,
        responder TEXT,
        success INTEGER NOT NULL,
        reason TEXT,
        error TEXT,
        completion TEXT,
        latency_ms INTEGER NOT NULL,
        prompt TEXT
    );
    CREATE INDEX IF NOT EXISTS request_logs_ts ON request_logs (ts);
    CREATE INDEX IF NOT EXISTS request_logs_correlation ON request_logs (correlation_id);`

// NewSQLiteStore opens or creates the database at path and ensures schema.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(requestLogSchema); err != nil {
		if cerr := db.Close(); cerr != nil {
			return nil, fmt.Errorf("close db: %v (schema err: %w)", cerr, err)
		}
		return nil, err
	}
	return &SQLiteStore{db: db}, nil
}

// Append writes the records in one transaction.
func (s *SQLiteStore) Append(ctx context.Context, recs ...Record) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO request_logs
        (ts, correlation_id, key_hint, uid, responder, success, reason, error, completion, latency_ms, prompt)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		_ = tx.Rollback()
		return err
	}
	defer func() { _ = stmt.Close() }()
	for _, r := range recs {
		if _, err := stmt.ExecContext(ctx, r.Timestamp.UnixNano(), r.CorrelationID, r.KeyHint, r.UID,
			r.Responder, r.Success, r.Reason, r.Error, r.Completion, r.LatencyMS, r.Prompt); err != nil {
			_ = tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

// Query returns records matching q ordered by time.
func (s *SQLiteStore) Query(ctx context.Context, q Query) ([]Record, error) {
	var args []any
	query := `SELECT ts, correlation_id, key_hint, uid, responder, success, reason, error, completion, latency_ms, prompt
        FROM request_logs WHERE 1=1`
	if !q.Start.IsZero() {
		query += ` AND ts >= ?`
		args = append(args, q.Start.UnixNano())
	}
	if !q.End.IsZero() {
		query += ` AND ts <= ?`
		args = append(args, q.End.UnixNano())
	}
	if q.UID != nil {
		query += ` AND uid = ?`
		args = append(args, *q.UID)
	}
	if q.KeyHint != "" {
		query += ` AND key_hint = ?`
		args = append(args, q.KeyHint)
	}
	if q.CorrelationID != "" {
		query += ` AND correlation_id = ?`
		args = append(args, q.CorrelationID)
	}
	if q.Success != nil {
		query += ` AND success = ?`
		args = append(args, *q.Success)
	}
	query += ` ORDER BY ts, id`
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var res []Record
	for rows.Next() {
		var (
			r                                                   Record
			ts                                                  int64
			keyHint, responder, reason, errMsg, completion, prm sql.NullString
		)
		if err := rows.Scan(&ts, &r.CorrelationID, &keyHint, &r.UID, &responder, &r.Success,
			&reason, &errMsg, &completion, &r.LatencyMS, &prm); err != nil {
			return nil, err
		}
		r.Timestamp = unixNano(ts)
		r.KeyHint, r.Responder, r.Reason = keyHint.String, responder.String, reason.String
		r.Error, r.Completion, r.Prompt = errMsg.String, completion.String, prm.String
		res = append(res, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return q.limit(res), nil
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error { return s.db.Close() }

func unixNano(ns int64) time.Time { return time.Unix(0, ns) }
