// Package sqlite implements the store.Store interface on an embedded SQLite
// database, for single-host installs without a Postgres server.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/alfredjeanlab/ad2web/internal/model"
	"github.com/alfredjeanlab/ad2web/internal/store"
)

const schema = `
CREATE TABLE IF NOT EXISTS event_log (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	type       TEXT    NOT NULL,
	message    TEXT    NOT NULL,
	created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_event_log_created_at ON event_log (created_at);
`

// SQLiteStore implements store.Store on a single SQLite file.
type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

var _ store.Store = (*SQLiteStore)(nil)

// New opens (creating if needed) the database at path. Use ":memory:" for a
// throwaway store.
func New(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// SQLite allows a single writer; one connection also keeps ":memory:"
	// databases from splitting across connections.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &SQLiteStore{db: db, now: time.Now}, nil
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) RecordEvent(ctx context.Context, e *model.EventLogEntry) error {
	return recordEvent(ctx, s.db, s.now, e)
}

func (s *SQLiteStore) ListEvents(ctx context.Context, filter model.EventLogFilter) ([]*model.EventLogEntry, error) {
	return listEvents(ctx, s.db, filter)
}

// RunInTransaction runs fn inside a transaction, committing on success.
func (s *SQLiteStore) RunInTransaction(ctx context.Context, fn func(tx store.Store) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := fn(&txStore{tx: tx, now: s.now}); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

type txStore struct {
	tx  *sql.Tx
	now func() time.Time
}

var _ store.Store = (*txStore)(nil)

func (s *txStore) RecordEvent(ctx context.Context, e *model.EventLogEntry) error {
	return recordEvent(ctx, s.tx, s.now, e)
}

func (s *txStore) ListEvents(ctx context.Context, filter model.EventLogFilter) ([]*model.EventLogEntry, error) {
	return listEvents(ctx, s.tx, filter)
}

func (s *txStore) RunInTransaction(ctx context.Context, fn func(tx store.Store) error) error {
	return fn(s)
}

func (s *txStore) Close() error { return nil }

type executor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func recordEvent(ctx context.Context, db executor, now func() time.Time, e *model.EventLogEntry) error {
	ts := now().UTC()
	res, err := db.ExecContext(ctx,
		`INSERT INTO event_log (type, message, created_at) VALUES (?, ?, ?)`,
		string(e.Type), e.Message, ts.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("insert event: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("insert event: %w", err)
	}
	e.ID = id
	e.Timestamp = ts
	return nil
}

func listEvents(ctx context.Context, db executor, filter model.EventLogFilter) ([]*model.EventLogEntry, error) {
	var (
		where []string
		args  []any
	)
	if len(filter.Types) > 0 {
		marks := make([]string, len(filter.Types))
		for i, t := range filter.Types {
			marks[i] = "?"
			args = append(args, string(t))
		}
		where = append(where, "type IN ("+strings.Join(marks, ", ")+")")
	}
	if !filter.Since.IsZero() {
		where = append(where, "created_at > ?")
		args = append(args, filter.Since.UnixNano())
	}
	if filter.AfterID > 0 {
		where = append(where, "id > ?")
		args = append(args, filter.AfterID)
	}

	query := "SELECT id, type, message, created_at FROM event_log"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at DESC, id DESC"
	if limit := filter.EffectiveLimit(); limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	var entries []*model.EventLogEntry
	for rows.Next() {
		var (
			e   model.EventLogEntry
			typ string
			ns  int64
		)
		if err := rows.Scan(&e.ID, &typ, &e.Message, &ns); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		e.Type = model.EventKind(typ)
		e.Timestamp = time.Unix(0, ns).UTC()
		entries = append(entries, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}
