package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/lib/pq"

	"github.com/alfredjeanlab/ad2web/internal/model"
)

const eventColumns = `id, type, message, created_at`

// executor is the interface satisfied by both *sql.DB and *sql.Tx.
type executor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func queryRecordEvent(ctx context.Context, db executor, e *model.EventLogEntry) error {
	return db.QueryRowContext(ctx, `
		INSERT INTO event_log (type, message)
		VALUES ($1, $2)
		RETURNING id, created_at`,
		string(e.Type), e.Message,
	).Scan(&e.ID, &e.Timestamp)
}

func queryListEvents(ctx context.Context, db executor, filter model.EventLogFilter) ([]*model.EventLogEntry, error) {
	var (
		whereClauses []string
		args         []any
		argIdx       int
	)

	nextArg := func() string {
		argIdx++
		return fmt.Sprintf("$%d", argIdx)
	}

	if len(filter.Types) > 0 {
		types := make([]string, len(filter.Types))
		for i, t := range filter.Types {
			types[i] = string(t)
		}
		whereClauses = append(whereClauses, "type = ANY("+nextArg()+")")
		args = append(args, pq.Array(types))
	}

	if !filter.Since.IsZero() {
		whereClauses = append(whereClauses, "created_at > "+nextArg())
		args = append(args, filter.Since)
	}

	if filter.AfterID > 0 {
		whereClauses = append(whereClauses, "id > "+nextArg())
		args = append(args, filter.AfterID)
	}

	query := "SELECT " + eventColumns + " FROM event_log"
	if len(whereClauses) > 0 {
		query += " WHERE " + strings.Join(whereClauses, " AND ")
	}
	query += " ORDER BY created_at DESC, id DESC"

	if limit := filter.EffectiveLimit(); limit > 0 {
		query += " LIMIT " + nextArg()
		args = append(args, limit)
	}

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()
	return scanEvents(rows)
}
