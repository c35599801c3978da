package postgres

import (
	"database/sql"

	"github.com/alfredjeanlab/ad2web/internal/model"
)

// scannable is the interface satisfied by both *sql.Row and *sql.Rows.
type scannable interface {
	Scan(dest ...any) error
}

// scanEvent scans a single row into a model.EventLogEntry.
// The row must contain columns in the order defined by eventColumns.
func scanEvent(row scannable) (*model.EventLogEntry, error) {
	var (
		e   model.EventLogEntry
		typ string
	)
	if err := row.Scan(&e.ID, &typ, &e.Message, &e.Timestamp); err != nil {
		return nil, err
	}
	e.Type = model.EventKind(typ)
	e.Timestamp = e.Timestamp.UTC()
	return &e, nil
}

// scanEvents scans multiple rows into a slice of model.EventLogEntry pointers.
func scanEvents(rows *sql.Rows) ([]*model.EventLogEntry, error) {
	var entries []*model.EventLogEntry
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}
