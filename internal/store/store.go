package store

import (
	"context"

	"github.com/alfredjeanlab/ad2web/internal/model"
)

// Store defines the persistence interface for the panel event log.
type Store interface {
	// RecordEvent inserts e and fills in its ID and Timestamp.
	RecordEvent(ctx context.Context, e *model.EventLogEntry) error
	// ListEvents returns matching entries, newest first.
	ListEvents(ctx context.Context, filter model.EventLogFilter) ([]*model.EventLogEntry, error)

	// Transaction support
	RunInTransaction(ctx context.Context, fn func(tx Store) error) error

	// Lifecycle
	Close() error
}
