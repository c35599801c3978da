// Package archive periodically exports the event log as JSONL to durable
// destinations such as an S3 bucket.
package archive

import (
	"cmp"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"slices"
	"time"

	"github.com/alfredjeanlab/ad2web/internal/model"
	"github.com/alfredjeanlab/ad2web/internal/store"
)

// header is the first JSONL record written by ExportJSONL.
type header struct {
	Version    string    `json:"version"`
	Type       string    `json:"type"`
	Timestamp  time.Time `json:"timestamp"`
	AfterID    int64     `json:"after_id"`
	LastID     int64     `json:"last_id"`
	EventCount int       `json:"event_count"`
}

// record wraps a single JSONL line with a type discriminator.
type record struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// ExportJSONL writes every event log entry with an id above afterID to w,
// in id order, after a header line. It returns the largest id written
// (afterID itself when there were none) and the entry count.
func ExportJSONL(ctx context.Context, s store.Store, afterID int64, w io.Writer) (int64, int, error) {
	entries, err := s.ListEvents(ctx, model.EventLogFilter{AfterID: afterID, Limit: -1})
	if err != nil {
		return afterID, 0, fmt.Errorf("list events: %w", err)
	}
	// The store orders by timestamp; ids are the archive's sequence.
	slices.SortFunc(entries, func(a, b *model.EventLogEntry) int {
		return cmp.Compare(a.ID, b.ID)
	})

	lastID := afterID
	if len(entries) > 0 {
		lastID = entries[len(entries)-1].ID
	}

	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)

	if err := enc.Encode(header{
		Version:    "2",
		Type:       "header",
		Timestamp:  time.Now().UTC(),
		AfterID:    afterID,
		LastID:     lastID,
		EventCount: len(entries),
	}); err != nil {
		return afterID, 0, fmt.Errorf("encode header: %w", err)
	}

	for _, e := range entries {
		if err := enc.Encode(record{Type: "event", Data: e}); err != nil {
			return afterID, 0, fmt.Errorf("encode event %d: %w", e.ID, err)
		}
	}
	return lastID, len(entries), nil
}
