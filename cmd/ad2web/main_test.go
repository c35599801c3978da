package main

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/alfredjeanlab/ad2web/internal/model"
	"github.com/alfredjeanlab/ad2web/internal/store/sqlite"
)

func TestParseSince(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	tests := []struct {
		in      string
		want    time.Time
		wantErr bool
	}{
		{"", time.Time{}, false},
		{"90m", now.Add(-90 * time.Minute), false},
		{"2024-02-29T08:00:00Z", time.Date(2024, 2, 29, 8, 0, 0, 0, time.UTC), false},
		{"-1h", time.Time{}, true},
		{"yesterday", time.Time{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := parseSince(tt.in, now)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if !got.Equal(tt.want) {
				t.Fatalf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNewLogger(t *testing.T) {
	logger, err := newLogger("debug")
	if err != nil {
		t.Fatalf("newLogger: %v", err)
	}
	if !logger.Enabled(context.Background(), slog.LevelDebug) {
		t.Fatal("debug level not enabled")
	}
	if _, err := newLogger("loud"); err == nil {
		t.Fatal("expected error for unknown level")
	}
}

func TestOpenStore_SQLite(t *testing.T) {
	st, err := openStore(":memory:")
	if err != nil {
		t.Fatalf("openStore: %v", err)
	}
	defer st.Close()
	if _, ok := st.(*sqlite.SQLiteStore); !ok {
		t.Fatalf("openStore(:memory:) = %T, want *sqlite.SQLiteStore", st)
	}
	if err := st.RecordEvent(context.Background(), &model.EventLogEntry{Type: model.KindBoot, Message: "boot"}); err != nil {
		t.Fatalf("RecordEvent: %v", err)
	}
}
