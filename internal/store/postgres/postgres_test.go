package postgres

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/alfredjeanlab/ad2web/internal/model"
	"github.com/alfredjeanlab/ad2web/internal/store"
)

// newMockDB creates a sqlmock database with automatic cleanup and expectation checking.
func newMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	t.Cleanup(func() {
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("unfulfilled expectations: %v", err)
		}
		db.Close()
	})
	return db, mock
}

var eventRowColumns = []string{"id", "type", "message", "created_at"}

func TestQueryRecordEvent(t *testing.T) {
	db, mock := newMockDB(t)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	mock.ExpectQuery("INSERT INTO event_log \\(type, message\\)").
		WithArgs("BYPASS", "A zone has been bypassed.").
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow(int64(42), now))

	e := &model.EventLogEntry{Type: model.KindBypass, Message: "A zone has been bypassed."}
	if err := queryRecordEvent(context.Background(), db, e); err != nil {
		t.Fatalf("queryRecordEvent: %v", err)
	}
	if e.ID != 42 || !e.Timestamp.Equal(now) {
		t.Fatalf("entry = %+v, want id 42 at %v", e, now)
	}
}

func TestQueryListEvents_Default(t *testing.T) {
	db, mock := newMockDB(t)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	mock.ExpectQuery("SELECT id, type, message, created_at FROM event_log ORDER BY created_at DESC, id DESC LIMIT \\$1").
		WithArgs(model.DefaultLogLimit).
		WillReturnRows(sqlmock.NewRows(eventRowColumns).
			AddRow(int64(2), "DISARM", "The alarm system has been disarmed.", now).
			AddRow(int64(1), "ARM", "The alarm system has been armed.", now.Add(-time.Minute)))

	got, err := queryListEvents(context.Background(), db, model.EventLogFilter{})
	if err != nil {
		t.Fatalf("queryListEvents: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d entries, want 2", len(got))
	}
	if got[0].Type != model.KindDisarm || got[1].Type != model.KindArm {
		t.Fatalf("unexpected order: %v, %v", got[0].Type, got[1].Type)
	}
}

func TestQueryListEvents_Filters(t *testing.T) {
	db, mock := newMockDB(t)
	since := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery("FROM event_log WHERE type = ANY\\(\\$1\\) AND created_at > \\$2 ORDER BY created_at DESC, id DESC LIMIT \\$3").
		WithArgs(sqlmock.AnyArg(), since, 5).
		WillReturnRows(sqlmock.NewRows(eventRowColumns))

	got, err := queryListEvents(context.Background(), db, model.EventLogFilter{
		Types: []model.EventKind{model.KindAlarm, model.KindFire},
		Since: since,
		Limit: 5,
	})
	if err != nil {
		t.Fatalf("queryListEvents: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected no entries, got %d", len(got))
	}
}

func TestQueryListEvents_AfterID(t *testing.T) {
	db, mock := newMockDB(t)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	mock.ExpectQuery("FROM event_log WHERE id > \\$1 ORDER BY created_at DESC, id DESC$").
		WithArgs(int64(41)).
		WillReturnRows(sqlmock.NewRows(eventRowColumns).
			AddRow(int64(42), "BYPASS", "A zone has been bypassed.", now))

	got, err := queryListEvents(context.Background(), db, model.EventLogFilter{AfterID: 41, Limit: -1})
	if err != nil {
		t.Fatalf("queryListEvents: %v", err)
	}
	if len(got) != 1 || got[0].ID != 42 {
		t.Fatalf("unexpected result %+v", got)
	}
}

func TestQueryListEvents_Unlimited(t *testing.T) {
	db, mock := newMockDB(t)

	mock.ExpectQuery("FROM event_log ORDER BY created_at DESC, id DESC$").
		WillReturnRows(sqlmock.NewRows(eventRowColumns))

	if _, err := queryListEvents(context.Background(), db, model.EventLogFilter{Limit: -1}); err != nil {
		t.Fatalf("queryListEvents: %v", err)
	}
}

func TestQueryListEvents_Error(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectQuery("FROM event_log").WillReturnError(errors.New("connection reset"))

	if _, err := queryListEvents(context.Background(), db, model.EventLogFilter{}); err == nil {
		t.Fatal("expected error")
	}
}

func TestRunInTransaction_Commit(t *testing.T) {
	db, mock := newMockDB(t)
	s := NewWithDB(db)

	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO event_log").
		WithArgs("ARM", "The alarm system has been armed.").
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow(int64(1), time.Now()))
	mock.ExpectCommit()

	err := s.RunInTransaction(context.Background(), func(tx store.Store) error {
		return tx.RecordEvent(context.Background(), &model.EventLogEntry{
			Type:    model.KindArm,
			Message: "The alarm system has been armed.",
		})
	})
	if err != nil {
		t.Fatalf("RunInTransaction: %v", err)
	}
}

func TestRunInTransaction_Rollback(t *testing.T) {
	db, mock := newMockDB(t)
	s := NewWithDB(db)

	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO event_log").
		WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	err := s.RunInTransaction(context.Background(), func(tx store.Store) error {
		return tx.RecordEvent(context.Background(), &model.EventLogEntry{Type: model.KindFire, Message: "x"})
	})
	if err == nil || err.Error() != "disk full" {
		t.Fatalf("expected disk full error, got %v", err)
	}
}

func TestTxStore_NestedReusesTransaction(t *testing.T) {
	db, mock := newMockDB(t)
	s := NewWithDB(db)

	mock.ExpectBegin()
	mock.ExpectCommit()

	err := s.RunInTransaction(context.Background(), func(tx store.Store) error {
		return tx.RunInTransaction(context.Background(), func(inner store.Store) error {
			if inner != tx {
				t.Error("nested transaction should reuse the outer txStore")
			}
			return nil
		})
	})
	if err != nil {
		t.Fatalf("RunInTransaction: %v", err)
	}
}
