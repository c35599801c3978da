// Package sink persists named panel events to the event log.
//
// Records are written by a single worker draining a bounded queue, so the
// caller that submits a record is never held up by the database.
package sink

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/alfredjeanlab/ad2web/internal/events"
	"github.com/alfredjeanlab/ad2web/internal/model"
	"github.com/alfredjeanlab/ad2web/internal/store"
)

// DefaultQueueSize is used when New is given a non-positive size.
const DefaultQueueSize = 256

// ErrMessageKind is wrapped by StorageError when a message kind is recorded.
var ErrMessageKind = errors.New("message kinds are not persisted")

// StorageError reports a failed event log write.
type StorageError struct {
	Kind model.EventKind
	Err  error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("record %s event: %v", e.Kind, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// Sink writes event log entries through a store.Store.
type Sink struct {
	store  store.Store
	logger *slog.Logger

	mu      sync.RWMutex // guards queue against send-after-close
	queue   chan model.RawEvent
	stopped bool

	startOnce sync.Once
	done      chan struct{}
}

// New returns a Sink with a queue of queueSize pending records.
func New(s store.Store, queueSize int, logger *slog.Logger) *Sink {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Sink{
		store:  s,
		logger: logger,
		queue:  make(chan model.RawEvent, queueSize),
		done:   make(chan struct{}),
	}
}

// Record writes one entry for ev in its own transaction. The message text
// comes from the static description table.
func (s *Sink) Record(ctx context.Context, ev model.RawEvent) error {
	if ev.Kind.IsMessage() {
		return &StorageError{Kind: ev.Kind, Err: ErrMessageKind}
	}
	msg, err := events.Message(ev.Kind)
	if err != nil {
		return &StorageError{Kind: ev.Kind, Err: err}
	}

	err = s.store.RunInTransaction(ctx, func(tx store.Store) error {
		return tx.RecordEvent(ctx, &model.EventLogEntry{Type: ev.Kind, Message: msg})
	})
	if err != nil {
		return &StorageError{Kind: ev.Kind, Err: err}
	}
	return nil
}

// Submit queues ev for recording and returns immediately. When the queue is
// full or the sink is stopped the record is dropped with a warning.
func (s *Sink) Submit(ev model.RawEvent) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.stopped {
		s.logger.Warn("event log sink stopped, dropping record", "kind", ev.Kind)
		return
	}
	select {
	case s.queue <- ev:
	default:
		s.logger.Warn("event log queue full, dropping record", "kind", ev.Kind)
	}
}

// Start launches the worker. Calling it more than once has no effect.
func (s *Sink) Start() {
	s.startOnce.Do(func() {
		go s.run()
	})
}

// Stop refuses further submissions, waits for the worker to drain the
// queue and returns. Start must have been called.
func (s *Sink) Stop() {
	s.mu.Lock()
	if !s.stopped {
		s.stopped = true
		close(s.queue)
	}
	s.mu.Unlock()
	<-s.done
}

func (s *Sink) run() {
	defer close(s.done)
	for ev := range s.queue {
		if err := s.Record(context.Background(), ev); err != nil {
			s.logger.Error("failed to record event", "kind", ev.Kind, "sender", ev.Sender, "error", err)
		}
	}
}
