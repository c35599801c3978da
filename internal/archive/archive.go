package archive

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"path"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/alfredjeanlab/ad2web/internal/store"
)

// Destination is an archive target.
type Destination interface {
	// Write stores one export under name.
	Write(ctx context.Context, name string, data []byte) error
}

// Resumer is implemented by destinations that can report how far earlier
// runs got, so a restarted scheduler does not export the log again.
type Resumer interface {
	// LastArchivedID returns the largest entry id already stored, or 0.
	LastArchivedID(ctx context.Context) (int64, error)
}

// Scheduler runs periodic exports of new event log entries to one or more
// destinations. Each export covers the entries whose ids follow the previous
// successful one.
type Scheduler struct {
	store        store.Store
	destinations []Destination
	interval     time.Duration
	logger       *slog.Logger

	mu        sync.Mutex
	watermark int64

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewScheduler creates a scheduler that exports from the store to the given
// destinations at the specified interval.
func NewScheduler(s store.Store, destinations []Destination, interval time.Duration, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		store:        s,
		destinations: destinations,
		interval:     interval,
		logger:       logger,
	}
}

// Start begins periodic export. It resumes from the destinations, runs an
// initial export immediately, then exports on each tick.
func (s *Scheduler) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.run(ctx)
	}()
}

// Stop cancels the scheduler and waits for the current export (if any) to
// finish.
func (s *Scheduler) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
}

// Watermark returns the id of the newest archived entry.
func (s *Scheduler) Watermark() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.watermark
}

// Resume raises the watermark to what every resumable destination already
// holds. The smallest value wins so no destination misses entries. A
// destination that cannot be queried leaves the watermark unchanged.
func (s *Scheduler) Resume(ctx context.Context) error {
	var (
		resumed bool
		lowest  int64
	)
	for i, dest := range s.destinations {
		r, ok := dest.(Resumer)
		if !ok {
			continue
		}
		id, err := r.LastArchivedID(ctx)
		if err != nil {
			return fmt.Errorf("resume destination %d: %w", i, err)
		}
		if !resumed || id < lowest {
			lowest = id
		}
		resumed = true
	}
	if !resumed {
		return nil
	}

	s.mu.Lock()
	if lowest > s.watermark {
		s.watermark = lowest
	}
	s.mu.Unlock()
	s.logger.Info("archive resumed", "after_id", lowest)
	return nil
}

func (s *Scheduler) run(ctx context.Context) {
	if err := s.Resume(ctx); err != nil {
		s.logger.Warn("archive resume failed, exporting from the start", "err", err)
	}
	s.RunOnce(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.RunOnce(ctx)
		}
	}
}

// RunOnce exports entries newer than the watermark. Nothing is written when
// there are no new entries. The watermark only advances when every
// destination accepted the export.
func (s *Scheduler) RunOnce(ctx context.Context) {
	after := s.Watermark()

	var buf bytes.Buffer
	next, n, err := ExportJSONL(ctx, s.store, after, &buf)
	if err != nil {
		s.logger.Error("archive export failed", "err", err)
		return
	}
	if n == 0 {
		s.logger.Debug("archive skipped, no new events")
		return
	}

	name := objectName(next)
	data := buf.Bytes()
	failed := 0
	for i, dest := range s.destinations {
		if err := dest.Write(ctx, name, data); err != nil {
			failed++
			s.logger.Error("archive destination write failed", "destination", fmt.Sprintf("%d", i), "err", err)
		}
	}
	if failed > 0 {
		return
	}

	s.mu.Lock()
	s.watermark = next
	s.mu.Unlock()
	s.logger.Info("archive completed", "destinations", len(s.destinations), "events", n, "last_id", next, "bytes", len(data))
}

const (
	objectPrefix = "events-"
	objectSuffix = ".jsonl"
)

// objectName names an export by the id of its newest entry. Ids are zero
// padded so names sort in export order.
func objectName(lastID int64) string {
	return fmt.Sprintf("%s%020d%s", objectPrefix, lastID, objectSuffix)
}

// parseObjectName returns the newest entry id encoded in an export key.
// Any directory part is ignored.
func parseObjectName(key string) (int64, bool) {
	name := path.Base(key)
	if !strings.HasPrefix(name, objectPrefix) || !strings.HasSuffix(name, objectSuffix) {
		return 0, false
	}
	digits := strings.TrimSuffix(strings.TrimPrefix(name, objectPrefix), objectSuffix)
	id, err := strconv.ParseInt(digits, 10, 64)
	if err != nil || id < 0 {
		return 0, false
	}
	return id, true
}
