// Package presence tracks device link activity.
//
// The bridge calls Touch for every decoded frame. A background reaper marks
// a sender stale when it has been silent longer than a threshold; AlarmDecoder
// emits keypad frames every few seconds, so silence means the link is wedged
// even if the TCP connection is still up.
package presence

import (
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/alfredjeanlab/ad2web/internal/model"
)

// Entry is a snapshot of one sender's activity.
type Entry struct {
	Sender     string          `json:"sender"`
	FirstSeen  time.Time       `json:"first_seen"`
	LastSeen   time.Time       `json:"last_seen"`
	LastKind   model.EventKind `json:"last_kind"`
	IdleSecs   float64         `json:"idle_secs"`
	EventCount int64           `json:"event_count"`
	Stale      bool            `json:"stale,omitempty"`
	StaleSince time.Time       `json:"stale_since,omitzero"`
}

// ReaperConfig configures the background stale-link reaper.
type ReaperConfig struct {
	// StaleThreshold is how long a sender may be silent before it is
	// marked stale. Default: 2 minutes.
	StaleThreshold time.Duration

	// SweepInterval is how often the reaper scans. Default: 15 seconds.
	SweepInterval time.Duration

	// OnStale is called for each sender newly marked stale, outside the lock.
	OnStale func(sender string)

	// OnRecover is called from Touch when a stale sender is heard from again.
	OnRecover func(sender string)
}

// Tracker records the last activity of each event sender.
type Tracker struct {
	mu      sync.RWMutex
	senders map[string]*senderState
	now     func() time.Time

	onRecover  func(sender string)
	reaperStop chan struct{}
	reaperDone chan struct{}
}

type senderState struct {
	firstSeen  time.Time
	lastSeen   time.Time
	lastKind   model.EventKind
	eventCount int64
	stale      bool
	staleSince time.Time
}

// New creates an empty tracker.
func New() *Tracker {
	return &Tracker{
		senders: make(map[string]*senderState),
		now:     time.Now,
	}
}

// Touch records an event of kind from sender.
func (t *Tracker) Touch(sender string, kind model.EventKind) {
	if sender == "" {
		return
	}

	now := t.now()
	t.mu.Lock()
	state, ok := t.senders[sender]
	if !ok {
		state = &senderState{firstSeen: now}
		t.senders[sender] = state
	}
	recovered := state.stale
	state.stale = false
	state.staleSince = time.Time{}
	state.lastSeen = now
	state.lastKind = kind
	state.eventCount++
	onRecover := t.onRecover
	t.mu.Unlock()

	if recovered {
		slog.Info("presence: device link recovered", "sender", sender)
		if onRecover != nil {
			onRecover(sender)
		}
	}
}

// Watch starts tracking sender without counting an event, so a link that
// never produces a frame is still reaped. Already tracked senders are left
// untouched.
func (t *Tracker) Watch(sender string) {
	if sender == "" {
		return
	}
	now := t.now()
	t.mu.Lock()
	if _, ok := t.senders[sender]; !ok {
		t.senders[sender] = &senderState{firstSeen: now, lastSeen: now}
	}
	t.mu.Unlock()
}

// Snapshot returns all tracked senders, most recently active first.
func (t *Tracker) Snapshot() []Entry {
	t.mu.RLock()
	defer t.mu.RUnlock()

	now := t.now()
	entries := make([]Entry, 0, len(t.senders))
	for sender, state := range t.senders {
		entries = append(entries, Entry{
			Sender:     sender,
			FirstSeen:  state.firstSeen,
			LastSeen:   state.lastSeen,
			LastKind:   state.lastKind,
			IdleSecs:   now.Sub(state.lastSeen).Seconds(),
			EventCount: state.eventCount,
			Stale:      state.stale,
			StaleSince: state.staleSince,
		})
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].LastSeen.After(entries[j].LastSeen)
	})
	return entries
}

// Healthy reports whether no tracked sender is stale. A tracker that has
// not heard from anyone yet is healthy.
func (t *Tracker) Healthy() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	for _, state := range t.senders {
		if state.stale {
			return false
		}
	}
	return true
}

// StartReaper launches a background goroutine that periodically marks
// silent senders as stale. Call Stop to shut it down.
func (t *Tracker) StartReaper(cfg *ReaperConfig) {
	if cfg == nil {
		cfg = &ReaperConfig{}
	}
	if cfg.StaleThreshold == 0 {
		cfg.StaleThreshold = 2 * time.Minute
	}
	if cfg.SweepInterval == 0 {
		cfg.SweepInterval = 15 * time.Second
	}

	t.mu.Lock()
	t.onRecover = cfg.OnRecover
	t.mu.Unlock()

	t.reaperStop = make(chan struct{})
	t.reaperDone = make(chan struct{})

	go t.reapLoop(cfg)
	slog.Info("presence: reaper started",
		"stale_threshold", cfg.StaleThreshold,
		"sweep_interval", cfg.SweepInterval)
}

// Stop shuts down the reaper goroutine.
func (t *Tracker) Stop() {
	if t.reaperStop != nil {
		close(t.reaperStop)
		<-t.reaperDone
		t.reaperStop = nil
		t.reaperDone = nil
	}
}

func (t *Tracker) reapLoop(cfg *ReaperConfig) {
	defer close(t.reaperDone)

	ticker := time.NewTicker(cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-t.reaperStop:
			return
		case <-ticker.C:
			t.sweep(cfg)
		}
	}
}

func (t *Tracker) sweep(cfg *ReaperConfig) {
	now := t.now()
	var newlyStale []string

	t.mu.Lock()
	for sender, state := range t.senders {
		if state.stale {
			continue
		}
		if now.Sub(state.lastSeen) > cfg.StaleThreshold {
			state.stale = true
			state.staleSince = now
			newlyStale = append(newlyStale, sender)
		}
	}
	t.mu.Unlock()

	for _, sender := range newlyStale {
		slog.Warn("presence: device link stale",
			"sender", sender,
			"threshold", cfg.StaleThreshold)
		if cfg.OnStale != nil {
			cfg.OnStale(sender)
		}
	}
}
