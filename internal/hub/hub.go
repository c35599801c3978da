// Package hub keeps the set of live subscriber sockets and fans envelopes
// out to them.
package hub

import (
	"io"
	"log/slog"
	"sync"

	"github.com/alfredjeanlab/ad2web/internal/events"
	"github.com/alfredjeanlab/ad2web/internal/idgen"
)

// Socket is a subscriber connection. Send must not block; a returned error
// marks the socket as dead.
type Socket interface {
	Send(env events.Envelope) error
}

// prefixer is implemented by sockets that want a transport-specific id prefix.
type prefixer interface {
	SessionPrefix() string
}

// Registry is the set of connected sockets keyed by session id.
type Registry struct {
	logger *slog.Logger

	mu      sync.RWMutex
	sockets map[string]Socket

	// sendMu serializes Broadcast so every socket sees envelopes in call
	// order. Register and Unregister only take mu.
	sendMu sync.Mutex
}

// New returns an empty Registry.
func New(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		logger:  logger,
		sockets: make(map[string]Socket),
	}
}

// Register adds s and returns its new session id. The socket receives every
// envelope broadcast after Register returns.
func (r *Registry) Register(s Socket) (string, error) {
	prefix := idgen.PrefixWebsocket
	if p, ok := s.(prefixer); ok {
		prefix = p.SessionPrefix()
	}
	id, err := idgen.New(prefix)
	if err != nil {
		return "", err
	}

	r.mu.Lock()
	r.sockets[id] = s
	n := len(r.sockets)
	r.mu.Unlock()

	r.logger.Info("subscriber connected", "session", id, "subscribers", n)
	return id, nil
}

// Unregister removes the socket with the given id. Unknown ids are ignored.
func (r *Registry) Unregister(id string) {
	r.mu.Lock()
	_, ok := r.sockets[id]
	delete(r.sockets, id)
	n := len(r.sockets)
	r.mu.Unlock()

	if ok {
		r.logger.Info("subscriber disconnected", "session", id, "subscribers", n)
	}
}

// Broadcast sends env to every socket registered when the call starts and
// returns the number of successful sends. A socket whose Send fails is
// unregistered, and closed if it implements io.Closer; the remaining
// sockets still receive env.
func (r *Registry) Broadcast(env events.Envelope) int {
	r.sendMu.Lock()
	defer r.sendMu.Unlock()

	type target struct {
		id string
		s  Socket
	}
	r.mu.RLock()
	targets := make([]target, 0, len(r.sockets))
	for id, s := range r.sockets {
		targets = append(targets, target{id, s})
	}
	r.mu.RUnlock()

	sent := 0
	for _, t := range targets {
		if err := t.s.Send(env); err != nil {
			r.logger.Warn("dropping subscriber after failed send",
				"session", t.id,
				"channel", env.Channel(),
				"error", err,
			)
			r.Unregister(t.id)
			if c, ok := t.s.(io.Closer); ok {
				_ = c.Close()
			}
			continue
		}
		sent++
	}
	return sent
}

// CloseAll unregisters every socket and closes those that implement
// io.Closer. It returns the number of sockets removed.
func (r *Registry) CloseAll() int {
	r.mu.Lock()
	sockets := r.sockets
	r.sockets = make(map[string]Socket)
	r.mu.Unlock()

	for id, s := range sockets {
		if c, ok := s.(io.Closer); ok {
			if err := c.Close(); err != nil {
				r.logger.Debug("closing subscriber", "session", id, "error", err)
			}
		}
	}
	if len(sockets) > 0 {
		r.logger.Info("subscribers closed", "count", len(sockets))
	}
	return len(sockets)
}

// Count returns the number of registered sockets.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sockets)
}

// Sessions returns the ids of all registered sockets in no particular order.
func (r *Registry) Sessions() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.sockets))
	for id := range r.sockets {
		ids = append(ids, id)
	}
	return ids
}
