package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/alfredjeanlab/ad2web/internal/events"
	"github.com/alfredjeanlab/ad2web/internal/idgen"
)

const (
	// sseKeepaliveInterval is how often keepalive comments are sent to
	// prevent connection timeouts.
	sseKeepaliveInterval = 15 * time.Second
)

// sseSocket is a registry subscriber backed by an SSE response.
type sseSocket struct {
	channels []string // "message" and/or "event"; empty = all
	ch       chan events.Envelope
	dropped  atomic.Int64
}

func newSSESocket(channels []string, size int) *sseSocket {
	return &sseSocket{channels: channels, ch: make(chan events.Envelope, size)}
}

func (c *sseSocket) SessionPrefix() string { return idgen.PrefixStream }

// Send queues env if it matches the channel filter. A full buffer drops its
// oldest envelope.
func (c *sseSocket) Send(env events.Envelope) error {
	if !c.wants(env.Channel()) {
		return nil
	}
	for {
		select {
		case c.ch <- env:
			return nil
		default:
		}
		select {
		case <-c.ch:
			c.dropped.Add(1)
		default:
		}
	}
}

func (c *sseSocket) wants(channel string) bool {
	if len(c.channels) == 0 {
		return true
	}
	for _, ch := range c.channels {
		if ch == channel {
			return true
		}
	}
	return false
}

// handleEventStream handles GET /v1/events/stream (SSE endpoint).
func (s *Server) handleEventStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	var channels []string
	if q := r.URL.Query().Get("channels"); q != "" {
		for _, c := range strings.Split(q, ",") {
			c = strings.TrimSpace(c)
			if c == "" {
				continue
			}
			if c != events.ChannelMessage && c != events.ChannelEvent {
				writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown channel %q", c))
				return
			}
			channels = append(channels, c)
		}
	}

	client := newSSESocket(channels, s.socketQueue)
	id, err := s.namespace.OnConnect(client)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to register subscriber")
		return
	}
	defer s.namespace.OnDisconnect(id)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // Disable nginx buffering.
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, ":session %s\n\n", id)
	flusher.Flush()

	ctx := r.Context()
	keepalive := time.NewTicker(sseKeepaliveInterval)
	defer keepalive.Stop()

	var seq uint64
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.closing:
			return
		case env := <-client.ch:
			seq++
			if err := writeSSEEvent(w, seq, env); err != nil {
				s.logger.Warn("failed to write SSE event", "session", id, "error", err)
				return
			}
			if n := client.dropped.Swap(0); n > 0 {
				s.logger.Warn("slow subscriber, dropped oldest envelopes", "session", id, "dropped", n)
			}
			flusher.Flush()
		case <-keepalive.C:
			fmt.Fprintf(w, ":keepalive\n\n")
			flusher.Flush()
		}
	}
}

// writeSSEEvent writes a single envelope as an SSE event named by its channel.
func writeSSEEvent(w http.ResponseWriter, id uint64, env events.Envelope) error {
	data, err := json.Marshal(env)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "id:%d\nevent:%s\ndata:%s\n\n", id, env.Channel(), data)
	return err
}
