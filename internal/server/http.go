package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/alfredjeanlab/ad2web/internal/events"
	"github.com/alfredjeanlab/ad2web/internal/idgen"
	"github.com/alfredjeanlab/ad2web/internal/model"
)

// NewHTTPHandler returns an http.Handler with all routes registered.
// When authToken is non-empty, requests (except GET /v1/health) must carry
// the token as a Bearer header or a token query parameter.
func (s *Server) NewHTTPHandler(authToken string) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /v1/health", s.handleHealth)
	mux.HandleFunc("GET /v1/status", s.handleStatus)
	mux.HandleFunc("GET /v1/events", s.handleListEvents)
	mux.HandleFunc("GET /v1/events/stream", s.handleEventStream)
	mux.HandleFunc("GET "+s.mountPath+events.Namespace, s.handleWebsocket)
	return AuthMiddleware(authToken, mux)
}

// handleHealth handles GET /v1/health.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleStatus handles GET /v1/status.
func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.Status())
}

// Status reports the device link and subscriber counts.
func (s *Server) Status() model.BridgeStatus {
	st := model.BridgeStatus{
		StartedAt:  s.started.UTC(),
		UptimeSecs: time.Since(s.started).Seconds(),
	}

	if s.device != nil {
		st.Device.Addr = s.device.Addr()
		st.Device.Connected = st.Device.Addr != "" && s.device.Err() == nil
		if err := s.device.Err(); err != nil {
			st.Device.Error = err.Error()
		}
	}
	st.Device.Healthy = st.Device.Connected
	if s.presence != nil {
		st.Device.Healthy = st.Device.Healthy && s.presence.Healthy()
		for _, e := range s.presence.Snapshot() {
			if e.Sender == st.Device.Addr {
				st.Device.LastSeen = e.LastSeen
				st.Device.LastKind = e.LastKind
				st.Device.EventCount = e.EventCount
				break
			}
		}
	}

	for _, id := range s.registry.Sessions() {
		st.Subscribers.Total++
		switch idgen.Transport(id) {
		case "websocket":
			st.Subscribers.Websocket++
		case "sse":
			st.Subscribers.SSE++
		}
	}
	return st
}

// handleListEvents handles GET /v1/events.
func (s *Server) handleListEvents(w http.ResponseWriter, r *http.Request) {
	filter, err := parseEventLogFilter(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	entries, err := s.store.ListEvents(r.Context(), filter)
	if err != nil {
		s.logger.Error("failed to list events", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list events")
		return
	}
	if entries == nil {
		entries = []*model.EventLogEntry{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"events": entries})
}

// parseEventLogFilter reads type (repeatable or comma-separated), since
// (RFC 3339) and limit query parameters.
func parseEventLogFilter(r *http.Request) (model.EventLogFilter, error) {
	q := r.URL.Query()
	var filter model.EventLogFilter

	for _, v := range q["type"] {
		for _, t := range strings.Split(v, ",") {
			t = strings.TrimSpace(strings.ToUpper(t))
			if t == "" {
				continue
			}
			kind := model.EventKind(t)
			if !kind.IsNamed() {
				return filter, fmt.Errorf("unknown event type %q", t)
			}
			filter.Types = append(filter.Types, kind)
		}
	}

	if v := q.Get("since"); v != "" {
		since, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return filter, fmt.Errorf("invalid since: %w", err)
		}
		filter.Since = since
	}

	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return filter, fmt.Errorf("invalid limit: %w", err)
		}
		filter.Limit = n
	}
	return filter, nil
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
