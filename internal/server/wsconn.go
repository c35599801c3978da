package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/alfredjeanlab/ad2web/internal/events"
	"github.com/alfredjeanlab/ad2web/internal/idgen"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum client frame size; commands are tiny.
	maxMessageSize = 4096
)

var errSocketClosed = errors.New("socket closed")

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	// Browsers on the LAN reach the bridge by IP or hostname; auth is by token.
	CheckOrigin: func(*http.Request) bool { return true },
}

// clientFrame is an inbound message on the namespace.
type clientFrame struct {
	Type     string            `json:"type"`
	Name     string            `json:"name"`
	Args     []json.RawMessage `json:"args"`
	Endpoint string            `json:"endpoint"`
}

// wsSocket adapts a websocket connection to hub.Socket. Send appends to a
// bounded queue, dropping the oldest envelope when full; a write pump
// drains the queue.
type wsSocket struct {
	conn  *websocket.Conn
	limit int

	mu      sync.Mutex
	queue   []events.Envelope
	dropped int
	closed  bool

	notify    chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

func newWSSocket(conn *websocket.Conn, limit int) *wsSocket {
	return &wsSocket{
		conn:   conn,
		limit:  limit,
		notify: make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
}

func (s *wsSocket) SessionPrefix() string { return idgen.PrefixWebsocket }

// Send queues env for delivery. It never blocks.
func (s *wsSocket) Send(env events.Envelope) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return errSocketClosed
	}
	if len(s.queue) >= s.limit {
		s.queue = s.queue[1:]
		s.dropped++
	}
	s.queue = append(s.queue, env)
	s.mu.Unlock()

	select {
	case s.notify <- struct{}{}:
	default:
	}
	return nil
}

// Close stops the write pump, tells the peer the server is going away and
// closes the connection.
func (s *wsSocket) Close() error {
	var err error
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		s.mu.Unlock()
		close(s.done)
		_ = s.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, ""),
			time.Now().Add(time.Second))
		err = s.conn.Close()
	})
	return err
}

func (s *wsSocket) take() ([]events.Envelope, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	batch, dropped := s.queue, s.dropped
	s.queue, s.dropped = nil, 0
	return batch, dropped
}

// writePump delivers queued envelopes and keeps the connection alive.
func (s *wsSocket) writePump(onDrop func(n int)) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = s.Close()
	}()

	for {
		select {
		case <-s.done:
			return
		case <-s.notify:
			batch, dropped := s.take()
			if dropped > 0 && onDrop != nil {
				onDrop(dropped)
			}
			for _, env := range batch {
				_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
				if err := s.conn.WriteJSON(env); err != nil {
					return
				}
			}
		case <-ticker.C:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// handleWebsocket handles GET <mount>/alarmdecoder.
func (s *Server) handleWebsocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written an HTTP error.
		s.logger.Warn("websocket upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}

	sock := newWSSocket(conn, s.socketQueue)
	id, err := s.namespace.OnConnect(sock)
	if err != nil {
		s.logger.Error("failed to register subscriber", "remote", r.RemoteAddr, "error", err)
		_ = conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseInternalServerErr, "registration failed"))
		_ = sock.Close()
		return
	}

	select {
	case <-s.closing:
		// Registered after Close swept the registry.
		_ = sock.Close()
	default:
	}

	go sock.writePump(func(n int) {
		s.logger.Warn("slow subscriber, dropped oldest envelopes", "session", id, "dropped", n)
	})
	s.readPump(id, sock)
}

// readPump reads client frames until the connection fails, then
// unregisters the session.
func (s *Server) readPump(id string, sock *wsSocket) {
	defer func() {
		s.namespace.OnDisconnect(id)
		_ = sock.Close()
	}()

	conn := sock.conn
	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Warn("websocket read error", "session", id, "error", err)
			}
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))

		var frame clientFrame
		if err := json.Unmarshal(data, &frame); err != nil {
			s.logger.Warn("malformed client frame", "session", id, "error", err)
			continue
		}
		if frame.Type != "event" || (frame.Endpoint != "" && frame.Endpoint != events.Namespace) {
			continue
		}
		if err := s.namespace.OnClientCommand(frame.Name, frame.Args); err != nil {
			s.logger.Warn("client command failed", "session", id, "command", frame.Name, "error", err)
		}
	}
}
