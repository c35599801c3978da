package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/alfredjeanlab/ad2web/internal/events"
)

const writeWait = 10 * time.Second

// Stream is a websocket session on the bridge's event namespace.
type Stream struct {
	conn *websocket.Conn

	// gorilla allows one concurrent writer.
	writeMu sync.Mutex
}

// Dial opens a session on mountPath+namespace at baseURL, which may use an
// http(s) or ws(s) scheme. The token, when set, is sent both as a Bearer
// header and a query parameter.
func Dial(ctx context.Context, baseURL, mountPath, token string) (*Stream, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse url: %w", err)
	}
	switch u.Scheme {
	case "http", "":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	}
	u.Path += mountPath + events.Namespace

	header := http.Header{}
	if token != "" {
		header.Set("Authorization", "Bearer "+token)
		q := u.Query()
		q.Set("token", token)
		u.RawQuery = q.Encode()
	}

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, u.String(), header)
	if err != nil {
		if resp != nil {
			return nil, &APIError{StatusCode: resp.StatusCode, Message: err.Error()}
		}
		return nil, fmt.Errorf("dial %s: %w", u.Redacted(), err)
	}
	return &Stream{conn: conn}, nil
}

// Next blocks until the next broadcast envelope arrives.
func (s *Stream) Next() (events.Envelope, error) {
	var env events.Envelope
	_, data, err := s.conn.ReadMessage()
	if err != nil {
		return env, err
	}
	if err := json.Unmarshal(data, &env); err != nil {
		return env, fmt.Errorf("decode envelope: %w", err)
	}
	return env, nil
}

// Keypress sends keys to the panel through the bridge.
func (s *Stream) Keypress(keys string) error {
	frame := struct {
		Type     string   `json:"type"`
		Name     string   `json:"name"`
		Args     []string `json:"args"`
		Endpoint string   `json:"endpoint"`
	}{"event", "keypress", []string{keys}, events.Namespace}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return s.conn.WriteJSON(frame)
}

// Close sends a close frame and closes the connection.
func (s *Stream) Close() error {
	s.writeMu.Lock()
	_ = s.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
	s.writeMu.Unlock()
	return s.conn.Close()
}
