package server

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/alfredjeanlab/ad2web/internal/events"
)

func dialNamespace(t *testing.T, ts *httptest.Server, query string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/socket.io/alarmdecoder" + query
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestWebsocket_ReceivesBroadcasts(t *testing.T) {
	srv, reg := newTestServer(t, &filterStore{}, &fakeDevice{})
	ts := httptest.NewServer(srv.NewHTTPHandler(""))
	defer ts.Close()

	conn := dialNamespace(t, ts, "")
	waitFor(t, "registration", func() bool { return reg.Count() == 1 })

	env := events.NewEnvelope(events.ChannelEvent, json.RawMessage(`{"zone":5,"status":true}`))
	if n := reg.Broadcast(env); n != 1 {
		t.Fatalf("Broadcast sent %d, want 1", n)
	}

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	want := `{"type":"event","name":"event","args":{"zone":5,"status":true},"endpoint":"/alarmdecoder"}`
	if strings.TrimSpace(string(data)) != want {
		t.Fatalf("frame = %s, want %s", data, want)
	}
}

func TestWebsocket_KeypressReachesDevice(t *testing.T) {
	dev := &fakeDevice{}
	srv, reg := newTestServer(t, &filterStore{}, dev)
	ts := httptest.NewServer(srv.NewHTTPHandler(""))
	defer ts.Close()

	conn := dialNamespace(t, ts, "")
	waitFor(t, "registration", func() bool { return reg.Count() == 1 })

	frames := []string{
		`{"type":"event","name":"keypress","args":["1"],"endpoint":"/alarmdecoder"}`,
		`{"type":"event","name":"arm","args":[],"endpoint":"/alarmdecoder"}`,
		`{"type":"event","name":"keypress","args":["9"],"endpoint":"/other"}`,
		`not json`,
	}
	for _, f := range frames {
		if err := conn.WriteMessage(websocket.TextMessage, []byte(f)); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	// A final keypress proves the earlier frames were consumed.
	conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"event","name":"keypress","args":["*"]}`))

	waitFor(t, "keypresses", func() bool { return len(dev.writes()) == 2 })
	if got := dev.writes(); got[0] != "1" || got[1] != "*" {
		t.Fatalf("device writes = %q, want [1 *]", got)
	}
}

func TestWebsocket_DisconnectUnregisters(t *testing.T) {
	srv, reg := newTestServer(t, &filterStore{}, &fakeDevice{})
	ts := httptest.NewServer(srv.NewHTTPHandler(""))
	defer ts.Close()

	conn := dialNamespace(t, ts, "")
	waitFor(t, "registration", func() bool { return reg.Count() == 1 })

	conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	conn.Close()
	waitFor(t, "unregistration", func() bool { return reg.Count() == 0 })
}

func TestWebsocket_AuthByQueryToken(t *testing.T) {
	srv, reg := newTestServer(t, &filterStore{}, &fakeDevice{})
	ts := httptest.NewServer(srv.NewHTTPHandler("secret"))
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/socket.io/alarmdecoder"
	if _, resp, err := websocket.DefaultDialer.Dial(url, nil); err == nil || resp == nil || resp.StatusCode != 401 {
		t.Fatalf("expected 401 without token, got err=%v resp=%v", err, resp)
	}

	dialNamespace(t, ts, "?token=secret")
	waitFor(t, "registration", func() bool { return reg.Count() == 1 })
}

func TestWSSocket_DropsOldest(t *testing.T) {
	s := newWSSocket(nil, 2)
	for i := 1; i <= 3; i++ {
		env := events.NewEnvelope(events.ChannelMessage, json.RawMessage(`{"n":`+string(rune('0'+i))+`}`))
		if err := s.Send(env); err != nil {
			t.Fatalf("Send: %v", err)
		}
	}
	batch, dropped := s.take()
	if dropped != 1 || len(batch) != 2 {
		t.Fatalf("batch = %d, dropped = %d", len(batch), dropped)
	}
	if string(batch[0].Args()) != `{"n":2}` || string(batch[1].Args()) != `{"n":3}` {
		t.Fatalf("kept %s, %s", batch[0].Args(), batch[1].Args())
	}
}

func TestWSSocket_SendAfterCloseFails(t *testing.T) {
	s := newWSSocket(nil, 2)
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	if err := s.Send(events.NewEnvelope(events.ChannelEvent, nil)); err == nil {
		t.Fatal("expected error after close")
	}
}
