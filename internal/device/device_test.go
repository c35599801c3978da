package device

import (
	"bufio"
	"errors"
	"io"
	"log/slog"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/alfredjeanlab/ad2web/internal/model"
)

// fakePanel is a TCP listener standing in for the AlarmDecoder socket.
type fakePanel struct {
	ln    net.Listener
	conns chan net.Conn
}

func startFakePanel(t *testing.T) *fakePanel {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	p := &fakePanel{ln: ln, conns: make(chan net.Conn, 1)}
	go func() {
		for {
			c, err := ln.Accept()
			if err != nil {
				return
			}
			p.conns <- c
		}
	}()
	t.Cleanup(func() { ln.Close() })
	return p
}

func (p *fakePanel) accept(t *testing.T) net.Conn {
	t.Helper()
	select {
	case c := <-p.conns:
		t.Cleanup(func() { c.Close() })
		return c
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for device to connect")
		return nil
	}
}

// lineDecoder emits one MESSAGE event per line, carrying the text.
type lineDecoder struct{}

func (lineDecoder) Decode(line string) []Event {
	return []Event{{Kind: model.KindMessage, Payload: model.KeypadMessage{Raw: line}}}
}

func newTestDevice(opts ...Option) *Device {
	opts = append([]Option{WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))}, opts...)
	return New(lineDecoder{}, opts...)
}

func TestOpen_Unreachable(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := ln.Addr().String()
	ln.Close()

	d := newTestDevice(WithDialTimeout(time.Second))
	err = d.Open(addr, 115200)
	var ce *ConnectionError
	if !errors.As(err, &ce) {
		t.Fatalf("expected ConnectionError, got %v", err)
	}
	if ce.Addr != addr {
		t.Fatalf("ConnectionError.Addr = %q, want %q", ce.Addr, addr)
	}
}

func TestHandlers_RegistrationOrder(t *testing.T) {
	panel := startFakePanel(t)
	d := newTestDevice()

	var (
		mu    sync.Mutex
		calls []string
	)
	got := make(chan struct{}, 4)
	record := func(name string) Handler {
		return func(ev Event) {
			mu.Lock()
			calls = append(calls, name+":"+ev.Payload.(model.KeypadMessage).Raw)
			mu.Unlock()
			got <- struct{}{}
		}
	}
	d.RegisterHandler(model.KindMessage, record("first"))
	d.RegisterHandler(model.KindMessage, record("second"))
	d.RegisterHandler(model.KindBypass, record("never"))

	if err := d.Open(panel.ln.Addr().String(), 115200); err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer d.Close()

	conn := panel.accept(t)
	if _, err := io.WriteString(conn, "hello\r\n\r\nworld\n"); err != nil {
		t.Fatalf("write: %v", err)
	}

	for i := 0; i < 4; i++ {
		select {
		case <-got:
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for handler call %d", i)
		}
	}

	mu.Lock()
	defer mu.Unlock()
	want := []string{"first:hello", "second:hello", "first:world", "second:world"}
	if len(calls) != len(want) {
		t.Fatalf("calls = %v, want %v", calls, want)
	}
	for i := range want {
		if calls[i] != want[i] {
			t.Fatalf("calls = %v, want %v", calls, want)
		}
	}
}

func TestHandlers_SenderDefaultsToAddr(t *testing.T) {
	panel := startFakePanel(t)
	d := newTestDevice()

	senders := make(chan string, 1)
	d.RegisterHandler(model.KindMessage, func(ev Event) { senders <- ev.Sender })

	addr := panel.ln.Addr().String()
	if err := d.Open(addr, 115200); err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer d.Close()

	conn := panel.accept(t)
	io.WriteString(conn, "x\n")

	select {
	case s := <-senders:
		if s != addr {
			t.Fatalf("sender = %q, want %q", s, addr)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
	}
}

func TestHandlers_PanicIsContained(t *testing.T) {
	panel := startFakePanel(t)
	d := newTestDevice()

	got := make(chan string, 2)
	d.RegisterHandler(model.KindMessage, func(ev Event) {
		if ev.Payload.(model.KeypadMessage).Raw == "boom" {
			panic("handler exploded")
		}
	})
	d.RegisterHandler(model.KindMessage, func(ev Event) {
		got <- ev.Payload.(model.KeypadMessage).Raw
	})

	if err := d.Open(panel.ln.Addr().String(), 115200); err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer d.Close()

	conn := panel.accept(t)
	io.WriteString(conn, "boom\nafter\n")

	for _, want := range []string{"boom", "after"} {
		select {
		case s := <-got:
			if s != want {
				t.Fatalf("got %q, want %q", s, want)
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for %q", want)
		}
	}
}

func TestSendToDevice(t *testing.T) {
	panel := startFakePanel(t)
	d := newTestDevice()
	if err := d.Open(panel.ln.Addr().String(), 115200); err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer d.Close()
	conn := panel.accept(t)

	if err := d.SendToDevice([]byte("1234")); err != nil {
		t.Fatalf("SendToDevice: %v", err)
	}

	buf := make([]byte, 4)
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, err := io.ReadFull(conn, buf); err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(buf) != "1234" {
		t.Fatalf("panel received %q, want %q", buf, "1234")
	}
}

func TestSendToDevice_NotOpen(t *testing.T) {
	d := newTestDevice()
	err := d.SendToDevice([]byte("1"))
	var we *WriteError
	if !errors.As(err, &we) || !errors.Is(err, ErrClosed) {
		t.Fatalf("expected WriteError wrapping ErrClosed, got %v", err)
	}
}

func TestClose_IdempotentAndFailsWrites(t *testing.T) {
	panel := startFakePanel(t)
	d := newTestDevice()
	if err := d.Open(panel.ln.Addr().String(), 115200); err != nil {
		t.Fatalf("Open: %v", err)
	}
	panel.accept(t)

	if err := d.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := d.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}

	select {
	case <-d.Done():
	default:
		t.Fatal("Done should be closed after Close returns")
	}
	if d.Err() != nil {
		t.Fatalf("deliberate close should not set Err, got %v", d.Err())
	}

	err := d.SendToDevice([]byte("1"))
	if !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed after Close, got %v", err)
	}
}

func TestClose_NotBlockedByStalledWrite(t *testing.T) {
	panel := startFakePanel(t)
	d := newTestDevice(WithWriteTimeout(30 * time.Second))
	addr := panel.ln.Addr().String()
	if err := d.Open(addr, 115200); err != nil {
		t.Fatalf("Open: %v", err)
	}
	// The peer never reads, so a large write fills both socket buffers and stalls.
	panel.accept(t)

	sent := make(chan error, 1)
	go func() {
		sent <- d.SendToDevice(make([]byte, 64<<20))
	}()
	time.Sleep(200 * time.Millisecond)

	start := time.Now()
	if got := d.Addr(); got != addr {
		t.Fatalf("Addr = %q, want %q", got, addr)
	}
	if elapsed := time.Since(start); elapsed > 500*time.Millisecond {
		t.Fatalf("Addr blocked for %v behind a stalled write", elapsed)
	}

	start = time.Now()
	if err := d.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Fatalf("Close blocked for %v behind a stalled write", elapsed)
	}

	select {
	case err := <-sent:
		var we *WriteError
		if !errors.As(err, &we) {
			t.Fatalf("expected WriteError from interrupted write, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("stalled write was not released by Close")
	}

	start = time.Now()
	if err := d.SendToDevice([]byte("1")); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed after Close, got %v", err)
	}
	if elapsed := time.Since(start); elapsed > 500*time.Millisecond {
		t.Fatalf("SendToDevice after Close took %v", elapsed)
	}
}

func TestOpen_Twice(t *testing.T) {
	panel := startFakePanel(t)
	d := newTestDevice()
	addr := panel.ln.Addr().String()
	if err := d.Open(addr, 115200); err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer d.Close()
	panel.accept(t)

	var ce *ConnectionError
	if err := d.Open(addr, 115200); !errors.As(err, &ce) {
		t.Fatalf("expected ConnectionError on second Open, got %v", err)
	}
}

func TestLinkLoss_SurfacesConnectionError(t *testing.T) {
	panel := startFakePanel(t)
	d := newTestDevice()
	if err := d.Open(panel.ln.Addr().String(), 115200); err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer d.Close()

	conn := panel.accept(t)
	conn.Close()

	select {
	case <-d.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for read loop to exit")
	}

	var ce *ConnectionError
	if !errors.As(d.Err(), &ce) {
		t.Fatalf("expected ConnectionError, got %v", d.Err())
	}
	if err := d.SendToDevice([]byte("1")); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected fail-fast write after link loss, got %v", err)
	}
}

func TestClose_UnblocksRead(t *testing.T) {
	panel := startFakePanel(t)
	d := newTestDevice()
	if err := d.Open(panel.ln.Addr().String(), 115200); err != nil {
		t.Fatalf("Open: %v", err)
	}
	conn := panel.accept(t)

	// The panel stays silent; Close must still return promptly.
	done := make(chan error, 1)
	go func() { done <- d.Close() }()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Close: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Close blocked on an idle read")
	}

	// The panel side observes the hangup.
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, err := bufio.NewReader(conn).ReadByte(); err == nil {
		t.Fatal("expected panel to see EOF")
	}
}
