// Package device connects to an AlarmDecoder over a TCP socket and
// dispatches decoded panel events to registered handlers.
package device

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	"github.com/alfredjeanlab/ad2web/internal/model"
)

const (
	defaultDialTimeout  = 5 * time.Second
	defaultWriteTimeout = 5 * time.Second

	// maxLineBytes bounds a single frame from the device.
	maxLineBytes = 64 * 1024
)

// ErrClosed is wrapped by WriteError when the connection is not open.
var ErrClosed = errors.New("device connection closed")

// ConnectionError means the device link could not be opened or was lost.
// It is fatal to the Device instance.
type ConnectionError struct {
	Addr string
	Err  error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("device connection %s: %v", e.Addr, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// WriteError is returned by SendToDevice. It is not retried.
type WriteError struct {
	Err error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("device write: %v", e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }

// Event is a decoded panel event as emitted by a Decoder.
type Event struct {
	Kind    model.EventKind
	Sender  string
	Payload model.Payload
}

// Handler receives events of the kind it was registered for. Handlers run on
// the device read goroutine and must not call Close.
type Handler func(Event)

// Decoder turns one line of device output into zero or more events.
// Implementations may keep state between lines; Decode is only ever called
// from the read goroutine.
type Decoder interface {
	Decode(line string) []Event
}

// Option configures a Device.
type Option func(*Device)

// WithDialTimeout bounds Open.
func WithDialTimeout(d time.Duration) Option {
	return func(dev *Device) { dev.dialTimeout = d }
}

// WithWriteTimeout bounds each SendToDevice call.
func WithWriteTimeout(d time.Duration) Option {
	return func(dev *Device) { dev.writeTimeout = d }
}

// WithLogger sets the logger used for link and handler failures.
func WithLogger(l *slog.Logger) Option {
	return func(dev *Device) { dev.logger = l }
}

// Device is a single AlarmDecoder connection. A Device is opened at most once.
type Device struct {
	decoder      Decoder
	dialTimeout  time.Duration
	writeTimeout time.Duration
	logger       *slog.Logger

	handlersMu sync.RWMutex
	handlers   map[model.EventKind][]Handler

	writeMu sync.Mutex // serializes writes; never held with mu

	mu       sync.Mutex // guards the fields below
	conn     net.Conn
	addr     string
	baudrate int
	opened   bool
	closed   bool

	errMu sync.Mutex
	err   error
	done  chan struct{}
}

// New returns an unopened Device that decodes frames with decoder.
func New(decoder Decoder, opts ...Option) *Device {
	d := &Device{
		decoder:      decoder,
		dialTimeout:  defaultDialTimeout,
		writeTimeout: defaultWriteTimeout,
		logger:       slog.Default(),
		handlers:     make(map[model.EventKind][]Handler),
		done:         make(chan struct{}),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// RegisterHandler adds h for kind. Handlers for one kind run in registration order.
func (d *Device) RegisterHandler(kind model.EventKind, h Handler) {
	d.handlersMu.Lock()
	d.handlers[kind] = append(d.handlers[kind], h)
	d.handlersMu.Unlock()
}

// Open dials the device and starts reading. The baudrate is recorded for
// the serial side of a network bridge; the TCP link itself has none.
func (d *Device) Open(address string, baudrate int) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.opened {
		return &ConnectionError{Addr: address, Err: errors.New("device already opened")}
	}

	conn, err := net.DialTimeout("tcp", address, d.dialTimeout)
	if err != nil {
		return &ConnectionError{Addr: address, Err: err}
	}

	d.conn = conn
	d.addr = address
	d.baudrate = baudrate
	d.opened = true
	d.logger.Info("device connected", "addr", address, "baudrate", baudrate)

	go d.readLoop(conn)
	return nil
}

// Close releases the connection and waits for the read loop to exit.
// It is safe to call more than once.
func (d *Device) Close() error {
	d.mu.Lock()
	if !d.opened || d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	conn := d.conn
	d.mu.Unlock()

	err := conn.Close()
	<-d.done
	if err != nil && !errors.Is(err, net.ErrClosed) {
		return fmt.Errorf("close device: %w", err)
	}
	return nil
}

// SendToDevice writes raw bytes to the panel, e.g. keypad input. A write
// stalled on the link does not block Close, which unblocks it by closing
// the connection.
func (d *Device) SendToDevice(data []byte) error {
	d.mu.Lock()
	if !d.opened || d.closed {
		d.mu.Unlock()
		return &WriteError{Err: ErrClosed}
	}
	conn := d.conn
	d.mu.Unlock()

	d.writeMu.Lock()
	defer d.writeMu.Unlock()
	if d.isClosed() {
		return &WriteError{Err: ErrClosed}
	}
	if d.writeTimeout > 0 {
		if err := conn.SetWriteDeadline(time.Now().Add(d.writeTimeout)); err != nil {
			return &WriteError{Err: closedOr(err)}
		}
	}
	if _, err := conn.Write(data); err != nil {
		return &WriteError{Err: closedOr(err)}
	}
	return nil
}

func (d *Device) isClosed() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.closed
}

// closedOr maps a write on a connection closed underneath it to ErrClosed.
func closedOr(err error) error {
	if errors.Is(err, net.ErrClosed) {
		return ErrClosed
	}
	return err
}

// Done is closed once the read loop has exited, either after Close or
// because the link failed.
func (d *Device) Done() <-chan struct{} {
	return d.done
}

// Err returns the *ConnectionError that ended the read loop, or nil if the
// device is still running or was closed deliberately.
func (d *Device) Err() error {
	d.errMu.Lock()
	defer d.errMu.Unlock()
	return d.err
}

// Addr returns the address passed to Open.
func (d *Device) Addr() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.addr
}

func (d *Device) readLoop(conn net.Conn) {
	defer close(d.done)

	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 0, 4096), maxLineBytes)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		for _, ev := range d.decoder.Decode(line) {
			if ev.Sender == "" {
				ev.Sender = d.addr
			}
			d.dispatch(ev)
		}
	}

	readErr := scanner.Err()
	if readErr == nil {
		readErr = io.EOF
	}

	d.mu.Lock()
	deliberate := d.closed
	d.closed = true
	d.mu.Unlock()
	if deliberate {
		return
	}

	_ = conn.Close()
	connErr := &ConnectionError{Addr: d.addr, Err: readErr}
	d.errMu.Lock()
	d.err = connErr
	d.errMu.Unlock()
	d.logger.Error("device link lost", "addr", d.addr, "error", readErr)
}

func (d *Device) dispatch(ev Event) {
	d.handlersMu.RLock()
	hs := append([]Handler(nil), d.handlers[ev.Kind]...)
	d.handlersMu.RUnlock()

	for _, h := range hs {
		d.invoke(h, ev)
	}
}

// invoke runs one handler, containing panics so the read loop survives.
func (d *Device) invoke(h Handler, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("panic recovered in device handler",
				"kind", ev.Kind,
				"panic", fmt.Sprintf("%v", r),
				"stack", string(debug.Stack()),
			)
		}
	}()
	h(ev)
}
