// Package server exposes the bridge to subscribers: the websocket namespace,
// an SSE stream, the event log over HTTP and a gRPC health service.
package server

import (
	"log/slog"
	"sync"
	"time"

	"github.com/alfredjeanlab/ad2web/internal/hub"
	"github.com/alfredjeanlab/ad2web/internal/presence"
	"github.com/alfredjeanlab/ad2web/internal/store"
)

// defaultSocketQueue bounds the per-subscriber send queue.
const defaultSocketQueue = 64

// Device is the part of the device adapter the server needs.
type Device interface {
	SendToDevice(data []byte) error
	Addr() string
	Err() error
}

// Options configures a Server.
type Options struct {
	Store     store.Store
	Registry  *hub.Registry
	Device    Device
	Presence  *presence.Tracker // optional
	MountPath string            // websocket mount prefix, e.g. "/socket.io"

	// SocketQueue bounds how many envelopes a slow subscriber may have
	// pending before the oldest are dropped.
	SocketQueue int
	Logger      *slog.Logger
}

// Server holds the dependencies of the HTTP surface.
type Server struct {
	store       store.Store
	registry    *hub.Registry
	device      Device
	presence    *presence.Tracker
	namespace   *Namespace
	mountPath   string
	socketQueue int
	logger      *slog.Logger
	started     time.Time

	closing   chan struct{}
	closeOnce sync.Once
}

// New returns a Server for opts.
func New(opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.SocketQueue <= 0 {
		opts.SocketQueue = defaultSocketQueue
	}
	switch opts.MountPath {
	case "":
		opts.MountPath = "/socket.io"
	case "/":
		// Serve the namespace at the root.
		opts.MountPath = ""
	}
	return &Server{
		store:       opts.Store,
		registry:    opts.Registry,
		device:      opts.Device,
		presence:    opts.Presence,
		namespace:   NewNamespace(opts.Registry, opts.Device, opts.Logger),
		mountPath:   opts.MountPath,
		socketQueue: opts.SocketQueue,
		logger:      opts.Logger,
		started:     time.Now(),
		closing:     make(chan struct{}),
	}
}

// Close ends every open event stream and closes the websocket sessions,
// neither of which http.Server.Shutdown waits out on its own. Register it
// with http.Server.RegisterOnShutdown. It is safe to call more than once.
func (s *Server) Close() {
	s.closeOnce.Do(func() {
		close(s.closing)
		s.registry.CloseAll()
	})
}

// Namespace returns the session namespace handler.
func (s *Server) Namespace() *Namespace {
	return s.namespace
}
