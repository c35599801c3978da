// Package bridge wires device events through classification, the event log
// and the broadcast registry.
package bridge

import (
	"errors"
	"log/slog"

	"github.com/alfredjeanlab/ad2web/internal/device"
	"github.com/alfredjeanlab/ad2web/internal/events"
	"github.com/alfredjeanlab/ad2web/internal/model"
)

// Source is where device events come from; *device.Device satisfies it.
type Source interface {
	RegisterHandler(kind model.EventKind, h device.Handler)
}

// Recorder accepts a persistence attempt without blocking; *sink.Sink
// satisfies it.
type Recorder interface {
	Submit(ev model.RawEvent)
}

// Broadcaster fans an envelope out to subscribers; *hub.Registry satisfies it.
type Broadcaster interface {
	Broadcast(env events.Envelope) int
}

// Option configures a Bridge.
type Option func(*Bridge)

// WithActivity sets a hook called with the sender and kind of every device
// event, before any other processing.
func WithActivity(fn func(sender string, kind model.EventKind)) Option {
	return func(b *Bridge) { b.activity = fn }
}

// WithLogger sets the bridge logger.
func WithLogger(l *slog.Logger) Option {
	return func(b *Bridge) { b.logger = l }
}

// Bridge is the composition root of the event path.
type Bridge struct {
	recorder    Recorder
	broadcaster Broadcaster
	activity    func(string, model.EventKind)
	logger      *slog.Logger
}

// New returns a Bridge that records through rec and broadcasts through bc.
func New(rec Recorder, bc Broadcaster, opts ...Option) *Bridge {
	b := &Bridge{
		recorder:    rec,
		broadcaster: bc,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Bind registers the bridge for every known event kind on src.
func (b *Bridge) Bind(src Source) {
	for _, kind := range model.AllKinds() {
		src.RegisterHandler(kind, b.Handle)
	}
}

// Handle processes one device event. Named events get one record attempt
// followed by one broadcast; message events are only broadcast. Neither a
// record failure nor an unknown kind prevents the broadcast.
func (b *Bridge) Handle(ev device.Event) {
	if b.activity != nil {
		b.activity(ev.Sender, ev.Kind)
	}

	raw := events.Classify(ev.Kind, ev.Sender, ev.Payload)

	if !raw.Kind.IsMessage() {
		if events.IsCritical(raw.Kind) {
			msg, _ := events.Message(raw.Kind)
			b.logger.Warn("critical event", "kind", raw.Kind, "sender", raw.Sender, "message", msg)
		}
		b.recorder.Submit(raw)
	}

	env, err := events.Format(raw)
	if err != nil {
		var uk *events.UnknownKindError
		if !errors.As(err, &uk) {
			b.logger.Error("failed to format event", "kind", raw.Kind, "error", err)
			return
		}
		b.logger.Warn("broadcasting event of unknown kind", "kind", raw.Kind)
	}

	n := b.broadcaster.Broadcast(env)
	b.logger.Debug("event broadcast", "kind", raw.Kind, "channel", env.Channel(), "subscribers", n)
}
