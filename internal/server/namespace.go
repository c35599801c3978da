package server

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/alfredjeanlab/ad2web/internal/hub"
)

// CommandKeypress is the only client command the namespace acts on.
const CommandKeypress = "keypress"

// Registrar is the registry surface the namespace needs.
type Registrar interface {
	Register(s hub.Socket) (string, error)
	Unregister(id string)
}

// KeySender delivers keypad input to the panel.
type KeySender interface {
	SendToDevice(data []byte) error
}

// Namespace handles the /alarmdecoder session lifecycle and inbound commands.
type Namespace struct {
	registry Registrar
	device   KeySender
	logger   *slog.Logger
}

// NewNamespace returns a namespace bound to registry and device.
func NewNamespace(registry Registrar, device KeySender, logger *slog.Logger) *Namespace {
	if logger == nil {
		logger = slog.Default()
	}
	return &Namespace{registry: registry, device: device, logger: logger}
}

// OnConnect registers a new subscriber and returns its session id.
func (n *Namespace) OnConnect(s hub.Socket) (string, error) {
	return n.registry.Register(s)
}

// OnDisconnect unregisters the session. It is safe to call more than once.
func (n *Namespace) OnDisconnect(id string) {
	n.registry.Unregister(id)
}

// OnClientCommand dispatches a command received from a subscriber.
// "keypress" takes one string argument, which is written to the device as
// is. Unknown commands are ignored.
func (n *Namespace) OnClientCommand(name string, args []json.RawMessage) error {
	if name != CommandKeypress {
		n.logger.Debug("ignoring unknown client command", "command", name)
		return nil
	}
	if len(args) != 1 {
		return fmt.Errorf("keypress: want 1 argument, got %d", len(args))
	}
	var key string
	if err := json.Unmarshal(args[0], &key); err != nil {
		return fmt.Errorf("keypress: argument must be a string: %w", err)
	}
	if err := n.device.SendToDevice([]byte(key)); err != nil {
		return fmt.Errorf("keypress: %w", err)
	}
	return nil
}
