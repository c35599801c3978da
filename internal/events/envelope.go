package events

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Envelope is the unit of broadcast. The zero value is not useful; build one
// with Format or NewEnvelope. Fields are unexported so an envelope cannot
// change after construction.
type Envelope struct {
	channel  string
	args     json.RawMessage
	endpoint string
}

// wireEnvelope is the JSON shape seen by subscribers.
type wireEnvelope struct {
	Type     string          `json:"type"`
	Name     string          `json:"name"`
	Args     json.RawMessage `json:"args"`
	Endpoint string          `json:"endpoint"`
}

// NewEnvelope builds an envelope for channel from already-serialized args.
func NewEnvelope(channel string, args json.RawMessage) Envelope {
	return newEnvelope(channel, append(json.RawMessage(nil), args...))
}

func newEnvelope(channel string, args json.RawMessage) Envelope {
	if len(args) == 0 {
		args = json.RawMessage(`null`)
	}
	return Envelope{channel: channel, args: args, endpoint: Namespace}
}

// Channel returns "message" or "event".
func (e Envelope) Channel() string { return e.channel }

// Endpoint returns the namespace the envelope is addressed to.
func (e Envelope) Endpoint() string { return e.endpoint }

// Args returns a copy of the serialized payload.
func (e Envelope) Args() json.RawMessage {
	return append(json.RawMessage(nil), e.args...)
}

// MarshalJSON encodes the envelope in its wire shape.
func (e Envelope) MarshalJSON() ([]byte, error) {
	return json.Marshal(wireEnvelope{
		Type:     "event",
		Name:     e.channel,
		Args:     e.args,
		Endpoint: e.endpoint,
	})
}

// UnmarshalJSON decodes the wire shape. It is used by clients reading the
// broadcast stream.
func (e *Envelope) UnmarshalJSON(data []byte) error {
	var w wireEnvelope
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	if w.Type != "event" {
		return fmt.Errorf("unexpected envelope type %q", w.Type)
	}
	e.channel = w.Name
	e.args = w.Args
	e.endpoint = w.Endpoint
	return nil
}

// Equal reports whether two envelopes carry the same channel, endpoint and
// byte-identical args.
func (e Envelope) Equal(other Envelope) bool {
	return e.channel == other.channel &&
		e.endpoint == other.endpoint &&
		bytes.Equal(e.args, other.args)
}
