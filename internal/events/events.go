// Package events classifies panel events and formats them into the wire
// envelope broadcast to subscribers.
package events

import (
	"encoding/json"
	"fmt"

	"github.com/alfredjeanlab/ad2web/internal/model"
)

// Namespace is the logical endpoint every envelope is addressed to.
const Namespace = "/alarmdecoder"

// Channel names carried in Envelope.Channel.
const (
	ChannelMessage = "message"
	ChannelEvent   = "event"
)

// eventMessages is the canonical description table for named kinds.
var eventMessages = map[model.EventKind]string{
	model.KindArm:            "The alarm was armed.",
	model.KindDisarm:         "The alarm was disarmed.",
	model.KindPowerChanged:   "Power status has changed.",
	model.KindAlarm:          "Alarming!  Oh no!",
	model.KindFire:           "Fire!  Oh no!",
	model.KindBypass:         "A zone has been bypassed.",
	model.KindBoot:           "The AlarmDecoder has finished booting.",
	model.KindConfigReceived: "AlarmDecoder has been configuratorized.",
	model.KindZoneFault:      "A zone has been faulted.",
	model.KindZoneRestore:    "A zone has been restored.",
	model.KindLowBattery:     "Low battery detected.  You should probably mount it higher.",
	model.KindPanic:          "Panic!  Ants are invading the pantry!",
	model.KindRelayChanged:   "Some relay or another has changed.",
}

var criticalKinds = map[model.EventKind]bool{
	model.KindPowerChanged: true,
	model.KindAlarm:        true,
	model.KindBypass:       true,
	model.KindArm:          true,
	model.KindDisarm:       true,
	model.KindZoneFault:    true,
	model.KindZoneRestore:  true,
	model.KindFire:         true,
	model.KindPanic:        true,
}

// UnknownKindError reports a kind missing from the description table.
type UnknownKindError struct {
	Kind model.EventKind
}

func (e *UnknownKindError) Error() string {
	return fmt.Sprintf("unknown event kind %q", string(e.Kind))
}

// Message returns the static description for a named kind.
func Message(kind model.EventKind) (string, error) {
	msg, ok := eventMessages[kind]
	if !ok {
		return "", &UnknownKindError{Kind: kind}
	}
	return msg, nil
}

// IsCritical reports whether kind is operationally significant.
func IsCritical(kind model.EventKind) bool {
	return criticalKinds[kind]
}

// Classify builds the RawEvent for a decoded event. A nil payload, or one
// whose variant belongs to another kind, is replaced by the kind's empty
// variant. It has no side effects.
func Classify(kind model.EventKind, sender string, payload model.Payload) model.RawEvent {
	if payload == nil || payload.Kind() != kind {
		payload = model.EmptyPayload(kind)
	}
	return model.RawEvent{
		Kind:    kind,
		Sender:  sender,
		Payload: payload,
	}
}

// PayloadKindError is returned by Format when an event carries the payload
// variant of a different kind.
type PayloadKindError struct {
	Kind    model.EventKind
	Payload model.EventKind
}

func (e *PayloadKindError) Error() string {
	return fmt.Sprintf("event kind %q carries %q payload", string(e.Kind), string(e.Payload))
}

// Format serializes ev into an Envelope. Message kinds go out on the
// "message" channel, named kinds on "event". When the kind is not in the
// description table a degraded envelope is still returned alongside an
// *UnknownKindError so the caller can log and broadcast it.
func Format(ev model.RawEvent) (Envelope, error) {
	if ev.Payload != nil && ev.Payload.Kind() != ev.Kind {
		return Envelope{}, &PayloadKindError{Kind: ev.Kind, Payload: ev.Payload.Kind()}
	}
	channel := ChannelEvent
	var lookupErr error
	if ev.Kind.IsMessage() {
		channel = ChannelMessage
	} else if _, err := Message(ev.Kind); err != nil {
		lookupErr = err
	}

	args, err := marshalPayload(ev.Payload)
	if err != nil {
		return Envelope{}, fmt.Errorf("marshal %s payload: %w", ev.Kind, err)
	}
	return newEnvelope(channel, args), lookupErr
}

func marshalPayload(p model.Payload) (json.RawMessage, error) {
	if p == nil {
		return json.RawMessage(`{}`), nil
	}
	data, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}
	return json.RawMessage(data), nil
}
