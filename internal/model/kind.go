package model

// EventKind is the canonical classification of a panel event.
type EventKind string

// Named panel events. Each maps to a fixed description and criticality.
const (
	KindArm            EventKind = "ARM"
	KindDisarm         EventKind = "DISARM"
	KindPowerChanged   EventKind = "POWER_CHANGED"
	KindAlarm          EventKind = "ALARM"
	KindFire           EventKind = "FIRE"
	KindBypass         EventKind = "BYPASS"
	KindBoot           EventKind = "BOOT"
	KindConfigReceived EventKind = "CONFIG_RECEIVED"
	KindZoneFault      EventKind = "ZONE_FAULT"
	KindZoneRestore    EventKind = "ZONE_RESTORE"
	KindLowBattery     EventKind = "LOW_BATTERY"
	KindPanic          EventKind = "PANIC"
	KindRelayChanged   EventKind = "RELAY_CHANGED"
)

// Message kinds carry the raw decoded frame. They are broadcast but never
// written to the event log.
const (
	KindMessage         EventKind = "MESSAGE"
	KindLRRMessage      EventKind = "LRR_MESSAGE"
	KindRFXMessage      EventKind = "RFX_MESSAGE"
	KindExpanderMessage EventKind = "EXPANDER_MESSAGE"
)

var namedKinds = []EventKind{
	KindArm, KindDisarm, KindPowerChanged, KindAlarm, KindFire, KindBypass,
	KindBoot, KindConfigReceived, KindZoneFault, KindZoneRestore,
	KindLowBattery, KindPanic, KindRelayChanged,
}

var messageKinds = []EventKind{
	KindMessage, KindLRRMessage, KindRFXMessage, KindExpanderMessage,
}

// String returns the string representation of the kind.
func (k EventKind) String() string {
	return string(k)
}

// IsValid checks whether the kind is a member of the closed enumeration.
func (k EventKind) IsValid() bool {
	return k.IsNamed() || k.IsMessage()
}

// IsMessage reports whether k is one of the four raw message kinds.
func (k EventKind) IsMessage() bool {
	switch k {
	case KindMessage, KindLRRMessage, KindRFXMessage, KindExpanderMessage:
		return true
	}
	return false
}

// IsNamed reports whether k is a named (loggable) event kind.
func (k EventKind) IsNamed() bool {
	for _, n := range namedKinds {
		if n == k {
			return true
		}
	}
	return false
}

// NamedKinds returns the named event kinds in declaration order.
func NamedKinds() []EventKind {
	out := make([]EventKind, len(namedKinds))
	copy(out, namedKinds)
	return out
}

// MessageKinds returns the raw message kinds.
func MessageKinds() []EventKind {
	out := make([]EventKind, len(messageKinds))
	copy(out, messageKinds)
	return out
}

// AllKinds returns every member of the enumeration, named kinds first.
func AllKinds() []EventKind {
	return append(NamedKinds(), messageKinds...)
}
