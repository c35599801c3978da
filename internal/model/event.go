package model

import "time"

// RawEvent is a single classified panel event. It is produced by the device
// adapter, consumed once by the bridge and not retained.
type RawEvent struct {
	Kind    EventKind `json:"kind"`
	Sender  string    `json:"sender"`
	Payload Payload   `json:"payload"`
}

// EventLogEntry is a persisted record of a named panel event. Timestamp is
// assigned by the store at insert time.
type EventLogEntry struct {
	ID        int64     `json:"id"`
	Type      EventKind `json:"type"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}
