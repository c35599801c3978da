package model

import "time"

// BridgeStatus is the payload of GET /v1/status.
type BridgeStatus struct {
	Device      DeviceStatus     `json:"device"`
	Subscribers SubscriberCounts `json:"subscribers"`
	StartedAt   time.Time        `json:"started_at"`
	UptimeSecs  float64          `json:"uptime_secs"`
}

// DeviceStatus describes the panel link.
type DeviceStatus struct {
	Addr       string    `json:"addr"`
	Connected  bool      `json:"connected"`
	Healthy    bool      `json:"healthy"` // false when the link has gone silent
	LastSeen   time.Time `json:"last_seen,omitzero"`
	LastKind   EventKind `json:"last_kind,omitempty"`
	EventCount int64     `json:"event_count"`
	Error      string    `json:"error,omitempty"`
}

// SubscriberCounts breaks the registry size down by transport.
type SubscriberCounts struct {
	Total     int `json:"total"`
	Websocket int `json:"websocket"`
	SSE       int `json:"sse"`
}
