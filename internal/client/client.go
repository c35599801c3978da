// Package client talks to a running bridge: the HTTP API for the event log
// and status, and the websocket namespace for live events and keypresses.
package client

import (
	"context"
	"time"

	"github.com/alfredjeanlab/ad2web/internal/model"
)

// BridgeClient is the request/response surface of the bridge used by the
// CLI commands. It is implemented by HTTPClient.
type BridgeClient interface {
	Health(ctx context.Context) (string, error)
	Status(ctx context.Context) (*model.BridgeStatus, error)
	ListEvents(ctx context.Context, req *ListEventsRequest) ([]*model.EventLogEntry, error)
	Close() error
}

// ListEventsRequest holds parameters for querying the event log.
type ListEventsRequest struct {
	Types []string
	Since time.Time
	Limit int
}
