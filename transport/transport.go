// Package transport relays control requests to a remote on-device service.
package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"rover-bridge/command"
	"rover-bridge/metrics"
)

// TransportType names a relay implementation.
type TransportType string

const (
	TransportTypeMQTT TransportType = "mqtt"
	TransportTypeHTTP TransportType = "http"
)

// Relay operations, used in errors and metric labels.
const (
	OpForward = "forward"
	OpStop    = "stop"
	OpStatus  = "status"
)

// Request is the body forwarded to the remote /control/set endpoint. It is
// built from the locally derived state, so the remote host sees the same
// canonical command.
type Request struct {
	command.Directional
	Command  string  `json:"command"`
	Speed    float64 `json:"speed"`
	Duration float64 `json:"duration,omitempty"`
}

// Relay reaches the remote robot host. Every call is one bounded attempt;
// failures are *RemoteUnavailableError.
type Relay interface {
	Forward(ctx context.Context, req Request) (json.RawMessage, error)
	Stop(ctx context.Context) (json.RawMessage, error)
	Status(ctx context.Context) (json.RawMessage, error)
	Type() TransportType
	Close() error
}

// RemoteUnavailableError reports a failed call to the remote host. It never
// fails the local request that triggered it.
type RemoteUnavailableError struct {
	Op     string
	Target string
	Err    error
}

func (e *RemoteUnavailableError) Error() string {
	return fmt.Sprintf("remote %s %s: %v", e.Op, e.Target, e.Err)
}

func (e *RemoteUnavailableError) Unwrap() error {
	return e.Err
}

func observe(op string, start time.Time, err error) {
	metrics.RelayRequests.WithLabelValues(op, metrics.Result(err)).Inc()
	metrics.RelayLatency.WithLabelValues(op).Observe(time.Since(start).Seconds())
}
