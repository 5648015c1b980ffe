package services

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"rover-bridge/metrics"
	"rover-bridge/state"
	"rover-bridge/transport"
)

// Aggregate merges the local snapshot with the robot host's status.
type Aggregate struct {
	Local          state.Snapshot  `json:"local"`
	RobotReachable bool            `json:"robot_reachable"`
	Robot          json.RawMessage `json:"robot"`
}

// StatusAggregator fetches the remote status with a bounded timeout and
// never fails: an unreachable robot becomes {ok:false, error}.
type StatusAggregator struct {
	store   *state.Store
	relay   transport.Relay
	timeout time.Duration
	logger  *slog.Logger
}

func NewStatusAggregator(store *state.Store, relay transport.Relay, timeout time.Duration, logger *slog.Logger) *StatusAggregator {
	return &StatusAggregator{
		store:   store,
		relay:   relay,
		timeout: timeout,
		logger:  logger.With("component", "status_aggregator"),
	}
}

func (a *StatusAggregator) Aggregate(ctx context.Context) Aggregate {
	agg := Aggregate{Local: a.store.Snapshot()}

	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	reply, err := a.relay.Status(ctx)
	if err != nil {
		metrics.RemoteReachable.Set(0)
		a.logger.Warn("Robot status unavailable", slog.Any("error", err))
		agg.Robot, _ = json.Marshal(map[string]any{"ok": false, "error": err.Error()})
		return agg
	}

	metrics.RemoteReachable.Set(1)
	agg.RobotReachable = true
	agg.Robot = reply
	return agg
}
