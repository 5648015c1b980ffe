package mqtt

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"rover-bridge/command"
	"rover-bridge/state"
)

// Conn is the subset of Client used by the listener, publisher and relay.
type Conn interface {
	Subscribe(topic string, handler Handler) error
	Publish(ctx context.Context, topic string, payload []byte, retained bool) error
}

// ControlHandler applies intents received over MQTT.
type ControlHandler interface {
	HandleSet(ctx context.Context, in command.Intent) (state.Snapshot, error)
	HandleStop(ctx context.Context) (state.Snapshot, error)
}

// Listener feeds control messages from the broker into a ControlHandler.
// Messages are queued and applied in arrival order on a worker goroutine, so
// paho's router never waits on the control flow or its publishes.
type Listener struct {
	conn    Conn
	topics  Topics
	handler ControlHandler
	timeout time.Duration
	logger  *slog.Logger

	queue chan message
	done  <-chan struct{}
}

type message struct {
	topic   string
	payload []byte
	stop    bool
}

// NewListener returns a listener for the robot's set and stop topics.
func NewListener(conn Conn, topics Topics, handler ControlHandler, logger *slog.Logger) *Listener {
	return &Listener{
		conn:    conn,
		topics:  topics,
		handler: handler,
		timeout: 5 * time.Second,
		logger:  logger.With("component", "mqtt_listener"),
		queue:   make(chan message, 32),
	}
}

// Start runs the worker until ctx is done and subscribes to the control topics.
func (l *Listener) Start(ctx context.Context) error {
	l.done = ctx.Done()
	go l.work(ctx)

	if err := l.conn.Subscribe(l.topics.Set(), l.enqueue(false)); err != nil {
		return err
	}
	return l.conn.Subscribe(l.topics.Stop(), l.enqueue(true))
}

func (l *Listener) enqueue(stop bool) Handler {
	return func(topic string, payload []byte) {
		select {
		case l.queue <- message{topic: topic, payload: payload, stop: stop}:
		case <-l.done:
		}
	}
}

func (l *Listener) work(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case m := <-l.queue:
			if m.stop {
				l.onStop(ctx, m.topic)
			} else {
				l.onSet(ctx, m.topic, m.payload)
			}
		}
	}
}

func (l *Listener) onSet(ctx context.Context, topic string, payload []byte) {
	logger := l.logger.With("topic", topic)

	var in command.Intent
	if err := json.Unmarshal(payload, &in); err != nil {
		logger.Error("Failed to decode control message", slog.Any("error", err))
		return
	}

	ctx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()
	snap, err := l.handler.HandleSet(ctx, in)
	if err != nil {
		logger.Error("Failed to apply control message", "command_id", snap.CommandID, slog.Any("error", err))
		return
	}
	logger.Info("Control message applied", "command", snap.Command.String(), "command_id", snap.CommandID)
}

func (l *Listener) onStop(ctx context.Context, topic string) {
	ctx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()
	snap, err := l.handler.HandleStop(ctx)
	if err != nil {
		l.logger.Error("Failed to apply stop message", "topic", topic, slog.Any("error", err))
		return
	}
	l.logger.Info("Stop message applied", "topic", topic, "command_id", snap.CommandID)
}

// StatePublisher publishes every new snapshot, retained, so late subscribers
// see the current state immediately.
type StatePublisher struct {
	conn   Conn
	topics Topics
}

// NewStatePublisher returns a publisher for the robot's state topic.
func NewStatePublisher(conn Conn, topics Topics) *StatePublisher {
	return &StatePublisher{conn: conn, topics: topics}
}

// Publish sends snap to the state topic.
func (p *StatePublisher) Publish(ctx context.Context, snap state.Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}
	return p.conn.Publish(ctx, p.topics.State(), data, true)
}
