package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"rover-bridge/mqtt"
)

var (
	errRobotOffline = errors.New("robot announced offline")
	errNoState      = errors.New("no state received from robot yet")
)

// MQTTRelay forwards over the broker. Commands are published to the robot's
// control topics; status is the robot's retained state message.
type MQTTRelay struct {
	conn   mqtt.Conn
	topics mqtt.Topics
	logger *slog.Logger

	mu           sync.RWMutex
	state        json.RawMessage
	availability string
	ready        chan struct{}
	readyOnce    sync.Once
}

// NewMQTTRelay subscribes to the robot's state and availability topics.
func NewMQTTRelay(conn mqtt.Conn, topics mqtt.Topics, logger *slog.Logger) (*MQTTRelay, error) {
	mr := &MQTTRelay{
		conn:   conn,
		topics: topics,
		logger: logger.With("transport_type", "mqtt", "robot_id", topics.RobotID),
		ready:  make(chan struct{}),
	}
	if err := conn.Subscribe(topics.State(), mr.onState); err != nil {
		return nil, err
	}
	if err := conn.Subscribe(topics.Availability(), mr.onAvailability); err != nil {
		return nil, err
	}
	return mr, nil
}

func (mr *MQTTRelay) onState(_ string, payload []byte) {
	if !json.Valid(payload) {
		mr.logger.Warn("Ignoring non-JSON state message", "payload_size", len(payload))
		return
	}
	mr.mu.Lock()
	mr.state = append(json.RawMessage(nil), payload...)
	mr.mu.Unlock()
	mr.readyOnce.Do(func() { close(mr.ready) })
}

func (mr *MQTTRelay) onAvailability(_ string, payload []byte) {
	mr.mu.Lock()
	mr.availability = string(payload)
	mr.mu.Unlock()
	mr.logger.Info("Robot availability changed", "availability", string(payload))
}

// Forward publishes req to the set topic.
func (mr *MQTTRelay) Forward(ctx context.Context, req Request) (json.RawMessage, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal relay request: %w", err)
	}
	return mr.publish(ctx, OpForward, mr.topics.Set(), payload)
}

// Stop publishes an empty object to the stop topic.
func (mr *MQTTRelay) Stop(ctx context.Context) (json.RawMessage, error) {
	return mr.publish(ctx, OpStop, mr.topics.Stop(), []byte("{}"))
}

func (mr *MQTTRelay) publish(ctx context.Context, op, topic string, payload []byte) (reply json.RawMessage, err error) {
	start := time.Now()
	defer func() { observe(op, start, err) }()

	if mr.offline() {
		return nil, &RemoteUnavailableError{Op: op, Target: topic, Err: errRobotOffline}
	}
	if err := mr.conn.Publish(ctx, topic, payload, false); err != nil {
		return nil, &RemoteUnavailableError{Op: op, Target: topic, Err: err}
	}
	reply, _ = json.Marshal(map[string]any{"published": true, "topic": topic})
	return reply, nil
}

// Status returns the last retained state. Until the first message arrives it
// waits for ctx.
func (mr *MQTTRelay) Status(ctx context.Context) (reply json.RawMessage, err error) {
	start := time.Now()
	defer func() { observe(OpStatus, start, err) }()

	target := mr.topics.State()
	if mr.offline() {
		return nil, &RemoteUnavailableError{Op: OpStatus, Target: target, Err: errRobotOffline}
	}
	select {
	case <-mr.ready:
	case <-ctx.Done():
		return nil, &RemoteUnavailableError{Op: OpStatus, Target: target, Err: fmt.Errorf("%w: %v", errNoState, ctx.Err())}
	}

	mr.mu.RLock()
	defer mr.mu.RUnlock()
	return mr.state, nil
}

func (mr *MQTTRelay) offline() bool {
	mr.mu.RLock()
	defer mr.mu.RUnlock()
	return mr.availability == mqtt.Offline
}

func (mr *MQTTRelay) Type() TransportType {
	return TransportTypeMQTT
}

// Close is a no-op; the connection is owned by the caller.
func (mr *MQTTRelay) Close() error {
	return nil
}
