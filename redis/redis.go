package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"rover-bridge/config"
	"rover-bridge/state"

	"github.com/go-redis/redis/v8"
)

// StateKey holds the mirrored control state. A single SET replaces the value
// atomically, so readers see either the old or the new record.
const StateKey = "rover:control:state"

// ErrNoState is returned by Load when nothing has been mirrored yet.
var ErrNoState = errors.New("no mirrored state")

// StateMirror copies every snapshot into Redis so other hosts can read the
// current control state.
type StateMirror struct {
	client *redis.Client
	key    string
	logger *slog.Logger
}

// NewStateMirror connects to Redis and verifies the connection.
func NewStateMirror(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*StateMirror, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr(),
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	m := newStateMirror(rdb, cfg.RobotID, logger)

	if err := m.Ping(ctx); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	m.logger.Info("Redis connected successfully", "addr", cfg.RedisAddr(), "key", m.key)
	return m, nil
}

func newStateMirror(rdb *redis.Client, robotID string, logger *slog.Logger) *StateMirror {
	key := StateKey
	if robotID != "" {
		key = fmt.Sprintf("%s:%s", StateKey, robotID)
	}
	return &StateMirror{
		client: rdb,
		key:    key,
		logger: logger.With("component", "redis_mirror"),
	}
}

// Key returns the Redis key the mirror writes.
func (m *StateMirror) Key() string {
	return m.key
}

// Save implements state.Persister.
func (m *StateMirror) Save(ctx context.Context, snap state.Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}
	if err := m.client.Set(ctx, m.key, data, 0).Err(); err != nil {
		return fmt.Errorf("failed to save state to Redis: %w", err)
	}
	return nil
}

// Load returns the mirrored snapshot.
func (m *StateMirror) Load(ctx context.Context) (state.Snapshot, error) {
	var snap state.Snapshot
	val, err := m.client.Get(ctx, m.key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return snap, ErrNoState
		}
		return snap, fmt.Errorf("failed to get state from Redis: %w", err)
	}
	if err := json.Unmarshal(val, &snap); err != nil {
		return snap, fmt.Errorf("failed to unmarshal state: %w", err)
	}
	return snap, nil
}

// Fresh reports an error when the mirror lags behind the command id want.
// Before the first command of this process any mirrored value is accepted,
// since ids restart with every run.
func (m *StateMirror) Fresh(ctx context.Context, want uint64) error {
	snap, err := m.Load(ctx)
	if errors.Is(err, ErrNoState) {
		if want == 0 {
			return nil
		}
		return fmt.Errorf("mirror is empty, want command_id %d", want)
	}
	if err != nil {
		return err
	}
	if snap.CommandID < want {
		return fmt.Errorf("mirror is stale: command_id %d, want %d", snap.CommandID, want)
	}
	return nil
}

// Ping checks the connection.
func (m *StateMirror) Ping(ctx context.Context) error {
	return m.client.Ping(ctx).Err()
}

func (m *StateMirror) Close() error {
	return m.client.Close()
}
