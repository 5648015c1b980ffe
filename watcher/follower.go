// Package watcher follows a state file written by another process and
// actuates the motors whenever a new command lands in it.
package watcher

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"rover-bridge/command"
	"rover-bridge/state"

	"github.com/fsnotify/fsnotify"
)

// Dispatcher is satisfied by *actuation.Scheduler.
type Dispatcher interface {
	Dispatch(id uint64, left, right float64, duration time.Duration)
}

// Follower watches the directory holding the state file, since the writer
// replaces the file by rename and a watch on the file itself would be lost.
type Follower struct {
	path   string
	logger *slog.Logger

	// fallback bounds a drive whose snapshot carries no duration, as a
	// local-mode writer never records one.
	fallback time.Duration

	mu         sync.Mutex
	dispatcher Dispatcher
	lastID     uint64
	primed     bool

	// seq numbers actuations locally. The writer's command_id restarts at
	// zero when it restarts, which would otherwise look stale.
	seq atomic.Uint64
}

func NewFollower(path string, fallback time.Duration, logger *slog.Logger) *Follower {
	return &Follower{
		path:     filepath.Clean(path),
		fallback: fallback,
		logger:   logger.With("component", "follower", "path", path),
	}
}

// SetDispatcher wires the actuation target. It must be called before Run.
func (f *Follower) SetDispatcher(d Dispatcher) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.dispatcher = d
}

// CurrentID returns the local id of the newest actuation.
func (f *Follower) CurrentID() uint64 {
	return f.seq.Load()
}

// Run blocks until ctx is done. The command already in the file at start is
// recorded but not actuated.
func (f *Follower) Run(ctx context.Context) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer w.Close()

	dir := filepath.Dir(f.path)
	if err := w.Add(dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", dir, err)
	}
	f.logger.Info("Following state file")

	f.prime()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != f.path || !ev.Has(fsnotify.Create|fsnotify.Write|fsnotify.Rename) {
				continue
			}
			f.Check()
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			f.logger.Error("Watcher error", slog.Any("error", err))
		}
	}
}

func (f *Follower) prime() {
	snap, err := state.ReadFile(f.path)
	f.mu.Lock()
	defer f.mu.Unlock()
	f.primed = true
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			f.logger.Warn("Failed to read state file", slog.Any("error", err))
		}
		return
	}
	f.lastID = snap.CommandID
	f.logger.Info("Initial state", "command", snap.Command.String(), "command_id", snap.CommandID)
}

// Check reads the file and actuates if its command_id changed. It reports
// whether an actuation was dispatched.
func (f *Follower) Check() bool {
	snap, err := state.ReadFile(f.path)
	if err != nil {
		// A Rename event for the old name can race the read.
		f.logger.Debug("State file not readable", slog.Any("error", err))
		return false
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.primed && snap.CommandID == f.lastID {
		return false
	}
	f.primed = true
	f.lastID = snap.CommandID

	left, right := command.ToTank(snap.Command.String(), snap.Speed)
	duration := time.Duration(snap.Duration * float64(time.Second))
	if duration <= 0 {
		duration = f.fallback
	}
	id := f.seq.Add(1)
	f.logger.Info("New command", "command", snap.Command.String(), "command_id", snap.CommandID,
		"left", left, "right", right, "duration", duration)
	if f.dispatcher != nil {
		f.dispatcher.Dispatch(id, left, right, duration)
	}
	return true
}
