// Package actuation turns accepted commands into timed motor actions.
//
// Every actuation is tagged with the command id that produced it. Motors only
// ever reflect the newest id: older dispatches are dropped, a newer dispatch
// cancels the pending auto-stop, and an auto-stop that fires anyway re-checks
// the store's current id before stopping.
package actuation

import (
	"log/slog"
	"sync"
	"time"

	"rover-bridge/metrics"
	"rover-bridge/motor"
)

// Scheduler owns the motors on behalf of the control state.
type Scheduler struct {
	actuator  motor.Actuator
	currentID func() uint64
	logger    *slog.Logger

	mu      sync.Mutex
	latest  uint64
	timer   *time.Timer
	timerID uint64
	closed  bool
	wg      sync.WaitGroup
}

// New returns a scheduler. currentID reports the id of the newest applied
// command; it may be nil when the caller does not track one.
func New(actuator motor.Actuator, currentID func() uint64, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		actuator:  actuator,
		currentID: currentID,
		logger:    logger.With("component", "actuation"),
	}
}

// Dispatch actuates in the background and returns immediately.
func (s *Scheduler) Dispatch(id uint64, left, right float64, duration time.Duration) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.wg.Add(1)
	s.mu.Unlock()

	go func() {
		defer s.wg.Done()
		s.Actuate(id, left, right, duration)
	}()
}

// Actuate applies the action for command id synchronously. With zero power or
// a non-positive duration the motors are set once; otherwise they run for
// duration and then stop unless superseded.
func (s *Scheduler) Actuate(id uint64, left, right float64, duration time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	if id <= s.latest {
		metrics.ActuationStale.Inc()
		s.logger.Debug("Dropping stale actuation", "command_id", id, "latest", s.latest)
		return
	}
	s.latest = id
	s.cancelTimerLocked()

	logger := s.logger.With("command_id", id)
	if left == 0 && right == 0 {
		s.call(logger, "stop", s.actuator.Stop)
		return
	}
	s.call(logger, "drive", func() error { return s.actuator.Drive(left, right) })
	if duration <= 0 {
		return
	}

	s.timerID = id
	s.timer = time.AfterFunc(duration, func() { s.autoStop(id) })
	metrics.ActuationActive.Set(1)
	logger.Debug("Timed actuation started", "left", left, "right", right, "duration", duration)
}

func (s *Scheduler) autoStop(id uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed || s.timer == nil || s.timerID != id {
		metrics.ActuationStale.Inc()
		return
	}
	s.timer = nil
	metrics.ActuationActive.Set(0)

	if s.currentID != nil {
		if cur := s.currentID(); cur != id {
			metrics.ActuationStale.Inc()
			s.logger.Debug("Auto-stop superseded", "command_id", id, "current", cur)
			return
		}
	}
	s.call(s.logger.With("command_id", id), "auto-stop", s.actuator.Stop)
}

func (s *Scheduler) cancelTimerLocked() {
	if s.timer == nil {
		return
	}
	s.timer.Stop()
	s.timer = nil
	metrics.ActuationActive.Set(0)
}

func (s *Scheduler) call(logger *slog.Logger, op string, fn func() error) {
	if err := fn(); err != nil {
		metrics.MotorErrors.Inc()
		logger.Error("Motor command failed", "op", op, slog.Any("error", err))
	}
}

// Close cancels any pending auto-stop, stops the motors and waits for
// in-flight dispatches.
func (s *Scheduler) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.cancelTimerLocked()
	err := s.actuator.Stop()
	s.mu.Unlock()

	s.wg.Wait()
	return err
}
