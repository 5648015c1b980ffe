package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"rover-bridge/models"
	"rover-bridge/state"
	"rover-bridge/transport"
)

type dispatch struct {
	id          uint64
	left, right float64
	duration    time.Duration
}

type fakeDispatcher struct {
	mu    sync.Mutex
	calls []dispatch
}

func (f *fakeDispatcher) Dispatch(id uint64, left, right float64, duration time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, dispatch{id, left, right, duration})
}

type fakeRelay struct {
	mu       sync.Mutex
	forwards []transport.Request
	stops    int
	reply    json.RawMessage
	err      error
	delay    time.Duration
}

func (f *fakeRelay) wait(ctx context.Context) error {
	if f.delay == 0 {
		return nil
	}
	select {
	case <-time.After(f.delay):
		return nil
	case <-ctx.Done():
		return &transport.RemoteUnavailableError{Op: transport.OpStatus, Target: "fake", Err: ctx.Err()}
	}
}

func (f *fakeRelay) Forward(ctx context.Context, req transport.Request) (json.RawMessage, error) {
	f.mu.Lock()
	f.forwards = append(f.forwards, req)
	f.mu.Unlock()
	if err := f.wait(ctx); err != nil {
		return nil, err
	}
	return f.reply, f.err
}

func (f *fakeRelay) Stop(ctx context.Context) (json.RawMessage, error) {
	f.mu.Lock()
	f.stops++
	f.mu.Unlock()
	return f.reply, f.err
}

func (f *fakeRelay) Status(ctx context.Context) (json.RawMessage, error) {
	if err := f.wait(ctx); err != nil {
		return nil, err
	}
	return f.reply, f.err
}

func (f *fakeRelay) Type() transport.TransportType { return transport.TransportTypeHTTP }
func (f *fakeRelay) Close() error                  { return nil }

type fakeJournal struct {
	mu      sync.Mutex
	records []models.CommandRecord
	err     error
}

func (f *fakeJournal) Record(_ context.Context, r *models.CommandRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.records = append(f.records, *r)
	return nil
}

func (f *fakeJournal) Recent(_ context.Context, limit int) ([]models.CommandRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	var out []models.CommandRecord
	for i := len(f.records) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, f.records[i])
	}
	return out, nil
}

func (f *fakeJournal) Count(context.Context) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return int64(len(f.records)), nil
}

type fakePublisher struct {
	mu    sync.Mutex
	snaps []state.Snapshot
}

func (f *fakePublisher) Publish(_ context.Context, snap state.Snapshot) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.snaps = append(f.snaps, snap)
	return errors.New("broker down")
}

type failingPersister struct{}

func (failingPersister) Save(context.Context, state.Snapshot) error {
	return errors.New("disk full")
}

type recordingActuator struct {
	mu    sync.Mutex
	calls []string
}

func (r *recordingActuator) Drive(left, right float64) error {
	r.record(fmt.Sprintf("drive(%g,%g)", left, right))
	return nil
}

func (r *recordingActuator) Stop() error {
	r.record("stop")
	return nil
}

func (r *recordingActuator) record(c string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, c)
}

func (r *recordingActuator) snapshot() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.calls...)
}
