package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"rover-bridge/command"
	"rover-bridge/logging"
	"rover-bridge/state"
)

type published struct {
	topic    string
	payload  []byte
	retained bool
}

type fakeConn struct {
	mu        sync.Mutex
	handlers  map[string]Handler
	published []published
	err       error
}

func newFakeConn() *fakeConn {
	return &fakeConn{handlers: map[string]Handler{}}
}

func (f *fakeConn) Subscribe(topic string, h Handler) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handlers[topic] = h
	return nil
}

func (f *fakeConn) Publish(_ context.Context, topic string, payload []byte, retained bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.published = append(f.published, published{topic, payload, retained})
	return f.err
}

func (f *fakeConn) deliver(topic string, payload []byte) {
	f.mu.Lock()
	h := f.handlers[topic]
	f.mu.Unlock()
	h(topic, payload)
}

type fakeControl struct {
	mu      sync.Mutex
	sets    []command.Intent
	stops   int
	err     error
	release chan struct{}
	calls   chan struct{}
}

func newFakeControl() *fakeControl {
	return &fakeControl{calls: make(chan struct{}, 16)}
}

func (f *fakeControl) HandleSet(_ context.Context, in command.Intent) (state.Snapshot, error) {
	if f.release != nil {
		<-f.release
	}
	f.mu.Lock()
	f.sets = append(f.sets, in)
	n := len(f.sets)
	f.mu.Unlock()
	f.calls <- struct{}{}
	return state.Snapshot{CommandID: uint64(n)}, f.err
}

func (f *fakeControl) HandleStop(_ context.Context) (state.Snapshot, error) {
	f.mu.Lock()
	f.stops++
	f.mu.Unlock()
	f.calls <- struct{}{}
	return state.Snapshot{Command: command.Stop}, f.err
}

// wait blocks until n handler calls completed.
func (f *fakeControl) wait(t *testing.T, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		select {
		case <-f.calls:
		case <-time.After(2 * time.Second):
			t.Fatalf("Timed out after %d of %d handler calls", i, n)
		}
	}
}

func startListener(t *testing.T, conn *fakeConn, ctl *fakeControl) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	if err := NewListener(conn, testTopics, ctl, logging.Discard()).Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
}

var testTopics = Topics{Prefix: "rover", RobotID: "r1"}

func TestTopics(t *testing.T) {
	cases := map[string]string{
		testTopics.Set():          "rover/r1/control/set",
		testTopics.Stop():         "rover/r1/control/stop",
		testTopics.State():        "rover/r1/control/state",
		testTopics.Availability(): "rover/r1/availability",
	}
	for got, want := range cases {
		if got != want {
			t.Errorf("topic = %q, want %q", got, want)
		}
	}
}

func TestListenerAppliesSetAndStop(t *testing.T) {
	conn := newFakeConn()
	ctl := newFakeControl()
	startListener(t, conn, ctl)

	conn.deliver(testTopics.Set(), []byte(`{"up":true,"speed":0.8,"duration":1.0}`))
	conn.deliver(testTopics.Set(), []byte(`not json`))
	conn.deliver(testTopics.Stop(), nil)
	ctl.wait(t, 2)

	ctl.mu.Lock()
	defer ctl.mu.Unlock()
	if len(ctl.sets) != 1 {
		t.Fatalf("Expected one decoded intent, got %d", len(ctl.sets))
	}
	in := ctl.sets[0]
	if !in.Up || in.Speed == nil || *in.Speed != 0.8 || in.Duration == nil || *in.Duration != 1.0 {
		t.Errorf("Unexpected intent: %+v", in)
	}
	if ctl.stops != 1 {
		t.Errorf("Expected one stop, got %d", ctl.stops)
	}
}

func TestListenerSurvivesHandlerError(t *testing.T) {
	conn := newFakeConn()
	ctl := newFakeControl()
	ctl.err = errors.New("validation")
	startListener(t, conn, ctl)

	conn.deliver(testTopics.Set(), []byte(`{"speed":3}`))
	conn.deliver(testTopics.Set(), []byte(`{"speed":0.3}`))
	ctl.wait(t, 2)
}

func TestListenerDoesNotBlockDelivery(t *testing.T) {
	conn := newFakeConn()
	ctl := newFakeControl()
	ctl.release = make(chan struct{})
	startListener(t, conn, ctl)

	delivered := make(chan struct{})
	go func() {
		conn.deliver(testTopics.Set(), []byte(`{"speed":0.1}`))
		conn.deliver(testTopics.Set(), []byte(`{"speed":0.2}`))
		close(delivered)
	}()
	select {
	case <-delivered:
	case <-time.After(2 * time.Second):
		t.Fatal("Delivery blocked on a slow handler")
	}

	close(ctl.release)
	ctl.wait(t, 2)
	ctl.mu.Lock()
	defer ctl.mu.Unlock()
	if *ctl.sets[0].Speed != 0.1 || *ctl.sets[1].Speed != 0.2 {
		t.Errorf("Expected arrival order, got %v then %v", *ctl.sets[0].Speed, *ctl.sets[1].Speed)
	}
}

func TestStatePublisherRetains(t *testing.T) {
	conn := newFakeConn()
	p := NewStatePublisher(conn, testTopics)

	snap := state.Snapshot{Command: command.Left, Speed: 0.5, CommandID: 7}
	if err := p.Publish(context.Background(), snap); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}
	if len(conn.published) != 1 {
		t.Fatalf("Expected one publish, got %d", len(conn.published))
	}
	msg := conn.published[0]
	if msg.topic != testTopics.State() || !msg.retained {
		t.Errorf("Expected retained publish on state topic, got %+v", msg)
	}
	var decoded state.Snapshot
	if err := json.Unmarshal(msg.payload, &decoded); err != nil || decoded != snap {
		t.Errorf("Payload %s does not decode to %+v (err %v)", msg.payload, snap, err)
	}
}
