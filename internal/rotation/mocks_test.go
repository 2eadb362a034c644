package rotation

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// ─── Mock Dependencies ──────────────────────────────────────────────────────

// mockHost is an in-memory scene registry.
type mockHost struct {
	mu      sync.Mutex
	scenes  map[string]bool
	current string
	calls   []string

	resolveErr error // returned for every resolve when set
	setErr     error // returned for every set-current when set
	panicOn    string
}

func newMockHost(scenes ...string) *mockHost {
	h := &mockHost{scenes: make(map[string]bool)}
	for _, s := range scenes {
		h.scenes[s] = true
	}
	return h
}

func (h *mockHost) ResolveScene(_ context.Context, name string) (SceneHandle, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.resolveErr != nil {
		return SceneHandle{}, h.resolveErr
	}
	if name == h.panicOn {
		panic("boom")
	}
	if !h.scenes[name] {
		return SceneHandle{}, fmt.Errorf("%w: %s", ErrSceneNotFound, name)
	}
	return SceneHandle{Name: name, UUID: "uuid-" + name}, nil
}

func (h *mockHost) SetCurrentScene(_ context.Context, scene SceneHandle) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.setErr != nil {
		return h.setErr
	}
	h.current = scene.Name
	h.calls = append(h.calls, scene.Name)
	return nil
}

func (h *mockHost) switched() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]string, len(h.calls))
	copy(out, h.calls)
	return out
}

func (h *mockHost) removeScene(name string) {
	h.mu.Lock()
	delete(h.scenes, name)
	h.mu.Unlock()
}

// inlineRunner runs tasks synchronously on the caller.
type inlineRunner struct{}

func (inlineRunner) Schedule(task func(ctx context.Context)) error {
	task(context.Background())
	return nil
}

// rejectingRunner refuses every task.
type rejectingRunner struct{}

func (rejectingRunner) Schedule(func(ctx context.Context)) error {
	return ErrQueueFull
}

// recordingDispatcher captures requests without executing them.
type recordingDispatcher struct {
	mu   sync.Mutex
	reqs []SwitchRequest
}

func (d *recordingDispatcher) Dispatch(req SwitchRequest) {
	d.mu.Lock()
	d.reqs = append(d.reqs, req)
	d.mu.Unlock()
}

func (d *recordingDispatcher) scenes() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]string, 0, len(d.reqs))
	for _, r := range d.reqs {
		out = append(out, r.Scene)
	}
	return out
}

// recordingBroadcaster captures broadcast events.
type recordingBroadcaster struct {
	mu     sync.Mutex
	events []broadcastEvent
}

type broadcastEvent struct {
	Channel string
	Payload any
}

func (b *recordingBroadcaster) Broadcast(channel string, payload any) {
	b.mu.Lock()
	b.events = append(b.events, broadcastEvent{Channel: channel, Payload: payload})
	b.mu.Unlock()
}

func (b *recordingBroadcaster) count(channel string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for _, e := range b.events {
		if e.Channel == channel {
			n++
		}
	}
	return n
}

// recordingMetrics captures switch outcomes.
type recordingMetrics struct {
	mu      sync.Mutex
	ok      int
	failed  int
	latency []time.Duration
}

func (m *recordingMetrics) RecordSwitch(_, _ string, ok bool, latency time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if ok {
		m.ok++
	} else {
		m.failed++
	}
	m.latency = append(m.latency, latency)
}

// fakeTicker is a manually driven Ticker.
type fakeTicker struct {
	ch      chan time.Time
	period  time.Duration
	mu      sync.Mutex
	stopped bool
}

func (t *fakeTicker) C() <-chan time.Time { return t.ch }

func (t *fakeTicker) Stop() {
	t.mu.Lock()
	t.stopped = true
	t.mu.Unlock()
}

func (t *fakeTicker) isStopped() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stopped
}

// fakeTickerFactory records every ticker it arms.
type fakeTickerFactory struct {
	mu      sync.Mutex
	tickers []*fakeTicker
}

func (f *fakeTickerFactory) New(d time.Duration) Ticker {
	t := &fakeTicker{ch: make(chan time.Time), period: d}
	f.mu.Lock()
	f.tickers = append(f.tickers, t)
	f.mu.Unlock()
	return t
}

func (f *fakeTickerFactory) all() []*fakeTicker {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*fakeTicker, len(f.tickers))
	copy(out, f.tickers)
	return out
}

func (f *fakeTickerFactory) armed() []*fakeTicker {
	var out []*fakeTicker
	for _, t := range f.all() {
		if !t.isStopped() {
			out = append(out, t)
		}
	}
	return out
}

var errHostDown = errors.New("connection refused")
