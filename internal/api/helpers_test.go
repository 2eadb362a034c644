package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/scene-rotator/internal/infrastructure/config"
	"github.com/nerrad567/scene-rotator/internal/infrastructure/logging"
	"github.com/nerrad567/scene-rotator/internal/obs"
	"github.com/nerrad567/scene-rotator/internal/rotation"
)

const testSecret = "test-secret-key-at-least-32-characters-long"

// ─── Mocks ─────────────────────────────────────────────────────────

// fakeHost is a SceneHost and SceneSource backed by a fixed scene list.
type fakeHost struct {
	mu        sync.Mutex
	scenes    []string
	current   string
	connected bool
	listErr   error
	switched  []string
}

func newFakeHost(scenes ...string) *fakeHost {
	return &fakeHost{scenes: scenes, connected: true}
}

func (h *fakeHost) ResolveScene(_ context.Context, name string) (rotation.SceneHandle, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, s := range h.scenes {
		if s == name {
			return rotation.SceneHandle{Name: name}, nil
		}
	}
	return rotation.SceneHandle{}, rotation.ErrSceneNotFound
}

func (h *fakeHost) SetCurrentScene(_ context.Context, scene rotation.SceneHandle) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.current = scene.Name
	h.switched = append(h.switched, scene.Name)
	return nil
}

func (h *fakeHost) ListScenes(context.Context) ([]obs.SceneInfo, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.listErr != nil {
		return nil, h.listErr
	}
	out := make([]obs.SceneInfo, 0, len(h.scenes))
	for i, s := range h.scenes {
		out = append(out, obs.SceneInfo{Name: s, Index: i})
	}
	return out, nil
}

func (h *fakeHost) CurrentScene(context.Context) (string, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.current, nil
}

func (h *fakeHost) Connected() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.connected
}

func (h *fakeHost) switches() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.switched...)
}

// inlineRunner runs tasks synchronously on the caller's goroutine.
type inlineRunner struct{}

func (inlineRunner) Schedule(task func(ctx context.Context)) error {
	task(context.Background())
	return nil
}

// countingPersister counts SaveDebounced calls.
type countingPersister struct {
	mu    sync.Mutex
	saves int
}

func (p *countingPersister) SaveDebounced() {
	p.mu.Lock()
	p.saves++
	p.mu.Unlock()
}

func (p *countingPersister) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.saves
}

// ─── Fixture ───────────────────────────────────────────────────────

type testEnv struct {
	srv       *Server
	router    http.Handler
	store     *rotation.GroupStore
	scheduler *rotation.Scheduler
	reporter  *rotation.ErrorReporter
	host      *fakeHost
	persister *countingPersister
}

type envOption func(*Deps)

func withSecurity(sec config.SecurityConfig) envOption {
	return func(d *Deps) { d.Security = sec }
}

func withPanel() envOption {
	return func(d *Deps) { d.Config.Panel.Enabled = true }
}

func withoutScenes() envOption {
	return func(d *Deps) { d.Scenes = nil }
}

func testLogger() *logging.Logger {
	return logging.NewWithWriter(config.LoggingConfig{Level: "error", Format: "text"}, "test", io.Discard)
}

// newTestEnv wires a Server to real rotation components and a fake OBS host.
func newTestEnv(t *testing.T, opts ...envOption) *testEnv {
	t.Helper()

	log := testLogger()
	wsCfg := config.WebSocketConfig{MaxMessageSize: 8192, PingInterval: 30, PongTimeout: 10}
	hub := NewHub(wsCfg, log)

	store := rotation.NewGroupStore()
	reporter := rotation.NewErrorReporter(nil)
	reporter.SetBroadcaster(hub)
	host := newFakeHost("Intro", "Main", "Outro")

	executor := rotation.NewSwitchExecutor(host, inlineRunner{}, reporter, nil)
	executor.SetBroadcaster(hub)
	scheduler := rotation.NewScheduler(store, executor, reporter,
		rotation.WithInterval(time.Hour),
		rotation.WithBroadcaster(hub),
	)
	t.Cleanup(scheduler.Close)

	persister := &countingPersister{}
	deps := Deps{
		Config: config.APIConfig{
			Host:     "127.0.0.1",
			Port:     0,
			Timeouts: config.APITimeoutConfig{Read: 5, Write: 5, Idle: 5},
		},
		WS:        wsCfg,
		Logger:    log,
		Store:     store,
		Scheduler: scheduler,
		Executor:  executor,
		Reporter:  reporter,
		Scenes:    host,
		Persister: persister,
		Queue:     rotation.NewTaskQueue(4, nil),
		Hub:       hub,
		Version:   "test",
	}
	for _, opt := range opts {
		opt(&deps)
	}

	srv, err := New(deps)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	return &testEnv{
		srv:       srv,
		router:    srv.Handler(),
		store:     store,
		scheduler: scheduler,
		reporter:  reporter,
		host:      host,
		persister: persister,
	}
}

// do sends a request through the router. body may be nil, a string or a value to JSON-encode.
func (e *testEnv) do(t *testing.T, method, path string, body any, headers ...string) *httptest.ResponseRecorder {
	t.Helper()

	var r io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		r = bytes.NewBufferString(b)
	default:
		data, err := json.Marshal(b)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		r = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, path, r)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}

	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func decodeBody[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(w.Body.Bytes(), &v); err != nil {
		t.Fatalf("unmarshal %q: %v", w.Body.String(), err)
	}
	return v
}

func wantStatus(t *testing.T, w *httptest.ResponseRecorder, want int) {
	t.Helper()
	if w.Code != want {
		t.Fatalf("status = %d, want %d (body: %s)", w.Code, want, w.Body.String())
	}
}

func newRecorderRequest(t *testing.T, h http.Handler, method, path string) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(method, path, nil))
	return w
}
