package api

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/nerrad567/scene-rotator/internal/auth"
	"github.com/nerrad567/scene-rotator/internal/infrastructure/config"
	"github.com/nerrad567/scene-rotator/internal/infrastructure/logging"
	"github.com/nerrad567/scene-rotator/internal/rotation"
)

// ─── Construction ──────────────────────────────────────────────────

func TestNew_RequiresDependencies(t *testing.T) {
	if _, err := New(Deps{}); err == nil {
		t.Error("New() without logger should fail")
	}
	if _, err := New(Deps{Logger: testLogger()}); err == nil {
		t.Error("New() without rotation components should fail")
	}
}

func TestStartAndClose(t *testing.T) {
	env := newTestEnv(t)

	if err := env.srv.HealthCheck(context.Background()); err == nil {
		t.Error("HealthCheck() before Start should fail")
	}
	if err := env.srv.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer env.srv.Close()

	if err := env.srv.HealthCheck(context.Background()); err != nil {
		t.Errorf("HealthCheck() error = %v", err)
	}

	resp, err := http.Get(fmt.Sprintf("http://%s/api/v1/health", env.srv.Addr()))
	if err != nil {
		t.Fatalf("GET /health: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("health status = %d, want 200", resp.StatusCode)
	}

	if err := env.srv.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
}

func TestClose_NotStarted(t *testing.T) {
	env := newTestEnv(t)
	if err := env.srv.Close(); err != nil {
		t.Errorf("Close() on unstarted server error = %v", err)
	}
}

// ─── Health Endpoint Tests ─────────────────────────────────────────

func TestHealth(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodGet, "/api/v1/health", nil)
	wantStatus(t, w, http.StatusOK)

	resp := decodeBody[map[string]any](t, w)
	if resp["status"] != "ok" {
		t.Errorf("status = %v, want ok", resp["status"])
	}
	if resp["version"] != "test" {
		t.Errorf("version = %v, want test", resp["version"])
	}
	if resp["obs_connected"] != true {
		t.Errorf("obs_connected = %v, want true", resp["obs_connected"])
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q, want application/json", ct)
	}
}

// ─── Middleware Tests ──────────────────────────────────────────────

func TestRequestID_Generated(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodGet, "/api/v1/health", nil)
	if got := w.Header().Get("X-Request-ID"); len(got) != 36 {
		t.Errorf("X-Request-ID = %q, want a UUID", got)
	}
}

func TestRequestID_PreservesClient(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodGet, "/api/v1/health", nil, "X-Request-ID", "client-123")
	if got := w.Header().Get("X-Request-ID"); got != "client-123" {
		t.Errorf("X-Request-ID = %q, want %q", got, "client-123")
	}
}

func TestCORS_Preflight(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodOptions, "/api/v1/rotation/enable", nil, "Origin", "http://localhost:3000")
	wantStatus(t, w, http.StatusNoContent)
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:3000" {
		t.Errorf("ACAO = %q, want %q", got, "http://localhost:3000")
	}
	if env.scheduler.Running() {
		t.Error("preflight must not reach the handler")
	}
}

func TestCORS_DisallowedOrigin(t *testing.T) {
	env := newTestEnv(t)
	env.srv.cfg.CORS.AllowedOrigins = []string{"http://panel.local"}
	env.router = env.srv.Handler()

	w := env.do(t, http.MethodGet, "/api/v1/health", nil, "Origin", "http://evil.example")
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("ACAO = %q, want empty", got)
	}
}

func TestNotFound(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodGet, "/api/v1/nonexistent", nil)
	wantStatus(t, w, http.StatusNotFound)
	if e := decodeBody[Error](t, w); e.Code != ErrCodeNotFound {
		t.Errorf("code = %q, want %q", e.Code, ErrCodeNotFound)
	}
}

func TestPanelMountedBesideAPI(t *testing.T) {
	env := newTestEnv(t, withPanel())

	w := env.do(t, http.MethodGet, "/", nil)
	wantStatus(t, w, http.StatusOK)
	if !strings.Contains(w.Body.String(), "<!DOCTYPE html>") {
		t.Error("GET / did not serve the control panel")
	}

	w = env.do(t, http.MethodGet, "/api/v1/nonexistent", nil)
	wantStatus(t, w, http.StatusNotFound)
	if e := decodeBody[Error](t, w); e.Code != ErrCodeNotFound {
		t.Errorf("code = %q, want JSON not-found under /api/v1", e.Code)
	}
}

func TestPanelDisabledByDefault(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodGet, "/", nil)
	wantStatus(t, w, http.StatusNotFound)
}

func TestRecovery(t *testing.T) {
	env := newTestEnv(t)
	handler := env.srv.recoveryMiddleware(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	w := newRecorderRequest(t, handler, http.MethodGet, "/")
	wantStatus(t, w, http.StatusInternalServerError)
}

func TestLogging_MutationsCarrySubject(t *testing.T) {
	var buf bytes.Buffer
	logger := logging.NewWithWriter(config.LoggingConfig{Level: "info", Format: "json"}, "test", &buf)
	env := newTestEnv(t,
		withSecurity(config.SecurityConfig{JWT: config.JWTConfig{Secret: testSecret}}),
		func(d *Deps) { d.Logger = logger },
	)

	token, err := auth.GenerateToken("deck", auth.RoleOperator, testSecret, time.Hour)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}
	bearer := []string{"Authorization", "Bearer " + token}

	env.do(t, http.MethodGet, "/api/v1/status", nil, bearer...)
	if strings.Contains(buf.String(), "/api/v1/status") {
		t.Errorf("read logged at info: %s", buf.String())
	}

	env.do(t, http.MethodPost, "/api/v1/rotation/enable", nil, bearer...)
	out := buf.String()
	if !strings.Contains(out, `"path":"/api/v1/rotation/enable"`) || !strings.Contains(out, `"subject":"deck"`) {
		t.Errorf("mutation log = %s", out)
	}
}

func TestIsMutation(t *testing.T) {
	tests := map[string]bool{
		http.MethodGet:     false,
		http.MethodHead:    false,
		http.MethodOptions: false,
		http.MethodPost:    true,
		http.MethodPut:     true,
		http.MethodPatch:   true,
		http.MethodDelete:  true,
	}
	for method, want := range tests {
		if got := isMutation(method); got != want {
			t.Errorf("isMutation(%s) = %v, want %v", method, got, want)
		}
	}
}

func TestBodySizeLimit(t *testing.T) {
	env := newTestEnv(t)
	huge := fmt.Sprintf(`{"name":%q}`, make([]byte, maxRequestBodySize))

	w := env.do(t, http.MethodPost, "/api/v1/groups", huge)
	wantStatus(t, w, http.StatusBadRequest)
}

func TestRateLimit(t *testing.T) {
	env := newTestEnv(t, withSecurity(config.SecurityConfig{
		RateLimit: config.RateLimitConfig{Enabled: true, RequestsPerMinute: 6},
	}))

	wantStatus(t, env.do(t, http.MethodGet, "/api/v1/health", nil), http.StatusOK)

	w := env.do(t, http.MethodGet, "/api/v1/health", nil)
	wantStatus(t, w, http.StatusTooManyRequests)
	if e := decodeBody[Error](t, w); e.Code != ErrCodeRateLimited {
		t.Errorf("code = %q, want %q", e.Code, ErrCodeRateLimited)
	}
}

func TestIPRateLimiter_EvictIdle(t *testing.T) {
	l := newIPRateLimiter(60)
	now := time.Now()
	l.now = func() time.Time { return now }

	l.allow("10.0.0.1")
	l.allow("10.0.0.2")
	now = now.Add(limiterIdleTTL / 2)
	l.allow("10.0.0.2")
	now = now.Add(limiterIdleTTL/2 + time.Second)

	if n := l.evictIdle(); n != 1 {
		t.Errorf("evictIdle() = %d, want 1", n)
	}
	if l.size() != 1 {
		t.Errorf("size = %d, want 1", l.size())
	}
}

// ─── Authentication ────────────────────────────────────────────────

func TestAuth(t *testing.T) {
	env := newTestEnv(t, withSecurity(config.SecurityConfig{JWT: config.JWTConfig{Secret: testSecret}}))

	viewer, err := auth.GenerateToken("panel", auth.RoleViewer, testSecret, time.Hour)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}
	operator, err := auth.GenerateToken("deck", auth.RoleOperator, testSecret, time.Hour)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}

	tests := []struct {
		name   string
		method string
		path   string
		token  string
		want   int
	}{
		{"health is public", http.MethodGet, "/api/v1/health", "", http.StatusOK},
		{"missing token", http.MethodGet, "/api/v1/status", "", http.StatusUnauthorized},
		{"garbage token", http.MethodGet, "/api/v1/status", "garbage", http.StatusUnauthorized},
		{"viewer reads", http.MethodGet, "/api/v1/status", viewer, http.StatusOK},
		{"viewer lists groups", http.MethodGet, "/api/v1/groups", viewer, http.StatusOK},
		{"viewer cannot enable", http.MethodPost, "/api/v1/rotation/enable", viewer, http.StatusForbidden},
		{"viewer cannot switch", http.MethodPost, "/api/v1/scenes/Main/switch", viewer, http.StatusForbidden},
		{"operator enables", http.MethodPost, "/api/v1/rotation/enable", operator, http.StatusOK},
		{"operator switches", http.MethodPost, "/api/v1/scenes/Main/switch", operator, http.StatusAccepted},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var headers []string
			if tt.token != "" {
				headers = []string{"Authorization", "Bearer " + tt.token}
			}
			w := env.do(t, tt.method, tt.path, nil, headers...)
			wantStatus(t, w, tt.want)
		})
	}
}

// ─── Rotation control ──────────────────────────────────────────────

func TestStatus_Default(t *testing.T) {
	env := newTestEnv(t)
	env.host.current = "Intro"

	w := env.do(t, http.MethodGet, "/api/v1/status", nil)
	wantStatus(t, w, http.StatusOK)

	resp := decodeBody[StatusResponse](t, w)
	if resp.Rotation.State != rotation.StateStopped {
		t.Errorf("state = %q, want stopped", resp.Rotation.State)
	}
	if resp.Rotation.IntervalMS != time.Hour.Milliseconds() {
		t.Errorf("interval_ms = %d", resp.Rotation.IntervalMS)
	}
	if resp.LastError != nil {
		t.Errorf("last_error = %+v, want nil", resp.LastError)
	}
	if !resp.OBSConnected || resp.CurrentScene != "Intro" {
		t.Errorf("obs = %v / %q, want connected / Intro", resp.OBSConnected, resp.CurrentScene)
	}
}

func TestEnableDisable_Idempotent(t *testing.T) {
	env := newTestEnv(t)

	for i := 0; i < 2; i++ {
		w := env.do(t, http.MethodPost, "/api/v1/rotation/enable", nil)
		wantStatus(t, w, http.StatusOK)
		if s := decodeBody[rotation.Status](t, w); s.State != rotation.StateRunning {
			t.Errorf("enable #%d state = %q, want running", i+1, s.State)
		}
	}

	for i := 0; i < 2; i++ {
		w := env.do(t, http.MethodPost, "/api/v1/rotation/disable", nil)
		wantStatus(t, w, http.StatusOK)
		if s := decodeBody[rotation.Status](t, w); s.State != rotation.StateStopped {
			t.Errorf("disable #%d state = %q, want stopped", i+1, s.State)
		}
	}
}

func TestSetInterval(t *testing.T) {
	tests := []struct {
		name     string
		body     any
		want     int
		wantKind rotation.Kind
	}{
		{"valid", IntervalRequest{IntervalMS: 5000}, http.StatusOK, ""},
		{"zero", IntervalRequest{IntervalMS: 0}, http.StatusUnprocessableEntity, rotation.KindInvalidInterval},
		{"negative", IntervalRequest{IntervalMS: -1}, http.StatusUnprocessableEntity, rotation.KindInvalidInterval},
		{"overflow", IntervalRequest{IntervalMS: 18446744073710}, http.StatusUnprocessableEntity, rotation.KindInvalidInterval},
		{"max", IntervalRequest{IntervalMS: rotation.MaxIntervalMS}, http.StatusOK, ""},
		{"bad json", "{", http.StatusBadRequest, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)

			w := env.do(t, http.MethodPut, "/api/v1/rotation/interval", tt.body)
			wantStatus(t, w, tt.want)

			rep, ok := env.reporter.Last()
			if tt.wantKind == "" {
				if ok {
					t.Errorf("unexpected report %+v", rep)
				}
				return
			}
			if !ok || rep.Kind != tt.wantKind {
				t.Errorf("last report = %+v, want kind %q", rep, tt.wantKind)
			}
		})
	}
}

func TestSetInterval_Applies(t *testing.T) {
	env := newTestEnv(t)

	env.do(t, http.MethodPut, "/api/v1/rotation/interval", IntervalRequest{IntervalMS: 2500})
	if got := env.scheduler.Status().IntervalMS; got != 2500 {
		t.Errorf("interval_ms = %d, want 2500", got)
	}
}

func TestSetActive(t *testing.T) {
	env := newTestEnv(t)
	_ = env.store.AddGroup("Show")

	w := env.do(t, http.MethodPut, "/api/v1/rotation/active", ActiveGroupRequest{Group: "Show"})
	wantStatus(t, w, http.StatusOK)
	if s := decodeBody[rotation.Status](t, w); s.ActiveGroup != "Show" {
		t.Errorf("active_group = %q, want Show", s.ActiveGroup)
	}

	w = env.do(t, http.MethodDelete, "/api/v1/rotation/active", nil)
	wantStatus(t, w, http.StatusOK)
	if s := decodeBody[rotation.Status](t, w); s.ActiveGroup != "" {
		t.Errorf("active_group = %q after clear, want empty", s.ActiveGroup)
	}
}

func TestSetActive_UnknownGroup(t *testing.T) {
	env := newTestEnv(t)
	_ = env.store.AddGroup("Show")
	_ = env.scheduler.SetActiveGroup("Show")

	w := env.do(t, http.MethodPut, "/api/v1/rotation/active", ActiveGroupRequest{Group: "Ghost"})
	wantStatus(t, w, http.StatusNotFound)

	if got := env.scheduler.Status().ActiveGroup; got != "Show" {
		t.Errorf("active_group = %q, want Show unchanged", got)
	}
	if rep, ok := env.reporter.Last(); !ok || rep.Kind != rotation.KindGroupNotFound {
		t.Errorf("last report = %+v, want group_not_found", rep)
	}
}

func TestSetActive_MissingGroup(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodPut, "/api/v1/rotation/active", ActiveGroupRequest{})
	wantStatus(t, w, http.StatusBadRequest)
}

// ─── Last error ────────────────────────────────────────────────────

func TestLastError(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodGet, "/api/v1/errors/last", nil)
	wantStatus(t, w, http.StatusOK)
	if resp := decodeBody[map[string]any](t, w); resp["error"] != nil {
		t.Errorf("error = %v, want null", resp["error"])
	}

	env.reporter.Report(rotation.KindSceneNotFound, errors.New("rotation: scene not found: Gone"))

	w = env.do(t, http.MethodGet, "/api/v1/errors/last", nil)
	resp := decodeBody[struct {
		Error rotation.Report `json:"error"`
	}](t, w)
	if resp.Error.Kind != rotation.KindSceneNotFound || resp.Error.Severity != rotation.SeverityError {
		t.Errorf("error = %+v", resp.Error)
	}

	wantStatus(t, env.do(t, http.MethodDelete, "/api/v1/errors/last", nil), http.StatusNoContent)
	if _, ok := env.reporter.Last(); ok {
		t.Error("last error not cleared")
	}
}

// ─── Metrics ───────────────────────────────────────────────────────

func TestMetrics(t *testing.T) {
	env := newTestEnv(t)
	_ = env.store.AddGroup("A")

	w := env.do(t, http.MethodGet, "/api/v1/metrics", nil)
	wantStatus(t, w, http.StatusOK)

	m := decodeBody[SystemMetrics](t, w)
	if m.Version != "test" {
		t.Errorf("version = %q", m.Version)
	}
	if m.Rotation.Groups != 1 {
		t.Errorf("rotation.groups = %d, want 1", m.Rotation.Groups)
	}
	if m.Rotation.IntervalMS <= 0 || m.Rotation.Running {
		t.Errorf("rotation = %+v, want stopped with an interval", m.Rotation)
	}
	if m.Queue == nil {
		t.Fatal("queue metrics missing")
	}
	if !m.OBS.Connected {
		t.Error("obs.connected = false, want true")
	}
	if m.MQTT != nil {
		t.Errorf("mqtt = %+v, want omitted", m.MQTT)
	}
	if m.Runtime.Goroutines == 0 {
		t.Error("runtime.goroutines = 0")
	}
}
