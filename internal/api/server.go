package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/nerrad567/scene-rotator/internal/audit"
	"github.com/nerrad567/scene-rotator/internal/infrastructure/config"
	"github.com/nerrad567/scene-rotator/internal/infrastructure/logging"
	"github.com/nerrad567/scene-rotator/internal/obs"
	"github.com/nerrad567/scene-rotator/internal/rotation"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// SceneSource lists the scenes of the connected OBS instance.
type SceneSource interface {
	ListScenes(ctx context.Context) ([]obs.SceneInfo, error)
	CurrentScene(ctx context.Context) (string, error)
	Connected() bool
}

// GroupPersister saves the group mapping after API edits.
type GroupPersister interface {
	SaveDebounced()
}

// QueueStats exposes host task queue counters for /metrics.
type QueueStats interface {
	Pending() int
	Completed() uint64
	IsRunning() bool
}

// ConnectionChecker reports the state of an optional broker connection.
type ConnectionChecker interface {
	IsConnected() bool
}

// HistoryReader queries recorded rotation events.
type HistoryReader interface {
	List(ctx context.Context, filter audit.Filter) (*audit.ListResult, error)
}

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config    config.APIConfig
	WS        config.WebSocketConfig
	Security  config.SecurityConfig
	Logger    *logging.Logger
	Store     *rotation.GroupStore
	Scheduler *rotation.Scheduler
	Executor  *rotation.SwitchExecutor
	Reporter  *rotation.ErrorReporter
	Scenes    SceneSource       // optional: GET /scenes returns 503 without it
	Persister GroupPersister    // optional: group edits stay in memory without it
	Queue     QueueStats        // optional
	MQTT      ConnectionChecker // optional
	History   HistoryReader     // optional: GET /history returns 503 without it
	Hub       *Hub              // If set, the server uses this hub instead of creating its own
	Version   string
}

// Server is the HTTP API server.
//
// It manages the HTTP listener, routes, middleware, and WebSocket hub.
// The server is created with New() and started with Start().
type Server struct {
	cfg       config.APIConfig
	wsCfg     config.WebSocketConfig
	secCfg    config.SecurityConfig
	logger    *logging.Logger
	store     *rotation.GroupStore
	scheduler *rotation.Scheduler
	executor  *rotation.SwitchExecutor
	reporter  *rotation.ErrorReporter
	scenes    SceneSource
	persister GroupPersister
	queue     QueueStats
	mqtt      ConnectionChecker
	history   HistoryReader
	version   string
	startTime time.Time

	hub         *Hub
	externalHub bool // true if hub was injected externally
	limiters    *ipRateLimiter

	mu       sync.Mutex
	server   *http.Server
	listener net.Listener
	cancel   context.CancelFunc // cancels background goroutines on Close()
}

// New creates a new API server with the given dependencies.
//
// The server is not started until Start() is called.
//
// Parameters:
//   - deps: Required dependencies (config, logger, rotation components)
//
// Returns:
//   - *Server: Configured server ready to start
//   - error: If required dependencies are missing
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Store == nil || deps.Scheduler == nil || deps.Executor == nil || deps.Reporter == nil {
		return nil, fmt.Errorf("rotation store, scheduler, executor and reporter are required")
	}

	s := &Server{
		cfg:       deps.Config,
		wsCfg:     deps.WS,
		secCfg:    deps.Security,
		logger:    deps.Logger,
		store:     deps.Store,
		scheduler: deps.Scheduler,
		executor:  deps.Executor,
		reporter:  deps.Reporter,
		scenes:    deps.Scenes,
		persister: deps.Persister,
		queue:     deps.Queue,
		mqtt:      deps.MQTT,
		history:   deps.History,
		version:   deps.Version,
		startTime: time.Now(),
	}

	if deps.Hub != nil {
		s.hub = deps.Hub
		s.externalHub = true
	} else {
		s.hub = NewHub(deps.WS, deps.Logger)
	}

	if deps.Security.RateLimit.Enabled && deps.Security.RateLimit.RequestsPerMinute > 0 {
		s.limiters = newIPRateLimiter(deps.Security.RateLimit.RequestsPerMinute)
	}

	return s, nil
}

// Hub returns the WebSocket hub, for use as a rotation.Broadcaster.
func (s *Server) Hub() *Hub {
	return s.hub
}

// Handler returns the HTTP handler with all routes and middleware.
func (s *Server) Handler() http.Handler {
	return s.buildRouter()
}

// Start begins listening for HTTP connections.
//
// It starts the WebSocket hub (unless injected), binds the listener
// synchronously so port errors surface here, and serves in a background
// goroutine. The server can be stopped with Close().
//
// Parameters:
//   - ctx: Parent context for background goroutines
//
// Returns:
//   - error: If the server fails to start (port in use, etc.)
func (s *Server) Start(ctx context.Context) error {
	addr := net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.Port))
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", addr, err)
	}

	// Create internal context so Close() can stop background goroutines
	// independently of the parent context.
	srvCtx, cancel := context.WithCancel(ctx)

	if !s.externalHub {
		go s.hub.Run(srvCtx)
	}
	if s.limiters != nil {
		go s.limiters.cleanupLoop(srvCtx)
	}

	srv := &http.Server{
		Handler:           s.buildRouter(),
		ReadTimeout:       time.Duration(s.cfg.Timeouts.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(s.cfg.Timeouts.Read) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
	}

	s.mu.Lock()
	s.server = srv
	s.listener = ln
	s.cancel = cancel
	s.mu.Unlock()

	s.logger.Info("API server starting", "address", ln.Addr().String())
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()

	return nil
}

// Addr returns the bound listener address, or "" before Start.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Close gracefully shuts down the API server.
//
// It waits up to 10 seconds for in-flight requests to complete,
// then forcefully closes remaining connections.
//
// Returns:
//   - error: If shutdown encounters an error
func (s *Server) Close() error {
	s.mu.Lock()
	srv, cancel := s.server, s.cancel
	s.mu.Unlock()

	if srv == nil {
		return nil
	}

	// Cancel background goroutines (hub, limiter cleanup)
	if cancel != nil {
		cancel()
	}

	ctx, done := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer done()

	s.logger.Info("API server shutting down")
	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down API server: %w", err)
	}
	return nil
}

// HealthCheck verifies the API server is running and responsive.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//
// Returns:
//   - error: nil if healthy, error describing the issue otherwise
func (s *Server) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("api health check: %w", ctx.Err())
	default:
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.server == nil {
		return fmt.Errorf("api server not started")
	}

	return nil
}
