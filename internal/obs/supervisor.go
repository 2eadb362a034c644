package obs

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/nerrad567/scene-rotator/internal/infrastructure/config"
	"github.com/nerrad567/scene-rotator/internal/rotation"
)

// Backoff defaults used when the configuration leaves them zero.
const (
	DefaultInitialDelay = time.Second
	DefaultMaxDelay     = 30 * time.Second
)

// DialFunc opens one OBS session.
type DialFunc func(ctx context.Context, opts Options, logger Logger) (*Client, error)

// Backoff controls redial pacing.
type Backoff struct {
	InitialDelay time.Duration
	MaxDelay     time.Duration

	// MaxAttempts is the number of consecutive failed dials before Run
	// gives up. Zero retries forever.
	MaxAttempts int
}

// next doubles d up to MaxDelay.
func (b Backoff) next(d time.Duration) time.Duration {
	d *= 2
	if d > b.MaxDelay {
		d = b.MaxDelay
	}
	return d
}

// Supervisor keeps one OBS session alive and serves as the rotation scene host.
//
// Host calls are delegated to the current session. While OBS is unreachable
// they fail with rotation.ErrHostUnavailable, which the executor reports
// without stopping rotation.
//
// Thread Safety: all methods are safe for concurrent use.
type Supervisor struct {
	opts    Options
	backoff Backoff
	logger  Logger
	dial    DialFunc
	sleep   func(ctx context.Context, d time.Duration) error

	mu     sync.RWMutex
	client *Client

	hookMu       sync.RWMutex
	onConnect    func()
	onDisconnect func(error)
	onEvent      func(Event)
}

// Compile-time check.
var _ rotation.SceneHost = (*Supervisor)(nil)

// NewSupervisor creates a supervisor from the obs section of the config.
func NewSupervisor(cfg config.OBSConfig, logger Logger) *Supervisor {
	opts := Options{
		URL:            cfg.URL,
		Password:       cfg.Password,
		RequestTimeout: time.Duration(cfg.RequestTimeout) * time.Second,
		SceneCacheTTL:  time.Duration(cfg.SceneCacheTTL) * time.Second,
	}
	backoff := Backoff{
		InitialDelay: time.Duration(cfg.Reconnect.InitialDelay) * time.Second,
		MaxDelay:     time.Duration(cfg.Reconnect.MaxDelay) * time.Second,
		MaxAttempts:  cfg.Reconnect.MaxAttempts,
	}
	return NewSupervisorWithOptions(opts, backoff, logger)
}

// NewSupervisorWithOptions creates a supervisor from explicit options.
func NewSupervisorWithOptions(opts Options, backoff Backoff, logger Logger) *Supervisor {
	if logger == nil {
		logger = noopLogger{}
	}
	if backoff.InitialDelay <= 0 {
		backoff.InitialDelay = DefaultInitialDelay
	}
	if backoff.MaxDelay < backoff.InitialDelay {
		backoff.MaxDelay = max(DefaultMaxDelay, backoff.InitialDelay)
	}
	return &Supervisor{
		opts:    opts,
		backoff: backoff,
		logger:  logger,
		dial:    Dial,
		sleep:   sleepContext,
	}
}

// SetDialFunc replaces the dialer, mainly for tests.
func (s *Supervisor) SetDialFunc(fn DialFunc) {
	if fn != nil {
		s.dial = fn
	}
}

// SetOnConnect sets a callback invoked after each successful handshake.
func (s *Supervisor) SetOnConnect(fn func()) {
	s.hookMu.Lock()
	s.onConnect = fn
	s.hookMu.Unlock()
}

// SetOnDisconnect sets a callback invoked when a session ends.
func (s *Supervisor) SetOnDisconnect(fn func(error)) {
	s.hookMu.Lock()
	s.onDisconnect = fn
	s.hookMu.Unlock()
}

// SetOnEvent sets a callback for OBS events on every session.
func (s *Supervisor) SetOnEvent(fn func(Event)) {
	s.hookMu.Lock()
	s.onEvent = fn
	s.hookMu.Unlock()
}

// Run dials OBS and redials whenever the session ends, until ctx is done.
//
// Returns:
//   - error: nil on context cancellation, ErrGaveUp after MaxAttempts failed dials
func (s *Supervisor) Run(ctx context.Context) error {
	delay := s.backoff.InitialDelay
	failures := 0

	for {
		client, err := s.dial(ctx, s.opts, s.logger)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			failures++
			s.logger.Warn("OBS connection failed",
				"url", s.opts.URL,
				"attempt", failures,
				"retry_in", delay.String(),
				"error", err,
			)
			if s.backoff.MaxAttempts > 0 && failures >= s.backoff.MaxAttempts {
				return fmt.Errorf("%w after %d attempts: %w", ErrGaveUp, failures, err)
			}
			if err := s.sleep(ctx, delay); err != nil {
				return nil
			}
			delay = s.backoff.next(delay)
			continue
		}

		failures = 0
		delay = s.backoff.InitialDelay
		s.attach(client)

		select {
		case <-ctx.Done():
			s.detach(client)
			_ = client.Close()
			return nil
		case <-client.Done():
			s.detach(client)
			s.notifyDisconnect(client.Err())
		}
	}
}

func (s *Supervisor) attach(c *Client) {
	s.hookMu.RLock()
	onConnect, onEvent := s.onConnect, s.onEvent
	s.hookMu.RUnlock()

	if onEvent != nil {
		c.OnEvent(onEvent)
	}

	s.mu.Lock()
	s.client = c
	s.mu.Unlock()

	if onConnect != nil {
		onConnect()
	}
}

func (s *Supervisor) detach(c *Client) {
	s.mu.Lock()
	if s.client == c {
		s.client = nil
	}
	s.mu.Unlock()
}

func (s *Supervisor) notifyDisconnect(err error) {
	s.logger.Warn("OBS session ended", "error", err)
	s.hookMu.RLock()
	fn := s.onDisconnect
	s.hookMu.RUnlock()
	if fn != nil {
		fn(err)
	}
}

// current returns the live session or rotation.ErrHostUnavailable.
func (s *Supervisor) current() (*Client, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.client == nil {
		return nil, rotation.ErrHostUnavailable
	}
	return s.client, nil
}

// Connected reports whether an identified session is live.
func (s *Supervisor) Connected() bool {
	c, err := s.current()
	if err != nil {
		return false
	}
	select {
	case <-c.Done():
		return false
	default:
		return true
	}
}

// ResolveScene implements rotation.SceneHost.
func (s *Supervisor) ResolveScene(ctx context.Context, name string) (rotation.SceneHandle, error) {
	c, err := s.current()
	if err != nil {
		return rotation.SceneHandle{}, err
	}
	return c.ResolveScene(ctx, name)
}

// SetCurrentScene implements rotation.SceneHost.
func (s *Supervisor) SetCurrentScene(ctx context.Context, scene rotation.SceneHandle) error {
	c, err := s.current()
	if err != nil {
		return err
	}
	return c.SetCurrentScene(ctx, scene)
}

// ListScenes returns the scenes of the connected OBS instance.
func (s *Supervisor) ListScenes(ctx context.Context) ([]SceneInfo, error) {
	c, err := s.current()
	if err != nil {
		return nil, err
	}
	return c.ListScenes(ctx)
}

// CurrentScene returns the program scene of the connected OBS instance.
func (s *Supervisor) CurrentScene(ctx context.Context) (string, error) {
	c, err := s.current()
	if err != nil {
		return "", err
	}
	return c.CurrentScene(ctx)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
