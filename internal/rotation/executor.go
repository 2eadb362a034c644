package rotation

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// defaultSwitchTimeout bounds a single resolve + set-current round trip on the host.
const defaultSwitchTimeout = 10 * time.Second

// SwitchResult is broadcast after every switch attempt.
type SwitchResult struct {
	SwitchRequest
	OK        bool   `json:"ok"`
	Error     string `json:"error,omitempty"`
	LatencyMS int64  `json:"latency_ms"`
}

// SwitchExecutor is the boundary between the scheduler and the host.
//
// Dispatch hands the request to the host task context and returns at once;
// the scheduler never blocks on, or learns the result of, a switch. On the
// task context the scene name is resolved to a live handle and made current.
// Every failure ends in a report to the ErrorReporter.
type SwitchExecutor struct {
	host     SceneHost
	runner   TaskRunner
	reporter *ErrorReporter
	logger   Logger
	timeout  time.Duration
	now      func() time.Time

	hooksMu sync.RWMutex
	hub     Broadcaster
	metrics MetricsRecorder
}

// NewSwitchExecutor creates an executor that runs switches on runner against host.
func NewSwitchExecutor(host SceneHost, runner TaskRunner, reporter *ErrorReporter, logger Logger) *SwitchExecutor {
	if logger == nil {
		logger = noopLogger{}
	}
	if reporter == nil {
		reporter = NewErrorReporter(logger)
	}
	return &SwitchExecutor{
		host:     host,
		runner:   runner,
		reporter: reporter,
		logger:   logger,
		timeout:  defaultSwitchTimeout,
		now:      time.Now,
		hub:      noopBroadcaster{},
	}
}

// SetTimeout overrides the per-switch host timeout.
func (e *SwitchExecutor) SetTimeout(d time.Duration) {
	if d > 0 {
		e.timeout = d
	}
}

// SetBroadcaster sets where switch results are published.
func (e *SwitchExecutor) SetBroadcaster(b Broadcaster) {
	if b == nil {
		b = noopBroadcaster{}
	}
	e.hooksMu.Lock()
	e.hub = b
	e.hooksMu.Unlock()
}

// SetMetrics sets the recorder for switch outcomes (may be nil).
func (e *SwitchExecutor) SetMetrics(m MetricsRecorder) {
	e.hooksMu.Lock()
	e.metrics = m
	e.hooksMu.Unlock()
}

// Apply requests a manual switch to sceneName.
func (e *SwitchExecutor) Apply(sceneName string) {
	e.Dispatch(SwitchRequest{Scene: sceneName, Source: SourceManual})
}

// Dispatch schedules a switch on the host task context. It never blocks.
func (e *SwitchExecutor) Dispatch(req SwitchRequest) {
	err := e.runner.Schedule(func(ctx context.Context) {
		e.execute(ctx, req)
	})
	if err != nil {
		e.reporter.Report(KindDispatchDropped, fmt.Errorf("dropping switch to %q: %w", req.Scene, err))
	}
}

// execute runs on the host task context.
func (e *SwitchExecutor) execute(ctx context.Context, req SwitchRequest) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	start := e.now()

	defer func() {
		if r := recover(); r != nil {
			e.fail(req, start, KindSwitchFailed, fmt.Errorf("switching to %q: panic: %v", req.Scene, r))
		}
	}()

	handle, err := e.host.ResolveScene(ctx, req.Scene)
	if err != nil {
		if errors.Is(err, ErrSceneNotFound) {
			e.fail(req, start, KindSceneNotFound, fmt.Errorf("%w: %s", ErrSceneNotFound, req.Scene))
			return
		}
		e.fail(req, start, KindHostUnavailable, fmt.Errorf("resolving scene %q: %w", req.Scene, err))
		return
	}

	if err := e.host.SetCurrentScene(ctx, handle); err != nil {
		e.fail(req, start, KindSwitchFailed, fmt.Errorf("switching to %q: %w", req.Scene, err))
		return
	}

	latency := e.now().Sub(start)
	e.logger.Info("scene switched",
		"scene", req.Scene,
		"group", req.Group,
		"source", string(req.Source),
		"latency_ms", latency.Milliseconds(),
	)

	hub, metrics := e.hooks()
	if metrics != nil {
		metrics.RecordSwitch(req.Group, req.Scene, true, latency)
	}
	hub.Broadcast(ChannelSwitched, SwitchResult{
		SwitchRequest: req,
		OK:            true,
		LatencyMS:     latency.Milliseconds(),
	})
}

// fail reports a failed attempt and records it.
func (e *SwitchExecutor) fail(req SwitchRequest, start time.Time, kind Kind, err error) {
	latency := e.now().Sub(start)
	e.reporter.Report(kind, err)

	hub, metrics := e.hooks()
	if metrics != nil {
		metrics.RecordSwitch(req.Group, req.Scene, false, latency)
	}
	hub.Broadcast(ChannelSwitchFailed, SwitchResult{
		SwitchRequest: req,
		OK:            false,
		Error:         err.Error(),
		LatencyMS:     latency.Milliseconds(),
	})
}

func (e *SwitchExecutor) hooks() (Broadcaster, MetricsRecorder) {
	e.hooksMu.RLock()
	defer e.hooksMu.RUnlock()
	return e.hub, e.metrics
}
