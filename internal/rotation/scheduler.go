package rotation

import (
	"fmt"
	"math"
	"sync"
	"time"
)

// MaxIntervalMS is the longest interval, in milliseconds, that fits a time.Duration.
const MaxIntervalMS = math.MaxInt64 / int64(time.Millisecond)

// Ticker is the periodic timer driving rotation.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

// TickerFactory arms a new Ticker with period d.
type TickerFactory func(d time.Duration) Ticker

// timeTicker adapts *time.Ticker to Ticker.
type timeTicker struct {
	t *time.Ticker
}

func (t timeTicker) C() <-chan time.Time { return t.t.C }
func (t timeTicker) Stop()               { t.t.Stop() }

// NewTimeTicker is the default TickerFactory.
func NewTimeTicker(d time.Duration) Ticker {
	return timeTicker{t: time.NewTicker(d)}
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithInterval sets the initial rotation interval. Non-positive values are ignored.
func WithInterval(d time.Duration) Option {
	return func(s *Scheduler) {
		if d > 0 {
			s.interval = d
		}
	}
}

// WithTickerFactory replaces the ticker source, mainly for tests.
func WithTickerFactory(f TickerFactory) Option {
	return func(s *Scheduler) {
		if f != nil {
			s.newTicker = f
		}
	}
}

// WithLogger sets the scheduler logger.
func WithLogger(l Logger) Option {
	return func(s *Scheduler) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithBroadcaster sets where tick and state events are published.
func WithBroadcaster(b Broadcaster) Option {
	return func(s *Scheduler) {
		if b != nil {
			s.hub = b
		}
	}
}

// Scheduler owns the rotation timer, the active group selection and the cursor.
//
// The active group is held by name only and re-resolved against the
// GroupStore on every tick. Removing the active group from the store clears
// the selection synchronously.
//
// Thread Safety: all methods are safe for concurrent use. State is mutated
// under one mutex, from the ticker goroutine and from API calls.
type Scheduler struct {
	store      *GroupStore
	dispatcher Dispatcher
	reporter   *ErrorReporter
	logger     Logger
	hub        Broadcaster
	newTicker  TickerFactory

	mu          sync.Mutex
	state       State
	activeGroup string
	cursor      int
	interval    time.Duration
	lastScene   string
	ticks       uint64

	// generation identifies the armed ticker; ticks from older generations are dropped.
	generation uint64
	ticker     Ticker
	stopCh     chan struct{}

	wg sync.WaitGroup
}

// NewScheduler creates a stopped scheduler with no active group.
func NewScheduler(store *GroupStore, dispatcher Dispatcher, reporter *ErrorReporter, opts ...Option) *Scheduler {
	s := &Scheduler{
		store:      store,
		dispatcher: dispatcher,
		reporter:   reporter,
		logger:     noopLogger{},
		hub:        noopBroadcaster{},
		newTicker:  NewTimeTicker,
		state:      StateStopped,
		interval:   DefaultInterval,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.reporter == nil {
		s.reporter = NewErrorReporter(s.logger)
	}

	store.OnRemove(s.handleGroupRemoved)
	return s
}

// Start arms the rotation timer. Calling Start while running rearms the
// timer at the current interval; exactly one timer is ever armed.
func (s *Scheduler) Start() {
	s.mu.Lock()
	wasRunning := s.state == StateRunning
	s.state = StateRunning
	s.armLocked()
	status := s.statusLocked()
	s.mu.Unlock()

	if wasRunning {
		s.logger.Info("rotation rearmed", "interval_ms", status.IntervalMS)
	} else {
		s.logger.Info("rotation started",
			"interval_ms", status.IntervalMS,
			"group", status.ActiveGroup,
		)
	}
	s.hub.Broadcast(ChannelState, status)
}

// Stop disarms the rotation timer. Stopping a stopped scheduler is a no-op.
// Switches already handed to the executor are allowed to complete.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if s.state != StateRunning {
		s.mu.Unlock()
		return
	}
	s.state = StateStopped
	s.disarmLocked()
	status := s.statusLocked()
	s.mu.Unlock()

	s.logger.Info("rotation stopped")
	s.hub.Broadcast(ChannelState, status)
}

// Close stops the scheduler and waits for the ticker goroutine to exit.
func (s *Scheduler) Close() {
	s.Stop()
	s.wg.Wait()
}

// StartGroup selects a group and starts rotation in one step.
func (s *Scheduler) StartGroup(name string) error {
	if err := s.SetActiveGroup(name); err != nil {
		return err
	}
	s.Start()
	return nil
}

// SetActiveGroup selects the group to rotate through and resets the cursor.
// An unknown name is reported and leaves the current selection unchanged.
func (s *Scheduler) SetActiveGroup(name string) error {
	s.mu.Lock()
	if _, ok := s.store.Lookup(name); !ok {
		s.mu.Unlock()
		err := fmt.Errorf("%w: %s", ErrGroupNotFound, name)
		s.reporter.Report(KindGroupNotFound, err)
		return err
	}
	s.activeGroup = name
	s.cursor = 0
	status := s.statusLocked()
	s.mu.Unlock()

	s.logger.Info("active group set", "group", name)
	s.hub.Broadcast(ChannelState, status)
	return nil
}

// ClearActiveGroup deselects the active group. Ticks become no-ops.
func (s *Scheduler) ClearActiveGroup() {
	s.mu.Lock()
	s.activeGroup = ""
	s.cursor = 0
	status := s.statusLocked()
	s.mu.Unlock()

	s.hub.Broadcast(ChannelState, status)
}

// SetIntervalMS changes the rotation period given in milliseconds.
// Values outside 1..MaxIntervalMS are rejected and reported.
func (s *Scheduler) SetIntervalMS(ms int64) error {
	if ms <= 0 || ms > MaxIntervalMS {
		err := fmt.Errorf("%w: %dms", ErrInvalidInterval, ms)
		s.reporter.Report(KindInvalidInterval, err)
		return err
	}
	return s.SetInterval(time.Duration(ms) * time.Millisecond)
}

// SetInterval changes the rotation period. A running timer is rearmed
// immediately with the new value. Periods under a millisecond are rejected.
func (s *Scheduler) SetInterval(d time.Duration) error {
	if d < time.Millisecond {
		err := fmt.Errorf("%w: %v", ErrInvalidInterval, d)
		s.reporter.Report(KindInvalidInterval, err)
		return err
	}

	s.mu.Lock()
	s.interval = d
	if s.state == StateRunning {
		s.armLocked()
	}
	status := s.statusLocked()
	s.mu.Unlock()

	s.logger.Info("rotation interval set", "interval_ms", d.Milliseconds())
	s.hub.Broadcast(ChannelState, status)
	return nil
}

// Status returns a snapshot of the scheduler state.
func (s *Scheduler) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.statusLocked()
}

// Running reports whether the timer is armed.
func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state == StateRunning
}

func (s *Scheduler) statusLocked() Status {
	return Status{
		State:       s.state,
		ActiveGroup: s.activeGroup,
		Cursor:      s.cursor,
		IntervalMS:  s.interval.Milliseconds(),
		LastScene:   s.lastScene,
		Ticks:       s.ticks,
	}
}

// armLocked replaces any armed ticker with a fresh one at s.interval.
func (s *Scheduler) armLocked() {
	s.disarmLocked()

	s.generation++
	gen := s.generation
	t := s.newTicker(s.interval)
	stop := make(chan struct{})
	s.ticker = t
	s.stopCh = stop

	s.wg.Add(1)
	go s.loop(gen, t, stop)
}

func (s *Scheduler) disarmLocked() {
	if s.ticker == nil {
		return
	}
	s.ticker.Stop()
	close(s.stopCh)
	s.ticker = nil
	s.stopCh = nil
}

// loop delivers ticks for one ticker generation until stopped.
func (s *Scheduler) loop(gen uint64, t Ticker, stop <-chan struct{}) {
	defer s.wg.Done()
	for {
		select {
		case <-stop:
			return
		case <-t.C():
			s.tick(gen)
		}
	}
}

// tick performs one rotation step for the given ticker generation.
func (s *Scheduler) tick(gen uint64) {
	s.mu.Lock()
	if gen != s.generation || s.state != StateRunning {
		s.mu.Unlock()
		return
	}
	req, ok := s.advanceLocked()
	s.mu.Unlock()

	if !ok {
		return
	}

	s.logger.Debug("rotation tick", "group", req.Group, "scene", req.Scene, "cursor", req.Cursor)
	s.dispatcher.Dispatch(req)
	s.hub.Broadcast(ChannelTick, req)
}

// advanceLocked moves the cursor one step and returns the scene to switch to.
// The cursor moves before the switch is attempted so a failing scene cannot
// stall rotation. Returns false when there is nothing to rotate.
func (s *Scheduler) advanceLocked() (SwitchRequest, bool) {
	s.ticks++

	if s.activeGroup == "" {
		return SwitchRequest{}, false
	}
	group, ok := s.store.Lookup(s.activeGroup)
	if !ok || len(group.Scenes) == 0 {
		return SwitchRequest{}, false
	}

	s.cursor = (s.cursor + 1) % len(group.Scenes)
	scene := group.Scenes[s.cursor]
	s.lastScene = scene

	return SwitchRequest{
		Group:  group.Name,
		Scene:  scene,
		Cursor: s.cursor,
		Source: SourceRotation,
	}, true
}

// handleGroupRemoved clears the selection when the active group is removed.
func (s *Scheduler) handleGroupRemoved(name string) {
	s.mu.Lock()
	if s.activeGroup != name {
		s.mu.Unlock()
		return
	}
	s.activeGroup = ""
	s.cursor = 0
	status := s.statusLocked()
	s.mu.Unlock()

	s.logger.Info("active group removed", "group", name)
	s.hub.Broadcast(ChannelState, status)
}
