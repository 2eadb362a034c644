package rotation

import (
	"sync"
	"sync/atomic"
	"time"
)

// Kind classifies a reported failure.
type Kind string

// Failure kinds.
const (
	KindConfigIO        Kind = "config_io_error"
	KindGroupNotFound   Kind = "group_not_found"
	KindSceneNotFound   Kind = "scene_not_found"
	KindInvalidInterval Kind = "invalid_interval"
	KindHostUnavailable Kind = "host_unavailable"
	KindSwitchFailed    Kind = "switch_failed"
	KindDispatchDropped Kind = "dispatch_dropped"
)

// SeverityError is the severity attached to every report.
const SeverityError = "error"

// Report is an immutable last-error record.
type Report struct {
	Kind     Kind      `json:"kind"`
	Severity string    `json:"severity"`
	Message  string    `json:"message"`
	At       time.Time `json:"at"`
}

// ErrorReporter holds the single last-error slot shown to operators.
//
// Report may be called from the host task context while readers poll Last
// from API goroutines. Each report is a fresh immutable value published with
// an atomic pointer swap, so readers never observe a partial write.
// There is no history: the newest report overwrites the previous one.
type ErrorReporter struct {
	last atomic.Pointer[Report]

	logger Logger
	now    func() time.Time

	hooksMu  sync.RWMutex
	hub      Broadcaster
	onReport func(Report)
}

// NewErrorReporter creates a reporter that logs through logger (may be nil).
func NewErrorReporter(logger Logger) *ErrorReporter {
	if logger == nil {
		logger = noopLogger{}
	}
	return &ErrorReporter{
		logger: logger,
		now:    time.Now,
		hub:    noopBroadcaster{},
	}
}

// SetBroadcaster sets where error events are published.
func (r *ErrorReporter) SetBroadcaster(b Broadcaster) {
	if b == nil {
		b = noopBroadcaster{}
	}
	r.hooksMu.Lock()
	r.hub = b
	r.hooksMu.Unlock()
}

// OnReport sets a callback invoked after every report.
func (r *ErrorReporter) OnReport(fn func(Report)) {
	r.hooksMu.Lock()
	r.onReport = fn
	r.hooksMu.Unlock()
}

// Report overwrites the last-error slot and logs the failure.
// A nil error is ignored.
func (r *ErrorReporter) Report(kind Kind, err error) {
	if err == nil {
		return
	}

	rep := &Report{
		Kind:     kind,
		Severity: SeverityError,
		Message:  err.Error(),
		At:       r.now().UTC(),
	}
	r.last.Store(rep)

	r.logger.Error("rotation error", "kind", string(kind), "error", rep.Message)

	r.hooksMu.RLock()
	hub, hook := r.hub, r.onReport
	r.hooksMu.RUnlock()

	hub.Broadcast(ChannelError, *rep)
	if hook != nil {
		hook(*rep)
	}
}

// Clear empties the last-error slot.
func (r *ErrorReporter) Clear() {
	if r.last.Swap(nil) == nil {
		return
	}

	r.hooksMu.RLock()
	hub := r.hub
	r.hooksMu.RUnlock()
	hub.Broadcast(ChannelErrorCleared, nil)
}

// Last returns the most recent report, if any.
func (r *ErrorReporter) Last() (Report, bool) {
	rep := r.last.Load()
	if rep == nil {
		return Report{}, false
	}
	return *rep, true
}
