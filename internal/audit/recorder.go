package audit

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/nerrad567/scene-rotator/internal/rotation"
)

const (
	recorderBuffer = 256
	writeTimeout   = 5 * time.Second
	pruneInterval  = time.Hour
)

// Logger defines the logging interface used by the recorder.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Recorder writes rotation events to a Repository. It implements
// rotation.Broadcaster; Broadcast never blocks.
type Recorder struct {
	repo      Repository
	logger    Logger
	retention time.Duration
	now       func() time.Time

	entries chan Entry
	dropped atomic.Uint64
}

var _ rotation.Broadcaster = (*Recorder)(nil)

// NewRecorder creates a recorder. A positive retention prunes older entries
// once an hour while Run is active.
func NewRecorder(repo Repository, retention time.Duration, logger Logger) *Recorder {
	if logger == nil {
		logger = noopLogger{}
	}
	return &Recorder{
		repo:      repo,
		logger:    logger,
		retention: retention,
		now:       time.Now,
		entries:   make(chan Entry, recorderBuffer),
	}
}

// Broadcast implements rotation.Broadcaster.
func (r *Recorder) Broadcast(channel string, payload any) {
	e, ok := entryFor(channel, payload)
	if !ok {
		return
	}
	e.CreatedAt = r.now().UTC()

	select {
	case r.entries <- e:
	default:
		r.dropped.Add(1)
	}
}

// Dropped returns how many entries were discarded because the buffer was full.
func (r *Recorder) Dropped() uint64 {
	return r.dropped.Load()
}

// Run writes buffered entries until ctx is cancelled, then writes whatever
// is still buffered. It blocks.
func (r *Recorder) Run(ctx context.Context) {
	r.prune()

	ticker := time.NewTicker(pruneInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.drain()
			return
		case e := <-r.entries:
			r.write(e)
		case <-ticker.C:
			r.prune()
		}
	}
}

func (r *Recorder) drain() {
	for {
		select {
		case e := <-r.entries:
			r.write(e)
		default:
			return
		}
	}
}

func (r *Recorder) write(e Entry) {
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()
	if err := r.repo.Create(ctx, &e); err != nil {
		r.logger.Warn("recording history entry failed", "event", e.Event, "error", err)
	}
}

func (r *Recorder) prune() {
	if r.retention <= 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()

	n, err := r.repo.DeleteBefore(ctx, r.now().Add(-r.retention))
	if err != nil {
		r.logger.Warn("pruning history failed", "error", err)
		return
	}
	if n > 0 {
		r.logger.Debug("history pruned", "entries", n)
	}
}

// entryFor maps a broadcast to a history entry. Channels without a
// recognised payload are skipped.
func entryFor(channel string, payload any) (Entry, bool) {
	switch channel {
	case rotation.ChannelSwitched, rotation.ChannelSwitchFailed:
		res, ok := payload.(rotation.SwitchResult)
		if !ok {
			return Entry{}, false
		}
		success := res.OK
		return Entry{
			Event:   channel,
			Group:   res.Group,
			Scene:   res.Scene,
			Source:  string(res.Source),
			OK:      &success,
			Message: res.Error,
			Details: map[string]any{"latency_ms": res.LatencyMS, "cursor": res.Cursor},
		}, true

	case rotation.ChannelState:
		st, ok := payload.(rotation.Status)
		if !ok {
			return Entry{}, false
		}
		return Entry{
			Event:   channel,
			Group:   st.ActiveGroup,
			Message: string(st.State),
			Details: map[string]any{"interval_ms": st.IntervalMS, "cursor": st.Cursor},
		}, true

	case rotation.ChannelError:
		rep, ok := payload.(rotation.Report)
		if !ok {
			return Entry{}, false
		}
		return Entry{
			Event:   channel,
			Message: rep.Message,
			Details: map[string]any{"kind": string(rep.Kind)},
		}, true

	case rotation.ChannelErrorCleared:
		return Entry{Event: channel}, true
	}
	return Entry{}, false
}
