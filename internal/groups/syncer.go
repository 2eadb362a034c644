package groups

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/nerrad567/scene-rotator/internal/rotation"
)

// DefaultSaveDebounce is the coalescing window for SaveDebounced.
const DefaultSaveDebounce = 500 * time.Millisecond

// defaultSaveTimeout bounds a debounced save, which has no caller context.
const defaultSaveTimeout = 10 * time.Second

// Syncer moves the group mapping between a Repository and a GroupStore.
type Syncer struct {
	repo     Repository
	store    *rotation.GroupStore
	reporter *rotation.ErrorReporter
	logger   Logger
	debounce time.Duration

	mu    sync.Mutex
	timer *time.Timer
}

// NewSyncer creates a syncer. A non-positive debounce uses DefaultSaveDebounce.
func NewSyncer(repo Repository, store *rotation.GroupStore, reporter *rotation.ErrorReporter, logger Logger, debounce time.Duration) *Syncer {
	if logger == nil {
		logger = noopLogger{}
	}
	if debounce <= 0 {
		debounce = DefaultSaveDebounce
	}
	return &Syncer{
		repo:     repo,
		store:    store,
		reporter: reporter,
		logger:   logger,
		debounce: debounce,
	}
}

// Load replaces the store contents with the persisted mapping.
// On failure the error is reported and the store is left as it was.
func (s *Syncer) Load(ctx context.Context) error {
	groups, err := s.repo.Load(ctx)
	if err != nil {
		err = fmt.Errorf("%w: loading groups: %w", rotation.ErrConfigIO, err)
		s.reporter.Report(rotation.KindConfigIO, err)
		return err
	}
	s.store.Replace(groups)
	s.logger.Info("groups loaded", "groups", len(groups))
	return nil
}

// Apply replaces the store contents with groups read elsewhere, such as a
// watched file.
func (s *Syncer) Apply(groups map[string][]string) {
	s.store.Replace(groups)
	s.logger.Info("groups reloaded", "groups", len(groups))
}

// ReloadFailed reports a watched reload that could not be applied.
// The store keeps its current contents.
func (s *Syncer) ReloadFailed(err error) {
	if err == nil {
		return
	}
	s.reporter.Report(rotation.KindConfigIO, fmt.Errorf("%w: reloading groups: %w", rotation.ErrConfigIO, err))
}

// Save persists the current store contents.
// On failure the error is reported and returned.
func (s *Syncer) Save(ctx context.Context) error {
	if err := s.repo.Save(ctx, s.store.Snapshot()); err != nil {
		err = fmt.Errorf("%w: saving groups: %w", rotation.ErrConfigIO, err)
		s.reporter.Report(rotation.KindConfigIO, err)
		return err
	}
	s.logger.Debug("groups saved", "groups", s.store.Len())
	return nil
}

// SaveDebounced schedules a Save after the debounce window, restarting the
// window on each call.
func (s *Syncer) SaveDebounced() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.timer != nil {
		s.timer.Stop()
	}
	s.timer = time.AfterFunc(s.debounce, func() {
		ctx, cancel := context.WithTimeout(context.Background(), defaultSaveTimeout)
		defer cancel()
		_ = s.Save(ctx) //nolint:errcheck // Reported by Save
	})
}

// Flush cancels any pending debounced save and saves immediately.
func (s *Syncer) Flush(ctx context.Context) error {
	s.mu.Lock()
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.mu.Unlock()
	return s.Save(ctx)
}
