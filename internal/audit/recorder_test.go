package audit

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/scene-rotator/internal/rotation"
)

// ─── Mocks ─────────────────────────────────────────────────────────

type mockRepo struct {
	mu        sync.Mutex
	created   []Entry
	attempts  int
	cutoffs   []time.Time
	createErr error
}

func (m *mockRepo) Create(_ context.Context, e *Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.attempts++
	if m.createErr != nil {
		return m.createErr
	}
	m.created = append(m.created, *e)
	return nil
}

func (m *mockRepo) List(context.Context, Filter) (*ListResult, error) {
	return &ListResult{}, nil
}

func (m *mockRepo) DeleteBefore(_ context.Context, cutoff time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cutoffs = append(m.cutoffs, cutoff)
	return 0, nil
}

func (m *mockRepo) entries() []Entry {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Entry(nil), m.created...)
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

// ─── Mapping ───────────────────────────────────────────────────────

func TestEntryFor(t *testing.T) {
	tests := []struct {
		name    string
		channel string
		payload any
		want    bool
		check   func(t *testing.T, e Entry)
	}{
		{
			name:    "switched",
			channel: rotation.ChannelSwitched,
			payload: rotation.SwitchResult{
				SwitchRequest: rotation.SwitchRequest{Group: "Show", Scene: "Main", Cursor: 1, Source: rotation.SourceRotation},
				OK:            true,
				LatencyMS:     12,
			},
			want: true,
			check: func(t *testing.T, e Entry) {
				if e.Group != "Show" || e.Scene != "Main" || e.Source != "rotation" || e.OK == nil || !*e.OK {
					t.Errorf("entry = %+v", e)
				}
				if e.Details["latency_ms"] != int64(12) {
					t.Errorf("latency = %v", e.Details["latency_ms"])
				}
			},
		},
		{
			name:    "switch failed",
			channel: rotation.ChannelSwitchFailed,
			payload: rotation.SwitchResult{
				SwitchRequest: rotation.SwitchRequest{Scene: "Gone", Source: rotation.SourceManual},
				Error:         "scene not found",
			},
			want: true,
			check: func(t *testing.T, e Entry) {
				if e.OK == nil || *e.OK || e.Message != "scene not found" || e.Source != "manual" {
					t.Errorf("entry = %+v", e)
				}
			},
		},
		{
			name:    "state",
			channel: rotation.ChannelState,
			payload: rotation.Status{State: rotation.StateRunning, ActiveGroup: "Show", IntervalMS: 5000},
			want:    true,
			check: func(t *testing.T, e Entry) {
				if e.Message != "running" || e.Group != "Show" || e.OK != nil {
					t.Errorf("entry = %+v", e)
				}
			},
		},
		{
			name:    "error reported",
			channel: rotation.ChannelError,
			payload: rotation.Report{Kind: rotation.KindSceneNotFound, Message: "gone"},
			want:    true,
			check: func(t *testing.T, e Entry) {
				if e.Message != "gone" || e.Details["kind"] != "scene_not_found" {
					t.Errorf("entry = %+v", e)
				}
			},
		},
		{name: "error cleared", channel: rotation.ChannelErrorCleared, want: true},
		{name: "tick skipped", channel: rotation.ChannelTick, payload: rotation.SwitchRequest{Scene: "A"}},
		{name: "groups skipped", channel: rotation.ChannelGroups, payload: []rotation.SceneGroup{}},
		{name: "wrong payload type", channel: rotation.ChannelSwitched, payload: "nope"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, ok := entryFor(tt.channel, tt.payload)
			if ok != tt.want {
				t.Fatalf("ok = %v, want %v", ok, tt.want)
			}
			if ok && e.Event != tt.channel {
				t.Errorf("Event = %q, want %q", e.Event, tt.channel)
			}
			if tt.check != nil {
				tt.check(t, e)
			}
		})
	}
}

// ─── Recorder ──────────────────────────────────────────────────────

func TestRecorder_WritesInBackground(t *testing.T) {
	repo := &mockRepo{}
	rec := NewRecorder(repo, 0, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		rec.Run(ctx)
		close(done)
	}()

	rec.Broadcast(rotation.ChannelState, rotation.Status{State: rotation.StateRunning})
	rec.Broadcast(rotation.ChannelTick, rotation.SwitchRequest{Scene: "A"})
	rec.Broadcast(rotation.ChannelErrorCleared, nil)

	waitFor(t, func() bool { return len(repo.entries()) == 2 })

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}

	got := repo.entries()
	if got[0].Event != rotation.ChannelState || got[1].Event != rotation.ChannelErrorCleared {
		t.Errorf("recorded = %v, %v", got[0].Event, got[1].Event)
	}
	if got[0].CreatedAt.IsZero() {
		t.Error("CreatedAt not stamped at broadcast time")
	}
}

func TestRecorder_DrainsOnShutdown(t *testing.T) {
	repo := &mockRepo{}
	rec := NewRecorder(repo, 0, nil)

	for range 5 {
		rec.Broadcast(rotation.ChannelErrorCleared, nil)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	rec.Run(ctx)

	if got := len(repo.entries()); got != 5 {
		t.Errorf("written = %d, want 5 buffered entries flushed", got)
	}
}

func TestRecorder_BroadcastNeverBlocks(t *testing.T) {
	rec := NewRecorder(&mockRepo{}, 0, nil)

	for range recorderBuffer + 3 {
		rec.Broadcast(rotation.ChannelErrorCleared, nil)
	}
	if got := rec.Dropped(); got != 3 {
		t.Errorf("Dropped = %d, want 3", got)
	}
}

func TestRecorder_WriteErrorsDoNotStopRun(t *testing.T) {
	repo := &mockRepo{createErr: errors.New("disk full")}
	rec := NewRecorder(repo, 0, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go rec.Run(ctx)

	rec.Broadcast(rotation.ChannelErrorCleared, nil)
	waitFor(t, func() bool {
		repo.mu.Lock()
		defer repo.mu.Unlock()
		return repo.attempts == 1
	})

	repo.mu.Lock()
	repo.createErr = nil
	repo.mu.Unlock()

	rec.Broadcast(rotation.ChannelErrorCleared, nil)
	waitFor(t, func() bool { return len(repo.entries()) == 1 })
}

func TestRecorder_PrunesWithRetention(t *testing.T) {
	now := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name      string
		retention time.Duration
		wantPrune bool
	}{
		{"disabled", 0, false},
		{"thirty days", 30 * 24 * time.Hour, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := &mockRepo{}
			rec := NewRecorder(repo, tt.retention, nil)
			rec.now = func() time.Time { return now }

			ctx, cancel := context.WithCancel(context.Background())
			cancel()
			rec.Run(ctx)

			repo.mu.Lock()
			defer repo.mu.Unlock()
			if (len(repo.cutoffs) == 1) != tt.wantPrune {
				t.Fatalf("prune calls = %d, want prune=%v", len(repo.cutoffs), tt.wantPrune)
			}
			if tt.wantPrune && !repo.cutoffs[0].Equal(now.Add(-tt.retention)) {
				t.Errorf("cutoff = %v, want %v", repo.cutoffs[0], now.Add(-tt.retention))
			}
		})
	}
}
