package rotation

import (
	"context"
	"time"
)

// SceneGroup is a named, ordered list of scene names. Order defines rotation
// order and duplicates are permitted.
type SceneGroup struct {
	Name   string   `json:"name"`
	Scenes []string `json:"scenes"`
}

// State is the scheduler lifecycle state.
type State string

// Scheduler states.
const (
	StateStopped State = "stopped"
	StateRunning State = "running"
)

// DefaultInterval is the rotation period used when none is configured.
const DefaultInterval = 30 * time.Second

// Status is a point-in-time snapshot of the scheduler.
type Status struct {
	State       State  `json:"state"`
	ActiveGroup string `json:"active_group,omitempty"`
	Cursor      int    `json:"cursor"`
	IntervalMS  int64  `json:"interval_ms"`
	LastScene   string `json:"last_scene,omitempty"`
	Ticks       uint64 `json:"ticks"`
}

// Source identifies what requested a switch.
type Source string

// Switch sources.
const (
	SourceRotation Source = "rotation"
	SourceManual   Source = "manual"
)

// SwitchRequest carries everything a single switch attempt needs.
// Each request is self-contained so requests never need to be queued
// against each other.
type SwitchRequest struct {
	Group  string `json:"group,omitempty"`
	Scene  string `json:"scene"`
	Cursor int    `json:"cursor"`
	Source Source `json:"source"`
}

// SceneHandle is a resolved, live scene on the host.
type SceneHandle struct {
	Name string `json:"name"`
	UUID string `json:"uuid,omitempty"`
}

// SceneHost is the host compositor's scene registry.
type SceneHost interface {
	// ResolveScene returns a handle for a scene name, or an error wrapping
	// ErrSceneNotFound when the scene does not exist.
	ResolveScene(ctx context.Context, name string) (SceneHandle, error)

	// SetCurrentScene makes the scene the host's current program scene.
	SetCurrentScene(ctx context.Context, scene SceneHandle) error
}

// TaskRunner executes tasks on the host's execution context.
// Schedule must not block.
type TaskRunner interface {
	Schedule(task func(ctx context.Context)) error
}

// Dispatcher accepts switch requests without blocking the caller.
type Dispatcher interface {
	Dispatch(req SwitchRequest)
}

// MetricsRecorder records the outcome of switch attempts.
type MetricsRecorder interface {
	RecordSwitch(group, scene string, ok bool, latency time.Duration)
}

// Broadcaster publishes events to observers (WebSocket clients, MQTT).
type Broadcaster interface {
	// Broadcast sends an event payload on the given channel.
	Broadcast(channel string, payload any)
}

// Event channels.
const (
	ChannelTick         = "rotation.tick"
	ChannelState        = "rotation.state"
	ChannelSwitched     = "scene.switched"
	ChannelSwitchFailed = "scene.switch_failed"
	ChannelError        = "error.reported"
	ChannelErrorCleared = "error.cleared"
	ChannelGroups       = "groups.changed"

	// ChannelProgramScene carries OBS program scene changes, whatever caused them.
	ChannelProgramScene = "obs.program_scene"
)

// KnownChannel reports whether name is one of the event channels above.
func KnownChannel(name string) bool {
	switch name {
	case ChannelTick, ChannelState, ChannelSwitched, ChannelSwitchFailed,
		ChannelError, ChannelErrorCleared, ChannelGroups, ChannelProgramScene:
		return true
	}
	return false
}

// MultiBroadcaster fans a broadcast out to several broadcasters.
type MultiBroadcaster []Broadcaster

// Broadcast implements Broadcaster.
func (m MultiBroadcaster) Broadcast(channel string, payload any) {
	for _, b := range m {
		if b != nil {
			b.Broadcast(channel, payload)
		}
	}
}

// Logger defines the logging interface used throughout the package.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// noopBroadcaster drops every event.
type noopBroadcaster struct{}

func (noopBroadcaster) Broadcast(string, any) {}
