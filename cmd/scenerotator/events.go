package main

import (
	"sync"
	"time"

	"github.com/nerrad567/scene-rotator/internal/rotation"
)

// relay is a rotation.Broadcaster whose targets are attached after the core
// is built, since the MQTT bridge and the API both need the scheduler first.
type relay struct {
	mu      sync.RWMutex
	targets rotation.MultiBroadcaster
}

// Add attaches another broadcast target.
func (r *relay) Add(b rotation.Broadcaster) {
	r.mu.Lock()
	r.targets = append(r.targets, b)
	r.mu.Unlock()
}

// Broadcast implements rotation.Broadcaster.
func (r *relay) Broadcast(channel string, payload any) {
	r.mu.RLock()
	targets := r.targets
	r.mu.RUnlock()
	targets.Broadcast(channel, payload)
}

// stateWriter is the subset of the InfluxDB client used for rotation state points.
type stateWriter interface {
	WriteRotationState(running bool, interval time.Duration, activeGroup string)
}

// stateRecorder writes a rotation_state point on every scheduler state change.
type stateRecorder struct {
	metrics stateWriter
}

// Broadcast implements rotation.Broadcaster.
func (s stateRecorder) Broadcast(channel string, payload any) {
	if channel != rotation.ChannelState {
		return
	}
	status, ok := payload.(rotation.Status)
	if !ok {
		return
	}
	s.metrics.WriteRotationState(
		status.State == rotation.StateRunning,
		time.Duration(status.IntervalMS)*time.Millisecond,
		status.ActiveGroup,
	)
}
