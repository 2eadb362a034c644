package api

import (
	"net/http"
	"runtime"
	"time"

	"github.com/nerrad567/scene-rotator/internal/rotation"
)

// SystemMetrics is returned by GET /metrics.
type SystemMetrics struct {
	Timestamp     string          `json:"timestamp"`
	Version       string          `json:"version"`
	UptimeSeconds int64           `json:"uptime_seconds"`
	Runtime       RuntimeMetrics  `json:"runtime"`
	WebSocket     WSMetrics       `json:"websocket"`
	Rotation      RotationMetrics `json:"rotation"`
	Queue         *QueueMetrics   `json:"queue,omitempty"`
	OBS           LinkMetrics     `json:"obs"`
	MQTT          *LinkMetrics    `json:"mqtt,omitempty"`
}

// RuntimeMetrics contains Go runtime statistics.
type RuntimeMetrics struct {
	Goroutines int     `json:"goroutines"`
	HeapMB     float64 `json:"heap_mb"`
	NumGC      uint32  `json:"num_gc"`
}

// WSMetrics contains WebSocket hub statistics.
type WSMetrics struct {
	ConnectedClients int    `json:"connected_clients"`
	DroppedEvents    uint64 `json:"dropped_events"`
}

// RotationMetrics summarises scheduler and group state.
type RotationMetrics struct {
	Running       bool   `json:"running"`
	IntervalMS    int64  `json:"interval_ms"`
	ActiveGroup   string `json:"active_group,omitempty"`
	Ticks         uint64 `json:"ticks"`
	Groups        int    `json:"groups"`
	LastErrorKind string `json:"last_error_kind,omitempty"`
}

// QueueMetrics contains host task queue counters.
type QueueMetrics struct {
	Running   bool   `json:"running"`
	Pending   int    `json:"pending"`
	Completed uint64 `json:"completed"`
}

// LinkMetrics reports whether an external connection is up.
type LinkMetrics struct {
	Connected bool `json:"connected"`
}

// handleMetrics reports process, rotation and link counters.
func (s *Server) handleMetrics(w http.ResponseWriter, _ *http.Request) {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	status := s.scheduler.Status()
	m := SystemMetrics{
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
		Version:       s.version,
		UptimeSeconds: int64(time.Since(s.startTime).Seconds()),
		Runtime: RuntimeMetrics{
			Goroutines: runtime.NumGoroutine(),
			HeapMB:     float64(mem.HeapAlloc) / (1 << 20),
			NumGC:      mem.NumGC,
		},
		WebSocket: WSMetrics{
			ConnectedClients: s.hub.ClientCount(),
			DroppedEvents:    s.hub.Dropped(),
		},
		Rotation: RotationMetrics{
			Running:     status.State == rotation.StateRunning,
			IntervalMS:  status.IntervalMS,
			ActiveGroup: status.ActiveGroup,
			Ticks:       status.Ticks,
			Groups:      s.store.Len(),
		},
	}
	if rep, ok := s.reporter.Last(); ok {
		m.Rotation.LastErrorKind = string(rep.Kind)
	}

	if s.queue != nil {
		m.Queue = &QueueMetrics{
			Running:   s.queue.IsRunning(),
			Pending:   s.queue.Pending(),
			Completed: s.queue.Completed(),
		}
	}
	if s.scenes != nil {
		m.OBS.Connected = s.scenes.Connected()
	}
	if s.mqtt != nil {
		m.MQTT = &LinkMetrics{Connected: s.mqtt.IsConnected()}
	}

	writeJSON(w, http.StatusOK, m)
}
