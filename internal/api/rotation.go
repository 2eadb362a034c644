package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/nerrad567/scene-rotator/internal/rotation"
)

// currentSceneTimeout bounds the OBS lookup embedded in GET /status.
const currentSceneTimeout = 2 * time.Second

// StatusResponse is returned by GET /status.
type StatusResponse struct {
	Rotation     rotation.Status  `json:"rotation"`
	LastError    *rotation.Report `json:"last_error,omitempty"`
	OBSConnected bool             `json:"obs_connected"`
	CurrentScene string           `json:"current_scene,omitempty"`
}

// IntervalRequest is the body of PUT /rotation/interval.
type IntervalRequest struct {
	IntervalMS int64 `json:"interval_ms"`
}

// ActiveGroupRequest is the body of PUT /rotation/active.
type ActiveGroupRequest struct {
	Group string `json:"group"`
}

// handleStatus returns the scheduler state, the last error and the OBS link state.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.currentStatus(r.Context()))
}

// currentStatus is shared by GET /status and the WebSocket "status" request.
func (s *Server) currentStatus(ctx context.Context) StatusResponse {
	resp := StatusResponse{Rotation: s.scheduler.Status()}
	if rep, ok := s.reporter.Last(); ok {
		resp.LastError = &rep
	}

	if s.scenes != nil && s.scenes.Connected() {
		resp.OBSConnected = true
		ctx, cancel := context.WithTimeout(ctx, currentSceneTimeout)
		defer cancel()
		if cur, err := s.scenes.CurrentScene(ctx); err == nil {
			resp.CurrentScene = cur
		}
	}
	return resp
}

// handleEnable starts rotation. Enabling twice leaves one timer armed.
func (s *Server) handleEnable(w http.ResponseWriter, _ *http.Request) {
	s.scheduler.Start()
	writeJSON(w, http.StatusOK, s.scheduler.Status())
}

// handleDisable stops rotation.
func (s *Server) handleDisable(w http.ResponseWriter, _ *http.Request) {
	s.scheduler.Stop()
	writeJSON(w, http.StatusOK, s.scheduler.Status())
}

// handleSetInterval changes the rotation period.
func (s *Server) handleSetInterval(w http.ResponseWriter, r *http.Request) {
	var req IntervalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	if err := s.scheduler.SetIntervalMS(req.IntervalMS); err != nil {
		writeDomainError(w, err, "failed to set interval")
		return
	}
	writeJSON(w, http.StatusOK, s.scheduler.Status())
}

// handleSetActive selects the active group and resets the cursor.
func (s *Server) handleSetActive(w http.ResponseWriter, r *http.Request) {
	var req ActiveGroupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if req.Group == "" {
		writeBadRequest(w, "group is required")
		return
	}

	if err := s.scheduler.SetActiveGroup(req.Group); err != nil {
		writeDomainError(w, err, "failed to set active group")
		return
	}
	writeJSON(w, http.StatusOK, s.scheduler.Status())
}

// handleClearActive deselects the active group.
func (s *Server) handleClearActive(w http.ResponseWriter, _ *http.Request) {
	s.scheduler.ClearActiveGroup()
	writeJSON(w, http.StatusOK, s.scheduler.Status())
}

// handleGetLastError returns the last reported error, or null.
func (s *Server) handleGetLastError(w http.ResponseWriter, _ *http.Request) {
	rep, ok := s.reporter.Last()
	if !ok {
		writeJSON(w, http.StatusOK, map[string]any{"error": nil})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"error": rep})
}

// handleClearLastError empties the last-error slot.
func (s *Server) handleClearLastError(w http.ResponseWriter, _ *http.Request) {
	s.reporter.Clear()
	w.WriteHeader(http.StatusNoContent)
}
