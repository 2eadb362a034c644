package api

import (
	"errors"
	"net/http"

	"github.com/nerrad567/scene-rotator/internal/rotation"
)

// handleListScenes returns the scenes OBS currently has.
func (s *Server) handleListScenes(w http.ResponseWriter, r *http.Request) {
	if s.scenes == nil {
		writeUnavailable(w, "scene host not configured")
		return
	}

	scenes, err := s.scenes.ListScenes(r.Context())
	if err != nil {
		if errors.Is(err, rotation.ErrHostUnavailable) {
			writeDomainError(w, err, "")
			return
		}
		s.logger.Warn("listing OBS scenes failed", "error", err)
		writeError(w, http.StatusBadGateway, ErrCodeUnavailable, "failed to list scenes")
		return
	}

	resp := map[string]any{"scenes": scenes, "count": len(scenes)}
	if cur, err := s.scenes.CurrentScene(r.Context()); err == nil {
		resp["current"] = cur
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleSwitchScene requests a manual switch. The switch runs on the host
// task queue; the outcome arrives as a scene.switched or scene.switch_failed
// event and, on failure, in the last-error slot.
func (s *Server) handleSwitchScene(w http.ResponseWriter, r *http.Request) {
	name, ok := pathName(w, r, "name")
	if !ok {
		return
	}
	s.executor.Apply(name)
	writeJSON(w, http.StatusAccepted, map[string]any{
		"scene":  name,
		"status": "dispatched",
	})
}
