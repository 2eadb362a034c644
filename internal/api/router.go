package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/scene-rotator/internal/auth"
	"github.com/nerrad567/scene-rotator/internal/panel"
)

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.corsMiddleware)
	r.Use(s.rateLimitMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeNotFound(w, "route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, ErrCodeMethodNotAllow, "method not allowed")
	})

	if s.cfg.Panel.Enabled {
		r.Handle("/*", panel.Handler(s.cfg.Panel.Dir))
	}

	r.Route("/api/v1", func(r chi.Router) {
		// Health check (no auth required)
		r.Get("/health", s.handleHealth)

		// WebSocket (auth via token query parameter, validated in handler)
		r.Get("/ws", s.handleWebSocket)

		// Protected routes
		r.Group(func(r chi.Router) {
			r.Use(s.authMiddleware)

			// Read-only
			r.Group(func(r chi.Router) {
				r.Use(s.requirePermission(auth.PermRotationRead))
				r.Get("/status", s.handleStatus)
				r.Get("/metrics", s.handleMetrics)
				r.Get("/groups", s.handleListGroups)
				r.Get("/groups/{name}", s.handleGetGroup)
				r.Get("/scenes", s.handleListScenes)
				r.Get("/errors/last", s.handleGetLastError)
				r.Get("/history", s.handleListHistory)
			})

			// Rotation control
			r.Group(func(r chi.Router) {
				r.Use(s.requirePermission(auth.PermRotationControl))
				r.Route("/rotation", func(r chi.Router) {
					r.Post("/enable", s.handleEnable)
					r.Post("/disable", s.handleDisable)
					r.Put("/interval", s.handleSetInterval)
					r.Put("/active", s.handleSetActive)
					r.Delete("/active", s.handleClearActive)
				})
				r.Post("/groups/{name}/start", s.handleStartGroup)
				r.Delete("/errors/last", s.handleClearLastError)
			})

			// Group editing
			r.Group(func(r chi.Router) {
				r.Use(s.requirePermission(auth.PermGroupsManage))
				r.Post("/groups", s.handleCreateGroup)
				r.Delete("/groups/{name}", s.handleDeleteGroup)
				r.Put("/groups/{name}/scenes", s.handleSetScenes)
				r.Post("/groups/{name}/scenes", s.handleAddScene)
				r.Delete("/groups/{name}/scenes/{index}", s.handleRemoveScene)
			})

			// Manual switching
			r.Group(func(r chi.Router) {
				r.Use(s.requirePermission(auth.PermSceneSwitch))
				r.Post("/scenes/{name}/switch", s.handleSwitchScene)
			})
		})
	})

	return r
}

// handleHealth returns the server health status.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	resp := map[string]any{
		"status":  "ok",
		"version": s.version,
	}
	if s.scenes != nil {
		resp["obs_connected"] = s.scenes.Connected()
	}
	if s.mqtt != nil {
		resp["mqtt_connected"] = s.mqtt.IsConnected()
	}
	writeJSON(w, http.StatusOK, resp)
}
