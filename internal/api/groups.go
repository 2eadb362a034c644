package api

import (
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/scene-rotator/internal/rotation"
)

// maxNameLen limits group and scene names accepted over the API.
const maxNameLen = 256

// CreateGroupRequest is the body of POST /groups.
type CreateGroupRequest struct {
	Name string `json:"name"`
}

// SetScenesRequest is the body of PUT /groups/{name}/scenes.
type SetScenesRequest struct {
	Scenes []string `json:"scenes"`
}

// AddSceneRequest is the body of POST /groups/{name}/scenes.
type AddSceneRequest struct {
	Scene string `json:"scene"`
}

// handleListGroups returns every group sorted by name.
func (s *Server) handleListGroups(w http.ResponseWriter, _ *http.Request) {
	groups := s.store.Groups()
	writeJSON(w, http.StatusOK, map[string]any{"groups": groups, "count": len(groups)})
}

// handleGetGroup returns one group.
func (s *Server) handleGetGroup(w http.ResponseWriter, r *http.Request) {
	name, ok := pathName(w, r, "name")
	if !ok {
		return
	}
	group, found := s.store.Lookup(name)
	if !found {
		writeNotFound(w, "group not found")
		return
	}
	writeJSON(w, http.StatusOK, group)
}

// handleCreateGroup adds an empty group. Creating an existing group returns it unchanged.
func (s *Server) handleCreateGroup(w http.ResponseWriter, r *http.Request) {
	var req CreateGroupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if len(req.Name) > maxNameLen {
		writeBadRequest(w, "name exceeds maximum length")
		return
	}

	_, existed := s.store.Lookup(req.Name)
	if err := s.store.AddGroup(req.Name); err != nil {
		writeDomainError(w, err, "failed to create group")
		return
	}

	group, _ := s.store.Lookup(req.Name)
	if existed {
		writeJSON(w, http.StatusOK, group)
		return
	}
	s.groupsChanged()
	writeJSON(w, http.StatusCreated, group)
}

// handleDeleteGroup removes a group. Removing the active group clears the selection.
func (s *Server) handleDeleteGroup(w http.ResponseWriter, r *http.Request) {
	name, ok := pathName(w, r, "name")
	if !ok {
		return
	}
	if _, found := s.store.Lookup(name); !found {
		writeNotFound(w, "group not found")
		return
	}
	s.store.RemoveGroup(name)
	s.groupsChanged()
	w.WriteHeader(http.StatusNoContent)
}

// handleSetScenes replaces a group's scene list.
func (s *Server) handleSetScenes(w http.ResponseWriter, r *http.Request) {
	name, ok := pathName(w, r, "name")
	if !ok {
		return
	}
	var req SetScenesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	if err := s.store.SetScenes(name, req.Scenes); err != nil {
		writeDomainError(w, err, "failed to update group")
		return
	}
	s.groupsChanged()
	group, _ := s.store.Lookup(name)
	writeJSON(w, http.StatusOK, group)
}

// handleAddScene appends a scene to a group.
func (s *Server) handleAddScene(w http.ResponseWriter, r *http.Request) {
	name, ok := pathName(w, r, "name")
	if !ok {
		return
	}
	var req AddSceneRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if len(req.Scene) > maxNameLen {
		writeBadRequest(w, "scene exceeds maximum length")
		return
	}

	if err := s.store.AddScene(name, req.Scene); err != nil {
		writeDomainError(w, err, "failed to update group")
		return
	}
	s.groupsChanged()
	group, _ := s.store.Lookup(name)
	writeJSON(w, http.StatusOK, group)
}

// handleRemoveScene removes the scene at a position.
func (s *Server) handleRemoveScene(w http.ResponseWriter, r *http.Request) {
	name, ok := pathName(w, r, "name")
	if !ok {
		return
	}
	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		writeBadRequest(w, "index must be an integer")
		return
	}

	if err := s.store.RemoveSceneAt(name, index); err != nil {
		writeDomainError(w, err, "failed to update group")
		return
	}
	s.groupsChanged()
	group, _ := s.store.Lookup(name)
	writeJSON(w, http.StatusOK, group)
}

// handleStartGroup selects a group and enables rotation in one step.
func (s *Server) handleStartGroup(w http.ResponseWriter, r *http.Request) {
	name, ok := pathName(w, r, "name")
	if !ok {
		return
	}
	if err := s.scheduler.StartGroup(name); err != nil {
		writeDomainError(w, err, "failed to start group")
		return
	}
	writeJSON(w, http.StatusOK, s.scheduler.Status())
}

// groupsChanged persists and announces a group edit.
func (s *Server) groupsChanged() {
	if s.persister != nil {
		s.persister.SaveDebounced()
	}
	s.hub.Broadcast(rotation.ChannelGroups, s.store.Groups())
}

// pathName reads and unescapes a name path parameter.
// Names may contain spaces and slashes, which clients percent-encode.
func pathName(w http.ResponseWriter, r *http.Request, key string) (string, bool) {
	raw := chi.URLParam(r, key)
	name, err := url.PathUnescape(raw)
	if err != nil {
		name = raw
	}
	if name == "" || len(name) > maxNameLen {
		writeBadRequest(w, "invalid "+key)
		return "", false
	}
	return name, true
}
