package rotation

import (
	"fmt"
	"sort"
	"sync"
)

// GroupStore is the in-memory mapping of group name to ordered scene names.
//
// It is pure data: lookups return copies, and the only side effect beyond
// mutating the mapping is notifying removal listeners after a group is
// removed, so holders of a group name (the Scheduler) never keep a dangling
// selection.
//
// All public methods are thread-safe.
type GroupStore struct {
	mu     sync.RWMutex
	groups map[string][]string

	listenersMu sync.RWMutex
	onRemove    []func(name string)
}

// NewGroupStore creates an empty store.
func NewGroupStore() *GroupStore {
	return &GroupStore{
		groups: make(map[string][]string),
	}
}

// OnRemove registers a listener invoked after a group has been removed.
// Listeners run synchronously on the removing goroutine, outside the store lock.
func (s *GroupStore) OnRemove(fn func(name string)) {
	s.listenersMu.Lock()
	s.onRemove = append(s.onRemove, fn)
	s.listenersMu.Unlock()
}

// AddGroup inserts an empty group if name is not already present.
// Adding an existing group is not an error.
func (s *GroupStore) AddGroup(name string) error {
	if name == "" {
		return ErrInvalidName
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.groups[name]; !ok {
		s.groups[name] = []string{}
	}
	return nil
}

// RemoveGroup removes the group if present. Removing an unknown group is a no-op.
func (s *GroupStore) RemoveGroup(name string) {
	s.mu.Lock()
	_, existed := s.groups[name]
	delete(s.groups, name)
	s.mu.Unlock()

	if existed {
		s.notifyRemoved(name)
	}
}

// Lookup returns a copy of the named group.
func (s *GroupStore) Lookup(name string) (SceneGroup, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	scenes, ok := s.groups[name]
	if !ok {
		return SceneGroup{}, false
	}
	return SceneGroup{Name: name, Scenes: cloneScenes(scenes)}, true
}

// AddScene appends a scene to the end of a group's rotation order.
func (s *GroupStore) AddScene(group, scene string) error {
	if scene == "" {
		return ErrInvalidScene
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	scenes, ok := s.groups[group]
	if !ok {
		return fmt.Errorf("%w: %s", ErrGroupNotFound, group)
	}
	s.groups[group] = append(scenes, scene)
	return nil
}

// RemoveSceneAt removes the scene at index from a group.
func (s *GroupStore) RemoveSceneAt(group string, index int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	scenes, ok := s.groups[group]
	if !ok {
		return fmt.Errorf("%w: %s", ErrGroupNotFound, group)
	}
	if index < 0 || index >= len(scenes) {
		return fmt.Errorf("%w: %d (group has %d scenes)", ErrInvalidIndex, index, len(scenes))
	}

	updated := make([]string, 0, len(scenes)-1)
	updated = append(updated, scenes[:index]...)
	updated = append(updated, scenes[index+1:]...)
	s.groups[group] = updated
	return nil
}

// SetScenes replaces a group's scene list.
func (s *GroupStore) SetScenes(group string, scenes []string) error {
	for _, scene := range scenes {
		if scene == "" {
			return ErrInvalidScene
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.groups[group]; !ok {
		return fmt.Errorf("%w: %s", ErrGroupNotFound, group)
	}
	s.groups[group] = cloneScenes(scenes)
	return nil
}

// Groups returns copies of all groups sorted by name.
func (s *GroupStore) Groups() []SceneGroup {
	s.mu.RLock()
	defer s.mu.RUnlock()

	groups := make([]SceneGroup, 0, len(s.groups))
	for name, scenes := range s.groups {
		groups = append(groups, SceneGroup{Name: name, Scenes: cloneScenes(scenes)})
	}
	sort.Slice(groups, func(i, j int) bool {
		return groups[i].Name < groups[j].Name
	})
	return groups
}

// Snapshot returns the store contents in the persistence interchange shape.
func (s *GroupStore) Snapshot() map[string][]string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string][]string, len(s.groups))
	for name, scenes := range s.groups {
		out[name] = cloneScenes(scenes)
	}
	return out
}

// Replace swaps the whole mapping, e.g. after loading from disk.
// Groups missing from the new mapping are reported to removal listeners.
// Entries with an empty name are skipped.
func (s *GroupStore) Replace(groups map[string][]string) {
	next := make(map[string][]string, len(groups))
	for name, scenes := range groups {
		if name == "" {
			continue
		}
		next[name] = cloneScenes(scenes)
	}

	s.mu.Lock()
	var removed []string
	for name := range s.groups {
		if _, ok := next[name]; !ok {
			removed = append(removed, name)
		}
	}
	s.groups = next
	s.mu.Unlock()

	for _, name := range removed {
		s.notifyRemoved(name)
	}
}

// Len returns the number of groups.
func (s *GroupStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.groups)
}

func (s *GroupStore) notifyRemoved(name string) {
	s.listenersMu.RLock()
	listeners := make([]func(string), len(s.onRemove))
	copy(listeners, s.onRemove)
	s.listenersMu.RUnlock()

	for _, fn := range listeners {
		fn(name)
	}
}

// cloneScenes copies a scene list; nil becomes an empty slice so JSON
// encodes groups as [] rather than null.
func cloneScenes(scenes []string) []string {
	out := make([]string, len(scenes))
	copy(out, scenes)
	return out
}
