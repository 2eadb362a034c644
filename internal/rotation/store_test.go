package rotation

import (
	"errors"
	"reflect"
	"sync"
	"testing"
)

func TestGroupStore_AddGroup(t *testing.T) {
	s := NewGroupStore()

	if err := s.AddGroup("Main"); err != nil {
		t.Fatalf("AddGroup: %v", err)
	}
	if err := s.AddScene("Main", "A"); err != nil {
		t.Fatalf("AddScene: %v", err)
	}

	// Adding an existing group must not reset its scenes.
	if err := s.AddGroup("Main"); err != nil {
		t.Fatalf("AddGroup duplicate: %v", err)
	}
	g, ok := s.Lookup("Main")
	if !ok {
		t.Fatal("Lookup: group missing")
	}
	if !reflect.DeepEqual(g.Scenes, []string{"A"}) {
		t.Errorf("Scenes = %v, want [A]", g.Scenes)
	}

	if err := s.AddGroup(""); !errors.Is(err, ErrInvalidName) {
		t.Errorf("AddGroup(\"\") error = %v, want ErrInvalidName", err)
	}
}

func TestGroupStore_SceneOperations(t *testing.T) {
	s := NewGroupStore()
	_ = s.AddGroup("Main")

	for _, scene := range []string{"A", "B", "A", "C"} {
		if err := s.AddScene("Main", scene); err != nil {
			t.Fatalf("AddScene(%s): %v", scene, err)
		}
	}

	g, _ := s.Lookup("Main")
	if want := []string{"A", "B", "A", "C"}; !reflect.DeepEqual(g.Scenes, want) {
		t.Fatalf("Scenes = %v, want %v (duplicates permitted)", g.Scenes, want)
	}

	if err := s.RemoveSceneAt("Main", 2); err != nil {
		t.Fatalf("RemoveSceneAt: %v", err)
	}
	g, _ = s.Lookup("Main")
	if want := []string{"A", "B", "C"}; !reflect.DeepEqual(g.Scenes, want) {
		t.Errorf("Scenes after remove = %v, want %v", g.Scenes, want)
	}

	if err := s.SetScenes("Main", []string{"X", "Y"}); err != nil {
		t.Fatalf("SetScenes: %v", err)
	}
	g, _ = s.Lookup("Main")
	if want := []string{"X", "Y"}; !reflect.DeepEqual(g.Scenes, want) {
		t.Errorf("Scenes after set = %v, want %v", g.Scenes, want)
	}
}

func TestGroupStore_Errors(t *testing.T) {
	s := NewGroupStore()
	_ = s.AddGroup("Main")
	_ = s.AddScene("Main", "A")

	tests := []struct {
		name string
		fn   func() error
		want error
	}{
		{"add scene unknown group", func() error { return s.AddScene("Nope", "A") }, ErrGroupNotFound},
		{"add empty scene", func() error { return s.AddScene("Main", "") }, ErrInvalidScene},
		{"remove unknown group", func() error { return s.RemoveSceneAt("Nope", 0) }, ErrGroupNotFound},
		{"remove negative index", func() error { return s.RemoveSceneAt("Main", -1) }, ErrInvalidIndex},
		{"remove past end", func() error { return s.RemoveSceneAt("Main", 1) }, ErrInvalidIndex},
		{"set unknown group", func() error { return s.SetScenes("Nope", nil) }, ErrGroupNotFound},
		{"set empty scene", func() error { return s.SetScenes("Main", []string{"A", ""}) }, ErrInvalidScene},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.fn(); !errors.Is(err, tt.want) {
				t.Errorf("error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestGroupStore_LookupReturnsCopy(t *testing.T) {
	s := NewGroupStore()
	_ = s.AddGroup("Main")
	_ = s.AddScene("Main", "A")

	g, _ := s.Lookup("Main")
	g.Scenes[0] = "mutated"

	g2, _ := s.Lookup("Main")
	if g2.Scenes[0] != "A" {
		t.Errorf("store mutated through Lookup copy: %v", g2.Scenes)
	}
}

func TestGroupStore_RemoveGroupNotifies(t *testing.T) {
	s := NewGroupStore()
	_ = s.AddGroup("Main")

	var removed []string
	s.OnRemove(func(name string) { removed = append(removed, name) })

	s.RemoveGroup("Main")
	s.RemoveGroup("Main")  // already gone
	s.RemoveGroup("Other") // never existed

	if !reflect.DeepEqual(removed, []string{"Main"}) {
		t.Errorf("removed = %v, want [Main]", removed)
	}
	if _, ok := s.Lookup("Main"); ok {
		t.Error("group still present after RemoveGroup")
	}
}

func TestGroupStore_Replace(t *testing.T) {
	s := NewGroupStore()
	_ = s.AddGroup("Old")
	_ = s.AddGroup("Kept")

	var removed []string
	s.OnRemove(func(name string) { removed = append(removed, name) })

	s.Replace(map[string][]string{
		"Kept": {"A"},
		"New":  nil,
		"":     {"ignored"},
	})

	if !reflect.DeepEqual(removed, []string{"Old"}) {
		t.Errorf("removed = %v, want [Old]", removed)
	}
	if s.Len() != 2 {
		t.Errorf("Len() = %d, want 2", s.Len())
	}

	groups := s.Groups()
	if groups[0].Name != "Kept" || groups[1].Name != "New" {
		t.Errorf("Groups() not sorted: %v", groups)
	}
	if groups[1].Scenes == nil {
		t.Error("nil scene list should become empty slice")
	}

	snap := s.Snapshot()
	if !reflect.DeepEqual(snap["Kept"], []string{"A"}) {
		t.Errorf("Snapshot[Kept] = %v", snap["Kept"])
	}
}

func TestGroupStore_Concurrent(t *testing.T) {
	s := NewGroupStore()
	_ = s.AddGroup("Main")

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_ = s.AddScene("Main", "A")
		}()
		go func() {
			defer wg.Done()
			_, _ = s.Lookup("Main")
			_ = s.Groups()
		}()
	}
	wg.Wait()

	g, _ := s.Lookup("Main")
	if len(g.Scenes) != 20 {
		t.Errorf("len(Scenes) = %d, want 20", len(g.Scenes))
	}
}
