package api

import (
	"net/http"
	"testing"

	"github.com/nerrad567/scene-rotator/internal/obs"
	"github.com/nerrad567/scene-rotator/internal/rotation"
)

func TestListScenes(t *testing.T) {
	env := newTestEnv(t)
	env.host.current = "Main"

	w := env.do(t, http.MethodGet, "/api/v1/scenes", nil)
	wantStatus(t, w, http.StatusOK)

	resp := decodeBody[struct {
		Scenes  []obs.SceneInfo `json:"scenes"`
		Count   int             `json:"count"`
		Current string          `json:"current"`
	}](t, w)
	if resp.Count != 3 || resp.Scenes[0].Name != "Intro" {
		t.Errorf("scenes = %+v", resp.Scenes)
	}
	if resp.Current != "Main" {
		t.Errorf("current = %q, want Main", resp.Current)
	}
}

func TestListScenes_Unavailable(t *testing.T) {
	t.Run("no scene source", func(t *testing.T) {
		env := newTestEnv(t, withoutScenes())
		wantStatus(t, env.do(t, http.MethodGet, "/api/v1/scenes", nil), http.StatusServiceUnavailable)
	})

	t.Run("obs disconnected", func(t *testing.T) {
		env := newTestEnv(t)
		env.host.listErr = rotation.ErrHostUnavailable
		wantStatus(t, env.do(t, http.MethodGet, "/api/v1/scenes", nil), http.StatusServiceUnavailable)
	})
}

func TestSwitchScene(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodPost, "/api/v1/scenes/Main/switch", nil)
	wantStatus(t, w, http.StatusAccepted)

	if got := env.host.switches(); len(got) != 1 || got[0] != "Main" {
		t.Errorf("switched = %v, want [Main]", got)
	}
}

func TestSwitchScene_EncodedName(t *testing.T) {
	env := newTestEnv(t)
	env.host.scenes = append(env.host.scenes, "Cam 2/Wide")

	wantStatus(t, env.do(t, http.MethodPost, "/api/v1/scenes/Cam%202%2FWide/switch", nil), http.StatusAccepted)

	if got := env.host.switches(); len(got) != 1 || got[0] != "Cam 2/Wide" {
		t.Errorf("switched = %v, want [Cam 2/Wide]", got)
	}
}

func TestSwitchScene_MissingSceneReported(t *testing.T) {
	env := newTestEnv(t)

	// Dispatch is accepted; the failure surfaces through the reporter.
	wantStatus(t, env.do(t, http.MethodPost, "/api/v1/scenes/Gone/switch", nil), http.StatusAccepted)

	rep, ok := env.reporter.Last()
	if !ok || rep.Kind != rotation.KindSceneNotFound {
		t.Errorf("last report = %+v, want scene_not_found", rep)
	}
	if len(env.host.switches()) != 0 {
		t.Error("missing scene must not be switched to")
	}
}
