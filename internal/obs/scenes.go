package obs

import (
	"context"
	"errors"
	"fmt"

	"github.com/nerrad567/scene-rotator/internal/rotation"
)

// SceneInfo describes one scene in the OBS scene collection.
type SceneInfo struct {
	Name  string `json:"name"`
	UUID  string `json:"uuid,omitempty"`
	Index int    `json:"index"`
}

// ListScenes fetches the scene list from OBS and refreshes the cache.
func (c *Client) ListScenes(ctx context.Context) ([]SceneInfo, error) {
	var resp sceneListResponse
	if err := c.request(ctx, "GetSceneList", nil, &resp); err != nil {
		return nil, err
	}

	scenes := make([]SceneInfo, 0, len(resp.Scenes))
	for _, s := range resp.Scenes {
		scenes = append(scenes, SceneInfo{Name: s.SceneName, UUID: s.SceneUUID, Index: s.SceneIndex})
	}

	c.cacheMu.Lock()
	c.scenes = scenes
	c.cachedAt = c.now()
	c.currentScene = resp.CurrentProgramSceneName
	c.cacheMu.Unlock()

	return cloneSceneInfo(scenes), nil
}

// cachedScenes returns the cached list if it is still within the TTL.
func (c *Client) cachedScenes() ([]SceneInfo, bool) {
	c.cacheMu.RLock()
	defer c.cacheMu.RUnlock()
	if c.scenes == nil || c.now().Sub(c.cachedAt) > c.opts.SceneCacheTTL {
		return nil, false
	}
	return c.scenes, true
}

// InvalidateScenes drops the cached scene list.
func (c *Client) InvalidateScenes() {
	c.cacheMu.Lock()
	c.scenes = nil
	c.cacheMu.Unlock()
}

// ResolveScene looks a scene up by name. A cache miss triggers one refresh
// before the scene is declared missing.
//
// Returns:
//   - rotation.SceneHandle: The live scene
//   - error: Wraps rotation.ErrSceneNotFound when OBS has no such scene
func (c *Client) ResolveScene(ctx context.Context, name string) (rotation.SceneHandle, error) {
	if scenes, ok := c.cachedScenes(); ok {
		if h, found := findScene(scenes, name); found {
			return h, nil
		}
	}

	scenes, err := c.ListScenes(ctx)
	if err != nil {
		return rotation.SceneHandle{}, err
	}
	if h, found := findScene(scenes, name); found {
		return h, nil
	}
	return rotation.SceneHandle{}, fmt.Errorf("%w: %s", rotation.ErrSceneNotFound, name)
}

// SetCurrentScene makes the scene the program scene.
func (c *Client) SetCurrentScene(ctx context.Context, scene rotation.SceneHandle) error {
	err := c.request(ctx, "SetCurrentProgramScene", setProgramScene{SceneName: scene.Name}, nil)
	if err == nil {
		c.cacheMu.Lock()
		c.currentScene = scene.Name
		c.cacheMu.Unlock()
		return nil
	}

	var reqErr *RequestError
	if errors.As(err, &reqErr) && reqErr.Code == StatusResourceNotFound {
		c.InvalidateScenes()
		return fmt.Errorf("%w: %w", rotation.ErrSceneNotFound, err)
	}
	return err
}

// CurrentScene returns the program scene name, fetching it if no event or
// list response has reported it yet.
func (c *Client) CurrentScene(ctx context.Context) (string, error) {
	c.cacheMu.RLock()
	current := c.currentScene
	c.cacheMu.RUnlock()
	if current != "" {
		return current, nil
	}

	if _, err := c.ListScenes(ctx); err != nil {
		return "", err
	}
	c.cacheMu.RLock()
	defer c.cacheMu.RUnlock()
	return c.currentScene, nil
}

func findScene(scenes []SceneInfo, name string) (rotation.SceneHandle, bool) {
	for _, s := range scenes {
		if s.Name == name {
			return rotation.SceneHandle{Name: s.Name, UUID: s.UUID}, true
		}
	}
	return rotation.SceneHandle{}, false
}

func cloneSceneInfo(in []SceneInfo) []SceneInfo {
	out := make([]SceneInfo, len(in))
	copy(out, in)
	return out
}
