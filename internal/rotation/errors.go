package rotation

import "errors"

// Domain errors for the rotation package.
//
// These errors can be checked using errors.Is():
//
//	if errors.Is(err, rotation.ErrGroupNotFound) {
//	    // handle unknown group
//	}
var (
	// ErrGroupNotFound is returned when a group name does not exist in the store.
	ErrGroupNotFound = errors.New("rotation: group not found")

	// ErrSceneNotFound is returned by a SceneHost when a scene name no longer resolves.
	ErrSceneNotFound = errors.New("rotation: scene not found")

	// ErrInvalidName is returned when a group name is empty.
	ErrInvalidName = errors.New("rotation: invalid group name")

	// ErrInvalidScene is returned when a scene name is empty.
	ErrInvalidScene = errors.New("rotation: invalid scene name")

	// ErrInvalidIndex is returned when a scene index is outside the group.
	ErrInvalidIndex = errors.New("rotation: scene index out of range")

	// ErrInvalidInterval is returned when a rotation interval is not positive.
	ErrInvalidInterval = errors.New("rotation: interval must be positive")

	// ErrQueueFull is returned when the host task queue cannot accept more work.
	ErrQueueFull = errors.New("rotation: task queue full")

	// ErrHostUnavailable is returned when no scene host is connected.
	ErrHostUnavailable = errors.New("rotation: scene host unavailable")

	// ErrConfigIO wraps failures of the group persistence collaborator.
	ErrConfigIO = errors.New("rotation: group storage failed")
)
