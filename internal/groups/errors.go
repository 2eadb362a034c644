package groups

import "errors"

var (
	// ErrCorruptFile is returned when the groups file is not a JSON object of string arrays.
	ErrCorruptFile = errors.New("groups: corrupt groups file")

	// ErrWatchUnavailable is returned by Watch when the file watcher cannot be created.
	ErrWatchUnavailable = errors.New("groups: file watcher unavailable")
)
