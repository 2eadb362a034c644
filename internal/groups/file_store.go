package groups

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

const (
	dirPermissions  = 0750
	filePermissions = 0644

	// watchSettle delays a reload so editors that write in several steps
	// are read once, after the last step.
	watchSettle = 200 * time.Millisecond
)

// FileStore persists groups as a JSON object in a single file.
type FileStore struct {
	path   string
	logger Logger

	// mu serialises writes so concurrent saves never interleave temp files.
	mu sync.Mutex
	// lastWrite is the content this process last wrote; Watch skips
	// events that merely echo it.
	lastWrite []byte
}

// NewFileStore creates a store backed by path.
func NewFileStore(path string, logger Logger) *FileStore {
	if logger == nil {
		logger = noopLogger{}
	}
	return &FileStore{path: path, logger: logger}
}

// Path returns the backing file path.
func (s *FileStore) Path() string { return s.path }

// Load reads the mapping. A missing file yields an empty mapping.
func (s *FileStore) Load(_ context.Context) (map[string][]string, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return map[string][]string{}, nil
		}
		return nil, fmt.Errorf("reading %s: %w", s.path, err)
	}
	return decode(data)
}

// Save writes the mapping atomically.
func (s *FileStore) Save(_ context.Context, groups map[string][]string) error {
	data, err := encode(groups)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(s.path), dirPermissions); err != nil {
		return fmt.Errorf("creating groups directory: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, filePermissions); err != nil {
		return fmt.Errorf("writing %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		_ = os.Remove(tmp) //nolint:errcheck // Best effort cleanup
		return fmt.Errorf("replacing %s: %w", s.path, err)
	}
	s.lastWrite = data
	return nil
}

// Watch calls onChange with the freshly loaded mapping whenever the file is
// changed by another process, and onFail (may be nil) when the changed file
// cannot be read or decoded. A failed reload leaves the previous mapping in
// place. It blocks until ctx is cancelled.
//
// The parent directory is watched rather than the file, because atomic
// writers (including Save) replace the file and break a file-level watch.
func (s *FileStore) Watch(ctx context.Context, onChange func(map[string][]string), onFail func(error)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrWatchUnavailable, err)
	}
	defer watcher.Close()

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, dirPermissions); err != nil {
		return fmt.Errorf("creating groups directory: %w", err)
	}
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("%w: watching %s: %v", ErrWatchUnavailable, dir, err)
	}

	s.logger.Info("watching groups file", "path", s.path)

	target := filepath.Clean(s.path)
	var settle *time.Timer
	reload := make(chan struct{}, 1)
	defer func() {
		if settle != nil {
			settle.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			if settle != nil {
				settle.Stop()
			}
			settle = time.AfterFunc(watchSettle, func() {
				select {
				case reload <- struct{}{}:
				default:
				}
			})

		case <-reload:
			if err := s.reloadFromDisk(onChange); err != nil {
				s.logger.Warn("reloading groups file failed", "path", s.path, "error", err)
				if onFail != nil {
					onFail(err)
				}
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			s.logger.Warn("groups watcher error", "error", err)
		}
	}
}

// reloadFromDisk reads the file after an external change. A file removed
// mid-rename is skipped; the following create event reloads it.
func (s *FileStore) reloadFromDisk(onChange func(map[string][]string)) error {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("reading %s: %w", s.path, err)
	}

	s.mu.Lock()
	own := string(data) == string(s.lastWrite)
	s.mu.Unlock()
	if own {
		return nil
	}

	groups, err := decode(data)
	if err != nil {
		return fmt.Errorf("reading %s: %w", s.path, err)
	}
	s.logger.Info("groups file changed on disk", "path", s.path, "groups", len(groups))
	onChange(groups)
	return nil
}

func decode(data []byte) (map[string][]string, error) {
	groups := map[string][]string{}
	if len(data) == 0 {
		return groups, nil
	}
	if err := json.Unmarshal(data, &groups); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptFile, err)
	}
	for name, scenes := range groups {
		if scenes == nil {
			groups[name] = []string{}
		}
	}
	return groups, nil
}

func encode(groups map[string][]string) ([]byte, error) {
	out := make(map[string][]string, len(groups))
	for name, scenes := range groups {
		if scenes == nil {
			scenes = []string{}
		}
		out[name] = scenes
	}
	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encoding groups: %w", err)
	}
	return append(data, '\n'), nil
}
