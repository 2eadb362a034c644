package groups

import "context"

// Repository loads and saves the whole group mapping.
// Implementations must treat a missing store as an empty mapping.
type Repository interface {
	Load(ctx context.Context) (map[string][]string, error)
	Save(ctx context.Context, groups map[string][]string) error
}

// Logger is the logging interface used by this package.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}
