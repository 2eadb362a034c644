// Package logging builds the slog logger shared by every component.
//
// Records carry service and version fields; components add their own with
// Component. Attributes named password, secret or token are redacted.
//
//	logger := logging.New(cfg.Logging, version)
//	obsLog := logger.Component("obs")
//	obsLog.Warn("identify failed", "error", err)
package logging
