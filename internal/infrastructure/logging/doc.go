// Package logging provides structured logging for Sentinel Core.
//
// It wraps the standard library's log/slog with configuration-driven
// setup (level, format, output) and default service fields. Components
// derive their own loggers via With:
//
//	alarmLog := logger.With("component", "alarm")
package logging
