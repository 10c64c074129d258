// Package logging assembles structured slog loggers and formatting helpers used
// across drugscreen.
//
// It owns the console and JSON handlers, centralizes level and output plumbing,
// and exposes context-aware helpers so pipeline code tags every line with the
// test id, notification stage, and correlation id it is working on. WARN and
// ERROR entries carry event_type, error_hint, and impact fields; data integrity
// escalations additionally carry alert=critical.
package logging
