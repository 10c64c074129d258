package testsupport

import (
	"context"
	"log/slog"
	"slices"
	"sync"
)

// LogEntry is a captured log record with flattened attributes.
type LogEntry struct {
	Level   slog.Level
	Message string
	Attrs   map[string]any
}

// LogRecorder is a slog.Handler that keeps every record for assertions.
type LogRecorder struct {
	mu      *sync.Mutex
	entries *[]LogEntry
	attrs   []slog.Attr
}

// NewLogRecorder returns a recorder and a logger writing to it at debug level.
func NewLogRecorder() (*LogRecorder, *slog.Logger) {
	rec := &LogRecorder{mu: &sync.Mutex{}, entries: &[]LogEntry{}}
	return rec, slog.New(rec)
}

func (r *LogRecorder) Enabled(context.Context, slog.Level) bool { return true }

func (r *LogRecorder) Handle(_ context.Context, record slog.Record) error {
	entry := LogEntry{Level: record.Level, Message: record.Message, Attrs: map[string]any{}}
	for _, attr := range r.attrs {
		entry.Attrs[attr.Key] = attr.Value.Resolve().Any()
	}
	record.Attrs(func(attr slog.Attr) bool {
		entry.Attrs[attr.Key] = attr.Value.Resolve().Any()
		return true
	})
	r.mu.Lock()
	defer r.mu.Unlock()
	*r.entries = append(*r.entries, entry)
	return nil
}

func (r *LogRecorder) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &LogRecorder{mu: r.mu, entries: r.entries, attrs: append(slices.Clone(r.attrs), attrs...)}
}

func (r *LogRecorder) WithGroup(string) slog.Handler { return r }

// Entries returns a copy of the captured records.
func (r *LogRecorder) Entries() []LogEntry {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(*r.entries)
}

// Find returns the captured records whose message matches.
func (r *LogRecorder) Find(message string) []LogEntry {
	var out []LogEntry
	for _, entry := range r.Entries() {
		if entry.Message == message {
			out = append(out, entry)
		}
	}
	return out
}

// AtLevel returns the captured records at or above level.
func (r *LogRecorder) AtLevel(level slog.Level) []LogEntry {
	var out []LogEntry
	for _, entry := range r.Entries() {
		if entry.Level >= level {
			out = append(out, entry)
		}
	}
	return out
}
