package logging_test

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"drugscreen/internal/config"
	"drugscreen/internal/logging"
	"drugscreen/internal/services"
)

func TestNewFromConfigWritesJSONLogFile(t *testing.T) {
	cfg := config.Default()
	cfg.Paths.LogDir = t.TempDir()

	logger, err := logging.NewFromConfig(&cfg)
	if err != nil {
		t.Fatalf("NewFromConfig returned error: %v", err)
	}
	logger.Info("pipeline ready", logging.String("dispatch_mode", "inline"))

	content, err := os.ReadFile(filepath.Join(cfg.Paths.LogDir, logging.LogFileName))
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	var entry map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(content), &entry); err != nil {
		t.Fatalf("expected JSON log line, got %q: %v", content, err)
	}
	if entry["msg"] != "pipeline ready" || entry["dispatch_mode"] != "inline" {
		t.Fatalf("unexpected log entry: %v", entry)
	}
	if entry["level"] != "info" {
		t.Fatalf("expected lower-case level, got %v", entry["level"])
	}
}

func TestConsoleLoggerOmitsCallerForInfo(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "console-info.log")
	logger, err := logging.New(logging.Options{Format: "console", Level: "info", OutputPaths: []string{logPath}})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	logger.Info("message without caller")

	content, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if strings.Contains(string(content), ".go:") {
		t.Fatalf("expected no caller information in info logs, got %q", content)
	}
}

func TestConsoleLoggerIncludesCallerForDebug(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "console-debug.log")
	logger, err := logging.New(logging.Options{Format: "console", Level: "debug", OutputPaths: []string{logPath}})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	logger.Info("message with caller")

	content, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(content), ".go:") {
		t.Fatalf("expected caller information in debug logs, got %q", content)
	}
}

func TestConsoleLoggerRendersTestSubjectAndHighlights(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "console.log")
	logger, err := logging.New(logging.Options{Format: "console", Level: "info", OutputPaths: []string{logPath}})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	ctx := services.WithStage(services.WithTestID(context.Background(), "t-42"), "screened")
	logging.WarnWithContext(
		logging.WithContext(ctx, logging.NewComponentLogger(logger, "notify")),
		"screening document pending",
		"document_pending",
		logging.Strings("failed_recipients", []string{"a@example.com", "b@example.com"}),
	)

	content, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	out := string(content)
	for _, want := range []string{"WARN [notify] Test t-42 (screened) - screening document pending", "Event: document_pending", "Failed: a@example.com, b@example.com", "Hint: check logs for details"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in console output, got %q", want, out)
		}
	}
}

func TestConsoleDebugFlattensRecipientLists(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "console-lists.log")
	logger, err := logging.New(logging.Options{Format: "console", Level: "debug", OutputPaths: []string{logPath}})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	logger.Debug("email batch",
		logging.Strings("sent_to", []string{"clerk@court.example", "hr@employer.example"}),
		logging.Strings("failed", nil),
		logging.String("subject", "Screen result ready"),
	)

	content, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	out := string(content)
	for _, want := range []string{
		"sent_to: clerk@court.example,hr@employer.example",
		"failed: none",
		`subject: "Screen result ready"`,
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in debug output, got %q", want, out)
		}
	}
}

func TestConsoleSubjectFromTestIDAttr(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "console.log")
	logger, err := logging.New(logging.Options{Format: "console", Level: "info", OutputPaths: []string{logPath}})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	logging.NewComponentLogger(logger, "workflow").Info("specimen collected", logging.TestID("t-77"))

	content, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if out := string(content); !strings.Contains(out, "[workflow] Test t-77 - specimen collected") {
		t.Fatalf("expected test subject in console output, got %q", out)
	}
}

func TestNewRejectsUnknownFormat(t *testing.T) {
	if _, err := logging.New(logging.Options{Format: "xml"}); err == nil {
		t.Fatal("expected error for unsupported format")
	}
}

func TestNewInvalidLevelDefaultsToInfo(t *testing.T) {
	logger, err := logging.New(logging.Options{Format: "console", Level: "invalid"})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	if logger.Enabled(context.Background(), slog.LevelDebug) {
		t.Fatal("expected debug disabled for unknown level")
	}
	if !logger.Enabled(context.Background(), slog.LevelInfo) {
		t.Fatal("expected info enabled for unknown level")
	}
}

func TestWithContextAddsFields(t *testing.T) {
	ctx := context.Background()
	ctx = services.WithTestID(ctx, "t-123")
	ctx = services.WithStage(ctx, "complete")
	ctx = services.WithRequestID(ctx, "req-xyz")

	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	logging.WithContext(ctx, logger).Info("contextual log")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("decode log entry: %v", err)
	}
	want := map[string]string{
		logging.FieldTestID:        "t-123",
		logging.FieldStage:         "complete",
		logging.FieldCorrelationID: "req-xyz",
	}
	for key, value := range want {
		if entry[key] != value {
			t.Fatalf("field %s = %v, want %q", key, entry[key], value)
		}
	}
}

func TestErrorWithContextKeepsCallerFields(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	logging.ErrorWithContext(logger, "document missing", "document_integrity",
		logging.String(logging.FieldErrorHint, "re-upload the document"),
		logging.Alert("critical"),
	)

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("decode log entry: %v", err)
	}
	if entry[logging.FieldErrorHint] != "re-upload the document" {
		t.Fatalf("expected caller hint to win, got %v", entry[logging.FieldErrorHint])
	}
	if entry[logging.FieldEventType] != "document_integrity" || entry[logging.FieldAlert] != "critical" {
		t.Fatalf("unexpected entry: %v", entry)
	}
}

func TestTeeLoggerDuplicatesRecords(t *testing.T) {
	var first, second bytes.Buffer
	base := slog.New(slog.NewJSONHandler(&first, nil))
	logger := logging.TeeLogger(base, slog.NewJSONHandler(&second, &slog.HandlerOptions{Level: slog.LevelWarn}))

	logger.Info("info only once")
	logger.Warn("warn twice")

	if strings.Count(first.String(), "\n") != 2 {
		t.Fatalf("expected base handler to receive both records, got %q", first.String())
	}
	if strings.Contains(second.String(), "info only once") || !strings.Contains(second.String(), "warn twice") {
		t.Fatalf("expected second handler to respect its level, got %q", second.String())
	}
}
