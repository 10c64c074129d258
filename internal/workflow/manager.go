package workflow

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"drugscreen/internal/config"
	"drugscreen/internal/logging"
	"drugscreen/internal/notify"
	"drugscreen/internal/services"
	"drugscreen/internal/store"
)

// Evaluator runs the notification pipeline for one test.
type Evaluator interface {
	OnTestSaved(ctx context.Context, testID string, opts store.SaveOptions) notify.Result
}

// Manager coordinates persistence and notification evaluation.
type Manager struct {
	cfg          *config.Config
	store        *store.Store
	evaluator    Evaluator
	logger       *slog.Logger
	mode         string
	pollInterval time.Duration
	batchSize    int

	// evalMu keeps evaluations sequential so inline drains and the worker
	// loop never dispatch the same test concurrently.
	evalMu sync.Mutex

	mu        sync.RWMutex
	running   bool
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	lastErr   error
	lastTest  string
	processed int
}

// NewManager constructs a workflow manager.
func NewManager(cfg *config.Config, st *store.Store, evaluator Evaluator, logger *slog.Logger) *Manager {
	batch := cfg.Notifications.BatchSize
	if batch <= 0 {
		batch = 25
	}
	return &Manager{
		cfg:          cfg,
		store:        st,
		evaluator:    evaluator,
		logger:       logging.NewComponentLogger(logger, "workflow"),
		mode:         cfg.Notifications.DispatchMode,
		pollInterval: cfg.PollInterval(),
		batchSize:    batch,
	}
}

// Store exposes the underlying store for read-only callers.
func (m *Manager) Store() *store.Store {
	return m.store
}

// SaveTest persists the record. Unless re-entry is suppressed the save is
// queued for notification evaluation, and in inline mode evaluated before
// SaveTest returns. Evaluation failures are logged and never fail the save.
func (m *Manager) SaveTest(ctx context.Context, test *store.Test, opts store.SaveOptions) error {
	if err := m.store.SaveTest(ctx, test, opts); err != nil {
		return err
	}
	if opts.SuppressReentry || m.mode != config.DispatchInline {
		return nil
	}
	if _, err := m.drain(ctx, test.ID); err != nil {
		logging.WarnWithContext(logging.WithContext(services.WithTestID(ctx, test.ID), m.logger),
			"inline notification evaluation failed; worker will retry", "inline_drain_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check database access"),
			logging.String(logging.FieldImpact, "notification delayed until the outbox is polled"),
		)
	}
	return nil
}

// Evaluate runs the pipeline for testID now, acknowledging its outbox entry
// if one is pending.
func (m *Manager) Evaluate(ctx context.Context, testID string) (notify.Result, error) {
	result, err := m.drain(ctx, testID)
	if err != nil {
		return notify.Result{}, err
	}
	if result != nil {
		return *result, nil
	}
	m.evalMu.Lock()
	defer m.evalMu.Unlock()
	return m.evaluator.OnTestSaved(ctx, testID, store.SaveOptions{}), nil
}

// Hook handles a save reported by an external writer. A suppressed save is
// passed through so the pipeline can log and skip it.
func (m *Manager) Hook(ctx context.Context, testID string, opts store.SaveOptions) (notify.Result, error) {
	if _, err := m.store.FindTest(ctx, testID); err != nil {
		return notify.Result{}, err
	}
	if !opts.SuppressReentry {
		return m.Evaluate(ctx, testID)
	}
	m.evalMu.Lock()
	defer m.evalMu.Unlock()
	return m.evaluator.OnTestSaved(ctx, testID, opts), nil
}

// drain evaluates the pending outbox entry for testID. It returns nil when no
// entry is pending.
func (m *Manager) drain(ctx context.Context, testID string) (*notify.Result, error) {
	m.evalMu.Lock()
	defer m.evalMu.Unlock()

	entry, ok, err := m.store.OutboxEntryFor(ctx, testID)
	if err != nil || !ok {
		return nil, err
	}
	result := m.process(ctx, entry)
	return &result, nil
}

// process evaluates one outbox entry and acknowledges that revision. Entries
// are acknowledged even when the pipeline failed: the next save re-enqueues.
func (m *Manager) process(ctx context.Context, entry store.OutboxEntry) notify.Result {
	result := m.evaluator.OnTestSaved(ctx, entry.TestID, store.SaveOptions{})

	m.mu.Lock()
	m.lastTest = entry.TestID
	m.processed++
	if result.Err != nil {
		m.lastErr = result.Err
	}
	m.mu.Unlock()

	acked, err := m.store.AckOutbox(ctx, entry)
	if err != nil {
		m.setLastError(err)
		logging.WarnWithContext(logging.WithContext(services.WithTestID(ctx, entry.TestID), m.logger),
			"outbox acknowledge failed", "outbox_ack_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check database access"),
			logging.String(logging.FieldImpact, "test will be evaluated again"),
		)
	} else if !acked {
		m.logger.Debug("outbox entry re-enqueued during evaluation", logging.TestID(entry.TestID))
	}
	return result
}

// StatusSummary represents lightweight workflow diagnostics.
type StatusSummary struct {
	Running   bool
	Mode      string
	LastError string
	LastTest  string
	Processed int
	Pending   int
}

// Status returns the latest workflow information.
func (m *Manager) Status(ctx context.Context) StatusSummary {
	m.mu.RLock()
	summary := StatusSummary{
		Running:   m.running,
		Mode:      m.mode,
		LastTest:  m.lastTest,
		Processed: m.processed,
	}
	if m.lastErr != nil {
		summary.LastError = m.lastErr.Error()
	}
	m.mu.RUnlock()

	pending, err := m.store.OutboxDepth(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		m.logger.Warn("failed to read outbox depth", logging.Error(err))
	}
	summary.Pending = pending
	return summary
}

func (m *Manager) setLastError(err error) {
	m.mu.Lock()
	m.lastErr = err
	m.mu.Unlock()
}
