package workflow

import (
	"context"
	"errors"
	"time"

	"drugscreen/internal/logging"
	"drugscreen/internal/metrics"
)

// Start begins polling the outbox in the background.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return errors.New("workflow already running")
	}
	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.running = true
	m.wg.Add(1)
	m.mu.Unlock()

	go m.run(runCtx)
	return nil
}

// Stop terminates background processing and waits for completion.
func (m *Manager) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	cancel := m.cancel
	m.running = false
	m.cancel = nil
	m.mu.Unlock()

	cancel()
	m.wg.Wait()
}

func (m *Manager) run(ctx context.Context) {
	defer m.wg.Done()
	m.logger.Info("outbox worker started",
		logging.String("dispatch_mode", m.mode),
		logging.Duration("poll_interval", m.pollInterval),
		logging.Int("batch_size", m.batchSize),
	)
	for {
		processed, err := m.ProcessPending(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			m.setLastError(err)
			m.logger.Error("failed to read outbox",
				logging.Error(err),
				logging.String(logging.FieldEventType, "outbox_fetch_failed"),
				logging.String(logging.FieldErrorHint, "check database access"),
			)
		}
		if processed >= m.batchSize {
			continue
		}
		if !m.wait(ctx) {
			return
		}
	}
}

// ProcessPending evaluates one batch of outbox entries, oldest first, and
// reports how many were processed.
func (m *Manager) ProcessPending(ctx context.Context) (int, error) {
	entries, err := m.store.PendingOutbox(ctx, m.batchSize)
	if err != nil {
		return 0, err
	}
	metrics.OutboxPending.Set(float64(len(entries)))
	processed := 0
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return processed, err
		}
		m.evalMu.Lock()
		m.process(ctx, entry)
		m.evalMu.Unlock()
		processed++
	}
	return processed, nil
}

func (m *Manager) wait(ctx context.Context) bool {
	if m.pollInterval <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(m.pollInterval)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
