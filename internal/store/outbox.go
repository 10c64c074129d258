package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// PendingOutbox returns up to limit tests awaiting notification evaluation, oldest first.
func (s *Store) PendingOutbox(ctx context.Context, limit int) ([]OutboxEntry, error) {
	if limit <= 0 {
		limit = 25
	}
	rows, err := s.db.QueryContext(ensureContext(ctx),
		`SELECT test_id, revision, enqueued_at FROM outbox ORDER BY enqueued_at, test_id LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("pending outbox: %w", err)
	}
	defer rows.Close()

	var entries []OutboxEntry
	for rows.Next() {
		var (
			entry   OutboxEntry
			enqueue sql.NullString
		)
		if err := rows.Scan(&entry.TestID, &entry.Revision, &enqueue); err != nil {
			return nil, err
		}
		entry.EnqueuedAt = parseTimeOrZero(enqueue)
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// OutboxEntryFor returns the pending entry for a test, if any.
func (s *Store) OutboxEntryFor(ctx context.Context, testID string) (OutboxEntry, bool, error) {
	var (
		entry   OutboxEntry
		enqueue sql.NullString
	)
	err := s.db.QueryRowContext(ensureContext(ctx),
		`SELECT test_id, revision, enqueued_at FROM outbox WHERE test_id = ?`, testID,
	).Scan(&entry.TestID, &entry.Revision, &enqueue)
	if errors.Is(err, sql.ErrNoRows) {
		return OutboxEntry{}, false, nil
	}
	if err != nil {
		return OutboxEntry{}, false, fmt.Errorf("outbox entry: %w", err)
	}
	entry.EnqueuedAt = parseTimeOrZero(enqueue)
	return entry, true, nil
}

// AckOutbox removes an entry once it has been evaluated. A save that
// re-enqueued the test after the entry was read bumps its revision, so the
// newer entry survives and is evaluated again.
func (s *Store) AckOutbox(ctx context.Context, entry OutboxEntry) (bool, error) {
	res, err := s.execWithRetry(ctx, `DELETE FROM outbox WHERE test_id = ? AND revision = ?`, entry.TestID, entry.Revision)
	if err != nil {
		return false, fmt.Errorf("ack outbox: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("ack outbox rows affected: %w", err)
	}
	return affected > 0, nil
}

// OutboxDepth counts pending entries.
func (s *Store) OutboxDepth(ctx context.Context) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ensureContext(ctx), `SELECT COUNT(*) FROM outbox`).Scan(&count); err != nil {
		return 0, fmt.Errorf("outbox depth: %w", err)
	}
	return count, nil
}
