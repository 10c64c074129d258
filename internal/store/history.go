package store

import (
	"context"
	"database/sql"
	"fmt"

	"drugscreen/internal/services"
)

// RecordStage appends a stage to a test's notification history. The history
// is a set: recording a stage that is already present leaves the original
// entry untouched and reports inserted=false. It never enqueues the outbox.
func (s *Store) RecordStage(ctx context.Context, record StageRecord) (bool, error) {
	if record.TestID == "" || record.Stage == "" {
		return false, services.Wrap(services.ErrValidation, "store", "record stage", "test id and stage are required", nil)
	}
	if record.SentAt.IsZero() {
		record.SentAt = s.now()
	}
	sentTo, err := encodeJSON("sent_to_json", record.SentTo)
	if err != nil {
		return false, err
	}
	failed, err := encodeJSON("failed_json", record.Failed)
	if err != nil {
		return false, err
	}
	res, err := s.execWithRetry(ctx, `INSERT OR IGNORE INTO stage_history (test_id, stage, sent_at, sent_to_json, failed_json)
        VALUES (?, ?, ?, ?, ?)`,
		record.TestID, string(record.Stage), formatTime(record.SentAt), sentTo, failed,
	)
	if err != nil {
		return false, fmt.Errorf("record stage: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("record stage rows affected: %w", err)
	}
	return affected > 0, nil
}

// StageHistory returns a test's notification history in the order stages were sent.
func (s *Store) StageHistory(ctx context.Context, testID string) ([]StageRecord, error) {
	rows, err := s.db.QueryContext(ensureContext(ctx),
		`SELECT test_id, stage, sent_at, sent_to_json, failed_json FROM stage_history WHERE test_id = ? ORDER BY sent_at, rowid`,
		testID,
	)
	if err != nil {
		return nil, fmt.Errorf("stage history: %w", err)
	}
	defer rows.Close()

	var history []StageRecord
	for rows.Next() {
		var (
			record            StageRecord
			stage             string
			sentRaw           sql.NullString
			sentToRaw, failed string
		)
		if err := rows.Scan(&record.TestID, &stage, &sentRaw, &sentToRaw, &failed); err != nil {
			return nil, err
		}
		record.Stage = Stage(stage)
		record.SentAt = parseTimeOrZero(sentRaw)
		if record.SentTo, err = decodeJSON[string]("sent_to_json", sentToRaw); err != nil {
			return nil, err
		}
		if record.Failed, err = decodeJSON[string]("failed_json", failed); err != nil {
			return nil, err
		}
		history = append(history, record)
	}
	return history, rows.Err()
}
