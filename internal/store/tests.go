package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"drugscreen/internal/screening"
	"drugscreen/internal/services"
)

const testColumns = "id, client_id, panel_id, screening_status, is_inconclusive, collected_at, medications_json, detected_json, expected_positives_json, unexpected_positives_json, unexpected_negatives_json, critical_negatives_json, initial_screen_result, auto_accept, confirmation_decision, confirmation_substances_json, confirmation_results_json, final_status, breathalyzer_taken, breathalyzer_bac, notifications_enabled, test_document_id, confirmation_document_id, created_at, updated_at"

// FindTest loads a test record together with its notification history.
func (s *Store) FindTest(ctx context.Context, id string) (*Test, error) {
	ctx = ensureContext(ctx)
	row := s.db.QueryRowContext(ctx, `SELECT `+testColumns+` FROM tests WHERE id = ?`, id)
	test, err := scanTest(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, services.Wrap(services.ErrNotFound, "store", "find test", "test "+id, nil)
	}
	if err != nil {
		return nil, fmt.Errorf("find test: %w", err)
	}
	if test.NotificationsSent, err = s.StageHistory(ctx, id); err != nil {
		return nil, err
	}
	return test, nil
}

// ListTests returns the most recently updated tests, newest first.
func (s *Store) ListTests(ctx context.Context, limit int) ([]*Test, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ensureContext(ctx), `SELECT `+testColumns+` FROM tests ORDER BY updated_at DESC, id LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list tests: %w", err)
	}
	defer rows.Close()

	var tests []*Test
	for rows.Next() {
		test, err := scanTest(rows)
		if err != nil {
			return nil, err
		}
		tests = append(tests, test)
	}
	return tests, rows.Err()
}

// SaveTest inserts or updates a test record. Unless opts.SuppressReentry is
// set, the same transaction enqueues the test in the outbox for notification
// evaluation. A final status, once stored, cannot be changed.
func (s *Store) SaveTest(ctx context.Context, test *Test, opts SaveOptions) error {
	if test == nil || test.ClientID == "" {
		return services.Wrap(services.ErrValidation, "store", "save test", "client id is required", nil)
	}
	if test.ID == "" {
		test.ID = uuid.NewString()
	}
	if test.ScreeningStatus == "" {
		test.ScreeningStatus = ScreeningCollected
	}
	if test.ConfirmationDecision == "" {
		test.ConfirmationDecision = DecisionPending
	}
	args, err := testArgs(test)
	if err != nil {
		return err
	}
	now := s.now()

	err = s.inTx(ctx, func(tx *sql.Tx) error {
		var (
			existingFinal sql.NullString
			createdRaw    sql.NullString
		)
		err := tx.QueryRowContext(ctx, `SELECT final_status, created_at FROM tests WHERE id = ?`, test.ID).Scan(&existingFinal, &createdRaw)
		switch {
		case errors.Is(err, sql.ErrNoRows):
			test.CreatedAt = now
		case err != nil:
			return fmt.Errorf("read existing test: %w", err)
		default:
			if existingFinal.String != "" && screening.Status(existingFinal.String) != test.FinalStatus {
				return services.Wrap(services.ErrValidation, "store", "save test",
					fmt.Sprintf("final status already set to %s", existingFinal.String), nil)
			}
			test.CreatedAt = parseTimeOrZero(createdRaw)
		}
		test.UpdatedAt = now

		values := append(append([]any(nil), args...), formatTime(test.CreatedAt), formatTime(test.UpdatedAt))
		if _, err := tx.ExecContext(ctx, `INSERT INTO tests (`+testColumns+`)
            VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
            ON CONFLICT(id) DO UPDATE SET
                client_id = excluded.client_id,
                panel_id = excluded.panel_id,
                screening_status = excluded.screening_status,
                is_inconclusive = excluded.is_inconclusive,
                collected_at = excluded.collected_at,
                medications_json = excluded.medications_json,
                detected_json = excluded.detected_json,
                expected_positives_json = excluded.expected_positives_json,
                unexpected_positives_json = excluded.unexpected_positives_json,
                unexpected_negatives_json = excluded.unexpected_negatives_json,
                critical_negatives_json = excluded.critical_negatives_json,
                initial_screen_result = excluded.initial_screen_result,
                auto_accept = excluded.auto_accept,
                confirmation_decision = excluded.confirmation_decision,
                confirmation_substances_json = excluded.confirmation_substances_json,
                confirmation_results_json = excluded.confirmation_results_json,
                final_status = excluded.final_status,
                breathalyzer_taken = excluded.breathalyzer_taken,
                breathalyzer_bac = excluded.breathalyzer_bac,
                notifications_enabled = excluded.notifications_enabled,
                test_document_id = excluded.test_document_id,
                confirmation_document_id = excluded.confirmation_document_id,
                updated_at = excluded.updated_at`,
			values...,
		); err != nil {
			return fmt.Errorf("upsert test: %w", err)
		}

		if opts.SuppressReentry {
			return nil
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO outbox (test_id, revision, enqueued_at)
            VALUES (?, 1, ?)
            ON CONFLICT(test_id) DO UPDATE SET
                revision = outbox.revision + 1,
                enqueued_at = excluded.enqueued_at`,
			test.ID, formatTime(now),
		); err != nil {
			return fmt.Errorf("enqueue outbox: %w", err)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("save test %s: %w", test.ID, err)
	}
	return nil
}

func testArgs(test *Test) ([]any, error) {
	encoded := make(map[string]string, 8)
	lists := []struct {
		column string
		encode func(string) (string, error)
	}{
		{"medications_json", func(c string) (string, error) { return encodeJSON(c, test.Medications) }},
		{"detected_json", func(c string) (string, error) { return encodeJSON(c, test.Detected) }},
		{"expected_positives_json", func(c string) (string, error) { return encodeJSON(c, test.ExpectedPositives) }},
		{"unexpected_positives_json", func(c string) (string, error) { return encodeJSON(c, test.UnexpectedPositives) }},
		{"unexpected_negatives_json", func(c string) (string, error) { return encodeJSON(c, test.UnexpectedNegatives) }},
		{"critical_negatives_json", func(c string) (string, error) { return encodeJSON(c, test.CriticalNegatives) }},
		{"confirmation_substances_json", func(c string) (string, error) { return encodeJSON(c, test.ConfirmationSubstances) }},
		{"confirmation_results_json", func(c string) (string, error) { return encodeJSON(c, test.ConfirmationResults) }},
	}
	for _, list := range lists {
		value, err := list.encode(list.column)
		if err != nil {
			return nil, err
		}
		encoded[list.column] = value
	}
	return []any{
		test.ID,
		test.ClientID,
		nullableString(test.PanelID),
		string(test.ScreeningStatus),
		boolToInt(test.IsInconclusive),
		formatTime(test.CollectedAt),
		encoded["medications_json"],
		encoded["detected_json"],
		encoded["expected_positives_json"],
		encoded["unexpected_positives_json"],
		encoded["unexpected_negatives_json"],
		encoded["critical_negatives_json"],
		nullableString(string(test.InitialScreenResult)),
		boolToInt(test.AutoAccept),
		string(test.ConfirmationDecision),
		encoded["confirmation_substances_json"],
		encoded["confirmation_results_json"],
		nullableString(string(test.FinalStatus)),
		boolToInt(test.Breathalyzer.Taken),
		test.Breathalyzer.BAC,
		boolToInt(test.NotificationsEnabled),
		nullableString(test.TestDocumentID),
		nullableString(test.ConfirmationDocumentID),
	}, nil
}

func scanTest(scanner rowScanner) (*Test, error) {
	var (
		test                                          Test
		panelID, collectedRaw, initialRaw, finalRaw   sql.NullString
		testDocID, confirmationDocID                  sql.NullString
		createdRaw, updatedRaw                        sql.NullString
		screeningStatus, decision                     string
		medsRaw, detectedRaw, expectedRaw             string
		unexpectedPosRaw, unexpectedNegRaw, critRaw   string
		confSubstancesRaw, confResultsRaw             string
		inconclusive, autoAccept, breathTaken, notify int
	)
	if err := scanner.Scan(
		&test.ID,
		&test.ClientID,
		&panelID,
		&screeningStatus,
		&inconclusive,
		&collectedRaw,
		&medsRaw,
		&detectedRaw,
		&expectedRaw,
		&unexpectedPosRaw,
		&unexpectedNegRaw,
		&critRaw,
		&initialRaw,
		&autoAccept,
		&decision,
		&confSubstancesRaw,
		&confResultsRaw,
		&finalRaw,
		&breathTaken,
		&test.Breathalyzer.BAC,
		&notify,
		&testDocID,
		&confirmationDocID,
		&createdRaw,
		&updatedRaw,
	); err != nil {
		return nil, err
	}

	test.PanelID = panelID.String
	test.ScreeningStatus = ScreeningStatus(screeningStatus)
	test.IsInconclusive = inconclusive != 0
	test.CollectedAt = parseTimeOrZero(collectedRaw)
	test.InitialScreenResult = screening.Status(initialRaw.String)
	test.AutoAccept = autoAccept != 0
	test.ConfirmationDecision = ConfirmationDecision(decision)
	test.FinalStatus = screening.Status(finalRaw.String)
	test.Breathalyzer.Taken = breathTaken != 0
	test.NotificationsEnabled = notify != 0
	test.TestDocumentID = testDocID.String
	test.ConfirmationDocumentID = confirmationDocID.String
	test.CreatedAt = parseTimeOrZero(createdRaw)
	test.UpdatedAt = parseTimeOrZero(updatedRaw)

	var err error
	if test.Medications, err = decodeJSON[screening.Medication]("medications_json", medsRaw); err != nil {
		return nil, err
	}
	if test.ConfirmationResults, err = decodeJSON[screening.ConfirmationResult]("confirmation_results_json", confResultsRaw); err != nil {
		return nil, err
	}
	stringLists := []struct {
		column string
		raw    string
		dst    *[]string
	}{
		{"detected_json", detectedRaw, &test.Detected},
		{"expected_positives_json", expectedRaw, &test.ExpectedPositives},
		{"unexpected_positives_json", unexpectedPosRaw, &test.UnexpectedPositives},
		{"unexpected_negatives_json", unexpectedNegRaw, &test.UnexpectedNegatives},
		{"critical_negatives_json", critRaw, &test.CriticalNegatives},
		{"confirmation_substances_json", confSubstancesRaw, &test.ConfirmationSubstances},
	}
	for _, list := range stringLists {
		if *list.dst, err = decodeJSON[string](list.column, list.raw); err != nil {
			return nil, err
		}
	}
	return &test, nil
}
