package workflow

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"drugscreen/internal/logging"
	"drugscreen/internal/screening"
	"drugscreen/internal/services"
	"drugscreen/internal/store"
)

// CollectInput starts a new test.
type CollectInput struct {
	ClientID    string
	PanelID     string
	CollectedAt time.Time
	// DisableNotifications turns notifications off for this record.
	DisableNotifications bool
}

// Collect creates a test for a client, snapshotting the client's current
// medications so later medication edits do not change how it is classified.
func (m *Manager) Collect(ctx context.Context, in CollectInput) (*store.Test, error) {
	client, err := m.store.FindClient(ctx, in.ClientID)
	if err != nil {
		return nil, err
	}
	if in.PanelID != "" {
		if _, err := m.store.FindPanel(ctx, in.PanelID); err != nil {
			return nil, err
		}
	}
	collected := in.CollectedAt
	if collected.IsZero() {
		collected = time.Now().UTC()
	}
	test := &store.Test{
		ClientID:             client.ID,
		PanelID:              in.PanelID,
		ScreeningStatus:      store.ScreeningCollected,
		CollectedAt:          collected,
		Medications:          slices.Clone(client.Medications),
		NotificationsEnabled: !in.DisableNotifications,
	}
	if err := m.SaveTest(ctx, test, store.SaveOptions{}); err != nil {
		return nil, err
	}
	m.logger.Info("specimen collected",
		logging.TestID(test.ID),
		logging.String("client_id", client.ID),
		logging.String("panel_id", in.PanelID),
		logging.Int("medication_count", len(test.Medications)),
	)
	return test, nil
}

// ScreenInput carries an initial screen reading.
type ScreenInput struct {
	Detected     []string
	Breathalyzer screening.Breathalyzer
	DocumentID   string
}

// RecordScreen classifies the screen and stores the result. Auto-accepted
// results receive their final status immediately. A test is screened once.
func (m *Manager) RecordScreen(ctx context.Context, testID string, in ScreenInput) (*store.Test, screening.Outcome, error) {
	test, err := m.store.FindTest(ctx, testID)
	if err != nil {
		return nil, screening.Outcome{}, err
	}
	if test.FinalStatus != "" {
		return nil, screening.Outcome{}, services.Wrap(services.ErrValidation, "workflow", "record screen",
			fmt.Sprintf("final status already set to %s", test.FinalStatus), nil)
	}
	if test.ScreeningStatus == store.ScreeningScreened {
		return nil, screening.Outcome{}, services.Wrap(services.ErrValidation, "workflow", "record screen",
			fmt.Sprintf("test already screened as %s", test.InitialScreenResult), nil)
	}
	var panel *screening.Panel
	if test.PanelID != "" {
		if panel, err = m.store.FindPanel(ctx, test.PanelID); err != nil {
			return nil, screening.Outcome{}, err
		}
	}

	outcome, err := screening.Compute(screening.Input{
		Detected:     in.Detected,
		Medications:  test.Medications,
		Panel:        panel,
		Breathalyzer: in.Breathalyzer,
	})
	if err != nil {
		return nil, screening.Outcome{}, err
	}

	test.ScreeningStatus = store.ScreeningScreened
	test.Detected = normalizedSubstances(in.Detected)
	test.ExpectedPositives = outcome.ExpectedPositives
	test.UnexpectedPositives = outcome.UnexpectedPositives
	test.UnexpectedNegatives = outcome.UnexpectedNegatives
	test.CriticalNegatives = outcome.CriticalNegatives
	test.InitialScreenResult = outcome.Status
	test.AutoAccept = outcome.AutoAccept
	test.Breathalyzer = in.Breathalyzer
	if in.DocumentID != "" {
		test.TestDocumentID = in.DocumentID
	}
	if outcome.AutoAccept {
		test.FinalStatus = outcome.Status
	}

	if err := m.SaveTest(ctx, test, store.SaveOptions{}); err != nil {
		return nil, screening.Outcome{}, err
	}
	m.logger.Info("screen recorded",
		logging.TestID(test.ID),
		logging.String("screen_result", string(outcome.Status)),
		logging.Bool("auto_accept", outcome.AutoAccept),
		logging.String("rule", outcome.Rule),
		logging.Bool("breathalyzer_override", outcome.BreathalyzerOverride),
	)
	return test, outcome, nil
}

// RecordDecision stores the client's choice after a screen that was not
// auto-accepted. Accepting finalizes the screen result; requesting
// confirmation starts a batch for substances (default: the unexpected
// positives).
func (m *Manager) RecordDecision(ctx context.Context, testID string, decision store.ConfirmationDecision, substances []string) (*store.Test, error) {
	test, err := m.store.FindTest(ctx, testID)
	if err != nil {
		return nil, err
	}
	if test.ScreeningStatus != store.ScreeningScreened || test.InitialScreenResult == "" {
		return nil, services.Wrap(services.ErrValidation, "workflow", "record decision", "test has not been screened", nil)
	}
	if test.AutoAccept || test.FinalStatus != "" {
		return nil, services.Wrap(services.ErrValidation, "workflow", "record decision", "result is already final", nil)
	}
	if test.ConfirmationDecision != store.DecisionPending {
		return nil, services.Wrap(services.ErrValidation, "workflow", "record decision",
			fmt.Sprintf("decision already recorded as %s", test.ConfirmationDecision), nil)
	}

	switch decision {
	case store.DecisionAccept:
		test.ConfirmationDecision = store.DecisionAccept
		test.FinalStatus = test.InitialScreenResult
	case store.DecisionRequestConfirmation:
		requested := normalizedSubstances(substances)
		if len(requested) == 0 {
			requested = slices.Clone(test.UnexpectedPositives)
		}
		if len(requested) == 0 {
			return nil, services.Wrap(services.ErrValidation, "workflow", "record decision", "no substances to confirm", nil)
		}
		test.ConfirmationDecision = store.DecisionRequestConfirmation
		test.ConfirmationSubstances = requested
		test.ConfirmationResults = nil
	default:
		return nil, services.Wrap(services.ErrValidation, "workflow", "record decision", fmt.Sprintf("unknown decision %q", decision), nil)
	}

	if err := m.SaveTest(ctx, test, store.SaveOptions{}); err != nil {
		return nil, err
	}
	m.logger.Info("confirmation decision recorded",
		logging.TestID(test.ID),
		logging.String("decision", string(decision)),
		logging.Strings("substances", test.ConfirmationSubstances),
	)
	return test, nil
}

// RecordConfirmation merges lab results into the confirmation batch. A result
// for a substance already in the batch replaces it. Once every requested
// substance has a result the final status is resolved, exactly once.
func (m *Manager) RecordConfirmation(ctx context.Context, testID string, results []screening.ConfirmationResult, documentID string) (*store.Test, error) {
	test, err := m.store.FindTest(ctx, testID)
	if err != nil {
		return nil, err
	}
	if test.ConfirmationDecision != store.DecisionRequestConfirmation {
		return nil, services.Wrap(services.ErrValidation, "workflow", "record confirmation", "confirmation was not requested", nil)
	}
	if test.FinalStatus != "" {
		return nil, services.Wrap(services.ErrValidation, "workflow", "record confirmation", "result is already final", nil)
	}

	requested := make(map[string]struct{}, len(test.ConfirmationSubstances))
	for _, s := range test.ConfirmationSubstances {
		requested[screening.NormalizeSubstance(s)] = struct{}{}
	}
	merged := slices.Clone(test.ConfirmationResults)
	for _, r := range results {
		code := screening.NormalizeSubstance(r.Substance)
		if _, ok := requested[code]; !ok {
			return nil, services.Wrap(services.ErrValidation, "workflow", "record confirmation",
				fmt.Sprintf("substance %q was not requested", r.Substance), nil)
		}
		switch r.Outcome {
		case screening.ConfirmedPositive, screening.ConfirmedNegative, screening.ConfirmationInconclusive:
		default:
			return nil, services.Wrap(services.ErrValidation, "workflow", "record confirmation",
				fmt.Sprintf("unknown outcome %q", r.Outcome), nil)
		}
		r.Substance = code
		if i := slices.IndexFunc(merged, func(c screening.ConfirmationResult) bool {
			return screening.NormalizeSubstance(c.Substance) == code
		}); i >= 0 {
			merged[i] = r
		} else {
			merged = append(merged, r)
		}
	}
	test.ConfirmationResults = merged
	if documentID != "" {
		test.ConfirmationDocumentID = documentID
	}

	if test.ConfirmationResolved() {
		test.FinalStatus = screening.ResolveConfirmation(screening.ConfirmationInput{
			Initial:             test.InitialScreenResult,
			ExpectedPositives:   test.ExpectedPositives,
			UnexpectedPositives: test.UnexpectedPositives,
			Results:             test.ConfirmationResults,
			Breathalyzer:        test.Breathalyzer,
		})
		m.logger.Info("confirmation batch resolved",
			logging.TestID(test.ID),
			logging.String("final_status", string(test.FinalStatus)),
		)
	}

	if err := m.SaveTest(ctx, test, store.SaveOptions{}); err != nil {
		return nil, err
	}
	return test, nil
}

// DocumentKind selects which document slot AttachDocument fills.
type DocumentKind string

const (
	DocumentScreening    DocumentKind = "screening"
	DocumentConfirmation DocumentKind = "confirmation"
)

// AttachDocument records a document id on the test. Attaching a document is
// what releases a deferred stage.
func (m *Manager) AttachDocument(ctx context.Context, testID string, kind DocumentKind, documentID string) (*store.Test, error) {
	if strings.TrimSpace(documentID) == "" {
		return nil, services.Wrap(services.ErrValidation, "workflow", "attach document", "document id is required", nil)
	}
	if _, err := m.store.FindDocument(ctx, documentID); err != nil {
		return nil, err
	}
	test, err := m.store.FindTest(ctx, testID)
	if err != nil {
		return nil, err
	}
	switch kind {
	case DocumentScreening:
		test.TestDocumentID = documentID
	case DocumentConfirmation:
		test.ConfirmationDocumentID = documentID
	default:
		return nil, services.Wrap(services.ErrValidation, "workflow", "attach document", fmt.Sprintf("unknown document kind %q", kind), nil)
	}
	if err := m.SaveTest(ctx, test, store.SaveOptions{}); err != nil {
		return nil, err
	}
	return test, nil
}

// MarkInconclusive flags the test inconclusive. The inconclusive final status
// is only applied when no final status exists yet.
func (m *Manager) MarkInconclusive(ctx context.Context, testID, reason string) (*store.Test, error) {
	test, err := m.store.FindTest(ctx, testID)
	if err != nil {
		return nil, err
	}
	if test.IsInconclusive {
		return test, nil
	}
	test.IsInconclusive = true
	if test.FinalStatus == "" {
		test.FinalStatus = screening.StatusInconclusive
	}
	if err := m.SaveTest(ctx, test, store.SaveOptions{}); err != nil {
		return nil, err
	}
	m.logger.Info("test marked inconclusive",
		logging.TestID(test.ID),
		logging.String("reason", reason),
	)
	return test, nil
}

// SetNotifications toggles notifications on a record.
func (m *Manager) SetNotifications(ctx context.Context, testID string, enabled bool) (*store.Test, error) {
	test, err := m.store.FindTest(ctx, testID)
	if err != nil {
		return nil, err
	}
	test.NotificationsEnabled = enabled
	if err := m.SaveTest(ctx, test, store.SaveOptions{}); err != nil {
		return nil, err
	}
	return test, nil
}

func normalizedSubstances(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if code := screening.NormalizeSubstance(v); code != "" && !slices.Contains(out, code) {
			out = append(out, code)
		}
	}
	slices.Sort(out)
	return out
}
