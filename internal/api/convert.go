package api

import (
	"time"

	"drugscreen/internal/notify"
	"drugscreen/internal/screening"
	"drugscreen/internal/store"
	"drugscreen/internal/workflow"
)

// FromTest converts a store record to its API representation.
func FromTest(test *store.Test) Test {
	if test == nil {
		return Test{}
	}
	dto := Test{
		ID:                     test.ID,
		ClientID:               test.ClientID,
		PanelID:                test.PanelID,
		ScreeningStatus:        string(test.ScreeningStatus),
		IsInconclusive:         test.IsInconclusive,
		CollectedAt:            formatTime(test.CollectedAt),
		Detected:               nonNil(test.Detected),
		ExpectedPositives:      nonNil(test.ExpectedPositives),
		UnexpectedPositives:    nonNil(test.UnexpectedPositives),
		UnexpectedNegatives:    nonNil(test.UnexpectedNegatives),
		CriticalNegatives:      nonNil(test.CriticalNegatives),
		InitialScreenResult:    string(test.InitialScreenResult),
		AutoAccept:             test.AutoAccept,
		ConfirmationDecision:   string(test.ConfirmationDecision),
		ConfirmationSubstances: nonNil(test.ConfirmationSubstances),
		ConfirmationResults:    make([]ConfirmationResult, 0, len(test.ConfirmationResults)),
		FinalStatus:            string(test.FinalStatus),
		Breathalyzer:           Breathalyzer{Taken: test.Breathalyzer.Taken, BAC: test.Breathalyzer.BAC},
		NotificationsEnabled:   test.NotificationsEnabled,
		TestDocumentID:         test.TestDocumentID,
		ConfirmationDocumentID: test.ConfirmationDocumentID,
		NotificationsSent:      make([]StageRecord, 0, len(test.NotificationsSent)),
		CreatedAt:              formatTime(test.CreatedAt),
		UpdatedAt:              formatTime(test.UpdatedAt),
	}
	for _, r := range test.ConfirmationResults {
		dto.ConfirmationResults = append(dto.ConfirmationResults, ConfirmationResult{
			Substance: r.Substance,
			Outcome:   string(r.Outcome),
			Notes:     r.Notes,
		})
	}
	for _, rec := range test.NotificationsSent {
		dto.NotificationsSent = append(dto.NotificationsSent, StageRecord{
			Stage:  string(rec.Stage),
			SentAt: formatTime(rec.SentAt),
			SentTo: nonNil(rec.SentTo),
			Failed: nonNil(rec.Failed),
		})
	}
	return dto
}

// FromOutcome converts a classifier outcome.
func FromOutcome(outcome screening.Outcome) ScreenOutcome {
	return ScreenOutcome{
		Status:               string(outcome.Status),
		AutoAccept:           outcome.AutoAccept,
		Rule:                 outcome.Rule,
		BreathalyzerOverride: outcome.BreathalyzerOverride,
	}
}

// FromResult converts a pipeline result.
func FromResult(result notify.Result) EvaluationResponse {
	resp := EvaluationResponse{
		TestID:  result.TestID,
		Stage:   string(result.Stage),
		Outcome: string(result.Outcome),
		SentTo:  nonNil(result.SentTo),
		Failed:  nonNil(result.Failed),
	}
	if result.Err != nil {
		resp.Error = result.Err.Error()
	}
	return resp
}

// FromStatusSummary converts workflow diagnostics into a health payload.
func FromStatusSummary(summary workflow.StatusSummary) HealthResponse {
	return HealthResponse{
		Status:        "ok",
		DispatchMode:  summary.Mode,
		WorkerRunning: summary.Running,
		OutboxPending: summary.Pending,
		Processed:     summary.Processed,
		LastError:     summary.LastError,
	}
}

func toConfirmationResults(in []ConfirmationResult) []screening.ConfirmationResult {
	out := make([]screening.ConfirmationResult, 0, len(in))
	for _, r := range in {
		out = append(out, screening.ConfirmationResult{
			Substance: r.Substance,
			Outcome:   screening.ConfirmationOutcome(r.Outcome),
			Notes:     r.Notes,
		})
	}
	return out
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(dateTimeFormat)
}

func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}
