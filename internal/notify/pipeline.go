package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"

	"github.com/google/uuid"

	"drugscreen/internal/alerts"
	"drugscreen/internal/documents"
	"drugscreen/internal/email"
	"drugscreen/internal/logging"
	"drugscreen/internal/metrics"
	"drugscreen/internal/screening"
	"drugscreen/internal/services"
	"drugscreen/internal/store"
)

// Records is the persistence surface the pipeline needs.
type Records interface {
	FindTest(ctx context.Context, id string) (*store.Test, error)
	FindPanel(ctx context.Context, id string) (*screening.Panel, error)
	RecordStage(ctx context.Context, record store.StageRecord) (bool, error)
}

// DocumentFetcher resolves attachment bytes.
type DocumentFetcher interface {
	Fetch(ctx context.Context, id string) (documents.Document, error)
}

// RecipientResolver resolves the audience for a client.
type RecipientResolver interface {
	Resolve(ctx context.Context, clientID string) RecipientSet
}

// Outcome summarizes one pipeline run.
type Outcome string

const (
	OutcomeSent     Outcome = "sent"
	OutcomeDeferred Outcome = "deferred"
	OutcomeSkipped  Outcome = "skipped"
	OutcomeIdle     Outcome = "idle"
	OutcomeFailed   Outcome = "failed"
)

// Result reports what a pipeline run did. Err is set for failed runs and is
// informational; the pipeline has already logged it.
type Result struct {
	TestID  string
	Stage   store.Stage
	Outcome Outcome
	SentTo  []string
	Failed  []string
	Err     error
}

// Pipeline evaluates saved test records and delivers due stages.
type Pipeline struct {
	records    Records
	recipients RecipientResolver
	renderer   Renderer
	documents  DocumentFetcher
	dispatcher *Dispatcher
	alerts     alerts.Channel
	enabled    bool
	logger     *slog.Logger
}

// PipelineDeps bundles pipeline collaborators.
type PipelineDeps struct {
	Records    Records
	Recipients RecipientResolver
	Renderer   Renderer
	Documents  DocumentFetcher
	Dispatcher *Dispatcher
	Alerts     alerts.Channel
	// Enabled is the global switch; per-record flags apply on top of it.
	Enabled bool
	Logger  *slog.Logger
}

func NewPipeline(deps PipelineDeps) *Pipeline {
	return &Pipeline{
		records:    deps.Records,
		recipients: deps.Recipients,
		renderer:   deps.Renderer,
		documents:  deps.Documents,
		dispatcher: deps.Dispatcher,
		alerts:     deps.Alerts,
		enabled:    deps.Enabled,
		logger:     logging.NewComponentLogger(deps.Logger, "notify"),
	}
}

// OnTestSaved is the persistence callback. It never returns an error or
// panics; every failure is logged and reported through Result, and the
// record's stage history is only touched after a dispatch.
func (p *Pipeline) OnTestSaved(ctx context.Context, testID string, opts store.SaveOptions) (result Result) {
	if _, ok := services.RequestIDFromContext(ctx); !ok {
		ctx = services.WithRequestID(ctx, uuid.NewString())
	}
	ctx = services.WithTestID(ctx, testID)
	result = Result{TestID: testID}
	logger := logging.WithContext(ctx, p.logger)

	if opts.SuppressReentry {
		logger.Debug("notification evaluation suppressed for history write")
		result.Outcome = OutcomeSkipped
		return result
	}
	if !p.enabled {
		logger.Debug("notifications disabled globally")
		result.Outcome = OutcomeSkipped
		return result
	}

	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("notification pipeline panic: %v", r)
			logging.ErrorWithContext(logger, "notification pipeline panicked", "pipeline_panic",
				logging.Error(err),
				logging.String("stack", string(debug.Stack())),
				logging.String(logging.FieldErrorHint, "report this defect; the stage will retry on the next save"),
			)
			result.Outcome = OutcomeFailed
			result.Err = err
			metrics.NotificationStageTotal.WithLabelValues(string(result.Stage), string(OutcomeFailed)).Inc()
		}
	}()

	return p.evaluate(ctx, logger, result)
}

func (p *Pipeline) evaluate(ctx context.Context, logger *slog.Logger, result Result) Result {
	test, err := p.records.FindTest(ctx, result.TestID)
	if err != nil {
		return p.fail(logger, result, "test lookup failed", "test_lookup_failed", "verify the test id exists", err)
	}

	var panel *screening.Panel
	if test.PanelID != "" {
		panel, err = p.records.FindPanel(ctx, test.PanelID)
		if err != nil {
			logging.WarnWithContext(logger, "panel lookup failed; treating test as instant", "panel_lookup_failed",
				logging.String("panel_id", test.PanelID),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check the panel catalog"),
				logging.String(logging.FieldImpact, "collected stage will not fire for this test"),
			)
			panel = nil
		}
	}

	decision := Decide(test, panel)
	result.Stage = decision.Stage
	ctx = services.WithStage(ctx, string(decision.Stage))
	logger = logging.WithContext(ctx, p.logger)

	switch decision.Action {
	case ActionSkip:
		logger.Debug("notifications disabled for test")
		result.Outcome = OutcomeSkipped
		return p.count(result)
	case ActionNone:
		logger.Debug("no notification stage due", logging.String(logging.FieldDecisionReason, decision.Reason))
		result.Outcome = OutcomeIdle
		return result
	case ActionDefer:
		logger.Info("notification stage waiting for document",
			logging.String(logging.FieldEventType, "document_pending"),
			logging.String(logging.FieldDecisionReason, decision.Reason),
		)
		result.Outcome = OutcomeDeferred
		return p.count(result)
	}

	logger.Info("notification stage due", logging.Args(logging.DecisionAttrs("notification_stage", string(decision.Stage), decision.Reason)...)...)

	recipients := p.recipients.Resolve(ctx, test.ClientID)
	if recipients.Empty() {
		return p.fail(logger, result, "no recipients resolved; stage aborted", "recipients_empty",
			"check the client email and referral contacts", services.Wrap(services.ErrMissingPrereqs, "notify", "resolve recipients", "empty recipient set", nil))
	}

	if decision.Stage == store.StageCollected && len(recipients.Referrals) == 0 {
		logger.Info("no referral recipients; collected stage recorded without sends",
			logging.String(logging.FieldDecisionReason, "collected notices go to referrals only"),
		)
		if err := p.recordStage(ctx, logger, result.TestID, decision.Stage, DispatchResult{SentTo: []string{}, Failed: []string{}}); err != nil {
			return p.fail(logger, result, "stage history write failed", "history_write_failed",
				"check database access; the stage will be evaluated again on the next save", err)
		}
		result.SentTo = []string{}
		result.Outcome = OutcomeSent
		return p.count(result)
	}

	rendered, err := p.renderer.Render(ctx, contentData(test, panel, recipients, decision))
	if err != nil {
		return p.fail(logger, result, "content rendering failed", "render_failed", "check the email templates", err)
	}

	var attachments []email.Attachment
	if decision.DocumentID != "" {
		doc, err := p.documents.Fetch(ctx, decision.DocumentID)
		if errors.Is(err, services.ErrNotFound) {
			return p.integrityFailure(ctx, logger, result, decision, err)
		}
		if err != nil {
			return p.fail(logger, result, "document fetch failed", "document_fetch_failed", "check document storage connectivity", err)
		}
		attachments = append(attachments, email.Attachment{Filename: doc.Filename, ContentType: doc.MimeType, Content: doc.Content})
	}

	dispatched := p.dispatcher.Dispatch(ctx, DispatchRequest{
		TestID:      test.ID,
		Stage:       decision.Stage,
		Recipients:  recipients,
		Content:     rendered,
		Attachments: attachments,
	})
	result.SentTo = dispatched.SentTo
	result.Failed = dispatched.Failed

	if err := p.recordStage(ctx, logger, test.ID, decision.Stage, dispatched); err != nil {
		return p.fail(logger, result, "stage history write failed", "history_write_failed",
			"check database access; the stage may be sent again on the next save", err)
	}

	result.Outcome = OutcomeSent
	attrs := []logging.Attr{
		logging.Int("sent_count", len(dispatched.SentTo)),
		logging.Strings("sent_to", dispatched.SentTo),
	}
	if len(dispatched.Failed) > 0 {
		attrs = append(attrs, logging.Strings("failed_recipients", dispatched.Failed))
		logging.WarnWithContext(logger, "notification stage sent with failures", "stage_partial_failure",
			append(attrs,
				logging.String(logging.FieldErrorHint, "see admin alerts for failed recipients"),
				logging.String(logging.FieldImpact, "failed recipients will not be retried automatically"),
			)...,
		)
	} else {
		logger.Info("notification stage sent", logging.Args(attrs...)...)
	}
	return p.count(result)
}

func (p *Pipeline) recordStage(ctx context.Context, logger *slog.Logger, testID string, stage store.Stage, dispatched DispatchResult) error {
	inserted, err := p.records.RecordStage(ctx, store.StageRecord{
		TestID: testID,
		Stage:  stage,
		SentTo: dispatched.SentTo,
		Failed: dispatched.Failed,
	})
	if err != nil {
		return err
	}
	if !inserted {
		logging.WarnWithContext(logger, "stage already recorded by a concurrent run", "stage_history_race",
			logging.String(logging.FieldImpact, "recipients may have received this stage twice"),
		)
	}
	return nil
}

func (p *Pipeline) integrityFailure(ctx context.Context, logger *slog.Logger, result Result, decision Decision, cause error) Result {
	err := services.Wrap(services.ErrDataIntegrity, "notify", "fetch attachment", "document "+decision.DocumentID+" is recorded but missing", cause)
	logging.ErrorWithContext(logger, "recorded document is missing", "document_missing",
		logging.Alert("critical"),
		logging.String("document_id", decision.DocumentID),
		logging.String(logging.FieldErrorKind, services.Kind(err)),
		logging.Error(err),
		logging.String(logging.FieldErrorHint, "restore the document or re-upload it, then save the test"),
	)
	if p.alerts != nil {
		_ = p.alerts.Raise(ctx, alerts.Alert{
			Severity: alerts.SeverityCritical,
			Type:     alerts.TypeDataIntegrity,
			Title:    "Screening document missing",
			Message:  err.Error(),
			Context: map[string]string{
				"test_id":     result.TestID,
				"stage":       string(decision.Stage),
				"document_id": decision.DocumentID,
			},
		})
	}
	result.Outcome = OutcomeFailed
	result.Err = err
	return p.count(result)
}

func (p *Pipeline) fail(logger *slog.Logger, result Result, msg, eventType, hint string, err error) Result {
	logging.ErrorWithContext(logger, msg, eventType,
		logging.String(logging.FieldErrorKind, services.Kind(err)),
		logging.Error(err),
		logging.String(logging.FieldErrorHint, hint),
	)
	result.Outcome = OutcomeFailed
	result.Err = err
	return p.count(result)
}

func (p *Pipeline) count(result Result) Result {
	metrics.NotificationStageTotal.WithLabelValues(string(result.Stage), string(result.Outcome)).Inc()
	return result
}

func contentData(test *store.Test, panel *screening.Panel, recipients RecipientSet, decision Decision) ContentData {
	data := ContentData{
		Stage:                  decision.Stage,
		TestID:                 test.ID,
		ClientName:             recipients.ClientName,
		ClientDOB:              recipients.ClientDOB,
		CollectedAt:            test.CollectedAt,
		Detected:               test.Detected,
		ExpectedPositives:      test.ExpectedPositives,
		UnexpectedPositives:    test.UnexpectedPositives,
		UnexpectedNegatives:    test.UnexpectedNegatives,
		CriticalNegatives:      test.CriticalNegatives,
		ScreenResult:           test.InitialScreenResult,
		FinalStatus:            test.FinalStatus,
		ConfirmationSubstances: test.ConfirmationSubstances,
		ConfirmationResults:    test.ConfirmationResults,
		Breathalyzer:           test.Breathalyzer,
		HasAttachment:          decision.DocumentID != "",
	}
	if panel != nil {
		data.TestType = panel.Name
		data.LabDispatch = panel.RequiresLabDispatch()
	}
	return data
}
