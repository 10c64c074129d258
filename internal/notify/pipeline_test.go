package notify_test

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"testing"

	"drugscreen/internal/alerts"
	"drugscreen/internal/config"
	"drugscreen/internal/documents"
	"drugscreen/internal/logging"
	"drugscreen/internal/notify"
	"drugscreen/internal/screening"
	"drugscreen/internal/services"
	"drugscreen/internal/store"
	"drugscreen/internal/testsupport"
)

type harness struct {
	store     *store.Store
	docs      *documents.Service
	blobs     *documents.MemoryBlob
	transport *fakeTransport
	alerts    *fakeAlerts
	logs      *testsupport.LogRecorder
	pipeline  *notify.Pipeline
}

func newHarness(t *testing.T, renderer notify.Renderer, failing ...string) *harness {
	t.Helper()
	cfg := testsupport.NewConfig(t, testsupport.WithDocumentsDriver(config.DocumentsDriverMemory))
	st := testsupport.MustOpenStore(t, cfg)
	blobs := documents.NewMemoryBlob()
	docs := documents.NewService(st, blobs)
	transport := newFakeTransport(failing...)
	channel := &fakeAlerts{}
	rec, logger := testsupport.NewLogRecorder()
	if renderer == nil {
		renderer = fakeRenderer{}
	}

	pipeline := notify.NewPipeline(notify.PipelineDeps{
		Records:    st,
		Recipients: notify.NewResolver(st, logger),
		Renderer:   renderer,
		Documents:  docs,
		Dispatcher: notify.NewDispatcher(transport, channel, notify.DispatcherConfigFrom(cfg), logger),
		Alerts:     channel,
		Enabled:    true,
		Logger:     logger,
	})
	return &harness{store: st, docs: docs, blobs: blobs, transport: transport, alerts: channel, logs: rec, pipeline: pipeline}
}

func (h *harness) screenedTest(t *testing.T, clientID, documentID string) *store.Test {
	t.Helper()
	return testsupport.SaveTest(t, h.store, &store.Test{
		ClientID:             clientID,
		ScreeningStatus:      store.ScreeningScreened,
		InitialScreenResult:  screening.StatusUnexpectedPositive,
		Detected:             []string{"thc"},
		UnexpectedPositives:  []string{"thc"},
		NotificationsEnabled: true,
		TestDocumentID:       documentID,
	})
}

func (h *harness) putDocument(t *testing.T) string {
	t.Helper()
	doc, err := h.docs.Put(context.Background(), "screen.pdf", "application/pdf", []byte("%PDF"))
	if err != nil {
		t.Fatalf("put document: %v", err)
	}
	return doc.ID
}

func TestPipelineSendsScreenedStageOnce(t *testing.T) {
	h := newHarness(t, nil)
	preset := testsupport.SeedPreset(t, h.store, store.ReferralCourt, store.Contact{Email: "clerk@court.example"})
	client := testsupport.SeedClient(t, h.store, "client@example.com", store.ReferralCourt, preset.ID)
	test := h.screenedTest(t, client.ID, h.putDocument(t))
	ctx := context.Background()

	first := h.pipeline.OnTestSaved(ctx, test.ID, store.SaveOptions{})
	if first.Outcome != notify.OutcomeSent || first.Stage != store.StageScreened {
		t.Fatalf("unexpected first result %+v", first)
	}
	if !slices.Equal(first.SentTo, []string{"client@example.com", "clerk@court.example"}) {
		t.Fatalf("unexpected recipients %v", first.SentTo)
	}
	msgs := h.transport.messages()
	if len(msgs[0].Attachments) != 1 || msgs[0].Attachments[0].Filename != "screen.pdf" {
		t.Fatalf("expected screening document attached, got %+v", msgs[0].Attachments)
	}

	for range 3 {
		again := h.pipeline.OnTestSaved(ctx, test.ID, store.SaveOptions{})
		if again.Outcome != notify.OutcomeIdle {
			t.Fatalf("expected idle re-evaluation, got %+v", again)
		}
	}
	if len(h.transport.messages()) != 2 {
		t.Fatalf("expected no additional sends, got %d", len(h.transport.messages()))
	}
	history, err := h.store.StageHistory(ctx, test.ID)
	if err != nil {
		t.Fatalf("StageHistory failed: %v", err)
	}
	if len(history) != 1 || history[0].Stage != store.StageScreened {
		t.Fatalf("expected single screened history entry, got %+v", history)
	}
}

func TestPipelineDefersScreenedWithoutDocument(t *testing.T) {
	h := newHarness(t, nil)
	client := testsupport.SeedClient(t, h.store, "client@example.com", store.ReferralSelf, "")
	test := h.screenedTest(t, client.ID, "")

	result := h.pipeline.OnTestSaved(context.Background(), test.ID, store.SaveOptions{})
	if result.Outcome != notify.OutcomeDeferred {
		t.Fatalf("expected deferred, got %+v", result)
	}
	if len(h.transport.messages()) != 0 {
		t.Fatalf("expected no sends, got %v", h.transport.recipients())
	}
	history, err := h.store.StageHistory(context.Background(), test.ID)
	if err != nil {
		t.Fatalf("StageHistory failed: %v", err)
	}
	if len(history) != 0 {
		t.Fatalf("expected no history, got %+v", history)
	}
	pending := h.logs.Find("notification stage waiting for document")
	if len(pending) != 1 || pending[0].Attrs[logging.FieldEventType] != "document_pending" {
		t.Fatalf("expected pending-document log, got %+v", h.logs.Entries())
	}
	if pending[0].Level != slog.LevelInfo || pending[0].Attrs[logging.FieldDecisionReason] != "screening document pending" {
		t.Fatalf("expected info entry with reason, got %+v", pending[0])
	}
	if len(h.logs.AtLevel(slog.LevelWarn)) != 0 {
		t.Fatalf("expected no warn or error logs, got %+v", h.logs.AtLevel(slog.LevelWarn))
	}
	if len(h.alerts.all()) != 0 {
		t.Fatalf("expected no alerts for a pending document, got %+v", h.alerts.all())
	}
}

func TestPipelineMissingDocumentIsDataIntegrityFailure(t *testing.T) {
	h := newHarness(t, nil)
	client := testsupport.SeedClient(t, h.store, "client@example.com", store.ReferralSelf, "")
	docID := h.putDocument(t)
	meta, err := h.store.FindDocument(context.Background(), docID)
	if err != nil {
		t.Fatalf("FindDocument failed: %v", err)
	}
	if err := h.blobs.Delete(context.Background(), meta.BlobKey); err != nil {
		t.Fatalf("delete blob: %v", err)
	}
	test := h.screenedTest(t, client.ID, docID)

	result := h.pipeline.OnTestSaved(context.Background(), test.ID, store.SaveOptions{})
	if result.Outcome != notify.OutcomeFailed || !errors.Is(result.Err, services.ErrDataIntegrity) {
		t.Fatalf("expected data integrity failure, got %+v", result)
	}
	if len(h.transport.messages()) != 0 {
		t.Fatalf("expected no partial send, got %v", h.transport.recipients())
	}
	entries := h.logs.Find("recorded document is missing")
	if len(entries) != 1 || entries[0].Level != slog.LevelError || entries[0].Attrs[logging.FieldAlert] != "critical" {
		t.Fatalf("expected critical error log, got %+v", h.logs.Entries())
	}
	raised := h.alerts.all()
	if len(raised) != 1 || raised[0].Severity != alerts.SeverityCritical || raised[0].Type != alerts.TypeDataIntegrity {
		t.Fatalf("expected one critical data integrity alert, got %+v", raised)
	}
	fetched, err := h.store.FindTest(context.Background(), test.ID)
	if err != nil {
		t.Fatalf("FindTest failed: %v", err)
	}
	if len(fetched.NotificationsSent) != 0 {
		t.Fatalf("expected record unchanged, got %+v", fetched.NotificationsSent)
	}
}

func TestPipelineRecordsStageDespiteReferralFailure(t *testing.T) {
	h := newHarness(t, nil, "clerk@court.example")
	preset := testsupport.SeedPreset(t, h.store, store.ReferralCourt,
		store.Contact{Email: "clerk@court.example"},
		store.Contact{Email: "judge@court.example"},
	)
	client := testsupport.SeedClient(t, h.store, "client@example.com", store.ReferralCourt, preset.ID)
	test := h.screenedTest(t, client.ID, h.putDocument(t))

	result := h.pipeline.OnTestSaved(context.Background(), test.ID, store.SaveOptions{})
	if result.Outcome != notify.OutcomeSent {
		t.Fatalf("expected sent outcome, got %+v", result)
	}
	if !slices.Equal(result.SentTo, []string{"client@example.com", "judge@court.example"}) || !slices.Equal(result.Failed, []string{"clerk@court.example"}) {
		t.Fatalf("unexpected result %+v", result)
	}
	history, err := h.store.StageHistory(context.Background(), test.ID)
	if err != nil {
		t.Fatalf("StageHistory failed: %v", err)
	}
	if len(history) != 1 || !slices.Equal(history[0].Failed, []string{"clerk@court.example"}) {
		t.Fatalf("expected stage recorded with failure summary, got %+v", history)
	}
}

func TestPipelineCollectedStageNotifiesReferralsOnly(t *testing.T) {
	h := newHarness(t, nil)
	panel := testsupport.SeedPanel(t, h.store, "lab-10", screening.PanelLab, "thc")
	client := testsupport.SeedClient(t, h.store, "client@example.com", store.ReferralEmployer, "",
		store.Contact{Name: "HR", Email: "hr@employer.example"})
	test := testsupport.SaveTest(t, h.store, &store.Test{
		ClientID:             client.ID,
		PanelID:              panel.ID,
		ScreeningStatus:      store.ScreeningCollected,
		NotificationsEnabled: true,
	})

	result := h.pipeline.OnTestSaved(context.Background(), test.ID, store.SaveOptions{})
	if result.Outcome != notify.OutcomeSent || result.Stage != store.StageCollected {
		t.Fatalf("unexpected result %+v", result)
	}
	if !slices.Equal(h.transport.recipients(), []string{"hr@employer.example"}) {
		t.Fatalf("expected referral-only send, got %v", h.transport.recipients())
	}
	if msgs := h.transport.messages(); len(msgs[0].Attachments) != 0 {
		t.Fatalf("collected stage carries no attachment, got %+v", msgs[0].Attachments)
	}
}

func TestPipelineCollectedStageWithoutReferrals(t *testing.T) {
	h := newHarness(t, nil)
	panel := testsupport.SeedPanel(t, h.store, "lab-10", screening.PanelLab, "thc")
	client := testsupport.SeedClient(t, h.store, "client@example.com", store.ReferralEmployer, "")
	test := testsupport.SaveTest(t, h.store, &store.Test{
		ClientID:             client.ID,
		PanelID:              panel.ID,
		ScreeningStatus:      store.ScreeningCollected,
		NotificationsEnabled: true,
	})

	result := h.pipeline.OnTestSaved(context.Background(), test.ID, store.SaveOptions{})
	if result.Outcome != notify.OutcomeSent || result.Stage != store.StageCollected || len(result.SentTo) != 0 {
		t.Fatalf("unexpected result %+v", result)
	}
	if len(h.transport.messages()) != 0 {
		t.Fatalf("expected no sends, got %v", h.transport.recipients())
	}
	if len(h.logs.Find("no referral recipients; collected stage recorded without sends")) != 1 {
		t.Fatalf("expected no-referral log, got %+v", h.logs.Entries())
	}
	if len(h.logs.Find("notification stage sent")) != 0 {
		t.Fatalf("expected no sent summary, got %+v", h.logs.Entries())
	}
	history, err := h.store.StageHistory(context.Background(), test.ID)
	if err != nil {
		t.Fatalf("StageHistory failed: %v", err)
	}
	if len(history) != 1 || history[0].Stage != store.StageCollected || len(history[0].SentTo) != 0 {
		t.Fatalf("expected collected stage recorded without recipients, got %+v", history)
	}
}

func TestPipelineSkipsSuppressedAndDisabled(t *testing.T) {
	h := newHarness(t, nil)
	client := testsupport.SeedClient(t, h.store, "client@example.com", store.ReferralSelf, "")
	test := h.screenedTest(t, client.ID, h.putDocument(t))

	if got := h.pipeline.OnTestSaved(context.Background(), test.ID, store.SaveOptions{SuppressReentry: true}); got.Outcome != notify.OutcomeSkipped {
		t.Fatalf("expected suppressed save to skip, got %+v", got)
	}

	test.NotificationsEnabled = false
	testsupport.SaveTest(t, h.store, test)
	if got := h.pipeline.OnTestSaved(context.Background(), test.ID, store.SaveOptions{}); got.Outcome != notify.OutcomeSkipped {
		t.Fatalf("expected disabled record to skip, got %+v", got)
	}
	if len(h.transport.messages()) != 0 {
		t.Fatalf("expected no sends, got %v", h.transport.recipients())
	}
}

func TestPipelineAbortsWhenRecipientsMissing(t *testing.T) {
	h := newHarness(t, nil)
	client := testsupport.SeedClient(t, h.store, "", store.ReferralCourt, "")
	test := h.screenedTest(t, client.ID, h.putDocument(t))

	result := h.pipeline.OnTestSaved(context.Background(), test.ID, store.SaveOptions{})
	if result.Outcome != notify.OutcomeFailed {
		t.Fatalf("expected failure, got %+v", result)
	}
	if len(h.logs.Find("no recipients resolved; stage aborted")) != 1 {
		t.Fatalf("expected abort log, got %+v", h.logs.Entries())
	}
	history, _ := h.store.StageHistory(context.Background(), test.ID)
	if len(history) != 0 {
		t.Fatalf("expected no history, got %+v", history)
	}
}

func TestPipelineRecoversFromPanics(t *testing.T) {
	h := newHarness(t, fakeRenderer{panicOn: true})
	client := testsupport.SeedClient(t, h.store, "client@example.com", store.ReferralSelf, "")
	test := h.screenedTest(t, client.ID, h.putDocument(t))

	result := h.pipeline.OnTestSaved(context.Background(), test.ID, store.SaveOptions{})
	if result.Outcome != notify.OutcomeFailed || result.Err == nil {
		t.Fatalf("expected recovered failure, got %+v", result)
	}
	if len(h.logs.Find("notification pipeline panicked")) != 1 {
		t.Fatalf("expected panic log, got %+v", h.logs.Entries())
	}
	history, _ := h.store.StageHistory(context.Background(), test.ID)
	if len(history) != 0 {
		t.Fatalf("expected stage left unsent, got %+v", history)
	}
}
