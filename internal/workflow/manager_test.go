package workflow_test

import (
	"context"
	"errors"
	"slices"
	"sync"
	"testing"
	"time"

	"drugscreen/internal/config"
	"drugscreen/internal/documents"
	"drugscreen/internal/email"
	"drugscreen/internal/notify"
	"drugscreen/internal/render"
	"drugscreen/internal/screening"
	"drugscreen/internal/services"
	"drugscreen/internal/store"
	"drugscreen/internal/testsupport"
	"drugscreen/internal/workflow"
)

type recordingTransport struct {
	mu   sync.Mutex
	sent []email.Message
}

func (r *recordingTransport) Send(_ context.Context, msg email.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, msg)
	return nil
}

func (r *recordingTransport) subjects() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.sent))
	for _, m := range r.sent {
		out = append(out, m.To+": "+m.Subject)
	}
	return out
}

func (r *recordingTransport) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sent)
}

type fixture struct {
	manager   *workflow.Manager
	store     *store.Store
	docs      *documents.Service
	transport *recordingTransport
	client    *store.Client
	instant   *screening.Panel
	lab       *screening.Panel
}

func newFixture(t *testing.T, mode string) *fixture {
	t.Helper()
	cfg := testsupport.NewConfig(t,
		testsupport.WithDocumentsDriver(config.DocumentsDriverMemory),
		testsupport.WithDispatchMode(mode),
	)
	cfg.Notifications.PollInterval = 1
	st := testsupport.MustOpenStore(t, cfg)
	docs, err := documents.Open(context.Background(), cfg, st)
	if err != nil {
		t.Fatalf("documents.Open: %v", err)
	}
	renderer, err := render.New()
	if err != nil {
		t.Fatalf("render.New: %v", err)
	}
	transport := &recordingTransport{}
	pipeline := notify.NewPipeline(notify.PipelineDeps{
		Records:    st,
		Recipients: notify.NewResolver(st, nil),
		Renderer:   renderer,
		Documents:  docs,
		Dispatcher: notify.NewDispatcher(transport, nil, notify.DispatcherConfigFrom(cfg), nil),
		Enabled:    true,
	})

	preset := testsupport.SeedPreset(t, st, store.ReferralCourt, store.Contact{Name: "Clerk", Email: "clerk@court.example"})
	client := &store.Client{
		FirstName:    "Jordan",
		LastName:     "Avery",
		Email:        "jordan@example.com",
		ReferralType: store.ReferralCourt,
		PresetID:     preset.ID,
		Medications:  []screening.Medication{{Name: "Adderall", DetectedAs: []string{"amphetamines"}}},
	}
	if err := st.UpsertClient(context.Background(), client); err != nil {
		t.Fatalf("UpsertClient: %v", err)
	}

	return &fixture{
		manager:   workflow.NewManager(cfg, st, pipeline, nil),
		store:     st,
		docs:      docs,
		transport: transport,
		client:    client,
		instant:   testsupport.SeedPanel(t, st, "cup-12", screening.PanelInstant, "amphetamines", "thc", "cocaine", "fentanyl"),
		lab:       testsupport.SeedPanel(t, st, "lab-10", screening.PanelLab),
	}
}

func (f *fixture) document(t *testing.T, name string) string {
	t.Helper()
	doc, err := f.docs.Put(context.Background(), name, "application/pdf", []byte("%PDF"))
	if err != nil {
		t.Fatalf("docs.Put: %v", err)
	}
	return doc.ID
}

func (f *fixture) depth(t *testing.T) int {
	t.Helper()
	n, err := f.store.OutboxDepth(context.Background())
	if err != nil {
		t.Fatalf("OutboxDepth: %v", err)
	}
	return n
}

func TestInstantPanelScreenEndToEnd(t *testing.T) {
	f := newFixture(t, config.DispatchInline)
	ctx := context.Background()

	test, err := f.manager.Collect(ctx, workflow.CollectInput{ClientID: f.client.ID, PanelID: f.instant.ID})
	if err != nil {
		t.Fatalf("Collect failed: %v", err)
	}
	if len(test.Medications) != 1 {
		t.Fatalf("expected medication snapshot, got %+v", test.Medications)
	}

	test, outcome, err := f.manager.RecordScreen(ctx, test.ID, workflow.ScreenInput{Detected: []string{"Amphetamines", "THC"}})
	if err != nil {
		t.Fatalf("RecordScreen failed: %v", err)
	}
	if outcome.Status != screening.StatusUnexpectedPositive || outcome.AutoAccept {
		t.Fatalf("unexpected outcome %+v", outcome)
	}
	if !slices.Equal(test.ExpectedPositives, []string{"amphetamines"}) || !slices.Equal(test.UnexpectedPositives, []string{"thc"}) {
		t.Fatalf("unexpected substance split: expected=%v unexpected=%v", test.ExpectedPositives, test.UnexpectedPositives)
	}
	if test.FinalStatus != "" {
		t.Fatalf("failing screen must not be final yet, got %s", test.FinalStatus)
	}

	// No screening document yet: the stage is deferred and nothing is sent.
	if f.transport.count() != 0 {
		t.Fatalf("expected no sends before the document is attached, got %v", f.transport.subjects())
	}
	if f.depth(t) != 0 {
		t.Fatal("expected inline mode to drain the outbox")
	}

	if _, err := f.manager.AttachDocument(ctx, test.ID, workflow.DocumentScreening, f.document(t, "screen.pdf")); err != nil {
		t.Fatalf("AttachDocument failed: %v", err)
	}
	want := []string{
		"jordan@example.com: Your drug screen results",
		"clerk@court.example: Drug screen results: Jordan Avery",
	}
	if !slices.Equal(f.transport.subjects(), want) {
		t.Fatalf("unexpected sends:\n got %v\nwant %v", f.transport.subjects(), want)
	}
}

func TestConfirmationFlowFinalizesOnce(t *testing.T) {
	f := newFixture(t, config.DispatchInline)
	ctx := context.Background()

	test, err := f.manager.Collect(ctx, workflow.CollectInput{ClientID: f.client.ID, PanelID: f.instant.ID})
	if err != nil {
		t.Fatalf("Collect failed: %v", err)
	}
	if _, _, err := f.manager.RecordScreen(ctx, test.ID, workflow.ScreenInput{
		Detected:   []string{"amphetamines", "thc", "fentanyl"},
		DocumentID: f.document(t, "screen.pdf"),
	}); err != nil {
		t.Fatalf("RecordScreen failed: %v", err)
	}
	if _, err := f.manager.RecordDecision(ctx, test.ID, store.DecisionRequestConfirmation, []string{"THC"}); err != nil {
		t.Fatalf("RecordDecision failed: %v", err)
	}
	test, err = f.manager.RecordConfirmation(ctx, test.ID, []screening.ConfirmationResult{
		{Substance: "thc", Outcome: screening.ConfirmedNegative},
	}, f.document(t, "confirm.pdf"))
	if err != nil {
		t.Fatalf("RecordConfirmation failed: %v", err)
	}
	if test.FinalStatus != screening.StatusUnexpectedPositive {
		t.Fatalf("fentanyl was never confirmed, expected unexpected-positive, got %s", test.FinalStatus)
	}

	stored, err := f.store.FindTest(ctx, test.ID)
	if err != nil {
		t.Fatalf("FindTest failed: %v", err)
	}
	if !stored.StageSent(store.StageScreened) || !stored.StageSent(store.StageComplete) {
		t.Fatalf("expected screened and complete stages, got %+v", stored.NotificationsSent)
	}

	_, err = f.manager.RecordConfirmation(ctx, test.ID, []screening.ConfirmationResult{
		{Substance: "thc", Outcome: screening.ConfirmedPositive},
	}, "")
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected final status to be immutable, got %v", err)
	}
}

func TestRecordConfirmationRejectsUnrequestedSubstance(t *testing.T) {
	f := newFixture(t, config.DispatchInline)
	ctx := context.Background()
	test, _ := f.manager.Collect(ctx, workflow.CollectInput{ClientID: f.client.ID, PanelID: f.instant.ID})
	if _, _, err := f.manager.RecordScreen(ctx, test.ID, workflow.ScreenInput{Detected: []string{"cocaine"}}); err != nil {
		t.Fatalf("RecordScreen failed: %v", err)
	}
	if _, err := f.manager.RecordDecision(ctx, test.ID, store.DecisionRequestConfirmation, nil); err != nil {
		t.Fatalf("RecordDecision failed: %v", err)
	}
	_, err := f.manager.RecordConfirmation(ctx, test.ID, []screening.ConfirmationResult{{Substance: "thc", Outcome: screening.ConfirmedNegative}}, "")
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestRecordScreenRejectsSecondScreen(t *testing.T) {
	f := newFixture(t, config.DispatchInline)
	ctx := context.Background()
	test, _ := f.manager.Collect(ctx, workflow.CollectInput{ClientID: f.client.ID, PanelID: f.instant.ID})
	if _, _, err := f.manager.RecordScreen(ctx, test.ID, workflow.ScreenInput{Detected: []string{"amphetamines", "thc"}}); err != nil {
		t.Fatalf("RecordScreen failed: %v", err)
	}
	if _, err := f.manager.RecordDecision(ctx, test.ID, store.DecisionRequestConfirmation, nil); err != nil {
		t.Fatalf("RecordDecision failed: %v", err)
	}

	_, _, err := f.manager.RecordScreen(ctx, test.ID, workflow.ScreenInput{Detected: []string{"amphetamines"}})
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected second screen to be rejected, got %v", err)
	}

	stored, err := f.store.FindTest(ctx, test.ID)
	if err != nil {
		t.Fatalf("FindTest failed: %v", err)
	}
	if stored.InitialScreenResult != screening.StatusUnexpectedPositive || stored.AutoAccept || stored.FinalStatus != "" {
		t.Fatalf("expected original screen to stand, got result=%s autoAccept=%v final=%s",
			stored.InitialScreenResult, stored.AutoAccept, stored.FinalStatus)
	}
	if !slices.Equal(stored.ConfirmationSubstances, []string{"thc"}) || stored.ConfirmationDecision != store.DecisionRequestConfirmation {
		t.Fatalf("expected confirmation batch untouched, got %s %v", stored.ConfirmationDecision, stored.ConfirmationSubstances)
	}
}

func TestAcceptDecisionFinalizesScreenResult(t *testing.T) {
	f := newFixture(t, config.DispatchInline)
	ctx := context.Background()
	test, _ := f.manager.Collect(ctx, workflow.CollectInput{ClientID: f.client.ID, PanelID: f.instant.ID})
	if _, _, err := f.manager.RecordScreen(ctx, test.ID, workflow.ScreenInput{Detected: []string{"cocaine", "amphetamines"}}); err != nil {
		t.Fatalf("RecordScreen failed: %v", err)
	}
	test, err := f.manager.RecordDecision(ctx, test.ID, store.DecisionAccept, nil)
	if err != nil {
		t.Fatalf("RecordDecision failed: %v", err)
	}
	if test.FinalStatus != screening.StatusUnexpectedPositive {
		t.Fatalf("expected accepted final status, got %s", test.FinalStatus)
	}
	if _, err := f.manager.RecordDecision(ctx, test.ID, store.DecisionRequestConfirmation, nil); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected second decision to be rejected, got %v", err)
	}
}

func TestWorkerModeLeavesOutboxForPolling(t *testing.T) {
	f := newFixture(t, config.DispatchWorker)
	ctx := context.Background()

	test, err := f.manager.Collect(ctx, workflow.CollectInput{ClientID: f.client.ID, PanelID: f.lab.ID})
	if err != nil {
		t.Fatalf("Collect failed: %v", err)
	}
	if f.depth(t) != 1 || f.transport.count() != 0 {
		t.Fatalf("expected one pending entry and no sends, depth=%d sends=%d", f.depth(t), f.transport.count())
	}

	processed, err := f.manager.ProcessPending(ctx)
	if err != nil || processed != 1 {
		t.Fatalf("ProcessPending = %d, %v", processed, err)
	}
	if f.depth(t) != 0 {
		t.Fatal("expected outbox acknowledged")
	}
	// Lab panels notify referrals only when the specimen ships.
	if !slices.Equal(f.transport.subjects(), []string{"clerk@court.example: Specimen sent to lab: Jordan Avery"}) {
		t.Fatalf("unexpected sends %v", f.transport.subjects())
	}

	status := f.manager.Status(ctx)
	if status.Processed != 1 || status.LastTest != test.ID || status.Pending != 0 {
		t.Fatalf("unexpected status %+v", status)
	}
}

func TestWorkerLoopDrainsOutbox(t *testing.T) {
	f := newFixture(t, config.DispatchWorker)
	ctx := context.Background()

	test, err := f.manager.Collect(ctx, workflow.CollectInput{ClientID: f.client.ID, PanelID: f.instant.ID})
	if err != nil {
		t.Fatalf("Collect failed: %v", err)
	}
	if _, err := f.manager.MarkInconclusive(ctx, test.ID, "specimen leaked"); err != nil {
		t.Fatalf("MarkInconclusive failed: %v", err)
	}

	if err := f.manager.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer f.manager.Stop()
	if err := f.manager.Start(ctx); err == nil {
		t.Fatal("expected second Start to fail")
	}

	deadline := time.Now().Add(5 * time.Second)
	for f.depth(t) > 0 || f.transport.count() < 2 {
		if time.Now().After(deadline) {
			t.Fatalf("worker did not drain outbox: depth=%d sends=%v", f.depth(t), f.transport.subjects())
		}
		time.Sleep(20 * time.Millisecond)
	}
	stored, err := f.store.FindTest(ctx, test.ID)
	if err != nil {
		t.Fatalf("FindTest failed: %v", err)
	}
	if stored.FinalStatus != screening.StatusInconclusive || !stored.StageSent(store.StageInconclusive) {
		t.Fatalf("unexpected record %+v", stored)
	}
}

func TestEvaluateWithoutOutboxRunsPipeline(t *testing.T) {
	f := newFixture(t, config.DispatchWorker)
	ctx := context.Background()
	client := testsupport.SeedClient(t, f.store, "self@example.com", store.ReferralSelf, "")
	test := testsupport.SaveTest(t, f.store, &store.Test{
		ClientID:             client.ID,
		PanelID:              f.lab.ID,
		NotificationsEnabled: true,
	})

	result, err := f.manager.Evaluate(ctx, test.ID)
	if err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}
	if result.Outcome != notify.OutcomeSent || !slices.Equal(result.SentTo, []string{"self@example.com"}) {
		t.Fatalf("unexpected result %+v", result)
	}
}
