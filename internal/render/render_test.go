package render_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"drugscreen/internal/notify"
	"drugscreen/internal/render"
	"drugscreen/internal/screening"
	"drugscreen/internal/store"
)

func TestRenderScreenedAudiences(t *testing.T) {
	r, err := render.New()
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	out, err := r.Render(context.Background(), notify.ContentData{
		Stage:               store.StageScreened,
		ClientName:          "jordan AVERY",
		ClientDOB:           "1988-04-12",
		CollectedAt:         time.Date(2026, 3, 4, 9, 0, 0, 0, time.UTC),
		TestType:            "12 Panel Cup",
		Detected:            []string{"amphetamines", "thc"},
		ExpectedPositives:   []string{"amphetamines"},
		UnexpectedPositives: []string{"thc"},
		ScreenResult:        screening.StatusUnexpectedPositive,
		Breathalyzer:        screening.Breathalyzer{Taken: true, BAC: 0},
		HasAttachment:       true,
	})
	if err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	if out.Client.Subject != "Your drug screen results" {
		t.Fatalf("unexpected client subject %q", out.Client.Subject)
	}
	if out.Referral.Subject != "Drug screen results: Jordan Avery" {
		t.Fatalf("unexpected referral subject %q", out.Referral.Subject)
	}
	for _, want := range []string{"Hello Jordan Avery", "Unexpected positive", "amphetamines, thc", "March 4, 2026", "BAC 0.000", "report is attached"} {
		if !strings.Contains(out.Client.HTML, want) {
			t.Fatalf("client html missing %q:\n%s", want, out.Client.HTML)
		}
	}
	if !strings.Contains(out.Referral.HTML, "DOB 1988-04-12") {
		t.Fatalf("referral html missing dob:\n%s", out.Referral.HTML)
	}
}

func TestRenderEscapesClientData(t *testing.T) {
	r, err := render.New()
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	out, err := r.Render(context.Background(), notify.ContentData{
		Stage:      store.StageInconclusive,
		ClientName: "<script>x</script>",
	})
	if err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	if strings.Contains(out.Client.HTML, "<script>") {
		t.Fatalf("expected escaped name, got:\n%s", out.Client.HTML)
	}
}

func TestRenderCompleteListsConfirmations(t *testing.T) {
	r, err := render.New()
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	out, err := r.Render(context.Background(), notify.ContentData{
		Stage:       store.StageComplete,
		ClientName:  "Sam Rivera",
		FinalStatus: screening.StatusConfirmedNegative,
		ConfirmationResults: []screening.ConfirmationResult{
			{Substance: "thc", Outcome: screening.ConfirmedNegative},
		},
	})
	if err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	if !strings.Contains(out.Referral.HTML, "thc: confirmed-negative") || !strings.Contains(out.Referral.HTML, "Negative after confirmation") {
		t.Fatalf("unexpected referral html:\n%s", out.Referral.HTML)
	}
}

func TestRenderRejectsUnknownStage(t *testing.T) {
	r, err := render.New()
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if _, err := r.Render(context.Background(), notify.ContentData{Stage: "archived"}); err == nil {
		t.Fatal("expected error for unknown stage")
	}
}
