package notify_test

import (
	"testing"

	"drugscreen/internal/notify"
	"drugscreen/internal/screening"
	"drugscreen/internal/store"
)

func TestDecide(t *testing.T) {
	lab := &screening.Panel{ID: "lab", Kind: screening.PanelLab}
	instant := &screening.Panel{ID: "cup", Kind: screening.PanelInstant}
	sent := func(stages ...store.Stage) []store.StageRecord {
		out := make([]store.StageRecord, 0, len(stages))
		for _, s := range stages {
			out = append(out, store.StageRecord{Stage: s})
		}
		return out
	}
	resolved := func(t store.Test) store.Test {
		t.ConfirmationDecision = store.DecisionRequestConfirmation
		t.ConfirmationSubstances = []string{"thc"}
		t.ConfirmationResults = []screening.ConfirmationResult{{Substance: "thc", Outcome: screening.ConfirmedNegative}}
		return t
	}
	screened := store.Test{
		NotificationsEnabled: true,
		ScreeningStatus:      store.ScreeningScreened,
		InitialScreenResult:  screening.StatusUnexpectedPositive,
	}

	tests := []struct {
		name     string
		test     store.Test
		panel    *screening.Panel
		action   notify.Action
		stage    store.Stage
		document string
	}{
		{
			name:   "disabled record is skipped",
			test:   store.Test{IsInconclusive: true},
			action: notify.ActionSkip,
		},
		{
			name:   "inconclusive wins over everything",
			test:   resolved(store.Test{NotificationsEnabled: true, IsInconclusive: true, ScreeningStatus: store.ScreeningCollected}),
			panel:  lab,
			action: notify.ActionFire,
			stage:  store.StageInconclusive,
		},
		{
			name:   "inconclusive already sent short-circuits",
			test:   store.Test{NotificationsEnabled: true, IsInconclusive: true, ScreeningStatus: store.ScreeningScreened, InitialScreenResult: screening.StatusNegative, TestDocumentID: "d", NotificationsSent: sent(store.StageInconclusive)},
			action: notify.ActionNone,
			stage:  store.StageInconclusive,
		},
		{
			name:   "collected fires for lab panels",
			test:   store.Test{NotificationsEnabled: true, ScreeningStatus: store.ScreeningCollected},
			panel:  lab,
			action: notify.ActionFire,
			stage:  store.StageCollected,
		},
		{
			name:   "collected never fires for instant panels",
			test:   store.Test{NotificationsEnabled: true, ScreeningStatus: store.ScreeningCollected},
			panel:  instant,
			action: notify.ActionNone,
		},
		{
			name:   "collected already sent",
			test:   store.Test{NotificationsEnabled: true, ScreeningStatus: store.ScreeningCollected, NotificationsSent: sent(store.StageCollected)},
			panel:  lab,
			action: notify.ActionNone,
		},
		{
			name:   "screened without document defers",
			test:   screened,
			panel:  instant,
			action: notify.ActionDefer,
			stage:  store.StageScreened,
		},
		{
			name: "screened deferral blocks complete",
			test: func() store.Test {
				t := resolved(screened)
				t.ConfirmationDocumentID = "conf"
				return t
			}(),
			action: notify.ActionDefer,
			stage:  store.StageScreened,
		},
		{
			name: "screened fires with document",
			test: func() store.Test {
				t := screened
				t.TestDocumentID = "doc-1"
				return t
			}(),
			action:   notify.ActionFire,
			stage:    store.StageScreened,
			document: "doc-1",
		},
		{
			name:   "screened without initial result waits",
			test:   store.Test{NotificationsEnabled: true, ScreeningStatus: store.ScreeningScreened, TestDocumentID: "doc-1"},
			action: notify.ActionNone,
		},
		{
			name: "complete prefers confirmation document",
			test: func() store.Test {
				t := resolved(screened)
				t.TestDocumentID = "doc-1"
				t.ConfirmationDocumentID = "conf-1"
				t.NotificationsSent = sent(store.StageScreened)
				return t
			}(),
			action:   notify.ActionFire,
			stage:    store.StageComplete,
			document: "conf-1",
		},
		{
			name: "complete falls back to screening document",
			test: func() store.Test {
				t := resolved(screened)
				t.TestDocumentID = "doc-1"
				t.NotificationsSent = sent(store.StageScreened)
				return t
			}(),
			action:   notify.ActionFire,
			stage:    store.StageComplete,
			document: "doc-1",
		},
		{
			name: "complete without any document defers",
			test: func() store.Test {
				t := resolved(screened)
				t.NotificationsSent = sent(store.StageScreened)
				return t
			}(),
			action: notify.ActionDefer,
			stage:  store.StageComplete,
		},
		{
			name: "partial confirmation batch waits",
			test: func() store.Test {
				t := resolved(screened)
				t.TestDocumentID = "doc-1"
				t.ConfirmationSubstances = []string{"thc", "cocaine"}
				t.NotificationsSent = sent(store.StageScreened)
				return t
			}(),
			action: notify.ActionNone,
		},
		{
			name: "everything sent",
			test: func() store.Test {
				t := resolved(screened)
				t.TestDocumentID = "doc-1"
				t.NotificationsSent = sent(store.StageScreened, store.StageComplete)
				return t
			}(),
			action: notify.ActionNone,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			test := tc.test
			got := notify.Decide(&test, tc.panel)
			if got.Action != tc.action || got.Stage != tc.stage || got.DocumentID != tc.document {
				t.Fatalf("Decide() = %+v, want action=%s stage=%q document=%q", got, tc.action, tc.stage, tc.document)
			}
		})
	}
}
