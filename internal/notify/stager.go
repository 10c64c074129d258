package notify

import (
	"drugscreen/internal/screening"
	"drugscreen/internal/store"
)

// Action is the stager's verdict for one evaluation.
type Action string

const (
	// ActionFire means the stage is eligible and should be sent now.
	ActionFire Action = "fire"
	// ActionDefer means the stage is otherwise eligible but waits for a document.
	ActionDefer Action = "defer"
	// ActionSkip means notifications are off for this record.
	ActionSkip Action = "skip"
	// ActionNone means nothing is due.
	ActionNone Action = "none"
)

// Decision is the outcome of Decide.
type Decision struct {
	Action     Action
	Stage      store.Stage
	DocumentID string
	Reason     string
}

// Decide picks at most one stage for the record. Priority is inconclusive,
// collected, screened, complete. A deferred stage stops evaluation so later
// stages never overtake it. panel may be nil when the test has no panel.
func Decide(test *store.Test, panel *screening.Panel) Decision {
	if test == nil {
		return Decision{Action: ActionNone, Reason: "no record"}
	}
	if !test.NotificationsEnabled {
		return Decision{Action: ActionSkip, Reason: "notifications disabled"}
	}

	if test.IsInconclusive {
		if test.StageSent(store.StageInconclusive) {
			return Decision{Action: ActionNone, Stage: store.StageInconclusive, Reason: "inconclusive already sent"}
		}
		return Decision{Action: ActionFire, Stage: store.StageInconclusive, Reason: "test marked inconclusive"}
	}

	if panel != nil && panel.RequiresLabDispatch() &&
		test.ScreeningStatus == store.ScreeningCollected &&
		!test.StageSent(store.StageCollected) {
		return Decision{Action: ActionFire, Stage: store.StageCollected, Reason: "specimen dispatched to lab"}
	}

	if test.ScreeningStatus == store.ScreeningScreened &&
		test.InitialScreenResult != "" &&
		!test.StageSent(store.StageScreened) {
		if test.TestDocumentID == "" {
			return Decision{Action: ActionDefer, Stage: store.StageScreened, Reason: "screening document pending"}
		}
		return Decision{Action: ActionFire, Stage: store.StageScreened, DocumentID: test.TestDocumentID, Reason: "screen result recorded"}
	}

	if test.ConfirmationResolved() && !test.StageSent(store.StageComplete) {
		doc := test.ConfirmationDocumentID
		if doc == "" {
			doc = test.TestDocumentID
		}
		if doc == "" {
			return Decision{Action: ActionDefer, Stage: store.StageComplete, Reason: "confirmation document pending"}
		}
		return Decision{Action: ActionFire, Stage: store.StageComplete, DocumentID: doc, Reason: "confirmation batch resolved"}
	}

	return Decision{Action: ActionNone, Reason: "no eligible stage"}
}
