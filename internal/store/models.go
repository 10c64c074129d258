package store

import (
	"slices"
	"strings"
	"time"

	"drugscreen/internal/screening"
)

// ReferralType identifies who receives results alongside the client.
type ReferralType string

const (
	ReferralSelf     ReferralType = "self"
	ReferralCourt    ReferralType = "court"
	ReferralEmployer ReferralType = "employer"
)

// ParseReferralType normalizes a referral type, reporting whether it is known.
func ParseReferralType(value string) (ReferralType, bool) {
	switch rt := ReferralType(strings.ToLower(strings.TrimSpace(value))); rt {
	case ReferralSelf, ReferralCourt, ReferralEmployer:
		return rt, true
	default:
		return "", false
	}
}

// ScreeningStatus tracks where a test is in collection and screening.
type ScreeningStatus string

const (
	ScreeningCollected ScreeningStatus = "collected"
	ScreeningScreened  ScreeningStatus = "screened"
)

// ConfirmationDecision records what the client chose after a failing screen.
type ConfirmationDecision string

const (
	DecisionPending             ConfirmationDecision = "pending"
	DecisionAccept              ConfirmationDecision = "accept"
	DecisionRequestConfirmation ConfirmationDecision = "request-confirmation"
)

// Stage is a notification milestone. Identifiers are stable and persisted.
type Stage string

const (
	StageCollected    Stage = "collected"
	StageScreened     Stage = "screened"
	StageComplete     Stage = "complete"
	StageInconclusive Stage = "inconclusive"
)

// Contact is one email recipient with an optional display name.
type Contact struct {
	Name  string `json:"name,omitempty" toml:"name"`
	Email string `json:"email" toml:"email"`
}

// ReferralPreset is a reusable contact list for a court or employer.
type ReferralPreset struct {
	ID        string
	Name      string
	Type      ReferralType
	Contacts  []Contact
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Client is a person being screened.
type Client struct {
	ID                   string
	FirstName            string
	LastName             string
	Email                string
	DOB                  string
	ReferralType         ReferralType
	PresetID             string
	AdditionalRecipients []Contact
	Medications          []screening.Medication
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// FullName joins the client's first and last names.
func (c Client) FullName() string {
	return strings.TrimSpace(c.FirstName + " " + c.LastName)
}

// Document is catalog metadata for a stored screening or confirmation document.
type Document struct {
	ID        string
	Filename  string
	MimeType  string
	BlobKey   string
	SizeBytes int64
	CreatedAt time.Time
}

// StageRecord is one entry of a test's notification history.
type StageRecord struct {
	TestID string
	Stage  Stage
	SentAt time.Time
	SentTo []string
	Failed []string
}

// Test is a single drug-screening record.
type Test struct {
	ID                     string
	ClientID               string
	PanelID                string
	ScreeningStatus        ScreeningStatus
	IsInconclusive         bool
	CollectedAt            time.Time
	Medications            []screening.Medication
	Detected               []string
	ExpectedPositives      []string
	UnexpectedPositives    []string
	UnexpectedNegatives    []string
	CriticalNegatives      []string
	InitialScreenResult    screening.Status
	AutoAccept             bool
	ConfirmationDecision   ConfirmationDecision
	ConfirmationSubstances []string
	ConfirmationResults    []screening.ConfirmationResult
	FinalStatus            screening.Status
	Breathalyzer           screening.Breathalyzer
	NotificationsEnabled   bool
	TestDocumentID         string
	ConfirmationDocumentID string
	CreatedAt              time.Time
	UpdatedAt              time.Time

	// NotificationsSent is loaded by FindTest from stage_history and ignored by SaveTest.
	NotificationsSent []StageRecord
}

// StageSent reports whether the stage is already in the test's history.
func (t *Test) StageSent(stage Stage) bool {
	return slices.ContainsFunc(t.NotificationsSent, func(r StageRecord) bool { return r.Stage == stage })
}

// ConfirmationResolved reports whether every requested confirmation substance has a result.
func (t *Test) ConfirmationResolved() bool {
	return t.ConfirmationDecision == DecisionRequestConfirmation &&
		len(t.ConfirmationSubstances) > 0 &&
		len(t.ConfirmationResults) == len(t.ConfirmationSubstances)
}

// SaveOptions adjusts SaveTest side effects.
type SaveOptions struct {
	// SuppressReentry skips the outbox row so the save does not re-trigger the
	// notification pipeline.
	SuppressReentry bool
}

// OutboxEntry is a test awaiting notification evaluation. Revision increases
// every time the test is re-enqueued while the entry is pending.
type OutboxEntry struct {
	TestID     string
	Revision   int64
	EnqueuedAt time.Time
}
