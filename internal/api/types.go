package api

// dateTimeFormat is used for RFC3339 timestamps in API payloads.
const dateTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// Test describes a test record in a transport-friendly format.
type Test struct {
	ID                     string               `json:"id"`
	ClientID               string               `json:"clientId"`
	PanelID                string               `json:"panelId,omitempty"`
	ScreeningStatus        string               `json:"screeningStatus"`
	IsInconclusive         bool                 `json:"isInconclusive"`
	CollectedAt            string               `json:"collectedAt,omitempty"`
	Detected               []string             `json:"detected"`
	ExpectedPositives      []string             `json:"expectedPositives"`
	UnexpectedPositives    []string             `json:"unexpectedPositives"`
	UnexpectedNegatives    []string             `json:"unexpectedNegatives"`
	CriticalNegatives      []string             `json:"criticalNegatives"`
	InitialScreenResult    string               `json:"initialScreenResult,omitempty"`
	AutoAccept             bool                 `json:"autoAccept"`
	ConfirmationDecision   string               `json:"confirmationDecision"`
	ConfirmationSubstances []string             `json:"confirmationSubstances"`
	ConfirmationResults    []ConfirmationResult `json:"confirmationResults"`
	FinalStatus            string               `json:"finalStatus,omitempty"`
	Breathalyzer           Breathalyzer         `json:"breathalyzer"`
	NotificationsEnabled   bool                 `json:"notificationsEnabled"`
	TestDocumentID         string               `json:"testDocumentId,omitempty"`
	ConfirmationDocumentID string               `json:"confirmationDocumentId,omitempty"`
	NotificationsSent      []StageRecord        `json:"notificationsSent"`
	CreatedAt              string               `json:"createdAt,omitempty"`
	UpdatedAt              string               `json:"updatedAt,omitempty"`
}

// Breathalyzer mirrors screening.Breathalyzer.
type Breathalyzer struct {
	Taken bool    `json:"taken"`
	BAC   float64 `json:"bac"`
}

// ConfirmationResult is one lab confirmation sub-test.
type ConfirmationResult struct {
	Substance string `json:"substance"`
	Outcome   string `json:"outcome"`
	Notes     string `json:"notes,omitempty"`
}

// StageRecord is one entry of the notification history.
type StageRecord struct {
	Stage  string   `json:"stage"`
	SentAt string   `json:"sentAt,omitempty"`
	SentTo []string `json:"sentTo"`
	Failed []string `json:"failed"`
}

// ScreenOutcome summarizes the classifier result for a recorded screen.
type ScreenOutcome struct {
	Status               string `json:"status"`
	AutoAccept           bool   `json:"autoAccept"`
	Rule                 string `json:"rule"`
	BreathalyzerOverride bool   `json:"breathalyzerOverride"`
}

// TestResponse wraps a single record.
type TestResponse struct {
	Test Test `json:"test"`
}

// ScreenResponse is returned after a screen is recorded.
type ScreenResponse struct {
	Test    Test          `json:"test"`
	Outcome ScreenOutcome `json:"outcome"`
}

// EvaluationResponse reports one notification pipeline run.
type EvaluationResponse struct {
	TestID  string   `json:"testId"`
	Stage   string   `json:"stage,omitempty"`
	Outcome string   `json:"outcome"`
	SentTo  []string `json:"sentTo"`
	Failed  []string `json:"failed"`
	Error   string   `json:"error,omitempty"`
}

// HealthResponse is served by /healthz.
type HealthResponse struct {
	Status        string `json:"status"`
	DispatchMode  string `json:"dispatchMode"`
	WorkerRunning bool   `json:"workerRunning"`
	OutboxPending int    `json:"outboxPending"`
	Processed     int    `json:"processed"`
	LastError     string `json:"lastError,omitempty"`
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}

type screenRequest struct {
	Detected     []string     `json:"detected"`
	Breathalyzer Breathalyzer `json:"breathalyzer"`
	DocumentID   string       `json:"documentId"`
}

type decisionRequest struct {
	Decision   string   `json:"decision"`
	Substances []string `json:"substances"`
}

type confirmationRequest struct {
	Results    []ConfirmationResult `json:"results"`
	DocumentID string               `json:"documentId"`
}

type inconclusiveRequest struct {
	Reason string `json:"reason"`
}
type notificationsRequest struct {
	Enabled *bool `json:"enabled"`
}
