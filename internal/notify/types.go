package notify

import (
	"context"
	"strings"
	"time"

	"drugscreen/internal/screening"
	"drugscreen/internal/store"
)

// Audience separates client-facing content from referral-facing content.
type Audience string

const (
	AudienceClient   Audience = "client"
	AudienceReferral Audience = "referral"
)

// RecipientSet is the resolved audience for a client's notifications.
type RecipientSet struct {
	ClientName  string
	ClientDOB   string
	ClientEmail string
	Referrals   []store.Contact
	PresetID    string
}

// ReferralEmails lists referral addresses in resolution order.
func (r RecipientSet) ReferralEmails() []string {
	out := make([]string, 0, len(r.Referrals))
	for _, c := range r.Referrals {
		out = append(out, c.Email)
	}
	return out
}

// Empty reports whether nobody can be notified.
func (r RecipientSet) Empty() bool {
	return r.ClientEmail == "" && len(r.Referrals) == 0
}

// HasReferral reports whether email is among the referrals, ignoring case.
func (r RecipientSet) HasReferral(email string) bool {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return false
	}
	for _, c := range r.Referrals {
		if strings.ToLower(c.Email) == email {
			return true
		}
	}
	return false
}

// ContentData is the structured input handed to a Renderer.
type ContentData struct {
	Stage                  store.Stage
	TestID                 string
	ClientName             string
	ClientDOB              string
	CollectedAt            time.Time
	TestType               string
	LabDispatch            bool
	Detected               []string
	ExpectedPositives      []string
	UnexpectedPositives    []string
	UnexpectedNegatives    []string
	CriticalNegatives      []string
	ScreenResult           screening.Status
	FinalStatus            screening.Status
	ConfirmationSubstances []string
	ConfirmationResults    []screening.ConfirmationResult
	Breathalyzer           screening.Breathalyzer
	HasAttachment          bool
}

// Content is one rendered email.
type Content struct {
	Subject string
	HTML    string
}

// Rendered holds the content for both audiences of a stage.
type Rendered struct {
	Client   Content
	Referral Content
}

// For returns the content addressed to audience.
func (r Rendered) For(audience Audience) Content {
	if audience == AudienceClient {
		return r.Client
	}
	return r.Referral
}

// Renderer turns structured stage data into email content.
type Renderer interface {
	Render(ctx context.Context, data ContentData) (Rendered, error)
}
