package screening

import (
	"slices"
	"strings"
)

// Status is a screen result or final status identifier. Values are stable and
// persisted verbatim.
type Status string

const (
	StatusNegative           Status = "negative"
	StatusExpectedPositive   Status = "expected-positive"
	StatusUnexpectedPositive Status = "unexpected-positive"
	StatusCriticalNegative   Status = "unexpected-negative-critical"
	StatusWarningNegative    Status = "unexpected-negative-warning"
	StatusMixedUnexpected    Status = "mixed-unexpected"
	StatusConfirmedNegative  Status = "confirmed-negative"
	StatusInconclusive       Status = "inconclusive"
)

// BreathalyzerEpsilon absorbs floating noise around a zero BAC reading.
const BreathalyzerEpsilon = 0.0001

var screenStatuses = []Status{
	StatusNegative,
	StatusExpectedPositive,
	StatusUnexpectedPositive,
	StatusCriticalNegative,
	StatusWarningNegative,
	StatusMixedUnexpected,
}

// ScreenStatuses returns the six outcomes the classifier can produce.
func ScreenStatuses() []Status {
	return slices.Clone(screenStatuses)
}

// ParseStatus converts a string into a known Status.
func ParseStatus(value string) (Status, bool) {
	normalized := Status(strings.ToLower(strings.TrimSpace(value)))
	switch normalized {
	case StatusNegative, StatusExpectedPositive, StatusUnexpectedPositive,
		StatusCriticalNegative, StatusWarningNegative, StatusMixedUnexpected,
		StatusConfirmedNegative, StatusInconclusive:
		return normalized, true
	}
	return "", false
}

// Passing reports whether the status is a clean pass that a positive
// breathalyzer reading must override.
func (s Status) Passing() bool {
	switch s {
	case StatusNegative, StatusExpectedPositive, StatusConfirmedNegative:
		return true
	}
	return false
}

// HasNegativeIssue reports whether the status carries a missing expected
// substance (critical or warning).
func (s Status) HasNegativeIssue() bool {
	switch s {
	case StatusMixedUnexpected, StatusCriticalNegative, StatusWarningNegative:
		return true
	}
	return false
}

// Classification is the classifier output.
type Classification struct {
	Status     Status `json:"screen_result"`
	AutoAccept bool   `json:"auto_accept"`
}

// Medication is one entry of the medication snapshot captured at collection
// time. DetectedAs lists the substance codes the medication shows up as.
type Medication struct {
	Name       string   `json:"name" toml:"name"`
	DetectedAs []string `json:"detected_as" toml:"detected_as"`
	Critical   bool     `json:"critical" toml:"critical"`
}

// PanelKind distinguishes point-of-care cups from panels sent to a lab.
type PanelKind string

const (
	PanelInstant PanelKind = "instant"
	PanelLab     PanelKind = "lab"
)

// Panel is a test type: the instrument or lab profile and the substances it
// can detect.
type Panel struct {
	ID         string    `json:"id" toml:"id"`
	Name       string    `json:"name" toml:"name"`
	Kind       PanelKind `json:"kind" toml:"kind"`
	Substances []string  `json:"substances" toml:"substances"`
}

// RequiresLabDispatch reports whether specimens for this panel leave the
// collection site.
func (p Panel) RequiresLabDispatch() bool {
	return p.Kind == PanelLab
}

// Breathalyzer captures an optional alcohol reading.
type Breathalyzer struct {
	Taken bool    `json:"taken"`
	BAC   float64 `json:"bac"`
}

// Positive reports whether the reading is above the noise floor around zero.
func (b Breathalyzer) Positive() bool {
	return b.Taken && b.BAC > BreathalyzerEpsilon
}

// ConfirmationOutcome is the lab verdict for one confirmation sub-test.
type ConfirmationOutcome string

const (
	ConfirmedPositive        ConfirmationOutcome = "confirmed-positive"
	ConfirmedNegative        ConfirmationOutcome = "confirmed-negative"
	ConfirmationInconclusive ConfirmationOutcome = "inconclusive"
)

// ConfirmationResult records one confirmation sub-test.
type ConfirmationResult struct {
	Substance string              `json:"substance"`
	Outcome   ConfirmationOutcome `json:"outcome"`
	Notes     string              `json:"notes,omitempty"`
}

// NormalizeSubstance canonicalizes a substance code for comparison.
func NormalizeSubstance(value string) string {
	value = strings.ToLower(strings.TrimSpace(value))
	return strings.Join(strings.Fields(value), " ")
}

func normalizeSet(values []string) map[string]struct{} {
	set := make(map[string]struct{}, len(values))
	for _, value := range values {
		if code := NormalizeSubstance(value); code != "" {
			set[code] = struct{}{}
		}
	}
	return set
}

func sortedKeys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for key := range set {
		out = append(out, key)
	}
	slices.Sort(out)
	return out
}
