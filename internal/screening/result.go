package screening

import "fmt"

// Input is everything Compute needs for one test.
type Input struct {
	Detected     []string
	Medications  []Medication
	Panel        *Panel
	Breathalyzer Breathalyzer
}

// Outcome is the derived substance split plus the classification.
type Outcome struct {
	Classification
	Rule                 string   `json:"rule"`
	Counts               Counts   `json:"counts"`
	ExpectedPositives    []string `json:"expected_positives"`
	UnexpectedPositives  []string `json:"unexpected_positives"`
	UnexpectedNegatives  []string `json:"unexpected_negatives"`
	CriticalNegatives    []string `json:"critical_negatives"`
	BreathalyzerOverride bool     `json:"breathalyzer_override"`
}

// Compute derives substance counts from the detected set and the medication
// snapshot, classifies them, and applies the breathalyzer override.
//
// When a panel with a substance list is supplied, expected substances the
// panel cannot detect are dropped so they never count as missing.
func Compute(in Input) (Outcome, error) {
	detected := normalizeSet(in.Detected)

	// code -> critical; a substance is critical if any medication that
	// produces it is flagged critical.
	expected := make(map[string]bool)
	for _, med := range in.Medications {
		for _, raw := range med.DetectedAs {
			code := NormalizeSubstance(raw)
			if code == "" {
				continue
			}
			expected[code] = expected[code] || med.Critical
		}
	}
	if in.Panel != nil && len(in.Panel.Substances) > 0 {
		coverage := normalizeSet(in.Panel.Substances)
		for code := range expected {
			if _, ok := coverage[code]; !ok {
				delete(expected, code)
			}
		}
	}

	expectedPositives := make(map[string]struct{})
	unexpectedPositives := make(map[string]struct{})
	for code := range detected {
		if _, ok := expected[code]; ok {
			expectedPositives[code] = struct{}{}
		} else {
			unexpectedPositives[code] = struct{}{}
		}
	}

	criticalNegatives := make(map[string]struct{})
	warningNegatives := make(map[string]struct{})
	for code, critical := range expected {
		if _, ok := detected[code]; ok {
			continue
		}
		if critical {
			criticalNegatives[code] = struct{}{}
		} else {
			warningNegatives[code] = struct{}{}
		}
	}

	counts := Counts{
		Detected:            len(detected),
		Expected:            len(expected),
		UnexpectedPositives: len(unexpectedPositives),
		UnexpectedNegatives: len(warningNegatives),
		CriticalNegatives:   len(criticalNegatives),
	}
	classification, rule, err := classify(counts)
	if err != nil {
		return Outcome{}, fmt.Errorf("compute screen result: %w", err)
	}

	combinedNegatives := make(map[string]struct{}, len(criticalNegatives)+len(warningNegatives))
	for code := range criticalNegatives {
		combinedNegatives[code] = struct{}{}
	}
	for code := range warningNegatives {
		combinedNegatives[code] = struct{}{}
	}

	out := Outcome{
		Classification:      classification,
		Rule:                rule,
		Counts:              counts,
		ExpectedPositives:   sortedKeys(expectedPositives),
		UnexpectedPositives: sortedKeys(unexpectedPositives),
		UnexpectedNegatives: sortedKeys(combinedNegatives),
		CriticalNegatives:   sortedKeys(criticalNegatives),
	}
	if status, changed := ApplyBreathalyzer(out.Status, in.Breathalyzer); changed {
		out.Status = status
		out.AutoAccept = false
		out.BreathalyzerOverride = true
	}
	return out, nil
}

// ApplyBreathalyzer forces a passing status to unexpected-positive when the
// reading is positive. Failing statuses are returned unchanged. The second
// return value reports whether the status changed.
func ApplyBreathalyzer(status Status, reading Breathalyzer) (Status, bool) {
	if reading.Positive() && status.Passing() {
		return StatusUnexpectedPositive, true
	}
	return status, false
}
