package screening

import (
	"fmt"

	"drugscreen/internal/services"
)

// Counts is the classifier input. UnexpectedNegatives counts only
// non-critical missing substances; critical ones are counted separately.
type Counts struct {
	Detected            int `json:"detected"`
	Expected            int `json:"expected"`
	UnexpectedPositives int `json:"unexpected_positives"`
	UnexpectedNegatives int `json:"unexpected_negatives"`
	CriticalNegatives   int `json:"critical_negatives"`
}

func (c Counts) String() string {
	return fmt.Sprintf("detected=%d expected=%d unexpected_positives=%d unexpected_negatives=%d critical_negatives=%d",
		c.Detected, c.Expected, c.UnexpectedPositives, c.UnexpectedNegatives, c.CriticalNegatives)
}

type classifierRule struct {
	name   string
	match  func(Counts) bool
	result Classification
}

// classifierRules is evaluated top to bottom; the first match wins.
var classifierRules = []classifierRule{
	{
		name:   "nothing detected, nothing expected",
		match:  func(c Counts) bool { return c.Detected == 0 && c.Expected == 0 },
		result: Classification{Status: StatusNegative, AutoAccept: true},
	},
	{
		name:   "nothing detected, critical missing",
		match:  func(c Counts) bool { return c.Detected == 0 && c.CriticalNegatives > 0 },
		result: Classification{Status: StatusCriticalNegative},
	},
	{
		name:   "nothing detected, non-critical missing",
		match:  func(c Counts) bool { return c.Detected == 0 && c.UnexpectedNegatives > 0 },
		result: Classification{Status: StatusWarningNegative, AutoAccept: true},
	},
	{
		name: "unexpected positive with missing expected",
		match: func(c Counts) bool {
			return c.UnexpectedPositives > 0 && (c.CriticalNegatives > 0 || c.UnexpectedNegatives > 0)
		},
		result: Classification{Status: StatusMixedUnexpected},
	},
	{
		name:   "unexpected positive",
		match:  func(c Counts) bool { return c.UnexpectedPositives > 0 },
		result: Classification{Status: StatusUnexpectedPositive},
	},
	{
		name:   "critical missing",
		match:  func(c Counts) bool { return c.CriticalNegatives > 0 },
		result: Classification{Status: StatusCriticalNegative},
	},
	{
		name:   "non-critical missing",
		match:  func(c Counts) bool { return c.UnexpectedNegatives > 0 },
		result: Classification{Status: StatusWarningNegative, AutoAccept: true},
	},
	{
		name:   "only expected positives",
		match:  func(c Counts) bool { return c.Detected > 0 },
		result: Classification{Status: StatusExpectedPositive, AutoAccept: true},
	},
}

// Classify maps a count tuple to a screen result. It is total over every tuple
// Compute can derive; any other tuple is reported as an ErrInvariant error
// carrying the full input.
func Classify(c Counts) (Classification, error) {
	result, _, err := classify(c)
	return result, err
}

func classify(c Counts) (Classification, string, error) {
	if c.Detected < 0 || c.Expected < 0 || c.UnexpectedPositives < 0 || c.UnexpectedNegatives < 0 || c.CriticalNegatives < 0 {
		return Classification{}, "", services.Wrap(services.ErrInvariant, "classifier", "classify", "negative count: "+c.String(), nil)
	}
	for _, rule := range classifierRules {
		if rule.match(c) {
			return rule.result, rule.name, nil
		}
	}
	return Classification{}, "", services.Wrap(services.ErrInvariant, "classifier", "classify", "no rule matched: "+c.String(), nil)
}
