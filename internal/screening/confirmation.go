package screening

// ConfirmationInput carries the initial screen and the confirmation batch.
type ConfirmationInput struct {
	Initial             Status
	ExpectedPositives   []string
	UnexpectedPositives []string
	Results             []ConfirmationResult
	Breathalyzer        Breathalyzer
}

// ResolveConfirmation reconciles confirmation outcomes into a final status.
//
// An inconclusive sub-test makes the whole test inconclusive. A confirmed
// positive, or an unexpected positive that was never sent for confirmation,
// keeps the test failing. Only when every unexpected positive was confirmed
// negative does the result fall back to the negative-side classification.
func ResolveConfirmation(in ConfirmationInput) Status {
	status := resolveConfirmation(in)
	status, _ = ApplyBreathalyzer(status, in.Breathalyzer)
	return status
}

func resolveConfirmation(in ConfirmationInput) Status {
	for _, result := range in.Results {
		if result.Outcome == ConfirmationInconclusive {
			return StatusInconclusive
		}
	}
	for _, result := range in.Results {
		if result.Outcome == ConfirmedPositive {
			return failingStatus(in.Initial)
		}
	}

	submitted := make(map[string]struct{}, len(in.Results))
	for _, result := range in.Results {
		submitted[NormalizeSubstance(result.Substance)] = struct{}{}
	}
	for _, substance := range in.UnexpectedPositives {
		if _, ok := submitted[NormalizeSubstance(substance)]; !ok {
			return failingStatus(in.Initial)
		}
	}

	switch in.Initial {
	case StatusCriticalNegative, StatusMixedUnexpected:
		return StatusCriticalNegative
	case StatusWarningNegative:
		return StatusWarningNegative
	}
	if len(in.ExpectedPositives) > 0 {
		return StatusExpectedPositive
	}
	return StatusConfirmedNegative
}

func failingStatus(initial Status) Status {
	if initial.HasNegativeIssue() {
		return StatusMixedUnexpected
	}
	return StatusUnexpectedPositive
}
