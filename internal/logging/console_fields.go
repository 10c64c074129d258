package logging

import (
	"log/slog"
	"strings"
)

type infoField struct {
	label string
	value string
}

const (
	infoAttrLimit  = 10
	infoValueLimit = 160
)

// infoHighlightKeys are printed first, in this order, on INFO and above.
var infoHighlightKeys = []string{
	FieldAlert,
	FieldEventType,
	FieldDecisionType,
	FieldDecisionResult,
	FieldDecisionReason,
	"screen_result",
	"final_status",
	"auto_accept",
	"severity",
	"audience",
	"recipient",
	"sent_to",
	"failed_recipients",
	"document_id",
	"error",
	FieldErrorKind,
	FieldErrorHint,
	FieldImpact,
}

var infoLabels = map[string]string{
	FieldAlert:          "Alert",
	FieldEventType:      "Event",
	FieldDecisionType:   "Decision",
	FieldDecisionResult: "Result",
	FieldDecisionReason: "Reason",
	FieldErrorHint:      "Hint",
	FieldErrorKind:      "Error Kind",
	"screen_result":     "Screen",
	"final_status":      "Final",
	"sent_to":           "Sent",
	"failed_recipients": "Failed",
	"document_id":       "Document",
}

// selectInfoFields returns formatted info-level fields and a count of hidden entries.
// limit=0 means no limit.
func selectInfoFields(attrs []kv, limit int) ([]infoField, int) {
	if len(attrs) == 0 {
		return nil, 0
	}
	used := make([]bool, len(attrs))
	result := make([]infoField, 0, infoAttrLimit)
	hidden := 0

	take := func(idx int) {
		used[idx] = true
		attr := attrs[idx]
		if skipInfoKey(attr.key) {
			return
		}
		if isDebugOnlyKey(attr.key) {
			hidden++
			return
		}
		value := formatInfoValue(attr.key, attr.value)
		if limit > 0 && len(result) >= limit {
			hidden++
			return
		}
		result = append(result, infoField{label: displayLabel(attr.key), value: value})
	}

	for _, key := range infoHighlightKeys {
		for idx, attr := range attrs {
			if !used[idx] && attr.key == key {
				take(idx)
				break
			}
		}
	}
	for idx := range attrs {
		if !used[idx] {
			take(idx)
		}
	}
	return result, hidden
}

func formatInfoValue(key string, v slog.Value) string {
	v = v.Resolve()
	if v.Kind() == slog.KindBool {
		if v.Bool() {
			return "yes"
		}
		return "no"
	}
	if values, ok := v.Any().([]string); ok && v.Kind() == slog.KindAny {
		if len(values) == 0 {
			return "none"
		}
		return strings.Join(values, ", ")
	}
	value := formatValue(v)
	if key != "error" && len(value) > infoValueLimit {
		value = value[:infoValueLimit] + "…"
	}
	return value
}

func skipInfoKey(key string) bool {
	switch key {
	case "", FieldTestID, FieldStage, FieldComponent:
		return true
	default:
		return false
	}
}

func isDebugOnlyKey(key string) bool {
	if key == FieldCorrelationID || strings.Contains(key, "correlation") {
		return true
	}
	return strings.HasSuffix(key, "_path") || strings.HasSuffix(key, "_dir")
}

func displayLabel(key string) string {
	if label, ok := infoLabels[key]; ok {
		return label
	}
	return titleizeKey(key)
}

func titleizeKey(key string) string {
	parts := strings.FieldsFunc(key, func(r rune) bool {
		return r == '_' || r == '-'
	})
	for i, part := range parts {
		lower := strings.ToLower(part)
		parts[i] = strings.ToUpper(lower[:1]) + lower[1:]
	}
	return strings.Join(parts, " ")
}

func infoSummaryKey(component, testID string) string {
	if testID = strings.TrimSpace(testID); testID != "" {
		return testID
	}
	return component
}
