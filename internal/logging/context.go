package logging

import (
	"context"
	"log/slog"

	"drugscreen/internal/services"
)

const (
	// FieldComponent is the standardized structured logging key for component names.
	FieldComponent = "component"
	// FieldTestID is the standardized structured logging key for test record identifiers.
	FieldTestID = "test_id"
	// FieldStage is the standardized structured logging key for notification stage names.
	FieldStage = "stage"
	// FieldCorrelationID is the standardized structured logging key for request correlation identifiers.
	FieldCorrelationID = "correlation_id"
	// FieldAlert flags entries that should stand out; data integrity failures use "critical".
	FieldAlert = "alert"
	// FieldEventType names the event a WARN or ERROR entry describes.
	FieldEventType = "event_type"
	// FieldErrorHint tells the operator what to check next.
	FieldErrorHint = "error_hint"
	// FieldImpact describes the consequence of a warning.
	FieldImpact = "impact"
	// FieldErrorKind carries services.Kind for wrapped errors.
	FieldErrorKind = "error_kind"
	// FieldDecisionType, FieldDecisionResult, and FieldDecisionReason describe a logged decision.
	FieldDecisionType   = "decision_type"
	FieldDecisionResult = "decision_result"
	FieldDecisionReason = "decision_reason"
)

// ContextFields extracts standardized slog attributes from the provided context.
func ContextFields(ctx context.Context) []slog.Attr {
	if ctx == nil {
		return nil
	}
	fields := make([]slog.Attr, 0, 3)
	if id, ok := services.TestIDFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldTestID, id))
	}
	if stage, ok := services.StageFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldStage, stage))
	}
	if rid, ok := services.RequestIDFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldCorrelationID, rid))
	}
	return fields
}

// WithContext returns a logger augmented with structured fields derived from the supplied context.
func WithContext(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if logger == nil {
		logger = NewNop()
	}
	fields := ContextFields(ctx)
	if len(fields) == 0 {
		return logger
	}
	return logger.With(Args(fields...)...)
}
