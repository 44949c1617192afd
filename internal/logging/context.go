package logging

import (
	"context"
	"log/slog"

	"reelforge/internal/services"
)

// Structured field keys shared by every reelforge record.
const (
	FieldComponent  = "component"
	FieldJobID      = "job_id"
	FieldUnit       = "unit"
	FieldUnitKind   = "unit_kind"
	FieldWorkerID   = "worker_id"
	FieldFrameRange = "frame_range"

	// FieldEventType classifies a record for filtering, for example "unit_failed".
	FieldEventType = "event_type"
	// FieldErrorHint tells the operator what to try next.
	FieldErrorHint = "error_hint"
	// FieldImpact says what a warning means for the deliverable.
	FieldImpact = "impact"

	FieldDecisionType   = "decision_type"
	FieldDecisionResult = "decision_result"
	FieldDecisionReason = "decision_reason"
)

// ContextFields returns the job, unit, unit kind and worker attributes
// stored on ctx by the services package.
func ContextFields(ctx context.Context) []slog.Attr {
	if ctx == nil {
		return nil
	}
	var fields []slog.Attr
	add := func(key string, value string, ok bool) {
		if ok {
			fields = append(fields, slog.String(key, value))
		}
	}
	id, ok := services.JobIDFromContext(ctx)
	add(FieldJobID, id, ok)
	unit, ok := services.UnitFromContext(ctx)
	add(FieldUnit, unit, ok)
	kind, ok := services.UnitKindFromContext(ctx)
	add(FieldUnitKind, kind, ok)
	worker, ok := services.WorkerIDFromContext(ctx)
	add(FieldWorkerID, worker, ok)
	return fields
}

// WithContext returns logger with the fields from ContextFields attached.
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
