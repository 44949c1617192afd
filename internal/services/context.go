package services

import "context"

type contextKey string

const (
	jobIDKey    contextKey = "job_id"
	unitKey     contextKey = "unit"
	unitKindKey contextKey = "unit_kind"
	workerIDKey contextKey = "worker_id"
)

// WithJobID annotates context with the job identifier.
func WithJobID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, jobIDKey, id)
}

// JobIDFromContext extracts the job identifier if present.
func JobIDFromContext(ctx context.Context) (string, bool) {
	return stringValue(ctx, jobIDKey)
}

// WithUnit annotates context with the work unit name.
func WithUnit(ctx context.Context, name string) context.Context {
	if name == "" {
		return ctx
	}
	return context.WithValue(ctx, unitKey, name)
}

// UnitFromContext returns the work unit name if present.
func UnitFromContext(ctx context.Context) (string, bool) {
	return stringValue(ctx, unitKey)
}

// WithUnitKind annotates context with the work unit kind.
func WithUnitKind(ctx context.Context, kind string) context.Context {
	if kind == "" {
		return ctx
	}
	return context.WithValue(ctx, unitKindKey, kind)
}

// UnitKindFromContext returns the work unit kind if present.
func UnitKindFromContext(ctx context.Context) (string, bool) {
	return stringValue(ctx, unitKindKey)
}

// WithWorkerID annotates context with the worker process identifier.
func WithWorkerID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, workerIDKey, id)
}

// WorkerIDFromContext extracts the worker identifier if present.
func WorkerIDFromContext(ctx context.Context) (string, bool) {
	return stringValue(ctx, workerIDKey)
}

func stringValue(ctx context.Context, key contextKey) (string, bool) {
	if ctx == nil {
		return "", false
	}
	if v, ok := ctx.Value(key).(string); ok && v != "" {
		return v, true
	}
	return "", false
}
