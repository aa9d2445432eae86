package core

import (
	"context"
	"time"

	"meetcore/pkg/domain"
)

// Logger is the minimal structured logging surface the service emits through.
// *slog.Logger satisfies it directly.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// NewNoopLogger returns a logger that discards all records.
func NewNoopLogger() Logger { return noopLogger{} }

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// AuditStatus labels the outcome of an audited operation.
type AuditStatus string

const (
	// AuditStatusSuccess marks an operation whose transaction committed.
	AuditStatusSuccess AuditStatus = "success"
	// AuditStatusError marks an operation that was rolled back or rejected.
	AuditStatusError AuditStatus = "error"
)

// AuditEntry is one record in the operation audit trail.
type AuditEntry struct {
	Operation string
	Entity    domain.EntityType
	Action    domain.Action
	EntityID  string
	Status    AuditStatus
	Error     string
	Duration  time.Duration
	Timestamp time.Time
}

// AuditRecorder receives audit entries for completed service operations.
type AuditRecorder interface {
	Record(ctx context.Context, entry AuditEntry)
}

// NewNoopAuditRecorder returns a recorder that drops every entry.
func NewNoopAuditRecorder() AuditRecorder { return noopAuditRecorder{} }

type noopAuditRecorder struct{}

func (noopAuditRecorder) Record(context.Context, AuditEntry) {}

// NewLoggerAuditRecorder adapts a Logger into an AuditRecorder so deployments
// without a dedicated audit sink still retain an operation trail in the logs.
func NewLoggerAuditRecorder(logger Logger) AuditRecorder {
	if logger == nil {
		logger = NewNoopLogger()
	}
	return loggerAuditRecorder{logger: logger}
}

type loggerAuditRecorder struct {
	logger Logger
}

func (r loggerAuditRecorder) Record(_ context.Context, entry AuditEntry) {
	args := []any{
		"operation", entry.Operation,
		"entity", string(entry.Entity),
		"action", string(entry.Action),
		"entity_id", entry.EntityID,
		"status", string(entry.Status),
		"duration_ms", float64(entry.Duration) / float64(time.Millisecond),
	}
	if entry.Status == AuditStatusError {
		args = append(args, "error", entry.Error)
		r.logger.Error("audit", args...)
		return
	}
	r.logger.Info("audit", args...)
}

// MetricsRecorder observes operation latency and outcome.
type MetricsRecorder interface {
	Observe(ctx context.Context, operation string, success bool, duration time.Duration)
}

// NewNoopMetricsRecorder returns a recorder that ignores all observations.
func NewNoopMetricsRecorder() MetricsRecorder { return noopMetricsRecorder{} }

type noopMetricsRecorder struct{}

func (noopMetricsRecorder) Observe(context.Context, string, bool, time.Duration) {}

// TraceSpan finishes one traced operation.
type TraceSpan interface {
	End(err error)
}

// Tracer opens spans around service operations.
type Tracer interface {
	Start(ctx context.Context, operation string) (context.Context, TraceSpan)
}

// NewNoopTracer returns a tracer producing inert spans.
func NewNoopTracer() Tracer { return noopTracer{} }

type noopTracer struct{}

func (noopTracer) Start(ctx context.Context, _ string) (context.Context, TraceSpan) {
	return ctx, noopSpan{}
}

type noopSpan struct{}

func (noopSpan) End(error) {}

// Clock supplies operation timestamps.
type Clock interface {
	Now() time.Time
}

// ClockFunc adapts a plain function to Clock. A nil ClockFunc falls back to
// the system clock; all times are normalized to UTC.
type ClockFunc func() time.Time

// Now implements Clock.
func (f ClockFunc) Now() time.Time {
	if f == nil {
		return time.Now().UTC()
	}
	return f().UTC()
}
