// Package observe bundles the optional logger, metrics and tracing collectors of a component
// and records through whichever of them are configured.
package observe

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/AntonStoeckl/jsonapi-operations-go/jsonapi"
)

const (
	// StatusSuccess indicates a successful dispatch, batch or store call.
	StatusSuccess = "success"

	// StatusFailed indicates a client-visible failure (a failed Result).
	StatusFailed = "failed"

	// StatusError indicates an infrastructure error.
	StatusError = "error"

	// StatusCanceled indicates the operation was canceled due to context cancellation.
	StatusCanceled = "canceled"

	// StatusTimeout indicates the operation timed out due to context deadline exceeded.
	StatusTimeout = "timeout"

	AttrStatus     = "status"
	AttrDurationMS = "duration_ms"
	AttrError      = "error"
	AttrErrorCount = "error_count"
)

// Observers holds the optional collectors. The zero value records nothing.
type Observers struct {
	Logger           jsonapi.Logger
	ContextualLogger jsonapi.ContextualLogger
	Metrics          jsonapi.MetricsCollector
	Tracing          jsonapi.TracingCollector
}

// RecordDuration records a duration metric, using the context-aware method if available.
func (o Observers) RecordDuration(ctx context.Context, metric string, duration time.Duration, labels map[string]string) {
	if o.Metrics == nil {
		return
	}

	if contextualCollector, ok := o.Metrics.(jsonapi.ContextualMetricsCollector); ok {
		contextualCollector.RecordDurationContext(ctx, metric, duration, labels)
		return
	}

	o.Metrics.RecordDuration(metric, duration, labels)
}

// IncrementCounter increments a counter metric, using the context-aware method if available.
func (o Observers) IncrementCounter(ctx context.Context, metric string, labels map[string]string) {
	if o.Metrics == nil {
		return
	}

	if contextualCollector, ok := o.Metrics.(jsonapi.ContextualMetricsCollector); ok {
		contextualCollector.IncrementCounterContext(ctx, metric, labels)
		return
	}

	o.Metrics.IncrementCounter(metric, labels)
}

// RecordValue records a value metric, using the context-aware method if available.
func (o Observers) RecordValue(ctx context.Context, metric string, value float64, labels map[string]string) {
	if o.Metrics == nil {
		return
	}

	if contextualCollector, ok := o.Metrics.(jsonapi.ContextualMetricsCollector); ok {
		contextualCollector.RecordValueContext(ctx, metric, value, labels)
		return
	}

	o.Metrics.RecordValue(metric, value, labels)
}

// StartSpan starts a tracing span. Returns the original context and nil if tracing is disabled.
func (o Observers) StartSpan(ctx context.Context, name string, attrs map[string]string) (context.Context, jsonapi.SpanContext) {
	if o.Tracing == nil {
		return ctx, nil
	}

	return o.Tracing.StartSpan(ctx, name, attrs)
}

// FinishSpan completes a tracing span with the outcome.
func (o Observers) FinishSpan(span jsonapi.SpanContext, status string, duration time.Duration, err error) {
	if o.Tracing == nil || span == nil {
		return
	}

	attrs := map[string]string{
		AttrStatus:     status,
		AttrDurationMS: FormatDurationMS(duration),
	}

	if err != nil {
		attrs[AttrError] = err.Error()
	}

	o.Tracing.FinishSpan(span, status, attrs)
}

// Debug logs at debug level, preferring the contextual logger.
func (o Observers) Debug(ctx context.Context, msg string, args ...any) {
	if o.ContextualLogger != nil {
		o.ContextualLogger.DebugContext(ctx, msg, args...)
	} else if o.Logger != nil {
		o.Logger.Debug(msg, args...)
	}
}

// Info logs at info level, preferring the contextual logger.
func (o Observers) Info(ctx context.Context, msg string, args ...any) {
	if o.ContextualLogger != nil {
		o.ContextualLogger.InfoContext(ctx, msg, args...)
	} else if o.Logger != nil {
		o.Logger.Info(msg, args...)
	}
}

// Warn logs at warn level, preferring the contextual logger.
func (o Observers) Warn(ctx context.Context, msg string, args ...any) {
	if o.ContextualLogger != nil {
		o.ContextualLogger.WarnContext(ctx, msg, args...)
	} else if o.Logger != nil {
		o.Logger.Warn(msg, args...)
	}
}

// Error logs err at error level, preferring the contextual logger.
func (o Observers) Error(ctx context.Context, msg string, err error, args ...any) {
	allArgs := []any{AttrError, err.Error()}
	allArgs = append(allArgs, args...)

	if o.ContextualLogger != nil {
		o.ContextualLogger.ErrorContext(ctx, msg, allArgs...)
	} else if o.Logger != nil {
		o.Logger.Error(msg, allArgs...)
	}
}

// StatusOf classifies the outcome of a dispatch.
func StatusOf(result jsonapi.Result, err error) string {
	switch {
	case err == nil && result.DidSucceed():
		return StatusSuccess
	case err == nil:
		return StatusFailed
	case errors.Is(err, context.Canceled):
		return StatusCanceled
	case errors.Is(err, context.DeadlineExceeded):
		return StatusTimeout
	default:
		return StatusError
	}
}

// ToMilliseconds converts a time.Duration to float64 milliseconds with 3 decimal places.
func ToMilliseconds(d time.Duration) float64 {
	return math.Round(float64(d.Nanoseconds())/1e6*1000) / 1000
}

// FormatDurationMS formats duration in milliseconds for span attributes.
func FormatDurationMS(duration time.Duration) string {
	return fmt.Sprintf("%.2f", float64(duration.Nanoseconds())/1e6)
}
