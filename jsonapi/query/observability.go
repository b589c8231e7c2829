package query

import (
	"context"
	"strconv"
	"time"

	"github.com/AntonStoeckl/jsonapi-operations-go/jsonapi"
	"github.com/AntonStoeckl/jsonapi-operations-go/jsonapi/internal/observe"
)

const (
	// DispatchDurationMetric tracks query dispatch duration (OpenTelemetry-compatible).
	DispatchDurationMetric = "jsonapi_query_dispatch_duration_seconds"

	// DispatchCallsMetric tracks total query dispatches by outcome.
	DispatchCallsMetric = "jsonapi_query_dispatch_calls_total"

	// SpanNameDispatch is the tracing span name for query dispatch.
	SpanNameDispatch = "jsonapi.query.dispatch"

	LogMsgDispatchStarted   = "query dispatch started"
	LogMsgDispatchSucceeded = "query dispatch succeeded"
	LogMsgDispatchFailed    = "query dispatch failed"
	LogMsgDispatchError     = "query dispatch error"

	// LogAttrQueryType identifies the query type in logs, metrics and spans.
	LogAttrQueryType = "query_type"

	// LogAttrResourceType identifies the resource type in logs, metrics and spans.
	LogAttrResourceType = "resource_type"
)

func dispatchLabels(q Query) map[string]string {
	return map[string]string{
		LogAttrQueryType:    q.QueryType(),
		LogAttrResourceType: q.Type().String(),
	}
}

func (d *Dispatcher) recordDispatch(
	ctx context.Context,
	span jsonapi.SpanContext,
	q Query,
	result jsonapi.Result,
	err error,
	duration time.Duration,
) {
	status := observe.StatusOf(result, err)

	labels := dispatchLabels(q)
	labels[observe.AttrStatus] = status

	d.observers.RecordDuration(ctx, DispatchDurationMetric, duration, labels)
	d.observers.IncrementCounter(ctx, DispatchCallsMetric, labels)
	d.observers.FinishSpan(span, status, duration, err)

	args := []any{
		LogAttrQueryType, q.QueryType(),
		LogAttrResourceType, q.Type().String(),
		observe.AttrDurationMS, observe.ToMilliseconds(duration),
	}

	switch status {
	case observe.StatusSuccess:
		d.observers.Info(ctx, LogMsgDispatchSucceeded, args...)
	case observe.StatusFailed:
		args = append(args, observe.AttrStatus, strconv.Itoa(result.Errors().Status()))
		d.observers.Info(ctx, LogMsgDispatchFailed, args...)
	default:
		args = append(args, observe.AttrStatus, status)
		d.observers.Error(ctx, LogMsgDispatchError, err, args...)
	}
}
