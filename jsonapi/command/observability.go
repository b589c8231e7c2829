package command

import (
	"context"
	"strconv"
	"time"

	"github.com/AntonStoeckl/jsonapi-operations-go/jsonapi"
	"github.com/AntonStoeckl/jsonapi-operations-go/jsonapi/internal/observe"
)

const (
	// DispatchDurationMetric tracks command dispatch duration (OpenTelemetry-compatible).
	DispatchDurationMetric = "jsonapi_command_dispatch_duration_seconds"

	// DispatchCallsMetric tracks total command dispatches by outcome.
	DispatchCallsMetric = "jsonapi_command_dispatch_calls_total"

	// SpanNameDispatch is the tracing span name for command dispatch.
	SpanNameDispatch = "jsonapi.command.dispatch"

	// LogMsgDispatchStarted is logged when dispatching begins.
	LogMsgDispatchStarted = "command dispatch started"

	// LogMsgDispatchSucceeded is logged when the command produced a successful Result.
	LogMsgDispatchSucceeded = "command dispatch succeeded"

	// LogMsgDispatchFailed is logged when the command produced a failed Result.
	LogMsgDispatchFailed = "command dispatch failed"

	// LogMsgDispatchError is logged when dispatching returned an infrastructure error.
	LogMsgDispatchError = "command dispatch error"

	// LogAttrCommandType identifies the command type in logs, metrics and spans.
	LogAttrCommandType = "command_type"

	// LogAttrResourceType identifies the resource type in logs, metrics and spans.
	LogAttrResourceType = "resource_type"
)

func dispatchLabels(cmd Command) map[string]string {
	return map[string]string{
		LogAttrCommandType:  cmd.CommandType(),
		LogAttrResourceType: cmd.Type().String(),
	}
}

func (d *Dispatcher) startDispatchSpan(ctx context.Context, cmd Command) (context.Context, jsonapi.SpanContext) {
	return d.observers.StartSpan(ctx, SpanNameDispatch, dispatchLabels(cmd))
}

func (d *Dispatcher) logDispatchStart(ctx context.Context, cmd Command) {
	d.observers.Debug(
		ctx,
		LogMsgDispatchStarted,
		LogAttrCommandType, cmd.CommandType(),
		LogAttrResourceType, cmd.Type().String(),
	)
}

// recordDispatch records metrics, finishes the span, and logs the outcome of a dispatch.
func (d *Dispatcher) recordDispatch(
	ctx context.Context,
	span jsonapi.SpanContext,
	cmd Command,
	result jsonapi.Result,
	err error,
	duration time.Duration,
) {
	status := observe.StatusOf(result, err)

	labels := dispatchLabels(cmd)
	labels[observe.AttrStatus] = status

	d.observers.RecordDuration(ctx, DispatchDurationMetric, duration, labels)
	d.observers.IncrementCounter(ctx, DispatchCallsMetric, labels)
	d.observers.FinishSpan(span, status, duration, err)

	args := []any{
		LogAttrCommandType, cmd.CommandType(),
		LogAttrResourceType, cmd.Type().String(),
		observe.AttrDurationMS, observe.ToMilliseconds(duration),
	}

	switch status {
	case observe.StatusSuccess:
		d.observers.Info(ctx, LogMsgDispatchSucceeded, args...)
	case observe.StatusFailed:
		args = append(args, observe.AttrStatus, strconv.Itoa(result.Errors().Status()), observe.AttrErrorCount, result.Errors().Len())
		d.observers.Info(ctx, LogMsgDispatchFailed, args...)
	default:
		args = append(args, observe.AttrStatus, status)
		d.observers.Error(ctx, LogMsgDispatchError, err, args...)
	}
}
