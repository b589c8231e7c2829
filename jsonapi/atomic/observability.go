package atomic

import (
	"context"
	"strconv"
	"time"

	"github.com/AntonStoeckl/jsonapi-operations-go/jsonapi"
	"github.com/AntonStoeckl/jsonapi-operations-go/jsonapi/command"
	"github.com/AntonStoeckl/jsonapi-operations-go/jsonapi/internal/observe"
)

const (
	// BatchDurationMetric tracks atomic batch duration (OpenTelemetry-compatible).
	BatchDurationMetric = "jsonapi_atomic_batch_duration_seconds"

	// BatchSizeMetric tracks the number of operations per batch.
	BatchSizeMetric = "jsonapi_atomic_batch_operations"

	// OperationsMetric counts the operations a batch dispatched, by outcome.
	OperationsMetric = "jsonapi_atomic_operations_total"

	// SpanNameExecute is the tracing span name for a batch.
	SpanNameExecute = "jsonapi.atomic.execute"

	// LogMsgBatchStarted is logged when a batch begins.
	LogMsgBatchStarted = "atomic batch started"

	// LogMsgBatchSucceeded is logged when every operation of a batch succeeded.
	LogMsgBatchSucceeded = "atomic batch succeeded"

	// LogMsgBatchFailed is logged when an operation of a batch failed or the batch was rejected.
	LogMsgBatchFailed = "atomic batch failed"

	// LogMsgBatchError is logged when a batch stopped with an infrastructure error.
	LogMsgBatchError = "atomic batch error"

	// LogMsgOperationDispatched is logged after each dispatched operation.
	LogMsgOperationDispatched = "atomic operation dispatched"

	// LogAttrOperationIndex is the index of an operation within its batch.
	LogAttrOperationIndex = "operation_index"

	// LogAttrOperationCount is the number of operations in a batch.
	LogAttrOperationCount = "operation_count"

	// LogAttrFailedIndex is the index of the failed operation.
	LogAttrFailedIndex = "failed_index"

	// LogAttrTransactional tells whether the batch ran inside a transaction.
	LogAttrTransactional = "transactional"
)

func (p *Processor) startBatchSpan(ctx context.Context, count int) (context.Context, jsonapi.SpanContext) {
	return p.observers.StartSpan(ctx, SpanNameExecute, map[string]string{
		LogAttrOperationCount: strconv.Itoa(count),
		LogAttrTransactional:  strconv.FormatBool(p.transactor != nil),
	})
}

func (p *Processor) logBatchStart(ctx context.Context, count int) {
	p.observers.Debug(
		ctx,
		LogMsgBatchStarted,
		LogAttrOperationCount, count,
		LogAttrTransactional, p.transactor != nil,
	)
}

// recordOperation counts one dispatched operation.
func (p *Processor) recordOperation(ctx context.Context, cmd command.Command, index int, result jsonapi.Result, err error) {
	p.observers.IncrementCounter(ctx, OperationsMetric, map[string]string{
		command.LogAttrCommandType:  cmd.CommandType(),
		command.LogAttrResourceType: cmd.Type().String(),
		observe.AttrStatus:          observe.StatusOf(result, err),
	})

	p.observers.Debug(
		ctx,
		LogMsgOperationDispatched,
		LogAttrOperationIndex, index,
		command.LogAttrCommandType, cmd.CommandType(),
		observe.AttrStatus, observe.StatusOf(result, err),
	)
}

// recordBatch records metrics, finishes the span, and logs the outcome of a batch.
func (p *Processor) recordBatch(
	ctx context.Context,
	span jsonapi.SpanContext,
	count int,
	results Results,
	err error,
	duration time.Duration,
) {
	status := batchStatus(results, err)
	labels := map[string]string{observe.AttrStatus: status}

	p.observers.RecordDuration(ctx, BatchDurationMetric, duration, labels)
	p.observers.RecordValue(ctx, BatchSizeMetric, float64(count), labels)
	p.observers.FinishSpan(span, status, duration, err)

	args := []any{
		LogAttrOperationCount, count,
		observe.AttrDurationMS, observe.ToMilliseconds(duration),
	}

	switch status {
	case observe.StatusSuccess:
		p.observers.Info(ctx, LogMsgBatchSucceeded, args...)
	case observe.StatusFailed:
		args = append(args,
			LogAttrFailedIndex, results.FailedIndex(),
			observe.AttrStatus, strconv.Itoa(results.Errors().Status()),
			observe.AttrErrorCount, results.Errors().Len(),
		)
		p.observers.Info(ctx, LogMsgBatchFailed, args...)
	default:
		args = append(args, observe.AttrStatus, status)
		p.observers.Error(ctx, LogMsgBatchError, err, args...)
	}
}

func batchStatus(results Results, err error) string {
	switch {
	case err != nil:
		return observe.StatusOf(jsonapi.Result{}, err)
	case results.Failed():
		return observe.StatusFailed
	default:
		return observe.StatusSuccess
	}
}
