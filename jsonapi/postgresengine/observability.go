package postgresengine

import (
	"context"
	"time"

	"github.com/AntonStoeckl/jsonapi-operations-go/jsonapi"
	"github.com/AntonStoeckl/jsonapi-operations-go/jsonapi/internal/observe"
)

const (
	// StoreDurationMetric tracks store call duration (OpenTelemetry-compatible).
	StoreDurationMetric = "jsonapi_store_duration_seconds"

	// StoreErrorsMetric counts failed store calls.
	StoreErrorsMetric = "jsonapi_store_errors_total"

	// SpanNamePrefix prefixes the operation name of a store span, e.g. "jsonapi.store.create".
	SpanNamePrefix = "jsonapi.store."

	// LogAttrOperation is the store operation of a metric, span or log record.
	LogAttrOperation = "operation"

	// LogAttrResourceType is the resource type a store call was made for.
	LogAttrResourceType = "resource_type"
)

const (
	operationFind         = "find"
	operationCreate       = "create"
	operationUpdate       = "update"
	operationDelete       = "delete"
	operationModifyToOne  = "modify_to_one"
	operationModifyToMany = "modify_to_many"
	operationQueryAll     = "query_all"
	operationQueryOne     = "query_one"
	operationQueryToOne   = "query_to_one"
	operationQueryToMany  = "query_to_many"

	logMsgBuildQueryFailed       = "failed to build sql query"
	logMsgDBQueryFailed          = "database query execution failed"
	logMsgDBExecFailed           = "database statement execution failed"
	logMsgCloseRowsFailed        = "failed to close database rows"
	logMsgScanRowFailed          = "failed to scan database row"
	logMsgEncodeAttributesFailed = "failed to encode attributes"
	logMsgDecodeAttributesFailed = "failed to decode attributes"
	logMsgBeginFailed            = "failed to begin transaction"
	logMsgCommitFailed           = "failed to commit transaction"
	logMsgRollbackFailed         = "failed to roll back transaction"
	logMsgSQLExecuted            = "executed sql for: "
	logMsgOperation              = "store operation: "
	logMsgMigrated               = "store tables created"

	logAttrError        = observe.AttrError
	logAttrQuery        = "query"
	logAttrAction       = "action"
	logAttrResourceType = LogAttrResourceType

	logActionFind         = "find"
	logActionQuery        = "query"
	logActionCreate       = "create"
	logActionUpdate       = "update"
	logActionDelete       = "delete"
	logActionRelationship = "relationship"
	logActionRelated      = "related"
	logActionMigrate      = "migrate"
)

// observe wraps one store call with a span, duration and error metrics, and an info log.
func (s Store) observe(
	ctx context.Context,
	operation string,
	resourceType jsonapi.ResourceType,
	fn func(ctx context.Context) error,
) error {

	ctx, span := s.observers.StartSpan(ctx, SpanNamePrefix+operation, map[string]string{
		LogAttrOperation:    operation,
		LogAttrResourceType: resourceType.String(),
	})

	start := time.Now()
	err := fn(ctx)
	duration := time.Since(start)

	status := statusOf(err)
	labels := map[string]string{
		LogAttrOperation:    operation,
		LogAttrResourceType: resourceType.String(),
		observe.AttrStatus:  status,
	}

	s.observers.RecordDuration(ctx, StoreDurationMetric, duration, labels)

	if err != nil {
		s.observers.IncrementCounter(ctx, StoreErrorsMetric, labels)
	} else {
		s.observers.Info(
			ctx,
			logMsgOperation+operation,
			logAttrResourceType, resourceType.String(),
			observe.AttrDurationMS, observe.ToMilliseconds(duration),
		)
	}

	s.observers.FinishSpan(span, status, duration, err)

	return err
}

// logQueryWithDuration logs SQL statements with execution time at debug level.
func (s Store) logQueryWithDuration(ctx context.Context, sqlQuery string, action string, duration time.Duration) {
	s.observers.Debug(
		ctx,
		logMsgSQLExecuted+action,
		observe.AttrDurationMS, observe.ToMilliseconds(duration),
		logAttrQuery, sqlQuery,
	)
}

func statusOf(err error) string {
	if err == nil {
		return observe.StatusSuccess
	}

	return observe.StatusOf(jsonapi.Result{}, err)
}
