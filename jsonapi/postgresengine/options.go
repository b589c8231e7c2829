package postgresengine

import (
	"github.com/AntonStoeckl/jsonapi-operations-go/jsonapi"
)

// Option defines a functional option for configuring the Store.
type Option func(*Store) error

// WithTableNames sets the names of the resources and the relationships tables.
func WithTableNames(resourcesTable, relationshipsTable string) Option {
	return func(s *Store) error {
		if resourcesTable == "" || relationshipsTable == "" {
			return ErrEmptyTableName
		}

		s.resourcesTable = resourcesTable
		s.relationshipsTable = relationshipsTable

		return nil
	}
}

// WithIDGenerator replaces the default UUID generator for server-generated ids.
// Client-generated ids in the validated data are always used as they are.
func WithIDGenerator(generate func() string) Option {
	return func(s *Store) error {
		if generate == nil {
			return ErrNilIDGenerator
		}

		s.newID = generate

		return nil
	}
}

// WithLogger sets the logger for the Store.
// The logger will receive messages at different levels based on the logger's configured level:
//
// Debug level: SQL statements with execution timing (development use)
// Info level: store operations with resource type and duration (production-safe)
// Warn level: Non-critical issues like cleanup failures
// Error level: Critical failures that cause operation failures.
func WithLogger(logger jsonapi.Logger) Option {
	return func(s *Store) error {
		s.observers.Logger = logger
		return nil
	}
}

// WithContextualLogger sets a context-aware logger, it takes precedence over WithLogger.
func WithContextualLogger(logger jsonapi.ContextualLogger) Option {
	return func(s *Store) error {
		s.observers.ContextualLogger = logger
		return nil
	}
}

// WithMetrics sets the metrics collector for the Store.
func WithMetrics(collector jsonapi.MetricsCollector) Option {
	return func(s *Store) error {
		s.observers.Metrics = collector
		return nil
	}
}

// WithTracing sets the tracing collector for the Store.
func WithTracing(collector jsonapi.TracingCollector) Option {
	return func(s *Store) error {
		s.observers.Tracing = collector
		return nil
	}
}
