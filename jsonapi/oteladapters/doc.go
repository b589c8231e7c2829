// Package oteladapters provides OpenTelemetry implementations of the jsonapi observability interfaces.
//
// Plug them into the dispatchers, the atomic processor and the PostgreSQL store:
//
//	meter := otel.Meter("jsonapi")
//	tracer := otel.Tracer("jsonapi")
//
//	dispatcher, err := command.NewDispatcher(store,
//		command.WithMetrics(oteladapters.NewMetricsCollector(meter)),
//		command.WithTracing(oteladapters.NewTracingCollector(tracer)),
//		command.WithContextualLogger(oteladapters.NewSlogBridgeLogger("jsonapi")),
//	)
package oteladapters
