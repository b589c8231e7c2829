package oteladapters_test

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/log"
	"go.opentelemetry.io/otel/log/embedded"
	"go.opentelemetry.io/otel/log/noop"

	"github.com/AntonStoeckl/jsonapi-operations-go/jsonapi/oteladapters"
)

// recordingLogger is an OpenTelemetry log.Logger keeping every emitted record.
type recordingLogger struct {
	embedded.Logger
	records []log.Record
}

func (l *recordingLogger) Emit(_ context.Context, record log.Record) {
	l.records = append(l.records, record)
}

func (l *recordingLogger) Enabled(_ context.Context, _ log.EnabledParameters) bool {
	return true
}

func attributesOf(record log.Record) map[string]log.Value {
	attrs := make(map[string]log.Value)
	record.WalkAttributes(func(kv log.KeyValue) bool {
		attrs[kv.Key] = kv.Value
		return true
	})

	return attrs
}

func Test_NewSlogBridgeLogger_Logs_Without_Panicking(t *testing.T) {
	logger := oteladapters.NewSlogBridgeLogger("test")

	assert.NotPanics(t, func() {
		logger.InfoContext(context.Background(), "atomic batch started", "operation_count", 2)
	})
}

func Test_SlogBridgeLogger_Logs_All_Levels_Through_The_Handler(t *testing.T) {
	// arrange
	var buf bytes.Buffer
	logger := oteladapters.NewSlogBridgeLoggerWithHandler(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	ctx := context.Background()

	// act
	logger.DebugContext(ctx, "debug message")
	logger.InfoContext(ctx, "info message", "resource_type", "posts")
	logger.WarnContext(ctx, "warn message")
	logger.ErrorContext(ctx, "error message", "error", "boom")

	// assert
	output := buf.String()
	assert.Contains(t, output, `"level":"DEBUG","msg":"debug message"`)
	assert.Contains(t, output, `"msg":"info message","resource_type":"posts"`)
	assert.Contains(t, output, `"level":"WARN"`)
	assert.Contains(t, output, `"msg":"error message","error":"boom"`)
}

func Test_OTelLogger_Emits_Records_With_Severity_And_Typed_Attributes(t *testing.T) {
	// arrange
	recorder := &recordingLogger{}
	logger := oteladapters.NewOTelLogger(recorder)

	// act
	logger.ErrorContext(context.Background(), "store call failed",
		"resource_type", "posts",
		"error_count", 2,
		"duration_ms", 1.5,
		"transactional", true,
		"error", errors.New("boom"),
	)

	// assert
	require.Len(t, recorder.records, 1)
	record := recorder.records[0]
	assert.Equal(t, log.SeverityError, record.Severity())
	assert.Equal(t, "store call failed", record.Body().AsString())

	attrs := attributesOf(record)
	assert.Equal(t, "posts", attrs["resource_type"].AsString())
	assert.Equal(t, int64(2), attrs["error_count"].AsInt64())
	assert.InDelta(t, 1.5, attrs["duration_ms"].AsFloat64(), 0.0001)
	assert.True(t, attrs["transactional"].AsBool())
	assert.Equal(t, "boom", attrs["error"].AsString())
}

func Test_OTelLogger_Skips_Malformed_Arguments(t *testing.T) {
	// arrange
	recorder := &recordingLogger{}
	logger := oteladapters.NewOTelLogger(recorder)

	// act
	logger.InfoContext(context.Background(), "msg", 42, "ignored", "key", "value", "dangling")

	// assert
	require.Len(t, recorder.records, 1)
	attrs := attributesOf(recorder.records[0])
	assert.Len(t, attrs, 1)
	assert.Equal(t, "value", attrs["key"].AsString())
}

func Test_OTelLogger_Works_With_A_Noop_Logger(t *testing.T) {
	logger := oteladapters.NewOTelLogger(noop.NewLoggerProvider().Logger("test"))

	assert.NotPanics(t, func() {
		logger.DebugContext(context.Background(), "debug", "k", "v")
		logger.WarnContext(context.Background(), "warn")
	})
}
