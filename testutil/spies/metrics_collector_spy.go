package spies

import (
	"context"
	"maps"
	"sync"
	"time"
)

// MetricKind tells the recorded metric calls apart.
type MetricKind string

const (
	MetricKindDuration MetricKind = "duration"
	MetricKindCounter  MetricKind = "counter"
	MetricKindValue    MetricKind = "value"
)

// SpyMetricRecord is one recorded metric call. Duration is set for durations, Value for values.
type SpyMetricRecord struct {
	Kind        MetricKind
	Metric      string
	Duration    time.Duration
	Value       float64
	Labels      map[string]string
	WithContext bool
}

// MetricsCollectorSpy is a jsonapi.MetricsCollector that records every call in order.
// Wrap it in a ContextualMetricsCollectorSpy to capture the context-aware calls instead.
type MetricsCollectorSpy struct {
	records []SpyMetricRecord
	mu      sync.Mutex
}

func NewMetricsCollectorSpy() *MetricsCollectorSpy {
	return &MetricsCollectorSpy{records: make([]SpyMetricRecord, 0)}
}

func (s *MetricsCollectorSpy) RecordDuration(metric string, duration time.Duration, labels map[string]string) {
	s.record(SpyMetricRecord{Kind: MetricKindDuration, Metric: metric, Duration: duration, Labels: labels})
}

func (s *MetricsCollectorSpy) IncrementCounter(metric string, labels map[string]string) {
	s.record(SpyMetricRecord{Kind: MetricKindCounter, Metric: metric, Labels: labels})
}

func (s *MetricsCollectorSpy) RecordValue(metric string, value float64, labels map[string]string) {
	s.record(SpyMetricRecord{Kind: MetricKindValue, Metric: metric, Value: value, Labels: labels})
}

func (s *MetricsCollectorSpy) record(r SpyMetricRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r.Labels = maps.Clone(r.Labels)
	s.records = append(s.records, r)
}

// recordsOf returns the records of kind, optionally only those of metric.
func (s *MetricsCollectorSpy) recordsOf(kind MetricKind, metric string) []SpyMetricRecord {
	s.mu.Lock()
	defer s.mu.Unlock()

	matching := make([]SpyMetricRecord, 0)
	for _, r := range s.records {
		if r.Kind == kind && (metric == "" || r.Metric == metric) {
			matching = append(matching, r)
		}
	}

	return matching
}

// GetDurationRecords returns the duration records in call order.
func (s *MetricsCollectorSpy) GetDurationRecords() []SpyMetricRecord {
	return s.recordsOf(MetricKindDuration, "")
}

// GetCounterRecords returns the counter records in call order.
func (s *MetricsCollectorSpy) GetCounterRecords() []SpyMetricRecord {
	return s.recordsOf(MetricKindCounter, "")
}

func (s *MetricsCollectorSpy) CountCounterRecordsForMetric(metric string) int {
	return len(s.recordsOf(MetricKindCounter, metric))
}

// HasDurationRecordForMetric starts a fluent chain on the first duration record of metric.
func (s *MetricsCollectorSpy) HasDurationRecordForMetric(metric string) *MetricRecordMatcher {
	return newMetricRecordMatcher(s.recordsOf(MetricKindDuration, metric))
}

// HasCounterRecordForMetric starts a fluent chain on the first counter record of metric.
func (s *MetricsCollectorSpy) HasCounterRecordForMetric(metric string) *MetricRecordMatcher {
	return newMetricRecordMatcher(s.recordsOf(MetricKindCounter, metric))
}

// HasValueRecordForMetric starts a fluent chain on the first value record of metric.
func (s *MetricsCollectorSpy) HasValueRecordForMetric(metric string) *MetricRecordMatcher {
	return newMetricRecordMatcher(s.recordsOf(MetricKindValue, metric))
}

// MetricRecordMatcher checks the labels of one metric record.
type MetricRecordMatcher struct {
	found  bool
	labels map[string]string
}

func newMetricRecordMatcher(records []SpyMetricRecord) *MetricRecordMatcher {
	if len(records) == 0 {
		return &MetricRecordMatcher{}
	}

	return &MetricRecordMatcher{found: true, labels: records[0].Labels}
}

// WithStatus checks the status label.
func (m *MetricRecordMatcher) WithStatus(status string) *MetricRecordMatcher {
	return m.WithLabel("status", status)
}

func (m *MetricRecordMatcher) WithLabel(key, value string) *MetricRecordMatcher {
	if m.found && m.labels[key] != value {
		m.found = false
	}

	return m
}

// Assert reports whether the record exists and every check of the chain held.
func (m *MetricRecordMatcher) Assert() bool {
	return m.found
}

// ContextualMetricsCollectorSpy additionally implements the context-aware metric methods.
type ContextualMetricsCollectorSpy struct {
	*MetricsCollectorSpy
}

// NewContextualMetricsCollectorSpy creates a spy that records through the context-aware methods.
func NewContextualMetricsCollectorSpy() ContextualMetricsCollectorSpy {
	return ContextualMetricsCollectorSpy{MetricsCollectorSpy: NewMetricsCollectorSpy()}
}

func (s ContextualMetricsCollectorSpy) RecordDurationContext(_ context.Context, metric string, duration time.Duration, labels map[string]string) {
	s.record(SpyMetricRecord{Kind: MetricKindDuration, Metric: metric, Duration: duration, Labels: labels, WithContext: true})
}

func (s ContextualMetricsCollectorSpy) IncrementCounterContext(_ context.Context, metric string, labels map[string]string) {
	s.record(SpyMetricRecord{Kind: MetricKindCounter, Metric: metric, Labels: labels, WithContext: true})
}

func (s ContextualMetricsCollectorSpy) RecordValueContext(_ context.Context, metric string, value float64, labels map[string]string) {
	s.record(SpyMetricRecord{Kind: MetricKindValue, Metric: metric, Value: value, Labels: labels, WithContext: true})
}
