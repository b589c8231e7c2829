package main

import (
	"context"
	"io"

	jsoniter "github.com/json-iterator/go"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/AntonStoeckl/jsonapi-operations-go/example/config"
	"github.com/AntonStoeckl/jsonapi-operations-go/jsonapi"
	"github.com/AntonStoeckl/jsonapi-operations-go/jsonapi/atomic"
	"github.com/AntonStoeckl/jsonapi-operations-go/jsonapi/postgresengine"
)

var documentJSON = jsoniter.Config{EscapeHTML: false, SortMapKeys: true}.Froze()

// resultsDocument renders an "atomic:results" document, or an errors document for a failed batch.
func resultsDocument(results atomic.Results) map[string]any {
	if results.Failed() {
		return errorsDocument(results.Errors())
	}

	list := make([]any, 0, results.Len())
	for _, result := range results.All() {
		entry := map[string]any{}

		payload := result.Payload()
		if payload.HasData() {
			entry["data"] = dataDocument(payload.Data())
		}

		if meta := payload.Meta(); len(meta) > 0 {
			entry["meta"] = meta
		}

		list = append(list, entry)
	}

	return map[string]any{"atomic:results": list}
}

func dataDocument(data any) any {
	switch typed := data.(type) {
	case *postgresengine.Resource:
		return resourceDocument(typed)
	case []*postgresengine.Resource:
		list := make([]any, 0, len(typed))
		for _, resource := range typed {
			list = append(list, resourceDocument(resource))
		}

		return list
	default:
		return nil
	}
}

func resourceDocument(resource *postgresengine.Resource) map[string]any {
	if resource == nil {
		return nil
	}

	return map[string]any{
		"type":       resource.Type,
		"id":         resource.ID,
		"attributes": resource.Attributes,
	}
}

func errorsDocument(list jsonapi.ErrorList) map[string]any {
	errs := make([]any, 0, list.Len())

	for _, e := range list.All() {
		entry := map[string]any{}
		setIfNotEmpty(entry, "id", e.ID)
		setIfNotEmpty(entry, "status", e.Status)
		setIfNotEmpty(entry, "code", e.Code)
		setIfNotEmpty(entry, "title", e.Title)
		setIfNotEmpty(entry, "detail", e.Detail)

		if e.Source != nil {
			source := map[string]any{}
			setIfNotEmpty(source, "pointer", e.Source.Pointer)
			setIfNotEmpty(source, "parameter", e.Source.Parameter)
			setIfNotEmpty(source, "header", e.Source.Header)
			entry["source"] = source
		}

		if len(e.Meta) > 0 {
			entry["meta"] = e.Meta
		}

		errs = append(errs, entry)
	}

	return map[string]any{"errors": errs}
}

func setIfNotEmpty(m map[string]any, key, value string) {
	if value != "" {
		m[key] = value
	}
}

func writeDocument(w io.Writer, document map[string]any) error {
	encoded, err := documentJSON.MarshalIndent(document, "", "  ")
	if err != nil {
		return err
	}

	_, err = w.Write(append(encoded, '\n'))

	return err
}

// writeMetrics prints the number of data points collected per metric.
func writeMetrics(ctx context.Context, w io.Writer, providers *config.ObservabilityProviders) error {
	var collected metricdata.ResourceMetrics
	if err := providers.Reader.Collect(ctx, &collected); err != nil {
		return err
	}

	summary := map[string]any{}
	for _, scope := range collected.ScopeMetrics {
		for _, m := range scope.Metrics {
			summary[m.Name] = dataPointCount(m.Data)
		}
	}

	return writeDocument(w, map[string]any{"metrics": summary})
}

func dataPointCount(data metricdata.Aggregation) int {
	switch typed := data.(type) {
	case metricdata.Histogram[float64]:
		return len(typed.DataPoints)
	case metricdata.Sum[int64]:
		return len(typed.DataPoints)
	case metricdata.Gauge[float64]:
		return len(typed.DataPoints)
	default:
		return 0
	}
}
