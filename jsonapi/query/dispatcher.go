package query

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/AntonStoeckl/jsonapi-operations-go/jsonapi"
	"github.com/AntonStoeckl/jsonapi-operations-go/jsonapi/internal/observe"
	"github.com/AntonStoeckl/jsonapi-operations-go/jsonapi/pipeline"
)

var ErrNilStore = errors.New("store must not be nil")
var ErrUnknownKind = errors.New("unknown query type")
var ErrNilPipelineModifier = errors.New("pipeline modifier must not be nil")

// Dispatcher routes a Query through the pipeline for its type and finally to the Store.
type Dispatcher struct {
	store       jsonapi.Store
	schema      jsonapi.Schema
	authorizers jsonapi.AuthorizerFactory
	validators  jsonapi.ValidatorFactory
	pipelines   map[string]pipeline.Pipeline[Query]
	observers   observe.Observers
}

// Option defines a functional option for configuring the Dispatcher.
type Option func(*Dispatcher) error

// WithSchema sets the relationship schema. FetchRelated and FetchRelationship need it
// to tell to-one from to-many relationships.
func WithSchema(schema jsonapi.Schema) Option {
	return func(d *Dispatcher) error {
		d.schema = schema
		return nil
	}
}

// WithAuthorizer sets the authorization capability. Without it the authorize stage lets everything pass.
func WithAuthorizer(factory jsonapi.AuthorizerFactory) Option {
	return func(d *Dispatcher) error {
		d.authorizers = factory
		return nil
	}
}

// WithValidators sets the validation capability. Without it the raw query parameters are used.
func WithValidators(factory jsonapi.ValidatorFactory) Option {
	return func(d *Dispatcher) error {
		d.validators = factory
		return nil
	}
}

func WithLogger(logger jsonapi.Logger) Option {
	return func(d *Dispatcher) error {
		d.observers.Logger = logger
		return nil
	}
}

func WithContextualLogger(logger jsonapi.ContextualLogger) Option {
	return func(d *Dispatcher) error {
		d.observers.ContextualLogger = logger
		return nil
	}
}

func WithMetrics(collector jsonapi.MetricsCollector) Option {
	return func(d *Dispatcher) error {
		d.observers.Metrics = collector
		return nil
	}
}

func WithTracing(collector jsonapi.TracingCollector) Option {
	return func(d *Dispatcher) error {
		d.observers.Tracing = collector
		return nil
	}
}

// WithPipeline customizes the pipeline of one query type.
func WithPipeline(
	kind string,
	modify func(p pipeline.Pipeline[Query]) (pipeline.Pipeline[Query], error),
) Option {
	return func(d *Dispatcher) error {
		if modify == nil {
			return ErrNilPipelineModifier
		}

		current, ok := d.pipelines[kind]
		if !ok {
			return errors.Join(ErrUnknownKind, fmt.Errorf("%q", kind))
		}

		modified, err := modify(current)
		if err != nil {
			return err
		}

		d.pipelines[kind] = modified

		return nil
	}
}

// NewDispatcher creates a Dispatcher with the default pipelines, customized by opts.
func NewDispatcher(store jsonapi.Store, opts ...Option) (*Dispatcher, error) {
	if store == nil {
		return nil, ErrNilStore
	}

	d := &Dispatcher{store: store}
	d.pipelines = d.defaultPipelines()

	for _, opt := range opts {
		if err := opt(d); err != nil {
			return nil, err
		}
	}

	return d, nil
}

// Pipeline returns the pipeline used for the given query type.
func (d *Dispatcher) Pipeline(kind string) (pipeline.Pipeline[Query], bool) {
	p, ok := d.pipelines[kind]
	return p, ok
}

// Dispatch runs q through its pipeline. Client-visible failures are failed Results,
// infrastructure failures are errors, and a nil or foreign query panics.
func (d *Dispatcher) Dispatch(ctx context.Context, q Query) (jsonapi.Result, error) {
	if q == nil {
		panic("query: dispatch of a nil query")
	}

	p, ok := d.pipelines[q.QueryType()]
	if !ok {
		panic(fmt.Sprintf("query: no pipeline for query type %q", q.QueryType()))
	}

	ctx, span := d.observers.StartSpan(ctx, SpanNameDispatch, dispatchLabels(q))
	d.observers.Debug(ctx, LogMsgDispatchStarted, LogAttrQueryType, q.QueryType(), LogAttrResourceType, q.Type().String())
	start := time.Now()

	result, err := p.Run(ctx, q)
	result, err = toFailedResult(result, err)

	d.recordDispatch(ctx, span, q, result, err, time.Since(start))

	return result, err
}

func toFailedResult(result jsonapi.Result, err error) (jsonapi.Result, error) {
	if err == nil {
		return result, nil
	}

	if errors.Is(err, ErrModelNotFound) {
		return jsonapi.Failed(jsonapi.NotFoundError()), nil
	}

	if failed, ok := jsonapi.FailedFromError(err); ok {
		return failed, nil
	}

	return jsonapi.Result{}, err
}
