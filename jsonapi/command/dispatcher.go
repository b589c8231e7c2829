package command

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
var ErrUnknownKind = errors.New("unknown command type")
var ErrNilPipelineModifier = errors.New("pipeline modifier must not be nil")

// Dispatcher routes a Command through the pipeline for its type and finally to the Store.
// It is safe for concurrent use once constructed.
type Dispatcher struct {
	store       jsonapi.Store
	authorizers jsonapi.AuthorizerFactory
	validators  jsonapi.ValidatorFactory
	pipelines   map[string]pipeline.Pipeline[Command]
	observers   observe.Observers
}

// Option defines a functional option for configuring the Dispatcher.
type Option func(*Dispatcher) error

// WithAuthorizer sets the authorization capability. Without it the authorize stage lets everything pass.
func WithAuthorizer(factory jsonapi.AuthorizerFactory) Option {
	return func(d *Dispatcher) error {
		d.authorizers = factory
		return nil
	}
}

// WithValidators sets the validation capability. Without it the operation data is normalized
// into the validated-data shape and passed on unchecked.
func WithValidators(factory jsonapi.ValidatorFactory) Option {
	return func(d *Dispatcher) error {
		d.validators = factory
		return nil
	}
}

// WithLogger sets the logger for the Dispatcher.
//
// Debug level: dispatch start
// Info level: successful and failed dispatches with duration (production-safe)
// Error level: infrastructure errors.
func WithLogger(logger jsonapi.Logger) Option {
	return func(d *Dispatcher) error {
		d.observers.Logger = logger
		return nil
	}
}

// WithContextualLogger sets a context-aware logger, it takes precedence over WithLogger.
func WithContextualLogger(logger jsonapi.ContextualLogger) Option {
	return func(d *Dispatcher) error {
		d.observers.ContextualLogger = logger
		return nil
	}
}

// WithMetrics sets the metrics collector for the Dispatcher.
func WithMetrics(collector jsonapi.MetricsCollector) Option {
	return func(d *Dispatcher) error {
		d.observers.Metrics = collector
		return nil
	}
}

// WithTracing sets the tracing collector for the Dispatcher.
func WithTracing(collector jsonapi.TracingCollector) Option {
	return func(d *Dispatcher) error {
		d.observers.Tracing = collector
		return nil
	}
}

// WithPipeline customizes the pipeline of one command type, e.g. to insert an application stage:
//
//	command.WithPipeline(command.KindStore, func(p pipeline.Pipeline[command.Command]) (pipeline.Pipeline[command.Command], error) {
//		return p.InsertAfter(command.StageAuthorize, auditStage)
//	})
func WithPipeline(
	kind string,
	modify func(p pipeline.Pipeline[Command]) (pipeline.Pipeline[Command], error),
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

// Pipeline returns the pipeline used for the given command type.
func (d *Dispatcher) Pipeline(kind string) (pipeline.Pipeline[Command], bool) {
	p, ok := d.pipelines[kind]
	return p, ok
}

// Dispatch runs cmd through its pipeline.
//
// A client-visible failure (authorization denied, validation failed, resource not found, a hook calling
// jsonapi.Abort) is reported as a failed Result with a nil error. An error is returned only for
// infrastructure failures, e.g. a failing Store. A nil or foreign command is a programming error and panics.
func (d *Dispatcher) Dispatch(ctx context.Context, cmd Command) (jsonapi.Result, error) {
	if cmd == nil {
		panic("command: dispatch of a nil command")
	}

	p, ok := d.pipelines[cmd.CommandType()]
	if !ok {
		panic(fmt.Sprintf("command: no pipeline for command type %q", cmd.CommandType()))
	}

	ctx, span := d.startDispatchSpan(ctx, cmd)
	d.logDispatchStart(ctx, cmd)
	start := time.Now()

	result, err := p.Run(ctx, cmd)
	result, err = toFailedResult(result, err)

	d.recordDispatch(ctx, span, cmd, result, err, time.Since(start))

	return result, err
}

// toFailedResult converts client-visible failures signaled through errors into failed Results.
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
