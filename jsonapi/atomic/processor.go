package atomic

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/AntonStoeckl/jsonapi-operations-go/jsonapi"
	"github.com/AntonStoeckl/jsonapi-operations-go/jsonapi/command"
	"github.com/AntonStoeckl/jsonapi-operations-go/jsonapi/internal/observe"
)

var ErrNilDispatcher = errors.New("command dispatcher must not be nil")
var ErrNilIDReader = errors.New("id reader must not be nil")
var ErrBatchCanceled = errors.New("atomic batch canceled")
var ErrOperationFailed = errors.New("atomic operation failed")
var ErrRecordingLocalIDFailed = errors.New("recording the id of a local id failed")

// errRolledBack signals the Transactor to roll back a batch that ended with a failed Result.
var errRolledBack = errors.New("batch failed, rolling back")

// CommandDispatcher dispatches one command, *command.Dispatcher implements it.
type CommandDispatcher interface {
	Dispatch(ctx context.Context, cmd command.Command) (jsonapi.Result, error)
}

// IDReader reads the id of a created model, every jsonapi.Store implements it.
type IDReader interface {
	ResourceIDOf(resourceType jsonapi.ResourceType, model jsonapi.Model) (jsonapi.ResourceID, error)
}

// Processor executes atomic operation batches.
// It is safe for concurrent use once constructed, each Execute call gets its own local id table.
type Processor struct {
	dispatcher CommandDispatcher
	ids        IDReader
	transactor jsonapi.Transactor
	hooks      map[string]jsonapi.Hooks
	observers  observe.Observers
}

// Option defines a functional option for configuring the Processor.
type Option func(*Processor) error

// WithTransactor runs every batch inside one transaction, rolled back when an operation fails.
// Without it, operations applied before a failure stay applied.
func WithTransactor(transactor jsonapi.Transactor) Option {
	return func(p *Processor) error {
		p.transactor = transactor
		return nil
	}
}

// WithHooks attaches hooks to every command for resourceType.
func WithHooks(resourceType string, hooks jsonapi.Hooks) Option {
	return func(p *Processor) error {
		if _, err := jsonapi.NewResourceType(resourceType); err != nil {
			return err
		}

		p.hooks[resourceType] = hooks

		return nil
	}
}

// WithLogger sets the logger for the Processor.
//
// Debug level: batch start
// Info level: successful and failed batches with duration (production-safe)
// Error level: infrastructure errors.
func WithLogger(logger jsonapi.Logger) Option {
	return func(p *Processor) error {
		p.observers.Logger = logger
		return nil
	}
}

// WithContextualLogger sets a context-aware logger, it takes precedence over WithLogger.
func WithContextualLogger(logger jsonapi.ContextualLogger) Option {
	return func(p *Processor) error {
		p.observers.ContextualLogger = logger
		return nil
	}
}

// WithMetrics sets the metrics collector for the Processor.
func WithMetrics(collector jsonapi.MetricsCollector) Option {
	return func(p *Processor) error {
		p.observers.Metrics = collector
		return nil
	}
}

// WithTracing sets the tracing collector for the Processor.
func WithTracing(collector jsonapi.TracingCollector) Option {
	return func(p *Processor) error {
		p.observers.Tracing = collector
		return nil
	}
}

// NewProcessor creates a Processor dispatching through dispatcher. ids is usually the jsonapi.Store
// the dispatcher writes to.
func NewProcessor(dispatcher CommandDispatcher, ids IDReader, opts ...Option) (*Processor, error) {
	if dispatcher == nil {
		return nil, ErrNilDispatcher
	}

	if ids == nil {
		return nil, ErrNilIDReader
	}

	p := &Processor{
		dispatcher: dispatcher,
		ids:        ids,
		hooks:      make(map[string]jsonapi.Hooks),
	}

	for _, opt := range opts {
		if err := opt(p); err != nil {
			return nil, err
		}
	}

	return p, nil
}

// Execute runs ops strictly in order and stops at the first failed operation.
//
// A batch that declares a lid twice, or uses a lid before a preceding Create declares it,
// is rejected before anything runs. Errors of a failed operation are reported with their pointers
// prefixed by "/atomic:operations/<index>". After each successful Create carrying a lid the new id
// is recorded, later operations referring to the lid receive it.
//
// Failed operations are reported through Results with a nil error. An error is returned for
// infrastructure failures and context cancellation, any transaction is rolled back then as well.
func (p *Processor) Execute(ctx context.Context, req *http.Request, ops []jsonapi.Operation) (Results, error) {
	ctx, span := p.startBatchSpan(ctx, len(ops))
	p.logBatchStart(ctx, len(ops))
	start := time.Now()

	results, err := p.execute(ctx, req, ops)

	p.recordBatch(ctx, span, len(ops), results, err, time.Since(start))

	return results, err
}

func (p *Processor) execute(ctx context.Context, req *http.Request, ops []jsonapi.Operation) (Results, error) {
	if index, errs, ok := checkLocalIDs(ops); !ok {
		return failedAt(index, nil, jsonapi.FailedWith(errs)), nil
	}

	if p.transactor == nil {
		return p.run(ctx, req, ops)
	}

	var results Results

	err := p.transactor.InTransaction(ctx, func(txCtx context.Context) error {
		var runErr error

		results, runErr = p.run(txCtx, req, ops)
		if runErr != nil {
			return runErr
		}

		if results.Failed() {
			return errRolledBack
		}

		return nil
	})

	switch {
	case err == nil:
		return results, nil
	case errors.Is(err, errRolledBack):
		return results, nil
	default:
		return Results{}, err
	}
}

func (p *Processor) run(ctx context.Context, req *http.Request, ops []jsonapi.Operation) (Results, error) {
	localIDs := NewLocalIDs()
	resolver := NewResolver(localIDs)
	done := make([]jsonapi.Result, 0, len(ops))

	for i, op := range ops {
		if err := ctx.Err(); err != nil {
			return Results{}, errors.Join(ErrBatchCanceled, fmt.Errorf("before operation %d", i), err)
		}

		result, err := p.runOne(ctx, req, i, resolver.ResolveOperation(op))
		if err != nil {
			return Results{}, errors.Join(ErrOperationFailed, fmt.Errorf("operation %d", i), err)
		}

		if result.DidFail() {
			return failedAt(i, done, result.WithErrors(result.Errors().WithPointerPrefix(operationPointer(i)))), nil
		}

		if err = p.recordLocalID(localIDs, op, result); err != nil {
			return Results{}, errors.Join(ErrRecordingLocalIDFailed, fmt.Errorf("operation %d", i), err)
		}

		done = append(done, result)
	}

	return succeeded(done), nil
}

func (p *Processor) runOne(ctx context.Context, req *http.Request, index int, op jsonapi.Operation) (jsonapi.Result, error) {
	cmd, err := command.FromOperation(req, op)
	if err != nil {
		// the pre-flight check makes this unreachable for lids, it still guards hand-built operations
		e := jsonapi.BadRequestError(err.Error(), "")
		if errors.Is(err, command.ErrUnresolvedLocalID) {
			e.Code = CodeUndeclaredLocalID
		}

		return jsonapi.Failed(e), nil
	}

	if hooks, found := p.hooks[cmd.Type().String()]; found {
		cmd = command.WithHooks(cmd, hooks)
	}

	result, err := p.dispatcher.Dispatch(ctx, cmd)

	p.recordOperation(ctx, cmd, index, result, err)

	return result, err
}

// recordLocalID remembers the id of a resource created for a lid.
func (p *Processor) recordLocalID(localIDs *LocalIDs, op jsonapi.Operation, result jsonapi.Result) error {
	create, ok := op.(jsonapi.Create)
	if !ok || !create.Data().HasLID() {
		return nil
	}

	id, err := p.ids.ResourceIDOf(create.ResourceType(), result.Payload().Data())
	if err != nil {
		return err
	}

	return localIDs.Assign(create.Data().LID, id)
}
