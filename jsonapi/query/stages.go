package query

import (
	"context"
	"errors"
	"fmt"

	"github.com/AntonStoeckl/jsonapi-operations-go/jsonapi"
	"github.com/AntonStoeckl/jsonapi-operations-go/jsonapi/pipeline"
)

// Names of the canonical stages, in execution order.
const (
	StageResolveModel = "resolve-model"
	StageAuthorize    = "authorize"
	StageValidate     = "validate"
	StageTriggerHooks = "trigger-hooks"
)

var ErrAuthorizerFailed = errors.New("authorizer failed")
var ErrValidatorFailed = errors.New("validator failed")
var ErrHookFailed = errors.New("hook failed")

// Stage is a pipeline stage for queries.
type Stage = pipeline.Stage[Query]

// Next continues a query pipeline.
type Next = pipeline.Next[Query]

func (d *Dispatcher) defaultPipelines() map[string]pipeline.Pipeline[Query] {
	resolveModel := pipeline.NewStage[Query](StageResolveModel, d.resolveModel)
	authorize := pipeline.NewStage[Query](StageAuthorize, d.authorize)
	validate := pipeline.NewStage[Query](StageValidate, d.validate)
	triggerHooks := pipeline.NewStage[Query](StageTriggerHooks, d.triggerHooks)

	return map[string]pipeline.Pipeline[Query]{
		KindFetchMany:         pipeline.New[Query](d.handleFetchMany, authorize, validate, triggerHooks),
		KindFetchOne:          pipeline.New[Query](d.handleFetchOne, resolveModel, authorize, validate, triggerHooks),
		KindFetchRelated:      pipeline.New[Query](d.handleFetchRelated, resolveModel, authorize, validate, triggerHooks),
		KindFetchRelationship: pipeline.New[Query](d.handleFetchRelated, resolveModel, authorize, validate, triggerHooks),
	}
}

// resolveModel loads the addressed resource and fails with 404 when it does not exist.
func (d *Dispatcher) resolveModel(ctx context.Context, q Query, next Next) (jsonapi.Result, error) {
	identifiable, ok := q.(Identifiable)
	if !ok || q.HasModel() {
		return next(ctx, q)
	}

	resourceType := q.Type()
	id := identifiable.ID()

	q = WithLazyModel(q, jsonapi.NewLazy(func(ctx context.Context) (jsonapi.Model, error) {
		model, found, err := d.store.Find(ctx, resourceType, id)
		if err != nil {
			return nil, errors.Join(jsonapi.ErrStoreCallFailed, err)
		}

		if !found {
			return nil, errors.Join(ErrModelNotFound, fmt.Errorf("%s %s", resourceType, id))
		}

		return model, nil
	}))

	if _, err := q.ModelOrFail(ctx); err != nil {
		return jsonapi.Result{}, err
	}

	return next(ctx, q)
}

func (d *Dispatcher) authorize(ctx context.Context, q Query, next Next) (jsonapi.Result, error) {
	if !q.MustAuthorize() || d.authorizers == nil {
		return next(ctx, q)
	}

	model, err := q.Model(ctx)
	if err != nil {
		return jsonapi.Result{}, err
	}

	authorizer := d.authorizers.Make(q.Type())
	req := q.Request()

	var errs jsonapi.ErrorList

	switch typed := q.(type) {
	case FetchMany:
		errs, err = authorizer.Index(ctx, req)
	case FetchOne:
		errs, err = authorizer.Show(ctx, req, model)
	case FetchRelated:
		errs, err = authorizer.ShowRelated(ctx, req, model, typed.FieldName())
	case FetchRelationship:
		errs, err = authorizer.ShowRelationship(ctx, req, model, typed.FieldName())
	default:
		panic(fmt.Sprintf("query: unknown query %T", q))
	}

	if err != nil {
		return jsonapi.Result{}, errors.Join(ErrAuthorizerFailed, err)
	}

	if errs.IsNotEmpty() {
		return jsonapi.FailedWith(errs), nil
	}

	return next(ctx, q)
}

// validate checks the query parameters. Collections and to-many relationships are validated as
// "many" queries, single resources and to-one relationships as "one" queries.
// Failures are reported as 400 errors naming the offending parameter.
func (d *Dispatcher) validate(ctx context.Context, q Query, next Next) (jsonapi.Result, error) {
	if q.IsValidated() {
		return next(ctx, q)
	}

	if !q.MustValidate() || d.validators == nil {
		return next(ctx, WithValidated(q, jsonapi.NormalizeQueryParameters(q.Input().Parameters())))
	}

	validators := d.validators.ValidatorsFor(q.Type())

	var validation jsonapi.Validation
	var err error

	if d.readsMany(q) {
		validation, err = validators.QueryMany(ctx, q.Request(), q.Input())
	} else {
		validation, err = validators.QueryOne(ctx, q.Request(), q.Input())
	}

	if err != nil {
		return jsonapi.Result{}, errors.Join(ErrValidatorFailed, err)
	}

	if validation.Fails() {
		return jsonapi.FailedWith(jsonapi.QueryErrors(validation.Failures)), nil
	}

	validated := validation.Validated
	if validated == nil {
		validated = jsonapi.NormalizeQueryParameters(q.Input().Parameters())
	}

	return next(ctx, WithValidated(q, validated))
}

func (d *Dispatcher) triggerHooks(ctx context.Context, q Query, next Next) (jsonapi.Result, error) {
	hooks := q.Hooks()
	if hooks == nil {
		return next(ctx, q)
	}

	model, err := q.Model(ctx)
	if err != nil {
		return jsonapi.Result{}, err
	}

	var before, after jsonapi.QueryHook

	switch q.(type) {
	case FetchMany:
		before, after = hooks.Searching, hooks.Searched
	case FetchOne:
		before, after = hooks.Reading, hooks.Read
	case FetchRelated:
		before, after = hooks.ReadingRelated, hooks.ReadRelated
	case FetchRelationship:
		before, after = hooks.ReadingRelationship, hooks.ReadRelationship
	default:
		panic(fmt.Sprintf("query: unknown query %T", q))
	}

	if err = jsonapi.CallQuery(ctx, before, q.Request(), model, nil, q.Input()); err != nil {
		return jsonapi.Result{}, errors.Join(ErrHookFailed, err)
	}

	result, err := next(ctx, q)
	if err != nil || result.DidFail() {
		return result, err
	}

	if err = jsonapi.CallQuery(ctx, after, q.Request(), model, result.Payload().Data(), q.Input()); err != nil {
		return jsonapi.Result{}, errors.Join(ErrHookFailed, err)
	}

	return result, nil
}

// readsMany reports whether q returns a collection. Relationships unknown to the schema count as to-many.
func (d *Dispatcher) readsMany(q Query) bool {
	relational, ok := q.(Relational)
	if !ok {
		return q.Input().IsMany()
	}

	kind, known := d.relationshipKind(q.Type(), relational.FieldName())

	return !known || kind == jsonapi.RelationshipToMany
}

func (d *Dispatcher) relationshipKind(resourceType jsonapi.ResourceType, field string) (jsonapi.RelationshipKind, bool) {
	if d.schema == nil {
		return "", false
	}

	return d.schema.RelationshipKind(resourceType, field)
}
