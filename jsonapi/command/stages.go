package command

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

// Stage is a pipeline stage for commands.
type Stage = pipeline.Stage[Command]

// Next continues a command pipeline.
type Next = pipeline.Next[Command]

func (d *Dispatcher) defaultPipelines() map[string]pipeline.Pipeline[Command] {
	resolveModel := pipeline.NewStage[Command](StageResolveModel, d.resolveModel)
	authorize := pipeline.NewStage[Command](StageAuthorize, d.authorize)
	validate := pipeline.NewStage[Command](StageValidate, d.validate)
	triggerHooks := pipeline.NewStage[Command](StageTriggerHooks, d.triggerHooks)

	return map[string]pipeline.Pipeline[Command]{
		KindStore:              pipeline.New[Command](d.handleStore, authorize, validate, triggerHooks),
		KindUpdate:             pipeline.New[Command](d.handleUpdate, resolveModel, authorize, validate, triggerHooks),
		KindDestroy:            pipeline.New[Command](d.handleDestroy, resolveModel, authorize, validate, triggerHooks),
		KindUpdateRelationship: pipeline.New[Command](d.handleUpdateRelationship, resolveModel, authorize, validate, triggerHooks),
		KindAttachRelationship: pipeline.New[Command](d.handleAttachRelationship, resolveModel, authorize, validate, triggerHooks),
		KindDetachRelationship: pipeline.New[Command](d.handleDetachRelationship, resolveModel, authorize, validate, triggerHooks),
	}
}

// resolveModel attaches a lazy store lookup for the target resource.
// Update and Destroy force it right away so a missing resource fails with 404 before anything else runs,
// relationship commands resolve it on first use.
func (d *Dispatcher) resolveModel(ctx context.Context, cmd Command, next Next) (jsonapi.Result, error) {
	identifiable, ok := cmd.(Identifiable)
	if !ok || cmd.HasModel() {
		return next(ctx, cmd)
	}

	resourceType := cmd.Type()
	id := identifiable.ID()

	cmd = WithLazyModel(cmd, jsonapi.NewLazy(func(ctx context.Context) (jsonapi.Model, error) {
		model, found, err := d.store.Find(ctx, resourceType, id)
		if err != nil {
			return nil, errors.Join(jsonapi.ErrStoreCallFailed, err)
		}

		if !found {
			return nil, errors.Join(ErrModelNotFound, fmt.Errorf("%s %s", resourceType, id))
		}

		return model, nil
	}))

	switch cmd.(type) {
	case Update, Destroy:
		if _, err := cmd.ModelOrFail(ctx); err != nil {
			return jsonapi.Result{}, err
		}
	}

	return next(ctx, cmd)
}

// authorize asks the authorization capability and short-circuits on a non-empty ErrorList.
func (d *Dispatcher) authorize(ctx context.Context, cmd Command, next Next) (jsonapi.Result, error) {
	if !cmd.MustAuthorize() || d.authorizers == nil {
		return next(ctx, cmd)
	}

	model, err := cmd.Model(ctx)
	if err != nil {
		return jsonapi.Result{}, err
	}

	authorizer := d.authorizers.Make(cmd.Type())
	req := cmd.Request()

	var errs jsonapi.ErrorList

	switch c := cmd.(type) {
	case Store:
		errs, err = authorizer.Store(ctx, req)
	case Update:
		errs, err = authorizer.Update(ctx, req, model)
	case Destroy:
		errs, err = authorizer.Destroy(ctx, req, model)
	case UpdateRelationship:
		errs, err = authorizer.UpdateRelationship(ctx, req, model, c.FieldName())
	case AttachRelationship:
		errs, err = authorizer.AttachRelationship(ctx, req, model, c.FieldName())
	case DetachRelationship:
		errs, err = authorizer.DetachRelationship(ctx, req, model, c.FieldName())
	default:
		panic(fmt.Sprintf("command: unknown command %T", cmd))
	}

	if err != nil {
		return jsonapi.Result{}, errors.Join(ErrAuthorizerFailed, err)
	}

	if errs.IsNotEmpty() {
		return jsonapi.FailedWith(errs), nil
	}

	return next(ctx, cmd)
}

// validate runs the validation capability and attaches the validated data.
// Without validation the operation data is normalized into the same shape.
func (d *Dispatcher) validate(ctx context.Context, cmd Command, next Next) (jsonapi.Result, error) {
	if cmd.IsValidated() {
		return next(ctx, cmd)
	}

	if !cmd.MustValidate() || d.validators == nil {
		return next(ctx, WithValidated(cmd, cmd.Operation().Normalized()))
	}

	model, err := cmd.Model(ctx)
	if err != nil {
		return jsonapi.Result{}, err
	}

	validators := d.validators.ValidatorsFor(cmd.Type())
	req := cmd.Request()

	var validation jsonapi.Validation

	switch c := cmd.(type) {
	case Store:
		validation, err = validators.Store(ctx, req, c.Create())
	case Update:
		validation, err = validators.Update(ctx, req, model, c.UpdateOperation())
	case Destroy:
		validation, err = validators.Destroy(ctx, req, model, c.Delete())
	case UpdateRelationship, AttachRelationship, DetachRelationship:
		validation, err = validators.Relation(ctx, req, model, cmd.Operation())
	default:
		panic(fmt.Sprintf("command: unknown command %T", cmd))
	}

	if err != nil {
		return jsonapi.Result{}, errors.Join(ErrValidatorFailed, err)
	}

	if validation.Fails() {
		return jsonapi.FailedWith(jsonapi.ResourceErrors(cmd.Operation(), validation.Failures)), nil
	}

	validated := validation.Validated
	if validated == nil {
		validated = cmd.Operation().Normalized()
	}

	return next(ctx, WithValidated(cmd, validated))
}

// triggerHooks calls the "before" hooks, continues, and calls the "after" hooks only on success.
func (d *Dispatcher) triggerHooks(ctx context.Context, cmd Command, next Next) (jsonapi.Result, error) {
	hooks := cmd.Hooks()
	if hooks == nil {
		return next(ctx, cmd)
	}

	model, err := cmd.Model(ctx)
	if err != nil {
		return jsonapi.Result{}, err
	}

	req := cmd.Request()
	op := cmd.Operation()

	switch c := cmd.(type) {
	case Store:
		return aroundNext(ctx, cmd, next,
			func() error {
				if err := jsonapi.CallMutation(ctx, hooks.Saving, req, nil, op); err != nil {
					return err
				}

				return jsonapi.CallMutation(ctx, hooks.Creating, req, nil, op)
			},
			func(result jsonapi.Result) error {
				created := result.Payload().Data()
				if err := jsonapi.CallMutation(ctx, hooks.Created, req, created, op); err != nil {
					return err
				}

				return jsonapi.CallMutation(ctx, hooks.Saved, req, created, op)
			},
		)
	case Update:
		return aroundNext(ctx, cmd, next,
			func() error {
				if err := jsonapi.CallMutation(ctx, hooks.Saving, req, model, op); err != nil {
					return err
				}

				return jsonapi.CallMutation(ctx, hooks.Updating, req, model, op)
			},
			func(result jsonapi.Result) error {
				updated := result.Payload().Data()
				if err := jsonapi.CallMutation(ctx, hooks.Updated, req, updated, op); err != nil {
					return err
				}

				return jsonapi.CallMutation(ctx, hooks.Saved, req, updated, op)
			},
		)
	case Destroy:
		return aroundNext(ctx, cmd, next,
			func() error {
				return jsonapi.CallMutation(ctx, hooks.Deleting, req, model, op)
			},
			func(_ jsonapi.Result) error {
				return jsonapi.CallMutation(ctx, hooks.Deleted, req, model, op)
			},
		)
	case UpdateRelationship:
		return aroundRelationship(ctx, cmd, next, hooks.UpdatingRelationship, hooks.UpdatedRelationship, model, c.FieldName())
	case AttachRelationship:
		return aroundRelationship(ctx, cmd, next, hooks.AttachingRelationship, hooks.AttachedRelationship, model, c.FieldName())
	case DetachRelationship:
		return aroundRelationship(ctx, cmd, next, hooks.DetachingRelationship, hooks.DetachedRelationship, model, c.FieldName())
	default:
		panic(fmt.Sprintf("command: unknown command %T", cmd))
	}
}

func aroundRelationship(
	ctx context.Context,
	cmd Command,
	next Next,
	before jsonapi.RelationshipHook,
	after jsonapi.RelationshipHook,
	model jsonapi.Model,
	field string,
) (jsonapi.Result, error) {
	req := cmd.Request()
	op := cmd.Operation()

	return aroundNext(ctx, cmd, next,
		func() error {
			return jsonapi.CallRelationship(ctx, before, req, model, field, nil, op)
		},
		func(result jsonapi.Result) error {
			return jsonapi.CallRelationship(ctx, after, req, model, field, result.Payload().Data(), op)
		},
	)
}

func aroundNext(
	ctx context.Context,
	cmd Command,
	next Next,
	before func() error,
	after func(result jsonapi.Result) error,
) (jsonapi.Result, error) {
	if err := before(); err != nil {
		return jsonapi.Result{}, errors.Join(ErrHookFailed, err)
	}

	result, err := next(ctx, cmd)
	if err != nil || result.DidFail() {
		return result, err
	}

	if err = after(result); err != nil {
		return jsonapi.Result{}, errors.Join(ErrHookFailed, err)
	}

	return result, nil
}
