package fakes

import (
	"context"
	"net/http"

	"github.com/AntonStoeckl/jsonapi-operations-go/jsonapi"
)

// Rules is a configurable jsonapi.ValidatorFactory and jsonapi.Validators.
// It accepts the normalized input unless failures are configured for a method,
// and records each call as "validate.<Method>".
type Rules struct {
	jsonapi.PassthroughValidators
	failures  map[string][]jsonapi.FieldFailure
	errs      map[string]error
	transform func(validated map[string]any) map[string]any
	recorder  *Recorder
}

func NewRules(recorder *Recorder) *Rules {
	return &Rules{
		failures: make(map[string][]jsonapi.FieldFailure),
		errs:     make(map[string]error),
		recorder: recorder,
	}
}

// Reject makes method (e.g. "Store") fail with failures.
func (r *Rules) Reject(method string, failures ...jsonapi.FieldFailure) *Rules {
	r.failures[method] = failures
	return r
}

// Fail makes method return err as an infrastructure failure.
func (r *Rules) Fail(method string, err error) *Rules {
	r.errs[method] = err
	return r
}

// Transforming applies fn to the validated data of every accepted call.
func (r *Rules) Transforming(fn func(validated map[string]any) map[string]any) *Rules {
	r.transform = fn
	return r
}

func (r *Rules) ValidatorsFor(_ jsonapi.ResourceType) jsonapi.Validators {
	return r
}

func (r *Rules) Store(ctx context.Context, req *http.Request, op jsonapi.Create) (jsonapi.Validation, error) {
	validation, err := r.PassthroughValidators.Store(ctx, req, op)
	return r.decide("Store", validation, err)
}

func (r *Rules) Update(ctx context.Context, req *http.Request, model jsonapi.Model, op jsonapi.Update) (jsonapi.Validation, error) {
	validation, err := r.PassthroughValidators.Update(ctx, req, model, op)
	return r.decide("Update", validation, err)
}

func (r *Rules) Destroy(ctx context.Context, req *http.Request, model jsonapi.Model, op jsonapi.Delete) (jsonapi.Validation, error) {
	validation, err := r.PassthroughValidators.Destroy(ctx, req, model, op)
	return r.decide("Destroy", validation, err)
}

func (r *Rules) Relation(ctx context.Context, req *http.Request, model jsonapi.Model, op jsonapi.Operation) (jsonapi.Validation, error) {
	validation, err := r.PassthroughValidators.Relation(ctx, req, model, op)
	return r.decide("Relation", validation, err)
}

func (r *Rules) QueryOne(ctx context.Context, req *http.Request, query jsonapi.QueryInput) (jsonapi.Validation, error) {
	validation, err := r.PassthroughValidators.QueryOne(ctx, req, query)
	return r.decide("QueryOne", validation, err)
}

func (r *Rules) QueryMany(ctx context.Context, req *http.Request, query jsonapi.QueryInput) (jsonapi.Validation, error) {
	validation, err := r.PassthroughValidators.QueryMany(ctx, req, query)
	return r.decide("QueryMany", validation, err)
}

func (r *Rules) decide(method string, validation jsonapi.Validation, err error) (jsonapi.Validation, error) {
	r.recorder.Record("validate." + method)

	if err != nil {
		return jsonapi.Validation{}, err
	}

	if err, ok := r.errs[method]; ok {
		return jsonapi.Validation{}, err
	}

	if failures, ok := r.failures[method]; ok {
		return jsonapi.Validation{Failures: failures}, nil
	}

	if r.transform != nil {
		validation.Validated = r.transform(validation.Validated)
	}

	return validation, nil
}
