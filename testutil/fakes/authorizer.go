package fakes

import (
	"context"
	"net/http"

	"github.com/AntonStoeckl/jsonapi-operations-go/jsonapi"
)

// Policy is a configurable jsonapi.AuthorizerFactory and jsonapi.Authorizer.
// It allows everything unless a method is denied, and records each call as "authorize.<Method>".
type Policy struct {
	denied   map[string]jsonapi.ErrorList
	failures map[string]error
	recorder *Recorder
}

func NewPolicy(recorder *Recorder) *Policy {
	return &Policy{
		denied:   make(map[string]jsonapi.ErrorList),
		failures: make(map[string]error),
		recorder: recorder,
	}
}

// Deny makes method (e.g. "Store") answer with errs, a 403 when errs is empty.
func (p *Policy) Deny(method string, errs ...jsonapi.Error) *Policy {
	if len(errs) == 0 {
		errs = []jsonapi.Error{jsonapi.ForbiddenError()}
	}

	p.denied[method] = jsonapi.NewErrorList(errs...)

	return p
}

// Fail makes method return err as an infrastructure failure.
func (p *Policy) Fail(method string, err error) *Policy {
	p.failures[method] = err
	return p
}

func (p *Policy) Make(_ jsonapi.ResourceType) jsonapi.Authorizer {
	return p
}

func (p *Policy) Index(_ context.Context, _ *http.Request) (jsonapi.ErrorList, error) {
	return p.decide("Index")
}

func (p *Policy) Store(_ context.Context, _ *http.Request) (jsonapi.ErrorList, error) {
	return p.decide("Store")
}

func (p *Policy) Show(_ context.Context, _ *http.Request, _ jsonapi.Model) (jsonapi.ErrorList, error) {
	return p.decide("Show")
}

func (p *Policy) Update(_ context.Context, _ *http.Request, _ jsonapi.Model) (jsonapi.ErrorList, error) {
	return p.decide("Update")
}

func (p *Policy) Destroy(_ context.Context, _ *http.Request, _ jsonapi.Model) (jsonapi.ErrorList, error) {
	return p.decide("Destroy")
}

func (p *Policy) ShowRelated(_ context.Context, _ *http.Request, _ jsonapi.Model, _ string) (jsonapi.ErrorList, error) {
	return p.decide("ShowRelated")
}

func (p *Policy) ShowRelationship(_ context.Context, _ *http.Request, _ jsonapi.Model, _ string) (jsonapi.ErrorList, error) {
	return p.decide("ShowRelationship")
}

func (p *Policy) UpdateRelationship(_ context.Context, _ *http.Request, _ jsonapi.Model, _ string) (jsonapi.ErrorList, error) {
	return p.decide("UpdateRelationship")
}

func (p *Policy) AttachRelationship(_ context.Context, _ *http.Request, _ jsonapi.Model, _ string) (jsonapi.ErrorList, error) {
	return p.decide("AttachRelationship")
}

func (p *Policy) DetachRelationship(_ context.Context, _ *http.Request, _ jsonapi.Model, _ string) (jsonapi.ErrorList, error) {
	return p.decide("DetachRelationship")
}

func (p *Policy) decide(method string) (jsonapi.ErrorList, error) {
	p.recorder.Record("authorize." + method)

	if err, ok := p.failures[method]; ok {
		return jsonapi.NewErrorList(), err
	}

	if errs, ok := p.denied[method]; ok {
		return errs, nil
	}

	return jsonapi.NewErrorList(), nil
}
