package jsonapi

import (
	"errors"
)

/***** Payload *****/

// Payload is the data and meta envelope of a successful Result.
type Payload struct {
	data    any
	hasData bool
	meta    map[string]any
}

// NewPayload builds a payload that has data (which may be nil, e.g. an empty to-one relationship).
func NewPayload(data any, meta map[string]any) Payload {
	return MakePayload(data, true, meta)
}

// NoDataPayload builds a payload without data, e.g. for a delete.
func NoDataPayload(meta map[string]any) Payload {
	return MakePayload(nil, false, meta)
}

// MakePayload builds a payload. It panics when hasData is false but data is not nil.
func MakePayload(data any, hasData bool, meta map[string]any) Payload {
	if !hasData && data != nil {
		panic("jsonapi: payload without data must not carry data")
	}

	return Payload{data: data, hasData: hasData, meta: meta}
}

func (p Payload) Data() any {
	return p.data
}

func (p Payload) HasData() bool {
	return p.hasData
}

func (p Payload) Meta() map[string]any {
	return p.meta
}

// WithMeta returns a copy with meta merged in; existing keys are overwritten.
func (p Payload) WithMeta(meta map[string]any) Payload {
	merged := make(map[string]any, len(p.meta)+len(meta))
	for k, v := range p.meta {
		merged[k] = v
	}

	for k, v := range meta {
		merged[k] = v
	}

	p.meta = merged

	return p
}

/***** Result *****/

// Result is the outcome of every command and query: a Payload on success, an ErrorList on failure.
type Result struct {
	success bool
	payload Payload
	errors  ErrorList
}

func Ok(payload Payload) Result {
	return Result{success: true, payload: payload}
}

// Failed builds a failed result. Without arguments the error list is empty, never nil.
func Failed(errs ...Error) Result {
	return Result{success: false, errors: NewErrorList(errs...)}
}

func FailedWith(list ErrorList) Result {
	return Result{success: false, errors: list}
}

// FailedFromError converts a *FailureError into a failed Result. ok is false for any other error.
func FailedFromError(err error) (Result, bool) {
	var failure *FailureError
	if errors.As(err, &failure) {
		return FailedWith(failure.Errors), true
	}

	return Result{}, false
}

func (r Result) DidSucceed() bool {
	return r.success
}

func (r Result) DidFail() bool {
	return !r.success
}

// Payload returns the payload of a successful result. Calling it on a failed result is a programming error.
func (r Result) Payload() Payload {
	if !r.success {
		panic("jsonapi: payload accessed on a failed result")
	}

	return r.payload
}

// Errors returns the errors of a failed result, or an empty list on success.
func (r Result) Errors() ErrorList {
	if r.success {
		return NewErrorList()
	}

	return r.errors
}

// WithMeta merges meta into the payload of a successful result. Failed results are returned unchanged.
func (r Result) WithMeta(meta map[string]any) Result {
	if !r.success {
		return r
	}

	r.payload = r.payload.WithMeta(meta)

	return r
}

// WithErrors returns a failed result with its errors replaced. Successful results are returned unchanged.
func (r Result) WithErrors(list ErrorList) Result {
	if r.success {
		return r
	}

	r.errors = list

	return r
}
