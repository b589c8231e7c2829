package query

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/AntonStoeckl/jsonapi-operations-go/jsonapi"
)

// Query types, as returned by Query.QueryType and used as metric and log labels.
const (
	KindFetchMany         = "FetchMany"
	KindFetchOne          = "FetchOne"
	KindFetchRelated      = "FetchRelated"
	KindFetchRelationship = "FetchRelationship"
)

// Kinds lists all query types.
var Kinds = []string{
	KindFetchMany,
	KindFetchOne,
	KindFetchRelated,
	KindFetchRelationship,
}

var ErrModelAlreadySet = errors.New("query already has a model")
var ErrNoModel = errors.New("query has no model")
var ErrNotValidated = errors.New("query has no validated parameters")
var ErrModelNotFound = errors.New("model not found")

// Query is a read request flowing through the dispatch pipeline.
// Like commands, queries are immutable and the package-level mutators return modified copies.
type Query interface {
	QueryType() string
	Type() jsonapi.ResourceType
	Input() jsonapi.QueryInput
	Request() *http.Request
	MustAuthorize() bool
	MustValidate() bool
	IsValidated() bool
	// Validated returns the validated query parameters. Calling it before validation is a programming error.
	Validated() jsonapi.QueryParameters
	// ValidatedOrNormalized returns the validated data, or the normalized raw parameters before validation.
	ValidatedOrNormalized() map[string]any
	HasModel() bool
	Model(ctx context.Context) (jsonapi.Model, error)
	ModelOrFail(ctx context.Context) (jsonapi.Model, error)
	Hooks() *jsonapi.Hooks

	state() base
	withState(s base) Query
}

// Identifiable is implemented by queries reading one resource or its relationships.
type Identifiable interface {
	Query
	ID() jsonapi.ResourceID
}

// Relational is implemented by queries reading a relationship.
type Relational interface {
	Identifiable
	FieldName() string
}

type base struct {
	request      *http.Request
	input        jsonapi.QueryInput
	skipAuth     bool
	skipValidate bool
	validated    map[string]any
	parameters   jsonapi.QueryParameters
	hasValidated bool
	model        *jsonapi.Lazy[jsonapi.Model]
	hooks        *jsonapi.Hooks
}

func (b base) state() base {
	return b
}

func (b base) Type() jsonapi.ResourceType {
	return b.input.ResourceType()
}

func (b base) Input() jsonapi.QueryInput {
	return b.input
}

func (b base) Request() *http.Request {
	return b.request
}

func (b base) MustAuthorize() bool {
	return !b.skipAuth
}

func (b base) MustValidate() bool {
	return !b.skipValidate
}

func (b base) IsValidated() bool {
	return b.hasValidated
}

func (b base) Validated() jsonapi.QueryParameters {
	if !b.hasValidated {
		panic(ErrNotValidated)
	}

	return b.parameters
}

func (b base) ValidatedOrNormalized() map[string]any {
	if b.hasValidated {
		return b.validated
	}

	return jsonapi.NormalizeQueryParameters(b.input.Parameters())
}

func (b base) HasModel() bool {
	return b.model != nil
}

func (b base) Model(ctx context.Context) (jsonapi.Model, error) {
	if b.model == nil {
		return nil, nil
	}

	return b.model.Get(ctx)
}

func (b base) ModelOrFail(ctx context.Context) (jsonapi.Model, error) {
	if b.model == nil {
		panic(ErrNoModel)
	}

	return b.model.Get(ctx)
}

func (b base) Hooks() *jsonapi.Hooks {
	return b.hooks
}

/***** copy-on-write mutators *****/

// WithModel returns a copy of q with an already resolved model attached. Attaching a second model panics.
func WithModel[Q Query](q Q, model jsonapi.Model) Q {
	return WithLazyModel(q, jsonapi.Resolved(model))
}

// WithLazyModel returns a copy of q with a deferred model lookup attached.
func WithLazyModel[Q Query](q Q, model *jsonapi.Lazy[jsonapi.Model]) Q {
	s := q.state()
	if s.model != nil {
		panic(ErrModelAlreadySet)
	}

	s.model = model

	return q.withState(s).(Q)
}

// WithValidated returns a copy of q carrying validated query data, parsed into QueryParameters.
func WithValidated[Q Query](q Q, validated map[string]any) Q {
	s := q.state()
	if validated == nil {
		validated = map[string]any{}
	}

	s.validated = validated
	s.parameters = jsonapi.ParseQueryParameters(validated)
	s.hasValidated = true

	return q.withState(s).(Q)
}

func SkipAuthorization[Q Query](q Q) Q {
	s := q.state()
	s.skipAuth = true

	return q.withState(s).(Q)
}

// SkipValidation returns a copy of q that bypasses the validation capability.
// The raw parameters are still normalized and parsed.
func SkipValidation[Q Query](q Q) Q {
	s := q.state()
	s.skipValidate = true

	return q.withState(s).(Q)
}

func WithHooks[Q Query](q Q, hooks jsonapi.Hooks) Q {
	s := q.state()
	s.hooks = &hooks

	return q.withState(s).(Q)
}

func WithRequest[Q Query](q Q, req *http.Request) Q {
	s := q.state()
	s.request = req

	return q.withState(s).(Q)
}

/***** kinds *****/

// FetchMany reads a resource collection.
type FetchMany struct {
	base
}

func NewFetchMany(req *http.Request, input jsonapi.QueryMany) FetchMany {
	return FetchMany{base: base{request: req, input: input}}
}

func (q FetchMany) QueryType() string {
	return KindFetchMany
}

func (q FetchMany) withState(s base) Query {
	q.base = s
	return q
}

// FetchOne reads a single resource.
type FetchOne struct {
	base
	id jsonapi.ResourceID
}

func NewFetchOne(req *http.Request, input jsonapi.QueryOne) FetchOne {
	return FetchOne{base: base{request: req, input: input}, id: input.ID()}
}

func (q FetchOne) QueryType() string {
	return KindFetchOne
}

func (q FetchOne) ID() jsonapi.ResourceID {
	return q.id
}

func (q FetchOne) withState(s base) Query {
	q.base = s
	return q
}

type relationshipBase struct {
	base
	id    jsonapi.ResourceID
	field string
}

func (q relationshipBase) ID() jsonapi.ResourceID {
	return q.id
}

func (q relationshipBase) FieldName() string {
	return q.field
}

// FetchRelated reads the resources a relationship points to, e.g. GET /posts/1/author.
type FetchRelated struct {
	relationshipBase
}

func NewFetchRelated(req *http.Request, input jsonapi.QueryRelated) FetchRelated {
	return FetchRelated{relationshipBase: relationshipBase{
		base:  base{request: req, input: input},
		id:    input.ID(),
		field: input.FieldName(),
	}}
}

func (q FetchRelated) QueryType() string {
	return KindFetchRelated
}

func (q FetchRelated) withState(s base) Query {
	q.base = s
	return q
}

// FetchRelationship reads the linkage of a relationship, e.g. GET /posts/1/relationships/author.
type FetchRelationship struct {
	relationshipBase
}

func NewFetchRelationship(req *http.Request, input jsonapi.QueryRelationship) FetchRelationship {
	return FetchRelationship{relationshipBase: relationshipBase{
		base:  base{request: req, input: input},
		id:    input.ID(),
		field: input.FieldName(),
	}}
}

func (q FetchRelationship) QueryType() string {
	return KindFetchRelationship
}

func (q FetchRelationship) withState(s base) Query {
	q.base = s
	return q
}

// FromInput wraps input in the query matching its kind.
func FromInput(req *http.Request, input jsonapi.QueryInput) Query {
	switch typed := input.(type) {
	case jsonapi.QueryMany:
		return NewFetchMany(req, typed)
	case jsonapi.QueryOne:
		return NewFetchOne(req, typed)
	case jsonapi.QueryRelated:
		return NewFetchRelated(req, typed)
	case jsonapi.QueryRelationship:
		return NewFetchRelationship(req, typed)
	default:
		panic(fmt.Sprintf("query: unknown query input %T", input))
	}
}
