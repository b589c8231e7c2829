package jsonapi

import (
	"errors"
	"strings"
)

var ErrInvalidQueryInput = errors.New("query input is not valid")

// QueryInput is a read request: QueryMany, QueryOne, QueryRelated or QueryRelationship.
type QueryInput interface {
	ResourceType() ResourceType
	// Parameters are the raw URL query parameters, e.g. "include", "fields[posts]", "page[number]".
	Parameters() map[string]string
	IsMany() bool
	IsOne() bool
	IsRelated() bool
	IsRelationship() bool

	isQueryInput()
}

type baseQueryInput struct {
	resourceType ResourceType
	parameters   map[string]string
}

func (q baseQueryInput) ResourceType() ResourceType {
	return q.resourceType
}

func (q baseQueryInput) Parameters() map[string]string {
	return q.parameters
}

func (q baseQueryInput) IsMany() bool         { return false }
func (q baseQueryInput) IsOne() bool          { return false }
func (q baseQueryInput) IsRelated() bool      { return false }
func (q baseQueryInput) IsRelationship() bool { return false }

func (q baseQueryInput) isQueryInput() {}

func newBaseQueryInput(resourceType ResourceType, parameters map[string]string) (baseQueryInput, error) {
	if resourceType.IsZero() {
		return baseQueryInput{}, errors.Join(ErrInvalidQueryInput, ErrEmptyResourceType)
	}

	if parameters == nil {
		parameters = map[string]string{}
	}

	return baseQueryInput{resourceType: resourceType, parameters: parameters}, nil
}

// QueryMany fetches a resource collection, e.g. GET /posts.
type QueryMany struct {
	baseQueryInput
}

func NewQueryMany(resourceType ResourceType, parameters map[string]string) (QueryMany, error) {
	base, err := newBaseQueryInput(resourceType, parameters)
	if err != nil {
		return QueryMany{}, err
	}

	return QueryMany{baseQueryInput: base}, nil
}

func (q QueryMany) IsMany() bool { return true }

// QueryOne fetches a single resource, e.g. GET /posts/1.
type QueryOne struct {
	baseQueryInput
	id ResourceID
}

func NewQueryOne(resourceType ResourceType, id ResourceID, parameters map[string]string) (QueryOne, error) {
	base, err := newBaseQueryInput(resourceType, parameters)
	if err != nil {
		return QueryOne{}, err
	}

	if id.IsZero() {
		return QueryOne{}, errors.Join(ErrInvalidQueryInput, ErrEmptyResourceID)
	}

	return QueryOne{baseQueryInput: base, id: id}, nil
}

func (q QueryOne) ID() ResourceID { return q.id }
func (q QueryOne) IsOne() bool    { return true }

// QueryRelated fetches the related resource(s) of a relationship, e.g. GET /posts/1/comments.
type QueryRelated struct {
	baseQueryInput
	id    ResourceID
	field string
}

func NewQueryRelated(resourceType ResourceType, id ResourceID, field string, parameters map[string]string) (QueryRelated, error) {
	base, err := newBaseQueryInput(resourceType, parameters)
	if err != nil {
		return QueryRelated{}, err
	}

	if id.IsZero() {
		return QueryRelated{}, errors.Join(ErrInvalidQueryInput, ErrEmptyResourceID)
	}

	if strings.TrimSpace(field) == "" {
		return QueryRelated{}, errors.Join(ErrInvalidQueryInput, ErrEmptyRelationshipName)
	}

	return QueryRelated{baseQueryInput: base, id: id, field: field}, nil
}

func (q QueryRelated) ID() ResourceID    { return q.id }
func (q QueryRelated) FieldName() string { return q.field }
func (q QueryRelated) IsRelated() bool   { return true }

// QueryRelationship fetches the linkage of a relationship, e.g. GET /posts/1/relationships/comments.
type QueryRelationship struct {
	baseQueryInput
	id    ResourceID
	field string
}

func NewQueryRelationship(resourceType ResourceType, id ResourceID, field string, parameters map[string]string) (QueryRelationship, error) {
	base, err := newBaseQueryInput(resourceType, parameters)
	if err != nil {
		return QueryRelationship{}, err
	}

	if id.IsZero() {
		return QueryRelationship{}, errors.Join(ErrInvalidQueryInput, ErrEmptyResourceID)
	}

	if strings.TrimSpace(field) == "" {
		return QueryRelationship{}, errors.Join(ErrInvalidQueryInput, ErrEmptyRelationshipName)
	}

	return QueryRelationship{baseQueryInput: base, id: id, field: field}, nil
}

func (q QueryRelationship) ID() ResourceID       { return q.id }
func (q QueryRelationship) FieldName() string    { return q.field }
func (q QueryRelationship) IsRelationship() bool { return true }
