package jsonapi

import (
	"context"
	"net/http"
)

// ToManyMode selects how ModifyToMany applies the identifiers.
type ToManyMode string

const (
	ToManyAttach ToManyMode = "attach"
	ToManyDetach ToManyMode = "detach"
	ToManySync   ToManyMode = "sync"
)

// RelationshipKind tells to-one and to-many relationships apart.
type RelationshipKind string

const (
	RelationshipToOne  RelationshipKind = "to-one"
	RelationshipToMany RelationshipKind = "to-many"
)

/***** Store *****/

// Store is the persistence capability. Every method receives validated data only;
// identifiers handed to it never carry an unresolved lid.
//
// Errors returned from a Store are infrastructure failures, a missing resource is reported
// with found == false instead.
type Store interface {
	Find(ctx context.Context, resourceType ResourceType, id ResourceID) (model Model, found bool, err error)
	Create(ctx context.Context, resourceType ResourceType, validated map[string]any) (Model, error)
	Update(ctx context.Context, resourceType ResourceType, model Model, validated map[string]any) (Model, error)
	Delete(ctx context.Context, resourceType ResourceType, model Model) error
	// ModifyToOne replaces a to-one relationship and returns the related model, nil when cleared.
	ModifyToOne(ctx context.Context, resourceType ResourceType, model Model, field string, identifier *ResourceIdentifier) (any, error)
	// ModifyToMany attaches, detaches or syncs a to-many relationship and returns the related models.
	ModifyToMany(ctx context.Context, resourceType ResourceType, model Model, field string, mode ToManyMode, identifiers []ResourceIdentifier) (any, error)
	QueryAll(ctx context.Context, resourceType ResourceType, params QueryParameters) (any, error)
	QueryOne(ctx context.Context, resourceType ResourceType, id ResourceID, params QueryParameters) (model Model, found bool, err error)
	QueryToOne(ctx context.Context, resourceType ResourceType, model Model, field string, params QueryParameters) (any, error)
	QueryToMany(ctx context.Context, resourceType ResourceType, model Model, field string, params QueryParameters) (any, error)
	// ResourceIDOf returns the id of a model created by this store, used to record local ids.
	ResourceIDOf(resourceType ResourceType, model Model) (ResourceID, error)
}

// Schema answers which kind a relationship has. Unknown relationships report ok == false.
type Schema interface {
	RelationshipKind(resourceType ResourceType, field string) (kind RelationshipKind, ok bool)
}

// SchemaMap is a static Schema, e.g. {"posts": {"author": RelationshipToOne, "tags": RelationshipToMany}}.
type SchemaMap map[string]map[string]RelationshipKind

func (s SchemaMap) RelationshipKind(resourceType ResourceType, field string) (RelationshipKind, bool) {
	kind, ok := s[resourceType.String()][field]
	return kind, ok
}

/***** Authorization *****/

// AuthorizerFactory builds the Authorizer for a resource type.
type AuthorizerFactory interface {
	Make(resourceType ResourceType) Authorizer
}

// Authorizer evaluates authorization policies. A non-empty ErrorList denies the request,
// an error reports an infrastructure failure.
type Authorizer interface {
	Index(ctx context.Context, req *http.Request) (ErrorList, error)
	Store(ctx context.Context, req *http.Request) (ErrorList, error)
	Show(ctx context.Context, req *http.Request, model Model) (ErrorList, error)
	Update(ctx context.Context, req *http.Request, model Model) (ErrorList, error)
	Destroy(ctx context.Context, req *http.Request, model Model) (ErrorList, error)
	ShowRelated(ctx context.Context, req *http.Request, model Model, field string) (ErrorList, error)
	ShowRelationship(ctx context.Context, req *http.Request, model Model, field string) (ErrorList, error)
	UpdateRelationship(ctx context.Context, req *http.Request, model Model, field string) (ErrorList, error)
	AttachRelationship(ctx context.Context, req *http.Request, model Model, field string) (ErrorList, error)
	DetachRelationship(ctx context.Context, req *http.Request, model Model, field string) (ErrorList, error)
}

/***** Validation *****/

// FieldFailure is one failed validation rule. Field is the attribute or relationship name,
// empty for failures concerning the whole resource.
type FieldFailure struct {
	Field  string
	Detail string
	Code   string
}

// Validation is the outcome of a validator run.
type Validation struct {
	Validated map[string]any
	Failures  []FieldFailure
}

func (v Validation) Fails() bool {
	return len(v.Failures) > 0
}

// ValidatorFactory builds the Validators for a resource type.
type ValidatorFactory interface {
	ValidatorsFor(resourceType ResourceType) Validators
}

// Validators evaluates validation rules for operations and queries.
type Validators interface {
	Store(ctx context.Context, req *http.Request, op Create) (Validation, error)
	Update(ctx context.Context, req *http.Request, model Model, op Update) (Validation, error)
	Destroy(ctx context.Context, req *http.Request, model Model, op Delete) (Validation, error)
	Relation(ctx context.Context, req *http.Request, model Model, op Operation) (Validation, error)
	QueryOne(ctx context.Context, req *http.Request, query QueryInput) (Validation, error)
	QueryMany(ctx context.Context, req *http.Request, query QueryInput) (Validation, error)
}

// PassthroughValidators accepts everything and returns the normalized input as validated data.
// Embed it to implement only some of the Validators methods.
type PassthroughValidators struct{}

func (PassthroughValidators) Store(_ context.Context, _ *http.Request, op Create) (Validation, error) {
	return Validation{Validated: op.Normalized()}, nil
}

func (PassthroughValidators) Update(_ context.Context, _ *http.Request, _ Model, op Update) (Validation, error) {
	return Validation{Validated: op.Normalized()}, nil
}

func (PassthroughValidators) Destroy(_ context.Context, _ *http.Request, _ Model, op Delete) (Validation, error) {
	return Validation{Validated: op.Normalized()}, nil
}

func (PassthroughValidators) Relation(_ context.Context, _ *http.Request, _ Model, op Operation) (Validation, error) {
	return Validation{Validated: op.Normalized()}, nil
}

func (PassthroughValidators) QueryOne(_ context.Context, _ *http.Request, query QueryInput) (Validation, error) {
	return Validation{Validated: NormalizeQueryParameters(query.Parameters())}, nil
}

func (PassthroughValidators) QueryMany(_ context.Context, _ *http.Request, query QueryInput) (Validation, error) {
	return Validation{Validated: NormalizeQueryParameters(query.Parameters())}, nil
}

/***** Hooks *****/

// MutationHook is called around create, update and delete. model is nil for Creating.
type MutationHook func(ctx context.Context, req *http.Request, model Model, op Operation) error

// RelationshipHook is called around relationship modifications. related is nil for the "before" hooks.
type RelationshipHook func(ctx context.Context, req *http.Request, model Model, field string, related any, op Operation) error

// QueryHook is called around reads. model is nil for collection reads, data is nil for the "before" hooks.
type QueryHook func(ctx context.Context, req *http.Request, model Model, data any, query QueryInput) error

// Hooks are optional domain callbacks. A nil callback is skipped.
// A callback returning a *FailureError (see Abort) turns into a failed Result,
// any other error is returned as an infrastructure failure.
type Hooks struct {
	Saving   MutationHook
	Saved    MutationHook
	Creating MutationHook
	Created  MutationHook
	Updating MutationHook
	Updated  MutationHook
	Deleting MutationHook
	Deleted  MutationHook

	UpdatingRelationship  RelationshipHook
	UpdatedRelationship   RelationshipHook
	AttachingRelationship RelationshipHook
	AttachedRelationship  RelationshipHook
	DetachingRelationship RelationshipHook
	DetachedRelationship  RelationshipHook

	Searching           QueryHook
	Searched            QueryHook
	Reading             QueryHook
	Read                QueryHook
	ReadingRelated      QueryHook
	ReadRelated         QueryHook
	ReadingRelationship QueryHook
	ReadRelationship    QueryHook
}

// CallMutation calls hook when it is set.
func CallMutation(ctx context.Context, hook MutationHook, req *http.Request, model Model, op Operation) error {
	if hook == nil {
		return nil
	}

	return hook(ctx, req, model, op)
}

// CallRelationship calls hook when it is set.
func CallRelationship(ctx context.Context, hook RelationshipHook, req *http.Request, model Model, field string, related any, op Operation) error {
	if hook == nil {
		return nil
	}

	return hook(ctx, req, model, field, related, op)
}

// CallQuery calls hook when it is set.
func CallQuery(ctx context.Context, hook QueryHook, req *http.Request, model Model, data any, query QueryInput) error {
	if hook == nil {
		return nil
	}

	return hook(ctx, req, model, data, query)
}

/***** Transactions *****/

// Transactor runs fn inside one storage transaction. The transaction is committed when fn returns nil
// and rolled back otherwise. Stores pick up the transaction from the context passed to fn.
type Transactor interface {
	InTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}
