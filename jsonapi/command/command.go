package command

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/AntonStoeckl/jsonapi-operations-go/jsonapi"
)

// Command types, as returned by Command.CommandType and used as metric and log labels.
const (
	KindStore              = "Store"
	KindUpdate             = "Update"
	KindDestroy            = "Destroy"
	KindUpdateRelationship = "UpdateRelationship"
	KindAttachRelationship = "AttachRelationship"
	KindDetachRelationship = "DetachRelationship"
)

// Kinds lists all command types.
var Kinds = []string{
	KindStore,
	KindUpdate,
	KindDestroy,
	KindUpdateRelationship,
	KindAttachRelationship,
	KindDetachRelationship,
}

var ErrModelAlreadySet = errors.New("command already has a model")
var ErrNoModel = errors.New("command has no model")
var ErrNotValidated = errors.New("command has no validated data")
var ErrModelNotFound = errors.New("model not found")
var ErrUnresolvedLocalID = errors.New("operation references an unresolved local id")
var ErrUnsupportedOperation = errors.New("operation cannot be wrapped in this command")

// Command is a mutation request flowing through the dispatch pipeline.
//
// Commands are immutable: the package-level mutators (WithModel, WithValidated, SkipAuthorization, ...)
// return modified copies and leave the original untouched. The set of commands is closed, it consists of
// Store, Update, Destroy, UpdateRelationship, AttachRelationship and DetachRelationship.
type Command interface {
	CommandType() string
	Type() jsonapi.ResourceType
	Operation() jsonapi.Operation
	// Request may be nil, e.g. for commands built outside an HTTP request.
	Request() *http.Request
	MustAuthorize() bool
	MustValidate() bool
	IsValidated() bool
	// Validated returns the validated data. Calling it before validation is a programming error.
	Validated() map[string]any
	// ValidatedOrNormalized returns the validated data, or the normalized operation data before validation.
	ValidatedOrNormalized() map[string]any
	HasModel() bool
	// Model forces the attached model, if any. It returns nil without a model.
	Model(ctx context.Context) (jsonapi.Model, error)
	// ModelOrFail forces the attached model. Calling it without a model is a programming error.
	ModelOrFail(ctx context.Context) (jsonapi.Model, error)
	// Hooks returns the attached domain hooks, nil without hooks.
	Hooks() *jsonapi.Hooks

	state() base
	withState(s base) Command
}

// Identifiable is implemented by commands targeting an existing resource.
type Identifiable interface {
	Command
	ID() jsonapi.ResourceID
}

// Relational is implemented by commands modifying a relationship.
type Relational interface {
	Identifiable
	FieldName() string
}

type base struct {
	request      *http.Request
	operation    jsonapi.Operation
	skipAuth     bool
	skipValidate bool
	validated    map[string]any
	hasValidated bool
	model        *jsonapi.Lazy[jsonapi.Model]
	hooks        *jsonapi.Hooks
}

func newBase(req *http.Request, op jsonapi.Operation) base {
	return base{request: req, operation: op}
}

func (b base) state() base {
	return b
}

func (b base) Type() jsonapi.ResourceType {
	return b.operation.ResourceType()
}

func (b base) Operation() jsonapi.Operation {
	return b.operation
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

func (b base) Validated() map[string]any {
	if !b.hasValidated {
		panic(ErrNotValidated)
	}

	return b.validated
}

func (b base) ValidatedOrNormalized() map[string]any {
	if b.hasValidated {
		return b.validated
	}

	return b.operation.Normalized()
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

// WithModel returns a copy of cmd with an already resolved model attached.
// A command never silently replaces its target, so attaching a second model panics.
func WithModel[C Command](cmd C, model jsonapi.Model) C {
	return WithLazyModel(cmd, jsonapi.Resolved(model))
}

// WithLazyModel returns a copy of cmd with a deferred model lookup attached.
func WithLazyModel[C Command](cmd C, model *jsonapi.Lazy[jsonapi.Model]) C {
	s := cmd.state()
	if s.model != nil {
		panic(ErrModelAlreadySet)
	}

	s.model = model

	return cmd.withState(s).(C)
}

// WithValidated returns a copy of cmd carrying validated data.
func WithValidated[C Command](cmd C, validated map[string]any) C {
	s := cmd.state()
	if validated == nil {
		validated = map[string]any{}
	}

	s.validated = validated
	s.hasValidated = true

	return cmd.withState(s).(C)
}

// SkipAuthorization returns a copy of cmd that bypasses the authorization capability.
func SkipAuthorization[C Command](cmd C) C {
	s := cmd.state()
	s.skipAuth = true

	return cmd.withState(s).(C)
}

// SkipValidation returns a copy of cmd that bypasses the validation capability.
// The operation data is still normalized into the validated-data shape.
func SkipValidation[C Command](cmd C) C {
	s := cmd.state()
	s.skipValidate = true

	return cmd.withState(s).(C)
}

// WithHooks returns a copy of cmd with domain hooks attached.
func WithHooks[C Command](cmd C, hooks jsonapi.Hooks) C {
	s := cmd.state()
	s.hooks = &hooks

	return cmd.withState(s).(C)
}

// WithRequest returns a copy of cmd bound to req.
func WithRequest[C Command](cmd C, req *http.Request) C {
	s := cmd.state()
	s.request = req

	return cmd.withState(s).(C)
}

/***** construction *****/

// FromOperation wraps op in the command matching its kind.
func FromOperation(req *http.Request, op jsonapi.Operation) (Command, error) {
	switch typed := op.(type) {
	case jsonapi.Create:
		return NewStore(req, typed)
	case jsonapi.Update:
		return NewUpdate(req, typed)
	case jsonapi.Delete:
		return NewDestroy(req, typed)
	case jsonapi.UpdateToOne:
		return NewUpdateRelationship(req, typed)
	case jsonapi.UpdateToMany:
		switch {
		case typed.IsAttachingRelationship():
			return NewAttachRelationship(req, typed)
		case typed.IsDetachingRelationship():
			return NewDetachRelationship(req, typed)
		default:
			return NewUpdateRelationship(req, typed)
		}
	default:
		panic(fmt.Sprintf("command: unknown operation %T", op))
	}
}

func ensureResolved(op jsonapi.Operation) error {
	if lids := jsonapi.ReferencedLocalIDs(op); len(lids) > 0 {
		return errors.Join(ErrUnresolvedLocalID, fmt.Errorf("lid %q", lids[0]))
	}

	return nil
}

func targetID(op jsonapi.Operation) (jsonapi.ResourceID, error) {
	ref, ok := op.Ref()
	if !ok {
		return jsonapi.ResourceID{}, errors.Join(ErrUnsupportedOperation, jsonapi.ErrRefNeedsIDXorLID)
	}

	id, ok := ref.ID()
	if !ok {
		lid, _ := ref.LID()
		return jsonapi.ResourceID{}, errors.Join(ErrUnresolvedLocalID, fmt.Errorf("lid %q", lid))
	}

	return id, nil
}
