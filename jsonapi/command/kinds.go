package command

import (
	"errors"
	"net/http"

	"github.com/AntonStoeckl/jsonapi-operations-go/jsonapi"
)

/***** Store *****/

// Store creates a resource.
type Store struct {
	base
}

func NewStore(req *http.Request, op jsonapi.Create) (Store, error) {
	if err := ensureResolved(op); err != nil {
		return Store{}, err
	}

	return Store{base: newBase(req, op)}, nil
}

func (c Store) CommandType() string {
	return KindStore
}

// Create returns the wrapped operation.
func (c Store) Create() jsonapi.Create {
	return c.operation.(jsonapi.Create)
}

func (c Store) withState(s base) Command {
	c.base = s
	return c
}

/***** Update *****/

// Update changes an existing resource.
type Update struct {
	base
	id jsonapi.ResourceID
}

func NewUpdate(req *http.Request, op jsonapi.Update) (Update, error) {
	if err := ensureResolved(op); err != nil {
		return Update{}, err
	}

	id, err := targetID(op)
	if err != nil {
		return Update{}, err
	}

	return Update{base: newBase(req, op), id: id}, nil
}

func (c Update) CommandType() string {
	return KindUpdate
}

func (c Update) ID() jsonapi.ResourceID {
	return c.id
}

func (c Update) UpdateOperation() jsonapi.Update {
	return c.operation.(jsonapi.Update)
}

func (c Update) withState(s base) Command {
	c.base = s
	return c
}

/***** Destroy *****/

// Destroy deletes an existing resource.
type Destroy struct {
	base
	id jsonapi.ResourceID
}

func NewDestroy(req *http.Request, op jsonapi.Delete) (Destroy, error) {
	if err := ensureResolved(op); err != nil {
		return Destroy{}, err
	}

	id, err := targetID(op)
	if err != nil {
		return Destroy{}, err
	}

	return Destroy{base: newBase(req, op), id: id}, nil
}

func (c Destroy) CommandType() string {
	return KindDestroy
}

func (c Destroy) ID() jsonapi.ResourceID {
	return c.id
}

func (c Destroy) Delete() jsonapi.Delete {
	return c.operation.(jsonapi.Delete)
}

func (c Destroy) withState(s base) Command {
	c.base = s
	return c
}

/***** relationship commands *****/

type relationshipBase struct {
	base
	id    jsonapi.ResourceID
	field string
}

func newRelationshipBase(req *http.Request, op jsonapi.Operation) (relationshipBase, error) {
	if err := ensureResolved(op); err != nil {
		return relationshipBase{}, err
	}

	id, err := targetID(op)
	if err != nil {
		return relationshipBase{}, err
	}

	field, ok := op.FieldName()
	if !ok {
		return relationshipBase{}, errors.Join(ErrUnsupportedOperation, jsonapi.ErrEmptyRelationshipName)
	}

	return relationshipBase{base: newBase(req, op), id: id, field: field}, nil
}

func (c relationshipBase) ID() jsonapi.ResourceID {
	return c.id
}

func (c relationshipBase) FieldName() string {
	return c.field
}

// UpdateRelationship replaces a to-one or a whole to-many relationship.
type UpdateRelationship struct {
	relationshipBase
}

// NewUpdateRelationship accepts an UpdateToOne, or an UpdateToMany with op code "update".
func NewUpdateRelationship(req *http.Request, op jsonapi.Operation) (UpdateRelationship, error) {
	switch typed := op.(type) {
	case jsonapi.UpdateToOne:
	case jsonapi.UpdateToMany:
		if !typed.IsUpdatingRelationship() {
			return UpdateRelationship{}, ErrUnsupportedOperation
		}
	default:
		return UpdateRelationship{}, ErrUnsupportedOperation
	}

	rb, err := newRelationshipBase(req, op)
	if err != nil {
		return UpdateRelationship{}, err
	}

	return UpdateRelationship{relationshipBase: rb}, nil
}

func (c UpdateRelationship) CommandType() string {
	return KindUpdateRelationship
}

func (c UpdateRelationship) withState(s base) Command {
	c.base = s
	return c
}

// AttachRelationship adds members to a to-many relationship.
type AttachRelationship struct {
	relationshipBase
}

func NewAttachRelationship(req *http.Request, op jsonapi.UpdateToMany) (AttachRelationship, error) {
	if !op.IsAttachingRelationship() {
		return AttachRelationship{}, ErrUnsupportedOperation
	}

	rb, err := newRelationshipBase(req, op)
	if err != nil {
		return AttachRelationship{}, err
	}

	return AttachRelationship{relationshipBase: rb}, nil
}

func (c AttachRelationship) CommandType() string {
	return KindAttachRelationship
}

func (c AttachRelationship) withState(s base) Command {
	c.base = s
	return c
}

// DetachRelationship removes members from a to-many relationship.
type DetachRelationship struct {
	relationshipBase
}

func NewDetachRelationship(req *http.Request, op jsonapi.UpdateToMany) (DetachRelationship, error) {
	if !op.IsDetachingRelationship() {
		return DetachRelationship{}, ErrUnsupportedOperation
	}

	rb, err := newRelationshipBase(req, op)
	if err != nil {
		return DetachRelationship{}, err
	}

	return DetachRelationship{relationshipBase: rb}, nil
}

func (c DetachRelationship) CommandType() string {
	return KindDetachRelationship
}

func (c DetachRelationship) withState(s base) Command {
	c.base = s
	return c
}
