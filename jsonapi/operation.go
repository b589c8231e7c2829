package jsonapi

import (
	"errors"
	"maps"
	"slices"
)

// OpCode is the "op" member of an atomic operation.
type OpCode string

const (
	OpAdd    OpCode = "add"
	OpUpdate OpCode = "update"
	OpRemove OpCode = "remove"
)

// ParseOpCode converts the raw "op" member into an OpCode.
func ParseOpCode(s string) (OpCode, error) {
	switch OpCode(s) {
	case OpAdd, OpUpdate, OpRemove:
		return OpCode(s), nil
	default:
		return "", ErrInvalidOpCode
	}
}

/***** Target *****/

// Target is where an operation points: a Ref, an Href (possibly already parsed to a Ref), or nothing.
type Target struct {
	ref  *Ref
	href *Href
}

// NoTarget is the target of a plain create.
func NoTarget() Target {
	return Target{}
}

func TargetRef(ref Ref) Target {
	return Target{ref: &ref}
}

func TargetHref(href Href) Target {
	return Target{href: &href}
}

// TargetParsedHref keeps the href and the Ref it resolved to.
func TargetParsedHref(href Href, ref Ref) Target {
	return Target{ref: &ref, href: &href}
}

func (t Target) Ref() (Ref, bool) {
	if t.ref == nil {
		return Ref{}, false
	}

	return *t.ref, true
}

func (t Target) Href() (Href, bool) {
	if t.href == nil {
		return Href{}, false
	}

	return *t.href, true
}

func (t Target) IsZero() bool {
	return t.ref == nil && t.href == nil
}

func (t Target) withRef(ref Ref) Target {
	t.ref = &ref
	return t
}

func (t Target) relationship() (string, bool) {
	if t.ref == nil {
		return "", false
	}

	return t.ref.Relationship()
}

/***** Operation *****/

// Operation is one mutation: Create, Update, Delete, UpdateToOne or UpdateToMany.
type Operation interface {
	OpCode() OpCode
	Target() Target
	// Ref is the Ref identifying the target resource, if there is one.
	Ref() (Ref, bool)
	Href() (Href, bool)
	// FieldName is present iff the target Ref carries a relationship.
	FieldName() (string, bool)
	ResourceType() ResourceType
	Meta() map[string]any
	IsCreating() bool
	IsUpdating() bool
	IsDeleting() bool
	IsUpdatingRelationship() bool
	IsAttachingRelationship() bool
	IsDetachingRelationship() bool
	IsModifyingRelationship() bool
	// Normalized returns the operation data in the validated-data shape.
	Normalized() map[string]any

	isOperation()
}

type baseOperation struct {
	code   OpCode
	target Target
	meta   map[string]any
}

func (o baseOperation) OpCode() OpCode {
	return o.code
}

func (o baseOperation) Target() Target {
	return o.target
}

func (o baseOperation) Href() (Href, bool) {
	return o.target.Href()
}

func (o baseOperation) FieldName() (string, bool) {
	return o.target.relationship()
}

func (o baseOperation) Meta() map[string]any {
	return o.meta
}

func (o baseOperation) IsCreating() bool              { return false }
func (o baseOperation) IsUpdating() bool              { return false }
func (o baseOperation) IsDeleting() bool              { return false }
func (o baseOperation) IsUpdatingRelationship() bool  { return false }
func (o baseOperation) IsAttachingRelationship() bool { return false }
func (o baseOperation) IsDetachingRelationship() bool { return false }

func (o baseOperation) isOperation() {}

/***** Create *****/

// Create adds a new resource.
type Create struct {
	baseOperation
	data ResourceObject
}

// NewCreate builds a Create. The target is either absent, or points at a resource collection.
func NewCreate(target Target, data ResourceObject, meta map[string]any) (Create, error) {
	if data.Type.IsZero() {
		return Create{}, errors.Join(ErrInvalidOperation, ErrEmptyResourceType)
	}

	if _, ok := target.relationship(); ok {
		return Create{}, errors.Join(ErrInvalidOperation, errors.New("create must not target a relationship"))
	}

	return Create{
		baseOperation: baseOperation{code: OpAdd, target: target, meta: meta},
		data:          data,
	}, nil
}

func (o Create) Data() ResourceObject {
	return o.data
}

func (o Create) Ref() (Ref, bool) {
	return o.target.Ref()
}

func (o Create) ResourceType() ResourceType {
	return o.data.Type
}

func (o Create) IsCreating() bool              { return true }
func (o Create) IsModifyingRelationship() bool { return false }

func (o Create) Normalized() map[string]any {
	return o.data.Normalize()
}

// WithData returns a copy with the resource object replaced.
func (o Create) WithData(data ResourceObject) Create {
	o.data = data
	return o
}

/***** Update *****/

// Update changes attributes and/or relationships of an existing resource.
type Update struct {
	baseOperation
	data ResourceObject
}

// NewUpdate builds an Update. Without a target the resource is identified by data.id / data.lid.
func NewUpdate(target Target, data ResourceObject, meta map[string]any) (Update, error) {
	if data.Type.IsZero() {
		return Update{}, errors.Join(ErrInvalidOperation, ErrEmptyResourceType)
	}

	if _, ok := target.relationship(); ok {
		return Update{}, errors.Join(ErrInvalidOperation, errors.New("update must not target a relationship"))
	}

	op := Update{
		baseOperation: baseOperation{code: OpUpdate, target: target, meta: meta},
		data:          data,
	}

	if _, ok := op.Ref(); !ok {
		return Update{}, errors.Join(ErrInvalidOperation, ErrRefNeedsIDXorLID)
	}

	if ref, ok := target.Ref(); ok && !data.identifiedBy(ref) {
		return Update{}, errors.Join(ErrInvalidOperation, ErrDataDoesNotMatchTarget)
	}

	return op, nil
}

// identifiedBy reports whether the id / lid of the resource object, where given, name the resource ref points at.
func (o ResourceObject) identifiedBy(ref Ref) bool {
	if id, ok := ref.ID(); ok {
		return o.LID == "" && (o.ID == "" || o.ID == id.String())
	}

	lid, _ := ref.LID()

	return o.ID == "" && (o.LID == "" || o.LID == lid)
}

func (o Update) Data() ResourceObject {
	return o.data
}

// Ref returns the target ref, or the ref derived from the resource object.
func (o Update) Ref() (Ref, bool) {
	if ref, ok := o.target.Ref(); ok {
		return ref, true
	}

	ref, err := NewRefFromParts(o.data.Type, o.data.ID, o.data.LID, "")
	if err != nil {
		return Ref{}, false
	}

	return ref, true
}

func (o Update) ResourceType() ResourceType {
	return o.data.Type
}

func (o Update) IsUpdating() bool              { return true }
func (o Update) IsModifyingRelationship() bool { return false }

func (o Update) Normalized() map[string]any {
	return o.data.Normalize()
}

func (o Update) WithData(data ResourceObject) Update {
	o.data = data
	return o
}

// WithRef returns a copy targeting ref.
func (o Update) WithRef(ref Ref) Update {
	o.target = o.target.withRef(ref)
	return o
}

/***** Delete *****/

// Delete removes an existing resource.
type Delete struct {
	baseOperation
}

func NewDelete(target Target, meta map[string]any) (Delete, error) {
	if _, ok := target.Ref(); !ok {
		return Delete{}, errors.Join(ErrInvalidOperation, ErrRefNeedsIDXorLID)
	}

	if _, ok := target.relationship(); ok {
		return Delete{}, errors.Join(ErrInvalidOperation, errors.New("delete must not target a relationship"))
	}

	return Delete{baseOperation: baseOperation{code: OpRemove, target: target, meta: meta}}, nil
}

func (o Delete) Ref() (Ref, bool) {
	return o.target.Ref()
}

func (o Delete) ResourceType() ResourceType {
	ref, _ := o.target.Ref()
	return ref.Type()
}

func (o Delete) IsDeleting() bool              { return true }
func (o Delete) IsModifyingRelationship() bool { return false }

func (o Delete) Normalized() map[string]any {
	return map[string]any{}
}

func (o Delete) WithRef(ref Ref) Delete {
	o.target = o.target.withRef(ref)
	return o
}

/***** UpdateToOne *****/

// UpdateToOne replaces a to-one relationship. A nil identifier clears it.
type UpdateToOne struct {
	baseOperation
	data *ResourceIdentifier
}

func NewUpdateToOne(target Target, data *ResourceIdentifier, meta map[string]any) (UpdateToOne, error) {
	if err := validateRelationshipTarget(target); err != nil {
		return UpdateToOne{}, err
	}

	if data != nil {
		if err := data.Validate(); err != nil {
			return UpdateToOne{}, errors.Join(ErrInvalidOperation, err)
		}
	}

	return UpdateToOne{
		baseOperation: baseOperation{code: OpUpdate, target: target, meta: meta},
		data:          data,
	}, nil
}

func (o UpdateToOne) Data() *ResourceIdentifier {
	return o.data
}

func (o UpdateToOne) Ref() (Ref, bool) {
	return o.target.Ref()
}

func (o UpdateToOne) ResourceType() ResourceType {
	ref, _ := o.target.Ref()
	return ref.Type()
}

func (o UpdateToOne) IsUpdatingRelationship() bool  { return true }
func (o UpdateToOne) IsModifyingRelationship() bool { return true }

func (o UpdateToOne) Normalized() map[string]any {
	field, _ := o.FieldName()

	return map[string]any{field: ToOne{Identifier: o.data}}
}

func (o UpdateToOne) WithRef(ref Ref) UpdateToOne {
	o.target = o.target.withRef(ref)
	return o
}

func (o UpdateToOne) WithData(data *ResourceIdentifier) UpdateToOne {
	o.data = data
	return o
}

/***** UpdateToMany *****/

// UpdateToMany modifies a to-many relationship: add attaches, remove detaches, update replaces.
type UpdateToMany struct {
	baseOperation
	data []ResourceIdentifier
}

func NewUpdateToMany(code OpCode, target Target, data []ResourceIdentifier, meta map[string]any) (UpdateToMany, error) {
	if _, err := ParseOpCode(string(code)); err != nil {
		return UpdateToMany{}, errors.Join(ErrInvalidOperation, err)
	}

	if err := validateRelationshipTarget(target); err != nil {
		return UpdateToMany{}, err
	}

	for _, identifier := range data {
		if err := identifier.Validate(); err != nil {
			return UpdateToMany{}, errors.Join(ErrInvalidOperation, err)
		}
	}

	if data == nil {
		data = []ResourceIdentifier{}
	}

	op := UpdateToMany{
		baseOperation: baseOperation{code: code, target: target, meta: meta},
		data:          data,
	}

	semantic := 0
	for _, is := range []bool{op.IsAttachingRelationship(), op.IsDetachingRelationship(), op.IsUpdatingRelationship()} {
		if is {
			semantic++
		}
	}

	if semantic != 1 {
		panic("jsonapi: to-many operation code does not map to exactly one relationship modification")
	}

	return op, nil
}

func (o UpdateToMany) Data() []ResourceIdentifier {
	return o.data
}

func (o UpdateToMany) Ref() (Ref, bool) {
	return o.target.Ref()
}

func (o UpdateToMany) ResourceType() ResourceType {
	ref, _ := o.target.Ref()
	return ref.Type()
}

func (o UpdateToMany) IsUpdatingRelationship() bool  { return o.code == OpUpdate }
func (o UpdateToMany) IsAttachingRelationship() bool { return o.code == OpAdd }
func (o UpdateToMany) IsDetachingRelationship() bool { return o.code == OpRemove }
func (o UpdateToMany) IsModifyingRelationship() bool { return true }

func (o UpdateToMany) Normalized() map[string]any {
	field, _ := o.FieldName()

	return map[string]any{field: ToMany{List: o.data}}
}

func (o UpdateToMany) WithRef(ref Ref) UpdateToMany {
	o.target = o.target.withRef(ref)
	return o
}

func (o UpdateToMany) WithData(data []ResourceIdentifier) UpdateToMany {
	o.data = data
	return o
}

func validateRelationshipTarget(target Target) error {
	if _, ok := target.Ref(); !ok {
		return errors.Join(ErrInvalidOperation, ErrRefNeedsIDXorLID)
	}

	if _, ok := target.relationship(); !ok {
		return errors.Join(ErrInvalidOperation, ErrEmptyRelationshipName)
	}

	return nil
}

// ReferencedLocalIDs lists the lids op refers to without duplicates: the target lid first,
// then the payload identifiers (relationships ordered by name). The lid a Create declares
// for its own resource is not a reference.
func ReferencedLocalIDs(op Operation) []string {
	seen := map[string]struct{}{}
	lids := make([]string, 0)

	add := func(lid string) {
		if lid == "" {
			return
		}

		if _, ok := seen[lid]; ok {
			return
		}

		seen[lid] = struct{}{}
		lids = append(lids, lid)
	}

	addIdentifiers := func(identifiers []ResourceIdentifier) {
		for _, identifier := range identifiers {
			if identifier.HasLID() {
				add(identifier.LID)
			}
		}
	}

	// relationships in name order, a map has none of its own
	addRelationships := func(data ResourceObject) {
		for _, field := range slices.Sorted(maps.Keys(data.Relationships)) {
			if relationship := data.Relationships[field]; relationship.Data != nil {
				addIdentifiers(relationship.Data.Identifiers())
			}
		}
	}

	if ref, ok := op.Ref(); ok {
		if lid, hasLID := ref.LID(); hasLID {
			add(lid)
		}
	}

	switch typed := op.(type) {
	case Create:
		addRelationships(typed.Data())
	case Update:
		addRelationships(typed.Data())
	case UpdateToOne:
		if typed.Data() != nil {
			addIdentifiers([]ResourceIdentifier{*typed.Data()})
		}
	case UpdateToMany:
		addIdentifiers(typed.Data())
	}

	return lids
}
