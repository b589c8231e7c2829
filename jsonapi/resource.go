package jsonapi

import (
	"strings"
)

// ResourceIdentifier is a resource identifier object: type and exactly one of id or lid.
type ResourceIdentifier struct {
	Type ResourceType
	ID   string
	LID  string
	Meta map[string]any
}

// Validate checks the structural rules of an identifier.
func (ri ResourceIdentifier) Validate() error {
	if ri.Type.IsZero() {
		return ErrEmptyResourceType
	}

	if (ri.ID == "") == (ri.LID == "") {
		return ErrRefNeedsIDXorLID
	}

	if ri.ID != "" && !isValidIdentifierString(ri.ID) {
		return ErrEmptyResourceID
	}

	if ri.LID != "" && strings.TrimSpace(ri.LID) == "" {
		return ErrRefNeedsIDXorLID
	}

	return nil
}

func (ri ResourceIdentifier) HasLID() bool {
	return ri.ID == "" && ri.LID != ""
}

// ResourceID returns the id of the identifier, if it has one.
func (ri ResourceIdentifier) ResourceID() (ResourceID, bool) {
	if ri.ID == "" {
		return ResourceID{}, false
	}

	id, err := NewResourceID(ri.ID)

	return id, err == nil
}

// WithResolvedID returns a copy with the id set and the lid cleared.
func (ri ResourceIdentifier) WithResolvedID(id ResourceID) ResourceIdentifier {
	ri.ID = id.String()
	ri.LID = ""

	return ri
}

// RelationshipData is the "data" member of a relationship: either ToOne or ToMany.
type RelationshipData interface {
	isRelationshipData()
	Identifiers() []ResourceIdentifier
}

// ToOne is to-one relationship data. A nil Identifier clears the relationship.
type ToOne struct {
	Identifier *ResourceIdentifier
}

func (ToOne) isRelationshipData() {}

func (t ToOne) Identifiers() []ResourceIdentifier {
	if t.Identifier == nil {
		return nil
	}

	return []ResourceIdentifier{*t.Identifier}
}

// ToMany is to-many relationship data.
type ToMany struct {
	List []ResourceIdentifier
}

func (ToMany) isRelationshipData() {}

func (t ToMany) Identifiers() []ResourceIdentifier {
	return t.List
}

// RelationshipObject is a relationship member of a resource object.
type RelationshipObject struct {
	Data RelationshipData
	Meta map[string]any
}

// ResourceObject is the "data" member of a create or update operation.
type ResourceObject struct {
	Type          ResourceType
	ID            string
	LID           string
	Attributes    map[string]any
	Relationships map[string]RelationshipObject
	Meta          map[string]any
}

// HasLID reports whether the resource object introduces a local id.
func (ro ResourceObject) HasLID() bool {
	return ro.LID != ""
}

// IsRelationship reports whether field is one of the supplied relationships.
func (ro ResourceObject) IsRelationship(field string) bool {
	_, ok := ro.Relationships[field]
	return ok
}

// IsAttribute reports whether field is one of the supplied attributes.
func (ro ResourceObject) IsAttribute(field string) bool {
	_, ok := ro.Attributes[field]
	return ok
}

// Normalize converts the resource object into the validated-data shape:
// attributes merged with relationship data (ToOne / ToMany values) and "id" for client-generated ids.
func (ro ResourceObject) Normalize() map[string]any {
	normalized := make(map[string]any, len(ro.Attributes)+len(ro.Relationships)+1)

	for field, value := range ro.Attributes {
		normalized[field] = value
	}

	for field, relationship := range ro.Relationships {
		if relationship.Data != nil {
			normalized[field] = relationship.Data
		}
	}

	if ro.ID != "" {
		normalized["id"] = ro.ID
	}

	return normalized
}

// withRelationshipData returns a copy of ro with the relationship data of field replaced.
func (ro ResourceObject) withRelationshipData(field string, data RelationshipData) ResourceObject {
	relationships := make(map[string]RelationshipObject, len(ro.Relationships))
	for name, rel := range ro.Relationships {
		relationships[name] = rel
	}

	rel := relationships[field]
	rel.Data = data
	relationships[field] = rel
	ro.Relationships = relationships

	return ro
}

// MapRelationshipIdentifiers returns a copy of ro with fn applied to every relationship identifier.
func (ro ResourceObject) MapRelationshipIdentifiers(fn func(ResourceIdentifier) ResourceIdentifier) ResourceObject {
	result := ro

	for field, rel := range ro.Relationships {
		switch data := rel.Data.(type) {
		case ToOne:
			if data.Identifier != nil {
				mapped := fn(*data.Identifier)
				result = result.withRelationshipData(field, ToOne{Identifier: &mapped})
			}
		case ToMany:
			result = result.withRelationshipData(field, ToMany{List: MapIdentifiers(data.List, fn)})
		}
	}

	return result
}

// MapIdentifiers applies fn to a copy of list.
func MapIdentifiers(list []ResourceIdentifier, fn func(ResourceIdentifier) ResourceIdentifier) []ResourceIdentifier {
	if list == nil {
		return nil
	}

	mapped := make([]ResourceIdentifier, len(list))
	for i, identifier := range list {
		mapped[i] = fn(identifier)
	}

	return mapped
}
