package jsonapi

import (
	"strings"
)

// ResourceType is the "type" member of a resource object, e.g. "posts".
//
// It should only be constructed with NewResourceType or MustResourceType.
type ResourceType struct {
	value string
}

// NewResourceType validates s and wraps it.
// The value is valid when it is non-empty after trimming, or the literal "0".
func NewResourceType(s string) (ResourceType, error) {
	if !isValidIdentifierString(s) {
		return ResourceType{}, ErrEmptyResourceType
	}

	return ResourceType{value: s}, nil
}

// MustResourceType is like NewResourceType but panics on invalid input.
// Use it for literals only.
func MustResourceType(s string) ResourceType {
	t, err := NewResourceType(s)
	if err != nil {
		panic(err)
	}

	return t
}

func (t ResourceType) String() string {
	return t.value
}

func (t ResourceType) Equals(other ResourceType) bool {
	return t.value == other.value
}

func (t ResourceType) IsZero() bool {
	return t.value == ""
}

// ResourceID is the "id" member of a resource object.
//
// It should only be constructed with NewResourceID or MustResourceID.
type ResourceID struct {
	value string
}

// NewResourceID validates s and wraps it.
// The value is valid when it is non-empty after trimming, or the literal "0".
func NewResourceID(s string) (ResourceID, error) {
	if !isValidIdentifierString(s) {
		return ResourceID{}, ErrEmptyResourceID
	}

	return ResourceID{value: s}, nil
}

// MustResourceID is like NewResourceID but panics on invalid input.
func MustResourceID(s string) ResourceID {
	id, err := NewResourceID(s)
	if err != nil {
		panic(err)
	}

	return id
}

func (id ResourceID) String() string {
	return id.value
}

func (id ResourceID) Equals(other ResourceID) bool {
	return id.value == other.value
}

func (id ResourceID) IsZero() bool {
	return id.value == ""
}

func isValidIdentifierString(s string) bool {
	if s == "0" {
		return true
	}

	return strings.TrimSpace(s) != ""
}
