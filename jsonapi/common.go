package jsonapi

import (
	"errors"
)

var ErrEmptyResourceType = errors.New("resource type must not be empty")
var ErrEmptyResourceID = errors.New("resource id must not be empty")
var ErrEmptyRelationshipName = errors.New("relationship name must not be empty")
var ErrRefNeedsIDXorLID = errors.New("ref must have exactly one of id or lid")
var ErrEmptyHref = errors.New("href must not be empty")
var ErrHrefWithoutID = errors.New("href does not identify a resource id")
var ErrInvalidHref = errors.New("href cannot be parsed")
var ErrInvalidOpCode = errors.New("op code must be one of add, update, remove")
var ErrInvalidOperation = errors.New("operation is not valid")
var ErrDataDoesNotMatchTarget = errors.New("resource object does not identify the target")
var ErrStoreCallFailed = errors.New("store call failed")

// Model is an entity as returned by a Store. The core never inspects it.
type Model = any
