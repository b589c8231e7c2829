package jsonapi

import (
	"net/url"
	"strings"
)

// Ref is an in-protocol pointer to a target resource: type, exactly one of id or lid,
// and an optional relationship name.
//
// It should only be constructed with the supplied factory methods:
//   - NewRef
//   - NewLIDRef
//   - NewRefFromParts
type Ref struct {
	resourceType ResourceType
	id           ResourceID
	lid          string
	relationship string
}

// NewRef builds a Ref to a persisted resource.
func NewRef(resourceType ResourceType, id ResourceID) (Ref, error) {
	return NewRefFromParts(resourceType, id.String(), "", "")
}

// NewLIDRef builds a Ref to a resource that is created earlier in the same atomic batch.
func NewLIDRef(resourceType ResourceType, lid string) (Ref, error) {
	return NewRefFromParts(resourceType, "", lid, "")
}

// NewRefFromParts builds a Ref from raw parts. Exactly one of id and lid must be non-empty.
func NewRefFromParts(resourceType ResourceType, id string, lid string, relationship string) (Ref, error) {
	if resourceType.IsZero() {
		return Ref{}, ErrEmptyResourceType
	}

	if (id == "") == (lid == "") {
		return Ref{}, ErrRefNeedsIDXorLID
	}

	ref := Ref{resourceType: resourceType, lid: lid}

	if id != "" {
		resourceID, err := NewResourceID(id)
		if err != nil {
			return Ref{}, err
		}

		ref.id = resourceID
	}

	if lid != "" && strings.TrimSpace(lid) == "" {
		return Ref{}, ErrRefNeedsIDXorLID
	}

	if relationship != "" {
		return ref.WithRelationship(relationship)
	}

	return ref, nil
}

func (r Ref) Type() ResourceType {
	return r.resourceType
}

func (r Ref) ID() (ResourceID, bool) {
	return r.id, !r.id.IsZero()
}

func (r Ref) LID() (string, bool) {
	return r.lid, r.lid != ""
}

func (r Ref) Relationship() (string, bool) {
	return r.relationship, r.relationship != ""
}

// WithRelationship returns a copy of r pointing at the named relationship.
func (r Ref) WithRelationship(name string) (Ref, error) {
	if strings.TrimSpace(name) == "" {
		return Ref{}, ErrEmptyRelationshipName
	}

	r.relationship = name

	return r, nil
}

// WithResolvedID returns a copy of r with the id set and the lid cleared.
func (r Ref) WithResolvedID(id ResourceID) Ref {
	r.id = id
	r.lid = ""

	return r
}

func (r Ref) IsZero() bool {
	return r.resourceType.IsZero()
}

// String renders the ref for logs, e.g. "posts:1/tags" or "tags:lid=a".
func (r Ref) String() string {
	var sb strings.Builder

	sb.WriteString(r.resourceType.String())

	if id, ok := r.ID(); ok {
		sb.WriteString(":" + id.String())
	} else {
		sb.WriteString(":lid=" + r.lid)
	}

	if r.relationship != "" {
		sb.WriteString("/" + r.relationship)
	}

	return sb.String()
}

/***** Href *****/

// Href is an opaque, client-supplied URL pointing at a resource or relationship.
type Href struct {
	value string
}

func NewHref(s string) (Href, error) {
	if strings.TrimSpace(s) == "" {
		return Href{}, ErrEmptyHref
	}

	return Href{value: s}, nil
}

func (h Href) String() string {
	return h.value
}

func (h Href) IsZero() bool {
	return h.value == ""
}

// ParsedHref is the result of resolving an Href with an HrefParser.
type ParsedHref struct {
	Href         Href
	Type         ResourceType
	ID           *ResourceID
	Relationship string
}

// Ref converts the parsed href into a Ref. This is only possible once a concrete id is known,
// an href can never point at a resource that is not created yet.
func (p ParsedHref) Ref() (Ref, error) {
	if p.ID == nil {
		return Ref{}, ErrHrefWithoutID
	}

	return NewRefFromParts(p.Type, p.ID.String(), "", p.Relationship)
}

// HrefParser resolves client-supplied URLs to resource coordinates.
type HrefParser interface {
	Parse(href Href) (ParsedHref, error)
}

// PathHrefParser parses hrefs of the form <base>/<type>[/<id>[/relationships/<field> | /<field>]].
type PathHrefParser struct {
	basePath string
}

// NewPathHrefParser creates a parser for hrefs below basePath, e.g. "/api/v1".
func NewPathHrefParser(basePath string) PathHrefParser {
	return PathHrefParser{basePath: "/" + strings.Trim(basePath, "/")}
}

func (p PathHrefParser) Parse(href Href) (ParsedHref, error) {
	parsedURL, err := url.Parse(href.String())
	if err != nil {
		return ParsedHref{}, ErrInvalidHref
	}

	path := parsedURL.Path
	if p.basePath != "/" {
		if !strings.HasPrefix(path, p.basePath+"/") {
			return ParsedHref{}, ErrInvalidHref
		}

		path = strings.TrimPrefix(path, p.basePath)
	}

	segments := strings.Split(strings.Trim(path, "/"), "/")
	if len(segments) == 0 || segments[0] == "" || len(segments) > 4 {
		return ParsedHref{}, ErrInvalidHref
	}

	resourceType, err := NewResourceType(segments[0])
	if err != nil {
		return ParsedHref{}, ErrInvalidHref
	}

	parsed := ParsedHref{Href: href, Type: resourceType}

	if len(segments) >= 2 {
		id, idErr := NewResourceID(segments[1])
		if idErr != nil {
			return ParsedHref{}, ErrInvalidHref
		}

		parsed.ID = &id
	}

	switch len(segments) {
	case 3:
		parsed.Relationship = segments[2]
	case 4:
		if segments[2] != "relationships" || segments[3] == "" {
			return ParsedHref{}, ErrInvalidHref
		}

		parsed.Relationship = segments[3]
	}

	return parsed, nil
}
