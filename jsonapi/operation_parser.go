package jsonapi

import (
	"strconv"
	"strings"

	jsoniter "github.com/json-iterator/go"
)

// AtomicOperationsMember is the top-level member of an atomic operations document.
const AtomicOperationsMember = "atomic:operations"

// documentJSON decodes numbers as json.Number so attribute values survive unchanged.
var documentJSON = jsoniter.Config{UseNumber: true, EscapeHTML: false}.Froze()

// ParseOption configures ParseOperation and ParseAtomicOperations.
type ParseOption func(*operationParser)

// WithHrefParser sets the parser used for "href" targets. Default: NewPathHrefParser("/").
func WithHrefParser(hrefParser HrefParser) ParseOption {
	return func(p *operationParser) {
		p.hrefParser = hrefParser
	}
}

type operationParser struct {
	hrefParser HrefParser
}

func newOperationParser(opts []ParseOption) operationParser {
	p := operationParser{hrefParser: NewPathHrefParser("/")}
	for _, opt := range opts {
		opt(&p)
	}

	return p
}

// ParseAtomicOperations decodes an atomic operations document into operations, in document order.
// Structural failures are returned as *ParseError with a JSON pointer into the document.
func ParseAtomicOperations(body []byte, opts ...ParseOption) ([]Operation, error) {
	var document map[string]any
	if err := documentJSON.Unmarshal(body, &document); err != nil {
		return nil, &ParseError{Detail: "request body is not a valid JSON object"}
	}

	rawList, ok := document[AtomicOperationsMember]
	if !ok {
		return nil, &ParseError{Pointer: "", Detail: "document has no " + AtomicOperationsMember + " member"}
	}

	list, ok := rawList.([]any)
	if !ok {
		return nil, &ParseError{Pointer: "/" + AtomicOperationsMember, Detail: "must be an array"}
	}

	if len(list) == 0 {
		return nil, &ParseError{Pointer: "/" + AtomicOperationsMember, Detail: "must contain at least one operation"}
	}

	parser := newOperationParser(opts)
	operations := make([]Operation, 0, len(list))

	for i, rawOperation := range list {
		pointer := "/" + AtomicOperationsMember + "/" + strconv.Itoa(i)

		raw, isObject := rawOperation.(map[string]any)
		if !isObject {
			return nil, &ParseError{Pointer: pointer, Detail: "operation must be an object"}
		}

		op, err := parser.parse(raw, pointer)
		if err != nil {
			return nil, err
		}

		operations = append(operations, op)
	}

	return operations, nil
}

// ParseOperation builds the Operation variant described by raw, a map with the members
// "op", "ref" or "href", "data" and "meta".
func ParseOperation(raw map[string]any, opts ...ParseOption) (Operation, error) {
	return newOperationParser(opts).parse(raw, "")
}

func (p operationParser) parse(raw map[string]any, pointer string) (Operation, error) {
	rawCode, ok := raw["op"].(string)
	if !ok {
		return nil, &ParseError{Pointer: pointer + "/op", Detail: "op must be a string"}
	}

	code, err := ParseOpCode(rawCode)
	if err != nil {
		return nil, &ParseError{Pointer: pointer + "/op", Detail: err.Error()}
	}

	_, hasRef := raw["ref"]
	_, hasHref := raw["href"]

	if hasRef && hasHref {
		return nil, &ParseError{Pointer: pointer, Detail: "ref and href must not both be present"}
	}

	meta, err := optionalObject(raw, "meta", pointer)
	if err != nil {
		return nil, err
	}

	target := NoTarget()

	switch {
	case hasRef:
		target, err = p.parseRefTarget(raw["ref"], pointer+"/ref")
	case hasHref:
		target, err = p.parseHrefTarget(raw["href"], pointer+"/href", code)
	}

	if err != nil {
		return nil, err
	}

	if _, isRelationship := target.relationship(); isRelationship {
		return p.parseRelationshipOperation(code, target, raw, pointer, meta)
	}

	switch code {
	case OpAdd:
		return p.parseCreate(target, raw, pointer, meta, hasRef)
	case OpUpdate:
		return p.parseUpdate(target, raw, pointer, meta)
	default:
		return p.parseDelete(target, pointer, meta)
	}
}

func (p operationParser) parseCreate(target Target, raw map[string]any, pointer string, meta map[string]any, hasRef bool) (Operation, error) {
	if hasRef {
		return nil, &ParseError{Pointer: pointer + "/ref", Detail: "ref of an add operation must target a relationship"}
	}

	data, err := p.parseResourceObject(raw, pointer+"/data")
	if err != nil {
		return nil, err
	}

	if parsedRef, ok := target.Ref(); ok && !parsedRef.Type().Equals(data.Type) {
		return nil, &ParseError{Pointer: pointer + "/data/type", Detail: "type does not match the target"}
	}

	op, err := NewCreate(target, data, meta)
	if err != nil {
		return nil, &ParseError{Pointer: pointer, Detail: err.Error()}
	}

	return op, nil
}

func (p operationParser) parseUpdate(target Target, raw map[string]any, pointer string, meta map[string]any) (Operation, error) {
	data, err := p.parseResourceObject(raw, pointer+"/data")
	if err != nil {
		return nil, err
	}

	if ref, ok := target.Ref(); ok {
		if !ref.Type().Equals(data.Type) {
			return nil, &ParseError{Pointer: pointer + "/data/type", Detail: "type does not match the target"}
		}

		if id, hasID := ref.ID(); hasID {
			if data.ID != "" && data.ID != id.String() {
				return nil, &ParseError{Pointer: pointer + "/data/id", Detail: "id does not match the target"}
			}

			if data.LID != "" {
				return nil, &ParseError{Pointer: pointer + "/data/lid", Detail: "lid must not be given when the target has an id"}
			}
		}

		if lid, hasLID := ref.LID(); hasLID {
			if data.LID != "" && data.LID != lid {
				return nil, &ParseError{Pointer: pointer + "/data/lid", Detail: "lid does not match the target"}
			}

			if data.ID != "" {
				return nil, &ParseError{Pointer: pointer + "/data/id", Detail: "id must not be given when the target has a lid"}
			}
		}
	}

	op, err := NewUpdate(target, data, meta)
	if err != nil {
		return nil, &ParseError{Pointer: pointer + "/data", Detail: err.Error()}
	}

	return op, nil
}

func (p operationParser) parseDelete(target Target, pointer string, meta map[string]any) (Operation, error) {
	if target.IsZero() {
		return nil, &ParseError{Pointer: pointer, Detail: "remove operation needs a ref or href"}
	}

	op, err := NewDelete(target, meta)
	if err != nil {
		return nil, &ParseError{Pointer: pointer, Detail: err.Error()}
	}

	return op, nil
}

func (p operationParser) parseRelationshipOperation(code OpCode, target Target, raw map[string]any, pointer string, meta map[string]any) (Operation, error) {
	rawData, hasData := raw["data"]
	if !hasData {
		return nil, &ParseError{Pointer: pointer, Detail: "relationship operation needs data"}
	}

	switch data := rawData.(type) {
	case nil:
		if code != OpUpdate {
			return nil, &ParseError{Pointer: pointer + "/op", Detail: "to-one relationships can only be updated"}
		}

		return newParsedToOne(target, nil, pointer, meta)
	case map[string]any:
		if code != OpUpdate {
			return nil, &ParseError{Pointer: pointer + "/op", Detail: "to-one relationships can only be updated"}
		}

		identifier, err := parseIdentifier(data, pointer+"/data")
		if err != nil {
			return nil, err
		}

		return newParsedToOne(target, &identifier, pointer, meta)
	case []any:
		identifiers, err := parseIdentifierList(data, pointer+"/data")
		if err != nil {
			return nil, err
		}

		op, err := NewUpdateToMany(code, target, identifiers, meta)
		if err != nil {
			return nil, &ParseError{Pointer: pointer, Detail: err.Error()}
		}

		return op, nil
	default:
		return nil, &ParseError{Pointer: pointer + "/data", Detail: "must be an object, an array or null"}
	}
}

func newParsedToOne(target Target, identifier *ResourceIdentifier, pointer string, meta map[string]any) (Operation, error) {
	op, err := NewUpdateToOne(target, identifier, meta)
	if err != nil {
		return nil, &ParseError{Pointer: pointer, Detail: err.Error()}
	}

	return op, nil
}

func (p operationParser) parseRefTarget(rawRef any, pointer string) (Target, error) {
	ref, ok := rawRef.(map[string]any)
	if !ok {
		return Target{}, &ParseError{Pointer: pointer, Detail: "ref must be an object"}
	}

	resourceType, err := requiredType(ref, pointer)
	if err != nil {
		return Target{}, err
	}

	id, lid, err := idXorLID(ref, pointer)
	if err != nil {
		return Target{}, err
	}

	relationship, err := optionalString(ref, "relationship", pointer)
	if err != nil {
		return Target{}, err
	}

	if _, present := ref["relationship"]; present && strings.TrimSpace(relationship) == "" {
		return Target{}, &ParseError{Pointer: pointer + "/relationship", Detail: ErrEmptyRelationshipName.Error()}
	}

	parsed, err := NewRefFromParts(resourceType, id, lid, relationship)
	if err != nil {
		return Target{}, &ParseError{Pointer: pointer, Detail: err.Error()}
	}

	return TargetRef(parsed), nil
}

func (p operationParser) parseHrefTarget(rawHref any, pointer string, code OpCode) (Target, error) {
	s, ok := rawHref.(string)
	if !ok {
		return Target{}, &ParseError{Pointer: pointer, Detail: "href must be a string"}
	}

	href, err := NewHref(s)
	if err != nil {
		return Target{}, &ParseError{Pointer: pointer, Detail: err.Error()}
	}

	parsed, err := p.hrefParser.Parse(href)
	if err != nil {
		return Target{}, &ParseError{Pointer: pointer, Detail: err.Error()}
	}

	if parsed.ID == nil {
		if code == OpAdd && parsed.Relationship == "" {
			return TargetHref(href), nil
		}

		return Target{}, &ParseError{Pointer: pointer, Detail: ErrHrefWithoutID.Error()}
	}

	ref, err := parsed.Ref()
	if err != nil {
		return Target{}, &ParseError{Pointer: pointer, Detail: err.Error()}
	}

	return TargetParsedHref(href, ref), nil
}

func (p operationParser) parseResourceObject(raw map[string]any, pointer string) (ResourceObject, error) {
	rawData, present := raw["data"]
	if !present || rawData == nil {
		return ResourceObject{}, &ParseError{Pointer: pointer, Detail: "data must be a resource object"}
	}

	data, ok := rawData.(map[string]any)
	if !ok {
		return ResourceObject{}, &ParseError{Pointer: pointer, Detail: "data must be a resource object"}
	}

	resourceType, err := requiredType(data, pointer)
	if err != nil {
		return ResourceObject{}, err
	}

	id, err := optionalString(data, "id", pointer)
	if err != nil {
		return ResourceObject{}, err
	}

	lid, err := optionalString(data, "lid", pointer)
	if err != nil {
		return ResourceObject{}, err
	}

	if id != "" && lid != "" {
		return ResourceObject{}, &ParseError{Pointer: pointer, Detail: ErrRefNeedsIDXorLID.Error()}
	}

	if _, hasID := data["id"]; hasID && !isValidIdentifierString(id) {
		return ResourceObject{}, &ParseError{Pointer: pointer + "/id", Detail: ErrEmptyResourceID.Error()}
	}

	if _, hasLID := data["lid"]; hasLID && strings.TrimSpace(lid) == "" {
		return ResourceObject{}, &ParseError{Pointer: pointer + "/lid", Detail: "lid must not be empty"}
	}

	attributes, err := optionalObject(data, "attributes", pointer)
	if err != nil {
		return ResourceObject{}, err
	}

	meta, err := optionalObject(data, "meta", pointer)
	if err != nil {
		return ResourceObject{}, err
	}

	rawRelationships, err := optionalObject(data, "relationships", pointer)
	if err != nil {
		return ResourceObject{}, err
	}

	relationships := make(map[string]RelationshipObject, len(rawRelationships))
	for field, rawRelationship := range rawRelationships {
		relationship, relErr := parseRelationshipObject(rawRelationship, pointer+"/relationships/"+escapePointer(field))
		if relErr != nil {
			return ResourceObject{}, relErr
		}

		relationships[field] = relationship
	}

	return ResourceObject{
		Type:          resourceType,
		ID:            id,
		LID:           lid,
		Attributes:    attributes,
		Relationships: relationships,
		Meta:          meta,
	}, nil
}

func parseRelationshipObject(raw any, pointer string) (RelationshipObject, error) {
	object, ok := raw.(map[string]any)
	if !ok {
		return RelationshipObject{}, &ParseError{Pointer: pointer, Detail: "relationship must be an object"}
	}

	meta, err := optionalObject(object, "meta", pointer)
	if err != nil {
		return RelationshipObject{}, err
	}

	relationship := RelationshipObject{Meta: meta}

	rawData, present := object["data"]
	if !present {
		return relationship, nil
	}

	switch data := rawData.(type) {
	case nil:
		relationship.Data = ToOne{}
	case map[string]any:
		identifier, idErr := parseIdentifier(data, pointer+"/data")
		if idErr != nil {
			return RelationshipObject{}, idErr
		}

		relationship.Data = ToOne{Identifier: &identifier}
	case []any:
		identifiers, listErr := parseIdentifierList(data, pointer+"/data")
		if listErr != nil {
			return RelationshipObject{}, listErr
		}

		relationship.Data = ToMany{List: identifiers}
	default:
		return RelationshipObject{}, &ParseError{Pointer: pointer + "/data", Detail: "must be an object, an array or null"}
	}

	return relationship, nil
}

func parseIdentifierList(list []any, pointer string) ([]ResourceIdentifier, error) {
	identifiers := make([]ResourceIdentifier, 0, len(list))

	for i, rawIdentifier := range list {
		itemPointer := pointer + "/" + strconv.Itoa(i)

		object, ok := rawIdentifier.(map[string]any)
		if !ok {
			return nil, &ParseError{Pointer: itemPointer, Detail: "resource identifier must be an object"}
		}

		identifier, err := parseIdentifier(object, itemPointer)
		if err != nil {
			return nil, err
		}

		identifiers = append(identifiers, identifier)
	}

	return identifiers, nil
}

func parseIdentifier(raw map[string]any, pointer string) (ResourceIdentifier, error) {
	resourceType, err := requiredType(raw, pointer)
	if err != nil {
		return ResourceIdentifier{}, err
	}

	id, lid, err := idXorLID(raw, pointer)
	if err != nil {
		return ResourceIdentifier{}, err
	}

	meta, err := optionalObject(raw, "meta", pointer)
	if err != nil {
		return ResourceIdentifier{}, err
	}

	identifier := ResourceIdentifier{Type: resourceType, ID: id, LID: lid, Meta: meta}
	if err = identifier.Validate(); err != nil {
		return ResourceIdentifier{}, &ParseError{Pointer: pointer, Detail: err.Error()}
	}

	return identifier, nil
}

func requiredType(raw map[string]any, pointer string) (ResourceType, error) {
	s, ok := raw["type"].(string)
	if !ok {
		return ResourceType{}, &ParseError{Pointer: pointer + "/type", Detail: "type must be a string"}
	}

	resourceType, err := NewResourceType(s)
	if err != nil {
		return ResourceType{}, &ParseError{Pointer: pointer + "/type", Detail: err.Error()}
	}

	return resourceType, nil
}

func idXorLID(raw map[string]any, pointer string) (string, string, error) {
	id, err := optionalString(raw, "id", pointer)
	if err != nil {
		return "", "", err
	}

	lid, err := optionalString(raw, "lid", pointer)
	if err != nil {
		return "", "", err
	}

	if (id == "") == (lid == "") {
		return "", "", &ParseError{Pointer: pointer, Detail: ErrRefNeedsIDXorLID.Error()}
	}

	if id != "" && !isValidIdentifierString(id) {
		return "", "", &ParseError{Pointer: pointer + "/id", Detail: ErrEmptyResourceID.Error()}
	}

	if lid != "" && strings.TrimSpace(lid) == "" {
		return "", "", &ParseError{Pointer: pointer + "/lid", Detail: "lid must not be empty"}
	}

	return id, lid, nil
}

func optionalString(raw map[string]any, member string, pointer string) (string, error) {
	value, present := raw[member]
	if !present || value == nil {
		return "", nil
	}

	s, ok := value.(string)
	if !ok {
		return "", &ParseError{Pointer: pointer + "/" + member, Detail: member + " must be a string"}
	}

	return s, nil
}

func optionalObject(raw map[string]any, member string, pointer string) (map[string]any, error) {
	value, present := raw[member]
	if !present || value == nil {
		return nil, nil
	}

	object, ok := value.(map[string]any)
	if !ok {
		return nil, &ParseError{Pointer: pointer + "/" + member, Detail: member + " must be an object"}
	}

	return object, nil
}

// escapePointer escapes a member name for use in a JSON pointer (RFC 6901).
func escapePointer(member string) string {
	return strings.ReplaceAll(strings.ReplaceAll(member, "~", "~0"), "/", "~1")
}
