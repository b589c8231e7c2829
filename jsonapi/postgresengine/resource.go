package postgresengine

import (
	"errors"
	"fmt"
	"maps"

	jsoniter "github.com/json-iterator/go"

	"github.com/AntonStoeckl/jsonapi-operations-go/jsonapi"
)

var jsonCodec = jsoniter.ConfigCompatibleWithStandardLibrary

// Resource is the model type of the Store. Attributes are stored as one JSONB document,
// relationships live in their own table and are read through QueryToOne and QueryToMany.
type Resource struct {
	Type       string
	ID         string
	Attributes map[string]any
}

func (r *Resource) withAttributes(attributes map[string]any) *Resource {
	return &Resource{Type: r.Type, ID: r.ID, Attributes: attributes}
}

// writeSet is validated data split into what goes to which table.
type writeSet struct {
	clientID   string
	attributes map[string]any
	toOne      map[string]*jsonapi.ResourceIdentifier
	toMany     map[string][]jsonapi.ResourceIdentifier
}

func splitValidated(validated map[string]any) writeSet {
	ws := writeSet{
		attributes: make(map[string]any, len(validated)),
		toOne:      make(map[string]*jsonapi.ResourceIdentifier),
		toMany:     make(map[string][]jsonapi.ResourceIdentifier),
	}

	for field, value := range validated {
		switch typed := value.(type) {
		case jsonapi.ToOne:
			ws.toOne[field] = typed.Identifier
		case jsonapi.ToMany:
			ws.toMany[field] = typed.List
		default:
			if field == "id" {
				ws.clientID = fmt.Sprint(value)
				continue
			}

			ws.attributes[field] = value
		}
	}

	return ws
}

// relationships returns every relationship of the write set as a list of identifiers.
func (ws writeSet) relationships() map[string][]jsonapi.ResourceIdentifier {
	all := make(map[string][]jsonapi.ResourceIdentifier, len(ws.toOne)+len(ws.toMany))
	maps.Copy(all, ws.toMany)

	for field, identifier := range ws.toOne {
		if identifier == nil {
			all[field] = nil
			continue
		}

		all[field] = []jsonapi.ResourceIdentifier{*identifier}
	}

	return all
}

func encodeAttributes(attributes map[string]any) (string, error) {
	encoded, err := jsonCodec.Marshal(attributes)
	if err != nil {
		return "", errors.Join(ErrEncodingAttributesFailed, err)
	}

	return string(encoded), nil
}

func decodeAttributes(raw []byte) (map[string]any, error) {
	attributes := make(map[string]any)

	if len(raw) == 0 {
		return attributes, nil
	}

	if err := jsonCodec.Unmarshal(raw, &attributes); err != nil {
		return nil, errors.Join(ErrDecodingAttributesFailed, err)
	}

	return attributes, nil
}

func asResource(model jsonapi.Model) (*Resource, error) {
	resource, ok := model.(*Resource)
	if !ok || resource == nil {
		return nil, errors.Join(ErrUnknownModel, fmt.Errorf("%T", model))
	}

	return resource, nil
}
