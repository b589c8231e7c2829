package atomic

import (
	"fmt"

	"github.com/AntonStoeckl/jsonapi-operations-go/jsonapi"
)

// Resolver substitutes known lids with their ids. Unknown lids are left in place,
// every method returns a new value and never changes its input.
type Resolver struct {
	ids *LocalIDs
}

func NewResolver(ids *LocalIDs) Resolver {
	return Resolver{ids: ids}
}

func (r Resolver) ResolveRef(ref jsonapi.Ref) jsonapi.Ref {
	lid, ok := ref.LID()
	if !ok {
		return ref
	}

	id, known := r.ids.Lookup(lid)
	if !known {
		return ref
	}

	return ref.WithResolvedID(id)
}

func (r Resolver) ResolveIdentifier(identifier jsonapi.ResourceIdentifier) jsonapi.ResourceIdentifier {
	if !identifier.HasLID() {
		return identifier
	}

	id, known := r.ids.Lookup(identifier.LID)
	if !known {
		return identifier
	}

	return identifier.WithResolvedID(id)
}

func (r Resolver) ResolveIdentifiers(identifiers []jsonapi.ResourceIdentifier) []jsonapi.ResourceIdentifier {
	return jsonapi.MapIdentifiers(identifiers, r.ResolveIdentifier)
}

// ResolveResourceObject resolves the lid of the resource object itself and every relationship identifier.
// Only use it for objects that reference an existing resource; a Create declares its lid instead.
func (r Resolver) ResolveResourceObject(data jsonapi.ResourceObject) jsonapi.ResourceObject {
	resolved := r.resolveRelationships(data)

	if data.ID == "" && data.LID != "" {
		if id, known := r.ids.Lookup(data.LID); known {
			resolved.ID = id.String()
			resolved.LID = ""
		}
	}

	return resolved
}

func (r Resolver) resolveRelationships(data jsonapi.ResourceObject) jsonapi.ResourceObject {
	return data.MapRelationshipIdentifiers(r.ResolveIdentifier)
}

// ResolveOperation resolves the target of op and the identifiers in its payload.
func (r Resolver) ResolveOperation(op jsonapi.Operation) jsonapi.Operation {
	switch typed := op.(type) {
	case jsonapi.Create:
		return typed.WithData(r.resolveRelationships(typed.Data()))
	case jsonapi.Update:
		resolved := typed.WithData(r.ResolveResourceObject(typed.Data()))
		if ref, ok := typed.Target().Ref(); ok {
			resolved = resolved.WithRef(r.ResolveRef(ref))
		}

		return resolved
	case jsonapi.Delete:
		ref, _ := typed.Ref()
		return typed.WithRef(r.ResolveRef(ref))
	case jsonapi.UpdateToOne:
		ref, _ := typed.Ref()
		resolved := typed.WithRef(r.ResolveRef(ref))

		if identifier := typed.Data(); identifier != nil {
			mapped := r.ResolveIdentifier(*identifier)
			resolved = resolved.WithData(&mapped)
		}

		return resolved
	case jsonapi.UpdateToMany:
		ref, _ := typed.Ref()
		return typed.WithRef(r.ResolveRef(ref)).WithData(r.ResolveIdentifiers(typed.Data()))
	default:
		panic(fmt.Sprintf("atomic: unknown operation %T", op))
	}
}

// Unresolved lists the lids op still refers to.
func (r Resolver) Unresolved(op jsonapi.Operation) []string {
	return jsonapi.ReferencedLocalIDs(op)
}
