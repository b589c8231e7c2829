package query

import (
	"context"
	"errors"
	"fmt"

	"github.com/AntonStoeckl/jsonapi-operations-go/jsonapi"
)

var ErrNoSchema = errors.New("relationship reads need a schema")

func (d *Dispatcher) handleFetchMany(ctx context.Context, q Query) (jsonapi.Result, error) {
	data, err := d.store.QueryAll(ctx, q.Type(), q.Validated())
	if err != nil {
		return jsonapi.Result{}, errors.Join(jsonapi.ErrStoreCallFailed, err)
	}

	return jsonapi.Ok(jsonapi.NewPayload(data, nil)), nil
}

func (d *Dispatcher) handleFetchOne(ctx context.Context, q Query) (jsonapi.Result, error) {
	identifiable, ok := q.(Identifiable)
	if !ok {
		panic(fmt.Sprintf("query: %T does not address a single resource", q))
	}

	model, found, err := d.store.QueryOne(ctx, q.Type(), identifiable.ID(), q.Validated())
	if err != nil {
		return jsonapi.Result{}, errors.Join(jsonapi.ErrStoreCallFailed, err)
	}

	if !found {
		return jsonapi.Failed(jsonapi.NotFoundError()), nil
	}

	return jsonapi.Ok(jsonapi.NewPayload(model, nil)), nil
}

// handleFetchRelated serves both related-resource and relationship-linkage reads.
// Rendering one as resources and the other as identifiers is left to the response renderer.
func (d *Dispatcher) handleFetchRelated(ctx context.Context, q Query) (jsonapi.Result, error) {
	relational, ok := q.(Relational)
	if !ok {
		panic(fmt.Sprintf("query: %T does not address a relationship", q))
	}

	if d.schema == nil {
		return jsonapi.Result{}, ErrNoSchema
	}

	kind, known := d.relationshipKind(q.Type(), relational.FieldName())
	if !known {
		notFound := jsonapi.NotFoundError()
		notFound.Detail = fmt.Sprintf("Resource type %s has no relationship %s.", q.Type(), relational.FieldName())

		return jsonapi.Failed(notFound), nil
	}

	model, err := q.ModelOrFail(ctx)
	if err != nil {
		return jsonapi.Result{}, err
	}

	var data any

	switch kind {
	case jsonapi.RelationshipToOne:
		data, err = d.store.QueryToOne(ctx, q.Type(), model, relational.FieldName(), q.Validated())
	case jsonapi.RelationshipToMany:
		data, err = d.store.QueryToMany(ctx, q.Type(), model, relational.FieldName(), q.Validated())
	default:
		panic(fmt.Sprintf("query: unknown relationship kind %q", kind))
	}

	if err != nil {
		return jsonapi.Result{}, errors.Join(jsonapi.ErrStoreCallFailed, err)
	}

	return jsonapi.Ok(jsonapi.NewPayload(data, nil)), nil
}
