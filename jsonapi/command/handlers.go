package command

import (
	"context"
	"errors"
	"fmt"

	"github.com/AntonStoeckl/jsonapi-operations-go/jsonapi"
)

var ErrMissingRelationshipData = errors.New("validated data does not contain the relationship")

func (d *Dispatcher) handleStore(ctx context.Context, cmd Command) (jsonapi.Result, error) {
	model, err := d.store.Create(ctx, cmd.Type(), cmd.Validated())
	if err != nil {
		return jsonapi.Result{}, errors.Join(jsonapi.ErrStoreCallFailed, err)
	}

	return jsonapi.Ok(jsonapi.NewPayload(model, nil)), nil
}

func (d *Dispatcher) handleUpdate(ctx context.Context, cmd Command) (jsonapi.Result, error) {
	model, err := cmd.ModelOrFail(ctx)
	if err != nil {
		return jsonapi.Result{}, err
	}

	updated, err := d.store.Update(ctx, cmd.Type(), model, cmd.Validated())
	if err != nil {
		return jsonapi.Result{}, errors.Join(jsonapi.ErrStoreCallFailed, err)
	}

	return jsonapi.Ok(jsonapi.NewPayload(updated, nil)), nil
}

func (d *Dispatcher) handleDestroy(ctx context.Context, cmd Command) (jsonapi.Result, error) {
	model, err := cmd.ModelOrFail(ctx)
	if err != nil {
		return jsonapi.Result{}, err
	}

	if err = d.store.Delete(ctx, cmd.Type(), model); err != nil {
		return jsonapi.Result{}, errors.Join(jsonapi.ErrStoreCallFailed, err)
	}

	return jsonapi.Ok(jsonapi.NoDataPayload(nil)), nil
}

func (d *Dispatcher) handleUpdateRelationship(ctx context.Context, cmd Command) (jsonapi.Result, error) {
	model, field, data, err := relationshipInput(ctx, cmd)
	if err != nil {
		return jsonapi.Result{}, err
	}

	var related any

	switch typed := data.(type) {
	case jsonapi.ToOne:
		related, err = d.store.ModifyToOne(ctx, cmd.Type(), model, field, typed.Identifier)
	case jsonapi.ToMany:
		related, err = d.store.ModifyToMany(ctx, cmd.Type(), model, field, jsonapi.ToManySync, typed.List)
	default:
		panic(fmt.Sprintf("command: unknown relationship data %T", data))
	}

	if err != nil {
		return jsonapi.Result{}, errors.Join(jsonapi.ErrStoreCallFailed, err)
	}

	return jsonapi.Ok(jsonapi.NewPayload(related, nil)), nil
}

func (d *Dispatcher) handleAttachRelationship(ctx context.Context, cmd Command) (jsonapi.Result, error) {
	return d.modifyToMany(ctx, cmd, jsonapi.ToManyAttach)
}

func (d *Dispatcher) handleDetachRelationship(ctx context.Context, cmd Command) (jsonapi.Result, error) {
	return d.modifyToMany(ctx, cmd, jsonapi.ToManyDetach)
}

func (d *Dispatcher) modifyToMany(ctx context.Context, cmd Command, mode jsonapi.ToManyMode) (jsonapi.Result, error) {
	model, field, data, err := relationshipInput(ctx, cmd)
	if err != nil {
		return jsonapi.Result{}, err
	}

	related, err := d.store.ModifyToMany(ctx, cmd.Type(), model, field, mode, data.Identifiers())
	if err != nil {
		return jsonapi.Result{}, errors.Join(jsonapi.ErrStoreCallFailed, err)
	}

	return jsonapi.Ok(jsonapi.NewPayload(related, nil)), nil
}

// relationshipInput forces the model and picks the relationship data out of the validated data.
// Validators may drop the relationship from their output, the operation's own data is used then.
func relationshipInput(ctx context.Context, cmd Command) (jsonapi.Model, string, jsonapi.RelationshipData, error) {
	relational, ok := cmd.(Relational)
	if !ok {
		panic(fmt.Sprintf("command: %T is not a relationship command", cmd))
	}

	model, err := cmd.ModelOrFail(ctx)
	if err != nil {
		return nil, "", nil, err
	}

	field := relational.FieldName()

	if data, ok := cmd.Validated()[field].(jsonapi.RelationshipData); ok {
		return model, field, data, nil
	}

	if data, ok := cmd.Operation().Normalized()[field].(jsonapi.RelationshipData); ok {
		return model, field, data, nil
	}

	return nil, "", nil, errors.Join(ErrMissingRelationshipData, fmt.Errorf("field %q", field))
}
