package command_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AntonStoeckl/jsonapi-operations-go/jsonapi"
	"github.com/AntonStoeckl/jsonapi-operations-go/jsonapi/command"
)

func Test_FromOperation_Maps_Operations_To_Command_Types(t *testing.T) {
	tests := []struct {
		name     string
		op       jsonapi.Operation
		expected string
	}{
		{name: "create", op: givenCreate(t, map[string]any{"title": "Hello"}), expected: command.KindStore},
		{name: "update", op: givenUpdate(t, "1", map[string]any{"title": "Hello"}), expected: command.KindUpdate},
		{name: "delete", op: givenDelete(t, "1"), expected: command.KindDestroy},
		{name: "update to-one", op: givenUpdateToOne(t, "1", "author", nil), expected: command.KindUpdateRelationship},
		{name: "update to-many", op: givenToMany(t, jsonapi.OpUpdate, "1", "tags"), expected: command.KindUpdateRelationship},
		{name: "add to-many", op: givenToMany(t, jsonapi.OpAdd, "1", "tags", "3"), expected: command.KindAttachRelationship},
		{name: "remove to-many", op: givenToMany(t, jsonapi.OpRemove, "1", "tags", "3"), expected: command.KindDetachRelationship},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			// act
			cmd, err := command.FromOperation(nil, tc.op)

			// assert
			require.NoError(t, err)
			assert.Equal(t, tc.expected, cmd.CommandType())
			assert.Equal(t, "posts", cmd.Type().String())
		})
	}
}

func Test_FromOperation_Rejects_Unresolved_Local_IDs(t *testing.T) {
	// arrange
	op, err := jsonapi.NewCreate(jsonapi.NoTarget(), jsonapi.ResourceObject{
		Type: jsonapi.MustResourceType("posts"),
		Relationships: map[string]jsonapi.RelationshipObject{
			"author": {Data: jsonapi.ToOne{Identifier: &jsonapi.ResourceIdentifier{Type: jsonapi.MustResourceType("people"), LID: "p1"}}},
		},
	}, nil)
	require.NoError(t, err)

	// act
	_, err = command.FromOperation(nil, op)

	// assert
	assert.ErrorIs(t, err, command.ErrUnresolvedLocalID)
}

func Test_Relationship_Commands_Expose_ID_And_FieldName(t *testing.T) {
	// act
	cmd, err := command.NewAttachRelationship(nil, givenToMany(t, jsonapi.OpAdd, "7", "tags", "3"))

	// assert
	require.NoError(t, err)
	assert.Equal(t, "7", cmd.ID().String())
	assert.Equal(t, "tags", cmd.FieldName())
}

func Test_NewAttachRelationship_Rejects_Other_Op_Codes(t *testing.T) {
	// act
	_, err := command.NewAttachRelationship(nil, givenToMany(t, jsonapi.OpRemove, "7", "tags", "3"))

	// assert
	assert.ErrorIs(t, err, command.ErrUnsupportedOperation)
}

func Test_Command_Mutators_Return_Modified_Copies(t *testing.T) {
	// arrange
	cmd, err := command.NewStore(nil, givenCreate(t, map[string]any{"title": "Hello"}))
	require.NoError(t, err)

	// act
	skipped := command.SkipValidation(command.SkipAuthorization(cmd))
	validated := command.WithValidated(cmd, map[string]any{"title": "Bye"})

	// assert
	assert.True(t, cmd.MustAuthorize())
	assert.True(t, cmd.MustValidate())
	assert.False(t, cmd.IsValidated())
	assert.False(t, skipped.MustAuthorize())
	assert.False(t, skipped.MustValidate())
	assert.True(t, validated.IsValidated())
	assert.Equal(t, "Bye", validated.Validated()["title"])
}

func Test_WithValidated_Nil_Becomes_Empty_Map(t *testing.T) {
	// arrange
	cmd, err := command.NewDestroy(nil, givenDelete(t, "1"))
	require.NoError(t, err)

	// act
	validated := command.WithValidated(cmd, nil)

	// assert
	assert.NotNil(t, validated.Validated())
	assert.Empty(t, validated.Validated())
}

func Test_Validated_Panics_Before_Validation(t *testing.T) {
	// arrange
	cmd, err := command.NewStore(nil, givenCreate(t, map[string]any{"title": "Hello"}))
	require.NoError(t, err)

	// act & assert
	assert.PanicsWithValue(t, command.ErrNotValidated, func() { cmd.Validated() })
	assert.Equal(t, "Hello", cmd.ValidatedOrNormalized()["title"])
}

func Test_WithModel_Twice_Panics(t *testing.T) {
	// arrange
	cmd, err := command.NewUpdate(nil, givenUpdate(t, "1", nil))
	require.NoError(t, err)
	withModel := command.WithModel(cmd, "first")

	// act & assert
	assert.PanicsWithValue(t, command.ErrModelAlreadySet, func() { command.WithModel(withModel, "second") })
	assert.False(t, cmd.HasModel())
}

func Test_ModelOrFail_Panics_Without_Model(t *testing.T) {
	// arrange
	cmd, err := command.NewUpdate(nil, givenUpdate(t, "1", nil))
	require.NoError(t, err)

	// act & assert
	assert.PanicsWithValue(t, command.ErrNoModel, func() { _, _ = cmd.ModelOrFail(context.Background()) })

	model, err := cmd.Model(context.Background())
	assert.NoError(t, err)
	assert.Nil(t, model)
}

func Test_WithModel_Attaches_A_Resolved_Model(t *testing.T) {
	// arrange
	cmd, err := command.NewUpdate(nil, givenUpdate(t, "1", nil))
	require.NoError(t, err)

	// act
	withModel := command.WithModel(cmd, "model")
	model, err := withModel.ModelOrFail(context.Background())

	// assert
	require.NoError(t, err)
	assert.True(t, withModel.HasModel())
	assert.Equal(t, "model", model)
}

/***** helpers *****/

func givenRef(t testing.TB, id string, relationship string) jsonapi.Ref {
	ref, err := jsonapi.NewRefFromParts(jsonapi.MustResourceType("posts"), id, "", relationship)
	require.NoError(t, err, "error in arranging test data")

	return ref
}

func givenCreate(t testing.TB, attributes map[string]any) jsonapi.Create {
	op, err := jsonapi.NewCreate(
		jsonapi.NoTarget(),
		jsonapi.ResourceObject{Type: jsonapi.MustResourceType("posts"), Attributes: attributes},
		nil,
	)
	require.NoError(t, err, "error in arranging test data")

	return op
}

func givenUpdate(t testing.TB, id string, attributes map[string]any) jsonapi.Update {
	op, err := jsonapi.NewUpdate(
		jsonapi.NoTarget(),
		jsonapi.ResourceObject{Type: jsonapi.MustResourceType("posts"), ID: id, Attributes: attributes},
		nil,
	)
	require.NoError(t, err, "error in arranging test data")

	return op
}

func givenDelete(t testing.TB, id string) jsonapi.Delete {
	op, err := jsonapi.NewDelete(jsonapi.TargetRef(givenRef(t, id, "")), nil)
	require.NoError(t, err, "error in arranging test data")

	return op
}

func givenUpdateToOne(t testing.TB, id string, field string, related *jsonapi.ResourceIdentifier) jsonapi.UpdateToOne {
	op, err := jsonapi.NewUpdateToOne(jsonapi.TargetRef(givenRef(t, id, field)), related, nil)
	require.NoError(t, err, "error in arranging test data")

	return op
}

func givenToMany(t testing.TB, code jsonapi.OpCode, id string, field string, tagIDs ...string) jsonapi.UpdateToMany {
	identifiers := make([]jsonapi.ResourceIdentifier, 0, len(tagIDs))
	for _, tagID := range tagIDs {
		identifiers = append(identifiers, jsonapi.ResourceIdentifier{Type: jsonapi.MustResourceType("tags"), ID: tagID})
	}

	op, err := jsonapi.NewUpdateToMany(code, jsonapi.TargetRef(givenRef(t, id, field)), identifiers, nil)
	require.NoError(t, err, "error in arranging test data")

	return op
}
