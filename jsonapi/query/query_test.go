package query_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AntonStoeckl/jsonapi-operations-go/jsonapi"
	"github.com/AntonStoeckl/jsonapi-operations-go/jsonapi/query"
)

func givenFetchMany(t testing.TB, params map[string]string) query.Query {
	input, err := jsonapi.NewQueryMany(jsonapi.MustResourceType("posts"), params)
	require.NoError(t, err, "error in arranging test data")

	return query.FromInput(nil, input)
}

func givenFetchOne(t testing.TB, id string, params map[string]string) query.Query {
	input, err := jsonapi.NewQueryOne(jsonapi.MustResourceType("posts"), jsonapi.MustResourceID(id), params)
	require.NoError(t, err, "error in arranging test data")

	return query.FromInput(nil, input)
}

func givenFetchRelated(t testing.TB, id string, field string) query.Query {
	input, err := jsonapi.NewQueryRelated(jsonapi.MustResourceType("posts"), jsonapi.MustResourceID(id), field, nil)
	require.NoError(t, err, "error in arranging test data")

	return query.FromInput(nil, input)
}

func givenFetchRelationship(t testing.TB, id string, field string) query.Query {
	input, err := jsonapi.NewQueryRelationship(jsonapi.MustResourceType("posts"), jsonapi.MustResourceID(id), field, nil)
	require.NoError(t, err, "error in arranging test data")

	return query.FromInput(nil, input)
}

func Test_FromInput_Maps_Inputs_To_Query_Types(t *testing.T) {
	assert.Equal(t, query.KindFetchMany, givenFetchMany(t, nil).QueryType())
	assert.Equal(t, query.KindFetchOne, givenFetchOne(t, "1", nil).QueryType())
	assert.Equal(t, query.KindFetchRelated, givenFetchRelated(t, "1", "tags").QueryType())
	assert.Equal(t, query.KindFetchRelationship, givenFetchRelationship(t, "1", "tags").QueryType())
}

func Test_Query_Validated_Parses_The_Validated_Data(t *testing.T) {
	// arrange
	q := givenFetchMany(t, map[string]string{"sort": "-title", "fields[posts]": "title,body", "page[size]": "10"})

	// act & assert
	assert.PanicsWithValue(t, query.ErrNotValidated, func() { q.Validated() })

	validated := query.WithValidated(q, q.ValidatedOrNormalized())
	params := validated.Validated()
	assert.Equal(t, []jsonapi.SortField{{Field: "title", Descending: true}}, params.SortFields)
	assert.Equal(t, []string{"title", "body"}, params.SparseFieldSets["posts"])
	assert.Equal(t, "10", params.Page["size"])
	assert.False(t, q.IsValidated())
}
