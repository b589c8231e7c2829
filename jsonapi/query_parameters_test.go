package jsonapi_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/AntonStoeckl/jsonapi-operations-go/jsonapi"
)

func Test_NormalizeQueryParameters_Folds_Bracket_Families(t *testing.T) {
	// act
	normalized := jsonapi.NormalizeQueryParameters(map[string]string{
		"include":       "author,comments.author",
		"fields[posts]": "title,body",
		"page[number]":  "2",
		"page[size]":    "10",
		"sort":          "-createdAt,title",
	})

	// assert
	assert.Equal(t, "author,comments.author", normalized["include"])
	assert.Equal(t, map[string]any{"posts": "title,body"}, normalized["fields"])
	assert.Equal(t, map[string]any{"number": "2", "size": "10"}, normalized["page"])
}

func Test_ParseQueryParameters(t *testing.T) {
	// arrange
	validated := jsonapi.NormalizeQueryParameters(map[string]string{
		"include":          "author,comments.author",
		"fields[posts]":    "title, body",
		"page[number]":     "2",
		"sort":             "-createdAt,title",
		"filter[category]": "go",
		"custom":           "1",
	})

	// act
	params := jsonapi.ParseQueryParameters(validated)

	// assert
	assert.Equal(t, [][]string{{"author"}, {"comments", "author"}}, params.IncludePaths)
	assert.True(t, params.IncludesPath("comments", "author"))
	assert.Equal(t, []string{"title", "body"}, params.SparseFieldSets["posts"])
	assert.Equal(t, map[string]string{"number": "2"}, params.Page)
	assert.Equal(t, []jsonapi.SortField{{Field: "createdAt", Descending: true}, {Field: "title"}}, params.SortFields)
	assert.Equal(t, map[string]any{"category": "go"}, params.Filter)
	assert.Equal(t, map[string]any{"custom": "1"}, params.Unrecognised)
}
