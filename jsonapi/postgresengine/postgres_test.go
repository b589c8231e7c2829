package postgresengine_test

import (
	"context"
	"database/sql"
	"log/slog"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AntonStoeckl/jsonapi-operations-go/jsonapi"
	"github.com/AntonStoeckl/jsonapi-operations-go/jsonapi/postgresengine"
	"github.com/AntonStoeckl/jsonapi-operations-go/testutil/spies"
)

var posts = jsonapi.MustResourceType("posts")
var tags = jsonapi.MustResourceType("tags")
var people = jsonapi.MustResourceType("people")

func givenStore(t *testing.T, db *fakeDB, opts ...postgresengine.Option) postgresengine.Store {
	t.Helper()

	store, err := postgresengine.NewStoreFromAdapter(db, opts...)
	require.NoError(t, err)

	return store
}

func givenPost(id string, title string) *postgresengine.Resource {
	return &postgresengine.Resource{Type: "posts", ID: id, Attributes: map[string]any{"title": title}}
}

func postRow(id string, attributes string) []any {
	return []any{"posts", id, attributes}
}

func tagIdentifiers(ids ...string) []jsonapi.ResourceIdentifier {
	identifiers := make([]jsonapi.ResourceIdentifier, 0, len(ids))
	for _, id := range ids {
		identifiers = append(identifiers, jsonapi.ResourceIdentifier{Type: tags, ID: id})
	}

	return identifiers
}

func withoutTxPrefix(statements []string) []string {
	stripped := make([]string, 0, len(statements))
	for _, statement := range statements {
		stripped = append(stripped, strings.TrimPrefix(statement, txPrefix))
	}

	return stripped
}

func Test_NewStore_Rejects_Nil_Connections(t *testing.T) {
	_, pgxErr := postgresengine.NewStoreFromPGXPool(nil)
	_, replicaErr := postgresengine.NewStoreFromPGXPoolWithReplica(nil, &pgxpool.Pool{})
	_, sqlErr := postgresengine.NewStoreFromSQLDB(nil)
	_, sqlxErr := postgresengine.NewStoreFromSQLX(nil)

	assert.ErrorIs(t, pgxErr, postgresengine.ErrNilDatabaseConnection)
	assert.ErrorIs(t, replicaErr, postgresengine.ErrNilDatabaseConnection)
	assert.ErrorIs(t, sqlErr, postgresengine.ErrNilDatabaseConnection)
	assert.ErrorIs(t, sqlxErr, postgresengine.ErrNilDatabaseConnection)
}

func Test_NewStore_Accepts_Every_Connection_Type(t *testing.T) {
	_, sqlErr := postgresengine.NewStoreFromSQLDB(&sql.DB{})
	_, sqlxErr := postgresengine.NewStoreFromSQLX(&sqlx.DB{})

	assert.NoError(t, sqlErr)
	assert.NoError(t, sqlxErr)
}

func Test_NewStore_Rejects_Invalid_Options(t *testing.T) {
	_, tableErr := postgresengine.NewStoreFromAdapter(newFakeDB(), postgresengine.WithTableNames("", "rels"))
	_, generatorErr := postgresengine.NewStoreFromAdapter(newFakeDB(), postgresengine.WithIDGenerator(nil))

	assert.ErrorIs(t, tableErr, postgresengine.ErrEmptyTableName)
	assert.ErrorIs(t, generatorErr, postgresengine.ErrNilIDGenerator)
}

func Test_Find_Returns_The_Resource_With_Decoded_Attributes(t *testing.T) {
	// arrange
	db := newFakeDB().respond(`FROM "resources"`, postRow("1", `{"title":"hello","views":3}`))
	store := givenStore(t, db)

	// act
	model, found, err := store.Find(context.Background(), posts, jsonapi.MustResourceID("1"))

	// assert
	require.NoError(t, err)
	require.True(t, found)
	resource := model.(*postgresengine.Resource)
	assert.Equal(t, "posts", resource.Type)
	assert.Equal(t, "1", resource.ID)
	assert.Equal(t, "hello", resource.Attributes["title"])
	assert.EqualValues(t, 3, resource.Attributes["views"])

	statements := db.Statements()
	require.Len(t, statements, 1)
	assert.Contains(t, statements[0], `"resource_type" = 'posts'`)
	assert.Contains(t, statements[0], `"id" = '1'`)
	assert.Contains(t, statements[0], "LIMIT 1")
}

func Test_Find_Reports_A_Missing_Resource_As_Not_Found(t *testing.T) {
	// arrange
	store := givenStore(t, newFakeDB())

	// act
	model, found, err := store.Find(context.Background(), posts, jsonapi.MustResourceID("404"))

	// assert
	require.NoError(t, err)
	assert.False(t, found)
	assert.Nil(t, model)
}

func Test_Find_Wraps_Database_Failures(t *testing.T) {
	// arrange
	store := givenStore(t, newFakeDB().failing("SELECT"))

	// act
	_, _, err := store.Find(context.Background(), posts, jsonapi.MustResourceID("1"))

	// assert
	assert.ErrorIs(t, err, postgresengine.ErrQueryingFailed)
	assert.ErrorIs(t, err, errFakeDB)
}

func Test_Create_Generates_An_ID_And_Writes_Relationships_In_One_Transaction(t *testing.T) {
	// arrange
	db := newFakeDB()
	store := givenStore(t, db, postgresengine.WithIDGenerator(func() string { return "generated-1" }))
	author := &jsonapi.ResourceIdentifier{Type: people, ID: "5"}

	// act
	model, err := store.Create(context.Background(), posts, map[string]any{
		"title":  "hello",
		"author": jsonapi.ToOne{Identifier: author},
		"tags":   jsonapi.ToMany{List: tagIdentifiers("3", "4")},
	})

	// assert
	require.NoError(t, err)
	resource := model.(*postgresengine.Resource)
	assert.Equal(t, "generated-1", resource.ID)
	assert.Equal(t, map[string]any{"title": "hello"}, resource.Attributes)

	statements := db.Statements()
	require.Len(t, statements, 7)
	assert.Equal(t, stmtBegin, statements[0])
	assert.Contains(t, statements[1], txPrefix+`INSERT INTO "resources"`)
	assert.Contains(t, statements[1], `'{"title":"hello"}'::jsonb`)
	assert.Contains(t, statements[1], `'generated-1'`)
	assert.Contains(t, statements[2], txPrefix+`DELETE FROM "resource_relationships"`)
	assert.Contains(t, statements[2], `"field" = 'author'`)
	assert.Contains(t, statements[3], `'people'`)
	assert.Contains(t, statements[3], "ON CONFLICT DO NOTHING")
	assert.Contains(t, statements[4], `"field" = 'tags'`)
	assert.Contains(t, statements[5], `'3'`)
	assert.Contains(t, statements[5], `'4'`)
	assert.Equal(t, stmtCommit, statements[6])
}

func Test_Create_Uses_A_Client_Generated_ID(t *testing.T) {
	// arrange
	db := newFakeDB()
	store := givenStore(t, db)

	// act
	model, err := store.Create(context.Background(), tags, map[string]any{"id": "go", "name": "Go"})

	// assert
	require.NoError(t, err)
	assert.Equal(t, "go", model.(*postgresengine.Resource).ID)
	assert.NotContains(t, model.(*postgresengine.Resource).Attributes, "id")
	assert.Len(t, db.StatementsContaining(`'go'`), 1)
}

func Test_Create_Rolls_Back_When_A_Statement_Fails(t *testing.T) {
	// arrange
	db := newFakeDB().failing(`INSERT INTO "resource_relationships"`)
	store := givenStore(t, db)

	// act
	_, err := store.Create(context.Background(), posts, map[string]any{
		"title": "hello",
		"tags":  jsonapi.ToMany{List: tagIdentifiers("3")},
	})

	// assert
	assert.ErrorIs(t, err, postgresengine.ErrExecutingFailed)
	assert.Contains(t, db.Statements(), stmtRollback)
	assert.NotContains(t, db.Statements(), stmtCommit)
}

func Test_Update_Merges_Attributes_And_Returns_The_Stored_Document(t *testing.T) {
	// arrange
	db := newFakeDB().respond("RETURNING", []any{`{"title":"new","body":"kept"}`})
	store := givenStore(t, db)
	current := givenPost("1", "old")

	// act
	model, err := store.Update(context.Background(), posts, current, map[string]any{"title": "new"})

	// assert
	require.NoError(t, err)
	updated := model.(*postgresengine.Resource)
	assert.Equal(t, map[string]any{"title": "new", "body": "kept"}, updated.Attributes)
	assert.Equal(t, "old", current.Attributes["title"], "the passed model must stay unchanged")

	merges := db.StatementsContaining(`UPDATE "resources"`)
	require.Len(t, merges, 1)
	assert.Contains(t, merges[0], `"attributes" || '{"title":"new"}'::jsonb`)
	assert.Contains(t, merges[0], `RETURNING "attributes"`)
}

func Test_Update_With_Relationships_Only_Skips_The_Attribute_Merge(t *testing.T) {
	// arrange
	db := newFakeDB()
	store := givenStore(t, db)

	// act
	model, err := store.Update(context.Background(), posts, givenPost("1", "old"), map[string]any{
		"author": jsonapi.ToOne{},
	})

	// assert
	require.NoError(t, err)
	assert.Equal(t, "old", model.(*postgresengine.Resource).Attributes["title"])
	assert.Empty(t, db.StatementsContaining("UPDATE"))
	assert.Len(t, db.StatementsContaining(`"field" = 'author'`), 1)
	assert.Empty(t, db.StatementsContaining("INSERT"))
}

func Test_Delete_Removes_The_Relationships_And_The_Resource(t *testing.T) {
	// arrange
	db := newFakeDB()
	store := givenStore(t, db)

	// act
	err := store.Delete(context.Background(), posts, givenPost("1", "old"))

	// assert
	require.NoError(t, err)
	assert.Equal(t, []string{
		stmtBegin,
		db.StatementsContaining(`DELETE FROM "resource_relationships"`)[0],
		db.StatementsContaining(`DELETE FROM "resources"`)[0],
		stmtCommit,
	}, db.Statements())
	assert.Contains(t, db.StatementsContaining(`DELETE FROM "resource_relationships"`)[0], `"related_id" = '1'`)
}

func Test_Store_Rejects_Models_It_Did_Not_Create(t *testing.T) {
	store := givenStore(t, newFakeDB())

	_, updateErr := store.Update(context.Background(), posts, "not a resource", nil)
	deleteErr := store.Delete(context.Background(), posts, (*postgresengine.Resource)(nil))
	_, idErr := store.ResourceIDOf(posts, struct{}{})

	assert.ErrorIs(t, updateErr, postgresengine.ErrUnknownModel)
	assert.ErrorIs(t, deleteErr, postgresengine.ErrUnknownModel)
	assert.ErrorIs(t, idErr, postgresengine.ErrUnknownModel)
}

func Test_ResourceIDOf_Returns_The_ID(t *testing.T) {
	store := givenStore(t, newFakeDB())

	id, err := store.ResourceIDOf(posts, givenPost("7", "x"))

	require.NoError(t, err)
	assert.Equal(t, "7", id.String())
}

func Test_ModifyToMany_Writes_Per_Mode(t *testing.T) {
	testCases := []struct {
		mode     jsonapi.ToManyMode
		expected []string
	}{
		{mode: jsonapi.ToManyAttach, expected: []string{`INSERT INTO "resource_relationships"`}},
		{mode: jsonapi.ToManyDetach, expected: []string{`DELETE FROM "resource_relationships"`}},
		{mode: jsonapi.ToManySync, expected: []string{`DELETE FROM "resource_relationships"`, `INSERT INTO "resource_relationships"`}},
	}

	for _, tc := range testCases {
		t.Run(string(tc.mode), func(t *testing.T) {
			// arrange
			db := newFakeDB().respond(`JOIN "resources"`, []any{"tags", "3", `{"name":"go"}`})
			store := givenStore(t, db)

			// act
			related, err := store.ModifyToMany(context.Background(), posts, givenPost("1", "x"), "tags", tc.mode, tagIdentifiers("3"))

			// assert
			require.NoError(t, err)
			require.Len(t, related, 1)
			assert.Equal(t, "3", related.([]*postgresengine.Resource)[0].ID)

			writes := withoutTxPrefix(db.Statements()[1 : len(db.Statements())-2])
			require.Len(t, writes, len(tc.expected))
			for i, fragment := range tc.expected {
				assert.Contains(t, writes[i], fragment)
			}
		})
	}
}

func Test_ModifyToMany_Detach_Targets_Only_The_Given_Identifiers(t *testing.T) {
	// arrange
	db := newFakeDB()
	store := givenStore(t, db)

	// act
	_, err := store.ModifyToMany(context.Background(), posts, givenPost("1", "x"), "tags", jsonapi.ToManyDetach, tagIdentifiers("3"))

	// assert
	require.NoError(t, err)
	deletes := db.StatementsContaining("DELETE")
	require.Len(t, deletes, 1)
	assert.Contains(t, deletes[0], `"related_type" = 'tags'`)
	assert.Contains(t, deletes[0], `"related_id" = '3'`)
}

func Test_ModifyToMany_Rejects_An_Unknown_Mode(t *testing.T) {
	// arrange
	db := newFakeDB()
	store := givenStore(t, db)

	// act
	_, err := store.ModifyToMany(context.Background(), posts, givenPost("1", "x"), "tags", "replace", nil)

	// assert
	assert.ErrorIs(t, err, postgresengine.ErrUnknownToManyMode)
	assert.Contains(t, db.Statements(), stmtRollback)
}

func Test_ModifyToOne_Returns_The_Related_Resource_Or_Nil(t *testing.T) {
	t.Run("set", func(t *testing.T) {
		// arrange
		db := newFakeDB().respond(`FROM "resources"`, []any{"people", "5", `{"name":"Ada"}`})
		store := givenStore(t, db)

		// act
		related, err := store.ModifyToOne(context.Background(), posts, givenPost("1", "x"), "author",
			&jsonapi.ResourceIdentifier{Type: people, ID: "5"})

		// assert
		require.NoError(t, err)
		assert.Equal(t, "Ada", related.(*postgresengine.Resource).Attributes["name"])
	})

	t.Run("cleared", func(t *testing.T) {
		// arrange
		db := newFakeDB()
		store := givenStore(t, db)

		// act
		related, err := store.ModifyToOne(context.Background(), posts, givenPost("1", "x"), "author", nil)

		// assert
		require.NoError(t, err)
		assert.Nil(t, related)
		assert.Empty(t, db.StatementsContaining("INSERT"))
		assert.Len(t, db.StatementsContaining(`DELETE FROM "resource_relationships"`), 1)
	})
}

func Test_QueryAll_Applies_Filter_Sort_And_Page(t *testing.T) {
	// arrange
	db := newFakeDB().respond(`FROM "resources"`, postRow("2", `{"title":"b"}`), postRow("1", `{"title":"a"}`))
	store := givenStore(t, db)
	params := jsonapi.ParseQueryParameters(map[string]any{
		"sort":   "-title",
		"filter": map[string]any{"status": "published"},
		"page":   map[string]any{"size": "10", "number": "3"},
	})

	// act
	data, err := store.QueryAll(context.Background(), posts, params)

	// assert
	require.NoError(t, err)
	resources := data.([]*postgresengine.Resource)
	require.Len(t, resources, 2)
	assert.Equal(t, "2", resources[0].ID)

	statement := db.Statements()[0]
	assert.Contains(t, statement, `("attributes"->>'status' = 'published')`)
	assert.Contains(t, statement, `ORDER BY "attributes"->>'title' DESC, "id" ASC`)
	assert.Contains(t, statement, "LIMIT 10 OFFSET 20")
}

func Test_QueryAll_Without_Results_Returns_An_Empty_Collection(t *testing.T) {
	store := givenStore(t, newFakeDB())

	data, err := store.QueryAll(context.Background(), posts, jsonapi.QueryParameters{})

	require.NoError(t, err)
	assert.NotNil(t, data)
	assert.Empty(t, data)
}

func Test_QueryToMany_Reads_The_Targets_In_Insertion_Order(t *testing.T) {
	// arrange
	db := newFakeDB().respond(`JOIN "resources"`, []any{"tags", "4", `{}`}, []any{"tags", "3", `{}`})
	store := givenStore(t, db)

	// act
	data, err := store.QueryToMany(context.Background(), posts, givenPost("1", "x"), "tags", jsonapi.QueryParameters{})

	// assert
	require.NoError(t, err)
	resources := data.([]*postgresengine.Resource)
	require.Len(t, resources, 2)
	assert.Equal(t, "4", resources[0].ID)
	assert.Contains(t, db.Statements()[0], `"rel"."field" = 'tags'`)
	assert.Contains(t, db.Statements()[0], `ORDER BY "rel"."position" ASC`)
}

func Test_QueryToOne_Returns_Nil_For_An_Empty_Relationship(t *testing.T) {
	store := givenStore(t, newFakeDB())

	data, err := store.QueryToOne(context.Background(), posts, givenPost("1", "x"), "author", jsonapi.QueryParameters{})

	require.NoError(t, err)
	assert.Nil(t, data)
}

func Test_InTransaction_Joins_An_Open_Transaction(t *testing.T) {
	// arrange
	db := newFakeDB()
	store := givenStore(t, db)

	// act
	err := store.InTransaction(context.Background(), func(ctx context.Context) error {
		if _, err := store.Create(ctx, tags, map[string]any{"name": "go"}); err != nil {
			return err
		}

		return store.Delete(ctx, posts, givenPost("1", "x"))
	})

	// assert
	require.NoError(t, err)
	assert.Len(t, db.StatementsContaining(stmtBegin), 1)
	assert.Len(t, db.StatementsContaining(stmtCommit), 1)
	assert.Len(t, db.StatementsContaining(txPrefix), 3)
}

func Test_InTransaction_Rolls_Back_When_The_Callback_Fails(t *testing.T) {
	// arrange
	db := newFakeDB()
	store := givenStore(t, db)

	// act
	err := store.InTransaction(context.Background(), func(ctx context.Context) error {
		return errFakeDB
	})

	// assert
	assert.ErrorIs(t, err, errFakeDB)
	assert.Equal(t, []string{stmtBegin, stmtRollback}, db.Statements())
}

func Test_InTransaction_Reports_A_Failed_Commit(t *testing.T) {
	store := givenStore(t, newFakeDB().failing(stmtCommit))

	err := store.InTransaction(context.Background(), func(ctx context.Context) error { return nil })

	assert.ErrorIs(t, err, postgresengine.ErrCommittingTransactionFailed)
}

func Test_Migrate_Creates_The_Tables(t *testing.T) {
	// arrange
	db := newFakeDB()
	store := givenStore(t, db, postgresengine.WithTableNames("api.resources", "api.links"))

	// act
	err := store.Migrate(context.Background())

	// assert
	require.NoError(t, err)
	statements := db.Statements()
	require.Len(t, statements, 3)
	assert.Contains(t, statements[0], `CREATE TABLE IF NOT EXISTS "api"."resources"`)
	assert.Contains(t, statements[1], `CREATE TABLE IF NOT EXISTS "api"."links"`)
	assert.Contains(t, statements[2], `"api_links_related_idx"`)
}

func Test_Store_Records_Metrics_Spans_And_Logs(t *testing.T) {
	// arrange
	metricsSpy := spies.NewMetricsCollectorSpy()
	tracingSpy := spies.NewTracingCollectorSpy()
	logSpy := spies.NewLogHandlerSpy(false)
	db := newFakeDB().failing(`DELETE FROM "resources"`)
	store := givenStore(t, db,
		postgresengine.WithMetrics(metricsSpy),
		postgresengine.WithTracing(tracingSpy),
		postgresengine.WithLogger(slog.New(logSpy)),
	)

	// act
	_, findErr := store.Find(context.Background(), posts, jsonapi.MustResourceID("1"))
	deleteErr := store.Delete(context.Background(), posts, givenPost("1", "x"))

	// assert
	require.NoError(t, findErr)
	require.Error(t, deleteErr)

	assert.True(t, metricsSpy.HasDurationRecordForMetric(postgresengine.StoreDurationMetric).
		WithStatus("success").
		WithLabel(postgresengine.LogAttrOperation, "find").
		WithLabel(postgresengine.LogAttrResourceType, "posts").
		Assert())
	assert.True(t, metricsSpy.HasCounterRecordForMetric(postgresengine.StoreErrorsMetric).
		WithStatus("error").
		WithLabel(postgresengine.LogAttrOperation, "delete").
		Assert())
	assert.True(t, tracingSpy.HasSpanRecordForName(postgresengine.SpanNamePrefix+"find").
		WithStatus("success").
		Assert())
	assert.True(t, tracingSpy.HasSpanRecordForName(postgresengine.SpanNamePrefix+"delete").
		WithStatus("error").
		Assert())
	assert.True(t, logSpy.HasDebugLogWithMessage("executed sql for: find").WithDurationMS().Assert())
	assert.True(t, logSpy.HasInfoLogWithMessage("store operation: find").Assert())
	assert.True(t, logSpy.HasErrorLogWithMessage("database statement execution failed").Assert())
}
