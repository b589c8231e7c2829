package query_test

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AntonStoeckl/jsonapi-operations-go/jsonapi"
	"github.com/AntonStoeckl/jsonapi-operations-go/jsonapi/query"
	"github.com/AntonStoeckl/jsonapi-operations-go/testutil/fakes"
	"github.com/AntonStoeckl/jsonapi-operations-go/testutil/spies"
)

var postsSchema = jsonapi.SchemaMap{
	"posts": {
		"author": jsonapi.RelationshipToOne,
		"tags":   jsonapi.RelationshipToMany,
	},
}

type fixture struct {
	recorder   *fakes.Recorder
	store      *fakes.MemoryStore
	policy     *fakes.Policy
	rules      *fakes.Rules
	dispatcher *query.Dispatcher
}

func givenFixture(t testing.TB, opts ...query.Option) fixture {
	recorder := fakes.NewRecorder()
	store := fakes.NewMemoryStore(fakes.WithRecorder(recorder))
	policy := fakes.NewPolicy(recorder)
	rules := fakes.NewRules(recorder)

	allOpts := append([]query.Option{
		query.WithSchema(postsSchema),
		query.WithAuthorizer(policy),
		query.WithValidators(rules),
	}, opts...)
	dispatcher, err := query.NewDispatcher(store, allOpts...)
	require.NoError(t, err, "error in arranging test data")

	return fixture{recorder: recorder, store: store, policy: policy, rules: rules, dispatcher: dispatcher}
}

func givenSeededPost(f fixture) {
	post := f.store.Seed("posts", "1", map[string]any{"title": "Hello"})
	f.store.Seed("people", "5", map[string]any{"name": "Ada"})
	f.store.Seed("tags", "3", nil)
	f.store.Seed("tags", "4", nil)

	post.ToOne["author"] = &jsonapi.ResourceIdentifier{Type: jsonapi.MustResourceType("people"), ID: "5"}
	post.ToMany["tags"] = []jsonapi.ResourceIdentifier{
		{Type: jsonapi.MustResourceType("tags"), ID: "3"},
		{Type: jsonapi.MustResourceType("tags"), ID: "4"},
	}
}

func recordIDs(t testing.TB, data any) []string {
	records, ok := data.([]*fakes.Record)
	require.True(t, ok, "expected a list of records, got %T", data)

	ids := make([]string, 0, len(records))
	for _, record := range records {
		ids = append(ids, record.ID)
	}

	return ids
}

func Test_Dispatch_FetchMany_Returns_The_Sorted_Collection(t *testing.T) {
	// arrange
	f := givenFixture(t)
	f.store.Seed("posts", "1", map[string]any{"title": "b"})
	f.store.Seed("posts", "2", map[string]any{"title": "a"})

	// act
	result, err := f.dispatcher.Dispatch(context.Background(), givenFetchMany(t, map[string]string{"sort": "title"}))

	// assert
	require.NoError(t, err)
	require.True(t, result.DidSucceed())
	assert.Equal(t, []string{"2", "1"}, recordIDs(t, result.Payload().Data()))
	assert.Equal(t, []string{"authorize.Index", "validate.QueryMany", "store.QueryAll"}, f.recorder.Calls())
}

func Test_Dispatch_FetchOne_Resolves_Authorizes_Validates_And_Reads(t *testing.T) {
	// arrange
	f := givenFixture(t)
	givenSeededPost(f)

	// act
	result, err := f.dispatcher.Dispatch(context.Background(), givenFetchOne(t, "1", map[string]string{"include": "author"}))

	// assert
	require.NoError(t, err)
	require.True(t, result.DidSucceed())
	assert.Equal(t, "1", result.Payload().Data().(*fakes.Record).ID)
	assert.Equal(t, []string{"store.Find", "authorize.Show", "validate.QueryOne", "store.QueryOne"}, f.recorder.Calls())
}

func Test_Dispatch_FetchOne_Missing_Resource_Fails_With_Not_Found(t *testing.T) {
	// arrange
	f := givenFixture(t)

	// act
	result, err := f.dispatcher.Dispatch(context.Background(), givenFetchOne(t, "99", nil))

	// assert
	require.NoError(t, err)
	require.True(t, result.DidFail())
	assert.Equal(t, 404, result.Errors().Status())
	assert.Equal(t, []string{"store.Find"}, f.recorder.Calls())
}

func Test_Dispatch_Related_Reads_Follow_The_Relationship_Kind(t *testing.T) {
	tests := []struct {
		name              string
		q                 func(t testing.TB) query.Query
		expectedAuthorize string
		expectedValidate  string
		expectedStore     string
	}{
		{
			name:              "related to-one",
			q:                 func(t testing.TB) query.Query { return givenFetchRelated(t, "1", "author") },
			expectedAuthorize: "authorize.ShowRelated",
			expectedValidate:  "validate.QueryOne",
			expectedStore:     "store.QueryToOne",
		},
		{
			name:              "related to-many",
			q:                 func(t testing.TB) query.Query { return givenFetchRelated(t, "1", "tags") },
			expectedAuthorize: "authorize.ShowRelated",
			expectedValidate:  "validate.QueryMany",
			expectedStore:     "store.QueryToMany",
		},
		{
			name:              "relationship to-many",
			q:                 func(t testing.TB) query.Query { return givenFetchRelationship(t, "1", "tags") },
			expectedAuthorize: "authorize.ShowRelationship",
			expectedValidate:  "validate.QueryMany",
			expectedStore:     "store.QueryToMany",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			// arrange
			f := givenFixture(t)
			givenSeededPost(f)

			// act
			result, err := f.dispatcher.Dispatch(context.Background(), tc.q(t))

			// assert
			require.NoError(t, err)
			require.True(t, result.DidSucceed())
			assert.Equal(t, []string{"store.Find", tc.expectedAuthorize, tc.expectedValidate, tc.expectedStore}, f.recorder.Calls())
		})
	}
}

func Test_Dispatch_FetchRelated_Returns_The_Related_Resources(t *testing.T) {
	// arrange
	f := givenFixture(t)
	givenSeededPost(f)

	// act
	author, err := f.dispatcher.Dispatch(context.Background(), givenFetchRelated(t, "1", "author"))
	require.NoError(t, err)
	tags, err := f.dispatcher.Dispatch(context.Background(), givenFetchRelated(t, "1", "tags"))
	require.NoError(t, err)

	// assert
	assert.Equal(t, "Ada", author.Payload().Data().(*fakes.Record).Attributes["name"])
	assert.Equal(t, []string{"3", "4"}, recordIDs(t, tags.Payload().Data()))
}

func Test_Dispatch_Unknown_Relationship_Fails_With_Not_Found(t *testing.T) {
	// arrange
	f := givenFixture(t)
	givenSeededPost(f)

	// act
	result, err := f.dispatcher.Dispatch(context.Background(), givenFetchRelated(t, "1", "comments"))

	// assert
	require.NoError(t, err)
	require.True(t, result.DidFail())
	assert.Equal(t, 404, result.Errors().Status())
}

func Test_Dispatch_Relationship_Reads_Need_A_Schema(t *testing.T) {
	// arrange
	store := fakes.NewMemoryStore()
	store.Seed("posts", "1", nil)
	dispatcher, err := query.NewDispatcher(store)
	require.NoError(t, err)

	// act
	_, err = dispatcher.Dispatch(context.Background(), givenFetchRelated(t, "1", "author"))

	// assert
	assert.ErrorIs(t, err, query.ErrNoSchema)
}

func Test_Dispatch_Failed_Validation_Yields_400_Naming_The_Parameter(t *testing.T) {
	// arrange
	f := givenFixture(t)
	f.rules.Reject("QueryMany", jsonapi.FieldFailure{Field: "sort", Detail: "Sort parameter title is not allowed."})

	// act
	result, err := f.dispatcher.Dispatch(context.Background(), givenFetchMany(t, map[string]string{"sort": "title"}))

	// assert
	require.NoError(t, err)
	require.True(t, result.DidFail())
	errs := result.Errors().All()
	require.Len(t, errs, 1)
	assert.Equal(t, "400", errs[0].Status)
	require.NotNil(t, errs[0].Source)
	assert.Equal(t, "sort", errs[0].Source.Parameter)
	assert.Zero(t, f.recorder.Count("store.QueryAll"))
}

func Test_Dispatch_Denied_Authorization_Short_Circuits(t *testing.T) {
	// arrange
	f := givenFixture(t)
	f.policy.Deny("Index")

	// act
	result, err := f.dispatcher.Dispatch(context.Background(), givenFetchMany(t, nil))

	// assert
	require.NoError(t, err)
	assert.Equal(t, 403, result.Errors().Status())
	assert.Equal(t, []string{"authorize.Index"}, f.recorder.Calls())
}

func Test_Dispatch_Skipped_Capabilities_Are_Not_Called(t *testing.T) {
	// arrange
	f := givenFixture(t)
	f.store.Seed("posts", "1", nil)
	q := query.SkipValidation(query.SkipAuthorization(givenFetchMany(t, nil)))

	// act
	result, err := f.dispatcher.Dispatch(context.Background(), q)

	// assert
	require.NoError(t, err)
	require.True(t, result.DidSucceed())
	assert.Equal(t, []string{"store.QueryAll"}, f.recorder.Calls())
}

func Test_Dispatch_Read_Hooks_Receive_Model_And_Data(t *testing.T) {
	// arrange
	f := givenFixture(t)
	givenSeededPost(f)

	var readingData, readData any
	var readingModel jsonapi.Model
	hooks := jsonapi.Hooks{
		Reading: func(_ context.Context, _ *http.Request, model jsonapi.Model, data any, _ jsonapi.QueryInput) error {
			readingModel, readingData = model, data
			return nil
		},
		Read: func(_ context.Context, _ *http.Request, _ jsonapi.Model, data any, _ jsonapi.QueryInput) error {
			readData = data
			return nil
		},
	}

	// act
	result, err := f.dispatcher.Dispatch(context.Background(), query.WithHooks(givenFetchOne(t, "1", nil), hooks))

	// assert
	require.NoError(t, err)
	require.True(t, result.DidSucceed())
	assert.Equal(t, "1", readingModel.(*fakes.Record).ID)
	assert.Nil(t, readingData)
	assert.Equal(t, result.Payload().Data(), readData)
}

func Test_Dispatch_Aborting_Search_Hook_Yields_A_Failed_Result(t *testing.T) {
	// arrange
	f := givenFixture(t)
	hooks := jsonapi.Hooks{
		Searching: func(_ context.Context, _ *http.Request, _ jsonapi.Model, _ any, _ jsonapi.QueryInput) error {
			return jsonapi.Abort(jsonapi.BadRequestError("Filtering is required.", ""))
		},
	}

	// act
	result, err := f.dispatcher.Dispatch(context.Background(), query.WithHooks(givenFetchMany(t, nil), hooks))

	// assert
	require.NoError(t, err)
	require.True(t, result.DidFail())
	assert.Equal(t, 400, result.Errors().Status())
	assert.Zero(t, f.recorder.Count("store.QueryAll"))
}

func Test_Dispatch_Store_Failure_Is_An_Infrastructure_Error(t *testing.T) {
	// arrange
	store := fakes.NewMemoryStore(fakes.FailingOn("QueryAll", errors.New("timeout")))
	metricsSpy := spies.NewMetricsCollectorSpy()
	logSpy := spies.NewLogHandlerSpy(false)
	dispatcher, err := query.NewDispatcher(store, query.WithMetrics(metricsSpy), query.WithLogger(slog.New(logSpy)))
	require.NoError(t, err)

	// act
	_, err = dispatcher.Dispatch(context.Background(), givenFetchMany(t, nil))

	// assert
	assert.ErrorIs(t, err, jsonapi.ErrStoreCallFailed)
	assert.True(t, metricsSpy.HasCounterRecordForMetric(query.DispatchCallsMetric).
		WithStatus("error").
		WithLabel(query.LogAttrQueryType, query.KindFetchMany).
		Assert())
	assert.True(t, logSpy.HasErrorLogWithMessage(query.LogMsgDispatchError).Assert())
}

func Test_Dispatch_Records_Metrics_And_Spans(t *testing.T) {
	// arrange
	metricsSpy := spies.NewMetricsCollectorSpy()
	tracingSpy := spies.NewTracingCollectorSpy()
	f := givenFixture(t, query.WithMetrics(metricsSpy), query.WithTracing(tracingSpy))

	// act
	_, err := f.dispatcher.Dispatch(context.Background(), givenFetchMany(t, nil))

	// assert
	require.NoError(t, err)
	assert.True(t, metricsSpy.HasDurationRecordForMetric(query.DispatchDurationMetric).
		WithStatus("success").
		WithLabel(query.LogAttrResourceType, "posts").
		Assert())
	assert.True(t, tracingSpy.HasSpanRecordForName(query.SpanNameDispatch).
		WithStatus("success").
		WithStartAttribute(query.LogAttrQueryType, query.KindFetchMany).
		Assert())
}
