package atomic_test

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AntonStoeckl/jsonapi-operations-go/jsonapi"
	"github.com/AntonStoeckl/jsonapi-operations-go/jsonapi/atomic"
	"github.com/AntonStoeckl/jsonapi-operations-go/jsonapi/command"
	"github.com/AntonStoeckl/jsonapi-operations-go/testutil/fakes"
	"github.com/AntonStoeckl/jsonapi-operations-go/testutil/spies"
)

type fixture struct {
	recorder  *fakes.Recorder
	store     *fakes.MemoryStore
	rules     *fakes.Rules
	processor *atomic.Processor
}

func givenFixture(t testing.TB, storeOpts []fakes.MemoryStoreOption, opts ...atomic.Option) fixture {
	return newFixture(t, storeOpts, false, opts)
}

func givenTransactionalFixture(t testing.TB, storeOpts ...fakes.MemoryStoreOption) fixture {
	return newFixture(t, storeOpts, true, nil)
}

func newFixture(t testing.TB, storeOpts []fakes.MemoryStoreOption, transactional bool, opts []atomic.Option) fixture {
	recorder := fakes.NewRecorder()
	store := fakes.NewMemoryStore(append([]fakes.MemoryStoreOption{fakes.WithRecorder(recorder)}, storeOpts...)...)
	rules := fakes.NewRules(recorder)

	dispatcher, err := command.NewDispatcher(store, command.WithValidators(rules))
	require.NoError(t, err, "error in arranging test data")

	if transactional {
		opts = append(opts, atomic.WithTransactor(store))
	}

	processor, err := atomic.NewProcessor(dispatcher, store, opts...)
	require.NoError(t, err, "error in arranging test data")

	return fixture{recorder: recorder, store: store, rules: rules, processor: processor}
}

func givenCreateTag(t testing.TB, lid string, name string) jsonapi.Create {
	op, err := jsonapi.NewCreate(jsonapi.NoTarget(), jsonapi.ResourceObject{
		Type:       jsonapi.MustResourceType("tags"),
		LID:        lid,
		Attributes: map[string]any{"name": name},
	}, nil)
	require.NoError(t, err, "error in arranging test data")

	return op
}

func givenAttachTags(t testing.TB, postID string, identifiers ...jsonapi.ResourceIdentifier) jsonapi.UpdateToMany {
	op, err := jsonapi.NewUpdateToMany(jsonapi.OpAdd, jsonapi.TargetRef(givenIDRef(t, "posts", postID, "tags")), identifiers, nil)
	require.NoError(t, err, "error in arranging test data")

	return op
}

func givenUpdatePost(t testing.TB, id string, title string) jsonapi.Update {
	op, err := jsonapi.NewUpdate(jsonapi.NoTarget(), jsonapi.ResourceObject{
		Type:       jsonapi.MustResourceType("posts"),
		ID:         id,
		Attributes: map[string]any{"title": title},
	}, nil)
	require.NoError(t, err, "error in arranging test data")

	return op
}

func givenDeletePost(t testing.TB, id string) jsonapi.Delete {
	op, err := jsonapi.NewDelete(jsonapi.TargetRef(givenIDRef(t, "posts", id, "")), nil)
	require.NoError(t, err, "error in arranging test data")

	return op
}

func Test_Execute_Resolves_Local_IDs_Created_Earlier_In_The_Batch(t *testing.T) {
	// arrange
	f := givenFixture(t, []fakes.MemoryStoreOption{fakes.WithIDSequenceStart(9)})
	f.store.Seed("posts", "1", nil)

	ops := []jsonapi.Operation{
		givenCreateTag(t, "a", "x"),
		givenAttachTags(t, "1", tagLID("a")),
	}

	// act
	results, err := f.processor.Execute(context.Background(), nil, ops)

	// assert
	require.NoError(t, err)
	require.False(t, results.Failed())
	assert.Equal(t, -1, results.FailedIndex())
	require.Equal(t, 2, results.Len())

	created := results.All()[0].Payload().Data().(*fakes.Record)
	assert.Equal(t, "9", created.ID)

	post, _ := f.store.Get("posts", "1")
	assert.Equal(t, []jsonapi.ResourceIdentifier{tagID("9")}, post.ToMany["tags"])
	assert.Equal(t, []string{
		"validate.Store", "store.Create",
		"store.Find", "validate.Relation", "store.ModifyToMany.attach",
	}, f.recorder.Calls())
}

func Test_Execute_Stops_At_The_First_Failed_Operation(t *testing.T) {
	// arrange
	f := givenFixture(t, nil)
	f.store.Seed("posts", "1", nil)
	f.store.Seed("posts", "2", nil)
	f.rules.Reject("Update", jsonapi.FieldFailure{Field: "title", Detail: "The title is too long."})

	ops := []jsonapi.Operation{
		givenCreateTag(t, "", "x"),
		givenUpdatePost(t, "1", "far too long"),
		givenDeletePost(t, "2"),
	}

	// act
	results, err := f.processor.Execute(context.Background(), nil, ops)

	// assert
	require.NoError(t, err)
	require.True(t, results.Failed())
	assert.Equal(t, 1, results.FailedIndex())
	require.Equal(t, 2, results.Len())
	assert.True(t, results.All()[0].DidSucceed())
	assert.True(t, results.All()[1].DidFail())

	errs := results.Errors().All()
	require.Len(t, errs, 1)
	assert.Equal(t, "422", errs[0].Status)
	assert.Equal(t, "/atomic:operations/1/data/attributes/title", errs[0].Source.Pointer)

	assert.Zero(t, f.recorder.Count("store.Delete"))
	assert.Equal(t, 1, f.store.Count("tags"), "without a transactor applied operations stay applied")
	assert.Equal(t, 2, f.store.Count("posts"))
}

func Test_Execute_Rejects_Ordering_Errors_Before_Running_Anything(t *testing.T) {
	tests := []struct {
		name            string
		ops             func(t testing.TB) []jsonapi.Operation
		expectedIndex   int
		expectedCode    string
		expectedPointer string
	}{
		{
			name: "lid used before it is declared",
			ops: func(t testing.TB) []jsonapi.Operation {
				return []jsonapi.Operation{
					givenCreateTag(t, "", "x"),
					givenAttachTags(t, "1", tagLID("a")),
					givenCreateTag(t, "a", "y"),
				}
			},
			expectedIndex:   1,
			expectedCode:    atomic.CodeUndeclaredLocalID,
			expectedPointer: "/atomic:operations/1",
		},
		{
			name: "lid declared twice",
			ops: func(t testing.TB) []jsonapi.Operation {
				return []jsonapi.Operation{
					givenCreateTag(t, "a", "x"),
					givenCreateTag(t, "a", "y"),
				}
			},
			expectedIndex:   1,
			expectedCode:    atomic.CodeDuplicateLocalID,
			expectedPointer: "/atomic:operations/1/data/lid",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			// arrange
			f := givenFixture(t, nil)
			f.store.Seed("posts", "1", nil)

			// act
			results, err := f.processor.Execute(context.Background(), nil, tc.ops(t))

			// assert
			require.NoError(t, err)
			require.True(t, results.Failed())
			assert.Equal(t, tc.expectedIndex, results.FailedIndex())
			assert.Equal(t, 1, results.Len())
			assert.Equal(t, 400, results.Errors().Status())

			errs := results.Errors().All()
			require.Len(t, errs, 1)
			assert.Equal(t, tc.expectedCode, errs[0].Code)
			assert.Equal(t, tc.expectedPointer, errs[0].Source.Pointer)
			assert.Empty(t, f.recorder.Calls())
		})
	}
}

func Test_Execute_Rejected_Batch_Reports_The_Failing_Operation_By_Index_Only(t *testing.T) {
	// arrange
	f := givenFixture(t, nil)
	f.store.Seed("posts", "1", nil)

	ops := []jsonapi.Operation{
		givenCreateTag(t, "a", "x"),
		givenCreateTag(t, "b", "y"),
		givenAttachTags(t, "1", tagLID("zz")),
	}

	// act
	results, err := f.processor.Execute(context.Background(), nil, ops)

	// assert
	require.NoError(t, err)
	require.True(t, results.Failed())
	assert.Equal(t, 2, results.FailedIndex())
	require.Equal(t, 1, results.Len(), "nothing ran, so only the failure is reported")

	failure, ok := results.Failure()
	require.True(t, ok)
	assert.Equal(t, failure, results.All()[0])
	assert.True(t, failure.DidFail())
	assert.Equal(t, "/atomic:operations/2", results.Errors().All()[0].Source.Pointer)
	assert.Zero(t, f.store.Count("tags"))
	assert.Empty(t, f.recorder.Calls())
}

func Test_Execute_Rolls_Back_A_Failed_Batch_With_A_Transactor(t *testing.T) {
	// arrange
	f := givenTransactionalFixture(t)
	f.store.Seed("posts", "1", map[string]any{"title": "old"})

	ops := []jsonapi.Operation{
		givenCreateTag(t, "a", "x"),
		givenUpdatePost(t, "1", "new"),
		givenDeletePost(t, "99"),
	}

	// act
	results, err := f.processor.Execute(context.Background(), nil, ops)

	// assert
	require.NoError(t, err)
	require.True(t, results.Failed())
	assert.Equal(t, 2, results.FailedIndex())
	assert.Equal(t, 404, results.Errors().Status())

	assert.Zero(t, f.store.Count("tags"))
	post, _ := f.store.Get("posts", "1")
	assert.Equal(t, "old", post.Attributes["title"])
	assert.Equal(t, 1, f.recorder.Count("store.Rollback"))
	assert.Zero(t, f.recorder.Count("store.Commit"))
}

func Test_Execute_Commits_A_Successful_Batch_With_A_Transactor(t *testing.T) {
	// arrange
	f := givenTransactionalFixture(t)

	// act
	results, err := f.processor.Execute(context.Background(), nil, []jsonapi.Operation{givenCreateTag(t, "a", "x")})

	// assert
	require.NoError(t, err)
	assert.False(t, results.Failed())
	assert.Equal(t, 1, f.store.Count("tags"))
	assert.Equal(t, "store.Begin", f.recorder.Calls()[0])
	assert.Equal(t, "store.Commit", f.recorder.Calls()[len(f.recorder.Calls())-1])
}

func Test_Execute_Returns_Infrastructure_Errors_And_Rolls_Back(t *testing.T) {
	// arrange
	f := givenTransactionalFixture(t, fakes.FailingOn("Update", errors.New("connection reset")))
	f.store.Seed("posts", "1", nil)

	ops := []jsonapi.Operation{
		givenCreateTag(t, "", "x"),
		givenUpdatePost(t, "1", "new"),
	}

	// act
	_, err := f.processor.Execute(context.Background(), nil, ops)

	// assert
	assert.ErrorIs(t, err, atomic.ErrOperationFailed)
	assert.ErrorIs(t, err, jsonapi.ErrStoreCallFailed)
	assert.Zero(t, f.store.Count("tags"))
	assert.Equal(t, 1, f.recorder.Count("store.Rollback"))
}

func Test_Execute_Stops_When_The_Context_Is_Canceled(t *testing.T) {
	// arrange
	f := givenFixture(t, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// act
	_, err := f.processor.Execute(ctx, nil, []jsonapi.Operation{givenCreateTag(t, "", "x")})

	// assert
	assert.ErrorIs(t, err, atomic.ErrBatchCanceled)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, f.recorder.Calls())
}

func Test_Execute_Attaches_Hooks_Per_Resource_Type(t *testing.T) {
	// arrange
	var created []string
	hooks := jsonapi.Hooks{
		Created: func(_ context.Context, _ *http.Request, model jsonapi.Model, _ jsonapi.Operation) error {
			created = append(created, model.(*fakes.Record).ID)
			return nil
		},
	}
	f := givenFixture(t, nil, atomic.WithHooks("tags", hooks))

	ops := []jsonapi.Operation{givenCreateTag(t, "a", "x"), givenCreateTag(t, "b", "y")}

	// act
	results, err := f.processor.Execute(context.Background(), nil, ops)

	// assert
	require.NoError(t, err)
	assert.False(t, results.Failed())
	assert.Equal(t, []string{"1", "2"}, created)
}

func Test_Execute_Aborting_Hook_Fails_The_Operation(t *testing.T) {
	// arrange
	hooks := jsonapi.Hooks{
		Creating: func(_ context.Context, _ *http.Request, _ jsonapi.Model, _ jsonapi.Operation) error {
			return jsonapi.Abort(jsonapi.ForbiddenError())
		},
	}
	f := givenFixture(t, nil, atomic.WithHooks("tags", hooks))

	// act
	results, err := f.processor.Execute(context.Background(), nil, []jsonapi.Operation{givenCreateTag(t, "a", "x")})

	// assert
	require.NoError(t, err)
	require.True(t, results.Failed())
	assert.Equal(t, 403, results.Errors().Status())
	assert.Equal(t, "/atomic:operations/0", results.Errors().All()[0].Source.Pointer)
}

func Test_Execute_Processes_A_Parsed_Document(t *testing.T) {
	// arrange
	f := givenFixture(t, []fakes.MemoryStoreOption{fakes.WithIDSequenceStart(9)})
	f.store.Seed("posts", "1", nil)

	ops, err := jsonapi.ParseAtomicOperations([]byte(`{
		"atomic:operations": [
			{"op": "add", "data": {"type": "tags", "lid": "a", "attributes": {"name": "x"}}},
			{"op": "add", "ref": {"type": "posts", "id": "1", "relationship": "tags"}, "data": [{"type": "tags", "lid": "a"}]},
			{"op": "update", "href": "/posts/1", "data": {"type": "posts", "id": "1", "attributes": {"title": "t"}}}
		]
	}`))
	require.NoError(t, err)

	// act
	results, err := f.processor.Execute(context.Background(), nil, ops)

	// assert
	require.NoError(t, err)
	require.False(t, results.Failed())
	assert.Equal(t, 3, results.Len())

	post, _ := f.store.Get("posts", "1")
	require.Len(t, post.ToMany["tags"], 1)
	assert.Equal(t, "9", post.ToMany["tags"][0].ID)
	assert.Equal(t, "t", post.Attributes["title"])
}

func Test_Execute_Records_Metrics_Spans_And_Logs(t *testing.T) {
	// arrange
	metricsSpy := spies.NewMetricsCollectorSpy()
	tracingSpy := spies.NewTracingCollectorSpy()
	logSpy := spies.NewLogHandlerSpy(false)
	f := givenFixture(t, nil,
		atomic.WithMetrics(metricsSpy),
		atomic.WithTracing(tracingSpy),
		atomic.WithLogger(slog.New(logSpy)),
	)
	f.rules.Reject("Store", jsonapi.FieldFailure{Field: "name", Detail: "The name is taken."})

	// act
	_, err := f.processor.Execute(context.Background(), nil, []jsonapi.Operation{givenCreateTag(t, "a", "x")})

	// assert
	require.NoError(t, err)
	assert.True(t, metricsSpy.HasDurationRecordForMetric(atomic.BatchDurationMetric).WithStatus("failed").Assert())
	assert.True(t, metricsSpy.HasValueRecordForMetric(atomic.BatchSizeMetric).Assert())
	assert.True(t, metricsSpy.HasCounterRecordForMetric(atomic.OperationsMetric).
		WithStatus("failed").
		WithLabel(command.LogAttrCommandType, command.KindStore).
		Assert())
	assert.True(t, tracingSpy.HasSpanRecordForName(atomic.SpanNameExecute).
		WithStatus("failed").
		WithStartAttribute(atomic.LogAttrOperationCount, "1").
		Assert())
	assert.True(t, logSpy.HasInfoLogWithMessage(atomic.LogMsgBatchFailed).
		WithDurationMS().
		WithAttribute(atomic.LogAttrFailedIndex, "0").
		Assert())
}

func Test_NewProcessor_Requires_Dispatcher_And_IDReader(t *testing.T) {
	store := fakes.NewMemoryStore()
	dispatcher, err := command.NewDispatcher(store)
	require.NoError(t, err)

	_, err = atomic.NewProcessor(nil, store)
	assert.ErrorIs(t, err, atomic.ErrNilDispatcher)

	_, err = atomic.NewProcessor(dispatcher, nil)
	assert.ErrorIs(t, err, atomic.ErrNilIDReader)

	_, err = atomic.NewProcessor(dispatcher, store, atomic.WithHooks("", jsonapi.Hooks{}))
	assert.ErrorIs(t, err, jsonapi.ErrEmptyResourceType)
}
