package atomic

import (
	"github.com/AntonStoeckl/jsonapi-operations-go/jsonapi"
)

// Results are the outcome of a batch, in operation order.
// On failure they end with the failing Result and hold nothing for the operations after it.
//
// A batch rejected before execution (a lid declared twice or used before its declaration) holds only
// the failure, since no operation ran. Its position in All() is then 0, FailedIndex() names the operation.
// Use FailedIndex(), not the position of the failure, to identify the failing operation.
type Results struct {
	results     []jsonapi.Result
	failed      bool
	failedIndex int
}

func succeeded(results []jsonapi.Result) Results {
	return Results{results: results}
}

func failedAt(index int, results []jsonapi.Result, failure jsonapi.Result) Results {
	all := make([]jsonapi.Result, 0, len(results)+1)
	all = append(all, results...)
	all = append(all, failure)

	return Results{results: all, failed: true, failedIndex: index}
}

// All returns a copy of the results.
func (r Results) All() []jsonapi.Result {
	all := make([]jsonapi.Result, len(r.results))
	copy(all, r.results)

	return all
}

func (r Results) Len() int {
	return len(r.results)
}

func (r Results) Failed() bool {
	return r.failed
}

// FailedIndex is the index of the failing operation within the batch, -1 when all succeeded.
func (r Results) FailedIndex() int {
	if !r.failed {
		return -1
	}

	return r.failedIndex
}

// Failure returns the failing Result.
func (r Results) Failure() (jsonapi.Result, bool) {
	if !r.Failed() {
		return jsonapi.Result{}, false
	}

	return r.results[len(r.results)-1], true
}

// Errors returns the errors of the failing Result, an empty list when all operations succeeded.
func (r Results) Errors() jsonapi.ErrorList {
	failure, ok := r.Failure()
	if !ok {
		return jsonapi.NewErrorList()
	}

	return failure.Errors()
}
