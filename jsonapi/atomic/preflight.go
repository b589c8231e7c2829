package atomic

import (
	"fmt"
	"strconv"

	"github.com/AntonStoeckl/jsonapi-operations-go/jsonapi"
)

// Error codes of batch ordering errors.
const (
	CodeDuplicateLocalID  = "duplicate-lid"
	CodeUndeclaredLocalID = "undeclared-lid"
)

// operationPointer is the JSON pointer of the operation at index.
func operationPointer(index int) string {
	return "/" + jsonapi.AtomicOperationsMember + "/" + strconv.Itoa(index)
}

// checkLocalIDs walks the batch in order without executing anything. It reports the first operation that
// declares a lid a second time, or refers to a lid no earlier Create declares.
func checkLocalIDs(ops []jsonapi.Operation) (index int, errs jsonapi.ErrorList, ok bool) {
	declared := make(map[string]struct{})

	for i, op := range ops {
		for _, lid := range jsonapi.ReferencedLocalIDs(op) {
			if _, known := declared[lid]; !known {
				e := jsonapi.BadRequestError(
					fmt.Sprintf("Local id %s is used before a preceding operation declares it.", lid),
					operationPointer(i),
				)
				e.Code = CodeUndeclaredLocalID

				return i, jsonapi.NewErrorList(e), false
			}
		}

		create, isCreate := op.(jsonapi.Create)
		if !isCreate || !create.Data().HasLID() {
			continue
		}

		lid := create.Data().LID
		if _, known := declared[lid]; known {
			e := jsonapi.BadRequestError(
				fmt.Sprintf("Local id %s is declared more than once.", lid),
				operationPointer(i)+"/data/lid",
			)
			e.Code = CodeDuplicateLocalID

			return i, jsonapi.NewErrorList(e), false
		}

		declared[lid] = struct{}{}
	}

	return -1, jsonapi.ErrorList{}, true
}
