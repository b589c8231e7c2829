package jsonapi

import (
	"net/http"
	"strconv"
)

// ResourceErrors converts validation failures of a mutation into a 422 ErrorList whose pointers
// address the failing member of the operation's data.
func ResourceErrors(op Operation, failures []FieldFailure) ErrorList {
	errs := make([]Error, 0, len(failures))

	for _, failure := range failures {
		e := validationError(failure, http.StatusUnprocessableEntity)
		errs = append(errs, e.WithPointer(resourcePointer(op, failure.Field)))
	}

	return NewErrorList(errs...)
}

// QueryErrors converts validation failures of a read request into a 400 ErrorList
// whose sources name the failing query parameter.
func QueryErrors(failures []FieldFailure) ErrorList {
	errs := make([]Error, 0, len(failures))

	for _, failure := range failures {
		e := validationError(failure, http.StatusBadRequest)
		if failure.Field != "" {
			e = e.WithParameter(failure.Field)
		}

		errs = append(errs, e)
	}

	return NewErrorList(errs...)
}

func validationError(failure FieldFailure, status int) Error {
	return Error{
		Status: strconv.Itoa(status),
		Code:   failure.Code,
		Title:  http.StatusText(status),
		Detail: failure.Detail,
	}
}

func resourcePointer(op Operation, field string) string {
	if field == "" {
		return "/data"
	}

	if _, ok := op.FieldName(); ok {
		// relationship endpoints carry the identifiers directly in data
		return "/data"
	}

	switch field {
	case "type", "id", "lid":
		return "/data/" + field
	}

	var data ResourceObject

	switch typed := op.(type) {
	case Create:
		data = typed.Data()
	case Update:
		data = typed.Data()
	default:
		return "/data"
	}

	if data.IsRelationship(field) {
		return "/data/relationships/" + field
	}

	return "/data/attributes/" + field
}
