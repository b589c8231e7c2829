package jsonapi

import (
	"net/http"
	"strconv"
	"strings"
)

// ErrorSource points at the part of the request that caused an error.
type ErrorSource struct {
	Pointer   string
	Parameter string
	Header    string
}

// Error is a JSON:API error object.
type Error struct {
	ID     string
	Status string
	Code   string
	Title  string
	Detail string
	Source *ErrorSource
	Meta   map[string]any
}

// WithPointer returns a copy of e with source.pointer set.
func (e Error) WithPointer(pointer string) Error {
	source := ErrorSource{}
	if e.Source != nil {
		source = *e.Source
	}

	source.Pointer = pointer
	e.Source = &source

	return e
}

// WithParameter returns a copy of e with source.parameter set.
func (e Error) WithParameter(parameter string) Error {
	source := ErrorSource{}
	if e.Source != nil {
		source = *e.Source
	}

	source.Parameter = parameter
	e.Source = &source

	return e
}

func (e Error) statusCode() int {
	code, err := strconv.Atoi(e.Status)
	if err != nil {
		return 0
	}

	return code
}

// NotFoundError is the error produced when an identified resource does not exist.
func NotFoundError() Error {
	return Error{Status: strconv.Itoa(http.StatusNotFound), Title: http.StatusText(http.StatusNotFound)}
}

func ForbiddenError() Error {
	return Error{Status: strconv.Itoa(http.StatusForbidden), Title: http.StatusText(http.StatusForbidden)}
}

func UnauthorizedError() Error {
	return Error{Status: strconv.Itoa(http.StatusUnauthorized), Title: http.StatusText(http.StatusUnauthorized)}
}

// BadRequestError is a 400 protocol error; pointer may be empty.
func BadRequestError(detail string, pointer string) Error {
	e := Error{
		Status: strconv.Itoa(http.StatusBadRequest),
		Title:  http.StatusText(http.StatusBadRequest),
		Detail: detail,
	}

	if pointer != "" {
		e = e.WithPointer(pointer)
	}

	return e
}

// UnprocessableError is a 422 validation error.
func UnprocessableError(detail string) Error {
	return Error{
		Status: strconv.Itoa(http.StatusUnprocessableEntity),
		Title:  http.StatusText(http.StatusUnprocessableEntity),
		Detail: detail,
	}
}

/***** ErrorList *****/

// ErrorList is an immutable list of Error objects. The zero value is an empty list.
type ErrorList struct {
	errs []Error
}

func NewErrorList(errs ...Error) ErrorList {
	if len(errs) == 0 {
		return ErrorList{errs: []Error{}}
	}

	cpy := make([]Error, len(errs))
	copy(cpy, errs)

	return ErrorList{errs: cpy}
}

// Push returns a new list with errs appended.
func (l ErrorList) Push(errs ...Error) ErrorList {
	merged := make([]Error, 0, len(l.errs)+len(errs))
	merged = append(merged, l.errs...)
	merged = append(merged, errs...)

	return ErrorList{errs: merged}
}

// Merge returns a new list with the errors of other appended.
func (l ErrorList) Merge(other ErrorList) ErrorList {
	return l.Push(other.errs...)
}

// All returns a copy of the errors.
func (l ErrorList) All() []Error {
	cpy := make([]Error, len(l.errs))
	copy(cpy, l.errs)

	return cpy
}

func (l ErrorList) Len() int {
	return len(l.errs)
}

func (l ErrorList) IsEmpty() bool {
	return len(l.errs) == 0
}

func (l ErrorList) IsNotEmpty() bool {
	return len(l.errs) > 0
}

// WithPointerPrefix returns a new list where every source.pointer is prefixed, e.g. with
// "/atomic:operations/2". Errors without a pointer get the prefix as their pointer.
func (l ErrorList) WithPointerPrefix(prefix string) ErrorList {
	prefix = strings.TrimSuffix(prefix, "/")
	prefixed := make([]Error, len(l.errs))

	for i, e := range l.errs {
		pointer := ""
		if e.Source != nil {
			pointer = e.Source.Pointer
		}

		if e.Source != nil && e.Source.Pointer == "" && (e.Source.Parameter != "" || e.Source.Header != "") {
			prefixed[i] = e
			continue
		}

		prefixed[i] = e.WithPointer(prefix + pointer)
	}

	return ErrorList{errs: prefixed}
}

// Status returns the HTTP status for the list: the common status when all errors agree,
// otherwise 400 when all are client errors and 500 when any is a server error.
func (l ErrorList) Status() int {
	if len(l.errs) == 0 {
		return http.StatusInternalServerError
	}

	status := l.errs[0].statusCode()
	same := true
	anyServerError := false

	for _, e := range l.errs {
		code := e.statusCode()
		if code != status {
			same = false
		}

		if code >= 500 || code == 0 {
			anyServerError = true
		}
	}

	switch {
	case same && status != 0:
		return status
	case anyServerError:
		return http.StatusInternalServerError
	default:
		return http.StatusBadRequest
	}
}

/***** FailureError *****/

// FailureError carries a client-visible ErrorList through Go error returns, e.g. from a hook.
// The pipeline converts it into a failed Result.
type FailureError struct {
	Errors ErrorList
}

// Abort builds a FailureError. Hooks and capabilities return it to stop processing
// with a client-visible failure.
func Abort(errs ...Error) error {
	return &FailureError{Errors: NewErrorList(errs...)}
}

func (e *FailureError) Error() string {
	parts := make([]string, 0, e.Errors.Len())
	for _, item := range e.Errors.errs {
		msg := item.Title
		if item.Detail != "" {
			msg = item.Detail
		}

		parts = append(parts, strings.TrimSpace(item.Status+" "+msg))
	}

	return "jsonapi failure: " + strings.Join(parts, "; ")
}

/***** ParseError *****/

// ParseError is returned when structural input cannot be parsed into an operation.
type ParseError struct {
	Pointer string
	Detail  string
}

func (e *ParseError) Error() string {
	if e.Pointer == "" {
		return "jsonapi parse error: " + e.Detail
	}

	return "jsonapi parse error at " + e.Pointer + ": " + e.Detail
}

// ErrorList converts the parse error into a 400 ErrorList.
func (e *ParseError) ErrorList() ErrorList {
	return NewErrorList(BadRequestError(e.Detail, e.Pointer))
}
