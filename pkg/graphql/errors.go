package graphql

import (
	"errors"
	"fmt"
	"net/http"
)

// Error codes reported in the "code" field and in extensions.code.
const (
	CodeBadRequest         = "BAD_REQUEST"
	CodeBadUserInput       = "BAD_USER_INPUT"
	CodeConflict           = "CONFLICT"
	CodeInternal           = "INTERNAL_SERVER_ERROR"
	CodeParseFailed        = "GRAPHQL_PARSE_FAILED"
	CodeValidationFailed   = "GRAPHQL_VALIDATION_FAILED"
	CodeOperationNotFound  = "OPERATION_RESOLUTION_FAILURE"
	internalMessage        = "Internal server error"
	introspectionDisabled  = "GraphQL introspection is not allowed by this server"
	subscriptionsDisabled  = "subscriptions are not supported by this server"
	mutationOverGetMessage = "mutations must be sent with POST"
)

// ErrorKind classifies an Error.
type ErrorKind int

// Error kinds. Every error that reaches a client is one of these.
const (
	// KindInternal is an unexpected failure. Its detail is never sent to
	// clients unless debug errors are on.
	KindInternal ErrorKind = iota
	// KindValidation is a resolver-level input check failure.
	KindValidation
	// KindUserInput is a variable that does not coerce to its declared type.
	KindUserInput
	// KindConflict is a domain conflict such as a duplicate entity.
	KindConflict
	// KindCSRF is a request blocked by the content-type gate.
	KindCSRF
	// KindParse is a query document that does not parse.
	KindParse
	// KindQueryValidation is a query document that fails schema validation.
	KindQueryValidation
	// KindBadRequest is a malformed HTTP request.
	KindBadRequest
)

func (k ErrorKind) String() string {
	switch k {
	case KindInternal:
		return "internal"
	case KindValidation:
		return "validation"
	case KindUserInput:
		return "user_input"
	case KindConflict:
		return "conflict"
	case KindCSRF:
		return "csrf"
	case KindParse:
		return "parse"
	case KindQueryValidation:
		return "query_validation"
	case KindBadRequest:
		return "bad_request"
	}
	return "unknown"
}

func (k ErrorKind) code() string {
	switch k {
	case KindValidation, KindCSRF, KindBadRequest:
		return CodeBadRequest
	case KindUserInput:
		return CodeBadUserInput
	case KindConflict:
		return CodeConflict
	case KindParse:
		return CodeParseFailed
	case KindQueryValidation:
		return CodeValidationFailed
	}
	return CodeInternal
}

func (k ErrorKind) status() int {
	switch k {
	case KindInternal:
		return http.StatusInternalServerError
	case KindConflict:
		return http.StatusConflict
	}
	return http.StatusBadRequest
}

// Error is a tagged GraphQL error. Resolvers return it to control the code
// and status a client sees; any other error is treated as KindInternal.
type Error struct {
	Kind    ErrorKind
	Code    string
	Message string
	// Status is the HTTP status hint placed in extensions.http.status.
	Status int
	// Fields carries extra extensions, such as which input field failed.
	Fields map[string]interface{}
	// Err is the original error, logged and exposed only as details.
	Err error

	path      []interface{}
	locations []GraphQLErrorLocation
}

// NewError creates an Error of the given kind with the kind's default code and status.
func NewError(kind ErrorKind, message string) *Error {
	return &Error{
		Kind:    kind,
		Code:    kind.code(),
		Message: message,
		Status:  kind.status(),
	}
}

// Errorf is NewError with a format string.
func Errorf(kind ErrorKind, format string, args ...interface{}) *Error {
	return NewError(kind, fmt.Sprintf(format, args...))
}

// BadRequest returns a KindValidation error for malformed resolver input.
func BadRequest(message string) *Error {
	return NewError(KindValidation, message)
}

// Conflict returns a KindConflict error.
func Conflict(message string, err error) *Error {
	e := NewError(KindConflict, message)
	e.Err = err
	return e
}

// Internal wraps an unexpected error.
func Internal(err error) *Error {
	e := NewError(KindInternal, internalMessage)
	e.Err = err
	return e
}

// WithField adds an extension entry and returns e.
func (e *Error) WithField(key string, value interface{}) *Error {
	if e.Fields == nil {
		e.Fields = make(map[string]interface{})
	}
	e.Fields[key] = value
	return e
}

func (e *Error) Error() string {
	if e.Err != nil && e.Err.Error() != e.Message {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Path returns the response path the error is attached to.
func (e *Error) Path() []interface{} {
	return e.path
}

// at returns a copy of e attached to a response path and query location.
func (e *Error) at(path []interface{}, locs ...GraphQLErrorLocation) *Error {
	c := *e
	if path != nil {
		c.path = append([]interface{}(nil), path...)
	}
	if len(locs) > 0 && len(c.locations) == 0 {
		c.locations = locs
	}
	return &c
}

// AsError converts err to an *Error. Untagged errors become KindInternal.
func AsError(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return Internal(err)
}
