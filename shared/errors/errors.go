package errors

import (
	"errors"
	"fmt"
	"net/http"
)

type Kind string

const (
	KindInvalidOperation  Kind = "InvalidOperation"
	KindNotFound          Kind = "ResourceNotFound"
	KindAlreadyExists     Kind = "ResourceAlreadyExists"
	KindUnauthorized      Kind = "Unauthorized"
	KindForbidden         Kind = "Forbidden"
	KindRepositoryFailure Kind = "RepositoryFailure"
)

// default error is internal service error at handler level
// if error has different status code use ErrorWithStatusCode
type ErrorWithStatusCode struct {
	Kind       Kind
	Message    string
	StatusCode int
}

func (e *ErrorWithStatusCode) Error() string {
	return e.Message
}

func InvalidOperation(format string, args ...any) *ErrorWithStatusCode {
	return &ErrorWithStatusCode{Kind: KindInvalidOperation, Message: fmt.Sprintf(format, args...), StatusCode: http.StatusBadRequest}
}

func NotFound(resource string) *ErrorWithStatusCode {
	return &ErrorWithStatusCode{Kind: KindNotFound, Message: resource + " not found", StatusCode: http.StatusNotFound}
}

func AlreadyExists(resource string) *ErrorWithStatusCode {
	return &ErrorWithStatusCode{Kind: KindAlreadyExists, Message: resource + " already exists", StatusCode: http.StatusConflict}
}

func Unauthorized(message string) *ErrorWithStatusCode {
	return &ErrorWithStatusCode{Kind: KindUnauthorized, Message: message, StatusCode: http.StatusUnauthorized}
}

func Forbidden(message string) *ErrorWithStatusCode {
	return &ErrorWithStatusCode{Kind: KindForbidden, Message: message, StatusCode: http.StatusForbidden}
}

// RepositoryError wraps any infrastructure fault of a store. The cause is kept
// for logs but never rendered to clients.
type RepositoryError struct {
	Entity    string
	Operation string
	Err       error
}

func (e *RepositoryError) Error() string {
	return fmt.Sprintf("%s repository failed to %s: %v", e.Entity, e.Operation, e.Err)
}

func (e *RepositoryError) Unwrap() error {
	return e.Err
}

func NewRepositoryError(entity, operation string, err error) *RepositoryError {
	return &RepositoryError{Entity: entity, Operation: operation, Err: err}
}

// KindOf reports the taxonomy kind of err. Errors outside the taxonomy yield "".
func KindOf(err error) Kind {
	var repoErr *RepositoryError
	if errors.As(err, &repoErr) {
		return KindRepositoryFailure
	}
	var statusErr *ErrorWithStatusCode
	if errors.As(err, &statusErr) {
		return statusErr.Kind
	}
	return ""
}

func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

func IsNotFound(err error) bool {
	return Is(err, KindNotFound)
}
