package errdef

import (
	"errors"
	"fmt"
)

// Kind classifies an error by how it is reported to API clients.
type Kind int

const (
	// Internal is the kind of every error not created by this package.
	Internal Kind = iota
	BadRequest
	Unauthorized
	Forbidden
	NotFound
	Duplicated
	Conflict
	UnsupportedMediaType
	// Locked is a modification of an entity that has been locked, like a distribution set after
	// its first assignment.
	Locked
)

var kindNames = map[Kind]string{
	Internal:             "internal",
	BadRequest:           "bad request",
	Unauthorized:         "unauthorized",
	Forbidden:            "forbidden",
	NotFound:             "not found",
	Duplicated:           "duplicated",
	Conflict:             "conflict",
	UnsupportedMediaType: "unsupported media type",
	Locked:               "locked",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

type kindError struct {
	kind Kind
	error
}

func (e kindError) Unwrap() error {
	return e.error
}

func newError(kind Kind, format string, a ...any) error {
	return kindError{kind: kind, error: fmt.Errorf(format, a...)}
}

// KindOf returns the kind of the outermost error of this package in the chain of err, or Internal
// if there is none.
func KindOf(err error) Kind {
	var e kindError
	if errors.As(err, &e) {
		return e.kind
	}
	return Internal
}

func is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

func NewForbidden(format string, a ...any) error {
	return newError(Forbidden, format, a...)
}

func IsForbidden(err error) bool {
	return is(err, Forbidden)
}

func NewBadRequest(format string, a ...any) error {
	return newError(BadRequest, format, a...)
}

func IsBadRequest(err error) bool {
	return is(err, BadRequest)
}

func NewDuplicated(format string, a ...any) error {
	return newError(Duplicated, format, a...)
}

func IsDuplicated(err error) bool {
	return is(err, Duplicated)
}

func NewUnauthorized(format string, a ...any) error {
	return newError(Unauthorized, format, a...)
}

func IsUnauthorized(err error) bool {
	return is(err, Unauthorized)
}

// NewNotFound creates an error representing a resource that could not be found.
func NewNotFound(format string, a ...any) error {
	return newError(NotFound, format, a...)
}

// IsNotFound returns true if err is an error representing a resource that could not be found and false otherwise.
func IsNotFound(err error) bool {
	return is(err, NotFound)
}

// NewConflict creates an error representing a conflicting state, like deleting an active action.
func NewConflict(format string, a ...any) error {
	return newError(Conflict, format, a...)
}

func IsConflict(err error) bool {
	return is(err, Conflict)
}

// NewUnsupportedMediaType creates an error representing a request body of a content type the
// route does not accept.
func NewUnsupportedMediaType(format string, a ...any) error {
	return newError(UnsupportedMediaType, format, a...)
}

func IsUnsupportedMediaType(err error) bool {
	return is(err, UnsupportedMediaType)
}

func NewLocked(format string, a ...any) error {
	return newError(Locked, format, a...)
}

func IsLocked(err error) bool {
	return is(err, Locked)
}
