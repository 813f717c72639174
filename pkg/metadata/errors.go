package metadata

import (
	"errors"
	"fmt"
)

// Error represents a domain error returned by stores and services.
//
// These are business logic errors (missing entity, permission denied, quota
// exceeded) as opposed to infrastructure errors (disk failure, network
// error), which are returned wrapped with fmt.Errorf.
//
// Transport adapters translate the Code into protocol-specific statuses.
type Error struct {
	// Code is the error category
	Code ErrorCode

	// Message is a human-readable error description
	Message string

	// Entity names the kind of record involved (user, file, ...), if any
	Entity string
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Entity != "" {
		return e.Entity + ": " + e.Message
	}
	return e.Message
}

// ErrorCode represents the category of a domain error.
type ErrorCode int

const (
	// ErrNotFound indicates the requested entity doesn't exist
	ErrNotFound ErrorCode = iota

	// ErrForbidden indicates the caller is authenticated but not authorized
	ErrForbidden

	// ErrValidation indicates malformed input
	ErrValidation

	// ErrQuotaExceeded indicates a reservation would exceed the user's quota
	ErrQuotaExceeded

	// ErrBlocked indicates a block exists between the two parties
	ErrBlocked

	// ErrAlreadyFriends indicates the two parties are already friends
	ErrAlreadyFriends

	// ErrDuplicateRequest indicates an identical pending friend request exists
	ErrDuplicateRequest

	// ErrSelfReference indicates an operation targeted the acting user
	ErrSelfReference

	// ErrAlreadyExists indicates a uniqueness violation (username, email)
	ErrAlreadyExists

	// ErrUnauthenticated indicates invalid credentials or a banned account
	ErrUnauthenticated
)

var codeNames = map[ErrorCode]string{
	ErrNotFound:         "not_found",
	ErrForbidden:        "forbidden",
	ErrValidation:       "validation",
	ErrQuotaExceeded:    "quota_exceeded",
	ErrBlocked:          "blocked",
	ErrAlreadyFriends:   "already_friends",
	ErrDuplicateRequest: "duplicate_request",
	ErrSelfReference:    "self_reference",
	ErrAlreadyExists:    "already_exists",
	ErrUnauthenticated:  "unauthenticated",
}

// String returns the snake_case name of the code.
func (c ErrorCode) String() string {
	if name, ok := codeNames[c]; ok {
		return name
	}
	return "unknown"
}

// CodeOf returns the code of the first *Error in err's chain.
func CodeOf(err error) (ErrorCode, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Code, true
	}
	return 0, false
}

// IsCode reports whether err carries the given code.
func IsCode(err error, code ErrorCode) bool {
	c, ok := CodeOf(err)
	return ok && c == code
}

// IsNotFound reports whether err is an ErrNotFound domain error.
func IsNotFound(err error) bool {
	return IsCode(err, ErrNotFound)
}

func NewNotFoundError(entity, id string) *Error {
	return &Error{Code: ErrNotFound, Message: fmt.Sprintf("%s not found", id), Entity: entity}
}

func NewForbiddenError(entity, format string, args ...any) *Error {
	return &Error{Code: ErrForbidden, Message: fmt.Sprintf(format, args...), Entity: entity}
}

func NewValidationError(entity, format string, args ...any) *Error {
	return &Error{Code: ErrValidation, Message: fmt.Sprintf(format, args...), Entity: entity}
}

func NewAlreadyExistsError(entity, format string, args ...any) *Error {
	return &Error{Code: ErrAlreadyExists, Message: fmt.Sprintf(format, args...), Entity: entity}
}

func NewQuotaExceededError(userID string, used, delta, quota int64) *Error {
	return &Error{
		Code:    ErrQuotaExceeded,
		Message: fmt.Sprintf("%d + %d bytes exceeds quota of %d bytes", used, delta, quota),
		Entity:  "user " + userID,
	}
}

// NewError builds a domain error with an arbitrary code.
func NewError(code ErrorCode, entity, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...), Entity: entity}
}
