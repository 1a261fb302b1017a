package models

import "fmt"

// ErrorKind classifies every failure surfaced by discovery, generation and execution.
type ErrorKind string

const (
	ErrKindMalformedDefinition  ErrorKind = "MalformedDefinition"
	ErrKindDiscoveryUnavailable ErrorKind = "DiscoveryUnavailable"
	ErrKindUnsupportedKind      ErrorKind = "UnsupportedKind"
	ErrKindNotFound             ErrorKind = "NotFound"
	ErrKindValidation           ErrorKind = "ValidationError"
	ErrKindUnauthorized         ErrorKind = "Unauthorized"
	ErrKindPermissionDenied     ErrorKind = "PermissionDenied"
	ErrKindRemoteValidation     ErrorKind = "RemoteValidationError"
	ErrKindTransient            ErrorKind = "Transient"
	ErrKindCanceled             ErrorKind = "Canceled"
	ErrKindRemote               ErrorKind = "RemoteError"
	ErrKindDuplicateOperation   ErrorKind = "DuplicateOperation"
)

// Error is a classified error. Details carries structured context such as
// validation violations or the remote error body.
type Error struct {
	Kind    ErrorKind
	Message string
	Details interface{}
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error of the same kind, so sentinels work with errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// NewError creates a classified error.
func NewError(kind ErrorKind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// WrapError creates a classified error wrapping err.
func WrapError(kind ErrorKind, err error, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Err: err}
}

// Sentinels for errors.Is.
var (
	ErrNotFound             = &Error{Kind: ErrKindNotFound}
	ErrDiscoveryUnavailable = &Error{Kind: ErrKindDiscoveryUnavailable}
	ErrUnsupportedKind      = &Error{Kind: ErrKindUnsupportedKind}
	ErrMalformedDefinition  = &Error{Kind: ErrKindMalformedDefinition}
	ErrValidation           = &Error{Kind: ErrKindValidation}
)

// Violation is one argument/schema mismatch.
type Violation struct {
	Parameter string `json:"parameter"`
	Reason    string `json:"reason"`
}

// DiscoveryFailure records one document, type or procedure source that could
// not be turned into a descriptor.
type DiscoveryFailure struct {
	Source  string    `json:"source"`
	Kind    ErrorKind `json:"kind"`
	Message string    `json:"message"`
}
