// Package apperror defines the error taxonomy shared by the serial channel,
// the session controller and the command store.
package apperror

import (
	"errors"
	"fmt"
)

// Kind classifies an error by how the caller is expected to react to it
type Kind int

const (
	KindUnknown Kind = iota
	// KindOpenFailed is terminal for one open attempt; the caller must open again.
	KindOpenFailed
	KindWriteFailed
	KindReadFault
	// KindValidation never reaches the channel or the store.
	KindValidation
	// KindPersistence leaves the previous on-disk state untouched.
	KindPersistence
	KindNotOpen
)

// String returns the string representation of Kind
func (k Kind) String() string {
	switch k {
	case KindOpenFailed:
		return "open failed"
	case KindWriteFailed:
		return "write failed"
	case KindReadFault:
		return "read fault"
	case KindValidation:
		return "validation"
	case KindPersistence:
		return "persistence"
	case KindNotOpen:
		return "not open"
	default:
		return "unknown"
	}
}

// Error is an application error carrying its Kind and the failed operation
type Error struct {
	Kind    Kind
	Op      string
	Message string
	Cause   error
}

// Error implements the error interface
func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = e.Kind.String()
	}
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	return msg
}

// Unwrap returns the underlying cause
func (e *Error) Unwrap() error {
	return e.Cause
}

// New creates an error of the given kind
func New(kind Kind, op, message string) *Error {
	return &Error{Kind: kind, Op: op, Message: message}
}

// Newf creates an error of the given kind with a formatted message
func Newf(kind Kind, op, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Op: op, Message: fmt.Sprintf(format, args...)}
}

// Wrap wraps cause into an error of the given kind. A nil cause yields nil.
func Wrap(kind Kind, op string, cause error) error {
	if cause == nil {
		return nil
	}
	return &Error{Kind: kind, Op: op, Cause: cause}
}

// KindOf returns the Kind of the first *Error found in err's chain
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// Is reports whether err carries the given kind
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}
