package fault

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound        = errors.New("resource not found")
	ErrUniqueViolation = errors.New("unique violation")
	ErrForbidden       = errors.New("access denied")
	ErrConflict        = errors.New("state conflict")
	ErrBoundary        = errors.New("cannot move in that direction")
)

type ErrorType int

const (
	ErrClient ErrorType = iota
	ErrInternal
)

// Fault pairs a message that can be shown to API clients with the underlying
// cause, which is only ever logged.
type Fault struct {
	Type    ErrorType
	Message string
	Err     error
}

func (e *Fault) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.typeString(), e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.typeString(), e.Message)
}

func (e *Fault) Unwrap() error {
	return e.Err
}

func (e *Fault) typeString() string {
	switch e.Type {
	case ErrClient:
		return "ClientError"
	case ErrInternal:
		return "InternalError"
	default:
		return "UnknownError"
	}
}

// Client returns a client error with a formatted message.
func Client(msg string, args ...any) error {
	return &Fault{Type: ErrClient, Message: fmt.Sprintf(msg, args...)}
}

// NewClientError wraps err with a message safe to show to the caller.
func NewClientError(msg string, err error) error {
	return &Fault{Type: ErrClient, Message: msg, Err: err}
}

func NewInternalError(msg string, err error) error {
	return &Fault{Type: ErrInternal, Message: msg, Err: err}
}

func IsClientError(err error) bool {
	var f *Fault
	if errors.As(err, &f) {
		return f.Type == ErrClient
	}
	return false
}

// Message returns the client-facing message of err, or fallback when err
// carries none.
func Message(err error, fallback string) string {
	var f *Fault
	if errors.As(err, &f) && f.Type == ErrClient {
		return f.Message
	}
	return fallback
}
