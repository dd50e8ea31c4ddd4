package mailerr

import (
	"errors"
	"fmt"
)

// Error kinds.
var (
	ErrConfiguration = errors.New("configuration error")
	ErrValidation    = errors.New("validation error")
	ErrAuth          = errors.New("authorization error")
	ErrTransport     = errors.New("transport error")
)

// Error carries the kind of a failure, the operation that produced it and the
// underlying cause.
type Error struct {
	Kind error
	Op   string
	Err  error
}

func (e *Error) Error() string {
	switch {
	case e.Op != "" && e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	case e.Err != nil:
		return e.Err.Error()
	case e.Op != "":
		return fmt.Sprintf("%s: %v", e.Op, e.Kind)
	default:
		return e.Kind.Error()
	}
}

// Unwrap returns the cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is the kind of e.
func (e *Error) Is(target error) bool {
	return e.Kind != nil && target == e.Kind
}

func newError(kind error, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// Configuration reports a missing or malformed setting.
func Configuration(op, format string, args ...any) error {
	return newError(ErrConfiguration, op, fmt.Errorf(format, args...))
}

// Validation reports a message that cannot be built or sent as given.
func Validation(op, format string, args ...any) error {
	return newError(ErrValidation, op, fmt.Errorf(format, args...))
}

// Auth wraps an authorization failure.
func Auth(op string, err error) error {
	if err == nil {
		return nil
	}
	return newError(ErrAuth, op, err)
}

// Transport wraps a failed send.
func Transport(op string, err error) error {
	if err == nil {
		return nil
	}
	return newError(ErrTransport, op, err)
}

// FallbackError is returned when both the primary transport and the fallback
// transport failed for the same message.
type FallbackError struct {
	PrimaryName  string
	Primary      error
	FallbackName string
	Fallback     error
}

func (e *FallbackError) Error() string {
	return fmt.Sprintf("primary transport %s failed: %v; fallback transport %s also failed: %v",
		e.PrimaryName, e.Primary, e.FallbackName, e.Fallback)
}

// Unwrap exposes both causes to errors.Is and errors.As.
func (e *FallbackError) Unwrap() []error {
	return []error{e.Primary, e.Fallback}
}

// Is matches ErrTransport regardless of what the individual causes were.
func (e *FallbackError) Is(target error) bool {
	return target == ErrTransport
}

// KindOf returns the kind of err, or nil when err does not belong to the taxonomy.
func KindOf(err error) error {
	for _, kind := range []error{ErrValidation, ErrConfiguration, ErrAuth, ErrTransport} {
		if errors.Is(err, kind) {
			return kind
		}
	}
	return nil
}
