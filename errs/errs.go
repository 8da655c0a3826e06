// Package errs defines the closed error taxonomy of the engine.
// Callers branch on Kind rather than matching error strings.
package errs

import (
	"errors"
	"fmt"
)

// Kind tags an error with the component boundary it crossed.
type Kind uint8

const (
	// Transport covers handshake and connection failures. The
	// connection is dropped; engine state is unaffected.
	Transport Kind = iota + 1
	// Decode covers malformed submission payloads. The message is
	// rejected without any book mutation.
	Decode
	// Storage covers index open/read/write/commit failures.
	Storage
	// Config covers invalid process configuration; fatal at startup.
	Config
)

func (k Kind) String() string {
	switch k {
	case Transport:
		return "transport"
	case Decode:
		return "decode"
	case Storage:
		return "storage"
	case Config:
		return "config"
	default:
		return "unknown"
	}
}

// Error carries a kind, the failing operation, and the cause.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Kind, e.Op)
	}
	return fmt.Sprintf("%s: %s: %v", e.Kind, e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// E wraps err with a kind and operation name.
func E(kind Kind, op string, err error) error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// Errorf builds a kinded error from a format string.
func Errorf(kind Kind, op, format string, args ...any) error {
	return &Error{Kind: kind, Op: op, Err: fmt.Errorf(format, args...)}
}

// KindOf returns the kind of err, or 0 if err carries none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}

// Is reports whether err is tagged with kind.
func Is(err error, kind Kind) bool {
	return KindOf(err) == kind
}
