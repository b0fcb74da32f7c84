// Package ferrors defines the error kinds surfaced across FUSTA's core
// components. Their translation to FUSE errno values happens at the callback
// boundary, in internal/vfs.
package ferrors

import (
	"errors"
	"fmt"
)

// Kind is one of the error kinds named in the specification's error handling
// design. Only the FUSE boundary (internal/vfs) ever needs to know the Kind;
// everywhere else errors are wrapped plain Go errors.
type Kind int

const (
	NotFound Kind = iota
	InvalidArgument
	Exists
	PermissionDenied
	IO
	OutOfSpace
)

func (k Kind) String() string {
	switch k {
	case NotFound:
		return "not found"
	case InvalidArgument:
		return "invalid argument"
	case Exists:
		return "exists"
	case PermissionDenied:
		return "permission denied"
	case IO:
		return "io error"
	case OutOfSpace:
		return "out of space"
	default:
		return "unknown error"
	}
}

type Error struct {
	Kind Kind
	Msg  string
	err  error
}

func (e *Error) Error() string {
	if e.err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error { return e.err }

func New(k Kind, msg string) error { return &Error{Kind: k, Msg: msg} }

func Wrap(k Kind, msg string, err error) error { return &Error{Kind: k, Msg: msg, err: err} }

func Newf(k Kind, format string, args ...any) error {
	return &Error{Kind: k, Msg: fmt.Sprintf(format, args...)}
}

// KindOf returns the Kind carried by err, and ok=false if err does not wrap
// a *Error (callers should treat that case as IO).
func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return IO, false
}

func Is(err error, k Kind) bool {
	kind, ok := KindOf(err)
	return ok && kind == k
}
