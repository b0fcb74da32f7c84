package ferrors

import (
	"errors"
	"testing"
)

func TestKindOfAndIs(t *testing.T) {
	err := New(NotFound, "fragment missing")
	kind, ok := KindOf(err)
	if !ok || kind != NotFound {
		t.Errorf("KindOf = %v, %v, want NotFound, true", kind, ok)
	}
	if !Is(err, NotFound) {
		t.Error("Is(err, NotFound) = false")
	}
	if Is(err, Exists) {
		t.Error("Is(err, Exists) = true, want false")
	}
}

func TestKindOfPlainError(t *testing.T) {
	err := errors.New("boring error")
	kind, ok := KindOf(err)
	if ok {
		t.Error("KindOf should return ok=false for a plain error")
	}
	if kind != IO {
		t.Errorf("KindOf fallback = %v, want IO", kind)
	}
}

func TestWrapUnwrap(t *testing.T) {
	cause := errors.New("disk full")
	err := Wrap(OutOfSpace, "write payload", cause)
	if !errors.Is(err, cause) {
		t.Error("Wrap does not preserve Unwrap chain")
	}
	if !Is(err, OutOfSpace) {
		t.Error("Wrap did not carry the given Kind")
	}
}

func TestNewf(t *testing.T) {
	err := Newf(InvalidArgument, "bad range %d-%d", 5, 2)
	want := "invalid argument: bad range 5-2"
	if err.Error() != want {
		t.Errorf("Newf message = %q, want %q", err.Error(), want)
	}
}
