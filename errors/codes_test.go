package errors_test

import (
	"errors"
	"testing"

	meshErr "github.com/nabbar/meshnet/errors"
)

func TestErrorChaining(t *testing.T) {
	parent := errors.New("connection reset")
	e := meshErr.New(meshErr.WriteFail, parent)

	if e.Code() != meshErr.WriteFail {
		t.Fatalf("expected code %v, got %v", meshErr.WriteFail, e.Code())
	}
	if !errors.Is(e, parent) {
		t.Fatalf("expected chain to unwrap to parent")
	}
	if !meshErr.Is(e, meshErr.WriteFail) {
		t.Fatalf("expected Is to match WriteFail")
	}
	if meshErr.Is(e, meshErr.Timeout) {
		t.Fatalf("did not expect Is to match Timeout")
	}
}

func TestMessageFallback(t *testing.T) {
	if got := meshErr.Message(meshErr.CodeError(9999)); got != "unknown error" {
		t.Fatalf("expected fallback message, got %q", got)
	}
}
