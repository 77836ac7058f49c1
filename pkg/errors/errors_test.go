package errors

import (
	stderrors "errors"
	"fmt"
	"testing"
)

func TestCodedHelpers(t *testing.T) {
	if got := GetCode(NotFound("tourist", "42")); got != CodeNotFound {
		t.Errorf("expected %d, got %d", CodeNotFound, got)
	}
	if got := GetCode(InvalidTransition("resolved", "acknowledge")); got != CodeInvalidTransition {
		t.Errorf("expected %d, got %d", CodeInvalidTransition, got)
	}
	if got := GetCode(Forbidden("nope")); got != CodeForbidden {
		t.Errorf("expected %d, got %d", CodeForbidden, got)
	}
	if got := GetCode(stderrors.New("plain")); got != 0 {
		t.Errorf("uncoded error should report 0, got %d", got)
	}
}

func TestIsCodeThroughWrapping(t *testing.T) {
	inner := NotFound("alert", "ALT-2026-000001")
	outer := fmt.Errorf("loading: %w", inner)

	if !IsCode(outer, CodeNotFound) {
		t.Error("code should survive fmt.Errorf wrapping")
	}
}

func TestCause(t *testing.T) {
	root := stderrors.New("disk full")
	wrapped := Wrap(Wrap(root, "save"), "handler")

	if Cause(wrapped) != root {
		t.Errorf("expected root cause, got %v", Cause(wrapped))
	}
}

func TestWithContextDoesNotMutate(t *testing.T) {
	base := Forbidden("no access")
	derived := base.WithContext("actor", "staff-1")

	if len(base.Context) != 0 {
		t.Error("original error must stay untouched")
	}
	if len(derived.Context) != 1 || derived.Context[0].Key != "actor" {
		t.Errorf("unexpected context: %v", derived.Context)
	}
}

func TestGetMessage(t *testing.T) {
	if msg := GetMessage(DuplicateKey("alert id")); msg != "could not allocate unique alert id" {
		t.Errorf("unexpected message: %q", msg)
	}
	if msg := GetMessage(nil); msg != "" {
		t.Errorf("nil error should yield empty message, got %q", msg)
	}
}
