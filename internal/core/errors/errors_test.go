package errors

import (
	"errors"
	"testing"
)

func TestDomainError(t *testing.T) {
	t.Run("New", func(t *testing.T) {
		err := New(CodeNotFound, "analysis not found")
		if err.Error() != "[NOT_FOUND] analysis not found" {
			t.Errorf("expected [NOT_FOUND] analysis not found, got %s", err.Error())
		}
	})

	t.Run("Wrap", func(t *testing.T) {
		original := errors.New("original error")
		err := Wrap(original, CodeParseError, "syntax errors in source")
		expected := "[PARSE_ERROR] syntax errors in source: original error"
		if err.Error() != expected {
			t.Errorf("expected %s, got %s", expected, err.Error())
		}
		if !errors.Is(err, original) {
			t.Error("expected wrapped error to unwrap to the original")
		}
	})

	t.Run("IsCode", func(t *testing.T) {
		err := New(CodeResolutionError, "unresolved specifier")
		if !IsCode(err, CodeResolutionError) {
			t.Error("expected IsCode to return true for CodeResolutionError")
		}
		if IsCode(err, CodeNotFound) {
			t.Error("expected IsCode to return false for CodeNotFound")
		}
	})

	t.Run("IsCodeWithWrapped", func(t *testing.T) {
		original := errors.New("original error")
		err := Wrap(original, CodeRuleFailure, "rule panicked")
		if !IsCode(err, CodeRuleFailure) {
			t.Error("expected IsCode to return true for wrapped CodeRuleFailure")
		}
	})
}

func TestAddContext(t *testing.T) {
	t.Run("DomainError", func(t *testing.T) {
		err := AddContext(New(CodeParseError, "bad source"), CtxPath, "src/a.ts")
		var de *DomainError
		if !errors.As(err, &de) {
			t.Fatal("expected a DomainError")
		}
		if de.Context[CtxPath] != "src/a.ts" {
			t.Errorf("expected path context, got %v", de.Context)
		}
	})

	t.Run("ForeignError", func(t *testing.T) {
		original := errors.New("plain error")
		err := AddContext(original, CtxSymbol, "formatPrice")
		if !IsCode(err, CodeInternal) {
			t.Error("expected foreign errors to wrap as CodeInternal")
		}
		if !errors.Is(err, original) {
			t.Error("expected the original error to survive wrapping")
		}
	})
}
