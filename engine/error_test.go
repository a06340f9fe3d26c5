package engine

import (
	"errors"
	"fmt"
	"testing"
)

func TestWrapHandlerError(t *testing.T) {
	block := &Block{ID: 7, Type: BlockSendText}

	t.Run("plain error becomes handler error", func(t *testing.T) {
		cause := errors.New("network down")
		wrapped := wrapHandlerError(block, cause)

		if wrapped.Kind != KindHandler {
			t.Errorf("kind = %v, want %v", wrapped.Kind, KindHandler)
		}
		if wrapped.BlockID != 7 || wrapped.BlockType != BlockSendText {
			t.Errorf("block attribution = %d/%s", wrapped.BlockID, wrapped.BlockType)
		}
		if !errors.Is(wrapped, cause) {
			t.Error("wrapped error must unwrap to its cause")
		}
	})

	t.Run("run error keeps its kind", func(t *testing.T) {
		inner := newValidationError("bad content", nil)
		wrapped := wrapHandlerError(block, inner)

		if wrapped.Kind != KindValidation {
			t.Errorf("kind = %v, want %v", wrapped.Kind, KindValidation)
		}
		if wrapped.BlockID != 7 {
			t.Errorf("block id = %d, want 7", wrapped.BlockID)
		}
	})
}

func TestKindOf(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected ErrorKind
	}{
		{"block not found", newBlockNotFoundError(3), KindBlockNotFound},
		{"step budget", newStepBudgetExceededError(100), KindStepBudgetExceeded},
		{"template", newTemplateError("{{", errors.New("x")), KindTemplate},
		{"wrapped run error", fmt.Errorf("outer: %w", newValidationError("v", nil)), KindValidation},
		{"plain error", errors.New("plain"), KindHandler},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := KindOf(tt.err); got != tt.expected {
				t.Errorf("got %v, want %v", got, tt.expected)
			}
		})
	}
}
