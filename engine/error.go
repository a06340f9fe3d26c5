package engine

import (
	"errors"
	"fmt"
)

// ErrorKind classifies run-terminal failures.
type ErrorKind string

const (
	KindBlockNotFound        ErrorKind = "block_not_found"
	KindUnsupportedBlockType ErrorKind = "unsupported_block_type"
	KindHandler              ErrorKind = "handler_error"
	KindStepBudgetExceeded   ErrorKind = "step_budget_exceeded"
	KindTemplate             ErrorKind = "template_error"
	KindValidation           ErrorKind = "validation_error"
)

// RunError is the canonical error type propagated out of a run. It carries
// enough structure for operators to locate the failing block without leaking
// internals to the chat that triggered the run.
type RunError struct {
	Kind      ErrorKind
	BlockID   int64
	BlockType BlockType
	Message   string
	Cause     error
}

func (e *RunError) Error() string {
	msg := fmt.Sprintf("[%s] %s", e.Kind, e.Message)
	if e.BlockID != 0 {
		msg = fmt.Sprintf("%s (block: %d, type: %s)", msg, e.BlockID, e.BlockType)
	}
	if e.Cause != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	return msg
}

func (e *RunError) Unwrap() error {
	return e.Cause
}

func newBlockNotFoundError(blockID int64) *RunError {
	return &RunError{
		Kind:    KindBlockNotFound,
		BlockID: blockID,
		Message: fmt.Sprintf("block with id %d not found in graph snapshot", blockID),
	}
}

func newUnsupportedBlockTypeError(block *Block) *RunError {
	return &RunError{
		Kind:      KindUnsupportedBlockType,
		BlockID:   block.ID,
		BlockType: block.Type,
		Message:   fmt.Sprintf("no handler registered for block type %q", block.Type),
	}
}

func newStepBudgetExceededError(budget int) *RunError {
	return &RunError{
		Kind:    KindStepBudgetExceeded,
		Message: fmt.Sprintf("step budget of %d exceeded, graph likely contains a cycle", budget),
	}
}

func newTemplateError(src string, cause error) *RunError {
	return &RunError{
		Kind:    KindTemplate,
		Message: fmt.Sprintf("template %q", src),
		Cause:   cause,
	}
}

func newValidationError(message string, cause error) *RunError {
	return &RunError{
		Kind:    KindValidation,
		Message: message,
		Cause:   cause,
	}
}

// wrapHandlerError attributes an error to the block whose handler raised it.
// Errors that already carry run-level structure keep their kind; everything
// else becomes a handler error.
func wrapHandlerError(block *Block, err error) *RunError {
	var re *RunError
	if errors.As(err, &re) {
		if re.BlockID == 0 {
			re.BlockID = block.ID
			re.BlockType = block.Type
		}
		return re
	}
	return &RunError{
		Kind:      KindHandler,
		BlockID:   block.ID,
		BlockType: block.Type,
		Message:   "handler failed",
		Cause:     err,
	}
}

// KindOf extracts the error kind, defaulting to handler_error for plain errors.
func KindOf(err error) ErrorKind {
	var re *RunError
	if errors.As(err, &re) {
		return re.Kind
	}
	return KindHandler
}
