package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
)

// ErrorCode represents a unique error identifier
type ErrorCode string

// Error categories
const (
	// Registry and task errors (TASK-001 to TASK-099)
	ErrCodeUnknownTask      ErrorCode = "TASK-001"
	ErrCodeUnknownSubtask   ErrorCode = "TASK-002"
	ErrCodeDuplicateSubtask ErrorCode = "TASK-003"
	ErrCodeSubtaskRunning   ErrorCode = "TASK-004"

	// Progress errors (PROGRESS-001 to PROGRESS-099)
	ErrCodeInvalidProgress ErrorCode = "PROGRESS-001"
	ErrCodeInvalidWeight   ErrorCode = "PROGRESS-002"

	// Control errors (CTRL-001 to CTRL-099)
	ErrCodeCancelled     ErrorCode = "CTRL-001"
	ErrCodeTerminalState ErrorCode = "CTRL-002"

	// Execution errors (EXEC-001 to EXEC-099)
	ErrCodeBodyFailed ErrorCode = "EXEC-001"
)

// TaskError represents an enhanced error with code and suggestions
type TaskError struct {
	Code        ErrorCode
	Message     string
	Suggestions []string
	Cause       error
}

// Error implements the error interface
func (e *TaskError) Error() string {
	var b strings.Builder

	b.WriteString(fmt.Sprintf("[%s] %s", e.Code, e.Message))

	if e.Cause != nil {
		b.WriteString(fmt.Sprintf(": %v", e.Cause))
	}

	if len(e.Suggestions) > 0 {
		b.WriteString("\n\nSuggestions:")
		for _, suggestion := range e.Suggestions {
			b.WriteString(fmt.Sprintf("\n  • %s", suggestion))
		}
	}

	return b.String()
}

// Unwrap implements error unwrapping for errors.Is and errors.As
func (e *TaskError) Unwrap() error {
	return e.Cause
}

// New creates a new TaskError
func New(code ErrorCode, message string) *TaskError {
	return &TaskError{
		Code:    code,
		Message: message,
	}
}

// Wrap creates a new TaskError wrapping an existing error
func Wrap(code ErrorCode, message string, cause error) *TaskError {
	return &TaskError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// WithSuggestion adds a suggestion to the error
func (e *TaskError) WithSuggestion(suggestion string) *TaskError {
	e.Suggestions = append(e.Suggestions, suggestion)
	return e
}

// CodeOf returns the error code carried by err, or the empty code if err
// is not a TaskError anywhere in its chain.
func CodeOf(err error) ErrorCode {
	var te *TaskError
	if stderrors.As(err, &te) {
		return te.Code
	}
	return ""
}

// HasCode reports whether err carries the given error code.
func HasCode(err error, code ErrorCode) bool {
	return CodeOf(err) == code
}

// IsCancelled reports whether err is the cooperative-cancellation signal.
// Body authors must treat it as a normal unwind path, not a failure.
func IsCancelled(err error) bool {
	return HasCode(err, ErrCodeCancelled)
}

// Common error constructors for frequently used errors

// NewUnknownTaskError creates an error for a stale or invalid task ID
func NewUnknownTaskError(id string) *TaskError {
	return New(ErrCodeUnknownTask, fmt.Sprintf("unknown task: %s", id)).
		WithSuggestion("Check that the task ID came from CreateTask").
		WithSuggestion("The task may already have been released from the registry")
}

// NewUnknownSubtaskError creates an error for a name not declared at task creation
func NewUnknownSubtaskError(name string) *TaskError {
	return New(ErrCodeUnknownSubtask, fmt.Sprintf("unknown subtask: %s", name)).
		WithSuggestion("Declare every subtask name when the task is created")
}

// NewDuplicateSubtaskError creates an error for a name declared twice
func NewDuplicateSubtaskError(name string) *TaskError {
	return New(ErrCodeDuplicateSubtask, fmt.Sprintf("duplicate subtask declaration: %s", name)).
		WithSuggestion("Subtask names must be unique within one task")
}

// NewSubtaskRunningError creates an error for a double concurrent run
func NewSubtaskRunningError(name string) *TaskError {
	return New(ErrCodeSubtaskRunning, fmt.Sprintf("subtask already running: %s", name)).
		WithSuggestion("Wait for the in-flight execution to finish before re-running")
}

// NewInvalidProgressError creates a progress construction error
func NewInvalidProgressError(details string) *TaskError {
	return New(ErrCodeInvalidProgress, fmt.Sprintf("invalid progress: %s", details)).
		WithSuggestion("amount must be in [0, total] and total must be positive")
}

// NewCancelledError creates the cooperative cancellation signal
func NewCancelledError() *TaskError {
	return New(ErrCodeCancelled, "cancelled at checkpoint")
}

// NewTerminalStateError creates a non-fatal terminal-state violation
func NewTerminalStateError(state string) *TaskError {
	return New(ErrCodeTerminalState, fmt.Sprintf("task is already %s", state)).
		WithSuggestion("Commands and progress updates after a terminal state are no-ops")
}

// NewBodyFailedError wraps a subtask body's own error
func NewBodyFailedError(subtask string, cause error) *TaskError {
	return Wrap(ErrCodeBodyFailed, fmt.Sprintf("subtask %s failed", subtask), cause)
}
