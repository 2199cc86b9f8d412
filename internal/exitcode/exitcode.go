// Package exitcode maps errors to process exit codes for the CLI.
package exitcode

import (
	"os"

	"github.com/taskpilot/taskpilot/internal/errors"
)

// Exit codes for consistent error handling across the CLI
const (
	// Success indicates successful execution
	Success = 0

	// GeneralError indicates a general error condition
	GeneralError = 1

	// UsageError indicates invalid command usage (bad flags, missing args, etc.)
	UsageError = 2

	// TaskFailed indicates a subtask body failed and the task ended Failed
	TaskFailed = 3

	// TaskCancelled indicates the task was cancelled before completing
	TaskCancelled = 4

	// Interrupted indicates the process was interrupted by a signal
	Interrupted = 130
)

// Exit terminates the program with the given exit code
func Exit(code int) {
	os.Exit(code)
}

// ExitWithError exits with an appropriate code based on error type
func ExitWithError(err error) {
	Exit(DetermineExitCode(err))
}

// DetermineExitCode analyzes an error and returns the appropriate exit code
func DetermineExitCode(err error) int {
	if err == nil {
		return Success
	}

	switch errors.CodeOf(err) {
	case errors.ErrCodeCancelled:
		return TaskCancelled
	case errors.ErrCodeBodyFailed:
		return TaskFailed
	case errors.ErrCodeUnknownTask, errors.ErrCodeUnknownSubtask,
		errors.ErrCodeDuplicateSubtask, errors.ErrCodeInvalidProgress,
		errors.ErrCodeInvalidWeight:
		return UsageError
	default:
		return GeneralError
	}
}
