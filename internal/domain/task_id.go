package domain

import (
	"fmt"

	"github.com/google/uuid"
)

// TaskID uniquely identifies a task for its whole lifetime.
// It is the sole key used by the registry and by external controllers.
type TaskID string

// NewTaskID generates a fresh random task identifier.
func NewTaskID() TaskID {
	return TaskID(uuid.New().String())
}

// ParseTaskID validates an externally supplied identifier string.
func ParseTaskID(value string) (TaskID, error) {
	if _, err := uuid.Parse(value); err != nil {
		return "", fmt.Errorf("invalid task ID %q: %w", value, err)
	}
	return TaskID(value), nil
}

// String returns the string representation
func (t TaskID) String() string {
	return string(t)
}

// Equals checks if this task ID equals another
func (t TaskID) Equals(other TaskID) bool {
	return t == other
}
