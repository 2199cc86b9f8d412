package domain

import "fmt"

// Weight represents the relative importance of a subtask within its parent
// task. It is a value object: fixed at declaration time and used only for
// relative comparison among sibling subtasks during aggregation.
type Weight struct {
	label string
	value float64
}

// Named weight levels and their contribution factors.
var (
	WeightLow    = Weight{label: "low", value: 1}
	WeightMedium = Weight{label: "medium", value: 2}
	WeightHigh   = Weight{label: "high", value: 4}
)

// CustomWeight creates a Weight with an explicit contribution factor.
// The factor must be positive.
func CustomWeight(value float64) (Weight, error) {
	if value <= 0 {
		return Weight{}, fmt.Errorf("weight must be positive, got %v", value)
	}
	return Weight{label: "custom", value: value}, nil
}

// ParseWeight parses a named weight level.
func ParseWeight(s string) (Weight, error) {
	switch s {
	case "low":
		return WeightLow, nil
	case "medium":
		return WeightMedium, nil
	case "high":
		return WeightHigh, nil
	default:
		return Weight{}, fmt.Errorf("invalid weight %q: must be low, medium, or high", s)
	}
}

// Value returns the numeric contribution factor.
func (w Weight) Value() float64 {
	return w.value
}

// Validate checks that the weight was constructed through one of the
// named levels or CustomWeight.
func (w Weight) Validate() error {
	if w.value <= 0 {
		return fmt.Errorf("weight is not initialized")
	}
	return nil
}

// IsHeavierThan checks if this weight contributes more than another.
func (w Weight) IsHeavierThan(other Weight) bool {
	return w.value > other.value
}

// String returns the string representation
func (w Weight) String() string {
	if w.label == "custom" {
		return fmt.Sprintf("custom(%g)", w.value)
	}
	return w.label
}
