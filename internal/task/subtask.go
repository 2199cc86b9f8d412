package task

import (
	"fmt"

	"github.com/taskpilot/taskpilot/internal/domain"
)

// Declaration names one subtask and fixes its weight. The full set of
// declarations is supplied when the task is created and never changes
// afterwards, even for subtasks that are never actually run.
type Declaration[N comparable] struct {
	Name   N
	Weight domain.Weight
}

// record is the parent task's private bookkeeping for one declared subtask.
// It is owned exclusively by the task node and guarded by the task mutex.
type record[N comparable] struct {
	name     N
	weight   domain.Weight
	progress domain.Progress // zero value until the first update
	done     bool
	running  bool
}

func (r *record[N]) fraction() float64 {
	return r.progress.Fraction()
}

// Row is a display snapshot of one subtask, with the name already rendered.
// Consumers outside the task package (TUI, logs) read these instead of the
// generic records.
type Row struct {
	Name     string
	Weight   domain.Weight
	Progress domain.Progress
	Done     bool
	Running  bool
}

// renderName produces the display form of a subtask name. Names are only
// required to be comparable; any value renders through fmt.
func renderName(name any) string {
	if s, ok := name.(string); ok {
		return s
	}
	if s, ok := name.(fmt.Stringer); ok {
		return s.String()
	}
	return fmt.Sprint(name)
}
