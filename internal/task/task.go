// Package task implements the orchestration core: task nodes with weighted
// subtask progress, a cooperative command channel, and the checkpoint
// primitive through which pause and cancel reach running work.
package task

import (
	"context"
	"sync"

	"github.com/taskpilot/taskpilot/internal/control"
	"github.com/taskpilot/taskpilot/internal/domain"
	"github.com/taskpilot/taskpilot/internal/errors"
	"github.com/taskpilot/taskpilot/internal/log"
)

// Body is the user-supplied work of one subtask. It receives an execution
// context bound to its task+subtask pair and reports progress through it.
// A body that never passes through Interruptable cannot be paused or
// cancelled; it runs to natural completion.
type Body[N comparable] func(cp *Context[N]) error

// Task is a tree node owning a fixed, ordered set of weighted subtasks, the
// aggregate state machine, the command channel, and the progress broadcast.
// One node is shared by every concurrently running subtask body and by the
// external controller; all mutable state is guarded by one mutex that is
// never held across a blocking point.
type Task[N comparable] struct {
	id      domain.TaskID
	name    string
	logger  *log.Logger
	control *control.Channel
	stream  *broadcaster

	mu       sync.Mutex
	state    State
	cause    error // terminal error, set once with StateFailed
	records  []*record[N]
	index    map[N]int
	inflight int
}

// New creates a task node in Pending state with its full subtask set.
// Subtask names must be unique; weights must be valid. A task declared with
// zero subtasks trivially completes at creation and reports 100% aggregate.
func New[N comparable](name string, decls []Declaration[N], logger *log.Logger) (*Task[N], error) {
	if logger == nil {
		logger = log.DefaultLogger()
	}

	t := &Task[N]{
		id:      domain.NewTaskID(),
		name:    name,
		control: control.NewChannel(),
		stream:  newBroadcaster(),
		records: make([]*record[N], 0, len(decls)),
		index:   make(map[N]int, len(decls)),
		state:   StatePending,
	}
	t.logger = logger.With("task_id", t.id.String(), "task", name)

	for _, d := range decls {
		if err := d.Weight.Validate(); err != nil {
			return nil, errors.Wrap(errors.ErrCodeInvalidWeight,
				"invalid weight for subtask "+renderName(d.Name), err)
		}
		if _, dup := t.index[d.Name]; dup {
			return nil, errors.NewDuplicateSubtaskError(renderName(d.Name))
		}
		t.index[d.Name] = len(t.records)
		t.records = append(t.records, &record[N]{name: d.Name, weight: d.Weight})
	}

	if len(t.records) == 0 {
		t.state = StateCompleted
		t.stream.publish(domain.PercentProgress(1))
		t.stream.close()
		t.logger.Debug("task declared without subtasks, completed trivially")
	}

	return t, nil
}

// ID returns the task's stable identity.
func (t *Task[N]) ID() domain.TaskID {
	return t.id
}

// Name returns the task's display name.
func (t *Task[N]) Name() string {
	return t.name
}

// State returns the current lifecycle state.
func (t *Task[N]) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Err returns the terminal error for a Failed task, nil otherwise.
func (t *Task[N]) Err() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.cause
}

// Subscribe opens a new progress stream carrying one aggregate snapshot per
// recomputation. Consumers read it without participating in execution; the
// stream closes when the task reaches a terminal state. The returned stop
// function detaches early.
func (t *Task[N]) Subscribe() (<-chan domain.Progress, func()) {
	return t.stream.subscribe()
}

// SendCommand delivers a pause, resume, or cancel to the task. It never
// blocks. Commands sent to a task already in a terminal state are no-ops
// and report a TerminalStateViolation the caller may ignore.
func (t *Task[N]) SendCommand(cmd control.Command) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.state.IsTerminal() {
		t.logger.Debug("command ignored, task is terminal",
			"command", cmd.String(), "state", t.state.String())
		return errors.NewTerminalStateError(t.state.String())
	}

	switch cmd {
	case control.CommandPause:
		t.control.Pause()
	case control.CommandResume:
		t.control.Resume()
		if t.state == StatePaused {
			t.state = StateRunning
		}
	case control.CommandCancel:
		t.control.Cancel()
		switch t.state {
		case StatePending:
			// No body ever started, nothing to unwind.
			t.terminateLocked(StateCancelled, nil)
		case StateRunning, StatePaused:
			t.state = StateCancelling
		}
	}

	t.logger.Debug("command delivered", "command", cmd.String(), "state", t.state.String())
	return nil
}

// SetSubtaskProgress replaces the named subtask's progress wholesale and
// synchronously recomputes and broadcasts the aggregate. Unknown names and
// updates after a terminal state are rejected without touching recorded
// progress.
func (t *Task[N]) SetSubtaskProgress(name N, p domain.Progress) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.state.IsTerminal() {
		err := errors.NewTerminalStateError(t.state.String())
		t.logger.WithError(err).Warn("progress update rejected", "subtask", renderName(name))
		return err
	}

	idx, ok := t.index[name]
	if !ok {
		err := errors.NewUnknownSubtaskError(renderName(name))
		t.logger.WithError(err).Warn("progress update rejected")
		return err
	}

	rec := t.records[idx]
	rec.progress = p
	rec.done = p.IsComplete()

	t.stream.publish(domain.PercentProgress(t.aggregateLocked()))
	t.maybeCompleteLocked()
	return nil
}

// Aggregate returns the current weighted aggregate as a canonical
// percentage Progress.
func (t *Task[N]) Aggregate() domain.Progress {
	t.mu.Lock()
	defer t.mu.Unlock()
	return domain.PercentProgress(t.aggregateLocked())
}

// StatusRows returns a display snapshot of every declared subtask in
// declaration order.
func (t *Task[N]) StatusRows() []Row {
	t.mu.Lock()
	defer t.mu.Unlock()

	rows := make([]Row, len(t.records))
	for i, rec := range t.records {
		rows[i] = Row{
			Name:     renderName(rec.name),
			Weight:   rec.weight,
			Progress: rec.progress,
			Done:     rec.done,
			Running:  rec.running,
		}
	}
	return rows
}

// RunSubtask spawns body as an independent goroutine bound to the named
// subtask and returns immediately with an execution handle; awaiting and
// composing handles is the caller's concern. The name must have been
// declared at creation, and at most one execution per name may be in
// flight at a time.
func (t *Task[N]) RunSubtask(ctx context.Context, name N, body Body[N]) (*Execution, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	t.mu.Lock()
	if t.state.IsTerminal() {
		t.mu.Unlock()
		return nil, errors.NewTerminalStateError(t.state.String())
	}
	idx, ok := t.index[name]
	if !ok {
		t.mu.Unlock()
		return nil, errors.NewUnknownSubtaskError(renderName(name))
	}
	rec := t.records[idx]
	if rec.running {
		t.mu.Unlock()
		return nil, errors.NewSubtaskRunningError(renderName(name))
	}
	rec.running = true
	t.inflight++
	if t.state == StatePending {
		t.state = StateRunning
	}
	t.mu.Unlock()

	t.logger.Debug("subtask started", "subtask", renderName(name))

	exec := newExecution()
	cp := &Context[N]{ctx: ctx, task: t, subtask: name}

	go func() {
		err := body(cp)
		t.finishSubtask(name, err)
		exec.finish(err)
	}()

	return exec, nil
}

// finishSubtask settles the state machine after a body returns.
func (t *Task[N]) finishSubtask(name N, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	rec := t.records[t.index[name]]
	rec.running = false
	t.inflight--

	switch {
	case err == nil:
		t.logger.Debug("subtask finished", "subtask", renderName(name))
	case errors.IsCancelled(err):
		t.logger.Debug("subtask unwound on cancel", "subtask", renderName(name))
	default:
		// A body's own failure is terminal for the whole task. In-flight
		// siblings observe the derived cancel at their next checkpoint.
		if !t.state.IsTerminal() {
			t.control.Cancel()
			t.terminateLocked(StateFailed, errors.NewBodyFailedError(renderName(name), err))
		}
	}

	if t.state == StateCancelling && t.inflight == 0 {
		t.terminateLocked(StateCancelled, nil)
	}
	t.maybeCompleteLocked()
}

// markPaused flips Running to Paused when a checkpoint observes the pause
// level. Called by the checkpoint primitive only.
func (t *Task[N]) markPaused() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state == StateRunning {
		t.state = StatePaused
		t.logger.Debug("pause observed at checkpoint")
	}
}

// markResumed flips Paused back to Running once a waiting checkpoint wakes.
func (t *Task[N]) markResumed() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state == StatePaused {
		t.state = StateRunning
	}
}

// commandState exposes the command channel to the checkpoint primitive.
func (t *Task[N]) commandState() (paused, cancelled bool, gate <-chan struct{}) {
	return t.control.Snapshot()
}

// aggregateLocked computes Σ(weight_i × fraction_i) / Σ(weight_i).
// Weights of subtasks that never run still count, so a partially executed
// tree reports a stable, monotonically bounded fraction.
func (t *Task[N]) aggregateLocked() float64 {
	if len(t.records) == 0 {
		return 1
	}
	var sum, acc float64
	for _, rec := range t.records {
		sum += rec.weight.Value()
		acc += rec.weight.Value() * rec.fraction()
	}
	return acc / sum
}

// maybeCompleteLocked transitions Running to Completed once every declared
// subtask reports full progress and no body remains in flight.
func (t *Task[N]) maybeCompleteLocked() {
	if t.state != StateRunning || t.inflight > 0 {
		return
	}
	for _, rec := range t.records {
		if !rec.done {
			return
		}
	}
	t.terminateLocked(StateCompleted, nil)
}

// terminateLocked commits a terminal state, publishes the final aggregate,
// and closes the progress stream. Callers hold t.mu.
func (t *Task[N]) terminateLocked(final State, cause error) {
	if t.state.IsTerminal() {
		return
	}
	t.state = final
	t.cause = cause

	t.stream.publish(domain.PercentProgress(t.aggregateLocked()))
	t.stream.close()

	switch final {
	case StateFailed:
		t.logger.WithError(cause).Error("task failed")
	default:
		t.logger.Info("task finished", "state", final.String())
	}
}
