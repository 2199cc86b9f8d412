package task

import (
	"context"

	"github.com/taskpilot/taskpilot/internal/domain"
	"github.com/taskpilot/taskpilot/internal/errors"
)

// Context is the execution context handed to a subtask body. It binds the
// body to its task+subtask pair and carries the caller's context.Context
// for external deadlines.
type Context[N comparable] struct {
	ctx     context.Context
	task    *Task[N]
	subtask N
}

// Context returns the context.Context the body was spawned with.
func (c *Context[N]) Context() context.Context {
	return c.ctx
}

// Task returns the owning task node.
func (c *Context[N]) Task() *Task[N] {
	return c.task
}

// Subtask returns the name this execution is bound to.
func (c *Context[N]) Subtask() N {
	return c.subtask
}

// SetProgress reports progress for this execution's own subtask.
func (c *Context[N]) SetProgress(amount, total float64, unit domain.Unit) error {
	p, err := domain.NewProgress(amount, total, unit)
	if err != nil {
		return err
	}
	return c.task.SetSubtaskProgress(c.subtask, p)
}

// Interruptable wraps one discrete, bounded unit of subtask work with a
// cooperative checkpoint. It is the sole mechanism by which pause and
// cancel reach running work, so the size of each wrapped unit bounds the
// achievable interruption latency.
//
// Before the unit runs, a pending cancel returns a Cancelled error without
// invoking it, and a pending pause parks the calling goroutine on the
// command channel's gate until a resume or cancel arrives. Errors from the
// unit itself propagate unchanged. After the unit succeeds, a cancel that
// arrived meanwhile is reported instead of the result, so no checkpoint
// after a cancel ever yields success.
func Interruptable[N comparable, T any](cp *Context[N], work func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	t := cp.task

	for {
		paused, cancelled, gate := t.commandState()
		if cancelled {
			return zero, errors.NewCancelledError()
		}
		if !paused {
			break
		}

		t.markPaused()
		select {
		case <-gate:
			t.markResumed()
		case <-cp.ctx.Done():
			return zero, errors.Wrap(errors.ErrCodeCancelled,
				"context ended while paused", cp.ctx.Err())
		}
	}

	out, err := work(cp.ctx)
	if err != nil {
		return zero, err
	}

	if t.control.Cancelled() {
		return zero, errors.NewCancelledError()
	}
	return out, nil
}
