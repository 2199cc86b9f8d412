package task

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// Execution is the handle returned by RunSubtask. It does not control the
// body; it only reports when the body returned and with what error.
type Execution struct {
	done chan struct{}
	err  error
}

func newExecution() *Execution {
	return &Execution{done: make(chan struct{})}
}

// finish records the body's result and releases waiters. Called exactly once.
func (e *Execution) finish(err error) {
	e.err = err
	close(e.done)
}

// Done returns a channel that is closed when the body has returned.
func (e *Execution) Done() <-chan struct{} {
	return e.done
}

// Err returns the body's error. It is only meaningful after Done is closed;
// before that it returns nil.
func (e *Execution) Err() error {
	select {
	case <-e.done:
		return e.err
	default:
		return nil
	}
}

// Wait blocks until the body returns or ctx ends, whichever comes first.
func (e *Execution) Wait(ctx context.Context) error {
	select {
	case <-e.done:
		return e.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// WaitAll waits for every execution and returns the first error observed.
// Cooperative Cancelled unwinds count as errors here; callers that expect
// them filter with errors.IsCancelled.
func WaitAll(ctx context.Context, execs ...*Execution) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, e := range execs {
		g.Go(func() error {
			return e.Wait(ctx)
		})
	}
	return g.Wait()
}
