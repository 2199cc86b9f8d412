package task

import (
	"context"
	"fmt"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskpilot/taskpilot/internal/control"
	"github.com/taskpilot/taskpilot/internal/domain"
	"github.com/taskpilot/taskpilot/internal/errors"
	"github.com/taskpilot/taskpilot/internal/log"
)

func quietLogger() *log.Logger {
	return log.New(log.Config{Level: log.LevelError, Output: log.NewOutput(io.Discard)})
}

func mustProgress(t *testing.T, amount, total float64, unit domain.Unit) domain.Progress {
	t.Helper()
	p, err := domain.NewProgress(amount, total, unit)
	require.NoError(t, err)
	return p
}

func twoEqualSubtasks(t *testing.T) *Task[string] {
	t.Helper()
	tk, err := New("pipeline", []Declaration[string]{
		{Name: "a", Weight: domain.WeightLow},
		{Name: "b", Weight: domain.WeightLow},
	}, quietLogger())
	require.NoError(t, err)
	return tk
}

func TestNewTaskValidation(t *testing.T) {
	logger := quietLogger()

	t.Run("duplicate names rejected", func(t *testing.T) {
		_, err := New("dup", []Declaration[string]{
			{Name: "a", Weight: domain.WeightLow},
			{Name: "a", Weight: domain.WeightHigh},
		}, logger)
		require.Error(t, err)
		assert.True(t, errors.HasCode(err, errors.ErrCodeDuplicateSubtask))
	})

	t.Run("uninitialized weight rejected", func(t *testing.T) {
		_, err := New("bad", []Declaration[string]{{Name: "a"}}, logger)
		require.Error(t, err)
		assert.True(t, errors.HasCode(err, errors.ErrCodeInvalidWeight))
	})
}

func TestZeroSubtaskTaskCompletesImmediately(t *testing.T) {
	tk, err := New[string]("empty", nil, quietLogger())
	require.NoError(t, err)

	assert.Equal(t, StateCompleted, tk.State())
	assert.InDelta(t, 1.0, tk.Aggregate().Fraction(), 1e-9)

	// A late subscriber still sees the final snapshot, then the closed stream.
	stream, _ := tk.Subscribe()
	p, ok := <-stream
	require.True(t, ok)
	assert.InDelta(t, 1.0, p.Fraction(), 1e-9)
	_, ok = <-stream
	assert.False(t, ok)
}

func TestEqualWeightAggregation(t *testing.T) {
	tk := twoEqualSubtasks(t)

	require.NoError(t, tk.SetSubtaskProgress("a", mustProgress(t, 50, 100, domain.UnitPercent)))
	assert.InDelta(t, 0.25, tk.Aggregate().Fraction(), 1e-9)

	require.NoError(t, tk.SetSubtaskProgress("a", mustProgress(t, 100, 100, domain.UnitPercent)))
	assert.InDelta(t, 0.50, tk.Aggregate().Fraction(), 1e-9)
}

func TestWeightedAggregationScenario(t *testing.T) {
	tk, err := New("Main", []Declaration[string]{
		{Name: "A", Weight: domain.WeightLow},  // weight 1
		{Name: "B", Weight: domain.WeightHigh}, // weight 4
	}, quietLogger())
	require.NoError(t, err)

	ctx := context.Background()
	release := make(chan struct{})

	runReporting := func(name string, amount, total float64) *Execution {
		exec, err := tk.RunSubtask(ctx, name, func(cp *Context[string]) error {
			if err := cp.SetProgress(amount, total, domain.UnitItems); err != nil {
				return err
			}
			<-release
			if amount < total {
				return cp.SetProgress(total, total, domain.UnitItems)
			}
			return nil
		})
		require.NoError(t, err)
		return exec
	}

	execA := runReporting("A", 100, 100)
	execB := runReporting("B", 0, 5)

	assert.Eventually(t, func() bool {
		return tk.Aggregate().Fraction() == (1*1.0+4*0.0)/5
	}, 2*time.Second, time.Millisecond, "expected aggregate 0.20 after A=100/100, B=0/5")

	close(release)
	require.NoError(t, WaitAll(ctx, execA, execB))

	assert.InDelta(t, 1.0, tk.Aggregate().Fraction(), 1e-9)
	assert.Equal(t, StateCompleted, tk.State())
}

func TestAggregateMonotonicAndBounded(t *testing.T) {
	tk, err := New("bounded", []Declaration[string]{
		{Name: "x", Weight: domain.WeightLow},
		{Name: "y", Weight: domain.WeightMedium},
		{Name: "z", Weight: domain.WeightHigh},
	}, quietLogger())
	require.NoError(t, err)

	prev := tk.Aggregate().Fraction()
	steps := []struct {
		name   string
		amount float64
	}{
		{"x", 1}, {"y", 2}, {"x", 5}, {"z", 7}, {"y", 10}, {"x", 10}, {"z", 10},
	}
	for _, s := range steps {
		require.NoError(t, tk.SetSubtaskProgress(s.name, mustProgress(t, s.amount, 10, domain.UnitItems)))
		frac := tk.Aggregate().Fraction()
		assert.GreaterOrEqual(t, frac, prev)
		assert.GreaterOrEqual(t, frac, 0.0)
		assert.LessOrEqual(t, frac, 1.0)
		prev = frac
	}
}

func TestUnknownSubtaskLeavesAggregateUnchanged(t *testing.T) {
	tk := twoEqualSubtasks(t)
	require.NoError(t, tk.SetSubtaskProgress("a", mustProgress(t, 50, 100, domain.UnitPercent)))
	before := tk.Aggregate().Fraction()

	err := tk.SetSubtaskProgress("ghost", mustProgress(t, 1, 2, domain.UnitItems))
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrCodeUnknownSubtask))
	assert.Equal(t, before, tk.Aggregate().Fraction())
}

func TestInvalidProgressRetainsPriorValue(t *testing.T) {
	tk := twoEqualSubtasks(t)
	require.NoError(t, tk.SetSubtaskProgress("a", mustProgress(t, 50, 100, domain.UnitPercent)))

	_, err := domain.NewProgress(110, 100, domain.UnitPercent)
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrCodeInvalidProgress))

	rows := tk.StatusRows()
	assert.Equal(t, 50.0, rows[0].Progress.Amount())
	assert.InDelta(t, 0.25, tk.Aggregate().Fraction(), 1e-9)
}

func TestRunSubtaskValidation(t *testing.T) {
	tk := twoEqualSubtasks(t)
	ctx := context.Background()

	_, err := tk.RunSubtask(ctx, "ghost", func(cp *Context[string]) error { return nil })
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrCodeUnknownSubtask))

	release := make(chan struct{})
	exec, err := tk.RunSubtask(ctx, "a", func(cp *Context[string]) error {
		<-release
		return nil
	})
	require.NoError(t, err)

	// A second concurrent execution of the same name is rejected.
	_, err = tk.RunSubtask(ctx, "a", func(cp *Context[string]) error { return nil })
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrCodeSubtaskRunning))

	close(release)
	require.NoError(t, exec.Wait(ctx))

	// Re-running after the first body returned is allowed.
	exec2, err := tk.RunSubtask(ctx, "a", func(cp *Context[string]) error { return nil })
	require.NoError(t, err)
	require.NoError(t, exec2.Wait(ctx))
}

func TestFirstBodyTransitionsPendingToRunning(t *testing.T) {
	tk := twoEqualSubtasks(t)
	assert.Equal(t, StatePending, tk.State())

	release := make(chan struct{})
	exec, err := tk.RunSubtask(context.Background(), "a", func(cp *Context[string]) error {
		<-release
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, StateRunning, tk.State())

	close(release)
	require.NoError(t, exec.Wait(context.Background()))
}

func TestBodyFailureTerminatesTask(t *testing.T) {
	tk := twoEqualSubtasks(t)
	ctx := context.Background()

	started := make(chan struct{})
	sibling, err := tk.RunSubtask(ctx, "b", func(cp *Context[string]) error {
		close(started)
		for {
			// Each checkpoint observes the derived cancel after the failure.
			_, err := Interruptable(cp, func(ctx context.Context) (struct{}, error) {
				time.Sleep(time.Millisecond)
				return struct{}{}, nil
			})
			if err != nil {
				return err
			}
		}
	})
	require.NoError(t, err)
	<-started

	boom := fmt.Errorf("disk full")
	failing, err := tk.RunSubtask(ctx, "a", func(cp *Context[string]) error {
		return boom
	})
	require.NoError(t, err)

	assert.ErrorIs(t, failing.Wait(ctx), boom)
	assert.Equal(t, StateFailed, tk.State())
	assert.True(t, errors.HasCode(tk.Err(), errors.ErrCodeBodyFailed))

	// The sibling unwinds cooperatively; the task stays Failed, and the
	// sibling's recorded progress is untouched by the failure.
	assert.True(t, errors.IsCancelled(sibling.Wait(ctx)))
	assert.Equal(t, StateFailed, tk.State())
}

func TestCommandsOnTerminalTaskAreReportedNoOps(t *testing.T) {
	tk, err := New[string]("empty", nil, quietLogger())
	require.NoError(t, err)

	cmdErr := tk.SendCommand(control.CommandCancel)
	require.Error(t, cmdErr)
	assert.True(t, errors.HasCode(cmdErr, errors.ErrCodeTerminalState))
	assert.Equal(t, StateCompleted, tk.State())

	progErr := tk.SetSubtaskProgress("a", mustProgress(t, 1, 2, domain.UnitItems))
	require.Error(t, progErr)
	assert.True(t, errors.HasCode(progErr, errors.ErrCodeTerminalState))
}

func TestCancelPendingTask(t *testing.T) {
	tk := twoEqualSubtasks(t)

	require.NoError(t, tk.SendCommand(control.CommandCancel))
	assert.Equal(t, StateCancelled, tk.State())

	_, err := tk.RunSubtask(context.Background(), "a", func(cp *Context[string]) error { return nil })
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrCodeTerminalState))
}

func TestCancelRunningTaskSettlesWhenBodiesExit(t *testing.T) {
	tk := twoEqualSubtasks(t)
	ctx := context.Background()

	reached := make(chan struct{})
	proceed := make(chan struct{})
	exec, err := tk.RunSubtask(ctx, "a", func(cp *Context[string]) error {
		close(reached)
		<-proceed
		_, err := Interruptable(cp, func(ctx context.Context) (struct{}, error) {
			return struct{}{}, nil
		})
		return err
	})
	require.NoError(t, err)
	<-reached

	require.NoError(t, tk.SendCommand(control.CommandCancel))
	assert.Equal(t, StateCancelling, tk.State())

	close(proceed)
	assert.True(t, errors.IsCancelled(exec.Wait(ctx)))
	assert.Equal(t, StateCancelled, tk.State())
}

func TestStatusRowsReflectDeclarationOrder(t *testing.T) {
	tk, err := New("ordered", []Declaration[string]{
		{Name: "fetch", Weight: domain.WeightLow},
		{Name: "transform", Weight: domain.WeightHigh},
		{Name: "store", Weight: domain.WeightMedium},
	}, quietLogger())
	require.NoError(t, err)

	require.NoError(t, tk.SetSubtaskProgress("transform", mustProgress(t, 3, 4, domain.UnitItems)))

	rows := tk.StatusRows()
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"fetch", "transform", "store"},
		[]string{rows[0].Name, rows[1].Name, rows[2].Name})
	assert.InDelta(t, 0.75, rows[1].Progress.Fraction(), 1e-9)
	assert.False(t, rows[1].Done)
}

func TestIntegerSubtaskNames(t *testing.T) {
	tk, err := New("numeric", []Declaration[int]{
		{Name: 1, Weight: domain.WeightLow},
		{Name: 2, Weight: domain.WeightLow},
	}, quietLogger())
	require.NoError(t, err)

	require.NoError(t, tk.SetSubtaskProgress(1, mustProgress(t, 1, 1, domain.UnitItems)))

	err = tk.SetSubtaskProgress(3, mustProgress(t, 1, 1, domain.UnitItems))
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrCodeUnknownSubtask))

	rows := tk.StatusRows()
	assert.Equal(t, "1", rows[0].Name)
}
