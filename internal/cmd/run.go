package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/taskpilot/taskpilot/internal/control"
	"github.com/taskpilot/taskpilot/internal/domain"
	"github.com/taskpilot/taskpilot/internal/errors"
	"github.com/taskpilot/taskpilot/internal/log"
	"github.com/taskpilot/taskpilot/internal/registry"
	"github.com/taskpilot/taskpilot/internal/task"
	"github.com/taskpilot/taskpilot/internal/tui"
	"github.com/taskpilot/taskpilot/internal/workload"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a workload as an interruptible task tree",
	Long: `Run a workload: every declared subtask executes concurrently, reporting
chunked progress through checkpoints. The default interactive monitor maps
p/r/c to pause, resume, and cancel; with --plain, aggregate snapshots are
logged instead and commands can be scheduled with the --*-after flags.`,
	RunE: runRun,
}

var (
	runWorkloadPath string
	runPlain        bool
	runTimeout      time.Duration
	runPauseAfter   time.Duration
	runResumeAfter  time.Duration
	runCancelAfter  time.Duration
)

func init() {
	runCmd.Flags().StringVarP(&runWorkloadPath, "workload", "w", "", "workload YAML file (built-in demo workload when omitted)")
	runCmd.Flags().BoolVar(&runPlain, "plain", false, "log aggregate snapshots instead of the interactive monitor")
	runCmd.Flags().DurationVar(&runTimeout, "timeout", 0, "cancel the task if it has not completed after this duration")
	runCmd.Flags().DurationVar(&runPauseAfter, "pause-after", 0, "schedule a pause command (plain mode)")
	runCmd.Flags().DurationVar(&runResumeAfter, "resume-after", 0, "schedule a resume command (plain mode)")
	runCmd.Flags().DurationVar(&runCancelAfter, "cancel-after", 0, "schedule a cancel command (plain mode)")

	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, args []string) error {
	logger := log.DefaultLogger()

	w := workload.Default()
	if runWorkloadPath != "" {
		loaded, err := workload.Load(runWorkloadPath)
		if err != nil {
			return err
		}
		w = loaded
	}

	manager := registry.NewManager[string](logger)
	id, stream, err := manager.CreateTask(w.Task, w.Declarations())
	if err != nil {
		return err
	}

	handle, err := manager.GetTask(id)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	execs := make([]*task.Execution, 0, len(w.Subtasks))
	for _, spec := range w.Subtasks {
		exec, err := handle.RunSubtask(ctx, spec.Name, chunkedBody(spec))
		if err != nil {
			return err
		}
		execs = append(execs, exec)
	}

	// Timeouts are not a core primitive: the deadline simply races the tree
	// and issues a cancel, which lands at the next checkpoints.
	if runTimeout > 0 {
		defer scheduleCommand(handle, control.CommandCancel, runTimeout, logger)()
	}

	if runPlain {
		return runPlainMode(ctx, handle, stream, execs, logger)
	}

	if err := tui.Run(handle); err != nil {
		return fmt.Errorf("monitor: %w", err)
	}
	return settle(ctx, handle, execs)
}

// chunkedBody builds a subtask body that processes spec.Chunks units of
// synthetic work, one checkpoint and one progress update per chunk.
func chunkedBody(spec workload.SubtaskSpec) task.Body[string] {
	return func(cp *task.Context[string]) error {
		for i := 1; i <= spec.Chunks; i++ {
			_, err := task.Interruptable(cp, func(ctx context.Context) (int, error) {
				select {
				case <-time.After(spec.ChunkDuration):
					return i, nil
				case <-ctx.Done():
					return 0, ctx.Err()
				}
			})
			if err != nil {
				return err
			}
			if err := cp.SetProgress(float64(i), float64(spec.Chunks), domain.UnitItems); err != nil {
				return err
			}
		}
		return nil
	}
}

func runPlainMode(ctx context.Context, handle *task.Task[string], stream <-chan domain.Progress, execs []*task.Execution, logger *log.Logger) error {
	for _, setup := range []struct {
		cmd   control.Command
		after time.Duration
	}{
		{control.CommandPause, runPauseAfter},
		{control.CommandResume, runResumeAfter},
		{control.CommandCancel, runCancelAfter},
	} {
		if setup.after > 0 {
			defer scheduleCommand(handle, setup.cmd, setup.after, logger)()
		}
	}

	drained := make(chan struct{})
	go func() {
		defer close(drained)
		for p := range stream {
			logger.Info("progress", "task", handle.Name(), "aggregate", p.String(), "state", handle.State().String())
		}
	}()

	err := settle(ctx, handle, execs)
	<-drained
	return err
}

// settle waits for every body and reports the tree's final outcome.
func settle(ctx context.Context, handle *task.Task[string], execs []*task.Execution) error {
	waitErr := task.WaitAll(ctx, execs...)

	switch state := handle.State(); state {
	case task.StateCompleted:
		return nil
	case task.StateFailed:
		return handle.Err()
	case task.StateCancelled, task.StateCancelling:
		return errors.NewCancelledError()
	default:
		if waitErr != nil {
			return waitErr
		}
		return fmt.Errorf("task ended in unexpected state %s", state)
	}
}

// scheduleCommand sends cmd after the delay; the returned stop function
// cancels the timer if the run finishes first.
func scheduleCommand(handle *task.Task[string], cmd control.Command, after time.Duration, logger *log.Logger) func() {
	timer := time.AfterFunc(after, func() {
		logger.Info("sending scheduled command", "command", cmd.String())
		if err := handle.SendCommand(cmd); err != nil {
			logger.WithError(err).Debug("scheduled command ignored")
		}
	})
	return func() { timer.Stop() }
}
