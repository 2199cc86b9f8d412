package registry

import (
	"context"
	"fmt"
	"io"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskpilot/taskpilot/internal/control"
	"github.com/taskpilot/taskpilot/internal/domain"
	"github.com/taskpilot/taskpilot/internal/errors"
	"github.com/taskpilot/taskpilot/internal/log"
	"github.com/taskpilot/taskpilot/internal/task"
)

func newManager() *Manager[string] {
	logger := log.New(log.Config{Level: log.LevelError, Output: log.NewOutput(io.Discard)})
	return NewManager[string](logger)
}

func TestCreateAndGetTask(t *testing.T) {
	m := newManager()

	id, stream, err := m.CreateTask("pipeline", []task.Declaration[string]{
		{Name: "fetch", Weight: domain.WeightLow},
	})
	require.NoError(t, err)
	require.NotNil(t, stream)

	handle, err := m.GetTask(id)
	require.NoError(t, err)
	assert.Equal(t, id, handle.ID())
	assert.Equal(t, "pipeline", handle.Name())
	assert.Equal(t, task.StatePending, handle.State())
}

func TestCreateTaskRejectsDuplicateDeclarations(t *testing.T) {
	m := newManager()

	_, _, err := m.CreateTask("dup", []task.Declaration[string]{
		{Name: "a", Weight: domain.WeightLow},
		{Name: "a", Weight: domain.WeightLow},
	})
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrCodeDuplicateSubtask))
}

func TestGetTaskUnknownID(t *testing.T) {
	m := newManager()

	_, err := m.GetTask(domain.NewTaskID())
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrCodeUnknownTask))
}

func TestStreamIsLiveBeforeExecutionStarts(t *testing.T) {
	m := newManager()

	id, stream, err := m.CreateTask("early", []task.Declaration[string]{
		{Name: "only", Weight: domain.WeightLow},
	})
	require.NoError(t, err)

	handle, err := m.GetTask(id)
	require.NoError(t, err)

	require.NoError(t, handle.SetSubtaskProgress("only", mustProgress(t, 1, 4)))
	assert.InDelta(t, 0.25, (<-stream).Fraction(), 1e-9)
}

func TestSendCommandThroughRegistry(t *testing.T) {
	m := newManager()

	id, _, err := m.CreateTask("controlled", []task.Declaration[string]{
		{Name: "only", Weight: domain.WeightLow},
	})
	require.NoError(t, err)

	require.NoError(t, m.SendCommand(id, control.CommandCancel))

	handle, err := m.GetTask(id)
	require.NoError(t, err)
	assert.Equal(t, task.StateCancelled, handle.State())

	err = m.SendCommand(domain.NewTaskID(), control.CommandPause)
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrCodeUnknownTask))
}

func TestRemoveReleasesRegistryReference(t *testing.T) {
	m := newManager()

	id, _, err := m.CreateTask("short-lived", nil)
	require.NoError(t, err)

	handle, err := m.GetTask(id)
	require.NoError(t, err)

	require.NoError(t, m.Remove(id))

	_, err = m.GetTask(id)
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrCodeUnknownTask))

	// The outstanding handle stays usable.
	assert.Equal(t, task.StateCompleted, handle.State())

	err = m.Remove(id)
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrCodeUnknownTask))
}

func TestConcurrentCreateLookupRemove(t *testing.T) {
	m := newManager()

	const n = 32
	ids := make([]domain.TaskID, n)

	var create sync.WaitGroup
	for i := 0; i < n; i++ {
		create.Add(1)
		go func(i int) {
			defer create.Done()
			id, _, err := m.CreateTask(fmt.Sprintf("task-%d", i), []task.Declaration[string]{
				{Name: "only", Weight: domain.WeightLow},
			})
			assert.NoError(t, err)
			ids[i] = id
		}(i)
	}
	create.Wait()

	assert.Len(t, m.IDs(), n)

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			handle, err := m.GetTask(ids[i])
			assert.NoError(t, err)

			exec, err := handle.RunSubtask(context.Background(), "only", func(cp *task.Context[string]) error {
				return cp.SetProgress(1, 1, domain.UnitItems)
			})
			assert.NoError(t, err)
			assert.NoError(t, exec.Wait(context.Background()))
			assert.NoError(t, m.Remove(ids[i]))
		}(i)
	}
	wg.Wait()

	assert.Empty(t, m.IDs())
}

func mustProgress(t *testing.T, amount, total float64) domain.Progress {
	t.Helper()
	p, err := domain.NewProgress(amount, total, domain.UnitItems)
	require.NoError(t, err)
	return p
}
