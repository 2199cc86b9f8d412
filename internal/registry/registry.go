// Package registry creates task trees and hands out shared,
// concurrency-safe handles to them by identity.
package registry

import (
	"sync"

	"github.com/taskpilot/taskpilot/internal/control"
	"github.com/taskpilot/taskpilot/internal/domain"
	"github.com/taskpilot/taskpilot/internal/errors"
	"github.com/taskpilot/taskpilot/internal/log"
	"github.com/taskpilot/taskpilot/internal/task"
)

// Manager owns zero or more task nodes keyed by TaskID. One manager serves
// tasks whose subtasks are named by a single comparable type N. Lookups
// never block on running subtask work; the map lock is only ever held for
// map access.
type Manager[N comparable] struct {
	mu     sync.RWMutex
	tasks  map[domain.TaskID]*task.Task[N]
	logger *log.Logger
}

// NewManager creates an empty registry.
func NewManager[N comparable](logger *log.Logger) *Manager[N] {
	if logger == nil {
		logger = log.DefaultLogger()
	}
	return &Manager[N]{
		tasks:  make(map[domain.TaskID]*task.Task[N]),
		logger: logger,
	}
}

// CreateTask allocates a new task node in Pending state, registers it, and
// returns its identity together with an open progress stream. The stream is
// live immediately, decoupled from when execution actually starts.
func (m *Manager[N]) CreateTask(name string, decls []task.Declaration[N]) (domain.TaskID, <-chan domain.Progress, error) {
	t, err := task.New(name, decls, m.logger)
	if err != nil {
		return "", nil, err
	}

	stream, _ := t.Subscribe()

	m.mu.Lock()
	m.tasks[t.ID()] = t
	m.mu.Unlock()

	m.logger.Info("task created",
		"task_id", t.ID().String(), "task", name, "subtasks", len(decls))
	return t.ID(), stream, nil
}

// GetTask returns the shared handle for id, or UnknownTask if the id was
// never issued or the node has been released.
func (m *Manager[N]) GetTask(id domain.TaskID) (*task.Task[N], error) {
	m.mu.RLock()
	t, ok := m.tasks[id]
	m.mu.RUnlock()

	if !ok {
		return nil, errors.NewUnknownTaskError(id.String())
	}
	return t, nil
}

// SendCommand routes a controller command to the identified task.
func (m *Manager[N]) SendCommand(id domain.TaskID, cmd control.Command) error {
	t, err := m.GetTask(id)
	if err != nil {
		return err
	}
	return t.SendCommand(cmd)
}

// Remove drops the registry's reference to a task. Outstanding handles
// stay valid; subsequent lookups report UnknownTask.
func (m *Manager[N]) Remove(id domain.TaskID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.tasks[id]; !ok {
		return errors.NewUnknownTaskError(id.String())
	}
	delete(m.tasks, id)
	return nil
}

// IDs returns the identities of every registered task.
func (m *Manager[N]) IDs() []domain.TaskID {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ids := make([]domain.TaskID, 0, len(m.tasks))
	for id := range m.tasks {
		ids = append(ids, id)
	}
	return ids
}
