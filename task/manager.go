// Package task tracks background indexing jobs.
package task

import (
	"errors"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"docrag/types"
)

var ErrTaskNotFound = errors.New("task not found")

type Store interface {
	Create(id string, initial types.TaskStatus) string
	Get(id string) (types.TaskStatus, bool)
	Update(id string, patch types.TaskUpdate) error
	List() []types.TaskStatus
}

// Manager is an in-memory Store. Concurrent updates to the same task are
// merged field by field, last writer wins.
type Manager struct {
	mu     sync.RWMutex
	tasks  map[string]*types.TaskStatus
	now    func() time.Time
	logger *slog.Logger
}

func NewManager() *Manager {
	return &Manager{
		tasks:  make(map[string]*types.TaskStatus),
		now:    time.Now,
		logger: slog.Default(),
	}
}

// Create registers a task and returns its id. An empty id gets a random
// uuid. An empty initial status defaults to queued.
func (m *Manager) Create(id string, initial types.TaskStatus) string {
	if id == "" {
		id = uuid.NewString()
	}
	now := m.now()
	initial.ID = id
	if initial.Status == "" {
		initial.Status = types.TaskQueued
	}
	initial.Results = copyResults(initial.Results)
	initial.CreatedAt = now
	initial.UpdatedAt = now

	m.mu.Lock()
	m.tasks[id] = &initial
	m.mu.Unlock()

	m.logger.Info("[TASK] task created", "id", id, "status", initial.Status)
	return id
}

func (m *Manager) Get(id string) (types.TaskStatus, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.tasks[id]
	if !ok {
		return types.TaskStatus{}, false
	}
	return snapshot(t), true
}

func (m *Manager) Update(id string, patch types.TaskUpdate) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.tasks[id]
	if !ok {
		m.logger.Warn("[TASK] update for unknown task", "id", id)
		return ErrTaskNotFound
	}
	if patch.Status != nil {
		t.Status = *patch.Status
	}
	if patch.Progress != nil {
		t.Progress = *patch.Progress
	}
	if patch.Error != nil {
		t.Error = *patch.Error
	}
	if patch.CurrentSegment != nil {
		t.CurrentSegment = *patch.CurrentSegment
	}
	if patch.TotalSegments != nil {
		t.TotalSegments = *patch.TotalSegments
	}
	if patch.CurrentFile != nil {
		t.CurrentFile = *patch.CurrentFile
	}
	if patch.Results != nil {
		if t.Results == nil {
			t.Results = make(map[string]any, len(patch.Results))
		}
		for k, v := range patch.Results {
			t.Results[k] = v
		}
	}
	t.UpdatedAt = m.now()
	return nil
}

// List returns copies of all tasks, oldest first.
func (m *Manager) List() []types.TaskStatus {
	m.mu.RLock()
	out := make([]types.TaskStatus, 0, len(m.tasks))
	for _, t := range m.tasks {
		out = append(out, snapshot(t))
	}
	m.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// Run executes fn on its own goroutine. Jobs are not queued and cannot be
// cancelled. A returned error marks the task failed. The returned channel
// is closed when fn returns.
func (m *Manager) Run(id string, fn func() error) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := fn(); err != nil {
			m.logger.Error("[TASK] task failed", "id", id, "error", err)
			_ = m.Update(id, types.TaskUpdate{}.WithStatus(types.TaskError).WithError(err.Error()))
		}
	}()
	return done
}

func snapshot(t *types.TaskStatus) types.TaskStatus {
	cp := *t
	cp.Results = copyResults(t.Results)
	return cp
}

func copyResults(in map[string]any) map[string]any {
	if in == nil {
		return nil
	}
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
