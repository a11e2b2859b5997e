package task

import (
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docrag/types"
)

func TestCreate_GeneratesID(t *testing.T) {
	m := NewManager()

	id := m.Create("", types.TaskStatus{})
	require.NotEmpty(t, id)

	got, ok := m.Get(id)
	require.True(t, ok)
	assert.Equal(t, id, got.ID)
	assert.Equal(t, types.TaskQueued, got.Status)
	assert.False(t, got.CreatedAt.IsZero())

	assert.Equal(t, "fixed", m.Create("fixed", types.TaskStatus{Status: types.TaskIndexing}))
}

func TestUpdate_MergesFields(t *testing.T) {
	m := NewManager()
	id := m.Create("t1", types.TaskStatus{CurrentFile: "a.pdf", Results: map[string]any{"files": 1}})

	require.NoError(t, m.Update(id, types.TaskUpdate{}.WithProgress(40)))
	require.NoError(t, m.Update(id, types.TaskUpdate{}.
		WithStatus(types.TaskCompleted).
		WithResults(map[string]any{"chunks": 12})))

	got, _ := m.Get(id)
	assert.Equal(t, types.TaskCompleted, got.Status)
	assert.InDelta(t, 40.0, got.Progress, 1e-9)
	assert.Equal(t, "a.pdf", got.CurrentFile)
	assert.Equal(t, map[string]any{"files": 1, "chunks": 12}, got.Results)
}

func TestUpdate_FractionalProgress(t *testing.T) {
	m := NewManager()
	id := m.Create("", types.TaskStatus{})

	require.NoError(t, m.Update(id, types.TaskUpdate{}.WithProgress(12.5)))

	got, _ := m.Get(id)
	assert.InDelta(t, 12.5, got.Progress, 1e-9)

	b, err := json.Marshal(got)
	require.NoError(t, err)
	assert.Contains(t, string(b), `"progress":12.5`)
}

func TestUpdate_UnknownTask(t *testing.T) {
	err := NewManager().Update("missing", types.TaskUpdate{}.WithProgress(1))
	assert.ErrorIs(t, err, ErrTaskNotFound)
}

func TestGet_ReturnsCopy(t *testing.T) {
	m := NewManager()
	id := m.Create("", types.TaskStatus{Results: map[string]any{"k": "v"}})

	got, _ := m.Get(id)
	got.Results["k"] = "changed"
	got.Progress = 99

	again, _ := m.Get(id)
	assert.Equal(t, "v", again.Results["k"])
	assert.Zero(t, again.Progress)

	_, ok := m.Get("nope")
	assert.False(t, ok)
}

func TestList(t *testing.T) {
	m := NewManager()
	m.Create("a", types.TaskStatus{})
	m.Create("b", types.TaskStatus{})

	assert.Len(t, m.List(), 2)
}

func TestConcurrentUpdates(t *testing.T) {
	m := NewManager()
	id := m.Create("", types.TaskStatus{})

	var wg sync.WaitGroup
	for i := range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = m.Update(id, types.TaskUpdate{}.WithProgress(float64(i)))
		}()
	}
	wg.Wait()

	got, _ := m.Get(id)
	assert.GreaterOrEqual(t, got.Progress, 0.0)
	assert.Less(t, got.Progress, 50.0)
}

func TestRun_MarksFailure(t *testing.T) {
	m := NewManager()
	id := m.Create("", types.TaskStatus{})

	<-m.Run(id, func() error { return errors.New("boom") })

	got, _ := m.Get(id)
	assert.Equal(t, types.TaskError, got.Status)
	assert.Equal(t, "boom", got.Error)
}

func TestRun_Success(t *testing.T) {
	m := NewManager()
	id := m.Create("", types.TaskStatus{})

	<-m.Run(id, func() error {
		return m.Update(id, types.TaskUpdate{}.WithStatus(types.TaskCompleted).WithProgress(100))
	})

	got, _ := m.Get(id)
	assert.Equal(t, types.TaskCompleted, got.Status)
	assert.InDelta(t, 100.0, got.Progress, 1e-9)
}
