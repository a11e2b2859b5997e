package store

import (
	"context"
	"errors"
	"maps"
	"math"
	"sort"
	"sync"
)

// MemoryIndex is a brute-force index kept in process memory.
type MemoryIndex struct {
	name string

	mu      sync.RWMutex
	dim     int
	order   []string
	records map[string]Record
}

var _ Index = (*MemoryIndex)(nil)

func NewMemoryIndex(name string) *MemoryIndex {
	return &MemoryIndex{
		name:    name,
		records: make(map[string]Record),
	}
}

func (m *MemoryIndex) Name() string { return m.name }

func (m *MemoryIndex) EnsureCollection(_ context.Context, dim int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.dim == 0 {
		m.dim = dim
	}
	return nil
}

func (m *MemoryIndex) Upsert(_ context.Context, records []Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range records {
		if _, ok := m.records[r.ID]; !ok {
			m.order = append(m.order, r.ID)
		}
		r.Metadata = maps.Clone(r.Metadata)
		m.records[r.ID] = r
	}
	return nil
}

func (m *MemoryIndex) Query(_ context.Context, vec []float32, k int, filter map[string]any) ([]Hit, error) {
	if len(vec) == 0 {
		return nil, ErrEmptyVector
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	hits := make([]Hit, 0, len(m.records))
	for _, id := range m.order {
		r := m.records[id]
		if len(filter) > 0 && !matchFilter(r.Metadata, filter) {
			continue
		}
		hits = append(hits, Hit{Record: r, Distance: cosineDistance(vec, r.Embedding)})
	}
	sort.SliceStable(hits, func(i, j int) bool {
		return hits[i].Distance < hits[j].Distance
	})
	if k >= 0 && len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}

func (m *MemoryIndex) Get(_ context.Context, id string) (*Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.records[id]
	if !ok {
		return nil, nil
	}
	return &r, nil
}

func (m *MemoryIndex) Delete(_ context.Context, ids []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range ids {
		m.remove(id)
	}
	return nil
}

func (m *MemoryIndex) DeleteWhere(_ context.Context, filter map[string]any) (int, error) {
	if len(filter) == 0 {
		return 0, errors.New("refusing to delete with an empty filter")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var victims []string
	for _, id := range m.order {
		if matchFilter(m.records[id].Metadata, filter) {
			victims = append(victims, id)
		}
	}
	for _, id := range victims {
		m.remove(id)
	}
	return len(victims), nil
}

// remove expects mu to be held.
func (m *MemoryIndex) remove(id string) {
	if _, ok := m.records[id]; !ok {
		return
	}
	delete(m.records, id)
	for i, o := range m.order {
		if o == id {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
}

func (m *MemoryIndex) Count(context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.records), nil
}

func (m *MemoryIndex) Peek(_ context.Context, n int) ([]Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Record, 0, min(n, len(m.order)))
	for _, id := range m.order {
		if len(out) == n {
			break
		}
		out = append(out, m.records[id])
	}
	return out, nil
}

func (m *MemoryIndex) Close() error { return nil }

func cosineDistance(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 1
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 1
	}
	return 1 - dot/(math.Sqrt(na)*math.Sqrt(nb))
}
