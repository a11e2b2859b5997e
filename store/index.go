package store

import (
	"context"
	"errors"
	"fmt"
)

var ErrEmptyVector = errors.New("empty query vector")

// Record is a stored chunk with its vector.
type Record struct {
	ID        string
	Content   string
	Metadata  map[string]any
	Embedding []float32
}

// Hit is a query match. Distance is the cosine distance, smaller is closer.
type Hit struct {
	Record
	Distance float64
}

// Index is a cosine-distance vector index holding one collection.
type Index interface {
	Name() string
	EnsureCollection(ctx context.Context, dim int) error
	Upsert(ctx context.Context, records []Record) error
	// Query returns up to k nearest records ordered by ascending distance.
	// A non-empty filter keeps records whose metadata contains every pair.
	Query(ctx context.Context, vec []float32, k int, filter map[string]any) ([]Hit, error)
	// Get returns nil without error when id is unknown.
	Get(ctx context.Context, id string) (*Record, error)
	Delete(ctx context.Context, ids []string) error
	DeleteWhere(ctx context.Context, filter map[string]any) (int, error)
	Count(ctx context.Context) (int, error)
	Peek(ctx context.Context, n int) ([]Record, error)
	Close() error
}

// matchFilter compares values by their printed form, so 2 and 2.0 from a
// JSON round trip are equal.
func matchFilter(meta, filter map[string]any) bool {
	for k, want := range filter {
		got, ok := meta[k]
		if !ok || fmt.Sprint(got) != fmt.Sprint(want) {
			return false
		}
	}
	return true
}
