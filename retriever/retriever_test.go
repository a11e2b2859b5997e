package retriever

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docrag/store"
	"docrag/types"
)

type fakeCompleter struct {
	out   string
	err   error
	calls int
}

func (f *fakeCompleter) GenerateCompletion(context.Context, string, string) (string, error) {
	f.calls++
	return f.out, f.err
}

type fakeEmbedder struct {
	texts    []string
	useCache []bool
	empty    bool
}

func (f *fakeEmbedder) GenerateEmbeddings(_ context.Context, docs []types.Document, useCache bool) map[string][]float32 {
	f.useCache = append(f.useCache, useCache)
	out := map[string][]float32{}
	if f.empty {
		return out
	}
	for _, d := range docs {
		f.texts = append(f.texts, d.Content)
		out[d.DocID] = []float32{1, 0}
	}
	return out
}

type fakeSearcher struct {
	results   []types.QueryResult
	err       error
	n         int
	threshold float64
	filter    map[string]any
}

func (f *fakeSearcher) Search(_ context.Context, _ []float32, n int, filter map[string]any, threshold float64) ([]types.QueryResult, error) {
	f.n, f.filter, f.threshold = n, filter, threshold
	return f.results, f.err
}

func TestProcessQuery_ReformulationFailureStillSearches(t *testing.T) {
	emb := &fakeEmbedder{}
	s := &fakeSearcher{results: []types.QueryResult{{DocID: "a", SimilarityScore: 0.9}}}
	q := New(&fakeCompleter{err: errors.New("llm down")}, emb, s, Config{SimilarityThreshold: DefaultSimilarityThreshold})

	got := q.ProcessQuery(t.Context(), "original question", map[string]any{"source": "a.pdf"})

	require.Len(t, got, 1)
	assert.Equal(t, []string{"original question"}, emb.texts)
	assert.Equal(t, []bool{false}, emb.useCache)
	assert.Equal(t, DefaultMaxResults, s.n)
	assert.InDelta(t, 0.7, s.threshold, 1e-9)
	assert.Equal(t, "a.pdf", s.filter["source"])
}

func TestProcessQuery_UsesReformulation(t *testing.T) {
	emb := &fakeEmbedder{}
	q := New(&fakeCompleter{out: "better question"}, emb, &fakeSearcher{}, Config{})

	r := q.Retrieve(t.Context(), "question", nil)

	assert.Equal(t, OutcomeEmpty, r.Outcome)
	assert.Equal(t, "better question", r.ReformulatedQuery)
	assert.Equal(t, []string{"better question"}, emb.texts)
}

func TestProcessQuery_SearchErrorYieldsEmptyList(t *testing.T) {
	q := New(&fakeCompleter{out: "x"}, &fakeEmbedder{}, &fakeSearcher{err: errors.New("db gone")}, Config{})

	got := q.ProcessQuery(t.Context(), "q", nil)
	assert.NotNil(t, got)
	assert.Empty(t, got)

	r := q.Retrieve(t.Context(), "q", nil)
	assert.Equal(t, OutcomeFailed, r.Outcome)
	assert.Error(t, r.Err)
}

func TestRetrieve_NoEmbeddingFails(t *testing.T) {
	q := New(nil, &fakeEmbedder{empty: true}, &fakeSearcher{}, Config{})

	r := q.Retrieve(t.Context(), "q", nil)

	assert.Equal(t, OutcomeFailed, r.Outcome)
	assert.ErrorIs(t, r.Err, ErrNoQueryEmbedding)
	assert.Empty(t, q.ProcessQuery(t.Context(), "q", nil))
}

func TestRetrieve_ThresholdAgainstVectorStore(t *testing.T) {
	mem := store.NewMemoryIndex("docs")
	require.NoError(t, mem.Upsert(t.Context(), []store.Record{
		{ID: "close", Content: "close", Embedding: []float32{1, 0}},
		{ID: "far", Content: "far", Embedding: []float32{0, 1}},
	}))
	q := New(nil, &fakeEmbedder{}, store.NewVectorStore(mem), Config{SimilarityThreshold: 0.5})

	got := q.ProcessQuery(t.Context(), "q", nil)

	require.Len(t, got, 1)
	assert.Equal(t, "close", got[0].DocID)
}

func TestWithMaxResults(t *testing.T) {
	s := &fakeSearcher{}
	q := New(nil, &fakeEmbedder{}, s, Config{})

	q.WithMaxResults(12).ProcessQuery(t.Context(), "q", nil)
	assert.Equal(t, 12, s.n)
	assert.Equal(t, DefaultMaxResults, q.MaxResults())
}

func TestRerank(t *testing.T) {
	in := []types.QueryResult{
		{DocID: "plain", SimilarityScore: 0.8, Metadata: map[string]any{}},
		{DocID: "dated", SimilarityScore: 0.75, Metadata: map[string]any{"timestamp": "2024-01-01"}},
		{DocID: "long", SimilarityScore: 0.78, Metadata: map[string]any{"length": 10}},
	}

	out := Rerank(in)

	assert.Equal(t, "dated", out[0].DocID)
	assert.Equal(t, "long", out[1].DocID)
	assert.Equal(t, "plain", out[2].DocID)
	assert.InDelta(t, 0.75, out[0].SimilarityScore, 1e-9)
	assert.Equal(t, "plain", in[0].DocID)
}

func TestRetrieve_RerankWhenEnabled(t *testing.T) {
	s := &fakeSearcher{results: []types.QueryResult{
		{DocID: "a", SimilarityScore: 0.9},
		{DocID: "b", SimilarityScore: 0.85, Metadata: map[string]any{"timestamp": 1}},
	}}
	q := New(nil, &fakeEmbedder{}, s, Config{Rerank: true})

	got := q.ProcessQuery(t.Context(), "q", nil)

	require.Len(t, got, 2)
	assert.Equal(t, "b", got[0].DocID)
}
