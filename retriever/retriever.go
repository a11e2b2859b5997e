// Package retriever turns a user question into ranked chunks from the vector store.
package retriever

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"docrag/types"
)

const (
	DefaultMaxResults          = 5
	DefaultSimilarityThreshold = 0.7

	queryDocID = "query"
)

const reformulateSystemPrompt = `You are an information retrieval expert.
Rewrite the given question to optimise document search.
Add relevant terms and synonyms.
Keep the intent of the original question.
Reply with the reformulation only, without explanation.`

const reformulateUserPrompt = `Original question: %s
Rewrite this question, enriching it for better document search.`

type Completer interface {
	GenerateCompletion(ctx context.Context, system, user string) (string, error)
}

type Embedder interface {
	GenerateEmbeddings(ctx context.Context, docs []types.Document, useCache bool) map[string][]float32
}

type Searcher interface {
	Search(ctx context.Context, vec []float32, n int, filter map[string]any, threshold float64) ([]types.QueryResult, error)
}

type Outcome int

const (
	OutcomeMatches Outcome = iota
	OutcomeEmpty
	OutcomeFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeMatches:
		return "matches"
	case OutcomeEmpty:
		return "empty"
	default:
		return "failed"
	}
}

// Retrieval tells "nothing relevant" apart from "something broke".
type Retrieval struct {
	Results           []types.QueryResult
	Outcome           Outcome
	Err               error
	ReformulatedQuery string
}

var ErrNoQueryEmbedding = errors.New("failed to generate query embedding")

type Config struct {
	MaxResults          int
	SimilarityThreshold float64
	Rerank              bool
}

type QueryProcessor struct {
	completer Completer
	embedder  Embedder
	searcher  Searcher
	cfg       Config
	logger    *slog.Logger
}

func New(completer Completer, embedder Embedder, searcher Searcher, cfg Config) *QueryProcessor {
	if cfg.MaxResults <= 0 {
		cfg.MaxResults = DefaultMaxResults
	}
	return &QueryProcessor{
		completer: completer,
		embedder:  embedder,
		searcher:  searcher,
		cfg:       cfg,
		logger:    slog.Default(),
	}
}

// WithMaxResults returns a copy returning up to n results.
func (q *QueryProcessor) WithMaxResults(n int) *QueryProcessor {
	cp := *q
	if n > 0 {
		cp.cfg.MaxResults = n
	}
	return &cp
}

func (q *QueryProcessor) MaxResults() int {
	return q.cfg.MaxResults
}

// ProcessQuery returns matching chunks. Failures are logged and yield an
// empty list.
func (q *QueryProcessor) ProcessQuery(ctx context.Context, query string, filter map[string]any) []types.QueryResult {
	r := q.Retrieve(ctx, query, filter)
	if r.Outcome == OutcomeFailed {
		return []types.QueryResult{}
	}
	return r.Results
}

func (q *QueryProcessor) Retrieve(ctx context.Context, query string, filter map[string]any) Retrieval {
	q.logger.Debug("[RETRIEVER] processing query", "query", query)

	reformulated := q.reformulate(ctx, query)
	q.logger.Debug("[RETRIEVER] reformulated query", "query", reformulated)

	// the query id is constant, so a cached vector would belong to an earlier question
	doc := types.NewDocumentWithID(queryDocID, reformulated, nil)
	vectors := q.embedder.GenerateEmbeddings(ctx, []types.Document{doc}, false)
	vec, ok := vectors[queryDocID]
	if !ok || len(vec) == 0 {
		q.logger.Error("[RETRIEVER] failed to generate query embedding")
		return Retrieval{Outcome: OutcomeFailed, Err: ErrNoQueryEmbedding, ReformulatedQuery: reformulated}
	}

	results, err := q.searcher.Search(ctx, vec, q.cfg.MaxResults, filter, q.cfg.SimilarityThreshold)
	if err != nil {
		q.logger.Error("[RETRIEVER] error processing query", "error", err)
		return Retrieval{Outcome: OutcomeFailed, Err: fmt.Errorf("search: %w", err), ReformulatedQuery: reformulated}
	}

	q.logger.Debug("[RETRIEVER] found matching documents", "count", len(results))
	for _, r := range results {
		q.logger.Debug("[RETRIEVER] match", "id", r.DocID, "score", r.SimilarityScore)
	}

	if q.cfg.Rerank {
		results = Rerank(results)
	}

	outcome := OutcomeMatches
	if len(results) == 0 {
		outcome = OutcomeEmpty
	}
	return Retrieval{Results: results, Outcome: outcome, ReformulatedQuery: reformulated}
}

// reformulate falls back to the original query on error or empty output.
func (q *QueryProcessor) reformulate(ctx context.Context, query string) string {
	if q.completer == nil {
		return query
	}
	out, err := q.completer.GenerateCompletion(ctx, reformulateSystemPrompt, fmt.Sprintf(reformulateUserPrompt, query))
	if err != nil {
		q.logger.Warn("[RETRIEVER] error reformulating query", "error", err)
		return query
	}
	if out == "" {
		return query
	}
	q.logger.Info("[RETRIEVER] reformulated question", "query", out)
	return out
}

// Rerank sorts results by similarity plus a bonus of 0.1 for a timestamp
// and 0.05 for a length in the metadata. Scores are not modified.
func Rerank(results []types.QueryResult) []types.QueryResult {
	score := func(r types.QueryResult) float64 {
		s := r.SimilarityScore
		if _, ok := r.Metadata[types.MetaTimestamp]; ok {
			s += 0.1
		}
		if _, ok := r.Metadata[types.MetaLength]; ok {
			s += 0.05
		}
		return s
	}
	out := make([]types.QueryResult, len(results))
	copy(out, results)
	sort.SliceStable(out, func(i, j int) bool {
		return score(out[i]) > score(out[j])
	})
	return out
}
