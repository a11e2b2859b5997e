package store

import (
	"context"
	"fmt"
	"log/slog"

	"docrag/types"
)

const DefaultInsertBatch = 1000

type CollectionStats struct {
	TotalDocuments int    `json:"total_documents"`
	CollectionName string `json:"collection_name"`
}

type DetailedStats struct {
	CollectionStats
	SampleDocumentID string `json:"sample_document_id,omitempty"`
	HasEmbeddings    bool   `json:"has_embeddings"`
	EmbeddingDim     int    `json:"embedding_dim"`
}

// VectorStore maps documents onto an Index.
type VectorStore struct {
	index       Index
	insertBatch int
	logger      *slog.Logger
}

func NewVectorStore(index Index) *VectorStore {
	return &VectorStore{
		index:       index,
		insertBatch: DefaultInsertBatch,
		logger:      slog.Default(),
	}
}

// Init creates the collection on first use.
func (s *VectorStore) Init(ctx context.Context, dim int) error {
	return s.index.EnsureCollection(ctx, dim)
}

func (s *VectorStore) Close() error {
	return s.index.Close()
}

// AddDocuments stores every document that has an embedding. Documents without
// one are skipped with a warning.
func (s *VectorStore) AddDocuments(ctx context.Context, docs []types.Document, embeddings map[string][]float32) bool {
	records := make([]Record, 0, len(docs))
	for _, doc := range docs {
		vec, ok := embeddings[doc.DocID]
		if !ok {
			s.logger.Warn("[STORE] no embedding for document, skipping", "doc_id", doc.DocID)
			continue
		}
		records = append(records, Record{
			ID:        doc.DocID,
			Content:   doc.Content,
			Metadata:  doc.Metadata,
			Embedding: vec,
		})
	}

	for i := 0; i < len(records); i += s.insertBatch {
		end := min(i+s.insertBatch, len(records))
		if err := s.index.Upsert(ctx, records[i:end]); err != nil {
			s.logger.Error("[STORE] error adding documents", "from", i, "to", end, "error", err)
			return false
		}
	}
	s.logger.Info("[STORE] added documents", "count", len(records), "collection", s.index.Name())
	return true
}

// Search converts distances to similarities and drops results under threshold
// when threshold is positive. Index order is preserved.
func (s *VectorStore) Search(ctx context.Context, vec []float32, n int, filter map[string]any, threshold float64) ([]types.QueryResult, error) {
	hits, err := s.index.Query(ctx, vec, n, filter)
	if err != nil {
		return nil, fmt.Errorf("query index: %w", err)
	}

	results := make([]types.QueryResult, 0, len(hits))
	for _, h := range hits {
		similarity := 1 - h.Distance
		if threshold > 0 && similarity < threshold {
			s.logger.Debug("[FILTER] dropped result under threshold", "doc_id", h.ID, "similarity", similarity)
			continue
		}
		results = append(results, types.QueryResult{
			Content:         h.Content,
			Metadata:        h.Metadata,
			SimilarityScore: similarity,
			DocID:           h.ID,
		})
	}
	return results, nil
}

// GetDocument returns nil when id is not stored.
func (s *VectorStore) GetDocument(ctx context.Context, id string) (*types.Document, error) {
	r, err := s.index.Get(ctx, id)
	if err != nil || r == nil {
		return nil, err
	}
	doc := types.NewDocumentWithID(r.ID, r.Content, r.Metadata)
	return &doc, nil
}

func (s *VectorStore) DeleteDocuments(ctx context.Context, ids []string) bool {
	if err := s.index.Delete(ctx, ids); err != nil {
		s.logger.Error("[STORE] error deleting documents", "count", len(ids), "error", err)
		return false
	}
	return true
}

// DeleteBySource removes every chunk loaded from source.
func (s *VectorStore) DeleteBySource(ctx context.Context, source string) (int, error) {
	return s.index.DeleteWhere(ctx, map[string]any{types.MetaSource: source})
}

func (s *VectorStore) CollectionStats(ctx context.Context) (CollectionStats, error) {
	n, err := s.index.Count(ctx)
	if err != nil {
		return CollectionStats{}, err
	}
	return CollectionStats{TotalDocuments: n, CollectionName: s.index.Name()}, nil
}

func (s *VectorStore) DetailedStats(ctx context.Context) (DetailedStats, error) {
	base, err := s.CollectionStats(ctx)
	if err != nil {
		return DetailedStats{}, err
	}
	stats := DetailedStats{CollectionStats: base}

	sample, err := s.index.Peek(ctx, 1)
	if err != nil {
		return DetailedStats{}, err
	}
	if len(sample) > 0 {
		stats.SampleDocumentID = sample[0].ID
		stats.HasEmbeddings = len(sample[0].Embedding) > 0
		stats.EmbeddingDim = len(sample[0].Embedding)
	}
	return stats, nil
}
