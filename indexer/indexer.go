package indexer

import (
	"context"
	"log/slog"

	"docrag/store"
	"docrag/types"
)

const DefaultBatchSize = 100

// Embedder is the part of embedding.Engine the indexer needs.
type Embedder interface {
	GenerateEmbeddings(ctx context.Context, docs []types.Document, useCache bool) map[string][]float32
}

type Indexer struct {
	embedder Embedder
	store    *store.VectorStore
	logger   *slog.Logger
}

func New(embedder Embedder, vs *store.VectorStore) *Indexer {
	return &Indexer{
		embedder: embedder,
		store:    vs,
		logger:   slog.Default(),
	}
}

// IndexDocuments embeds docs and stores them batch by batch. It returns false
// when nothing could be embedded or any batch failed; later batches are still
// attempted and earlier ones stay indexed.
func (ix *Indexer) IndexDocuments(ctx context.Context, docs []types.Document, batchSize int) bool {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	ix.logger.Info("[INDEXER] starting indexation", "documents", len(docs))
	ix.logStats(ctx, "initial")

	embeddings := ix.embedder.GenerateEmbeddings(ctx, docs, true)
	ix.logger.Info("[INDEXER] generated embeddings", "count", len(embeddings))
	if len(embeddings) == 0 {
		ix.logger.Error("[INDEXER] no embeddings generated")
		return false
	}

	success := true
	for i := 0; i < len(docs); i += batchSize {
		batch := docs[i:min(i+batchSize, len(docs))]
		batchEmb := make(map[string][]float32, len(batch))
		for _, doc := range batch {
			if vec, ok := embeddings[doc.DocID]; ok {
				batchEmb[doc.DocID] = vec
			}
		}
		if !ix.store.AddDocuments(ctx, batch, batchEmb) {
			success = false
			ix.logger.Error("[INDEXER] failed to index batch", "batch", i/batchSize+1)
		}
	}

	ix.logStats(ctx, "final")
	return success
}

// UpdateDocuments deletes docs by id, then indexes them again. Not atomic.
func (ix *Indexer) UpdateDocuments(ctx context.Context, docs []types.Document) bool {
	ids := make([]string, len(docs))
	for i, doc := range docs {
		ids[i] = doc.DocID
	}
	if !ix.store.DeleteDocuments(ctx, ids) {
		return false
	}
	return ix.IndexDocuments(ctx, docs, DefaultBatchSize)
}

func (ix *Indexer) DeleteDocuments(ctx context.Context, ids []string) bool {
	return ix.store.DeleteDocuments(ctx, ids)
}

// DeleteSource removes all chunks of a loaded file.
func (ix *Indexer) DeleteSource(ctx context.Context, source string) (int, error) {
	n, err := ix.store.DeleteBySource(ctx, source)
	if err != nil {
		ix.logger.Error("[INDEXER] error deleting source", "source", source, "error", err)
		return 0, err
	}
	ix.logger.Info("[INDEXER] deleted source", "source", source, "chunks", n)
	return n, nil
}

func (ix *Indexer) GetDocument(ctx context.Context, id string) (*types.Document, error) {
	return ix.store.GetDocument(ctx, id)
}

func (ix *Indexer) Stats(ctx context.Context) (store.CollectionStats, error) {
	return ix.store.CollectionStats(ctx)
}

func (ix *Indexer) DetailedStats(ctx context.Context) (store.DetailedStats, error) {
	return ix.store.DetailedStats(ctx)
}

func (ix *Indexer) logStats(ctx context.Context, phase string) {
	stats, err := ix.store.DetailedStats(ctx)
	if err != nil {
		ix.logger.Warn("[INDEXER] could not read collection stats", "phase", phase, "error", err)
		return
	}
	ix.logger.Info("[INDEXER] collection state", "phase", phase,
		"total", stats.TotalDocuments,
		"collection", stats.CollectionName,
		"embedding_dim", stats.EmbeddingDim)
}
