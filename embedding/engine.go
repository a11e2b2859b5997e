package embedding

import (
	"context"
	"log/slog"
	"time"

	"docrag/model"
	"docrag/types"
)

const DefaultBatchSize = 100

type Engine struct {
	embedder  model.Embedder
	cache     *Cache
	modelName string
	batchSize int
	logger    *slog.Logger
}

func NewEngine(embedder model.Embedder, cache *Cache, modelName string, batchSize int) *Engine {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &Engine{
		embedder:  embedder,
		cache:     cache,
		modelName: modelName,
		batchSize: batchSize,
		logger:    slog.Default(),
	}
}

// Dimension is the vector size of the configured embedding model.
func (e *Engine) Dimension() int {
	return model.Dimension(e.modelName)
}

func (e *Engine) Cache() *Cache {
	return e.cache
}

// GenerateEmbeddings returns vectors keyed by DocID. Cached vectors are reused
// when useCache is set. A failed batch is logged and its documents are missing
// from the result.
func (e *Engine) GenerateEmbeddings(ctx context.Context, docs []types.Document, useCache bool) map[string][]float32 {
	out := make(map[string][]float32, len(docs))
	var misses []types.Document

	for _, doc := range docs {
		if useCache && e.cache != nil {
			if vec, ok := e.cache.Get(doc.DocID); ok {
				out[doc.DocID] = vec
				continue
			}
		}
		misses = append(misses, doc)
	}

	if len(misses) == 0 {
		e.logger.Info("[EMBEDDER] all embeddings served from cache", "count", len(out))
		return out
	}

	start := time.Now()
	for i := 0; i < len(misses); i += e.batchSize {
		end := min(i+e.batchSize, len(misses))
		batch := misses[i:end]

		texts := make([]string, len(batch))
		for j, doc := range batch {
			texts[j] = doc.Content
		}

		vectors, err := e.embedder.EmbedTexts(ctx, texts)
		if err == nil && len(vectors) != len(batch) {
			err = model.ErrEmptyResponse
		}
		if err != nil {
			e.logger.Error("[EMBEDDER] error generating embeddings for batch", "from", i, "to", end, "error", err)
			continue
		}

		for j, doc := range batch {
			out[doc.DocID] = vectors[j]
			if useCache && e.cache != nil {
				if err := e.cache.Add(doc.DocID, vectors[j]); err != nil {
					e.logger.Warn("[EMBEDDER] error caching embedding", "doc_id", doc.DocID, "error", err)
				}
			}
		}
	}

	e.logger.Info("[EMBEDDER] generated embeddings",
		"requested", len(misses),
		"total", len(out),
		"took", time.Since(start))
	return out
}
