package pipeline

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"docrag/config"
	"docrag/embedding"
	"docrag/generator"
	"docrag/indexer"
	"docrag/loader"
	"docrag/model"
	"docrag/processor"
	"docrag/retriever"
	"docrag/store"
	"docrag/tokenizer"
)

const (
	defaultOllamaEmbedModel = "nomic-embed-text"
	defaultOllamaChatModel  = "llama3.1"
)

type provider interface {
	model.Embedder
	model.ChatModel
}

// Build creates every component from cfg and connects to the vector index.
func Build(ctx context.Context, cfg *config.Config) (*Pipeline, error) {
	llm, embedModel, closer, err := newProvider(ctx, cfg.Provider)
	if err != nil {
		return nil, err
	}
	closers := []io.Closer{}
	if closer != nil {
		closers = append(closers, closer)
	}

	index, err := newIndex(ctx, cfg)
	if err != nil {
		closeAll(closers)
		return nil, err
	}
	vs := store.NewVectorStore(index)
	closers = append(closers, vs)

	engine := embedding.NewEngine(llm, embedding.NewCache(cfg.Embedding.CachePath), embedModel, cfg.Embedding.BatchSize)
	if err := vs.Init(ctx, engine.Dimension()); err != nil {
		closeAll(closers)
		return nil, fmt.Errorf("init vector store: %w", err)
	}

	tok := tokenizer.New(tokenizer.DefaultEncoding)
	gen := generator.New(llm, tok)

	slog.Info("[PIPELINE] components ready",
		"provider", cfg.Provider.Name,
		"embedding_model", embedModel,
		"backend", cfg.Vector.Backend,
		"collection", cfg.Vector.Collection)

	return New(Components{
		Loader:  loader.New().WithPDFCrop(cfg.Loader.PDFCropTop, cfg.Loader.PDFCropBottom),
		Cleaner: processor.NewCleaner(cfg.Cleaning),
		Chunker: processor.NewChunker(cfg.Chunking, tok),
		Indexer: indexer.New(engine, vs),
		Retriever: retriever.New(gen, engine, vs, retriever.Config{
			MaxResults:          cfg.Retrieval.MaxResults,
			SimilarityThreshold: cfg.Retrieval.SimilarityThreshold,
			Rerank:              cfg.Retrieval.Rerank,
		}),
		Generator: gen,
		Closers:   closers,
	}, Options{
		IndexBatchSize: cfg.Retrieval.IndexBatchSize,
		MaxTokens:      cfg.Retrieval.MaxTokens,
		Temperature:    cfg.Retrieval.Temperature,
	}), nil
}

// newProvider returns the model client and the resolved embedding model name.
func newProvider(ctx context.Context, cfg config.ProviderConfig) (provider, string, io.Closer, error) {
	switch cfg.Name {
	case config.ProviderOpenAI:
		embedModel := cfg.EmbeddingModel
		if embedModel == "" {
			embedModel = model.DefaultEmbeddingModel
		}
		c, err := model.NewOpenAI(model.OpenAIConfig{
			APIKey:         cfg.APIKey,
			BaseURL:        cfg.BaseURL,
			EmbeddingModel: embedModel,
			ChatModel:      cfg.ChatModel,
			Timeout:        cfg.Timeout,
		})
		return c, embedModel, nil, err

	case config.ProviderGemini:
		embedModel := cfg.EmbeddingModel
		if embedModel == "" {
			embedModel = model.DefaultGeminiEmbedModel
		}
		c, err := model.NewGemini(ctx, cfg.APIKey, embedModel, cfg.ChatModel)
		if err != nil {
			return nil, "", nil, err
		}
		return c, embedModel, c, nil

	case config.ProviderOllama:
		embedModel := cfg.EmbeddingModel
		if embedModel == "" {
			embedModel = defaultOllamaEmbedModel
		}
		chatModel := cfg.ChatModel
		if chatModel == "" {
			chatModel = defaultOllamaChatModel
		}
		return model.NewOllama(cfg.BaseURL, embedModel, chatModel, cfg.Timeout), embedModel, nil, nil
	}
	return nil, "", nil, fmt.Errorf("unknown provider %q", cfg.Name)
}

func newIndex(ctx context.Context, cfg *config.Config) (store.Index, error) {
	switch cfg.Vector.Backend {
	case config.BackendMemory:
		return store.NewMemoryIndex(cfg.Vector.Collection), nil
	case config.BackendPostgres:
		idx, err := store.NewPostgresIndex(ctx, cfg.Postgres.ConnString(), cfg.Vector.Collection)
		if err != nil {
			return nil, fmt.Errorf("error to connect to Postgres database: %w", err)
		}
		return idx, nil
	}
	return nil, fmt.Errorf("unknown vector backend %q", cfg.Vector.Backend)
}

func closeAll(closers []io.Closer) {
	for _, c := range closers {
		_ = c.Close()
	}
}
