// Package pipeline ties loading, cleaning, chunking, indexing, retrieval and
// answer generation together.
package pipeline

import (
	"context"
	"errors"
	"io"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"docrag/generator"
	"docrag/indexer"
	"docrag/loader"
	"docrag/model"
	"docrag/processor"
	"docrag/retriever"
	"docrag/store"
	"docrag/types"
)

const NoDocumentsAnswer = "I could not find any relevant documents to answer your question."

// maxConcurrentLoads bounds IndexPaths fan-out.
const maxConcurrentLoads = 4

var (
	ErrNothingToIndex = errors.New("no indexable content")
	ErrIndexing       = errors.New("indexing failed")
	ErrGeneration     = errors.New("failed to generate response")
)

type Options struct {
	IndexBatchSize int
	MaxTokens      int
	Temperature    float64
}

type Pipeline struct {
	loader    *loader.Loader
	cleaner   *processor.Cleaner
	chunker   *processor.Chunker
	indexer   *indexer.Indexer
	retriever *retriever.QueryProcessor
	generator *generator.Generator
	opts      Options
	closers   []io.Closer
	logger    *slog.Logger
}

type Components struct {
	Loader    *loader.Loader
	Cleaner   *processor.Cleaner
	Chunker   *processor.Chunker
	Indexer   *indexer.Indexer
	Retriever *retriever.QueryProcessor
	Generator *generator.Generator
	Closers   []io.Closer
}

func New(c Components, opts Options) *Pipeline {
	if opts.IndexBatchSize <= 0 {
		opts.IndexBatchSize = indexer.DefaultBatchSize
	}
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = generator.DefaultMaxTokens
	}
	if c.Loader == nil {
		c.Loader = loader.New()
	}
	return &Pipeline{
		loader:    c.Loader,
		cleaner:   c.Cleaner,
		chunker:   c.Chunker,
		indexer:   c.Indexer,
		retriever: c.Retriever,
		generator: c.Generator,
		opts:      opts,
		closers:   c.Closers,
		logger:    slog.Default(),
	}
}

// IndexPaths loads files and directories concurrently, then cleans, chunks
// and indexes the result.
func (p *Pipeline) IndexPaths(ctx context.Context, paths []string) bool {
	p.logger.Info("[PIPELINE] loading documents", "paths", len(paths))

	docs := loadAll(ctx, paths, func(ctx context.Context, path string) []types.Document {
		return p.loader.Load(ctx, path)
	})
	if ctx.Err() != nil {
		p.logger.Error("[PIPELINE] loading cancelled", "error", ctx.Err())
		return false
	}

	return p.Ingest(ctx, docs)
}

// loadAll runs load for each path with bounded concurrency. Documents come
// back in path order regardless of which load finishes first.
func loadAll(ctx context.Context, paths []string, load func(context.Context, string) []types.Document) []types.Document {
	results := make([][]types.Document, len(paths))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentLoads)
	for i, path := range paths {
		g.Go(func() error {
			results[i] = load(gctx, path)
			return nil
		})
	}
	_ = g.Wait()

	var docs []types.Document
	for _, loaded := range results {
		docs = append(docs, loaded...)
	}
	return docs
}

// Ingest cleans and chunks raw documents before indexing them.
func (p *Pipeline) Ingest(ctx context.Context, docs []types.Document) bool {
	if len(docs) == 0 {
		p.logger.Warn("[PIPELINE] no documents to index")
		return false
	}
	p.logger.Info("[PIPELINE] cleaning documents", "count", len(docs))
	cleaned := p.cleaner.CleanDocuments(docs)

	p.logger.Info("[PIPELINE] chunking documents", "count", len(cleaned))
	chunks := p.chunker.CreateChunks(cleaned)

	return p.IndexDocuments(ctx, chunks)
}

// IndexDocuments indexes documents as they are, without cleaning or
// chunking.
func (p *Pipeline) IndexDocuments(ctx context.Context, docs []types.Document) bool {
	if len(docs) == 0 {
		p.logger.Warn("[PIPELINE] no documents to index")
		return false
	}
	p.logger.Info("[PIPELINE] indexing documents", "count", len(docs))
	ok := p.indexer.IndexDocuments(ctx, docs, p.opts.IndexBatchSize)
	if ok {
		p.logger.Info("[PIPELINE] documents successfully indexed")
	} else {
		p.logger.Error("[PIPELINE] failed to index documents")
	}
	return ok
}

// IndexBytes indexes an in-memory file under name. It returns the number of
// chunks produced.
func (p *Pipeline) IndexBytes(ctx context.Context, name string, data []byte) (int, error) {
	docs, err := p.loader.LoadBytes(ctx, name, data)
	if err != nil {
		return 0, err
	}
	chunks := p.chunker.CreateChunks(p.cleaner.CleanDocuments(docs))
	if len(chunks) == 0 {
		return 0, ErrNothingToIndex
	}
	if !p.IndexDocuments(ctx, chunks) {
		return 0, ErrIndexing
	}
	return len(chunks), nil
}

// Query answers question from the indexed documents. ok is false when the
// answer could not be generated.
func (p *Pipeline) Query(ctx context.Context, question string) (string, bool) {
	p.logger.Info("[PIPELINE] processing query")
	docs := p.retriever.ProcessQuery(ctx, question, nil)
	if len(docs) == 0 {
		return NoDocumentsAnswer, true
	}
	p.logger.Info("[PIPELINE] generating response", "documents", len(docs))
	return p.generator.GenerateResponse(ctx, question, docs, p.opts.MaxTokens, p.opts.Temperature)
}

type Answer struct {
	Text      string
	Sources   []types.QueryResult
	Retrieval retriever.Retrieval
}

// Answer is Query with control over the result count and a metadata filter.
// It reports retrieval failures as errors.
func (p *Pipeline) Answer(ctx context.Context, question string, nbResults int, filter map[string]any) (Answer, error) {
	r := p.processor(nbResults).Retrieve(ctx, question, filter)
	switch r.Outcome {
	case retriever.OutcomeFailed:
		return Answer{Retrieval: r}, r.Err
	case retriever.OutcomeEmpty:
		return Answer{Text: NoDocumentsAnswer, Sources: []types.QueryResult{}, Retrieval: r}, nil
	}
	text, ok := p.generator.GenerateResponse(ctx, question, r.Results, p.opts.MaxTokens, p.opts.Temperature)
	if !ok {
		return Answer{Sources: r.Results, Retrieval: r}, ErrGeneration
	}
	return Answer{Text: text, Sources: r.Results, Retrieval: r}, nil
}

// Retrieve returns the chunks matching question.
func (p *Pipeline) Retrieve(ctx context.Context, question string, nbResults int, filter map[string]any) retriever.Retrieval {
	return p.processor(nbResults).Retrieve(ctx, question, filter)
}

// Stream streams an answer grounded on docs.
func (p *Pipeline) Stream(ctx context.Context, question string, docs []types.QueryResult, history []model.Message) (<-chan model.StreamToken, error) {
	return p.generator.StreamResponse(ctx, question, docs, history)
}

func (p *Pipeline) DeleteSource(ctx context.Context, source string) (int, error) {
	return p.indexer.DeleteSource(ctx, source)
}

func (p *Pipeline) Stats(ctx context.Context) (store.DetailedStats, error) {
	return p.indexer.DetailedStats(ctx)
}

func (p *Pipeline) processor(nbResults int) *retriever.QueryProcessor {
	if nbResults > 0 {
		return p.retriever.WithMaxResults(nbResults)
	}
	return p.retriever
}

func (p *Pipeline) Close() error {
	var errs []error
	for i := len(p.closers) - 1; i >= 0; i-- {
		if err := p.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
