// Package processor turns loaded documents into clean, embedding-sized chunks.
package processor

import (
	"fmt"
	"log/slog"
	"strings"
	"unicode"
	"unicode/utf8"

	"docrag/tokenizer"
	"docrag/types"
)

type Chunker struct {
	cfg    types.ChunkingConfig
	tok    tokenizer.Tokenizer
	logger *slog.Logger
}

func NewChunker(cfg types.ChunkingConfig, tok tokenizer.Tokenizer) *Chunker {
	if tok == nil {
		tok = tokenizer.New(tokenizer.DefaultEncoding)
	}
	return &Chunker{
		cfg:    cfg,
		tok:    tok,
		logger: slog.Default(),
	}
}

// CreateChunks splits every document independently. A document that fails to
// chunk is logged and contributes nothing.
func (c *Chunker) CreateChunks(docs []types.Document) []types.Document {
	out := make([]types.Document, 0, len(docs))
	for _, doc := range docs {
		chunks, err := c.chunkDocument(doc)
		if err != nil {
			c.logger.Error("[CHUNKER] error chunking document", "doc_id", doc.DocID, "error", err)
			continue
		}
		c.logger.Info("[CHUNKER] created chunks", "doc_id", doc.DocID, "count", len(chunks))
		out = append(out, chunks...)
	}
	return out
}

type sentence struct {
	text   string
	tokens int
}

func (c *Chunker) chunkDocument(doc types.Document) ([]types.Document, error) {
	paragraphs := []string{doc.Content}
	if c.cfg.RespectParagraph {
		paragraphs = splitParagraphs(doc.Content)
	}

	var (
		chunks  []types.Document
		current []sentence
		size    int
	)

	emit := func(text string) {
		chunks = append(chunks, newChunk(text, doc, len(chunks)))
	}

	for _, para := range paragraphs {
		units := []string{para}
		if c.cfg.SplitBySentence {
			units = splitSentences(para)
		}

		for _, unit := range units {
			n, err := c.tok.Count(unit)
			if err != nil {
				return nil, fmt.Errorf("count tokens: %w", err)
			}

			if n > c.cfg.ChunkSize {
				if len(current) > 0 {
					emit(joinSentences(current))
					current, size = nil, 0
				}
				parts, err := c.splitLongSentence(unit)
				if err != nil {
					return nil, err
				}
				for _, p := range parts {
					emit(p)
				}
				continue
			}

			if size+n > c.cfg.ChunkSize && len(current) > 0 {
				emit(joinSentences(current))
				current, size = c.overlapSeed(current)
			}

			current = append(current, sentence{text: unit, tokens: n})
			size += n
		}
	}

	if len(current) > 0 {
		emit(joinSentences(current))
	}

	if limit := c.cfg.MaxChunksPerDoc; limit > 0 && len(chunks) > limit {
		chunks = chunks[:limit]
		c.logger.Warn("[CHUNKER] document truncated", "doc_id", doc.DocID, "max_chunks", limit)
	}
	return chunks, nil
}

// overlapSeed returns the longest suffix of flushed whose token total stays
// within ChunkOverlap. The walk stops at the first sentence that does not fit.
// The seed is kept whole, so seed plus the next sentence may exceed ChunkSize
// when ChunkOverlap is close to it.
func (c *Chunker) overlapSeed(flushed []sentence) ([]sentence, int) {
	if c.cfg.ChunkOverlap <= 0 {
		return nil, 0
	}

	start, size := len(flushed), 0
	for i := len(flushed) - 1; i >= 0; i-- {
		if size+flushed[i].tokens > c.cfg.ChunkOverlap {
			break
		}
		size += flushed[i].tokens
		start = i
	}

	seed := make([]sentence, len(flushed)-start)
	copy(seed, flushed[start:])
	return seed, size
}

// splitLongSentence packs whitespace separated words into pieces of at most
// ChunkSize tokens. A single word above the limit becomes its own piece.
func (c *Chunker) splitLongSentence(text string) ([]string, error) {
	var (
		parts   []string
		current []string
		size    int
	)
	for _, w := range strings.Fields(text) {
		n, err := c.tok.Count(w)
		if err != nil {
			return nil, fmt.Errorf("count tokens: %w", err)
		}
		if size+n > c.cfg.ChunkSize {
			if len(current) > 0 {
				parts = append(parts, strings.Join(current, " "))
			}
			current, size = []string{w}, n
			continue
		}
		current = append(current, w)
		size += n
	}
	if len(current) > 0 {
		parts = append(parts, strings.Join(current, " "))
	}
	return parts, nil
}

func newChunk(content string, original types.Document, index int) types.Document {
	meta := make(map[string]any, len(original.Metadata)+3)
	for k, v := range original.Metadata {
		meta[k] = v
	}
	meta[types.MetaChunkIndex] = index
	meta[types.MetaOriginalDocID] = original.DocID
	meta[types.MetaIsChunk] = true
	return types.NewDocument(content, meta)
}

func joinSentences(ss []sentence) string {
	parts := make([]string, len(ss))
	for i, s := range ss {
		parts[i] = s.text
	}
	return strings.Join(parts, " ")
}

func splitParagraphs(text string) []string {
	var out []string
	for _, p := range strings.Split(text, "\n\n") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// splitSentences cuts after '.', '!' or '?' when followed by whitespace. The
// whitespace run between sentences is dropped.
func splitSentences(text string) []string {
	var out []string
	add := func(s string) {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}

	start := 0
	for i := 0; i < len(text); {
		r, size := utf8.DecodeRuneInString(text[i:])
		i += size
		if r != '.' && r != '!' && r != '?' {
			continue
		}
		j := i
		for j < len(text) {
			ws, n := utf8.DecodeRuneInString(text[j:])
			if !unicode.IsSpace(ws) {
				break
			}
			j += n
		}
		if j == i {
			continue
		}
		add(text[start:i])
		start, i = j, j
	}
	add(text[start:])
	return out
}
