package types

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"maps"
	"time"
)

// Metadata keys shared by the loader, chunker and retriever.
const (
	MetaSource        = "source"
	MetaType          = "type"
	MetaTitle         = "title"
	MetaPage          = "page"
	MetaTotalPages    = "total_pages"
	MetaSize          = "size"
	MetaCreated       = "created"
	MetaModified      = "modified"
	MetaCleaned       = "cleaned"
	MetaChunkIndex    = "chunk_index"
	MetaOriginalDocID = "original_doc_id"
	MetaIsChunk       = "is_chunk"
	MetaTimestamp     = "timestamp"
	MetaLength        = "length"
)

// Document is a unit of text with metadata. DocID is derived from content and
// metadata, so two documents with equal content and metadata share an id.
type Document struct {
	Content  string         `json:"content"`
	Metadata map[string]any `json:"metadata"`
	DocID    string         `json:"doc_id"`
}

func NewDocument(content string, metadata map[string]any) Document {
	meta := copyMeta(metadata)
	return Document{
		Content:  content,
		Metadata: meta,
		DocID:    GenerateDocID(content, meta),
	}
}

// NewDocumentWithID keeps an explicitly supplied id, e.g. "query" for search vectors.
func NewDocumentWithID(id, content string, metadata map[string]any) Document {
	if id == "" {
		return NewDocument(content, metadata)
	}
	return Document{
		Content:  content,
		Metadata: copyMeta(metadata),
		DocID:    id,
	}
}

// GenerateDocID returns the first 16 hex chars of sha256(content + json(metadata)).
// encoding/json writes map keys sorted, which keeps the id stable.
func GenerateDocID(content string, metadata map[string]any) string {
	if metadata == nil {
		metadata = map[string]any{}
	}
	raw, err := json.Marshal(metadata)
	if err != nil {
		raw = []byte(fmt.Sprintf("%v", metadata))
	}
	sum := sha256.Sum256(append([]byte(content), raw...))
	return hex.EncodeToString(sum[:])[:16]
}

// WithMetadata returns a new document whose metadata is the receiver's merged
// with extra. The id is regenerated.
func (d Document) WithMetadata(extra map[string]any) Document {
	meta := copyMeta(d.Metadata)
	maps.Copy(meta, extra)
	return NewDocument(d.Content, meta)
}

// WithContent returns a new document with the same metadata and new content.
func (d Document) WithContent(content string) Document {
	return NewDocument(content, d.Metadata)
}

func (d Document) MetaString(key string) string {
	v, ok := d.Metadata[key]
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

func copyMeta(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	maps.Copy(out, m)
	return out
}

// QueryResult is a single retrieved chunk. SimilarityScore is 1 - cosine distance.
type QueryResult struct {
	Content         string         `json:"content"`
	Metadata        map[string]any `json:"metadata"`
	SimilarityScore float64        `json:"similarity_score"`
	DocID           string         `json:"doc_id"`
}

// ChunkingConfig controls DocumentChunker.
type ChunkingConfig struct {
	ChunkSize        int  `json:"chunk_size" yaml:"chunk_size"`
	ChunkOverlap     int  `json:"chunk_overlap" yaml:"chunk_overlap"`
	SplitBySentence  bool `json:"split_by_sentence" yaml:"split_by_sentence"`
	RespectParagraph bool `json:"respect_paragraph" yaml:"respect_paragraph"`
	MaxChunksPerDoc  int  `json:"max_chunks_per_doc" yaml:"max_chunks_per_doc"`
}

func DefaultChunkingConfig() ChunkingConfig {
	return ChunkingConfig{
		ChunkSize:        1000,
		ChunkOverlap:     200,
		SplitBySentence:  true,
		RespectParagraph: true,
		MaxChunksPerDoc:  100,
	}
}

// CleaningConfig controls DocumentCleaner. MinLength is counted in words.
type CleaningConfig struct {
	RemoveURLs          bool `json:"remove_urls" yaml:"remove_urls"`
	RemoveEmail         bool `json:"remove_email" yaml:"remove_email"`
	RemovePhone         bool `json:"remove_phone" yaml:"remove_phone"`
	NormalizeWhitespace bool `json:"normalize_whitespace" yaml:"normalize_whitespace"`
	MinLength           int  `json:"min_length" yaml:"min_length"`
	RemoveSpecialChars  bool `json:"remove_special_chars" yaml:"remove_special_chars"`
	Lowercase           bool `json:"lowercase" yaml:"lowercase"`
}

func DefaultCleaningConfig() CleaningConfig {
	return CleaningConfig{
		RemoveURLs:          true,
		RemoveEmail:         true,
		RemovePhone:         true,
		NormalizeWhitespace: true,
		MinLength:           50,
		RemoveSpecialChars:  true,
		Lowercase:           false,
	}
}

// FileInfo describes a stored upload.
type FileInfo struct {
	Name     string    `json:"name"`
	Size     int64     `json:"size"`
	Modified time.Time `json:"modified"`
}
