package model

import (
	"context"
	"errors"
)

// Embedder turns texts into vectors, one per input, in input order.
type Embedder interface {
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
}

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ChatOptions struct {
	MaxTokens   int
	Temperature float64
}

// StreamToken is a piece of a streamed answer. The final token has Done set.
type StreamToken struct {
	Content string
	Done    bool
	Err     error
}

type ChatModel interface {
	Chat(ctx context.Context, messages []Message, opts ChatOptions) (string, error)
	ChatStream(ctx context.Context, messages []Message, opts ChatOptions) (<-chan StreamToken, error)
}

var ErrEmptyResponse = errors.New("model returned an empty response")

// Embedding dimensions of the known models.
var modelDimensions = map[string]int{
	"text-embedding-3-large": 3072,
	"text-embedding-3-small": 1536,
	"text-embedding-ada-002": 1536,
	"text-embedding-004":     768,
	"gemini-embedding-001":   3072,
	"nomic-embed-text":       768,
}

const DefaultDimension = 3072

// Dimension returns the vector size produced by model. Unknown models report
// DefaultDimension.
func Dimension(model string) int {
	if d, ok := modelDimensions[model]; ok {
		return d
	}
	return DefaultDimension
}
