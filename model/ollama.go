package model

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"strings"
	"time"
)

const defaultOllamaURL = "http://localhost:11434"

// Ollama serves embeddings and chat from a local Ollama instance.
type Ollama struct {
	baseURL    string
	embedModel string
	chatModel  string
	timeout    time.Duration
	client     *http.Client
}

var (
	_ Embedder  = (*Ollama)(nil)
	_ ChatModel = (*Ollama)(nil)
)

type ollamaEmbeddingRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

type ollamaEmbeddingResponse struct {
	Embedding []float64 `json:"embedding"`
}

type ollamaChatRequest struct {
	Model    string         `json:"model"`
	Messages []Message      `json:"messages"`
	Stream   bool           `json:"stream"`
	Options  map[string]any `json:"options,omitempty"`
}

type ollamaChatChunk struct {
	Message Message `json:"message"`
	Done    bool    `json:"done"`
	Error   string  `json:"error,omitempty"`
}

func NewOllama(baseURL, embedModel, chatModel string, timeout time.Duration) *Ollama {
	if baseURL == "" {
		baseURL = defaultOllamaURL
	}
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &Ollama{
		baseURL:    strings.TrimRight(baseURL, "/"),
		embedModel: embedModel,
		chatModel:  chatModel,
		timeout:    timeout,
		client:     &http.Client{},
	}
}

// EmbedTexts embeds one text per request; the embeddings endpoint takes a single prompt.
func (o *Ollama) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, 0, len(texts))
	for _, t := range texts {
		vec, err := o.embed(ctx, t)
		if err != nil {
			return nil, err
		}
		out = append(out, vec)
	}
	return out, nil
}

func (o *Ollama) embed(ctx context.Context, text string) ([]float32, error) {
	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	body, err := o.post(ctx, "/api/embeddings", ollamaEmbeddingRequest{Model: o.embedModel, Prompt: text})
	if err != nil {
		return nil, err
	}
	defer body.Close()

	var resp ollamaEmbeddingResponse
	if err := json.NewDecoder(body).Decode(&resp); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}
	if len(resp.Embedding) == 0 {
		return nil, ErrEmptyResponse
	}

	norm := normalize64(resp.Embedding)
	embedding := make([]float32, len(norm))
	for i, v := range norm {
		embedding[i] = float32(v)
	}
	return embedding, nil
}

func (o *Ollama) Chat(ctx context.Context, messages []Message, opts ChatOptions) (string, error) {
	stream, err := o.ChatStream(ctx, messages, opts)
	if err != nil {
		return "", err
	}
	var sb strings.Builder
	for tok := range stream {
		if tok.Err != nil {
			return "", tok.Err
		}
		sb.WriteString(tok.Content)
	}
	return sb.String(), nil
}

// ChatStream decodes the newline delimited JSON stream of /api/chat.
func (o *Ollama) ChatStream(ctx context.Context, messages []Message, opts ChatOptions) (<-chan StreamToken, error) {
	options := map[string]any{"temperature": opts.Temperature}
	if opts.MaxTokens > 0 {
		options["num_predict"] = opts.MaxTokens
	}
	body, err := o.post(ctx, "/api/chat", ollamaChatRequest{
		Model:    o.chatModel,
		Messages: messages,
		Stream:   true,
		Options:  options,
	})
	if err != nil {
		return nil, err
	}

	out := make(chan StreamToken)
	go func() {
		defer close(out)
		defer body.Close()

		decoder := json.NewDecoder(body)
		for decoder.More() {
			var chunk ollamaChatChunk
			if err := decoder.Decode(&chunk); err != nil {
				out <- StreamToken{Err: fmt.Errorf("decode stream: %w", err)}
				return
			}
			if chunk.Error != "" {
				out <- StreamToken{Err: fmt.Errorf("ollama error: %s", chunk.Error)}
				return
			}
			select {
			case out <- StreamToken{Content: chunk.Message.Content, Done: chunk.Done}:
			case <-ctx.Done():
				return
			}
			if chunk.Done {
				return
			}
		}
		out <- StreamToken{Done: true}
	}()
	return out, nil
}

func (o *Ollama) post(ctx context.Context, path string, payload any) (io.ReadCloser, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+path, bytes.NewReader(b))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := o.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to make request: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("ollama API error: status %d, body: %s", resp.StatusCode, string(body))
	}
	return resp.Body, nil
}

// normalize64 scales vec to unit length in place.
func normalize64(vec []float64) []float64 {
	var sum float64
	for _, v := range vec {
		sum += v * v
	}
	norm := math.Sqrt(sum)
	if norm == 0 {
		return vec
	}
	for i, x := range vec {
		vec[i] = x / norm
	}
	return vec
}
