package model

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
)

const (
	DefaultGeminiEmbedModel = "text-embedding-004"
	DefaultGeminiChatModel  = "gemini-1.5-flash"
)

type Gemini struct {
	client     *genai.Client
	embedModel string
	chatModel  string
}

var (
	_ Embedder  = (*Gemini)(nil)
	_ ChatModel = (*Gemini)(nil)
)

func NewGemini(ctx context.Context, apiKey, embedModel, chatModel string) (*Gemini, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini: API key is required")
	}
	cl, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("gemini client: %w", err)
	}
	if embedModel == "" {
		embedModel = DefaultGeminiEmbedModel
	}
	if chatModel == "" {
		chatModel = DefaultGeminiChatModel
	}
	return &Gemini{client: cl, embedModel: embedModel, chatModel: chatModel}, nil
}

func (g *Gemini) Close() error {
	if g.client != nil {
		return g.client.Close()
	}
	return nil
}

// EmbedTexts sends all texts in one batch request.
func (g *Gemini) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	em := g.client.EmbeddingModel(g.embedModel)
	batch := em.NewBatch()
	for _, t := range texts {
		batch.AddContent(genai.Text(t))
	}

	resp, err := em.BatchEmbedContents(ctx, batch)
	if err != nil {
		return nil, fmt.Errorf("gemini batch embed: %w", err)
	}
	if len(resp.Embeddings) != len(texts) {
		return nil, fmt.Errorf("gemini: expected %d embeddings, got %d", len(texts), len(resp.Embeddings))
	}

	out := make([][]float32, 0, len(resp.Embeddings))
	for _, e := range resp.Embeddings {
		out = append(out, e.Values)
	}
	return out, nil
}

func (g *Gemini) Chat(ctx context.Context, messages []Message, opts ChatOptions) (string, error) {
	cs, last := g.session(messages, opts)
	resp, err := cs.SendMessage(ctx, genai.Text(last))
	if err != nil {
		return "", fmt.Errorf("gemini generate: %w", err)
	}
	return responseText(resp), nil
}

func (g *Gemini) ChatStream(ctx context.Context, messages []Message, opts ChatOptions) (<-chan StreamToken, error) {
	cs, last := g.session(messages, opts)
	iter := cs.SendMessageStream(ctx, genai.Text(last))

	out := make(chan StreamToken)
	go func() {
		defer close(out)
		for {
			resp, err := iter.Next()
			if errors.Is(err, iterator.Done) {
				out <- StreamToken{Done: true}
				return
			}
			if err != nil {
				out <- StreamToken{Err: fmt.Errorf("gemini stream: %w", err)}
				return
			}
			text := responseText(resp)
			if text == "" {
				continue
			}
			select {
			case out <- StreamToken{Content: text}:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

// session maps system messages to the system instruction and earlier turns to
// chat history. The final user message is returned separately.
func (g *Gemini) session(messages []Message, opts ChatOptions) (*genai.ChatSession, string) {
	m := g.client.GenerativeModel(g.chatModel)
	m.SetTemperature(float32(opts.Temperature))
	if opts.MaxTokens > 0 {
		m.SetMaxOutputTokens(int32(opts.MaxTokens))
	}

	var (
		system  []string
		history []*genai.Content
		last    string
	)
	for i, msg := range messages {
		switch {
		case msg.Role == RoleSystem:
			system = append(system, msg.Content)
		case i == len(messages)-1:
			last = msg.Content
		default:
			role := "user"
			if msg.Role == RoleAssistant {
				role = "model"
			}
			history = append(history, &genai.Content{Role: role, Parts: []genai.Part{genai.Text(msg.Content)}})
		}
	}
	if len(system) > 0 {
		m.SystemInstruction = &genai.Content{
			Parts: []genai.Part{genai.Text(strings.Join(system, "\n\n"))},
		}
	}

	cs := m.StartChat()
	cs.History = history
	return cs, last
}

func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var b strings.Builder
	for _, p := range resp.Candidates[0].Content.Parts {
		if t, ok := p.(genai.Text); ok {
			b.WriteString(string(t))
		}
	}
	return b.String()
}
