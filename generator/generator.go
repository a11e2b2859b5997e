// Package generator builds grounded prompts and asks the chat model for answers.
package generator

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"docrag/model"
	"docrag/tokenizer"
	"docrag/types"
)

const (
	DefaultMaxTokens   = 1000
	DefaultTemperature = 0.7

	completionTemperature = 0.3
	completionMaxTokens   = 200
)

const systemPrompt = `You are a helpful AI assistant. Format your answers using Markdown.
Follow these guidelines:
1. Only use information provided in the context
2. If the context doesn't contain enough information, acknowledge this
3. Cite sources when possible
4. Be concise but thorough
5. If there are contradictions in the context, point them out
6. Maintain a professional and helpful tone
7. Use Markdown formatting:
   - Use **bold** for emphasis
   - Use bullet points for lists
   - Use numbered lists when sequence matters
   - Use > for quotes, and provide the source
   - Use proper line breaks between paragraphs`

type Generator struct {
	llm    model.ChatModel
	tok    tokenizer.Tokenizer
	logger *slog.Logger
}

func New(llm model.ChatModel, tok tokenizer.Tokenizer) *Generator {
	if tok == nil {
		tok = tokenizer.Words{}
	}
	return &Generator{
		llm:    llm,
		tok:    tok,
		logger: slog.Default(),
	}
}

// GenerateResponse answers query from docs. Any failure is logged and
// reported as ok=false.
func (g *Generator) GenerateResponse(ctx context.Context, query string, docs []types.QueryResult, maxTokens int, temperature float64) (string, bool) {
	start := time.Now()
	messages := []model.Message{
		{Role: model.RoleSystem, Content: systemPrompt},
		{Role: model.RoleUser, Content: BuildPrompt(query, PrepareContext(docs))},
	}
	g.logPromptSize(messages)

	answer, err := g.llm.Chat(ctx, messages, model.ChatOptions{MaxTokens: maxTokens, Temperature: temperature})
	if err != nil {
		g.logger.Error("[GENERATOR] error generating response", "error", err)
		return "", false
	}
	g.logger.Info("[GENERATOR] answer generated", "took", time.Since(start))
	return answer, true
}

// GenerateCompletion is a short, low temperature call used for query
// reformulation. The result is trimmed.
func (g *Generator) GenerateCompletion(ctx context.Context, system, user string) (string, error) {
	out, err := g.llm.Chat(ctx, []model.Message{
		{Role: model.RoleSystem, Content: system},
		{Role: model.RoleUser, Content: user},
	}, model.ChatOptions{MaxTokens: completionMaxTokens, Temperature: completionTemperature})
	if err != nil {
		g.logger.Error("[GENERATOR] error in completion generation", "error", err)
		return "", fmt.Errorf("completion: %w", err)
	}
	return strings.TrimSpace(out), nil
}

// StreamResponse streams an answer. history holds earlier turns of the
// conversation, oldest first.
func (g *Generator) StreamResponse(ctx context.Context, query string, docs []types.QueryResult, history []model.Message) (<-chan model.StreamToken, error) {
	messages := make([]model.Message, 0, len(history)+2)
	messages = append(messages, model.Message{Role: model.RoleSystem, Content: systemPrompt})
	for _, h := range history {
		if h.Role == model.RoleUser || h.Role == model.RoleAssistant {
			messages = append(messages, h)
		}
	}
	messages = append(messages, model.Message{Role: model.RoleUser, Content: BuildPrompt(query, PrepareContext(docs))})
	g.logPromptSize(messages)

	stream, err := g.llm.ChatStream(ctx, messages, model.ChatOptions{
		MaxTokens:   DefaultMaxTokens,
		Temperature: DefaultTemperature,
	})
	if err != nil {
		g.logger.Error("[GENERATOR] error starting stream", "error", err)
		return nil, err
	}
	return stream, nil
}

func (g *Generator) logPromptSize(messages []model.Message) {
	var sb strings.Builder
	for _, m := range messages {
		sb.WriteString(m.Content)
	}
	g.logger.Debug("[GENERATOR] prompt size",
		"tokens", tokenizer.CountOrZero(g.tok, sb.String()),
		"chars", sb.Len())
}

// PrepareContext renders one block per document separated by "---" lines.
func PrepareContext(docs []types.QueryResult) string {
	parts := make([]string, 0, len(docs))
	for _, d := range docs {
		source, ok := d.Metadata[types.MetaSource]
		if !ok {
			source = "Unknown"
		}
		meta := fmt.Sprintf("Source: %v", source)
		if page, ok := d.Metadata[types.MetaPage]; ok {
			meta += fmt.Sprintf(", Page: %v", page)
		}
		parts = append(parts, fmt.Sprintf("%s\nRelevance Score: %.2f\nContent: %s\n", meta, d.SimilarityScore, d.Content))
	}
	return strings.Join(parts, "\n---\n")
}

func BuildPrompt(query, context string) string {
	return fmt.Sprintf(`Please answer the following question based on the provided context.

Question: %s

Context:
%s

Answer:`, query, context)
}
