package api

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"docrag/model"
	"docrag/pipeline"
	"docrag/retriever"
	"docrag/store"
	"docrag/types"
)

const (
	defaultNbResults = 5
	maxNbResults     = 30
	streamTimeout    = 5 * time.Minute
)

// RAG is the part of the pipeline the HTTP layer uses.
type RAG interface {
	Answer(ctx context.Context, question string, nbResults int, filter map[string]any) (pipeline.Answer, error)
	Retrieve(ctx context.Context, question string, nbResults int, filter map[string]any) retriever.Retrieval
	Stream(ctx context.Context, question string, docs []types.QueryResult, history []model.Message) (<-chan model.StreamToken, error)
	IndexBytes(ctx context.Context, name string, data []byte) (int, error)
	Ingest(ctx context.Context, docs []types.Document) bool
	DeleteSource(ctx context.Context, source string) (int, error)
	Stats(ctx context.Context) (store.DetailedStats, error)
}

type RequestHandler struct {
	rag    RAG
	logger *slog.Logger
}

func NewRequestHandler(rag RAG) *RequestHandler {
	return &RequestHandler{
		rag:    rag,
		logger: slog.Default(),
	}
}

func (h *RequestHandler) HandleQuery(c *fiber.Ctx) error {
	var params types.QueryParams
	if c.BodyParser(&params) != nil {
		return ErrBadRequest()
	}

	if errs := types.Validate(&params); len(errs) > 0 {
		return NewValidationError(errs)
	}

	answer, err := h.rag.Answer(c.UserContext(), params.Prompt, params.NbResults, params.Filter)
	if err != nil {
		if errors.Is(err, pipeline.ErrGeneration) {
			return ErrUpstream(err)
		}
		return err
	}

	confidence := 0.0
	if len(answer.Sources) > 0 {
		confidence = answer.Sources[0].SimilarityScore
	}

	return c.JSON(&types.SearchResponse{
		Answer:     answer.Text,
		Sources:    formatSources(answer.Sources),
		Confidence: confidence,
		Timestamp:  time.Now(),
	})
}

// HandleChat streams the answer as server-sent events: an empty event, the
// sources, response tokens, then a final status "done".
func (h *RequestHandler) HandleChat(c *fiber.Ctx) error {
	var params types.ChatParams
	if c.QueryParser(&params) != nil {
		return ErrBadRequest()
	}
	if errs := types.Validate(&params); len(errs) > 0 {
		return NewValidationError(errs)
	}

	var history []model.Message
	if params.History != "" {
		if err := json.Unmarshal([]byte(params.History), &history); err != nil {
			return NewError(fiber.StatusBadRequest, "invalid history")
		}
	}

	nb := params.NbResults
	if nb <= 0 {
		nb = defaultNbResults
	}
	nb = min(nb, maxNbResults)

	r := h.rag.Retrieve(c.UserContext(), params.Message, nb, nil)
	if r.Outcome == retriever.OutcomeFailed {
		return r.Err
	}
	message := params.Message

	c.Set(fiber.HeaderContentType, "text/event-stream")
	c.Set(fiber.HeaderCacheControl, "no-cache")
	c.Set(fiber.HeaderConnection, "keep-alive")
	c.Set("X-Accel-Buffering", "no")

	c.Context().SetBodyStreamWriter(func(w *bufio.Writer) {
		ctx, cancel := context.WithTimeout(context.Background(), streamTimeout)
		defer cancel()

		fmt.Fprint(w, "data: {}\n\n")
		if len(r.Results) > 0 {
			h.writeEvent(w, types.EventSources, chatSources(r.Results))
		}
		_ = w.Flush()

		stream, err := h.rag.Stream(ctx, message, r.Results, history)
		if err != nil {
			h.logger.Error("[CHAT] error during generation", "error", err)
			h.writeEvent(w, types.EventError, err.Error())
			h.writeEvent(w, types.EventStatus, "done")
			_ = w.Flush()
			return
		}
		for tok := range stream {
			if tok.Err != nil {
				h.logger.Error("[CHAT] error during generation", "error", tok.Err)
				h.writeEvent(w, types.EventError, tok.Err.Error())
				break
			}
			if tok.Content != "" {
				h.writeEvent(w, types.EventResponse, tok.Content)
				if err := w.Flush(); err != nil {
					// client went away
					cancel()
					return
				}
			}
		}
		h.writeEvent(w, types.EventStatus, "done")
		_ = w.Flush()
	})
	return nil
}

func (h *RequestHandler) writeEvent(w *bufio.Writer, kind string, content any) {
	data, err := json.Marshal(types.StreamEvent{Type: kind, Content: content})
	if err != nil {
		h.logger.Error("[CHAT] error encoding event", "error", err)
		return
	}
	fmt.Fprintf(w, "data: %s\n\n", data)
}

func (h *RequestHandler) HandleStats(c *fiber.Ctx) error {
	stats, err := h.rag.Stats(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(stats)
}

func formatSources(results []types.QueryResult) []types.Source {
	sources := make([]types.Source, len(results))
	for i, r := range results {
		title := metaString(r.Metadata, types.MetaTitle)
		if title == "" {
			title = metaString(r.Metadata, types.MetaSource)
		}
		sources[i] = types.Source{
			DocID:     r.DocID,
			Title:     title,
			ChunkText: r.Content,
			Index:     metaInt(r.Metadata, types.MetaChunkIndex),
			Page:      r.Metadata[types.MetaPage],
			Score:     r.SimilarityScore,
		}
	}
	return sources
}

func chatSources(results []types.QueryResult) []types.ChatSource {
	sources := make([]types.ChatSource, len(results))
	for i, r := range results {
		sources[i] = types.ChatSource{
			ID:      uuid.NewString()[:8],
			Source:  metaString(r.Metadata, types.MetaSource),
			Content: r.Content,
			Page:    r.Metadata[types.MetaPage],
			Score:   r.SimilarityScore,
		}
	}
	return sources
}

func metaString(meta map[string]any, key string) string {
	if v, ok := meta[key]; ok && v != nil {
		return fmt.Sprint(v)
	}
	return ""
}

// metaInt reads ints that may have come back from JSON as float64.
func metaInt(meta map[string]any, key string) int {
	switch v := meta[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	case json.Number:
		n, _ := v.Int64()
		return int(n)
	}
	return 0
}
