package api

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"docrag/task"
	"docrag/types"
)

type TaskHandler struct {
	tasks *task.Manager
	rag   RAG
}

func NewTaskHandler(tasks *task.Manager, rag RAG) *TaskHandler {
	return &TaskHandler{
		tasks: tasks,
		rag:   rag,
	}
}

func (h *TaskHandler) HandleList(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"tasks": h.tasks.List()})
}

func (h *TaskHandler) HandleGet(c *fiber.Ctx) error {
	id := c.Params("id")
	status, ok := h.tasks.Get(id)
	if !ok {
		return ErrNotFound(id, "task")
	}
	return c.JSON(status)
}

// HandleTranscript indexes a transcript in the background.
func (h *TaskHandler) HandleTranscript(c *fiber.Ctx) error {
	var params types.TranscriptParams
	if c.BodyParser(&params) != nil {
		return ErrBadRequest()
	}
	if errs := types.Validate(&params); len(errs) > 0 {
		return NewValidationError(errs)
	}

	source := params.Source
	if source == "" {
		source = params.Title
	}
	doc := types.NewDocument(params.Text, map[string]any{
		types.MetaSource:    source,
		types.MetaTitle:     params.Title,
		types.MetaType:      "transcript",
		types.MetaTimestamp: time.Now().UTC().Format(time.RFC3339),
		types.MetaLength:    len(strings.Fields(params.Text)),
	})

	id := h.tasks.Create("", types.TaskStatus{CurrentFile: params.Title})
	h.tasks.Run(id, func() error {
		_ = h.tasks.Update(id, types.TaskUpdate{}.WithStatus(types.TaskIndexing).WithProgress(50))
		if !h.rag.Ingest(context.Background(), []types.Document{doc}) {
			return errors.New("transcript could not be indexed")
		}
		return h.tasks.Update(id, types.TaskUpdate{}.
			WithStatus(types.TaskCompleted).
			WithProgress(100).
			WithResults(map[string]any{"doc_id": doc.DocID}))
	})

	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"task_id": id})
}
