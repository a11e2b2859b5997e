package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/gofiber/fiber/v2"

	"docrag/storage"
	"docrag/task"
	"docrag/types"
)

type FileHandler struct {
	files  storage.FileStore
	rag    RAG
	tasks  *task.Manager
	logger *slog.Logger
}

func NewFileHandler(files storage.FileStore, rag RAG, tasks *task.Manager) *FileHandler {
	return &FileHandler{
		files:  files,
		rag:    rag,
		tasks:  tasks,
		logger: slog.Default(),
	}
}

// HandleUpload stores every valid "file" part and indexes them in a
// background task.
func (h *FileHandler) HandleUpload(c *fiber.Ctx) error {
	form, err := c.MultipartForm()
	if err != nil {
		return ErrBadRequest()
	}
	headers := form.File["file"]
	if len(headers) == 0 {
		return NewError(fiber.StatusBadRequest, "no file provided")
	}

	var saved []string
	for _, fh := range headers {
		name, err := storage.SafeName(fh.Filename)
		if err != nil {
			h.logger.Warn("[UPLOAD] rejected file", "file", fh.Filename, "error", err)
			continue
		}
		f, err := fh.Open()
		if err != nil {
			return err
		}
		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			return err
		}
		if err := h.files.Save(c.UserContext(), name, data); err != nil {
			return err
		}
		h.logger.Info("[UPLOAD] file saved", "file", name, "size", len(data))
		saved = append(saved, name)
	}
	if len(saved) == 0 {
		return ErrNoValidFile()
	}

	id := h.startIndexing(saved, false)
	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
		"message": fmt.Sprintf("%d files uploaded", len(saved)),
		"task_id": id,
	})
}

// HandleRefresh re-indexes every stored file.
func (h *FileHandler) HandleRefresh(c *fiber.Ctx) error {
	files, err := h.files.List(c.UserContext())
	if err != nil {
		return err
	}
	names := make([]string, 0, len(files))
	for _, f := range files {
		if storage.Allowed(f.Name) {
			names = append(names, f.Name)
		}
	}
	if len(names) == 0 {
		return NewError(fiber.StatusBadRequest, "no files to index")
	}

	id := h.startIndexing(names, true)
	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
		"message": "vector store refresh started",
		"task_id": id,
	})
}

func (h *FileHandler) HandleList(c *fiber.Ctx) error {
	files, err := h.files.List(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"files": files})
}

func (h *FileHandler) HandleSize(c *fiber.Ctx) error {
	name := c.Params("name")
	size, err := h.files.Size(c.UserContext(), name)
	if err != nil {
		return h.fileError(name, err)
	}
	return c.JSON(fiber.Map{"size": size})
}

// HandleDelete removes the file and every chunk indexed from it.
func (h *FileHandler) HandleDelete(c *fiber.Ctx) error {
	name := c.Params("name")
	if err := h.files.Delete(c.UserContext(), name); err != nil {
		return h.fileError(name, err)
	}
	h.logger.Info("[UPLOAD] file deleted", "file", name)

	n, err := h.rag.DeleteSource(c.UserContext(), name)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"message":        "file deleted",
		"chunks_deleted": n,
	})
}

func (h *FileHandler) fileError(name string, err error) error {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return ErrNotFound(name, "file")
	case errors.Is(err, storage.ErrInvalidName):
		return NewError(fiber.StatusBadRequest, err.Error())
	}
	return err
}

// startIndexing indexes names one after another on a background task.
// With replace set, chunks previously indexed from a file are removed first.
func (h *FileHandler) startIndexing(names []string, replace bool) string {
	id := h.tasks.Create("", types.TaskStatus{TotalSegments: len(names)})

	h.tasks.Run(id, func() error {
		ctx := context.Background()
		total := len(names)
		results := make(map[string]any, total)
		failed := 0

		for i, name := range names {
			_ = h.tasks.Update(id, types.TaskUpdate{}.
				WithStatus(types.TaskIndexing).
				WithFile(name).
				WithSegments(i+1, total).
				WithProgress(float64(i)*100/float64(total)))

			data, err := h.files.Open(ctx, name)
			if err != nil {
				failed++
				results[name] = err.Error()
				continue
			}
			if replace {
				if _, err := h.rag.DeleteSource(ctx, name); err != nil {
					h.logger.Warn("[UPLOAD] could not remove old chunks", "file", name, "error", err)
				}
			}
			n, err := h.rag.IndexBytes(ctx, name, data)
			if err != nil {
				failed++
				results[name] = err.Error()
				continue
			}
			results[name] = n
		}

		if failed == total {
			return errors.New("no file could be indexed")
		}
		return h.tasks.Update(id, types.TaskUpdate{}.
			WithStatus(types.TaskCompleted).
			WithProgress(100).
			WithResults(results))
	})
	return id
}
