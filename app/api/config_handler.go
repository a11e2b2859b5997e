package api

import (
	"github.com/gofiber/fiber/v2"

	"docrag/config"
)

// ConfigHandler exposes the effective, non-secret processing settings.
type ConfigHandler struct {
	cfg *config.Config
}

func NewConfigHandler(cfg *config.Config) *ConfigHandler {
	return &ConfigHandler{
		cfg: cfg,
	}
}

func (h *ConfigHandler) HandleGetConfig(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"provider":        h.cfg.Provider.Name,
		"embedding_model": h.cfg.Provider.EmbeddingModel,
		"chat_model":      h.cfg.Provider.ChatModel,
		"vector_backend":  h.cfg.Vector.Backend,
		"collection":      h.cfg.Vector.Collection,
		"chunking":        h.cfg.Chunking,
		"cleaning":        h.cfg.Cleaning,
		"retrieval":       h.cfg.Retrieval,
	})
}
