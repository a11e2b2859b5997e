package middleware

import (
	"log/slog"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
)

// RequestLogger logs one line per request. Paths under skipPrefix are not
// logged.
func RequestLogger(logger *slog.Logger, skipPrefix string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		path := c.Path()
		if skipPrefix != "" && strings.HasPrefix(path, skipPrefix) {
			return c.Next()
		}

		start := time.Now()
		err := c.Next()
		if err != nil {
			// let the app render the error so the logged status is final
			if herr := c.App().Config().ErrorHandler(c, err); herr != nil {
				_ = c.SendStatus(fiber.StatusInternalServerError)
			}
		}
		status := c.Response().StatusCode()

		attrs := []any{
			"method", c.Method(),
			"path", path,
			"status", status,
			"duration", time.Since(start),
			"ip", c.IP(),
		}
		switch {
		case err != nil && status >= fiber.StatusInternalServerError:
			logger.Error("[API] request", append(attrs, "error", err)...)
		case status >= fiber.StatusBadRequest:
			logger.Warn("[API] request", attrs...)
		default:
			logger.Info("[API] request", attrs...)
		}
		return nil
	}
}
