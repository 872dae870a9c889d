// Package handlers translates HTTP requests into pipeline calls and
// results into JSON responses.
package handlers

import (
	"context"

	"github.com/gofiber/fiber/v2"

	"modstream/internal/models"
	"modstream/internal/streams"
)

// StreamService is what the handler needs from the orchestrator.
type StreamService interface {
	GetStreams(ctx context.Context, req streams.Request) models.Result
}

type Handler struct {
	svc StreamService
}

func New(svc StreamService) *Handler {
	return &Handler{svc: svc}
}

// GetStreams handles GET /api/streams?title=&type=&season=&episode=&year=.
func (h *Handler) GetStreams(c *fiber.Ctx) error {
	title := c.Query("title")
	if title == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"error":   "missing required parameter 'title'",
			"usage":   "/api/streams?title=<title>&type=movie|tv&season=<n>&episode=<n>&year=<yyyy>",
		})
	}

	mediaType := c.Query("type", "movie")
	if mediaType != "movie" && mediaType != "tv" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"error":   "parameter 'type' must be 'movie' or 'tv'",
		})
	}

	req := streams.Request{
		Title:   title,
		Type:    mediaType,
		Season:  c.QueryInt("season"),
		Episode: c.QueryInt("episode"),
		Year:    c.QueryInt("year"),
	}

	result := h.svc.GetStreams(c.UserContext(), req)
	if !result.Success {
		return c.Status(fiber.StatusNotFound).JSON(result)
	}
	return c.JSON(result)
}

// Health reports service liveness.
func (h *Handler) Health(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "ok"})
}
