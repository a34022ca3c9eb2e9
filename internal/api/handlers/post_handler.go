package handlers

import (
	"errors"
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/maheshrc27/reelflow/internal/service"
	"github.com/maheshrc27/reelflow/internal/transfer"
)

type PostHandler struct {
	s service.PostService
}

func NewPostHandler(service service.PostService) *PostHandler {
	return &PostHandler{s: service}
}

func (h *PostHandler) ListPosts(c *fiber.Ctx) error {
	userID := GetUserID(c)

	posts, err := h.s.List(c.Context(), userID,
		c.Query("status"),
		c.QueryInt("limit", service.DefaultPageSize),
		c.QueryInt("offset", 0))
	if err != nil {
		slog.Error("failed to list posts", "user_id", userID, "error", err)
		return errorJSON(c, fiber.StatusInternalServerError, "Unable to list posts")
	}

	return c.Status(fiber.StatusOK).JSON(posts)
}

func (h *PostHandler) GetPost(c *fiber.Ctx) error {
	userID := GetUserID(c)

	post, err := h.s.PostInfo(c.Context(), c.Params("id"), userID)
	if err != nil {
		if errors.Is(err, service.ErrNotFound) {
			return errorJSON(c, fiber.StatusNotFound, "Post not found")
		}
		slog.Error("failed to load post", "post_id", c.Params("id"), "error", err)
		return errorJSON(c, fiber.StatusInternalServerError, "Unable to load post")
	}

	return c.Status(fiber.StatusOK).JSON(post)
}

func (h *PostHandler) Publish(c *fiber.Ctx) error {
	userID := GetUserID(c)

	var req transfer.PublishRequest
	if err := c.BodyParser(&req); err != nil {
		return errorJSON(c, fiber.StatusBadRequest, "Invalid request body")
	}

	err := h.s.RequestPublish(c.Context(), userID, req.VideoID)
	switch {
	case err == nil:
	case errors.Is(err, service.ErrInvalidVideoID):
		return errorJSON(c, fiber.StatusBadRequest, "videoId must be a valid UUID")
	case errors.Is(err, service.ErrNotFound):
		return errorJSON(c, fiber.StatusNotFound, "Video not found")
	case errors.Is(err, service.ErrNotReady):
		return errorJSON(c, fiber.StatusBadRequest, "Video is not ready to publish")
	case errors.Is(err, service.ErrNoCredential):
		return errorJSON(c, fiber.StatusBadRequest, "Instagram account is not connected")
	case errors.Is(err, service.ErrAlreadyPublishing):
		return errorJSON(c, fiber.StatusConflict, "Video is already published or being published")
	default:
		slog.Error("failed to request publish", "video_id", req.VideoID, "error", err)
		return errorJSON(c, fiber.StatusInternalServerError, "Unable to publish video")
	}

	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
		"message": "Publish started",
		"videoId": req.VideoID,
	})
}
