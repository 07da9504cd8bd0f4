package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/yourorg/social-app/chat-service/internal/middleware"
	"github.com/yourorg/social-app/chat-service/internal/presence"
)

type PresenceHandler struct {
	svc *presence.Service
}

func NewPresenceHandler(svc *presence.Service) *PresenceHandler {
	return &PresenceHandler{svc: svc}
}

func (h *PresenceHandler) Heartbeat(c *fiber.Ctx) error {
	if err := h.svc.Heartbeat(c.Context(), middleware.UserID(c)); err != nil {
		return respondErr(c, err)
	}
	return c.SendStatus(http.StatusNoContent)
}

func (h *PresenceHandler) Status(c *fiber.Ctx) error {
	userID := c.Params("user_id")
	online, err := h.svc.IsOnline(c.Context(), userID)
	if err != nil {
		return respondErr(c, err)
	}
	lastSeen, err := h.svc.LastSeen(c.Context(), userID)
	if err != nil {
		return respondErr(c, err)
	}
	return c.JSON(fiber.Map{"user_id": userID, "online": online, "last_seen": lastSeen})
}
