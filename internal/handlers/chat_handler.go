package handlers

import (
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/yourorg/social-app/chat-service/internal/chat"
	"github.com/yourorg/social-app/chat-service/internal/middleware"
)

type ChatHandler struct {
	svc *chat.Service
}

func NewChatHandler(svc *chat.Service) *ChatHandler {
	return &ChatHandler{svc: svc}
}

func (h *ChatHandler) CreateConversation(c *fiber.Ctx) error {
	var in chat.CreateConversationInput
	if err := c.BodyParser(&in); err != nil {
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": "invalid body"})
	}
	view, err := h.svc.CreateConversation(c.Context(), middleware.UserID(c), in)
	if err != nil {
		return respondErr(c, err)
	}
	return c.Status(http.StatusCreated).JSON(view)
}

func (h *ChatHandler) GetOrCreatePrivate(c *fiber.Ctx) error {
	otherID := c.Params("user_id")
	view, err := h.svc.GetOrCreatePrivateConversation(c.Context(), middleware.UserID(c), otherID)
	if err != nil {
		return respondErr(c, err)
	}
	return c.JSON(view)
}

func (h *ChatHandler) GetConversations(c *fiber.Ctx) error {
	views, err := h.svc.GetConversations(c.Context(), middleware.UserID(c))
	if err != nil {
		return respondErr(c, err)
	}
	return c.JSON(views)
}

func (h *ChatHandler) GetConversation(c *fiber.Ctx) error {
	view, err := h.svc.GetConversation(c.Context(), c.Params("conversation_id"), middleware.UserID(c))
	if err != nil {
		return respondErr(c, err)
	}
	return c.JSON(view)
}

func (h *ChatHandler) AddMember(c *fiber.Ctx) error {
	var body struct {
		UserID string `json:"user_id"`
	}
	if err := c.BodyParser(&body); err != nil {
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": "invalid body"})
	}
	view, err := h.svc.AddMember(c.Context(), c.Params("conversation_id"), body.UserID, middleware.UserID(c))
	if err != nil {
		return respondErr(c, err)
	}
	return c.JSON(view)
}

func (h *ChatHandler) RemoveMember(c *fiber.Ctx) error {
	err := h.svc.RemoveMember(c.Context(), c.Params("conversation_id"), c.Params("user_id"), middleware.UserID(c))
	if err != nil {
		return respondErr(c, err)
	}
	return c.SendStatus(http.StatusNoContent)
}

func (h *ChatHandler) LeaveConversation(c *fiber.Ctx) error {
	if err := h.svc.LeaveConversation(c.Context(), c.Params("conversation_id"), middleware.UserID(c)); err != nil {
		return respondErr(c, err)
	}
	return c.SendStatus(http.StatusNoContent)
}

func (h *ChatHandler) UpdateGroupInfo(c *fiber.Ctx) error {
	var body struct {
		GroupName   *string `json:"group_name"`
		GroupAvatar *string `json:"group_avatar"`
	}
	if err := c.BodyParser(&body); err != nil {
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": "invalid body"})
	}
	view, err := h.svc.UpdateGroupInfo(c.Context(), c.Params("conversation_id"), middleware.UserID(c), body.GroupName, body.GroupAvatar)
	if err != nil {
		return respondErr(c, err)
	}
	return c.JSON(view)
}

func (h *ChatHandler) SendMessage(c *fiber.Ctx) error {
	var in chat.SendMessageInput
	if err := c.BodyParser(&in); err != nil {
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": "invalid body"})
	}
	view, err := h.svc.SendMessage(c.Context(), middleware.UserID(c), in)
	if err != nil {
		return respondErr(c, err)
	}
	return c.Status(http.StatusCreated).JSON(view)
}

func (h *ChatHandler) GetMessages(c *fiber.Ctx) error {
	var before time.Time
	if raw := c.Query("before"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": "invalid before timestamp"})
		}
		before = t
	}
	limit := int64(c.QueryInt("limit"))
	views, err := h.svc.GetMessages(c.Context(), c.Params("conversation_id"), middleware.UserID(c), limit, before)
	if err != nil {
		return respondErr(c, err)
	}
	return c.JSON(views)
}

func (h *ChatHandler) GetNewMessages(c *fiber.Ctx) error {
	views, err := h.svc.GetNewMessages(c.Context(), c.Params("conversation_id"), middleware.UserID(c))
	if err != nil {
		return respondErr(c, err)
	}
	return c.JSON(views)
}

func (h *ChatHandler) EditMessage(c *fiber.Ctx) error {
	var body struct {
		Content string `json:"content"`
	}
	if err := c.BodyParser(&body); err != nil {
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": "invalid body"})
	}
	view, err := h.svc.EditMessage(c.Context(), c.Params("message_id"), middleware.UserID(c), body.Content)
	if err != nil {
		return respondErr(c, err)
	}
	return c.JSON(view)
}

func (h *ChatHandler) DeleteMessage(c *fiber.Ctx) error {
	if err := h.svc.DeleteMessage(c.Context(), c.Params("message_id"), middleware.UserID(c)); err != nil {
		return respondErr(c, err)
	}
	return c.SendStatus(http.StatusNoContent)
}

func (h *ChatHandler) SearchMessages(c *fiber.Ctx) error {
	views, err := h.svc.SearchMessages(c.Context(), c.Params("conversation_id"), c.Query("q"), middleware.UserID(c))
	if err != nil {
		return respondErr(c, err)
	}
	return c.JSON(views)
}

func (h *ChatHandler) MarkAsRead(c *fiber.Ctx) error {
	if err := h.svc.MarkAsRead(c.Context(), c.Params("conversation_id"), middleware.UserID(c)); err != nil {
		return respondErr(c, err)
	}
	return c.SendStatus(http.StatusNoContent)
}

func (h *ChatHandler) UnreadCount(c *fiber.Ctx) error {
	n, err := h.svc.UnreadCount(c.Context(), c.Params("conversation_id"), middleware.UserID(c))
	if err != nil {
		return respondErr(c, err)
	}
	return c.JSON(fiber.Map{"conversation_id": c.Params("conversation_id"), "unread_count": n})
}

func (h *ChatHandler) SetTyping(c *fiber.Ctx) error {
	var body struct {
		ConversationID string `json:"conversation_id"`
		Typing         bool   `json:"typing"`
	}
	if err := c.BodyParser(&body); err != nil {
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": "invalid body"})
	}
	if err := h.svc.SetTyping(c.Context(), body.ConversationID, middleware.UserID(c), body.Typing); err != nil {
		return respondErr(c, err)
	}
	return c.SendStatus(http.StatusNoContent)
}

func (h *ChatHandler) TypingUsers(c *fiber.Ctx) error {
	ids, err := h.svc.TypingUsers(c.Context(), c.Params("conversation_id"))
	if err != nil {
		return respondErr(c, err)
	}
	return c.JSON(fiber.Map{"typing_user_ids": ids})
}
