package routes

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"

	"github.com/yourorg/social-app/chat-service/internal/handlers"
	"github.com/yourorg/social-app/chat-service/internal/middleware"
)

// Register mounts the HTTP API and the websocket endpoint.
func Register(app *fiber.App, jwtSecret string, ch *handlers.ChatHandler, ph *handlers.PresenceHandler, wh *handlers.WSHandler) {
	api := app.Group("/api/v1")

	api.Get("/health", func(c *fiber.Ctx) error { return c.JSON(fiber.Map{"status": "ok"}) })

	chat := api.Group("/chat", middleware.JWTAuth(jwtSecret))

	chat.Post("/conversations", ch.CreateConversation)
	chat.Get("/conversations", ch.GetConversations)
	chat.Post("/conversations/private/:user_id", ch.GetOrCreatePrivate)
	chat.Get("/conversations/:conversation_id", ch.GetConversation)
	chat.Put("/conversations/:conversation_id", ch.UpdateGroupInfo)
	chat.Post("/conversations/:conversation_id/members", ch.AddMember)
	chat.Delete("/conversations/:conversation_id/members/:user_id", ch.RemoveMember)
	chat.Delete("/conversations/:conversation_id/members", ch.LeaveConversation)

	chat.Post("/messages", ch.SendMessage)
	chat.Get("/conversations/:conversation_id/messages", ch.GetMessages)
	chat.Get("/conversations/:conversation_id/messages/new", ch.GetNewMessages)
	chat.Get("/conversations/:conversation_id/messages/search", ch.SearchMessages)
	chat.Put("/messages/:message_id", ch.EditMessage)
	chat.Delete("/messages/:message_id", ch.DeleteMessage)

	chat.Post("/conversations/:conversation_id/read", ch.MarkAsRead)
	chat.Get("/conversations/:conversation_id/unread", ch.UnreadCount)
	chat.Post("/conversations/:conversation_id/typing", ch.SetTyping)
	chat.Get("/conversations/:conversation_id/typing", ch.TypingUsers)

	pres := api.Group("/presence")
	pres.Post("/heartbeat", middleware.JWTAuth(jwtSecret), ph.Heartbeat)
	pres.Get("/:user_id", ph.Status)

	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws", websocket.New(wh.Handle))
}
