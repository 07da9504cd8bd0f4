package handlers

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/yourorg/social-app/chat-service/internal/chat"
	"github.com/yourorg/social-app/chat-service/internal/middleware"
	"github.com/yourorg/social-app/chat-service/internal/models"
	"github.com/yourorg/social-app/chat-service/internal/presence"
	"github.com/yourorg/social-app/chat-service/internal/ws"
)

// Envelope is the inbound websocket frame.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type WSConfig struct {
	PingInterval  time.Duration
	WriteDeadline time.Duration
	MaxMsgSize    int64
	SendBuffer    int
	MsgRate       float64
	MsgBurst      int
}

type WSHandler struct {
	hub       *ws.Hub
	chats     *chat.Service
	pres      *presence.Service
	jwtSecret string
	cfg       WSConfig
	log       *zap.SugaredLogger
}

func NewWSHandler(hub *ws.Hub, chats *chat.Service, pres *presence.Service, jwtSecret string, cfg WSConfig, log *zap.SugaredLogger) *WSHandler {
	return &WSHandler{hub: hub, chats: chats, pres: pres, jwtSecret: jwtSecret, cfg: cfg, log: log}
}

// Handle runs one websocket connection: authenticate, register with the
// hub, then dispatch inbound envelopes until the socket dies. Unregistration
// happens on the way out regardless of in-flight deliveries.
func (h *WSHandler) Handle(c *websocket.Conn) {
	token := c.Query("token")
	claims, err := middleware.ParseToken(h.jwtSecret, token)
	if err != nil {
		_ = c.WriteMessage(websocket.TextMessage, []byte(`{"type":"error","payload":"invalid token"}`))
		_ = c.Close()
		return
	}
	userID := claims.UserID

	client := ws.NewClient(userID, uuid.New().String(), c, h.cfg.SendBuffer,
		rate.Limit(h.cfg.MsgRate), h.cfg.MsgBurst)
	h.hub.Register(client)
	go client.WritePump(h.cfg.PingInterval, h.cfg.WriteDeadline)

	ctx := context.Background()
	if err := h.pres.Heartbeat(ctx, userID); err != nil {
		h.log.Warnw("heartbeat on connect failed", "user_id", userID, "err", err)
	}

	c.SetReadLimit(h.cfg.MaxMsgSize)
	for {
		_, raw, err := c.ReadMessage()
		if err != nil {
			break
		}
		if !client.Allow() {
			h.log.Debugw("inbound frame over rate budget", "user_id", userID)
			continue
		}
		var env Envelope
		if err := json.Unmarshal(raw, &env); err != nil {
			continue
		}
		h.dispatch(ctx, client, env)
	}
	h.hub.Unregister(client)
}

func (h *WSHandler) dispatch(ctx context.Context, client *ws.Client, env Envelope) {
	userID := client.UserID
	switch env.Type {
	case "message":
		var in chat.SendMessageInput
		if err := json.Unmarshal(env.Payload, &in); err != nil {
			return
		}
		// A missing conversation means "start a 1:1 with this recipient".
		if in.ConversationID == "" {
			var p struct {
				RecipientID string `json:"recipient_id"`
			}
			_ = json.Unmarshal(env.Payload, &p)
			if p.RecipientID == "" {
				h.sendError(userID, "recipient_id is required to start a conversation")
				return
			}
			conv, err := h.chats.GetOrCreatePrivateConversation(ctx, userID, p.RecipientID)
			if err != nil {
				h.sendError(userID, err.Error())
				return
			}
			in.ConversationID = conv.ID
		}
		if _, err := h.chats.SendMessage(ctx, userID, in); err != nil {
			h.sendError(userID, err.Error())
		}

	case "mark_read":
		var p struct {
			ConversationID string `json:"conversation_id"`
		}
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			return
		}
		if err := h.chats.MarkAsRead(ctx, p.ConversationID, userID); err != nil {
			h.log.Warnw("mark_read failed", "user_id", userID, "err", err)
		}

	case "typing":
		var p struct {
			ConversationID string `json:"conversation_id"`
			Typing         bool   `json:"typing"`
		}
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			return
		}
		if err := h.chats.SetTyping(ctx, p.ConversationID, userID, p.Typing); err != nil {
			h.log.Debugw("typing update rejected", "user_id", userID, "err", err)
		}

	case "heartbeat":
		if err := h.pres.Heartbeat(ctx, userID); err != nil {
			h.log.Warnw("heartbeat failed", "user_id", userID, "err", err)
		}

	case "subscribe":
		if convID := h.subscribePayload(env); convID != "" {
			if _, err := h.chats.GetConversation(ctx, convID, userID); err != nil {
				h.sendError(userID, "cannot subscribe: not a member")
				return
			}
			h.hub.Subscribe(convID, client)
		}

	case "unsubscribe":
		if convID := h.subscribePayload(env); convID != "" {
			h.hub.Unsubscribe(convID, client)
		}
	}
}

func (h *WSHandler) subscribePayload(env Envelope) string {
	var p struct {
		ConversationID string `json:"conversation_id"`
	}
	if err := json.Unmarshal(env.Payload, &p); err != nil {
		return ""
	}
	return p.ConversationID
}

func (h *WSHandler) sendError(userID, msg string) {
	h.hub.ToUser(userID, models.QueueErrors, models.Event{Type: models.EventError, Payload: msg})
}
