package ws

import (
	"sync"
	"time"

	"github.com/gofiber/websocket/v2"
	"golang.org/x/time/rate"
)

// Client is one live websocket connection. Writes go through a buffered
// channel; a full buffer drops the event rather than blocking the sender.
// The send channel is never closed, shutdown is signalled through done, so
// a delivery racing Unregister can never panic. Inbound frames draw from a
// per-client rate budget.
type Client struct {
	UserID   string
	SocketID string

	conn      *websocket.Conn
	send      chan []byte
	done      chan struct{}
	limiter   *rate.Limiter
	closeOnce sync.Once
}

func NewClient(userID, socketID string, conn *websocket.Conn, buffer int, msgRate rate.Limit, burst int) *Client {
	return &Client{
		UserID:   userID,
		SocketID: socketID,
		conn:     conn,
		send:     make(chan []byte, buffer),
		done:     make(chan struct{}),
		limiter:  rate.NewLimiter(msgRate, burst),
	}
}

// Allow reports whether another inbound frame fits the client's rate
// budget. The read loop drops frames over budget.
func (c *Client) Allow() bool {
	return c.limiter.Allow()
}

func (c *Client) enqueue(b []byte) {
	select {
	case <-c.done:
		return
	default:
	}
	select {
	case c.send <- b:
	default:
		// slow consumer, drop
	}
}

func (c *Client) close() {
	c.closeOnce.Do(func() {
		close(c.done)
	})
}

// WritePump drains the send channel onto the socket and keeps the
// connection alive with pings. It returns when the client closes or a
// write fails.
func (c *Client) WritePump(pingInterval, writeDeadline time.Duration) {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()
	for {
		select {
		case <-c.done:
			_ = c.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(time.Second))
			return
		case b := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeDeadline))
			if err := c.conn.WriteMessage(websocket.TextMessage, b); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeDeadline))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
