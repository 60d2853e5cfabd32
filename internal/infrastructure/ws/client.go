package ws

import (
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/hilthontt/repochat/internal/infrastructure/logging"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
	sendBuffer     = 64
)

// Client is one live subscription to a room. Subscribers only receive;
// messages are sent through the HTTP API so they are persisted first.
type Client struct {
	conn   *connWrapper
	send   chan *WSMessage
	ID     string `json:"id"`
	RoomID string `json:"roomId"`
	Login  string `json:"login"`
}

func NewClient(conn *websocket.Conn, roomID, login string) *Client {
	return &Client{
		conn:   newConnWrapper(conn),
		send:   make(chan *WSMessage, sendBuffer),
		ID:     uuid.NewString(),
		RoomID: roomID,
		Login:  login,
	}
}

// ReadPump drains inbound frames so control messages are processed, and
// unregisters the client once the peer goes away.
func (c *Client) ReadPump(core *Core) {
	defer func() {
		core.unregisterClient(c)
		_ = c.conn.Close()
	}()

	c.conn.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.conn.SetPongHandler(func(string) error {
		return c.conn.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				core.logger.Warn(logging.Broadcast, logging.Lifecycle, "websocket read failed", map[logging.ExtraKey]any{
					logging.RoomID:       c.RoomID,
					logging.Owner:        c.Login,
					logging.ErrorMessage: err.Error(),
				})
			}
			return
		}
	}
}

// WritePump forwards queued events to the peer and keeps the connection
// alive with pings. It returns when the send channel is closed.
func (c *Client) WritePump(core *Core) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			if !ok {
				_ = c.conn.WriteControl(websocket.CloseMessage)
				return
			}
			if err := c.conn.WriteJSON(msg); err != nil {
				core.logger.Warn(logging.Broadcast, logging.Publish, "websocket write failed", map[logging.ExtraKey]any{
					logging.RoomID:       c.RoomID,
					logging.Owner:        c.Login,
					logging.ErrorMessage: err.Error(),
				})
				return
			}
		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage); err != nil {
				return
			}
		}
	}
}
