package ws

import (
	"context"
	"errors"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/hilthontt/repochat/internal/domain"
	"github.com/hilthontt/repochat/internal/infrastructure/logging"
)

var ErrCoreStopped = errors.New("broadcast core stopped")

// Core owns the live subscriptions and fans persisted messages out to them.
// It satisfies the chat service's Broadcaster.
type Core struct {
	roomMgr    *RoomManager
	register   chan *Client
	unregister chan *Client
	broadcast  chan *WSMessage
	upgrader   websocket.Upgrader
	logger     logging.Logger

	done     chan struct{}
	stopOnce sync.Once
}

func NewCore(allowedOrigins []string, logger logging.Logger) *Core {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Core{
		roomMgr:    NewRoomManager(),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan *WSMessage, 256),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(allowedOrigins),
		},
		logger: logger,
		done:   make(chan struct{}),
	}
}

// Run processes registrations and broadcasts until ctx is cancelled, then
// closes every subscription.
func (c *Core) Run(ctx context.Context) {
	defer c.stopOnce.Do(func() {
		close(c.done)
		c.roomMgr.CloseAll()
	})

	for {
		select {
		case <-ctx.Done():
			return

		case cl := <-c.register:
			c.roomMgr.AddClient(cl)
			c.logger.Debug(logging.Broadcast, logging.Lifecycle, "subscriber registered", map[logging.ExtraKey]any{
				logging.RoomID: cl.RoomID,
				logging.Owner:  cl.Login,
			})

		case cl := <-c.unregister:
			c.roomMgr.RemoveClient(cl)

		case msg := <-c.broadcast:
			dropped, err := c.roomMgr.BroadcastToRoom(msg)
			if errors.Is(err, ErrRoomNotFound) {
				continue
			}
			for _, id := range dropped {
				c.logger.Warn(logging.Broadcast, logging.Publish, "subscriber buffer full, dropping message", map[logging.ExtraKey]any{
					logging.RoomID:    msg.RoomID,
					logging.RequestID: id,
				})
			}
		}
	}
}

// Publish queues msg for the live subscribers of roomID.
func (c *Core) Publish(ctx context.Context, roomID string, msg domain.Message) error {
	select {
	case c.broadcast <- NewMessageReceived(roomID, msg):
		return nil
	case <-c.done:
		return ErrCoreStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Core) Upgrade(w http.ResponseWriter, r *http.Request) (*websocket.Conn, error) {
	return c.upgrader.Upgrade(w, r, nil)
}

// Serve registers conn as a subscriber of roomID and starts its pumps.
func (c *Core) Serve(conn *websocket.Conn, roomID, login string) error {
	client := NewClient(conn, roomID, login)

	select {
	case c.register <- client:
	case <-c.done:
		_ = client.conn.WriteJSON(NewError(roomID, "unavailable", "live updates are shutting down"))
		_ = client.conn.Close()
		return ErrCoreStopped
	}

	go client.WritePump(c)
	go client.ReadPump(c)
	return nil
}

// Subscribers reports the number of live subscriptions to roomID.
func (c *Core) Subscribers(roomID string) int {
	return c.roomMgr.Count(roomID)
}

func (c *Core) unregisterClient(cl *Client) {
	select {
	case c.unregister <- cl:
	case <-c.done:
	}
}

func originChecker(allowed []string) func(r *http.Request) bool {
	set := make(map[string]struct{}, len(allowed))
	for _, o := range allowed {
		if o == "*" {
			return func(*http.Request) bool { return true }
		}
		set[o] = struct{}{}
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		_, ok := set[origin]
		return ok
	}
}
