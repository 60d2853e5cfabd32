package ws

import (
	"errors"
	"sync"
)

var ErrRoomNotFound = errors.New("no subscribers for room")

type WSRoom struct {
	ID      string
	Clients map[string]*Client
}

// RoomManager tracks live subscribers per room id.
type RoomManager struct {
	rooms map[string]*WSRoom
	mu    sync.RWMutex
}

func NewRoomManager() *RoomManager {
	return &RoomManager{
		rooms: make(map[string]*WSRoom),
	}
}

func (rm *RoomManager) AddClient(cl *Client) {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	room, ok := rm.rooms[cl.RoomID]
	if !ok {
		room = &WSRoom{
			ID:      cl.RoomID,
			Clients: make(map[string]*Client),
		}
		rm.rooms[cl.RoomID] = room
	}

	if _, exists := room.Clients[cl.ID]; !exists {
		room.Clients[cl.ID] = cl
	}
}

// RemoveClient drops cl and closes its send channel. Removing a client that
// is no longer tracked is a no-op.
func (rm *RoomManager) RemoveClient(cl *Client) {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	room, ok := rm.rooms[cl.RoomID]
	if !ok {
		return
	}
	if _, ok := room.Clients[cl.ID]; !ok {
		return
	}

	delete(room.Clients, cl.ID)
	close(cl.send)

	if len(room.Clients) == 0 {
		delete(rm.rooms, cl.RoomID)
	}
}

func (rm *RoomManager) Count(roomID string) int {
	rm.mu.RLock()
	defer rm.mu.RUnlock()

	if room, ok := rm.rooms[roomID]; ok {
		return len(room.Clients)
	}
	return 0
}

// BroadcastToRoom queues msg for every subscriber of its room and returns the
// ids of clients whose buffer was full.
func (rm *RoomManager) BroadcastToRoom(msg *WSMessage) ([]string, error) {
	rm.mu.RLock()
	defer rm.mu.RUnlock()

	room, ok := rm.rooms[msg.RoomID]
	if !ok {
		return nil, ErrRoomNotFound
	}

	var dropped []string
	for _, cl := range room.Clients {
		select {
		case cl.send <- msg:
		default:
			dropped = append(dropped, cl.ID)
		}
	}
	return dropped, nil
}

func (rm *RoomManager) CloseAll() {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	for id, room := range rm.rooms {
		for _, cl := range room.Clients {
			close(cl.send)
		}
		delete(rm.rooms, id)
	}
}
