package ws

import (
	"time"

	"github.com/hilthontt/repochat/internal/domain"
)

type WSMessage struct {
	Type   string `json:"type"`
	RoomID string `json:"roomId"`
	Data   any    `json:"data"`
}

type MessagePayload struct {
	ID          string `json:"id"`
	Content     string `json:"content"`
	Kind        string `json:"kind"`
	Login       string `json:"login"`
	DisplayName string `json:"displayName,omitempty"`
	Avatar      string `json:"avatar,omitempty"`
	Timestamp   string `json:"timestamp"`
}

type ErrorPayload struct {
	Code    string `json:"code,omitempty"`
	Message string `json:"message"`
}

func NewMessageReceived(roomID string, msg domain.Message) *WSMessage {
	return &WSMessage{
		Type:   MessageReceived,
		RoomID: roomID,
		Data: MessagePayload{
			ID:          msg.ID,
			Content:     msg.Content,
			Kind:        string(msg.Type),
			Login:       msg.Author.Login,
			DisplayName: msg.Author.DisplayName,
			Avatar:      msg.Author.Avatar,
			Timestamp:   msg.CreatedAt.Format(time.RFC3339),
		},
	}
}

func NewError(roomID, code, message string) *WSMessage {
	return &WSMessage{
		Type:   ErrorEvent,
		RoomID: roomID,
		Data: ErrorPayload{
			Code:    code,
			Message: message,
		},
	}
}
