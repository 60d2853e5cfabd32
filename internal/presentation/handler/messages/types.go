package messages

import "github.com/hilthontt/repochat/internal/domain"

type createMessageRequest struct {
	Content string `json:"content"`
}

type messagesResponse struct {
	RoomID   string           `json:"roomId,omitempty"`
	Messages []domain.Message `json:"messages"`
}
