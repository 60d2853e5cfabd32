package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hilthontt/repochat/internal/infrastructure/validate"
)

const maxMessageLength = 4000

type MessageType string

const (
	MessageTypeMessage     MessageType = "message"
	MessageTypeSystem      MessageType = "system"
	MessageTypeJoinRequest MessageType = "join_request"
)

type Author struct {
	Login       string `json:"login"`
	DisplayName string `json:"display_name,omitempty"`
	Avatar      string `json:"avatar,omitempty"`
	ID          string `json:"id,omitempty"`
}

type Message struct {
	ID        string      `json:"id"`
	Content   string      `json:"content"`
	Author    Author      `json:"author"`
	CreatedAt time.Time   `json:"created_at"`
	Type      MessageType `json:"type"`
}

var validateContent = validate.Field("content",
	validate.Required(),
	validate.MaxLength(maxMessageLength),
	validate.ValidUTF8(),
)

func NewMessage(author Identity, content string, kind MessageType) (*Message, error) {
	content = strings.TrimSpace(content)
	if err := validateContent(content); err != nil {
		return nil, invalid(err)
	}
	if kind == "" {
		kind = MessageTypeMessage
	}

	return &Message{
		ID:      uuid.NewString(),
		Content: content,
		Author: Author{
			Login:       author.Login,
			DisplayName: author.DisplayName,
			Avatar:      author.Avatar,
			ID:          author.ID,
		},
		CreatedAt: time.Now().UTC(),
		Type:      kind,
	}, nil
}

// NewSystemMessage builds a notice authored by the reserved system identity.
func NewSystemMessage(content string, kind MessageType) *Message {
	return &Message{
		ID:        uuid.NewString(),
		Content:   content,
		Author:    Author{Login: SystemLogin, DisplayName: "System"},
		CreatedAt: time.Now().UTC(),
		Type:      kind,
	}
}

// SystemLogin authors system notices.
const SystemLogin = "system"

// MessageLog is the ordered message document of a room.
type MessageLog []Message

// Append pushes msg and evicts the oldest entries beyond capacity. A zero
// capacity keeps everything.
func (l MessageLog) Append(msg Message, capacity int) MessageLog {
	l = append(l, msg)
	if capacity > 0 && len(l) > capacity {
		excess := len(l) - capacity
		l = l[excess:]
	}
	return l
}

func (l MessageLog) Contains(id string) bool {
	for _, m := range l {
		if m.ID == id {
			return true
		}
	}
	return false
}
