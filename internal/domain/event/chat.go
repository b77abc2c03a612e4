package event

import (
	"time"

	"github.com/google/uuid"
	"github.com/termhub/chat-relay-service/internal/domain/model"
)

var (
	_ Eventer    = (*ChatEvent)(nil)
	_ Exportable = (*ChatEvent)(nil)
)

// ChatEvent wraps one ChatMessage for fan-out and history replay.
type ChatEvent struct {
	model.ChatMessage
	Type Kind  `json:"type"`
	At   int64 `json:"-"`
}

// NewChatEvent stamps the message server-side: id, role snapshot, timestamp.
func NewChatEvent(username string, role model.Role, content string) *ChatEvent {
	now := time.Now()
	return &ChatEvent{
		ChatMessage: model.ChatMessage{
			ID:        uuid.NewString(),
			Username:  username,
			Role:      role,
			Content:   content,
			Timestamp: now.UTC().Format(time.RFC3339),
		},
		Type: KindChat,
		At:   now.UnixMilli(),
	}
}

func (e *ChatEvent) GetID() string         { return e.ChatMessage.ID }
func (e *ChatEvent) GetKind() Kind         { return KindChat }
func (e *ChatEvent) GetOccurredAt() int64  { return e.At }
func (e *ChatEvent) GetRoutingKey() string { return Topic }
