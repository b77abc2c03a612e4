package event

import (
	"time"

	"github.com/google/uuid"
)

var (
	_ Eventer    = (*SystemEvent)(nil)
	_ Exportable = (*SystemEvent)(nil)
	_ Eventer    = (*ErrorEvent)(nil)
)

// SystemEvent is a server-authored notice: joins, leaves, promotions, bans.
type SystemEvent struct {
	ID        string `json:"id"`
	Type      Kind   `json:"type"`
	Content   string `json:"content"`
	Timestamp string `json:"timestamp"`
	At        int64  `json:"-"`
}

func NewSystemEvent(content string) *SystemEvent {
	now := time.Now()
	return &SystemEvent{
		ID:        uuid.NewString(),
		Type:      KindSystem,
		Content:   content,
		Timestamp: now.UTC().Format(time.RFC3339),
		At:        now.UnixMilli(),
	}
}

func (e *SystemEvent) GetID() string         { return e.ID }
func (e *SystemEvent) GetKind() Kind         { return KindSystem }
func (e *SystemEvent) GetOccurredAt() int64  { return e.At }
func (e *SystemEvent) GetRoutingKey() string { return Topic }

// ErrorEvent is a private rejection delivered to one session only. It never
// travels on the bus: if the acting session lives on another instance the
// reply is silently lost, an accepted consequence of the split-brain model.
type ErrorEvent struct {
	ID        string `json:"id"`
	Type      Kind   `json:"type"`
	Content   string `json:"content"`
	Timestamp string `json:"timestamp"`
	At        int64  `json:"-"`
}

func NewErrorEvent(content string) *ErrorEvent {
	now := time.Now()
	return &ErrorEvent{
		ID:        uuid.NewString(),
		Type:      KindError,
		Content:   content,
		Timestamp: now.UTC().Format(time.RFC3339),
		At:        now.UnixMilli(),
	}
}

func (e *ErrorEvent) GetID() string        { return e.ID }
func (e *ErrorEvent) GetKind() Kind        { return KindError }
func (e *ErrorEvent) GetOccurredAt() int64 { return e.At }
