package event

import (
	"time"

	"github.com/google/uuid"
	"github.com/termhub/chat-relay-service/internal/domain/model"
)

var (
	_ Eventer    = (*UserListEvent)(nil)
	_ Exportable = (*UserListEvent)(nil)
	_ Eventer    = (*SnapshotEvent)(nil)
)

// UserListEvent carries the recomputed "currently online" view. It is always
// derived from the persisted presence registry, never from local sessions, so
// every instance converges on the same list.
type UserListEvent struct {
	ID    string           `json:"id"`
	Type  Kind             `json:"type"`
	Users []model.UserView `json:"users"`
	At    int64            `json:"-"`
}

func NewUserListEvent(users []model.UserView) *UserListEvent {
	return &UserListEvent{
		ID:    uuid.NewString(),
		Type:  KindUserList,
		Users: users,
		At:    time.Now().UnixMilli(),
	}
}

func (e *UserListEvent) GetID() string         { return e.ID }
func (e *UserListEvent) GetKind() Kind         { return KindUserList }
func (e *UserListEvent) GetOccurredAt() int64  { return e.At }
func (e *UserListEvent) GetRoutingKey() string { return Topic }

// SnapshotEvent is the private reply to cmd_list_users: the raw presence
// registry, unfiltered. Requester-only, never broadcast.
type SnapshotEvent struct {
	ID    string            `json:"id"`
	Type  Kind              `json:"type"`
	Users model.PresenceSet `json:"users"`
	At    int64             `json:"-"`
}

func NewSnapshotEvent(users model.PresenceSet) *SnapshotEvent {
	return &SnapshotEvent{
		ID:    uuid.NewString(),
		Type:  KindSnapshot,
		Users: users,
		At:    time.Now().UnixMilli(),
	}
}

func (e *SnapshotEvent) GetID() string        { return e.ID }
func (e *SnapshotEvent) GetKind() Kind        { return KindSnapshot }
func (e *SnapshotEvent) GetOccurredAt() int64 { return e.At }
