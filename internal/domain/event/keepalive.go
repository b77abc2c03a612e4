package event

import "time"

var _ Eventer = (*KeepaliveEvent)(nil)

// KeepaliveEvent is synthesized by each session's heartbeat ticker. It only
// exists to keep idle transports from timing out and is never serialized as a
// regular frame (SSE writes it as a comment line).
type KeepaliveEvent struct{}

func Keepalive() *KeepaliveEvent { return &KeepaliveEvent{} }

func (e *KeepaliveEvent) GetID() string        { return "" }
func (e *KeepaliveEvent) GetKind() Kind        { return KindKeepalive }
func (e *KeepaliveEvent) GetOccurredAt() int64 { return time.Now().UnixMilli() }
