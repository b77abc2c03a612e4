package registry

import (
	"sync"
	"time"

	"github.com/termhub/chat-relay-service/internal/domain/event"
	"github.com/termhub/chat-relay-service/internal/domain/model"
)

// Session is the process-local record of one live streaming connection.
// It is exclusively owned by the instance that accepted the connection and is
// never shared or serialized.
type Session struct {
	id string

	// [MAILBOX]
	// Buffered channel that decouples fan-out from the transport write loop.
	// A full mailbox drops the push instead of blocking the broadcaster.
	mailbox chan event.Eventer

	// [LIFECYCLE_CONTROL]
	// Closed exactly once on teardown; stops the heartbeat goroutine and
	// unblocks the transport pump.
	done      chan struct{}
	closeOnce sync.Once

	mu   sync.RWMutex
	name string
}

func newSession(id string, mailboxSize int, heartbeat time.Duration) *Session {
	s := &Session{
		id:      id,
		mailbox: make(chan event.Eventer, mailboxSize),
		done:    make(chan struct{}),
		name:    model.DefaultName,
	}
	if heartbeat > 0 {
		go s.beat(heartbeat)
	}
	return s
}

// beat pushes keepalive frames into the mailbox on a fixed interval. Owning
// the ticker here means a closed session stops heartbeating immediately.
func (s *Session) beat(interval time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-s.done:
			return
		case <-t.C:
			s.Push(event.Keepalive())
		}
	}
}

func (s *Session) ID() string { return s.id }

func (s *Session) Name() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.name
}

// SetName binds the display name chosen by a join action. Multiple sessions
// may share the same name (multi-tab use).
func (s *Session) SetName(name string) {
	s.mu.Lock()
	s.name = name
	s.mu.Unlock()
}

// Push enqueues an event for delivery. It never blocks: a closed session or a
// saturated mailbox reports false and the event is dropped for this sink only.
func (s *Session) Push(ev event.Eventer) bool {
	select {
	case <-s.done:
		return false
	default:
	}
	select {
	case s.mailbox <- ev:
		return true
	default:
		return false
	}
}

// Recv exposes the mailbox to the transport pump loop.
func (s *Session) Recv() <-chan event.Eventer { return s.mailbox }

// Done is closed when the session is torn down, locally or by a kick.
func (s *Session) Done() <-chan struct{} { return s.done }

// Close is idempotent against the hub, the transport handler and admin kicks
// all racing to tear the session down.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		close(s.done)
	})
}
