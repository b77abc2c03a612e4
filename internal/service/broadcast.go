package service

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/termhub/chat-relay-service/config"
	"github.com/termhub/chat-relay-service/infra/metrics"
	"github.com/termhub/chat-relay-service/internal/domain/event"
	"github.com/termhub/chat-relay-service/internal/domain/model"
	"github.com/termhub/chat-relay-service/internal/domain/registry"
)

// EventPublisher is the cross-instance half of the fan-out, satisfied by the
// pub/sub adapter.
type EventPublisher interface {
	Publish(ctx context.Context, ev event.Eventer) error
}

// Broadcaster is the dispatcher's view of the fan-out.
type Broadcaster interface {
	Global(ctx context.Context, ev event.Eventer)
	Private(clientID string, ev event.Eventer)
	UserList(ctx context.Context)
}

var _ Broadcaster = (*FanoutService)(nil)

// FanoutService delivers events to every locally held session and republishes
// them on the bus so sessions on other instances receive them too.
type FanoutService struct {
	hub       registry.Hubber
	publisher EventPublisher
	presence  Presencer
	cfg       *config.Config
	metrics   *metrics.Set
	logger    *slog.Logger

	// [ECHO_FILTER]
	// The bus delivers every published event back to the publisher, but local
	// delivery already happened at publish time (the bus does not guarantee
	// the echo). Recently delivered ids are remembered so the echo is dropped.
	seen *expirable.LRU[string, struct{}]
}

func NewFanoutService(
	hub registry.Hubber,
	publisher EventPublisher,
	presence Presencer,
	cfg *config.Config,
	m *metrics.Set,
	logger *slog.Logger,
) *FanoutService {
	return &FanoutService{
		hub:       hub,
		publisher: publisher,
		presence:  presence,
		cfg:       cfg,
		metrics:   m,
		logger:    logger,
		seen:      expirable.NewLRU[string, struct{}](4096, nil, 5*time.Minute),
	}
}

// Global fans an event out everywhere: local sessions first (the bus may or
// may not echo back to this process), then the cross-instance channel.
func (f *FanoutService) Global(ctx context.Context, ev event.Eventer) {
	f.Local(ev)

	exp, ok := ev.(event.Exportable)
	if !ok || exp.GetRoutingKey() == "" {
		return
	}
	if err := f.publisher.Publish(ctx, ev); err != nil {
		// Best-effort channel: local sessions already got the event.
		f.logger.Warn("bus_publish_failed", "kind", ev.GetKind(), "error", err)
		return
	}
	f.metrics.BusEventsTotal.WithLabelValues("out").Inc()
}

// Local writes the event to every session this process holds. A failed push
// on one sink must not prevent delivery to the others.
func (f *FanoutService) Local(ev event.Eventer) {
	f.seen.Add(ev.GetID(), struct{}{})
	for _, s := range f.hub.Snapshot() {
		if !s.Push(ev) {
			f.metrics.DroppedPushes.Inc()
			f.logger.Warn("session_push_dropped", "client_id", s.ID(), "kind", ev.GetKind())
		}
	}
	f.metrics.BroadcastsTotal.Inc()
}

// Remote delivers an event that arrived over the bus, dropping echoes of
// events this process already fanned out itself.
func (f *FanoutService) Remote(ev event.Eventer) {
	if _, dup := f.seen.Get(ev.GetID()); dup {
		return
	}
	f.metrics.BusEventsTotal.WithLabelValues("in").Inc()
	f.Local(ev)
}

// Private replies to a single session. When the acting process does not hold
// that session (the write landed on another instance) this is a silent no-op;
// the split-brain model accepts that private acks are best effort.
func (f *FanoutService) Private(clientID string, ev event.Eventer) {
	s, ok := f.hub.Lookup(clientID)
	if !ok {
		return
	}
	if !s.Push(ev) {
		f.metrics.DroppedPushes.Inc()
	}
}

// UserList recomputes the online view from the persisted registry and
// broadcasts it. Always registry-derived, never local session state, so all
// instances converge on the same list.
func (f *FanoutService) UserList(ctx context.Context) {
	presence := f.presence.Presence(ctx)
	perms := f.presence.Permissions(ctx)

	users := make([]model.UserView, 0, len(presence))
	for name, entry := range presence {
		if entry.Status != model.StatusOnline {
			continue
		}
		if IsStale(entry, f.cfg.OnlineStaleness) {
			continue
		}
		role := f.presence.EffectiveRole(name, presence, perms)
		if role == model.RoleBanned {
			continue
		}
		users = append(users, model.UserView{Username: name, Role: role})
	}
	sort.Slice(users, func(i, j int) bool { return users[i].Username < users[j].Username })

	f.Global(ctx, event.NewUserListEvent(users))
}

// HandleDisconnect removes the local session immediately but defers the
// presence flip: a delayed re-check only marks the user offline if they have
// not reappeared, which keeps page refreshes from spamming leave notices.
func (f *FanoutService) HandleDisconnect(sess *registry.Session) {
	name := sess.Name()
	f.hub.Release(sess)

	if name == "" || name == model.DefaultName {
		return
	}
	time.AfterFunc(f.cfg.DisconnectDebounce, func() {
		f.confirmOffline(name)
	})
}

func (f *FanoutService) confirmOffline(name string) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	presence := f.presence.Presence(ctx)
	entry, ok := presence[name]
	if !ok || entry.Status != model.StatusOnline {
		return
	}
	if !IsStale(entry, f.cfg.OfflineTimeout) {
		// Touched again since the disconnect: a reconnect, not a leave.
		return
	}

	f.presence.TouchPresence(ctx, name, model.PresencePatch{Status: model.StatusOffline})
	f.Global(ctx, event.NewSystemEvent(name+" left the chat"))
	f.UserList(ctx)
}
