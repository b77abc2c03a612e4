package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/termhub/chat-relay-service/config"
	"github.com/termhub/chat-relay-service/internal/domain/event"
	"github.com/termhub/chat-relay-service/internal/domain/model"
	"github.com/termhub/chat-relay-service/internal/domain/registry"
	"github.com/termhub/chat-relay-service/internal/store"
)

func newFanout(t *testing.T, kv store.KV, pub EventPublisher, cfg *config.Config) (*FanoutService, *registry.Hub) {
	t.Helper()
	hub := registry.NewHub(registry.WithHeartbeatInterval(0))
	presence := NewPresenceService(kv, cfg, testLogger())
	return NewFanoutService(hub, pub, presence, cfg, testMetrics(), testLogger()), hub
}

func recvEvent(t *testing.T, s *registry.Session) event.Eventer {
	t.Helper()
	select {
	case ev := <-s.Recv():
		return ev
	case <-time.After(time.Second):
		t.Fatal("no event delivered")
		return nil
	}
}

func TestLocalDeliversToEverySession(t *testing.T) {
	f, hub := newFanout(t, store.NewMemory(), nopPublisher{}, testConfig())

	a := hub.Register("c1")
	b := hub.Register("c2")

	ev := event.NewSystemEvent("hello")
	f.Local(ev)

	assert.Equal(t, ev.GetID(), recvEvent(t, a).GetID())
	assert.Equal(t, ev.GetID(), recvEvent(t, b).GetID())
}

func TestLocalSurvivesClosedSink(t *testing.T) {
	f, hub := newFanout(t, store.NewMemory(), nopPublisher{}, testConfig())

	a := hub.Register("c1")
	dead := hub.Register("c2")
	b := hub.Register("c3")
	dead.Close()

	f.Local(event.NewSystemEvent("still delivered"))

	// The closed sink drops the push; the other two still get it.
	assert.NotNil(t, recvEvent(t, a))
	assert.NotNil(t, recvEvent(t, b))
}

func TestGlobalPublishesOnlyExportableEvents(t *testing.T) {
	pub := &capturePublisher{}
	f, _ := newFanout(t, store.NewMemory(), pub, testConfig())
	ctx := context.Background()

	f.Global(ctx, event.NewSystemEvent("everywhere"))
	f.Global(ctx, event.NewErrorEvent("this instance only"))

	published := pub.published()
	require.Len(t, published, 1)
	assert.Equal(t, event.KindSystem, published[0].GetKind())
}

func TestRemoteDropsEchoOfOwnBroadcast(t *testing.T) {
	f, hub := newFanout(t, store.NewMemory(), nopPublisher{}, testConfig())
	s := hub.Register("c1")

	ev := event.NewChatEvent("alice", model.RoleUser, "hi")
	f.Global(context.Background(), ev)
	require.Equal(t, ev.GetID(), recvEvent(t, s).GetID())

	// The bus echoes the event back; it must not be delivered twice.
	f.Remote(ev)
	assert.Empty(t, s.Recv())

	// A genuinely remote event goes through.
	other := event.NewChatEvent("bob", model.RoleUser, "from elsewhere")
	f.Remote(other)
	assert.Equal(t, other.GetID(), recvEvent(t, s).GetID())
}

func TestPrivateIsNoOpForUnknownSession(t *testing.T) {
	f, hub := newFanout(t, store.NewMemory(), nopPublisher{}, testConfig())
	s := hub.Register("c1")

	f.Private("elsewhere", event.NewErrorEvent("lost"))
	assert.Empty(t, s.Recv())

	f.Private("c1", event.NewErrorEvent("found"))
	assert.Equal(t, event.KindError, recvEvent(t, s).GetKind())
}

func TestUserListFiltersOfflineStaleAndBanned(t *testing.T) {
	kv := store.NewMemory()
	now := time.Now()
	seedPresence(t, kv, model.PresenceSet{
		"alice": {Status: model.StatusOnline, LastSeen: now},
		"bob":   {Status: model.StatusOnline, LastSeen: now.Add(-2 * time.Minute)}, // stale
		"carol": {Status: model.StatusOffline, LastSeen: now},
		"dave":  {Status: model.StatusOnline, LastSeen: now},
		"erin":  {Status: model.StatusOnline, LastSeen: now},
	})
	seedPermissions(t, kv, model.PermissionSet{
		"alice": {Role: model.RoleAdmin, UpdatedAt: now},
		"dave":  {Role: model.RoleBanned, UpdatedAt: now},
	})

	f, hub := newFanout(t, kv, nopPublisher{}, testConfig())
	s := hub.Register("c1")

	f.UserList(context.Background())

	ev := recvEvent(t, s)
	list, ok := ev.(*event.UserListEvent)
	require.True(t, ok)
	require.Len(t, list.Users, 2)
	assert.Equal(t, model.UserView{Username: "alice", Role: model.RoleAdmin}, list.Users[0])
	assert.Equal(t, model.UserView{Username: "erin", Role: model.RoleUser}, list.Users[1])
}

func TestConfirmOfflineFlipsStaleEntry(t *testing.T) {
	kv := store.NewMemory()
	seedPresence(t, kv, model.PresenceSet{
		"alice": {Status: model.StatusOnline, LastSeen: time.Now().Add(-5 * time.Second)},
	})

	f, hub := newFanout(t, kv, nopPublisher{}, testConfig())
	s := hub.Register("c1")

	f.confirmOffline("alice")

	presence := f.presence.Presence(context.Background())
	assert.Equal(t, model.StatusOffline, presence["alice"].Status)

	notice, ok := recvEvent(t, s).(*event.SystemEvent)
	require.True(t, ok)
	assert.Equal(t, "alice left the chat", notice.Content)
}

func TestConfirmOfflineSkipsRecentlyActiveUser(t *testing.T) {
	kv := store.NewMemory()
	seedPresence(t, kv, model.PresenceSet{
		"alice": {Status: model.StatusOnline, LastSeen: time.Now()},
	})

	f, hub := newFanout(t, kv, nopPublisher{}, testConfig())
	s := hub.Register("c1")

	// Reconnected inside the offline window: no flip, no leave notice.
	f.confirmOffline("alice")

	presence := f.presence.Presence(context.Background())
	assert.Equal(t, model.StatusOnline, presence["alice"].Status)
	assert.Empty(t, s.Recv())
}

func TestHandleDisconnectReleasesOnlyOwnSession(t *testing.T) {
	f, hub := newFanout(t, store.NewMemory(), nopPublisher{}, testConfig())

	old := hub.Register("c1")
	replacement := hub.Register("c1")

	// The old handler finishing up must not evict the replacement.
	f.HandleDisconnect(old)

	got, ok := hub.Lookup("c1")
	require.True(t, ok)
	assert.Same(t, replacement, got)
}
