package httpsrv

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/termhub/chat-relay-service/config"
	"github.com/termhub/chat-relay-service/infra/metrics"
	"github.com/termhub/chat-relay-service/internal/domain/event"
	"github.com/termhub/chat-relay-service/internal/domain/model"
	"github.com/termhub/chat-relay-service/internal/domain/registry"
	"github.com/termhub/chat-relay-service/internal/service"
	"github.com/termhub/chat-relay-service/internal/store"
)

type nopPublisher struct{}

func (nopPublisher) Publish(context.Context, event.Eventer) error { return nil }

type handlerFixture struct {
	handler *ChatHandler
	hub     *registry.Hub
	history *service.History
	cfg     *config.Config
}

func newHandlerFixture(t *testing.T) *handlerFixture {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	cfg := &config.Config{
		MailboxSize:          16,
		QuickReconnectWindow: 10 * time.Second,
		OnlineStaleness:      60 * time.Second,
		DisconnectDebounce:   5 * time.Second,
		OfflineTimeout:       3 * time.Second,
		PresenceMaxEntries:   100,
		PresenceEvictCount:   20,
		HistoryLimit:         50,
	}
	kv := store.NewMemory()
	m := metrics.New(prometheus.NewRegistry())

	hub := registry.NewHub(registry.WithHeartbeatInterval(0))
	presence := service.NewPresenceService(kv, cfg, logger)
	fanout := service.NewFanoutService(hub, nopPublisher{}, presence, cfg, m, logger)
	history := service.NewHistory(kv, cfg, logger)
	actions := service.NewActionService(presence, fanout, history, hub, cfg, logger)

	return &handlerFixture{
		handler: NewChatHandler(hub, fanout, history, actions, m, logger),
		hub:     hub,
		history: history,
		cfg:     cfg,
	}
}

func TestStreamRequiresClientID(t *testing.T) {
	fx := newHandlerFixture(t)

	rec := httptest.NewRecorder()
	fx.handler.Stream(rec, httptest.NewRequest(http.MethodGet, "/stream", nil))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestStreamReplaysHistoryThenCloses(t *testing.T) {
	fx := newHandlerFixture(t)
	fx.history.Append(context.Background(), event.NewChatEvent("alice", model.RoleUser, "earlier message"))

	// Pre-cancelled context: the handler writes the greeting and the replay,
	// then the live loop exits immediately.
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	req := httptest.NewRequest(http.MethodGet, "/stream?clientId=c1", nil).WithContext(ctx)
	rec := httptest.NewRecorder()

	fx.handler.Stream(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))

	body := rec.Body.String()
	connected := strings.Index(body, "connected to chat")
	replayed := strings.Index(body, "earlier message")
	require.GreaterOrEqual(t, connected, 0)
	require.GreaterOrEqual(t, replayed, 0)
	assert.Less(t, connected, replayed, "greeting must precede the replay")
}

func TestStreamDrainsPendingEventsOnKick(t *testing.T) {
	fx := newHandlerFixture(t)

	req := httptest.NewRequest(http.MethodGet, "/stream?clientId=c1", nil)
	rec := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		defer close(done)
		fx.handler.Stream(rec, req)
	}()

	require.Eventually(t, func() bool {
		_, ok := fx.hub.Lookup("c1")
		return ok
	}, time.Second, 5*time.Millisecond)

	sess, _ := fx.hub.Lookup("c1")
	sess.Push(event.NewSystemEvent("you have been banned from this chat"))
	fx.hub.Remove("c1")

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("stream did not close after the kick")
	}
	assert.Contains(t, rec.Body.String(), "you have been banned from this chat")
}

func TestActionRejectsMalformedBody(t *testing.T) {
	fx := newHandlerFixture(t)

	req := httptest.NewRequest(http.MethodPost, "/action", strings.NewReader("{not json"))
	rec := httptest.NewRecorder()
	fx.handler.Action(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.NotEmpty(t, body["error"])
}

func TestActionRejectsUnknownType(t *testing.T) {
	fx := newHandlerFixture(t)

	req := httptest.NewRequest(http.MethodPost, "/action",
		strings.NewReader(`{"clientId":"c1","type":"dance"}`))
	rec := httptest.NewRecorder()
	fx.handler.Action(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "unknown action type")
}

func TestActionDispatchesJoin(t *testing.T) {
	fx := newHandlerFixture(t)
	fx.hub.Register("c1")

	req := httptest.NewRequest(http.MethodPost, "/action",
		strings.NewReader(`{"clientId":"c1","type":"join","username":"alice"}`))
	rec := httptest.NewRecorder()
	fx.handler.Action(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var body map[string]bool
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.True(t, body["success"])

	sess, ok := fx.hub.Lookup("c1")
	require.True(t, ok)
	assert.Equal(t, "alice", sess.Name())
}

func TestHealth(t *testing.T) {
	fx := newHandlerFixture(t)

	rec := httptest.NewRecorder()
	fx.handler.Health(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}
