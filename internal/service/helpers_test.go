package service

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/termhub/chat-relay-service/config"
	"github.com/termhub/chat-relay-service/infra/metrics"
	"github.com/termhub/chat-relay-service/internal/domain/event"
	"github.com/termhub/chat-relay-service/internal/domain/model"
	"github.com/termhub/chat-relay-service/internal/store"

	"github.com/prometheus/client_golang/prometheus"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testConfig() *config.Config {
	return &config.Config{
		ListenAddr:           ":0",
		MailboxSize:          16,
		QuickReconnectWindow: 10 * time.Second,
		OnlineStaleness:      60 * time.Second,
		DisconnectDebounce:   5 * time.Second,
		OfflineTimeout:       3 * time.Second,
		PresenceMaxEntries:   100,
		PresenceEvictCount:   20,
		HistoryLimit:         50,
	}
}

func testMetrics() *metrics.Set {
	return metrics.New(prometheus.NewRegistry())
}

// nopPublisher satisfies EventPublisher for tests that do not care about the
// bus half of the fan-out.
type nopPublisher struct{}

func (nopPublisher) Publish(context.Context, event.Eventer) error { return nil }

// capturePublisher records what Global hands to the bus.
type capturePublisher struct {
	mu     sync.Mutex
	events []event.Eventer
}

func (p *capturePublisher) Publish(_ context.Context, ev event.Eventer) error {
	p.mu.Lock()
	p.events = append(p.events, ev)
	p.mu.Unlock()
	return nil
}

func (p *capturePublisher) published() []event.Eventer {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]event.Eventer(nil), p.events...)
}

// captureFanout records broadcast intent without any transport, for
// dispatcher tests that assert on which events an action produced.
type captureFanout struct {
	mu        sync.Mutex
	global    []event.Eventer
	private   []event.Eventer
	userLists int
}

func (f *captureFanout) Global(_ context.Context, ev event.Eventer) {
	f.mu.Lock()
	f.global = append(f.global, ev)
	f.mu.Unlock()
}

func (f *captureFanout) Private(_ string, ev event.Eventer) {
	f.mu.Lock()
	f.private = append(f.private, ev)
	f.mu.Unlock()
}

func (f *captureFanout) UserList(context.Context) {
	f.mu.Lock()
	f.userLists++
	f.mu.Unlock()
}

func seedPresence(t *testing.T, kv store.KV, set model.PresenceSet) {
	t.Helper()
	raw, err := json.Marshal(set)
	require.NoError(t, err)
	require.NoError(t, kv.Set(context.Background(), store.KeyPresence, raw))
}

func seedPermissions(t *testing.T, kv store.KV, set model.PermissionSet) {
	t.Helper()
	raw, err := json.Marshal(set)
	require.NoError(t, err)
	require.NoError(t, kv.Set(context.Background(), store.KeyPermissions, raw))
}

// failingKV simulates a backend outage: every round trip errors.
type failingKV struct{}

func (failingKV) Get(context.Context, string) ([]byte, error) {
	return nil, errBackendDown
}

func (failingKV) Set(context.Context, string, []byte) error {
	return errBackendDown
}

func (failingKV) Close() error { return nil }

var errBackendDown = &backendError{}

type backendError struct{}

func (*backendError) Error() string { return "backend down" }
