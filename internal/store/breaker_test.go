package store

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type flakyKV struct {
	fail bool
	next KV
}

func (f *flakyKV) Get(ctx context.Context, key string) ([]byte, error) {
	if f.fail {
		return nil, errors.New("backend down")
	}
	return f.next.Get(ctx, key)
}

func (f *flakyKV) Set(ctx context.Context, key string, value []byte) error {
	if f.fail {
		return errors.New("backend down")
	}
	return f.next.Set(ctx, key, value)
}

func (f *flakyKV) Close() error { return f.next.Close() }

func newTestBreaker(next KV) *Breaker {
	return NewBreaker(next, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestBreakerPassesThroughHealthyBackend(t *testing.T) {
	b := newTestBreaker(NewMemory())
	ctx := context.Background()

	require.NoError(t, b.Set(ctx, KeyHistory, []byte("[]")))
	got, err := b.Get(ctx, KeyHistory)
	require.NoError(t, err)
	assert.Equal(t, []byte("[]"), got)
}

func TestBreakerTripsAfterConsecutiveFailures(t *testing.T) {
	backend := &flakyKV{fail: true, next: NewMemory()}
	b := newTestBreaker(backend)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := b.Get(ctx, KeyPresence)
		require.Error(t, err)
		require.NotErrorIs(t, err, gobreaker.ErrOpenState)
	}

	// Sixth round trip is short-circuited without touching the backend.
	backend.fail = false
	_, err := b.Get(ctx, KeyPresence)
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
}

func TestBreakerTreatsNotFoundAsSuccess(t *testing.T) {
	b := newTestBreaker(NewMemory())
	ctx := context.Background()

	// Far more misses than the trip threshold; none of them count.
	for i := 0; i < 20; i++ {
		_, err := b.Get(ctx, "no-such-key")
		require.ErrorIs(t, err, ErrNotFound)
	}

	require.NoError(t, b.Set(ctx, KeyPresence, []byte("{}")))
	got, err := b.Get(ctx, KeyPresence)
	require.NoError(t, err)
	assert.Equal(t, []byte("{}"), got)
}
