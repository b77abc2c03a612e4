package store

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/sony/gobreaker"
)

var _ KV = (*Breaker)(nil)

// Breaker wraps a KV with a circuit breaker. Registry reads fail open to an
// empty mapping upstream, so once the backend is down the breaker turns every
// round trip into an instant failure instead of a stalled request.
type Breaker struct {
	next KV
	cb   *gobreaker.CircuitBreaker
}

func NewBreaker(next KV, logger *slog.Logger) *Breaker {
	return &Breaker{
		next: next,
		cb: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        "kv",
			MaxRequests: 1,
			Timeout:     10 * time.Second,
			ReadyToTrip: func(c gobreaker.Counts) bool {
				return c.ConsecutiveFailures >= 5
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				logger.Warn("kv_breaker_state", "from", from.String(), "to", to.String())
			},
		}),
	}
}

func (b *Breaker) Get(ctx context.Context, key string) ([]byte, error) {
	// Missing keys are a normal outcome, not a backend fault; they must not
	// count towards tripping the breaker.
	var notFound bool
	res, err := b.cb.Execute(func() (any, error) {
		v, err := b.next.Get(ctx, key)
		if errors.Is(err, ErrNotFound) {
			notFound = true
			return nil, nil
		}
		return v, err
	})
	if err != nil {
		return nil, err
	}
	if notFound {
		return nil, ErrNotFound
	}
	return res.([]byte), nil
}

func (b *Breaker) Set(ctx context.Context, key string, value []byte) error {
	_, err := b.cb.Execute(func() (any, error) {
		return nil, b.next.Set(ctx, key, value)
	})
	return err
}

func (b *Breaker) Close() error {
	return b.next.Close()
}
