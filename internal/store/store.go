// Package store abstracts the persisted registry documents behind a minimal
// whole-document key/value contract. Every mutation upstream is an
// unsynchronized read-modify-write; the store offers no transactions and the
// consistency model is last-writer-wins by design.
package store

import (
	"context"
	"errors"
)

var ErrNotFound = errors.New("store: key not found")

// Fixed keys addressing the three logical documents.
const (
	KeyPresence    = "chat:presence"
	KeyPermissions = "chat:permissions"
	KeyHistory     = "chat:history"
)

// KV is the pluggable backend contract.
type KV interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Close() error
}
