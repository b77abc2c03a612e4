package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryGetSet(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	_, err := m.Get(ctx, KeyPresence)
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, m.Set(ctx, KeyPresence, []byte(`{"alice":{}}`)))

	got, err := m.Get(ctx, KeyPresence)
	require.NoError(t, err)
	assert.Equal(t, []byte(`{"alice":{}}`), got)

	// Overwrite wins.
	require.NoError(t, m.Set(ctx, KeyPresence, []byte(`{}`)))
	got, err = m.Get(ctx, KeyPresence)
	require.NoError(t, err)
	assert.Equal(t, []byte(`{}`), got)
}

func TestMemoryCopiesValues(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	in := []byte("original")
	require.NoError(t, m.Set(ctx, KeyHistory, in))
	in[0] = 'X'

	out, err := m.Get(ctx, KeyHistory)
	require.NoError(t, err)
	assert.Equal(t, []byte("original"), out)

	// Mutating the returned slice must not leak back into the store.
	out[0] = 'Y'
	again, err := m.Get(ctx, KeyHistory)
	require.NoError(t, err)
	assert.Equal(t, []byte("original"), again)
}
