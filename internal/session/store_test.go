package session

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStoreCreateAndGet(t *testing.T) {
	gw := newFlakyGateway()
	store := NewStore(gw)

	sess, err := store.Create(context.Background())
	require.NoError(t, err)

	got, err := store.Get(sess.ID)
	require.NoError(t, err)
	assert.Same(t, sess, got)
	assert.Equal(t, 1, store.Len())

	rec, ok := gw.Get(sess.ID)
	require.True(t, ok, "a durable record exists before the session is usable")
	assert.Equal(t, "waiting", string(rec.Status))
}

func TestStoreCreate_GatewayFailure(t *testing.T) {
	gw := newFlakyGateway()
	gw.failCreate = true
	store := NewStore(gw)

	_, err := store.Create(context.Background())
	assert.ErrorIs(t, err, ErrPersistenceUnavailable)
	assert.Equal(t, 0, store.Len())
}

func TestStoreGet_Missing(t *testing.T) {
	store := NewStore(newFlakyGateway())
	_, err := store.Get("nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStoreRemove_Idempotent(t *testing.T) {
	store := NewStore(newFlakyGateway())
	sess, err := store.Create(context.Background())
	require.NoError(t, err)

	store.Remove(sess.ID)
	store.Remove(sess.ID)
	_, err = store.Get(sess.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Empty(t, store.All())
}
