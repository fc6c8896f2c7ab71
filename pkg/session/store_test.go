package session

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/taskhub/pkg/auth"
)

func newTestRedisStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRedisStore(client), mr
}

func TestRedisStore_SaveAndGet(t *testing.T) {
	store, _ := newTestRedisStore(t)
	ctx := context.Background()

	sess, err := New()
	require.NoError(t, err)
	sess.SetUser(&auth.Identity{UserID: "user-1", Email: "user@example.com", Theme: "dark"})

	require.NoError(t, store.Save(ctx, sess, time.Hour))
	assert.False(t, sess.Dirty(), "save marks the session clean")

	loaded, err := store.Get(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, sess.ID, loaded.ID)
	require.NotNil(t, loaded.User)
	assert.Equal(t, "user-1", loaded.User.UserID)
	assert.Equal(t, "dark", loaded.User.Theme)
}

func TestRedisStore_GetMissing(t *testing.T) {
	store, _ := newTestRedisStore(t)

	_, err := store.Get(context.Background(), "no-such-session")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRedisStore_Expiry(t *testing.T) {
	store, mr := newTestRedisStore(t)
	ctx := context.Background()

	sess, err := New()
	require.NoError(t, err)
	require.NoError(t, store.Save(ctx, sess, time.Minute))

	mr.FastForward(2 * time.Minute)

	_, err = store.Get(ctx, sess.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRedisStore_CorruptPayloadDropped(t *testing.T) {
	store, mr := newTestRedisStore(t)
	ctx := context.Background()

	require.NoError(t, mr.Set("session:broken", "{not json"))

	_, err := store.Get(ctx, "broken")
	assert.ErrorIs(t, err, ErrNotFound)

	// The corrupt entry is removed, not served again
	assert.False(t, mr.Exists("session:broken"))
}

func TestRedisStore_Destroy(t *testing.T) {
	store, _ := newTestRedisStore(t)
	ctx := context.Background()

	sess, err := New()
	require.NoError(t, err)
	require.NoError(t, store.Save(ctx, sess, time.Hour))

	require.NoError(t, store.Destroy(ctx, sess.ID))
	_, err = store.Get(ctx, sess.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	// Destroying again is a no-op
	assert.NoError(t, store.Destroy(ctx, sess.ID))
}

func TestMemoryStore(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	sess, err := New()
	require.NoError(t, err)
	sess.SetUser(&auth.Identity{UserID: "user-1"})
	require.NoError(t, store.Save(ctx, sess, time.Hour))

	loaded, err := store.Get(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, "user-1", loaded.User.UserID)

	require.NoError(t, store.Destroy(ctx, sess.ID))
	_, err = store.Get(ctx, sess.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStore_Expiry(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	sess, err := New()
	require.NoError(t, err)
	require.NoError(t, store.Save(ctx, sess, -time.Second))

	_, err = store.Get(ctx, sess.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}
