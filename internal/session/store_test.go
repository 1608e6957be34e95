package session

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T, ttl time.Duration) (*miniredis.Miniredis, *Store) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return mr, NewStore(client, "test_session", ttl)
}

func TestCreateAndGet(t *testing.T) {
	_, store := newTestStore(t, time.Hour)
	ctx := context.Background()

	sess, err := store.Create(ctx, "u1", "Student", "Alice A")
	require.NoError(t, err)
	assert.NotEmpty(t, sess.ID)
	assert.WithinDuration(t, time.Now().Add(time.Hour), sess.ExpiresAt, 5*time.Second)

	got, err := store.Get(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, sess.ID, got.ID)
	assert.Equal(t, "u1", got.UserID)
	assert.Equal(t, "Student", got.Role)
	assert.Equal(t, "Alice A", got.DisplayName)
}

func TestGetUnknown(t *testing.T) {
	_, store := newTestStore(t, time.Hour)

	_, err := store.Get(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = store.Get(context.Background(), "")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDeleteInvalidatesImmediately(t *testing.T) {
	_, store := newTestStore(t, time.Hour)
	ctx := context.Background()

	sess, err := store.Create(ctx, "u1", "Student", "Alice")
	require.NoError(t, err)
	require.NoError(t, store.Delete(ctx, sess.ID))

	_, err = store.Get(ctx, sess.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, store.Delete(ctx, sess.ID), "deleting twice is fine")
}

func TestExpiredByRedisTTL(t *testing.T) {
	mr, store := newTestStore(t, time.Minute)
	ctx := context.Background()

	sess, err := store.Create(ctx, "u1", "Admin", "Root")
	require.NoError(t, err)

	mr.FastForward(2 * time.Minute)
	_, err = store.Get(ctx, sess.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestExpiredByClock(t *testing.T) {
	_, store := newTestStore(t, time.Minute)
	ctx := context.Background()

	sess, err := store.Create(ctx, "u1", "Admin", "Root")
	require.NoError(t, err)

	store.now = func() time.Time { return time.Now().Add(time.Hour) }
	_, err = store.Get(ctx, sess.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMultipleSessionsAndRevokeAll(t *testing.T) {
	_, store := newTestStore(t, time.Hour)
	ctx := context.Background()

	first, err := store.Create(ctx, "u1", "Student", "Alice")
	require.NoError(t, err)
	second, err := store.Create(ctx, "u1", "Student", "Alice")
	require.NoError(t, err)
	other, err := store.Create(ctx, "u2", "Student", "Bob")
	require.NoError(t, err)

	for _, id := range []string{first.ID, second.ID} {
		_, err := store.Get(ctx, id)
		require.NoError(t, err)
	}

	require.NoError(t, store.DeleteAllForUser(ctx, "u1"))

	for _, id := range []string{first.ID, second.ID} {
		_, err := store.Get(ctx, id)
		assert.ErrorIs(t, err, ErrNotFound)
	}
	_, err = store.Get(ctx, other.ID)
	assert.NoError(t, err)
}
