package mem

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResetTokensSingleUse(t *testing.T) {
	ctx := context.Background()
	store := NewResetTokens()

	require.NoError(t, store.Set(ctx, "abc", "user@example.com", time.Hour))

	v, ok, err := store.Peek(ctx, "abc")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "user@example.com", v)

	v, err = store.Consume(ctx, "abc")
	require.NoError(t, err)
	assert.Equal(t, "user@example.com", v)

	v, err = store.Consume(ctx, "abc")
	require.NoError(t, err)
	assert.Empty(t, v)
}

func TestResetTokensExpiry(t *testing.T) {
	ctx := context.Background()
	store := NewResetTokens()
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }

	require.NoError(t, store.Set(ctx, "abc", "v", time.Minute))
	now = now.Add(2 * time.Minute)

	_, ok, err := store.Peek(ctx, "abc")
	require.NoError(t, err)
	assert.False(t, ok)

	v, err := store.Consume(ctx, "abc")
	require.NoError(t, err)
	assert.Empty(t, v)
}

func TestRedisTokens(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}
	ctx := context.Background()
	client := redis.NewClient(&redis.Options{Addr: addr})
	t.Cleanup(func() { _ = client.Close() })

	store := NewRedisTokens(client)
	require.NoError(t, store.Set(ctx, "redis-test-token", "acct-1", time.Minute))

	v, ok, err := store.Peek(ctx, "redis-test-token")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "acct-1", v)

	v, err = store.Consume(ctx, "redis-test-token")
	require.NoError(t, err)
	assert.Equal(t, "acct-1", v)

	v, err = store.Consume(ctx, "redis-test-token")
	require.NoError(t, err)
	assert.Empty(t, v)
}
