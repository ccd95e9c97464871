package data

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/draftforge/composerd/internal/testutil"
)

// setupTestRedis creates a Redis client for testing.
// Tests will be skipped if Redis is not available.
func setupTestRedis(t *testing.T) *redis.Client {
	t.Helper()
	return testutil.SetupTestRedis(t)
}

func TestRedisCacheRepo_Set_Get_Delete(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	client := setupTestRedis(t)
	defer client.Close()

	repo := NewRedisCacheRepo(client)
	ctx := context.Background()

	t.Run("set and get", func(t *testing.T) {
		key := "test:key:1"
		value := []byte("test value")
		ttl := 5 * time.Minute

		err := repo.Set(ctx, key, value, ttl)
		require.NoError(t, err)

		result, err := repo.Get(ctx, key)
		require.NoError(t, err)
		assert.Equal(t, value, result)

		// Check TTL is set
		actualTTL := client.TTL(ctx, key).Val()
		assert.True(t, actualTTL > 0 && actualTTL <= ttl)
	})

	t.Run("get non-existent key", func(t *testing.T) {
		result, err := repo.Get(ctx, "non:existent:key")
		require.NoError(t, err)
		assert.Nil(t, result)
	})

	t.Run("delete existing key", func(t *testing.T) {
		key := "test:key:2"

		err := repo.Set(ctx, key, []byte("to be deleted"), time.Minute)
		require.NoError(t, err)

		deleted, err := repo.Delete(ctx, key)
		require.NoError(t, err)
		assert.True(t, deleted)

		result, err := repo.Get(ctx, key)
		require.NoError(t, err)
		assert.Nil(t, result)
	})

	t.Run("delete non-existent key", func(t *testing.T) {
		deleted, err := repo.Delete(ctx, "non:existent:key")
		require.NoError(t, err)
		assert.False(t, deleted)
	})

	t.Run("exists", func(t *testing.T) {
		key := "test:key:3"

		exists, err := repo.Exists(ctx, key)
		require.NoError(t, err)
		assert.False(t, exists)

		err = repo.Set(ctx, key, []byte("exists test"), time.Minute)
		require.NoError(t, err)

		exists, err = repo.Exists(ctx, key)
		require.NoError(t, err)
		assert.True(t, exists)
	})

	t.Run("set TTL", func(t *testing.T) {
		key := "test:key:4"

		err := repo.Set(ctx, key, []byte("ttl test"), time.Minute)
		require.NoError(t, err)

		updated, err := repo.SetTTL(ctx, key, 2*time.Minute)
		require.NoError(t, err)
		assert.True(t, updated)

		actualTTL := client.TTL(ctx, key).Val()
		assert.True(t, actualTTL > time.Minute && actualTTL <= 2*time.Minute)
	})

	t.Run("set TTL on non-existent key", func(t *testing.T) {
		updated, err := repo.SetTTL(ctx, "non:existent:key", time.Minute)
		require.NoError(t, err)
		assert.False(t, updated)
	})

	t.Run("health check", func(t *testing.T) {
		err := repo.Health(ctx)
		assert.NoError(t, err)
	})
}

func TestRedisCacheRepo_Validation(t *testing.T) {
	// Validation errors occur before any Redis operation, but the repo still
	// needs a client.
	client := setupTestRedis(t)
	defer client.Close()

	repo := NewRedisCacheRepo(client)
	ctx := context.Background()

	t.Run("empty key validation", func(t *testing.T) {
		err := repo.Set(ctx, "", []byte("value"), time.Minute)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "key cannot be empty")

		_, err = repo.Get(ctx, "")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "key cannot be empty")

		_, err = repo.Delete(ctx, "")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "key cannot be empty")

		_, err = repo.Exists(ctx, "")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "key cannot be empty")

		_, err = repo.SetTTL(ctx, "", time.Minute)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "key cannot be empty")
	})
}
