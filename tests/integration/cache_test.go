//go:build integration

package integration

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/refhub/citation-service/internal/cache"
	"github.com/refhub/citation-service/internal/domain"
)

func TestPostgresCache_RoundTrip(t *testing.T) {
	cleanTable(t, "resolution_cache")
	c := cache.NewPostgres(testPool)
	ctx := context.Background()

	t.Run("put then get returns the stored payload", func(t *testing.T) {
		err := c.Put(ctx, "verify:doi:10.1038/nature14539", []byte(`{"status":"verified"}`), time.Hour)
		require.NoError(t, err)

		got, err := c.Get(ctx, "verify:doi:10.1038/nature14539")
		require.NoError(t, err)
		assert.Equal(t, []byte(`{"status":"verified"}`), got)
	})

	t.Run("get unknown key returns not found", func(t *testing.T) {
		got, err := c.Get(ctx, "verify:unknown")
		require.Error(t, err)
		assert.Nil(t, got)
		assert.True(t, errors.Is(err, domain.ErrNotFound))
	})

	t.Run("put replaces an existing entry", func(t *testing.T) {
		require.NoError(t, c.Put(ctx, "topic:transformers:", []byte("v1"), time.Hour))
		require.NoError(t, c.Put(ctx, "topic:transformers:", []byte("v2"), time.Hour))

		got, err := c.Get(ctx, "topic:transformers:")
		require.NoError(t, err)
		assert.Equal(t, []byte("v2"), got)
	})

	t.Run("delete removes the entry", func(t *testing.T) {
		require.NoError(t, c.Put(ctx, "batch:corr-1:doi:10.1000/x", []byte("result"), time.Hour))
		require.NoError(t, c.Delete(ctx, "batch:corr-1:doi:10.1000/x"))

		_, err := c.Get(ctx, "batch:corr-1:doi:10.1000/x")
		assert.True(t, errors.Is(err, domain.ErrNotFound))
	})
}

func TestPostgresCache_Expiry(t *testing.T) {
	cleanTable(t, "resolution_cache")
	c := cache.NewPostgres(testPool)
	ctx := context.Background()

	t.Run("expired entry is reported as missing", func(t *testing.T) {
		require.NoError(t, c.Put(ctx, "verify:short-lived", []byte("x"), 50*time.Millisecond))

		time.Sleep(100 * time.Millisecond)

		_, err := c.Get(ctx, "verify:short-lived")
		assert.True(t, errors.Is(err, domain.ErrNotFound))
	})

	t.Run("sweep evicts only expired entries", func(t *testing.T) {
		require.NoError(t, c.Put(ctx, "verify:stale", []byte("x"), 10*time.Millisecond))
		require.NoError(t, c.Put(ctx, "verify:fresh", []byte("y"), time.Hour))

		time.Sleep(50 * time.Millisecond)

		evicted, err := c.Sweep(ctx)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, evicted, int64(1))

		got, err := c.Get(ctx, "verify:fresh")
		require.NoError(t, err)
		assert.Equal(t, []byte("y"), got)
	})
}
