package cache_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	infraCache "circulation-backend/internal/infrastructure/cache"
)

type entry struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

func TestMemoryCache_GetSetDelete(t *testing.T) {
	ctx := context.Background()
	c := infraCache.NewMemoryCache(time.Minute, time.Minute)

	var got entry
	found, err := c.Get(ctx, "missing", &got)
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, c.Set(ctx, "k", entry{Name: "a", Count: 2}, time.Minute))
	found, err = c.Get(ctx, "k", &got)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, entry{Name: "a", Count: 2}, got)

	require.NoError(t, c.Delete(ctx, "k", "other"))
	found, err = c.Get(ctx, "k", &got)
	require.NoError(t, err)
	assert.False(t, found)
	assert.NoError(t, c.Ping(ctx))
}

func TestMemoryCache_Expiry(t *testing.T) {
	ctx := context.Background()
	c := infraCache.NewMemoryCache(time.Minute, time.Minute)

	require.NoError(t, c.Set(ctx, "short", entry{Name: "x"}, 20*time.Millisecond))
	time.Sleep(40 * time.Millisecond)

	var got entry
	found, err := c.Get(ctx, "short", &got)
	require.NoError(t, err)
	assert.False(t, found)

	stored, err := c.SetNX(ctx, "short", entry{Name: "y"}, time.Minute)
	require.NoError(t, err)
	assert.True(t, stored, "expired entries can be claimed again")
}

func TestMemoryCache_SetNXHasOneWinner(t *testing.T) {
	ctx := context.Background()
	c := infraCache.NewMemoryCache(time.Minute, time.Minute)

	var (
		wg   sync.WaitGroup
		wins atomic.Int32
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ok, err := c.SetNX(ctx, "claim", entry{Count: i}, time.Minute)
			assert.NoError(t, err)
			if ok {
				wins.Add(1)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(1), wins.Load())
}
