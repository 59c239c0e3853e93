package clientdata

import (
	"sync"
	"testing"
	"time"

	"github.com/aristath/folio/internal/utils"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCache_Expiry(t *testing.T) {
	clock := utils.NewManualClock(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	cache := NewCache[float64](time.Minute, clock)

	cache.Set("AAPL", 190.5)
	v, ok := cache.Get("AAPL")
	require.True(t, ok)
	assert.Equal(t, 190.5, v)

	clock.Advance(59 * time.Second)
	_, ok = cache.Get("AAPL")
	assert.True(t, ok)

	clock.Advance(time.Second)
	_, ok = cache.Get("AAPL")
	assert.False(t, ok, "entry expires exactly at ttl")
	assert.Equal(t, 0, cache.Len())
}

func TestCache_SetRefreshesExpiry(t *testing.T) {
	clock := utils.NewManualClock(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	cache := NewCache[string](time.Minute, clock)

	cache.Set("k", "a")
	clock.Advance(50 * time.Second)
	cache.Set("k", "b")
	clock.Advance(50 * time.Second)

	v, ok := cache.Get("k")
	require.True(t, ok)
	assert.Equal(t, "b", v)

	cache.Delete("k")
	_, ok = cache.Get("k")
	assert.False(t, ok)
}

func TestCache_DefaultTTL(t *testing.T) {
	cache := NewCache[int](0, nil)
	assert.Equal(t, TTLQuote, cache.TTL())
}

func TestCache_ConcurrentAccess(t *testing.T) {
	cache := NewCache[int](time.Minute, utils.SystemClock{})

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			cache.Set("key", i)
			cache.Get("key")
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, cache.Len())
}

func TestCleanupJob_Run(t *testing.T) {
	clock := utils.NewManualClock(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	quotes := NewCache[float64](time.Minute, clock)
	quotes.Set("old", 1)
	clock.Advance(2 * time.Minute)
	quotes.Set("fresh", 2)

	job := NewCleanupJob(map[string]Purger{"quotes": quotes, "unused": nil}, zerolog.New(nil).Level(zerolog.Disabled))
	assert.Equal(t, "cache_cleanup", job.Name())
	require.NoError(t, job.Run())

	assert.Equal(t, 1, quotes.Len())
	_, ok := quotes.Get("fresh")
	assert.True(t, ok)
}
