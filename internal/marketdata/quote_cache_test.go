package marketdata

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/portview/backend/pkg/config"
	"github.com/portview/backend/pkg/logger"
)

func newTestQuoteCache(t *testing.T, ttl time.Duration) *QuoteCache {
	t.Helper()
	log := logger.New(&config.Config{Env: "test", LogLevel: "error", LogFormat: "json"})
	return NewQuoteCache(ttl, log)
}

func TestQuoteCache_UpdateAndGet(t *testing.T) {
	cache := newTestQuoteCache(t, time.Minute)

	ok := cache.Update(&Quote{Symbol: "SPY", Price: dec("512.10"), Timestamp: time.Now()})
	assert.True(t, ok)

	quote, found := cache.Get("SPY")
	require.True(t, found)
	assert.True(t, quote.Price.Equal(dec("512.10")))
	assert.False(t, quote.Stale)
}

func TestQuoteCache_RejectsOlderQuote(t *testing.T) {
	cache := newTestQuoteCache(t, time.Minute)

	now := time.Now()
	cache.Update(&Quote{Symbol: "SPY", Price: dec("512.10"), Timestamp: now})

	ok := cache.Update(&Quote{Symbol: "SPY", Price: dec("500.00"), Timestamp: now.Add(-time.Second)})
	assert.False(t, ok)

	quote, _ := cache.Get("SPY")
	assert.True(t, quote.Price.Equal(dec("512.10")))
}

func TestQuoteCache_StaleAfterTTL(t *testing.T) {
	cache := newTestQuoteCache(t, 10*time.Millisecond)

	cache.Update(&Quote{Symbol: "SPY", Price: dec("512.10"), Timestamp: time.Now().Add(-time.Second)})

	quote, found := cache.Get("SPY")
	require.True(t, found)
	assert.True(t, quote.Stale)
}

func TestQuoteCache_Miss(t *testing.T) {
	cache := newTestQuoteCache(t, time.Minute)

	_, found := cache.Get("MISSING")
	assert.False(t, found)
}
