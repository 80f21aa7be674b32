package marketdata

import (
	"sync"
	"time"

	"github.com/portview/backend/pkg/logger"
)

// QuoteCache is an in-memory cache for live quotes from the streaming feed.
// Dashboard tiles read it; the historical series never do.
type QuoteCache struct {
	mu     sync.RWMutex
	quotes map[string]*Quote
	ttl    time.Duration
	logger *logger.Logger
}

// NewQuoteCache creates a quote cache; quotes older than ttl read as stale.
func NewQuoteCache(ttl time.Duration, log *logger.Logger) *QuoteCache {
	return &QuoteCache{
		quotes: make(map[string]*Quote),
		ttl:    ttl,
		logger: log,
	}
}

// Update stores a quote unless a newer one is already cached.
func (c *QuoteCache) Update(quote *Quote) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	existing, exists := c.quotes[quote.Symbol]
	if exists && quote.Timestamp.Before(existing.Timestamp) {
		c.logger.WithFields(map[string]interface{}{
			"symbol":   quote.Symbol,
			"new_time": quote.Timestamp,
			"old_time": existing.Timestamp,
		}).Debug("Rejected older quote")
		return false
	}

	quote.Stale = time.Since(quote.Timestamp) > c.ttl
	c.quotes[quote.Symbol] = quote

	return true
}

// Get retrieves a quote; ok is false when the symbol was never seen.
func (c *QuoteCache) Get(symbol string) (*Quote, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	quote, exists := c.quotes[symbol]
	if !exists {
		return nil, false
	}

	copied := *quote
	copied.Stale = time.Since(quote.Timestamp) > c.ttl
	return &copied, true
}

// Symbols returns the symbols currently cached.
func (c *QuoteCache) Symbols() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	symbols := make([]string, 0, len(c.quotes))
	for symbol := range c.quotes {
		symbols = append(symbols, symbol)
	}
	return symbols
}
