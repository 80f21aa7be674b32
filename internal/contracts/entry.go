package contracts

import (
	"fmt"
	"time"
)

// CacheEntry is one materialized performance series pair, uniquely keyed by
// (UserID, Benchmark, Range). Entries are upserted whole; a stored entry is
// never empty or partial.
type CacheEntry struct {
	UserID    string `json:"user_id"`
	Benchmark string `json:"benchmark"`
	Range     Range  `json:"range"`

	// AsOfDate is the last trading day included in both series; this is the
	// freshness signal, not UpdatedAt.
	AsOfDate time.Time `json:"as_of_date"`

	PortfolioValues Series `json:"portfolio_values"`
	IndexValues     Series `json:"index_values"`

	// Metadata records the parameters used to produce the entry, for
	// diagnostics only. Never read back into computation.
	Metadata map[string]interface{} `json:"metadata,omitempty"`

	// UpdatedAt is the last write time, for observability only.
	UpdatedAt time.Time `json:"updated_at"`
}

// Key returns the string cache key for the entry's triple.
func (e *CacheEntry) Key() string {
	return CacheKey(e.UserID, e.Benchmark, e.Range)
}

// CacheKey builds the canonical string key for a (user, benchmark, range) triple.
func CacheKey(userID, benchmark string, rng Range) string {
	return fmt.Sprintf("%s:%s:%s", userID, benchmark, rng)
}

// Validate enforces the cache entry invariants before a write:
// both series non-empty, identical strictly-increasing date domains, and
// AsOfDate equal to the final date of both.
func (e *CacheEntry) Validate() error {
	if e.UserID == "" {
		return fmt.Errorf("cache entry missing user id")
	}
	if e.Benchmark == "" {
		return fmt.Errorf("cache entry missing benchmark")
	}
	if !e.Range.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidRange, e.Range)
	}

	if err := e.PortfolioValues.Validate(); err != nil {
		return fmt.Errorf("portfolio series: %w", err)
	}
	if err := e.IndexValues.Validate(); err != nil {
		return fmt.Errorf("index series: %w", err)
	}

	if !e.PortfolioValues.SameDates(e.IndexValues) {
		return fmt.Errorf("portfolio and index series cover different date domains")
	}

	last, _ := e.PortfolioValues.Last()
	if !Day(e.AsOfDate).Equal(Day(last.Date)) {
		return fmt.Errorf("as_of_date %s does not match final series date %s",
			e.AsOfDate.Format(DateFormat), last.Date.Format(DateFormat))
	}

	return nil
}
