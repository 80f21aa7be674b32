package performance

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/portview/backend/internal/contracts"
	"github.com/portview/backend/pkg/logger"
)

// TransactionSource is the transaction-store collaborator.
type TransactionSource interface {
	// GetTransactions returns the user's full confirmed history in
	// (date, id) order.
	GetTransactions(ctx context.Context, userID string) ([]contracts.Transaction, error)
}

// PriceSource is the price-history collaborator.
type PriceSource interface {
	// GetCloses returns settled daily closes for [from, to], ascending.
	GetCloses(ctx context.Context, symbol string, from, to time.Time) ([]contracts.PricePoint, error)

	// LatestTradingDay returns the most recent completed trading day for the
	// symbol's market.
	LatestTradingDay(ctx context.Context, symbol string) (time.Time, error)
}

// Store is the keyed cache persistence. Get returns (nil, nil) on a miss.
type Store interface {
	Get(ctx context.Context, userID, benchmark string, rng contracts.Range) (*contracts.CacheEntry, error)
	Upsert(ctx context.Context, entry *contracts.CacheEntry) error
	DeleteForUser(ctx context.Context, userID string) error
}

// Options tune the orchestrator's policies.
type Options struct {
	// ServeStale allows returning a stale-but-present entry when a rebuild
	// fails. The response is flagged stale either way.
	ServeStale bool

	// RebuildTimeout bounds one rebuild; zero disables the bound.
	RebuildTimeout time.Duration
}

// Result is the performance read-path response.
type Result struct {
	PortfolioValues contracts.Series `json:"portfolio_values"`
	IndexValues     contracts.Series `json:"index_values"`
	AsOfDate        time.Time        `json:"as_of_date"`

	// Stale marks a response served from an entry older than the latest
	// trading day, after a failed rebuild.
	Stale bool `json:"stale,omitempty"`
}

// Service orchestrates the performance cache read path: serve a fresh entry
// directly, otherwise rebuild both series, write the entry back, and return
// it. This is the only entry point the rest of the system calls; nothing else
// reads or writes cache entries.
type Service struct {
	store  Store
	txns   TransactionSource
	prices PriceSource
	opts   Options
	logger *logger.Logger

	// Concurrent misses for the same key share one rebuild. Correctness does
	// not depend on this; duplicate rebuilds are idempotent upserts.
	group singleflight.Group
}

// NewService creates the cache orchestrator.
func NewService(store Store, txns TransactionSource, prices PriceSource, opts Options, log *logger.Logger) *Service {
	return &Service{
		store:  store,
		txns:   txns,
		prices: prices,
		opts:   opts,
		logger: log,
	}
}

// GetPerformance returns the portfolio and simulated benchmark series for the
// user over the named range. Freshness is judged by the entry's as-of date
// against the latest completed trading day, never by wall-clock age.
func (s *Service) GetPerformance(ctx context.Context, userID, benchmark string, rng contracts.Range) (*Result, error) {
	if userID == "" {
		return nil, fmt.Errorf("user id is required")
	}
	if benchmark == "" {
		return nil, fmt.Errorf("benchmark is required")
	}
	if !rng.Valid() {
		return nil, fmt.Errorf("%w: %q", contracts.ErrInvalidRange, rng)
	}

	entry, err := s.store.Get(ctx, userID, benchmark, rng)
	if err != nil {
		// A broken cache read degrades to a rebuild, not a failure.
		s.logger.WithError(err).WithFields(map[string]interface{}{
			"user_id":   userID,
			"benchmark": benchmark,
			"range":     rng,
		}).Warn("Cache read failed, treating as miss")
		entry = nil
	}

	target, err := s.prices.LatestTradingDay(ctx, benchmark)
	if err != nil {
		return s.degrade(entry, fmt.Errorf("%w: latest trading day: %v", contracts.ErrDataUnavailable, err))
	}
	target = contracts.Day(target)

	if entry != nil && !contracts.Day(entry.AsOfDate).Before(target) {
		s.logger.WithFields(map[string]interface{}{
			"user_id":   userID,
			"benchmark": benchmark,
			"range":     rng,
			"as_of":     entry.AsOfDate.Format(contracts.DateFormat),
		}).Debug("Performance cache hit")

		return &Result{
			PortfolioValues: entry.PortfolioValues,
			IndexValues:     entry.IndexValues,
			AsOfDate:        entry.AsOfDate,
		}, nil
	}

	key := contracts.CacheKey(userID, benchmark, rng)
	v, err, shared := s.group.Do(key, func() (interface{}, error) {
		return s.rebuild(ctx, userID, benchmark, rng, target)
	})
	if err != nil {
		return s.degrade(entry, err)
	}

	if shared {
		s.logger.WithField("key", key).Debug("Rebuild shared with concurrent request")
	}

	return v.(*Result), nil
}

// Refresh force-rebuilds one entry; used by the background warmer.
func (s *Service) Refresh(ctx context.Context, userID, benchmark string, rng contracts.Range) error {
	if !rng.Valid() {
		return fmt.Errorf("%w: %q", contracts.ErrInvalidRange, rng)
	}

	target, err := s.prices.LatestTradingDay(ctx, benchmark)
	if err != nil {
		return fmt.Errorf("%w: latest trading day: %v", contracts.ErrDataUnavailable, err)
	}

	_, err = s.rebuild(ctx, userID, benchmark, rng, contracts.Day(target))
	return err
}

// DeleteForUser removes every cache entry the user owns; called from the
// account-deletion cascade.
func (s *Service) DeleteForUser(ctx context.Context, userID string) error {
	return s.store.DeleteForUser(ctx, userID)
}

// rebuild recomputes both series over the full range span, upserts the entry
// and returns it. A failed rebuild writes nothing.
func (s *Service) rebuild(ctx context.Context, userID, benchmark string, rng contracts.Range, target time.Time) (*Result, error) {
	if s.opts.RebuildTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.opts.RebuildTimeout)
		defer cancel()
	}

	started := time.Now()

	txns, err := s.txns.GetTransactions(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%w: transactions: %v", contracts.ErrDataUnavailable, err)
	}
	if len(txns) == 0 {
		return nil, fmt.Errorf("%w: user has no transaction history", contracts.ErrDataUnavailable)
	}
	contracts.SortTransactions(txns)

	start := rng.Start(target)
	if rng == contracts.RangeMax {
		start = contracts.Day(txns[0].Date)
	}

	// Benchmark closes define the trading-day calendar for both series.
	benchCloses, err := s.prices.GetCloses(ctx, benchmark, start, target)
	if err != nil {
		return nil, fmt.Errorf("%w: benchmark closes: %v", contracts.ErrDataUnavailable, err)
	}
	if len(benchCloses) == 0 {
		return nil, fmt.Errorf("%w: benchmark %s has no closes in [%s, %s]",
			contracts.ErrAlignment, benchmark,
			start.Format(contracts.DateFormat), target.Format(contracts.DateFormat))
	}

	calendar := make([]time.Time, len(benchCloses))
	for i, pp := range benchCloses {
		calendar[i] = contracts.Day(pp.Date)
	}

	closes, err := s.fetchHoldingCloses(ctx, txns, target)
	if err != nil {
		return nil, err
	}

	valuation, err := BuildPortfolioSeries(ValuationInput{
		Transactions: txns,
		Calendar:     calendar,
		Closes:       closes,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: portfolio series: %v", contracts.ErrDataUnavailable, err)
	}

	index, err := SimulateBenchmark(txns, benchCloses, valuation.Series[0].Value)
	if err != nil {
		return nil, err
	}

	entry := &contracts.CacheEntry{
		UserID:          userID,
		Benchmark:       benchmark,
		Range:           rng,
		AsOfDate:        calendar[len(calendar)-1],
		PortfolioValues: valuation.Series,
		IndexValues:     index,
		Metadata: map[string]interface{}{
			"window_start": start.Format(contracts.DateFormat),
			"window_end":   target.Format(contracts.DateFormat),
			"transactions": len(txns),
		},
		UpdatedAt: time.Now().UTC(),
	}
	if len(valuation.MissingHistory) > 0 {
		entry.Metadata["missing_price_history"] = valuation.MissingHistory
	}

	if err := entry.Validate(); err != nil {
		return nil, fmt.Errorf("%w: built entry invalid: %v", contracts.ErrDataUnavailable, err)
	}

	// Write-back is idempotent per key; concurrent rebuilds race safely,
	// last writer wins. The computed result is returned even if the
	// write-back fails.
	if err := s.store.Upsert(ctx, entry); err != nil {
		s.logger.WithError(err).WithField("key", entry.Key()).Warn("Cache write-back failed")
	}

	s.logger.WithFields(map[string]interface{}{
		"user_id":   userID,
		"benchmark": benchmark,
		"range":     rng,
		"points":    len(valuation.Series),
		"duration":  time.Since(started),
	}).Info("Performance cache rebuilt")

	return &Result{
		PortfolioValues: entry.PortfolioValues,
		IndexValues:     entry.IndexValues,
		AsOfDate:        entry.AsOfDate,
	}, nil
}

// fetchHoldingCloses loads close history for every symbol the user ever
// transacted, from its first transaction through the target day so the
// forward-fill has a seed before the window opens.
func (s *Service) fetchHoldingCloses(ctx context.Context, txns []contracts.Transaction, target time.Time) (map[string][]contracts.PricePoint, error) {
	firstSeen := make(map[string]time.Time)
	for _, txn := range txns {
		if txn.Symbol == "" {
			continue
		}
		if _, ok := firstSeen[txn.Symbol]; !ok {
			firstSeen[txn.Symbol] = contracts.Day(txn.Date)
		}
	}

	closes := make(map[string][]contracts.PricePoint, len(firstSeen))
	for symbol, from := range firstSeen {
		points, err := s.prices.GetCloses(ctx, symbol, from, target)
		if err != nil {
			return nil, fmt.Errorf("%w: closes for %s: %v", contracts.ErrDataUnavailable, symbol, err)
		}
		// A symbol with zero history is valued at zero and flagged by the
		// builder; it does not fail the rebuild.
		closes[symbol] = points
	}

	return closes, nil
}

// degrade applies the stale-serve policy after a failed rebuild: hand back the
// prior entry flagged stale when allowed, otherwise surface the failure.
func (s *Service) degrade(entry *contracts.CacheEntry, cause error) (*Result, error) {
	if entry == nil || !s.opts.ServeStale {
		return nil, cause
	}

	s.logger.WithError(cause).WithFields(map[string]interface{}{
		"key":   entry.Key(),
		"as_of": entry.AsOfDate.Format(contracts.DateFormat),
	}).Warn("Rebuild failed, serving stale entry")

	return &Result{
		PortfolioValues: entry.PortfolioValues,
		IndexValues:     entry.IndexValues,
		AsOfDate:        entry.AsOfDate,
		Stale:           true,
	}, nil
}
