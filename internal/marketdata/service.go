package marketdata

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/portview/backend/internal/contracts"
	"github.com/portview/backend/pkg/logger"
)

// Service is the price-history source the rest of the system uses. Reads go
// to the local store first; missing spans are fetched from the provider API,
// falling back to the HTML scraper, and written through for next time.
type Service struct {
	repo    *Repository
	client  *Client
	scraper *Scraper
	logger  *logger.Logger
}

// NewService wires the price service. The scraper may be nil to disable the
// HTML fallback.
func NewService(repo *Repository, client *Client, scraper *Scraper, log *logger.Logger) *Service {
	return &Service{
		repo:    repo,
		client:  client,
		scraper: scraper,
		logger:  log,
	}
}

// GetCloses returns daily closes for [from, to], ascending. The local store
// answers directly when its history already reaches the end of the window.
func (s *Service) GetCloses(ctx context.Context, symbol string, from, to time.Time) ([]contracts.PricePoint, error) {
	from, to = contracts.Day(from), contracts.Day(to)

	latest, ok, err := s.repo.LatestDate(ctx, symbol)
	if err != nil {
		return nil, err
	}
	if ok && !latest.Before(to) {
		return s.repo.GetCloses(ctx, symbol, from, to)
	}

	// The store is behind; fetch the whole window so gaps inside it are
	// filled too, then write through.
	points, err := s.fetch(ctx, symbol, from, to)
	if err != nil {
		// A failed refresh still serves whatever history the store has;
		// the caller's forward-fill handles the missing tail.
		stored, repoErr := s.repo.GetCloses(ctx, symbol, from, to)
		if repoErr == nil && len(stored) > 0 {
			s.logger.WithError(err).WithField("symbol", symbol).Warn("Provider fetch failed, serving stored closes")
			return stored, nil
		}
		return nil, err
	}

	if err := s.repo.UpsertCloses(ctx, symbol, points); err != nil {
		s.logger.WithError(err).WithField("symbol", symbol).Warn("Close write-through failed")
	}

	return points, nil
}

// GetDailyClose returns one settled close; ok is false when the day never
// traded for the symbol.
func (s *Service) GetDailyClose(ctx context.Context, symbol string, date time.Time) (decimal.Decimal, bool, error) {
	date = contracts.Day(date)

	points, err := s.repo.GetCloses(ctx, symbol, date, date)
	if err == nil && len(points) > 0 {
		return points[0].Close, true, nil
	}

	return s.client.GetDailyClose(ctx, symbol, date)
}

// LatestTradingDay returns the most recent completed trading day, preferring
// the provider's calendar and degrading to the newest stored close.
func (s *Service) LatestTradingDay(ctx context.Context, symbol string) (time.Time, error) {
	date, err := s.client.LatestTradingDay(ctx, symbol)
	if err == nil {
		return contracts.Day(date), nil
	}

	stored, ok, repoErr := s.repo.LatestDate(ctx, symbol)
	if repoErr == nil && ok {
		s.logger.WithError(err).WithField("symbol", symbol).Warn("Calendar fetch failed, using stored latest close date")
		return contracts.Day(stored), nil
	}

	return time.Time{}, fmt.Errorf("latest trading day for %s: %w", symbol, err)
}

func (s *Service) fetch(ctx context.Context, symbol string, from, to time.Time) ([]contracts.PricePoint, error) {
	points, err := s.client.GetCloses(ctx, symbol, from, to)
	if err == nil {
		return points, nil
	}

	if s.scraper == nil {
		return nil, err
	}

	s.logger.WithError(err).WithField("symbol", symbol).Warn("Provider API failed, trying HTML fallback")

	points, scrapeErr := s.scraper.FetchCloses(ctx, symbol, from, to)
	if scrapeErr != nil {
		return nil, fmt.Errorf("api: %v; scraper: %w", err, scrapeErr)
	}

	return points, nil
}
