package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/portview/backend/internal/contracts"
	"github.com/portview/backend/internal/performance"
	"github.com/portview/backend/pkg/config"
	"github.com/portview/backend/pkg/logger"
)

type stubStore struct {
	entry *contracts.CacheEntry
}

func (s *stubStore) Get(ctx context.Context, userID, benchmark string, rng contracts.Range) (*contracts.CacheEntry, error) {
	if s.entry != nil && s.entry.UserID == userID && s.entry.Benchmark == benchmark && s.entry.Range == rng {
		return s.entry, nil
	}
	return nil, nil
}

func (s *stubStore) Upsert(ctx context.Context, entry *contracts.CacheEntry) error { return nil }

func (s *stubStore) DeleteForUser(ctx context.Context, userID string) error { return nil }

type stubTxns struct {
	txns []contracts.Transaction
}

func (s *stubTxns) GetTransactions(ctx context.Context, userID string) ([]contracts.Transaction, error) {
	return s.txns, nil
}

type stubPrices struct {
	latest time.Time
}

func (s *stubPrices) GetCloses(ctx context.Context, symbol string, from, to time.Time) ([]contracts.PricePoint, error) {
	return nil, nil
}

func (s *stubPrices) LatestTradingDay(ctx context.Context, symbol string) (time.Time, error) {
	return s.latest, nil
}

func testLogger() *logger.Logger {
	return logger.New(&config.Config{Env: "test", LogLevel: "error", LogFormat: "json"})
}

func freshEntry(asOf time.Time) *contracts.CacheEntry {
	point := contracts.SeriesPoint{Date: asOf, Value: decimal.NewFromInt(10000)}
	return &contracts.CacheEntry{
		UserID:          "u1",
		Benchmark:       "SPY",
		Range:           contracts.Range1Y,
		AsOfDate:        asOf,
		PortfolioValues: contracts.Series{point},
		IndexValues:     contracts.Series{point},
		UpdatedAt:       time.Now(),
	}
}

func newTestHandler(store performance.Store, prices performance.PriceSource) *PerformanceHandler {
	svc := performance.NewService(store, &stubTxns{}, prices, performance.Options{ServeStale: true}, testLogger())
	return NewPerformanceHandler(svc, "SPY", testLogger())
}

func TestGetPerformance_FreshHit(t *testing.T) {
	asOf := time.Date(2026, 8, 28, 0, 0, 0, 0, time.UTC)
	handler := newTestHandler(&stubStore{entry: freshEntry(asOf)}, &stubPrices{latest: asOf})

	req := httptest.NewRequest(http.MethodGet, "/api/performance?benchmark=SPY&range=1Y", nil)
	req.Header.Set("X-User-ID", "u1")
	rec := httptest.NewRecorder()

	handler.GetPerformance(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		PortfolioValues []map[string]string `json:"portfolio_values"`
		IndexValues     []map[string]string `json:"index_values"`
		Stale           bool                `json:"stale"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.PortfolioValues, 1)
	assert.Equal(t, "2026-08-28", resp.PortfolioValues[0]["date"])
	assert.Equal(t, "10000", resp.PortfolioValues[0]["value"])
	assert.False(t, resp.Stale)
}

func TestGetPerformance_MissingUserHeader(t *testing.T) {
	asOf := time.Date(2026, 8, 28, 0, 0, 0, 0, time.UTC)
	handler := newTestHandler(&stubStore{}, &stubPrices{latest: asOf})

	req := httptest.NewRequest(http.MethodGet, "/api/performance?range=1Y", nil)
	rec := httptest.NewRecorder()

	handler.GetPerformance(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestGetPerformance_InvalidRange(t *testing.T) {
	asOf := time.Date(2026, 8, 28, 0, 0, 0, 0, time.UTC)
	handler := newTestHandler(&stubStore{}, &stubPrices{latest: asOf})

	req := httptest.NewRequest(http.MethodGet, "/api/performance?range=2W", nil)
	req.Header.Set("X-User-ID", "u1")
	rec := httptest.NewRecorder()

	handler.GetPerformance(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetPerformance_NoTransactions(t *testing.T) {
	// Empty store and no transaction history: the rebuild cannot produce a
	// series, which surfaces as service unavailable.
	asOf := time.Date(2026, 8, 28, 0, 0, 0, 0, time.UTC)
	handler := newTestHandler(&stubStore{}, &stubPrices{latest: asOf})

	req := httptest.NewRequest(http.MethodGet, "/api/performance?range=1Y", nil)
	req.Header.Set("X-User-ID", "u1")
	rec := httptest.NewRecorder()

	handler.GetPerformance(rec, req)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestDeleteCache(t *testing.T) {
	asOf := time.Date(2026, 8, 28, 0, 0, 0, 0, time.UTC)
	handler := newTestHandler(&stubStore{}, &stubPrices{latest: asOf})

	req := httptest.NewRequest(http.MethodDelete, "/api/performance/cache", nil)
	req.Header.Set("X-User-ID", "u1")
	rec := httptest.NewRecorder()

	handler.DeleteCache(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
}
