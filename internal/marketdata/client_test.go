package marketdata

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/portview/backend/pkg/config"
	"github.com/portview/backend/pkg/httputil"
	"github.com/portview/backend/pkg/logger"
	"github.com/portview/backend/pkg/redis"
)

func newTestClient(t *testing.T, baseURL string) *Client {
	t.Helper()

	cfg := &config.Config{
		Env:       "test",
		LogLevel:  "error",
		LogFormat: "json",
		Redis:     config.RedisConfig{Enabled: false},
	}
	log := logger.New(cfg)

	redisClient, err := redis.New(cfg)
	require.NoError(t, err)

	mdCfg := config.MarketDataConfig{
		BaseURL:   baseURL,
		APIKey:    "test-key",
		RateLimit: 100,
	}

	httpClient := httputil.New(cfg, log).DisableRetry()
	return NewClient(mdCfg, httpClient, redis.NewCache(redisClient, "test"), log)
}

func TestClient_GetCloses(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-key", r.Header.Get("X-Api-Key"))
		assert.Equal(t, "/v1/history/daily", r.URL.Path)
		assert.Equal(t, "SPY", r.URL.Query().Get("symbol"))
		assert.Equal(t, "2024-03-01", r.URL.Query().Get("from"))
		assert.Equal(t, "2024-03-05", r.URL.Query().Get("to"))

		w.Header().Set("Content-Type", "application/json")
		// Out of order on purpose; the client sorts.
		w.Write([]byte(`{
			"symbol": "SPY",
			"candles": [
				{"date": "2024-03-04", "close": "511.00"},
				{"date": "2024-03-01", "close": "510.25"},
				{"date": "2024-03-05", "close": "515.10"}
			]
		}`))
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)

	points, err := client.GetCloses(context.Background(),
		"SPY",
		time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC),
	)
	require.NoError(t, err)
	require.Len(t, points, 3)

	assert.Equal(t, "2024-03-01", points[0].Date.Format("2006-01-02"))
	assert.Equal(t, "2024-03-05", points[2].Date.Format("2006-01-02"))
	assert.True(t, points[0].Close.Equal(dec("510.25")))
}

func TestClient_GetCloses_SkipsMalformedDates(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"symbol": "SPY",
			"candles": [
				{"date": "not-a-date", "close": "1"},
				{"date": "2024-03-01", "close": "510.25"}
			]
		}`))
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)

	points, err := client.GetCloses(context.Background(),
		"SPY",
		time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
	)
	require.NoError(t, err)
	require.Len(t, points, 1)
}

func TestClient_GetDailyClose_NotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"symbol": "SPY", "candles": []}`))
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)

	_, ok, err := client.GetDailyClose(context.Background(), "SPY", time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.False(t, ok, "non-trading day has no close")
}

func TestClient_LatestTradingDay(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/calendar/latest", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"symbol": "SPY", "latest_trading_day": "2024-03-05"}`))
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)

	date, err := client.LatestTradingDay(context.Background(), "SPY")
	require.NoError(t, err)
	assert.Equal(t, "2024-03-05", date.Format("2006-01-02"))
}

func TestClient_LatestTradingDay_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)

	_, err := client.LatestTradingDay(context.Background(), "SPY")
	assert.Error(t, err)
}
