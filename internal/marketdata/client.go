package marketdata

import (
	"context"
	"fmt"
	"net/url"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"

	"github.com/portview/backend/internal/contracts"
	"github.com/portview/backend/pkg/config"
	"github.com/portview/backend/pkg/httputil"
	"github.com/portview/backend/pkg/logger"
	"github.com/portview/backend/pkg/redis"
)

// Client talks to the market-data provider's JSON API.
// All provider calls go through this client.
type Client struct {
	http    *httputil.Client
	baseURL string
	apiKey  string
	limiter *rate.Limiter
	cache   *redis.Cache
	logger  *logger.Logger
}

// NewClient creates a provider API client. The local limiter smooths bursts
// even when the shared Redis limiter is disabled.
func NewClient(cfg config.MarketDataConfig, http *httputil.Client, cache *redis.Cache, log *logger.Logger) *Client {
	return &Client{
		http:    http,
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		limiter: rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.RateLimit),
		cache:   cache,
		logger:  log,
	}
}

func (c *Client) headers() map[string]string {
	return map[string]string{
		"X-Api-Key": c.apiKey,
		"Accept":    "application/json",
	}
}

type candlePayload struct {
	Symbol  string `json:"symbol"`
	Candles []struct {
		Date  string          `json:"date"`
		Close decimal.Decimal `json:"close"`
	} `json:"candles"`
}

// GetCloses fetches settled daily closes for [from, to], ascending.
func (c *Client) GetCloses(ctx context.Context, symbol string, from, to time.Time) ([]contracts.PricePoint, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	endpoint := fmt.Sprintf("%s/v1/history/daily?symbol=%s&from=%s&to=%s",
		c.baseURL, url.QueryEscape(symbol),
		from.Format(contracts.DateFormat), to.Format(contracts.DateFormat),
	)

	var payload candlePayload
	if err := c.http.GetJSON(ctx, endpoint, c.headers(), &payload); err != nil {
		return nil, fmt.Errorf("fetch daily closes for %s: %w", symbol, err)
	}

	points := make([]contracts.PricePoint, 0, len(payload.Candles))
	for _, candle := range payload.Candles {
		date, err := time.ParseInLocation(contracts.DateFormat, candle.Date, time.UTC)
		if err != nil {
			c.logger.WithFields(map[string]interface{}{
				"symbol": symbol,
				"date":   candle.Date,
			}).Warn("Skipping candle with malformed date")
			continue
		}
		points = append(points, contracts.PricePoint{Date: date, Close: candle.Close})
	}

	sort.Slice(points, func(i, j int) bool { return points[i].Date.Before(points[j].Date) })

	c.logger.WithFields(map[string]interface{}{
		"symbol": symbol,
		"count":  len(points),
	}).Debug("Fetched daily closes")

	return points, nil
}

// GetDailyClose returns one settled close, via the Redis lookup cache when
// available. Settled closes never change, so the daily TTL is safe.
func (c *Client) GetDailyClose(ctx context.Context, symbol string, date time.Time) (decimal.Decimal, bool, error) {
	date = contracts.Day(date)
	key := redis.DailyCloseKey(symbol, date.Format(contracts.DateFormat))

	var cached string
	if found, err := c.cache.Get(ctx, key, &cached); err == nil && found {
		close, err := decimal.NewFromString(cached)
		if err == nil {
			return close, true, nil
		}
	}

	points, err := c.GetCloses(ctx, symbol, date, date)
	if err != nil {
		return decimal.Zero, false, err
	}
	if len(points) == 0 {
		return decimal.Zero, false, nil
	}

	close := points[0].Close
	if err := c.cache.Set(ctx, key, close.String(), redis.TTLDaily); err != nil {
		c.logger.WithError(err).Debug("Close cache write failed")
	}

	return close, true, nil
}

type calendarPayload struct {
	Symbol string `json:"symbol"`
	Latest string `json:"latest_trading_day"`
}

// LatestTradingDay asks the provider for the most recent completed trading
// day of the symbol's market.
func (c *Client) LatestTradingDay(ctx context.Context, symbol string) (time.Time, error) {
	var cached string
	if found, err := c.cache.Get(ctx, redis.TradingDayKey(), &cached); err == nil && found {
		if date, err := time.ParseInLocation(contracts.DateFormat, cached, time.UTC); err == nil {
			return date, nil
		}
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return time.Time{}, fmt.Errorf("rate limiter: %w", err)
	}

	endpoint := fmt.Sprintf("%s/v1/calendar/latest?symbol=%s", c.baseURL, url.QueryEscape(symbol))

	var payload calendarPayload
	if err := c.http.GetJSON(ctx, endpoint, c.headers(), &payload); err != nil {
		return time.Time{}, fmt.Errorf("fetch latest trading day: %w", err)
	}

	date, err := time.ParseInLocation(contracts.DateFormat, payload.Latest, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("malformed latest trading day %q: %w", payload.Latest, err)
	}

	// Short TTL; the marker flips at the daily settlement rollover.
	if err := c.cache.Set(ctx, redis.TradingDayKey(), payload.Latest, redis.TTLShort); err != nil {
		c.logger.WithError(err).Debug("Trading day cache write failed")
	}

	return date, nil
}
