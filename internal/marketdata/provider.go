package marketdata

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/portview/backend/internal/contracts"
)

// Provider serves settled price history and the trading calendar. The
// forward-fill policy for missing closes belongs to the consumers, not here;
// a provider reports only what actually traded.
type Provider interface {
	// GetCloses returns daily closes for [from, to], ascending. Non-trading
	// days are absent, never zero-filled.
	GetCloses(ctx context.Context, symbol string, from, to time.Time) ([]contracts.PricePoint, error)

	// GetDailyClose returns the close for one symbol and day; ok is false
	// when the day has no close for the symbol.
	GetDailyClose(ctx context.Context, symbol string, date time.Time) (decimal.Decimal, bool, error)

	// LatestTradingDay returns the most recent completed trading day for the
	// symbol's market.
	LatestTradingDay(ctx context.Context, symbol string) (time.Time, error)
}

// Quote is a live price tick from the streaming feed. Quotes never feed the
// historical series; they only serve dashboard tiles.
type Quote struct {
	Symbol    string          `json:"symbol"`
	Price     decimal.Decimal `json:"price"`
	Timestamp time.Time       `json:"timestamp"`
	Stale     bool            `json:"stale,omitempty"`
}
