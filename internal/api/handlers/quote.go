package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"github.com/portview/backend/internal/marketdata"
	"github.com/portview/backend/pkg/logger"
)

// QuoteHandler serves the latest known price for a symbol. Live quotes come
// from the realtime cache; with no live feed it falls back to the latest
// settled daily close.
type QuoteHandler struct {
	quotes *marketdata.QuoteCache
	prices *marketdata.Service
	logger *logger.Logger
}

// NewQuoteHandler creates a new quote handler. The quote cache may be nil when
// the realtime feed is not running.
func NewQuoteHandler(quotes *marketdata.QuoteCache, prices *marketdata.Service, log *logger.Logger) *QuoteHandler {
	return &QuoteHandler{
		quotes: quotes,
		prices: prices,
		logger: log,
	}
}

// GetQuote returns the latest price for a symbol.
// GET /api/quotes/{symbol}
func (h *QuoteHandler) GetQuote(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	symbol := strings.ToUpper(mux.Vars(r)["symbol"])
	if symbol == "" {
		respondError(w, http.StatusBadRequest, "Missing symbol")
		return
	}

	if h.quotes != nil {
		if quote, ok := h.quotes.Get(symbol); ok {
			respondJSON(w, http.StatusOK, quote)
			return
		}
	}

	day, err := h.prices.LatestTradingDay(ctx, symbol)
	if err != nil {
		h.logger.WithError(err).WithField("symbol", symbol).Error("Failed to resolve trading day")
		respondError(w, http.StatusBadGateway, "Market data unavailable")
		return
	}

	close, found, err := h.prices.GetDailyClose(ctx, symbol, day)
	if err != nil {
		h.logger.WithError(err).WithField("symbol", symbol).Error("Failed to fetch daily close")
		respondError(w, http.StatusBadGateway, "Market data unavailable")
		return
	}
	if !found {
		respondError(w, http.StatusNotFound, "No price history for symbol")
		return
	}

	respondJSON(w, http.StatusOK, marketdata.Quote{
		Symbol:    symbol,
		Price:     close,
		Timestamp: day.Add(21 * time.Hour), // US close, 16:00 ET in UTC
		Stale:     true,
	})
}
