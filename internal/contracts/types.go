package contracts

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// DateFormat is the wire format for trading dates.
const DateFormat = "2006-01-02"

// TransactionType identifies the kind of ledger event.
type TransactionType string

const (
	TxnBuy        TransactionType = "buy"
	TxnSell       TransactionType = "sell"
	TxnDividend   TransactionType = "dividend"
	TxnDeposit    TransactionType = "deposit"
	TxnWithdrawal TransactionType = "withdrawal"
)

// IsCashFlow reports whether the transaction moves money into or out of the
// account from outside. Buys, sells and dividends shuffle value inside the
// account and are not external flows.
func (t TransactionType) IsCashFlow() bool {
	return t == TxnDeposit || t == TxnWithdrawal
}

// Transaction is a confirmed ledger event from the transaction store.
// The store is authoritative; transactions are immutable once confirmed.
type Transaction struct {
	ID       int64           `json:"id"`
	UserID   string          `json:"user_id"`
	Date     time.Time       `json:"date"`
	Type     TransactionType `json:"type"`
	Symbol   string          `json:"symbol,omitempty"`
	Quantity decimal.Decimal `json:"quantity"`
	Price    decimal.Decimal `json:"price"`
	Amount   decimal.Decimal `json:"amount"`
}

// SortTransactions orders transactions chronologically, breaking same-day
// ties by insertion id so replay is deterministic.
func SortTransactions(txns []Transaction) {
	sort.SliceStable(txns, func(i, j int) bool {
		if !txns[i].Date.Equal(txns[j].Date) {
			return txns[i].Date.Before(txns[j].Date)
		}
		return txns[i].ID < txns[j].ID
	})
}

// PricePoint is a settled daily close for one symbol.
type PricePoint struct {
	Date  time.Time       `json:"date"`
	Close decimal.Decimal `json:"close"`
}

// SeriesPoint is one valuation sample of a time series.
type SeriesPoint struct {
	Date  time.Time
	Value decimal.Decimal
}

type seriesPointJSON struct {
	Date  string          `json:"date"`
	Value decimal.Decimal `json:"value"`
}

// MarshalJSON encodes the date as YYYY-MM-DD.
func (p SeriesPoint) MarshalJSON() ([]byte, error) {
	return json.Marshal(seriesPointJSON{
		Date:  p.Date.Format(DateFormat),
		Value: p.Value,
	})
}

// UnmarshalJSON decodes the YYYY-MM-DD date representation.
func (p *SeriesPoint) UnmarshalJSON(data []byte) error {
	var raw seriesPointJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	date, err := time.ParseInLocation(DateFormat, raw.Date, time.UTC)
	if err != nil {
		return fmt.Errorf("invalid series date %q: %w", raw.Date, err)
	}

	p.Date = date
	p.Value = raw.Value
	return nil
}

// Series is an ordered sequence of valuation samples, one per trading day,
// strictly increasing in date.
type Series []SeriesPoint

// Last returns the final point of the series.
func (s Series) Last() (SeriesPoint, bool) {
	if len(s) == 0 {
		return SeriesPoint{}, false
	}
	return s[len(s)-1], true
}

// Dates returns the date domain of the series.
func (s Series) Dates() []time.Time {
	dates := make([]time.Time, len(s))
	for i, p := range s {
		dates[i] = p.Date
	}
	return dates
}

// Validate checks that the series is non-empty and strictly increasing in date.
func (s Series) Validate() error {
	if len(s) == 0 {
		return fmt.Errorf("series is empty")
	}

	for i := 1; i < len(s); i++ {
		if !s[i].Date.After(s[i-1].Date) {
			return fmt.Errorf("series dates not strictly increasing at index %d (%s)", i, s[i].Date.Format(DateFormat))
		}
	}

	return nil
}

// SameDates reports whether two series cover the identical date domain.
func (s Series) SameDates(other Series) bool {
	if len(s) != len(other) {
		return false
	}
	for i := range s {
		if !s[i].Date.Equal(other[i].Date) {
			return false
		}
	}
	return true
}

// Day normalizes a timestamp to midnight UTC so calendar comparisons are
// independent of the wall clock the data arrived with.
func Day(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
