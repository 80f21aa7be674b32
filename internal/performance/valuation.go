package performance

import (
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/portview/backend/internal/contracts"
)

// ValuationInput carries the immutable inputs for one portfolio series build.
// Transactions must include the user's full history through the end of the
// calendar; holdings at the start of the window depend on everything before it.
type ValuationInput struct {
	Transactions []contracts.Transaction

	// Calendar is the trading-day date domain for the output, ascending.
	// The benchmark's calendar is authoritative here so the simulated series
	// aligns point for point.
	Calendar []time.Time

	// Closes holds daily closes per symbol, ascending. A symbol's history may
	// begin before the calendar; earlier closes seed the forward-fill.
	Closes map[string][]contracts.PricePoint
}

// ValuationResult is the built portfolio series plus diagnostics.
type ValuationResult struct {
	Series contracts.Series

	// MissingHistory lists symbols that were held on at least one calendar day
	// with no close available on or before that day. Those days value the
	// symbol at zero instead of failing the series.
	MissingHistory []string
}

// BuildPortfolioSeries replays the transaction log over the trading calendar
// and values holdings plus cash at each day's close. Missing closes are
// forward-filled from the most recent known close.
func BuildPortfolioSeries(in ValuationInput) (ValuationResult, error) {
	if len(in.Calendar) == 0 {
		return ValuationResult{}, fmt.Errorf("empty trading calendar")
	}

	txns := make([]contracts.Transaction, len(in.Transactions))
	copy(txns, in.Transactions)
	contracts.SortTransactions(txns)

	fills := make(map[string]*closeCursor, len(in.Closes))
	for symbol, points := range in.Closes {
		fills[symbol] = &closeCursor{points: points}
	}

	holdings := make(map[string]decimal.Decimal)
	cash := decimal.Zero
	missing := make(map[string]bool)

	series := make(contracts.Series, 0, len(in.Calendar))
	ti := 0

	for _, d := range in.Calendar {
		d = contracts.Day(d)

		// Apply every transaction up to and including this day, in
		// (date, id) order.
		for ti < len(txns) && !contracts.Day(txns[ti].Date).After(d) {
			applyTransaction(txns[ti], holdings, &cash)
			ti++
		}

		value := cash
		for symbol, shares := range holdings {
			if shares.IsZero() {
				continue
			}

			cursor, ok := fills[symbol]
			if !ok {
				missing[symbol] = true
				continue
			}

			close, known := cursor.at(d)
			if !known {
				// No close on or before this day; the symbol contributes
				// nothing today.
				missing[symbol] = true
				continue
			}

			value = value.Add(shares.Mul(close))
		}

		series = append(series, contracts.SeriesPoint{Date: d, Value: value})
	}

	result := ValuationResult{Series: series}
	for symbol := range missing {
		result.MissingHistory = append(result.MissingHistory, symbol)
	}
	sort.Strings(result.MissingHistory)

	return result, nil
}

func applyTransaction(txn contracts.Transaction, holdings map[string]decimal.Decimal, cash *decimal.Decimal) {
	switch txn.Type {
	case contracts.TxnBuy:
		holdings[txn.Symbol] = holdings[txn.Symbol].Add(txn.Quantity)
		*cash = cash.Sub(txn.Amount)
	case contracts.TxnSell:
		holdings[txn.Symbol] = holdings[txn.Symbol].Sub(txn.Quantity)
		*cash = cash.Add(txn.Amount)
	case contracts.TxnDividend:
		*cash = cash.Add(txn.Amount)
	case contracts.TxnDeposit:
		*cash = cash.Add(txn.Amount)
	case contracts.TxnWithdrawal:
		*cash = cash.Sub(txn.Amount)
	}
}

// closeCursor walks a symbol's close history once, forward-filling the most
// recent known close for each requested day. Days must be requested in
// ascending order.
type closeCursor struct {
	points []contracts.PricePoint
	idx    int
	last   decimal.Decimal
	known  bool
}

func (c *closeCursor) at(d time.Time) (decimal.Decimal, bool) {
	for c.idx < len(c.points) && !contracts.Day(c.points[c.idx].Date).After(d) {
		c.last = c.points[c.idx].Close
		c.known = true
		c.idx++
	}
	return c.last, c.known
}
