package performance

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/portview/backend/internal/contracts"
)

// SimulateBenchmark answers "what would this account be worth if every
// external contribution and withdrawal had bought or sold the benchmark at
// that day's close instead".
//
// The simulated share count on the first calendar day is set so that the
// series opens at exactly startValue, the real portfolio's value on that day.
// Without that normalization the two chart lines start apart and the whole
// comparison is misleading.
//
// The benchmark's own calendar is authoritative: cash flows landing on a
// non-trading day are carried forward to the next available close.
func SimulateBenchmark(txns []contracts.Transaction, benchmarkCloses []contracts.PricePoint, startValue decimal.Decimal) (contracts.Series, error) {
	if len(benchmarkCloses) == 0 {
		return nil, fmt.Errorf("%w: no benchmark closes for window", contracts.ErrAlignment)
	}

	startDay := contracts.Day(benchmarkCloses[0].Date)
	startClose := benchmarkCloses[0].Close
	if !startClose.IsPositive() {
		return nil, fmt.Errorf("%w: benchmark close on %s is not positive",
			contracts.ErrAlignment, startDay.Format(contracts.DateFormat))
	}

	// Normalization: shares × close[day1] == portfolio value[day1].
	shares := startValue.Div(startClose)

	// External cash flows after day one, in replay order. Flows on or before
	// day one are already inside startValue.
	flows := make([]contracts.Transaction, 0)
	sorted := make([]contracts.Transaction, len(txns))
	copy(sorted, txns)
	contracts.SortTransactions(sorted)

	for _, txn := range sorted {
		if !txn.Type.IsCashFlow() {
			continue
		}
		if !contracts.Day(txn.Date).After(startDay) {
			continue
		}
		flows = append(flows, txn)
	}

	series := make(contracts.Series, 0, len(benchmarkCloses))
	fi := 0

	for _, pp := range benchmarkCloses {
		d := contracts.Day(pp.Date)
		if !pp.Close.IsPositive() {
			return nil, fmt.Errorf("%w: benchmark close on %s is not positive",
				contracts.ErrAlignment, d.Format(contracts.DateFormat))
		}

		// Convert every flow due on or before this trading day at this
		// day's close. Withdrawals sell shares at the same price.
		for fi < len(flows) && !contracts.Day(flows[fi].Date).After(d) {
			amount := flows[fi].Amount
			if flows[fi].Type == contracts.TxnWithdrawal {
				amount = amount.Neg()
			}
			shares = shares.Add(amount.Div(pp.Close))
			fi++
		}

		series = append(series, contracts.SeriesPoint{
			Date:  d,
			Value: shares.Mul(pp.Close),
		})
	}

	return series, nil
}
