package performance

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/portview/backend/internal/contracts"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func closes(points ...contracts.PricePoint) []contracts.PricePoint {
	return points
}

func pp(y int, m time.Month, d int, close string) contracts.PricePoint {
	return contracts.PricePoint{Date: day(y, m, d), Close: dec(close)}
}

func TestBuildPortfolioSeries_BuyAndHold(t *testing.T) {
	txns := []contracts.Transaction{
		{ID: 1, Date: day(2024, 3, 1), Type: contracts.TxnDeposit, Amount: dec("10000")},
		{ID: 2, Date: day(2024, 3, 1), Type: contracts.TxnBuy, Symbol: "AAA", Quantity: dec("100"), Amount: dec("10000")},
	}

	result, err := BuildPortfolioSeries(ValuationInput{
		Transactions: txns,
		Calendar:     []time.Time{day(2024, 3, 1), day(2024, 3, 4), day(2024, 3, 5)},
		Closes: map[string][]contracts.PricePoint{
			"AAA": closes(pp(2024, 3, 1, "100"), pp(2024, 3, 4, "102"), pp(2024, 3, 5, "101.50")),
		},
	})
	require.NoError(t, err)
	require.Len(t, result.Series, 3)

	assert.True(t, result.Series[0].Value.Equal(dec("10000")), "got %s", result.Series[0].Value)
	assert.True(t, result.Series[1].Value.Equal(dec("10200")), "got %s", result.Series[1].Value)
	assert.True(t, result.Series[2].Value.Equal(dec("10150")), "got %s", result.Series[2].Value)
	assert.Empty(t, result.MissingHistory)
}

func TestBuildPortfolioSeries_ForwardFill(t *testing.T) {
	txns := []contracts.Transaction{
		{ID: 1, Date: day(2024, 3, 1), Type: contracts.TxnDeposit, Amount: dec("1000")},
		{ID: 2, Date: day(2024, 3, 1), Type: contracts.TxnBuy, Symbol: "AAA", Quantity: dec("10"), Amount: dec("1000")},
	}

	// No AAA close on Mar 4; the Mar 1 close carries forward.
	result, err := BuildPortfolioSeries(ValuationInput{
		Transactions: txns,
		Calendar:     []time.Time{day(2024, 3, 1), day(2024, 3, 4), day(2024, 3, 5)},
		Closes: map[string][]contracts.PricePoint{
			"AAA": closes(pp(2024, 3, 1, "100"), pp(2024, 3, 5, "110")),
		},
	})
	require.NoError(t, err)
	require.Len(t, result.Series, 3)

	assert.True(t, result.Series[1].Value.Equal(dec("1000")), "forward-filled value, got %s", result.Series[1].Value)
	assert.True(t, result.Series[2].Value.Equal(dec("1100")), "got %s", result.Series[2].Value)
	assert.Empty(t, result.MissingHistory)
}

func TestBuildPortfolioSeries_NoPriceHistory(t *testing.T) {
	// A newly listed symbol with zero close history contributes nothing and
	// is flagged, but the series still builds.
	txns := []contracts.Transaction{
		{ID: 1, Date: day(2024, 3, 1), Type: contracts.TxnDeposit, Amount: dec("5000")},
		{ID: 2, Date: day(2024, 3, 1), Type: contracts.TxnBuy, Symbol: "AAA", Quantity: dec("10"), Amount: dec("1000")},
		{ID: 3, Date: day(2024, 3, 1), Type: contracts.TxnBuy, Symbol: "NEW", Quantity: dec("50"), Amount: dec("2000")},
	}

	result, err := BuildPortfolioSeries(ValuationInput{
		Transactions: txns,
		Calendar:     []time.Time{day(2024, 3, 1), day(2024, 3, 4)},
		Closes: map[string][]contracts.PricePoint{
			"AAA": closes(pp(2024, 3, 1, "100"), pp(2024, 3, 4, "100")),
			"NEW": nil,
		},
	})
	require.NoError(t, err)
	require.Len(t, result.Series, 2)

	// cash 2000 + AAA 1000; NEW contributes zero
	assert.True(t, result.Series[0].Value.Equal(dec("3000")), "got %s", result.Series[0].Value)
	assert.Equal(t, []string{"NEW"}, result.MissingHistory)
}

func TestBuildPortfolioSeries_SellAndDividend(t *testing.T) {
	txns := []contracts.Transaction{
		{ID: 1, Date: day(2024, 3, 1), Type: contracts.TxnDeposit, Amount: dec("10000")},
		{ID: 2, Date: day(2024, 3, 1), Type: contracts.TxnBuy, Symbol: "AAA", Quantity: dec("100"), Amount: dec("10000")},
		{ID: 3, Date: day(2024, 3, 4), Type: contracts.TxnSell, Symbol: "AAA", Quantity: dec("40"), Amount: dec("4200")},
		{ID: 4, Date: day(2024, 3, 5), Type: contracts.TxnDividend, Symbol: "AAA", Amount: dec("30")},
	}

	result, err := BuildPortfolioSeries(ValuationInput{
		Transactions: txns,
		Calendar:     []time.Time{day(2024, 3, 1), day(2024, 3, 4), day(2024, 3, 5)},
		Closes: map[string][]contracts.PricePoint{
			"AAA": closes(pp(2024, 3, 1, "100"), pp(2024, 3, 4, "105"), pp(2024, 3, 5, "105")),
		},
	})
	require.NoError(t, err)

	// Mar 4: cash 4200 + 60 shares * 105 = 10500
	assert.True(t, result.Series[1].Value.Equal(dec("10500")), "got %s", result.Series[1].Value)
	// Mar 5: cash 4230 + 6300
	assert.True(t, result.Series[2].Value.Equal(dec("10530")), "got %s", result.Series[2].Value)
}

func TestBuildPortfolioSeries_SameDayOrderDeterministic(t *testing.T) {
	// Same-day transactions apply in id order regardless of slice order.
	txns := []contracts.Transaction{
		{ID: 2, Date: day(2024, 3, 1), Type: contracts.TxnBuy, Symbol: "AAA", Quantity: dec("10"), Amount: dec("1000")},
		{ID: 1, Date: day(2024, 3, 1), Type: contracts.TxnDeposit, Amount: dec("1000")},
	}

	result, err := BuildPortfolioSeries(ValuationInput{
		Transactions: txns,
		Calendar:     []time.Time{day(2024, 3, 1)},
		Closes: map[string][]contracts.PricePoint{
			"AAA": closes(pp(2024, 3, 1, "100")),
		},
	})
	require.NoError(t, err)
	assert.True(t, result.Series[0].Value.Equal(dec("1000")), "got %s", result.Series[0].Value)
}

func TestBuildPortfolioSeries_EmptyCalendar(t *testing.T) {
	_, err := BuildPortfolioSeries(ValuationInput{})
	assert.Error(t, err)
}
