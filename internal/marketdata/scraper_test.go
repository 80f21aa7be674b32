package marketdata

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

const historyFixture = `
<html><body>
<table class="history">
<thead><tr><th>Date</th><th>Open</th><th>High</th><th>Low</th><th>Close</th></tr></thead>
<tbody>
<tr><td>2024-03-05</td><td>512.00</td><td>516.40</td><td>511.10</td><td>515.10</td></tr>
<tr><td>2024-03-04</td><td>510.50</td><td>512.30</td><td>509.00</td><td>511.00</td></tr>
<tr><td>2024-03-01</td><td>508.00</td><td>511.00</td><td>507.20</td><td>1,510.25</td></tr>
<tr><td>holiday</td><td>-</td><td>-</td><td>-</td><td>-</td></tr>
</tbody>
</table>
</body></html>`

func TestParseHistoryHTML(t *testing.T) {
	points, oldest, err := parseHistoryHTML(historyFixture)
	require.NoError(t, err)
	require.Len(t, points, 3, "malformed rows are skipped")

	assert.Equal(t, "2024-03-01", oldest.Format("2006-01-02"))

	// Rows come newest first off the page.
	assert.Equal(t, "2024-03-05", points[0].Date.Format("2006-01-02"))
	assert.True(t, points[0].Close.Equal(dec("515.10")))

	// Thousands separators are stripped.
	assert.True(t, points[2].Close.Equal(dec("1510.25")))
}

func TestParseHistoryHTML_Empty(t *testing.T) {
	points, oldest, err := parseHistoryHTML("<html><body><p>no data</p></body></html>")
	require.NoError(t, err)
	assert.Empty(t, points)
	assert.True(t, oldest.IsZero())
}
