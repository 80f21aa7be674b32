package contracts

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func point(y int, m time.Month, d int, v string) SeriesPoint {
	return SeriesPoint{Date: day(y, m, d), Value: decimal.RequireFromString(v)}
}

func validEntry() *CacheEntry {
	return &CacheEntry{
		UserID:    "u-1",
		Benchmark: "SPY",
		Range:     Range1M,
		AsOfDate:  day(2024, 3, 4),
		PortfolioValues: Series{
			point(2024, 3, 1, "10000"),
			point(2024, 3, 4, "10150.25"),
		},
		IndexValues: Series{
			point(2024, 3, 1, "10000"),
			point(2024, 3, 4, "10080.5"),
		},
	}
}

func TestCacheEntry_Validate(t *testing.T) {
	if err := validEntry().Validate(); err != nil {
		t.Errorf("Validate() error = %v", err)
	}
}

func TestCacheEntry_Validate_EmptySeries(t *testing.T) {
	e := validEntry()
	e.IndexValues = nil
	if err := e.Validate(); err == nil {
		t.Error("Expected error for empty index series")
	}
}

func TestCacheEntry_Validate_DateDomainMismatch(t *testing.T) {
	e := validEntry()
	e.IndexValues = Series{
		point(2024, 3, 1, "10000"),
		point(2024, 3, 5, "10080.5"),
	}
	e.AsOfDate = day(2024, 3, 5)
	if err := e.Validate(); err == nil {
		t.Error("Expected error for mismatched date domains")
	}
}

func TestCacheEntry_Validate_AsOfDateMismatch(t *testing.T) {
	e := validEntry()
	e.AsOfDate = day(2024, 3, 1)
	if err := e.Validate(); err == nil {
		t.Error("Expected error when as_of_date is not the final series date")
	}
}

func TestCacheEntry_Validate_UnsortedSeries(t *testing.T) {
	e := validEntry()
	e.PortfolioValues = Series{
		point(2024, 3, 4, "10150.25"),
		point(2024, 3, 1, "10000"),
	}
	if err := e.Validate(); err == nil {
		t.Error("Expected error for unsorted series")
	}
}

func TestCacheKey(t *testing.T) {
	if got := CacheKey("u-1", "SPY", Range1Y); got != "u-1:SPY:1Y" {
		t.Errorf("CacheKey() = %q", got)
	}
}

func TestSeriesPoint_JSONRoundTrip(t *testing.T) {
	p := point(2024, 3, 1, "10150.25")

	data, err := json.Marshal(p)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}

	want := `{"date":"2024-03-01","value":"10150.25"}`
	if string(data) != want {
		t.Errorf("Marshal() = %s, want %s", data, want)
	}

	var back SeriesPoint
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}

	if !back.Date.Equal(p.Date) || !back.Value.Equal(p.Value) {
		t.Errorf("Round trip mismatch: %+v", back)
	}
}

func TestSortTransactions(t *testing.T) {
	txns := []Transaction{
		{ID: 3, Date: day(2024, 3, 1)},
		{ID: 1, Date: day(2024, 3, 1)},
		{ID: 2, Date: day(2024, 2, 1)},
	}

	SortTransactions(txns)

	wantIDs := []int64{2, 1, 3}
	for i, want := range wantIDs {
		if txns[i].ID != want {
			t.Errorf("txns[%d].ID = %d, want %d", i, txns[i].ID, want)
		}
	}
}
