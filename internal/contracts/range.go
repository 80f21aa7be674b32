package contracts

import (
	"fmt"
	"time"
)

// Range is a named chart window for the performance read path.
type Range string

const (
	Range7D  Range = "7D"
	Range1M  Range = "1M"
	Range3M  Range = "3M"
	Range6M  Range = "6M"
	RangeYTD Range = "YTD"
	Range1Y  Range = "1Y"
	Range3Y  Range = "3Y"
	Range5Y  Range = "5Y"
	RangeMax Range = "MAX"
)

// Ranges lists every valid range, in display order.
var Ranges = []Range{Range7D, Range1M, Range3M, Range6M, RangeYTD, Range1Y, Range3Y, Range5Y, RangeMax}

// ParseRange validates a range string from a request.
func ParseRange(s string) (Range, error) {
	r := Range(s)
	if !r.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidRange, s)
	}
	return r, nil
}

// Valid reports whether the range is one of the enumerated values.
func (r Range) Valid() bool {
	switch r {
	case Range7D, Range1M, Range3M, Range6M, RangeYTD, Range1Y, Range3Y, Range5Y, RangeMax:
		return true
	}
	return false
}

// Start returns the first calendar day covered by the range, given the last
// completed trading day. For MAX the zero time is returned; the caller clamps
// it to the first transaction date.
func (r Range) Start(asOf time.Time) time.Time {
	asOf = Day(asOf)

	switch r {
	case Range7D:
		return asOf.AddDate(0, 0, -7)
	case Range1M:
		return asOf.AddDate(0, -1, 0)
	case Range3M:
		return asOf.AddDate(0, -3, 0)
	case Range6M:
		return asOf.AddDate(0, -6, 0)
	case RangeYTD:
		return time.Date(asOf.Year(), time.January, 1, 0, 0, 0, 0, time.UTC)
	case Range1Y:
		return asOf.AddDate(-1, 0, 0)
	case Range3Y:
		return asOf.AddDate(-3, 0, 0)
	case Range5Y:
		return asOf.AddDate(-5, 0, 0)
	case RangeMax:
		return time.Time{}
	}

	return time.Time{}
}

func (r Range) String() string {
	return string(r)
}
