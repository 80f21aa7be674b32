package contracts

import (
	"errors"
	"testing"
	"time"
)

func TestParseRange(t *testing.T) {
	for _, r := range Ranges {
		got, err := ParseRange(string(r))
		if err != nil {
			t.Errorf("ParseRange(%q) error = %v", r, err)
		}
		if got != r {
			t.Errorf("ParseRange(%q) = %v", r, got)
		}
	}
}

func TestParseRange_Invalid(t *testing.T) {
	for _, s := range []string{"", "2W", "1m", "ALL", "ytd"} {
		_, err := ParseRange(s)
		if err == nil {
			t.Errorf("ParseRange(%q) expected error", s)
			continue
		}
		if !errors.Is(err, ErrInvalidRange) {
			t.Errorf("ParseRange(%q) error = %v, want ErrInvalidRange", s, err)
		}
	}
}

func TestRangeStart(t *testing.T) {
	asOf := time.Date(2024, 6, 14, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		rng  Range
		want time.Time
	}{
		{Range7D, time.Date(2024, 6, 7, 0, 0, 0, 0, time.UTC)},
		{Range1M, time.Date(2024, 5, 14, 0, 0, 0, 0, time.UTC)},
		{Range6M, time.Date(2023, 12, 14, 0, 0, 0, 0, time.UTC)},
		{RangeYTD, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)},
		{Range1Y, time.Date(2023, 6, 14, 0, 0, 0, 0, time.UTC)},
		{Range5Y, time.Date(2019, 6, 14, 0, 0, 0, 0, time.UTC)},
	}

	for _, tt := range tests {
		t.Run(string(tt.rng), func(t *testing.T) {
			if got := tt.rng.Start(asOf); !got.Equal(tt.want) {
				t.Errorf("Start() = %s, want %s", got.Format(DateFormat), tt.want.Format(DateFormat))
			}
		})
	}
}

func TestRangeStart_Max(t *testing.T) {
	asOf := time.Date(2024, 6, 14, 0, 0, 0, 0, time.UTC)
	if got := RangeMax.Start(asOf); !got.IsZero() {
		t.Errorf("RangeMax.Start() = %v, want zero time", got)
	}
}
