package contracts

import "errors"

// Error taxonomy for the performance read path. All three are recoverable at
// the caller; none should crash the serving process.
var (
	// ErrDataUnavailable means transaction or price data could not be fetched
	// or replayed. A rebuild that hits this writes nothing; a prior cache
	// entry, if any, is preserved.
	ErrDataUnavailable = errors.New("performance data unavailable")

	// ErrInvalidRange means the range argument is outside the enumerated set.
	// Rejected before any I/O.
	ErrInvalidRange = errors.New("invalid range")

	// ErrAlignment means the benchmark and portfolio series could not be
	// reconciled to a common date domain, e.g. the benchmark has no price
	// history for the requested window.
	ErrAlignment = errors.New("benchmark alignment failed")
)
