package models

import (
	"errors"
	"fmt"
)

// Sentinel errors for the curve data access contract. Callers match them
// with errors.Is; lower layers wrap them with context via fmt.Errorf("%w").
var (
	// ErrInvalidRange is returned when a requested date range is malformed,
	// e.g. start after end.
	ErrInvalidRange = errors.New("invalid curve range")

	// ErrSourceUnavailable is returned when the upstream download center
	// cannot be reached or keeps failing after the configured retries.
	ErrSourceUnavailable = errors.New("curve source unavailable")

	// ErrNotFound is returned by index lookups for timestamps that are not
	// present in the backing range.
	ErrNotFound = errors.New("curve not found")
)

// ErrMalformedReport marks a report payload that could not be decoded with
// the expected schema. It wraps ErrSourceUnavailable so callers that only
// care about "the fetch failed" can match either sentinel.
var ErrMalformedReport = fmt.Errorf("%w: malformed report", ErrSourceUnavailable)
