package core

import (
	"errors"
	"fmt"
)

// Domain errors - centralized error definitions
var (
	// Fatal for the run
	ErrConfiguration   = errors.New("invalid engine configuration")
	ErrDataUnavailable = errors.New("data source unavailable")

	// Recoverable, per definition or metric
	ErrInsufficientSample  = errors.New("insufficient sample")
	ErrInsufficientMatches = errors.New("insufficient matches")

	ErrUnknownMetric = fmt.Errorf("%w: unknown outcome metric", ErrConfiguration)
)

// NewInsufficientSampleError describes why a treatment definition could not be analysed.
func NewInsufficientSampleError(treated, control int) error {
	return fmt.Errorf("%w: %d treated, %d control (need at least 2 of each)", ErrInsufficientSample, treated, control)
}

// NewInsufficientMatchesError describes a metric whose matched ATT is undefined.
func NewInsufficientMatchesError(matches int) error {
	return fmt.Errorf("%w: %d matched pairs (need at least 2)", ErrInsufficientMatches, matches)
}

// IsRecoverable reports whether err only skips a single definition or metric.
func IsRecoverable(err error) bool {
	return errors.Is(err, ErrInsufficientSample) || errors.Is(err, ErrInsufficientMatches)
}

// IsFatal reports whether err must abort the whole run.
func IsFatal(err error) bool {
	return errors.Is(err, ErrConfiguration) || errors.Is(err, ErrDataUnavailable)
}
