package domain

import "errors"

var (
	// ErrNotFound indicates that the requested box does not exist for the family.
	ErrNotFound = errors.New("box not found")
	// ErrRateUnavailable indicates the benchmark rate could not be fetched and
	// neither a cached nor a configured fallback rate exists. Retryable.
	ErrRateUnavailable = errors.New("benchmark rate unavailable")
	// ErrValidation indicates a malformed box or investment configuration.
	ErrValidation = errors.New("validation failed")
	// ErrInsufficientBalance indicates a withdrawal larger than the balance.
	ErrInsufficientBalance = errors.New("insufficient balance")
	// ErrInvalidInput indicates a malformed movement request.
	ErrInvalidInput = errors.New("invalid input")
	// ErrConflict indicates a concurrent writer saved the box first.
	ErrConflict = errors.New("box was modified concurrently")
)
