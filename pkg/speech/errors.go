package speech

import (
	"errors"
	"fmt"
)

// Sentinel errors for common conditions.
var (
	// ErrNoAPIKey is returned when the API key is missing.
	ErrNoAPIKey = errors.New("speech: API key required")

	// ErrEmptyText is returned for blank synthesis input.
	ErrEmptyText = errors.New("speech: empty text")

	// ErrTierUnavailable marks a tier filtered out before any attempt.
	ErrTierUnavailable = errors.New("speech: tier unavailable")

	// ErrUnknownTier is returned when a forced tier does not exist.
	ErrUnknownTier = errors.New("speech: unknown tier")
)

// TierError wraps a failed synthesis attempt with tier context.
type TierError struct {
	Tier string
	Err  error
}

// Error implements the error interface.
func (e *TierError) Error() string {
	return fmt.Sprintf("speech [%s]: %v", e.Tier, e.Err)
}

// Unwrap returns the underlying error.
func (e *TierError) Unwrap() error {
	return e.Err
}

// WrapError wraps an error with tier context.
func WrapError(tier string, err error) error {
	if err == nil {
		return nil
	}
	return &TierError{Tier: tier, Err: err}
}
