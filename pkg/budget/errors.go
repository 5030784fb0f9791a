package budget

import (
	"errors"
	"fmt"
)

// ErrExceeded is the sentinel for budget denials.
// Use errors.Is(err, ErrExceeded) to detect them.
var ErrExceeded = errors.New("budget: exceeded")

// Error carries the details of a budget denial. A denial happens locally,
// before any provider call is attempted, and must stay distinguishable
// from a provider failure.
type Error struct {
	Service   string
	Period    Period
	Usage     float64
	Estimated float64
	Limit     float64
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("%s %s budget exceeded (%.4f + %.4f > %.2f)",
		e.Service, e.Period, e.Usage, e.Estimated, e.Limit)
}

// Reason returns the human-readable denial reason without the error prefix.
func (e *Error) Reason() string {
	return e.Error()
}

// Is reports whether target is ErrExceeded.
func (e *Error) Is(target error) bool {
	return target == ErrExceeded
}
