package amm

import (
	"errors"
	"fmt"
)

var (
	// ErrConfig is returned by constructors for invalid reserves or parameters.
	ErrConfig = errors.New("invalid pool configuration")

	// ErrDomain is returned when a trade would drive a reserve to zero or below,
	// or would need a fractional power of a non-positive base.
	ErrDomain = errors.New("trade outside curve domain")

	// ErrConvergence is returned when an iterative solver fails to reach its tolerance.
	ErrConvergence = errors.New("solver did not converge")
)

// ConvergenceError describes a failed fixed-point iteration.
type ConvergenceError struct {
	Solver     string
	Iterations int
	LastStep   float64
	Reason     string
}

func (e *ConvergenceError) Error() string {
	return fmt.Sprintf("%s: %s after %d iterations (last step %g): %s",
		ErrConvergence, e.Solver, e.Iterations, e.LastStep, e.Reason)
}

// Unwrap lets errors.Is match ErrConvergence.
func (e *ConvergenceError) Unwrap() error {
	return ErrConvergence
}

func configErrorf(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{ErrConfig}, args...)...)
}

func domainErrorf(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{ErrDomain}, args...)...)
}

// IsDomainError reports whether err is a per-call domain failure.
func IsDomainError(err error) bool {
	return errors.Is(err, ErrDomain)
}

// IsConvergenceError reports whether err came from a non-converged solver.
func IsConvergenceError(err error) bool {
	return errors.Is(err, ErrConvergence)
}
