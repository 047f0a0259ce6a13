package amm

import (
	"math"
)

const (
	// SolverTolerance is the relative step size at which the stable-swap
	// iterations are considered converged.
	SolverTolerance = 1e-10

	// SolverMaxIterations bounds every stable-swap iteration.
	SolverMaxIterations = 255
)

// SolveD returns the stable-swap invariant D for two reserves and amplification A:
//
//	A n^n (x + y) + D = A D n^n + D^(n+1) / (n^n x y),  n = 2
//
// It iterates D <- (Ann S + n D_P) D / ((Ann - 1) D + (n+1) D_P) from D = S.
func SolveD(r Reserves, amp float64) (float64, error) {
	if math.IsNaN(amp) || math.IsInf(amp, 0) || amp < 0 {
		return 0, configErrorf("amplification must be finite and >= 0, got %g", amp)
	}
	if r[0] < 0 || r[1] < 0 {
		return 0, domainErrorf("negative reserves (%g, %g)", r[0], r[1])
	}

	s := r[0] + r[1]
	if s == 0 {
		return 0, nil
	}

	ann := amp * 4
	d := s
	var step float64
	for it := 1; it <= SolverMaxIterations; it++ {
		dp := d * d * d / (4 * r[0] * r[1])
		next := (ann*s + 2*dp) * d / ((ann-1)*d + 3*dp)
		if !isFinite(next) || next <= 0 {
			return 0, &ConvergenceError{
				Solver:     "stableswap.D",
				Iterations: it,
				LastStep:   step,
				Reason:     "iterate left the positive reals",
			}
		}
		step = next - d
		d = next
		if math.Abs(step) <= SolverTolerance*d {
			return d, nil
		}
	}
	return 0, &ConvergenceError{
		Solver:     "stableswap.D",
		Iterations: SolverMaxIterations,
		LastStep:   step,
		Reason:     "iteration bound reached",
	}
}

// SolveY returns the reserve y that keeps D constant when the other reserve is x.
//
// The update is a Newton step on the invariant multiplied through by 4x,
//
//	g(y) = 4A y^2 + (4A x + D - 4A D) y - D^3 / (4x)
//
// which stays defined at A = 0, where it reduces to y = D^2 / (4x).
func SolveY(x, d, amp float64) (float64, error) {
	if math.IsNaN(amp) || math.IsInf(amp, 0) || amp < 0 {
		return 0, configErrorf("amplification must be finite and >= 0, got %g", amp)
	}
	if x < 0 || d <= 0 || !isFinite(d) {
		return 0, domainErrorf("invalid stable-swap state (x=%g, D=%g)", x, d)
	}

	a4 := 4 * amp
	b := a4*x + d - a4*d
	c := d * d * d / (4 * x)

	y := d
	var step float64
	for it := 1; it <= SolverMaxIterations; it++ {
		g := a4*y*y + b*y - c
		dg := 2*a4*y + b
		next := y - g/dg
		if !isFinite(next) || next <= 0 {
			return 0, &ConvergenceError{
				Solver:     "stableswap.y",
				Iterations: it,
				LastStep:   step,
				Reason:     "iterate left the positive reals",
			}
		}
		step = next - y
		y = next
		if math.Abs(step) <= SolverTolerance*y {
			return y, nil
		}
	}
	return 0, &ConvergenceError{
		Solver:     "stableswap.y",
		Iterations: SolverMaxIterations,
		LastStep:   step,
		Reason:     "iteration bound reached",
	}
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
