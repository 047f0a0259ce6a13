package sweep

import (
	"fmt"
	"math"
)

// Arange returns start, start+step, ... for every value below stop, the
// half-open range used by the analysis domains. Values are computed as
// start + k*step so long ranges do not accumulate rounding error.
func Arange(start, stop, step float64) ([]float64, error) {
	if step <= 0 || math.IsNaN(step) || math.IsInf(step, 0) {
		return nil, fmt.Errorf("step must be positive and finite, got %g", step)
	}
	if math.IsNaN(start) || math.IsNaN(stop) || math.IsInf(start, 0) || math.IsInf(stop, 0) {
		return nil, fmt.Errorf("bounds must be finite, got [%g, %g)", start, stop)
	}
	if stop <= start {
		return nil, nil
	}

	n := int(math.Ceil((stop - start) / step))
	out := make([]float64, 0, n)
	for k := 0; k < n; k++ {
		v := start + float64(k)*step
		if v >= stop {
			break
		}
		out = append(out, v)
	}
	return out, nil
}
