// Package analytics derives slippage and divergence loss from any
// amm.ConservationCurve, plus fee-inclusive quoting helpers.
package analytics

import (
	"fmt"
	"math"

	"curvelab/internal/amm"
)

// zeroTradeEpsilon is the input size, relative to the input reserve, below
// which a trade is treated as zero-sized.
const zeroTradeEpsilon = 1e-12

// Weighted is implemented by product-family curves that admit the closed-form
// divergence loss.
type Weighted interface {
	Weights() [2]float64
}

// Sample pairs a divergence loss with the relative price change that caused it.
type Sample struct {
	PriceChange float64
	Loss        float64
}

// Slippage returns the execution price of trading x token i for token j over
// the spot price, minus one. A zero-sized trade returns the analytic limit 0.
func Slippage(c amm.ConservationCurve, x float64, i, j int) (float64, error) {
	spot, err := amm.SpotPrice(c, i, j)
	if err != nil {
		return 0, err
	}

	r := c.Reserves()
	if math.Abs(x) <= zeroTradeEpsilon*r[i] {
		return 0, nil
	}

	_, rj, err := c.ComputeTradeQtyOut(x, i, j)
	if err != nil {
		return 0, err
	}
	execution := (r[j] - rj) / x
	return execution/spot - 1, nil
}

// DivergenceLoss returns the loss of holding the pool position relative to
// holding the tokens. For weighted curves param is the relative price change
// of token i; for every other curve it is a traded quantity of token i.
func DivergenceLoss(c amm.ConservationCurve, param float64, i, j int) (float64, error) {
	s, err := DivergenceLossSample(c, param, i, j)
	if err != nil {
		return 0, err
	}
	return s.Loss, nil
}

// DivergenceLossSample is DivergenceLoss that also reports the relative price
// change, so quantity-driven series can be plotted against price.
func DivergenceLossSample(c amm.ConservationCurve, param float64, i, j int) (Sample, error) {
	if w, ok := c.(Weighted); ok {
		loss, err := ClosedFormDivergenceLoss(w.Weights(), param, i, j)
		if err != nil {
			return Sample{}, err
		}
		return Sample{PriceChange: param, Loss: loss}, nil
	}
	return TradeDivergenceLoss(c, param, i, j)
}

// ClosedFormDivergenceLoss evaluates r^{w_i} / (w_i r + w_j) - 1 with r = 1 + priceChange.
func ClosedFormDivergenceLoss(weights [2]float64, priceChange float64, i, j int) (float64, error) {
	if i < 0 || i > 1 || j < 0 || j > 1 || i == j {
		return 0, fmt.Errorf("%w: token index pair (%d, %d)", amm.ErrDomain, i, j)
	}
	r := 1 + priceChange
	if math.IsNaN(r) || math.IsInf(r, 0) || r < 0 {
		return 0, fmt.Errorf("%w: price ratio %g", amm.ErrDomain, r)
	}
	wi, wj := weights[i], weights[j]
	return math.Pow(r, wi)/(wi*r+wj) - 1, nil
}

// TradeDivergenceLoss trades x token i for token j, reads the new marginal
// price and compares the pool's value with the value of the original holdings,
// both valued in token j at the new price.
func TradeDivergenceLoss(c amm.ConservationCurve, x float64, i, j int) (Sample, error) {
	p0, err := amm.SpotPrice(c, i, j)
	if err != nil {
		return Sample{}, err
	}
	r := c.Reserves()
	ri, rj, err := c.ComputeTradeQtyOut(x, i, j)
	if err != nil {
		return Sample{}, err
	}
	p1, err := c.MarginalPrice(ri, rj, i, j)
	if err != nil {
		return Sample{}, err
	}

	held := r[i]*p1 + r[j]
	pooled := ri*p1 + rj
	return Sample{
		PriceChange: p1/p0 - 1,
		Loss:        pooled/held - 1,
	}, nil
}
