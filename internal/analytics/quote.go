package analytics

import (
	"fmt"
	"math"

	"curvelab/internal/amm"
)

// DefaultFee is the 0.3% swap fee used when a pool does not configure one.
const DefaultFee = 0.003

// Quoter applies a proportional input fee before handing the trade to a curve.
type Quoter struct {
	Curve amm.ConservationCurve
	Fee   float64
}

// NewQuoter creates a Quoter. The fee must lie in [0, 1).
func NewQuoter(c amm.ConservationCurve, fee float64) (*Quoter, error) {
	if err := checkFee(fee); err != nil {
		return nil, err
	}
	return &Quoter{Curve: c, Fee: fee}, nil
}

// AmountOut returns the quantity of token j received for xIn token i after the fee.
func (q *Quoter) AmountOut(xIn float64, i, j int) (float64, error) {
	_, rj, err := q.Curve.ComputeTradeQtyOut(xIn*(1-q.Fee), i, j)
	if err != nil {
		return 0, err
	}
	return q.Curve.Reserves()[j] - rj, nil
}

// GetAmountOut is the closed-form constant-product output after fee:
//
//	x (1 - fee) r_out / (r_in + x (1 - fee))
//
// At fee 0.003 it matches x*997*r_out / (1000*r_in + x*997).
func GetAmountOut(xIn, reserveIn, reserveOut, fee float64) (float64, error) {
	if err := checkFee(fee); err != nil {
		return 0, err
	}
	if xIn <= 0 {
		return 0, fmt.Errorf("%w: insufficient input amount %g", amm.ErrDomain, xIn)
	}
	if reserveIn <= 0 || reserveOut <= 0 {
		return 0, fmt.Errorf("%w: insufficient liquidity (%g, %g)", amm.ErrDomain, reserveIn, reserveOut)
	}
	withFee := xIn * (1 - fee)
	return withFee * reserveOut / (reserveIn + withFee), nil
}

// Quote returns the fee-free proportional amount x * r_j / r_i.
func Quote(x, reserveIn, reserveOut float64) (float64, error) {
	if x <= 0 {
		return 0, fmt.Errorf("%w: insufficient amount %g", amm.ErrDomain, x)
	}
	if reserveIn <= 0 || reserveOut <= 0 {
		return 0, fmt.Errorf("%w: insufficient liquidity (%g, %g)", amm.ErrDomain, reserveIn, reserveOut)
	}
	return x * reserveOut / reserveIn, nil
}

func checkFee(fee float64) error {
	if math.IsNaN(fee) || fee < 0 || fee >= 1 {
		return fmt.Errorf("%w: fee must be in [0, 1), got %g", amm.ErrConfig, fee)
	}
	return nil
}
