// Package amm models two-token AMM pools under four invariant families and
// solves their conservation functions for trade outputs.
package amm

import (
	"math"
)

// Family identifies the invariant family of a pool.
type Family string

const (
	FamilyConstantProduct Family = "constant_product" // Uniswap
	FamilyWeightedProduct Family = "weighted_product" // Balancer
	FamilyStableSwap      Family = "stable_swap"      // Curve
	FamilyPMM             Family = "pmm"              // Dodo
)

// Reserves holds the pool balances of token 0 and token 1.
type Reserves [2]float64

// ExchangeRate returns r[1]/r[0], the price of token 0 in units of token 1
// implied by the reserve ratio.
func (r Reserves) ExchangeRate() float64 {
	return r[1] / r[0]
}

// TradeRequest is a signed input quantity of token In sent to the pool for token Out.
// A negative quantity probes the withdrawal side of the curve.
type TradeRequest struct {
	In  int
	Out int
	Qty float64
}

// Model is the read-only state every pool exposes.
type Model interface {
	Family() Family
	Reserves() Reserves
	Invariant() float64
}

// ConservationCurve is the query surface shared by all families. Implementations
// must not mutate state in any of these methods.
type ConservationCurve interface {
	Model

	// ComputeTradeQtyOut adds xIn to reserve i and solves the invariant for
	// reserve j. It returns the new reserves (r_i', r_j'), not the delta.
	ComputeTradeQtyOut(xIn float64, i, j int) (float64, float64, error)

	// MarginalPrice is -dr_j/dr_i on the pool's current curve at (ri, rj):
	// the price of token i in units of token j.
	MarginalPrice(ri, rj float64, i, j int) (float64, error)
}

// Pool is a ConservationCurve that also supports state transitions.
type Pool interface {
	ConservationCurve

	ExecuteTrade(xIn float64, i, j int) (TradeEvent, error)
	AddLiquidity(x0, x1 float64) (LiquidityEvent, error)

	// Clone returns an independent copy for concurrent read-only use.
	Clone() Pool
}

// Anchored is implemented by price-anchored models that need an oracle price
// before they can act as a Pool.
type Anchored interface {
	Model
	At(oraclePrice float64) Pool
}

// SpotPrice is the marginal price of token i in units of token j at the current reserves.
func SpotPrice(c ConservationCurve, i, j int) (float64, error) {
	if err := checkPair(i, j); err != nil {
		return 0, err
	}
	r := c.Reserves()
	return c.MarginalPrice(r[i], r[j], i, j)
}

// checkPair validates a token index pair.
func checkPair(i, j int) error {
	if i < 0 || i > 1 || j < 0 || j > 1 {
		return domainErrorf("token index out of range (i=%d, j=%d)", i, j)
	}
	if i == j {
		return domainErrorf("input and output token are the same (%d)", i)
	}
	return nil
}

// validateReserves checks construction-time reserves.
func validateReserves(r Reserves) error {
	for idx, v := range r {
		if math.IsNaN(v) || math.IsInf(v, 0) || v <= 0 {
			return configErrorf("reserve %d must be positive and finite, got %g", idx, v)
		}
	}
	return nil
}

// validateAmounts checks liquidity deposit amounts.
func validateAmounts(x0, x1 float64) error {
	for idx, v := range [2]float64{x0, x1} {
		if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
			return domainErrorf("liquidity amount %d must be non-negative and finite, got %g", idx, v)
		}
	}
	return nil
}

// shiftedInput returns r_i + xIn, failing when the reserve would leave (0, inf).
func shiftedInput(r Reserves, xIn float64, i int) (float64, error) {
	if math.IsNaN(xIn) || math.IsInf(xIn, 0) {
		return 0, domainErrorf("input quantity must be finite, got %g", xIn)
	}
	ri := r[i] + xIn
	if ri <= 0 {
		return 0, domainErrorf("reserve %d would become %g", i, ri)
	}
	return ri, nil
}

// withPair returns a copy of r with positions i and j set.
func withPair(r Reserves, i, j int, ri, rj float64) Reserves {
	r[i] = ri
	r[j] = rj
	return r
}
