package amm

import (
	"fmt"
	"math"
)

// StableSwap is a two-asset Curve-style pool with amplification A.
// Trades hold D constant; deposits recompute it.
type StableSwap struct {
	reserves  Reserves
	amp       float64
	invariant float64
}

// NewStableSwap creates a stable-swap pool. A must be finite and non-negative.
func NewStableSwap(reserves Reserves, amp float64) (*StableSwap, error) {
	if err := validateReserves(reserves); err != nil {
		return nil, err
	}
	if math.IsNaN(amp) || math.IsInf(amp, 0) || amp < 0 {
		return nil, configErrorf("amplification must be finite and >= 0, got %g", amp)
	}
	d, err := SolveD(reserves, amp)
	if err != nil {
		return nil, fmt.Errorf("%w: computing D: %w", ErrConfig, err)
	}

	p := &StableSwap{reserves: reserves, amp: amp, invariant: d}
	announce(p)
	return p, nil
}

// Family returns FamilyStableSwap.
func (p *StableSwap) Family() Family { return FamilyStableSwap }

// Reserves returns the current reserves.
func (p *StableSwap) Reserves() Reserves { return p.reserves }

// Invariant returns D.
func (p *StableSwap) Invariant() float64 { return p.invariant }

// Amplification returns A.
func (p *StableSwap) Amplification() float64 { return p.amp }

// InvariantOf solves D for arbitrary reserves under this pool's A.
func (p *StableSwap) InvariantOf(r Reserves) (float64, error) {
	return SolveD(r, p.amp)
}

// ComputeTradeQtyOut solves the invariant for r_j' with D held constant.
// A zero input reserve is handed to the solver, which reports non-convergence.
func (p *StableSwap) ComputeTradeQtyOut(xIn float64, i, j int) (float64, float64, error) {
	if err := checkPair(i, j); err != nil {
		return 0, 0, err
	}
	if !isFinite(xIn) {
		return 0, 0, domainErrorf("input quantity must be finite, got %g", xIn)
	}
	ri := p.reserves[i] + xIn
	if ri < 0 {
		return 0, 0, domainErrorf("reserve %d would become %g", i, ri)
	}
	rj, err := SolveY(ri, p.invariant, p.amp)
	if err != nil {
		return 0, 0, err
	}
	return ri, rj, nil
}

// MarginalPrice differentiates the invariant implicitly at (ri, rj):
//
//	-dy/dx = (4A + D^3/(4 x^2 y)) / (4A + D^3/(4 x y^2))
func (p *StableSwap) MarginalPrice(ri, rj float64, i, j int) (float64, error) {
	if err := checkPair(i, j); err != nil {
		return 0, err
	}
	if ri <= 0 || rj <= 0 {
		return 0, domainErrorf("marginal price undefined at (%g, %g)", ri, rj)
	}
	a4 := 4 * p.amp
	d3 := p.invariant * p.invariant * p.invariant
	fx := a4 + d3/(4*ri*ri*rj)
	fy := a4 + d3/(4*ri*rj*rj)
	return fx / fy, nil
}

// ExecuteTrade commits a trade of xIn token i for token j.
func (p *StableSwap) ExecuteTrade(xIn float64, i, j int) (TradeEvent, error) {
	return executeTrade(p, xIn, i, j, 0, p.commitTrade)
}

// AddLiquidity deposits x0 of token 0 and x1 of token 1 and recomputes D.
func (p *StableSwap) AddLiquidity(x0, x1 float64) (LiquidityEvent, error) {
	return addLiquidity(p, x0, x1, p.commitDeposit)
}

func (p *StableSwap) commitTrade(r Reserves) (float64, error) {
	p.reserves = r
	return p.invariant, nil
}

func (p *StableSwap) commitDeposit(r Reserves) (float64, error) {
	d, err := SolveD(r, p.amp)
	if err != nil {
		return 0, err
	}
	p.reserves = r
	p.invariant = d
	return d, nil
}

// Clone returns an independent copy.
func (p *StableSwap) Clone() Pool {
	cp := *p
	return &cp
}
