package amm

import (
	"math"
)

// weightSumTolerance bounds |w0 + w1 - 1|.
const weightSumTolerance = 1e-9

// WeightedProduct is a Balancer-style pool: r0^w0 * r1^w1 = k.
type WeightedProduct struct {
	reserves  Reserves
	weights   [2]float64
	invariant float64
}

// NewWeightedProduct creates a weighted pool. Weights must lie in (0, 1) and sum to 1.
func NewWeightedProduct(reserves Reserves, weights [2]float64) (*WeightedProduct, error) {
	if err := validateReserves(reserves); err != nil {
		return nil, err
	}
	for idx, w := range weights {
		if math.IsNaN(w) || w <= 0 || w >= 1 {
			return nil, configErrorf("weight %d must be in (0, 1), got %g", idx, w)
		}
	}
	if math.Abs(weights[0]+weights[1]-1) > weightSumTolerance {
		return nil, configErrorf("weights must sum to 1, got %g + %g", weights[0], weights[1])
	}

	p := &WeightedProduct{reserves: reserves, weights: weights}
	p.invariant = p.InvariantOf(reserves)
	announce(p)
	return p, nil
}

// Family returns FamilyWeightedProduct.
func (p *WeightedProduct) Family() Family { return FamilyWeightedProduct }

// Reserves returns the current reserves.
func (p *WeightedProduct) Reserves() Reserves { return p.reserves }

// Invariant returns k.
func (p *WeightedProduct) Invariant() float64 { return p.invariant }

// Weights returns (w0, w1).
func (p *WeightedProduct) Weights() [2]float64 { return p.weights }

// InvariantOf evaluates r0^w0 * r1^w1 for arbitrary reserves.
func (p *WeightedProduct) InvariantOf(r Reserves) float64 {
	return math.Pow(r[0], p.weights[0]) * math.Pow(r[1], p.weights[1])
}

// ComputeTradeQtyOut solves r_i'^{w_i} * r_j'^{w_j} = k for r_j'.
func (p *WeightedProduct) ComputeTradeQtyOut(xIn float64, i, j int) (float64, float64, error) {
	if err := checkPair(i, j); err != nil {
		return 0, 0, err
	}
	ri, err := shiftedInput(p.reserves, xIn, i)
	if err != nil {
		return 0, 0, err
	}
	rj := math.Pow(p.invariant/math.Pow(ri, p.weights[i]), 1/p.weights[j])
	if math.IsInf(rj, 0) || math.IsNaN(rj) {
		return 0, 0, domainErrorf("reserve %d overflows at r_%d = %g", j, i, ri)
	}
	return ri, rj, nil
}

// MarginalPrice returns (w_i / w_j) * (rj / ri).
func (p *WeightedProduct) MarginalPrice(ri, rj float64, i, j int) (float64, error) {
	if err := checkPair(i, j); err != nil {
		return 0, err
	}
	if ri <= 0 || rj <= 0 {
		return 0, domainErrorf("marginal price undefined at (%g, %g)", ri, rj)
	}
	return (p.weights[i] / p.weights[j]) * (rj / ri), nil
}

// ExecuteTrade commits a trade of xIn token i for token j.
func (p *WeightedProduct) ExecuteTrade(xIn float64, i, j int) (TradeEvent, error) {
	return executeTrade(p, xIn, i, j, 0, p.commit)
}

// AddLiquidity deposits x0 of token 0 and x1 of token 1.
func (p *WeightedProduct) AddLiquidity(x0, x1 float64) (LiquidityEvent, error) {
	return addLiquidity(p, x0, x1, p.commit)
}

func (p *WeightedProduct) commit(r Reserves) (float64, error) {
	p.reserves = r
	p.invariant = p.InvariantOf(r)
	return p.invariant, nil
}

// Clone returns an independent copy.
func (p *WeightedProduct) Clone() Pool {
	cp := *p
	return &cp
}
