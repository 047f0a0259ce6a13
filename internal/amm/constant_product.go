package amm

// ConstantProduct is a Uniswap-style pool: r0 * r1 = k.
type ConstantProduct struct {
	reserves  Reserves
	invariant float64
}

// NewConstantProduct creates a constant-product pool.
func NewConstantProduct(reserves Reserves) (*ConstantProduct, error) {
	if err := validateReserves(reserves); err != nil {
		return nil, err
	}
	p := &ConstantProduct{reserves: reserves, invariant: constantProductInvariant(reserves)}
	announce(p)
	return p, nil
}

func constantProductInvariant(r Reserves) float64 {
	return r[0] * r[1]
}

// Family returns FamilyConstantProduct.
func (p *ConstantProduct) Family() Family { return FamilyConstantProduct }

// Reserves returns the current reserves.
func (p *ConstantProduct) Reserves() Reserves { return p.reserves }

// Invariant returns k.
func (p *ConstantProduct) Invariant() float64 { return p.invariant }

// Weights reports the implicit equal weighting.
func (p *ConstantProduct) Weights() [2]float64 { return [2]float64{0.5, 0.5} }

// InvariantOf evaluates r0 * r1 for arbitrary reserves.
func (p *ConstantProduct) InvariantOf(r Reserves) float64 {
	return constantProductInvariant(r)
}

// ComputeTradeQtyOut solves r_i' * r_j' = k for r_j'.
func (p *ConstantProduct) ComputeTradeQtyOut(xIn float64, i, j int) (float64, float64, error) {
	if err := checkPair(i, j); err != nil {
		return 0, 0, err
	}
	ri, err := shiftedInput(p.reserves, xIn, i)
	if err != nil {
		return 0, 0, err
	}
	return ri, p.invariant / ri, nil
}

// MarginalPrice returns rj / ri.
func (p *ConstantProduct) MarginalPrice(ri, rj float64, i, j int) (float64, error) {
	if err := checkPair(i, j); err != nil {
		return 0, err
	}
	if ri <= 0 || rj <= 0 {
		return 0, domainErrorf("marginal price undefined at (%g, %g)", ri, rj)
	}
	return rj / ri, nil
}

// ExecuteTrade commits a trade of xIn token i for token j.
func (p *ConstantProduct) ExecuteTrade(xIn float64, i, j int) (TradeEvent, error) {
	return executeTrade(p, xIn, i, j, 0, p.commit)
}

// AddLiquidity deposits x0 of token 0 and x1 of token 1.
func (p *ConstantProduct) AddLiquidity(x0, x1 float64) (LiquidityEvent, error) {
	return addLiquidity(p, x0, x1, p.commit)
}

func (p *ConstantProduct) commit(r Reserves) (float64, error) {
	p.reserves = r
	p.invariant = constantProductInvariant(r)
	return p.invariant, nil
}

// Clone returns an independent copy.
func (p *ConstantProduct) Clone() Pool {
	cp := *p
	return &cp
}
