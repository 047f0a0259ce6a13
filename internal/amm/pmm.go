package amm

import (
	"math"
)

// RegulatorBranch names the PMM regime a reserve state sits in.
type RegulatorBranch int

const (
	BranchEquilibrium RegulatorBranch = iota
	BranchInputShort                  // r_i below its target
	BranchOutputShort                 // r_j below its target
)

func (b RegulatorBranch) String() string {
	switch b {
	case BranchInputShort:
		return "input_short"
	case BranchOutputShort:
		return "output_short"
	default:
		return "equilibrium"
	}
}

// PMM is a Dodo-style proactive market maker. Prices are anchored to an
// oracle price supplied on every call: the price of token 0 in units of token 1.
// The regulator coefficient is k = 1 - A, so A = 1 trades flat at the oracle
// price and A -> 0 approaches a reserve-driven curve.
type PMM struct {
	reserves Reserves
	amp      float64
	anchor   float64 // oracle price of the last trade or deposit
}

// NewPMM creates a PMM pool with A in (0, 1]. The pool starts in equilibrium
// at its reserve-implied price.
func NewPMM(reserves Reserves, amp float64) (*PMM, error) {
	if err := validateReserves(reserves); err != nil {
		return nil, err
	}
	if math.IsNaN(amp) || amp <= 0 || amp > 1 {
		return nil, configErrorf("PMM amplification must be in (0, 1], got %g", amp)
	}

	p := &PMM{
		reserves: reserves,
		amp:      amp,
		anchor:   reserves.ExchangeRate(),
	}
	announce(p)
	return p, nil
}

// Family returns FamilyPMM.
func (p *PMM) Family() Family { return FamilyPMM }

// Reserves returns the current reserves.
func (p *PMM) Reserves() Reserves { return p.reserves }

// Invariant returns the equilibrium value t0*price + t1 at the anchor price.
// Use InvariantAt or a PMMView for any other oracle price.
func (p *PMM) Invariant() float64 {
	inv, err := p.InvariantAt(p.anchor)
	if err != nil {
		return math.NaN()
	}
	return inv
}

// AnchorPrice returns the oracle price of the last committed trade or deposit,
// or the reserve-implied price for a new pool.
func (p *PMM) AnchorPrice() float64 { return p.anchor }

// Amplification returns A.
func (p *PMM) Amplification() float64 { return p.amp }

func (p *PMM) k() float64 { return 1 - p.amp }

// At binds the pool to an oracle price, yielding the common Pool surface.
func (p *PMM) At(oraclePrice float64) Pool {
	return &PMMView{pool: p, oracle: oraclePrice}
}

// Targets returns the oracle-implied equilibrium reserves for the current state.
func (p *PMM) Targets(oraclePrice float64) (Reserves, error) {
	if err := checkOracle(oraclePrice); err != nil {
		return Reserves{}, err
	}
	t0, t1, _ := equilibrium(p.reserves[0], p.reserves[1], oraclePrice, p.k())
	return Reserves{t0, t1}, nil
}

// Branch reports which regulator regime the current reserves are in, seen
// from a trade of token 0 for token 1.
func (p *PMM) Branch(oraclePrice float64) (RegulatorBranch, error) {
	if err := checkOracle(oraclePrice); err != nil {
		return BranchEquilibrium, err
	}
	_, _, b := equilibrium(p.reserves[0], p.reserves[1], oraclePrice, p.k())
	return b, nil
}

// InvariantAt returns the equilibrium value t0*price + t1 in token-1 units.
func (p *PMM) InvariantAt(oraclePrice float64) (float64, error) {
	t, err := p.Targets(oraclePrice)
	if err != nil {
		return 0, err
	}
	return t[0]*oraclePrice + t[1], nil
}

// ComputeTradeQtyOut adds xIn to reserve i and solves the active regulator
// branch for reserve j at the given oracle price.
func (p *PMM) ComputeTradeQtyOut(xIn float64, i, j int, oraclePrice float64) (float64, float64, error) {
	if err := checkPair(i, j); err != nil {
		return 0, 0, err
	}
	if err := checkOracle(oraclePrice); err != nil {
		return 0, 0, err
	}
	ri, err := shiftedInput(p.reserves, xIn, i)
	if err != nil {
		return 0, 0, err
	}

	pij := pairPrice(oraclePrice, i)
	ti, tj, _ := equilibrium(p.reserves[i], p.reserves[j], pij, p.k())
	rj, err := solveRegulator(ri, ti, tj, pij, p.k())
	if err != nil {
		return 0, 0, err
	}
	return ri, rj, nil
}

// MarginalPrice returns the regulated price of token i in units of j at (ri, rj),
// using the equilibrium derived from the current reserves.
func (p *PMM) MarginalPrice(ri, rj float64, i, j int, oraclePrice float64) (float64, error) {
	if err := checkPair(i, j); err != nil {
		return 0, err
	}
	if err := checkOracle(oraclePrice); err != nil {
		return 0, err
	}
	if ri <= 0 || rj <= 0 {
		return 0, domainErrorf("marginal price undefined at (%g, %g)", ri, rj)
	}

	k := p.k()
	pij := pairPrice(oraclePrice, i)
	ti, tj, _ := equilibrium(p.reserves[i], p.reserves[j], pij, k)
	switch {
	case ri < ti:
		ratio := ti / ri
		return pij * (1 - k + k*ratio*ratio), nil
	case rj < tj:
		ratio := tj / rj
		return pij / (1 - k + k*ratio*ratio), nil
	default:
		return pij, nil
	}
}

// ExecuteTrade commits a trade at the given oracle price.
func (p *PMM) ExecuteTrade(xIn float64, i, j int, oraclePrice float64) (TradeEvent, error) {
	if err := checkOracle(oraclePrice); err != nil {
		return TradeEvent{}, err
	}
	return executeTrade(p.At(oraclePrice), xIn, i, j, oraclePrice, p.committer(oraclePrice))
}

// AddLiquidity deposits x0 and x1 and re-anchors the equilibrium at the oracle price.
func (p *PMM) AddLiquidity(x0, x1, oraclePrice float64) (LiquidityEvent, error) {
	if err := checkOracle(oraclePrice); err != nil {
		return LiquidityEvent{}, err
	}
	return addLiquidity(p.At(oraclePrice), x0, x1, p.committer(oraclePrice))
}

func (p *PMM) committer(oraclePrice float64) commitFunc {
	return func(r Reserves) (float64, error) {
		t0, t1, _ := equilibrium(r[0], r[1], oraclePrice, p.k())
		p.reserves = r
		p.anchor = oraclePrice
		return t0*oraclePrice + t1, nil
	}
}

func (p *PMM) clone() *PMM {
	cp := *p
	return &cp
}

// PMMView is a PMM bound to one oracle price.
type PMMView struct {
	pool   *PMM
	oracle float64
}

// OraclePrice returns the bound oracle price.
func (v *PMMView) OraclePrice() float64 { return v.oracle }

// Underlying returns the bound pool.
func (v *PMMView) Underlying() *PMM { return v.pool }

func (v *PMMView) Family() Family     { return FamilyPMM }
func (v *PMMView) Reserves() Reserves { return v.pool.reserves }

// Invariant returns the equilibrium value at the bound oracle price, or NaN
// when the bound price is invalid.
func (v *PMMView) Invariant() float64 {
	inv, err := v.pool.InvariantAt(v.oracle)
	if err != nil {
		return math.NaN()
	}
	return inv
}

func (v *PMMView) ComputeTradeQtyOut(xIn float64, i, j int) (float64, float64, error) {
	return v.pool.ComputeTradeQtyOut(xIn, i, j, v.oracle)
}

func (v *PMMView) MarginalPrice(ri, rj float64, i, j int) (float64, error) {
	return v.pool.MarginalPrice(ri, rj, i, j, v.oracle)
}

func (v *PMMView) ExecuteTrade(xIn float64, i, j int) (TradeEvent, error) {
	return v.pool.ExecuteTrade(xIn, i, j, v.oracle)
}

func (v *PMMView) AddLiquidity(x0, x1 float64) (LiquidityEvent, error) {
	return v.pool.AddLiquidity(x0, x1, v.oracle)
}

// Clone copies the underlying pool and keeps the oracle binding.
func (v *PMMView) Clone() Pool {
	return &PMMView{pool: v.pool.clone(), oracle: v.oracle}
}

func checkOracle(price float64) error {
	if math.IsNaN(price) || math.IsInf(price, 0) || price <= 0 {
		return domainErrorf("oracle price must be positive and finite, got %g", price)
	}
	return nil
}

// pairPrice converts the oracle price (token 0 in token 1) into the price of
// token i in units of the other token.
func pairPrice(oraclePrice float64, i int) float64 {
	if i == 0 {
		return oraclePrice
	}
	return 1 / oraclePrice
}

// equilibrium derives the targets (t_i, t_j = pij * t_i) from reserves (ri, rj).
// The branch is chosen by comparing the reserve ratio rj/ri with pij.
func equilibrium(ri, rj, pij, k float64) (float64, float64, RegulatorBranch) {
	ratio := rj / ri
	switch {
	case ratio > pij:
		ti := shortTarget(ri, rj/pij, k)
		return ti, pij * ti, BranchInputShort
	case ratio < pij:
		tj := shortTarget(rj, ri*pij, k)
		return tj / pij, tj, BranchOutputShort
	default:
		return ri, rj, BranchEquilibrium
	}
}

// shortTarget returns the target t of the short side with reserve r, given the
// long side's holdings valued in the short token. It is the positive root of
//
//	(k/r) t^2 + 2(1-k) t - ((1-k) r + value) = 0
func shortTarget(r, value, k float64) float64 {
	c := (1-k)*r + value
	return c / ((1 - k) + math.Sqrt((1-k)*(1-k)+k*c/r))
}

// solveRegulator returns r_j' for a new input reserve ri on the curve with
// targets (ti, tj). At ri == ti both branches give tj.
func solveRegulator(ri, ti, tj, pij, k float64) (float64, error) {
	if ri <= ti {
		return tj + pij*(ti-ri)*(1-k+k*ti/ri), nil
	}

	// Output side short: (tj - u)(1 - k + k tj/u) = pij (ri - ti), as a quadratic in u.
	d := pij * (ri - ti)
	a := 1 - k
	b := d - (1-2*k)*tj
	c := k * tj * tj
	disc := math.Sqrt(b*b + 4*a*c)

	var u float64
	if b >= 0 {
		denom := b + disc
		if denom > 0 {
			u = 2 * c / denom
		}
	} else {
		u = (disc - b) / (2 * a)
	}
	if !isFinite(u) || u <= 0 {
		return 0, domainErrorf("output reserve depleted at input reserve %g", ri)
	}
	return u, nil
}
