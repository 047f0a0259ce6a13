package amm

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

var _ Pool = (*PMMView)(nil)
var _ Anchored = (*PMM)(nil)

func TestPMMStartsInEquilibrium(t *testing.T) {
	p, err := NewPMM(Reserves{40, 40}, 0.5)
	require.NoError(t, err)

	targets, err := p.Targets(1)
	require.NoError(t, err)
	require.Equal(t, Reserves{40, 40}, targets)

	branch, err := p.Branch(1)
	require.NoError(t, err)
	require.Equal(t, BranchEquilibrium, branch)

	inv, err := p.InvariantAt(1)
	require.NoError(t, err)
	require.Equal(t, 80.0, inv)
	require.Equal(t, 80.0, p.Invariant())
}

func TestPMMRejectsInvalidOracle(t *testing.T) {
	p, err := NewPMM(Reserves{40, 40}, 0.5)
	require.NoError(t, err)

	for _, price := range []float64{0, -1, math.NaN(), math.Inf(1)} {
		_, _, err := p.ComputeTradeQtyOut(1, 0, 1, price)
		require.ErrorIs(t, err, ErrDomain)
		_, err = p.ExecuteTrade(1, 0, 1, price)
		require.ErrorIs(t, err, ErrDomain)
		require.True(t, math.IsNaN(p.At(price).Invariant()))
	}
	require.Equal(t, Reserves{40, 40}, p.Reserves())
}

func TestPMMFlatAtFullAmplification(t *testing.T) {
	// k = 0 trades at the oracle price with no slippage.
	p, err := NewPMM(Reserves{40, 40}, 1)
	require.NoError(t, err)

	_, rj, err := p.ComputeTradeQtyOut(10, 0, 1, 1)
	require.NoError(t, err)
	require.InDelta(t, 30.0, rj, 1e-12)

	_, rj, err = p.ComputeTradeQtyOut(-10, 0, 1, 1)
	require.NoError(t, err)
	require.InDelta(t, 50.0, rj, 1e-12)

	// Draining the output side is a domain failure.
	_, _, err = p.ComputeTradeQtyOut(40, 0, 1, 1)
	require.ErrorIs(t, err, ErrDomain)
}

func TestPMMOraclePriceScalesFlatTrades(t *testing.T) {
	p, err := NewPMM(Reserves{40, 40}, 1)
	require.NoError(t, err)

	// Token 0 is worth 0.5 token 1, so 10 in yields 5 out.
	_, rj, err := p.ComputeTradeQtyOut(10, 0, 1, 0.5)
	require.NoError(t, err)
	require.InDelta(t, 35.0, rj, 1e-12)

	// The reverse direction uses the inverse price.
	_, rj, err = p.ComputeTradeQtyOut(10, 1, 0, 0.5)
	require.NoError(t, err)
	require.InDelta(t, 20.0, rj, 1e-12)
}

func TestShortTargetSolvesQuadratic(t *testing.T) {
	for _, k := range []float64{0, 0.01, 0.5, 0.99} {
		for _, r := range []float64{0.5, 10, 40, 300} {
			for _, value := range []float64{1, 40, 900} {
				tgt := shortTarget(r, value, k)
				residual := (k/r)*tgt*tgt + 2*(1-k)*tgt - ((1-k)*r + value)
				require.InDelta(t, 0, residual/((1-k)*r+value), 1e-12, "k=%g r=%g v=%g", k, r, value)
				require.Greater(t, tgt, 0.0)
			}
		}
	}
}

func TestRegulatorBranchResidual(t *testing.T) {
	const ti, tj, pij = 40.0, 60.0, 1.5

	for _, k := range []float64{0.01, 0.5, 0.99} {
		// Output short: (tj - u)(1 - k + k tj/u) = pij (ri - ti).
		for _, ri := range []float64{41, 60, 200} {
			u, err := solveRegulator(ri, ti, tj, pij, k)
			require.NoError(t, err)
			lhs := (tj - u) * (1 - k + k*tj/u)
			require.InDelta(t, pij*(ri-ti), lhs, 1e-9, "k=%g ri=%g", k, ri)
		}
		// Input short: closed form.
		for _, ri := range []float64{1, 20, 39.5} {
			rj, err := solveRegulator(ri, ti, tj, pij, k)
			require.NoError(t, err)
			require.Greater(t, rj, tj)
		}
	}
}

func TestRegulatorContinuousAtTarget(t *testing.T) {
	const ti, tj, pij = 40.0, 40.0, 1.0

	for _, k := range []float64{0.01, 0.5, 0.99} {
		at, err := solveRegulator(ti, ti, tj, pij, k)
		require.NoError(t, err)
		require.Equal(t, tj, at)

		above, err := solveRegulator(ti+1e-9, ti, tj, pij, k)
		require.NoError(t, err)
		below, err := solveRegulator(ti-1e-9, ti, tj, pij, k)
		require.NoError(t, err)
		require.InDelta(t, tj, above, 1e-8)
		require.InDelta(t, tj, below, 1e-8)
	}
}

func TestPMMConservationAcrossBranches(t *testing.T) {
	p, err := NewPMM(Reserves{40, 40}, 0.5)
	require.NoError(t, err)

	// Walk the pool through both regimes and back.
	for _, x := range []float64{10, -25, 30, -15} {
		ev, err := p.ExecuteTrade(x, 0, 1, 1)
		require.NoError(t, err)
		require.Equal(t, 1.0, ev.OraclePrice)
		require.Less(t, relErr(ev.Invariant, 80), 1e-9, "x=%g", x)
	}

	targets, err := p.Targets(1)
	require.NoError(t, err)
	require.InDelta(t, 40.0, targets[0], 1e-9)
	require.InDelta(t, 40.0, targets[1], 1e-9)
}

func TestPMMBranchFollowsReserves(t *testing.T) {
	p, err := NewPMM(Reserves{40, 40}, 0.5)
	require.NoError(t, err)

	_, err = p.ExecuteTrade(10, 0, 1, 1)
	require.NoError(t, err)
	branch, err := p.Branch(1)
	require.NoError(t, err)
	require.Equal(t, BranchOutputShort, branch)

	_, err = p.ExecuteTrade(-20, 0, 1, 1)
	require.NoError(t, err)
	branch, err = p.Branch(1)
	require.NoError(t, err)
	require.Equal(t, BranchInputShort, branch)
}

func TestPMMMarginalPriceByBranch(t *testing.T) {
	p, err := NewPMM(Reserves{40, 40}, 0.5)
	require.NoError(t, err)

	spot, err := p.MarginalPrice(40, 40, 0, 1, 1)
	require.NoError(t, err)
	require.Equal(t, 1.0, spot)

	// Input short: p (1 - k + k (t/r)^2).
	price, err := p.MarginalPrice(20, 70, 0, 1, 1)
	require.NoError(t, err)
	require.InDelta(t, 0.5+0.5*4, price, 1e-12)

	// Output short: p / (1 - k + k (t/r)^2).
	price, err = p.MarginalPrice(60, 20, 0, 1, 1)
	require.NoError(t, err)
	require.InDelta(t, 1/(0.5+0.5*4), price, 1e-12)

	_, err = p.MarginalPrice(0, 40, 0, 1, 1)
	require.ErrorIs(t, err, ErrDomain)
}

func TestPMMViewCloneIsIndependent(t *testing.T) {
	p, err := NewPMM(Reserves{40, 40}, 0.5)
	require.NoError(t, err)

	view := p.At(2)
	clone := view.Clone()
	_, err = clone.ExecuteTrade(5, 0, 1)
	require.NoError(t, err)

	require.Equal(t, Reserves{40, 40}, p.Reserves())
	require.NotEqual(t, Reserves{40, 40}, clone.Reserves())

	cv, ok := clone.(*PMMView)
	require.True(t, ok)
	require.Equal(t, 2.0, cv.OraclePrice())
}

func BenchmarkPMMTrade(b *testing.B) {
	p, _ := NewPMM(Reserves{40, 40}, 0.5)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _, _ = p.ComputeTradeQtyOut(10, 0, 1, 1)
	}
}

func TestPMMZeroDepositKeepsInvariantAtOracle(t *testing.T) {
	p, err := NewPMM(Reserves{40, 40}, 0.5)
	require.NoError(t, err)

	before, err := p.InvariantAt(2)
	require.NoError(t, err)

	ev, err := p.AddLiquidity(0, 0, 2)
	require.NoError(t, err)
	require.InDelta(t, before, ev.PrevInvariant, 1e-12)
	require.InDelta(t, ev.PrevInvariant, ev.Invariant, 1e-12)
	require.Equal(t, Reserves{40, 40}, ev.Reserves)
}

func TestPMMTradeRecordUsesOraclePriceInvariant(t *testing.T) {
	p, err := NewPMM(Reserves{40, 40}, 0.5)
	require.NoError(t, err)

	before, err := p.InvariantAt(2)
	require.NoError(t, err)

	ev, err := p.ExecuteTrade(3, 0, 1, 2)
	require.NoError(t, err)
	require.InDelta(t, before, ev.PrevInvariant, 1e-12)
	require.InDelta(t, before, ev.Invariant, 1e-9)
}

func TestPMMInvariantFollowsAnchor(t *testing.T) {
	p, err := NewPMM(Reserves{40, 80}, 0.5)
	require.NoError(t, err)
	require.Equal(t, 2.0, p.AnchorPrice())
	require.Equal(t, 160.0, p.Invariant())

	_, err = p.ExecuteTrade(1, 0, 1, 3)
	require.NoError(t, err)
	require.Equal(t, 3.0, p.AnchorPrice())

	at, err := p.InvariantAt(3)
	require.NoError(t, err)
	require.Equal(t, at, p.Invariant())
}
