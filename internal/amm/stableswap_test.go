package amm

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSolveDBalancedReserves(t *testing.T) {
	// With equal reserves D is their sum for every A.
	for _, amp := range []float64{0, 0.0001, 1, 5, 10000} {
		d, err := SolveD(Reserves{40, 40}, amp)
		require.NoError(t, err)
		require.InDelta(t, 80.0, d, 1e-8, "A=%g", amp)
	}
}

func TestSolveDZeroAmplificationIsConstantProduct(t *testing.T) {
	// At A = 0 the invariant reduces to D = 2 sqrt(xy).
	d, err := SolveD(Reserves{10, 90}, 0)
	require.NoError(t, err)
	require.InDelta(t, 60.0, d, 1e-8)
}

func TestSolveDEmptyPool(t *testing.T) {
	d, err := SolveD(Reserves{0, 0}, 5)
	require.NoError(t, err)
	require.Zero(t, d)
}

func TestSolveDZeroReserveDoesNotConverge(t *testing.T) {
	_, err := SolveD(Reserves{0, 40}, 0)
	require.True(t, IsConvergenceError(err), "got %v", err)

	var convErr *ConvergenceError
	require.True(t, errors.As(err, &convErr))
	require.Equal(t, "stableswap.D", convErr.Solver)
	require.GreaterOrEqual(t, convErr.Iterations, 1)
}

func TestSolveYZeroReserveDoesNotConverge(t *testing.T) {
	for _, amp := range []float64{0, 5} {
		_, err := SolveY(0, 80, amp)
		require.ErrorIs(t, err, ErrConvergence, "A=%g", amp)
	}
}

func TestSolveYRejectsInvalidInput(t *testing.T) {
	_, err := SolveY(-1, 80, 5)
	require.ErrorIs(t, err, ErrDomain)

	_, err = SolveY(40, 0, 5)
	require.ErrorIs(t, err, ErrDomain)

	_, err = SolveY(40, 80, -1)
	require.ErrorIs(t, err, ErrConfig)
}

func TestStableSwapLowAmplificationApproachesConstantProduct(t *testing.T) {
	p, err := NewStableSwap(Reserves{40, 40}, 0.0001)
	require.NoError(t, err)

	_, rj, err := p.ComputeTradeQtyOut(10, 0, 1)
	require.NoError(t, err)
	require.Less(t, relErr(rj, 32), 0.01)
}

func TestStableSwapHighAmplificationIsNearlyLinear(t *testing.T) {
	p, err := NewStableSwap(Reserves{40, 40}, 10000)
	require.NoError(t, err)

	_, rj, err := p.ComputeTradeQtyOut(10, 0, 1)
	require.NoError(t, err)
	require.InDelta(t, 30.0, rj, 1e-3)

	spot, err := SpotPrice(p, 0, 1)
	require.NoError(t, err)
	require.InDelta(t, 1.0, spot, 1e-12)
}

func TestStableSwapDrainingInputReserve(t *testing.T) {
	p, err := NewStableSwap(Reserves{40, 40}, 0)
	require.NoError(t, err)

	// r_i' = 0 reaches the solver, which cannot converge.
	_, _, err = p.ComputeTradeQtyOut(-40, 0, 1)
	require.True(t, IsConvergenceError(err), "got %v", err)

	_, _, err = p.ComputeTradeQtyOut(-41, 0, 1)
	require.True(t, IsDomainError(err), "got %v", err)
}

func TestStableSwapDepositRecomputesD(t *testing.T) {
	p, err := NewStableSwap(Reserves{40, 40}, 5)
	require.NoError(t, err)

	_, err = p.ExecuteTrade(10, 0, 1)
	require.NoError(t, err)
	require.InDelta(t, 80.0, p.Invariant(), 1e-9)

	ev, err := p.AddLiquidity(0, 5)
	require.NoError(t, err)

	want, err := SolveD(p.Reserves(), 5)
	require.NoError(t, err)
	require.InDelta(t, want, ev.Invariant, 1e-12)
	require.Greater(t, ev.Invariant, ev.PrevInvariant)
}

func TestStableSwapOutputDecreasesWithAmplification(t *testing.T) {
	// More amplification means less slippage, so r_j' is closer to r_j - x.
	prev := 0.0
	for _, amp := range []float64{0, 1, 10, 100, 10000} {
		p, err := NewStableSwap(Reserves{40, 40}, amp)
		require.NoError(t, err)
		_, rj, err := p.ComputeTradeQtyOut(10, 0, 1)
		require.NoError(t, err)
		if prev != 0 {
			require.Less(t, rj, prev, "A=%g", amp)
		}
		prev = rj
	}
}

func BenchmarkSolveD(b *testing.B) {
	r := Reserves{12, 97}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = SolveD(r, 5)
	}
}

func BenchmarkSolveY(b *testing.B) {
	for i := 0; i < b.N; i++ {
		_, _ = SolveY(50, 80, 5)
	}
}
