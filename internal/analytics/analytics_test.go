package analytics

import (
	"math"
	"testing"

	"curvelab/internal/amm"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func curves(t *testing.T) map[string]amm.ConservationCurve {
	t.Helper()

	cp, err := amm.NewConstantProduct(amm.Reserves{40, 40})
	require.NoError(t, err)
	wp, err := amm.NewWeightedProduct(amm.Reserves{40, 40}, [2]float64{0.95, 0.05})
	require.NoError(t, err)
	ss, err := amm.NewStableSwap(amm.Reserves{40, 40}, 5)
	require.NoError(t, err)
	pmm, err := amm.NewPMM(amm.Reserves{40, 40}, 0.5)
	require.NoError(t, err)

	return map[string]amm.ConservationCurve{
		"uniswap":  cp,
		"balancer": wp,
		"curve":    ss,
		"dodo":     pmm.At(1),
	}
}

func TestSlippageZeroTrade(t *testing.T) {
	for name, c := range curves(t) {
		s, err := Slippage(c, 0, 0, 1)
		require.NoError(t, err, name)
		assert.Zero(t, s, name)
	}
}

func TestSlippageConstantProduct(t *testing.T) {
	c := curves(t)["uniswap"]

	// 10 in yields 8 out at a spot price of 1.
	s, err := Slippage(c, 10, 0, 1)
	require.NoError(t, err)
	assert.InDelta(t, -0.2, s, 1e-12)

	// Tiny trades approach the spot price.
	s, err = Slippage(c, 1e-6, 0, 1)
	require.NoError(t, err)
	assert.InDelta(t, 0, s, 1e-7)

	// Larger trades slip more.
	small, err := Slippage(c, 1, 0, 1)
	require.NoError(t, err)
	large, err := Slippage(c, 20, 0, 1)
	require.NoError(t, err)
	assert.Less(t, large, small)
}

func TestSlippageDomainError(t *testing.T) {
	c := curves(t)["uniswap"]
	_, err := Slippage(c, -40, 0, 1)
	require.ErrorIs(t, err, amm.ErrDomain)
}

func TestSlippageShrinksWithAmplification(t *testing.T) {
	low, err := amm.NewStableSwap(amm.Reserves{40, 40}, 0.0001)
	require.NoError(t, err)
	high, err := amm.NewStableSwap(amm.Reserves{40, 40}, 10000)
	require.NoError(t, err)

	sLow, err := Slippage(low, 10, 0, 1)
	require.NoError(t, err)
	sHigh, err := Slippage(high, 10, 0, 1)
	require.NoError(t, err)
	assert.Greater(t, math.Abs(sLow), math.Abs(sHigh))
	assert.InDelta(t, 0, sHigh, 1e-3)
}

func TestDivergenceLossZero(t *testing.T) {
	for name, c := range curves(t) {
		loss, err := DivergenceLoss(c, 0, 0, 1)
		require.NoError(t, err, name)
		assert.InDelta(t, 0, loss, 1e-9, name)
	}
}

func TestClosedFormDivergenceLoss(t *testing.T) {
	// Price of token i quadruples in a 50/50 pool: 2*2/5 - 1 = -0.2.
	loss, err := ClosedFormDivergenceLoss([2]float64{0.5, 0.5}, 3, 0, 1)
	require.NoError(t, err)
	assert.InDelta(t, -0.2, loss, 1e-12)

	// Loss is never positive.
	for _, pct := range []float64{-0.99, -0.5, 0.5, 2, 5} {
		for _, w := range [][2]float64{{0.5, 0.5}, {0.95, 0.05}, {0.05, 0.95}} {
			loss, err := ClosedFormDivergenceLoss(w, pct, 0, 1)
			require.NoError(t, err)
			assert.LessOrEqual(t, loss, 1e-15)
		}
	}

	_, err = ClosedFormDivergenceLoss([2]float64{0.5, 0.5}, -1.5, 0, 1)
	require.ErrorIs(t, err, amm.ErrDomain)

	_, err = ClosedFormDivergenceLoss([2]float64{0.5, 0.5}, 0.1, 1, 1)
	require.ErrorIs(t, err, amm.ErrDomain)
}

func TestClosedFormAgreesWithTradeForConstantProduct(t *testing.T) {
	c := curves(t)["uniswap"]

	for _, x := range []float64{-30, -10, -1, 1, 10, 60} {
		s, err := TradeDivergenceLoss(c, x, 0, 1)
		require.NoError(t, err)

		closed, err := ClosedFormDivergenceLoss([2]float64{0.5, 0.5}, s.PriceChange, 0, 1)
		require.NoError(t, err)
		assert.InDelta(t, closed, s.Loss, 1e-12, "x=%g", x)
	}
}

func TestDivergenceLossSampleDispatch(t *testing.T) {
	all := curves(t)

	// Weighted curves echo the price change they were given.
	s, err := DivergenceLossSample(all["balancer"], 0.25, 0, 1)
	require.NoError(t, err)
	assert.Equal(t, 0.25, s.PriceChange)

	// Quantity-driven curves report the induced price change.
	s, err = DivergenceLossSample(all["curve"], 10, 0, 1)
	require.NoError(t, err)
	assert.Less(t, s.PriceChange, 0.0)
	assert.LessOrEqual(t, s.Loss, 1e-12)

	s, err = DivergenceLossSample(all["dodo"], -10, 0, 1)
	require.NoError(t, err)
	assert.Greater(t, s.PriceChange, 0.0)
	assert.LessOrEqual(t, s.Loss, 1e-12)
}

func TestMetricsDoNotMutate(t *testing.T) {
	for name, c := range curves(t) {
		before := c.Reserves()
		_, err := Slippage(c, 5, 0, 1)
		require.NoError(t, err, name)
		_, err = DivergenceLoss(c, 0.3, 0, 1)
		require.NoError(t, err, name)
		assert.Equal(t, before, c.Reserves(), name)
	}
}

func BenchmarkSlippageStableSwap(b *testing.B) {
	c, _ := amm.NewStableSwap(amm.Reserves{40, 40}, 5)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = Slippage(c, 10, 0, 1)
	}
}
