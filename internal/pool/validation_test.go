package pool

import (
	"math"
	"testing"

	"curvelab/internal/amm"

	"github.com/stretchr/testify/require"
)

func TestValidatePassesAfterTrades(t *testing.T) {
	m := newTestManager(t)

	for _, name := range m.Names() {
		_, err := m.ExecuteTrade(name, 7, 0, 1)
		require.NoError(t, err)
		_, err = m.ExecuteTrade(name, 3, 1, 0)
		require.NoError(t, err)
	}

	result := m.Validate()
	require.True(t, result.Valid, "errors: %v", result.Errors)
	require.Empty(t, result.Errors)
}

// driftedPool reports an invariant that its reserves cannot reproduce.
type driftedPool struct {
	*amm.ConstantProduct
	invariant float64
}

func (p driftedPool) Invariant() float64 { return p.invariant }

type badReservePool struct {
	*amm.ConstantProduct
}

func (badReservePool) Reserves() amm.Reserves { return amm.Reserves{math.NaN(), 1} }

func TestValidateReportsInconsistencies(t *testing.T) {
	cp, err := amm.NewConstantProduct(amm.Reserves{40, 40})
	require.NoError(t, err)

	snap := &Snapshot{
		Names: []string{"drifted", "bad", "ok"},
		Pools: map[string]amm.Pool{
			"drifted": driftedPool{ConstantProduct: cp, invariant: 1700},
			"bad":     badReservePool{ConstantProduct: cp},
			"ok":      cp,
		},
	}

	result := snap.Validate()
	require.False(t, result.Valid)
	require.Equal(t, []string{"drifted"}, result.InvariantDrift)
	require.Equal(t, []string{"bad"}, result.BadReserves)
	require.Len(t, result.Errors, 2)
}
