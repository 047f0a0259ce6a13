package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
)

func newTestMetrics(t *testing.T) (*Metrics, *prometheus.Registry) {
	t.Helper()
	reg := prometheus.NewRegistry()
	return NewWithRegistry(reg, reg), reg
}

// value returns the counter or gauge value of the series matching labels.
func value(t *testing.T, reg *prometheus.Registry, name string, labels map[string]string) float64 {
	t.Helper()

	families, err := reg.Gather()
	require.NoError(t, err)

	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
	metrics:
		for _, m := range mf.GetMetric() {
			for _, lp := range m.GetLabel() {
				if labels[lp.GetName()] != lp.GetValue() {
					continue metrics
				}
			}
			if c := m.GetCounter(); c != nil {
				return c.GetValue()
			}
			if g := m.GetGauge(); g != nil {
				return g.GetValue()
			}
			if h := m.GetHistogram(); h != nil {
				return float64(h.GetSampleCount())
			}
		}
	}
	return 0
}

func TestRecordSweepPoint(t *testing.T) {
	m, reg := newTestMetrics(t)

	m.RecordSweepPoints("slippage", "uniswap", OutcomeOK, 1)
	m.RecordSweepPoints("slippage", "uniswap", OutcomeOK, 1)
	m.RecordSweepPoints("slippage", "uniswap", OutcomeDomain, 1)
	m.RecordSweepPoints("slippage", "uniswap", OutcomeConvergence, 0)

	ok := map[string]string{"sweep": "slippage", "pool": "uniswap", "outcome": OutcomeOK}
	domain := map[string]string{"sweep": "slippage", "pool": "uniswap", "outcome": OutcomeDomain}
	require.Equal(t, 2.0, value(t, reg, "curvelab_sweep_points_total", ok))
	require.Equal(t, 1.0, value(t, reg, "curvelab_sweep_points_total", domain))

	// Zero counts do not create a series.
	families, err := reg.Gather()
	require.NoError(t, err)
	series := 0
	for _, mf := range families {
		if mf.GetName() == "curvelab_sweep_points_total" {
			series = len(mf.GetMetric())
		}
	}
	require.Equal(t, 2, series)
}

func TestRecordSeriesSaved(t *testing.T) {
	m, reg := newTestMetrics(t)

	m.RecordSeriesSaved(10)
	m.RecordSeriesSaved(5)

	require.Equal(t, 2.0, value(t, reg, "curvelab_series_saved_total", nil))
	require.Equal(t, 15.0, value(t, reg, "curvelab_samples_saved_total", nil))
}

func TestStateTransitionCounters(t *testing.T) {
	m, reg := newTestMetrics(t)

	m.RecordPoolCreated("pmm")
	m.RecordTrade("pmm")
	m.RecordTrade("pmm")
	m.RecordLiquidityAdded("stable_swap")
	m.SetPoolsLoaded(10)
	m.RecordSweepLatency("slippage", 20*time.Millisecond)
	m.RecordRunLatency(time.Second)

	pmm := map[string]string{"family": "pmm"}
	require.Equal(t, 1.0, value(t, reg, "curvelab_pools_created_total", pmm))
	require.Equal(t, 2.0, value(t, reg, "curvelab_trades_executed_total", pmm))
	require.Equal(t, 1.0, value(t, reg, "curvelab_liquidity_added_total", map[string]string{"family": "stable_swap"}))
	require.Equal(t, 10.0, value(t, reg, "curvelab_pools_loaded", nil))
	require.Equal(t, 1.0, value(t, reg, "curvelab_sweep_latency_seconds", map[string]string{"sweep": "slippage"}))
	require.Equal(t, 1.0, value(t, reg, "curvelab_run_latency_seconds", nil))
}

func TestRegistriesAreIndependent(t *testing.T) {
	a, _ := newTestMetrics(t)
	_, regB := newTestMetrics(t)

	a.RecordTrade("constant_product")
	require.Equal(t, 0.0, value(t, regB, "curvelab_trades_executed_total", map[string]string{"family": "constant_product"}))
}
