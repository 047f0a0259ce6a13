package metrics

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

// Sweep point outcomes.
const (
	OutcomeOK          = "ok"
	OutcomeDomain      = "domain_error"
	OutcomeConvergence = "convergence_error"
)

// Metrics holds all Prometheus metrics for the curve analysis.
type Metrics struct {
	// Sweep metrics
	SweepPoints  *prometheus.CounterVec
	SweepLatency *prometheus.HistogramVec

	// Pool state transitions
	PoolsCreated   *prometheus.CounterVec
	TradesExecuted *prometheus.CounterVec
	LiquidityAdded *prometheus.CounterVec
	PoolsLoaded    prometheus.Gauge

	// Persistence metrics
	SeriesSaved  prometheus.Counter
	SamplesSaved prometheus.Counter

	// Run metrics
	RunLatency prometheus.Histogram

	gatherer prometheus.Gatherer
	server   *http.Server
}

// New creates all metrics and registers them with the default registry.
func New() *Metrics {
	return NewWithRegistry(prometheus.DefaultRegisterer, prometheus.DefaultGatherer)
}

// NewWithRegistry creates all metrics on the given registry. Tests pass a
// private prometheus.NewRegistry() for both arguments.
func NewWithRegistry(reg prometheus.Registerer, gatherer prometheus.Gatherer) *Metrics {
	m := &Metrics{
		SweepPoints: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "curvelab_sweep_points_total",
				Help: "Sweep points evaluated by sweep, pool and outcome",
			},
			[]string{"sweep", "pool", "outcome"},
		),
		SweepLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "curvelab_sweep_latency_seconds",
				Help:    "Time to evaluate one sweep over one pool",
				Buckets: prometheus.ExponentialBuckets(0.001, 2, 15), // 1ms to ~16s
			},
			[]string{"sweep"},
		),
		PoolsCreated: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "curvelab_pools_created_total",
				Help: "Pools constructed by family",
			},
			[]string{"family"},
		),
		TradesExecuted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "curvelab_trades_executed_total",
				Help: "Committed trades by family",
			},
			[]string{"family"},
		),
		LiquidityAdded: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "curvelab_liquidity_added_total",
				Help: "Liquidity deposits by family",
			},
			[]string{"family"},
		),
		PoolsLoaded: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "curvelab_pools_loaded",
				Help: "Number of pools currently registered",
			},
		),
		SeriesSaved: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "curvelab_series_saved_total",
				Help: "Total number of series written to the store",
			},
		),
		SamplesSaved: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "curvelab_samples_saved_total",
				Help: "Total number of samples written to the store",
			},
		),
		RunLatency: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "curvelab_run_latency_seconds",
				Help:    "Time to complete a full analysis run",
				Buckets: prometheus.ExponentialBuckets(0.01, 2, 14), // 10ms to ~80s
			},
		),
		gatherer: gatherer,
	}

	reg.MustRegister(
		m.SweepPoints,
		m.SweepLatency,
		m.PoolsCreated,
		m.TradesExecuted,
		m.LiquidityAdded,
		m.PoolsLoaded,
		m.SeriesSaved,
		m.SamplesSaved,
		m.RunLatency,
	)

	return m
}

// StartServer starts the HTTP server for Prometheus metrics.
func (m *Metrics) StartServer(port int, path string) error {
	mux := http.NewServeMux()
	mux.Handle(path, promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{}))
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	m.server = &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: mux,
	}

	go func() {
		log.Info().Int("port", port).Str("path", path).Msg("Starting metrics server")
		if err := m.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("Metrics server error")
		}
	}()

	return nil
}

// Shutdown gracefully stops the metrics server.
func (m *Metrics) Shutdown(ctx context.Context) error {
	if m.server != nil {
		return m.server.Shutdown(ctx)
	}
	return nil
}

// RecordSweepPoints adds n evaluated points with the given outcome.
func (m *Metrics) RecordSweepPoints(sweep, pool, outcome string, n int) {
	if n == 0 {
		return
	}
	m.SweepPoints.WithLabelValues(sweep, pool, outcome).Add(float64(n))
}

// RecordSweepLatency records the time to evaluate one sweep.
func (m *Metrics) RecordSweepLatency(sweep string, d time.Duration) {
	m.SweepLatency.WithLabelValues(sweep).Observe(d.Seconds())
}

// RecordPoolCreated increments the pool construction counter.
func (m *Metrics) RecordPoolCreated(family string) {
	m.PoolsCreated.WithLabelValues(family).Inc()
}

// RecordTrade increments the trade counter.
func (m *Metrics) RecordTrade(family string) {
	m.TradesExecuted.WithLabelValues(family).Inc()
}

// RecordLiquidityAdded increments the deposit counter.
func (m *Metrics) RecordLiquidityAdded(family string) {
	m.LiquidityAdded.WithLabelValues(family).Inc()
}

// SetPoolsLoaded sets the current number of registered pools.
func (m *Metrics) SetPoolsLoaded(count int) {
	m.PoolsLoaded.Set(float64(count))
}

// RecordSeriesSaved counts one stored series and its samples.
func (m *Metrics) RecordSeriesSaved(samples int) {
	m.SeriesSaved.Inc()
	m.SamplesSaved.Add(float64(samples))
}

// RecordRunLatency records the full analysis duration.
func (m *Metrics) RecordRunLatency(d time.Duration) {
	m.RunLatency.Observe(d.Seconds())
}
