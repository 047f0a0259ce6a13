// Package analysis sweeps the configured pools over the conservation,
// slippage and divergence-loss domains and hands every series to a Reporter.
package analysis

import (
	"context"
	"fmt"
	"time"

	"curvelab/internal/amm"
	"curvelab/internal/analytics"
	"curvelab/internal/config"
	"curvelab/internal/metrics"
	"curvelab/internal/persistence"
	"curvelab/internal/pool"
	"curvelab/internal/sweep"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// Sweep names.
const (
	SweepConservation   = "conservation"
	SweepSlippage       = "slippage"
	SweepDivergenceLoss = "divergence_loss"
)

// Token indices traded by every sweep.
const (
	tokenIn  = 0
	tokenOut = 1
)

// Reporter receives the run lifecycle and every finished series.
type Reporter interface {
	BeginRun(ctx context.Context, oraclePrice float64) (int64, error)
	SaveSeries(ctx context.Context, rec persistence.SeriesRecord, samples []persistence.Sample) (int64, error)
	FinishRun(ctx context.Context, runID int64, status string) error
}

// SeriesSummary describes one saved series.
type SeriesSummary struct {
	Sweep             string
	Pool              string
	SeriesID          int64
	Points            int
	DomainErrors      int
	ConvergenceErrors int
	Duration          time.Duration
}

// Summary is the outcome of one analysis run.
type Summary struct {
	RunID    int64
	Series   []SeriesSummary
	Duration time.Duration
}

// NewModel builds the amm model for a pool configuration.
func NewModel(p config.PoolConfig) (amm.Model, error) {
	r := amm.Reserves(p.Reserves)
	switch p.Family {
	case config.FamilyUniswap:
		return amm.NewConstantProduct(r)
	case config.FamilyBalancer:
		return amm.NewWeightedProduct(r, p.Weights)
	case config.FamilyCurve:
		return amm.NewStableSwap(r, p.Amplification)
	case config.FamilyDodo:
		return amm.NewPMM(r, p.Amplification)
	default:
		return nil, fmt.Errorf("%w: unknown family %q", amm.ErrConfig, p.Family)
	}
}

// BuildPools registers every configured pool in a new manager.
func BuildPools(cfg *config.Config, m *metrics.Metrics) (*pool.Manager, error) {
	manager := pool.NewManager(cfg.Analysis.OraclePrice, m)
	for _, p := range cfg.Pools {
		model, err := NewModel(p)
		if err != nil {
			return nil, fmt.Errorf("building pool %s: %w", p.Name, err)
		}
		if err := manager.Add(p.Name, model, p.Fee); err != nil {
			return nil, err
		}
	}
	return manager, nil
}

// Analyzer runs the configured sweeps over a pool manager.
type Analyzer struct {
	cfg      *config.Config
	manager  *pool.Manager
	runner   *sweep.Runner
	reporter Reporter
	metrics  *metrics.Metrics
}

// New creates an analyzer. Metrics may be nil.
func New(cfg *config.Config, manager *pool.Manager, reporter Reporter, m *metrics.Metrics) (*Analyzer, error) {
	policy, err := sweep.ParsePolicy(cfg.Analysis.ConvergencePolicy)
	if err != nil {
		return nil, err
	}
	runner := sweep.NewRunner(sweep.Config{
		Workers:     cfg.Analysis.Workers,
		ChunkSize:   cfg.Analysis.ChunkSize,
		Convergence: policy,
	}, m)

	return &Analyzer{
		cfg:      cfg,
		manager:  manager,
		runner:   runner,
		reporter: reporter,
		metrics:  m,
	}, nil
}

// job is one (sweep, pool) series to compute.
type job struct {
	sweep  string
	pool   string
	curve  amm.ConservationCurve
	domain []float64
	xLabel string
	yLabel string
	fn     sweep.Func
}

// Run sweeps every pool of a fresh snapshot and saves each series. The run
// is marked failed when any series fails.
func (a *Analyzer) Run(ctx context.Context) (*Summary, error) {
	startTime := time.Now()

	runID, err := a.reporter.BeginRun(ctx, a.cfg.Analysis.OraclePrice)
	if err != nil {
		return nil, fmt.Errorf("starting run: %w", err)
	}

	snap := a.manager.CreateSnapshot()
	a.logQuotes(snap)

	jobs, err := a.plan(snap)
	if err != nil {
		a.finish(runID, persistence.RunFailed)
		return nil, err
	}

	log.Info().
		Int64("run_id", runID).
		Int("pools", snap.NumPools()).
		Int("series", len(jobs)).
		Msg("Starting analysis")

	series := make([]SeriesSummary, len(jobs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.cfg.Analysis.Workers)

	for idx, jb := range jobs {
		g.Go(func() error {
			s, err := a.runJob(gctx, runID, jb)
			if err != nil {
				return err
			}
			series[idx] = s
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		a.finish(runID, persistence.RunFailed)
		return nil, err
	}

	a.finish(runID, persistence.RunComplete)

	summary := &Summary{
		RunID:    runID,
		Series:   series,
		Duration: time.Since(startTime),
	}
	if a.metrics != nil {
		a.metrics.RecordRunLatency(summary.Duration)
	}

	log.Info().
		Int64("run_id", runID).
		Int("series", len(series)).
		Dur("duration", summary.Duration).
		Msg("Analysis complete")

	return summary, nil
}

// finish records the final run status. It uses a fresh context so a
// cancelled run is still marked.
func (a *Analyzer) finish(runID int64, status string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := a.reporter.FinishRun(ctx, runID, status); err != nil {
		log.Warn().Err(err).Int64("run_id", runID).Msg("Failed to finish run")
	}
}

func (a *Analyzer) runJob(ctx context.Context, runID int64, jb job) (SeriesSummary, error) {
	res, err := a.runner.Run(ctx, jb.sweep, jb.pool, jb.domain, jb.fn)
	if err != nil {
		return SeriesSummary{}, err
	}

	samples := make([]persistence.Sample, len(res.Points))
	for idx, pt := range res.Points {
		samples[idx] = persistence.Sample{X: pt.X, Y: pt.Y}
	}

	id, err := a.reporter.SaveSeries(ctx, persistence.SeriesRecord{
		RunID:             runID,
		Sweep:             jb.sweep,
		Pool:              jb.pool,
		Family:            string(jb.curve.Family()),
		XLabel:            jb.xLabel,
		YLabel:            jb.yLabel,
		DomainErrors:      res.DomainErrors,
		ConvergenceErrors: res.ConvergenceErrors,
	}, samples)
	if err != nil {
		return SeriesSummary{}, fmt.Errorf("saving %s/%s: %w", jb.sweep, jb.pool, err)
	}
	if a.metrics != nil {
		a.metrics.RecordSeriesSaved(len(samples))
	}

	return SeriesSummary{
		Sweep:             jb.sweep,
		Pool:              jb.pool,
		SeriesID:          id,
		Points:            len(res.Points),
		DomainErrors:      res.DomainErrors,
		ConvergenceErrors: res.ConvergenceErrors,
		Duration:          res.Duration,
	}, nil
}

// plan lists the jobs of every enabled sweep, in sweep then pool order.
func (a *Analyzer) plan(snap *pool.Snapshot) ([]job, error) {
	sw := a.cfg.Sweeps
	conservation, err := arange(SweepConservation, sw.Conservation)
	if err != nil {
		return nil, err
	}
	slippage, err := arange(SweepSlippage, sw.Slippage)
	if err != nil {
		return nil, err
	}
	priceDomain, err := arange("price_divergence", sw.PriceDivergence)
	if err != nil {
		return nil, err
	}
	qtyDomain, err := arange("quantity_divergence", sw.QuantityDivergence)
	if err != nil {
		return nil, err
	}

	var jobs []job
	if a.cfg.Analysis.ShouldRun(SweepConservation) {
		for _, name := range snap.Names {
			c := snap.Pools[name]
			jobs = append(jobs, job{
				sweep: SweepConservation, pool: name, curve: c, domain: conservation,
				xLabel: "x_1", yLabel: "x_2",
				fn: conservationFunc(c),
			})
		}
	}
	if a.cfg.Analysis.ShouldRun(SweepSlippage) {
		for _, name := range snap.Names {
			c := snap.Pools[name]
			jobs = append(jobs, job{
				sweep: SweepSlippage, pool: name, curve: c, domain: slippage,
				xLabel: "trade_quantity", yLabel: "slippage",
				fn: slippageFunc(c),
			})
		}
	}
	if a.cfg.Analysis.ShouldRun(SweepDivergenceLoss) {
		for _, name := range snap.Names {
			c := snap.Pools[name]
			domain := qtyDomain
			if _, ok := c.(analytics.Weighted); ok {
				domain = priceDomain
			}
			jobs = append(jobs, job{
				sweep: SweepDivergenceLoss, pool: name, curve: c, domain: domain,
				xLabel: "price_change", yLabel: "divergence_loss",
				fn: divergenceLossFunc(c),
			})
		}
	}
	return jobs, nil
}

func arange(name string, r config.RangeConfig) ([]float64, error) {
	domain, err := sweep.Arange(r.Start, r.Stop, r.Step)
	if err != nil {
		return nil, fmt.Errorf("sweep %s domain: %w", name, err)
	}
	return domain, nil
}

// conservationFunc traces the curve: the reserves after trading x token 0.
func conservationFunc(c amm.ConservationCurve) sweep.Func {
	return func(x float64) (sweep.Point, error) {
		ri, rj, err := c.ComputeTradeQtyOut(x, tokenIn, tokenOut)
		if err != nil {
			return sweep.Point{}, err
		}
		return sweep.Point{X: ri, Y: rj}, nil
	}
}

func slippageFunc(c amm.ConservationCurve) sweep.Func {
	return func(x float64) (sweep.Point, error) {
		s, err := analytics.Slippage(c, x, tokenIn, tokenOut)
		if err != nil {
			return sweep.Point{}, err
		}
		return sweep.Point{X: x, Y: s}, nil
	}
}

// divergenceLossFunc plots loss against the relative price change, whether
// the domain is a price change or a traded quantity.
func divergenceLossFunc(c amm.ConservationCurve) sweep.Func {
	return func(param float64) (sweep.Point, error) {
		s, err := analytics.DivergenceLossSample(c, param, tokenIn, tokenOut)
		if err != nil {
			return sweep.Point{}, err
		}
		return sweep.Point{X: s.PriceChange, Y: s.Loss}, nil
	}
}

// logQuotes logs the spot price and the fee-inclusive output of a unit trade
// for every pool.
func (a *Analyzer) logQuotes(snap *pool.Snapshot) {
	for _, name := range snap.Names {
		c := snap.Pools[name]
		ev := log.Info().Str("pool", name).Str("family", string(c.Family()))

		if spot, err := amm.SpotPrice(c, tokenIn, tokenOut); err == nil {
			ev = ev.Float64("spot_price", spot)
		}
		if q, err := analytics.NewQuoter(c, snap.Fees[name]); err == nil {
			if out, err := q.AmountOut(1, tokenIn, tokenOut); err == nil {
				ev = ev.Float64("fee", q.Fee).Float64("unit_amount_out", out)
			}
		}
		ev.Msg("Pool ready")
	}
}
