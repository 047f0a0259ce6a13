// Package sweep evaluates a function over a parameter domain in parallel and
// returns the results in domain order.
package sweep

import (
	"context"
	"fmt"
	"time"

	"curvelab/internal/amm"
	"curvelab/internal/metrics"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// Policy decides what a sweep does when a point fails to converge.
type Policy int

const (
	// SkipConvergence drops non-converged points and keeps sweeping.
	SkipConvergence Policy = iota
	// AbortOnConvergence stops the sweep at the first non-converged point.
	AbortOnConvergence
)

// ParsePolicy maps a configuration value to a Policy.
func ParsePolicy(s string) (Policy, error) {
	switch s {
	case "", "skip":
		return SkipConvergence, nil
	case "abort":
		return AbortOnConvergence, nil
	default:
		return SkipConvergence, fmt.Errorf("unknown convergence policy %q (want skip or abort)", s)
	}
}

func (p Policy) String() string {
	if p == AbortOnConvergence {
		return "abort"
	}
	return "skip"
}

// defaultChunkSize is the number of consecutive points handed to one worker.
const defaultChunkSize = 4096

// Point is one evaluated sample of a series.
type Point struct {
	X float64
	Y float64
}

// Func evaluates a single domain parameter.
type Func func(param float64) (Point, error)

// Result is an ordered sweep outcome.
type Result struct {
	Points            []Point
	DomainErrors      int
	ConvergenceErrors int
	Duration          time.Duration
}

// Config holds sweep runner settings.
type Config struct {
	Workers     int
	ChunkSize   int
	Convergence Policy
}

// Runner evaluates domains with a bounded worker pool.
type Runner struct {
	config  Config
	metrics *metrics.Metrics
}

// NewRunner creates a sweep runner. Metrics may be nil.
func NewRunner(cfg Config, m *metrics.Metrics) *Runner {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = defaultChunkSize
	}
	return &Runner{config: cfg, metrics: m}
}

type slot struct {
	point Point
	ok    bool
}

type chunkStats struct {
	domain      int
	convergence int
}

// Run evaluates fn at every domain value. Domain errors are always skipped;
// convergence errors are skipped or abort the sweep per the runner policy;
// any other error aborts. The returned points keep the domain order.
func (r *Runner) Run(ctx context.Context, name, pool string, domain []float64, fn Func) (*Result, error) {
	startTime := time.Now()

	log.Debug().
		Str("sweep", name).
		Str("pool", pool).
		Int("points", len(domain)).
		Int("workers", r.config.Workers).
		Msg("Starting sweep")

	slots := make([]slot, len(domain))
	numChunks := (len(domain) + r.config.ChunkSize - 1) / r.config.ChunkSize
	stats := make([]chunkStats, numChunks)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.config.Workers)

	for c := 0; c < numChunks; c++ {
		lo := c * r.config.ChunkSize
		hi := min(lo+r.config.ChunkSize, len(domain))
		st := &stats[c]

		g.Go(func() error {
			for idx := lo; idx < hi; idx++ {
				if err := gctx.Err(); err != nil {
					return err
				}

				pt, err := fn(domain[idx])
				switch {
				case err == nil:
					slots[idx] = slot{point: pt, ok: true}
				case amm.IsDomainError(err):
					st.domain++
				case amm.IsConvergenceError(err):
					if r.config.Convergence == AbortOnConvergence {
						return fmt.Errorf("sweep %s/%s at %g: %w", name, pool, domain[idx], err)
					}
					st.convergence++
				default:
					return fmt.Errorf("sweep %s/%s at %g: %w", name, pool, domain[idx], err)
				}
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		log.Error().
			Err(err).
			Str("sweep", name).
			Str("pool", pool).
			Msg("Sweep aborted")
		return nil, err
	}

	result := &Result{Points: make([]Point, 0, len(domain))}
	for _, s := range slots {
		if s.ok {
			result.Points = append(result.Points, s.point)
		}
	}
	for _, st := range stats {
		result.DomainErrors += st.domain
		result.ConvergenceErrors += st.convergence
	}
	result.Duration = time.Since(startTime)

	if r.metrics != nil {
		r.metrics.RecordSweepPoints(name, pool, metrics.OutcomeOK, len(result.Points))
		r.metrics.RecordSweepPoints(name, pool, metrics.OutcomeDomain, result.DomainErrors)
		r.metrics.RecordSweepPoints(name, pool, metrics.OutcomeConvergence, result.ConvergenceErrors)
		r.metrics.RecordSweepLatency(name, result.Duration)
	}

	log.Info().
		Str("sweep", name).
		Str("pool", pool).
		Int("points", len(result.Points)).
		Int("domain_errors", result.DomainErrors).
		Int("convergence_errors", result.ConvergenceErrors).
		Dur("duration", result.Duration).
		Msg("Sweep complete")

	return result, nil
}
