// Package eventlog writes pool state transitions to the structured log.
package eventlog

import (
	"curvelab/internal/amm"
	"curvelab/internal/metrics"

	"github.com/rs/zerolog"
)

// Sink is an amm.EventSink backed by a zerolog logger.
type Sink struct {
	logger  zerolog.Logger
	metrics *metrics.Metrics
}

// New creates a sink. Metrics may be nil.
func New(logger zerolog.Logger, m *metrics.Metrics) *Sink {
	return &Sink{
		logger:  logger.With().Str("component", "amm").Logger(),
		metrics: m,
	}
}

// Install makes s the process-wide event sink.
func (s *Sink) Install() {
	amm.SetEventSink(s)
}

// PoolCreated logs a new pool.
func (s *Sink) PoolCreated(ev amm.PoolCreatedEvent) {
	if s.metrics != nil {
		s.metrics.RecordPoolCreated(string(ev.Family))
	}

	s.logger.Info().
		Str("family", string(ev.Family)).
		Float64("x_1", ev.Reserves[0]).
		Float64("x_2", ev.Reserves[1]).
		Float64("invariant", ev.Invariant).
		Float64("exchange_rate", ev.Reserves.ExchangeRate()).
		Msg("Created pool")
}

// TradeExecuted logs a committed trade with the exchange rate before and after.
func (s *Sink) TradeExecuted(ev amm.TradeEvent) {
	if s.metrics != nil {
		s.metrics.RecordTrade(string(ev.Family))
	}

	e := s.logger.Debug().
		Str("family", string(ev.Family)).
		Int("in", ev.In).
		Int("out", ev.Out).
		Float64("amount_in", ev.AmountIn).
		Float64("amount_out", ev.AmountOut).
		Float64("prev_exchange_rate", ev.PrevReserves.ExchangeRate()).
		Float64("prev_x_1", ev.PrevReserves[0]).
		Float64("prev_x_2", ev.PrevReserves[1]).
		Float64("prev_invariant", ev.PrevInvariant).
		Float64("exchange_rate", ev.Reserves.ExchangeRate()).
		Float64("x_1", ev.Reserves[0]).
		Float64("x_2", ev.Reserves[1]).
		Float64("invariant", ev.Invariant)
	if ev.OraclePrice != 0 {
		e = e.Float64("oracle_price", ev.OraclePrice)
	}
	e.Msg("Executed trade")
}

// LiquidityAdded logs a deposit.
func (s *Sink) LiquidityAdded(ev amm.LiquidityEvent) {
	if s.metrics != nil {
		s.metrics.RecordLiquidityAdded(string(ev.Family))
	}

	s.logger.Info().
		Str("family", string(ev.Family)).
		Float64("delta_x_1", ev.Reserves[0]-ev.PrevReserves[0]).
		Float64("delta_x_2", ev.Reserves[1]-ev.PrevReserves[1]).
		Float64("x_1", ev.Reserves[0]).
		Float64("x_2", ev.Reserves[1]).
		Float64("prev_invariant", ev.PrevInvariant).
		Float64("invariant", ev.Invariant).
		Msg("Added liquidity")
}
