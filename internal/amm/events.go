package amm

import (
	"sync/atomic"
)

// PoolCreatedEvent is emitted once per constructed pool.
type PoolCreatedEvent struct {
	Family    Family
	Reserves  Reserves
	Invariant float64
}

// TradeEvent records a committed trade.
type TradeEvent struct {
	Family        Family
	In            int
	Out           int
	AmountIn      float64
	AmountOut     float64
	PrevReserves  Reserves
	PrevInvariant float64
	Reserves      Reserves
	Invariant     float64
	OraclePrice   float64 // zero unless the pool is price-anchored
}

// LiquidityEvent records a liquidity deposit.
type LiquidityEvent struct {
	Family        Family
	Amounts       [2]float64
	PrevReserves  Reserves
	PrevInvariant float64
	Reserves      Reserves
	Invariant     float64
}

// EventSink consumes state-transition records. Implementations must be safe
// for concurrent use.
type EventSink interface {
	PoolCreated(PoolCreatedEvent)
	TradeExecuted(TradeEvent)
	LiquidityAdded(LiquidityEvent)
}

type nopSink struct{}

func (nopSink) PoolCreated(PoolCreatedEvent)  {}
func (nopSink) TradeExecuted(TradeEvent)      {}
func (nopSink) LiquidityAdded(LiquidityEvent) {}

type sinkHolder struct {
	sink EventSink
}

var globalSink atomic.Pointer[sinkHolder]

func init() {
	globalSink.Store(&sinkHolder{sink: nopSink{}})
}

// SetEventSink installs the process-wide sink. Passing nil restores the no-op sink.
func SetEventSink(s EventSink) {
	if s == nil {
		s = nopSink{}
	}
	globalSink.Store(&sinkHolder{sink: s})
}

func sink() EventSink {
	return globalSink.Load().sink
}
