package amm

// commitFunc stores new reserves on a pool and returns the recomputed invariant.
type commitFunc func(Reserves) (float64, error)

// executeTrade runs the shared solve-then-commit sequence behind every
// ExecuteTrade implementation and publishes the resulting record. oraclePrice
// is zero for pools that are not price-anchored.
func executeTrade(c ConservationCurve, xIn float64, i, j int, oraclePrice float64, commit commitFunc) (TradeEvent, error) {
	if err := checkPair(i, j); err != nil {
		return TradeEvent{}, err
	}
	prev := c.Reserves()
	prevInvariant := c.Invariant()

	ri, rj, err := c.ComputeTradeQtyOut(xIn, i, j)
	if err != nil {
		return TradeEvent{}, err
	}

	next := withPair(prev, i, j, ri, rj)
	invariant, err := commit(next)
	if err != nil {
		return TradeEvent{}, err
	}

	ev := TradeEvent{
		Family:        c.Family(),
		In:            i,
		Out:           j,
		AmountIn:      xIn,
		AmountOut:     prev[j] - rj,
		PrevReserves:  prev,
		PrevInvariant: prevInvariant,
		Reserves:      next,
		Invariant:     invariant,
		OraclePrice:   oraclePrice,
	}
	sink().TradeExecuted(ev)
	return ev, nil
}

// addLiquidity runs the shared deposit sequence.
func addLiquidity(m Model, x0, x1 float64, commit commitFunc) (LiquidityEvent, error) {
	if err := validateAmounts(x0, x1); err != nil {
		return LiquidityEvent{}, err
	}
	prev := m.Reserves()
	prevInvariant := m.Invariant()

	next := Reserves{prev[0] + x0, prev[1] + x1}
	invariant, err := commit(next)
	if err != nil {
		return LiquidityEvent{}, err
	}

	ev := LiquidityEvent{
		Family:        m.Family(),
		Amounts:       [2]float64{x0, x1},
		PrevReserves:  prev,
		PrevInvariant: prevInvariant,
		Reserves:      next,
		Invariant:     invariant,
	}
	sink().LiquidityAdded(ev)
	return ev, nil
}

func announce(m Model) {
	sink().PoolCreated(PoolCreatedEvent{
		Family:    m.Family(),
		Reserves:  m.Reserves(),
		Invariant: m.Invariant(),
	})
}
