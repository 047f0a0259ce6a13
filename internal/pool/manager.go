// Package pool keeps the named set of pools under analysis. Mutations are
// serialized per pool; readers work on cloned snapshots.
package pool

import (
	"fmt"
	"sync"
	"time"

	"curvelab/internal/amm"
	"curvelab/internal/metrics"

	"github.com/rs/zerolog/log"
)

// Entry is a registered pool.
type Entry struct {
	mu sync.Mutex

	name   string
	fee    float64
	pool   amm.Pool
	anchor amm.Anchored // non-nil for oracle-anchored models
}

// Manager is a registry of named pools.
type Manager struct {
	mu sync.RWMutex

	entries     map[string]*Entry
	order       []string
	oraclePrice float64
	metrics     *metrics.Metrics
}

// NewManager creates a pool manager. Oracle-anchored models are bound to
// oraclePrice when they are added. Metrics may be nil.
func NewManager(oraclePrice float64, m *metrics.Metrics) *Manager {
	return &Manager{
		entries:     make(map[string]*Entry),
		oraclePrice: oraclePrice,
		metrics:     m,
	}
}

// Add registers a model under name. The model must be an amm.Pool or an
// amm.Anchored model.
func (m *Manager) Add(name string, model amm.Model, fee float64) error {
	e := &Entry{name: name, fee: fee}
	switch v := model.(type) {
	case amm.Pool:
		e.pool = v
	case amm.Anchored:
		e.anchor = v
		e.pool = v.At(m.oraclePrice)
	default:
		return fmt.Errorf("pool %s: unsupported model %T", name, model)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.entries[name]; exists {
		return fmt.Errorf("pool %s already registered", name)
	}
	m.entries[name] = e
	m.order = append(m.order, name)

	if m.metrics != nil {
		m.metrics.SetPoolsLoaded(len(m.entries))
	}

	log.Debug().
		Str("pool", name).
		Str("family", string(model.Family())).
		Float64("fee", fee).
		Msg("Registered pool")

	return nil
}

func (m *Manager) entry(name string) (*Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	e, ok := m.entries[name]
	if !ok {
		return nil, fmt.Errorf("pool %s not found", name)
	}
	return e, nil
}

// Names returns the registered pool names in registration order.
func (m *Manager) Names() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]string, len(m.order))
	copy(out, m.order)
	return out
}

// NumPools returns the number of registered pools.
func (m *Manager) NumPools() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

// Fee returns the configured swap fee of a pool.
func (m *Manager) Fee(name string) (float64, error) {
	e, err := m.entry(name)
	if err != nil {
		return 0, err
	}
	return e.fee, nil
}

// Pool returns a cloned copy of the named pool.
func (m *Manager) Pool(name string) (amm.Pool, error) {
	e, err := m.entry(name)
	if err != nil {
		return nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.pool.Clone(), nil
}

// ExecuteTrade commits a trade on the named pool.
func (m *Manager) ExecuteTrade(name string, xIn float64, i, j int) (amm.TradeEvent, error) {
	e, err := m.entry(name)
	if err != nil {
		return amm.TradeEvent{}, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	ev, err := e.pool.ExecuteTrade(xIn, i, j)
	if err != nil {
		return amm.TradeEvent{}, fmt.Errorf("pool %s: %w", name, err)
	}
	return ev, nil
}

// AddLiquidity deposits into the named pool.
func (m *Manager) AddLiquidity(name string, x0, x1 float64) (amm.LiquidityEvent, error) {
	e, err := m.entry(name)
	if err != nil {
		return amm.LiquidityEvent{}, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	ev, err := e.pool.AddLiquidity(x0, x1)
	if err != nil {
		return amm.LiquidityEvent{}, fmt.Errorf("pool %s: %w", name, err)
	}
	return ev, nil
}

// SetOraclePrice rebinds an oracle-anchored pool to a new price.
func (m *Manager) SetOraclePrice(name string, price float64) error {
	e, err := m.entry(name)
	if err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.anchor == nil {
		return fmt.Errorf("pool %s is not oracle-anchored", name)
	}
	e.pool = e.anchor.At(price)

	log.Info().
		Str("pool", name).
		Float64("oracle_price", price).
		Float64("invariant", e.pool.Invariant()).
		Msg("Rebound pool to oracle price")

	return nil
}

// CreateSnapshot clones every pool. Each pool is cloned under its own lock, so
// a trade in flight is either fully visible or not at all.
func (m *Manager) CreateSnapshot() *Snapshot {
	startTime := time.Now()

	m.mu.RLock()
	names := make([]string, len(m.order))
	copy(names, m.order)
	entries := make([]*Entry, len(names))
	for idx, name := range names {
		entries[idx] = m.entries[name]
	}
	m.mu.RUnlock()

	snap := &Snapshot{
		Names: names,
		Pools: make(map[string]amm.Pool, len(names)),
		Fees:  make(map[string]float64, len(names)),
	}
	for idx, e := range entries {
		e.mu.Lock()
		snap.Pools[names[idx]] = e.pool.Clone()
		snap.Fees[names[idx]] = e.fee
		e.mu.Unlock()
	}
	snap.CreatedAt = time.Now()

	log.Debug().
		Int("pools", len(names)).
		Dur("snapshot_time", time.Since(startTime)).
		Msg("Created pool snapshot")

	return snap
}
