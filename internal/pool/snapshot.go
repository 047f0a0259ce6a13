package pool

import (
	"time"

	"curvelab/internal/amm"
)

// Snapshot is a point-in-time copy of every registered pool. Pools in a
// snapshot are independent clones and may be queried concurrently.
type Snapshot struct {
	Names     []string
	Pools     map[string]amm.Pool
	Fees      map[string]float64
	CreatedAt time.Time
}

// NumPools returns the number of pools in the snapshot.
func (s *Snapshot) NumPools() int {
	return len(s.Names)
}

// Get returns the named pool.
func (s *Snapshot) Get(name string) (amm.Pool, bool) {
	p, ok := s.Pools[name]
	return p, ok
}
