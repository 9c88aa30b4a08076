package paper

import (
	"math/rand"
	"sync"
)

// Slippage bounds for simulated fills, in basis points.
const (
	MaxSimSlippageBps = 500
	minSimNoiseBps    = 10
	maxSimNoiseBps    = 120
)

// Simulator draws a plausible fill slippage from the quoted price impact.
type Simulator struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewSimulator seeds its own source so runs can be replayed.
func NewSimulator(seed int64) *Simulator {
	return &Simulator{rng: rand.New(rand.NewSource(seed))}
}

// SlippageBps returns min(500, impact + noise) with noise uniform in [10, 120).
func (s *Simulator) SlippageBps(impactBps int) int {
	if impactBps < 0 {
		impactBps = 0
	}
	s.mu.Lock()
	noise := minSimNoiseBps + s.rng.Intn(maxSimNoiseBps-minSimNoiseBps)
	s.mu.Unlock()
	return min(MaxSimSlippageBps, impactBps+noise)
}
