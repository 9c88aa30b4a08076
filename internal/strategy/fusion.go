// Package strategy scores incoming signals and turns entry proposals into trade decisions.
package strategy

import (
	"sync"
	"time"

	"github.com/gregapostle/memebot/internal/signal"
)

const (
	// baselineScore stands in for signals that arrive without an explicit confidence.
	baselineScore = 0.5
	// corroborationBoost is added per other retained signal naming the same contract.
	corroborationBoost = 0.5
)

// Memory keeps a decaying window of recent signals and fuses each new one against it.
type Memory struct {
	decay time.Duration
	now   func() time.Time

	mu      sync.Mutex
	signals []*signal.Signal
}

// Option configures Memory construction.
type Option func(*Memory)

// WithClock overrides the wall clock, mostly for tests.
func WithClock(now func() time.Time) Option {
	return func(m *Memory) {
		if now != nil {
			m.now = now
		}
	}
}

// NewMemory builds a fusion memory. A zero or negative decay keeps signals forever, skips decay
// and lets every retained signal on the same contract corroborate.
func NewMemory(decay time.Duration, opts ...Option) *Memory {
	m := &Memory{decay: decay, now: time.Now}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Decay returns the configured window.
func (m *Memory) Decay() time.Duration { return m.decay }

// Fuse records sig, scores it against the retained window and writes the score onto sig.
// The returned pointer is sig itself.
func (m *Memory) Fuse(sig *signal.Signal) *signal.Signal {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	m.signals = append(m.signals, sig)
	m.prune(now)

	score := sig.Confidence
	if score <= 0 {
		score = baselineScore
	}

	if sig.HasContract() {
		for _, other := range m.signals {
			if other == sig || other.Contract != sig.Contract {
				continue
			}
			if m.decay <= 0 || now.Sub(other.Ts) < m.decay {
				score += corroborationBoost
			}
		}
	}

	if age := now.Sub(sig.Ts); m.decay > 0 && age > 0 {
		factor := 1 - age.Seconds()/m.decay.Seconds()
		if factor < 0 {
			factor = 0
		}
		score *= factor
	}

	sig.Score = score
	return sig
}

// Recent returns a copy of the retained window after pruning.
func (m *Memory) Recent() []*signal.Signal {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.prune(m.now())
	out := make([]*signal.Signal, len(m.signals))
	copy(out, m.signals)
	return out
}

func (m *Memory) prune(now time.Time) {
	if m.decay <= 0 {
		return
	}
	kept := m.signals[:0]
	for _, s := range m.signals {
		if now.Sub(s.Ts) < m.decay {
			kept = append(kept, s)
		}
	}
	for i := len(kept); i < len(m.signals); i++ {
		m.signals[i] = nil
	}
	m.signals = kept
}
