// Package ingest hosts the adapters that feed signals into the pipeline.
package ingest

import (
	"context"
	"time"

	"github.com/gregapostle/memebot/internal/signal"
)

// Source pushes signals onto out until ctx is cancelled or the source is exhausted.
type Source interface {
	Run(ctx context.Context, out chan<- *signal.Signal) error
}

// Mock replays two canned signals, paced by Interval.
type Mock struct {
	Interval time.Duration
	// Repeat keeps cycling through the samples until ctx ends.
	Repeat bool
	now    func() time.Time
}

const defaultMockInterval = time.Second

// MockSamples returns the canned signals, stamped with now.
func MockSamples(now time.Time) []*signal.Signal {
	return []*signal.Signal{
		{
			Platform:   signal.PlatformMock,
			Source:     "mock_source",
			Content:    "caller alpha",
			Confidence: 0.82,
			Ts:         now,
			Contract:   "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v",
			Symbol:     "USDC",
			Caller:     "alpha",
		},
		{
			Platform:   signal.PlatformMock,
			Source:     "mock_source",
			Content:    "caller beta",
			Confidence: 0.78,
			Ts:         now,
			Contract:   "DezXAZ8z7PnrnRJjz3wXBoRgixCa6xjnB7YaB1pPB263",
			Symbol:     "BONK",
			Caller:     "beta",
		},
	}
}

// Run emits the samples and returns nil once done when Repeat is off.
func (m *Mock) Run(ctx context.Context, out chan<- *signal.Signal) error {
	interval := m.Interval
	if interval <= 0 {
		interval = defaultMockInterval
	}
	now := m.now
	if now == nil {
		now = time.Now
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		for _, sig := range MockSamples(now().UTC()) {
			select {
			case out <- sig:
			case <-ctx.Done():
				return ctx.Err()
			}
			select {
			case <-ticker.C:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		if !m.Repeat {
			return nil
		}
	}
}
