package positions

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/rs/zerolog"

	"github.com/gregapostle/memebot/internal/chain"
	"github.com/gregapostle/memebot/internal/dex"
	"github.com/gregapostle/memebot/internal/metrics"
)

// DefaultTickInterval is the pause between exit evaluations.
const DefaultTickInterval = 2 * time.Second

// quoteTimeout bounds each exit quote once a tick has started.
const quoteTimeout = 10 * time.Second

// TickResult summarises one evaluation pass.
type TickResult struct {
	Evaluated int
	Closed    int
	Open      int
}

// Engine re-quotes open positions and closes the ones that hit take-profit, stop-loss or the trailing stop.
type Engine struct {
	store  *Store
	oracle dex.Quoter
	chain  chain.Chain
	log    zerolog.Logger
	now    func() time.Time
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithEngineClock overrides the clock used for hold times and close stamps.
func WithEngineClock(now func() time.Time) EngineOption {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// NewEngine builds an exit engine for positions on ch.
func NewEngine(store *Store, oracle dex.Quoter, ch chain.Chain, log zerolog.Logger, opts ...EngineOption) *Engine {
	e := &Engine{store: store, oracle: oracle, chain: ch, log: log, now: time.Now}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

type verdict struct {
	close   *Closed
	peak    float64
	hasPeak bool
}

// Evaluate runs one tick. Quote failures leave the affected row untouched; they are not errors.
// The returned error only reports store failures.
func (e *Engine) Evaluate(ctx context.Context, rules ExitRules) (TickResult, error) {
	start := time.Now()
	defer func() { metrics.ExitTickSeconds.Observe(time.Since(start).Seconds()) }()

	open, err := e.store.OpenPositions(ctx)
	if err != nil {
		return TickResult{}, err
	}
	if len(open) == 0 {
		metrics.OpenPositions.Set(0)
		return TickResult{}, nil
	}

	// a started tick evaluates every row and is persisted, even if the caller is shutting down
	tickCtx := context.WithoutCancel(ctx)
	now := e.now().UTC()
	st := Settlement{Peaks: make(map[string]float64)}
	res := TickResult{Evaluated: len(open)}
	for _, pos := range open {
		v := e.evaluate(tickCtx, pos, rules, now)
		switch {
		case v.close != nil:
			st.Closes = append(st.Closes, *v.close)
		case v.hasPeak:
			st.Peaks[pos.ID] = v.peak
		}
	}

	remaining, err := e.store.Settle(tickCtx, st)
	if err != nil {
		return res, err
	}
	res.Closed = len(st.Closes)
	res.Open = remaining
	metrics.OpenPositions.Set(float64(remaining))
	for _, c := range st.Closes {
		metrics.PositionsClosed.WithLabelValues(c.Reason).Inc()
		e.log.Info().
			Str("id", c.ID).
			Str("quote", c.Quote).
			Str("reason", c.Reason).
			Float64("entry_base", c.EntryBase).
			Float64("exit_base", c.ExitBase).
			Float64("pnl_base", c.PnLBase).
			Msg("position closed")
	}
	return res, nil
}

func (e *Engine) evaluate(ctx context.Context, pos Open, rules ExitRules, now time.Time) verdict {
	if pos.Chain != e.chain.Name || pos.Quote == "" {
		return verdict{}
	}
	amount := uint64(0)
	if pos.EntryOutRaw > 0 {
		amount = uint64(pos.EntryOutRaw)
	}
	qctx, cancel := context.WithTimeout(ctx, quoteTimeout)
	q, err := e.oracle.Quote(qctx, pos.Quote, e.chain.NativeMint, amount)
	cancel()
	if err != nil || q.OutAmount == 0 {
		if err == nil {
			err = dex.ErrNoRoute
		}
		e.log.Debug().Err(err).Str("id", pos.ID).Str("quote", pos.Quote).Msg("exit quote unavailable")
		return verdict{}
	}
	exitBase := e.chain.FromRaw(q.OutAmount)

	if now.Sub(pos.OpenedAt) < rules.MinHold {
		return verdict{}
	}

	pnlPct := PnLPct(pos.EntryBase, exitBase)
	reason := ""
	v := verdict{}
	switch {
	case pnlPct >= rules.TPPct:
		reason = ReasonTakeProfit
	case pnlPct <= rules.SLPct:
		reason = ReasonStopLoss
	default:
		peak := pnlPct
		if pos.HasPeak {
			peak = pos.Peak
		}
		v.peak, v.hasPeak = math.Max(peak, pnlPct), true
		if peak-pnlPct >= rules.TrailPct {
			reason = ReasonTrailingExit
		}
	}
	if reason == "" {
		return v
	}

	closedPos := pos
	if v.hasPeak {
		closedPos.Peak, closedPos.HasPeak = v.peak, true
	}
	v.close = &Closed{
		Open:     closedPos,
		ClosedAt: now,
		ExitBase: exitBase,
		PnLBase:  exitBase - pos.EntryBase,
		Reason:   reason,
	}
	return v
}

// Run evaluates on a fixed interval until ctx is cancelled. rules is consulted once per tick.
// Tick errors are logged and the loop carries on.
func (e *Engine) Run(ctx context.Context, interval time.Duration, rules func() ExitRules) error {
	if interval <= 0 {
		interval = DefaultTickInterval
	}
	if rules == nil {
		rules = DefaultExitRules
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	e.log.Info().Dur("interval", interval).Str("chain", e.chain.Name).Msg("exit loop started")
	for {
		res, err := e.Evaluate(ctx, rules())
		switch {
		case err != nil && !errors.Is(err, context.Canceled):
			e.log.Error().Err(err).Msg("exit tick failed")
		case res.Closed > 0:
			e.log.Debug().Int("closed", res.Closed).Int("open", res.Open).Msg("exit tick")
		}

		select {
		case <-ctx.Done():
			e.log.Info().Msg("exit loop stopped")
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
