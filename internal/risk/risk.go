// Package risk sizes entries and rejects the ones that break loss, caller or liquidity limits.
package risk

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/gregapostle/memebot/internal/chain"
	"github.com/gregapostle/memebot/internal/dex"
	"github.com/gregapostle/memebot/internal/signal"
)

// Rejection reasons; ReasonOK marks an accepted proposal.
const (
	ReasonOK               = "ok"
	ReasonDailyCapReached  = "daily_cap_reached"
	ReasonCallerNotAllowed = "caller_not_allowed"
	ReasonNoContract       = "no_contract"
	ReasonNoBuyRoute       = "no_buy_route"
	ReasonNoSellRoute      = "no_sell_route"
)

// Tier maps a confidence threshold onto a size multiplier.
type Tier struct {
	Threshold  float64
	Multiplier float64
}

// Limits holds the sizing and loss knobs, parsed once at startup.
type Limits struct {
	BaseSize     float64
	DailyLossCap float64
	// Tiers must be sorted by ascending threshold; ParseTiers does that.
	Tiers []Tier
	// Allowlist maps lower-cased caller names to size multipliers. Empty means everyone at 1.0.
	Allowlist map[string]float64
}

// ConfidenceMultiplier returns the multiplier of the largest threshold not above conf.
func (l Limits) ConfidenceMultiplier(conf float64) float64 {
	mult := 1.0
	for _, t := range l.Tiers {
		if conf >= t.Threshold {
			mult = t.Multiplier
		}
	}
	return mult
}

// CallerMultiplier resolves the caller against the allowlist.
func (l Limits) CallerMultiplier(caller string) (float64, bool) {
	if len(l.Allowlist) == 0 {
		return 1.0, true
	}
	mult, ok := l.Allowlist[strings.ToLower(strings.TrimSpace(caller))]
	return mult, ok
}

// Proposal is the gate's verdict for one signal.
type Proposal struct {
	Accepted    bool
	Reason      string
	Size        float64
	ExpectedOut uint64
	ImpactBps   int
	Contract    string
	Symbol      string
}

// LossLedger reports today's realised losses as a positive number.
type LossLedger interface {
	DailyLoss(ctx context.Context, now time.Time) (float64, error)
}

// Gate turns fused signals into sized proposals.
type Gate struct {
	limits Limits
	ledger LossLedger
	oracle dex.Quoter
	chain  chain.Chain
	now    func() time.Time
}

// NewGate builds a gate. ledger may be nil when no daily cap is configured.
func NewGate(limits Limits, ledger LossLedger, oracle dex.Quoter, ch chain.Chain) *Gate {
	return &Gate{limits: limits, ledger: ledger, oracle: oracle, chain: ch, now: time.Now}
}

// Limits returns the gate's configuration.
func (g *Gate) Limits() Limits { return g.limits }

// Plan runs the checks in order and stops at the first failure.
// The error return is reserved for failures reading the loss ledger.
func (g *Gate) Plan(ctx context.Context, sig *signal.Signal) (Proposal, error) {
	reject := func(reason string) Proposal {
		return Proposal{Reason: reason, Contract: sig.Contract, Symbol: sig.Symbol}
	}

	if g.limits.DailyLossCap > 0 && g.ledger != nil {
		loss, err := g.ledger.DailyLoss(ctx, g.now())
		if err != nil {
			return Proposal{}, fmt.Errorf("daily loss: %w", err)
		}
		if loss >= g.limits.DailyLossCap {
			return reject(ReasonDailyCapReached), nil
		}
	}

	callerMult, ok := g.limits.CallerMultiplier(sig.Caller)
	if !ok {
		return reject(ReasonCallerNotAllowed), nil
	}
	confMult := g.limits.ConfidenceMultiplier(sig.Confidence)

	if !sig.HasContract() {
		return reject(ReasonNoContract), nil
	}

	size := g.limits.BaseSize * callerMult * confMult
	p := reject("")
	p.Size = size

	buy, err := g.oracle.Quote(ctx, g.chain.NativeMint, sig.Contract, g.chain.ToRaw(size))
	if err != nil || buy.OutAmount == 0 {
		p.Reason = ReasonNoBuyRoute
		return p, nil
	}
	p.ExpectedOut, p.ImpactBps = buy.OutAmount, buy.ImpactBps

	if _, err := g.oracle.Quote(ctx, sig.Contract, g.chain.NativeMint, buy.OutAmount); err != nil {
		p.Reason = ReasonNoSellRoute
		return p, nil
	}
	p.Accepted, p.Reason = true, ReasonOK
	return p, nil
}

// ParseTiers reads "threshold:multiplier" pairs separated by commas.
// Any malformed pair invalidates the whole table, which then falls back to empty.
func ParseTiers(raw string) ([]Tier, error) {
	pairs, err := parsePairs(raw)
	if err != nil {
		return nil, fmt.Errorf("confidence tiers: %w", err)
	}
	tiers := make([]Tier, 0, len(pairs))
	for k, v := range pairs {
		threshold, err := strconv.ParseFloat(k, 64)
		if err != nil {
			return nil, fmt.Errorf("confidence tiers: threshold %q: %w", k, err)
		}
		tiers = append(tiers, Tier{Threshold: threshold, Multiplier: v})
	}
	sort.Slice(tiers, func(i, j int) bool { return tiers[i].Threshold < tiers[j].Threshold })
	return tiers, nil
}

// ParseAllowlist reads "caller:multiplier" pairs separated by commas; callers are lower-cased.
func ParseAllowlist(raw string) (map[string]float64, error) {
	pairs, err := parsePairs(raw)
	if err != nil {
		return nil, fmt.Errorf("caller allowlist: %w", err)
	}
	out := make(map[string]float64, len(pairs))
	for k, v := range pairs {
		out[strings.ToLower(k)] = v
	}
	return out, nil
}

func parsePairs(raw string) (map[string]float64, error) {
	out := make(map[string]float64)
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		k, v, ok := strings.Cut(part, ":")
		k, v = strings.TrimSpace(k), strings.TrimSpace(v)
		if !ok || k == "" {
			return nil, fmt.Errorf("malformed pair %q", part)
		}
		mult, err := strconv.ParseFloat(v, 64)
		if err != nil || mult < 0 {
			return nil, fmt.Errorf("multiplier in %q must be a non-negative number", part)
		}
		out[k] = mult
	}
	return out, nil
}
