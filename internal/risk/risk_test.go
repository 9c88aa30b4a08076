package risk

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/gregapostle/memebot/internal/chain"
	"github.com/gregapostle/memebot/internal/dex"
	"github.com/gregapostle/memebot/internal/signal"
)

type fixedLoss float64

func (f fixedLoss) DailyLoss(context.Context, time.Time) (float64, error) { return float64(f), nil }

type brokenLedger struct{}

func (brokenLedger) DailyLoss(context.Context, time.Time) (float64, error) {
	return 0, errors.New("disk on fire")
}

// routes answers buys and sells independently.
type routes struct {
	buyOK, sellOK bool
	buys          []uint64
	sells         []uint64
}

func (r *routes) Quote(_ context.Context, in, out string, amount uint64) (dex.Quote, error) {
	if in == chain.Solana.NativeMint {
		r.buys = append(r.buys, amount)
		if !r.buyOK {
			return dex.Quote{}, dex.ErrNoRoute
		}
		return dex.Quote{OutAmount: 1000, ImpactBps: 300}, nil
	}
	r.sells = append(r.sells, amount)
	if !r.sellOK {
		return dex.Quote{}, dex.ErrNoRoute
	}
	return dex.Quote{OutAmount: amount, ImpactBps: 10}, nil
}

func mustTiers(t *testing.T, raw string) []Tier {
	t.Helper()
	tiers, err := ParseTiers(raw)
	if err != nil {
		t.Fatalf("ParseTiers(%q): %v", raw, err)
	}
	return tiers
}

func mustAllow(t *testing.T, raw string) map[string]float64 {
	t.Helper()
	allow, err := ParseAllowlist(raw)
	if err != nil {
		t.Fatalf("ParseAllowlist(%q): %v", raw, err)
	}
	return allow
}

func TestPlanSizingByConfidenceAndCaller(t *testing.T) {
	oracle := &routes{buyOK: true, sellOK: true}
	limits := Limits{
		BaseSize:  0.1,
		Tiers:     mustTiers(t, "0.7:1.0,0.8:1.5,0.9:2.0"),
		Allowlist: mustAllow(t, "alpha:2.0,beta:1.0"),
	}
	gate := NewGate(limits, nil, oracle, chain.Solana)

	sig := &signal.Signal{Source: "test", Symbol: "X", Contract: "TokenMintX", Confidence: 0.9, Caller: "Alpha"}
	p, err := gate.Plan(context.Background(), sig)
	if err != nil {
		t.Fatalf("Plan returned error: %v", err)
	}
	if !p.Accepted || p.Reason != ReasonOK {
		t.Fatalf("expected accepted proposal, got %+v", p)
	}
	if math.Abs(p.Size-0.4) > 1e-9 {
		t.Fatalf("expected size 0.4, got %.12f", p.Size)
	}
	if p.ExpectedOut != 1000 || p.ImpactBps != 300 {
		t.Fatalf("expected buy-side out/impact, got %+v", p)
	}
	if len(oracle.buys) != 1 || oracle.buys[0] != 400_000_000 {
		t.Fatalf("expected a 0.4 SOL buy quote, got %v", oracle.buys)
	}
	if len(oracle.sells) != 1 || oracle.sells[0] != 1000 {
		t.Fatalf("expected the sell leg to sell the buy output, got %v", oracle.sells)
	}
}

func TestPlanDailyCapWinsOverEverything(t *testing.T) {
	oracle := &routes{buyOK: true, sellOK: true}
	limits := Limits{BaseSize: 0.05, DailyLossCap: 0.5, Allowlist: mustAllow(t, "alpha:1")}
	gate := NewGate(limits, fixedLoss(0.6), oracle, chain.Solana)

	for _, sig := range []*signal.Signal{
		{Contract: "TokenMintY", Confidence: 0.8, Caller: "any"},
		{Confidence: 0.1},
		{Contract: "TokenMintY", Caller: "alpha"},
	} {
		p, err := gate.Plan(context.Background(), sig)
		if err != nil {
			t.Fatalf("Plan returned error: %v", err)
		}
		if p.Accepted || p.Reason != ReasonDailyCapReached {
			t.Fatalf("expected daily_cap_reached, got %+v", p)
		}
	}
	if len(oracle.buys) != 0 {
		t.Fatalf("oracle must not be consulted once the cap is hit")
	}

	under := NewGate(limits, fixedLoss(0.49), oracle, chain.Solana)
	p, _ := under.Plan(context.Background(), &signal.Signal{Contract: "TokenMintY", Caller: "alpha"})
	if !p.Accepted {
		t.Fatalf("expected acceptance below cap, got %+v", p)
	}
}

func TestPlanRejections(t *testing.T) {
	cases := []struct {
		name   string
		limits Limits
		oracle *routes
		sig    *signal.Signal
		reason string
	}{
		{
			name:   "caller not allowed",
			limits: Limits{BaseSize: 0.1, Allowlist: map[string]float64{"alpha": 2}},
			oracle: &routes{buyOK: true, sellOK: true},
			sig:    &signal.Signal{Contract: "Mint", Caller: "mallory"},
			reason: ReasonCallerNotAllowed,
		},
		{
			name:   "caller missing",
			limits: Limits{BaseSize: 0.1, Allowlist: map[string]float64{"alpha": 2}},
			oracle: &routes{buyOK: true, sellOK: true},
			sig:    &signal.Signal{Contract: "Mint"},
			reason: ReasonCallerNotAllowed,
		},
		{
			name:   "no contract",
			limits: Limits{BaseSize: 0.1},
			oracle: &routes{buyOK: true, sellOK: true},
			sig:    &signal.Signal{Confidence: 0.9},
			reason: ReasonNoContract,
		},
		{
			name:   "no buy route",
			limits: Limits{BaseSize: 0.1},
			oracle: &routes{sellOK: true},
			sig:    &signal.Signal{Contract: "Mint"},
			reason: ReasonNoBuyRoute,
		},
		{
			name:   "no sell route",
			limits: Limits{BaseSize: 0.1},
			oracle: &routes{buyOK: true},
			sig:    &signal.Signal{Contract: "Mint"},
			reason: ReasonNoSellRoute,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			gate := NewGate(tc.limits, nil, tc.oracle, chain.Solana)
			p, err := gate.Plan(context.Background(), tc.sig)
			if err != nil {
				t.Fatalf("Plan returned error: %v", err)
			}
			if p.Accepted || p.Reason != tc.reason {
				t.Fatalf("expected %s, got %+v", tc.reason, p)
			}
			if tc.reason == ReasonNoSellRoute && (p.ExpectedOut != 1000 || p.ImpactBps != 300) {
				t.Fatalf("no_sell_route must carry buy-side figures, got %+v", p)
			}
		})
	}
}

func TestPlanLedgerFailure(t *testing.T) {
	gate := NewGate(Limits{BaseSize: 0.1, DailyLossCap: 1}, brokenLedger{}, &routes{}, chain.Solana)
	if _, err := gate.Plan(context.Background(), &signal.Signal{Contract: "Mint"}); err == nil {
		t.Fatalf("expected ledger error to surface")
	}
}

func TestConfidenceMultiplier(t *testing.T) {
	limits := Limits{Tiers: mustTiers(t, "0.9:2.0, 0.7:1.0,0.8:1.5")}
	cases := map[float64]float64{0.5: 1.0, 0.7: 1.0, 0.85: 1.5, 0.9: 2.0, 1.0: 2.0}
	for conf, want := range cases {
		if got := limits.ConfidenceMultiplier(conf); got != want {
			t.Fatalf("conf %.2f: expected %.2f got %.2f", conf, want, got)
		}
	}
	if got := (Limits{}).ConfidenceMultiplier(0.99); got != 1.0 {
		t.Fatalf("expected default multiplier 1.0, got %.2f", got)
	}
}

func TestParseTablesRejectMalformed(t *testing.T) {
	for _, raw := range []string{"0.7", "x:1", "0.7:abc", "0.7:-1"} {
		if tiers, err := ParseTiers(raw); err == nil {
			t.Fatalf("ParseTiers(%q) expected error, got %+v", raw, tiers)
		}
	}
	if _, err := ParseAllowlist(":2"); err == nil {
		t.Fatalf("expected error for empty caller")
	}
	allow, err := ParseAllowlist("Alpha:2.0,,beta:1")
	if err != nil || allow["alpha"] != 2.0 || allow["beta"] != 1 {
		t.Fatalf("unexpected allowlist %v err=%v", allow, err)
	}
	tiers, err := ParseTiers("")
	if err != nil || len(tiers) != 0 {
		t.Fatalf("expected empty tiers, got %v err=%v", tiers, err)
	}
}
