package integration

import (
	"bytes"
	"context"
	"math"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/gregapostle/memebot/internal/chain"
	"github.com/gregapostle/memebot/internal/dex"
	"github.com/gregapostle/memebot/internal/engine"
	"github.com/gregapostle/memebot/internal/execution"
	"github.com/gregapostle/memebot/internal/ingest"
	"github.com/gregapostle/memebot/internal/paper"
	"github.com/gregapostle/memebot/internal/pnl"
	"github.com/gregapostle/memebot/internal/positions"
	"github.com/gregapostle/memebot/internal/risk"
	sig "github.com/gregapostle/memebot/internal/signal"
	"github.com/gregapostle/memebot/internal/strategy"
)

// market buys at 100 raw per lamport and sells everything back for a settable native amount.
type market struct {
	mu   sync.Mutex
	exit float64
}

func (m *market) setExit(v float64) {
	m.mu.Lock()
	m.exit = v
	m.mu.Unlock()
}

func (m *market) quoter() dex.Quoter {
	return dex.Func(func(_ context.Context, in, _ string, amount uint64) (dex.Quote, error) {
		if in == chain.Solana.NativeMint {
			return dex.Quote{OutAmount: amount * 100, ImpactBps: 30}, nil
		}
		m.mu.Lock()
		defer m.mu.Unlock()
		return dex.Quote{OutAmount: chain.Solana.ToRaw(m.exit), ImpactBps: 40}, nil
	})
}

func TestSignalToStopLossToDailyCap(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	tables, err := positions.NewCSVTables(t.TempDir())
	if err != nil {
		t.Fatalf("tables: %v", err)
	}
	store := positions.NewStore(tables)
	ledger := paper.NewLedger(zerolog.Nop())
	mkt := &market{exit: 0.1}

	var buf bytes.Buffer
	logger := zerolog.New(&buf)

	limits := risk.Limits{BaseSize: 0.1, DailyLossCap: 0.04}
	gate := risk.NewGate(limits, pnl.LossLedger{Source: store}, mkt.quoter(), chain.Solana)
	exec := execution.NewPaperExecutor(chain.Solana, store, ledger, paper.NewSimulator(1), logger)
	handler := engine.NewHandler(strategy.NewMemory(5*time.Minute), gate, strategy.DefaultPolicy(), exec, logger)

	signals := make(chan *sig.Signal, 4)
	src := &ingest.Mock{Interval: time.Millisecond}
	if err := src.Run(ctx, signals); err != nil {
		t.Fatalf("mock source: %v", err)
	}
	close(signals)
	if err := handler.Run(ctx, signals); err != nil {
		t.Fatalf("handler run: %v", err)
	}

	open, err := store.OpenPositions(ctx)
	if err != nil {
		t.Fatalf("open positions: %v", err)
	}
	if len(open) != 2 {
		t.Fatalf("expected 2 open positions, got %d", len(open))
	}
	for _, pos := range open {
		if pos.Base != "SOL" || math.Abs(pos.EntryBase-0.1) > 1e-12 {
			t.Fatalf("unexpected position %+v", pos)
		}
	}
	if n := len(ledger.ListAll()); n != 2 {
		t.Fatalf("expected 2 ledger trades, got %d", n)
	}
	if !strings.Contains(buf.String(), "paper order filled") {
		t.Fatalf("expected fill log, got %q", buf.String())
	}

	mkt.setExit(0.05)
	exits := positions.NewEngine(store, mkt.quoter(), chain.Solana, zerolog.Nop())
	rules := positions.DefaultExitRules()
	rules.MinHold = 0
	res, err := exits.Evaluate(ctx, rules)
	if err != nil {
		t.Fatalf("exit tick: %v", err)
	}
	if res.Closed != 2 {
		t.Fatalf("expected 2 closes, got %d", res.Closed)
	}

	closed, err := store.ClosedPositions(ctx)
	if err != nil {
		t.Fatalf("closed positions: %v", err)
	}
	if len(closed) != 2 {
		t.Fatalf("expected 2 closed rows, got %d", len(closed))
	}
	for _, c := range closed {
		if c.Reason != positions.ReasonStopLoss {
			t.Fatalf("expected stop_loss, got %s", c.Reason)
		}
	}

	summary := pnl.Report(closed, nil)
	if summary.Trades != 2 || summary.Losers != 2 {
		t.Fatalf("unexpected summary %+v", summary)
	}
	if math.Abs(summary.Net+0.1) > 1e-9 {
		t.Fatalf("expected net -0.1, got %.6f", summary.Net)
	}

	out, err := handler.Handle(ctx, &sig.Signal{Source: "late", Contract: "MintLate", Confidence: 0.95})
	if err != nil {
		t.Fatalf("handle late signal: %v", err)
	}
	if out.Decision.Action != strategy.ActionSkip || out.Decision.Reason != risk.ReasonDailyCapReached {
		t.Fatalf("expected skip for daily cap, got %+v", out.Decision)
	}

	open, err = store.OpenPositions(ctx)
	if err != nil {
		t.Fatalf("open positions: %v", err)
	}
	if len(open) != 0 {
		t.Fatalf("expected no open positions, got %d", len(open))
	}
}
