package execution

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/gregapostle/memebot/internal/chain"
	"github.com/gregapostle/memebot/internal/paper"
	"github.com/gregapostle/memebot/internal/positions"

	"github.com/rs/zerolog"
)

type failingOpener struct{}

func (failingOpener) Open(context.Context, positions.OpenRequest) (positions.Open, error) {
	return positions.Open{}, errors.New("disk full")
}

func TestSubmitOpensPositionAndRecordsTrade(t *testing.T) {
	var buf bytes.Buffer
	store := positions.NewStore(positions.NewMemTables())
	ledger := paper.NewLedger(zerolog.Nop())
	exec := NewPaperExecutor(chain.Solana, store, ledger, paper.NewSimulator(1), zerolog.New(&buf))

	fill, err := exec.Submit(context.Background(), Order{
		Contract: "MintA", Symbol: "MEME", SizeBase: 0.2, ExpectedOut: 24_000_000,
		ImpactBps: 30, MaxSlippageBps: 300, Reason: "rule_pass",
	})
	if err != nil {
		t.Fatalf("Submit returned error: %v", err)
	}

	open, err := store.OpenPositions(context.Background())
	if err != nil || len(open) != 1 {
		t.Fatalf("expected one open position, got %d err=%v", len(open), err)
	}
	pos := open[0]
	if pos.ID != fill.Position.ID || pos.Quote != "MintA" || pos.Base != "SOL" || pos.EntryBase != 0.2 || pos.EntryOutRaw != 24_000_000 {
		t.Fatalf("unexpected position %+v", pos)
	}

	trades := ledger.ListAll()
	if len(trades) != 1 {
		t.Fatalf("expected one trade, got %d", len(trades))
	}
	if tr := trades[0]; tr.Side != paper.Buy || tr.SlippageBps != 300 || tr.EntryValue != 24_000_000 || tr.Reason != "rule_pass" {
		t.Fatalf("unexpected trade %+v", tr)
	}
	if fill.SimSlipBps < 40 || fill.SimSlipBps >= 150 {
		t.Fatalf("unexpected simulated slippage %d", fill.SimSlipBps)
	}
	if out := buf.String(); !strings.Contains(out, "MEME") || !strings.Contains(out, "paper order filled") {
		t.Fatalf("log does not contain order: %s", out)
	}
}

func TestSubmitRejectsBadOrders(t *testing.T) {
	ledger := paper.NewLedger(zerolog.Nop())
	exec := NewPaperExecutor(chain.Solana, positions.NewStore(positions.NewMemTables()), ledger, nil, zerolog.Nop())

	for _, order := range []Order{{SizeBase: 0.1}, {Contract: "MintA"}, {Contract: "MintA", SizeBase: -1}} {
		if _, err := exec.Submit(context.Background(), order); !errors.Is(err, ErrInvalidOrder) {
			t.Fatalf("expected ErrInvalidOrder for %+v, got %v", order, err)
		}
	}

	failing := NewPaperExecutor(chain.Solana, failingOpener{}, ledger, nil, zerolog.Nop())
	if _, err := failing.Submit(context.Background(), Order{Contract: "MintA", SizeBase: 0.1}); err == nil {
		t.Fatalf("expected store error")
	}
	if n := len(ledger.ListAll()); n != 0 {
		t.Fatalf("no trade may be recorded without a position, got %d", n)
	}
}
