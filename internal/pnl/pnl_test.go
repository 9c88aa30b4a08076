package pnl

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/gregapostle/memebot/internal/positions"
)

func closedAt(quote string, at time.Time, exit, pnl float64) positions.Closed {
	return positions.Closed{
		Open:     positions.Open{ID: quote + at.String(), Quote: quote, EntryBase: exit - pnl},
		ClosedAt: at,
		ExitBase: exit,
		PnLBase:  pnl,
	}
}

func TestReport(t *testing.T) {
	now := time.Date(2026, 10, 17, 15, 0, 0, 0, time.UTC)
	rows := []positions.Closed{
		closedAt("A", now.Add(-48*time.Hour), 1.3, 0.3),
		closedAt("B", now.Add(-time.Hour), 0.4, -0.6),
		closedAt("A", now, 1.0, 0),
	}

	all := Report(rows, nil)
	if all.Trades != 3 || all.Winners != 1 || all.Losers != 2 {
		t.Fatalf("unexpected summary %+v", all)
	}
	if math.Abs(all.Gross-2.7) > 1e-9 || math.Abs(all.Net-(-0.3)) > 1e-9 {
		t.Fatalf("unexpected totals %+v", all)
	}

	since := StartOfDay(now)
	today := Report(rows, &since)
	if today.Trades != 2 || today.Winners != 0 || today.Losers != 2 {
		t.Fatalf("unexpected today summary %+v", today)
	}

	if empty := Report(nil, nil); empty != (Summary{}) {
		t.Fatalf("expected zero summary, got %+v", empty)
	}
}

func TestByToken(t *testing.T) {
	now := time.Now()
	rows := []positions.Closed{
		closedAt("A", now, 1.3, 0.3),
		closedAt("B", now, 0.4, -0.6),
		closedAt("A", now, 0.9, -0.1),
		closedAt("", now, 1, 0),
	}
	got := ByToken(rows)
	if len(got) != 3 {
		t.Fatalf("expected 3 tokens, got %+v", got)
	}
	if got[0].Token != "A" || got[0].Trades != 2 || math.Abs(got[0].Net-0.2) > 1e-9 {
		t.Fatalf("unexpected first token %+v", got[0])
	}
	if got[2].Token != "UNKNOWN" {
		t.Fatalf("expected blank quote grouped as UNKNOWN, got %+v", got)
	}
}

func TestDailyLoss(t *testing.T) {
	now := time.Date(2026, 10, 17, 1, 0, 0, 0, time.UTC)
	rows := []positions.Closed{
		closedAt("A", now.Add(-30*time.Minute), 0.4, -0.6),
		closedAt("B", now.Add(-2*time.Hour), 0.1, -0.9), // previous UTC day
		closedAt("C", now, 1.5, 0.5),
		{PnLBase: -5},
	}
	if got := DailyLoss(rows, now); math.Abs(got-0.6) > 1e-9 {
		t.Fatalf("expected 0.6 loss, got %.4f", got)
	}
}

type staticSource []positions.Closed

func (s staticSource) ClosedPositions(context.Context) ([]positions.Closed, error) { return s, nil }

func TestLossLedger(t *testing.T) {
	now := time.Now()
	ledger := LossLedger{Source: staticSource{closedAt("A", now, 0.4, -0.6)}}
	loss, err := ledger.DailyLoss(context.Background(), now)
	if err != nil {
		t.Fatalf("DailyLoss returned error: %v", err)
	}
	if math.Abs(loss-0.6) > 1e-9 {
		t.Fatalf("expected 0.6, got %.4f", loss)
	}
}
