// Package pnl reduces the closed-position table into realised profit and loss summaries.
package pnl

import (
	"context"
	"sort"
	"time"

	"github.com/gregapostle/memebot/internal/positions"
)

// Summary aggregates closed positions. Every row is either a winner (pnl > 0) or a loser.
type Summary struct {
	Trades  int     `json:"trades"`
	Gross   float64 `json:"gross_base"`
	Net     float64 `json:"net_base"`
	Winners int     `json:"winners"`
	Losers  int     `json:"losers"`
}

// TokenSummary is the per-quote-asset breakdown.
type TokenSummary struct {
	Token  string  `json:"token"`
	Trades int     `json:"trades"`
	Net    float64 `json:"net_base"`
}

// Report summarises rows closed at or after since; a nil since includes everything.
func Report(closed []positions.Closed, since *time.Time) Summary {
	var s Summary
	for _, c := range closed {
		if since != nil && c.ClosedAt.Before(*since) {
			continue
		}
		s.Trades++
		s.Gross += c.ExitBase
		s.Net += c.PnLBase
		if c.PnLBase > 0 {
			s.Winners++
		}
	}
	s.Losers = s.Trades - s.Winners
	return s
}

// ByToken groups realised pnl per quote asset, largest trade count first.
func ByToken(closed []positions.Closed) []TokenSummary {
	grouped := make(map[string]*TokenSummary)
	for _, c := range closed {
		token := c.Quote
		if token == "" {
			token = "UNKNOWN"
		}
		ts, ok := grouped[token]
		if !ok {
			ts = &TokenSummary{Token: token}
			grouped[token] = ts
		}
		ts.Trades++
		ts.Net += c.PnLBase
	}
	out := make([]TokenSummary, 0, len(grouped))
	for _, ts := range grouped {
		out = append(out, *ts)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Trades != out[j].Trades {
			return out[i].Trades > out[j].Trades
		}
		return out[i].Token < out[j].Token
	})
	return out
}

// StartOfDay returns midnight UTC of now's day.
func StartOfDay(now time.Time) time.Time {
	y, m, d := now.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// DailyLoss sums the realised losses of rows closed on now's UTC day, as a positive number.
func DailyLoss(closed []positions.Closed, now time.Time) float64 {
	start := StartOfDay(now)
	end := start.Add(24 * time.Hour)
	var loss float64
	for _, c := range closed {
		if c.ClosedAt.IsZero() || c.ClosedAt.Before(start) || !c.ClosedAt.Before(end) {
			continue
		}
		if c.PnLBase < 0 {
			loss -= c.PnLBase
		}
	}
	return loss
}

// ClosedSource is satisfied by positions.Store.
type ClosedSource interface {
	ClosedPositions(ctx context.Context) ([]positions.Closed, error)
}

// LossLedger reads today's realised loss from the same closed table the exit engine writes.
type LossLedger struct {
	Source ClosedSource
}

// DailyLoss implements the entry gate's loss ledger.
func (l LossLedger) DailyLoss(ctx context.Context, now time.Time) (float64, error) {
	closed, err := l.Source.ClosedPositions(ctx)
	if err != nil {
		return 0, err
	}
	return DailyLoss(closed, now), nil
}
