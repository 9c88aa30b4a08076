// Package paper keeps the simulated trade ledger and its on-disk recorders.
package paper

import "time"

// Side of a paper trade.
type Side string

const (
	Buy  Side = "buy"
	Sell Side = "sell"
)

// Trade is one simulated fill.
type Trade struct {
	ID             string    `json:"id"`
	Ts             time.Time `json:"ts"`
	Chain          string    `json:"chain"`
	Side           Side      `json:"side"`
	Base           string    `json:"base"`
	Quote          string    `json:"quote"`
	SizeBase       float64   `json:"size_base"`
	OutAmount      uint64    `json:"out_amount"`
	PriceImpactBps int       `json:"price_impact_bps"`
	SlippageBps    int       `json:"slippage_bps"`
	Reason         string    `json:"reason"`
	EntryValue     float64   `json:"entry_value"`
}
