// Package positions owns the open/closed position tables and the exit engine that moves rows between them.
package positions

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Exit reasons recorded on closed rows.
const (
	ReasonTakeProfit   = "take_profit"
	ReasonStopLoss     = "stop_loss"
	ReasonTrailingExit = "trailing_exit"
	ReasonRuleExit     = "rule_exit"
)

// Open is a row of the open table.
type Open struct {
	ID          string    `json:"id"`
	OpenedAt    time.Time `json:"ts_open"`
	Chain       string    `json:"chain"`
	Base        string    `json:"base"`
	Quote       string    `json:"quote"`
	EntryBase   float64   `json:"entry_base"`
	EntryOutRaw float64   `json:"entry_out_raw"`
	Note        string    `json:"note,omitempty"`
	// Peak is the highest pnl percentage seen by the trailing stop.
	Peak    float64 `json:"peak,omitempty"`
	HasPeak bool    `json:"has_peak,omitempty"`
}

// Closed is a row of the closed table. Rows are never modified once written.
type Closed struct {
	Open
	ClosedAt time.Time `json:"ts_close"`
	ExitBase float64   `json:"exit_base"`
	PnLBase  float64   `json:"pnl_base"`
	Reason   string    `json:"reason"`
}

// ExitRules are the thresholds shared by every open position during one tick.
type ExitRules struct {
	TPPct    float64       `yaml:"tp_pct"`
	SLPct    float64       `yaml:"sl_pct"`
	TrailPct float64       `yaml:"trail_pct"`
	MinHold  time.Duration `yaml:"min_hold"`
}

// DefaultExitRules returns +20% take-profit, -30% stop-loss, 10 point trail and a 10s minimum hold.
func DefaultExitRules() ExitRules {
	return ExitRules{TPPct: 20, SLPct: -30, TrailPct: 10, MinHold: 10 * time.Second}
}

// PnLPct is the percentage change from entry to exit; zero when the entry is zero.
func PnLPct(entryBase, exitBase float64) float64 {
	if entryBase == 0 {
		return 0
	}
	return (exitBase - entryBase) / entryBase * 100
}

const peakKey = "peak="

// encodeNote folds the typed peak back into the persisted note column.
func encodeNote(note string, peak float64, hasPeak bool) string {
	if !hasPeak {
		return note
	}
	token := fmt.Sprintf("%s%.6f", peakKey, peak)
	if note == "" {
		return token
	}
	return note + " " + token
}

// decodeNote splits a persisted note into free text and the trailing peak, if any.
func decodeNote(raw string) (note string, peak float64, hasPeak bool) {
	idx := strings.Index(raw, peakKey)
	if idx < 0 {
		return raw, 0, false
	}
	rest := raw[idx+len(peakKey):]
	end := strings.IndexAny(rest, " \t;,")
	value, tail := rest, ""
	if end >= 0 {
		value, tail = rest[:end], rest[end:]
	}
	v, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return raw, 0, false
	}
	return strings.TrimSpace(raw[:idx] + strings.TrimLeft(tail, " \t;,")), v, true
}

func formatTs(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return strconv.FormatFloat(float64(t.UnixNano())/1e9, 'f', 6, 64)
}

func parseTs(raw string) time.Time {
	secs := parseFloat(raw)
	if secs <= 0 {
		return time.Time{}
	}
	return fromEpoch(secs)
}

func epoch(t time.Time) float64 {
	if t.IsZero() {
		return 0
	}
	return float64(t.UnixNano()) / 1e9
}

func fromEpoch(secs float64) time.Time {
	if secs <= 0 {
		return time.Time{}
	}
	whole := int64(secs)
	nanos := int64((secs - float64(whole)) * 1e9)
	return time.Unix(whole, nanos).UTC()
}

// parseFloat reads a numeric column; missing or malformed values read as zero.
func parseFloat(raw string) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return 0
	}
	return v
}
