package paper

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Recorder persists trades as they are appended.
type Recorder interface {
	Record(Trade) error
}

// Ledger stores paper trades in memory and fans them out to recorders.
type Ledger struct {
	mu        sync.Mutex
	trades    []Trade
	recorders []Recorder
	log       zerolog.Logger
	now       func() time.Time
}

// NewLedger creates an empty ledger.
func NewLedger(log zerolog.Logger, recorders ...Recorder) *Ledger {
	return &Ledger{recorders: recorders, log: log, now: time.Now}
}

// Append fills in ID, Ts and EntryValue when missing, stores the trade and returns it.
// A failing recorder is logged and does not drop the trade.
func (l *Ledger) Append(tr Trade) Trade {
	if tr.ID == "" {
		tr.ID = uuid.NewString()
	}
	if tr.Ts.IsZero() {
		tr.Ts = l.now().UTC()
	}
	if tr.EntryValue == 0 && tr.SizeBase > 0 && tr.OutAmount > 0 {
		tr.EntryValue = float64(tr.OutAmount)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.trades = append(l.trades, tr)
	for _, rec := range l.recorders {
		if err := rec.Record(tr); err != nil {
			l.log.Warn().Err(err).Str("trade", tr.ID).Msg("record trade")
		}
	}
	return tr
}

// ListAll returns a copy of every recorded trade.
func (l *Ledger) ListAll() []Trade {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Trade, len(l.trades))
	copy(out, l.trades)
	return out
}

// Reset clears the in-memory trades. Recorders keep what they already wrote.
func (l *Ledger) Reset() {
	l.mu.Lock()
	l.trades = l.trades[:0]
	l.mu.Unlock()
}
