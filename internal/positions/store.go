package positions

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrInvalidEntry is returned when a position would be opened without a positive entry.
var ErrInvalidEntry = errors.New("entry_base must be positive")

// Store is the single owner of the position tables within a process. Every read-modify-write runs
// under one mutex and inside Tables.Update, so opens and settlements never interleave, including
// across processes sharing one data directory.
type Store struct {
	mu     sync.Mutex
	tables Tables
	now    func() time.Time
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithStoreClock overrides the clock stamping new positions.
func WithStoreClock(now func() time.Time) StoreOption {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// NewStore wraps a table backend.
func NewStore(tables Tables, opts ...StoreOption) *Store {
	s := &Store{tables: tables, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// OpenRequest describes a position to record.
type OpenRequest struct {
	Chain       string
	Base        string
	Quote       string
	EntryBase   float64
	EntryOutRaw float64
	Note        string
}

// Open appends a new row to the open table.
func (s *Store) Open(ctx context.Context, req OpenRequest) (Open, error) {
	if !(req.EntryBase > 0) {
		return Open{}, ErrInvalidEntry
	}
	pos := Open{
		ID:          uuid.NewString(),
		OpenedAt:    s.now().UTC(),
		Chain:       req.Chain,
		Base:        req.Base,
		Quote:       req.Quote,
		EntryBase:   req.EntryBase,
		EntryOutRaw: req.EntryOutRaw,
		Note:        req.Note,
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	err := s.tables.Update(ctx, func(open []Open, closed []Closed) ([]Open, []Closed, error) {
		return append(open, pos), closed, nil
	})
	if err != nil {
		return Open{}, fmt.Errorf("write positions: %w", err)
	}
	return pos, nil
}

// OpenPositions returns the current open table.
func (s *Store) OpenPositions(ctx context.Context) ([]Open, error) {
	open, _, err := s.Snapshot(ctx)
	return open, err
}

// ClosedPositions returns the closed table.
func (s *Store) ClosedPositions(ctx context.Context) ([]Closed, error) {
	_, closed, err := s.Snapshot(ctx)
	return closed, err
}

// Snapshot returns both tables as read under the lock.
func (s *Store) Snapshot(ctx context.Context) ([]Open, []Closed, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	open, closed, err := s.tables.Load(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("load positions: %w", err)
	}
	return open, closed, nil
}

// Settlement is the outcome of one exit tick: peak updates for rows that stay open
// and closed rows for rows that leave the open table.
type Settlement struct {
	Peaks  map[string]float64
	Closes []Closed
}

func (st Settlement) empty() bool { return len(st.Peaks) == 0 && len(st.Closes) == 0 }

// Settle applies a tick's settlement against the current tables in one rewrite.
// Rows opened after the tick's snapshot are untouched; closes for rows no longer open are dropped.
// It returns the number of rows left open.
func (s *Store) Settle(ctx context.Context, st Settlement) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if st.empty() {
		open, _, err := s.tables.Load(ctx)
		if err != nil {
			return 0, fmt.Errorf("load positions: %w", err)
		}
		return len(open), nil
	}

	closing := make(map[string]Closed, len(st.Closes))
	for _, c := range st.Closes {
		closing[c.ID] = c
	}
	left := 0
	err := s.tables.Update(ctx, func(open []Open, closed []Closed) ([]Open, []Closed, error) {
		remaining := open[:0:0]
		for _, p := range open {
			if c, ok := closing[p.ID]; ok {
				closed = append(closed, c)
				continue
			}
			if peak, ok := st.Peaks[p.ID]; ok {
				p.Peak, p.HasPeak = peak, true
			}
			remaining = append(remaining, p)
		}
		left = len(remaining)
		return remaining, closed, nil
	})
	if err != nil {
		return 0, fmt.Errorf("write positions: %w", err)
	}
	return left, nil
}
