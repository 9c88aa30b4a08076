package positions

import (
	"context"
	"sync"
)

// UpdateFunc receives both tables as currently stored and returns their replacement.
type UpdateFunc func(open []Open, closed []Closed) ([]Open, []Closed, error)

// Tables is the persistence backend for the two position tables.
// Update runs its read-modify-write under a lock that also excludes other processes
// sharing the same backing files, and rewrites both tables as one unit.
// An UpdateFunc error aborts the rewrite and is returned unchanged.
type Tables interface {
	Load(ctx context.Context) ([]Open, []Closed, error)
	Update(ctx context.Context, fn UpdateFunc) error
}

// MemTables keeps both tables in memory.
type MemTables struct {
	mu     sync.Mutex
	open   []Open
	closed []Closed
}

// NewMemTables returns empty in-memory tables.
func NewMemTables() *MemTables { return &MemTables{} }

// Load implements Tables.
func (m *MemTables) Load(ctx context.Context) ([]Open, []Closed, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Open(nil), m.open...), append([]Closed(nil), m.closed...), nil
}

// Update implements Tables.
func (m *MemTables) Update(ctx context.Context, fn UpdateFunc) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	open, closed, err := fn(append([]Open(nil), m.open...), append([]Closed(nil), m.closed...))
	if err != nil {
		return err
	}
	m.open = append([]Open(nil), open...)
	m.closed = append([]Closed(nil), closed...)
	return nil
}

// Replace overwrites both tables.
func Replace(ctx context.Context, tables Tables, open []Open, closed []Closed) error {
	return tables.Update(ctx, func([]Open, []Closed) ([]Open, []Closed, error) {
		return open, closed, nil
	})
}

// dropSettled removes open rows whose id already sits in the closed table.
// A rewrite interrupted between the two tables leaves such a row behind.
func dropSettled(open []Open, closed []Closed) []Open {
	if len(open) == 0 || len(closed) == 0 {
		return open
	}
	settled := make(map[string]struct{}, len(closed))
	for _, c := range closed {
		settled[c.ID] = struct{}{}
	}
	kept := open[:0]
	for _, p := range open {
		if _, ok := settled[p.ID]; !ok {
			kept = append(kept, p)
		}
	}
	return kept
}
