package positions

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStoreOpenRejectsNonPositiveEntry(t *testing.T) {
	store := NewStore(NewMemTables())
	for _, entry := range []float64{0, -1} {
		_, err := store.Open(context.Background(), OpenRequest{Chain: "solana", Quote: "Mint", EntryBase: entry})
		require.True(t, errors.Is(err, ErrInvalidEntry))
	}
	open, err := store.OpenPositions(context.Background())
	require.NoError(t, err)
	require.Empty(t, open)
}

func TestStoreConcurrentOpens(t *testing.T) {
	tables, err := NewCSVTables(t.TempDir())
	require.NoError(t, err)
	store := NewStore(tables)

	const n = 25
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := store.Open(context.Background(), OpenRequest{Chain: "solana", Base: "SOL", Quote: "Mint", EntryBase: 0.1, EntryOutRaw: 10})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	open, err := store.OpenPositions(context.Background())
	require.NoError(t, err)
	require.Len(t, open, n)
	ids := make(map[string]struct{}, n)
	for _, p := range open {
		ids[p.ID] = struct{}{}
	}
	require.Len(t, ids, n)
}

func TestSettleMergesConcurrentOpens(t *testing.T) {
	ctx := context.Background()
	store := NewStore(NewMemTables())

	first, err := store.Open(ctx, OpenRequest{Chain: "solana", Quote: "MintA", EntryBase: 1, EntryOutRaw: 1})
	require.NoError(t, err)
	second, err := store.Open(ctx, OpenRequest{Chain: "solana", Quote: "MintB", EntryBase: 1, EntryOutRaw: 1})
	require.NoError(t, err)

	// opened after the tick took its snapshot
	late, err := store.Open(ctx, OpenRequest{Chain: "solana", Quote: "MintC", EntryBase: 1, EntryOutRaw: 1})
	require.NoError(t, err)

	remaining, err := store.Settle(ctx, Settlement{
		Peaks:  map[string]float64{second.ID: 7.5},
		Closes: []Closed{{Open: first, ExitBase: 1.3, PnLBase: 0.3, Reason: ReasonTakeProfit}, {Open: Open{ID: "gone"}, Reason: ReasonStopLoss}},
	})
	require.NoError(t, err)
	require.Equal(t, 2, remaining)

	open, closed, err := store.Snapshot(ctx)
	require.NoError(t, err)
	require.Len(t, open, 2)
	require.Equal(t, second.ID, open[0].ID)
	require.True(t, open[0].HasPeak)
	require.InDelta(t, 7.5, open[0].Peak, 1e-9)
	require.Equal(t, late.ID, open[1].ID)
	require.Len(t, closed, 1, "closes for rows that are not open must be dropped")
	require.Equal(t, first.ID, closed[0].ID)
}

// interleavedTables runs before inside every update, while the backend lock is held.
type interleavedTables struct {
	Tables
	before func()
}

func (i *interleavedTables) Update(ctx context.Context, fn UpdateFunc) error {
	return i.Tables.Update(ctx, func(open []Open, closed []Closed) ([]Open, []Closed, error) {
		if i.before != nil {
			i.before()
		}
		return fn(open, closed)
	})
}

func TestStoresInSeparateProcessesDoNotLoseOpens(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	botTables, err := NewCSVTables(dir)
	require.NoError(t, err)
	bot := NewStore(botTables)
	a, err := bot.Open(ctx, OpenRequest{Chain: "solana", Quote: "MintA", EntryBase: 1, EntryOutRaw: 1})
	require.NoError(t, err)

	exitTables, err := NewCSVTables(dir)
	require.NoError(t, err)
	opened := make(chan error, 1)
	hooked := &interleavedTables{Tables: exitTables}
	hooked.before = func() {
		hooked.before = nil
		go func() {
			_, err := bot.Open(ctx, OpenRequest{Chain: "solana", Quote: "MintB", EntryBase: 1, EntryOutRaw: 1})
			opened <- err
		}()
		// give the bot's open time to contend for the lock
		time.Sleep(50 * time.Millisecond)
	}
	exits := NewStore(hooked)

	left, err := exits.Settle(ctx, Settlement{Closes: []Closed{{Open: a, ExitBase: 2, PnLBase: 1, Reason: ReasonTakeProfit}}})
	require.NoError(t, err)
	require.Zero(t, left)
	require.NoError(t, <-opened)

	open, closed, err := botTables.Load(ctx)
	require.NoError(t, err)
	require.Len(t, closed, 1)
	require.Equal(t, a.ID, closed[0].ID)
	require.Len(t, open, 1, "the open made during the exit rewrite must survive")
	require.Equal(t, "MintB", open[0].Quote)
}

func testStoresShareTables(t *testing.T, first, second Tables) {
	t.Helper()
	stores := []*Store{NewStore(first), NewStore(second)}

	const n = 10
	var wg sync.WaitGroup
	for _, store := range stores {
		for i := 0; i < n; i++ {
			wg.Add(1)
			go func(store *Store) {
				defer wg.Done()
				_, err := store.Open(context.Background(), OpenRequest{Chain: "solana", Quote: "Mint", EntryBase: 0.1, EntryOutRaw: 10})
				assert.NoError(t, err)
			}(store)
		}
	}
	wg.Wait()

	open, err := stores[0].OpenPositions(context.Background())
	require.NoError(t, err)
	require.Len(t, open, 2*n)
}

func TestCSVStoresShareOneDirectory(t *testing.T) {
	dir := t.TempDir()
	first, err := NewCSVTables(dir)
	require.NoError(t, err)
	second, err := NewCSVTables(dir)
	require.NoError(t, err)
	testStoresShareTables(t, first, second)
}

func TestSQLiteStoresShareOneDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "memebot.db")
	first, err := NewSQLiteTables(path)
	require.NoError(t, err)
	defer first.Close()
	second, err := NewSQLiteTables(path)
	require.NoError(t, err)
	defer second.Close()
	testStoresShareTables(t, first, second)
}
