package app

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gregapostle/memebot/internal/chain"
	"github.com/gregapostle/memebot/internal/config"
	"github.com/gregapostle/memebot/internal/dex"
	"github.com/gregapostle/memebot/internal/dex/solana"
	"github.com/gregapostle/memebot/internal/ingest"
	"github.com/gregapostle/memebot/internal/paper"
	"github.com/gregapostle/memebot/internal/positions"
)

func testConfig(t *testing.T) *config.Config {
	cfg := config.Default()
	cfg.Storage.DataDir = filepath.Join(t.TempDir(), "data")
	return cfg
}

func TestOpenStoreBackends(t *testing.T) {
	for _, backend := range []string{"csv", "sqlite"} {
		t.Run(backend, func(t *testing.T) {
			cfg := testConfig(t)
			cfg.Storage.Backend = backend
			store, closeFn, err := OpenStore(cfg)
			require.NoError(t, err)
			defer closeFn()

			_, err = store.Open(context.Background(), positions.OpenRequest{Chain: "solana", Base: "SOL", Quote: "Mint", EntryBase: 0.1})
			require.NoError(t, err)
			open, err := store.OpenPositions(context.Background())
			require.NoError(t, err)
			assert.Len(t, open, 1)
		})
	}

	cfg := testConfig(t)
	cfg.Storage.Backend = "postgres"
	_, closeFn, err := OpenStore(cfg)
	require.Error(t, err)
	require.NoError(t, closeFn())
}

func TestOpenLedgerWritesBothLogs(t *testing.T) {
	cfg := testConfig(t)
	ledger, closeFn, err := OpenLedger(cfg, zerolog.Nop())
	require.NoError(t, err)
	ledger.Append(paper.Trade{Chain: "solana", Side: paper.Buy, Quote: "Mint", SizeBase: 0.1, OutAmount: 10})
	require.NoError(t, closeFn())

	for _, name := range []string{TradesJSONL, TradesCSV} {
		info, err := os.Stat(filepath.Join(cfg.Storage.DataDir, name))
		require.NoError(t, err)
		assert.Positive(t, info.Size(), name)
	}
}

func TestOracleSelection(t *testing.T) {
	cfg := testConfig(t)
	q, closeFn, err := Oracle(context.Background(), cfg, chain.Solana)
	require.NoError(t, err)
	closeFn()
	assert.IsType(t, dex.Mock{}, q)

	cfg.Dex.Mock = false
	q, _, err = Oracle(context.Background(), cfg, chain.Solana)
	require.NoError(t, err)
	assert.IsType(t, &solana.JupiterClient{}, q)

	_, _, err = Oracle(context.Background(), cfg, chain.Ethereum)
	require.Error(t, err)
}

func TestLimitsFallBackOnMalformedTables(t *testing.T) {
	cfg := testConfig(t)
	cfg.Trading.SizeByConf = "0.7:1.0,0.9:abc"
	cfg.Trading.CallerAllowlist = "Alpha:2"
	limits := Limits(cfg, zerolog.Nop())
	assert.Empty(t, limits.Tiers)
	assert.Equal(t, 1.0, limits.ConfidenceMultiplier(0.95))
	assert.Equal(t, map[string]float64{"alpha": 2}, limits.Allowlist)
	assert.Equal(t, cfg.Trading.BaseSize, limits.BaseSize)
}

func TestExitRules(t *testing.T) {
	cfg := testConfig(t)
	cfg.Exits.MinHoldSec = 45
	rules := ExitRules(cfg)
	assert.Equal(t, positions.ExitRules{TPPct: 20, SLPct: -30, TrailPct: 10, MinHold: 45 * time.Second}, rules)
}

func TestSourceModes(t *testing.T) {
	cfg := testConfig(t)
	src, err := Source(cfg, chain.Solana, zerolog.Nop())
	require.NoError(t, err)
	assert.IsType(t, &ingest.Mock{}, src)

	cfg.Ingest.Mode = "relay"
	cfg.Ingest.RelayURL = "ws://localhost:1/signals"
	src, err = Source(cfg, chain.Solana, zerolog.Nop())
	require.NoError(t, err)
	assert.IsType(t, &ingest.Relay{}, src)

	cfg.Ingest.Mode = "screener"
	src, err = Source(cfg, chain.Solana, zerolog.Nop())
	require.NoError(t, err)
	assert.IsType(t, &ingest.Screener{}, src)

	cfg.Ingest.Mode = "carrier-pigeon"
	_, err = Source(cfg, chain.Solana, zerolog.Nop())
	require.Error(t, err)
}
