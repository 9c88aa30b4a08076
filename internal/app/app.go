// Package app builds the bot's components from configuration so every binary wires them the same way.
package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"

	"github.com/gregapostle/memebot/internal/chain"
	"github.com/gregapostle/memebot/internal/config"
	"github.com/gregapostle/memebot/internal/dex"
	"github.com/gregapostle/memebot/internal/dex/evm"
	"github.com/gregapostle/memebot/internal/dex/solana"
	"github.com/gregapostle/memebot/internal/ingest"
	"github.com/gregapostle/memebot/internal/paper"
	"github.com/gregapostle/memebot/internal/positions"
	"github.com/gregapostle/memebot/internal/risk"
)

// File names under the data dir.
const (
	SQLiteFile  = "memebot.db"
	TradesJSONL = "trades.jsonl"
	TradesCSV   = "trades.csv"
)

// Chain resolves the configured network.
func Chain(cfg *config.Config) (chain.Chain, error) {
	return chain.Lookup(cfg.Trading.Network)
}

// OpenStore opens the configured position tables. The returned close func is never nil.
func OpenStore(cfg *config.Config) (*positions.Store, func() error, error) {
	noop := func() error { return nil }
	switch cfg.Storage.Backend {
	case "sqlite":
		if err := os.MkdirAll(cfg.Storage.DataDir, 0o755); err != nil {
			return nil, noop, fmt.Errorf("create data dir: %w", err)
		}
		tables, err := positions.NewSQLiteTables(filepath.Join(cfg.Storage.DataDir, SQLiteFile))
		if err != nil {
			return nil, noop, err
		}
		return positions.NewStore(tables), tables.Close, nil
	case "", "csv":
		tables, err := positions.NewCSVTables(cfg.Storage.DataDir)
		if err != nil {
			return nil, noop, err
		}
		return positions.NewStore(tables), noop, nil
	default:
		return nil, noop, fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
	}
}

// OpenLedger creates the paper ledger with JSONL and CSV recorders under the data dir.
func OpenLedger(cfg *config.Config, log zerolog.Logger) (*paper.Ledger, func() error, error) {
	jsonl, err := paper.NewJSONLRecorder(filepath.Join(cfg.Storage.DataDir, TradesJSONL))
	if err != nil {
		return nil, func() error { return nil }, fmt.Errorf("open trade log: %w", err)
	}
	csvRec, err := paper.NewCSVRecorder(filepath.Join(cfg.Storage.DataDir, TradesCSV))
	if err != nil {
		jsonl.Close()
		return nil, func() error { return nil }, fmt.Errorf("open trade csv: %w", err)
	}
	closeAll := func() error { return errors.Join(jsonl.Close(), csvRec.Close()) }
	return paper.NewLedger(log, jsonl, csvRec), closeAll, nil
}

// Oracle picks the quote source: the offline mock, a V2 router for EVM chains, or Jupiter.
func Oracle(ctx context.Context, cfg *config.Config, ch chain.Chain) (dex.Quoter, func(), error) {
	noop := func() {}
	switch {
	case cfg.Dex.Mock:
		return dex.Mock{}, noop, nil
	case ch.IsEVM():
		if cfg.Dex.EthHTTP == "" {
			return nil, noop, fmt.Errorf("%s quotes need eth_http", ch.Name)
		}
		router, closeFn, err := evm.Dial(ctx, cfg.Dex.EthHTTP, ch.RouterV2)
		if err != nil {
			return nil, noop, err
		}
		return router, closeFn, nil
	default:
		return solana.NewJupiterClient(cfg.Dex.JupiterBase, cfg.Dex.SlippageBps), noop, nil
	}
}

// Limits parses the sizing tables. A malformed table is logged and replaced by an empty one.
func Limits(cfg *config.Config, log zerolog.Logger) risk.Limits {
	limits := risk.Limits{BaseSize: cfg.Trading.BaseSize, DailyLossCap: cfg.Trading.DailyLossCap}
	tiers, err := risk.ParseTiers(cfg.Trading.SizeByConf)
	if err != nil {
		log.Warn().Err(err).Str("raw", cfg.Trading.SizeByConf).Msg("ignoring confidence tiers")
	}
	limits.Tiers = tiers
	allow, err := risk.ParseAllowlist(cfg.Trading.CallerAllowlist)
	if err != nil {
		log.Warn().Err(err).Str("raw", cfg.Trading.CallerAllowlist).Msg("ignoring caller allowlist")
	}
	limits.Allowlist = allow
	return limits
}

// ExitRules converts the exits section.
func ExitRules(cfg *config.Config) positions.ExitRules {
	return positions.ExitRules{
		TPPct:    cfg.Exits.TPPct,
		SLPct:    cfg.Exits.SLPct,
		TrailPct: cfg.Exits.TrailPct,
		MinHold:  cfg.Exits.MinHold(),
	}
}

// Source builds the configured ingestion adapter.
func Source(cfg *config.Config, ch chain.Chain, log zerolog.Logger) (ingest.Source, error) {
	switch cfg.Ingest.Mode {
	case "", "mock":
		return &ingest.Mock{Interval: cfg.Ingest.Interval(), Repeat: cfg.Ingest.MockRepeat}, nil
	case "relay":
		return ingest.NewRelay(cfg.Ingest.RelayURL, log), nil
	case "screener":
		sc := cfg.Ingest.Screener
		return ingest.NewScreener(ingest.ScreenerConfig{
			BaseURL:         sc.BaseURL,
			Keywords:        sc.Keywords,
			Chain:           ch.Name,
			MinLiquidityUSD: sc.MinLiquidityUSD,
			MinVolumeUSD:    sc.MinVolumeUSD,
			Interval:        cfg.Ingest.Screener.Interval(),
			Confidence:      sc.Confidence,
		}, log), nil
	default:
		return nil, fmt.Errorf("unknown ingest mode %q", cfg.Ingest.Mode)
	}
}
