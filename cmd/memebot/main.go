package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	ossignal "os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/gregapostle/memebot/internal/api"
	"github.com/gregapostle/memebot/internal/app"
	"github.com/gregapostle/memebot/internal/config"
	"github.com/gregapostle/memebot/internal/engine"
	"github.com/gregapostle/memebot/internal/execution"
	"github.com/gregapostle/memebot/internal/metrics"
	"github.com/gregapostle/memebot/internal/paper"
	"github.com/gregapostle/memebot/internal/pnl"
	"github.com/gregapostle/memebot/internal/positions"
	"github.com/gregapostle/memebot/internal/risk"
	sig "github.com/gregapostle/memebot/internal/signal"
	"github.com/gregapostle/memebot/internal/strategy"
	"github.com/gregapostle/memebot/internal/util"
)

const defaultConfigPath = "internal/config/config.yaml"

func main() {
	configPath := flag.String("config", defaultConfigPath, "path to config yaml")
	mode := flag.String("mode", "", "override ingest mode: mock|relay|screener")
	runExits := flag.Bool("exits", true, "run the exit loop in this process")
	maxSignals := flag.Int("max-signals", 0, "stop ingesting after this many signals (0 = no limit)")
	flag.Parse()

	if err := config.LoadEnv(".env"); err != nil {
		fmt.Fprintf(os.Stderr, "env: %v\n", err)
	}
	cfg, err := config.LoadOrDefault(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	envWarn := cfg.ApplyEnv()
	if *mode != "" {
		cfg.Ingest.Mode = *mode
	}

	log := util.NewLoggerWithFile(cfg.App.LogLevel, cfg.App.LogFile)
	if envWarn != nil {
		log.Warn().Err(envWarn).Msg("ignoring bad env overrides")
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("invalid config")
	}

	ch, err := app.Chain(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("chain")
	}
	store, closeStore, err := app.OpenStore(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("open positions")
	}
	defer closeStore()
	ledger, closeLedger, err := app.OpenLedger(cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("open ledger")
	}
	defer closeLedger()

	ctx, cancel := ossignal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	oracle, closeOracle, err := app.Oracle(ctx, cfg, ch)
	if err != nil {
		log.Fatal().Err(err).Msg("oracle")
	}
	defer closeOracle()

	src, err := app.Source(cfg, ch, log)
	if err != nil {
		log.Fatal().Err(err).Msg("ingest source")
	}

	gate := risk.NewGate(app.Limits(cfg, log), pnl.LossLedger{Source: store}, oracle, ch)
	policy := strategy.Policy{MinConfidence: cfg.Trading.MinConfidence, MaxSlippageBps: cfg.Trading.MaxSlippageBps}
	exec := execution.NewPaperExecutor(ch, store, ledger, paper.NewSimulator(time.Now().UnixNano()), log)
	handler := engine.NewHandler(strategy.NewMemory(cfg.Fusion.DecayWindow()), gate, policy, exec, log)

	metricsSrv := metrics.Serve(cfg.App.MetricsAddr)
	log.Info().Str("addr", cfg.App.MetricsAddr).Msg("metrics up")

	g, gctx := errgroup.WithContext(ctx)

	raw := make(chan *sig.Signal, 256)
	signals := make(chan *sig.Signal, 256)
	g.Go(func() error {
		defer close(raw)
		err := src.Run(gctx, raw)
		if err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("ingest: %w", err)
		}
		log.Info().Msg("ingest finished")
		return nil
	})
	g.Go(func() error {
		defer close(signals)
		return forward(gctx, raw, signals, *maxSignals)
	})
	g.Go(func() error {
		err := handler.Run(gctx, signals)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})

	if *runExits {
		exitEngine := positions.NewEngine(store, oracle, ch, log)
		rules := app.ExitRules(cfg)
		g.Go(func() error {
			err := exitEngine.Run(gctx, cfg.Exits.TickInterval(), func() positions.ExitRules { return rules })
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		})
	}

	if cfg.API.Addr != "" {
		srv := api.NewServer(cfg.API.Addr, store, ledger, log)
		g.Go(srv.Start)
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
			defer done()
			return srv.Shutdown(shutdownCtx)
		})
	}

	log.Info().
		Str("chain", ch.Name).
		Str("ingest", cfg.Ingest.Mode).
		Bool("exits", *runExits).
		Bool("mock_oracle", cfg.Dex.Mock).
		Msg("memebot started")

	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("memebot stopped with error")
	}

	shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
	defer done()
	_ = metricsSrv.Shutdown(shutdownCtx)
	log.Info().Msg("shutting down")
}

// forward copies signals until in closes, ctx ends or limit signals went through.
func forward(ctx context.Context, in <-chan *sig.Signal, out chan<- *sig.Signal, limit int) error {
	n := 0
	for {
		select {
		case <-ctx.Done():
			return nil
		case s, ok := <-in:
			if !ok {
				return nil
			}
			select {
			case out <- s:
			case <-ctx.Done():
				return nil
			}
			n++
			if limit > 0 && n >= limit {
				return nil
			}
		}
	}
}
