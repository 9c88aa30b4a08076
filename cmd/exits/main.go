// Binary exits runs the exit engine on its own, next to a bot started with -exits=false.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	ossignal "os/signal"
	"syscall"

	"github.com/gregapostle/memebot/internal/app"
	"github.com/gregapostle/memebot/internal/config"
	"github.com/gregapostle/memebot/internal/metrics"
	"github.com/gregapostle/memebot/internal/positions"
	"github.com/gregapostle/memebot/internal/util"
)

const defaultConfigPath = "internal/config/config.yaml"

func main() {
	configPath := flag.String("config", defaultConfigPath, "path to config yaml")
	every := flag.Duration("every", 0, "tick interval (defaults to exits.tick_sec)")
	once := flag.Bool("once", false, "evaluate a single tick and exit")
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

	ctx, cancel := ossignal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	oracle, closeOracle, err := app.Oracle(ctx, cfg, ch)
	if err != nil {
		log.Fatal().Err(err).Msg("oracle")
	}
	defer closeOracle()

	engine := positions.NewEngine(store, oracle, ch, log)
	rules := app.ExitRules(cfg)

	if *once {
		res, err := engine.Evaluate(ctx, rules)
		if err != nil {
			log.Fatal().Err(err).Msg("exit tick")
		}
		fmt.Printf("evaluated=%d closed=%d open=%d\n", res.Evaluated, res.Closed, res.Open)
		return
	}

	metricsSrv := metrics.Serve(cfg.App.MetricsAddr)
	defer metricsSrv.Close()

	interval := *every
	if interval <= 0 {
		interval = cfg.Exits.TickInterval()
	}
	if err := engine.Run(ctx, interval, func() positions.ExitRules { return rules }); err != nil && !errors.Is(err, context.Canceled) {
		log.Error().Err(err).Msg("exit loop stopped")
	}
}
