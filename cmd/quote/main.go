// Binary quote probes a round trip for one token: native -> token -> native.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/gregapostle/memebot/internal/app"
	"github.com/gregapostle/memebot/internal/config"
	"github.com/gregapostle/memebot/internal/util"
)

const defaultConfigPath = "internal/config/config.yaml"

func main() {
	configPath := flag.String("config", defaultConfigPath, "path to config yaml")
	mint := flag.String("mint", "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v", "token mint or address")
	amount := flag.Float64("amount", 0.01, "size in native units")
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
	log := util.NewLogger(cfg.App.LogLevel)
	if envWarn != nil {
		log.Warn().Err(envWarn).Msg("ignoring bad env overrides")
	}

	ch, err := app.Chain(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("chain")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	oracle, closeOracle, err := app.Oracle(ctx, cfg, ch)
	if err != nil {
		log.Fatal().Err(err).Msg("oracle")
	}
	defer closeOracle()

	in := ch.ToRaw(*amount)
	buy, err := oracle.Quote(ctx, ch.NativeMint, *mint, in)
	if err != nil {
		log.Fatal().Err(err).Msg("buy quote")
	}
	sell, err := oracle.Quote(ctx, *mint, ch.NativeMint, buy.OutAmount)
	if err != nil {
		log.Fatal().Err(err).Msg("sell quote")
	}

	back := ch.FromRaw(sell.OutAmount)
	fmt.Printf("chain:   %s\n", ch.Name)
	fmt.Printf("buy:     %.6f %s -> %d raw (impact %d bps)\n", *amount, ch.NativeSymbol, buy.OutAmount, buy.ImpactBps)
	fmt.Printf("sell:    %d raw -> %.6f %s (impact %d bps)\n", buy.OutAmount, back, ch.NativeSymbol, sell.ImpactBps)
	if *amount > 0 {
		pct := (back - *amount) / *amount * 100
		fmt.Printf("round trip: %+.2f%%\n", pct)
	}
}
