// Binary pnl prints realised profit and loss from the closed-position table.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/gregapostle/memebot/internal/app"
	"github.com/gregapostle/memebot/internal/config"
	"github.com/gregapostle/memebot/internal/pnl"
)

const defaultConfigPath = "internal/config/config.yaml"

func main() {
	configPath := flag.String("config", defaultConfigPath, "path to config yaml")
	sinceFlag := flag.String("since", "all", "today|all")
	flag.Parse()

	if err := config.LoadEnv(".env"); err != nil {
		fmt.Fprintf(os.Stderr, "env: %v\n", err)
	}
	cfg, err := config.LoadOrDefault(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.ApplyEnv(); err != nil {
		fmt.Fprintf(os.Stderr, "env overrides: %v\n", err)
	}

	var since *time.Time
	switch *sinceFlag {
	case "today":
		start := pnl.StartOfDay(time.Now())
		since = &start
	case "all":
	default:
		fmt.Fprintf(os.Stderr, "unknown -since %q (want today|all)\n", *sinceFlag)
		os.Exit(2)
	}

	store, closeStore, err := app.OpenStore(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open positions: %v\n", err)
		os.Exit(1)
	}
	defer closeStore()

	closed, err := store.ClosedPositions(context.Background())
	if err != nil {
		fmt.Fprintf(os.Stderr, "read closed positions: %v\n", err)
		os.Exit(1)
	}

	s := pnl.Report(closed, since)
	fmt.Printf("PnL (%s)\n", *sinceFlag)
	fmt.Printf("  trades:  %d (winners %d, losers %d)\n", s.Trades, s.Winners, s.Losers)
	fmt.Printf("  gross:   %.6f\n", s.Gross)
	fmt.Printf("  net:     %.6f\n", s.Net)
	fmt.Printf("  today's realised loss: %.6f\n", pnl.DailyLoss(closed, time.Now()))

	tokens := pnl.ByToken(closed)
	if len(tokens) == 0 {
		return
	}
	fmt.Println()
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "TOKEN\tTRADES\tNET")
	for _, t := range tokens {
		fmt.Fprintf(w, "%s\t%d\t%.6f\n", t.Token, t.Trades, t.Net)
	}
	w.Flush()
}
