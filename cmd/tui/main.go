package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/gregapostle/memebot/internal/config"
)

const defaultConfigPath = "internal/config/config.yaml"

func main() {
	configPath := flag.String("config", defaultConfigPath, "path to config yaml")
	flag.Parse()

	reader := bufio.NewReader(os.Stdin)

	cfg, err := config.LoadOrDefault(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	for {
		fmt.Println("\n=== MemeBot Control ===")
		fmt.Println("1) Show configuration summary")
		fmt.Println("2) Edit sizing and risk knobs")
		fmt.Println("3) Edit exit rules")
		fmt.Println("4) Edit discovery settings")
		fmt.Println("5) Save config")
		fmt.Println("6) Launch paper bot")
		fmt.Println("7) Show PnL")
		fmt.Println("8) Reload config from disk")
		fmt.Println("0) Exit")
		fmt.Print("Select option: ")

		input, _ := reader.ReadString('\n')
		choice := strings.TrimSpace(input)

		switch choice {
		case "1":
			printSummary(cfg)
		case "2":
			editTrading(reader, cfg)
		case "3":
			editExits(reader, cfg)
		case "4":
			editDiscovery(reader, cfg)
		case "5":
			if err := cfg.Validate(); err != nil {
				fmt.Fprintf(os.Stderr, "not saved, config invalid:\n%v\n", err)
				continue
			}
			if err := config.Save(*configPath, cfg); err != nil {
				fmt.Fprintf(os.Stderr, "save failed: %v\n", err)
			} else {
				fmt.Println("config saved")
			}
		case "6":
			launch(reader, "./cmd/memebot", "-config", *configPath)
		case "7":
			runOnce("./cmd/pnl", "-config", *configPath, "-since", "today")
		case "8":
			reloaded, err := config.LoadOrDefault(*configPath)
			if err != nil {
				fmt.Fprintf(os.Stderr, "reload failed: %v\n", err)
			} else {
				cfg = reloaded
				fmt.Println("config reloaded")
			}
		case "0":
			return
		default:
			fmt.Println("unknown option")
		}
	}
}

func printSummary(cfg *config.Config) {
	fmt.Println("\n--- Configuration Summary ---")
	fmt.Printf("Network: %s (mock oracle: %v)\n", cfg.Trading.Network, cfg.Dex.Mock)
	fmt.Printf("Base size: %.4f\n", cfg.Trading.BaseSize)
	fmt.Printf("Confidence tiers: %s\n", orNone(cfg.Trading.SizeByConf))
	fmt.Printf("Caller allowlist: %s\n", orNone(cfg.Trading.CallerAllowlist))
	fmt.Printf("Daily loss cap: %.4f\n", cfg.Trading.DailyLossCap)
	fmt.Printf("Min confidence: %.2f | max impact: %d bps\n", cfg.Trading.MinConfidence, cfg.Trading.MaxSlippageBps)
	fmt.Printf("Exits: TP %.1f%% | SL %.1f%% | trail %.1f pts | min hold %ds | tick %.1fs\n",
		cfg.Exits.TPPct, cfg.Exits.SLPct, cfg.Exits.TrailPct, cfg.Exits.MinHoldSec, cfg.Exits.TickSec)
	fmt.Printf("Ingest: %s | storage: %s in %s\n", cfg.Ingest.Mode, cfg.Storage.Backend, cfg.Storage.DataDir)
	fmt.Println("Discovery keywords:", strings.Join(cfg.Ingest.Screener.Keywords, ", "))
	fmt.Printf("Discovery min liquidity: $%.0f | min volume: $%.0f\n", cfg.Ingest.Screener.MinLiquidityUSD, cfg.Ingest.Screener.MinVolumeUSD)
}

func editTrading(reader *bufio.Reader, cfg *config.Config) {
	fmt.Println("\n--- Edit Sizing / Risk ---")
	cfg.Trading.BaseSize = promptFloat(reader, "Base size (native)", cfg.Trading.BaseSize)
	cfg.Trading.SizeByConf = promptString(reader, "Confidence tiers (conf:mult,...)", cfg.Trading.SizeByConf)
	cfg.Trading.CallerAllowlist = promptString(reader, "Caller allowlist (name:mult,...)", cfg.Trading.CallerAllowlist)
	cfg.Trading.DailyLossCap = promptFloat(reader, "Daily loss cap (native, 0 = off)", cfg.Trading.DailyLossCap)
	cfg.Trading.MinConfidence = promptFloat(reader, "Min confidence", cfg.Trading.MinConfidence)
	cfg.Trading.MaxSlippageBps = int(promptFloat(reader, "Max price impact (bps)", float64(cfg.Trading.MaxSlippageBps)))
}

func editExits(reader *bufio.Reader, cfg *config.Config) {
	fmt.Println("\n--- Edit Exit Rules ---")
	cfg.Exits.TPPct = promptFloat(reader, "Take profit (%)", cfg.Exits.TPPct)
	cfg.Exits.SLPct = promptFloat(reader, "Stop loss (%, negative)", cfg.Exits.SLPct)
	cfg.Exits.TrailPct = promptFloat(reader, "Trailing drop (pts)", cfg.Exits.TrailPct)
	cfg.Exits.MinHoldSec = int(promptFloat(reader, "Min hold (s)", float64(cfg.Exits.MinHoldSec)))
	cfg.Exits.TickSec = promptFloat(reader, "Tick interval (s)", cfg.Exits.TickSec)
}

func editDiscovery(reader *bufio.Reader, cfg *config.Config) {
	fmt.Println("\n--- Edit Discovery ---")
	sc := &cfg.Ingest.Screener
	fmt.Printf("Current keywords: %s\n", strings.Join(sc.Keywords, ", "))
	fmt.Print("Enter keywords comma-separated (blank to keep): ")
	if line, _ := reader.ReadString('\n'); strings.TrimSpace(line) != "" {
		sc.Keywords = nil
		for _, p := range strings.Split(strings.TrimSpace(line), ",") {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				sc.Keywords = append(sc.Keywords, trimmed)
			}
		}
	}
	sc.MinLiquidityUSD = promptFloat(reader, "Min liquidity (USD)", sc.MinLiquidityUSD)
	sc.MinVolumeUSD = promptFloat(reader, "Min volume (USD)", sc.MinVolumeUSD)
	sc.Confidence = promptFloat(reader, "Base confidence", sc.Confidence)
}

func launch(reader *bufio.Reader, pkg string, args ...string) {
	fmt.Println("Launching paper bot (Ctrl+C to stop)...")
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cmd := exec.CommandContext(ctx, "go", append([]string{"run", pkg}, args...)...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	cmd.Stdin = os.Stdin

	if err := cmd.Start(); err != nil {
		fmt.Fprintf(os.Stderr, "failed to start bot: %v\n", err)
		return
	}

	go func() {
		_ = cmd.Wait()
		cancel()
	}()

	fmt.Print("\nPress ENTER to stop the bot and return to menu...")
	_, _ = reader.ReadString('\n')
	cancel()
	time.Sleep(500 * time.Millisecond)
}

func runOnce(pkg string, args ...string) {
	cmd := exec.Command("go", append([]string{"run", pkg}, args...)...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "%s failed: %v\n", pkg, err)
	}
}

func promptFloat(reader *bufio.Reader, label string, current float64) float64 {
	fmt.Printf("%s [%.2f]: ", label, current)
	line, _ := reader.ReadString('\n')
	line = strings.TrimSpace(line)
	if line == "" {
		return current
	}
	val, err := strconv.ParseFloat(line, 64)
	if err != nil {
		fmt.Printf("invalid number, keeping %.2f\n", current)
		return current
	}
	return val
}

func promptString(reader *bufio.Reader, label, current string) string {
	fmt.Printf("%s [%s]: ", label, current)
	line, _ := reader.ReadString('\n')
	if line = strings.TrimSpace(line); line == "" {
		return current
	}
	if line == "-" {
		return ""
	}
	return line
}

func orNone(s string) string {
	if s == "" {
		return "(none)"
	}
	return s
}
