package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// LoadEnv reads .env files into the process environment. Missing files are ignored
// and variables already set win.
func LoadEnv(files ...string) error {
	var errs []error
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, os.ErrNotExist) {
			errs = append(errs, fmt.Errorf("load %s: %w", f, err))
		}
	}
	return errors.Join(errs...)
}

// ApplyEnv overlays environment overrides. Unparseable values keep the current setting
// and are returned joined as warnings.
func (c *Config) ApplyEnv() error {
	return c.applyEnv(os.LookupEnv)
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	var warns []error
	str := func(name string, dst *string) {
		if v, ok := lookup(name); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}
	num := func(name string, dst *float64) {
		v, ok := lookup(name)
		if !ok || strings.TrimSpace(v) == "" {
			return
		}
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			warns = append(warns, fmt.Errorf("%s=%q: %w", name, v, err))
			return
		}
		*dst = f
	}
	integer := func(name string, dst *int) {
		v, ok := lookup(name)
		if !ok || strings.TrimSpace(v) == "" {
			return
		}
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			warns = append(warns, fmt.Errorf("%s=%q: %w", name, v, err))
			return
		}
		*dst = n
	}
	flag := func(name string, dst *bool) {
		v, ok := lookup(name)
		if !ok || strings.TrimSpace(v) == "" {
			return
		}
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "true", "yes", "on":
			*dst = true
		case "0", "false", "no", "off":
			*dst = false
		default:
			warns = append(warns, fmt.Errorf("%s=%q: not a boolean", name, v))
		}
	}

	str("NETWORK", &c.Trading.Network)
	c.Trading.Network = strings.ToLower(c.Trading.Network)
	num("BASE_SIZE_SOL", &c.Trading.BaseSize)
	str("SIZE_BY_CONF", &c.Trading.SizeByConf)
	str("CALLER_ALLOWLIST", &c.Trading.CallerAllowlist)
	num("DAILY_LOSS_CAP_SOL", &c.Trading.DailyLossCap)
	num("TP_PCT", &c.Exits.TPPct)
	num("SL_PCT", &c.Exits.SLPct)
	num("TRAIL_PCT", &c.Exits.TrailPct)
	integer("MIN_HOLD_SEC", &c.Exits.MinHoldSec)
	num("EXIT_TICK_SEC", &c.Exits.TickSec)
	integer("DECAY_SECONDS", &c.Fusion.DecaySeconds)
	str("MEMEBOT_DATA_DIR", &c.Storage.DataDir)
	str("JUPITER_BASE_URL", &c.Dex.JupiterBase)
	str("ETH_HTTP", &c.Dex.EthHTTP)
	flag("MOCK_JUPITER", &c.Dex.Mock)
	return errors.Join(warns...)
}
