// Package config exposes strongly typed application configuration structs loaded from YAML.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// App captures process-wide runtime settings such as name, environment, metrics, and logging levels.
type App struct {
	Name        string `yaml:"name"`
	Env         string `yaml:"env"`
	MetricsAddr string `yaml:"metrics_addr"`
	LogLevel    string `yaml:"log_level" validate:"omitempty,oneof=trace debug info warn error"`
	LogFile     string `yaml:"log_file"`
}

// Trading holds entry sizing and gating knobs. Tables are kept in their raw "k:v,k:v" form.
type Trading struct {
	Network         string  `yaml:"network" validate:"required,oneof=solana ethereum bsc"`
	BaseSize        float64 `yaml:"base_size" validate:"gt=0"`
	SizeByConf      string  `yaml:"size_by_conf"`
	CallerAllowlist string  `yaml:"caller_allowlist"`
	DailyLossCap    float64 `yaml:"daily_loss_cap" validate:"gte=0"`
	MinConfidence   float64 `yaml:"min_confidence" validate:"gte=0,lte=1"`
	MaxSlippageBps  int     `yaml:"max_slippage_bps" validate:"gte=0"`
}

// Fusion configures the signal memory.
type Fusion struct {
	DecaySeconds int `yaml:"decay_seconds" validate:"gte=0"`
}

// Exits are the exit engine rules plus its tick cadence.
type Exits struct {
	TPPct      float64 `yaml:"tp_pct" validate:"gt=0"`
	SLPct      float64 `yaml:"sl_pct" validate:"lt=0"`
	TrailPct   float64 `yaml:"trail_pct" validate:"gte=0"`
	MinHoldSec int     `yaml:"min_hold_sec" validate:"gte=0"`
	TickSec    float64 `yaml:"tick_sec" validate:"gt=0"`
}

// Dex selects and configures the liquidity oracle.
type Dex struct {
	Mock        bool   `yaml:"mock"`
	JupiterBase string `yaml:"jupiter_base" validate:"omitempty,url"`
	SlippageBps int    `yaml:"slippage_bps" validate:"gte=0,lte=10000"`
	EthHTTP     string `yaml:"eth_http"`
}

// Storage locates the position tables and the trade log.
type Storage struct {
	Backend string `yaml:"backend" validate:"oneof=csv sqlite"`
	DataDir string `yaml:"data_dir" validate:"required"`
}

// Screener configures pair discovery.
type Screener struct {
	BaseURL         string   `yaml:"base_url"`
	Keywords        []string `yaml:"keywords"`
	MinLiquidityUSD float64  `yaml:"min_liquidity_usd" validate:"gte=0"`
	MinVolumeUSD    float64  `yaml:"min_volume_usd" validate:"gte=0"`
	IntervalMs      int      `yaml:"interval_ms" validate:"gte=0"`
	Confidence      float64  `yaml:"confidence" validate:"gte=0,lte=1"`
}

// Ingest selects the signal source.
type Ingest struct {
	Mode       string   `yaml:"mode" validate:"oneof=mock relay screener"`
	MockRepeat bool     `yaml:"mock_repeat"`
	IntervalMs int      `yaml:"interval_ms" validate:"gte=0"`
	RelayURL   string   `yaml:"relay_url" validate:"required_if=Mode relay"`
	Screener   Screener `yaml:"screener"`
}

// API configures the reporting HTTP server. An empty address disables it.
type API struct {
	Addr string `yaml:"addr"`
}

// Config collects every configuration leaf for easy marshaling from YAML.
type Config struct {
	App     App     `yaml:"app"`
	Trading Trading `yaml:"trading"`
	Fusion  Fusion  `yaml:"fusion"`
	Exits   Exits   `yaml:"exits"`
	Dex     Dex     `yaml:"dex"`
	Storage Storage `yaml:"storage"`
	Ingest  Ingest  `yaml:"ingest"`
	API     API     `yaml:"api"`
}

// Default returns the stock configuration.
func Default() *Config {
	return &Config{
		App: App{Name: "memebot", Env: "dev", MetricsAddr: ":9102", LogLevel: "info"},
		Trading: Trading{
			Network:        "solana",
			BaseSize:       0.05,
			DailyLossCap:   0.5,
			MinConfidence:  0.7,
			MaxSlippageBps: 300,
		},
		Fusion: Fusion{DecaySeconds: 300},
		Exits:  Exits{TPPct: 20, SLPct: -30, TrailPct: 10, MinHoldSec: 10, TickSec: 2},
		Dex:    Dex{Mock: true, JupiterBase: "https://quote-api.jup.ag", SlippageBps: 300},
		Storage: Storage{
			Backend: "csv",
			DataDir: "data",
		},
		Ingest: Ingest{Mode: "mock", IntervalMs: 1000},
		API:    API{Addr: ":8088"},
	}
}

// Load reads a YAML file on top of Default.
func Load(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	config := Default()
	if err := yaml.NewDecoder(file).Decode(config); err != nil {
		return nil, fmt.Errorf("decode yaml: %w", err)
	}
	return config, nil
}

// LoadOrDefault falls back to Default when path does not exist.
func LoadOrDefault(path string) (*Config, error) {
	cfg, err := Load(path)
	if errors.Is(err, os.ErrNotExist) {
		return Default(), nil
	}
	return cfg, err
}

// Save persists a Config struct to disk as YAML.
func Save(path string, cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("nil config")
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal yaml: %w", err)
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config dir: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

var validate = validator.New()

// Validate checks struct tags and returns every violation joined.
func (c *Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	errs := make([]error, 0, len(verrs))
	for _, fe := range verrs {
		errs = append(errs, fmt.Errorf("%s: failed %q (value %v)", fe.Namespace(), fe.Tag(), fe.Value()))
	}
	return errors.Join(errs...)
}

// DecayWindow is the fusion window.
func (f Fusion) DecayWindow() time.Duration { return time.Duration(f.DecaySeconds) * time.Second }

// MinHold is the minimum age before a position may exit.
func (e Exits) MinHold() time.Duration { return time.Duration(e.MinHoldSec) * time.Second }

// TickInterval is the exit loop cadence.
func (e Exits) TickInterval() time.Duration {
	return time.Duration(e.TickSec * float64(time.Second))
}

// Interval is the pacing between mock signals.
func (i Ingest) Interval() time.Duration { return time.Duration(i.IntervalMs) * time.Millisecond }

// Interval is the discovery polling cadence.
func (s Screener) Interval() time.Duration { return time.Duration(s.IntervalMs) * time.Millisecond }
