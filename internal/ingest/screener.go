package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/gregapostle/memebot/internal/signal"
)

// DefaultScreenerBaseURL is the public Dexscreener API.
const DefaultScreenerBaseURL = "https://api.dexscreener.com"

// ScreenerConfig tunes pair discovery.
type ScreenerConfig struct {
	BaseURL         string
	Keywords        []string
	Chain           string
	MinLiquidityUSD float64
	MinVolumeUSD    float64
	Interval        time.Duration
	// Confidence stamped on every discovered token; momentum adds up to 0.2 on top.
	Confidence float64
}

// Screener polls Dexscreener search and emits one signal per newly seen token.
type Screener struct {
	cfg    ScreenerConfig
	client *http.Client
	log    zerolog.Logger

	mu   sync.Mutex
	seen map[string]struct{}
}

type screenerResponse struct {
	Pairs []screenerPair `json:"pairs"`
}

type screenerPair struct {
	ChainID     string `json:"chainId"`
	PairAddress string `json:"pairAddress"`
	URL         string `json:"url"`
	BaseToken   struct {
		Address string `json:"address"`
		Name    string `json:"name"`
		Symbol  string `json:"symbol"`
	} `json:"baseToken"`
	Txns struct {
		M5 struct {
			Buys  int `json:"buys"`
			Sells int `json:"sells"`
		} `json:"m5"`
	} `json:"txns"`
	Volume struct {
		H1  float64 `json:"h1"`
		H6  float64 `json:"h6"`
		H24 float64 `json:"h24"`
	} `json:"volume"`
	Liquidity struct {
		USD float64 `json:"usd"`
	} `json:"liquidity"`
	PriceChange struct {
		H1 float64 `json:"h1"`
	} `json:"priceChange"`
}

// NewScreener applies defaults to cfg.
func NewScreener(cfg ScreenerConfig, log zerolog.Logger) *Screener {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultScreenerBaseURL
	}
	cfg.BaseURL = strings.TrimSuffix(cfg.BaseURL, "/")
	if cfg.Interval <= 0 {
		cfg.Interval = 15 * time.Second
	}
	if len(cfg.Keywords) == 0 {
		cfg.Keywords = []string{"wif", "boden", "pepe", "doge"}
	}
	if cfg.Confidence <= 0 {
		cfg.Confidence = 0.5
	}
	cfg.Chain = strings.ToLower(cfg.Chain)
	return &Screener{
		cfg:    cfg,
		client: &http.Client{Timeout: 10 * time.Second},
		log:    log,
		seen:   make(map[string]struct{}),
	}
}

// Run polls until ctx is cancelled. Failed polls are logged and retried next interval.
func (s *Screener) Run(ctx context.Context, out chan<- *signal.Signal) error {
	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()
	for {
		sigs, err := s.Poll(ctx)
		if err != nil && ctx.Err() == nil {
			s.log.Warn().Err(err).Msg("pair discovery poll failed")
		}
		for _, sig := range sigs {
			select {
			case out <- sig:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Poll runs one discovery cycle and returns signals for tokens not seen before.
func (s *Screener) Poll(ctx context.Context) ([]*signal.Signal, error) {
	var (
		out     []*signal.Signal
		lastErr error
	)
	now := time.Now().UTC()
	for _, keyword := range s.cfg.Keywords {
		pairs, err := s.search(ctx, keyword)
		if err != nil {
			if ctx.Err() != nil {
				return out, ctx.Err()
			}
			s.log.Debug().Err(err).Str("keyword", keyword).Msg("dexscreener search failed")
			lastErr = err
			continue
		}
		for _, pair := range pairs {
			if sig := s.candidate(pair, keyword, now); sig != nil {
				out = append(out, sig)
			}
		}
	}
	if len(out) > 0 {
		s.log.Info().Int("tokens", len(out)).Msg("discovered tokens")
	}
	return out, lastErr
}

func (s *Screener) candidate(pair screenerPair, keyword string, now time.Time) *signal.Signal {
	if s.cfg.Chain != "" && strings.ToLower(pair.ChainID) != s.cfg.Chain {
		return nil
	}
	token := strings.TrimSpace(pair.BaseToken.Address)
	if token == "" {
		return nil
	}
	if s.cfg.MinLiquidityUSD > 0 && pair.Liquidity.USD < s.cfg.MinLiquidityUSD {
		return nil
	}
	volume := pair.Volume.H24
	if volume <= 0 {
		volume = pair.Volume.H6
	}
	if volume <= 0 {
		volume = pair.Volume.H1
	}
	if s.cfg.MinVolumeUSD > 0 && volume < s.cfg.MinVolumeUSD {
		return nil
	}

	s.mu.Lock()
	_, dup := s.seen[token]
	s.seen[token] = struct{}{}
	s.mu.Unlock()
	if dup {
		return nil
	}

	conf := s.cfg.Confidence
	if pair.Txns.M5.Buys > pair.Txns.M5.Sells {
		conf += 0.1
	}
	if pair.PriceChange.H1 > 0 {
		conf += 0.1
	}
	symbol := strings.ToUpper(pair.BaseToken.Symbol)
	return &signal.Signal{
		Platform:   signal.PlatformScreener,
		Type:       "discovery",
		Source:     "dexscreener",
		Content:    fmt.Sprintf("%s liq=%.0f vol=%.0f", pair.BaseToken.Name, pair.Liquidity.USD, volume),
		Mentions:   []string{keyword},
		Confidence: min(conf, 1),
		Ts:         now,
		ID:         pair.PairAddress,
		Contract:   token,
		Symbol:     symbol,
		URL:        pair.URL,
	}
}

func (s *Screener) search(ctx context.Context, keyword string) ([]screenerPair, error) {
	endpoint := fmt.Sprintf("%s/latest/dex/search?q=%s", s.cfg.BaseURL, url.QueryEscape(keyword))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "memebot/1.0 (discovery)")
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	var payload screenerResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, err
	}
	return payload.Pairs, nil
}
