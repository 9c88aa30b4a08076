package solana

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	solana "github.com/gagliardetto/solana-go"

	"github.com/gregapostle/memebot/internal/dex"
)

const (
	DefaultBase        = "https://quote-api.jup.ag"
	DefaultSlippageBps = 300
)

type JupiterClient struct {
	Base        string
	SlippageBps int
	Http        *http.Client
}

type Quote struct {
	InputMint      string    `json:"inputMint"`
	OutputMint     string    `json:"outputMint"`
	InAmount       string    `json:"inAmount"`
	OutAmount      string    `json:"outAmount"`
	OtherAmount    string    `json:"otherAmountThreshold"`
	SlippageBps    int       `json:"slippageBps"`
	RoutePlan      any       `json:"routePlan"`
	PriceImpactPct impactPct `json:"priceImpactPct"`
}

// impactPct accepts both the quoted and bare numeric forms Jupiter has used for priceImpactPct.
type impactPct float64

func (p *impactPct) UnmarshalJSON(data []byte) error {
	raw := strings.Trim(string(bytes.TrimSpace(data)), `"`)
	if raw == "" || raw == "null" {
		*p = 0
		return nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return fmt.Errorf("priceImpactPct: %w", err)
	}
	*p = impactPct(v)
	return nil
}

func NewJupiterClient(base string, slippageBps int) *JupiterClient {
	if base == "" {
		base = DefaultBase
	}
	if slippageBps <= 0 {
		slippageBps = DefaultSlippageBps
	}
	return &JupiterClient{
		Base:        strings.TrimSuffix(base, "/"),
		SlippageBps: slippageBps,
		Http:        &http.Client{Timeout: 8 * time.Second},
	}
}

// amount is in smallest units (lamports for SOL; token decimals apply).
func (j *JupiterClient) GetQuote(ctx context.Context, inputMint, outputMint string, amount uint64, slippageBps int) (*Quote, error) {
	q := url.Values{}
	q.Set("inputMint", inputMint)
	q.Set("outputMint", outputMint)
	q.Set("amount", strconv.FormatUint(amount, 10))
	q.Set("slippageBps", strconv.Itoa(slippageBps))
	q.Set("onlyDirectRoutes", "false")
	u := j.Base + "/v6/quote?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	resp, err := j.Http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("jupiter quote status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	var out Quote
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Quote implements dex.Quoter on top of GetQuote. Both mints must be valid base58 public keys.
func (j *JupiterClient) Quote(ctx context.Context, inputMint, outputMint string, amount uint64) (dex.Quote, error) {
	for _, mint := range []string{inputMint, outputMint} {
		if _, err := solana.PublicKeyFromBase58(mint); err != nil {
			return dex.Quote{}, fmt.Errorf("invalid mint %q: %w", mint, err)
		}
	}
	if amount == 0 {
		return dex.Quote{}, dex.ErrNoRoute
	}
	q, err := j.GetQuote(ctx, inputMint, outputMint, amount, j.SlippageBps)
	if err != nil {
		return dex.Quote{}, err
	}
	out, err := strconv.ParseUint(q.OutAmount, 10, 64)
	if err != nil || out == 0 {
		return dex.Quote{}, dex.ErrNoRoute
	}
	return dex.Quote{
		OutAmount: out,
		ImpactBps: int(math.Round(math.Abs(float64(q.PriceImpactPct)) * 10_000)),
	}, nil
}
