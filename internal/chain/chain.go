// Package chain describes the networks positions can be opened on.
package chain

import (
	"fmt"
	"math"
	"strings"

	solana "github.com/gagliardetto/solana-go"
)

// Chain carries the per-network constants the gate and exit engine need.
type Chain struct {
	Name         string
	ChainID      int64
	NativeSymbol string
	// NativeMint is the wrapped native asset quoted against (wSOL mint, WETH, WBNB).
	NativeMint string
	Decimals   int
	// RouterV2 is the Uniswap V2 style router for EVM chains.
	RouterV2 string
}

var (
	Solana = Chain{
		Name:         "solana",
		ChainID:      1,
		NativeSymbol: "SOL",
		NativeMint:   solana.SolMint.String(),
		Decimals:     9,
	}
	Ethereum = Chain{
		Name:         "ethereum",
		ChainID:      1,
		NativeSymbol: "ETH",
		NativeMint:   "0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2",
		Decimals:     18,
		RouterV2:     "0x7a250d5630B4cF539739dF2C5dAcb4c659F2488D",
	}
	BSC = Chain{
		Name:         "bsc",
		ChainID:      56,
		NativeSymbol: "BNB",
		NativeMint:   "0xBB4CdB9CBd36B01bD1cBaEBF2De08d9173bc095c",
		Decimals:     18,
		RouterV2:     "0x10ED43C718714eb63d5aA57B78B54704E256024E",
	}
)

var known = map[string]Chain{
	Solana.Name:   Solana,
	Ethereum.Name: Ethereum,
	BSC.Name:      BSC,
}

// Lookup resolves a network name (case-insensitive).
func Lookup(name string) (Chain, error) {
	c, ok := known[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return Chain{}, fmt.Errorf("unknown chain %q", name)
	}
	return c, nil
}

// IsEVM reports whether quotes go through a V2 router rather than Jupiter.
func (c Chain) IsEVM() bool { return c.RouterV2 != "" }

// ToRaw converts a native amount into raw units, truncating dust.
func (c Chain) ToRaw(amount float64) uint64 {
	if amount <= 0 {
		return 0
	}
	raw := amount * math.Pow10(c.Decimals)
	if raw >= math.MaxUint64 {
		return math.MaxUint64
	}
	return uint64(raw)
}

// FromRaw converts raw units of the native asset back into a native amount.
func (c Chain) FromRaw(raw uint64) float64 {
	return float64(raw) / math.Pow10(c.Decimals)
}
