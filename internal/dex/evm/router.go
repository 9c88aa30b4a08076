// Package evm quotes swaps through Uniswap V2 style routers on EVM chains.
package evm

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/gregapostle/memebot/internal/dex"
)

const routerABI = `[{"inputs":[{"internalType":"uint256","name":"amountIn","type":"uint256"},{"internalType":"address[]","name":"path","type":"address[]"}],"name":"getAmountsOut","outputs":[{"internalType":"uint256[]","name":"amounts","type":"uint256[]"}],"stateMutability":"view","type":"function"}]`

// DefaultProbe is the tiny input used to read the mid price (1e12 wei).
var DefaultProbe = big.NewInt(1_000_000_000_000)

// Router prices swaps with getAmountsOut over a direct two-hop path.
type Router struct {
	caller ethereum.ContractCaller
	router common.Address
	abi    abi.ABI
	probe  *big.Int
}

// NewRouter wraps any contract caller (ethclient in production).
func NewRouter(caller ethereum.ContractCaller, router string) (*Router, error) {
	if caller == nil {
		return nil, errors.New("nil contract caller")
	}
	if !common.IsHexAddress(router) {
		return nil, fmt.Errorf("invalid router address %q", router)
	}
	parsed, err := abi.JSON(strings.NewReader(routerABI))
	if err != nil {
		return nil, fmt.Errorf("parse router abi: %w", err)
	}
	return &Router{caller: caller, router: common.HexToAddress(router), abi: parsed, probe: DefaultProbe}, nil
}

// Dial connects to an RPC endpoint and returns a router bound to it; call close when done.
func Dial(ctx context.Context, rpcURL, router string) (*Router, func(), error) {
	if rpcURL == "" {
		return nil, nil, errors.New("evm rpc url is not configured")
	}
	client, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, nil, fmt.Errorf("dial evm rpc: %w", err)
	}
	r, err := NewRouter(client, router)
	if err != nil {
		client.Close()
		return nil, nil, err
	}
	return r, client.Close, nil
}

// AmountsOut calls getAmountsOut on the router.
func (r *Router) AmountsOut(ctx context.Context, amountIn *big.Int, path []common.Address) ([]*big.Int, error) {
	data, err := r.abi.Pack("getAmountsOut", amountIn, path)
	if err != nil {
		return nil, fmt.Errorf("pack getAmountsOut: %w", err)
	}
	raw, err := r.caller.CallContract(ctx, ethereum.CallMsg{To: &r.router, Data: data}, nil)
	if err != nil {
		return nil, fmt.Errorf("call getAmountsOut: %w", err)
	}
	vals, err := r.abi.Unpack("getAmountsOut", raw)
	if err != nil {
		return nil, fmt.Errorf("unpack getAmountsOut: %w", err)
	}
	if len(vals) != 1 {
		return nil, fmt.Errorf("unexpected getAmountsOut result length %d", len(vals))
	}
	amounts, ok := vals[0].([]*big.Int)
	if !ok || len(amounts) == 0 {
		return nil, dex.ErrNoRoute
	}
	return amounts, nil
}

// Quote implements dex.Quoter. Impact compares the execution price against a probe-sized quote.
func (r *Router) Quote(ctx context.Context, inputToken, outputToken string, amount uint64) (dex.Quote, error) {
	if !common.IsHexAddress(inputToken) || !common.IsHexAddress(outputToken) {
		return dex.Quote{}, fmt.Errorf("invalid token address pair %q -> %q", inputToken, outputToken)
	}
	if amount == 0 {
		return dex.Quote{}, dex.ErrNoRoute
	}
	path := []common.Address{common.HexToAddress(inputToken), common.HexToAddress(outputToken)}
	amountIn := new(big.Int).SetUint64(amount)

	probeAmounts, err := r.AmountsOut(ctx, r.probe, path)
	if err != nil {
		return dex.Quote{}, err
	}
	tradeAmounts, err := r.AmountsOut(ctx, amountIn, path)
	if err != nil {
		return dex.Quote{}, err
	}
	out := tradeAmounts[len(tradeAmounts)-1]
	if out.Sign() <= 0 {
		return dex.Quote{}, dex.ErrNoRoute
	}
	if !out.IsUint64() {
		return dex.Quote{}, fmt.Errorf("output amount %s overflows uint64", out)
	}

	mid := ratio(probeAmounts[len(probeAmounts)-1], r.probe)
	exe := ratio(out, amountIn)
	impactBps := 0
	if mid > 0 {
		impactBps = int(math.Round((mid - exe) / mid * 10_000))
		if impactBps < 0 {
			impactBps = 0
		}
	}
	return dex.Quote{OutAmount: out.Uint64(), ImpactBps: impactBps}, nil
}

func ratio(num, den *big.Int) float64 {
	if den.Sign() == 0 {
		return 0
	}
	v, _ := new(big.Float).Quo(new(big.Float).SetInt(num), new(big.Float).SetInt(den)).Float64()
	return v
}
