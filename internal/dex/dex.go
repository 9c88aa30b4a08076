// Package dex defines the liquidity oracle surface shared by the entry gate and the exit engine.
package dex

import (
	"context"
	"errors"
)

// ErrNoRoute is returned when the venue has no path between the two assets.
var ErrNoRoute = errors.New("no route")

// Quote is the result of a single-direction swap quote. Amounts are raw units of the output asset.
type Quote struct {
	OutAmount uint64
	ImpactBps int
}

// Quoter prices a swap of amount raw units of inputMint into outputMint.
// Any failure, including an empty route, is reported as a non-nil error.
type Quoter interface {
	Quote(ctx context.Context, inputMint, outputMint string, amount uint64) (Quote, error)
}

// Func adapts a plain function to Quoter.
type Func func(ctx context.Context, inputMint, outputMint string, amount uint64) (Quote, error)

// Quote calls f.
func (f Func) Quote(ctx context.Context, inputMint, outputMint string, amount uint64) (Quote, error) {
	return f(ctx, inputMint, outputMint, amount)
}

// Mock returns a fixed 120x output at 30 bps impact for every non-zero amount.
// It stands in for the aggregator when running offline.
type Mock struct{}

// Quote implements Quoter.
func (Mock) Quote(ctx context.Context, inputMint, outputMint string, amount uint64) (Quote, error) {
	if err := ctx.Err(); err != nil {
		return Quote{}, err
	}
	if amount == 0 {
		return Quote{}, ErrNoRoute
	}
	return Quote{OutAmount: amount * 120, ImpactBps: 30}, nil
}
