// Package execution turns buy decisions into paper positions and ledger trades.
package execution

import (
	"context"
	"errors"
	"fmt"

	"github.com/gregapostle/memebot/internal/chain"
	"github.com/gregapostle/memebot/internal/metrics"
	"github.com/gregapostle/memebot/internal/paper"
	"github.com/gregapostle/memebot/internal/positions"

	"github.com/rs/zerolog"
)

// ErrInvalidOrder rejects orders missing a contract or a positive size.
var ErrInvalidOrder = errors.New("invalid order")

// Order is a buy the pipeline wants filled.
type Order struct {
	Contract       string
	Symbol         string
	SizeBase       float64
	ExpectedOut    uint64
	ImpactBps      int
	MaxSlippageBps int
	Reason         string
}

// Fill is what a submitted order produced.
type Fill struct {
	Position   positions.Open
	Trade      paper.Trade
	SimSlipBps int
}

// PositionOpener records new positions.
type PositionOpener interface {
	Open(ctx context.Context, req positions.OpenRequest) (positions.Open, error)
}

// TradeLog records trades.
type TradeLog interface {
	Append(paper.Trade) paper.Trade
}

// PaperExecutor fills every order at its quoted output. Nothing leaves the process.
type PaperExecutor struct {
	chain  chain.Chain
	store  PositionOpener
	ledger TradeLog
	sim    *paper.Simulator
	log    zerolog.Logger
}

// NewPaperExecutor wires the executor. sim may be nil to skip the slippage estimate.
func NewPaperExecutor(ch chain.Chain, store PositionOpener, ledger TradeLog, sim *paper.Simulator, log zerolog.Logger) *PaperExecutor {
	return &PaperExecutor{chain: ch, store: store, ledger: ledger, sim: sim, log: log}
}

// Submit opens the position and then appends the buy trade.
func (executor *PaperExecutor) Submit(ctx context.Context, order Order) (Fill, error) {
	if order.Contract == "" || !(order.SizeBase > 0) {
		return Fill{}, fmt.Errorf("%w: contract=%q size=%v", ErrInvalidOrder, order.Contract, order.SizeBase)
	}
	symbol := order.Symbol
	if symbol == "" {
		symbol = order.Contract
	}

	pos, err := executor.store.Open(ctx, positions.OpenRequest{
		Chain:       executor.chain.Name,
		Base:        executor.chain.NativeSymbol,
		Quote:       order.Contract,
		EntryBase:   order.SizeBase,
		EntryOutRaw: float64(order.ExpectedOut),
		Note:        "sym=" + symbol,
	})
	if err != nil {
		return Fill{}, fmt.Errorf("open position: %w", err)
	}

	trade := executor.ledger.Append(paper.Trade{
		Ts:             pos.OpenedAt,
		Chain:          executor.chain.Name,
		Side:           paper.Buy,
		Base:           executor.chain.NativeSymbol,
		Quote:          order.Contract,
		SizeBase:       order.SizeBase,
		OutAmount:      order.ExpectedOut,
		PriceImpactBps: order.ImpactBps,
		SlippageBps:    order.MaxSlippageBps,
		Reason:         order.Reason,
	})

	fill := Fill{Position: pos, Trade: trade}
	if executor.sim != nil {
		fill.SimSlipBps = executor.sim.SlippageBps(order.ImpactBps)
	}

	metrics.OrdersTotal.WithLabelValues(symbol, string(paper.Buy)).Inc()
	executor.log.Info().
		Str("sym", symbol).
		Str("contract", order.Contract).
		Str("side", string(paper.Buy)).
		Float64("size", order.SizeBase).
		Uint64("expected_out", order.ExpectedOut).
		Int("impact_bps", order.ImpactBps).
		Int("sim_slip_bps", fill.SimSlipBps).
		Str("position", pos.ID).
		Msg("paper order filled")
	return fill, nil
}
