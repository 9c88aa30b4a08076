// Package engine runs each incoming signal through fusion, gating, the decision policy and execution.
package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gregapostle/memebot/internal/execution"
	"github.com/gregapostle/memebot/internal/metrics"
	"github.com/gregapostle/memebot/internal/risk"
	"github.com/gregapostle/memebot/internal/signal"
	"github.com/gregapostle/memebot/internal/strategy"

	"github.com/rs/zerolog"
)

// Planner sizes and vets fused signals.
type Planner interface {
	Plan(ctx context.Context, sig *signal.Signal) (risk.Proposal, error)
}

// Submitter fills buy orders.
type Submitter interface {
	Submit(ctx context.Context, order execution.Order) (execution.Fill, error)
}

// Outcome captures every stage for one signal. Fill is nil unless the decision was a buy.
type Outcome struct {
	Signal   *signal.Signal
	Proposal risk.Proposal
	Decision strategy.Decision
	Fill     *execution.Fill
}

// Handler is safe for concurrent use as long as its collaborators are.
type Handler struct {
	memory *strategy.Memory
	gate   Planner
	policy strategy.Policy
	exec   Submitter
	log    zerolog.Logger
	now    func() time.Time
}

// NewHandler wires the pipeline stages.
func NewHandler(memory *strategy.Memory, gate Planner, policy strategy.Policy, exec Submitter, log zerolog.Logger) *Handler {
	return &Handler{memory: memory, gate: gate, policy: policy, exec: exec, log: log, now: time.Now}
}

// Handle processes one signal. Gate and policy rejections are reported through the Outcome;
// an error means a collaborator failed.
func (h *Handler) Handle(ctx context.Context, sig *signal.Signal) (Outcome, error) {
	if sig == nil {
		return Outcome{}, errors.New("nil signal")
	}
	sig.Normalize(h.now())

	fused := h.memory.Fuse(sig)
	metrics.SignalsFused.WithLabelValues(string(fused.Platform)).Inc()
	h.log.Debug().
		Str("platform", string(fused.Platform)).
		Str("source", fused.Source).
		Str("contract", fused.Contract).
		Float64("confidence", fused.Confidence).
		Float64("score", fused.Score).
		Msg("signal fused")

	out := Outcome{Signal: fused}
	prop, err := h.gate.Plan(ctx, fused)
	if err != nil {
		return out, fmt.Errorf("plan entry: %w", err)
	}
	out.Proposal = prop
	h.log.Debug().
		Bool("accepted", prop.Accepted).
		Str("reason", prop.Reason).
		Float64("size", prop.Size).
		Int("impact_bps", prop.ImpactBps).
		Msg("entry planned")

	d := h.policy.Decide(fused, prop)
	out.Decision = d
	metrics.EntryDecisions.WithLabelValues(string(d.Action), d.Reason).Inc()
	h.log.Info().
		Str("action", string(d.Action)).
		Str("reason", d.Reason).
		Str("contract", d.Contract).
		Str("sym", d.Symbol).
		Float64("size", d.Size).
		Msg("entry decision")

	if d.Action != strategy.ActionBuy {
		return out, nil
	}
	fill, err := h.exec.Submit(ctx, execution.Order{
		Contract:       d.Contract,
		Symbol:         d.Symbol,
		SizeBase:       d.Size,
		ExpectedOut:    d.ExpectedOut,
		ImpactBps:      d.ImpactBps,
		MaxSlippageBps: d.MaxSlippageBps,
		Reason:         d.Reason,
	})
	if err != nil {
		return out, fmt.Errorf("submit order: %w", err)
	}
	out.Fill = &fill
	return out, nil
}

// Run handles signals from in until ctx is cancelled or in is closed.
// Per-signal failures are logged and do not stop the loop.
func (h *Handler) Run(ctx context.Context, in <-chan *signal.Signal) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case sig, ok := <-in:
			if !ok {
				return nil
			}
			if _, err := h.Handle(ctx, sig); err != nil {
				h.log.Error().Err(err).Msg("signal handling failed")
			}
		}
	}
}
