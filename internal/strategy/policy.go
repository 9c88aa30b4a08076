package strategy

import (
	"github.com/gregapostle/memebot/internal/risk"
	"github.com/gregapostle/memebot/internal/signal"
)

// Action is the final verdict for a signal.
type Action string

const (
	ActionBuy  Action = "buy"
	ActionSkip Action = "skip"
)

// Decision reasons beyond the gate's own rejection reasons.
const (
	ReasonRulePass      = "rule_pass"
	ReasonLowConfidence = "low_confidence"
	ReasonTooMuchImpact = "too_much_price_impact"
)

const (
	DefaultMinConfidence  = 0.7
	DefaultMaxSlippageBps = 300
)

// Decision is what the pipeline acts on.
type Decision struct {
	Action         Action
	Reason         string
	Size           float64
	MaxSlippageBps int
	ImpactBps      int
	ExpectedOut    uint64
	Contract       string
	Symbol         string
}

// Policy applies the last confidence and price-impact checks on top of an accepted proposal.
// Zero thresholds disable the corresponding check.
type Policy struct {
	MinConfidence  float64
	MaxSlippageBps int
}

// DefaultPolicy mirrors the stock thresholds.
func DefaultPolicy() Policy {
	return Policy{MinConfidence: DefaultMinConfidence, MaxSlippageBps: DefaultMaxSlippageBps}
}

// Decide turns a gate proposal into a buy or skip.
func (p Policy) Decide(sig *signal.Signal, prop risk.Proposal) Decision {
	d := Decision{
		Action:         ActionSkip,
		Contract:       sig.Contract,
		Symbol:         sig.Symbol,
		ImpactBps:      prop.ImpactBps,
		MaxSlippageBps: p.MaxSlippageBps,
	}
	switch {
	case !prop.Accepted:
		d.Reason = prop.Reason
	case p.MinConfidence > 0 && sig.Confidence < p.MinConfidence:
		d.Reason = ReasonLowConfidence
	case p.MaxSlippageBps > 0 && prop.ImpactBps > p.MaxSlippageBps:
		d.Reason = ReasonTooMuchImpact
	default:
		d.Action = ActionBuy
		d.Reason = ReasonRulePass
		d.Size = prop.Size
		d.ExpectedOut = prop.ExpectedOut
	}
	return d
}
