package consensus

import (
	"fmt"
	"sort"

	"conductor/internal/types"
)

// TokenOptimizationStrategy is the default CUSTOM slot: among proposals at
// or above the median confidence, pick the cheapest by total token usage,
// breaking ties toward higher confidence.
type TokenOptimizationStrategy struct{}

// NewTokenOptimizationStrategy creates the strategy.
func NewTokenOptimizationStrategy() *TokenOptimizationStrategy {
	return &TokenOptimizationStrategy{}
}

// Type implements Strategy.
func (t *TokenOptimizationStrategy) Type() StrategyType { return StrategyCustom }

// Evaluate implements Strategy.
func (t *TokenOptimizationStrategy) Evaluate(proposals []*types.Proposal) (Result, error) {
	if len(proposals) == 0 {
		return Result{Reason: "no proposals to optimize over"}, nil
	}

	median := medianConfidence(proposals)
	var eligible []*types.Proposal
	for _, p := range proposals {
		if p.Confidence >= median {
			eligible = append(eligible, p)
		}
	}

	winner := eligible[0]
	for _, p := range eligible[1:] {
		pt, wt := p.Tokens.Total(), winner.Tokens.Total()
		if pt < wt || (pt == wt && p.Confidence > winner.Confidence) {
			winner = p
		}
	}

	return Result{
		Agreed:        true,
		WinnerID:      winner.ID,
		AgreementRate: winner.Confidence,
		Reason: fmt.Sprintf("cheapest at-or-above-median proposal: %d tokens at confidence %.2f",
			winner.Tokens.Total(), winner.Confidence),
	}, nil
}

func medianConfidence(proposals []*types.Proposal) float64 {
	vals := make([]float64, len(proposals))
	for i, p := range proposals {
		vals[i] = p.Confidence
	}
	sort.Float64s(vals)
	n := len(vals)
	if n%2 == 1 {
		return vals[n/2]
	}
	return (vals[n/2-1] + vals[n/2]) / 2
}
