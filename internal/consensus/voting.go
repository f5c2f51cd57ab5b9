package consensus

import (
	"fmt"
	"sort"

	"conductor/internal/types"
)

// VotingStrategy groups proposals by structural equality of their content
// and declares consensus when the largest group's share meets the threshold
// without a tie at the top.
type VotingStrategy struct {
	threshold float64
}

// NewVotingStrategy creates the strategy; a non-positive threshold falls
// back to the 0.75 supermajority default.
func NewVotingStrategy(threshold float64) *VotingStrategy {
	if threshold <= 0 || threshold > 1 {
		threshold = 0.75
	}
	return &VotingStrategy{threshold: threshold}
}

// Type implements Strategy.
func (v *VotingStrategy) Type() StrategyType { return StrategyVoting }

// Evaluate implements Strategy. A single proposal always meets the
// threshold. The winner inside the top group is the highest-confidence
// proposal, ties broken by earliest createdAt then smallest id, so the
// outcome is deterministic.
func (v *VotingStrategy) Evaluate(proposals []*types.Proposal) (Result, error) {
	if len(proposals) == 0 {
		return Result{Reason: "no proposals to vote on"}, nil
	}

	groups := make(map[string][]*types.Proposal)
	var keys []string
	for _, p := range proposals {
		key, err := types.CanonicalContent(p.Content)
		if err != nil {
			return Result{}, fmt.Errorf("proposal %s has invalid content: %w", p.ID, err)
		}
		if _, ok := groups[key]; !ok {
			keys = append(keys, key)
		}
		groups[key] = append(groups[key], p)
	}

	top, topTied := "", false
	for _, key := range keys {
		switch {
		case top == "" || len(groups[key]) > len(groups[top]):
			top = key
			topTied = false
		case len(groups[key]) == len(groups[top]):
			topTied = true
		}
	}

	share := float64(len(groups[top])) / float64(len(proposals))
	if share < v.threshold {
		return Result{
			AgreementRate: share,
			Reason:        fmt.Sprintf("largest group share %.2f below threshold %.2f", share, v.threshold),
		}, nil
	}
	if topTied {
		return Result{
			AgreementRate: share,
			Reason:        "Tie detected between top proposal groups",
		}, nil
	}

	winner := pickGroupWinner(groups[top])
	return Result{
		Agreed:        true,
		WinnerID:      winner.ID,
		AgreementRate: share,
		Reason: fmt.Sprintf("%d of %d proposals agree (%.0f%%)",
			len(groups[top]), len(proposals), share*100),
	}, nil
}

func pickGroupWinner(group []*types.Proposal) *types.Proposal {
	sorted := make([]*types.Proposal, len(group))
	copy(sorted, group)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if a.Confidence != b.Confidence {
			return a.Confidence > b.Confidence
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ID < b.ID
	})
	return sorted[0]
}
