package consensus

import (
	"fmt"
	"strings"

	"conductor/internal/config"
	"conductor/internal/types"
)

// structuredFields are the content keys that mark a proposal as carrying
// actual reasoning rather than a bare answer.
var structuredFields = []string{"steps", "pros", "cons", "risks"}

// ReasoningQualityStrategy scores each proposal with a rubric over its
// content (length, structured fields) blended with the agent's confidence,
// and picks the maximum when it clears the quality floor.
type ReasoningQualityStrategy struct {
	cfg config.ReasoningConfig
}

// NewReasoningQualityStrategy builds the strategy from the configured
// rubric weights.
func NewReasoningQualityStrategy(cfg config.ReasoningConfig) *ReasoningQualityStrategy {
	if cfg.LengthWeight+cfg.StructureWeight+cfg.ConfidenceWeight == 0 {
		cfg = config.DefaultConfig().Consensus.Reasoning
	}
	return &ReasoningQualityStrategy{cfg: cfg}
}

// Type implements Strategy.
func (r *ReasoningQualityStrategy) Type() StrategyType { return StrategyReasoningQuality }

// Evaluate implements Strategy.
func (r *ReasoningQualityStrategy) Evaluate(proposals []*types.Proposal) (Result, error) {
	if len(proposals) == 0 {
		return Result{Reason: "no proposals to score"}, nil
	}

	var (
		best      *types.Proposal
		bestScore float64
	)
	for _, p := range proposals {
		score := r.score(p)
		if best == nil || score > bestScore {
			best, bestScore = p, score
		}
	}

	if bestScore < r.cfg.MinQuality {
		return Result{
			Reason: fmt.Sprintf("best quality %.2f below floor %.2f", bestScore, r.cfg.MinQuality),
		}, nil
	}
	return Result{
		Agreed:        true,
		WinnerID:      best.ID,
		AgreementRate: bestScore,
		Reason:        fmt.Sprintf("highest reasoning quality %.2f from %s", bestScore, best.AgentID),
	}, nil
}

func (r *ReasoningQualityStrategy) score(p *types.Proposal) float64 {
	text := types.ContentString(p.Content)

	lengthScore := float64(len(text)) / 800.0
	if lengthScore > 1 {
		lengthScore = 1
	}

	hits := 0
	if m, ok := p.Content.(map[string]interface{}); ok {
		for _, field := range structuredFields {
			if _, present := m[field]; present {
				hits++
			}
		}
	} else {
		lower := strings.ToLower(text)
		for _, field := range structuredFields {
			if strings.Contains(lower, field) {
				hits++
			}
		}
	}
	structureScore := float64(hits) / float64(len(structuredFields))

	return r.cfg.LengthWeight*lengthScore +
		r.cfg.StructureWeight*structureScore +
		r.cfg.ConfidenceWeight*p.Confidence
}
