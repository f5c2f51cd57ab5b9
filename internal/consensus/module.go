package consensus

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"conductor/internal/config"
	"conductor/internal/logging"
	"conductor/internal/store"
	"conductor/internal/types"
)

// StrategyType names a consensus strategy slot in the chain.
type StrategyType string

const (
	StrategyVoting           StrategyType = "VOTING"
	StrategyReasoningQuality StrategyType = "REASONING_QUALITY"
	StrategyCustom           StrategyType = "CUSTOM"
)

// defaultOrder is the chain used when the caller passes none.
var defaultOrder = []StrategyType{StrategyVoting, StrategyReasoningQuality, StrategyCustom}

// Result is one strategy's verdict over a proposal set.
type Result struct {
	Agreed        bool
	WinnerID      string
	AgreementRate float64
	Reason        string
}

// Strategy evaluates a proposal set. Evaluate errors do not abort the
// chain; the module records them and moves on.
type Strategy interface {
	Type() StrategyType
	Evaluate(proposals []*types.Proposal) (Result, error)
}

// TrailEntry records what one strategy in the chain did.
type TrailEntry struct {
	Strategy StrategyType
	Agreed   bool
	Reason   string
	Err      string
}

// Outcome is the full result of one Decide call.
type Outcome struct {
	Agreed   bool
	Reason   string
	Decision *types.Decision
	Trail    []TrailEntry
}

// Module runs the ordered strategy chain and records the decision.
type Module struct {
	store      *store.Store
	proposals  *ProposalManager
	strategies map[StrategyType]Strategy
}

// NewModule wires the default strategies from config. Custom deployments
// may Register a replacement for the CUSTOM slot at startup.
func NewModule(s *store.Store, pm *ProposalManager, cfg config.ConsensusConfig) *Module {
	m := &Module{
		store:      s,
		proposals:  pm,
		strategies: make(map[StrategyType]Strategy),
	}
	m.Register(NewVotingStrategy(cfg.Voting.Threshold))
	m.Register(NewReasoningQualityStrategy(cfg.Reasoning))
	m.Register(NewTokenOptimizationStrategy())
	return m
}

// Register installs a strategy under its type. Startup-time only.
func (m *Module) Register(s Strategy) {
	m.strategies[s.Type()] = s
}

// Decide runs the chain for a task. waitFor > 0 first waits that long for
// at least one proposal to arrive.
//
// No proposals: a decision with empty considered/selected is persisted and
// the outcome reports "No proposals". Otherwise strategies run in order
// until one agrees; a strategy error lands in the trail and the chain
// continues.
func (m *Module) Decide(ctx context.Context, taskID string, order []StrategyType, waitFor time.Duration) (*Outcome, error) {
	timer := logging.StartTimer(logging.CategoryConsensus, "Decide")
	defer timer.Stop()

	if waitFor > 0 {
		m.proposals.WaitFor(ctx, taskID, waitFor)
	}
	if err := ctx.Err(); err != nil {
		return nil, &types.DomainError{Kind: types.ErrCancelled, Message: "consensus cancelled", TaskID: taskID, Err: err}
	}

	proposals, err := m.store.ProposalsForTask(ctx, taskID)
	if err != nil {
		return nil, err
	}

	if len(proposals) == 0 {
		d := m.buildDecision(taskID, nil, Result{Reason: "No proposals"}, nil)
		if err := m.store.UpsertDecision(ctx, d); err != nil {
			return nil, err
		}
		m.proposals.Release(taskID)
		return &Outcome{Agreed: false, Reason: "No proposals", Decision: d}, nil
	}

	resolved := resolveOrder(order)
	var (
		trail []TrailEntry
		final Result
	)
	for _, st := range resolved {
		strategy, ok := m.strategies[st]
		if !ok {
			trail = append(trail, TrailEntry{Strategy: st, Err: "strategy not registered"})
			continue
		}
		res, err := strategy.Evaluate(proposals)
		if err != nil {
			// consensus_strategy_failed: recorded, chain continues.
			logging.Get(logging.CategoryConsensus).Warn("strategy %s failed for %s: %v", st, taskID, err)
			trail = append(trail, TrailEntry{Strategy: st, Err: err.Error()})
			final = Result{Reason: fmt.Sprintf("%s failed: %v", st, err)}
			continue
		}
		trail = append(trail, TrailEntry{Strategy: st, Agreed: res.Agreed, Reason: res.Reason})
		final = res
		if res.Agreed {
			break
		}
	}

	d := m.buildDecision(taskID, proposals, final, trail)
	if err := m.store.UpsertDecision(ctx, d); err != nil {
		return nil, err
	}
	m.proposals.Release(taskID)

	logging.Consensus("decision %s for %s: agreed=%v winner=%s rate=%.2f",
		d.ID, taskID, d.ConsensusAchieved, d.WinnerProposalID, d.AgreementRate)
	return &Outcome{Agreed: final.Agreed, Reason: final.Reason, Decision: d, Trail: trail}, nil
}

func (m *Module) buildDecision(taskID string, proposals []*types.Proposal, res Result, trail []TrailEntry) *types.Decision {
	d := &types.Decision{
		ID:                uuid.NewString(),
		TaskID:            taskID,
		ConsensusAchieved: res.Agreed,
		AgreementRate:     res.AgreementRate,
		Rationale:         res.Reason,
		DecidedAt:         time.Now().UTC(),
		Metadata:          map[string]string{},
	}
	for _, p := range proposals {
		d.Considered = append(d.Considered, types.ProposalRef{
			ProposalID: p.ID,
			AgentID:    p.AgentID,
			Tokens:     p.Tokens,
		})
	}
	if res.WinnerID != "" {
		d.WinnerProposalID = res.WinnerID
		d.SelectedIDs = []string{res.WinnerID}
	}
	for i, entry := range trail {
		key := fmt.Sprintf("trail.%d.%s", i, entry.Strategy)
		switch {
		case entry.Err != "":
			d.Metadata[key] = "error: " + entry.Err
		case entry.Agreed:
			d.Metadata[key] = "agreed: " + entry.Reason
		default:
			d.Metadata[key] = "disagreed: " + entry.Reason
		}
	}
	return d
}

// resolveOrder applies the default chain and deduplicates preserving order.
func resolveOrder(order []StrategyType) []StrategyType {
	if len(order) == 0 {
		order = defaultOrder
	}
	seen := make(map[StrategyType]bool, len(order))
	var out []StrategyType
	for _, st := range order {
		if !seen[st] {
			seen[st] = true
			out = append(out, st)
		}
	}
	return out
}
