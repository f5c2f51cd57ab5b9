package workflow

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"conductor/internal/logging"
	"conductor/internal/store"
	"conductor/internal/types"
)

// ConsensusExecutor collects one proposal from every participant so the
// consensus module has a full slate to decide over. Unlike the parallel
// executor it requires all participants to produce a proposal; a missing
// voice would skew the vote.
type ConsensusExecutor struct {
	tracker *stateTracker
}

// NewConsensusExecutor creates the consensus executor.
func NewConsensusExecutor() *ConsensusExecutor {
	return &ConsensusExecutor{tracker: newStateTracker()}
}

// SupportedStrategies implements Executor.
func (e *ConsensusExecutor) SupportedStrategies() []types.RoutingStrategy {
	return []types.RoutingStrategy{types.RouteConsensus}
}

// CurrentState implements Executor.
func (e *ConsensusExecutor) CurrentState(taskID string) string { return e.tracker.get(taskID) }

// Checkpoints implements Executor.
func (e *ConsensusExecutor) Checkpoints(ctx context.Context, taskID string) ([]*store.WorkflowCheckpoint, error) {
	return nil, nil
}

// Execute implements Executor.
func (e *ConsensusExecutor) Execute(ctx context.Context, rt *Runtime) StepResult {
	if err := validateRuntime(rt); err != nil {
		return Failure(err)
	}
	taskID := rt.Task.ID
	e.tracker.set(taskID, fmt.Sprintf("collecting %d proposals", len(rt.Participants)))
	defer e.tracker.set(taskID, "idle")

	g, gctx := errgroup.WithContext(ctx)
	for _, agentID := range rt.Participants {
		agentID := agentID
		g.Go(func() error {
			inv, err := invokeWithRetry(gctx, rt, agentID)
			if err != nil {
				return err
			}
			_, err = submitProposal(gctx, rt, agentID, inv)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return Failure(err)
	}

	logging.Get(logging.CategoryWorkflow).Info("consensus slate for %s: %d proposals collected",
		taskID, len(rt.Participants))
	return Success(map[string]interface{}{"proposals": len(rt.Participants)})
}

// Resume implements Executor. Proposals are immutable; a resumed run simply
// collects a fresh slate.
func (e *ConsensusExecutor) Resume(ctx context.Context, rt *Runtime, checkpointID string) StepResult {
	return e.Execute(ctx, rt)
}
