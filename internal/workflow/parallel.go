package workflow

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"conductor/internal/logging"
	"conductor/internal/store"
	"conductor/internal/types"
)

// ParallelExecutor fans the task out to all participants at once. Every
// agent that succeeds contributes a proposal; the run succeeds when at
// least one does.
type ParallelExecutor struct {
	tracker *stateTracker
}

// NewParallelExecutor creates the parallel executor.
func NewParallelExecutor() *ParallelExecutor {
	return &ParallelExecutor{tracker: newStateTracker()}
}

// SupportedStrategies implements Executor.
func (e *ParallelExecutor) SupportedStrategies() []types.RoutingStrategy {
	return []types.RoutingStrategy{types.RouteParallel}
}

// CurrentState implements Executor.
func (e *ParallelExecutor) CurrentState(taskID string) string { return e.tracker.get(taskID) }

// Checkpoints implements Executor. Parallel runs restart from scratch.
func (e *ParallelExecutor) Checkpoints(ctx context.Context, taskID string) ([]*store.WorkflowCheckpoint, error) {
	return nil, nil
}

// Execute implements Executor.
func (e *ParallelExecutor) Execute(ctx context.Context, rt *Runtime) StepResult {
	if err := validateRuntime(rt); err != nil {
		return Failure(err)
	}
	taskID := rt.Task.ID
	e.tracker.set(taskID, fmt.Sprintf("fanning out to %d agents", len(rt.Participants)))
	defer e.tracker.set(taskID, "idle")

	var (
		mu      sync.Mutex
		outputs = make(map[string]interface{})
		failed  []error
	)
	g, gctx := errgroup.WithContext(ctx)
	for _, agentID := range rt.Participants {
		agentID := agentID
		g.Go(func() error {
			inv, err := invokeWithRetry(gctx, rt, agentID)
			if err != nil {
				if types.KindOf(err) == types.ErrCancelled {
					return err
				}
				mu.Lock()
				failed = append(failed, err)
				mu.Unlock()
				logging.Get(logging.CategoryWorkflow).Warn("parallel agent %s failed for %s: %v",
					agentID, taskID, err)
				return nil
			}
			if _, err := submitProposal(gctx, rt, agentID, inv); err != nil {
				return err
			}
			mu.Lock()
			outputs[agentID] = inv.Content
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Failure(err)
	}

	if len(outputs) == 0 {
		return Failure(&types.DomainError{
			Kind:    types.ErrAgentUnavailable,
			Message: fmt.Sprintf("all %d parallel agents failed", len(rt.Participants)),
			TaskID:  taskID,
			Err:     firstOf(failed),
		})
	}

	logging.Get(logging.CategoryWorkflow).Info("parallel run for %s: %d/%d agents succeeded",
		taskID, len(outputs), len(rt.Participants))
	return Success(outputs)
}

// Resume implements Executor.
func (e *ParallelExecutor) Resume(ctx context.Context, rt *Runtime, checkpointID string) StepResult {
	return e.Execute(ctx, rt)
}

func firstOf(errs []error) error {
	if len(errs) == 0 {
		return nil
	}
	return errs[0]
}
