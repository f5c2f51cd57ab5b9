package workflow

import (
	"context"

	"conductor/internal/logging"
	"conductor/internal/store"
	"conductor/internal/types"
)

// SoloExecutor runs a task with a single agent: one invocation, one
// proposal. It keeps no checkpoints; resume is a fresh run.
type SoloExecutor struct {
	tracker *stateTracker
}

// NewSoloExecutor creates the solo executor.
func NewSoloExecutor() *SoloExecutor {
	return &SoloExecutor{tracker: newStateTracker()}
}

// SupportedStrategies implements Executor.
func (e *SoloExecutor) SupportedStrategies() []types.RoutingStrategy {
	return []types.RoutingStrategy{types.RouteSolo}
}

// CurrentState implements Executor.
func (e *SoloExecutor) CurrentState(taskID string) string { return e.tracker.get(taskID) }

// Checkpoints implements Executor. Solo runs are atomic; there are none.
func (e *SoloExecutor) Checkpoints(ctx context.Context, taskID string) ([]*store.WorkflowCheckpoint, error) {
	return nil, nil
}

// Execute implements Executor.
func (e *SoloExecutor) Execute(ctx context.Context, rt *Runtime) StepResult {
	if err := validateRuntime(rt); err != nil {
		return Failure(err)
	}
	taskID := rt.Task.ID
	agentID := rt.Participants[0]

	e.tracker.set(taskID, "invoking "+agentID)
	defer e.tracker.set(taskID, "idle")

	inv, err := invokeWithRetry(ctx, rt, agentID)
	if err != nil {
		return Failure(err)
	}
	if _, err := submitProposal(ctx, rt, agentID, inv); err != nil {
		return Failure(err)
	}

	logging.Get(logging.CategoryWorkflow).Info("solo run for %s via %s done", taskID, agentID)
	return Success(inv.Content)
}

// Resume implements Executor. With no checkpoints to restore, it reruns.
func (e *SoloExecutor) Resume(ctx context.Context, rt *Runtime, checkpointID string) StepResult {
	return e.Execute(ctx, rt)
}
