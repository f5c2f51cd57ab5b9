package workflow

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"conductor/internal/logging"
	"conductor/internal/store"
	"conductor/internal/types"
)

// SequentialExecutor runs participants one after another, feeding each
// agent's output forward. After every agent it persists a checkpoint, so a
// resumed run skips the agents already done.
type SequentialExecutor struct {
	db      *store.Store
	tracker *stateTracker
}

// NewSequentialExecutor creates the sequential executor. A nil store
// disables checkpointing.
func NewSequentialExecutor(db *store.Store) *SequentialExecutor {
	return &SequentialExecutor{db: db, tracker: newStateTracker()}
}

// SupportedStrategies implements Executor.
func (e *SequentialExecutor) SupportedStrategies() []types.RoutingStrategy {
	return []types.RoutingStrategy{types.RouteSequential}
}

// CurrentState implements Executor.
func (e *SequentialExecutor) CurrentState(taskID string) string { return e.tracker.get(taskID) }

// Checkpoints implements Executor.
func (e *SequentialExecutor) Checkpoints(ctx context.Context, taskID string) ([]*store.WorkflowCheckpoint, error) {
	if e.db == nil {
		return nil, nil
	}
	return e.db.CheckpointsForTask(ctx, taskID)
}

// sequentialState is the checkpoint payload: how many participants have
// completed and the last output carried forward.
type sequentialState struct {
	Completed  int         `json:"completed"`
	LastOutput interface{} `json:"lastOutput,omitempty"`
}

// Execute implements Executor.
func (e *SequentialExecutor) Execute(ctx context.Context, rt *Runtime) StepResult {
	return e.run(ctx, rt, sequentialState{})
}

// Resume implements Executor. An empty checkpointID resumes from the latest
// checkpoint; an unknown id fails with not_found.
func (e *SequentialExecutor) Resume(ctx context.Context, rt *Runtime, checkpointID string) StepResult {
	if err := validateRuntime(rt); err != nil {
		return Failure(err)
	}
	if e.db == nil {
		return e.Execute(ctx, rt)
	}

	var cp *store.WorkflowCheckpoint
	if checkpointID != "" {
		loaded, err := e.db.GetCheckpoint(ctx, checkpointID)
		if err != nil {
			return Failure(err)
		}
		cp = loaded
	} else {
		all, err := e.db.CheckpointsForTask(ctx, rt.Task.ID)
		if err != nil {
			return Failure(err)
		}
		if len(all) > 0 {
			cp = all[len(all)-1]
		}
	}

	var state sequentialState
	if cp != nil {
		if err := json.Unmarshal([]byte(cp.State), &state); err != nil {
			return Failure(fmt.Errorf("checkpoint %s corrupt: %w", cp.ID, err))
		}
		logging.Get(logging.CategoryWorkflow).Info("resuming %s from checkpoint %s (%d done)",
			rt.Task.ID, cp.ID, state.Completed)
	}
	return e.run(ctx, rt, state)
}

func (e *SequentialExecutor) run(ctx context.Context, rt *Runtime, state sequentialState) StepResult {
	if err := validateRuntime(rt); err != nil {
		return Failure(err)
	}
	taskID := rt.Task.ID
	defer e.tracker.set(taskID, "idle")

	if state.Completed >= len(rt.Participants) {
		return Success(state.LastOutput)
	}

	for i := state.Completed; i < len(rt.Participants); i++ {
		if err := ctx.Err(); err != nil {
			return Failure(&types.DomainError{Kind: types.ErrCancelled, Message: "sequential run cancelled", TaskID: taskID, Err: err})
		}
		agentID := rt.Participants[i]
		e.tracker.set(taskID, fmt.Sprintf("step %d/%d: %s", i+1, len(rt.Participants), agentID))

		task := rt.Task
		if state.LastOutput != nil {
			task = taskWithPriorOutput(rt.Task, state.LastOutput)
		}
		inv, err := invokeAgent(ctx, rt, agentID, task)
		if err != nil {
			return Failure(err)
		}
		if _, err := submitProposal(ctx, rt, agentID, inv); err != nil {
			return Failure(err)
		}

		state.Completed = i + 1
		state.LastOutput = inv.Content
		if err := e.checkpoint(ctx, rt, state); err != nil {
			return Failure(err)
		}
	}

	logging.Get(logging.CategoryWorkflow).Info("sequential run for %s done (%d steps)",
		taskID, len(rt.Participants))
	return Success(state.LastOutput)
}

func (e *SequentialExecutor) checkpoint(ctx context.Context, rt *Runtime, state sequentialState) error {
	if e.db == nil {
		return nil
	}
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("marshal checkpoint state: %w", err)
	}
	return e.db.SaveCheckpoint(ctx, &store.WorkflowCheckpoint{
		ID:       uuid.NewString(),
		TaskID:   rt.Task.ID,
		Strategy: types.RouteSequential,
		State:    string(data),
	})
}

// taskWithPriorOutput clones the task with the previous step's output in
// metadata so the next agent sees it.
func taskWithPriorOutput(t *types.Task, output interface{}) *types.Task {
	clone := *t
	clone.Metadata = make(map[string]string, len(t.Metadata)+1)
	for k, v := range t.Metadata {
		clone.Metadata[k] = v
	}
	clone.Metadata["prior_output"] = types.ContentString(output)
	return &clone
}
