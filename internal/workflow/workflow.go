// Package workflow holds the strategy-specific executors that drive agents
// for a task: solo, sequential, parallel, and consensus fan-out. Executors
// emit proposals through the ProposalManager and may persist checkpoints so
// an interrupted run can resume.
package workflow

import (
	"context"
	"errors"
	"sync"
	"time"

	"conductor/internal/consensus"
	"conductor/internal/store"
	"conductor/internal/types"
)

// StepStatus is the outcome class of one execute/resume call.
type StepStatus string

const (
	StepSuccess StepStatus = "SUCCESS"
	StepWaiting StepStatus = "WAITING"
	StepFailure StepStatus = "FAILURE"
)

// StepResult is what an executor returns to the engine.
type StepResult struct {
	Status StepStatus
	Output interface{}
	Reason string // set for WAITING
	Err    error  // set for FAILURE

	// WantConsensus asks the engine to run the decision chain even when the
	// routing strategy is not CONSENSUS, e.g. when agents disagree mid-run.
	WantConsensus bool
}

// Success wraps an output.
func Success(output interface{}) StepResult {
	return StepResult{Status: StepSuccess, Output: output}
}

// SuccessWithConsensus wraps an output and requests a consensus pass.
func SuccessWithConsensus(output interface{}) StepResult {
	return StepResult{Status: StepSuccess, Output: output, WantConsensus: true}
}

// Waiting reports the task is parked on external input.
func Waiting(reason string) StepResult {
	return StepResult{Status: StepWaiting, Reason: reason}
}

// Failure wraps an error.
func Failure(err error) StepResult {
	return StepResult{Status: StepFailure, Err: err}
}

// Invocation is one agent's raw output before it becomes a proposal.
type Invocation struct {
	Content    interface{}
	Confidence float64
	Tokens     types.TokenUsage
}

// AgentInvoker is the adapter the engine hands executors to call agents.
// Implementations decide transport; executors treat it as opaque.
type AgentInvoker interface {
	Invoke(ctx context.Context, agentID string, task *types.Task) (*Invocation, error)
}

// Runtime carries everything an executor needs for one run.
type Runtime struct {
	Task         *types.Task
	Participants []string
	Invoker      AgentInvoker
	Proposals    *consensus.ProposalManager
}

// Executor drives a task under one or more routing strategies.
type Executor interface {
	SupportedStrategies() []types.RoutingStrategy
	Execute(ctx context.Context, rt *Runtime) StepResult
	CurrentState(taskID string) string
	Checkpoints(ctx context.Context, taskID string) ([]*store.WorkflowCheckpoint, error)
	Resume(ctx context.Context, rt *Runtime, checkpointID string) StepResult
}

const (
	invokeAttempts = 3
	invokeBackoff  = 50 * time.Millisecond
)

// invokeWithRetry calls the agent with the runtime's task, retrying
// agent_unavailable with bounded backoff.
func invokeWithRetry(ctx context.Context, rt *Runtime, agentID string) (*Invocation, error) {
	return invokeAgent(ctx, rt, agentID, rt.Task)
}

// invokeAgent calls the agent, retrying agent_unavailable with bounded
// backoff. Every other error kind surfaces immediately.
func invokeAgent(ctx context.Context, rt *Runtime, agentID string, task *types.Task) (*Invocation, error) {
	var lastErr error
	for attempt := 1; attempt <= invokeAttempts; attempt++ {
		inv, err := rt.Invoker.Invoke(ctx, agentID, task)
		if err == nil {
			return inv, nil
		}
		lastErr = err
		if types.KindOf(err) != types.ErrAgentUnavailable {
			return nil, err
		}
		select {
		case <-time.After(time.Duration(attempt) * invokeBackoff):
		case <-ctx.Done():
			return nil, &types.DomainError{Kind: types.ErrCancelled, Message: "invoke cancelled", TaskID: rt.Task.ID, AgentID: agentID, Err: ctx.Err()}
		}
	}
	return nil, lastErr
}

// submitProposal pushes an invocation through the proposal manager.
func submitProposal(ctx context.Context, rt *Runtime, agentID string, inv *Invocation) (*types.Proposal, error) {
	return rt.Proposals.Submit(ctx, rt.Task.ID, agentID, inv.Content, inv.Confidence, inv.Tokens)
}

// stateTracker is the shared per-task state string executors expose through
// CurrentState. States are advisory, for status surfaces only.
type stateTracker struct {
	mu     sync.RWMutex
	states map[string]string
}

func newStateTracker() *stateTracker {
	return &stateTracker{states: make(map[string]string)}
}

func (t *stateTracker) set(taskID, state string) {
	t.mu.Lock()
	t.states[taskID] = state
	t.mu.Unlock()
}

func (t *stateTracker) get(taskID string) string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if s, ok := t.states[taskID]; ok {
		return s
	}
	return "idle"
}

var errNoParticipants = errors.New("no participants")

func validateRuntime(rt *Runtime) error {
	if rt.Task == nil {
		return &types.DomainError{Kind: types.ErrValidation, Message: "runtime missing task"}
	}
	if len(rt.Participants) == 0 {
		return &types.DomainError{Kind: types.ErrAgentUnavailable, Message: errNoParticipants.Error(), TaskID: rt.Task.ID}
	}
	if rt.Invoker == nil {
		return &types.DomainError{Kind: types.ErrValidation, Message: "runtime missing invoker", TaskID: rt.Task.ID}
	}
	return nil
}
