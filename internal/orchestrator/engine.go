// Package orchestrator is the engine tying everything together: it owns the
// per-task execution lock, drives the routing → state machine → executor →
// consensus sequence, and publishes lifecycle events along the way.
package orchestrator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"conductor/internal/bus"
	"conductor/internal/config"
	"conductor/internal/consensus"
	"conductor/internal/lifecycle"
	"conductor/internal/logging"
	"conductor/internal/registry"
	"conductor/internal/routing"
	"conductor/internal/store"
	"conductor/internal/types"
	"conductor/internal/workflow"
)

// WorkflowResult is what executeTask/resumeTask hand back to the caller.
type WorkflowResult struct {
	TaskID    string
	Status    types.TaskStatus
	Output    interface{}
	ErrorKind types.ErrorKind
	Err       error
	Decision  *types.Decision
}

func failedResult(taskID string, err error) *WorkflowResult {
	return &WorkflowResult{
		TaskID:    taskID,
		Status:    types.StatusFailed,
		ErrorKind: types.KindOf(err),
		Err:       err,
	}
}

// Engine is the orchestration core.
type Engine struct {
	store     *store.Store
	events    *bus.Bus
	states    *lifecycle.StateMachine
	agents    *registry.Registry
	router    *routing.Router
	proposals *consensus.ProposalManager
	consensus *consensus.Module
	invoker   workflow.AgentInvoker
	cfg       config.ConsensusConfig

	mu        sync.Mutex // guards executors and closed
	executors map[types.RoutingStrategy]workflow.Executor
	closed    bool

	running sync.Map // taskID -> *runToken
	wg      sync.WaitGroup
}

type runToken struct {
	cancel context.CancelFunc
}

// New wires an engine over its collaborators and registers the default
// executors for all four strategies.
func New(s *store.Store, events *bus.Bus, agents *registry.Registry,
	invoker workflow.AgentInvoker, cfg config.ConsensusConfig) *Engine {

	pm := consensus.NewProposalManager(s, events)
	e := &Engine{
		store:     s,
		events:    events,
		states:    lifecycle.New(),
		agents:    agents,
		router:    routing.NewRouter(agents),
		proposals: pm,
		consensus: consensus.NewModule(s, pm, cfg),
		invoker:   invoker,
		cfg:       cfg,
		executors: make(map[types.RoutingStrategy]workflow.Executor),
	}
	e.RegisterWorkflow(workflow.NewSoloExecutor())
	e.RegisterWorkflow(workflow.NewSequentialExecutor(s))
	e.RegisterWorkflow(workflow.NewParallelExecutor())
	e.RegisterWorkflow(workflow.NewConsensusExecutor())
	return e
}

// RegisterWorkflow installs an executor for every strategy it supports,
// replacing any previous registration. Startup-time only.
func (e *Engine) RegisterWorkflow(ex workflow.Executor) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, strategy := range ex.SupportedStrategies() {
		e.executors[strategy] = ex
	}
}

// Events exposes the shared event stream.
func (e *Engine) Events() *bus.Bus { return e.events }

// Proposals exposes the proposal manager so external adapters can submit.
func (e *Engine) Proposals() *consensus.ProposalManager { return e.proposals }

// Route runs routing for a task without executing it.
func (e *Engine) Route(task *types.Task, directive types.UserDirective) (*routing.Decision, error) {
	return e.router.Route(task, directive)
}

// GetWorkflowState reports the executor-level state string for a task under
// a strategy, "unknown" when no executor serves the strategy.
func (e *Engine) GetWorkflowState(taskID string, strategy types.RoutingStrategy) string {
	e.mu.Lock()
	ex, ok := e.executors[strategy]
	e.mu.Unlock()
	if !ok {
		return "unknown"
	}
	return ex.CurrentState(taskID)
}

// GetStateHistory returns the task's applied transitions.
func (e *Engine) GetStateHistory(taskID string) []lifecycle.TransitionRecord {
	return e.states.History(taskID)
}

// GetTaskContext reads the task's conversation log.
func (e *Engine) GetTaskContext(ctx context.Context, taskID string) ([]*store.ConversationMessage, error) {
	return e.store.MessagesForTask(ctx, taskID)
}

// UpdateTaskContext appends to the task's conversation log.
func (e *Engine) UpdateTaskContext(ctx context.Context, taskID, role, content string) error {
	return e.store.AppendMessage(ctx, taskID, role, content)
}

// RunConsensus runs the decision chain for a task, waiting up to the
// configured window for proposals to arrive.
func (e *Engine) RunConsensus(ctx context.Context, taskID string) (*consensus.Outcome, error) {
	wait := time.Duration(e.cfg.WaitForMs) * time.Millisecond
	return e.consensus.Decide(ctx, taskID, nil, wait)
}

// ExecuteTask runs the full execution sequence for a task. At most one
// execute/resume runs per task id; a concurrent call fails fast with
// concurrent_execution.
func (e *Engine) ExecuteTask(ctx context.Context, task *types.Task, directive types.UserDirective) *WorkflowResult {
	return e.run(ctx, task, directive, "")
}

// ResumeTask re-enters a task from its latest (or a named) checkpoint.
func (e *Engine) ResumeTask(ctx context.Context, task *types.Task, checkpointID string) *WorkflowResult {
	if checkpointID == "" {
		checkpointID = "latest"
	}
	return e.run(ctx, task, types.UserDirective{}, checkpointID)
}

func (e *Engine) run(ctx context.Context, task *types.Task, directive types.UserDirective, checkpointID string) *WorkflowResult {
	if task == nil {
		return failedResult("", &types.DomainError{Kind: types.ErrValidation, Message: "nil task"})
	}
	taskID := task.ID

	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return failedResult(taskID, &types.DomainError{Kind: types.ErrCancelled, Message: "engine shut down", TaskID: taskID})
	}
	e.mu.Unlock()

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Per-task execution mutex: fail fast when held.
	if _, held := e.running.LoadOrStore(taskID, &runToken{cancel: cancel}); held {
		return failedResult(taskID, &types.DomainError{
			Kind:    types.ErrConcurrentExecution,
			Message: "task already executing",
			TaskID:  taskID,
		})
	}
	e.wg.Add(1)
	defer func() {
		e.running.Delete(taskID)
		e.wg.Done()
	}()

	timer := logging.StartTimer(logging.CategoryEngine, "ExecuteTask "+taskID)
	defer timer.Stop()

	return e.execute(runCtx, task, directive, checkpointID)
}

func (e *Engine) execute(ctx context.Context, task *types.Task, directive types.UserDirective, checkpointID string) *WorkflowResult {
	taskID := task.ID

	// Refresh the row. A terminal task short-circuits without transitions.
	existing, err := e.store.GetTask(ctx, taskID)
	if err != nil && types.KindOf(err) != types.ErrNotFound {
		return failedResult(taskID, err)
	}
	if existing != nil && existing.Status.IsTerminal() {
		logging.Engine("task %s already terminal (%s)", taskID, existing.Status)
		return e.terminalResult(ctx, existing)
	}

	if task.Status == "" {
		task.Status = types.StatusPending
	}
	if existing != nil {
		task.Status = existing.Status
	}
	if err := e.store.UpsertTask(ctx, task); err != nil {
		return failedResult(taskID, err)
	}
	e.publish(bus.TaskCreated, taskID, "", nil)

	// Route and enter IN_PROGRESS.
	decision, err := e.router.Route(task, directive)
	if err != nil {
		return e.fail(ctx, task, err)
	}
	if err := e.store.SetTaskRouting(ctx, taskID, decision.Strategy); err != nil {
		return e.fail(ctx, task, err)
	}
	if task.Status != types.StatusInProgress {
		if err := e.transition(ctx, taskID, task.Status, types.StatusInProgress); err != nil {
			return failedResult(taskID, err)
		}
		task.Status = types.StatusInProgress
	}
	e.publish(bus.WorkflowStarted, taskID, decision.PrimaryAgentID,
		map[string]interface{}{"strategy": string(decision.Strategy)})

	e.mu.Lock()
	executor, ok := e.executors[decision.Strategy]
	e.mu.Unlock()
	if !ok {
		err := &types.DomainError{
			Kind:    types.ErrNoWorkflowForStrategy,
			Message: fmt.Sprintf("no executor for strategy %s", decision.Strategy),
			TaskID:  taskID,
		}
		return e.fail(ctx, task, err)
	}

	rt := &workflow.Runtime{
		Task:         task,
		Participants: decision.Participants,
		Invoker:      e.invoker,
		Proposals:    e.proposals,
	}
	var step workflow.StepResult
	if checkpointID != "" {
		if checkpointID == "latest" {
			checkpointID = ""
		}
		step = executor.Resume(ctx, rt, checkpointID)
	} else {
		step = executor.Execute(ctx, rt)
	}

	switch step.Status {
	case workflow.StepWaiting:
		if err := e.transition(ctx, taskID, types.StatusInProgress, types.StatusWaitingInput); err != nil {
			return failedResult(taskID, err)
		}
		e.publish(bus.WorkflowCompleted, taskID, "",
			map[string]interface{}{"status": "waiting", "reason": step.Reason})
		return &WorkflowResult{TaskID: taskID, Status: types.StatusWaitingInput, Output: step.Output}

	case workflow.StepFailure:
		return e.fail(ctx, task, step.Err)
	}

	result := &WorkflowResult{TaskID: taskID, Status: types.StatusCompleted, Output: step.Output}
	if decision.Strategy == types.RouteConsensus || step.WantConsensus {
		outcome, err := e.RunConsensus(ctx, taskID)
		if err != nil {
			return e.fail(ctx, task, err)
		}
		result.Decision = outcome.Decision
		if err := e.recordDecisionArtifacts(ctx, outcome.Decision); err != nil {
			logging.Get(logging.CategoryEngine).Warn("decision artifacts for %s: %v", taskID, err)
		}
	}

	if err := e.transition(ctx, taskID, types.StatusInProgress, types.StatusCompleted); err != nil {
		return failedResult(taskID, err)
	}
	if err := e.store.DeleteCheckpointsForTask(ctx, taskID); err != nil {
		logging.Get(logging.CategoryEngine).Warn("checkpoint cleanup for %s: %v", taskID, err)
	}
	e.publish(bus.WorkflowCompleted, taskID, "", map[string]interface{}{"status": "completed"})
	e.publish(bus.TaskCompleted, taskID, "", nil)

	logging.Engine("task %s completed (strategy=%s)", taskID, decision.Strategy)
	return result
}

func (e *Engine) publish(kind bus.Kind, taskID, agentID string, payload map[string]interface{}) {
	e.events.Publish(bus.Event{Kind: kind, TaskID: taskID, AgentID: agentID, Payload: payload})
}

// fail transitions the task to FAILED and reports the error kind. A failed
// transition (already terminal) is logged, not surfaced over the original
// error.
func (e *Engine) fail(ctx context.Context, task *types.Task, cause error) *WorkflowResult {
	taskID := task.ID
	from := task.Status
	if from == "" {
		from = types.StatusPending
	}
	if !from.IsTerminal() {
		if err := e.transition(ctx, taskID, from, types.StatusFailed); err != nil {
			logging.Get(logging.CategoryEngine).Warn("fail transition for %s: %v", taskID, err)
		}
	}
	kind := types.KindOf(cause)
	if err := e.store.SetTaskMetadata(ctx, taskID, map[string]string{"error_kind": string(kind)}); err != nil {
		logging.Get(logging.CategoryEngine).Warn("record error kind for %s: %v", taskID, err)
	}
	e.publish(bus.WorkflowCompleted, taskID, "",
		map[string]interface{}{"status": "failed", "error_kind": string(kind)})
	logging.Get(logging.CategoryEngine).Error("task %s failed: %v", taskID, cause)
	return failedResult(taskID, cause)
}

// transition applies one state-machine edge and persists the new status.
func (e *Engine) transition(ctx context.Context, taskID string, from, to types.TaskStatus) error {
	if !e.states.Transition(taskID, from, to, nil) {
		return &types.DomainError{
			Kind:    types.ErrInvalidTransition,
			Message: fmt.Sprintf("%s -> %s", from, to),
			TaskID:  taskID,
		}
	}
	return e.store.SetTaskStatus(ctx, taskID, to)
}

// terminalResult reconstructs the result of an already-finished task.
func (e *Engine) terminalResult(ctx context.Context, task *types.Task) *WorkflowResult {
	res := &WorkflowResult{TaskID: task.ID, Status: task.Status}
	if task.Status == types.StatusFailed {
		res.ErrorKind = types.ErrorKind(task.Metadata["error_kind"])
	}
	if d, err := e.store.LatestDecisionForTask(ctx, task.ID); err == nil {
		res.Decision = d
	}
	return res
}

// recordDecisionArtifacts persists the audit trail of a consensus run: token
// usage per considered proposal, a context snapshot, and counter samples.
func (e *Engine) recordDecisionArtifacts(ctx context.Context, d *types.Decision) error {
	if d == nil {
		return nil
	}
	return e.store.Transaction(ctx, func(ctx context.Context) error {
		for _, ref := range d.Considered {
			if err := e.store.RecordUsage(ctx, d.TaskID, ref.AgentID, ref.Tokens); err != nil {
				return err
			}
		}
		payload, err := types.CanonicalContent(map[string]interface{}{
			"decisionId":    d.ID,
			"achieved":      d.ConsensusAchieved,
			"agreementRate": d.AgreementRate,
			"rationale":     d.Rationale,
			"considered":    len(d.Considered),
		})
		if err != nil {
			return err
		}
		if err := e.store.InsertSnapshot(ctx, &store.ContextSnapshot{
			TaskID:     d.TaskID,
			DecisionID: d.ID,
			Payload:    payload,
		}); err != nil {
			return err
		}
		return e.store.RecordMetric(ctx, "consensus.token_savings", float64(d.TokenSavingsAbsolute()))
	})
}

// Shutdown cancels in-flight executions, waits for them to drain within the
// grace period, and closes the event bus.
func (e *Engine) Shutdown(grace time.Duration) {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.closed = true
	e.mu.Unlock()

	e.running.Range(func(_, v interface{}) bool {
		v.(*runToken).cancel()
		return true
	})

	done := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(grace):
		logging.Get(logging.CategoryEngine).Warn("shutdown grace period elapsed with executions in flight")
	}

	e.events.Close()
	logging.Engine("engine shut down")
	logging.Sync()
}
