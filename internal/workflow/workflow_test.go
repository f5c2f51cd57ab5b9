package workflow

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"conductor/internal/consensus"
	"conductor/internal/store"
	"conductor/internal/types"
)

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(":memory:", 1, true)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func testTask(id string) *types.Task {
	now := time.Now().UTC()
	return &types.Task{
		ID:         id,
		Title:      "workflow test task",
		Type:       types.TaskImplementation,
		Status:     types.StatusInProgress,
		Complexity: 5,
		Risk:       5,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// fakeInvoker scripts per-agent outcomes and counts calls.
type fakeInvoker struct {
	mu       sync.Mutex
	calls    map[string]int
	fail     map[string]error // permanent failure per agent
	failOnce map[string]error // consumed on first call
	tasks    []*types.Task    // tasks as seen by agents, in call order
}

func newFakeInvoker() *fakeInvoker {
	return &fakeInvoker{
		calls:    make(map[string]int),
		fail:     make(map[string]error),
		failOnce: make(map[string]error),
	}
}

func (f *fakeInvoker) Invoke(ctx context.Context, agentID string, task *types.Task) (*Invocation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[agentID]++
	f.tasks = append(f.tasks, task)

	if err, ok := f.failOnce[agentID]; ok {
		delete(f.failOnce, agentID)
		return nil, err
	}
	if err, ok := f.fail[agentID]; ok {
		return nil, err
	}
	return &Invocation{
		Content:    fmt.Sprintf("output from %s", agentID),
		Confidence: 0.8,
		Tokens:     types.TokenUsage{In: 10, Out: 20},
	}, nil
}

func (f *fakeInvoker) callCount(agentID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[agentID]
}

func runtime(s *store.Store, task *types.Task, inv AgentInvoker, participants ...string) *Runtime {
	return &Runtime{
		Task:         task,
		Participants: participants,
		Invoker:      inv,
		Proposals:    consensus.NewProposalManager(s, nil),
	}
}

func unavailable(agent string) error {
	return &types.DomainError{Kind: types.ErrAgentUnavailable, Message: "agent busy", AgentID: agent}
}

func TestSoloExecute(t *testing.T) {
	s := newTestStore(t)
	inv := newFakeInvoker()
	rt := runtime(s, testTask("T1"), inv, "a1")

	e := NewSoloExecutor()
	res := e.Execute(context.Background(), rt)
	if res.Status != StepSuccess {
		t.Fatalf("status = %s, err = %v", res.Status, res.Err)
	}
	if res.Output != "output from a1" {
		t.Errorf("output = %v", res.Output)
	}

	proposals, err := s.ProposalsForTask(context.Background(), "T1")
	if err != nil {
		t.Fatalf("ProposalsForTask: %v", err)
	}
	if len(proposals) != 1 || proposals[0].AgentID != "a1" {
		t.Errorf("proposals = %+v", proposals)
	}
	if e.CurrentState("T1") != "idle" {
		t.Errorf("state after run = %q", e.CurrentState("T1"))
	}
}

func TestSoloRetriesUnavailableAgent(t *testing.T) {
	s := newTestStore(t)
	inv := newFakeInvoker()
	inv.failOnce["a1"] = unavailable("a1")
	rt := runtime(s, testTask("T1"), inv, "a1")

	res := NewSoloExecutor().Execute(context.Background(), rt)
	if res.Status != StepSuccess {
		t.Fatalf("status = %s, err = %v", res.Status, res.Err)
	}
	if got := inv.callCount("a1"); got != 2 {
		t.Errorf("calls = %d, want 2 (one retry)", got)
	}
}

func TestSoloGivesUpAfterBoundedRetries(t *testing.T) {
	s := newTestStore(t)
	inv := newFakeInvoker()
	inv.fail["a1"] = unavailable("a1")
	rt := runtime(s, testTask("T1"), inv, "a1")

	res := NewSoloExecutor().Execute(context.Background(), rt)
	if res.Status != StepFailure {
		t.Fatalf("status = %s, want failure", res.Status)
	}
	if types.KindOf(res.Err) != types.ErrAgentUnavailable {
		t.Errorf("kind = %s", types.KindOf(res.Err))
	}
	if got := inv.callCount("a1"); got != invokeAttempts {
		t.Errorf("calls = %d, want %d", got, invokeAttempts)
	}
}

func TestSoloValidationFailures(t *testing.T) {
	s := newTestStore(t)
	e := NewSoloExecutor()

	res := e.Execute(context.Background(), runtime(s, testTask("T1"), newFakeInvoker()))
	if types.KindOf(res.Err) != types.ErrAgentUnavailable {
		t.Errorf("no participants: kind = %s", types.KindOf(res.Err))
	}

	res = e.Execute(context.Background(), &Runtime{Participants: []string{"a1"}})
	if types.KindOf(res.Err) != types.ErrValidation {
		t.Errorf("nil task: kind = %s", types.KindOf(res.Err))
	}
}

func TestSequentialRunsInOrderAndChains(t *testing.T) {
	s := newTestStore(t)
	inv := newFakeInvoker()
	rt := runtime(s, testTask("T1"), inv, "a1", "a2", "a3")

	e := NewSequentialExecutor(s)
	res := e.Execute(context.Background(), rt)
	if res.Status != StepSuccess {
		t.Fatalf("status = %s, err = %v", res.Status, res.Err)
	}
	if res.Output != "output from a3" {
		t.Errorf("final output = %v", res.Output)
	}

	proposals, err := s.ProposalsForTask(context.Background(), "T1")
	if err != nil {
		t.Fatalf("ProposalsForTask: %v", err)
	}
	if len(proposals) != 3 {
		t.Fatalf("proposals = %d, want 3", len(proposals))
	}

	// Second and third agents must see the previous output.
	if len(inv.tasks) != 3 {
		t.Fatalf("invocations = %d", len(inv.tasks))
	}
	if inv.tasks[0].Metadata["prior_output"] != "" {
		t.Errorf("first agent saw prior output %q", inv.tasks[0].Metadata["prior_output"])
	}
	if got := inv.tasks[1].Metadata["prior_output"]; got != "output from a1" {
		t.Errorf("second agent prior output = %q", got)
	}
	if got := inv.tasks[2].Metadata["prior_output"]; got != "output from a2" {
		t.Errorf("third agent prior output = %q", got)
	}
}

func TestSequentialCheckpointsAndResume(t *testing.T) {
	s := newTestStore(t)
	inv := newFakeInvoker()
	inv.fail["a2"] = &types.DomainError{Kind: types.ErrIOFatal, Message: "agent crashed", AgentID: "a2"}
	rt := runtime(s, testTask("T1"), inv, "a1", "a2")

	e := NewSequentialExecutor(s)
	res := e.Execute(context.Background(), rt)
	if res.Status != StepFailure {
		t.Fatalf("status = %s, want failure at a2", res.Status)
	}

	cps, err := e.Checkpoints(context.Background(), "T1")
	if err != nil {
		t.Fatalf("Checkpoints: %v", err)
	}
	if len(cps) != 1 {
		t.Fatalf("checkpoints = %d, want 1 (a1 done)", len(cps))
	}

	// Fix the agent and resume from the latest checkpoint: a1 must not be
	// invoked again.
	delete(inv.fail, "a2")
	a1Before := inv.callCount("a1")
	res = e.Resume(context.Background(), rt, "")
	if res.Status != StepSuccess {
		t.Fatalf("resume status = %s, err = %v", res.Status, res.Err)
	}
	if inv.callCount("a1") != a1Before {
		t.Errorf("a1 re-invoked on resume")
	}
	if inv.callCount("a2") < 2 {
		t.Errorf("a2 not re-invoked on resume")
	}
}

func TestSequentialResumeUnknownCheckpoint(t *testing.T) {
	s := newTestStore(t)
	rt := runtime(s, testTask("T1"), newFakeInvoker(), "a1")

	res := NewSequentialExecutor(s).Resume(context.Background(), rt, "no-such-checkpoint")
	if res.Status != StepFailure {
		t.Fatalf("status = %s", res.Status)
	}
	if types.KindOf(res.Err) != types.ErrNotFound {
		t.Errorf("kind = %s, want not_found", types.KindOf(res.Err))
	}
}

func TestSequentialCancellation(t *testing.T) {
	s := newTestStore(t)
	rt := runtime(s, testTask("T1"), newFakeInvoker(), "a1", "a2")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res := NewSequentialExecutor(s).Execute(ctx, rt)
	if res.Status != StepFailure || types.KindOf(res.Err) != types.ErrCancelled {
		t.Errorf("status = %s kind = %s", res.Status, types.KindOf(res.Err))
	}
}

func TestParallelPartialFailureSucceeds(t *testing.T) {
	s := newTestStore(t)
	inv := newFakeInvoker()
	inv.fail["a2"] = unavailable("a2")
	rt := runtime(s, testTask("T1"), inv, "a1", "a2", "a3")

	res := NewParallelExecutor().Execute(context.Background(), rt)
	if res.Status != StepSuccess {
		t.Fatalf("status = %s, err = %v", res.Status, res.Err)
	}
	outputs, ok := res.Output.(map[string]interface{})
	if !ok || len(outputs) != 2 {
		t.Fatalf("outputs = %v", res.Output)
	}

	proposals, err := s.ProposalsForTask(context.Background(), "T1")
	if err != nil {
		t.Fatalf("ProposalsForTask: %v", err)
	}
	if len(proposals) != 2 {
		t.Errorf("proposals = %d, want 2", len(proposals))
	}
}

func TestParallelAllFail(t *testing.T) {
	s := newTestStore(t)
	inv := newFakeInvoker()
	inv.fail["a1"] = unavailable("a1")
	inv.fail["a2"] = unavailable("a2")
	rt := runtime(s, testTask("T1"), inv, "a1", "a2")

	res := NewParallelExecutor().Execute(context.Background(), rt)
	if res.Status != StepFailure {
		t.Fatalf("status = %s", res.Status)
	}
	if types.KindOf(res.Err) != types.ErrAgentUnavailable {
		t.Errorf("kind = %s", types.KindOf(res.Err))
	}
}

func TestConsensusExecutorCollectsFullSlate(t *testing.T) {
	s := newTestStore(t)
	inv := newFakeInvoker()
	rt := runtime(s, testTask("T1"), inv, "a1", "a2", "a3")

	res := NewConsensusExecutor().Execute(context.Background(), rt)
	if res.Status != StepSuccess {
		t.Fatalf("status = %s, err = %v", res.Status, res.Err)
	}

	proposals, err := s.ProposalsForTask(context.Background(), "T1")
	if err != nil {
		t.Fatalf("ProposalsForTask: %v", err)
	}
	if len(proposals) != 3 {
		t.Errorf("proposals = %d, want full slate of 3", len(proposals))
	}
}

func TestConsensusExecutorRequiresAllParticipants(t *testing.T) {
	s := newTestStore(t)
	inv := newFakeInvoker()
	inv.fail["a2"] = unavailable("a2")
	rt := runtime(s, testTask("T1"), inv, "a1", "a2")

	res := NewConsensusExecutor().Execute(context.Background(), rt)
	if res.Status != StepFailure {
		t.Fatalf("status = %s, want failure on missing voice", res.Status)
	}
}

func TestSupportedStrategies(t *testing.T) {
	tests := []struct {
		exec Executor
		want types.RoutingStrategy
	}{
		{NewSoloExecutor(), types.RouteSolo},
		{NewSequentialExecutor(nil), types.RouteSequential},
		{NewParallelExecutor(), types.RouteParallel},
		{NewConsensusExecutor(), types.RouteConsensus},
	}
	for _, tt := range tests {
		got := tt.exec.SupportedStrategies()
		if len(got) != 1 || got[0] != tt.want {
			t.Errorf("%T strategies = %v, want [%s]", tt.exec, got, tt.want)
		}
	}
}
