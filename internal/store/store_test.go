package store

import (
	"context"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"conductor/internal/types"
)

func TestTaskRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	in := testTask("t1")
	in.Description = "build the thing"
	in.AssigneeIDs = []string{"claude", "gpt"}
	in.Dependencies = []string{"t0"}
	in.Routing = types.RouteSequential
	in.Metadata = map[string]string{"origin": "cli"}
	if err := s.UpsertTask(ctx, in); err != nil {
		t.Fatalf("UpsertTask: %v", err)
	}

	out, err := s.GetTask(ctx, "t1")
	if err != nil {
		t.Fatalf("GetTask: %v", err)
	}
	if out.Title != in.Title || out.Description != in.Description ||
		out.Routing != types.RouteSequential || out.Metadata["origin"] != "cli" {
		t.Errorf("round trip = %+v", out)
	}
	if diff := cmp.Diff(in.AssigneeIDs, out.AssigneeIDs); diff != "" {
		t.Errorf("assignees (-want +got):\n%s", diff)
	}
}

func TestTaskNotFound(t *testing.T) {
	s := newTestStore(t)
	_, err := s.GetTask(context.Background(), "ghost")
	if types.KindOf(err) != types.ErrNotFound {
		t.Errorf("kind = %s", types.KindOf(err))
	}
	if err := s.SetTaskStatus(context.Background(), "ghost", types.StatusFailed); types.KindOf(err) != types.ErrNotFound {
		t.Errorf("SetTaskStatus kind = %s", types.KindOf(err))
	}
}

func TestUpsertTaskRejectsInvalid(t *testing.T) {
	s := newTestStore(t)
	bad := testTask("t1")
	bad.Complexity = 0
	err := s.UpsertTask(context.Background(), bad)
	if types.KindOf(err) != types.ErrValidation {
		t.Errorf("kind = %s", types.KindOf(err))
	}
}

func TestSetTaskMetadataMerges(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	task := testTask("t1")
	task.Metadata = map[string]string{"origin": "cli"}
	if err := s.UpsertTask(ctx, task); err != nil {
		t.Fatal(err)
	}

	if err := s.SetTaskMetadata(ctx, "t1", map[string]string{"error_kind": "io_fatal"}); err != nil {
		t.Fatalf("SetTaskMetadata: %v", err)
	}
	got, err := s.GetTask(ctx, "t1")
	if err != nil {
		t.Fatal(err)
	}
	if got.Metadata["origin"] != "cli" || got.Metadata["error_kind"] != "io_fatal" {
		t.Errorf("metadata = %v", got.Metadata)
	}

	err = s.SetTaskMetadata(ctx, "absent", map[string]string{"k": "v"})
	if types.KindOf(err) != types.ErrNotFound {
		t.Errorf("kind = %s", types.KindOf(err))
	}
}

func TestSetTaskStatusAndList(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	older := testTask("a")
	older.CreatedAt = time.Now().UTC().Add(-time.Hour)
	if err := s.UpsertTask(ctx, older); err != nil {
		t.Fatal(err)
	}
	if err := s.UpsertTask(ctx, testTask("b")); err != nil {
		t.Fatal(err)
	}
	if err := s.SetTaskStatus(ctx, "b", types.StatusInProgress); err != nil {
		t.Fatal(err)
	}

	pending, err := s.ListTasksByStatus(ctx, types.StatusPending)
	if err != nil {
		t.Fatal(err)
	}
	if len(pending) != 1 || pending[0].ID != "a" {
		t.Errorf("pending = %+v", pending)
	}

	b, _ := s.GetTask(ctx, "b")
	if b.Status != types.StatusInProgress || b.UpdatedAt.IsZero() {
		t.Errorf("b = %+v", b)
	}
}

func TestProposalRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	if err := s.UpsertTask(ctx, testTask("t1")); err != nil {
		t.Fatal(err)
	}

	in := &types.Proposal{
		ID:         "p1",
		TaskID:     "t1",
		AgentID:    "claude",
		InputType:  "text",
		Content:    map[string]interface{}{"answer": "use sqlite", "steps": []interface{}{"a", "b"}},
		Confidence: 0.8,
		Tokens:     types.TokenUsage{In: 100, Out: 40},
		CreatedAt:  time.Now().UTC(),
		Metadata:   map[string]string{"model": "test"},
	}
	if err := s.InsertProposal(ctx, in); err != nil {
		t.Fatalf("InsertProposal: %v", err)
	}

	out, err := s.GetProposal(ctx, "p1")
	if err != nil {
		t.Fatalf("GetProposal: %v", err)
	}
	if out.AgentID != "claude" || out.Confidence != 0.8 || out.Tokens.Total() != 140 {
		t.Errorf("round trip = %+v", out)
	}
	content, ok := out.Content.(map[string]interface{})
	if !ok || content["answer"] != "use sqlite" {
		t.Errorf("content = %#v", out.Content)
	}
}

func TestInsertProposalValidation(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	tests := []struct {
		name string
		p    *types.Proposal
	}{
		{"missing agent", &types.Proposal{ID: "p", TaskID: "t"}},
		{"bad confidence", &types.Proposal{ID: "p", TaskID: "t", AgentID: "a", Confidence: 1.5}},
		{"negative tokens", &types.Proposal{ID: "p", TaskID: "t", AgentID: "a", Tokens: types.TokenUsage{In: -1}}},
		{"invalid content", &types.Proposal{ID: "p", TaskID: "t", AgentID: "a", Content: struct{}{}}},
	}
	for _, tt := range tests {
		if err := s.InsertProposal(ctx, tt.p); types.KindOf(err) != types.ErrValidation {
			t.Errorf("%s: kind = %s", tt.name, types.KindOf(err))
		}
	}
}

func TestDecisionReferentialChecks(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	base := func() *types.Decision {
		return &types.Decision{
			ID:     "d1",
			TaskID: "t1",
			Considered: []types.ProposalRef{
				{ProposalID: "p1", AgentID: "a"},
				{ProposalID: "p2", AgentID: "b"},
			},
			SelectedIDs:      []string{"p1"},
			WinnerProposalID: "p1",
			DecidedAt:        time.Now().UTC(),
		}
	}
	if err := s.UpsertDecision(ctx, base()); err != nil {
		t.Fatalf("valid decision rejected: %v", err)
	}

	dup := base()
	dup.Considered = append(dup.Considered, types.ProposalRef{ProposalID: "p1"})
	if err := s.UpsertDecision(ctx, dup); types.KindOf(err) != types.ErrValidation {
		t.Errorf("duplicate considered: kind = %s", types.KindOf(err))
	}

	stray := base()
	stray.SelectedIDs = []string{"p9"}
	stray.WinnerProposalID = ""
	if err := s.UpsertDecision(ctx, stray); types.KindOf(err) != types.ErrValidation {
		t.Errorf("selected outside considered: kind = %s", types.KindOf(err))
	}

	badWinner := base()
	badWinner.WinnerProposalID = "p2"
	if err := s.UpsertDecision(ctx, badWinner); types.KindOf(err) != types.ErrValidation {
		t.Errorf("winner outside selected: kind = %s", types.KindOf(err))
	}
}

func TestLatestDecisionForTask(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if _, err := s.LatestDecisionForTask(ctx, "t1"); types.KindOf(err) != types.ErrNotFound {
		t.Fatalf("kind = %s", types.KindOf(err))
	}

	early := &types.Decision{ID: "d1", TaskID: "t1", Rationale: "first", DecidedAt: time.Now().UTC().Add(-time.Minute)}
	late := &types.Decision{ID: "d2", TaskID: "t1", Rationale: "second", DecidedAt: time.Now().UTC()}
	if err := s.UpsertDecision(ctx, early); err != nil {
		t.Fatal(err)
	}
	if err := s.UpsertDecision(ctx, late); err != nil {
		t.Fatal(err)
	}

	got, err := s.LatestDecisionForTask(ctx, "t1")
	if err != nil {
		t.Fatal(err)
	}
	if got.ID != "d2" || got.Rationale != "second" {
		t.Errorf("latest = %+v", got)
	}
}

func TestMessagesAppendOnly(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for _, m := range []string{"one", "two", "three"} {
		if err := s.AppendMessage(ctx, "t1", "user", m); err != nil {
			t.Fatal(err)
		}
	}
	msgs, err := s.MessagesForTask(ctx, "t1")
	if err != nil {
		t.Fatal(err)
	}
	if len(msgs) != 3 || msgs[0].Content != "one" || msgs[2].Content != "three" {
		t.Errorf("messages = %+v", msgs)
	}
	if got, _ := s.MessagesForTask(ctx, "other"); len(got) != 0 {
		t.Errorf("cross-task leak: %+v", got)
	}
}

func TestUsageAndMetrics(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.RecordUsage(ctx, "t1", "a", types.TokenUsage{In: 10, Out: 5}); err != nil {
		t.Fatal(err)
	}
	if err := s.RecordUsage(ctx, "t1", "b", types.TokenUsage{In: 20, Out: 5}); err != nil {
		t.Fatal(err)
	}
	total, err := s.TaskTokenTotals(ctx, "t1")
	if err != nil {
		t.Fatal(err)
	}
	if total.In != 30 || total.Out != 10 {
		t.Errorf("totals = %+v", total)
	}

	if err := s.RecordMetric(ctx, "consensus.token_savings", 100); err != nil {
		t.Fatal(err)
	}
	if err := s.RecordMetric(ctx, "consensus.token_savings", 250); err != nil {
		t.Fatal(err)
	}
	v, err := s.LatestMetric(ctx, "consensus.token_savings")
	if err != nil {
		t.Fatal(err)
	}
	if v != 250 {
		t.Errorf("latest = %f", v)
	}
	if v, _ := s.LatestMetric(ctx, "missing"); v != 0 {
		t.Errorf("missing metric = %f", v)
	}
}

func TestSnapshots(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	snap := &ContextSnapshot{TaskID: "t1", DecisionID: "d1", Payload: `{"k":"v"}`}
	if err := s.InsertSnapshot(ctx, snap); err != nil {
		t.Fatal(err)
	}
	if snap.ID == 0 {
		t.Error("id not assigned")
	}

	got, err := s.SnapshotsForTask(ctx, "t1")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].DecisionID != "d1" || got[0].Payload != `{"k":"v"}` {
		t.Errorf("snapshots = %+v", got[0])
	}
}

func TestProjectConfig(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if v, err := s.GetProjectConfig(ctx, "absent"); v != "" || err != nil {
		t.Errorf("absent key = %q, %v", v, err)
	}
	// Open seeded schema_version; the upsert replaces it.
	if v, _ := s.GetProjectConfig(ctx, "schema_version"); v != "1" {
		t.Errorf("seeded schema_version = %q", v)
	}
	if err := s.SetProjectConfig(ctx, "schema_version", "2"); err != nil {
		t.Fatal(err)
	}
	v, err := s.GetProjectConfig(ctx, "schema_version")
	if err != nil {
		t.Fatal(err)
	}
	if v != "2" {
		t.Errorf("value = %q", v)
	}
}

func TestJobLifecycle(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.CreateJob(ctx, "j1", "bootstrap", "/repo"); err != nil {
		t.Fatal(err)
	}
	if err := s.StartJob(ctx, "j1"); err != nil {
		t.Fatal(err)
	}
	running, err := s.JobsByStatus(ctx, JobRunning)
	if err != nil {
		t.Fatal(err)
	}
	if len(running) != 1 || running[0].Kind != "bootstrap" {
		t.Fatalf("running = %+v", running)
	}

	if err := s.FinishJob(ctx, "j1", ""); err != nil {
		t.Fatal(err)
	}
	done, _ := s.JobsByStatus(ctx, JobSucceeded)
	if len(done) != 1 {
		t.Fatalf("succeeded = %+v", done)
	}

	if err := s.CreateJob(ctx, "j2", "bootstrap", "/repo"); err != nil {
		t.Fatal(err)
	}
	if err := s.StartJob(ctx, "j2"); err != nil {
		t.Fatal(err)
	}
	if err := s.FinishJob(ctx, "j2", "disk full"); err != nil {
		t.Fatal(err)
	}
	failed, _ := s.JobsByStatus(ctx, JobFailed)
	if len(failed) != 1 || failed[0].Error != "disk full" {
		t.Errorf("failed = %+v", failed)
	}
}

func TestWorkflowCheckpoints(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if _, err := s.GetCheckpoint(ctx, "absent"); types.KindOf(err) != types.ErrNotFound {
		t.Fatalf("kind = %s", types.KindOf(err))
	}

	first := &WorkflowCheckpoint{
		ID: "c1", TaskID: "t1", Strategy: types.RouteSequential,
		State: `{"completed":1}`, CreatedAt: time.Now().UTC().Add(-time.Minute),
	}
	second := &WorkflowCheckpoint{
		ID: "c2", TaskID: "t1", Strategy: types.RouteSequential,
		State: `{"completed":2}`, CreatedAt: time.Now().UTC(),
	}
	if err := s.SaveCheckpoint(ctx, first); err != nil {
		t.Fatal(err)
	}
	if err := s.SaveCheckpoint(ctx, second); err != nil {
		t.Fatal(err)
	}

	// Upsert on the same id replaces state only.
	first.State = `{"completed":1,"retried":true}`
	if err := s.SaveCheckpoint(ctx, first); err != nil {
		t.Fatal(err)
	}

	cps, err := s.CheckpointsForTask(ctx, "t1")
	if err != nil {
		t.Fatal(err)
	}
	if len(cps) != 2 || cps[0].ID != "c1" || cps[1].ID != "c2" {
		t.Fatalf("checkpoints = %+v", cps)
	}
	if cps[0].State != `{"completed":1,"retried":true}` {
		t.Errorf("state not replaced: %s", cps[0].State)
	}

	if err := s.DeleteCheckpointsForTask(ctx, "t1"); err != nil {
		t.Fatal(err)
	}
	if cps, _ := s.CheckpointsForTask(ctx, "t1"); len(cps) != 0 {
		t.Errorf("checkpoints survived delete: %+v", cps)
	}
}
