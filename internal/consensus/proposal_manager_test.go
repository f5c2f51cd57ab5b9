package consensus

import (
	"context"
	"testing"
	"time"

	"go.uber.org/goleak"

	"conductor/internal/bus"
	"conductor/internal/types"
)

func TestSubmitPersistsAndPublishes(t *testing.T) {
	t.Cleanup(func() { goleak.VerifyNone(t) })

	s := newTestStore(t)
	seedTask(t, s, "task-1")
	events := bus.New()
	defer events.Close()
	sub := events.Subscribe(bus.ProposalSubmitted)
	defer sub.Close()

	pm := NewProposalManager(s, events)
	p := submit(t, pm, "task-1", "a1", "content", 0.8, types.TokenUsage{In: 10, Out: 20})

	got, err := pm.ProposalsFor(context.Background(), "task-1")
	if err != nil {
		t.Fatalf("ProposalsFor: %v", err)
	}
	if len(got) != 1 || got[0].ID != p.ID {
		t.Fatalf("stored proposals = %+v", got)
	}
	if got[0].Tokens != (types.TokenUsage{In: 10, Out: 20}) {
		t.Errorf("tokens round-trip = %+v", got[0].Tokens)
	}

	select {
	case ev := <-sub.Events:
		if ev.Kind != bus.ProposalSubmitted || ev.TaskID != "task-1" || ev.AgentID != "a1" {
			t.Errorf("event = %+v", ev)
		}
		if ev.Payload["proposal_id"] != p.ID {
			t.Errorf("payload = %v", ev.Payload)
		}
	case <-time.After(time.Second):
		t.Fatal("no ProposalSubmitted event")
	}
}

func TestSubmitRejectsInvalidConfidence(t *testing.T) {
	s := newTestStore(t)
	seedTask(t, s, "task-1")
	pm := NewProposalManager(s, nil)

	_, err := pm.Submit(context.Background(), "task-1", "a1", "x", 1.5, types.TokenUsage{})
	if types.KindOf(err) != types.ErrValidation {
		t.Errorf("kind = %s, want validation", types.KindOf(err))
	}
}

func TestWaitForSignalled(t *testing.T) {
	t.Cleanup(func() { goleak.VerifyNone(t) })

	s := newTestStore(t)
	seedTask(t, s, "task-1")
	pm := NewProposalManager(s, nil)

	done := make(chan bool, 1)
	go func() {
		done <- pm.WaitFor(context.Background(), "task-1", 5*time.Second)
	}()

	// Give the waiter a beat to register, then submit.
	time.Sleep(20 * time.Millisecond)
	submit(t, pm, "task-1", "a1", "x", 0.5, types.TokenUsage{})

	select {
	case ok := <-done:
		if !ok {
			t.Error("WaitFor returned false after a submit")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("WaitFor did not wake")
	}
}

func TestWaitForTimeout(t *testing.T) {
	s := newTestStore(t)
	pm := NewProposalManager(s, nil)

	start := time.Now()
	if pm.WaitFor(context.Background(), "task-1", 30*time.Millisecond) {
		t.Error("WaitFor returned true with no submit")
	}
	if time.Since(start) < 30*time.Millisecond {
		t.Error("WaitFor returned before the deadline")
	}
}

func TestWaitForCancelled(t *testing.T) {
	s := newTestStore(t)
	pm := NewProposalManager(s, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if pm.WaitFor(ctx, "task-1", time.Minute) {
		t.Error("WaitFor returned true on a cancelled context")
	}
}

func TestReleaseDropsSignalAndWakesWaiters(t *testing.T) {
	t.Cleanup(func() { goleak.VerifyNone(t) })

	s := newTestStore(t)
	seedTask(t, s, "task-1")
	pm := NewProposalManager(s, nil)

	submit(t, pm, "task-1", "a1", "x", 0.5, types.TokenUsage{})
	pm.mu.Lock()
	n := len(pm.signals)
	pm.mu.Unlock()
	if n != 1 {
		t.Fatalf("signals = %d before release", n)
	}

	done := make(chan bool, 1)
	go func() {
		done <- pm.WaitFor(context.Background(), "task-1", 5*time.Second)
	}()
	time.Sleep(20 * time.Millisecond)

	pm.Release("task-1")
	select {
	case ok := <-done:
		if !ok {
			t.Error("release did not wake the waiter")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("waiter still blocked after release")
	}

	pm.mu.Lock()
	n = len(pm.signals)
	pm.mu.Unlock()
	if n != 0 {
		t.Errorf("signals = %d after release, want 0", n)
	}

	// Releasing an unknown task is a no-op.
	pm.Release("absent")
}

func TestWaitForSignalIsPerTask(t *testing.T) {
	s := newTestStore(t)
	seedTask(t, s, "other")
	pm := NewProposalManager(s, nil)

	done := make(chan bool, 1)
	go func() {
		done <- pm.WaitFor(context.Background(), "task-1", 80*time.Millisecond)
	}()

	time.Sleep(20 * time.Millisecond)
	submit(t, pm, "other", "a1", "x", 0.5, types.TokenUsage{})

	if <-done {
		t.Error("submit to a different task must not wake the waiter")
	}
}
