package types

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"
)

func validTask() *Task {
	return &Task{
		ID:         "t1",
		Title:      "implement parser",
		Type:       TaskImplementation,
		Complexity: 3,
		Risk:       2,
		CreatedAt:  time.Now(),
	}
}

func TestTaskValidate(t *testing.T) {
	if err := validTask().Validate(); err != nil {
		t.Fatalf("valid task rejected: %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*Task)
	}{
		{"blank id", func(tk *Task) { tk.ID = "  " }},
		{"blank title", func(tk *Task) { tk.Title = "" }},
		{"complexity too low", func(tk *Task) { tk.Complexity = 0 }},
		{"complexity too high", func(tk *Task) { tk.Complexity = 11 }},
		{"risk too low", func(tk *Task) { tk.Risk = 0 }},
		{"risk too high", func(tk *Task) { tk.Risk = 11 }},
		{"self dependency", func(tk *Task) { tk.Dependencies = []string{"t1"} }},
		{"updatedAt before createdAt", func(tk *Task) { tk.UpdatedAt = tk.CreatedAt.Add(-time.Hour) }},
		{"dueAt before createdAt", func(tk *Task) { tk.DueAt = tk.CreatedAt.Add(-time.Hour) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tk := validTask()
			tt.mutate(tk)
			err := tk.Validate()
			if err == nil {
				t.Fatal("want validation error")
			}
			if KindOf(err) != ErrValidation {
				t.Errorf("kind = %s", KindOf(err))
			}
		})
	}
}

func TestStatusTerminal(t *testing.T) {
	for status, terminal := range map[TaskStatus]bool{
		StatusPending:      false,
		StatusInProgress:   false,
		StatusWaitingInput: false,
		StatusCompleted:    true,
		StatusFailed:       true,
	} {
		if status.IsTerminal() != terminal {
			t.Errorf("%s.IsTerminal() = %v", status, status.IsTerminal())
		}
	}
}

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorKind
	}{
		{"nil", nil, ""},
		{"domain error", &DomainError{Kind: ErrNotFound}, ErrNotFound},
		{"wrapped domain error", fmt.Errorf("outer: %w", &DomainError{Kind: ErrValidation}), ErrValidation},
		{"context canceled", context.Canceled, ErrCancelled},
		{"wrapped deadline", fmt.Errorf("call: %w", context.DeadlineExceeded), ErrCancelled},
		{"plain error", errors.New("boom"), ErrIOFatal},
	}
	for _, tt := range tests {
		if got := KindOf(tt.err); got != tt.want {
			t.Errorf("%s: KindOf = %q, want %q", tt.name, got, tt.want)
		}
	}
}

func TestRetryable(t *testing.T) {
	if !ErrAgentUnavailable.Retryable() || !ErrIOTransient.Retryable() {
		t.Error("transient kinds must be retryable")
	}
	for _, k := range []ErrorKind{ErrValidation, ErrIOFatal, ErrCancelled, ErrConcurrentExecution} {
		if k.Retryable() {
			t.Errorf("%s retryable", k)
		}
	}
}

func TestDomainErrorMessage(t *testing.T) {
	err := &DomainError{
		Kind:    ErrAgentUnavailable,
		Message: "agent offline",
		TaskID:  "t1",
		AgentID: "claude",
		Err:     errors.New("dial refused"),
	}
	got := err.Error()
	for _, want := range []string{"agent_unavailable", "agent offline", "task=t1", "agent=claude", "dial refused"} {
		if !strings.Contains(got, want) {
			t.Errorf("Error() = %q, missing %q", got, want)
		}
	}
}

func TestTokenSavings(t *testing.T) {
	d := &Decision{
		Considered: []ProposalRef{
			{ProposalID: "p1", Tokens: TokenUsage{In: 100, Out: 100}},
			{ProposalID: "p2", Tokens: TokenUsage{In: 50, Out: 50}},
			{ProposalID: "p3", Tokens: TokenUsage{In: 100, Out: 0}},
		},
		SelectedIDs: []string{"p2"},
	}
	if got := d.TokenSavingsAbsolute(); got != 300 {
		t.Errorf("absolute = %d", got)
	}
	if got := d.TokenSavingsPercent(); got != 0.75 {
		t.Errorf("percent = %f", got)
	}

	empty := &Decision{}
	if empty.TokenSavingsAbsolute() != 0 || empty.TokenSavingsPercent() != 0 {
		t.Error("empty decision must save nothing")
	}
}
