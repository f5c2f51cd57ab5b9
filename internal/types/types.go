// Package types holds the domain model shared by every conductor subsystem:
// tasks, agents, proposals, decisions, routing directives and the error
// taxonomy. Nothing here touches the store or the network.
package types

import (
	"fmt"
	"strings"
	"time"
)

// TaskType classifies what kind of work a task asks for.
type TaskType string

const (
	TaskImplementation TaskType = "IMPLEMENTATION"
	TaskArchitecture   TaskType = "ARCHITECTURE"
	TaskReview         TaskType = "REVIEW"
	TaskResearch       TaskType = "RESEARCH"
	TaskTesting        TaskType = "TESTING"
	TaskDocumentation  TaskType = "DOCUMENTATION"
	TaskPlanning       TaskType = "PLANNING"
	TaskBugfix         TaskType = "BUGFIX"
)

// TaskStatus is the lifecycle state of a task.
type TaskStatus string

const (
	StatusPending      TaskStatus = "PENDING"
	StatusInProgress   TaskStatus = "IN_PROGRESS"
	StatusWaitingInput TaskStatus = "WAITING_INPUT"
	StatusCompleted    TaskStatus = "COMPLETED"
	StatusFailed       TaskStatus = "FAILED"
)

// IsTerminal reports whether no further transitions are allowed.
func (s TaskStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// RoutingStrategy names a policy for distributing a task across agents.
type RoutingStrategy string

const (
	RouteSolo       RoutingStrategy = "SOLO"
	RouteConsensus  RoutingStrategy = "CONSENSUS"
	RouteSequential RoutingStrategy = "SEQUENTIAL"
	RouteParallel   RoutingStrategy = "PARALLEL"
)

// AgentStatus is the availability state of an agent.
type AgentStatus string

const (
	AgentOnline  AgentStatus = "ONLINE"
	AgentOffline AgentStatus = "OFFLINE"
	AgentBusy    AgentStatus = "BUSY"
)

// Task is the unit of work submitted to the orchestrator.
type Task struct {
	ID           string
	Title        string
	Description  string
	Type         TaskType
	Status       TaskStatus
	Routing      RoutingStrategy
	AssigneeIDs  []string
	Dependencies []string
	Complexity   int // 1..10
	Risk         int // 1..10
	CreatedAt    time.Time
	UpdatedAt    time.Time
	DueAt        time.Time
	Metadata     map[string]string
}

// Validate checks the task invariants: non-blank id/title, bounded
// complexity/risk, no self-dependency, timestamps ordered.
func (t *Task) Validate() error {
	if strings.TrimSpace(t.ID) == "" {
		return &DomainError{Kind: ErrValidation, Message: "task id is blank"}
	}
	if strings.TrimSpace(t.Title) == "" {
		return &DomainError{Kind: ErrValidation, Message: "task title is blank", TaskID: t.ID}
	}
	if t.Complexity < 1 || t.Complexity > 10 {
		return &DomainError{Kind: ErrValidation, Message: fmt.Sprintf("complexity %d outside [1,10]", t.Complexity), TaskID: t.ID}
	}
	if t.Risk < 1 || t.Risk > 10 {
		return &DomainError{Kind: ErrValidation, Message: fmt.Sprintf("risk %d outside [1,10]", t.Risk), TaskID: t.ID}
	}
	for _, dep := range t.Dependencies {
		if dep == t.ID {
			return &DomainError{Kind: ErrValidation, Message: "task depends on itself", TaskID: t.ID}
		}
	}
	if !t.UpdatedAt.IsZero() && t.UpdatedAt.Before(t.CreatedAt) {
		return &DomainError{Kind: ErrValidation, Message: "updatedAt before createdAt", TaskID: t.ID}
	}
	if !t.DueAt.IsZero() && t.DueAt.Before(t.CreatedAt) {
		return &DomainError{Kind: ErrValidation, Message: "dueAt before createdAt", TaskID: t.ID}
	}
	return nil
}

// CapabilityStrength pairs a capability with how good the agent is at it.
type CapabilityStrength struct {
	Capability string
	Score      int // 0..100
}

// AgentDefinition is the static description an agent registers with.
type AgentDefinition struct {
	ID           string
	Type         string
	DisplayName  string
	Status       AgentStatus
	Capabilities []string
	Strengths    []CapabilityStrength
	Config       map[string]string
}

// TokenUsage counts tokens an agent spent producing a proposal.
type TokenUsage struct {
	In  int
	Out int
}

// Total returns input plus output tokens.
func (u TokenUsage) Total() int { return u.In + u.Out }

// Proposal is a single agent's output for a task. Immutable once created.
type Proposal struct {
	ID         string
	TaskID     string
	AgentID    string
	InputType  string
	Content    interface{} // JSON value tree, see ValidContent
	Confidence float64     // 0..1
	Tokens     TokenUsage
	CreatedAt  time.Time
	Metadata   map[string]string
}

// ProposalRef is the slice of a proposal a decision records.
type ProposalRef struct {
	ProposalID string
	AgentID    string
	Tokens     TokenUsage
}

// Decision is the outcome of applying consensus over a task's proposals.
type Decision struct {
	ID                string
	TaskID            string
	Considered        []ProposalRef
	SelectedIDs       []string
	WinnerProposalID  string
	ConsensusAchieved bool
	AgreementRate     float64
	Rationale         string
	DecidedAt         time.Time
	Metadata          map[string]string
}

// TokenSavingsAbsolute is the number of tokens consensus saved callers from
// re-reading: total considered minus total selected, floored at zero.
func (d *Decision) TokenSavingsAbsolute() int {
	selected := make(map[string]bool, len(d.SelectedIDs))
	for _, id := range d.SelectedIDs {
		selected[id] = true
	}
	var considered, kept int
	for _, ref := range d.Considered {
		considered += ref.Tokens.Total()
		if selected[ref.ProposalID] {
			kept += ref.Tokens.Total()
		}
	}
	if considered <= kept {
		return 0
	}
	return considered - kept
}

// TokenSavingsPercent is savings over the considered total, or 0 when no
// tokens were considered.
func (d *Decision) TokenSavingsPercent() float64 {
	var considered int
	for _, ref := range d.Considered {
		considered += ref.Tokens.Total()
	}
	if considered == 0 {
		return 0
	}
	return float64(d.TokenSavingsAbsolute()) / float64(considered)
}

// UserDirective carries parsed routing hints with per-hint confidences.
type UserDirective struct {
	ForceConsensus       bool
	ForceConfidence      float64
	PreventConsensus     bool
	PreventConfidence    float64
	AssignToAgent        string
	AssignConfidence     float64
	AssignedAgents       []string
	IsEmergency          bool
	EmergencyConfidence  float64
}
