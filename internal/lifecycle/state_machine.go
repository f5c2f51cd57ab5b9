// Package lifecycle validates task status transitions and keeps a per-task
// append-only history of the transitions that happened.
package lifecycle

import (
	"sync"
	"time"

	"conductor/internal/logging"
	"conductor/internal/types"
)

// allowed is the transition table. Terminal states have no outgoing edges.
var allowed = map[types.TaskStatus][]types.TaskStatus{
	types.StatusPending:      {types.StatusInProgress, types.StatusFailed},
	types.StatusInProgress:   {types.StatusWaitingInput, types.StatusCompleted, types.StatusFailed},
	types.StatusWaitingInput: {types.StatusInProgress, types.StatusFailed},
	types.StatusCompleted:    {},
	types.StatusFailed:       {},
}

// CanTransition reports whether from→to is a legal edge.
func CanTransition(from, to types.TaskStatus) bool {
	for _, next := range allowed[from] {
		if next == to {
			return true
		}
	}
	return false
}

// TransitionRecord is one applied transition.
type TransitionRecord struct {
	From     types.TaskStatus
	To       types.TaskStatus
	At       time.Time
	Metadata map[string]string
}

// StateMachine tracks per-task histories. Transition is linearizable per
// task: each task's history is guarded by its own lock.
type StateMachine struct {
	mu        sync.Mutex // guards the histories map itself
	histories map[string]*taskHistory
}

type taskHistory struct {
	mu      sync.Mutex
	records []TransitionRecord
}

// New creates an empty state machine.
func New() *StateMachine {
	return &StateMachine{histories: make(map[string]*taskHistory)}
}

func (m *StateMachine) history(taskID string) *taskHistory {
	m.mu.Lock()
	defer m.mu.Unlock()
	h, ok := m.histories[taskID]
	if !ok {
		h = &taskHistory{}
		m.histories[taskID] = h
	}
	return h
}

// Transition validates from→to against the table. On success it appends to
// the task's history and returns true; on an invalid transition it mutates
// nothing and returns false.
func (m *StateMachine) Transition(taskID string, from, to types.TaskStatus, metadata map[string]string) bool {
	h := m.history(taskID)
	h.mu.Lock()
	defer h.mu.Unlock()

	if !CanTransition(from, to) {
		logging.Get(logging.CategoryEngine).Warn("invalid transition %s: %s -> %s", taskID, from, to)
		return false
	}
	h.records = append(h.records, TransitionRecord{
		From:     from,
		To:       to,
		At:       time.Now(),
		Metadata: metadata,
	})
	logging.EngineDebug("transition %s: %s -> %s", taskID, from, to)
	return true
}

// History returns a copy of the task's transition history.
func (m *StateMachine) History(taskID string) []TransitionRecord {
	h := m.history(taskID)
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]TransitionRecord, len(h.records))
	copy(out, h.records)
	return out
}

// ClearHistory drops a task's history.
func (m *StateMachine) ClearHistory(taskID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.histories, taskID)
}
