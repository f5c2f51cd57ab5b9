// Package consensus collects proposals from workflow executors and
// reconciles them into decisions via an ordered chain of strategies.
package consensus

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"conductor/internal/bus"
	"conductor/internal/logging"
	"conductor/internal/store"
	"conductor/internal/types"
)

// ProposalManager persists proposals and wakes anyone waiting on a task's
// proposal stream.
type ProposalManager struct {
	store  *store.Store
	events *bus.Bus

	mu      sync.Mutex
	signals map[string]chan struct{} // per-task broadcast, replaced on signal
}

// NewProposalManager creates a proposal manager over the store and bus.
func NewProposalManager(s *store.Store, events *bus.Bus) *ProposalManager {
	return &ProposalManager{
		store:   s,
		events:  events,
		signals: make(map[string]chan struct{}),
	}
}

// Submit persists a proposal, publishes ProposalSubmitted and signals
// waiters for the task.
func (pm *ProposalManager) Submit(ctx context.Context, taskID, agentID string,
	content interface{}, confidence float64, usage types.TokenUsage) (*types.Proposal, error) {

	p := &types.Proposal{
		ID:         uuid.NewString(),
		TaskID:     taskID,
		AgentID:    agentID,
		InputType:  "agent_output",
		Content:    content,
		Confidence: confidence,
		Tokens:     usage,
		CreatedAt:  time.Now().UTC(),
	}
	if err := pm.store.InsertProposal(ctx, p); err != nil {
		return nil, err
	}

	if pm.events != nil {
		pm.events.Publish(bus.Event{
			Kind:    bus.ProposalSubmitted,
			TaskID:  taskID,
			AgentID: agentID,
			Payload: map[string]interface{}{"proposal_id": p.ID},
		})
	}
	pm.signal(taskID)

	logging.Consensus("proposal %s submitted for %s by %s (confidence=%.2f)",
		p.ID, taskID, agentID, confidence)
	return p, nil
}

func (pm *ProposalManager) signal(taskID string) {
	pm.mu.Lock()
	defer pm.mu.Unlock()
	if ch, ok := pm.signals[taskID]; ok {
		close(ch)
	}
	pm.signals[taskID] = make(chan struct{})
}

// Release drops the task's wait channel once its decision is recorded,
// waking any remaining waiters. Without it the signals map grows with every
// task the process ever saw.
func (pm *ProposalManager) Release(taskID string) {
	pm.mu.Lock()
	defer pm.mu.Unlock()
	if ch, ok := pm.signals[taskID]; ok {
		close(ch)
		delete(pm.signals, taskID)
	}
}

func (pm *ProposalManager) waitCh(taskID string) <-chan struct{} {
	pm.mu.Lock()
	defer pm.mu.Unlock()
	ch, ok := pm.signals[taskID]
	if !ok {
		ch = make(chan struct{})
		pm.signals[taskID] = ch
	}
	return ch
}

// WaitFor suspends until a proposal for the task is signaled, the duration
// elapses, or the context is cancelled. Returns true when a signal arrived.
func (pm *ProposalManager) WaitFor(ctx context.Context, taskID string, d time.Duration) bool {
	ch := pm.waitCh(taskID)
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ch:
		return true
	case <-timer.C:
		return false
	case <-ctx.Done():
		return false
	}
}

// ProposalsFor loads a task's proposals in insertion order.
func (pm *ProposalManager) ProposalsFor(ctx context.Context, taskID string) ([]*types.Proposal, error) {
	return pm.store.ProposalsForTask(ctx, taskID)
}
