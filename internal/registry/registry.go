// Package registry is the process-wide directory of agents: lookup by id,
// capability index, atomic status updates, pluggable health checks.
// Callers get read-only snapshots; the registry owns mutable agent status.
package registry

import (
	"context"
	"sort"
	"sync"

	"conductor/internal/bus"
	"conductor/internal/logging"
	"conductor/internal/types"
)

// HealthChecker produces a fresh status for an agent snapshot.
type HealthChecker interface {
	Check(ctx context.Context, agent types.AgentDefinition) types.AgentStatus
}

// HealthCheckFunc adapts a function to HealthChecker.
type HealthCheckFunc func(ctx context.Context, agent types.AgentDefinition) types.AgentStatus

// Check implements HealthChecker.
func (f HealthCheckFunc) Check(ctx context.Context, agent types.AgentDefinition) types.AgentStatus {
	return f(ctx, agent)
}

// Registry holds the agent directory. The capability index is built once at
// construction, so capability lookups cost one map read.
type Registry struct {
	mu           sync.RWMutex
	agents       map[string]types.AgentDefinition
	byCapability map[string][]string // capability -> agent ids, sorted
	order        []string            // registration order for GetAllAgents
	events       *bus.Bus            // optional; AgentStatusChanged publishes here
}

// New builds a registry from a static list of definitions. Later duplicates
// of an id replace earlier ones.
func New(defs []types.AgentDefinition, events *bus.Bus) *Registry {
	r := &Registry{
		agents:       make(map[string]types.AgentDefinition, len(defs)),
		byCapability: make(map[string][]string),
		events:       events,
	}
	for _, def := range defs {
		if def.Status == "" {
			def.Status = types.AgentOffline
		}
		if _, seen := r.agents[def.ID]; !seen {
			r.order = append(r.order, def.ID)
		}
		r.agents[def.ID] = def
	}
	for _, id := range r.order {
		for _, cap := range r.agents[id].Capabilities {
			r.byCapability[cap] = append(r.byCapability[cap], id)
		}
	}
	for cap := range r.byCapability {
		sort.Strings(r.byCapability[cap])
	}
	logging.Get(logging.CategoryRegistry).Info("registry built: %d agents, %d capabilities",
		len(r.agents), len(r.byCapability))
	return r
}

// GetAgent returns a snapshot of one agent.
func (r *Registry) GetAgent(id string) (types.AgentDefinition, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.agents[id]
	return a, ok
}

// GetAllAgents returns snapshots in registration order.
func (r *Registry) GetAllAgents() []types.AgentDefinition {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]types.AgentDefinition, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.agents[id])
	}
	return out
}

// GetAgentsByCapability returns snapshots of the agents holding a
// capability, via the pre-built index.
func (r *Registry) GetAgentsByCapability(capability string) []types.AgentDefinition {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := r.byCapability[capability]
	out := make([]types.AgentDefinition, 0, len(ids))
	for _, id := range ids {
		out = append(out, r.agents[id])
	}
	return out
}

// UpdateStatus atomically sets an agent's status. Returns false when the
// agent is unknown. Publishes AgentStatusChanged on an actual change.
func (r *Registry) UpdateStatus(id string, status types.AgentStatus) bool {
	r.mu.Lock()
	a, ok := r.agents[id]
	changed := ok && a.Status != status
	if ok {
		a.Status = status
		r.agents[id] = a
	}
	r.mu.Unlock()

	if changed && r.events != nil {
		r.events.Publish(bus.Event{
			Kind:    bus.AgentStatusChanged,
			AgentID: id,
			Payload: map[string]interface{}{"status": string(status)},
		})
	}
	return ok
}

// RunHealthChecks applies the checker to every agent and stores the
// returned status. Each agent's update is atomic; the scan as a whole is
// not, matching the registry's snapshot semantics.
func (r *Registry) RunHealthChecks(ctx context.Context, checker HealthChecker) {
	for _, a := range r.GetAllAgents() {
		if ctx.Err() != nil {
			return
		}
		status := checker.Check(ctx, a)
		r.UpdateStatus(a.ID, status)
	}
}

// OnlineAgents returns snapshots of agents currently ONLINE. Routing only
// considers these.
func (r *Registry) OnlineAgents() []types.AgentDefinition {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []types.AgentDefinition
	for _, id := range r.order {
		if a := r.agents[id]; a.Status == types.AgentOnline {
			out = append(out, a)
		}
	}
	return out
}
