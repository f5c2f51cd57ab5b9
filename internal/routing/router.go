// Package routing maps a task plus the user's parsed directive to a routing
// decision: which strategy runs and which agents participate.
package routing

import (
	"time"

	"conductor/internal/logging"
	"conductor/internal/registry"
	"conductor/internal/types"
)

// Decision is the routing outcome for one task.
type Decision struct {
	TaskID         string
	Strategy       types.RoutingStrategy
	PrimaryAgentID string
	Participants   []string
	Directive      types.UserDirective
	Classification Classification
	DecidedAt      time.Time
	Notes          string
	Metadata       map[string]string
}

// directiveConfidenceThreshold is how sure a parsed hint must be before it
// overrides policy.
const directiveConfidenceThreshold = 0.6

// Router chooses strategies and participants. Only ONLINE agents are
// eligible; agents health-checked into OFFLINE drop out of routing.
type Router struct {
	agents *registry.Registry
}

// NewRouter creates a router over the agent registry.
func NewRouter(agents *registry.Registry) *Router {
	return &Router{agents: agents}
}

// Route produces the routing decision for a task.
//
// Directive hints win first: forceConsensus above threshold routes
// CONSENSUS, else preventConsensus routes SOLO. Otherwise strategy follows
// task type, complexity, risk and the text classification.
func (r *Router) Route(task *types.Task, directive types.UserDirective) (*Decision, error) {
	if err := task.Validate(); err != nil {
		return nil, err
	}

	classification := Classify(task.Title, task.Description)
	d := &Decision{
		TaskID:         task.ID,
		Directive:      directive,
		Classification: classification,
		DecidedAt:      time.Now(),
	}

	switch {
	case directive.ForceConsensus && directive.ForceConfidence >= directiveConfidenceThreshold:
		d.Strategy = types.RouteConsensus
		d.Notes = "directive forced consensus"
	case directive.PreventConsensus && directive.PreventConfidence >= directiveConfidenceThreshold:
		d.Strategy = types.RouteSolo
		d.Notes = "directive prevented consensus"
	default:
		d.Strategy = strategyForTask(task, classification)
	}

	online := r.agents.OnlineAgents()
	if len(online) == 0 {
		return nil, &types.DomainError{
			Kind:    types.ErrAgentUnavailable,
			Message: "no agents online",
			TaskID:  task.ID,
		}
	}

	// An explicit assignment with sufficient confidence becomes primary.
	if directive.AssignToAgent != "" && directive.AssignConfidence >= directiveConfidenceThreshold {
		for _, a := range online {
			if a.ID == directive.AssignToAgent {
				d.PrimaryAgentID = a.ID
				break
			}
		}
	}

	d.Participants = r.pickParticipants(task, d.Strategy, online, d.PrimaryAgentID, directive.AssignedAgents)
	if d.PrimaryAgentID == "" && len(d.Participants) > 0 {
		d.PrimaryAgentID = d.Participants[0]
	}

	logging.Get(logging.CategoryRouting).Info("routed %s: strategy=%s primary=%s participants=%d (%s)",
		task.ID, d.Strategy, d.PrimaryAgentID, len(d.Participants), d.Notes)
	return d, nil
}

// strategyForTask is the default policy when no directive applies.
func strategyForTask(task *types.Task, c Classification) types.RoutingStrategy {
	if task.Routing != "" {
		return task.Routing
	}
	switch {
	case task.Risk >= 8 || task.Type == types.TaskArchitecture:
		return types.RouteConsensus
	case c.Category == "design" && c.Confidence >= 0.5:
		return types.RouteConsensus
	case task.Type == types.TaskResearch || c.Category == "investigation":
		return types.RouteParallel
	case task.Complexity >= 7:
		return types.RouteSequential
	default:
		return types.RouteSolo
	}
}

// pickParticipants chooses the agent set for a strategy. The primary (when
// set) always appears in the participants, preserving the routing invariant.
func (r *Router) pickParticipants(task *types.Task, strategy types.RoutingStrategy,
	online []types.AgentDefinition, primary string, requested []string) []string {

	capability := capabilityForTaskType(task.Type)

	// Prefer the directive's explicit agent list, then capability holders,
	// then everyone online.
	var pool []types.AgentDefinition
	if len(requested) > 0 {
		want := make(map[string]bool, len(requested))
		for _, id := range requested {
			want[id] = true
		}
		for _, a := range online {
			if want[a.ID] {
				pool = append(pool, a)
			}
		}
	}
	if len(pool) == 0 && capability != "" {
		for _, a := range r.agents.GetAgentsByCapability(capability) {
			if a.Status == types.AgentOnline {
				pool = append(pool, a)
			}
		}
	}
	if len(pool) == 0 {
		pool = online
	}

	limit := participantLimit(strategy)
	seen := make(map[string]bool)
	var out []string
	if primary != "" {
		out = append(out, primary)
		seen[primary] = true
	}
	for _, a := range pool {
		if len(out) >= limit {
			break
		}
		if !seen[a.ID] {
			out = append(out, a.ID)
			seen[a.ID] = true
		}
	}
	return out
}

func participantLimit(strategy types.RoutingStrategy) int {
	switch strategy {
	case types.RouteSolo:
		return 1
	case types.RouteConsensus:
		return 3
	case types.RouteSequential, types.RouteParallel:
		return 3
	default:
		return 1
	}
}

func capabilityForTaskType(t types.TaskType) string {
	switch t {
	case types.TaskImplementation, types.TaskBugfix:
		return "code"
	case types.TaskReview:
		return "review"
	case types.TaskTesting:
		return "test"
	case types.TaskResearch:
		return "research"
	case types.TaskDocumentation:
		return "docs"
	case types.TaskArchitecture, types.TaskPlanning:
		return "plan"
	default:
		return ""
	}
}
