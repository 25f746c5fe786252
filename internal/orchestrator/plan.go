package orchestrator

import (
	"github.com/nidhogg/foreman/internal/gate"
	"github.com/nidhogg/foreman/internal/task"
)

// builtinPlan returns the fixed phase list for one of the four built-in
// patterns.
func builtinPlan(pattern Pattern) (Plan, bool) {
	switch pattern {
	case PatternSequential:
		return Plan{
			Pattern: PatternSequential,
			Roles:   []string{"strategy", "design", "backend"},
			Phases: []PhaseSpec{
				{Name: "discovery", Checkpoint: true},
				{Name: "definition", RequiredGate: gate.Coherence},
				{Name: "delivery", RequiredGate: gate.Integrity, Checkpoint: true},
			},
		}, true
	case PatternParallel:
		return Plan{
			Pattern: PatternParallel,
			Roles:   []string{"design", "backend", "performance"},
			Phases: []PhaseSpec{
				{Name: "exploration", Checkpoint: true},
				{Name: "synthesis", RequiredGate: gate.Coherence},
			},
		}, true
	case PatternCollaborative:
		return Plan{
			Pattern: PatternCollaborative,
			Roles:   []string{"strategy", "design", "backend", "quality"},
			Phases: []PhaseSpec{
				{Name: "framing", RequiredGate: gate.Alignment, Checkpoint: true},
				{Name: "cocreation"},
				{Name: "convergence", RequiredGate: gate.Coherence, Checkpoint: true},
			},
		}, true
	case PatternOrchestrated:
		return Plan{
			Pattern: PatternOrchestrated,
			Roles:   []string{"design", "backend", "quality"},
			Lead:    "strategy",
			Phases: []PhaseSpec{
				{Name: "briefing"},
				{Name: "execution"},
				{Name: "integration", RequiredGate: gate.Integrity},
			},
		}, true
	}
	return Plan{}, false
}

// derivePlan builds an ad-hoc phase list from the task's keyword buckets
// when the requested pattern is not a built-in. Derived phases carry no
// gate requirement except where the matched bucket demands one: security
// work always ends with an integrity-gated review.
func derivePlan(t task.Task) Plan {
	var phases []PhaseSpec

	if t.ContainsAny(task.StrategyKeywords) {
		phases = append(phases, PhaseSpec{Name: "strategy", Workers: []string{"strategy"}})
	}
	if t.ContainsAny(task.DesignKeywords) {
		phases = append(phases, PhaseSpec{Name: "design", Workers: []string{"design"}, Checkpoint: true})
	}
	if t.ContainsAny(task.DevelopmentKeywords) {
		phases = append(phases, PhaseSpec{Name: "technical", Workers: []string{"backend"}})
	}
	if t.ContainsAny(task.SecurityKeywords) {
		phases = append(phases, PhaseSpec{
			Name:         "security-review",
			Workers:      []string{"quality"},
			RequiredGate: gate.Integrity,
		})
	}
	if len(phases) == 0 {
		phases = []PhaseSpec{{Name: "general"}}
	}

	roles := rolesOf(phases)
	return Plan{Pattern: PatternCustom, Roles: roles, Phases: phases}
}

// rolesOf collects the distinct workers named by the phases, in phase order.
func rolesOf(phases []PhaseSpec) []string {
	seen := make(map[string]struct{})
	var roles []string
	for _, ph := range phases {
		for _, w := range ph.Workers {
			if _, ok := seen[w]; !ok {
				seen[w] = struct{}{}
				roles = append(roles, w)
			}
		}
	}
	return roles
}
