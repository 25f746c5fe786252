package registry

// DefaultFallbackWorker is the worker that absorbs tasks nobody scores on.
const DefaultFallbackWorker = "generalist"

// DefaultProfiles is the built-in worker roster, used when the config file
// does not declare its own. Declaration order matters: it is the scoring
// tie-break.
func DefaultProfiles() []WorkerProfile {
	return []WorkerProfile{
		{
			Name:              "strategy",
			PrimaryCommands:   []string{"plan", "analyze", "estimate", "prioritize"},
			SecondaryCommands: []string{"review", "research"},
			Capabilities:      []string{"business", "market", "roadmap", "stakeholder", "budget"},
			CoreActivities:    []string{"requirements discovery", "business impact analysis", "release planning"},
			QualityFocus:      []string{"feasibility", "alignment"},
			HandoffTargets:    []string{"design", "backend"},
		},
		{
			Name:              "design",
			PrimaryCommands:   []string{"design", "wireframe", "prototype"},
			SecondaryCommands: []string{"review", "audit"},
			Capabilities:      []string{"ui", "ux", "accessibility", "visual", "interaction"},
			CoreActivities:    []string{"interface design", "interaction flows", "design system upkeep"},
			QualityFocus:      []string{"user experience", "consistency"},
			HandoffTargets:    []string{"backend", "quality"},
		},
		{
			Name:              "backend",
			PrimaryCommands:   []string{"build", "implement", "fix", "deploy"},
			SecondaryCommands: []string{"review", "migrate"},
			Capabilities:      []string{"api", "database", "security", "infrastructure", "integration"},
			CoreActivities:    []string{"service implementation", "data modeling", "incident response"},
			QualityFocus:      []string{"integrity", "reliability"},
			HandoffTargets:    []string{"quality", "performance"},
		},
		{
			Name:              "performance",
			PrimaryCommands:   []string{"optimize", "profile"},
			SecondaryCommands: []string{"review"},
			Capabilities:      []string{"performance", "profiling", "caching", "scalability"},
			CoreActivities:    []string{"load testing", "bottleneck analysis"},
			QualityFocus:      []string{"raw performance", "efficiency"},
			HandoffTargets:    []string{"backend"},
		},
		{
			Name:              "quality",
			PrimaryCommands:   []string{"test", "audit", "verify"},
			SecondaryCommands: []string{"review"},
			Capabilities:      []string{"testing", "compliance", "security", "regression"},
			CoreActivities:    []string{"test planning", "release verification"},
			QualityFocus:      []string{"coverage", "thoroughness"},
			HandoffTargets:    []string{"backend"},
		},
		{
			// Generic catch-all, selected when scoring finds no specialist.
			Name:         "generalist",
			QualityFocus: []string{"coherence"},
		},
	}
}

// DefaultOverrides maps scoped sub-command tags straight to a worker,
// bypassing scoring entirely.
func DefaultOverrides() map[string]string {
	return map[string]string{
		"business-impact":     "strategy",
		"market-fit":          "strategy",
		"design-system":       "design",
		"accessibility-audit": "design",
		"api-contract":        "backend",
		"schema-migration":    "backend",
		"load-test":           "performance",
		"regression-suite":    "quality",
	}
}
