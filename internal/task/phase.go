package task

import "strings"

// ProjectPhase is the broad delivery stage a task belongs to, inferred
// from keyword buckets in the description.
type ProjectPhase string

const (
	PhaseStrategy    ProjectPhase = "strategy"
	PhaseDesign      ProjectPhase = "design"
	PhaseDevelopment ProjectPhase = "development"
	PhaseUnknown     ProjectPhase = "unknown"
)

// Keyword buckets for phase inference. Buckets are also consulted when an
// ad-hoc coordination plan is derived from a free-text task.
var (
	StrategyKeywords    = []string{"plan", "requirement", "scope", "roadmap", "market", "business", "stakeholder", "estimate"}
	DesignKeywords      = []string{"design", "wireframe", "prototype", "ui", "ux", "layout", "accessibility"}
	DevelopmentKeywords = []string{"build", "implement", "code", "deploy", "fix", "bug", "api", "database", "migrate"}
	SecurityKeywords    = []string{"security", "vulnerability", "exploit", "breach", "auth", "threat"}
)

// DefaultUrgentKeywords mark a task urgent regardless of its declared priority.
var DefaultUrgentKeywords = []string{"urgent", "emergency", "critical", "outage", "breach", "incident", "sev1"}

// DefaultHighPriorityTypes are type tags that are high priority unless urgent.
var DefaultHighPriorityTypes = []string{"fix", "deploy", "hotfix", "audit"}

// DetectPhase infers the project phase of a task from its description and
// tags. The bucket with the most keyword hits wins; earlier buckets win ties.
func (t Task) DetectPhase() ProjectPhase {
	text := t.Text()
	buckets := []struct {
		phase    ProjectPhase
		keywords []string
	}{
		{PhaseStrategy, StrategyKeywords},
		{PhaseDesign, DesignKeywords},
		{PhaseDevelopment, DevelopmentKeywords},
	}

	best := PhaseUnknown
	bestHits := 0
	for _, b := range buckets {
		hits := 0
		for _, kw := range b.keywords {
			if strings.Contains(text, kw) {
				hits++
			}
		}
		if hits > bestHits {
			best = b.phase
			bestHits = hits
		}
	}
	return best
}

// DerivePriority computes the effective priority for a task: urgent keywords
// always win, an explicitly supplied priority is respected next, then a fixed
// set of inherently high-priority type tags, otherwise normal.
func DerivePriority(t Task, urgentKeywords, highTypes []string) Priority {
	if t.ContainsAny(urgentKeywords) {
		return PriorityUrgent
	}
	if t.Priority != "" {
		return t.Priority
	}
	typeTag := t.TypeTag()
	for _, ht := range highTypes {
		if typeTag == ht {
			return PriorityHigh
		}
	}
	return PriorityNormal
}
