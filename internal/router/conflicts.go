package router

import (
	"fmt"
	"strings"

	"github.com/nidhogg/foreman/internal/registry"
	"github.com/nidhogg/foreman/internal/task"
)

// opposingQuality lists quality dimension pairs known to pull against each
// other when both sides of a handoff are accountable for one of them.
var opposingQuality = [][2]string{
	{"user experience", "raw performance"},
	{"speed", "thoroughness"},
	{"consistency", "velocity"},
}

// detectConflicts inspects a handoff for capability overlap, quality
// tension and domain-boundary issues. Conflicts are informational; the
// decision itself still stands.
func detectConflicts(from, to registry.WorkerProfile, t task.Task) []Conflict {
	var conflicts []Conflict

	if overlap := intersect(from.Capabilities, to.Capabilities); len(overlap) > 0 {
		risk := "low"
		if len(overlap) > 2 {
			risk = "medium"
		}
		conflicts = append(conflicts, Conflict{
			Kind:      ConflictCapabilityOverlap,
			Detail:    fmt.Sprintf("%s and %s both cover: %s", from.Name, to.Name, strings.Join(overlap, ", ")),
			RiskLevel: risk,
			SuggestedResolution: fmt.Sprintf("agree which of the two owns %s for this task before work continues",
				strings.Join(overlap, "/")),
		})
	}

	for _, pair := range opposingQuality {
		if hasDimensionPair(from.QualityFocus, to.QualityFocus, pair) {
			conflicts = append(conflicts, Conflict{
				Kind:      ConflictQualityTension,
				Detail:    fmt.Sprintf("%q (%s) pulls against %q (%s)", pair[0], from.Name, pair[1], to.Name),
				RiskLevel: "medium",
				SuggestedResolution: fmt.Sprintf("make the %s/%s trade-off explicit in the handoff notes",
					pair[0], pair[1]),
			})
		}
	}

	conflicts = append(conflicts, boundaryConflicts(from, to, t)...)
	return conflicts
}

// boundaryConflicts applies hand-authored heuristics for handoffs that
// cross a domain line the receiving worker does not naturally own.
func boundaryConflicts(from, to registry.WorkerProfile, t task.Task) []Conflict {
	var conflicts []Conflict

	if from.Name == "design" && t.ContainsAny([]string{"performance", "latency", "throughput"}) {
		conflicts = append(conflicts, Conflict{
			Kind:      ConflictDomainBoundary,
			Detail:    "design is handing off a performance-scoped task",
			RiskLevel: "medium",
			SuggestedResolution: "loop in the performance worker for the measurement plan " +
				"before accepting design constraints",
		})
	}

	if from.Name == "strategy" && to.Name == "backend" && t.DetectPhase() == task.PhaseDesign {
		conflicts = append(conflicts, Conflict{
			Kind:                ConflictDomainBoundary,
			Detail:              "strategy is skipping design on a design-phase task",
			RiskLevel:           "low",
			SuggestedResolution: "confirm no interface work is needed, or insert a design review",
		})
	}

	return conflicts
}

// hasDimensionPair reports whether one side holds pair[0] and the other
// pair[1], in either direction.
func hasDimensionPair(a, b []string, pair [2]string) bool {
	return (containsFold(a, pair[0]) && containsFold(b, pair[1])) ||
		(containsFold(a, pair[1]) && containsFold(b, pair[0]))
}

func containsFold(set []string, v string) bool {
	for _, s := range set {
		if strings.EqualFold(s, v) {
			return true
		}
	}
	return false
}

func intersect(a, b []string) []string {
	var out []string
	for _, x := range a {
		if containsFold(b, x) {
			out = append(out, x)
		}
	}
	return out
}
