package router

import (
	"github.com/nidhogg/foreman/internal/task"
)

// Context carries the routing state the caller has accumulated: which worker
// last held the task, who is currently active, and any state that must
// survive a handoff.
type Context struct {
	LastWorker     string            `json:"last_worker,omitempty"`
	ActiveWorkers  []string          `json:"active_workers,omitempty"`
	PreservedState map[string]string `json:"preserved_state,omitempty"`
}

// ScoreContribution is one line of the routing reasoning trace.
type ScoreContribution struct {
	Reason string `json:"reason"`
	Points int    `json:"points"`
}

// Handoff carries forward the context a worker needs when the assignment
// moves away from the previously active worker.
type Handoff struct {
	FromWorker     string            `json:"from_worker"`
	ToWorker       string            `json:"to_worker"`
	PreservedState map[string]string `json:"preserved_state,omitempty"`
	// QualityExpectations lists, per side, the quality dimensions that
	// worker remains accountable for across the handoff.
	QualityExpectations map[string][]string `json:"quality_expectations,omitempty"`
}

// ConflictKind classifies a detected routing conflict.
type ConflictKind string

const (
	ConflictCapabilityOverlap ConflictKind = "capability_overlap"
	ConflictQualityTension    ConflictKind = "quality_tension"
	ConflictDomainBoundary    ConflictKind = "domain_boundary"
)

// Conflict is informational metadata on a successful routing decision;
// it is never an error. Callers decide whether to block on it.
type Conflict struct {
	Kind                ConflictKind `json:"kind"`
	Detail              string       `json:"detail"`
	RiskLevel           string       `json:"risk_level"`
	SuggestedResolution string       `json:"suggested_resolution"`
}

// Decision is the router's output for one task.
type Decision struct {
	Task            task.Task           `json:"task"`
	AssignedWorker  string              `json:"assigned_worker"`
	Priority        task.Priority       `json:"priority"`
	Trace           []ScoreContribution `json:"trace"`
	HandoffRequired bool                `json:"handoff_required"`
	Handoff         *Handoff            `json:"handoff,omitempty"`
	Conflicts       []Conflict          `json:"conflicts,omitempty"`
}
