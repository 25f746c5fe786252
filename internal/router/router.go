// Package router assigns incoming tasks to the best-fit worker. Scoring is
// additive over a worker's profile and fully deterministic: identical task
// and context always produce the identical decision.
package router

import (
	"fmt"
	"strings"

	"github.com/nidhogg/foreman/internal/registry"
	"github.com/nidhogg/foreman/internal/task"
	"go.uber.org/zap"
)

// Weights are the score contributions for each profile match. They are
// hand-tuned values carried in configuration, not a validated policy.
type Weights struct {
	PrimaryCommand   int `json:"primary_command"`
	SecondaryCommand int `json:"secondary_command"`
	Capability       int `json:"capability"`
	CoreActivity     int `json:"core_activity"`
	HandoffChain     int `json:"handoff_chain"`
	ActiveWorker     int `json:"active_worker"`
	PhaseOwner       int `json:"phase_owner"`
}

// DefaultWeights returns the stock scoring weights.
func DefaultWeights() Weights {
	return Weights{
		PrimaryCommand:   100,
		SecondaryCommand: 50,
		Capability:       25,
		CoreActivity:     30,
		HandoffChain:     30,
		ActiveWorker:     15,
		PhaseOwner:       20,
	}
}

// phaseOwners maps an inferred project phase to its canonical worker.
var phaseOwners = map[task.ProjectPhase]string{
	task.PhaseStrategy:    "strategy",
	task.PhaseDesign:      "design",
	task.PhaseDevelopment: "backend",
}

// Router scores workers against tasks. It is stateless per call; callers
// own persistence of routing history.
type Router struct {
	reg       *registry.Registry
	overrides map[string]string
	weights   Weights
	urgent    []string
	highTypes []string
	logger    *zap.Logger
}

// New builds a Router. Override targets must name registered workers.
func New(reg *registry.Registry, overrides map[string]string, weights Weights,
	urgentKeywords, highPriorityTypes []string, logger *zap.Logger) (*Router, error) {

	for tag, worker := range overrides {
		if !reg.Has(worker) {
			return nil, &registry.ConfigError{
				Field:  "overrides",
				Detail: fmt.Sprintf("tag %q maps to unknown worker %q", tag, worker),
			}
		}
	}
	if len(urgentKeywords) == 0 {
		urgentKeywords = task.DefaultUrgentKeywords
	}
	if len(highPriorityTypes) == 0 {
		highPriorityTypes = task.DefaultHighPriorityTypes
	}
	return &Router{
		reg:       reg,
		overrides: overrides,
		weights:   weights,
		urgent:    urgentKeywords,
		highTypes: highPriorityTypes,
		logger:    logger,
	}, nil
}

// Route assigns a worker for the task. It never fails for well-formed input;
// a task nobody scores on falls back to the registry's default worker.
func (r *Router) Route(t task.Task, rc Context) Decision {
	// Direct override tags bypass scoring entirely.
	for _, tag := range t.Tags {
		if worker, ok := r.overrides[strings.ToLower(tag)]; ok {
			return r.finish(t, rc, worker, []ScoreContribution{
				{Reason: fmt.Sprintf("override tag %q", strings.ToLower(tag)), Points: r.weights.PrimaryCommand},
			})
		}
	}

	winner, trace := r.scoreAll(t, rc)
	return r.finish(t, rc, winner, trace)
}

// scoreAll scores every registered worker and returns the winner plus its
// reasoning trace. Ties break by registry declaration order; a zero top
// score selects the fallback worker.
func (r *Router) scoreAll(t task.Task, rc Context) (string, []ScoreContribution) {
	text := t.Text()
	typeTag := t.TypeTag()
	phase := t.DetectPhase()

	var lastProfile registry.WorkerProfile
	haveLast := false
	if rc.LastWorker != "" {
		lastProfile, haveLast = r.reg.Get(rc.LastWorker)
	}

	bestScore := 0
	bestName := ""
	var bestTrace []ScoreContribution

	for _, p := range r.reg.All() {
		var contrib []ScoreContribution
		add := func(reason string, points int) {
			contrib = append(contrib, ScoreContribution{Reason: reason, Points: points})
		}

		if typeTag != "" && p.HasPrimary(typeTag) {
			add(fmt.Sprintf("primary command %q", typeTag), r.weights.PrimaryCommand)
		} else if typeTag != "" && p.HasSecondary(typeTag) {
			add(fmt.Sprintf("secondary command %q", typeTag), r.weights.SecondaryCommand)
		}

		for _, capability := range p.Capabilities {
			if strings.Contains(text, strings.ToLower(capability)) {
				add(fmt.Sprintf("capability %q", capability), r.weights.Capability)
			}
		}

		for _, act := range p.CoreActivities {
			if strings.Contains(text, strings.ToLower(act)) {
				add(fmt.Sprintf("core activity %q", act), r.weights.CoreActivity)
			}
		}

		if haveLast && lastProfile.HandsOffTo(p.Name) {
			add(fmt.Sprintf("handoff chain from %q", rc.LastWorker), r.weights.HandoffChain)
		}

		for _, active := range rc.ActiveWorkers {
			if active == p.Name {
				add("already active", r.weights.ActiveWorker)
				break
			}
		}

		if owner, ok := phaseOwners[phase]; ok && owner == p.Name {
			add(fmt.Sprintf("owner of %s phase", phase), r.weights.PhaseOwner)
		}

		total := 0
		for _, c := range contrib {
			total += c.Points
		}
		if total > bestScore {
			bestScore = total
			bestName = p.Name
			bestTrace = contrib
		}
	}

	if bestScore <= 0 {
		fb := r.reg.Fallback()
		return fb.Name, []ScoreContribution{{Reason: "fallback: no worker scored", Points: 0}}
	}
	return bestName, bestTrace
}

// finish fills in priority, handoff and conflicts for the chosen worker.
func (r *Router) finish(t task.Task, rc Context, worker string, trace []ScoreContribution) Decision {
	d := Decision{
		Task:           t,
		AssignedWorker: worker,
		Priority:       task.DerivePriority(t, r.urgent, r.highTypes),
		Trace:          trace,
	}

	if rc.LastWorker != "" && rc.LastWorker != worker {
		if from, ok := r.reg.Get(rc.LastWorker); ok {
			to, _ := r.reg.Get(worker)
			d.HandoffRequired = true
			d.Handoff = buildHandoff(from, to, rc.PreservedState)
			d.Conflicts = detectConflicts(from, to, t)
		}
	}

	r.logger.Debug("routed task",
		zap.String("worker", d.AssignedWorker),
		zap.String("priority", string(d.Priority)),
		zap.Bool("handoff", d.HandoffRequired),
		zap.Int("conflicts", len(d.Conflicts)),
	)
	return d
}

// buildHandoff carries preserved state forward and records the quality
// dimensions each side stays accountable for.
func buildHandoff(from, to registry.WorkerProfile, preserved map[string]string) *Handoff {
	state := make(map[string]string, len(preserved))
	for k, v := range preserved {
		state[k] = v
	}
	return &Handoff{
		FromWorker:     from.Name,
		ToWorker:       to.Name,
		PreservedState: state,
		QualityExpectations: map[string][]string{
			from.Name: append([]string(nil), from.QualityFocus...),
			to.Name:   append([]string(nil), to.QualityFocus...),
		},
	}
}
