// Package gate evaluates named quality gates against a coordination
// session snapshot. All gates except alignment are pure functions of the
// snapshot; the alignment gate may delegate to an external assessor and
// caches its answer per session and phase so repeated checks within the
// same phase stay deterministic.
package gate

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"
)

// Built-in gate names.
const (
	Alignment   = "alignment"
	Coherence   = "coherence"
	Feasibility = "feasibility"
	Integrity   = "integrity"
)

// DefaultThresholds returns the stock pass thresholds per gate.
func DefaultThresholds() map[string]float64 {
	return map[string]float64{
		Alignment:   0.85,
		Coherence:   0.80,
		Feasibility: 0.75,
		Integrity:   0.80,
	}
}

// Result is the outcome of one gate evaluation.
type Result struct {
	Gate      string  `json:"gate"`
	Score     float64 `json:"score"`
	Threshold float64 `json:"threshold"`
	Passed    bool    `json:"passed"`
	Detail    string  `json:"detail,omitempty"`
}

// Failure is the classified error for a gate that scored below threshold.
type Failure struct {
	Gate      string
	Score     float64
	Threshold float64
}

func (f *Failure) Error() string {
	return fmt.Sprintf("quality gate %q failed: score %.2f below threshold %.2f", f.Gate, f.Score, f.Threshold)
}

// WorkerObservation is one worker's recorded contribution to a phase.
type WorkerObservation struct {
	Worker       string             `json:"worker"`
	OK           bool               `json:"ok"`
	Output       map[string]string  `json:"output,omitempty"`
	QualityHints map[string]float64 `json:"quality_hints,omitempty"`
}

// PhaseObservation is the per-phase view a gate scores against.
type PhaseObservation struct {
	Name    string              `json:"name"`
	Entries []WorkerObservation `json:"entries"`
}

// Snapshot is the read-only session view handed to the validator.
type Snapshot struct {
	SessionID    string             `json:"session_id"`
	Objective    string             `json:"objective"`
	Participants []string           `json:"participants"`
	Phases       []PhaseObservation `json:"phases"`
	Knowledge    map[string]string  `json:"knowledge,omitempty"`
}

// AlignmentAssessor is the external ethics collaborator consulted by the
// alignment gate. Scores are in [0,1].
type AlignmentAssessor interface {
	AssessAlignment(ctx context.Context, snap Snapshot) (float64, error)
}

// Validator evaluates gates against session snapshots.
type Validator struct {
	thresholds map[string]float64
	assessor   AlignmentAssessor

	mu    sync.Mutex
	cache map[string]float64 // alignment scores keyed by session+phase

	logger *zap.Logger
}

// New builds a Validator. A nil assessor makes the alignment gate fall
// back to the same hint-or-heuristic scoring as the other gates.
func New(thresholds map[string]float64, assessor AlignmentAssessor, logger *zap.Logger) *Validator {
	merged := DefaultThresholds()
	for name, th := range thresholds {
		merged[name] = th
	}
	return &Validator{
		thresholds: merged,
		assessor:   assessor,
		cache:      make(map[string]float64),
		logger:     logger,
	}
}

// Validate scores the named gate against the snapshot. An unknown gate
// name is a configuration problem and returns an error; a score below
// threshold is a normal Result with Passed=false, not an error.
func (v *Validator) Validate(ctx context.Context, gateName string, snap Snapshot) (Result, error) {
	threshold, ok := v.thresholds[gateName]
	if !ok {
		return Result{}, fmt.Errorf("unknown quality gate %q", gateName)
	}

	var (
		score  float64
		detail string
		err    error
	)
	switch gateName {
	case Alignment:
		score, detail, err = v.alignmentScore(ctx, snap)
		if err != nil {
			return Result{}, fmt.Errorf("alignment assessment: %w", err)
		}
	case Coherence:
		score, detail = coherenceScore(snap)
	case Feasibility:
		score, detail = feasibilityScore(snap)
	case Integrity:
		score, detail = integrityScore(snap)
	}

	res := Result{
		Gate:      gateName,
		Score:     clamp(score),
		Threshold: threshold,
		Passed:    clamp(score) >= threshold,
		Detail:    detail,
	}
	v.logger.Debug("quality gate evaluated",
		zap.String("gate", gateName),
		zap.Float64("score", res.Score),
		zap.Bool("passed", res.Passed),
	)
	return res, nil
}

// alignmentScore delegates to the external assessor when present, caching
// the answer for the current session+phase.
func (v *Validator) alignmentScore(ctx context.Context, snap Snapshot) (float64, string, error) {
	if v.assessor == nil {
		score, _ := hintOrHeuristic(snap, Alignment, knowledgeCoverage)
		return score, "heuristic alignment (no external assessor)", nil
	}

	key := snap.SessionID + "#" + lastPhaseName(snap)
	v.mu.Lock()
	if cached, ok := v.cache[key]; ok {
		v.mu.Unlock()
		return cached, "external assessment (cached)", nil
	}
	v.mu.Unlock()

	score, err := v.assessor.AssessAlignment(ctx, snap)
	if err != nil {
		return 0, "", err
	}
	v.mu.Lock()
	v.cache[key] = score
	v.mu.Unlock()
	return score, "external assessment", nil
}

func lastPhaseName(snap Snapshot) string {
	if len(snap.Phases) == 0 {
		return ""
	}
	return snap.Phases[len(snap.Phases)-1].Name
}

func clamp(f float64) float64 {
	if f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}

// hintOrHeuristic averages explicit quality hints for the dimension when
// any worker supplied one, else falls back to the heuristic function.
func hintOrHeuristic(snap Snapshot, dimension string, heuristic func(Snapshot) float64) (float64, int) {
	sum := 0.0
	n := 0
	for _, ph := range snap.Phases {
		for _, e := range ph.Entries {
			if h, ok := e.QualityHints[dimension]; ok {
				sum += h
				n++
			}
		}
	}
	if n > 0 {
		return sum / float64(n), n
	}
	return heuristic(snap), 0
}

// coherenceScore averages a per-participant estimate of how consistently
// each worker's phase outputs reference the shared task objective. Simple
// keyword weighting, nothing semantic.
func coherenceScore(snap Snapshot) (float64, string) {
	if score, hints := hintOrHeuristic(snap, Coherence, func(Snapshot) float64 { return 0 }); hints > 0 {
		return score, fmt.Sprintf("averaged %d coherence hints", hints)
	}

	terms := objectiveTerms(snap.Objective)
	if len(terms) == 0 || len(snap.Participants) == 0 {
		return 0.5, "no objective terms to compare against"
	}

	total := 0.0
	for _, worker := range snap.Participants {
		total += participantCoherence(snap, worker, terms)
	}
	score := total / float64(len(snap.Participants))
	return score, fmt.Sprintf("averaged %d participant estimates", len(snap.Participants))
}

// participantCoherence is the fraction of objective terms the worker's
// outputs mention, across all phases it contributed to.
func participantCoherence(snap Snapshot, worker string, terms []string) float64 {
	var outputs []string
	for _, ph := range snap.Phases {
		for _, e := range ph.Entries {
			if e.Worker != worker || !e.OK {
				continue
			}
			for _, v := range e.Output {
				outputs = append(outputs, strings.ToLower(v))
			}
		}
	}
	if len(outputs) == 0 {
		// Not yet contributing: neutral rather than damning.
		return 0.5
	}
	joined := strings.Join(outputs, " ")
	hits := 0
	for _, term := range terms {
		if strings.Contains(joined, term) {
			hits++
		}
	}
	return float64(hits) / float64(len(terms))
}

// feasibilityScore weighs how much of the planned work actually landed:
// the success ratio across all recorded worker entries.
func feasibilityScore(snap Snapshot) (float64, string) {
	if score, hints := hintOrHeuristic(snap, Feasibility, func(Snapshot) float64 { return 0 }); hints > 0 {
		return score, fmt.Sprintf("averaged %d feasibility hints", hints)
	}
	ok, total := entryCounts(snap)
	if total == 0 {
		return 0.5, "no work recorded yet"
	}
	return float64(ok) / float64(total), fmt.Sprintf("%d of %d entries succeeded", ok, total)
}

// integrityScore penalizes failed entries twice as hard as feasibility:
// an integrity pass means the session state is trustworthy end to end.
func integrityScore(snap Snapshot) (float64, string) {
	if score, hints := hintOrHeuristic(snap, Integrity, func(Snapshot) float64 { return 0 }); hints > 0 {
		return score, fmt.Sprintf("averaged %d integrity hints", hints)
	}
	ok, total := entryCounts(snap)
	if total == 0 {
		return 0.5, "no work recorded yet"
	}
	failed := total - ok
	score := 1.0 - 2.0*float64(failed)/float64(total)
	return score, fmt.Sprintf("%d failed entries out of %d", failed, total)
}

// knowledgeCoverage is the heuristic fallback for alignment: how much of
// the shared blackboard has been populated relative to participants.
func knowledgeCoverage(snap Snapshot) float64 {
	if len(snap.Participants) == 0 {
		return 0.5
	}
	// One knowledge entry per participant per phase is full coverage.
	want := len(snap.Participants) * maxInt(len(snap.Phases), 1)
	got := len(snap.Knowledge)
	if got >= want {
		return 1
	}
	return 0.5 + 0.5*float64(got)/float64(want)
}

func entryCounts(snap Snapshot) (ok, total int) {
	for _, ph := range snap.Phases {
		for _, e := range ph.Entries {
			total++
			if e.OK {
				ok++
			}
		}
	}
	return ok, total
}

// objectiveTerms extracts the significant lowercased words of the task
// objective, deduplicated and sorted for determinism.
func objectiveTerms(objective string) []string {
	seen := make(map[string]struct{})
	for _, w := range strings.Fields(strings.ToLower(objective)) {
		w = strings.Trim(w, ".,;:!?\"'()")
		if len(w) >= 4 {
			seen[w] = struct{}{}
		}
	}
	terms := make([]string, 0, len(seen))
	for w := range seen {
		terms = append(terms, w)
	}
	sort.Strings(terms)
	return terms
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
