package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/nidhogg/foreman/internal/gate"
	"github.com/nidhogg/foreman/internal/task"
)

// Pattern names a coordination pattern.
type Pattern string

const (
	PatternSequential    Pattern = "sequential"
	PatternParallel      Pattern = "parallel"
	PatternCollaborative Pattern = "collaborative"
	PatternOrchestrated  Pattern = "orchestrated"
	// PatternCustom marks a plan derived ad hoc from the task description.
	PatternCustom Pattern = "custom"
)

// PhaseSpec is one step of a coordination plan.
type PhaseSpec struct {
	Name string `json:"name"`
	// RequiredGate, when set, is validated after the phase; failure ends
	// the run.
	RequiredGate string `json:"required_gate,omitempty"`
	// Checkpoint marks a non-blocking observational hook at the phase
	// boundary. It never gates.
	Checkpoint bool `json:"checkpoint,omitempty"`
	// Workers restricts the phase to a subset of the session participants.
	// Empty means all participants.
	Workers []string `json:"workers,omitempty"`
}

// Plan is the ordered phase list a session executes.
type Plan struct {
	Pattern Pattern     `json:"pattern"`
	Roles   []string    `json:"roles"`
	Lead    string      `json:"lead,omitempty"` // orchestrated only
	Phases  []PhaseSpec `json:"phases"`
}

// Status is the lifecycle state of a coordination session. Transitions are
// monotonic: a session never moves backwards.
type Status string

const (
	StatusInitializing Status = "initializing"
	StatusRunning      Status = "running"
	StatusCompleted    Status = "completed"
	StatusFailed       Status = "failed"
)

var statusRank = map[Status]int{
	StatusInitializing: 0,
	StatusRunning:      1,
	StatusCompleted:    2,
	StatusFailed:       2,
}

// Invocation is what a worker returns for one phase. Output content is
// opaque to the orchestrator beyond quality-hint extraction.
type Invocation struct {
	Output       map[string]string  `json:"output,omitempty"`
	QualityHints map[string]float64 `json:"quality_hints,omitempty"`
}

// Invoker executes one worker against a task with a read-only snapshot of
// the session blackboard. Implemented by the surrounding system; tests use
// a deterministic fixture.
type Invoker interface {
	Invoke(ctx context.Context, worker string, t task.Task, knowledge map[string]string) (*Invocation, error)
}

// WorkerOutcome records one worker's contribution to one phase, success
// or failure.
type WorkerOutcome struct {
	Worker       string             `json:"worker"`
	OK           bool               `json:"ok"`
	Output       map[string]string  `json:"output,omitempty"`
	QualityHints map[string]float64 `json:"quality_hints,omitempty"`
	Error        string             `json:"error,omitempty"`
	Duration     time.Duration      `json:"duration"`
}

// PhaseResult is one completed phase, appended to the session log strictly
// in plan order.
type PhaseResult struct {
	Phase       string          `json:"phase"`
	StartedAt   time.Time       `json:"started_at"`
	CompletedAt time.Time       `json:"completed_at"`
	Outcomes    []WorkerOutcome `json:"outcomes"`
	Gate        *gate.Result    `json:"gate,omitempty"`
}

// Result is the aggregated outcome of one workflow run. Gate failures and
// phase failures surface here, not as returned errors.
type Result struct {
	SessionID      string             `json:"session_id"`
	Pattern        Pattern            `json:"pattern"`
	Success        bool               `json:"success"`
	FailureReason  string             `json:"failure_reason,omitempty"`
	PhaseLog       []PhaseResult      `json:"phase_log"`
	QualityMetrics map[string]float64 `json:"quality_metrics,omitempty"`
	Duration       time.Duration      `json:"duration"`
}

// InvocationError classifies a single worker failing within a phase. It is
// tolerated unless every participant of the phase fails.
type InvocationError struct {
	Worker string
	Phase  string
	Err    error
}

func (e *InvocationError) Error() string {
	return fmt.Sprintf("worker %q failed in phase %q: %v", e.Worker, e.Phase, e.Err)
}

func (e *InvocationError) Unwrap() error { return e.Err }

// CheckpointEvent is the observational record emitted at phase boundaries.
type CheckpointEvent struct {
	SessionID string            `json:"session_id"`
	Phase     string            `json:"phase"`
	Kind      string            `json:"kind"` // phase_start, phase_end, gate
	Detail    map[string]string `json:"detail,omitempty"`
	At        time.Time         `json:"at"`
}

// CheckpointSink receives checkpoint events. Emission is best-effort; a
// sink error never affects the run.
type CheckpointSink interface {
	Emit(ctx context.Context, ev CheckpointEvent) error
}
