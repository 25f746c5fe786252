// Package orchestrator sequences multi-worker collaboration on a single
// task through a phased plan with quality checkpoints. One run owns one
// coordination session; gate failures end the run as a failed result
// rather than an error.
package orchestrator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/nidhogg/foreman/internal/gate"
	"github.com/nidhogg/foreman/internal/registry"
	"github.com/nidhogg/foreman/internal/task"
	"go.uber.org/zap"
)

// Orchestrator drives coordination sessions.
type Orchestrator struct {
	reg       *registry.Registry
	sched     *scheduler
	validator *gate.Validator
	sink      CheckpointSink // optional

	mu       sync.Mutex
	archives []Archive

	logger *zap.Logger
}

// New builds an Orchestrator. sink may be nil when no checkpoint stream is
// configured.
func New(reg *registry.Registry, invoker Invoker, validator *gate.Validator,
	sink CheckpointSink, poolSize int, invocationTimeout time.Duration, logger *zap.Logger) *Orchestrator {
	return &Orchestrator{
		reg:       reg,
		sched:     newScheduler(invoker, poolSize, invocationTimeout, logger),
		validator: validator,
		sink:      sink,
		logger:    logger,
	}
}

// PlanFor resolves the requested pattern name to a plan; anything that is
// not a built-in pattern gets an ad-hoc plan derived from the task.
func (o *Orchestrator) PlanFor(t task.Task, pattern string) Plan {
	if plan, ok := builtinPlan(Pattern(pattern)); ok {
		return plan
	}
	plan := derivePlan(t)
	if len(plan.Roles) == 0 {
		plan.Roles = []string{o.reg.Fallback().Name}
	}
	return plan
}

// RunWorkflow executes the task under the named coordination pattern and
// returns a structured result. The returned error is non-nil only for
// configuration problems; gate and phase failures are reported in the
// result.
func (o *Orchestrator) RunWorkflow(ctx context.Context, t task.Task, pattern string) (*Result, error) {
	plan := o.PlanFor(t, pattern)
	if err := o.validatePlan(plan); err != nil {
		return nil, err
	}

	sess := NewSession(t, plan)
	return o.runSession(ctx, sess, plan)
}

// StartSession prepares a session without executing it, so callers can
// hold a cancellation handle before the run begins.
func (o *Orchestrator) StartSession(t task.Task, pattern string) (*Session, Plan, error) {
	plan := o.PlanFor(t, pattern)
	if err := o.validatePlan(plan); err != nil {
		return nil, Plan{}, err
	}
	return NewSession(t, plan), plan, nil
}

// RunSession executes a previously prepared session.
func (o *Orchestrator) RunSession(ctx context.Context, sess *Session, plan Plan) (*Result, error) {
	return o.runSession(ctx, sess, plan)
}

func (o *Orchestrator) validatePlan(plan Plan) error {
	if len(plan.Phases) == 0 {
		return &registry.ConfigError{Field: "plan", Detail: fmt.Sprintf("pattern %q has no phases", plan.Pattern)}
	}
	for _, role := range plan.Roles {
		if !o.reg.Has(role) {
			return &registry.ConfigError{
				Field:  "plan",
				Detail: fmt.Sprintf("pattern %q requires unknown worker %q", plan.Pattern, role),
			}
		}
	}
	if plan.Lead != "" && !o.reg.Has(plan.Lead) {
		return &registry.ConfigError{
			Field:  "plan",
			Detail: fmt.Sprintf("pattern %q names unknown lead worker %q", plan.Pattern, plan.Lead),
		}
	}
	for _, ph := range plan.Phases {
		if ph.Name == "" {
			return &registry.ConfigError{Field: "plan", Detail: "phase with empty name"}
		}
		for _, w := range ph.Workers {
			if !o.reg.Has(w) {
				return &registry.ConfigError{
					Field:  "plan",
					Detail: fmt.Sprintf("phase %q names unknown worker %q", ph.Name, w),
				}
			}
		}
	}
	return nil
}

func (o *Orchestrator) runSession(ctx context.Context, sess *Session, plan Plan) (*Result, error) {
	start := time.Now()
	o.logger.Info("workflow starting",
		zap.String("session", sess.ID),
		zap.String("pattern", string(plan.Pattern)),
		zap.Int("phases", len(plan.Phases)),
		zap.Strings("participants", sess.Participants),
	)

	// Seed the blackboard with the run context before any phase executes.
	_ = sess.PutKnowledge("session.task", sess.Task.Description)
	_ = sess.PutKnowledge("session.pattern", string(plan.Pattern))
	_ = sess.PutKnowledge("session.started_at", sess.CreatedAt.UTC().Format(time.RFC3339))
	_ = sess.SetStatus(StatusRunning)

	metrics := make(map[string]float64)

	for _, phase := range plan.Phases {
		// Cancellation is cooperative and checked at phase boundaries.
		if sess.Cancelled() {
			return o.fail(sess, plan, metrics, start, fmt.Sprintf("cancelled before phase %q", phase.Name)), nil
		}
		if err := ctx.Err(); err != nil {
			return o.fail(sess, plan, metrics, start, fmt.Sprintf("context ended before phase %q: %v", phase.Name, err)), nil
		}

		o.emit(ctx, sess, phase.Name, "phase_start", nil)
		phaseStart := time.Now()

		workers := phase.Workers
		if len(workers) == 0 {
			workers = sess.Participants
		}

		var outcomes []WorkerOutcome
		switch plan.Pattern {
		case PatternParallel, PatternCollaborative:
			outcomes = o.sched.runParallel(ctx, sess, phase.Name, workers)
		case PatternOrchestrated:
			outcomes = o.sched.runLed(ctx, sess, phase.Name, plan.Lead, workers)
		default: // sequential and derived plans
			outcomes = o.sched.runSequential(ctx, sess, phase.Name, workers)
		}

		// A cancel raised while the phase ran discards its result; the log
		// only carries phases that completed before the request.
		if sess.Cancelled() {
			return o.fail(sess, plan, metrics, start, fmt.Sprintf("cancelled during phase %q", phase.Name)), nil
		}

		pr := PhaseResult{
			Phase:       phase.Name,
			StartedAt:   phaseStart,
			CompletedAt: time.Now(),
			Outcomes:    outcomes,
		}

		if allFailed(outcomes) {
			sess.AppendPhase(pr)
			return o.fail(sess, plan, metrics, start,
				fmt.Sprintf("phase %q: all %d participants failed", phase.Name, len(outcomes))), nil
		}

		if phase.RequiredGate != "" {
			// The snapshot must include the phase just executed, which is
			// not yet in the session log.
			snap := sess.GateSnapshot()
			snap.Phases = append(snap.Phases, phaseObservation(pr))
			res, err := o.validator.Validate(ctx, phase.RequiredGate, snap)
			if err != nil {
				sess.AppendPhase(pr)
				return o.fail(sess, plan, metrics, start,
					fmt.Sprintf("phase %q: gate %q could not be evaluated: %v", phase.Name, phase.RequiredGate, err)), nil
			}
			pr.Gate = &res
			metrics[res.Gate] = res.Score
			o.emit(ctx, sess, phase.Name, "gate", map[string]string{
				"gate":   res.Gate,
				"score":  fmt.Sprintf("%.2f", res.Score),
				"passed": fmt.Sprintf("%t", res.Passed),
			})
			if !res.Passed {
				sess.AppendPhase(pr)
				failure := &gate.Failure{Gate: res.Gate, Score: res.Score, Threshold: res.Threshold}
				return o.fail(sess, plan, metrics, start, failure.Error()), nil
			}
		}

		sess.AppendPhase(pr)

		if phase.Checkpoint {
			o.emit(ctx, sess, phase.Name, "checkpoint", map[string]string{
				"participants": fmt.Sprintf("%d", len(workers)),
			})
		}
		o.emit(ctx, sess, phase.Name, "phase_end", nil)
	}

	_ = sess.SetStatus(StatusCompleted)
	o.retire(sess)

	result := &Result{
		SessionID:      sess.ID,
		Pattern:        plan.Pattern,
		Success:        true,
		PhaseLog:       sess.PhaseLog(),
		QualityMetrics: metrics,
		Duration:       time.Since(start),
	}
	o.logger.Info("workflow completed",
		zap.String("session", sess.ID),
		zap.Duration("duration", result.Duration),
	)
	return result, nil
}

// fail moves the session to its terminal failed state, preserving the
// phase log up to the failure point.
func (o *Orchestrator) fail(sess *Session, plan Plan, metrics map[string]float64, start time.Time, reason string) *Result {
	_ = sess.SetStatus(StatusFailed)
	o.retire(sess)
	o.logger.Warn("workflow failed",
		zap.String("session", sess.ID),
		zap.String("reason", reason),
	)
	return &Result{
		SessionID:      sess.ID,
		Pattern:        plan.Pattern,
		Success:        false,
		FailureReason:  reason,
		PhaseLog:       sess.PhaseLog(),
		QualityMetrics: metrics,
		Duration:       time.Since(start),
	}
}

// retire tears the session down into the in-memory archive ring.
func (o *Orchestrator) retire(sess *Session) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.archives = append(o.archives, sess.Archive())
	// Keep the ring bounded; persisted history lives elsewhere.
	if len(o.archives) > 256 {
		o.archives = o.archives[len(o.archives)-256:]
	}
}

// Archives returns the retained session archives, oldest first.
func (o *Orchestrator) Archives() []Archive {
	o.mu.Lock()
	defer o.mu.Unlock()
	cp := make([]Archive, len(o.archives))
	copy(cp, o.archives)
	return cp
}

// emit publishes a checkpoint event. Best effort only: sink errors are
// logged at debug and never affect the run.
func (o *Orchestrator) emit(ctx context.Context, sess *Session, phase, kind string, detail map[string]string) {
	if o.sink == nil {
		return
	}
	ev := CheckpointEvent{
		SessionID: sess.ID,
		Phase:     phase,
		Kind:      kind,
		Detail:    detail,
		At:        time.Now(),
	}
	if err := o.sink.Emit(ctx, ev); err != nil {
		o.logger.Debug("checkpoint emit failed", zap.String("kind", kind), zap.Error(err))
	}
}

// phaseObservation converts a phase result into the view gates score.
func phaseObservation(pr PhaseResult) gate.PhaseObservation {
	entries := make([]gate.WorkerObservation, len(pr.Outcomes))
	for i, o := range pr.Outcomes {
		entries[i] = gate.WorkerObservation{
			Worker:       o.Worker,
			OK:           o.OK,
			Output:       o.Output,
			QualityHints: o.QualityHints,
		}
	}
	return gate.PhaseObservation{Name: pr.Phase, Entries: entries}
}

func allFailed(outcomes []WorkerOutcome) bool {
	if len(outcomes) == 0 {
		return true
	}
	for _, o := range outcomes {
		if o.OK {
			return false
		}
	}
	return true
}
