package orchestrator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// scheduler fans worker invocations out within a phase and joins before
// the orchestrator moves on. Fan-out is bounded by a semaphore pool; the
// per-invocation timeout turns a slow worker into a failed entry rather
// than stalling the whole phase.
type scheduler struct {
	invoker Invoker
	pool    chan struct{}
	timeout time.Duration
	logger  *zap.Logger
}

func newScheduler(invoker Invoker, poolSize int, timeout time.Duration, logger *zap.Logger) *scheduler {
	if poolSize <= 0 {
		poolSize = 10
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &scheduler{
		invoker: invoker,
		pool:    make(chan struct{}, poolSize),
		timeout: timeout,
		logger:  logger,
	}
}

// runSequential invokes the workers one at a time, propagating each
// worker's output onto the blackboard before the next starts.
func (sc *scheduler) runSequential(ctx context.Context, sess *Session, phase string, workers []string) []WorkerOutcome {
	outcomes := make([]WorkerOutcome, 0, len(workers))
	for _, w := range workers {
		outcome := sc.invokeOne(ctx, sess, phase, w)
		mergeOutcome(sess, phase, outcome)
		outcomes = append(outcomes, outcome)
	}
	return outcomes
}

// runParallel invokes all workers concurrently and joins. Outcomes are
// recorded in worker declaration order regardless of completion order, and
// are merged onto the blackboard only after the join.
func (sc *scheduler) runParallel(ctx context.Context, sess *Session, phase string, workers []string) []WorkerOutcome {
	outcomes := make([]WorkerOutcome, len(workers))
	var wg sync.WaitGroup

	for i, w := range workers {
		wg.Add(1)
		go func(slot int, worker string) {
			defer wg.Done()
			sc.pool <- struct{}{}
			defer func() { <-sc.pool }()
			outcomes[slot] = sc.invokeOne(ctx, sess, phase, worker)
		}(i, w)
	}
	wg.Wait()

	for _, o := range outcomes {
		mergeOutcome(sess, phase, o)
	}
	return outcomes
}

// runLed invokes the lead worker first so it can set phase parameters on
// the blackboard, then runs the rest sequentially.
func (sc *scheduler) runLed(ctx context.Context, sess *Session, phase, lead string, workers []string) []WorkerOutcome {
	leadOutcome := sc.invokeOne(ctx, sess, phase, lead)
	mergeOutcome(sess, phase, leadOutcome)

	rest := make([]string, 0, len(workers))
	for _, w := range workers {
		if w != lead {
			rest = append(rest, w)
		}
	}
	outcomes := append([]WorkerOutcome{leadOutcome}, sc.runSequential(ctx, sess, phase, rest)...)
	return outcomes
}

// invokeOne runs a single worker with its own timeout. A panicking handler
// counts as a failed entry for that worker only.
func (sc *scheduler) invokeOne(ctx context.Context, sess *Session, phase, worker string) (outcome WorkerOutcome) {
	start := time.Now()
	outcome = WorkerOutcome{Worker: worker}

	defer func() {
		outcome.Duration = time.Since(start)
		if r := recover(); r != nil {
			outcome.OK = false
			outcome.Output = nil
			outcome.Error = (&InvocationError{Worker: worker, Phase: phase, Err: fmt.Errorf("panic: %v", r)}).Error()
			sc.logger.Error("worker invocation panicked",
				zap.String("worker", worker), zap.String("phase", phase), zap.Any("panic", r))
		}
	}()

	ictx, cancel := context.WithTimeout(ctx, sc.timeout)
	defer cancel()

	inv, err := sc.invoker.Invoke(ictx, worker, sess.Task, sess.KnowledgeSnapshot())
	if err != nil {
		outcome.OK = false
		outcome.Error = (&InvocationError{Worker: worker, Phase: phase, Err: err}).Error()
		sc.logger.Warn("worker invocation failed",
			zap.String("worker", worker), zap.String("phase", phase), zap.Error(err))
		return outcome
	}

	outcome.OK = true
	outcome.Output = inv.Output
	outcome.QualityHints = inv.QualityHints
	return outcome
}

// mergeOutcome writes a successful worker's outputs onto the blackboard,
// namespaced by phase and worker so the append-only rule cannot collide.
func mergeOutcome(sess *Session, phase string, o WorkerOutcome) {
	if !o.OK {
		return
	}
	for k, v := range o.Output {
		_ = sess.PutKnowledge(phase+"."+o.Worker+"."+k, v)
	}
}
