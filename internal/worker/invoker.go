// Package worker provides the built-in invoker used when no external
// worker runtime is attached. Workers echo a structured acknowledgement
// derived from their profile; real output production lives outside this
// process.
package worker

import (
	"context"
	"fmt"
	"strings"

	"github.com/nidhogg/foreman/internal/orchestrator"
	"github.com/nidhogg/foreman/internal/registry"
	"github.com/nidhogg/foreman/internal/task"
)

// StaticInvoker produces deterministic profile-derived output for each
// worker. It satisfies orchestrator.Invoker.
type StaticInvoker struct {
	reg *registry.Registry
}

// NewStaticInvoker builds an invoker over the registry.
func NewStaticInvoker(reg *registry.Registry) *StaticInvoker {
	return &StaticInvoker{reg: reg}
}

// Invoke returns a canned contribution for the worker. Unknown workers
// error the same way a missing external runtime would.
func (si *StaticInvoker) Invoke(ctx context.Context, worker string, t task.Task, knowledge map[string]string) (*orchestrator.Invocation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	profile, ok := si.reg.Get(worker)
	if !ok {
		return nil, fmt.Errorf("no runtime for worker %q", worker)
	}

	output := map[string]string{
		"summary": fmt.Sprintf("%s reviewed %q", profile.Name, t.Description),
	}
	if len(profile.CoreActivities) > 0 {
		output["approach"] = strings.Join(profile.CoreActivities, "; ")
	}

	hints := make(map[string]float64, len(profile.QualityFocus))
	for _, dim := range profile.QualityFocus {
		hints[dim] = 0.9
	}
	return &orchestrator.Invocation{Output: output, QualityHints: hints}, nil
}
