package orchestrator

import (
	"encoding/json"
	"testing"

	"github.com/nidhogg/foreman/internal/task"
)

func newTestSession() *Session {
	plan, _ := builtinPlan(PatternSequential)
	return NewSession(task.Task{Description: "ship the payment flow"}, plan)
}

func TestStatusIsMonotonic(t *testing.T) {
	s := newTestSession()
	if s.Status() != StatusInitializing {
		t.Fatalf("got %s, want initializing", s.Status())
	}

	if err := s.SetStatus(StatusRunning); err != nil {
		t.Fatalf("initializing -> running: %v", err)
	}
	if err := s.SetStatus(StatusInitializing); err == nil {
		t.Error("running -> initializing should be rejected")
	}
	if err := s.SetStatus(StatusCompleted); err != nil {
		t.Fatalf("running -> completed: %v", err)
	}
	if err := s.SetStatus(StatusFailed); err == nil {
		t.Error("completed is terminal; moving to failed should be rejected")
	}
	if err := s.SetStatus(StatusRunning); err == nil {
		t.Error("completed -> running should be rejected")
	}
	if s.Status() != StatusCompleted {
		t.Errorf("status drifted to %s", s.Status())
	}
}

func TestUnknownStatusRejected(t *testing.T) {
	s := newTestSession()
	if err := s.SetStatus(Status("paused")); err == nil {
		t.Error("unknown status should be rejected")
	}
}

func TestKnowledgeIsAppendOnly(t *testing.T) {
	s := newTestSession()
	if err := s.PutKnowledge("k", "v1"); err != nil {
		t.Fatalf("first write: %v", err)
	}
	if err := s.PutKnowledge("k", "v2"); err == nil {
		t.Fatal("rewrite should be rejected")
	}
	if got := s.KnowledgeSnapshot()["k"]; got != "v1" {
		t.Errorf("got %q, want the original value", got)
	}

	// Snapshots are copies, not views.
	snap := s.KnowledgeSnapshot()
	snap["k"] = "mutated"
	if got := s.KnowledgeSnapshot()["k"]; got != "v1" {
		t.Errorf("snapshot mutation leaked into the session: %q", got)
	}
}

func TestGateSnapshotReflectsSession(t *testing.T) {
	s := newTestSession()
	_ = s.PutKnowledge("k", "v")
	s.AppendPhase(PhaseResult{
		Phase: "discovery",
		Outcomes: []WorkerOutcome{
			{Worker: "strategy", OK: true, Output: map[string]string{"summary": "done"}},
		},
	})

	snap := s.GateSnapshot()
	if snap.SessionID != s.ID {
		t.Errorf("got session %q, want %q", snap.SessionID, s.ID)
	}
	if snap.Objective != "ship the payment flow" {
		t.Errorf("objective lost: %q", snap.Objective)
	}
	if len(snap.Phases) != 1 || snap.Phases[0].Name != "discovery" {
		t.Fatalf("phase log not reflected: %+v", snap.Phases)
	}
	e := snap.Phases[0].Entries[0]
	if e.Worker != "strategy" || !e.OK || e.Output["summary"] != "done" {
		t.Errorf("entry not carried over: %+v", e)
	}
	if snap.Knowledge["k"] != "v" {
		t.Errorf("knowledge not carried over: %+v", snap.Knowledge)
	}
}

func TestArchiveRoundTrip(t *testing.T) {
	s := newTestSession()
	_ = s.SetStatus(StatusRunning)
	_ = s.PutKnowledge("discovery.strategy.summary", "scoped")
	s.AppendPhase(PhaseResult{
		Phase:    "discovery",
		Outcomes: []WorkerOutcome{{Worker: "strategy", OK: true}},
	})
	_ = s.SetStatus(StatusCompleted)

	a := s.Archive()
	data, err := json.Marshal(a)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	back, err := ArchiveFromJSON(data)
	if err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	if back.ID != s.ID || back.Status != StatusCompleted || back.Pattern != PatternSequential {
		t.Errorf("archive identity lost: %+v", back)
	}
	if back.Knowledge["discovery.strategy.summary"] != "scoped" {
		t.Errorf("knowledge lost: %+v", back.Knowledge)
	}
	if len(back.PhaseLog) != 1 || back.PhaseLog[0].Outcomes[0].Worker != "strategy" {
		t.Errorf("phase log lost: %+v", back.PhaseLog)
	}
}

func TestArchiveFromJSONRejectsGarbage(t *testing.T) {
	if _, err := ArchiveFromJSON([]byte("{nope")); err == nil {
		t.Error("expected decode error")
	}
}
