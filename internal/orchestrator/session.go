package orchestrator

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/nidhogg/foreman/internal/gate"
	"github.com/nidhogg/foreman/internal/task"
)

// Session is the mutable state threaded through one orchestration run. It
// is owned by exactly one run and never shared across tasks; cross-session
// data only flows through the immutable registry.
type Session struct {
	ID           string
	Task         task.Task
	Pattern      Pattern
	Participants []string
	CreatedAt    time.Time

	mu        sync.Mutex
	status    Status
	phaseLog  []PhaseResult
	knowledge map[string]string
	cancelled bool
}

// NewSession creates a session in the initializing state.
func NewSession(t task.Task, plan Plan) *Session {
	return &Session{
		ID:           uuid.New().String(),
		Task:         t,
		Pattern:      plan.Pattern,
		Participants: append([]string(nil), plan.Roles...),
		CreatedAt:    time.Now(),
		status:       StatusInitializing,
		knowledge:    make(map[string]string),
	}
}

// Status returns the current lifecycle state.
func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// SetStatus advances the lifecycle state. Moving backwards or out of a
// terminal state is rejected.
func (s *Session) SetStatus(next Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := statusRank[s.status]
	nxt, ok2 := statusRank[next]
	if !ok || !ok2 {
		return fmt.Errorf("unknown session status %q", next)
	}
	if nxt <= cur && next != s.status {
		return fmt.Errorf("session %s cannot transition %s -> %s", s.ID, s.status, next)
	}
	if (s.status == StatusCompleted || s.status == StatusFailed) && next != s.status {
		return fmt.Errorf("session %s is already terminal (%s)", s.ID, s.status)
	}
	s.status = next
	return nil
}

// PutKnowledge appends a key to the shared blackboard. The blackboard is
// append-only: rewriting an existing key is rejected.
func (s *Session) PutKnowledge(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.knowledge[key]; exists {
		return fmt.Errorf("shared knowledge key %q already written", key)
	}
	s.knowledge[key] = value
	return nil
}

// KnowledgeSnapshot returns a copy of the blackboard for a worker or gate
// to read without holding the session lock.
func (s *Session) KnowledgeSnapshot() map[string]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := make(map[string]string, len(s.knowledge))
	for k, v := range s.knowledge {
		cp[k] = v
	}
	return cp
}

// AppendPhase records a completed phase. Callers append strictly in plan
// order.
func (s *Session) AppendPhase(pr PhaseResult) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.phaseLog = append(s.phaseLog, pr)
}

// PhaseLog returns a copy of the completed phases in execution order.
func (s *Session) PhaseLog() []PhaseResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := make([]PhaseResult, len(s.phaseLog))
	copy(cp, s.phaseLog)
	return cp
}

// Cancel requests cooperative cancellation. It is honored at the next
// phase boundary; in-flight worker invocations run to completion but the
// interrupted phase's result is discarded and the run fails before any
// further phase starts.
func (s *Session) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancelled = true
}

// Cancelled reports whether cancellation was requested.
func (s *Session) Cancelled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cancelled
}

// GateSnapshot converts the session into the read-only view gates score.
func (s *Session) GateSnapshot() gate.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	phases := make([]gate.PhaseObservation, len(s.phaseLog))
	for i, pr := range s.phaseLog {
		phases[i] = phaseObservation(pr)
	}

	knowledge := make(map[string]string, len(s.knowledge))
	for k, v := range s.knowledge {
		knowledge[k] = v
	}

	return gate.Snapshot{
		SessionID:    s.ID,
		Objective:    s.Task.Description,
		Participants: append([]string(nil), s.Participants...),
		Phases:       phases,
		Knowledge:    knowledge,
	}
}

// Archive is the serializable read-only view of a finished session, kept
// for audit and history.
type Archive struct {
	ID           string            `json:"id"`
	Task         task.Task         `json:"task"`
	Pattern      Pattern           `json:"pattern"`
	Participants []string          `json:"participants"`
	Status       Status            `json:"status"`
	PhaseLog     []PhaseResult     `json:"phase_log"`
	Knowledge    map[string]string `json:"shared_knowledge"`
	CreatedAt    time.Time         `json:"created_at"`
}

// Archive snapshots the session into its serializable form.
func (s *Session) Archive() Archive {
	s.mu.Lock()
	defer s.mu.Unlock()

	log := make([]PhaseResult, len(s.phaseLog))
	copy(log, s.phaseLog)
	knowledge := make(map[string]string, len(s.knowledge))
	for k, v := range s.knowledge {
		knowledge[k] = v
	}
	return Archive{
		ID:           s.ID,
		Task:         s.Task,
		Pattern:      s.Pattern,
		Participants: append([]string(nil), s.Participants...),
		Status:       s.status,
		PhaseLog:     log,
		Knowledge:    knowledge,
		CreatedAt:    s.CreatedAt,
	}
}

// ArchiveFromJSON reloads a serialized archive.
func ArchiveFromJSON(data []byte) (Archive, error) {
	var a Archive
	if err := json.Unmarshal(data, &a); err != nil {
		return Archive{}, fmt.Errorf("decode session archive: %w", err)
	}
	return a, nil
}
