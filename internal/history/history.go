// Package history persists an append-only log of routing decisions and
// workflow results in PostgreSQL for later inspection and metrics.
package history

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/nidhogg/foreman/internal/orchestrator"
	"github.com/nidhogg/foreman/internal/router"
	"go.uber.org/zap"
)

// Store wraps a PostgreSQL connection pool.
type Store struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

// New creates a Store with a pgx connection pool.
func New(dsn string, logger *zap.Logger) (*Store, error) {
	pool, err := pgxpool.New(context.Background(), dsn)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(context.Background()); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	logger.Info("PostgreSQL connected")
	return &Store{db: pool, logger: logger}, nil
}

// Migrate reads and executes all .up.sql files from the migrations directory.
func (s *Store) Migrate(ctx context.Context, migrationsDir string) error {
	entries, err := os.ReadDir(migrationsDir)
	if err != nil {
		return fmt.Errorf("read migrations dir: %w", err)
	}

	var files []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".up.sql") {
			files = append(files, e.Name())
		}
	}
	sort.Strings(files)

	for _, f := range files {
		data, err := os.ReadFile(filepath.Join(migrationsDir, f))
		if err != nil {
			return fmt.Errorf("read migration %s: %w", f, err)
		}
		if _, err := s.db.Exec(ctx, string(data)); err != nil {
			return fmt.Errorf("exec migration %s: %w", f, err)
		}
		s.logger.Info("Migration applied", zap.String("file", f))
	}
	return nil
}

// RoutingRecord is one flat history row for a routing decision.
type RoutingRecord struct {
	ID              string          `json:"id"`
	TaskDescription string          `json:"task_description"`
	AssignedWorker  string          `json:"assigned_worker"`
	Priority        string          `json:"priority"`
	HandoffRequired bool            `json:"handoff_required"`
	Payload         json.RawMessage `json:"payload"`
	CreatedAt       time.Time       `json:"created_at"`
}

// WorkflowRecord is one flat history row for a workflow result.
type WorkflowRecord struct {
	SessionID     string          `json:"session_id"`
	Pattern       string          `json:"pattern"`
	Success       bool            `json:"success"`
	FailureReason string          `json:"failure_reason,omitempty"`
	Payload       json.RawMessage `json:"payload"`
	CreatedAt     time.Time       `json:"created_at"`
}

// AppendRouting stores a routing decision. The full decision is kept as a
// JSON payload; indexed columns carry the fields queried most.
func (s *Store) AppendRouting(ctx context.Context, d router.Decision) error {
	payload, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("marshal routing decision: %w", err)
	}
	id := d.Task.ID
	if id == "" {
		id = uuid.New().String()
	}
	_, err = s.db.Exec(ctx, `
		INSERT INTO routing_decisions (id, task_description, assigned_worker, priority, handoff_required, payload)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		id, d.Task.Description, d.AssignedWorker, string(d.Priority), d.HandoffRequired, payload,
	)
	if err != nil {
		return fmt.Errorf("append routing decision: %w", err)
	}
	return nil
}

// AppendWorkflow stores a workflow result.
func (s *Store) AppendWorkflow(ctx context.Context, r orchestrator.Result) error {
	payload, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("marshal workflow result: %w", err)
	}
	_, err = s.db.Exec(ctx, `
		INSERT INTO workflow_results (session_id, pattern, success, failure_reason, payload)
		VALUES ($1, $2, $3, $4, $5)`,
		r.SessionID, string(r.Pattern), r.Success, r.FailureReason, payload,
	)
	if err != nil {
		return fmt.Errorf("append workflow result: %w", err)
	}
	return nil
}

// RecentRouting returns the most recent routing decisions, newest first.
func (s *Store) RecentRouting(ctx context.Context, limit int) ([]RoutingRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.Query(ctx, `
		SELECT id, task_description, assigned_worker, priority, handoff_required, payload, created_at
		FROM routing_decisions
		ORDER BY created_at DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("query routing history: %w", err)
	}
	defer rows.Close()

	var records []RoutingRecord
	for rows.Next() {
		var rec RoutingRecord
		if err := rows.Scan(&rec.ID, &rec.TaskDescription, &rec.AssignedWorker,
			&rec.Priority, &rec.HandoffRequired, &rec.Payload, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan routing record: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// RecentWorkflows returns the most recent workflow results, newest first.
func (s *Store) RecentWorkflows(ctx context.Context, limit int) ([]WorkflowRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.Query(ctx, `
		SELECT session_id, pattern, success, failure_reason, payload, created_at
		FROM workflow_results
		ORDER BY created_at DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("query workflow history: %w", err)
	}
	defer rows.Close()

	var records []WorkflowRecord
	for rows.Next() {
		var rec WorkflowRecord
		if err := rows.Scan(&rec.SessionID, &rec.Pattern, &rec.Success,
			&rec.FailureReason, &rec.Payload, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan workflow record: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// Close shuts down the connection pool.
func (s *Store) Close() {
	s.db.Close()
}
