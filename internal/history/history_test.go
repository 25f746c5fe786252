package history

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	tcpg "github.com/testcontainers/testcontainers-go/modules/postgres"
	"go.uber.org/zap"

	"github.com/nidhogg/foreman/internal/orchestrator"
	"github.com/nidhogg/foreman/internal/router"
	"github.com/nidhogg/foreman/internal/task"
)

// newTestStore starts a PostgreSQL testcontainer, applies the repo
// migrations and returns a connected store.
func newTestStore(t *testing.T) *Store {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping container-backed test in short mode")
	}
	ctx := context.Background()

	container, err := tcpg.Run(ctx, "postgres:16-alpine",
		tcpg.WithDatabase("foreman_test"),
		tcpg.WithUsername("test"),
		tcpg.WithPassword("test"),
		tcpg.BasicWaitStrategies(),
	)
	if err != nil {
		t.Fatalf("start postgres: %v", err)
	}
	t.Cleanup(func() { container.Terminate(ctx) })

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("pg connection string: %v", err)
	}

	s, err := New(dsn, zap.NewNop())
	if err != nil {
		t.Fatalf("store: %v", err)
	}
	t.Cleanup(s.Close)

	if err := s.Migrate(ctx, "../../migrations"); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return s
}

func TestMigrateAppliesFilesInOrder(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	// The second file depends on the first; lexical ordering must hold,
	// and files that are not .up.sql must be ignored.
	dir := t.TempDir()
	files := map[string]string{
		"0002_seed.up.sql":    `INSERT INTO migrate_order_probe (n) VALUES (1);`,
		"0001_table.up.sql":   `CREATE TABLE migrate_order_probe (n INT);`,
		"0001_table.down.sql": `DROP TABLE migrate_order_probe;`,
		"notes.txt":           `not sql`,
	}
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}

	if err := s.Migrate(ctx, dir); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	var n int
	if err := s.db.QueryRow(ctx, `SELECT count(*) FROM migrate_order_probe`).Scan(&n); err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 1 {
		t.Errorf("got %d seed rows, want 1", n)
	}
}

func TestMigrateIsRerunnable(t *testing.T) {
	s := newTestStore(t)
	if err := s.Migrate(context.Background(), "../../migrations"); err != nil {
		t.Fatalf("second migrate: %v", err)
	}
}

func TestRoutingRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	decisions := []router.Decision{
		{
			Task:           task.Task{ID: "t-1", Description: "fix the login outage"},
			AssignedWorker: "backend",
			Priority:       task.PriorityUrgent,
			Trace:          []router.ScoreContribution{{Reason: "primary command \"fix\"", Points: 100}},
		},
		{
			Task:            task.Task{Description: "design the settings page"},
			AssignedWorker:  "design",
			Priority:        task.PriorityNormal,
			HandoffRequired: true,
			Handoff:         &router.Handoff{FromWorker: "strategy", ToWorker: "design"},
		},
	}
	for _, d := range decisions {
		if err := s.AppendRouting(ctx, d); err != nil {
			t.Fatalf("append %q: %v", d.AssignedWorker, err)
		}
		time.Sleep(10 * time.Millisecond) // distinct created_at for ordering
	}

	records, err := s.RecentRouting(ctx, 10)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("got %d records, want 2", len(records))
	}

	// Newest first.
	if records[0].AssignedWorker != "design" || records[1].AssignedWorker != "backend" {
		t.Errorf("unexpected order: %s, %s", records[0].AssignedWorker, records[1].AssignedWorker)
	}
	if !records[0].HandoffRequired {
		t.Error("handoff flag lost")
	}
	if records[1].ID != "t-1" {
		t.Errorf("explicit task id lost: %q", records[1].ID)
	}
	if records[1].TaskDescription != "fix the login outage" || records[1].Priority != "urgent" {
		t.Errorf("indexed columns lost: %+v", records[1])
	}

	// The full decision survives in the payload.
	var back router.Decision
	if err := json.Unmarshal(records[1].Payload, &back); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if len(back.Trace) != 1 || back.Trace[0].Points != 100 {
		t.Errorf("trace lost in payload: %+v", back.Trace)
	}
}

func TestRoutingLimit(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		d := router.Decision{
			Task:           task.Task{Description: "review the rollout"},
			AssignedWorker: "strategy",
			Priority:       task.PriorityNormal,
		}
		if err := s.AppendRouting(ctx, d); err != nil {
			t.Fatalf("append %d: %v", i, err)
		}
	}

	records, err := s.RecentRouting(ctx, 2)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(records) != 2 {
		t.Errorf("got %d records, want limit 2", len(records))
	}

	// Non-positive limit falls back to the default and returns everything.
	records, err = s.RecentRouting(ctx, 0)
	if err != nil {
		t.Fatalf("recent default: %v", err)
	}
	if len(records) != 3 {
		t.Errorf("got %d records, want 3", len(records))
	}
}

func TestWorkflowRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	results := []orchestrator.Result{
		{
			SessionID: "11111111-1111-1111-1111-111111111111",
			Pattern:   orchestrator.PatternSequential,
			Success:   true,
			QualityMetrics: map[string]float64{
				"coherence": 0.92,
			},
		},
		{
			SessionID:     "22222222-2222-2222-2222-222222222222",
			Pattern:       orchestrator.PatternParallel,
			Success:       false,
			FailureReason: "quality gate \"coherence\" failed: score 0.70 below threshold 0.80",
		},
	}
	for _, r := range results {
		if err := s.AppendWorkflow(ctx, r); err != nil {
			t.Fatalf("append %s: %v", r.SessionID, err)
		}
		time.Sleep(10 * time.Millisecond)
	}

	records, err := s.RecentWorkflows(ctx, 10)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("got %d records, want 2", len(records))
	}
	if records[0].Success || records[0].FailureReason == "" {
		t.Errorf("failed run not recorded faithfully: %+v", records[0])
	}
	if records[1].Pattern != "sequential" || !records[1].Success {
		t.Errorf("completed run lost: %+v", records[1])
	}

	var back orchestrator.Result
	if err := json.Unmarshal(records[1].Payload, &back); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if back.QualityMetrics["coherence"] != 0.92 {
		t.Errorf("metrics lost in payload: %+v", back.QualityMetrics)
	}
}
