package graph

import (
	"context"
	"testing"

	tcneo4j "github.com/testcontainers/testcontainers-go/modules/neo4j"
	"go.uber.org/zap"
)

// newTestGraph starts a Neo4j testcontainer and returns a connected graph.
func newTestGraph(t *testing.T) *HandoffGraph {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping container-backed test in short mode")
	}
	ctx := context.Background()

	container, err := tcneo4j.Run(ctx, "neo4j:5-community",
		tcneo4j.WithoutAuthentication(),
	)
	if err != nil {
		t.Fatalf("start neo4j: %v", err)
	}
	t.Cleanup(func() { container.Terminate(ctx) })

	uri, err := container.BoltUrl(ctx)
	if err != nil {
		t.Fatalf("neo4j bolt url: %v", err)
	}

	g, err := New(uri, "", "", zap.NewNop())
	if err != nil {
		t.Fatalf("graph: %v", err)
	}
	t.Cleanup(func() { g.Close(ctx) })
	return g
}

func TestRecordHandoffAccumulates(t *testing.T) {
	g := newTestGraph(t)
	ctx := context.Background()

	// Same edge three times: count accumulates, conflicts sum across calls.
	handoffs := []struct {
		from, to  string
		conflicts int
	}{
		{"design", "backend", 1},
		{"design", "backend", 1},
		{"design", "backend", 0},
		{"design", "quality", 0},
	}
	for _, h := range handoffs {
		if err := g.RecordHandoff(ctx, h.from, h.to, h.conflicts); err != nil {
			t.Fatalf("record %s -> %s: %v", h.from, h.to, err)
		}
	}

	edges, err := g.TopTargets(ctx, "design", 10)
	if err != nil {
		t.Fatalf("top targets: %v", err)
	}
	if len(edges) != 2 {
		t.Fatalf("got %d edges, want 2: %+v", len(edges), edges)
	}

	// Ordered by count descending.
	if edges[0].ToWorker != "backend" || edges[0].Count != 3 {
		t.Errorf("got %+v, want backend with count 3", edges[0])
	}
	if edges[0].Conflicts != 2 {
		t.Errorf("got %d conflicts, want 2", edges[0].Conflicts)
	}
	if edges[1].ToWorker != "quality" || edges[1].Count != 1 {
		t.Errorf("got %+v, want quality with count 1", edges[1])
	}
	if edges[0].FromWorker != "design" {
		t.Errorf("from worker lost: %+v", edges[0])
	}
}

func TestTopTargetsRespectsLimit(t *testing.T) {
	g := newTestGraph(t)
	ctx := context.Background()

	for _, to := range []string{"design", "backend", "quality"} {
		if err := g.RecordHandoff(ctx, "strategy", to, 0); err != nil {
			t.Fatalf("record: %v", err)
		}
	}

	edges, err := g.TopTargets(ctx, "strategy", 2)
	if err != nil {
		t.Fatalf("top targets: %v", err)
	}
	if len(edges) != 2 {
		t.Errorf("got %d edges, want limit 2", len(edges))
	}

	// Non-positive limit falls back to the default.
	edges, err = g.TopTargets(ctx, "strategy", 0)
	if err != nil {
		t.Fatalf("top targets default: %v", err)
	}
	if len(edges) != 3 {
		t.Errorf("got %d edges, want 3", len(edges))
	}
}

func TestTopTargetsUnknownWorkerIsEmpty(t *testing.T) {
	g := newTestGraph(t)

	edges, err := g.TopTargets(context.Background(), "ghost", 10)
	if err != nil {
		t.Fatalf("top targets: %v", err)
	}
	if len(edges) != 0 {
		t.Errorf("got %d edges, want none", len(edges))
	}
}
