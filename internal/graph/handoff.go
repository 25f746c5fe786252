// Package graph records worker-to-worker handoff edges in Neo4j so the
// collaboration topology can be inspected over time. It is an optional
// observability layer; routing never reads from it.
package graph

import (
	"context"
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"go.uber.org/zap"
)

// HandoffEdge is one directed handoff relationship.
type HandoffEdge struct {
	FromWorker string `json:"from_worker"`
	ToWorker   string `json:"to_worker"`
	Count      int64  `json:"count"`
	Conflicts  int64  `json:"conflicts"`
}

// HandoffGraph manages handoff relationships stored in Neo4j.
type HandoffGraph struct {
	driver neo4j.DriverWithContext
	logger *zap.Logger
}

// New connects to Neo4j.
func New(uri, user, password string, logger *zap.Logger) (*HandoffGraph, error) {
	driver, err := neo4j.NewDriverWithContext(uri, neo4j.BasicAuth(user, password, ""))
	if err != nil {
		return nil, fmt.Errorf("neo4j driver: %w", err)
	}
	if err := driver.VerifyConnectivity(context.Background()); err != nil {
		return nil, fmt.Errorf("neo4j connectivity: %w", err)
	}
	logger.Info("Neo4j connected")
	return &HandoffGraph{driver: driver, logger: logger}, nil
}

// RecordHandoff increments the edge between two workers, accumulating the
// number of conflicts detected on the decision.
func (g *HandoffGraph) RecordHandoff(ctx context.Context, from, to string, conflicts int) error {
	session := g.driver.NewSession(ctx, neo4j.SessionConfig{})
	defer session.Close(ctx)

	_, err := session.Run(ctx,
		`MERGE (a:Worker {name: $from})
		 MERGE (b:Worker {name: $to})
		 MERGE (a)-[r:HANDS_OFF]->(b)
		 ON CREATE SET r.count = 1, r.conflicts = $conflicts, r.updated_at = datetime()
		 ON MATCH SET r.count = r.count + 1, r.conflicts = r.conflicts + $conflicts, r.updated_at = datetime()`,
		map[string]interface{}{
			"from":      from,
			"to":        to,
			"conflicts": conflicts,
		})
	if err != nil {
		return fmt.Errorf("record handoff: %w", err)
	}
	return nil
}

// TopTargets returns the workers from hands off to most, by edge count.
func (g *HandoffGraph) TopTargets(ctx context.Context, from string, limit int) ([]HandoffEdge, error) {
	if limit <= 0 {
		limit = 10
	}
	session := g.driver.NewSession(ctx, neo4j.SessionConfig{})
	defer session.Close(ctx)

	result, err := session.Run(ctx,
		`MATCH (a:Worker {name: $from})-[r:HANDS_OFF]->(b:Worker)
		 RETURN b.name AS target, r.count AS count, r.conflicts AS conflicts
		 ORDER BY r.count DESC
		 LIMIT $limit`,
		map[string]interface{}{
			"from":  from,
			"limit": limit,
		})
	if err != nil {
		return nil, fmt.Errorf("query handoff targets: %w", err)
	}

	var edges []HandoffEdge
	for result.Next(ctx) {
		rec := result.Record()
		target, _ := rec.Get("target")
		count, _ := rec.Get("count")
		conflicts, _ := rec.Get("conflicts")

		edge := HandoffEdge{FromWorker: from}
		if s, ok := target.(string); ok {
			edge.ToWorker = s
		}
		if n, ok := count.(int64); ok {
			edge.Count = n
		}
		if n, ok := conflicts.(int64); ok {
			edge.Conflicts = n
		}
		edges = append(edges, edge)
	}
	return edges, result.Err()
}

// Close shuts down the driver.
func (g *HandoffGraph) Close(ctx context.Context) error {
	return g.driver.Close(ctx)
}
