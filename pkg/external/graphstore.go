package external

import (
	"context"
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/sirupsen/logrus"

	"github.com/drug-repurposing-server/internal/domain"
)

// GraphStore persists the disease-target-candidate graph to Neo4j. The
// store is optional: when disabled every write is a no-op, so the pipeline
// runs without a graph database.
type GraphStore struct {
	driver   neo4j.DriverWithContext
	database string
	enabled  bool
	logger   *logrus.Logger
}

// NewGraphStore connects to Neo4j when the graph database is enabled.
// Connectivity is verified at startup because a configured database that is
// unreachable is a deployment error.
func NewGraphStore(config domain.GraphDBConfig, logger *logrus.Logger) (*GraphStore, error) {
	if !config.Enabled {
		return &GraphStore{enabled: false, logger: logger}, nil
	}

	driver, err := neo4j.NewDriverWithContext(
		config.URI,
		neo4j.BasicAuth(config.Username, config.Password, ""),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create Neo4j driver: %w", err)
	}

	if err := driver.VerifyConnectivity(context.Background()); err != nil {
		return nil, fmt.Errorf("failed to connect to Neo4j: %w", err)
	}

	return &GraphStore{
		driver:   driver,
		database: config.Database,
		enabled:  true,
		logger:   logger,
	}, nil
}

// Enabled reports whether graph writes are active
func (s *GraphStore) Enabled() bool {
	return s != nil && s.enabled
}

// Close releases the driver
func (s *GraphStore) Close(ctx context.Context) error {
	if !s.Enabled() {
		return nil
	}
	return s.driver.Close(ctx)
}

func (s *GraphStore) run(ctx context.Context, cypher string, params map[string]interface{}) error {
	if !s.Enabled() {
		return nil
	}

	session := s.driver.NewSession(ctx, neo4j.SessionConfig{DatabaseName: s.database})
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (interface{}, error) {
		return tx.Run(ctx, cypher, params)
	})
	return err
}

// UpsertDisease merges a disease node by ID
func (s *GraphStore) UpsertDisease(ctx context.Context, diseaseID, name string) error {
	return s.run(ctx, `
		MERGE (d:Disease {id: $id})
		SET d.name = $name, d.updated_at = timestamp()
	`, map[string]interface{}{"id": diseaseID, "name": name})
}

// UpsertTarget merges a target node by ID
func (s *GraphStore) UpsertTarget(ctx context.Context, targetID, symbol, name string) error {
	return s.run(ctx, `
		MERGE (t:Target {id: $id})
		SET t.symbol = $symbol, t.name = $name, t.updated_at = timestamp()
	`, map[string]interface{}{"id": targetID, "symbol": symbol, "name": name})
}

// UpsertCandidate merges a candidate node by ID
func (s *GraphStore) UpsertCandidate(ctx context.Context, candidateID, name, stage, source string) error {
	return s.run(ctx, `
		MERGE (c:Candidate {id: $id})
		SET c.name = $name, c.stage = $stage, c.source = $source, c.updated_at = timestamp()
	`, map[string]interface{}{"id": candidateID, "name": name, "stage": stage, "source": source})
}

// LinkTargetDisease merges the ASSOCIATED_WITH edge. The stored score is
// the association score plus the mechanism score.
func (s *GraphStore) LinkTargetDisease(ctx context.Context, targetID, diseaseID string, score, mechanismScore float64, evidence string) error {
	return s.run(ctx, `
		MATCH (t:Target {id: $target_id})
		MATCH (d:Disease {id: $disease_id})
		MERGE (t)-[r:ASSOCIATED_WITH]->(d)
		SET r.score = $score + $mechanism_score, r.evidence = $evidence, r.updated_at = timestamp()
	`, map[string]interface{}{
		"target_id":       targetID,
		"disease_id":      diseaseID,
		"score":           score,
		"mechanism_score": mechanismScore,
		"evidence":        evidence,
	})
}

// LinkCandidateTarget merges the MODULATES edge, matching the target by
// gene symbol.
func (s *GraphStore) LinkCandidateTarget(ctx context.Context, candidateID, targetSymbol, modulationType string, score float64) error {
	return s.run(ctx, `
		MATCH (c:Candidate {id: $candidate_id})
		MATCH (t:Target) WHERE t.symbol = $target_symbol
		MERGE (c)-[r:MODULATES]->(t)
		SET r.type = $type, r.score = $score, r.updated_at = timestamp()
	`, map[string]interface{}{
		"candidate_id":  candidateID,
		"target_symbol": targetSymbol,
		"type":          modulationType,
		"score":         score,
	})
}

// CandidateBatch is one row of a batch candidate write
type CandidateBatch struct {
	CandidateID  string `json:"candidate_id"`
	Name         string `json:"name"`
	Stage        string `json:"stage"`
	Source       string `json:"source"`
	TargetSymbol string `json:"target_symbol"`
	Mechanism    string `json:"mechanism"`
}

// BatchCreateCandidates writes a candidate batch in one transaction
func (s *GraphStore) BatchCreateCandidates(ctx context.Context, batch []CandidateBatch) error {
	if !s.Enabled() || len(batch) == 0 {
		return nil
	}

	rows := make([]map[string]interface{}, 0, len(batch))
	for _, c := range batch {
		rows = append(rows, map[string]interface{}{
			"candidate_id":  c.CandidateID,
			"name":          c.Name,
			"stage":         c.Stage,
			"source":        c.Source,
			"target_symbol": c.TargetSymbol,
			"mechanism":     c.Mechanism,
		})
	}

	err := s.run(ctx, `
		UNWIND $candidates AS cand
		MERGE (d:Drug {id: cand.candidate_id})
		SET d.name = cand.name,
		    d.stage = cand.stage,
		    d.source = cand.source
		WITH d, cand
		MATCH (t:Target {symbol: cand.target_symbol})
		MERGE (d)-[r:TARGETS]->(t)
		SET r.mechanism = cand.mechanism,
		    r.score = 0.5
	`, map[string]interface{}{"candidates": rows})
	if err != nil {
		return err
	}

	s.logger.WithField("count", len(batch)).Debug("Created candidate batch in graph")
	return nil
}
