// Package graph persists enriched nodes, relationships, and their source
// documents to Neo4j.
package graph

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/BiographAI/biograph/engine/domain"
	"github.com/BiographAI/biograph/pkg/repo"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

// cypherResult is the minimal interface needed from a neo4j result.
type cypherResult interface {
	Next(ctx context.Context) bool
	Record() *neo4j.Record
}

// cypherRunner is the minimal interface needed to run a statement within a
// session or a managed transaction.
type cypherRunner interface {
	Run(ctx context.Context, cypher string, params map[string]any) (cypherResult, error)
}

// graphSession is the minimal interface needed from a neo4j session.
type graphSession interface {
	cypherRunner
	Close(ctx context.Context) error
	ExecuteWrite(ctx context.Context, work func(tx cypherRunner) (any, error)) (any, error)
}

// GraphStore provides graph operations for the enrichment pipeline's
// persisted entities.
type GraphStore struct {
	driver     neo4j.DriverWithContext
	sources    *repo.Neo4jRepo[domain.Source, string]
	log        *slog.Logger
	newSession func(ctx context.Context) graphSession // test seam
}

// New creates a new GraphStore.
func New(driver neo4j.DriverWithContext) *GraphStore {
	return &GraphStore{
		driver:  driver,
		sources: newSourceRepo(driver),
		log:     slog.Default(),
	}
}

// EnsureSchema creates the uniqueness constraints the pipeline's upserts
// rely on: one source_id per Source, and one ontology_id per node within
// each entity label.
func (g *GraphStore) EnsureSchema(ctx context.Context) error {
	sess := g.session(ctx)
	defer sess.Close(ctx)

	stmts := []string{
		`CREATE CONSTRAINT source_id_unique IF NOT EXISTS FOR (s:Source) REQUIRE s.source_id IS UNIQUE`,
	}
	for label := range domain.NodeTypes {
		stmts = append(stmts, fmt.Sprintf(
			`CREATE CONSTRAINT ontology_id_unique_%s IF NOT EXISTS FOR (n:%s) REQUIRE n.ontology_id IS UNIQUE`,
			strings.ToLower(label), sanitizeLabel(label),
		))
	}
	for _, stmt := range stmts {
		if _, err := sess.Run(ctx, stmt, nil); err != nil {
			return fmt.Errorf("graph: ensure schema: %w", err)
		}
	}
	return nil
}

type neo4jSessionAdapter struct {
	sess neo4j.SessionWithContext
}

func (a *neo4jSessionAdapter) Run(ctx context.Context, cypher string, params map[string]any) (cypherResult, error) {
	return a.sess.Run(ctx, cypher, params)
}

func (a *neo4jSessionAdapter) Close(ctx context.Context) error { return a.sess.Close(ctx) }

func (a *neo4jSessionAdapter) ExecuteWrite(ctx context.Context, work func(tx cypherRunner) (any, error)) (any, error) {
	return a.sess.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		return work(&managedTxAdapter{tx: tx})
	})
}

type managedTxAdapter struct {
	tx neo4j.ManagedTransaction
}

func (a *managedTxAdapter) Run(ctx context.Context, cypher string, params map[string]any) (cypherResult, error) {
	return a.tx.Run(ctx, cypher, params)
}

func (g *GraphStore) session(ctx context.Context) graphSession {
	if g.newSession != nil {
		return g.newSession(ctx)
	}
	return &neo4jSessionAdapter{sess: g.driver.NewSession(ctx, neo4j.SessionConfig{})}
}

// GetSource returns a source document by its source ID.
func (g *GraphStore) GetSource(ctx context.Context, sourceID string) (domain.Source, error) {
	return g.sources.Get(ctx, sourceID)
}

// UpsertSource creates or updates a Source node.
func (g *GraphStore) UpsertSource(ctx context.Context, s domain.Source) error {
	sess := g.session(ctx)
	defer sess.Close(ctx)

	cypher := `MERGE (s:Source {source_id: $id}) SET s += $props`
	_, err := sess.Run(ctx, cypher, map[string]any{
		"id":    s.SourceID,
		"props": sourceToMap(s),
	})
	return err
}

// UpsertNode creates or updates an ontology-identified node, stamps its
// dynamic type label, and links it back to its Source via an
// EXTRACTED_FROM edge.
func (g *GraphStore) UpsertNode(ctx context.Context, n domain.EnrichedNode) error {
	sess := g.session(ctx)
	defer sess.Close(ctx)

	return g.runNodeUpsert(ctx, sess, n, time.Now().UTC().Format(time.RFC3339))
}

// runNodeUpsert executes one node upsert on runner and warns (without
// failing) when the node's Source is missing and no EXTRACTED_FROM edge
// could be created.
func (g *GraphStore) runNodeUpsert(ctx context.Context, runner cypherRunner, n domain.EnrichedNode, now string) error {
	res, err := runner.Run(ctx, upsertNodeCypher(n.Label), map[string]any{
		"id":       n.OntologyID,
		"props":    nodeToMap(n),
		"sourceID": n.SourceID,
		"now":      now,
	})
	if err != nil {
		return err
	}
	if res.Next(ctx) {
		if v, ok := res.Record().Get("source_missing"); ok {
			if missing, ok := v.(bool); ok && missing {
				g.logger().Warn("graph: no Source found for node, EXTRACTED_FROM edge not created", "ontology_id", n.OntologyID, "source_id", n.SourceID)
			}
		}
	}
	return nil
}

func (g *GraphStore) logger() *slog.Logger {
	if g.log == nil {
		return slog.Default()
	}
	return g.log
}

// UpsertRelationship creates or updates a typed edge between two
// previously-upserted nodes, looked up by their ontology identity.
func (g *GraphStore) UpsertRelationship(ctx context.Context, r domain.EnrichedRelationship) error {
	sess := g.session(ctx)
	defer sess.Close(ctx)

	_, err := sess.Run(ctx, upsertRelationshipCypher(r.Label), map[string]any{
		"from":  r.SourceOntologyID,
		"to":    r.TargetOntologyID,
		"props": relationshipToMap(r),
	})
	return err
}

// SaveBatch persists a chunk's nodes and relationships in a single
// transaction, nodes before relationships so every endpoint a relationship
// references already exists.
func (g *GraphStore) SaveBatch(ctx context.Context, nodes []domain.EnrichedNode, rels []domain.EnrichedRelationship) error {
	sess := g.session(ctx)
	defer sess.Close(ctx)

	_, err := sess.ExecuteWrite(ctx, func(tx cypherRunner) (any, error) {
		now := time.Now().UTC().Format(time.RFC3339)
		for _, n := range nodes {
			if err := g.runNodeUpsert(ctx, tx, n, now); err != nil {
				return nil, err
			}
		}
		for _, r := range rels {
			if _, err := tx.Run(ctx, upsertRelationshipCypher(r.Label), map[string]any{
				"from":  r.SourceOntologyID,
				"to":    r.TargetOntologyID,
				"props": relationshipToMap(r),
			}); err != nil {
				return nil, err
			}
		}
		return nil, nil
	})
	return err
}

// upsertNodeCypher merges the node, stamps its label, and links it to its
// Source. The Source is matched optionally so the statement always yields
// a row: a plain MATCH on a missing Source produces no rows at all, which
// would make the missing-Source signal below unobservable. The FOREACH
// guard merges the edge only when the Source exists.
func upsertNodeCypher(label string) string {
	return fmt.Sprintf(
		`MERGE (n {ontology_id: $id})
		 SET n += $props
		 SET n:%s
		 WITH n
		 OPTIONAL MATCH (s:Source {source_id: $sourceID})
		 FOREACH (src IN CASE WHEN s IS NULL THEN [] ELSE [s] END |
		   MERGE (n)-[e:%s]->(src)
		   ON CREATE SET e.extraction_date = $now)
		 RETURN s IS NULL AS source_missing`,
		sanitizeLabel(label), domain.SourceLinkRelation,
	)
}

func upsertRelationshipCypher(label string) string {
	return fmt.Sprintf(
		`MATCH (a {ontology_id: $from}), (b {ontology_id: $to})
		 MERGE (a)-[r:%s]->(b)
		 SET r += $props`,
		sanitizeRelType(label),
	)
}

// nodeToMap flattens an EnrichedNode to scalar properties. species and
// species_confidence are set only when present: species-agnostic nodes
// must not carry the property at all.
func nodeToMap(n domain.EnrichedNode) map[string]any {
	props := map[string]any{
		"ontology_id":   n.OntologyID,
		"standard_name": n.StandardName,
		"synonyms":      n.Synonyms,
		"description":   n.Description,
		"embedding":     n.Embedding,
		"source_id":     n.SourceID,
	}
	if n.Species != "" {
		props["species"] = n.Species
		props["species_confidence"] = string(n.SpeciesConfidence)
	}
	return props
}

func relationshipToMap(r domain.EnrichedRelationship) map[string]any {
	return map[string]any{
		"evidence_text":      r.EvidenceText,
		"species":            r.Species,
		"species_confidence": string(r.SpeciesConfidence),
		"source_id_ref":      r.SourceIDRef,
	}
}

// sanitizeRelType ensures a relationship type is a valid Cypher
// identifier, upper-cased per Neo4j relationship-type convention.
func sanitizeRelType(t string) string {
	safe := sanitizeIdentifier(t)
	if safe == "" {
		return "RELATED_TO"
	}
	return upper(safe)
}

// sanitizeLabel ensures a node label is a valid Cypher identifier,
// preserving the closed vocabulary's casing (e.g. "Cell_Type").
func sanitizeLabel(t string) string {
	safe := sanitizeIdentifier(t)
	if safe == "" {
		return "Entity"
	}
	return safe
}

func sanitizeIdentifier(t string) string {
	safe := make([]byte, 0, len(t))
	for i := 0; i < len(t); i++ {
		c := t[i]
		if (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9') || c == '_' {
			safe = append(safe, c)
		}
	}
	return string(safe)
}

func upper(s string) string {
	b := []byte(s)
	for i := range b {
		if b[i] >= 'a' && b[i] <= 'z' {
			b[i] -= 32
		}
	}
	return string(b)
}
