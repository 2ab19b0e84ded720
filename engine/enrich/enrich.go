// Package enrich implements the Chunk Orchestrator: for one window
// of text it composes LLM extraction, species stamping, standardization,
// synonym resolution, and embedding into enriched nodes and relationships
// ready for the graph writer.
package enrich

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/BiographAI/biograph/engine/domain"
	"github.com/BiographAI/biograph/engine/embed"
	"github.com/BiographAI/biograph/engine/llmextract"
	"github.com/BiographAI/biograph/engine/species"
	"github.com/BiographAI/biograph/engine/standardize"
	"github.com/BiographAI/biograph/engine/synonym"
	"github.com/BiographAI/biograph/pkg/fn"
)

var tracer = otel.Tracer("github.com/BiographAI/biograph/engine/enrich")

// Extractor is the capability this package needs from engine/llmextract.
type Extractor interface {
	Extract(ctx context.Context, chunkText, documentSpecies string) llmextract.Result
}

// Standardizer is the capability this package needs from engine/standardize.
type Standardizer interface {
	Batch(ctx context.Context, entities []standardize.Entity) map[standardize.Entity]standardize.Info
}

// SynonymResolver is the capability this package needs from engine/synonym.
type SynonymResolver interface {
	Resolve(ctx context.Context, refs []synonym.OntologyRef) map[string][]string
}

// Deps holds the external collaborators the orchestrator composes.
type Deps struct {
	Extractor    Extractor
	Standardizer Standardizer
	Synonyms     SynonymResolver
	Embedder     embed.Embedder
	Log          *slog.Logger
}

// Orchestrator is the Chunk Orchestrator.
type Orchestrator struct {
	deps Deps
}

// New creates an Orchestrator from deps.
func New(deps Deps) *Orchestrator {
	if deps.Log == nil {
		deps.Log = slog.Default()
	}
	return &Orchestrator{deps: deps}
}

// Batch is the enriched output of one chunk.
type Batch struct {
	Nodes         []domain.EnrichedNode
	Relationships []domain.EnrichedRelationship
}

// nodeAccum collects everything needed to build one EnrichedNode, keyed by
// final ontology_id, accumulating across every raw entity that resolves to
// the same identity within this chunk. surfaceForms may repeat; they are
// deduplicated when the node is built.
type nodeAccum struct {
	label             string
	standardName      string
	description       string
	surfaceForms      []string
	species           string
	speciesConfidence domain.SpeciesConfidence
}

// Process runs the 8-step chunk orchestration algorithm for
// one window of text and returns the enriched batch.
func (o *Orchestrator) Process(ctx context.Context, sourceID string, dc domain.DocumentContext, chunkText string) Batch {
	ctx, span := tracer.Start(ctx, "enrich.Process", trace.WithAttributes(
		attribute.String("source_id", sourceID),
	))
	defer span.End()

	// Extract raw entities and relationships; empty or invalid output
	// means an empty batch.
	raw := o.extract(ctx, chunkText, dc.PrimarySpecies)
	if len(raw.Entities) == 0 && len(raw.Relationships) == 0 {
		span.SetAttributes(attribute.Int("entities", 0), attribute.Int("relationships", 0))
		return Batch{}
	}

	// Stamp species on every raw entity.
	stamped := make([]domain.RawEntity, len(raw.Entities))
	for i, e := range raw.Entities {
		stamped[i] = species.StampEntity(e, dc.PrimarySpecies)
	}

	// Standardize the entity list against the medical-NER APIs in parallel.
	toStandardize := fn.Map(stamped, func(e domain.RawEntity) standardize.Entity {
		return standardize.Entity{Name: e.EntityName, Type: e.EntityType}
	})
	standardInfo := o.standardize(ctx, toStandardize)
	for key, info := range standardInfo {
		o.deps.Log.Info("enrich: standardized entity", "name", key.Name, "type", key.Type, "ontology_id", info.OntologyID, "standard_name", info.StandardName)
	}

	// Compute the final ontology_id per entity (species suffix applied);
	// build (name, type) -> final_id for relationship endpoint resolution.
	finalIDs := make(map[standardize.Entity]string, len(stamped))
	nodes := make(map[string]*nodeAccum)

	for _, e := range stamped {
		key := standardize.Entity{Name: e.EntityName, Type: e.EntityType}
		info, ok := standardInfo[key]
		if !ok {
			continue
		}
		finalID := species.SuffixIdentity(info.OntologyID, e.EntityType, e.Species)
		finalIDs[key] = finalID

		acc, exists := nodes[finalID]
		if !exists {
			acc = &nodeAccum{
				label:        e.EntityType,
				standardName: info.StandardName,
			}
			nodes[finalID] = acc
		}
		if e.EntityDescription != "" {
			acc.description = e.EntityDescription
		}
		acc.surfaceForms = append(acc.surfaceForms, e.EntityName)
		if domain.IsSpeciesBearing(e.EntityType) {
			acc.species = e.Species
			acc.speciesConfidence = dc.SpeciesConfidence
		}
	}

	// One batched synonym lookup over the unique final IDs.
	refs := make([]synonym.OntologyRef, 0, len(nodes))
	for id, acc := range nodes {
		surface := ""
		if len(acc.surfaceForms) > 0 {
			surface = acc.surfaceForms[0]
		}
		refs = append(refs, synonym.OntologyRef{OntologyID: id, SurfaceForm: surface})
	}
	resolvedSynonyms := o.resolveSynonyms(ctx, refs)

	// Build the EnrichedNode for each unique final ID.
	ctx, embedSpan := tracer.Start(ctx, "enrich.embed_nodes", trace.WithAttributes(attribute.Int("node_count", len(nodes))))
	enrichedNodes := make([]domain.EnrichedNode, 0, len(nodes))
	for id, acc := range nodes {
		primary := ""
		var pool []string
		if forms := fn.Unique(acc.surfaceForms); len(forms) > 0 {
			primary = forms[0]
			pool = append(pool, forms[1:]...)
		}
		pool = append(pool, resolvedSynonyms[id]...)
		synonyms := synonym.Union(primary, pool)

		embedding, err := o.deps.Embedder.Embed(ctx, embed.Summary(acc.standardName, acc.description))
		if err != nil {
			embedSpan.RecordError(err)
			embedSpan.SetStatus(codes.Error, "embedding failed for one or more nodes")
			o.deps.Log.Warn("enrich: embedding failed, node persisted without vector", "ontology_id", id, "error", err)
		}

		node := domain.EnrichedNode{
			OntologyID:   id,
			Label:        acc.label,
			StandardName: acc.standardName,
			Synonyms:     synonyms,
			Description:  acc.description,
			Embedding:    embedding,
			SourceID:     sourceID,
		}
		if acc.species != "" {
			node.Species = acc.species
			node.SpeciesConfidence = acc.speciesConfidence
		}
		enrichedNodes = append(enrichedNodes, node)
	}
	embedSpan.End()

	// Resolve relationship endpoints, dropping dangling edges silently.
	enrichedRels := make([]domain.EnrichedRelationship, 0, len(raw.Relationships))
	for _, r := range raw.Relationships {
		r = species.StampRelationship(r, dc.PrimarySpecies)
		sourceKey := standardize.Entity{Name: r.SourceEntityName, Type: r.SourceEntityType}
		targetKey := standardize.Entity{Name: r.TargetEntityName, Type: r.TargetEntityType}
		sourceID2, ok1 := finalIDs[sourceKey]
		targetID, ok2 := finalIDs[targetKey]
		if !ok1 || !ok2 {
			continue
		}
		enrichedRels = append(enrichedRels, domain.EnrichedRelationship{
			SourceOntologyID:  sourceID2,
			TargetOntologyID:  targetID,
			Label:             r.RelationType,
			EvidenceText:      r.RelationshipDescription,
			Species:           r.Species,
			SpeciesConfidence: r.SpeciesConfidence,
			SourceIDRef:       sourceID,
		})
	}
	// Same-type duplicates between the same endpoints merge in the graph
	// anyway; dropping them here keeps the batch artifact free of them too.
	enrichedRels = fn.UniqueBy(enrichedRels, func(r domain.EnrichedRelationship) string {
		return r.SourceOntologyID + "|" + r.Label + "|" + r.TargetOntologyID
	})

	span.SetAttributes(
		attribute.Int("entities", len(raw.Entities)),
		attribute.Int("relationships", len(raw.Relationships)),
		attribute.Int("nodes", len(enrichedNodes)),
	)
	return Batch{Nodes: enrichedNodes, Relationships: enrichedRels}
}

// extract wraps the LLM extraction call in its own span so a slow or
// failing call is visible independently of the rest of the chunk.
func (o *Orchestrator) extract(ctx context.Context, chunkText, documentSpecies string) llmextract.Result {
	ctx, span := tracer.Start(ctx, "enrich.extract")
	defer span.End()
	return o.deps.Extractor.Extract(ctx, chunkText, documentSpecies)
}

// standardize wraps the medical-NER standardization fan-out.
func (o *Orchestrator) standardize(ctx context.Context, entities []standardize.Entity) map[standardize.Entity]standardize.Info {
	ctx, span := tracer.Start(ctx, "enrich.standardize", trace.WithAttributes(attribute.Int("entity_count", len(entities))))
	defer span.End()
	return o.deps.Standardizer.Batch(ctx, entities)
}

// resolveSynonyms wraps the batched UMLS synonym lookup.
func (o *Orchestrator) resolveSynonyms(ctx context.Context, refs []synonym.OntologyRef) map[string][]string {
	ctx, span := tracer.Start(ctx, "enrich.resolve_synonyms", trace.WithAttributes(attribute.Int("ref_count", len(refs))))
	defer span.End()
	return o.deps.Synonyms.Resolve(ctx, refs)
}
