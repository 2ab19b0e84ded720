// Package domain defines the core data model for the enrichment pipeline
// and the validation gate at its entry points.
package domain

import "time"

// SpeciesConfidence is the confidence level attached to a primary species
// assignment or a relationship's species attribution.
type SpeciesConfidence string

const (
	ConfidenceHigh   SpeciesConfidence = "high"
	ConfidenceMedium SpeciesConfidence = "medium"
	ConfidenceLow    SpeciesConfidence = "low"
)

// RelSpeciesConfidence is the confidence tag carried by relationships,
// distinct from the node-level SpeciesConfidence vocabulary.
type RelSpeciesConfidence string

const (
	RelExplicit    RelSpeciesConfidence = "explicit"
	RelInherited   RelSpeciesConfidence = "inherited"
	RelSpeculative RelSpeciesConfidence = "speculative"
	RelUnknown     RelSpeciesConfidence = "unknown"
)

// StudyType classifies the kind of study a document reports.
type StudyType string

const (
	StudyClinicalTrial StudyType = "clinical trial"
	StudyAnimal        StudyType = "animal study"
	StudyInVitro       StudyType = "in vitro"
	StudyComputational StudyType = "computational"
	StudyReview        StudyType = "review"
	StudyCaseReport    StudyType = "case report"
	StudyOther         StudyType = "other"
)

// DocumentContext is produced once per document by the context extractor
// from the header lines.
type DocumentContext struct {
	SourceID          string            `json:"source_id"`
	Title             string            `json:"title"`
	Authors           string            `json:"authors"`
	Journal           string            `json:"journal"`
	PublicationYear   int               `json:"publication_year"`
	DOI               string            `json:"doi,omitempty"`
	PrimarySpecies    string            `json:"primary_species"`
	SpeciesConfidence SpeciesConfidence `json:"species_confidence"`
	SpeciesEvidence   string            `json:"species_evidence"`
	StudyType         StudyType         `json:"study_type"`
	SourceType        string            `json:"source_type"`
	SourcePlatform    string            `json:"source_platform"`
	ProcessingDate    time.Time         `json:"processing_date"`
	DocumentPath      string            `json:"document_path"`
}

// RawEntity is the LLM extraction client's transient output for one
// entity mention before standardization.
type RawEntity struct {
	EntityName        string `json:"entity_name"`
	EntityType        string `json:"entity_type"`
	EntityDescription string `json:"entity_description"`
	Species           string `json:"species,omitempty"`
}

// RawRelationship is the LLM extraction client's transient output for
// one relationship mention before endpoint resolution.
type RawRelationship struct {
	SourceEntityName        string               `json:"source_entity_name"`
	SourceEntityType        string               `json:"source_entity_type"`
	TargetEntityName        string               `json:"target_entity_name"`
	TargetEntityType        string               `json:"target_entity_type"`
	RelationType            string               `json:"relation_type"`
	RelationshipDescription string               `json:"relationship_description"`
	Species                 string               `json:"species,omitempty"`
	SpeciesConfidence       RelSpeciesConfidence `json:"species_confidence"`
}

// EnrichedNode is a persisted, ontology-grounded entity node.
type EnrichedNode struct {
	OntologyID        string            `json:"ontology_id"`
	Label             string            `json:"label"`
	StandardName      string            `json:"standard_name"`
	Synonyms          []string          `json:"synonyms"`
	Description       string            `json:"description"`
	Embedding         []float32         `json:"embedding"`
	Species           string            `json:"species,omitempty"`
	SpeciesConfidence SpeciesConfidence `json:"species_confidence,omitempty"`
	SourceID          string            `json:"source_id"`
}

// EnrichedRelationship is a persisted, typed edge between two known
// ontology identities.
type EnrichedRelationship struct {
	SourceOntologyID  string               `json:"source_id"`
	TargetOntologyID  string               `json:"target_id"`
	Label             string               `json:"label"`
	EvidenceText      string               `json:"evidence_text"`
	Species           string               `json:"species,omitempty"`
	SpeciesConfidence RelSpeciesConfidence `json:"species_confidence"`
	SourceIDRef       string               `json:"source_id_ref"`
}

// Source is the persisted document node every extracted entity links back
// to via an EXTRACTED_FROM edge.
type Source struct {
	DocumentContext
}

// CheckpointStatus is the lifecycle status of a pipeline run.
type CheckpointStatus string

const (
	StatusInProgress CheckpointStatus = "in_progress"
	StatusCompleted  CheckpointStatus = "completed"
)

// Checkpoint is the single persisted restart record for the driver.
type Checkpoint struct {
	CurrentDocumentIndex     int              `json:"current_document_index"`
	CurrentDocumentID        string           `json:"current_document_id"`
	TotalDocuments           int              `json:"total_documents"`
	CompletedDocuments       []string         `json:"completed_documents"`
	LastProcessedChunk       int              `json:"last_processed_chunk"`
	TotalBatchesWritten      int              `json:"total_batches_written"`
	TotalNodesLoaded         int              `json:"total_nodes_loaded"`
	TotalRelationshipsLoaded int              `json:"total_relationships_loaded"`
	Timestamp                time.Time        `json:"timestamp"`
	Status                   CheckpointStatus `json:"status"`
	CompletionTime           *time.Time       `json:"completion_time,omitempty"`
	FinalNodes               int              `json:"final_nodes,omitempty"`
	FinalRelationships       int              `json:"final_relationships,omitempty"`
}
