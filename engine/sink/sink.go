// Package sink serializes each successfully committed batch to an
// append-only per-batch JSON artifact. The artifact is a backup of
// the graph write, not the system of record: a write failure here is
// logged and never rolls back the graph commit that already happened.
package sink

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/BiographAI/biograph/engine/domain"
)

// ChunkRange describes which chunks (inclusive) a batch covered.
type ChunkRange struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Stats summarizes a batch's contents.
type Stats struct {
	NodesCount         int `json:"nodes_count"`
	RelationshipsCount int `json:"relationships_count"`
}

// batchArtifact is the on-disk shape of one batch_NNNN.json file.
type batchArtifact struct {
	BatchNumber           int                           `json:"batch_number"`
	ChunkRange            ChunkRange                    `json:"chunk_range"`
	Timestamp             time.Time                     `json:"timestamp"`
	ProcessingTimeSeconds float64                       `json:"processing_time_seconds"`
	Nodes                 []domain.EnrichedNode         `json:"nodes"`
	Relationships         []domain.EnrichedRelationship `json:"relationships"`
	Stats                 Stats                         `json:"stats"`
}

// Sink writes batch artifacts under a fixed output directory.
type Sink struct {
	dir string
	log *slog.Logger
}

// New creates a Sink writing under dir (created if absent).
func New(dir string, log *slog.Logger) *Sink {
	if log == nil {
		log = slog.Default()
	}
	return &Sink{dir: dir, log: log}
}

// Write serializes one batch to output/batch_%04d.json.
// A write failure is logged at Error level and returned to the caller as
// information only — callers must not treat it as fatal or roll back the
// graph commit that preceded it.
func (s *Sink) Write(batchNumber int, chunkStart, chunkEnd int, processingTime time.Duration, nodes []domain.EnrichedNode, rels []domain.EnrichedRelationship) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		s.log.Error("sink: could not create output directory", "dir", s.dir, "error", err)
		return err
	}

	artifact := batchArtifact{
		BatchNumber:           batchNumber,
		ChunkRange:            ChunkRange{Start: chunkStart, End: chunkEnd},
		Timestamp:             time.Now().UTC(),
		ProcessingTimeSeconds: processingTime.Seconds(),
		Nodes:                 nodes,
		Relationships:         rels,
		Stats: Stats{
			NodesCount:         len(nodes),
			RelationshipsCount: len(rels),
		},
	}

	data, err := json.MarshalIndent(artifact, "", "  ")
	if err != nil {
		s.log.Error("sink: could not marshal batch artifact", "batch", batchNumber, "error", err)
		return err
	}

	path := filepath.Join(s.dir, fmt.Sprintf("batch_%04d.json", batchNumber))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		s.log.Error("sink: could not write batch artifact", "path", path, "error", err)
		return err
	}
	return nil
}

// Metadata is written once at driver end, summarizing the run
// (output/pipeline_metadata.json).
type Metadata struct {
	TotalDocuments       int       `json:"total_documents"`
	TotalNodesLoaded     int       `json:"total_nodes_loaded"`
	TotalRelationsLoaded int       `json:"total_relationships_loaded"`
	CompletedAt          time.Time `json:"completed_at"`
}

// WriteMetadata writes output/pipeline_metadata.json at driver end.
func (s *Sink) WriteMetadata(m Metadata) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		s.log.Error("sink: could not create output directory", "dir", s.dir, "error", err)
		return err
	}
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return err
	}
	path := filepath.Join(s.dir, "pipeline_metadata.json")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		s.log.Error("sink: could not write pipeline metadata", "path", path, "error", err)
		return err
	}
	return nil
}
