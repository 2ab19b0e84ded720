// Package driver implements the pipeline state machine: it scans
// the corpus, reads each document's context, chunks its body, drives the
// chunk orchestrator in fixed-size batches, commits to the graph and JSON
// sink, and checkpoints after every successful batch.
package driver

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/BiographAI/biograph/engine/chunk"
	"github.com/BiographAI/biograph/engine/checkpoint"
	"github.com/BiographAI/biograph/engine/domain"
	"github.com/BiographAI/biograph/engine/enrich"
	"github.com/BiographAI/biograph/engine/sink"
	"github.com/BiographAI/biograph/pkg/fn"
)

var tracer = otel.Tracer("github.com/BiographAI/biograph/engine/driver")

// DefaultBatchSize is the default number of chunks (K) that commit
// together.
const DefaultBatchSize = 5

// DefaultTestModeChunkCap caps the per-document chunk count in test mode.
const DefaultTestModeChunkCap = 10

// ContextExtractor is the capability this package needs from engine/context.
type ContextExtractor interface {
	Extract(ctx context.Context, sourceID, documentPath, headerText string) domain.DocumentContext
}

// GraphWriter is the capability this package needs from engine/graph.
type GraphWriter interface {
	UpsertSource(ctx context.Context, s domain.Source) error
	SaveBatch(ctx context.Context, nodes []domain.EnrichedNode, rels []domain.EnrichedRelationship) error
}

// Orchestrator is the capability this package needs from engine/enrich.
type Orchestrator interface {
	Process(ctx context.Context, sourceID string, dc domain.DocumentContext, chunkText string) enrich.Batch
}

// Sink is the capability this package needs from engine/sink.
type Sink interface {
	Write(batchNumber, chunkStart, chunkEnd int, processingTime time.Duration, nodes []domain.EnrichedNode, rels []domain.EnrichedRelationship) error
	WriteMetadata(m sink.Metadata) error
}

// CheckpointStore is the capability this package needs from engine/checkpoint.
type CheckpointStore interface {
	Load() (domain.Checkpoint, error)
	Save(cp domain.Checkpoint) error
}

// Config configures one driver run.
type Config struct {
	DataDirectory    string
	SingleDocument   string
	BatchSize        int
	TestMode         bool
	TestModeChunkCap int
	// StartChunk overrides the checkpoint-derived resume point for the
	// first document this run actually processes.
	// Zero means no override; applied once per run.
	StartChunk int
}

// Deps holds the driver's external collaborators.
type Deps struct {
	Context      ContextExtractor
	Graph        GraphWriter
	Orchestrator Orchestrator
	Sink         Sink
	Checkpoint   CheckpointStore
	Log          *slog.Logger
}

// Driver runs the document/batch state machine.
type Driver struct {
	deps Deps
	cfg  Config
}

// New creates a Driver from deps and cfg, applying defaults for any
// zero-valued Config fields.
func New(deps Deps, cfg Config) *Driver {
	if deps.Log == nil {
		deps.Log = slog.Default()
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.TestModeChunkCap <= 0 {
		cfg.TestModeChunkCap = DefaultTestModeChunkCap
	}
	return &Driver{deps: deps, cfg: cfg}
}

// planDocuments enumerates the document files to process, in a stable
// order.
func (d *Driver) planDocuments() ([]string, error) {
	if d.cfg.SingleDocument != "" {
		return []string{d.cfg.SingleDocument}, nil
	}
	entries, err := os.ReadDir(d.cfg.DataDirectory)
	if err != nil {
		return nil, fmt.Errorf("driver: read data directory %s: %w", d.cfg.DataDirectory, err)
	}
	paths := fn.FilterMap(entries, func(e os.DirEntry) (string, bool) {
		if e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			return "", false
		}
		return filepath.Join(d.cfg.DataDirectory, e.Name()), true
	})
	sort.Strings(paths)
	return paths, nil
}

// Run executes the full state machine. It returns nil on clean finish or
// clean cancellation after a checkpoint; the
// caller maps a non-nil error to a fatal exit.
func (d *Driver) Run(ctx context.Context) error {
	docs, err := d.planDocuments()
	if err != nil {
		return err
	}

	cp, err := d.deps.Checkpoint.Load()
	if err != nil {
		return fmt.Errorf("driver: load checkpoint: %w", err)
	}
	cp.TotalDocuments = len(docs)

	// The artifact counter survives restarts via the checkpoint so a
	// resumed run appends batch_NNNN.json files after the prior run's
	// instead of overwriting them.
	batchNumber := cp.TotalBatchesWritten
	startChunkOverridden := false

	for idx, path := range docs {
		if ctx.Err() != nil {
			d.deps.Log.Info("driver: cancellation requested before next document, stopping", "last_checkpoint", cp.CurrentDocumentID)
			return nil
		}

		sourceID := domain.DeriveSourceID(strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)))
		if checkpoint.IsCompleted(cp, sourceID) {
			continue
		}

		docCtx, docSpan := tracer.Start(ctx, "driver.process_document", trace.WithAttributes(
			attribute.String("source_id", sourceID),
		))

		body, err := os.ReadFile(path)
		if err != nil {
			d.deps.Log.Error("driver: could not read document, skipping", "path", path, "error", err)
			docSpan.RecordError(err)
			docSpan.End()
			continue
		}

		header := chunk.Header(string(body), chunk.DefaultHeaderLines)
		dc := d.deps.Context.Extract(docCtx, sourceID, path, header)
		dc.SourceID = sourceID
		dc.DocumentPath = path

		if err := d.deps.Graph.UpsertSource(docCtx, domain.Source{DocumentContext: dc}); err != nil {
			d.deps.Log.Error("driver: source upsert failed, skipping document", "source_id", sourceID, "error", err)
			docSpan.RecordError(err)
			docSpan.End()
			continue
		}

		windows := chunk.Document(string(body), chunk.DefaultHeaderLines, chunk.DefaultWindowTokens, chunk.DefaultOverlapTokens)
		if d.cfg.TestMode && len(windows) > d.cfg.TestModeChunkCap {
			windows = windows[:d.cfg.TestModeChunkCap]
		}

		startChunk := 0
		if cp.CurrentDocumentID == sourceID && cp.LastProcessedChunk >= 0 {
			startChunk = cp.LastProcessedChunk + 1
		}
		if !startChunkOverridden {
			if d.cfg.StartChunk > 0 {
				startChunk = d.cfg.StartChunk
				if startChunk > len(windows) {
					startChunk = len(windows)
				}
			}
			startChunkOverridden = true
		}

		cp.CurrentDocumentIndex = idx
		cp.CurrentDocumentID = sourceID

		commitFailed := false
		for _, batchWindows := range fn.Chunk(windows[startChunk:], d.cfg.BatchSize) {
			if ctx.Err() != nil {
				d.deps.Log.Info("driver: cancellation requested, stopping after last committed batch", "source_id", sourceID)
				docSpan.End()
				return nil
			}

			// Window indices are document-global, so a mid-document resume
			// keeps its chunk numbering.
			batchStart := batchWindows[0].Index
			batchEnd := batchWindows[len(batchWindows)-1].Index + 1

			batchCtx, batchSpan := tracer.Start(docCtx, "driver.process_batch", trace.WithAttributes(
				attribute.Int("batch_start", batchStart),
				attribute.Int("batch_end", batchEnd),
			))

			start := time.Now()
			var nodes []domain.EnrichedNode
			var rels []domain.EnrichedRelationship
			for _, w := range batchWindows {
				b := d.deps.Orchestrator.Process(batchCtx, sourceID, dc, w.Text)
				nodes = append(nodes, b.Nodes...)
				rels = append(rels, b.Relationships...)
			}

			if err := d.deps.Graph.SaveBatch(batchCtx, nodes, rels); err != nil {
				// No checkpoint advance: the next run resumes at the chunk
				// after the last committed batch and re-executes this one.
				d.deps.Log.Error("driver: batch commit failed, abandoning document until next run", "source_id", sourceID, "batch_start", batchStart, "error", err)
				batchSpan.RecordError(err)
				batchSpan.End()
				commitFailed = true
				break
			}

			if err := d.deps.Sink.Write(batchNumber, batchStart, batchEnd-1, time.Since(start), nodes, rels); err != nil {
				d.deps.Log.Error("driver: batch sink write failed, graph commit stands", "batch", batchNumber, "error", err)
			}
			batchNumber++
			batchSpan.End()

			cp.LastProcessedChunk = batchEnd - 1
			cp.TotalBatchesWritten = batchNumber
			cp.TotalNodesLoaded += len(nodes)
			cp.TotalRelationshipsLoaded += len(rels)
			if err := d.deps.Checkpoint.Save(cp); err != nil {
				d.deps.Log.Error("driver: checkpoint save failed", "error", err)
			}
		}

		if commitFailed {
			docSpan.End()
			continue
		}

		cp = checkpoint.MarkDocumentCompleted(cp, sourceID)
		if err := d.deps.Checkpoint.Save(cp); err != nil {
			d.deps.Log.Error("driver: checkpoint save failed", "error", err)
		}
		docSpan.End()
	}

	cp = checkpoint.Finalize(cp, cp.TotalNodesLoaded, cp.TotalRelationshipsLoaded)
	if err := d.deps.Checkpoint.Save(cp); err != nil {
		d.deps.Log.Error("driver: final checkpoint save failed", "error", err)
	}
	if err := d.deps.Sink.WriteMetadata(sink.Metadata{
		TotalDocuments:       len(docs),
		TotalNodesLoaded:     cp.TotalNodesLoaded,
		TotalRelationsLoaded: cp.TotalRelationshipsLoaded,
		CompletedAt:          time.Now().UTC(),
	}); err != nil {
		d.deps.Log.Error("driver: pipeline metadata write failed", "error", err)
	}
	return nil
}
