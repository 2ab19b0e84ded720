// Package checkpoint persists the single restart record the driver uses
// to resume a pipeline run at document and chunk granularity.
package checkpoint

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BiographAI/biograph/engine/domain"
)

// Store reads and atomically rewrites a single checkpoint file.
type Store struct {
	path string
}

// New creates a Store backed by the file at path.
func New(path string) *Store {
	return &Store{path: path}
}

// Load reads the checkpoint file. A missing file is not an error: it
// returns a fresh Checkpoint with LastProcessedChunk = -1.
func (s *Store) Load() (domain.Checkpoint, error) {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return domain.Checkpoint{LastProcessedChunk: -1, Status: domain.StatusInProgress}, nil
	}
	if err != nil {
		return domain.Checkpoint{}, fmt.Errorf("checkpoint: read %s: %w", s.path, err)
	}
	var cp domain.Checkpoint
	if err := json.Unmarshal(data, &cp); err != nil {
		return domain.Checkpoint{}, fmt.Errorf("checkpoint: parse %s: %w", s.path, err)
	}
	return cp, nil
}

// Save atomically rewrites the checkpoint file: write to a temp file in
// the same directory, then rename over the target. This
// guarantees a crash between write and rename never leaves a truncated or
// partially-written checkpoint on disk.
func (s *Store) Save(cp domain.Checkpoint) error {
	cp.Timestamp = time.Now().UTC()

	data, err := json.MarshalIndent(cp, "", "  ")
	if err != nil {
		return fmt.Errorf("checkpoint: marshal: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("checkpoint: mkdir %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, ".checkpoint-*.tmp")
	if err != nil {
		return fmt.Errorf("checkpoint: create temp: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) // no-op once the rename below succeeds

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("checkpoint: write temp: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("checkpoint: close temp: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("checkpoint: rename: %w", err)
	}
	return nil
}

// IsCompleted reports whether sourceID already appears in
// cp.CompletedDocuments.
func IsCompleted(cp domain.Checkpoint, sourceID string) bool {
	for _, id := range cp.CompletedDocuments {
		if id == sourceID {
			return true
		}
	}
	return false
}

// MarkDocumentCompleted appends sourceID to CompletedDocuments and resets
// LastProcessedChunk for the next document.
func MarkDocumentCompleted(cp domain.Checkpoint, sourceID string) domain.Checkpoint {
	cp.CompletedDocuments = append(cp.CompletedDocuments, sourceID)
	cp.LastProcessedChunk = -1
	return cp
}

// Finalize marks the checkpoint completed at pipeline end.
func Finalize(cp domain.Checkpoint, finalNodes, finalRelationships int) domain.Checkpoint {
	now := time.Now().UTC()
	cp.Status = domain.StatusCompleted
	cp.CompletionTime = &now
	cp.FinalNodes = finalNodes
	cp.FinalRelationships = finalRelationships
	return cp
}
