package checkpoint

import (
	"path/filepath"
	"testing"

	"github.com/BiographAI/biograph/engine/domain"
)

func TestLoadMissingFileReturnsFreshCheckpoint(t *testing.T) {
	s := New(filepath.Join(t.TempDir(), "pipeline_checkpoint.json"))
	cp, err := s.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cp.LastProcessedChunk != -1 || cp.Status != domain.StatusInProgress {
		t.Errorf("expected fresh checkpoint, got %+v", cp)
	}
}

func TestSaveThenLoadRoundTrips(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pipeline_checkpoint.json")
	s := New(path)
	cp := domain.Checkpoint{
		CurrentDocumentID:  "DOC_1",
		TotalDocuments:     3,
		LastProcessedChunk: 4,
		TotalNodesLoaded:   10,
	}
	if err := s.Save(cp); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, err := s.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.CurrentDocumentID != "DOC_1" || got.LastProcessedChunk != 4 || got.TotalNodesLoaded != 10 {
		t.Errorf("round trip mismatch: %+v", got)
	}
}

func TestSaveNoTempFilesLeftBehind(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "pipeline_checkpoint.json")
	s := New(path)
	if err := s.Save(domain.Checkpoint{}); err != nil {
		t.Fatalf("Save: %v", err)
	}
	entries, err := filepath.Glob(filepath.Join(dir, "*"))
	if err != nil {
		t.Fatalf("glob: %v", err)
	}
	if len(entries) != 1 || entries[0] != path {
		t.Errorf("expected only the final checkpoint file, got %v", entries)
	}
}

func TestIsCompletedAndMarkDocumentCompleted(t *testing.T) {
	cp := domain.Checkpoint{LastProcessedChunk: 7}
	if IsCompleted(cp, "DOC_1") {
		t.Errorf("expected DOC_1 not completed yet")
	}
	cp = MarkDocumentCompleted(cp, "DOC_1")
	if !IsCompleted(cp, "DOC_1") {
		t.Errorf("expected DOC_1 completed")
	}
	if cp.LastProcessedChunk != -1 {
		t.Errorf("expected chunk counter reset, got %d", cp.LastProcessedChunk)
	}
}

func TestFinalizeSetsCompletionFields(t *testing.T) {
	cp := Finalize(domain.Checkpoint{}, 100, 50)
	if cp.Status != domain.StatusCompleted || cp.FinalNodes != 100 || cp.FinalRelationships != 50 || cp.CompletionTime == nil {
		t.Errorf("unexpected finalize result: %+v", cp)
	}
}
