package context

import (
	"context"
	"testing"

	"github.com/BiographAI/biograph/engine/domain"
)

type fakeBackend struct {
	text string
	err  error
}

func (f *fakeBackend) Complete(_ context.Context, _ string, _ int, _ float64) (string, error) {
	return f.text, f.err
}

func TestExtractParsesWellFormedJSON(t *testing.T) {
	fb := &fakeBackend{text: `{"title": "A Study", "authors": "Smith J", "journal": "JAMA",
		"publication_year": 2020, "doi": "10.1/x", "primary_species": "Homo sapiens",
		"species_confidence": "high", "species_evidence": "explicit", "study_type": "clinical trial",
		"source_type": "journal article", "source_platform": "PubMed"}`}
	e := New(fb)
	dc := e.Extract(context.Background(), "DOC_1", "/tmp/doc1.txt", "header")
	if dc.Title != "A Study" || dc.PrimarySpecies != "Homo sapiens" || dc.StudyType != domain.StudyClinicalTrial {
		t.Errorf("got %+v", dc)
	}
}

func TestExtractDegradesToSafeDefaultOnUnparseableOutput(t *testing.T) {
	fb := &fakeBackend{text: "not json"}
	e := New(fb)
	dc := e.Extract(context.Background(), "DOC_2", "/tmp/doc2.txt", "header")
	if dc.PrimarySpecies != "not specified" || dc.SpeciesConfidence != domain.ConfidenceLow || dc.StudyType != domain.StudyOther {
		t.Errorf("expected safe default, got %+v", dc)
	}
	if dc.Title != "Unknown" {
		t.Errorf("expected Unknown title, got %q", dc.Title)
	}
}

func TestExtractDegradesToSafeDefaultOnBackendError(t *testing.T) {
	fb := &fakeBackend{err: context.DeadlineExceeded}
	e := New(fb, func(ex *Extractor) { ex.retry.MaxAttempts = 1 })
	dc := e.Extract(context.Background(), "DOC_3", "/tmp/doc3.txt", "header")
	if dc.SourceID != "DOC_3" || dc.PrimarySpecies != "not specified" {
		t.Errorf("expected safe default, got %+v", dc)
	}
}

func TestExtractUnwrapsFencedJSON(t *testing.T) {
	fb := &fakeBackend{text: "```json\n{\"title\": \"Fenced\", \"study_type\": \"review\"}\n```"}
	e := New(fb)
	dc := e.Extract(context.Background(), "DOC_4", "/tmp/doc4.txt", "header")
	if dc.Title != "Fenced" || dc.StudyType != domain.StudyReview {
		t.Errorf("got %+v", dc)
	}
}
