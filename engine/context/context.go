// Package context extracts document-level bibliographic metadata, primary
// species, and study type from a document's header lines via one LLM
// call. As with engine/llmextract's chunk extraction, failure here never
// propagates: an unparseable response degrades to a safe default context
// so the driver can always proceed to write a Source node.
package context

import (
	"context"
	"encoding/json"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/BiographAI/biograph/engine/domain"
	"github.com/BiographAI/biograph/engine/llmextract"
	"github.com/BiographAI/biograph/pkg/fn"
)

// Backend is the capability this package needs from the LLM client.
type Backend interface {
	Complete(ctx context.Context, prompt string, maxTokens int, temperature float64) (string, error)
}

// Extractor is the Document Context Extractor.
type Extractor struct {
	backend     Backend
	maxTokens   int
	temperature float64
	retry       fn.RetryOpts
	log         *slog.Logger
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithLogger overrides the default logger.
func WithLogger(log *slog.Logger) Option { return func(e *Extractor) { e.log = log } }

// New creates an Extractor backed by backend.
func New(backend Backend, opts ...Option) *Extractor {
	e := &Extractor{
		backend:     backend,
		maxTokens:   2048,
		temperature: 0.0,
		retry:       llmextract.DefaultRetry,
		log:         slog.Default(),
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// rawContext mirrors DocumentContext's LLM-facing fields (source_id,
// processing_date, and document_path are filled in by the caller, not
// requested from the model).
type rawContext struct {
	Title             string `json:"title"`
	Authors           string `json:"authors"`
	Journal           string `json:"journal"`
	PublicationYear   int    `json:"publication_year"`
	DOI               string `json:"doi"`
	PrimarySpecies    string `json:"primary_species"`
	SpeciesConfidence string `json:"species_confidence"`
	SpeciesEvidence   string `json:"species_evidence"`
	StudyType         string `json:"study_type"`
	SourceType        string `json:"source_type"`
	SourcePlatform    string `json:"source_platform"`
}

var fencedBlock = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)\\s*```")

func unwrapFences(text string) string {
	text = strings.TrimSpace(text)
	if m := fencedBlock.FindStringSubmatch(text); m != nil {
		return strings.TrimSpace(m[1])
	}
	if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```json")
		text = strings.TrimPrefix(text, "```")
		text = strings.TrimSuffix(strings.TrimSpace(text), "```")
		return strings.TrimSpace(text)
	}
	return text
}

// SafeDefault returns the degrade-to-safe-default DocumentContext used
// whenever the LLM call or its parsing fails.
func SafeDefault(sourceID, documentPath string) domain.DocumentContext {
	return domain.DocumentContext{
		SourceID:          sourceID,
		Title:             "Unknown",
		Authors:           "Unknown",
		Journal:           "Unknown",
		PrimarySpecies:    "not specified",
		SpeciesConfidence: domain.ConfidenceLow,
		StudyType:         domain.StudyOther,
		SourceType:        "Unknown",
		SourcePlatform:    "Unknown",
		ProcessingDate:    time.Now().UTC(),
		DocumentPath:      documentPath,
	}
}

// Extract reads headerText (the document's first N lines) and
// produces a DocumentContext. On any LLM or parse failure it returns
// SafeDefault — this component never throws past the driver.
func (e *Extractor) Extract(ctx context.Context, sourceID, documentPath, headerText string) domain.DocumentContext {
	prompt := llmextract.ContextPrompt(headerText)

	completion := fn.Retry(ctx, e.retry, func(ctx context.Context) fn.Result[string] {
		text, err := e.backend.Complete(ctx, prompt, e.maxTokens, e.temperature)
		if err != nil {
			return fn.Err[string](llmextract.ClassifyBackendErr(err))
		}
		return fn.Ok(text)
	})

	text, err := completion.Unwrap()
	if err != nil {
		e.log.Warn("context: llm call failed, using safe default", "source_id", sourceID, "error", err)
		return SafeDefault(sourceID, documentPath)
	}

	var raw rawContext
	if err := json.Unmarshal([]byte(unwrapFences(text)), &raw); err != nil {
		e.log.Warn("context: could not parse llm output, using safe default", "source_id", sourceID, "error", err)
		return SafeDefault(sourceID, documentPath)
	}

	dc := domain.DocumentContext{
		SourceID:          sourceID,
		Title:             orUnknown(raw.Title),
		Authors:           orUnknown(raw.Authors),
		Journal:           orUnknown(raw.Journal),
		PublicationYear:   raw.PublicationYear,
		DOI:               raw.DOI,
		PrimarySpecies:    orDefault(raw.PrimarySpecies, "not specified"),
		SpeciesConfidence: speciesConfidence(raw.SpeciesConfidence),
		SpeciesEvidence:   raw.SpeciesEvidence,
		StudyType:         studyType(raw.StudyType),
		SourceType:        orUnknown(raw.SourceType),
		SourcePlatform:    orUnknown(raw.SourcePlatform),
		ProcessingDate:    time.Now().UTC(),
		DocumentPath:      documentPath,
	}
	return dc
}

func orUnknown(s string) string { return orDefault(s, "Unknown") }

func orDefault(s, def string) string {
	if strings.TrimSpace(s) == "" {
		return def
	}
	return s
}

func speciesConfidence(s string) domain.SpeciesConfidence {
	switch domain.SpeciesConfidence(s) {
	case domain.ConfidenceHigh, domain.ConfidenceMedium, domain.ConfidenceLow:
		return domain.SpeciesConfidence(s)
	default:
		return domain.ConfidenceLow
	}
}

func studyType(s string) domain.StudyType {
	switch domain.StudyType(s) {
	case domain.StudyClinicalTrial, domain.StudyAnimal, domain.StudyInVitro,
		domain.StudyComputational, domain.StudyReview, domain.StudyCaseReport, domain.StudyOther:
		return domain.StudyType(s)
	default:
		return domain.StudyOther
	}
}
