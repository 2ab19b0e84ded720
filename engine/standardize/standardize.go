// Package standardize maps (entity_name, entity_type) pairs to canonical
// {ontology_id, standard_name} identities via dual medical-NER APIs with a
// confidence gate and a deterministic fallback.
package standardize

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"regexp"
	"strings"
	"time"

	"github.com/BiographAI/biograph/engine/domain"
	"github.com/BiographAI/biograph/pkg/fn"
	"github.com/BiographAI/biograph/pkg/medner"
)

// DefaultMinConfidence is the acceptance threshold for a medical-NER
// concept's score.
const DefaultMinConfidence = 0.75

// DefaultWorkers is the bounded worker pool size for the per-chunk
// standardization fan-out.
const DefaultWorkers = 4

// DefaultRetry is the medical-NER retry policy: two additional attempts
// after the first, 1s initial backoff, doubling, only for
// declared-transient errors.
var DefaultRetry = fn.RetryOpts{
	MaxAttempts: 3,
	InitialWait: time.Second,
	MaxWait:     10 * time.Second,
	Jitter:      true,
	Retryable:   domain.IsRetryable,
}

// Info is the resolved standardization result for one (name, type) pair.
type Info struct {
	OntologyID   string
	StandardName string
}

// Inferer is the capability this package needs from the medical-NER
// client; satisfied by *medner.Client.
type Inferer interface {
	Infer(ctx context.Context, sys medner.System, clinicalText string) ([]medner.Concept, error)
}

// Standardizer resolves entities against a medical-NER backend.
type Standardizer struct {
	ner           Inferer
	minConfidence float64
	workers       int
	retry         fn.RetryOpts
}

// Option configures a Standardizer.
type Option func(*Standardizer)

// WithMinConfidence overrides DefaultMinConfidence.
func WithMinConfidence(c float64) Option {
	return func(s *Standardizer) { s.minConfidence = c }
}

// WithWorkers overrides DefaultWorkers.
func WithWorkers(n int) Option {
	return func(s *Standardizer) { s.workers = n }
}

// WithRetry overrides DefaultRetry.
func WithRetry(opts fn.RetryOpts) Option {
	return func(s *Standardizer) { s.retry = opts }
}

// New creates a Standardizer backed by ner.
func New(ner Inferer, opts ...Option) *Standardizer {
	s := &Standardizer{ner: ner, minConfidence: DefaultMinConfidence, workers: DefaultWorkers, retry: DefaultRetry}
	for _, o := range opts {
		o(s)
	}
	return s
}

// primarySystem selects the primary medical-NER API by node type:
// Medication -> RxNorm, everything else -> SNOMED CT.
func primarySystem(entityType string) medner.System {
	if entityType == "Medication" {
		return medner.SystemRxNorm
	}
	return medner.SystemSNOMEDCT
}

func otherSystem(sys medner.System) medner.System {
	if sys == medner.SystemSNOMEDCT {
		return medner.SystemRxNorm
	}
	return medner.SystemSNOMEDCT
}

func apiPrefix(sys medner.System) string {
	return string(sys)
}

// One resolves a single entity. Expansion, sentence-building, dual-API
// confidence gating, and fallback minting all happen here; the bounded
// fan-out lives in Batch.
func (s *Standardizer) One(ctx context.Context, name, entityType string) Info {
	expanded := ExpandAbbreviations(name)
	sentence := ClinicalSentence(expanded, entityType)

	primary := primarySystem(entityType)
	if info, ok := s.tryAPI(ctx, primary, sentence); ok {
		return info
	}
	secondary := otherSystem(primary)
	if info, ok := s.tryAPI(ctx, secondary, sentence); ok {
		return info
	}
	return s.fallback(name, entityType)
}

func (s *Standardizer) tryAPI(ctx context.Context, sys medner.System, sentence string) (Info, bool) {
	result := fn.Retry(ctx, s.retry, func(ctx context.Context) fn.Result[[]medner.Concept] {
		concepts, err := s.ner.Infer(ctx, sys, sentence)
		if err != nil {
			return fn.Err[[]medner.Concept](err)
		}
		return fn.Ok(concepts)
	})
	concepts, err := result.Unwrap()
	if err != nil || len(concepts) == 0 {
		return Info{}, false
	}
	best := concepts[0]
	for _, c := range concepts[1:] {
		if c.Score > best.Score {
			best = c
		}
	}
	if best.Score < s.minConfidence {
		return Info{}, false
	}
	return Info{
		OntologyID:   apiPrefix(sys) + ":" + best.Code,
		StandardName: cleanDescription(best.Text),
	}, true
}

// fallback mints a deterministic BIOGRAPH identifier from the normalized
// entity name.
func (s *Standardizer) fallback(name, entityType string) Info {
	normalized := normalizeForHash(name)
	sum := sha1.Sum([]byte(normalized))
	hexHash := hex.EncodeToString(sum[:])[:12]
	return Info{
		OntologyID:   "BIOGRAPH:" + strings.ToUpper(entityType) + ":" + hexHash,
		StandardName: titleCase(name),
	}
}

var nonAlnum = regexp.MustCompile(`[^a-z0-9]`)

func normalizeForHash(name string) string {
	lower := strings.ToLower(name)
	return nonAlnum.ReplaceAllString(lower, "")
}

func titleCase(name string) string {
	words := strings.Fields(strings.ToLower(name))
	for i, w := range words {
		if len(w) > 0 {
			words[i] = strings.ToUpper(w[:1]) + w[1:]
		}
	}
	return strings.Join(words, " ")
}

func cleanDescription(desc string) string {
	return strings.TrimSpace(desc)
}

// Entity is one (name, type) pair to resolve.
type Entity struct {
	Name string
	Type string
}

// Batch resolves every entity in the chunk's entity list using a bounded
// worker pool. Each worker is independent;
// failures are isolated to the entity and fall through to One's own
// fallback path, so the pool never needs to report per-item errors.
func (s *Standardizer) Batch(ctx context.Context, entities []Entity) map[Entity]Info {
	results := fn.ParMap(entities, s.workers, func(e Entity) Info {
		return s.One(ctx, e.Name, e.Type)
	})
	out := make(map[Entity]Info, len(entities))
	for i, e := range entities {
		out[e] = results[i]
	}
	return out
}

// IsFallbackID reports whether id was minted by the deterministic fallback
// path rather than a confidence-gated medical-NER concept.
func IsFallbackID(id string) bool {
	return strings.HasPrefix(id, "BIOGRAPH:")
}
