// Package synonym enriches ontology-identified entities with surface-form
// synonyms drawn from a local UMLS mirror.
package synonym

import (
	"context"
	"log/slog"
	"regexp"
	"strings"

	"github.com/BiographAI/biograph/pkg/fn"
)

// UMLSStore is the capability this package needs from pkg/umls.
type UMLSStore interface {
	CodesToCUIs(ctx context.Context, codes []string, sab string) (map[string]string, error)
	SurfaceFormsByCUI(ctx context.Context, cuis []string) (map[string][]string, error)
	ExactMatchCUI(ctx context.Context, surfaceForm string) (string, error)
	SubstringMatchCUI(ctx context.Context, surfaceForm string, maxLengthDelta int) (string, error)
	MultiWordMatchCUI(ctx context.Context, tokens []string) (string, error)
}

// baseCode strips the species suffix a species-bearing identity carries
// ("123_Mus_musculus" -> "123"). SNOMED CT and RxNorm codes never contain
// underscores, so the first one always begins the suffix.
func baseCode(code string) string {
	if i := strings.IndexByte(code, '_'); i >= 0 {
		return code[:i]
	}
	return code
}

// Resolver batches UMLS lookups per chunk, one call per code system.
type Resolver struct {
	store UMLSStore
	log   *slog.Logger
}

// New creates a Resolver backed by store.
func New(store UMLSStore, log *slog.Logger) *Resolver {
	if log == nil {
		log = slog.Default()
	}
	return &Resolver{store: store, log: log}
}

// OntologyRef is one entity's resolved ontology identity plus the surface
// form the entity was originally observed under (needed for the
// text-search fallback, which has no ontology code to key off).
type OntologyRef struct {
	OntologyID  string
	SurfaceForm string
}

// Resolve looks up synonyms for every ontology ID observed in one chunk,
// partitioning by code system and batching queries per system (one query
// per chunk per code system). Any UMLS error degrades the
// affected entity's synonym list to empty rather than failing the chunk —
// the underlying store already rolled back its own transaction.
func (r *Resolver) Resolve(ctx context.Context, refs []OntologyRef) map[string][]string {
	out := make(map[string][]string, len(refs))

	var snomedCodes, rxnormCodes []string
	var otherRefs []OntologyRef
	// Two species-suffixed identities can share one base code (the same
	// SNOMED concept observed for two organisms), so each code fans back
	// out to every identity it came from.
	codeToRefs := make(map[string][]OntologyRef)

	for _, ref := range refs {
		switch {
		case strings.HasPrefix(ref.OntologyID, "SNOMEDCT:"):
			code := baseCode(strings.TrimPrefix(ref.OntologyID, "SNOMEDCT:"))
			if len(codeToRefs[code]) == 0 {
				snomedCodes = append(snomedCodes, code)
			}
			codeToRefs[code] = append(codeToRefs[code], ref)
		case strings.HasPrefix(ref.OntologyID, "RXNORM:"):
			code := baseCode(strings.TrimPrefix(ref.OntologyID, "RXNORM:"))
			if len(codeToRefs[code]) == 0 {
				rxnormCodes = append(rxnormCodes, code)
			}
			codeToRefs[code] = append(codeToRefs[code], ref)
		case strings.HasPrefix(ref.OntologyID, "BIOGRAPH:"):
			out[ref.OntologyID] = nil // by construction, not in the medical ontologies
		default:
			otherRefs = append(otherRefs, ref)
		}
	}

	r.resolveCodeSystem(ctx, "SNOMEDCT_US", snomedCodes, codeToRefs, out)
	r.resolveCodeSystem(ctx, "RXNORM", rxnormCodes, codeToRefs, out)

	for _, ref := range otherRefs {
		out[ref.OntologyID] = r.resolveOther(ctx, ref)
	}

	return out
}

func (r *Resolver) resolveCodeSystem(ctx context.Context, sab string, codes []string, codeToRefs map[string][]OntologyRef, out map[string][]string) {
	if len(codes) == 0 {
		return
	}
	emptyAll := func() {
		for _, code := range codes {
			for _, ref := range codeToRefs[code] {
				out[ref.OntologyID] = nil
			}
		}
	}

	codeToCUI, err := r.store.CodesToCUIs(ctx, codes, sab)
	if err != nil {
		r.log.Warn("umls code-to-cui lookup failed, synonyms empty for chunk", "sab", sab, "error", err)
		emptyAll()
		return
	}

	cuis := make([]string, 0, len(codeToCUI))
	for _, cui := range codeToCUI {
		cuis = append(cuis, cui)
	}
	formsByCUI, err := r.store.SurfaceFormsByCUI(ctx, cuis)
	if err != nil {
		r.log.Warn("umls surface-form lookup failed, synonyms empty for chunk", "sab", sab, "error", err)
		emptyAll()
		return
	}
	for _, code := range codes {
		var forms []string
		if cui, ok := codeToCUI[code]; ok {
			forms = formsByCUI[cui]
		}
		for _, ref := range codeToRefs[code] {
			out[ref.OntologyID] = forms
		}
	}
}

// cuiPattern matches a bare UMLS concept identifier.
var cuiPattern = regexp.MustCompile(`^C\d{7}$`)

// resolveOther tries a direct CUI lookup when the identity itself is a
// CUI, then falls back to the three text-search strategies, first
// non-empty wins.
func (r *Resolver) resolveOther(ctx context.Context, ref OntologyRef) []string {
	id := ref.OntologyID
	if i := strings.LastIndexByte(id, ':'); i >= 0 {
		id = id[i+1:]
	}
	if cuiPattern.MatchString(id) {
		if forms := r.formsForCUI(ctx, id); len(forms) > 0 {
			return forms
		}
	}

	if ref.SurfaceForm == "" {
		return nil
	}

	if cui, err := r.store.ExactMatchCUI(ctx, ref.SurfaceForm); err == nil && cui != "" {
		return r.formsForCUI(ctx, cui)
	}

	if cui, err := r.store.SubstringMatchCUI(ctx, ref.SurfaceForm, 10); err == nil && cui != "" {
		return r.formsForCUI(ctx, cui)
	}

	tokens := strings.Fields(ref.SurfaceForm)
	if len(tokens) >= 2 {
		if cui, err := r.store.MultiWordMatchCUI(ctx, tokens); err == nil && cui != "" {
			return r.formsForCUI(ctx, cui)
		}
	}

	return nil
}

func (r *Resolver) formsForCUI(ctx context.Context, cui string) []string {
	forms, err := r.store.SurfaceFormsByCUI(ctx, []string{cui})
	if err != nil {
		return nil
	}
	return forms[cui]
}

// Union combines a synonym list with the original surface form and
// deduplicates, so the original surface form is always a member. The
// orchestrator calls this per node.
func Union(surfaceForm string, resolved []string) []string {
	return fn.Unique(append([]string{surfaceForm}, resolved...))
}
