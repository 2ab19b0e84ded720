package llmextract

import (
	"fmt"
	"sort"
	"strings"

	"github.com/BiographAI/biograph/engine/domain"
)

// abbrevExamples are drawn from engine/standardize's abbreviation table so
// the in-prompt examples never drift out of sync with the table the
// Standardizer falls back to.
var abbrevExamples = []string{
	"HTN -> hypertension",
	"MI -> myocardial infarction",
	"T2DM -> type 2 diabetes mellitus",
	"COPD -> chronic obstructive pulmonary disease",
	"SOB -> shortness of breath",
}

func sortedVocab(vocab map[string]bool) []string {
	out := make([]string, 0, len(vocab))
	for k := range vocab {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// BuildPrompt renders the extraction prompt for one chunk. The closed
// vocabularies, abbreviation-expansion instruction, and species-field
// rules are fixed; chunkText and the document's primary
// species are the only variable inputs.
func BuildPrompt(chunkText, documentSpecies string) string {
	nodeTypes := strings.Join(sortedVocab(domain.NodeTypes), ", ")
	relTypes := strings.Join(sortedVocab(domain.RelationTypes), ", ")
	speciesBearing := strings.Join(sortedVocab(domain.SpeciesBearingTypes), ", ")

	var b strings.Builder
	fmt.Fprintf(&b, "You are a biomedical information extraction system. Read the text below and extract entities and relationships as a single JSON object.\n\n")
	fmt.Fprintf(&b, "Allowed entity_type values (use exactly one of these, nothing else): %s\n", nodeTypes)
	fmt.Fprintf(&b, "Allowed relation_type values (use exactly one of these, nothing else): %s\n\n", relTypes)
	fmt.Fprintf(&b, "Before extracting, expand any medical abbreviation in an entity's name to its full term. Examples:\n")
	for _, ex := range abbrevExamples {
		fmt.Fprintf(&b, "  %s\n", ex)
	}
	fmt.Fprintf(&b, "\nSpecies rules:\n")
	fmt.Fprintf(&b, "- For entities of type %s, include a \"species\" field naming the organism (scientific binomial when known).\n", speciesBearing)
	fmt.Fprintf(&b, "- For every other entity type, omit the \"species\" field entirely.\n")
	fmt.Fprintf(&b, "- For every relationship, include \"species\" and \"species_confidence\" (one of explicit, inherited, speculative, unknown). If the text does not explicitly state the organism, set species to %q and species_confidence to \"inherited\".\n\n", documentSpecies)
	fmt.Fprintf(&b, "Output exactly one JSON object with exactly two keys, \"entities\" and \"relationships\". Empty arrays are fine if nothing qualifies. Do not include any text outside the JSON object.\n\n")
	fmt.Fprintf(&b, "entities: array of {entity_name, entity_type, entity_description, species?}\n")
	fmt.Fprintf(&b, "relationships: array of {source_entity_name, source_entity_type, target_entity_name, target_entity_type, relation_type, relationship_description, species, species_confidence}\n\n")
	fmt.Fprintf(&b, "Text:\n%s\n", chunkText)
	return b.String()
}

// ContextPrompt renders the document-context extraction prompt from
// the header lines of a document.
func ContextPrompt(headerText string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are a biomedical document metadata extraction system. Read the header text below and produce a single strict JSON object with exactly these keys: title, authors, journal, publication_year, doi, primary_species, species_confidence, species_evidence, study_type, source_type, source_platform.\n\n")
	fmt.Fprintf(&b, "primary_species is the scientific binomial of the organism under study, the literal string \"not specified\" if none is evident, or \"<binomial> (implied)\" if inferred rather than stated.\n")
	fmt.Fprintf(&b, "species_confidence is one of: high, medium, low.\n")
	fmt.Fprintf(&b, "species_evidence is at most 100 characters describing why you chose the species.\n")
	fmt.Fprintf(&b, "study_type is one of: clinical trial, animal study, in vitro, computational, review, case report, other.\n\n")
	fmt.Fprintf(&b, "Output only the JSON object, no surrounding text.\n\n")
	fmt.Fprintf(&b, "Header:\n%s\n", headerText)
	return b.String()
}
