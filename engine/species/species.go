// Package species implements the static species-bearing/species-agnostic
// classification policy and identity suffixing rules.
package species

import (
	"regexp"
	"strings"

	"github.com/BiographAI/biograph/engine/domain"
)

// StampEntity applies the species policy to a raw entity: species-bearing
// types get species filled in (from the document context if absent);
// species-agnostic types have any species field dropped.
func StampEntity(e domain.RawEntity, documentSpecies string) domain.RawEntity {
	if domain.IsSpeciesBearing(e.EntityType) {
		if e.Species == "" {
			e.Species = documentSpecies
		}
		return e
	}
	e.Species = ""
	return e
}

// StampRelationship applies the species policy to a raw relationship:
// species defaults to the document's primary species with confidence
// "inherited" when absent.
func StampRelationship(r domain.RawRelationship, documentSpecies string) domain.RawRelationship {
	if r.Species == "" {
		r.Species = documentSpecies
		r.SpeciesConfidence = domain.RelInherited
	}
	return r
}

var (
	parenGroup = regexp.MustCompile(`\([^)]*\)`)
	whitespace = regexp.MustCompile(`\s+`)
)

// NormalizeBinomial normalizes a species binomial for use as an identity
// suffix: parenthesized qualifiers like "(implied)" removed, whitespace
// runs collapsed to a single underscore.
func NormalizeBinomial(binomial string) string {
	stripped := parenGroup.ReplaceAllString(binomial, "")
	stripped = strings.TrimSpace(stripped)
	return whitespace.ReplaceAllString(stripped, "_")
}

// SuffixIdentity appends the normalized species suffix to ontologyID for
// species-bearing entity types, unless the suffix is already present.
// Species-agnostic types are returned unchanged. The same SNOMED code
// observed for human vs. mouse anatomy produces two distinct graph nodes.
func SuffixIdentity(ontologyID, entityType, speciesBinomial string) string {
	if !domain.IsSpeciesBearing(entityType) || speciesBinomial == "" {
		return ontologyID
	}
	suffix := "_" + NormalizeBinomial(speciesBinomial)
	if strings.HasSuffix(ontologyID, suffix) {
		return ontologyID
	}
	return ontologyID + suffix
}
