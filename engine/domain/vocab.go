package domain

// NodeTypes is the closed vocabulary of entity types the extraction prompt
// is allowed to emit. Entities whose type falls outside this set are
// dropped when the extraction output is parsed (llmextract.Parse).
var NodeTypes = map[string]bool{
	"Disease": true, "Symptom": true, "Medication": true, "Procedure": true,
	"Gene": true, "Protein": true, "Anatomy": true, "Cell_Type": true,
	"Pathway": true, "Biomarker": true, "Disorder": true,
	"Genetic_Disorder": true, "Organism": true, "Chemical": true,
	"Device": true, "Study": true, "Outcome": true, "Risk_Factor": true,
	"Phenotype": true,
}

// RelationTypes is the closed vocabulary of relationship types the
// extraction prompt is allowed to emit. EXTRACTED_FROM is reserved for
// the Source-linkage edge written by the graph writer and is never
// produced by the LLM.
var RelationTypes = map[string]bool{
	"TREATS": true, "TREATED_BY": true, "CAUSES": true, "CAUSED_BY": true,
	"DIAGNOSED_BY": true, "ASSOCIATED_WITH": true, "EXPRESSED_IN": true,
	"REGULATES": true, "INTERACTS_WITH": true, "PART_OF": true,
	"MEASURED_BY": true, "INDICATES": true, "PRESCRIBED_FOR": true,
	"CONTRAINDICATED_WITH": true, "STUDIED_IN": true, "OBSERVED_IN": true,
	"PRECEDES": true, "COMORBID_WITH": true, "RISK_FACTOR_FOR": true,
	"SUBTYPE_OF": true,
}

// SourceLinkRelation is the fixed relationship type linking an entity node
// to the Source document it was extracted from.
const SourceLinkRelation = "EXTRACTED_FROM"

// SpeciesBearingTypes are the node types whose identity depends on the
// organism under study.
var SpeciesBearingTypes = map[string]bool{
	"Gene": true, "Protein": true, "Anatomy": true, "Cell_Type": true,
}

// IsSpeciesBearing reports whether entityType requires species-suffixed
// identity.
func IsSpeciesBearing(entityType string) bool {
	return SpeciesBearingTypes[entityType]
}
