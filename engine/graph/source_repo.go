package graph

import (
	"time"

	"github.com/BiographAI/biograph/engine/domain"
	"github.com/BiographAI/biograph/pkg/repo"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j/dbtype"
)

// newSourceRepo creates a Neo4j-backed repository for Source nodes, a
// plain keyed entity with no dynamic labels — it fits the generic repo
// shape that EnrichedNode does not.
func newSourceRepo(driver neo4j.DriverWithContext) *repo.Neo4jRepo[domain.Source, string] {
	return repo.NewNeo4jRepo[domain.Source, string](
		driver,
		"Source",
		sourceToMap,
		sourceFromRecord,
		repo.WithIDKey[domain.Source, string]("source_id"),
	)
}

func sourceToMap(s domain.Source) map[string]any {
	return map[string]any{
		"source_id":          s.SourceID,
		"title":              s.Title,
		"authors":            s.Authors,
		"journal":            s.Journal,
		"publication_year":   s.PublicationYear,
		"doi":                s.DOI,
		"primary_species":    s.PrimarySpecies,
		"species_confidence": string(s.SpeciesConfidence),
		"species_evidence":   s.SpeciesEvidence,
		"study_type":         string(s.StudyType),
		"source_type":        s.SourceType,
		"source_platform":    s.SourcePlatform,
		"processing_date":    s.ProcessingDate.Format(time.RFC3339),
		"document_path":      s.DocumentPath,
	}
}

func sourceFromRecord(rec *neo4j.Record) (domain.Source, error) {
	node, _, err := neo4j.GetRecordValue[dbtype.Node](rec, "n")
	if err != nil {
		return domain.Source{}, err
	}
	return sourceFromProps(node.Props), nil
}

func sourceFromProps(props map[string]any) domain.Source {
	processed, _ := time.Parse(time.RFC3339, strProp(props, "processing_date"))
	year, _ := props["publication_year"].(int64)
	return domain.Source{DocumentContext: domain.DocumentContext{
		SourceID:          strProp(props, "source_id"),
		Title:             strProp(props, "title"),
		Authors:           strProp(props, "authors"),
		Journal:           strProp(props, "journal"),
		PublicationYear:   int(year),
		DOI:               strProp(props, "doi"),
		PrimarySpecies:    strProp(props, "primary_species"),
		SpeciesConfidence: domain.SpeciesConfidence(strProp(props, "species_confidence")),
		SpeciesEvidence:   strProp(props, "species_evidence"),
		StudyType:         domain.StudyType(strProp(props, "study_type")),
		SourceType:        strProp(props, "source_type"),
		SourcePlatform:    strProp(props, "source_platform"),
		ProcessingDate:    processed,
		DocumentPath:      strProp(props, "document_path"),
	}}
}

func strProp(props map[string]any, key string) string {
	if v, ok := props[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}
