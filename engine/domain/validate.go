package domain

import (
	"strings"
)

// DeriveSourceID derives a document's source_id from its file stem.
// PMC-prefixed stems are used verbatim; others are prefixed DOC_ with
// spaces replaced by underscores.
func DeriveSourceID(fileStem string) string {
	if strings.HasPrefix(fileStem, "PMC") {
		return fileStem
	}
	return "DOC_" + strings.ReplaceAll(fileStem, " ", "_")
}

// ValidateDocumentContext checks a DocumentContext has the minimum fields
// required to proceed to Source upsert.
func ValidateDocumentContext(dc DocumentContext) error {
	if dc.SourceID == "" {
		return NewValidationError("source_id", dc.SourceID, ErrUnknownVocab)
	}
	if dc.StudyType == "" {
		return NewValidationError("study_type", string(dc.StudyType), ErrUnknownVocab)
	}
	return nil
}

// ValidateRawEntity checks an entity's type is in the closed node-type
// vocabulary. Callers drop entities that fail this check rather than
// propagate an error.
func ValidateRawEntity(e RawEntity) error {
	if !NodeTypes[e.EntityType] {
		return NewValidationError("entity_type", e.EntityType, ErrUnknownVocab)
	}
	return nil
}

// ValidateRawRelationship checks a relationship's type is in the closed
// relationship vocabulary. Callers drop relationships that fail this check
// rather than propagate an error.
func ValidateRawRelationship(r RawRelationship) error {
	if !RelationTypes[r.RelationType] {
		return NewValidationError("relation_type", r.RelationType, ErrUnknownVocab)
	}
	return nil
}
