package enrich

import (
	"context"
	"testing"

	"github.com/BiographAI/biograph/engine/domain"
	"github.com/BiographAI/biograph/engine/llmextract"
	"github.com/BiographAI/biograph/engine/standardize"
	"github.com/BiographAI/biograph/engine/synonym"
)

type fakeExtractor struct{ result llmextract.Result }

func (f *fakeExtractor) Extract(_ context.Context, _, _ string) llmextract.Result { return f.result }

type fakeStandardizer struct{ infoFor map[standardize.Entity]standardize.Info }

func (f *fakeStandardizer) Batch(_ context.Context, entities []standardize.Entity) map[standardize.Entity]standardize.Info {
	out := make(map[standardize.Entity]standardize.Info, len(entities))
	for _, e := range entities {
		out[e] = f.infoFor[e]
	}
	return out
}

type fakeResolver struct{}

func (f *fakeResolver) Resolve(_ context.Context, refs []synonym.OntologyRef) map[string][]string {
	out := make(map[string][]string, len(refs))
	for _, r := range refs {
		out[r.OntologyID] = nil
	}
	return out
}

type fakeEmbedder struct{}

func (f *fakeEmbedder) Embed(_ context.Context, _ string) ([]float32, error) { return []float32{1, 2}, nil }
func (f *fakeEmbedder) Dims() int                                           { return 2 }

func TestProcessHumanHypertensionScenario(t *testing.T) {
	result := llmextract.Result{
		Entities: []domain.RawEntity{
			{EntityName: "hypertension", EntityType: "Disease", EntityDescription: "diagnosed"},
			{EntityName: "lisinopril", EntityType: "Medication", EntityDescription: "prescribed 10mg daily"},
		},
		Relationships: []domain.RawRelationship{
			{SourceEntityName: "hypertension", SourceEntityType: "Disease", TargetEntityName: "lisinopril", TargetEntityType: "Medication", RelationType: "TREATED_BY", RelationshipDescription: "prescribed lisinopril"},
		},
	}
	infoFor := map[standardize.Entity]standardize.Info{
		{Name: "hypertension", Type: "Disease"}:  {OntologyID: "SNOMEDCT:38341003", StandardName: "Hypertension"},
		{Name: "lisinopril", Type: "Medication"}: {OntologyID: "RXNORM:29046", StandardName: "Lisinopril"},
	}

	o := New(Deps{
		Extractor:    &fakeExtractor{result: result},
		Standardizer: &fakeStandardizer{infoFor: infoFor},
		Synonyms:     &fakeResolver{},
		Embedder:     &fakeEmbedder{},
	})

	dc := domain.DocumentContext{PrimarySpecies: "Homo sapiens"}
	batch := o.Process(context.Background(), "DOC_1", dc, "chunk text")

	if len(batch.Nodes) != 2 {
		t.Fatalf("expected 2 nodes, got %d", len(batch.Nodes))
	}
	for _, n := range batch.Nodes {
		if n.Species != "" {
			t.Errorf("Disease/Medication nodes must not carry species, got %q on %s", n.Species, n.OntologyID)
		}
	}
	if len(batch.Relationships) != 1 {
		t.Fatalf("expected 1 relationship, got %d", len(batch.Relationships))
	}
	rel := batch.Relationships[0]
	if rel.Species != "Homo sapiens" || rel.SpeciesConfidence != domain.RelInherited {
		t.Errorf("expected inherited document species on relationship, got %+v", rel)
	}
}

func TestProcessSpeciesSuffixingScenario(t *testing.T) {
	result := llmextract.Result{
		Entities: []domain.RawEntity{
			{EntityName: "TP53", EntityType: "Gene"},
			{EntityName: "liver", EntityType: "Anatomy"},
		},
	}
	infoFor := map[standardize.Entity]standardize.Info{
		{Name: "TP53", Type: "Gene"}:     {OntologyID: "SNOMEDCT:1", StandardName: "TP53"},
		{Name: "liver", Type: "Anatomy"}: {OntologyID: "SNOMEDCT:2", StandardName: "Liver"},
	}
	o := New(Deps{
		Extractor:    &fakeExtractor{result: result},
		Standardizer: &fakeStandardizer{infoFor: infoFor},
		Synonyms:     &fakeResolver{},
		Embedder:     &fakeEmbedder{},
	})
	dc := domain.DocumentContext{PrimarySpecies: "Mus musculus"}
	batch := o.Process(context.Background(), "DOC_2", dc, "chunk")

	for _, n := range batch.Nodes {
		if n.Species != "Mus musculus" {
			t.Errorf("expected species Mus musculus, got %q", n.Species)
		}
		want := "_Mus_musculus"
		if len(n.OntologyID) < len(want) || n.OntologyID[len(n.OntologyID)-len(want):] != want {
			t.Errorf("expected ontology_id to end with %q, got %q", want, n.OntologyID)
		}
	}
}

func TestProcessDanglingRelationshipDropped(t *testing.T) {
	result := llmextract.Result{
		Entities: []domain.RawEntity{
			{EntityName: "hypertension", EntityType: "Disease"},
		},
		Relationships: []domain.RawRelationship{
			{SourceEntityName: "absent", SourceEntityType: "Disease", TargetEntityName: "hypertension", TargetEntityType: "Disease", RelationType: "CAUSES"},
		},
	}
	infoFor := map[standardize.Entity]standardize.Info{
		{Name: "hypertension", Type: "Disease"}: {OntologyID: "SNOMEDCT:38341003", StandardName: "Hypertension"},
	}
	o := New(Deps{
		Extractor:    &fakeExtractor{result: result},
		Standardizer: &fakeStandardizer{infoFor: infoFor},
		Synonyms:     &fakeResolver{},
		Embedder:     &fakeEmbedder{},
	})
	batch := o.Process(context.Background(), "DOC_3", domain.DocumentContext{PrimarySpecies: "Homo sapiens"}, "chunk")
	if len(batch.Relationships) != 0 {
		t.Errorf("expected dangling relationship to be dropped, got %+v", batch.Relationships)
	}
}

func TestProcessEmptyExtractionYieldsEmptyBatch(t *testing.T) {
	o := New(Deps{
		Extractor:    &fakeExtractor{result: llmextract.Result{}},
		Standardizer: &fakeStandardizer{infoFor: map[standardize.Entity]standardize.Info{}},
		Synonyms:     &fakeResolver{},
		Embedder:     &fakeEmbedder{},
	})
	batch := o.Process(context.Background(), "DOC_4", domain.DocumentContext{}, "chunk")
	if len(batch.Nodes) != 0 || len(batch.Relationships) != 0 {
		t.Errorf("expected empty batch, got %+v", batch)
	}
}

func TestProcessSynonymContainsOriginalSurfaceForm(t *testing.T) {
	result := llmextract.Result{
		Entities: []domain.RawEntity{{EntityName: "zzzfictionalosis", EntityType: "Disease"}},
	}
	o := New(Deps{
		Extractor:    &fakeExtractor{result: result},
		Standardizer: &fakeStandardizer{infoFor: map[standardize.Entity]standardize.Info{}},
		Synonyms:     &fakeResolver{},
		Embedder:     &fakeEmbedder{},
	})
	batch := o.Process(context.Background(), "DOC_5", domain.DocumentContext{}, "chunk")
	if len(batch.Nodes) != 1 {
		t.Fatalf("expected 1 node via fallback, got %d", len(batch.Nodes))
	}
	n := batch.Nodes[0]
	found := false
	for _, s := range n.Synonyms {
		if s == "zzzfictionalosis" {
			found = true
		}
	}
	if !found {
		t.Errorf("expected synonyms to contain original surface form, got %v", n.Synonyms)
	}
}
