package embed

import (
	"context"
	"testing"
)

func TestSummary(t *testing.T) {
	got := Summary("Hypertension", "High blood pressure.")
	want := "Concept: Hypertension. Description: High blood pressure."
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestDeterministicEmbedderStable(t *testing.T) {
	e := NewDeterministicEmbedder(32)
	ctx := context.Background()
	a, err := e.Embed(ctx, "hello world")
	if err != nil {
		t.Fatal(err)
	}
	b, err := e.Embed(ctx, "hello world")
	if err != nil {
		t.Fatal(err)
	}
	if len(a) != 32 || len(b) != 32 {
		t.Fatalf("expected dim 32, got %d and %d", len(a), len(b))
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("non-deterministic embedding at index %d: %v vs %v", i, a[i], b[i])
		}
	}
}

func TestDeterministicEmbedderDiffers(t *testing.T) {
	e := NewDeterministicEmbedder(16)
	ctx := context.Background()
	a, _ := e.Embed(ctx, "alpha")
	b, _ := e.Embed(ctx, "beta")
	same := true
	for i := range a {
		if a[i] != b[i] {
			same = false
			break
		}
	}
	if same {
		t.Error("expected different inputs to produce different embeddings")
	}
}
