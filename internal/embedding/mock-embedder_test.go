package embedding

import (
	"context"
	"math"
	"testing"
)

func TestMockEmbedder_Deterministic(t *testing.T) {
	e := NewMockEmbedder("mock-test", 8)
	ctx := context.Background()

	a, err := e.Embed(ctx, "machine learning")
	if err != nil {
		t.Fatal(err)
	}
	b, err := e.Embed(ctx, "machine learning")
	if err != nil {
		t.Fatal(err)
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("embedding not deterministic at %d: %v vs %v", i, a[i], b[i])
		}
	}
}

func TestMockEmbedder_UnitLength(t *testing.T) {
	e := NewMockEmbedder("mock-test", 16)
	emb, err := e.Embed(context.Background(), "some transcript text")
	if err != nil {
		t.Fatal(err)
	}
	var sum float64
	for _, v := range emb {
		sum += float64(v * v)
	}
	if math.Abs(math.Sqrt(sum)-1.0) > 1e-5 {
		t.Errorf("expected unit norm, got %f", math.Sqrt(sum))
	}
}

func TestMockEmbedder_BatchPreservesOrder(t *testing.T) {
	e := NewMockEmbedder("mock-test", 8)
	ctx := context.Background()
	texts := []string{"first", "second", "third"}

	batch, err := e.EmbedBatch(ctx, texts)
	if err != nil {
		t.Fatal(err)
	}
	if len(batch) != 3 {
		t.Fatalf("expected 3 embeddings, got %d", len(batch))
	}
	for i, text := range texts {
		single, _ := e.Embed(ctx, text)
		for j := range single {
			if batch[i][j] != single[j] {
				t.Fatalf("batch order not preserved for %q", text)
			}
		}
	}
}

func TestMockEmbedder_Defaults(t *testing.T) {
	e := NewMockEmbedder("", 0)
	if e.Dimensions() != 384 {
		t.Errorf("Dimensions=%d", e.Dimensions())
	}
	if e.ModelName() == "" {
		t.Error("ModelName should default to a non-empty name")
	}
}
