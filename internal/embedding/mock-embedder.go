package embedding

import (
	"context"
	"math"
)

// MockEmbedder is a deterministic embedder for tests. The same text always
// maps to the same unit-length vector, derived from the text hash, so ordinal
// alignment and round-trip tests are reproducible.
type MockEmbedder struct {
	modelName  string
	dimensions int
}

// NewMockEmbedder returns a deterministic embedder with the given model name
// and dimensions.
func NewMockEmbedder(modelName string, dimensions int) *MockEmbedder {
	if dimensions <= 0 {
		dimensions = 384
	}
	if modelName == "" {
		modelName = "mock-embedder"
	}
	return &MockEmbedder{modelName: modelName, dimensions: dimensions}
}

// Embed returns a deterministic embedding based on the text hash.
func (e *MockEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	h := HashString(text)
	emb := make([]float32, e.dimensions)
	for i := 0; i < e.dimensions; i++ {
		emb[i] = float32(math.Sin(float64(h*(i+1)))*0.1 + 0.01)
	}
	NormalizeL2Slice(emb)
	return emb, nil
}

// EmbedBatch embeds each text in order.
func (e *MockEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	embeddings := make([][]float32, len(texts))
	for i, text := range texts {
		emb, err := e.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		embeddings[i] = emb
	}
	return embeddings, nil
}

// ModelName returns the mock model identifier.
func (e *MockEmbedder) ModelName() string {
	return e.modelName
}

// Dimensions returns the embedding dimension.
func (e *MockEmbedder) Dimensions() int {
	return e.dimensions
}

// Close is a no-op for MockEmbedder.
func (e *MockEmbedder) Close() error {
	return nil
}

// NormalizeL2Slice normalizes the slice in place to unit L2 norm.
// A zero vector is left unchanged.
func NormalizeL2Slice(x []float32) {
	var sum float32
	for _, v := range x {
		sum += v * v
	}
	if sum == 0 {
		return
	}
	norm := float32(1.0 / math.Sqrt(float64(sum)))
	for i := range x {
		x[i] *= norm
	}
}
