// Package embedding provides text embedding for transcripts and queries.
package embedding

import "context"

// Embedder produces fixed-dimension vector embeddings for text. For a given
// model name the dimension is constant and the output is deterministic per
// model version. EmbedBatch preserves input order: output i is the embedding
// of input i.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	ModelName() string
	Dimensions() int
	Close() error
}
