package vector

import (
	"sort"

	apperrors "github.com/querytube/querytube/internal/errors"
	"github.com/querytube/querytube/internal/models"
)

// Snapshot is an immutable, fully-built index: vectors plus a metadata table
// aligned by ordinal. Row i of the metadata table belongs to vector i; the
// table is never reordered, filtered, or deduplicated after Build. A snapshot
// is replaced wholesale by the next successful build, never mutated in place.
type Snapshot struct {
	metric    Metric
	dimension int
	modelName string
	vectors   [][]float32
	meta      []models.VideoMeta
}

// Hit is a single search result: the vector's ordinal and its score.
type Hit struct {
	Ordinal int
	Score   float64
}

// Build creates a snapshot from an ordered vector set and its aligned metadata
// rows. All vectors must share one dimension. For the cosine metric, vectors
// are L2-normalized copies; the originals are not modified.
func Build(vectors [][]float32, meta []models.VideoMeta, modelName string, metric Metric) (*Snapshot, error) {
	if len(vectors) == 0 {
		return nil, apperrors.New(apperrors.CodeInvalidArg, "cannot build an index from zero vectors")
	}
	if len(vectors) != len(meta) {
		return nil, apperrors.Newf(apperrors.CodeDimensionMismatch,
			"vector count %d does not match metadata row count %d", len(vectors), len(meta))
	}
	dim := len(vectors[0])
	if dim == 0 {
		return nil, apperrors.New(apperrors.CodeDimensionMismatch, "zero-dimension vector at ordinal 0")
	}

	stored := make([][]float32, len(vectors))
	for i, v := range vectors {
		if len(v) != dim {
			return nil, apperrors.Newf(apperrors.CodeDimensionMismatch,
				"vector at ordinal %d has dimension %d, expected %d", i, len(v), dim)
		}
		if metric == MetricCosine {
			stored[i] = Normalize(v)
		} else {
			vec := make([]float32, dim)
			copy(vec, v)
			stored[i] = vec
		}
	}

	rows := make([]models.VideoMeta, len(meta))
	copy(rows, meta)

	return &Snapshot{
		metric:    metric,
		dimension: dim,
		modelName: modelName,
		vectors:   stored,
		meta:      rows,
	}, nil
}

// Len returns the number of vectors in the snapshot.
func (s *Snapshot) Len() int { return len(s.vectors) }

// Dimension returns the vector dimension.
func (s *Snapshot) Dimension() int { return s.dimension }

// Metric returns the metric the snapshot was built with.
func (s *Snapshot) Metric() Metric { return s.metric }

// ModelName returns the embedding model the snapshot was built with.
func (s *Snapshot) ModelName() string { return s.modelName }

// Meta returns the metadata row for ordinal i.
func (s *Snapshot) Meta(i int) models.VideoMeta { return s.meta[i] }

// Vector returns a copy of the vector at ordinal i.
func (s *Snapshot) Vector(i int) []float32 {
	out := make([]float32, len(s.vectors[i]))
	copy(out, s.vectors[i])
	return out
}

// Search runs exact brute-force similarity search. The query metric must equal
// the build metric. For cosine the caller passes a normalized query vector.
// Results are sorted by descending score, ties broken by ascending ordinal.
// minScore (when non-nil) filters entries before truncation to topK, so it
// never changes the rank of surviving results.
func (s *Snapshot) Search(query []float32, topK int, minScore *float64, metric Metric) ([]Hit, error) {
	if metric != s.metric {
		return nil, apperrors.Newf(apperrors.CodeMetricMismatch,
			"index was built with metric %q, queried with %q", s.metric, metric)
	}
	if len(query) != s.dimension {
		return nil, apperrors.Newf(apperrors.CodeDimensionMismatch,
			"query has dimension %d, index expects %d", len(query), s.dimension)
	}
	if topK <= 0 {
		return nil, nil
	}

	hits := make([]Hit, 0, len(s.vectors))
	for i, vec := range s.vectors {
		var score float64
		switch s.metric {
		case MetricCosine:
			score = CosineScore(query, vec)
		case MetricEuclidean:
			score = 1.0 / (1.0 + L2Distance(query, vec))
		case MetricDotProduct:
			score = InnerProduct(query, vec)
		}
		if minScore != nil && score < *minScore {
			continue
		}
		hits = append(hits, Hit{Ordinal: i, Score: score})
	}

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].Ordinal < hits[j].Ordinal
	})

	if topK < len(hits) {
		hits = hits[:topK]
	}
	return hits, nil
}
