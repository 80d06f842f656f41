// Package vector provides an exact brute-force vector index over transcript
// embeddings, with durable two-artifact persistence (vector file + metadata
// file, aligned by ordinal).
package vector

import (
	apperrors "github.com/querytube/querytube/internal/errors"
)

// Metric is the similarity metric an index is built with. The metric is fixed
// at build time and stored in the snapshot header.
type Metric string

const (
	// MetricCosine L2-normalizes vectors at build time and queries at search
	// time; scores are clamped to [0, 1].
	MetricCosine Metric = "cosine"
	// MetricEuclidean scores by 1/(1+distance), a bounded monotonic mapping
	// of raw L2 distance.
	MetricEuclidean Metric = "euclidean"
	// MetricDotProduct scores by raw inner product, no normalization.
	MetricDotProduct Metric = "dot_product"
)

// metric codes in the persisted vector file header.
var metricCodes = map[Metric]uint32{
	MetricCosine:     1,
	MetricEuclidean:  2,
	MetricDotProduct: 3,
}

func metricFromCode(code uint32) (Metric, bool) {
	for m, c := range metricCodes {
		if c == code {
			return m, true
		}
	}
	return "", false
}

// ParseMetric validates a metric name from config or a request.
func ParseMetric(s string) (Metric, error) {
	switch Metric(s) {
	case MetricCosine, MetricEuclidean, MetricDotProduct:
		return Metric(s), nil
	case "":
		return MetricCosine, nil
	default:
		return "", apperrors.Newf(apperrors.CodeInvalidArg,
			"unknown metric %q (supported: cosine, euclidean, dot_product)", s)
	}
}
