package models

import apperrors "github.com/querytube/querytube/internal/errors"

// Search limits mirrored by the HTTP layer.
const (
	DefaultTopK = 5
	MaxTopK     = 50
)

// SearchQuery represents a semantic search request.
type SearchQuery struct {
	Query    string   `json:"query"`
	TopK     int      `json:"top_k,omitempty"`
	Metric   string   `json:"metric,omitempty"`
	MinScore *float64 `json:"min_score,omitempty"` // nil means no threshold
}

// Validate checks the query and normalizes defaults. TopK is clamped to
// [1, MaxTopK]; an unset metric defaults to cosine.
func (q *SearchQuery) Validate() error {
	if q.Query == "" {
		return apperrors.New(apperrors.CodeInvalidArg, "query cannot be empty")
	}
	if q.TopK <= 0 {
		q.TopK = DefaultTopK
	}
	if q.TopK > MaxTopK {
		q.TopK = MaxTopK
	}
	if q.Metric == "" {
		q.Metric = "cosine"
	}
	if q.MinScore != nil && (*q.MinScore < 0 || *q.MinScore > 1) {
		return apperrors.Newf(apperrors.CodeInvalidArg, "min_score must be in [0, 1], got %v", *q.MinScore)
	}
	return nil
}
