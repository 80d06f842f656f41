// Package search runs semantic queries against the current index snapshot.
package search

import (
	"context"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/querytube/querytube/internal/embedding"
	apperrors "github.com/querytube/querytube/internal/errors"
	"github.com/querytube/querytube/internal/keyword"
	"github.com/querytube/querytube/internal/models"
	"github.com/querytube/querytube/internal/vector"
)

// Engine answers search requests against an immutable snapshot. The snapshot
// pointer is swapped atomically on reload, so in-flight searches finish
// against the snapshot they started with.
type Engine struct {
	embedder  embedding.Embedder
	suggest   *keyword.SuggestIndex
	indexPath string
	metaPath  string
	logger    *zap.Logger

	snapshot atomic.Pointer[vector.Snapshot]
}

// NewEngine creates a search engine. Call Reload to load the persisted
// snapshot; until then every search returns INDEX_NOT_FOUND.
func NewEngine(embedder embedding.Embedder, suggest *keyword.SuggestIndex, indexPath, metaPath string, logger *zap.Logger) *Engine {
	return &Engine{
		embedder:  embedder,
		suggest:   suggest,
		indexPath: indexPath,
		metaPath:  metaPath,
		logger:    logger,
	}
}

// Snapshot returns the currently served snapshot, or nil if none is loaded.
func (e *Engine) Snapshot() *vector.Snapshot {
	return e.snapshot.Load()
}

// Swap installs a freshly built snapshot without touching disk. Used by the
// embed stage, which has the snapshot in hand already.
func (e *Engine) Swap(snap *vector.Snapshot) {
	e.snapshot.Store(snap)
	if snap != nil {
		e.logger.Info("index snapshot swapped",
			zap.Int("vectors", snap.Len()),
			zap.Int("dimension", snap.Dimension()),
			zap.String("metric", string(snap.Metric())))
	}
}

// Reload loads the persisted snapshot and atomically swaps it in. On failure
// the previous snapshot keeps serving.
func (e *Engine) Reload(ctx context.Context) error {
	snap, err := vector.Load(e.indexPath, e.metaPath)
	if err != nil {
		return err
	}
	e.Swap(snap)
	return nil
}

// Search embeds the query and returns the top-ranked videos. Results below
// query.MinScore are dropped before the top-k cut.
func (e *Engine) Search(ctx context.Context, query *models.SearchQuery) (*models.SearchResponse, error) {
	start := time.Now()
	if err := query.Validate(); err != nil {
		return nil, err
	}
	metric, err := vector.ParseMetric(query.Metric)
	if err != nil {
		return nil, err
	}

	snap := e.snapshot.Load()
	if snap == nil {
		return nil, apperrors.New(apperrors.CodeIndexNotFound, "no index snapshot loaded; run an embed first")
	}
	if e.embedder.ModelName() != snap.ModelName() {
		return nil, apperrors.Newf(apperrors.CodeModelMismatch,
			"index built with model %q but engine embeds with %q", snap.ModelName(), e.embedder.ModelName())
	}

	queryVec, err := e.embedder.Embed(ctx, query.Query)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeInternal, "query embedding failed")
	}
	// Snapshot vectors are unit-length for cosine; the query must match
	// regardless of what the embedder emits.
	if metric == vector.MetricCosine {
		queryVec = vector.Normalize(queryVec)
	}

	hits, err := snap.Search(queryVec, query.TopK, query.MinScore, metric)
	if err != nil {
		return nil, err
	}

	results := make([]*models.SearchResult, len(hits))
	for i, hit := range hits {
		meta := snap.Meta(hit.Ordinal)
		results[i] = &models.SearchResult{
			VideoID:      meta.VideoID,
			Title:        meta.Title,
			Channel:      meta.Channel,
			ChannelID:    meta.ChannelID,
			PublishedAt:  meta.PublishedAt,
			ThumbnailURL: meta.ThumbnailURL,
			Description:  meta.Description,
			ViewCount:    meta.ViewCount,
			Duration:     meta.Duration,
			Score:        hit.Score,
			Snippet:      Snippet(meta.Transcript, query.Query, SnippetMaxLen),
			Rank:         i + 1,
		}
	}

	e.logger.Debug("search completed",
		zap.String("query", query.Query),
		zap.Int("results", len(results)),
		zap.Duration("took", time.Since(start)))

	return &models.SearchResponse{
		Query:   query.Query,
		Results: results,
		Total:   len(results),
		TookMS:  time.Since(start).Milliseconds(),
	}, nil
}

// Autocomplete returns title suggestions for a typed prefix.
func (e *Engine) Autocomplete(ctx context.Context, prefix string, limit int) ([]*models.Suggestion, error) {
	if limit <= 0 || limit > models.MaxTopK {
		limit = 10
	}
	return e.suggest.Suggest(ctx, prefix, limit)
}
