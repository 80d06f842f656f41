package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/querytube/querytube/internal/catalog"
	apperrors "github.com/querytube/querytube/internal/errors"
	"github.com/querytube/querytube/internal/keyword"
	"github.com/querytube/querytube/internal/models"
	"github.com/querytube/querytube/internal/vector"
)

// BuildIndex embeds every transcribed video and writes a fresh snapshot.
// Without force_rebuild the stage is idempotent: when a persisted snapshot
// already exists it is left untouched and its counts are returned. A batch
// that fails to embed is dropped from both the vectors and the metadata rows
// so ordinal alignment always holds.
func (p *Pipeline) BuildIndex(ctx context.Context, req *models.EmbedRequest) (*models.EmbedResponse, error) {
	if req.ModelName != "" && req.ModelName != p.embedder.ModelName() {
		return nil, apperrors.Newf(apperrors.CodeModelMismatch,
			"requested model %q but the configured embedder is %q", req.ModelName, p.embedder.ModelName())
	}

	jobID := uuid.New().String()

	if !req.ForceRebuild && vector.Exists(p.cfg.IndexPath, p.cfg.MetaPath) {
		snap, err := vector.Load(p.cfg.IndexPath, p.cfg.MetaPath)
		if err != nil {
			return nil, err
		}
		p.logger.Info("index build skipped, snapshot exists",
			zap.String("job_id", jobID), zap.Int("index_size", snap.Len()))
		// Same counts a rebuild of the existing snapshot would report, so
		// repeated builds are indistinguishable to the caller.
		return &models.EmbedResponse{
			Status:        "skipped",
			VideosIndexed: snap.Len(),
			IndexSize:     snap.Len(),
			Message:       "index already exists; pass force_rebuild to rebuild",
			JobID:         jobID,
		}, nil
	}

	videos, err := p.catalog.TranscribedVideos(ctx)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeIO, "failed to list transcribed videos")
	}
	if len(videos) == 0 {
		return nil, apperrors.New(apperrors.CodeInvalidArg,
			"no transcribed videos to embed; run collect and transcripts first")
	}

	p.logger.Info("index build started",
		zap.String("job_id", jobID),
		zap.Int("videos", len(videos)),
		zap.String("model", p.embedder.ModelName()),
		zap.Int("batch_size", p.cfg.BatchSize))

	batchSize := req.BatchSize
	if batchSize <= 0 {
		batchSize = p.cfg.BatchSize
	}

	var (
		vectors [][]float32
		meta    []models.VideoMeta
		indexed []string
		dropped int
	)
	for start := 0; start < len(videos); start += batchSize {
		end := start + batchSize
		if end > len(videos) {
			end = len(videos)
		}
		batch := videos[start:end]

		texts := make([]string, len(batch))
		for i, v := range batch {
			texts[i] = v.Transcript
		}
		embeddings, err := p.embedBatchRetry(ctx, texts)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			dropped += len(batch)
			p.logger.Warn("embedding batch failed, dropping batch",
				zap.String("job_id", jobID),
				zap.Int("batch_start", start),
				zap.Int("batch_len", len(batch)),
				zap.Error(err))
			continue
		}
		for i, v := range batch {
			vectors = append(vectors, embeddings[i])
			meta = append(meta, videoMeta(v))
			indexed = append(indexed, v.VideoID)
		}
	}

	snap, err := vector.Build(vectors, meta, p.embedder.ModelName(), p.cfg.Metric)
	if err != nil {
		return nil, err
	}
	if err := snap.Persist(p.cfg.IndexPath, p.cfg.MetaPath); err != nil {
		return nil, err
	}
	if err := p.catalog.MarkEmbedded(ctx, indexed); err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeIO, "failed to mark videos embedded")
	}
	if err := p.rebuildSuggestions(ctx, videos); err != nil {
		p.logger.Warn("failed to rebuild suggestion index", zap.Error(err))
	}
	if p.sink != nil {
		p.sink.Swap(snap)
	}

	p.logger.Info("index build finished",
		zap.String("job_id", jobID),
		zap.Int("videos_indexed", len(indexed)),
		zap.Int("videos_dropped", dropped))

	msg := fmt.Sprintf("indexed %d videos", len(indexed))
	if dropped > 0 {
		msg = fmt.Sprintf("indexed %d videos, dropped %d on embedding failure", len(indexed), dropped)
	}
	return &models.EmbedResponse{
		Status:        "completed",
		VideosIndexed: len(indexed),
		IndexSize:     snap.Len(),
		Message:       msg,
		JobID:         jobID,
	}, nil
}

func videoMeta(v catalog.TranscribedVideo) models.VideoMeta {
	return models.VideoMeta{
		VideoID:      v.VideoID,
		Title:        v.Title,
		Channel:      v.Channel,
		ChannelID:    v.ChannelID,
		PublishedAt:  v.PublishedAt,
		ThumbnailURL: v.ThumbnailURL,
		Description:  v.Description,
		ViewCount:    v.ViewCount,
		Duration:     v.DurationSeconds,
		Transcript:   v.Transcript,
	}
}

// embedBatchRetry retries a batch on transient upstream errors before the
// caller gives up and drops it. Permanent and programming errors fail fast.
func (p *Pipeline) embedBatchRetry(ctx context.Context, texts []string) ([][]float32, error) {
	backoff := p.cfg.RetryBackoff
	var lastErr error
	for attempt := 0; attempt <= p.cfg.TranscriptRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
			backoff *= 2
		}
		embeddings, err := p.embedder.EmbedBatch(ctx, texts)
		if err == nil {
			return embeddings, nil
		}
		lastErr = err
		if !apperrors.IsTransient(err) {
			return nil, err
		}
	}
	return nil, lastErr
}

// RebuildSuggestions repopulates the autocomplete index from the catalog.
// The server calls this at startup; embed runs refresh it automatically.
func (p *Pipeline) RebuildSuggestions(ctx context.Context) error {
	videos, err := p.catalog.TranscribedVideos(ctx)
	if err != nil {
		return err
	}
	return p.rebuildSuggestions(ctx, videos)
}

func (p *Pipeline) rebuildSuggestions(ctx context.Context, videos []catalog.TranscribedVideo) error {
	if p.suggest == nil {
		return nil
	}
	entries := make([]keyword.Entry, len(videos))
	for i, v := range videos {
		entries[i] = keyword.Entry{VideoID: v.VideoID, Title: v.Title, Channel: v.Channel}
	}
	return p.suggest.Rebuild(ctx, entries)
}
