package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	apperrors "github.com/querytube/querytube/internal/errors"
	"github.com/querytube/querytube/internal/models"
	"github.com/querytube/querytube/internal/youtube"
)

// FetchTranscripts fetches caption tracks for pending videos with a bounded
// worker pool. Transient upstream failures are retried with exponential
// backoff; a permanent failure marks the video TRANSCRIPT_FAILED. Per-video
// failures are reported through the response counts, never as an error.
func (p *Pipeline) FetchTranscripts(ctx context.Context, req *models.TranscriptsRequest) (*models.TranscriptsResponse, error) {
	pending, err := p.catalog.PendingTranscripts(ctx, req.VideoIDs, req.ForceRefresh)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeIO, "failed to list pending transcripts")
	}

	jobID := uuid.New().String()
	p.logger.Info("transcript fetch started",
		zap.String("job_id", jobID),
		zap.Int("pending", len(pending)),
		zap.Bool("force_refresh", req.ForceRefresh))

	var (
		mu      sync.Mutex
		fetched int
		failed  int
	)
	jobs := make(chan string)
	var wg sync.WaitGroup
	for i := 0; i < p.cfg.TranscriptWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for videoID := range jobs {
				ok := p.fetchOne(ctx, videoID)
				mu.Lock()
				if ok {
					fetched++
				} else {
					failed++
				}
				mu.Unlock()
			}
		}()
	}

	for _, id := range pending {
		select {
		case <-ctx.Done():
			close(jobs)
			wg.Wait()
			return nil, ctx.Err()
		case jobs <- id:
		}
	}
	close(jobs)
	wg.Wait()

	p.logger.Info("transcript fetch finished",
		zap.String("job_id", jobID),
		zap.Int("fetched", fetched),
		zap.Int("failed", failed))

	return &models.TranscriptsResponse{
		Status:             "completed",
		TranscriptsFetched: fetched,
		TranscriptsFailed:  failed,
		Message:            fmt.Sprintf("fetched %d transcripts, %d failed", fetched, failed),
		JobID:              jobID,
	}, nil
}

// fetchOne fetches a single video's transcript with retries and records the
// outcome in the catalog. Returns true on success.
func (p *Pipeline) fetchOne(ctx context.Context, videoID string) bool {
	backoff := p.cfg.RetryBackoff
	var lastErr error
	for attempt := 0; attempt <= p.cfg.TranscriptRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return false
			case <-time.After(backoff):
			}
			backoff *= 2
		}

		segments, err := p.transcripts.GetTranscript(ctx, videoID)
		if err == nil {
			text := youtube.JoinSegments(segments)
			if err := p.catalog.SetTranscript(ctx, videoID, text, segments); err != nil {
				p.logger.Error("failed to store transcript",
					zap.String("video_id", videoID), zap.Error(err))
				return false
			}
			return true
		}

		if apperrors.IsPermanent(err) {
			if merr := p.catalog.MarkTranscriptFailed(ctx, videoID, err.Error()); merr != nil {
				p.logger.Error("failed to record transcript failure",
					zap.String("video_id", videoID), zap.Error(merr))
			}
			p.logger.Warn("transcript permanently unavailable",
				zap.String("video_id", videoID), zap.Error(err))
			return false
		}

		lastErr = err
		p.logger.Debug("transcript fetch attempt failed",
			zap.String("video_id", videoID),
			zap.Int("attempt", attempt+1),
			zap.Error(err))
	}

	// Retries exhausted on a transient failure. The video stays in its
	// current stage so a later run picks it up again.
	p.logger.Warn("transcript fetch gave up after retries",
		zap.String("video_id", videoID), zap.Error(lastErr))
	return false
}
