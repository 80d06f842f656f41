// Package scheduler runs the periodic refresh: collect new videos for a
// configured channel, fetch their transcripts, and rebuild the index.
package scheduler

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	apperrors "github.com/querytube/querytube/internal/errors"
	"github.com/querytube/querytube/internal/models"
)

// Pipeline is the subset of the ingestion pipeline the scheduler drives.
type Pipeline interface {
	Collect(ctx context.Context, req *models.CollectRequest) (*models.CollectResponse, error)
	FetchTranscripts(ctx context.Context, req *models.TranscriptsRequest) (*models.TranscriptsResponse, error)
	BuildIndex(ctx context.Context, req *models.EmbedRequest) (*models.EmbedResponse, error)
}

// Scheduler triggers full pipeline refreshes on a cron schedule.
type Scheduler struct {
	pipeline  Pipeline
	schedule  string
	channelID string
	cron      *cron.Cron
	logger    *zap.Logger
}

// New creates a scheduler. schedule is a standard five-field cron expression;
// channelID is the channel to refresh.
func New(p Pipeline, schedule, channelID string, logger *zap.Logger) *Scheduler {
	return &Scheduler{
		pipeline:  p,
		schedule:  schedule,
		channelID: channelID,
		// Prevent overlapping refreshes when one run outlasts the interval.
		cron:   cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		logger: logger,
	}
}

// Start registers the refresh job and starts the cron loop. It returns
// immediately; jobs run on the cron's goroutine until Stop.
func (s *Scheduler) Start(ctx context.Context) error {
	_, err := s.cron.AddFunc(s.schedule, func() {
		if err := s.RunOnce(ctx); err != nil {
			s.logger.Error("scheduled refresh failed", zap.Error(err))
		}
	})
	if err != nil {
		return fmt.Errorf("failed to add refresh job: %w", err)
	}
	s.cron.Start()
	s.logger.Info("refresh scheduler started",
		zap.String("schedule", s.schedule),
		zap.String("channel_id", s.channelID))
	return nil
}

// RunOnce runs a single refresh cycle.
func (s *Scheduler) RunOnce(ctx context.Context) error {
	collected, err := s.pipeline.Collect(ctx, &models.CollectRequest{ChannelID: s.channelID})
	if err != nil {
		return fmt.Errorf("refresh collect failed: %w", err)
	}
	transcripts, err := s.pipeline.FetchTranscripts(ctx, &models.TranscriptsRequest{})
	if err != nil {
		return fmt.Errorf("refresh transcript fetch failed: %w", err)
	}
	// Rebuild only when the run produced new transcripts; otherwise BuildIndex
	// no-ops against the existing snapshot.
	built, err := s.pipeline.BuildIndex(ctx, &models.EmbedRequest{
		ForceRebuild: transcripts.TranscriptsFetched > 0,
	})
	if err != nil {
		// An empty catalog is not a refresh failure, just nothing to index yet.
		if apperrors.Code(err) == apperrors.CodeInvalidArg {
			s.logger.Info("scheduled refresh found nothing to index")
			return nil
		}
		return fmt.Errorf("refresh index build failed: %w", err)
	}
	s.logger.Info("scheduled refresh completed",
		zap.Int("videos_collected", collected.VideosCollected),
		zap.Int("transcripts_fetched", transcripts.TranscriptsFetched),
		zap.Int("transcripts_failed", transcripts.TranscriptsFailed),
		zap.Int("videos_indexed", built.VideosIndexed))
	return nil
}

// Stop stops the cron loop and waits for a running job to finish.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.logger.Info("refresh scheduler stopped")
}
