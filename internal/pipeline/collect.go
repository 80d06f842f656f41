package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	apperrors "github.com/querytube/querytube/internal/errors"
	"github.com/querytube/querytube/internal/models"
	"github.com/querytube/querytube/internal/youtube"
)

// Collect lists videos for the request's selector, fetches their stats, and
// upserts them into the catalog. Re-collecting a known video overwrites its
// metadata but never touches transcript state.
func (p *Pipeline) Collect(ctx context.Context, req *models.CollectRequest) (*models.CollectResponse, error) {
	if p.metadata == nil {
		return nil, apperrors.New(apperrors.CodePermanentUnavailable,
			"no YouTube API client configured; set YOUTUBE_API_KEY")
	}
	sel := youtube.Selector{
		ChannelID:  req.ChannelID,
		PlaylistID: req.PlaylistID,
		VideoIDs:   req.VideoIDs,
	}
	if err := sel.Validate(); err != nil {
		return nil, err
	}

	var publishedAfter time.Time
	if req.PublishedAfter != "" {
		t, err := time.Parse(time.RFC3339, req.PublishedAfter)
		if err != nil {
			return nil, apperrors.Newf(apperrors.CodeInvalidArg,
				"published_after must be RFC 3339: %v", err)
		}
		publishedAfter = t
	}

	jobID := uuid.New().String()
	p.logger.Info("collect started",
		zap.String("job_id", jobID),
		zap.String("channel_id", req.ChannelID),
		zap.String("playlist_id", req.PlaylistID),
		zap.Int("video_ids", len(req.VideoIDs)))

	var collected []models.VideoRecord
	pageToken := ""
	for {
		videos, next, err := p.metadata.ListVideos(ctx, sel, pageToken)
		if err != nil {
			return nil, err
		}
		for _, v := range videos {
			// published_after is an inclusive lower bound.
			if !publishedAfter.IsZero() && v.PublishedAt.Before(publishedAfter) {
				continue
			}
			collected = append(collected, v)
			if req.MaxResults > 0 && len(collected) >= req.MaxResults {
				next = ""
				break
			}
		}
		if next == "" {
			break
		}
		pageToken = next
	}

	if err := p.attachStats(ctx, collected); err != nil {
		return nil, err
	}

	for i := range collected {
		if err := p.catalog.UpsertVideo(ctx, &collected[i]); err != nil {
			return nil, apperrors.Wrap(err, apperrors.CodeIO,
				fmt.Sprintf("failed to store video %s", collected[i].VideoID))
		}
	}

	p.logger.Info("collect finished",
		zap.String("job_id", jobID),
		zap.Int("videos_collected", len(collected)))

	return &models.CollectResponse{
		Status:          "completed",
		VideosCollected: len(collected),
		Message:         fmt.Sprintf("collected %d videos", len(collected)),
		JobID:           jobID,
	}, nil
}

func (p *Pipeline) attachStats(ctx context.Context, videos []models.VideoRecord) error {
	if len(videos) == 0 {
		return nil
	}
	ids := make([]string, len(videos))
	for i, v := range videos {
		ids[i] = v.VideoID
	}
	stats, err := p.metadata.GetVideoStats(ctx, ids)
	if err != nil {
		return err
	}
	for i := range videos {
		if s, ok := stats[videos[i].VideoID]; ok {
			videos[i].ViewCount = s.ViewCount
			videos[i].LikeCount = s.LikeCount
			videos[i].DurationSeconds = s.DurationSeconds
		}
	}
	return nil
}
