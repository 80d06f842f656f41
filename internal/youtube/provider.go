// Package youtube provides the upstream video metadata and transcript providers.
package youtube

import (
	"context"

	apperrors "github.com/querytube/querytube/internal/errors"
	"github.com/querytube/querytube/internal/models"
)

// Selector identifies the source of a collection run. Exactly one field must
// be set.
type Selector struct {
	ChannelID  string
	PlaylistID string
	VideoIDs   []string
}

// Validate returns an INVALID_SELECTOR error unless exactly one selector
// field is set.
func (s Selector) Validate() error {
	n := 0
	if s.ChannelID != "" {
		n++
	}
	if s.PlaylistID != "" {
		n++
	}
	if len(s.VideoIDs) > 0 {
		n++
	}
	if n != 1 {
		return apperrors.Newf(apperrors.CodeInvalidSelector,
			"exactly one of channel_id, playlist_id, or video_ids must be given (got %d)", n)
	}
	return nil
}

// VideoStats are the numeric details fetched per video in batches.
type VideoStats struct {
	ViewCount       int64
	LikeCount       int64
	DurationSeconds int
}

// MetadataProvider lists videos for a selector with cursor-based pagination
// and resolves per-video stats. An empty next-page token means end of results.
type MetadataProvider interface {
	ListVideos(ctx context.Context, sel Selector, pageToken string) (videos []models.VideoRecord, nextPageToken string, err error)
	GetVideoStats(ctx context.Context, videoIDs []string) (map[string]VideoStats, error)
}

// TranscriptProvider fetches the caption track for a single video. Errors
// distinguish PERMANENT_UNAVAILABLE (captions disabled, video removed) from
// TRANSIENT_UPSTREAM (rate limit, server error) so callers can retry the
// latter.
type TranscriptProvider interface {
	GetTranscript(ctx context.Context, videoID string) ([]models.TranscriptSegment, error)
}
