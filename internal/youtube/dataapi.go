package youtube

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	yt "google.golang.org/api/youtube/v3"

	apperrors "github.com/querytube/querytube/internal/errors"
	"github.com/querytube/querytube/internal/models"
)

// detail batches are capped at 50 IDs by the Data API.
const detailBatchSize = 50

// DataAPIProvider implements MetadataProvider on the YouTube Data API v3 with
// API key auth.
type DataAPIProvider struct {
	service *yt.Service

	// channel ID -> uploads playlist ID, resolved once per channel.
	mu      sync.Mutex
	uploads map[string]string
}

// NewDataAPIProvider creates a provider with the given API key.
func NewDataAPIProvider(ctx context.Context, apiKey string) (*DataAPIProvider, error) {
	if apiKey == "" {
		return nil, apperrors.New(apperrors.CodeInvalidArg, "youtube api key not configured")
	}
	service, err := yt.NewService(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create youtube service: %w", err)
	}
	return &DataAPIProvider{service: service, uploads: make(map[string]string)}, nil
}

// ListVideos returns one page of videos for the selector. For channel and
// playlist selectors it pages through the (uploads) playlist; for an explicit
// ID list it returns all videos in one page with an empty next-page token.
func (p *DataAPIProvider) ListVideos(ctx context.Context, sel Selector, pageToken string) ([]models.VideoRecord, string, error) {
	if err := sel.Validate(); err != nil {
		return nil, "", err
	}

	if len(sel.VideoIDs) > 0 {
		videos, err := p.fetchVideoDetails(ctx, sel.VideoIDs)
		return videos, "", err
	}

	playlistID := sel.PlaylistID
	if sel.ChannelID != "" {
		var err error
		playlistID, err = p.uploadsPlaylist(ctx, sel.ChannelID)
		if err != nil {
			return nil, "", err
		}
	}

	call := p.service.PlaylistItems.List([]string{"snippet", "contentDetails"}).
		PlaylistId(playlistID).
		MaxResults(detailBatchSize).
		Context(ctx)
	if pageToken != "" {
		call = call.PageToken(pageToken)
	}
	resp, err := call.Do()
	if err != nil {
		return nil, "", mapAPIError(err, "list playlist items")
	}

	videos := make([]models.VideoRecord, 0, len(resp.Items))
	for _, item := range resp.Items {
		if item.Snippet == nil || item.Snippet.ResourceId == nil {
			continue
		}
		rec := models.VideoRecord{
			VideoID:   item.Snippet.ResourceId.VideoId,
			Title:     item.Snippet.Title,
			Channel:   item.Snippet.ChannelTitle,
			ChannelID: item.Snippet.ChannelId,
		}
		if ts, err := time.Parse(time.RFC3339, item.Snippet.PublishedAt); err == nil {
			rec.PublishedAt = ts
		}
		rec.Description = item.Snippet.Description
		rec.ThumbnailURL = bestThumbnail(item.Snippet.Thumbnails)
		videos = append(videos, rec)
	}
	return videos, resp.NextPageToken, nil
}

// GetVideoStats fetches statistics and duration for the given IDs in batches
// of 50.
func (p *DataAPIProvider) GetVideoStats(ctx context.Context, videoIDs []string) (map[string]VideoStats, error) {
	stats := make(map[string]VideoStats, len(videoIDs))
	for i := 0; i < len(videoIDs); i += detailBatchSize {
		end := i + detailBatchSize
		if end > len(videoIDs) {
			end = len(videoIDs)
		}
		resp, err := p.service.Videos.List([]string{"statistics", "contentDetails"}).
			Id(strings.Join(videoIDs[i:end], ",")).
			Context(ctx).
			Do()
		if err != nil {
			return nil, mapAPIError(err, "get video stats")
		}
		for _, item := range resp.Items {
			s := VideoStats{}
			if item.Statistics != nil {
				s.ViewCount = int64(item.Statistics.ViewCount)
				s.LikeCount = int64(item.Statistics.LikeCount)
			}
			if item.ContentDetails != nil {
				s.DurationSeconds = ParseISO8601Duration(item.ContentDetails.Duration)
			}
			stats[item.Id] = s
		}
	}
	return stats, nil
}

// fetchVideoDetails resolves full records for explicit video IDs.
func (p *DataAPIProvider) fetchVideoDetails(ctx context.Context, videoIDs []string) ([]models.VideoRecord, error) {
	videos := make([]models.VideoRecord, 0, len(videoIDs))
	for i := 0; i < len(videoIDs); i += detailBatchSize {
		end := i + detailBatchSize
		if end > len(videoIDs) {
			end = len(videoIDs)
		}
		resp, err := p.service.Videos.List([]string{"snippet", "contentDetails", "statistics"}).
			Id(strings.Join(videoIDs[i:end], ",")).
			Context(ctx).
			Do()
		if err != nil {
			return nil, mapAPIError(err, "get video details")
		}
		for _, item := range resp.Items {
			rec := models.VideoRecord{
				VideoID: item.Id,
			}
			if item.Snippet != nil {
				rec.Title = item.Snippet.Title
				rec.Channel = item.Snippet.ChannelTitle
				rec.ChannelID = item.Snippet.ChannelId
				rec.Description = item.Snippet.Description
				rec.ThumbnailURL = bestThumbnail(item.Snippet.Thumbnails)
				if ts, err := time.Parse(time.RFC3339, item.Snippet.PublishedAt); err == nil {
					rec.PublishedAt = ts
				}
			}
			if item.Statistics != nil {
				rec.ViewCount = int64(item.Statistics.ViewCount)
				rec.LikeCount = int64(item.Statistics.LikeCount)
			}
			if item.ContentDetails != nil {
				rec.DurationSeconds = ParseISO8601Duration(item.ContentDetails.Duration)
			}
			videos = append(videos, rec)
		}
	}
	return videos, nil
}

// uploadsPlaylist resolves and caches the uploads playlist for a channel.
func (p *DataAPIProvider) uploadsPlaylist(ctx context.Context, channelID string) (string, error) {
	p.mu.Lock()
	if id, ok := p.uploads[channelID]; ok {
		p.mu.Unlock()
		return id, nil
	}
	p.mu.Unlock()

	resp, err := p.service.Channels.List([]string{"contentDetails"}).
		Id(channelID).
		Context(ctx).
		Do()
	if err != nil {
		return "", mapAPIError(err, "resolve channel")
	}
	if len(resp.Items) == 0 {
		return "", apperrors.Newf(apperrors.CodeNotFound, "channel not found: %s", channelID)
	}
	cd := resp.Items[0].ContentDetails
	if cd == nil || cd.RelatedPlaylists == nil || cd.RelatedPlaylists.Uploads == "" {
		return "", apperrors.Newf(apperrors.CodeNotFound, "channel %s has no uploads playlist", channelID)
	}

	p.mu.Lock()
	p.uploads[channelID] = cd.RelatedPlaylists.Uploads
	p.mu.Unlock()
	return cd.RelatedPlaylists.Uploads, nil
}

func bestThumbnail(t *yt.ThumbnailDetails) string {
	if t == nil {
		return ""
	}
	for _, th := range []*yt.Thumbnail{t.High, t.Medium, t.Default} {
		if th != nil && th.Url != "" {
			return th.Url
		}
	}
	return ""
}

// mapAPIError classifies a Data API error. Quota and rate-limit rejections
// and server errors are retryable; a 404 is terminal for the request.
func mapAPIError(err error, op string) error {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		switch {
		case gerr.Code == 403 && hasReason(gerr, "quotaExceeded", "rateLimitExceeded", "userRateLimitExceeded"):
			return apperrors.Wrap(err, apperrors.CodeTransientUpstream, op+": quota exhausted")
		case gerr.Code == 429 || gerr.Code >= 500:
			return apperrors.Wrap(err, apperrors.CodeTransientUpstream, op)
		case gerr.Code == 404:
			return apperrors.Wrap(err, apperrors.CodePermanentUnavailable, op)
		}
		return apperrors.Wrap(err, apperrors.CodeInternal, op)
	}
	// Network-level failures are retryable.
	return apperrors.Wrap(err, apperrors.CodeTransientUpstream, op)
}

func hasReason(gerr *googleapi.Error, reasons ...string) bool {
	for _, item := range gerr.Errors {
		for _, r := range reasons {
			if item.Reason == r {
				return true
			}
		}
	}
	return false
}
