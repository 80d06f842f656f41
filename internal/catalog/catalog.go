// Package catalog persists per-video ingestion state: metadata, stage status,
// and fetched transcripts.
package catalog

import (
	"context"

	"github.com/querytube/querytube/internal/models"
)

// TranscribedVideo pairs a video record with its transcript text, the input
// unit for index builds.
type TranscribedVideo struct {
	models.VideoRecord
	Transcript string
	Segments   []models.TranscriptSegment
}

// Catalog is the persistence interface for the ingestion pipeline's status
// table. Per-video updates are independent; implementations serialize writes
// to a single video's row.
type Catalog interface {
	// Collect stage. UpsertVideo is last-write-wins on metadata; transcript
	// fields and post-collect status survive re-collection.
	UpsertVideo(ctx context.Context, v *models.VideoRecord) error
	GetVideo(ctx context.Context, videoID string) (*models.VideoRecord, error)
	ListByStatus(ctx context.Context, status string) ([]models.VideoRecord, error)

	// Transcript stage.
	PendingTranscripts(ctx context.Context, videoIDs []string, force bool) ([]string, error)
	GetTranscript(ctx context.Context, videoID string) (*models.TranscriptRecord, error)
	SetTranscript(ctx context.Context, videoID, text string, segments []models.TranscriptSegment) error
	MarkTranscriptFailed(ctx context.Context, videoID, reason string) error

	// Embed stage.
	TranscribedVideos(ctx context.Context) ([]TranscribedVideo, error)
	MarkEmbedded(ctx context.Context, videoIDs []string) error

	// Stats.
	CountVideos(ctx context.Context) (int64, error)
	CountByStatus(ctx context.Context) (map[string]int, error)

	Close() error
}
