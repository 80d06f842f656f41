// Package models defines core data structures for videos, transcripts, queries, and search results.
package models

import "time"

// Ingestion stage status for a video. Transitions:
// NEW -> COLLECTED -> TRANSCRIBED | TRANSCRIPT_FAILED -> EMBEDDED.
const (
	StatusNew              = "NEW"
	StatusCollected        = "COLLECTED"
	StatusTranscribed      = "TRANSCRIBED"
	StatusTranscriptFailed = "TRANSCRIPT_FAILED"
	StatusEmbedded         = "EMBEDDED"
)

// VideoRecord represents a collected YouTube video. Mutable only during the
// collect stage; re-collection is last-write-wins keyed by VideoID.
type VideoRecord struct {
	VideoID         string    `json:"video_id" db:"video_id"`
	Title           string    `json:"title" db:"title"`
	Channel         string    `json:"channel" db:"channel"`
	ChannelID       string    `json:"channel_id" db:"channel_id"`
	PublishedAt     time.Time `json:"published_at" db:"published_at"`
	Description     string    `json:"description,omitempty" db:"description"`
	ThumbnailURL    string    `json:"thumbnail_url,omitempty" db:"thumbnail_url"`
	ViewCount       int64     `json:"view_count" db:"view_count"`
	LikeCount       int64     `json:"like_count" db:"like_count"`
	DurationSeconds int       `json:"duration_seconds" db:"duration_seconds"`
	Status          string    `json:"status" db:"status"`
}

// TranscriptSegment is one timed caption line.
type TranscriptSegment struct {
	Text     string  `json:"text"`
	Start    float64 `json:"start"`
	Duration float64 `json:"duration"`
}

// TranscriptRecord holds the full transcript for a video. A nil record means
// "not yet fetched"; a record with Unavailable=true means the transcript is
// permanently unavailable for this video (captions disabled, video removed).
// The two must stay distinguishable.
type TranscriptRecord struct {
	VideoID     string              `json:"video_id"`
	Text        string              `json:"text"`
	Segments    []TranscriptSegment `json:"segments,omitempty"`
	Unavailable bool                `json:"unavailable,omitempty"`
	Error       string              `json:"error,omitempty"`
	FetchedAt   time.Time           `json:"fetched_at"`
}

// VideoMeta is one immutable metadata row in an index snapshot. Row i belongs
// to vector i; the order must never change after the snapshot is built.
type VideoMeta struct {
	VideoID      string    `json:"video_id"`
	Title        string    `json:"title"`
	Channel      string    `json:"channel"`
	ChannelID    string    `json:"channel_id"`
	PublishedAt  time.Time `json:"published_at"`
	ThumbnailURL string    `json:"thumbnail_url,omitempty"`
	Description  string    `json:"description,omitempty"`
	ViewCount    int64     `json:"view_count"`
	Duration     int       `json:"duration_seconds"`
	Transcript   string    `json:"transcript"`
}

// VideoDetail is the full per-video API payload including the transcript.
type VideoDetail struct {
	VideoRecord
	Transcript []TranscriptSegment `json:"transcript,omitempty"`
}
