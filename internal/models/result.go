package models

import "time"

// SearchResult is a single ranked search hit.
type SearchResult struct {
	VideoID      string    `json:"video_id"`
	Title        string    `json:"title"`
	Channel      string    `json:"channel"`
	ChannelID    string    `json:"channel_id"`
	PublishedAt  time.Time `json:"published_at"`
	ThumbnailURL string    `json:"thumbnail_url,omitempty"`
	Description  string    `json:"description,omitempty"`
	Score        float64   `json:"score"`
	Snippet      string    `json:"snippet,omitempty"`
	ViewCount    int64     `json:"view_count"`
	Duration     int       `json:"duration_seconds"`
	Rank         int       `json:"rank"`
}

// SearchResponse is the response for a search request. Results is empty (not
// nil-erroring) when nothing clears the score threshold.
type SearchResponse struct {
	Query   string          `json:"query"`
	Results []*SearchResult `json:"results"`
	Total   int             `json:"total"`
	TookMS  int64           `json:"took_ms"`
}

// Suggestion is a single autocomplete candidate.
type Suggestion struct {
	VideoID string  `json:"video_id"`
	Title   string  `json:"title"`
	Channel string  `json:"channel,omitempty"`
	Score   float64 `json:"score"`
}
