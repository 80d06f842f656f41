package models

// CollectRequest asks the pipeline to collect videos. Exactly one of
// ChannelID, PlaylistID, or VideoIDs must be set.
type CollectRequest struct {
	ChannelID      string   `json:"channel_id,omitempty"`
	PlaylistID     string   `json:"playlist_id,omitempty"`
	VideoIDs       []string `json:"video_ids,omitempty"`
	MaxResults     int      `json:"max_results,omitempty"`
	PublishedAfter string   `json:"published_after,omitempty"` // RFC 3339, inclusive lower bound
}

// CollectResponse reports how many videos were collected.
type CollectResponse struct {
	Status          string `json:"status"`
	VideosCollected int    `json:"videos_collected"`
	Message         string `json:"message"`
	JobID           string `json:"job_id,omitempty"`
}

// TranscriptsRequest asks the pipeline to fetch transcripts.
type TranscriptsRequest struct {
	VideoIDs     []string `json:"video_ids,omitempty"`
	ForceRefresh bool     `json:"force_refresh,omitempty"`
}

// TranscriptsResponse reports per-item success and failure counts. Partial
// failure is reported through the counts, never as an error.
type TranscriptsResponse struct {
	Status             string `json:"status"`
	TranscriptsFetched int    `json:"transcripts_fetched"`
	TranscriptsFailed  int    `json:"transcripts_failed"`
	Message            string `json:"message"`
	JobID              string `json:"job_id,omitempty"`
}

// EmbedRequest asks the pipeline to build embeddings and the vector index.
type EmbedRequest struct {
	ModelName    string `json:"model_name,omitempty"`
	BatchSize    int    `json:"batch_size,omitempty"`
	ForceRebuild bool   `json:"force_rebuild,omitempty"`
}

// EmbedResponse reports the build outcome.
type EmbedResponse struct {
	Status        string `json:"status"`
	VideosIndexed int    `json:"videos_indexed"`
	IndexSize     int    `json:"index_size"`
	Message       string `json:"message"`
	JobID         string `json:"job_id,omitempty"`
}

// SystemStatus is the admin status payload.
type SystemStatus struct {
	Status        string         `json:"status"`
	Version       string         `json:"version"`
	UptimeSeconds float64        `json:"uptime_seconds"`
	IndexLoaded   bool           `json:"index_loaded"`
	IndexSize     int            `json:"index_size"`
	TotalVideos   int64          `json:"total_videos"`
	StageCounts   map[string]int `json:"stage_counts"`
}
