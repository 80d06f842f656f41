package catalog

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	apperrors "github.com/querytube/querytube/internal/errors"
	"github.com/querytube/querytube/internal/models"
)

// SQLiteCatalog implements Catalog using SQLite. SQLite serializes writers,
// which satisfies the per-video write serialization requirement.
type SQLiteCatalog struct {
	db *sql.DB
}

// NewSQLiteCatalog opens or creates a SQLite database at dbPath and
// initializes the schema. Parent directories are created if missing.
func NewSQLiteCatalog(dbPath string) (*SQLiteCatalog, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create catalog directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open catalog database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteCatalog{db: db}, nil
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS videos (
		video_id TEXT PRIMARY KEY,
		title TEXT NOT NULL,
		channel TEXT,
		channel_id TEXT,
		published_at TIMESTAMP,
		description TEXT,
		thumbnail_url TEXT,
		view_count INTEGER NOT NULL DEFAULT 0,
		like_count INTEGER NOT NULL DEFAULT 0,
		duration_seconds INTEGER NOT NULL DEFAULT 0,
		status TEXT NOT NULL DEFAULT 'COLLECTED',
		transcript TEXT,
		segments TEXT,
		transcript_error TEXT,
		transcript_fetched_at TIMESTAMP,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_videos_status ON videos(status);
	CREATE INDEX IF NOT EXISTS idx_videos_published_at ON videos(published_at);
	`
	_, err := db.Exec(schema)
	return err
}

// UpsertVideo inserts or updates a video's collect-stage metadata. Transcript
// columns and a post-collect status are preserved on conflict so that
// re-collection never discards other stage data.
func (s *SQLiteCatalog) UpsertVideo(ctx context.Context, v *models.VideoRecord) error {
	if v.Status == "" {
		v.Status = models.StatusCollected
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO videos (video_id, title, channel, channel_id, published_at, description,
			thumbnail_url, view_count, like_count, duration_seconds, status, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(video_id) DO UPDATE SET
			title = excluded.title,
			channel = excluded.channel,
			channel_id = excluded.channel_id,
			published_at = excluded.published_at,
			description = excluded.description,
			thumbnail_url = excluded.thumbnail_url,
			view_count = excluded.view_count,
			like_count = excluded.like_count,
			duration_seconds = excluded.duration_seconds,
			updated_at = excluded.updated_at`,
		v.VideoID, v.Title, v.Channel, v.ChannelID, v.PublishedAt, v.Description,
		v.ThumbnailURL, v.ViewCount, v.LikeCount, v.DurationSeconds, v.Status, time.Now(),
	)
	return err
}

const videoColumns = `video_id, title, channel, channel_id, published_at, description,
	thumbnail_url, view_count, like_count, duration_seconds, status`

func scanVideo(row interface{ Scan(...interface{}) error }) (*models.VideoRecord, error) {
	var v models.VideoRecord
	var publishedAt sql.NullTime
	err := row.Scan(&v.VideoID, &v.Title, &v.Channel, &v.ChannelID, &publishedAt,
		&v.Description, &v.ThumbnailURL, &v.ViewCount, &v.LikeCount, &v.DurationSeconds, &v.Status)
	if err != nil {
		return nil, err
	}
	if publishedAt.Valid {
		v.PublishedAt = publishedAt.Time
	}
	return &v, nil
}

// GetVideo returns a video by ID.
func (s *SQLiteCatalog) GetVideo(ctx context.Context, videoID string) (*models.VideoRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+videoColumns+` FROM videos WHERE video_id = ?`, videoID)
	v, err := scanVideo(row)
	if err == sql.ErrNoRows {
		return nil, apperrors.Newf(apperrors.CodeNotFound, "video not found: %s", videoID)
	}
	if err != nil {
		return nil, err
	}
	return v, nil
}

// ListByStatus returns all videos in the given stage, oldest published first.
func (s *SQLiteCatalog) ListByStatus(ctx context.Context, status string) ([]models.VideoRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+videoColumns+` FROM videos WHERE status = ? ORDER BY published_at, video_id`, status)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.VideoRecord
	for rows.Next() {
		v, err := scanVideo(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *v)
	}
	return out, rows.Err()
}

// PendingTranscripts returns the IDs needing a transcript fetch: every video
// without a stored transcript, which includes TRANSCRIPT_FAILED rows so a
// later run retries them. A failure mark only holds within the run that set
// it. With force, TRANSCRIBED videos re-enter the stage too. An explicit
// videoIDs list restricts the result to those IDs.
func (s *SQLiteCatalog) PendingTranscripts(ctx context.Context, videoIDs []string, force bool) ([]string, error) {
	query := `SELECT video_id FROM videos WHERE status IN ('COLLECTED', 'TRANSCRIPT_FAILED')`
	if force {
		query = `SELECT video_id FROM videos WHERE status IN ('COLLECTED', 'TRANSCRIBED', 'TRANSCRIPT_FAILED')`
	}
	query += ` ORDER BY published_at, video_id`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	include := map[string]bool{}
	for _, id := range videoIDs {
		include[id] = true
	}

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		if len(include) > 0 && !include[id] {
			continue
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

// GetTranscript returns the transcript record for a video. A video that has
// never entered the transcript stage yields (nil, nil); a failed fetch yields
// a record with Unavailable set, so callers can tell the two apart.
func (s *SQLiteCatalog) GetTranscript(ctx context.Context, videoID string) (*models.TranscriptRecord, error) {
	var text, segJSON, terr sql.NullString
	var fetchedAt sql.NullTime
	var status string
	err := s.db.QueryRowContext(ctx,
		`SELECT transcript, segments, transcript_error, transcript_fetched_at, status
		 FROM videos WHERE video_id = ?`, videoID,
	).Scan(&text, &segJSON, &terr, &fetchedAt, &status)
	if err == sql.ErrNoRows {
		return nil, apperrors.Newf(apperrors.CodeNotFound, "video not found: %s", videoID)
	}
	if err != nil {
		return nil, err
	}

	if status == models.StatusTranscriptFailed {
		rec := &models.TranscriptRecord{VideoID: videoID, Unavailable: true, Error: terr.String}
		if fetchedAt.Valid {
			rec.FetchedAt = fetchedAt.Time
		}
		return rec, nil
	}
	if !text.Valid {
		return nil, nil // not yet fetched
	}

	rec := &models.TranscriptRecord{VideoID: videoID, Text: text.String}
	if fetchedAt.Valid {
		rec.FetchedAt = fetchedAt.Time
	}
	if segJSON.Valid && segJSON.String != "" {
		if err := json.Unmarshal([]byte(segJSON.String), &rec.Segments); err != nil {
			return nil, fmt.Errorf("failed to unmarshal segments: %w", err)
		}
	}
	return rec, nil
}

// SetTranscript records a fetched transcript and advances the video to
// TRANSCRIBED. Any previous failure reason is cleared.
func (s *SQLiteCatalog) SetTranscript(ctx context.Context, videoID, text string, segments []models.TranscriptSegment) error {
	segJSON, err := json.Marshal(segments)
	if err != nil {
		return fmt.Errorf("failed to marshal segments: %w", err)
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE videos SET transcript = ?, segments = ?, transcript_error = NULL,
			transcript_fetched_at = ?, status = ?, updated_at = ?
		 WHERE video_id = ?`,
		text, string(segJSON), time.Now(), models.StatusTranscribed, time.Now(), videoID,
	)
	if err != nil {
		return err
	}
	return requireRow(res, videoID)
}

// MarkTranscriptFailed records a permanent transcript failure. Existing
// transcript data is kept so a later force-refresh does not lose it.
func (s *SQLiteCatalog) MarkTranscriptFailed(ctx context.Context, videoID, reason string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE videos SET transcript_error = ?, transcript_fetched_at = ?, status = ?, updated_at = ?
		 WHERE video_id = ?`,
		reason, time.Now(), models.StatusTranscriptFailed, time.Now(), videoID,
	)
	if err != nil {
		return err
	}
	return requireRow(res, videoID)
}

// TranscribedVideos returns every video with a non-empty transcript, in a
// deterministic order (published_at, then video_id). This order becomes the
// ordinal order of the built index.
func (s *SQLiteCatalog) TranscribedVideos(ctx context.Context) ([]TranscribedVideo, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+videoColumns+`, transcript, segments FROM videos
		 WHERE transcript IS NOT NULL AND transcript != ''
		   AND status IN ('TRANSCRIBED', 'EMBEDDED')
		 ORDER BY published_at, video_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []TranscribedVideo
	for rows.Next() {
		var v models.VideoRecord
		var publishedAt sql.NullTime
		var transcript, segJSON sql.NullString
		err := rows.Scan(&v.VideoID, &v.Title, &v.Channel, &v.ChannelID, &publishedAt,
			&v.Description, &v.ThumbnailURL, &v.ViewCount, &v.LikeCount, &v.DurationSeconds,
			&v.Status, &transcript, &segJSON)
		if err != nil {
			return nil, err
		}
		if publishedAt.Valid {
			v.PublishedAt = publishedAt.Time
		}
		tv := TranscribedVideo{VideoRecord: v, Transcript: transcript.String}
		if segJSON.Valid && segJSON.String != "" {
			if err := json.Unmarshal([]byte(segJSON.String), &tv.Segments); err != nil {
				return nil, fmt.Errorf("failed to unmarshal segments: %w", err)
			}
		}
		out = append(out, tv)
	}
	return out, rows.Err()
}

// MarkEmbedded advances the given videos to EMBEDDED.
func (s *SQLiteCatalog) MarkEmbedded(ctx context.Context, videoIDs []string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`UPDATE videos SET status = ?, updated_at = ? WHERE video_id = ?`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	now := time.Now()
	for _, id := range videoIDs {
		if _, err := stmt.ExecContext(ctx, models.StatusEmbedded, now, id); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// CountVideos returns the total number of videos in the catalog.
func (s *SQLiteCatalog) CountVideos(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM videos`).Scan(&n)
	return n, err
}

// CountByStatus returns per-stage video counts.
func (s *SQLiteCatalog) CountByStatus(ctx context.Context) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM videos GROUP BY status`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]int)
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		out[status] = n
	}
	return out, rows.Err()
}

// Close closes the database.
func (s *SQLiteCatalog) Close() error {
	return s.db.Close()
}

func requireRow(res sql.Result, videoID string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return apperrors.Newf(apperrors.CodeNotFound, "video not found: %s", videoID)
	}
	return nil
}
