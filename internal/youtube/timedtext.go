package youtube

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	apperrors "github.com/querytube/querytube/internal/errors"
	"github.com/querytube/querytube/internal/models"
)

const defaultTimedTextBaseURL = "https://www.youtube.com/api/timedtext"

// TimedTextProvider implements TranscriptProvider against the public
// timedtext endpoint using the JSON3 caption format.
type TimedTextProvider struct {
	client   *http.Client
	baseURL  string
	language string
}

// TimedTextOption configures a TimedTextProvider.
type TimedTextOption func(*TimedTextProvider)

// WithBaseURL overrides the timedtext endpoint (used in tests).
func WithBaseURL(u string) TimedTextOption {
	return func(p *TimedTextProvider) { p.baseURL = u }
}

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(c *http.Client) TimedTextOption {
	return func(p *TimedTextProvider) { p.client = c }
}

// NewTimedTextProvider creates a transcript provider for the given caption
// language (default "en").
func NewTimedTextProvider(language string, opts ...TimedTextOption) *TimedTextProvider {
	if language == "" {
		language = "en"
	}
	p := &TimedTextProvider{
		client:   &http.Client{Timeout: 30 * time.Second},
		baseURL:  defaultTimedTextBaseURL,
		language: language,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// json3 caption payload: a flat list of timed events with text segments.
type json3Body struct {
	Events []struct {
		StartMS    int64 `json:"tStartMs"`
		DurationMS int64 `json:"dDurationMs"`
		Segs       []struct {
			UTF8 string `json:"utf8"`
		} `json:"segs"`
	} `json:"events"`
}

// GetTranscript fetches the caption track for videoID. An absent track is
// PERMANENT_UNAVAILABLE; rate limiting and server errors are
// TRANSIENT_UPSTREAM.
func (p *TimedTextProvider) GetTranscript(ctx context.Context, videoID string) ([]models.TranscriptSegment, error) {
	q := url.Values{}
	q.Set("v", videoID)
	q.Set("lang", p.language)
	q.Set("fmt", "json3")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("build transcript request: %w", err)
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeTransientUpstream, "fetch transcript")
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, apperrors.Newf(apperrors.CodePermanentUnavailable,
			"no caption track for video %s", videoID)
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return nil, apperrors.Newf(apperrors.CodeTransientUpstream,
			"transcript fetch for %s returned %d", videoID, resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		return nil, apperrors.Newf(apperrors.CodePermanentUnavailable,
			"transcript fetch for %s returned %d", videoID, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeTransientUpstream, "read transcript body")
	}
	// An empty body means the video exists but has no captions.
	if len(strings.TrimSpace(string(body))) == 0 {
		return nil, apperrors.Newf(apperrors.CodePermanentUnavailable,
			"captions disabled for video %s", videoID)
	}

	var parsed json3Body
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodePermanentUnavailable, "malformed caption payload")
	}

	segments := make([]models.TranscriptSegment, 0, len(parsed.Events))
	for _, ev := range parsed.Events {
		var sb strings.Builder
		for _, seg := range ev.Segs {
			sb.WriteString(seg.UTF8)
		}
		text := strings.TrimSpace(sb.String())
		if text == "" {
			continue
		}
		segments = append(segments, models.TranscriptSegment{
			Text:     text,
			Start:    float64(ev.StartMS) / 1000.0,
			Duration: float64(ev.DurationMS) / 1000.0,
		})
	}
	if len(segments) == 0 {
		return nil, apperrors.Newf(apperrors.CodePermanentUnavailable,
			"empty transcript for video %s", videoID)
	}
	return segments, nil
}

// JoinSegments concatenates segment texts into the full transcript text.
func JoinSegments(segments []models.TranscriptSegment) string {
	parts := make([]string, 0, len(segments))
	for _, s := range segments {
		parts = append(parts, s.Text)
	}
	return strings.Join(parts, " ")
}
