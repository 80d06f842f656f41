package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/querytube/querytube/internal/catalog"
	"github.com/querytube/querytube/internal/config"
	"github.com/querytube/querytube/internal/embedding"
	apperrors "github.com/querytube/querytube/internal/errors"
	"github.com/querytube/querytube/internal/keyword"
	"github.com/querytube/querytube/internal/models"
	"github.com/querytube/querytube/internal/search"
	"github.com/querytube/querytube/internal/vector"
)

type stubPipeline struct {
	collectResp     *models.CollectResponse
	transcriptsResp *models.TranscriptsResponse
	embedResp       *models.EmbedResponse
	err             error
}

func (f *stubPipeline) Collect(ctx context.Context, req *models.CollectRequest) (*models.CollectResponse, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.collectResp, nil
}

func (f *stubPipeline) FetchTranscripts(ctx context.Context, req *models.TranscriptsRequest) (*models.TranscriptsResponse, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.transcriptsResp, nil
}

func (f *stubPipeline) BuildIndex(ctx context.Context, req *models.EmbedRequest) (*models.EmbedResponse, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.embedResp, nil
}

type serverFixture struct {
	server    *Server
	engine    *search.Engine
	embedder  *embedding.MockEmbedder
	catalog   *catalog.SQLiteCatalog
	pipeline  *stubPipeline
	ts        *httptest.Server
	indexPath string
	metaPath  string
}

func newServerFixture(t *testing.T) *serverFixture {
	t.Helper()
	dir := t.TempDir()

	cat, err := catalog.NewSQLiteCatalog(filepath.Join(dir, "catalog.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = cat.Close() })

	embedder := embedding.NewMockEmbedder("mock-embedder-v1", 16)
	suggest, err := keyword.NewSuggestIndex()
	require.NoError(t, err)
	t.Cleanup(func() { _ = suggest.Close() })

	indexPath := filepath.Join(dir, "index.qtvx")
	metaPath := filepath.Join(dir, "index.meta.json")
	engine := search.NewEngine(embedder, suggest, indexPath, metaPath, zap.NewNop())

	f := &serverFixture{
		engine:    engine,
		embedder:  embedder,
		catalog:   cat,
		pipeline:  &stubPipeline{},
		indexPath: indexPath,
		metaPath:  metaPath,
	}
	f.server = NewServer(engine, f.pipeline, cat,
		&config.ServerConfig{Host: "localhost", Port: 0}, "test", zap.NewNop())
	f.ts = httptest.NewServer(f.server.Router())
	t.Cleanup(f.ts.Close)
	return f
}

// loadSnapshot builds and swaps in a snapshot over the given transcripts.
func (f *serverFixture) loadSnapshot(t *testing.T, transcripts []string) {
	t.Helper()
	vectors, err := f.embedder.EmbedBatch(context.Background(), transcripts)
	require.NoError(t, err)
	meta := make([]models.VideoMeta, len(transcripts))
	for i, tr := range transcripts {
		meta[i] = models.VideoMeta{
			VideoID:    string(rune('a' + i)),
			Title:      "Video " + string(rune('A'+i)),
			Transcript: tr,
		}
	}
	snap, err := vector.Build(vectors, meta, f.embedder.ModelName(), vector.MetricCosine)
	require.NoError(t, err)
	f.engine.Swap(snap)
}

func postJSON(t *testing.T, url string, body interface{}) *http.Response {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(url, "application/json", bytes.NewReader(data))
	require.NoError(t, err)
	return resp
}

func decodeBody(t *testing.T, resp *http.Response, out interface{}) {
	t.Helper()
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
}

func TestSearchEndpoint(t *testing.T) {
	f := newServerFixture(t)
	f.loadSnapshot(t, []string{"machine learning basics", "cooking pasta at home"})

	resp := postJSON(t, f.ts.URL+"/api/search", models.SearchQuery{
		Query: "machine learning basics",
		TopK:  2,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body models.SearchResponse
	decodeBody(t, resp, &body)
	require.NotEmpty(t, body.Results)
	assert.Equal(t, "a", body.Results[0].VideoID)
	assert.Equal(t, 1, body.Results[0].Rank)
	assert.NotEmpty(t, body.Results[0].Snippet)
}

func TestSearchEndpointGetParams(t *testing.T) {
	f := newServerFixture(t)
	f.loadSnapshot(t, []string{"machine learning basics"})

	resp, err := http.Get(f.ts.URL + "/api/search?q=machine+learning+basics&top_k=1&min_score=0.5")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body models.SearchResponse
	decodeBody(t, resp, &body)
	assert.Len(t, body.Results, 1)
}

func TestSearchWithoutIndexReturns503(t *testing.T) {
	f := newServerFixture(t)

	resp := postJSON(t, f.ts.URL+"/api/search", models.SearchQuery{Query: "anything"})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestSearchEmptyQueryReturns400(t *testing.T) {
	f := newServerFixture(t)
	f.loadSnapshot(t, []string{"something"})

	resp := postJSON(t, f.ts.URL+"/api/search", models.SearchQuery{Query: ""})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestSearchMetricMismatchReturns409(t *testing.T) {
	f := newServerFixture(t)
	vectors, err := f.embedder.EmbedBatch(context.Background(), []string{"text"})
	require.NoError(t, err)
	snap, err := vector.Build(vectors, []models.VideoMeta{{VideoID: "a", Transcript: "text"}},
		f.embedder.ModelName(), vector.MetricEuclidean)
	require.NoError(t, err)
	f.engine.Swap(snap)

	resp := postJSON(t, f.ts.URL+"/api/search", models.SearchQuery{Query: "text", Metric: "cosine"})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, apperrors.CodeMetricMismatch, body["code"])
}

func TestCollectEndpoint(t *testing.T) {
	f := newServerFixture(t)
	f.pipeline.collectResp = &models.CollectResponse{Status: "completed", VideosCollected: 7}

	resp := postJSON(t, f.ts.URL+"/api/ingest/collect", models.CollectRequest{ChannelID: "UCx"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body models.CollectResponse
	decodeBody(t, resp, &body)
	assert.Equal(t, 7, body.VideosCollected)
}

func TestCollectInvalidSelectorReturns400(t *testing.T) {
	f := newServerFixture(t)
	f.pipeline.err = apperrors.New(apperrors.CodeInvalidSelector, "exactly one selector required")

	resp := postJSON(t, f.ts.URL+"/api/ingest/collect", models.CollectRequest{})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestTranscriptsEndpointReportsCounts(t *testing.T) {
	f := newServerFixture(t)
	f.pipeline.transcriptsResp = &models.TranscriptsResponse{
		Status: "completed", TranscriptsFetched: 3, TranscriptsFailed: 1,
	}

	resp := postJSON(t, f.ts.URL+"/api/ingest/transcripts", models.TranscriptsRequest{})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body models.TranscriptsResponse
	decodeBody(t, resp, &body)
	assert.Equal(t, 3, body.TranscriptsFetched)
	assert.Equal(t, 1, body.TranscriptsFailed)
}

func TestEmbedEndpoint(t *testing.T) {
	f := newServerFixture(t)
	f.pipeline.embedResp = &models.EmbedResponse{Status: "completed", VideosIndexed: 5, IndexSize: 5}

	resp := postJSON(t, f.ts.URL+"/api/ingest/embed", models.EmbedRequest{ForceRebuild: true})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body models.EmbedResponse
	decodeBody(t, resp, &body)
	assert.Equal(t, 5, body.VideosIndexed)
}

func TestGetVideoEndpoint(t *testing.T) {
	f := newServerFixture(t)
	require.NoError(t, f.catalog.UpsertVideo(context.Background(), &models.VideoRecord{
		VideoID:     "vid1",
		Title:       "A Title",
		PublishedAt: time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC),
	}))

	resp, err := http.Get(f.ts.URL + "/api/videos/vid1")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body models.VideoRecord
	decodeBody(t, resp, &body)
	assert.Equal(t, "A Title", body.Title)

	resp, err = http.Get(f.ts.URL + "/api/videos/missing")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestGetTranscriptEndpoint(t *testing.T) {
	f := newServerFixture(t)
	ctx := context.Background()
	require.NoError(t, f.catalog.UpsertVideo(ctx, &models.VideoRecord{VideoID: "vid1", Title: "T"}))
	require.NoError(t, f.catalog.UpsertVideo(ctx, &models.VideoRecord{VideoID: "vid2", Title: "T"}))
	require.NoError(t, f.catalog.SetTranscript(ctx, "vid1", "the transcript text",
		[]models.TranscriptSegment{{Text: "the transcript text", Start: 0, Duration: 3}}))
	require.NoError(t, f.catalog.MarkTranscriptFailed(ctx, "vid2", "captions disabled"))

	resp, err := http.Get(f.ts.URL + "/api/videos/vid1/transcript")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var rec models.TranscriptRecord
	decodeBody(t, resp, &rec)
	assert.Equal(t, "the transcript text", rec.Text)
	assert.Len(t, rec.Segments, 1)

	resp, err = http.Get(f.ts.URL + "/api/videos/vid2/transcript")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestStatusEndpoint(t *testing.T) {
	f := newServerFixture(t)
	ctx := context.Background()
	require.NoError(t, f.catalog.UpsertVideo(ctx, &models.VideoRecord{VideoID: "vid1", Title: "T"}))
	f.loadSnapshot(t, []string{"one", "two"})

	resp, err := http.Get(f.ts.URL + "/api/admin/status")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var status models.SystemStatus
	decodeBody(t, resp, &status)
	assert.Equal(t, "ok", status.Status)
	assert.Equal(t, "test", status.Version)
	assert.True(t, status.IndexLoaded)
	assert.Equal(t, 2, status.IndexSize)
	assert.Equal(t, int64(1), status.TotalVideos)
	assert.Equal(t, 1, status.StageCounts[models.StatusCollected])
}

func TestReloadIndexEndpoint(t *testing.T) {
	f := newServerFixture(t)

	// Nothing persisted yet: reload fails with 503.
	resp := postJSON(t, f.ts.URL+"/api/admin/reload-index", struct{}{})
	resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

	// Persist a snapshot at the engine's configured paths, then reload.
	vectors, err := f.embedder.EmbedBatch(context.Background(), []string{"persisted text"})
	require.NoError(t, err)
	snap, err := vector.Build(vectors, []models.VideoMeta{{VideoID: "a", Transcript: "persisted text"}},
		f.embedder.ModelName(), vector.MetricCosine)
	require.NoError(t, err)
	require.NoError(t, snap.Persist(f.indexPath, f.metaPath))

	resp = postJSON(t, f.ts.URL+"/api/admin/reload-index", struct{}{})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var body map[string]interface{}
	decodeBody(t, resp, &body)
	assert.Equal(t, "reloaded", body["status"])
	assert.Equal(t, float64(1), body["index_size"])
}

func TestHealthEndpoint(t *testing.T) {
	f := newServerFixture(t)

	resp, err := http.Get(f.ts.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
