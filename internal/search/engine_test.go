package search

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/querytube/querytube/internal/embedding"
	apperrors "github.com/querytube/querytube/internal/errors"
	"github.com/querytube/querytube/internal/keyword"
	"github.com/querytube/querytube/internal/models"
	"github.com/querytube/querytube/internal/vector"
)

const testModel = "mock-embedder-v1"

func newTestEngine(t *testing.T) (*Engine, *embedding.MockEmbedder, string, string) {
	t.Helper()
	dir := t.TempDir()
	indexPath := filepath.Join(dir, "index.qtvx")
	metaPath := filepath.Join(dir, "index.meta.json")

	embedder := embedding.NewMockEmbedder(testModel, 16)
	suggest, err := keyword.NewSuggestIndex()
	require.NoError(t, err)
	t.Cleanup(func() { _ = suggest.Close() })

	engine := NewEngine(embedder, suggest, indexPath, metaPath, zap.NewNop())
	return engine, embedder, indexPath, metaPath
}

func buildSnapshot(t *testing.T, embedder embedding.Embedder, transcripts []string, metric vector.Metric) *vector.Snapshot {
	t.Helper()
	vectors, err := embedder.EmbedBatch(context.Background(), transcripts)
	require.NoError(t, err)
	meta := make([]models.VideoMeta, len(transcripts))
	for i, tr := range transcripts {
		meta[i] = models.VideoMeta{
			VideoID:     string(rune('a' + i)),
			Title:       "Video " + string(rune('A'+i)),
			Channel:     "Channel",
			PublishedAt: time.Date(2024, 1, 1+i, 0, 0, 0, 0, time.UTC),
			Transcript:  tr,
		}
	}
	snap, err := vector.Build(vectors, meta, embedder.ModelName(), metric)
	require.NoError(t, err)
	return snap
}

// scaledEmbedder returns vectors whose length is not 1, like an embedder
// that skips output normalization.
type scaledEmbedder struct {
	*embedding.MockEmbedder
	factor float32
}

func (s *scaledEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vec, err := s.MockEmbedder.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	for i := range vec {
		vec[i] *= s.factor
	}
	return vec, nil
}

func TestSearchNormalizesQueryForCosine(t *testing.T) {
	dir := t.TempDir()
	suggest, err := keyword.NewSuggestIndex()
	require.NoError(t, err)
	t.Cleanup(func() { _ = suggest.Close() })

	base := embedding.NewMockEmbedder(testModel, 16)
	embedder := &scaledEmbedder{MockEmbedder: base, factor: 7}
	engine := NewEngine(embedder, suggest,
		filepath.Join(dir, "index.qtvx"), filepath.Join(dir, "index.meta.json"), zap.NewNop())

	transcripts := []string{"vector databases explained", "gardening for beginners"}
	engine.Swap(buildSnapshot(t, base, transcripts, vector.MetricCosine))

	resp, err := engine.Search(context.Background(), &models.SearchQuery{
		Query: "vector databases explained", TopK: 2,
	})
	require.NoError(t, err)
	require.NotEmpty(t, resp.Results)
	// Cosine scores stay in [0, 1] regardless of the embedder's output scale.
	assert.InDelta(t, 1.0, resp.Results[0].Score, 1e-5)
	for _, r := range resp.Results {
		assert.GreaterOrEqual(t, r.Score, 0.0)
		assert.LessOrEqual(t, r.Score, 1.0)
	}
}

func TestSearchWithoutSnapshot(t *testing.T) {
	engine, _, _, _ := newTestEngine(t)

	_, err := engine.Search(context.Background(), &models.SearchQuery{Query: "anything"})
	require.Error(t, err)
	assert.Equal(t, apperrors.CodeIndexNotFound, apperrors.Code(err))
}

func TestSearchEmptyQuery(t *testing.T) {
	engine, _, _, _ := newTestEngine(t)

	_, err := engine.Search(context.Background(), &models.SearchQuery{Query: ""})
	require.Error(t, err)
	assert.Equal(t, apperrors.CodeInvalidArg, apperrors.Code(err))
}

func TestSearchRanksExactTextFirst(t *testing.T) {
	engine, embedder, _, _ := newTestEngine(t)
	transcripts := []string{
		"how neural networks learn from data",
		"sourdough starter maintenance tips",
		"the history of the roman empire",
	}
	engine.Swap(buildSnapshot(t, embedder, transcripts, vector.MetricCosine))

	// The mock embedder is deterministic, so querying with a transcript's own
	// text yields a perfect cosine score for that video.
	resp, err := engine.Search(context.Background(), &models.SearchQuery{
		Query: "sourdough starter maintenance tips",
		TopK:  3,
	})
	require.NoError(t, err)
	require.NotEmpty(t, resp.Results)
	assert.Equal(t, "b", resp.Results[0].VideoID)
	assert.InDelta(t, 1.0, resp.Results[0].Score, 1e-5)
	assert.Equal(t, 1, resp.Results[0].Rank)
	for i, r := range resp.Results {
		assert.Equal(t, i+1, r.Rank)
		assert.GreaterOrEqual(t, r.Score, 0.0)
		assert.LessOrEqual(t, r.Score, 1.0)
	}
	assert.Equal(t, len(resp.Results), resp.Total)
}

func TestSearchMinScoreDropsWeakHits(t *testing.T) {
	engine, embedder, _, _ := newTestEngine(t)
	transcripts := []string{
		"alpha beta gamma",
		"completely unrelated content here",
	}
	engine.Swap(buildSnapshot(t, embedder, transcripts, vector.MetricCosine))

	minScore := 0.99
	resp, err := engine.Search(context.Background(), &models.SearchQuery{
		Query:    "alpha beta gamma",
		TopK:     10,
		MinScore: &minScore,
	})
	require.NoError(t, err)
	require.Len(t, resp.Results, 1)
	assert.Equal(t, "a", resp.Results[0].VideoID)
}

func TestSearchModelMismatch(t *testing.T) {
	engine, embedder, _, _ := newTestEngine(t)

	vectors, err := embedder.EmbedBatch(context.Background(), []string{"some text"})
	require.NoError(t, err)
	snap, err := vector.Build(vectors, []models.VideoMeta{{VideoID: "a", Transcript: "some text"}},
		"different-model-v2", vector.MetricCosine)
	require.NoError(t, err)
	engine.Swap(snap)

	_, err = engine.Search(context.Background(), &models.SearchQuery{Query: "some text"})
	require.Error(t, err)
	assert.Equal(t, apperrors.CodeModelMismatch, apperrors.Code(err))
}

func TestSearchMetricMismatch(t *testing.T) {
	engine, embedder, _, _ := newTestEngine(t)
	engine.Swap(buildSnapshot(t, embedder, []string{"some text"}, vector.MetricEuclidean))

	_, err := engine.Search(context.Background(), &models.SearchQuery{
		Query:  "some text",
		Metric: "cosine",
	})
	require.Error(t, err)
	assert.Equal(t, apperrors.CodeMetricMismatch, apperrors.Code(err))
}

func TestReloadFromDisk(t *testing.T) {
	engine, embedder, indexPath, metaPath := newTestEngine(t)

	snap := buildSnapshot(t, embedder, []string{"first video transcript", "second video transcript"}, vector.MetricCosine)
	require.NoError(t, snap.Persist(indexPath, metaPath))

	require.NoError(t, engine.Reload(context.Background()))
	require.NotNil(t, engine.Snapshot())
	assert.Equal(t, 2, engine.Snapshot().Len())

	resp, err := engine.Search(context.Background(), &models.SearchQuery{Query: "first video transcript"})
	require.NoError(t, err)
	assert.Equal(t, "a", resp.Results[0].VideoID)
}

func TestReloadFailureKeepsServingOldSnapshot(t *testing.T) {
	engine, embedder, _, _ := newTestEngine(t)
	old := buildSnapshot(t, embedder, []string{"kept transcript"}, vector.MetricCosine)
	engine.Swap(old)

	// Nothing persisted at the configured paths, so the reload fails.
	err := engine.Reload(context.Background())
	require.Error(t, err)
	assert.Equal(t, apperrors.CodeIndexNotFound, apperrors.Code(err))
	assert.Same(t, old, engine.Snapshot())
}

func TestConcurrentSearchDuringSwap(t *testing.T) {
	engine, embedder, _, _ := newTestEngine(t)
	snapA := buildSnapshot(t, embedder, []string{"one"}, vector.MetricCosine)
	snapB := buildSnapshot(t, embedder, []string{"one", "two", "three"}, vector.MetricCosine)
	engine.Swap(snapA)

	var wg sync.WaitGroup
	stop := make(chan struct{})
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				resp, err := engine.Search(context.Background(), &models.SearchQuery{Query: "one", TopK: 10})
				if assert.NoError(t, err) {
					// Every response comes from exactly one snapshot.
					assert.Contains(t, []int{1, 3}, resp.Total)
				}
			}
		}()
	}
	for i := 0; i < 100; i++ {
		if i%2 == 0 {
			engine.Swap(snapB)
		} else {
			engine.Swap(snapA)
		}
	}
	close(stop)
	wg.Wait()
}

func TestAutocomplete(t *testing.T) {
	engine, _, _, _ := newTestEngine(t)
	suggest, err := keyword.NewSuggestIndex()
	require.NoError(t, err)
	defer suggest.Close()
	require.NoError(t, suggest.Rebuild(context.Background(), []keyword.Entry{
		{VideoID: "v1", Title: "Kubernetes Networking", Channel: "CloudTalks"},
	}))
	engine.suggest = suggest

	got, err := engine.Autocomplete(context.Background(), "kuber", 5)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "v1", got[0].VideoID)
}
