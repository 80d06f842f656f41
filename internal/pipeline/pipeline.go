// Package pipeline runs the three ingestion stages: collect video metadata,
// fetch transcripts, and build the vector index.
package pipeline

import (
	"time"

	"go.uber.org/zap"

	"github.com/querytube/querytube/internal/catalog"
	"github.com/querytube/querytube/internal/embedding"
	"github.com/querytube/querytube/internal/keyword"
	"github.com/querytube/querytube/internal/vector"
	"github.com/querytube/querytube/internal/youtube"
)

// SnapshotSink receives freshly built snapshots. The search engine implements
// this; the embed stage hands over the snapshot it just persisted so the
// engine never has to reload from disk.
type SnapshotSink interface {
	Swap(snap *vector.Snapshot)
}

// Config holds pipeline tuning knobs. Zero values get defaults from New.
type Config struct {
	IndexPath string
	MetaPath  string
	Metric    vector.Metric

	BatchSize         int           // embed batch size
	TranscriptWorkers int           // concurrent transcript fetches
	TranscriptRetries int           // retries per video on transient failure
	RetryBackoff      time.Duration // base backoff, doubled per attempt
}

// Pipeline coordinates the ingestion stages against the catalog and the
// upstream providers.
type Pipeline struct {
	catalog     catalog.Catalog
	metadata    youtube.MetadataProvider
	transcripts youtube.TranscriptProvider
	embedder    embedding.Embedder
	suggest     *keyword.SuggestIndex
	sink        SnapshotSink
	cfg         Config
	logger      *zap.Logger
}

// New creates a pipeline. sink may be nil when no live engine should receive
// built snapshots (the index CLI subcommand runs without a server).
func New(
	cat catalog.Catalog,
	metadata youtube.MetadataProvider,
	transcripts youtube.TranscriptProvider,
	embedder embedding.Embedder,
	suggest *keyword.SuggestIndex,
	sink SnapshotSink,
	cfg Config,
	logger *zap.Logger,
) *Pipeline {
	if cfg.Metric == "" {
		cfg.Metric = vector.MetricCosine
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 32
	}
	if cfg.TranscriptWorkers <= 0 {
		cfg.TranscriptWorkers = 4
	}
	if cfg.TranscriptRetries <= 0 {
		cfg.TranscriptRetries = 3
	}
	if cfg.RetryBackoff <= 0 {
		cfg.RetryBackoff = time.Second
	}
	return &Pipeline{
		catalog:     cat,
		metadata:    metadata,
		transcripts: transcripts,
		embedder:    embedder,
		suggest:     suggest,
		sink:        sink,
		cfg:         cfg,
		logger:      logger,
	}
}
