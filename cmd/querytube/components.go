package main

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/querytube/querytube/internal/catalog"
	"github.com/querytube/querytube/internal/config"
	"github.com/querytube/querytube/internal/embedding"
	"github.com/querytube/querytube/internal/keyword"
	"github.com/querytube/querytube/internal/pipeline"
	"github.com/querytube/querytube/internal/search"
	"github.com/querytube/querytube/internal/vector"
	"github.com/querytube/querytube/internal/youtube"
)

// Components holds the initialized application components.
type Components struct {
	Catalog  *catalog.SQLiteCatalog
	Embedder embedding.Embedder
	Suggest  *keyword.SuggestIndex
	Engine   *search.Engine
	Pipeline *pipeline.Pipeline
}

// Close releases all component resources.
func (c *Components) Close() {
	if c.Embedder != nil {
		_ = c.Embedder.Close()
	}
	if c.Suggest != nil {
		_ = c.Suggest.Close()
	}
	if c.Catalog != nil {
		_ = c.Catalog.Close()
	}
}

func initializeComponents(cfg *config.Config, logger *zap.Logger) (*Components, error) {
	cat, err := catalog.NewSQLiteCatalog(cfg.Storage.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize catalog: %w", err)
	}

	var embedder embedding.Embedder
	if cfg.Embedding.ModelPath != "" {
		onnxEmbedder, onnxErr := embedding.NewONNXEmbedder(
			cfg.Embedding.ModelName,
			cfg.Embedding.ModelPath,
			cfg.Embedding.Dimensions,
			cfg.Embedding.MaxTokens,
			cfg.Embedding.CacheSize,
		)
		if onnxErr != nil {
			logger.Warn("ONNX embedder unavailable, falling back to mock embedder",
				zap.Error(onnxErr))
		} else {
			embedder = onnxEmbedder
		}
	}
	if embedder == nil {
		embedder = embedding.NewMockEmbedder(cfg.Embedding.ModelName, cfg.Embedding.Dimensions)
	}

	suggest, err := keyword.NewSuggestIndex()
	if err != nil {
		_ = cat.Close()
		return nil, fmt.Errorf("failed to initialize suggestion index: %w", err)
	}

	engine := search.NewEngine(embedder, suggest,
		cfg.Storage.IndexPath, cfg.Storage.MetaPath, logger)

	metric, err := vector.ParseMetric(cfg.Search.Metric)
	if err != nil {
		suggest.Close()
		_ = cat.Close()
		return nil, err
	}

	var metadata youtube.MetadataProvider
	if cfg.YouTube.APIKey != "" {
		metadata, err = youtube.NewDataAPIProvider(context.Background(), cfg.YouTube.APIKey)
		if err != nil {
			suggest.Close()
			_ = cat.Close()
			return nil, fmt.Errorf("failed to initialize YouTube client: %w", err)
		}
	}

	transcriptOpts := []youtube.TimedTextOption{}
	if cfg.YouTube.TimedTextBaseURL != "" {
		transcriptOpts = append(transcriptOpts, youtube.WithBaseURL(cfg.YouTube.TimedTextBaseURL))
	}
	transcripts := youtube.NewTimedTextProvider(cfg.YouTube.CaptionLanguage, transcriptOpts...)

	backoff, err := time.ParseDuration(cfg.Pipeline.RetryBackoff)
	if err != nil {
		backoff = time.Second
	}
	pl := pipeline.New(cat, metadata, transcripts, embedder, suggest, engine,
		pipeline.Config{
			IndexPath:         cfg.Storage.IndexPath,
			MetaPath:          cfg.Storage.MetaPath,
			Metric:            metric,
			BatchSize:         cfg.Pipeline.BatchSize,
			TranscriptWorkers: cfg.Pipeline.TranscriptWorkers,
			TranscriptRetries: cfg.Pipeline.TranscriptRetries,
			RetryBackoff:      backoff,
		}, logger)

	return &Components{
		Catalog:  cat,
		Embedder: embedder,
		Suggest:  suggest,
		Engine:   engine,
		Pipeline: pl,
	}, nil
}
