// Package main is the QueryTube CLI entry point.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/querytube/querytube/internal/cli"
	"github.com/querytube/querytube/internal/config"
	"github.com/querytube/querytube/internal/models"
	"github.com/querytube/querytube/internal/scheduler"
	"github.com/querytube/querytube/internal/server"
	"github.com/querytube/querytube/internal/watcher"
	"github.com/querytube/querytube/pkg/utils"
)

var version = "dev"

const defaultConfigPath = "/usr/local/etc/querytube/config.yaml"

// loadConfig loads config from path. When path is the default, it first looks
// for config.yaml in the current directory (for development); if that exists
// it is used instead.
func loadConfig(path string) (*config.Config, string, error) {
	if path == defaultConfigPath {
		if cwd, cwdErr := os.Getwd(); cwdErr == nil {
			fallback := filepath.Join(cwd, "config.yaml")
			if _, statErr := os.Stat(fallback); statErr == nil {
				cfg, loadErr := config.Load(fallback)
				if loadErr != nil {
					return nil, "", loadErr
				}
				return cfg, fallback, nil
			}
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	command := os.Args[1]
	switch command {
	case "server":
		runServer()
	case "collect":
		runCollect()
	case "transcripts":
		runTranscripts()
	case "index":
		runIndex()
	case "search":
		runSearch()
	case "status":
		runStatus()
	case "version", "--version", "-v":
		fmt.Printf("querytube version %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`QueryTube - semantic search over YouTube transcripts

Usage:
  querytube <command> [flags]

Commands:
  server       Run the HTTP API server
  collect      Collect video metadata for a channel, playlist, or video list
  transcripts  Fetch transcripts for collected videos
  index        Embed transcripts and build the vector index
  search       Search the index
  status       Show catalog and index status
  version      Print version
  help         Show this help

Run "querytube <command> -h" for command flags.`)
}

func mustLogger(cfg *config.Config, debug bool) *zap.Logger {
	logger, err := utils.NewLogger(cfg.Debug || debug)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	return logger
}

func runServer() {
	fs := flag.NewFlagSet("server", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging")
	_ = fs.Parse(os.Args[2:])

	cfg, resolvedConfigPath, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger := mustLogger(cfg, *debug)
	defer logger.Sync()

	logger.Info("config loaded",
		zap.String("config_path", resolvedConfigPath),
		zap.Bool("debug", cfg.Debug || *debug))

	components, err := initializeComponents(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize components", zap.Error(err))
	}
	defer components.Close()

	// Serve an existing snapshot right away when one is on disk.
	if err := components.Engine.Reload(context.Background()); err != nil {
		logger.Info("no index snapshot loaded yet", zap.Error(err))
	}
	if err := components.Pipeline.RebuildSuggestions(context.Background()); err != nil {
		logger.Warn("failed to build suggestion index", zap.Error(err))
	}

	watchCtx, watchCancel := context.WithCancel(context.Background())
	defer watchCancel()
	if cfg.Search.ReloadOnChangeOrDefault() {
		engine := components.Engine
		watchOpts := []watcher.WatcherOption{}
		if cfg.Debug || *debug {
			watchOpts = append(watchOpts, watcher.WithLogger(logger))
		}
		snapWatcher := watcher.NewWatcher(
			[]string{cfg.Storage.IndexPath, cfg.Storage.MetaPath},
			func() {
				if err := engine.Reload(context.Background()); err != nil {
					logger.Warn("snapshot reload failed", zap.Error(err))
				}
			},
			watchOpts...,
		)
		if err := os.MkdirAll(filepath.Dir(cfg.Storage.IndexPath), 0755); err != nil {
			logger.Warn("failed to create index directory", zap.Error(err))
		} else if err := snapWatcher.Start(watchCtx); err != nil {
			logger.Warn("failed to start snapshot watcher", zap.Error(err))
		} else {
			defer snapWatcher.Stop()
		}
	}

	if cfg.Refresh.Schedule != "" && cfg.Refresh.ChannelID != "" {
		sched := scheduler.New(components.Pipeline, cfg.Refresh.Schedule, cfg.Refresh.ChannelID, logger)
		if err := sched.Start(watchCtx); err != nil {
			logger.Warn("failed to start refresh scheduler", zap.Error(err))
		} else {
			defer sched.Stop()
		}
	}

	srv := server.NewServer(
		components.Engine,
		components.Pipeline,
		components.Catalog,
		&cfg.Server,
		version,
		logger,
	)
	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down...")
	watchCancel()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Stop(ctx)
}

func runCollect() {
	fs := flag.NewFlagSet("collect", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	channelID := fs.String("channel", "", "channel ID to collect")
	playlistID := fs.String("playlist", "", "playlist ID to collect")
	videoIDs := fs.String("videos", "", "comma-separated video IDs to collect")
	maxResults := fs.Int("max-results", 0, "stop after collecting this many videos (0 = no limit)")
	publishedAfter := fs.String("published-after", "", "only keep videos published at or after this RFC 3339 time")
	_ = fs.Parse(os.Args[2:])

	req := &models.CollectRequest{
		ChannelID:      *channelID,
		PlaylistID:     *playlistID,
		MaxResults:     *maxResults,
		PublishedAfter: *publishedAfter,
	}
	if *videoIDs != "" {
		req.VideoIDs = strings.Split(*videoIDs, ",")
	}

	components, logger := mustComponents(*configPath)
	defer logger.Sync()
	defer components.Close()

	resp, err := components.Pipeline.Collect(context.Background(), req)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Collect failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("%s (job %s)\n", resp.Message, resp.JobID)
}

func runTranscripts() {
	fs := flag.NewFlagSet("transcripts", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	videoIDs := fs.String("videos", "", "comma-separated video IDs (default: all pending)")
	force := fs.Bool("force", false, "re-fetch transcripts that already succeeded or failed")
	_ = fs.Parse(os.Args[2:])

	req := &models.TranscriptsRequest{ForceRefresh: *force}
	if *videoIDs != "" {
		req.VideoIDs = strings.Split(*videoIDs, ",")
	}

	components, logger := mustComponents(*configPath)
	defer logger.Sync()
	defer components.Close()

	resp, err := components.Pipeline.FetchTranscripts(context.Background(), req)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Transcript fetch failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("%s (job %s)\n", resp.Message, resp.JobID)
}

func runIndex() {
	fs := flag.NewFlagSet("index", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	force := fs.Bool("force", false, "rebuild even when a snapshot already exists")
	batchSize := fs.Int("batch-size", 0, "embedding batch size (default from config)")
	_ = fs.Parse(os.Args[2:])

	components, logger := mustComponents(*configPath)
	defer logger.Sync()
	defer components.Close()

	resp, err := components.Pipeline.BuildIndex(context.Background(), &models.EmbedRequest{
		ForceRebuild: *force,
		BatchSize:    *batchSize,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Index build failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("%s (job %s)\n", resp.Message, resp.JobID)
}

func mustComponents(configPath string) (*Components, *zap.Logger) {
	cfg, _, err := loadConfig(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger := mustLogger(cfg, false)
	components, err := initializeComponents(cfg, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize: %v\n", err)
		os.Exit(1)
	}
	return components, logger
}

// buildSearchQuery joins all positional args with spaces so multi-word
// queries work the same with or without shell quoting.
func buildSearchQuery(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}

// searchArgsReorder moves flags that appear after the query to the front so
// flag.Parse() sees them; the flag package stops at the first non-flag arg.
func searchArgsReorder(args []string) []string {
	for i, a := range args {
		if len(a) > 0 && a[0] == '-' {
			if i == 0 {
				return args
			}
			reordered := make([]string, 0, len(args))
			reordered = append(reordered, args[i:]...)
			reordered = append(reordered, args[:i]...)
			return reordered
		}
	}
	return args
}

func runSearch() {
	fs := flag.NewFlagSet("search", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	serverURL := fs.String("server", "", "search through a running server instead of the local snapshot, e.g. http://localhost:8080")
	topK := fs.Int("top-k", models.DefaultTopK, "number of results")
	metric := fs.String("metric", "", "similarity metric: cosine, euclidean, or dot_product")
	minScore := fs.Float64("min-score", -1, "drop results scoring below this (range 0..1; negative = no threshold)")
	outputFormat := fs.String("output", "text", "output format: text, compact, or json")
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "Usage: querytube search [flags] <query>\n\n")
		fs.PrintDefaults()
	}
	_ = fs.Parse(searchArgsReorder(os.Args[2:]))

	queryStr := buildSearchQuery(fs.Args())
	if queryStr == "" {
		fs.Usage()
		os.Exit(1)
	}
	format, err := cli.ParseFormat(*outputFormat)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	query := &models.SearchQuery{
		Query:  queryStr,
		TopK:   *topK,
		Metric: *metric,
	}
	if *minScore >= 0 {
		query.MinScore = minScore
	}

	var response *models.SearchResponse
	if *serverURL != "" {
		response, err = searchViaHTTP(*serverURL, query)
	} else {
		response, err = searchDirect(*configPath, query)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Search failed: %v\n", err)
		os.Exit(1)
	}
	if err := cli.WriteSearchResults(os.Stdout, response, format); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
}

func searchDirect(configPath string, query *models.SearchQuery) (*models.SearchResponse, error) {
	components, logger := mustComponents(configPath)
	defer logger.Sync()
	defer components.Close()

	if err := components.Engine.Reload(context.Background()); err != nil {
		return nil, err
	}
	return components.Engine.Search(context.Background(), query)
}

func searchViaHTTP(serverURL string, query *models.SearchQuery) (*models.SearchResponse, error) {
	body, err := json.Marshal(query)
	if err != nil {
		return nil, err
	}
	resp, err := http.Post(serverURL+"/api/search", "application/json", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("server returned %d: %s", resp.StatusCode, string(b))
	}
	var response models.SearchResponse
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &response, nil
}

func runStatus() {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	serverURL := fs.String("server", "", "read status from a running server instead of the local catalog, e.g. http://localhost:8080")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])

	format, err := cli.ParseFormat(*outputFormat)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	var status *models.SystemStatus
	if *serverURL != "" {
		status, err = statusViaHTTP(*serverURL)
	} else {
		status, err = statusDirect(*configPath)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Status failed: %v\n", err)
		os.Exit(1)
	}
	if err := cli.WriteStatus(os.Stdout, status, format); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
}

func statusDirect(configPath string) (*models.SystemStatus, error) {
	components, logger := mustComponents(configPath)
	defer logger.Sync()
	defer components.Close()

	ctx := context.Background()
	total, err := components.Catalog.CountVideos(ctx)
	if err != nil {
		return nil, err
	}
	counts, err := components.Catalog.CountByStatus(ctx)
	if err != nil {
		return nil, err
	}
	status := &models.SystemStatus{
		Status:      "ok",
		Version:     version,
		TotalVideos: total,
		StageCounts: counts,
	}
	if err := components.Engine.Reload(ctx); err == nil {
		status.IndexLoaded = true
		status.IndexSize = components.Engine.Snapshot().Len()
	}
	return status, nil
}

func statusViaHTTP(serverURL string) (*models.SystemStatus, error) {
	u, err := url.JoinPath(serverURL, "/api/admin/status")
	if err != nil {
		return nil, err
	}
	resp, err := http.Get(u)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("server returned %d: %s", resp.StatusCode, string(b))
	}
	var status models.SystemStatus
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &status, nil
}
