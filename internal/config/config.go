// Package config provides configuration loading and structs for the QueryTube server.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application.
type Config struct {
	Debug     bool            `yaml:"debug"`
	Server    ServerConfig    `yaml:"server"`
	Storage   StorageConfig   `yaml:"storage"`
	YouTube   YouTubeConfig   `yaml:"youtube"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Search    SearchConfig    `yaml:"search"`
	Pipeline  PipelineConfig  `yaml:"pipeline"`
	Refresh   RefreshConfig   `yaml:"refresh"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// StorageConfig holds paths for the catalog database and index snapshot.
type StorageConfig struct {
	DatabasePath string `yaml:"database_path"`
	IndexPath    string `yaml:"index_path"`
	MetaPath     string `yaml:"meta_path"`
}

// YouTubeConfig holds upstream API settings. The API key is read from the
// YOUTUBE_API_KEY environment variable (optionally via a .env file), never
// from the YAML, so it stays out of checked-in config.
type YouTubeConfig struct {
	APIKey           string `yaml:"-"`
	TimedTextBaseURL string `yaml:"timedtext_base_url"`
	CaptionLanguage  string `yaml:"caption_language"`
}

// EmbeddingConfig holds embedder settings.
type EmbeddingConfig struct {
	ModelName  string `yaml:"model_name"`
	ModelPath  string `yaml:"model_path"`
	Dimensions int    `yaml:"dimensions"`
	MaxTokens  int    `yaml:"max_tokens"`
	CacheSize  int    `yaml:"cache_size"`
}

// SearchConfig holds query-time settings.
type SearchConfig struct {
	Metric         string `yaml:"metric"`
	SuggestLimit   int    `yaml:"suggest_limit"`
	ReloadOnChange *bool  `yaml:"reload_on_change"`
}

// ReloadOnChangeOrDefault returns whether to watch the snapshot files for
// changes; defaults to true when unset.
func (s *SearchConfig) ReloadOnChangeOrDefault() bool {
	if s.ReloadOnChange != nil {
		return *s.ReloadOnChange
	}
	return true
}

// PipelineConfig holds ingestion tuning knobs.
type PipelineConfig struct {
	BatchSize         int    `yaml:"batch_size"`
	TranscriptWorkers int    `yaml:"transcript_workers"`
	TranscriptRetries int    `yaml:"transcript_retries"`
	RetryBackoff      string `yaml:"retry_backoff"` // Go duration string
}

// RefreshConfig holds the scheduled refresh settings. When Schedule is empty
// no background refresh runs.
type RefreshConfig struct {
	Schedule  string `yaml:"schedule"` // cron expression
	ChannelID string `yaml:"channel_id"`
}

// Load reads and parses the config file at path, expands paths, applies
// defaults, and resolves the YouTube API key from the environment.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	ApplyDefaults(&cfg)

	configDir := filepath.Dir(path)
	cfg.Storage.DatabasePath = expandPath(cfg.Storage.DatabasePath, configDir)
	cfg.Storage.IndexPath = expandPath(cfg.Storage.IndexPath, configDir)
	cfg.Storage.MetaPath = expandPath(cfg.Storage.MetaPath, configDir)
	if cfg.Embedding.ModelPath != "" {
		cfg.Embedding.ModelPath = expandPath(cfg.Embedding.ModelPath, configDir)
	}

	// .env is optional; a missing file is not an error.
	_ = godotenv.Load(filepath.Join(configDir, ".env"))
	cfg.YouTube.APIKey = os.Getenv("YOUTUBE_API_KEY")

	return &cfg, nil
}

// expandPath converts a path to absolute. Paths starting with "./" are relative to configDir;
// other relative paths are relative to the home directory.
func expandPath(path string, configDir string) string {
	if filepath.IsAbs(path) {
		return path
	}
	if strings.HasPrefix(path, "./") || path == "." {
		return filepath.Join(configDir, path)
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, path)
	}
	return path
}
