package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, "debug: true\n")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.True(t, cfg.Debug)
	assert.Equal(t, "localhost", cfg.Server.Host)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "all-MiniLM-L6-v2", cfg.Embedding.ModelName)
	assert.Equal(t, 384, cfg.Embedding.Dimensions)
	assert.Equal(t, "cosine", cfg.Search.Metric)
	assert.Equal(t, 4, cfg.Pipeline.TranscriptWorkers)
	assert.True(t, cfg.Search.ReloadOnChangeOrDefault())
}

func TestLoadExpandsRelativePaths(t *testing.T) {
	path := writeConfig(t, `
storage:
  database_path: ./data/catalog.db
  index_path: ./data/index/videos.qtvx
  meta_path: ./data/index/videos.meta.json
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	dir := filepath.Dir(path)
	assert.Equal(t, filepath.Join(dir, "data/catalog.db"), cfg.Storage.DatabasePath)
	assert.Equal(t, filepath.Join(dir, "data/index/videos.qtvx"), cfg.Storage.IndexPath)
	assert.True(t, filepath.IsAbs(cfg.Storage.MetaPath))
}

func TestLoadReadsAPIKeyFromEnv(t *testing.T) {
	t.Setenv("YOUTUBE_API_KEY", "test-key-123")
	path := writeConfig(t, "debug: false\n")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "test-key-123", cfg.YouTube.APIKey)
}

func TestLoadReadsDotEnvFile(t *testing.T) {
	t.Setenv("YOUTUBE_API_KEY", "")
	os.Unsetenv("YOUTUBE_API_KEY")
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("debug: false\n"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("YOUTUBE_API_KEY=from-dotenv\n"), 0600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "from-dotenv", cfg.YouTube.APIKey)
}

func TestLoadRejectsBadYAML(t *testing.T) {
	path := writeConfig(t, "server: [not a map\n")

	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestReloadOnChangeExplicitFalse(t *testing.T) {
	path := writeConfig(t, `
search:
  reload_on_change: false
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.False(t, cfg.Search.ReloadOnChangeOrDefault())
}
