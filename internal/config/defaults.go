package config

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Storage.DatabasePath == "" {
		cfg.Storage.DatabasePath = "/usr/local/var/querytube/data/catalog.db"
	}
	if cfg.Storage.IndexPath == "" {
		cfg.Storage.IndexPath = "/usr/local/var/querytube/data/index/videos.qtvx"
	}
	if cfg.Storage.MetaPath == "" {
		cfg.Storage.MetaPath = "/usr/local/var/querytube/data/index/videos.meta.json"
	}
	if cfg.YouTube.CaptionLanguage == "" {
		cfg.YouTube.CaptionLanguage = "en"
	}
	if cfg.Embedding.ModelName == "" {
		cfg.Embedding.ModelName = "all-MiniLM-L6-v2"
	}
	if cfg.Embedding.Dimensions == 0 {
		cfg.Embedding.Dimensions = 384
	}
	if cfg.Embedding.MaxTokens == 0 {
		cfg.Embedding.MaxTokens = 256
	}
	if cfg.Embedding.CacheSize == 0 {
		cfg.Embedding.CacheSize = 10000
	}
	if cfg.Search.Metric == "" {
		cfg.Search.Metric = "cosine"
	}
	if cfg.Search.SuggestLimit == 0 {
		cfg.Search.SuggestLimit = 10
	}
	if cfg.Pipeline.BatchSize == 0 {
		cfg.Pipeline.BatchSize = 32
	}
	if cfg.Pipeline.TranscriptWorkers == 0 {
		cfg.Pipeline.TranscriptWorkers = 4
	}
	if cfg.Pipeline.TranscriptRetries == 0 {
		cfg.Pipeline.TranscriptRetries = 3
	}
	if cfg.Pipeline.RetryBackoff == "" {
		cfg.Pipeline.RetryBackoff = "1s"
	}
}
