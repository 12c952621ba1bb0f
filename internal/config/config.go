package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Environment string `envconfig:"ENVIRONMENT" default:"local"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`

	DatabaseURL string `envconfig:"DATABASE_URL" required:"true"`
	DBMinConns  int32  `envconfig:"CURRENTS_DB_MIN_CONNS" default:"1"`
	DBMaxConns  int32  `envconfig:"CURRENTS_DB_MAX_CONNS" default:"8"`

	TargetLanguage string `envconfig:"TARGET_LANGUAGE" default:"en"`

	SourcesFile       string        `envconfig:"NEWS_SOURCES_FILE" default:"config/sources.yaml"`
	FetchTimeout      time.Duration `envconfig:"NEWS_REQUEST_TIMEOUT" default:"10s"`
	FetchUserAgent    string        `envconfig:"NEWS_USER_AGENT" default:"currents/1.0"`
	MaxItemsPerSource int           `envconfig:"NEWS_MAX_ITEMS_PER_SOURCE" default:"120"`

	EmbeddingEndpoint     string        `envconfig:"EMBEDDING_ENDPOINT" default:"http://127.0.0.1:8844/embed"`
	EmbeddingModelName    string        `envconfig:"EMBEDDING_MODEL_NAME" default:"multilingual-e5-small"`
	EmbeddingModelVersion string        `envconfig:"EMBEDDING_MODEL_VERSION" default:"v1"`
	EmbeddingDim          int           `envconfig:"EMBEDDING_DIM" default:"384"`
	EmbeddingTimeout      time.Duration `envconfig:"EMBEDDING_TIMEOUT" default:"45s"`

	GeminiAPIKey string `envconfig:"GEMINI_API_KEY" default:""`
	GeminiModel  string `envconfig:"GEMINI_MODEL" default:"gemini-2.0-flash"`
	MockLLM      bool   `envconfig:"MOCK_LLM" default:"false"`

	TrackingParams string `envconfig:"TRACKING_PARAMS" default:"utm_source,utm_medium,utm_campaign,utm_term,utm_content,ref"`

	TopicSimilarityThreshold float64 `envconfig:"TOPIC_SIMILARITY_THRESHOLD" default:"0.88"`
	TopicMergeThreshold      float64 `envconfig:"TOPIC_MERGE_THRESHOLD" default:"0.94"`
	TopicWindowDays          int     `envconfig:"TOPIC_TIME_WINDOW_DAYS" default:"7"`
	DedupNearThreshold       float64 `envconfig:"DEDUP_NEAR_THRESHOLD" default:"0.92"`

	MaxFeedItems     int     `envconfig:"MAX_FEED_ITEMS" default:"30"`
	MaxPerCategory   int     `envconfig:"MAX_PER_CATEGORY" default:"6"`
	MaxPerTopic      int     `envconfig:"MAX_PER_TOPIC" default:"1"`
	MMRLambda        float64 `envconfig:"MMR_LAMBDA" default:"0.8"`
	MMRMaxCandidates int     `envconfig:"MMR_MAX_CANDIDATES" default:"120"`

	RankerModelPath string `envconfig:"RANKER_MODEL_PATH" default:"ml/artifacts/ranker.json"`
	RankerMetaPath  string `envconfig:"RANKER_META_PATH" default:"ml/artifacts/ranker_meta.json"`

	ServeHost            string        `envconfig:"SERVE_HOST" default:"0.0.0.0"`
	ServePort            int           `envconfig:"SERVE_PORT" default:"8080"`
	ServeReadTimeout     time.Duration `envconfig:"SERVE_READ_TIMEOUT" default:"15s"`
	ServeWriteTimeout    time.Duration `envconfig:"SERVE_WRITE_TIMEOUT" default:"30s"`
	ServeShutdownTimeout time.Duration `envconfig:"SERVE_SHUTDOWN_TIMEOUT" default:"10s"`
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if strings.TrimSpace(c.DatabaseURL) == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if c.DBMinConns < 0 {
		return fmt.Errorf("CURRENTS_DB_MIN_CONNS must be >= 0")
	}
	if c.DBMaxConns < 1 {
		return fmt.Errorf("CURRENTS_DB_MAX_CONNS must be >= 1")
	}
	if c.DBMinConns > c.DBMaxConns {
		return fmt.Errorf("CURRENTS_DB_MIN_CONNS (%d) cannot exceed CURRENTS_DB_MAX_CONNS (%d)", c.DBMinConns, c.DBMaxConns)
	}
	if strings.TrimSpace(c.TargetLanguage) == "" {
		return fmt.Errorf("TARGET_LANGUAGE is required")
	}
	if c.EmbeddingDim < 1 {
		return fmt.Errorf("EMBEDDING_DIM must be >= 1")
	}
	if c.TopicSimilarityThreshold < -1 || c.TopicSimilarityThreshold > 1 {
		return fmt.Errorf("TOPIC_SIMILARITY_THRESHOLD must be within [-1, 1]")
	}
	if c.TopicMergeThreshold < -1 || c.TopicMergeThreshold > 1 {
		return fmt.Errorf("TOPIC_MERGE_THRESHOLD must be within [-1, 1]")
	}
	if c.TopicWindowDays < 1 {
		return fmt.Errorf("TOPIC_TIME_WINDOW_DAYS must be >= 1")
	}
	if c.DedupNearThreshold < 0 || c.DedupNearThreshold > 1 {
		return fmt.Errorf("DEDUP_NEAR_THRESHOLD must be within [0, 1]")
	}
	if c.MMRLambda < 0 || c.MMRLambda > 1 {
		return fmt.Errorf("MMR_LAMBDA must be within [0, 1]")
	}
	if c.MaxFeedItems < 1 {
		return fmt.Errorf("MAX_FEED_ITEMS must be >= 1")
	}
	if c.MaxPerTopic < 1 {
		return fmt.Errorf("MAX_PER_TOPIC must be >= 1")
	}
	if c.MaxPerCategory < 1 {
		return fmt.Errorf("MAX_PER_CATEGORY must be >= 1")
	}
	return nil
}

// TrackingParamsList splits the configured tracking-parameter block-list.
func (c *Config) TrackingParamsList() []string {
	if c == nil {
		return nil
	}

	parts := strings.Split(c.TrackingParams, ",")
	params := make([]string, 0, len(parts))
	seen := make(map[string]struct{}, len(parts))
	for _, part := range parts {
		param := strings.ToLower(strings.TrimSpace(part))
		if param == "" {
			continue
		}
		if _, exists := seen[param]; exists {
			continue
		}
		seen[param] = struct{}{}
		params = append(params, param)
	}
	return params
}
