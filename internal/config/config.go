package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// FileSourceConfig configures a tailed flat text file.
type FileSourceConfig struct {
	Path     string        `yaml:"path"`
	Mode     string        `yaml:"mode"` // lines | blocks | jsonl
	Interval time.Duration `yaml:"interval"`
}

// FeedSourceConfig configures RSS/Atom feed scraping.
type FeedSourceConfig struct {
	URLs            []string      `yaml:"urls"`
	Interval        time.Duration `yaml:"interval"`
	RatePerSecond   float64       `yaml:"rate_per_second"`
	TimeoutSecs     int           `yaml:"timeout_secs"`
	UserAgent       string        `yaml:"user_agent"`
	MaxArticleChars int           `yaml:"max_article_chars"`
}

// SourceConfig selects and configures one connector.
type SourceConfig struct {
	Type string            `yaml:"type"` // file | feed
	File *FileSourceConfig `yaml:"file,omitempty"`
	Feed *FeedSourceConfig `yaml:"feed,omitempty"`
}

// ExtractionConfig toggles LLM-based structured extraction.
type ExtractionConfig struct {
	Enabled          bool   `yaml:"enabled"`
	Model            string `yaml:"model"`
	MaxBodyChars     int    `yaml:"max_body_chars"`
	SummarySentences int    `yaml:"summary_sentences"`
}

// LLMConfig holds the OpenAI-compatible chat completions endpoint.
type LLMConfig struct {
	BaseURL           string  `yaml:"base_url"`
	APIKeyEnv         string  `yaml:"api_key_env"`
	TimeoutSecs       int     `yaml:"timeout_secs"`
	AnswerModel       string  `yaml:"answer_model"`
	AnswerTemperature float64 `yaml:"answer_temperature"`
}

// OpenAIEmbedderConfig holds configuration for the OpenAI-compatible embedder.
type OpenAIEmbedderConfig struct {
	BaseURL     string `yaml:"base_url"`
	APIKeyEnv   string `yaml:"api_key_env"`
	Model       string `yaml:"model"`
	TimeoutSecs int    `yaml:"timeout_secs"`
	MaxRetries  int    `yaml:"max_retries"`
}

// HashingEmbedderConfig configures the offline hashed term-frequency embedder.
type HashingEmbedderConfig struct {
	Dimension int `yaml:"dimension"`
}

// EmbedderConfig selects and configures the text embedder implementation.
type EmbedderConfig struct {
	Type    string                 `yaml:"type"`
	Hashing *HashingEmbedderConfig `yaml:"hashing,omitempty"`
	OpenAI  *OpenAIEmbedderConfig  `yaml:"openai,omitempty"`
}

// QdrantConfig contains connection details for a Qdrant vector store.
type QdrantConfig struct {
	URL         string `yaml:"url"`
	APIKey      string `yaml:"api_key"`
	Collection  string `yaml:"collection"`
	TimeoutSecs int    `yaml:"timeout_secs"`
}

// PgvectorConfig contains connection details for a Postgres + pgvector store.
type PgvectorConfig struct {
	DSN   string `yaml:"dsn"`
	Table string `yaml:"table"`
}

// VectorStoreConfig selects and configures the vector store implementation.
type VectorStoreConfig struct {
	Type     string          `yaml:"type"`
	Qdrant   *QdrantConfig   `yaml:"qdrant,omitempty"`
	Pgvector *PgvectorConfig `yaml:"pgvector,omitempty"`
}

// QueryConfig configures the read path.
type QueryConfig struct {
	TopK int `yaml:"top_k"`
}

// ServerConfig configures the HTTP transport.
type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// NATSConfig enables publication of indexed narratives.
type NATSConfig struct {
	URL     string `yaml:"url"`
	Subject string `yaml:"subject"`
}

// NotifyConfig groups optional alert fan-out targets.
type NotifyConfig struct {
	NATS *NATSConfig `yaml:"nats,omitempty"`
}

// LogConfig configures the zap logger.
type LogConfig struct {
	Level       string `yaml:"level"`
	Development bool   `yaml:"development"`
}

// AppConfig is the root application configuration structure.
type AppConfig struct {
	Sources     []SourceConfig    `yaml:"sources"`
	Extraction  ExtractionConfig  `yaml:"extraction"`
	LLM         LLMConfig         `yaml:"llm"`
	Embedder    EmbedderConfig    `yaml:"embedder"`
	VectorStore VectorStoreConfig `yaml:"vector_store"`
	Query       QueryConfig       `yaml:"query"`
	Server      ServerConfig      `yaml:"server"`
	Notify      NotifyConfig      `yaml:"notify"`
	Log         LogConfig         `yaml:"log"`
}

// DefaultFeeds are the world news feeds scraped when a feed source lists no URLs.
var DefaultFeeds = []string{
	"http://feeds.bbci.co.uk/news/world/rss.xml",
	"https://www.aljazeera.com/xml/rss/all.xml",
	"https://rss.cnn.com/rss/edition_world.rss",
}

// Load reads a config from a specified path. If the file does not exist, returns defaults.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return defaultConfig(), nil
		}
		return nil, err
	}
	return Parse(data)
}

// Parse decodes YAML, fills defaults and validates the result.
func Parse(data []byte) (*AppConfig, error) {
	cfg := AppConfig{Extraction: ExtractionConfig{Enabled: true}}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	applyConfigDefaults(&cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadDefault tries ./config.yaml first, then ~/.config/disasterwatch/config.yaml.
// If neither exists, it writes defaults to the user path and returns them.
func LoadDefault() (*AppConfig, string, error) {
	cwdPath := "config.yaml"
	if _, err := os.Stat(cwdPath); err == nil {
		cfg, err := Load(cwdPath)
		return cfg, cwdPath, err
	}
	userPath, err := defaultUserConfigPath()
	if err != nil {
		return nil, "", err
	}
	if _, err := os.Stat(userPath); err == nil {
		cfg, err := Load(userPath)
		return cfg, userPath, err
	}
	cfg := defaultConfig()
	if err := Save(userPath, cfg); err != nil {
		return nil, "", err
	}
	return cfg, userPath, nil
}

// Save writes the config to the given path, creating directories as needed.
func Save(path string, cfg *AppConfig) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// Validate rejects configurations the wiring code cannot build.
func (c *AppConfig) Validate() error {
	if len(c.Sources) == 0 {
		return errors.New("config: at least one source is required")
	}
	for i, s := range c.Sources {
		switch s.Type {
		case "file":
			if s.File == nil || s.File.Path == "" {
				return fmt.Errorf("config: sources[%d]: file.path is required", i)
			}
			switch s.File.Mode {
			case "lines", "blocks", "jsonl":
			default:
				return fmt.Errorf("config: sources[%d]: unknown file mode %q", i, s.File.Mode)
			}
		case "feed":
			if s.Feed == nil || len(s.Feed.URLs) == 0 {
				return fmt.Errorf("config: sources[%d]: feed.urls is required", i)
			}
		default:
			return fmt.Errorf("config: sources[%d]: unknown source type %q", i, s.Type)
		}
	}
	switch c.Embedder.Type {
	case "hashing", "openai":
	default:
		return fmt.Errorf("config: unknown embedder %q", c.Embedder.Type)
	}
	switch c.VectorStore.Type {
	case "memory":
	case "qdrant":
		if c.VectorStore.Qdrant == nil || c.VectorStore.Qdrant.URL == "" {
			return errors.New("config: vector_store.qdrant.url is required")
		}
	case "pgvector":
		if c.VectorStore.Pgvector == nil || c.VectorStore.Pgvector.DSN == "" {
			return errors.New("config: vector_store.pgvector.dsn is required")
		}
	default:
		return fmt.Errorf("config: unknown vector store %q", c.VectorStore.Type)
	}
	return nil
}

func defaultUserConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "disasterwatch", "config.yaml"), nil
}

func defaultConfig() *AppConfig {
	cfg := &AppConfig{
		Sources: []SourceConfig{
			{Type: "file", File: &FileSourceConfig{Path: "disasters.txt", Mode: "blocks", Interval: 5 * time.Second}},
		},
		Extraction:  ExtractionConfig{Enabled: true},
		Embedder:    EmbedderConfig{Type: "hashing"},
		VectorStore: VectorStoreConfig{Type: "memory"},
	}
	applyConfigDefaults(cfg)
	return cfg
}

func applyConfigDefaults(cfg *AppConfig) {
	for i := range cfg.Sources {
		s := &cfg.Sources[i]
		if s.Type == "file" && s.File != nil {
			if s.File.Mode == "" {
				s.File.Mode = "blocks"
			}
			if s.File.Interval <= 0 {
				s.File.Interval = 5 * time.Second
			}
		}
		if s.Type == "feed" {
			if s.Feed == nil {
				s.Feed = &FeedSourceConfig{}
			}
			if len(s.Feed.URLs) == 0 {
				s.Feed.URLs = append([]string(nil), DefaultFeeds...)
			}
			if s.Feed.Interval <= 0 {
				s.Feed.Interval = 10 * time.Second
			}
			if s.Feed.RatePerSecond <= 0 {
				s.Feed.RatePerSecond = 2
			}
			if s.Feed.TimeoutSecs == 0 {
				s.Feed.TimeoutSecs = 15
			}
			if s.Feed.UserAgent == "" {
				s.Feed.UserAgent = "disasterwatch/1.0"
			}
			if s.Feed.MaxArticleChars == 0 {
				s.Feed.MaxArticleChars = 50_000
			}
		}
	}
	if cfg.Extraction.Model == "" {
		cfg.Extraction.Model = "llama-3.3-70b-versatile"
	}
	if cfg.Extraction.MaxBodyChars == 0 {
		cfg.Extraction.MaxBodyChars = 4000
	}
	if cfg.Extraction.SummarySentences == 0 {
		cfg.Extraction.SummarySentences = 8
	}
	if cfg.LLM.BaseURL == "" {
		cfg.LLM.BaseURL = "https://api.groq.com/openai/v1"
	}
	if cfg.LLM.APIKeyEnv == "" {
		cfg.LLM.APIKeyEnv = "GROQ_API_KEY"
	}
	if cfg.LLM.TimeoutSecs == 0 {
		cfg.LLM.TimeoutSecs = 60
	}
	if cfg.LLM.AnswerModel == "" {
		cfg.LLM.AnswerModel = "llama-3.3-70b-versatile"
	}
	if cfg.LLM.AnswerTemperature == 0 {
		cfg.LLM.AnswerTemperature = 0.2
	}
	if cfg.Embedder.Type == "" {
		cfg.Embedder.Type = "hashing"
	}
	if cfg.Embedder.Type == "hashing" {
		if cfg.Embedder.Hashing == nil {
			cfg.Embedder.Hashing = &HashingEmbedderConfig{}
		}
		if cfg.Embedder.Hashing.Dimension == 0 {
			cfg.Embedder.Hashing.Dimension = 512
		}
	}
	if cfg.Embedder.Type == "openai" {
		if cfg.Embedder.OpenAI == nil {
			cfg.Embedder.OpenAI = &OpenAIEmbedderConfig{}
		}
		if cfg.Embedder.OpenAI.BaseURL == "" {
			cfg.Embedder.OpenAI.BaseURL = "https://api.openai.com/v1"
		}
		if cfg.Embedder.OpenAI.APIKeyEnv == "" {
			cfg.Embedder.OpenAI.APIKeyEnv = "OPENAI_API_KEY"
		}
		if cfg.Embedder.OpenAI.Model == "" {
			cfg.Embedder.OpenAI.Model = "text-embedding-3-small"
		}
		if cfg.Embedder.OpenAI.TimeoutSecs == 0 {
			cfg.Embedder.OpenAI.TimeoutSecs = 30
		}
		if cfg.Embedder.OpenAI.MaxRetries == 0 {
			cfg.Embedder.OpenAI.MaxRetries = 5
		}
	}
	if cfg.VectorStore.Type == "" {
		cfg.VectorStore.Type = "memory"
	}
	if q := cfg.VectorStore.Qdrant; q != nil {
		if q.Collection == "" {
			q.Collection = "disaster_narratives"
		}
		if q.TimeoutSecs == 0 {
			q.TimeoutSecs = 15
		}
	}
	if p := cfg.VectorStore.Pgvector; p != nil && p.Table == "" {
		p.Table = "disaster_narratives"
	}
	if cfg.Query.TopK == 0 {
		cfg.Query.TopK = 3
	}
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = ":8000"
	}
	if n := cfg.Notify.NATS; n != nil && n.Subject == "" {
		n.Subject = "disasters.narratives"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
}
