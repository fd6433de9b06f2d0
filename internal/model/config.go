package model

import "time"

// Config is the complete qbot configuration.
// Every section maps to a top-level key of ~/.qbot/config.yaml.
type Config struct {
	LLM          LLMConfig          `yaml:"llm" mapstructure:"llm"`
	Embedding    EmbeddingConfig    `yaml:"embedding" mapstructure:"embedding"`
	Store        StoreConfig        `yaml:"store" mapstructure:"store"`
	Conversation ConversationConfig `yaml:"conversation" mapstructure:"conversation"`
	Cache        CacheConfig        `yaml:"cache" mapstructure:"cache"`
	Ingest       IngestConfig       `yaml:"ingest" mapstructure:"ingest"`
	Log          LogConfig          `yaml:"log" mapstructure:"log"`
	HTTP         HTTPConfig         `yaml:"http" mapstructure:"http"`
}

// LLMConfig configures the text-completion provider
type LLMConfig struct {
	Provider    string  `yaml:"provider" mapstructure:"provider"` // openai, anthropic, ollama, mock
	Model       string  `yaml:"model" mapstructure:"model"`
	APIKey      string  `yaml:"api_key,omitempty" mapstructure:"api_key"`
	BaseURL     string  `yaml:"base_url,omitempty" mapstructure:"base_url"`
	Timeout     int     `yaml:"timeout" mapstructure:"timeout"` // seconds
	MaxTokens   int     `yaml:"max_tokens" mapstructure:"max_tokens"`
	Temperature float32 `yaml:"temperature" mapstructure:"temperature"`

	MockReplies []string `yaml:"mock_replies,omitempty" mapstructure:"mock_replies"` // Scripted replies for the mock provider
}

// EmbeddingConfig configures the embedding backend used by the stores
type EmbeddingConfig struct {
	Provider   string `yaml:"provider" mapstructure:"provider"` // openai, ollama, gemini, hash
	Model      string `yaml:"model" mapstructure:"model"`
	APIKey     string `yaml:"api_key,omitempty" mapstructure:"api_key"`
	BaseURL    string `yaml:"base_url,omitempty" mapstructure:"base_url"`
	Dimensions int    `yaml:"dimensions" mapstructure:"dimensions"` // Used by the hash embedder
	BatchSize  int    `yaml:"batch_size" mapstructure:"batch_size"`
}

// StoreConfig selects and configures the verse/theme store backend
type StoreConfig struct {
	Backend         string `yaml:"backend" mapstructure:"backend"` // memory, sqlite, postgres
	Path            string `yaml:"path" mapstructure:"path"`       // SQLite database file
	DSN             string `yaml:"dsn,omitempty" mapstructure:"dsn"`
	VerseCollection string `yaml:"verse_collection" mapstructure:"verse_collection"`
	ThemeCollection string `yaml:"theme_collection" mapstructure:"theme_collection"`
	Corpus          string `yaml:"corpus,omitempty" mapstructure:"corpus"` // Corpus file loaded at startup by the memory backend
	SessionArchive  string `yaml:"session_archive" mapstructure:"session_archive"`
}

// ConversationConfig bounds the action loop
type ConversationConfig struct {
	MaxLoops         int  `yaml:"max_loops" mapstructure:"max_loops"`
	TopN             int  `yaml:"top_n" mapstructure:"top_n"`
	ContextWindow    int  `yaml:"context_window" mapstructure:"context_window"`
	ShowIntermediate bool `yaml:"show_intermediate" mapstructure:"show_intermediate"`
}

// CacheConfig configures the embedding cache
type CacheConfig struct {
	Enabled   bool          `yaml:"enabled" mapstructure:"enabled"`
	Dir       string        `yaml:"dir" mapstructure:"dir"`
	MemoryTTL time.Duration `yaml:"memory_ttl" mapstructure:"memory_ttl"`
	DiskTTL   time.Duration `yaml:"disk_ttl" mapstructure:"disk_ttl"`
}

// IngestConfig controls concurrency and pacing of corpus ingestion
type IngestConfig struct {
	Workers           int     `yaml:"workers" mapstructure:"workers"`
	RequestsPerSecond float64 `yaml:"requests_per_second" mapstructure:"requests_per_second"`
	BurstSize         int     `yaml:"burst_size" mapstructure:"burst_size"`
}

// LogConfig configures the zap logger
type LogConfig struct {
	Level string `yaml:"level" mapstructure:"level"`
	File  string `yaml:"file,omitempty" mapstructure:"file"` // Rotated JSON log file (optional)
}

// HTTPConfig holds proxy settings for outbound provider calls
type HTTPConfig struct {
	HTTPProxy  string `yaml:"http_proxy,omitempty" mapstructure:"http_proxy"`
	HTTPSProxy string `yaml:"https_proxy,omitempty" mapstructure:"https_proxy"`
	NoProxy    string `yaml:"no_proxy,omitempty" mapstructure:"no_proxy"`
}

// DefaultConfig returns sensible defaults
func DefaultConfig() *Config {
	return &Config{
		LLM: LLMConfig{
			Provider:    "openai",
			Model:       "gpt-4o-mini",
			Timeout:     60,
			MaxTokens:   1000,
			Temperature: 0,
		},
		Embedding: EmbeddingConfig{
			Provider:   "openai",
			Model:      "text-embedding-3-small",
			Dimensions: 256,
			BatchSize:  64,
		},
		Store: StoreConfig{
			Backend:         "sqlite",
			Path:            "~/.qbot/qbot.db",
			VerseCollection: "quran",
			ThemeCollection: "quran_themes",
			SessionArchive:  "~/.qbot/sessions.db",
		},
		Conversation: ConversationConfig{
			MaxLoops:         10,
			TopN:             10,
			ContextWindow:    2,
			ShowIntermediate: false,
		},
		Cache: CacheConfig{
			Enabled:   true,
			Dir:       "~/.qbot/cache",
			MemoryTTL: time.Hour,
			DiskTTL:   30 * 24 * time.Hour,
		},
		Ingest: IngestConfig{
			Workers:           4,
			RequestsPerSecond: 5,
			BurstSize:         5,
		},
		Log: LogConfig{
			Level: "warn",
		},
	}
}
