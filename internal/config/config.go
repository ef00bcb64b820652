package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all configuration for shopbot
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Log       LogConfig       `mapstructure:"log"`
	Tracing   TracingConfig   `mapstructure:"tracing"`
	Session   SessionConfig   `mapstructure:"session"`
	Chat      ChatConfig      `mapstructure:"chat"`
	Retrieval RetrievalConfig `mapstructure:"retrieval"`
	Ranking   RankingConfig   `mapstructure:"ranking"`
	LLM       LLMConfig       `mapstructure:"llm"`
	Index     IndexConfig     `mapstructure:"index"`
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Host             string   `mapstructure:"host"`
	Port             int      `mapstructure:"port"`
	AllowOrigins     []string `mapstructure:"allow_origins"`
	MaxRequestLength int      `mapstructure:"max_request_length"`
}

// LogConfig holds logger configuration
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // json or console
	File   string `mapstructure:"file"`
}

// TracingConfig holds OpenTelemetry configuration
type TracingConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	Endpoint    string `mapstructure:"endpoint"`
	ServiceName string `mapstructure:"service_name"`
}

// SessionConfig holds conversation state configuration
type SessionConfig struct {
	HistorySize   int           `mapstructure:"history_size"`
	MaxAge        time.Duration `mapstructure:"max_age"`
	SweepInterval time.Duration `mapstructure:"sweep_interval"`
}

// ChatConfig holds turn orchestration configuration
type ChatConfig struct {
	MaxMessageLength   int     `mapstructure:"max_message_length"`
	MinResults         int     `mapstructure:"min_results"`
	FallbackQuery      string  `mapstructure:"fallback_query"`
	FallbackTopK       int     `mapstructure:"fallback_top_k"`
	FallbackCap        int     `mapstructure:"fallback_cap"`
	Temperature        float64 `mapstructure:"temperature"`
	MaxTokens          int     `mapstructure:"max_tokens"`
	IntentTemperature  float64 `mapstructure:"intent_temperature"`
	IntentMaxTokens    int     `mapstructure:"intent_max_tokens"`
	IntentHistoryTurns int     `mapstructure:"intent_history_turns"`
}

// RetrievalConfig holds candidate retrieval configuration
type RetrievalConfig struct {
	TopK              int           `mapstructure:"top_k"`
	MultiTopK         int           `mapstructure:"multi_top_k"`
	SimilarTopK       int           `mapstructure:"similar_top_k"`
	ScoreThreshold    float64       `mapstructure:"score_threshold"`
	ArticleFields     []string      `mapstructure:"article_fields"`
	EmbeddingCacheTTL time.Duration `mapstructure:"embedding_cache_ttl"`
}

// RankingConfig holds brand tiers and composition limits
type RankingConfig struct {
	HouseBrands      []string `mapstructure:"house_brands"`
	PartnerBrands    []string `mapstructure:"partner_brands"`
	ResultLimit      int      `mapstructure:"result_limit"`
	PriceWindowRatio float64  `mapstructure:"price_window_ratio"`
}

// LLMConfig holds OpenAI-compatible provider configuration
type LLMConfig struct {
	BaseURL        string        `mapstructure:"base_url"`
	APIKey         string        `mapstructure:"api_key"`
	EmbeddingModel string        `mapstructure:"embedding_model"`
	LLMModel       string        `mapstructure:"llm_model"`
	Timeout        time.Duration `mapstructure:"timeout"`
}

// IndexConfig holds vector index configuration
type IndexConfig struct {
	Provider   string `mapstructure:"provider"` // qdrant or sqlite
	Collection string `mapstructure:"collection"`
	Host       string `mapstructure:"host"`
	Port       int    `mapstructure:"port"`
	APIKey     string `mapstructure:"api_key"`
	UseTLS     bool   `mapstructure:"use_tls"`
	DBPath     string `mapstructure:"db_path"`
}

// Index providers
const (
	IndexProviderQdrant = "qdrant"
	IndexProviderSQLite = "sqlite"
)

// Load loads configuration from file and environment
func Load(configPath string) (*Config, error) {
	// .env is optional; real environment variables still win
	_ = godotenv.Load()

	v := viper.New()

	// Set defaults
	setDefaults(v)

	// Read config file if specified
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	// Environment variables
	v.SetEnvPrefix("SHOPBOT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read config
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		// Config file not found, use defaults
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.allow_origins", []string{"*"})
	v.SetDefault("server.max_request_length", 4000)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("log.file", "")

	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.endpoint", "localhost:4318")
	v.SetDefault("tracing.service_name", "shopbot")

	v.SetDefault("session.history_size", 6)
	v.SetDefault("session.max_age", 24*time.Hour)
	v.SetDefault("session.sweep_interval", 6*time.Hour)

	v.SetDefault("chat.max_message_length", 1000)
	v.SetDefault("chat.min_results", 1)
	v.SetDefault("chat.fallback_query", "популярні вітаміни та добавки")
	v.SetDefault("chat.fallback_top_k", 20)
	v.SetDefault("chat.fallback_cap", 10)
	v.SetDefault("chat.temperature", 0.7)
	v.SetDefault("chat.max_tokens", 1200)
	v.SetDefault("chat.intent_temperature", 0.0)
	v.SetDefault("chat.intent_max_tokens", 300)
	v.SetDefault("chat.intent_history_turns", 6)

	v.SetDefault("retrieval.top_k", 10)
	v.SetDefault("retrieval.multi_top_k", 20)
	v.SetDefault("retrieval.similar_top_k", 20)
	v.SetDefault("retrieval.score_threshold", 0.3)
	v.SetDefault("retrieval.article_fields", []string{"article", "sku", "gtin"})
	v.SetDefault("retrieval.embedding_cache_ttl", 30*time.Minute)

	v.SetDefault("ranking.house_brands", []string{"biotus"})
	v.SetDefault("ranking.partner_brands", []string{
		"now foods", "solgar", "california gold nutrition", "jarrow",
		"doctor's best", "nature's way", "life extension", "thorne", "swanson",
	})
	v.SetDefault("ranking.result_limit", 5)
	v.SetDefault("ranking.price_window_ratio", 0.3)

	v.SetDefault("llm.base_url", "https://api.openai.com/v1")
	v.SetDefault("llm.api_key", "")
	v.SetDefault("llm.embedding_model", "text-embedding-3-small")
	v.SetDefault("llm.llm_model", "gpt-4o-mini")
	v.SetDefault("llm.timeout", 60*time.Second)

	v.SetDefault("index.provider", IndexProviderSQLite)
	v.SetDefault("index.collection", "products")
	v.SetDefault("index.host", "localhost")
	v.SetDefault("index.port", 6334)
	v.SetDefault("index.api_key", "")
	v.SetDefault("index.use_tls", false)
	v.SetDefault("index.db_path", "./data/catalog.db")
}

// Validate rejects values the pipeline cannot work with
func (c *Config) Validate() error {
	if c.Session.HistorySize <= 0 {
		return fmt.Errorf("session.history_size must be positive, got %d", c.Session.HistorySize)
	}
	if c.Chat.MaxMessageLength <= 0 {
		return fmt.Errorf("chat.max_message_length must be positive, got %d", c.Chat.MaxMessageLength)
	}
	if c.Retrieval.TopK <= 0 || c.Retrieval.MultiTopK <= 0 {
		return fmt.Errorf("retrieval top_k values must be positive")
	}
	if c.Ranking.ResultLimit <= 0 {
		return fmt.Errorf("ranking.result_limit must be positive, got %d", c.Ranking.ResultLimit)
	}
	switch c.Index.Provider {
	case IndexProviderQdrant, IndexProviderSQLite:
	default:
		return fmt.Errorf("unknown index provider %q", c.Index.Provider)
	}
	return nil
}

// Address returns the server address
func (c *Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}
