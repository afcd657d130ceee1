// Package config handles configuration loading for sentidash.
// It supports YAML config files with environment variable overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix is the prefix for environment overrides, e.g. SENTIDASH_API_PORT.
const EnvPrefix = "SENTIDASH"

// Config represents the complete application configuration.
type Config struct {
	MarketData MarketDataConfig `mapstructure:"marketdata" yaml:"marketdata"`
	Analysis   AnalysisConfig   `mapstructure:"analysis"   yaml:"analysis"`
	LLM        LLMConfig        `mapstructure:"llm"        yaml:"llm"`
	News       NewsConfig       `mapstructure:"news"       yaml:"news"`
	Cache      CacheConfig      `mapstructure:"cache"      yaml:"cache"`
	Queue      QueueConfig      `mapstructure:"queue"      yaml:"queue"`
	Retry      RetryConfig      `mapstructure:"retry"      yaml:"retry"`
	Watchlist  WatchlistConfig  `mapstructure:"watchlist"  yaml:"watchlist"`
	Auth       AuthConfig       `mapstructure:"auth"       yaml:"auth"`
	API        APIConfig        `mapstructure:"api"        yaml:"api"`
	Logging    LoggingConfig    `mapstructure:"logging"    yaml:"logging"`
}

// MarketDataConfig points at the market-data proxy.
type MarketDataConfig struct {
	BaseURL string        `mapstructure:"base_url" yaml:"base_url"`
	Token   string        `mapstructure:"token"    yaml:"token"`
	Timeout time.Duration `mapstructure:"timeout"  yaml:"timeout"`
}

// AnalysisConfig selects how news is classified. An empty URL analyses
// in-process through the LLM router.
type AnalysisConfig struct {
	URL             string        `mapstructure:"url"              yaml:"url"`
	Token           string        `mapstructure:"token"            yaml:"token"`
	Timeout         time.Duration `mapstructure:"timeout"          yaml:"timeout"`
	BatchSize       int           `mapstructure:"batch_size"       yaml:"batch_size"`
	OfflineFallback bool          `mapstructure:"offline_fallback" yaml:"offline_fallback"`
}

// LLMConfig holds LLM provider configuration.
type LLMConfig struct {
	Primary       string        `mapstructure:"primary"         yaml:"primary"` // "openai" or "ollama"
	OpenAIKey     string        `mapstructure:"openai_key"      yaml:"openai_key"`
	OpenAIBaseURL string        `mapstructure:"openai_base_url" yaml:"openai_base_url"`
	OllamaURL     string        `mapstructure:"ollama_url"      yaml:"ollama_url"`
	Model         string        `mapstructure:"model"           yaml:"model"`
	OllamaModel   string        `mapstructure:"ollama_model"    yaml:"ollama_model"`
	Temperature   float64       `mapstructure:"temperature"     yaml:"temperature"`
	MaxTokens     int           `mapstructure:"max_tokens"      yaml:"max_tokens"`
	Timeout       time.Duration `mapstructure:"timeout"         yaml:"timeout"`
}

// NewsConfig selects the news source.
type NewsConfig struct {
	Source      string   `mapstructure:"source"       yaml:"source"`    // "proxy" or "feed"
	FeedURLs    []string `mapstructure:"feed_urls"    yaml:"feed_urls"` // {symbol} is substituted
	MaxArticles int      `mapstructure:"max_articles" yaml:"max_articles"`
}

// CacheConfig holds the tier lifetimes.
type CacheConfig struct {
	QuoteTTL     time.Duration `mapstructure:"quote_ttl"     yaml:"quote_ttl"`
	NewsTTL      time.Duration `mapstructure:"news_ttl"      yaml:"news_ttl"`
	SentimentTTL time.Duration `mapstructure:"sentiment_ttl" yaml:"sentiment_ttl"`
	LookupTTL    time.Duration `mapstructure:"lookup_ttl"    yaml:"lookup_ttl"`
	RedisURL     string        `mapstructure:"redis_url"     yaml:"redis_url"`
	RedisPrefix  string        `mapstructure:"redis_prefix"  yaml:"redis_prefix"`
}

// QueueConfig holds the outbound request-rate limit.
type QueueConfig struct {
	Limit  int           `mapstructure:"limit"  yaml:"limit"`
	Window time.Duration `mapstructure:"window" yaml:"window"`
}

// RetryConfig holds backoff settings for upstream calls.
type RetryConfig struct {
	Retries int           `mapstructure:"retries" yaml:"retries"`
	Delay   time.Duration `mapstructure:"delay"   yaml:"delay"`
}

// WatchlistConfig holds the watchlist database settings.
type WatchlistConfig struct {
	DBPath string `mapstructure:"db_path" yaml:"db_path"`
	Mode   string `mapstructure:"mode"    yaml:"mode"` // "optimistic" or "refetch"
}

// AuthConfig configures bearer-token verification.
type AuthConfig struct {
	URL          string            `mapstructure:"url"           yaml:"url"`
	PublicKey    string            `mapstructure:"public_key"    yaml:"public_key"`
	StaticTokens map[string]string `mapstructure:"static_tokens" yaml:"static_tokens"` // token -> user id
}

// APIConfig holds HTTP API server settings.
type APIConfig struct {
	Host           string        `mapstructure:"host"            yaml:"host"`
	Port           int           `mapstructure:"port"            yaml:"port"`
	CORSOrigins    []string      `mapstructure:"cors_origins"    yaml:"cors_origins"`
	RequestTimeout time.Duration `mapstructure:"request_timeout" yaml:"request_timeout"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"  yaml:"level"`  // "debug", "info", "warn", "error"
	Format string `mapstructure:"format" yaml:"format"` // "text" or "json"
}

// Addr returns host:port for the API listener.
func (c APIConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// LoadDotEnv loads .env files into the process environment. Missing files
// are ignored and existing variables are never overwritten.
func LoadDotEnv(files ...string) {
	if len(files) == 0 {
		files = []string{".env", ".env.local"}
	}
	for _, f := range files {
		_ = godotenv.Load(f)
	}
}

// Load reads the configuration from file and environment variables.
// Config file search order:
//  1. ./config/config.yaml (project root)
//  2. ~/.sentidash/config.yaml (home directory)
//  3. /etc/sentidash/config.yaml (system)
//
// Environment variables override config file values.
// Format: SENTIDASH_<SECTION>_<KEY>, e.g., SENTIDASH_LLM_OPENAI_KEY
func Load() (*Config, error) {
	v := newViper()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./config")
	v.AddConfigPath(filepath.Join(homeDir(), ".sentidash"))
	v.AddConfigPath("/etc/sentidash")

	// Read config file (not required to exist)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}
	return decode(v)
}

// LoadFromFile reads configuration from a specific file path.
func LoadFromFile(path string) (*Config, error) {
	v := newViper()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("error reading config file %s: %w", path, err)
	}
	return decode(v)
}

func newViper() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

func decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	overrideFromEnv(&cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects settings the services cannot start with.
func (c *Config) Validate() error {
	switch c.News.Source {
	case "proxy", "feed":
	default:
		return fmt.Errorf("config: news.source must be proxy or feed, got %q", c.News.Source)
	}
	switch c.Watchlist.Mode {
	case "optimistic", "refetch":
	default:
		return fmt.Errorf("config: watchlist.mode must be optimistic or refetch, got %q", c.Watchlist.Mode)
	}
	if c.Queue.Limit <= 0 {
		return fmt.Errorf("config: queue.limit must be positive, got %d", c.Queue.Limit)
	}
	if c.Retry.Retries < 0 {
		return fmt.Errorf("config: retry.retries must not be negative, got %d", c.Retry.Retries)
	}
	return nil
}

// setDefaults sets sensible defaults for all config values.
func setDefaults(v *viper.Viper) {
	// Market data proxy
	v.SetDefault("marketdata.base_url", "http://localhost:8787/market-data")
	v.SetDefault("marketdata.timeout", "15s")

	// Analysis
	v.SetDefault("analysis.url", "")
	v.SetDefault("analysis.timeout", "60s")
	v.SetDefault("analysis.batch_size", 20)
	v.SetDefault("analysis.offline_fallback", false)

	// LLM defaults
	v.SetDefault("llm.primary", "openai")
	v.SetDefault("llm.openai_base_url", "https://api.openai.com/v1")
	v.SetDefault("llm.ollama_url", "")
	v.SetDefault("llm.model", "gpt-4o-mini")
	v.SetDefault("llm.ollama_model", "qwen2.5:7b")
	v.SetDefault("llm.temperature", 0.1)
	v.SetDefault("llm.max_tokens", 4096)
	v.SetDefault("llm.timeout", "120s")

	// News
	v.SetDefault("news.source", "proxy")
	v.SetDefault("news.feed_urls", []string{
		"https://feeds.finance.yahoo.com/rss/2.0/headline?s={symbol}&region=US&lang=en-US",
	})
	v.SetDefault("news.max_articles", 20)

	// Cache tiers
	v.SetDefault("cache.quote_ttl", "2m")
	v.SetDefault("cache.news_ttl", "10m")
	v.SetDefault("cache.sentiment_ttl", "10m")
	v.SetDefault("cache.lookup_ttl", "2m")
	v.SetDefault("cache.redis_url", "")
	v.SetDefault("cache.redis_prefix", "sentidash:")

	// Outbound request queue and retries
	v.SetDefault("queue.limit", 30)
	v.SetDefault("queue.window", "1s")
	v.SetDefault("retry.retries", 3)
	v.SetDefault("retry.delay", "1s")

	// Watchlist
	v.SetDefault("watchlist.db_path", filepath.Join(homeDir(), ".sentidash", "watchlist.db"))
	v.SetDefault("watchlist.mode", "optimistic")

	// Auth
	v.SetDefault("auth.url", "")

	// API defaults
	v.SetDefault("api.host", "0.0.0.0")
	v.SetDefault("api.port", 8080)
	v.SetDefault("api.cors_origins", []string{"http://localhost:3000"})
	v.SetDefault("api.request_timeout", "60s")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
}

// overrideFromEnv explicitly reads sensitive keys from environment variables.
func overrideFromEnv(cfg *Config) {
	if key := os.Getenv("SENTIDASH_LLM_OPENAI_KEY"); key != "" {
		cfg.LLM.OpenAIKey = key
	}
	if key := os.Getenv("SENTIDASH_MARKETDATA_TOKEN"); key != "" {
		cfg.MarketData.Token = key
	}
	if key := os.Getenv("SENTIDASH_ANALYSIS_TOKEN"); key != "" {
		cfg.Analysis.Token = key
	}
	if key := os.Getenv("SENTIDASH_AUTH_PUBLIC_KEY"); key != "" {
		cfg.Auth.PublicKey = key
	}
}

// homeDir returns the user's home directory.
func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}
