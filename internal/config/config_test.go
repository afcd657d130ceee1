package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

var secretEnvVars = []string{
	"SENTIDASH_LLM_OPENAI_KEY", "SENTIDASH_MARKETDATA_TOKEN",
	"SENTIDASH_ANALYSIS_TOKEN", "SENTIDASH_AUTH_PUBLIC_KEY",
}

func unsetSecrets(t *testing.T) {
	t.Helper()
	for _, e := range secretEnvVars {
		if v, ok := os.LookupEnv(e); ok {
			os.Unsetenv(e)
			t.Cleanup(func() { os.Setenv(e, v) })
		}
	}
}

// ── Load / Defaults ──

func TestLoadReturnsDefaults(t *testing.T) {
	unsetSecrets(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.LLM.Primary != "openai" {
		t.Errorf("LLM.Primary: got %q, want %q", cfg.LLM.Primary, "openai")
	}
	if cfg.LLM.Model != "gpt-4o-mini" {
		t.Errorf("LLM.Model: got %q", cfg.LLM.Model)
	}
	if cfg.LLM.Timeout != 120*time.Second {
		t.Errorf("LLM.Timeout: got %v", cfg.LLM.Timeout)
	}

	if cfg.Cache.QuoteTTL != 2*time.Minute {
		t.Errorf("Cache.QuoteTTL: got %v, want 2m", cfg.Cache.QuoteTTL)
	}
	if cfg.Cache.NewsTTL != 10*time.Minute || cfg.Cache.SentimentTTL != 10*time.Minute {
		t.Errorf("news/sentiment TTL: got %v/%v, want 10m", cfg.Cache.NewsTTL, cfg.Cache.SentimentTTL)
	}

	if cfg.Queue.Limit != 30 || cfg.Queue.Window != time.Second {
		t.Errorf("Queue: got %d per %v, want 30 per 1s", cfg.Queue.Limit, cfg.Queue.Window)
	}
	if cfg.Retry.Retries != 3 || cfg.Retry.Delay != time.Second {
		t.Errorf("Retry: got %d/%v, want 3/1s", cfg.Retry.Retries, cfg.Retry.Delay)
	}

	if cfg.News.Source != "proxy" || cfg.News.MaxArticles != 20 {
		t.Errorf("News: got %q/%d", cfg.News.Source, cfg.News.MaxArticles)
	}
	if len(cfg.News.FeedURLs) == 0 || !strings.Contains(cfg.News.FeedURLs[0], "{symbol}") {
		t.Errorf("News.FeedURLs: got %v", cfg.News.FeedURLs)
	}
	if cfg.Watchlist.Mode != "optimistic" {
		t.Errorf("Watchlist.Mode: got %q", cfg.Watchlist.Mode)
	}

	if cfg.API.Addr() != "0.0.0.0:8080" {
		t.Errorf("API.Addr: got %q", cfg.API.Addr())
	}
	if cfg.Logging.Level != "info" || cfg.Logging.Format != "text" {
		t.Errorf("Logging: got %q/%q", cfg.Logging.Level, cfg.Logging.Format)
	}
}

// ── LoadFromFile ──

func TestLoadFromFile(t *testing.T) {
	unsetSecrets(t)

	cfgPath := filepath.Join(t.TempDir(), "test_config.yaml")
	content := []byte(`
marketdata:
  base_url: "https://proxy.example.com/functions/v1/market-data"
  token: "md-token-1234567890"
llm:
  primary: "ollama"
  ollama_url: "http://gpu-box:11434"
cache:
  quote_ttl: "30s"
  redis_url: "redis://localhost:6379/2"
queue:
  limit: 10
  window: "500ms"
watchlist:
  mode: "refetch"
auth:
  static_tokens:
    dev-token: "user-1"
api:
  port: 9090
logging:
  level: "debug"
  format: "json"
`)
	if err := os.WriteFile(cfgPath, content, 0644); err != nil {
		t.Fatalf("write temp config: %v", err)
	}

	cfg, err := LoadFromFile(cfgPath)
	if err != nil {
		t.Fatalf("LoadFromFile() error: %v", err)
	}
	if cfg.MarketData.BaseURL != "https://proxy.example.com/functions/v1/market-data" {
		t.Errorf("MarketData.BaseURL: got %q", cfg.MarketData.BaseURL)
	}
	if cfg.MarketData.Token != "md-token-1234567890" {
		t.Errorf("MarketData.Token: got %q", cfg.MarketData.Token)
	}
	if cfg.LLM.Primary != "ollama" || cfg.LLM.OllamaURL != "http://gpu-box:11434" {
		t.Errorf("LLM: got %q/%q", cfg.LLM.Primary, cfg.LLM.OllamaURL)
	}
	if cfg.Cache.QuoteTTL != 30*time.Second {
		t.Errorf("Cache.QuoteTTL: got %v", cfg.Cache.QuoteTTL)
	}
	if cfg.Cache.NewsTTL != 10*time.Minute {
		t.Errorf("Cache.NewsTTL should keep default, got %v", cfg.Cache.NewsTTL)
	}
	if cfg.Queue.Limit != 10 || cfg.Queue.Window != 500*time.Millisecond {
		t.Errorf("Queue: got %d/%v", cfg.Queue.Limit, cfg.Queue.Window)
	}
	if cfg.Watchlist.Mode != "refetch" {
		t.Errorf("Watchlist.Mode: got %q", cfg.Watchlist.Mode)
	}
	if cfg.Auth.StaticTokens["dev-token"] != "user-1" {
		t.Errorf("Auth.StaticTokens: got %v", cfg.Auth.StaticTokens)
	}
	if cfg.API.Port != 9090 {
		t.Errorf("API.Port: got %d, want 9090", cfg.API.Port)
	}
	if cfg.Logging.Format != "json" {
		t.Errorf("Logging.Format: got %q", cfg.Logging.Format)
	}
}

func TestLoadFromFileNotFound(t *testing.T) {
	_, err := LoadFromFile("/nonexistent/path/config.yaml")
	if err == nil {
		t.Error("LoadFromFile() with nonexistent path should return error")
	}
}

func TestLoadFromFileRejectsInvalid(t *testing.T) {
	cfgPath := filepath.Join(t.TempDir(), "bad.yaml")
	os.WriteFile(cfgPath, []byte("news:\n  source: \"twitter\"\n"), 0644)
	if _, err := LoadFromFile(cfgPath); err == nil || !strings.Contains(err.Error(), "news.source") {
		t.Errorf("expected news.source validation error, got %v", err)
	}
}

func TestEnvOverridesFileValue(t *testing.T) {
	unsetSecrets(t)
	t.Setenv("SENTIDASH_API_PORT", "7000")
	t.Setenv("SENTIDASH_QUEUE_LIMIT", "5")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.API.Port != 7000 {
		t.Errorf("API.Port: got %d, want 7000", cfg.API.Port)
	}
	if cfg.Queue.Limit != 5 {
		t.Errorf("Queue.Limit: got %d, want 5", cfg.Queue.Limit)
	}
}

// ── overrideFromEnv ──

func TestOverrideFromEnv(t *testing.T) {
	t.Setenv("SENTIDASH_LLM_OPENAI_KEY", "sk-test-openai-key-123456")
	t.Setenv("SENTIDASH_MARKETDATA_TOKEN", "md-secret")
	t.Setenv("SENTIDASH_ANALYSIS_TOKEN", "an-secret")
	t.Setenv("SENTIDASH_AUTH_PUBLIC_KEY", "anon-key")

	cfg := &Config{}
	overrideFromEnv(cfg)

	if cfg.LLM.OpenAIKey != "sk-test-openai-key-123456" {
		t.Errorf("OpenAIKey: got %q", cfg.LLM.OpenAIKey)
	}
	if cfg.MarketData.Token != "md-secret" || cfg.Analysis.Token != "an-secret" || cfg.Auth.PublicKey != "anon-key" {
		t.Errorf("tokens not overridden: %+v %+v %+v", cfg.MarketData, cfg.Analysis, cfg.Auth)
	}
}

func TestOverrideFromEnvNoEnvSet(t *testing.T) {
	unsetSecrets(t)
	cfg := &Config{LLM: LLMConfig{OpenAIKey: "from-config"}}
	overrideFromEnv(cfg)
	if cfg.LLM.OpenAIKey != "from-config" {
		t.Errorf("OpenAIKey should stay as 'from-config' when env is unset, got %q", cfg.LLM.OpenAIKey)
	}
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	os.WriteFile(path, []byte("SENTIDASH_DOTENV_PROBE=from-file\n"), 0644)
	t.Cleanup(func() { os.Unsetenv("SENTIDASH_DOTENV_PROBE") })

	LoadDotEnv(path, filepath.Join(dir, "missing.env"))
	if got := os.Getenv("SENTIDASH_DOTENV_PROBE"); got != "from-file" {
		t.Errorf("SENTIDASH_DOTENV_PROBE = %q, want from-file", got)
	}
}

// ── maskKey ──

func TestMaskKey(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"", "***"},
		{"12345678", "***"},
		{"123456789", "123...789"},
		{"sk-abcdef1234567890xyz", "sk-...xyz"},
	}
	for _, tc := range tests {
		if got := maskKey(tc.input); got != tc.want {
			t.Errorf("maskKey(%q): got %q, want %q", tc.input, got, tc.want)
		}
	}
}

// ── CheckAPIKeys / checkKey ──

func TestCheckAPIKeysAllEmpty(t *testing.T) {
	unsetSecrets(t)
	statuses := CheckAPIKeys(&Config{})
	if len(statuses) != 4 {
		t.Fatalf("CheckAPIKeys: got %d statuses, want 4", len(statuses))
	}
	for _, s := range statuses {
		if s.IsSet || s.Source != KeySourceNone {
			t.Errorf("Key %q: got set=%v source=%q", s.Name, s.IsSet, s.Source)
		}
	}
}

func TestCheckAPIKeysSources(t *testing.T) {
	unsetSecrets(t)
	t.Setenv("SENTIDASH_MARKETDATA_TOKEN", "md-env-token-value")

	cfg := &Config{
		LLM:        LLMConfig{OpenAIKey: "sk-test-very-long-key-value"},
		MarketData: MarketDataConfig{Token: "md-env-token-value"},
	}
	for _, s := range CheckAPIKeys(cfg) {
		switch s.Name {
		case "OpenAI API Key":
			if s.Source != KeySourceConfig || s.Masked != "sk-...lue" {
				t.Errorf("OpenAI key: got %q/%q", s.Source, s.Masked)
			}
		case "Market Data Token":
			if s.Source != KeySourceEnv {
				t.Errorf("Market data token source: got %q, want env", s.Source)
			}
		}
	}
}
