package config

import "os"

// APIKeySource represents where an API key comes from.
type APIKeySource string

const (
	KeySourceEnv    APIKeySource = "env"
	KeySourceConfig APIKeySource = "config"
	KeySourceNone   APIKeySource = "none"
)

// KeyStatus represents the status of an API key.
type KeyStatus struct {
	Name   string       `json:"name"`
	Source APIKeySource `json:"source"`
	IsSet  bool         `json:"is_set"`
	Masked string       `json:"masked,omitempty"` // e.g., "sk-...abc"
}

// CheckAPIKeys returns the status of every credential the services use.
func CheckAPIKeys(cfg *Config) []KeyStatus {
	return []KeyStatus{
		checkKey("OpenAI API Key", cfg.LLM.OpenAIKey, "SENTIDASH_LLM_OPENAI_KEY"),
		checkKey("Market Data Token", cfg.MarketData.Token, "SENTIDASH_MARKETDATA_TOKEN"),
		checkKey("Analysis Token", cfg.Analysis.Token, "SENTIDASH_ANALYSIS_TOKEN"),
		checkKey("Auth Public Key", cfg.Auth.PublicKey, "SENTIDASH_AUTH_PUBLIC_KEY"),
	}
}

// checkKey checks if a key is set and where it came from.
func checkKey(name, value, envVar string) KeyStatus {
	status := KeyStatus{
		Name:  name,
		IsSet: value != "",
	}
	if value == "" {
		status.Source = KeySourceNone
		return status
	}
	if os.Getenv(envVar) != "" {
		status.Source = KeySourceEnv
	} else {
		status.Source = KeySourceConfig
	}
	status.Masked = maskKey(value)
	return status
}

// maskKey masks an API key for display, showing only first 3 and last 3 chars.
func maskKey(key string) string {
	if len(key) <= 8 {
		return "***"
	}
	return key[:3] + "..." + key[len(key)-3:]
}

// MaskKey masks key for display. An empty key stays empty.
func MaskKey(key string) string {
	if key == "" {
		return ""
	}
	return maskKey(key)
}
