package api

import (
	"net/http"

	"github.com/seenimoa/sentidash/internal/config"
)

// ConfigResponse is the JSON envelope returned by GET /api/v1/config.
type ConfigResponse struct {
	Config config.Config      `json:"config"`
	Keys   []config.KeyStatus `json:"keys"`
}

// handleGetConfig returns the running configuration with credentials
// masked.
func (s *Server) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, APIResponse{
		Success: true,
		Data: ConfigResponse{
			Config: redacted(s.cfg),
			Keys:   config.CheckAPIKeys(s.cfg),
		},
	})
}

// handleGetConfigKeys returns the status of all sensitive API keys.
func (s *Server) handleGetConfigKeys(w http.ResponseWriter, r *http.Request) {
	keys := config.CheckAPIKeys(s.cfg)
	writeJSON(w, http.StatusOK, APIResponse{
		Success: true,
		Data:    keys,
	})
}

// redacted copies cfg with every secret masked.
func redacted(cfg *config.Config) config.Config {
	out := *cfg
	out.LLM.OpenAIKey = config.MaskKey(cfg.LLM.OpenAIKey)
	out.MarketData.Token = config.MaskKey(cfg.MarketData.Token)
	out.Analysis.Token = config.MaskKey(cfg.Analysis.Token)
	out.Auth.PublicKey = config.MaskKey(cfg.Auth.PublicKey)
	out.Auth.StaticTokens = nil
	out.API.CORSOrigins = append([]string(nil), cfg.API.CORSOrigins...)
	out.News.FeedURLs = append([]string(nil), cfg.News.FeedURLs...)
	return out
}
