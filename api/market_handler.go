package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/seenimoa/sentidash/internal/analysis"
	"github.com/seenimoa/sentidash/internal/dashboard"
	"github.com/seenimoa/sentidash/internal/marketdata"
	"github.com/seenimoa/sentidash/pkg/models"
	"github.com/seenimoa/sentidash/pkg/utils"
)

// AnalyzeNewsRequest is the body for POST /api/v1/analyze-news.
type AnalyzeNewsRequest struct {
	Symbol   string               `json:"symbol"`
	Articles []models.NewsArticle `json:"articles"`
}

// AnalyzeNewsResponse is the reply for POST /api/v1/analyze-news. It is the
// same {"articles":[...]} shape analysis.Proxy reads, so one sentidash
// instance can serve as another's analysis backend.
type AnalyzeNewsResponse struct {
	Articles []models.AnalyzedArticle `json:"articles"`
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	q := strings.TrimSpace(r.URL.Query().Get("q"))
	if q == "" {
		writeJSON(w, http.StatusOK, APIResponse{Success: true, Data: []models.SymbolMatch{}})
		return
	}
	matches, err := s.svc.Lookup(r.Context(), q)
	if err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	if matches == nil {
		matches = []models.SymbolMatch{}
	}
	writeJSON(w, http.StatusOK, APIResponse{Success: true, Data: matches})
}

func (s *Server) handleQuote(w http.ResponseWriter, r *http.Request) {
	symbol := utils.NormalizeTicker(chi.URLParam(r, "symbol"))
	if !utils.ValidTicker(symbol) {
		writeError(w, http.StatusBadRequest, "invalid symbol")
		return
	}
	quote, err := s.svc.Quote(r.Context(), symbol)
	switch {
	case errors.Is(err, marketdata.ErrTickerNotFound):
		writeError(w, http.StatusNotFound, err.Error())
		return
	case err != nil:
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, APIResponse{Success: true, Data: quote})
}

// handleDashboard runs one full search on a fresh screen and returns the
// resulting state.
func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	symbol := utils.NormalizeTicker(chi.URLParam(r, "symbol"))
	if !utils.ValidTicker(symbol) {
		writeError(w, http.StatusBadRequest, "invalid symbol")
		return
	}

	st := s.svc.NewScreen().Search(r.Context(), dashboard.SearchRequest{
		Symbol: symbol,
		Range:  models.ParseTimeRange(r.URL.Query().Get("range")),
	})
	if st.Status != dashboard.StatusSuccess {
		writeJSON(w, http.StatusBadGateway, APIResponse{
			Success: false,
			Data:    st,
			Error:   "failed to load " + symbol,
		})
		return
	}

	s.wsHub.Broadcast(WSMessage{
		Type: "search_complete",
		Data: map[string]interface{}{
			"symbol":    st.Symbol,
			"range":     st.Range,
			"sentiment": st.Sentiment,
		},
	})
	writeJSON(w, http.StatusOK, APIResponse{Success: true, Data: st})
}

// handleAnalyzeNews classifies the posted articles. The reply always holds
// one analysed article per input, in order, with defaults for any the
// analyzer could not classify.
func (s *Server) handleAnalyzeNews(w http.ResponseWriter, r *http.Request) {
	var req AnalyzeNewsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(req.Articles) == 0 {
		writeJSON(w, http.StatusOK, AnalyzeNewsResponse{Articles: []models.AnalyzedArticle{}})
		return
	}

	symbol := utils.NormalizeTicker(req.Symbol)
	out, err := s.svc.Analyzer().Analyze(r.Context(), symbol, req.Articles)
	if err != nil || len(out) != len(req.Articles) {
		s.logger.Warn("news analysis degraded to defaults", "symbol", symbol, "articles", len(req.Articles), "error", err)
		out = analysis.Defaults(req.Articles)
	}
	writeJSON(w, http.StatusOK, AnalyzeNewsResponse{Articles: out})
}
