// Package analysis classifies news articles by their likely effect on the
// stock price. Every Analyzer keeps a 1:1 correspondence with its input:
// an article that cannot be analysed is returned with the neutral defaults.
package analysis

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"math"
	"strconv"
	"strings"

	"github.com/seenimoa/sentidash/internal/config"
	"github.com/seenimoa/sentidash/internal/infra"
	"github.com/seenimoa/sentidash/internal/llm"
	"github.com/seenimoa/sentidash/pkg/models"
)

// ErrMalformed is returned when an upstream response cannot be decoded.
var ErrMalformed = errors.New("analysis: malformed response")

// Analyzer classifies articles about symbol.
type Analyzer interface {
	Analyze(ctx context.Context, symbol string, articles []models.NewsArticle) ([]models.AnalyzedArticle, error)
}

// Verdict is one article's classification as returned by an upstream.
// Fields are loosely typed so a bad field defaults without losing the rest.
type Verdict struct {
	Index         *int   `json:"index,omitempty"`
	ID            string `json:"id,omitempty"`
	Category      string `json:"category"`
	Score         any    `json:"score"`
	Relevance     string `json:"relevance"`
	Justification string `json:"justification"`
	Entities      any    `json:"entities"`
	Confidence    any    `json:"confidence"`
}

// Defaults returns every article with the neutral verdict.
func Defaults(articles []models.NewsArticle) []models.AnalyzedArticle {
	out := make([]models.AnalyzedArticle, len(articles))
	for i, a := range articles {
		out[i] = models.DefaultAnalysis(a)
	}
	return out
}

// Apply merges verdicts into articles. A verdict is matched by index when
// it carries one, else by ID, else by position. Unmatched articles get
// the defaults and extra verdicts are dropped.
func Apply(articles []models.NewsArticle, verdicts []*Verdict) []models.AnalyzedArticle {
	matched := make([]*Verdict, len(articles))
	byID := make(map[string]int, len(articles))
	for i, a := range articles {
		if a.ID != "" {
			byID[a.ID] = i
		}
	}
	for pos, v := range verdicts {
		if v == nil {
			continue
		}
		i := -1
		switch {
		case v.Index != nil:
			i = *v.Index
		case v.ID != "":
			if j, ok := byID[v.ID]; ok {
				i = j
			}
		default:
			i = pos
		}
		if i >= 0 && i < len(articles) && matched[i] == nil {
			matched[i] = v
		}
	}

	out := make([]models.AnalyzedArticle, len(articles))
	for i, a := range articles {
		out[i] = Normalize(a, matched[i])
	}
	return out
}

// Normalize builds an analysed article from a raw verdict, defaulting
// each invalid field on its own. A nil verdict yields the defaults.
func Normalize(a models.NewsArticle, v *Verdict) models.AnalyzedArticle {
	out := models.DefaultAnalysis(a)
	if v == nil {
		return out
	}
	if c := parseCategory(v.Category); c.Valid() {
		out.Category = c
	}
	if s, ok := parseScore(v.Score); ok {
		out.Score = s
	}
	if r := models.Relevance(strings.ToLower(strings.TrimSpace(v.Relevance))); r.Valid() {
		out.Relevance = r
	}
	out.Justification = strings.TrimSpace(v.Justification)
	out.Entities = parseEntities(v.Entities)
	out.Confidence = parseConfidence(v.Confidence)
	return out
}

// DecodeVerdicts accepts either a JSON array or an object with an
// "articles" array. Text around the JSON, such as a code fence, is ignored.
// Elements that do not decode come back nil.
func DecodeVerdicts(data []byte) ([]*Verdict, error) {
	raw, err := extractArray(data)
	if err != nil {
		return nil, err
	}
	out := make([]*Verdict, len(raw))
	for i, r := range raw {
		var v Verdict
		if json.Unmarshal(r, &v) == nil {
			out[i] = &v
		}
	}
	return out, nil
}

func extractArray(data []byte) ([]json.RawMessage, error) {
	s := strings.TrimSpace(string(data))
	start := strings.IndexAny(s, "[{")
	if start < 0 {
		return nil, ErrMalformed
	}
	closer := "]"
	if s[start] == '{' {
		closer = "}"
	}
	end := strings.LastIndex(s, closer)
	if end <= start {
		return nil, ErrMalformed
	}
	body := []byte(s[start : end+1])

	var arr []json.RawMessage
	if s[start] == '[' {
		if err := json.Unmarshal(body, &arr); err != nil {
			return nil, errors.Join(ErrMalformed, err)
		}
		return arr, nil
	}
	var wrapped struct {
		Articles []json.RawMessage `json:"articles"`
		Results  []json.RawMessage `json:"results"`
	}
	if err := json.Unmarshal(body, &wrapped); err != nil {
		return nil, errors.Join(ErrMalformed, err)
	}
	if wrapped.Articles != nil {
		return wrapped.Articles, nil
	}
	if wrapped.Results != nil {
		return wrapped.Results, nil
	}
	return nil, ErrMalformed
}

func parseCategory(s string) models.Category {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.NewReplacer("_", "-", " ", "-").Replace(s)
	switch s {
	case "positive":
		return models.CategoryBullish
	case "negative":
		return models.CategoryBearish
	case "neutral", "neutralimpact":
		return models.CategoryNeutralImpact
	}
	return models.Category(s)
}

// parseScore accepts a number or a numeric string and clamps to [-1, 1].
func parseScore(v any) (float64, bool) {
	var f float64
	switch s := v.(type) {
	case float64:
		f = s
	case string:
		p, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			return 0, false
		}
		f = p
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return math.Max(-1, math.Min(1, f)), true
}

func parseEntities(v any) []string {
	var out []string
	add := func(s string) {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	switch e := v.(type) {
	case []any:
		for _, x := range e {
			if s, ok := x.(string); ok {
				add(s)
			}
		}
	case string:
		for _, s := range strings.Split(e, ",") {
			add(s)
		}
	}
	return out
}

// parseConfidence maps a label or a 0..1 number to high, medium or low.
func parseConfidence(v any) string {
	switch c := v.(type) {
	case string:
		switch l := strings.ToLower(strings.TrimSpace(c)); l {
		case "high", "medium", "low":
			return l
		}
		if f, err := strconv.ParseFloat(c, 64); err == nil {
			return parseConfidence(f)
		}
	case float64:
		if c > 1 {
			c /= 100
		}
		switch {
		case c >= 0.7:
			return "high"
		case c >= 0.4:
			return "medium"
		case c >= 0:
			return "low"
		}
	}
	return ""
}

// NewFromConfig picks the analyzer for cfg: the remote proxy when
// analysis.url is set, else the LLM router, else the keyword scorer when
// offline_fallback is on, else neutral defaults. router may be nil.
func NewFromConfig(cfg *config.Config, router *llm.Router, logger *slog.Logger) Analyzer {
	logger = infra.OrDefault(logger)
	var fallback Analyzer = Neutral{Logger: logger}
	if cfg.Analysis.OfflineFallback {
		fallback = Keyword{}
	}
	switch {
	case cfg.Analysis.URL != "":
		return &Fallback{
			Primary:   NewProxy(cfg.Analysis.URL, cfg.Analysis.Token, WithTimeout(cfg.Analysis.Timeout), WithRetry(cfg.Retry.Retries, cfg.Retry.Delay)),
			Secondary: fallback,
			Logger:    logger,
		}
	case router != nil:
		return &Fallback{
			Primary: NewLLM(router,
				WithBatchSize(cfg.Analysis.BatchSize),
				WithChatOptions(llm.ChatOptions{Temperature: cfg.LLM.Temperature, MaxTokens: cfg.LLM.MaxTokens}),
				WithLLMLogger(logger)),
			Secondary: fallback,
			Logger:    logger,
		}
	default:
		logger.Warn("no analysis backend configured, using fallback", "offline_fallback", cfg.Analysis.OfflineFallback)
		return fallback
	}
}
