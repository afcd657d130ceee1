package analysis

import (
	"context"
	"log/slog"

	"github.com/seenimoa/sentidash/internal/analysis/sentiment"
	"github.com/seenimoa/sentidash/internal/infra"
	"github.com/seenimoa/sentidash/pkg/models"
)

// Neutral returns the neutral defaults for every article.
type Neutral struct {
	Logger *slog.Logger
}

// Analyze implements Analyzer.
func (n Neutral) Analyze(_ context.Context, symbol string, articles []models.NewsArticle) ([]models.AnalyzedArticle, error) {
	if len(articles) > 0 {
		infra.OrDefault(n.Logger).Debug("analysis unavailable, defaulting", "symbol", symbol, "articles", len(articles))
	}
	return Defaults(articles), nil
}

// Keyword classifies articles with the deterministic keyword scorer.
type Keyword struct{}

// Analyze implements Analyzer.
func (Keyword) Analyze(_ context.Context, symbol string, articles []models.NewsArticle) ([]models.AnalyzedArticle, error) {
	out := make([]models.AnalyzedArticle, len(articles))
	for i, a := range articles {
		out[i] = sentiment.ScoreArticle(a, symbol)
	}
	return out, nil
}

// Fallback runs Primary and, when it fails outright, Secondary.
// It never returns an error.
type Fallback struct {
	Primary   Analyzer
	Secondary Analyzer
	Logger    *slog.Logger
}

// Analyze implements Analyzer.
func (f *Fallback) Analyze(ctx context.Context, symbol string, articles []models.NewsArticle) ([]models.AnalyzedArticle, error) {
	out, err := f.Primary.Analyze(ctx, symbol, articles)
	if err == nil && len(out) == len(articles) {
		return out, nil
	}
	infra.OrDefault(f.Logger).Warn("news analysis failed, falling back", "symbol", symbol, "error", err)
	if f.Secondary != nil {
		if out, err := f.Secondary.Analyze(ctx, symbol, articles); err == nil && len(out) == len(articles) {
			return out, nil
		}
	}
	return Defaults(articles), nil
}
