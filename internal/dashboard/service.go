// Package dashboard coordinates the per-search data fetch: quote, news,
// sentiment and candles, each resolved cache-first.
package dashboard

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/seenimoa/sentidash/internal/analysis"
	"github.com/seenimoa/sentidash/internal/analysis/sentiment"
	"github.com/seenimoa/sentidash/internal/cache"
	"github.com/seenimoa/sentidash/internal/infra"
	"github.com/seenimoa/sentidash/internal/news"
	"github.com/seenimoa/sentidash/pkg/models"
	"github.com/seenimoa/sentidash/pkg/utils"
)

// ErrInvalidSymbol is returned for a symbol that cannot be a ticker.
var ErrInvalidSymbol = errors.New("dashboard: invalid symbol")

// MarketData is the market-data proxy as the service uses it.
type MarketData interface {
	Search(ctx context.Context, q string) ([]models.SymbolMatch, error)
	Quote(ctx context.Context, symbol string) (models.StockQuote, error)
	Candles(ctx context.Context, symbol string, rng models.TimeRange, now time.Time) ([]models.Candle, error)
}

// Deps are the collaborators of a Service.
type Deps struct {
	Tiers       *cache.Tiers
	Market      MarketData
	News        news.Source
	Analyzer    analysis.Analyzer
	MaxArticles int
	Logger      *slog.Logger
	Now         func() time.Time
	Location    *time.Location
}

// Service owns the caches and upstream clients shared by all screens.
type Service struct {
	tiers       *cache.Tiers
	market      MarketData
	news        news.Source
	analyzer    analysis.Analyzer
	maxArticles int
	logger      *slog.Logger
	now         func() time.Time
	loc         *time.Location
}

// NewService creates a service. A nil Analyzer yields neutral defaults and
// nil Tiers gets fresh in-memory caches.
func NewService(d Deps) *Service {
	s := &Service{
		tiers:       d.Tiers,
		market:      d.Market,
		news:        d.News,
		analyzer:    d.Analyzer,
		maxArticles: d.MaxArticles,
		logger:      infra.OrDefault(d.Logger),
		now:         d.Now,
		loc:         d.Location,
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.loc == nil {
		s.loc = time.Local
	}
	if s.maxArticles <= 0 {
		s.maxArticles = news.DefaultMaxArticles
	}
	if s.analyzer == nil {
		s.analyzer = analysis.Neutral{Logger: s.logger}
	}
	if s.tiers == nil {
		s.tiers = cache.NewTiers(context.Background(), cache.Options{Now: s.now, Logger: s.logger})
	}
	return s
}

// Tiers returns the cache tiers.
func (s *Service) Tiers() *cache.Tiers { return s.tiers }

// Analyzer returns the news analyzer.
func (s *Service) Analyzer() analysis.Analyzer { return s.analyzer }

// Quote returns the quote for symbol from cache or the network.
func (s *Service) Quote(ctx context.Context, symbol string) (models.StockQuote, error) {
	if q, ok := s.tiers.Quotes.Get(symbol); ok {
		return q, nil
	}
	q, err := s.market.Quote(ctx, symbol)
	if err != nil {
		return models.StockQuote{}, err
	}
	s.tiers.Quotes.Set(symbol, q)
	return q, nil
}

// NewsSentiment returns analysed news and its aggregate for symbol over
// rng. Both come from cache only when both tiers hold the key. It never
// fails: a news error gives the no-news result and an analysis error
// gives defaulted articles.
func (s *Service) NewsSentiment(ctx context.Context, symbol string, rng models.TimeRange) ([]models.AnalyzedArticle, models.SentimentAggregate) {
	key := cache.RangeKey(symbol, rng)
	if articles, ok := s.tiers.News.Get(key); ok {
		if agg, ok := s.tiers.Sentiment.Get(key); ok {
			return articles, agg
		}
	}

	raw, err := s.news.Fetch(ctx, symbol, rng, s.maxArticles)
	if err != nil {
		s.logger.Warn("news fetch failed", "symbol", symbol, "range", rng, "source", s.news.Name(), "error", err)
		return []models.AnalyzedArticle{}, sentiment.Empty()
	}
	if len(raw) == 0 {
		empty := []models.AnalyzedArticle{}
		agg := sentiment.Empty()
		s.tiers.News.Set(key, empty)
		s.tiers.Sentiment.Set(key, agg)
		return empty, agg
	}

	articles, err := s.analyzer.Analyze(ctx, symbol, raw)
	if err != nil || len(articles) != len(raw) {
		s.logger.Warn("news analysis failed, using defaults", "symbol", symbol, "articles", len(raw), "error", err)
		articles = analysis.Defaults(raw)
	}
	agg := sentiment.Aggregate(rng, articles, sentiment.Options{Now: s.now(), Location: s.loc})
	s.tiers.News.Set(key, articles)
	s.tiers.Sentiment.Set(key, agg)
	return articles, agg
}

// Candles returns the price series for symbol over rng. Failures give an
// empty series.
func (s *Service) Candles(ctx context.Context, symbol string, rng models.TimeRange) []models.Candle {
	key := "candles:" + cache.RangeKey(symbol, rng)
	var candles []models.Candle
	if s.tiers.Lookup.GetJSON(ctx, key, &candles) {
		return candles
	}
	candles, err := s.market.Candles(ctx, symbol, rng, s.now())
	if err != nil {
		s.logger.Debug("candles unavailable", "symbol", symbol, "range", rng, "error", err)
		return []models.Candle{}
	}
	if err := s.tiers.Lookup.SetJSON(ctx, key, candles); err != nil {
		s.logger.Warn("cache candles", "key", key, "error", err)
	}
	return candles
}

// Lookup searches symbols matching q through the lookup cache.
func (s *Service) Lookup(ctx context.Context, q string) ([]models.SymbolMatch, error) {
	q = strings.TrimSpace(q)
	if q == "" {
		return []models.SymbolMatch{}, nil
	}
	key := "search:" + strings.ToLower(q)
	var matches []models.SymbolMatch
	if s.tiers.Lookup.GetJSON(ctx, key, &matches) {
		return matches, nil
	}
	matches, err := s.market.Search(ctx, q)
	if err != nil {
		return nil, err
	}
	if err := s.tiers.Lookup.SetJSON(ctx, key, matches); err != nil {
		s.logger.Warn("cache search", "key", key, "error", err)
	}
	return matches, nil
}

// ClearCaches empties every cache tier.
func (s *Service) ClearCaches(ctx context.Context) error {
	if err := s.tiers.ClearAll(ctx); err != nil {
		return fmt.Errorf("dashboard: clear caches: %w", err)
	}
	s.logger.Info("caches cleared")
	return nil
}

// normalizeSymbol upper-cases symbol and checks it is a plausible ticker.
func normalizeSymbol(symbol string) (string, error) {
	sym := utils.NormalizeTicker(symbol)
	if !utils.ValidTicker(sym) {
		return "", fmt.Errorf("%w: %q", ErrInvalidSymbol, symbol)
	}
	return sym, nil
}
