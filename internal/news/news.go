// Package news fetches raw company news for a symbol, either from the
// market-data proxy or from RSS feeds.
package news

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/google/uuid"
	"github.com/mmcdole/gofeed"

	"github.com/seenimoa/sentidash/internal/config"
	"github.com/seenimoa/sentidash/internal/infra"
	"github.com/seenimoa/sentidash/pkg/models"
	"github.com/seenimoa/sentidash/pkg/utils"
)

// DefaultMaxArticles limits how many articles go to analysis per search.
const DefaultMaxArticles = 20

// Source returns recent raw news for a symbol.
type Source interface {
	Name() string
	Fetch(ctx context.Context, symbol string, rng models.TimeRange, limit int) ([]models.NewsArticle, error)
}

// CompanyNewsClient is the part of the market-data client ProxySource uses.
type CompanyNewsClient interface {
	CompanyNews(ctx context.Context, symbol string, from, to time.Time) ([]models.NewsArticle, error)
}

// ProxySource reads company news from the market-data proxy.
type ProxySource struct {
	client CompanyNewsClient
	now    func() time.Time
}

// NewProxySource wraps client.
func NewProxySource(client CompanyNewsClient) *ProxySource {
	return &ProxySource{client: client, now: time.Now}
}

// Name returns the source name.
func (p *ProxySource) Name() string { return "proxy" }

// Fetch returns news published within rng, newest first.
func (p *ProxySource) Fetch(ctx context.Context, symbol string, rng models.TimeRange, limit int) ([]models.NewsArticle, error) {
	now := p.now()
	from := now.Add(-rng.Duration())
	articles, err := p.client.CompanyNews(ctx, symbol, from, now)
	if err != nil {
		return nil, err
	}
	return Finalize(articles, from, limit), nil
}

// FeedSource reads news from RSS/Atom feeds. Feed URLs may contain a
// {symbol} placeholder. Items are kept when they mention the symbol or
// when the feed URL is symbol-specific.
type FeedSource struct {
	urls   []string
	parser *gofeed.Parser
	queue  *infra.Queue
	logger *slog.Logger
	now    func() time.Time
}

// NewFeedSource creates a feed source. q may be nil.
func NewFeedSource(urls []string, q *infra.Queue, logger *slog.Logger) *FeedSource {
	return &FeedSource{
		urls:   urls,
		parser: gofeed.NewParser(),
		queue:  q,
		logger: infra.OrDefault(logger),
		now:    time.Now,
	}
}

// Name returns the source name.
func (f *FeedSource) Name() string { return "feed" }

// Fetch parses each configured feed. Failed feeds are skipped.
func (f *FeedSource) Fetch(ctx context.Context, symbol string, rng models.TimeRange, limit int) ([]models.NewsArticle, error) {
	symbol = utils.NormalizeTicker(symbol)
	var all []models.NewsArticle
	var lastErr error
	ok := 0
	for _, tmpl := range f.urls {
		u := strings.ReplaceAll(tmpl, "{symbol}", symbol)
		perSymbol := u != tmpl
		articles, err := f.fetchFeed(ctx, u)
		if err != nil {
			// Non-critical: skip failed feeds.
			f.logger.Warn("news feed failed", "url", u, "error", err)
			lastErr = err
			continue
		}
		ok++
		for _, a := range articles {
			if perSymbol || mentions(a, symbol) {
				all = append(all, a)
			}
		}
	}
	if ok == 0 && lastErr != nil {
		return nil, lastErr
	}
	now := f.now()
	return Finalize(all, now.Add(-rng.Duration()), limit), nil
}

func (f *FeedSource) fetchFeed(ctx context.Context, u string) ([]models.NewsArticle, error) {
	parse := func(ctx context.Context) (*gofeed.Feed, error) {
		return f.parser.ParseURLWithContext(u, ctx)
	}
	var feed *gofeed.Feed
	var err error
	if f.queue != nil {
		feed, err = infra.Enqueue(ctx, f.queue, parse)
	} else {
		feed, err = parse(ctx)
	}
	if err != nil {
		return nil, fmt.Errorf("parse feed %s: %w", u, err)
	}

	source := feed.Title
	articles := make([]models.NewsArticle, 0, len(feed.Items))
	for _, item := range feed.Items {
		a := models.NewsArticle{
			ID:      item.GUID,
			Title:   strings.TrimSpace(item.Title),
			URL:     item.Link,
			Source:  source,
			Summary: cleanHTML(item.Description),
		}
		if item.PublishedParsed != nil {
			a.PublishedAt = *item.PublishedParsed
		} else if item.UpdatedParsed != nil {
			a.PublishedAt = *item.UpdatedParsed
		}
		if item.Image != nil {
			a.ImageURL = item.Image.URL
		}
		articles = append(articles, a)
	}
	return articles, nil
}

// NewSource builds the source selected by cfg.News.Source.
func NewSource(cfg *config.Config, client CompanyNewsClient, q *infra.Queue, logger *slog.Logger) Source {
	if cfg.News.Source == "feed" {
		return NewFeedSource(cfg.News.FeedURLs, q, logger)
	}
	return NewProxySource(client)
}

// Finalize drops untitled and duplicate articles and those published
// before since, assigns fallback IDs, sorts newest first and applies limit.
// A zero publication time is kept.
func Finalize(articles []models.NewsArticle, since time.Time, limit int) []models.NewsArticle {
	seen := make(map[string]bool, len(articles))
	out := make([]models.NewsArticle, 0, len(articles))
	for _, a := range articles {
		if a.Title == "" {
			continue
		}
		if !a.PublishedAt.IsZero() && a.PublishedAt.Before(since) {
			continue
		}
		key := a.URL
		if key == "" {
			key = a.Title
		}
		if seen[key] {
			continue
		}
		seen[key] = true
		if a.ID == "" {
			a.ID = uuid.NewString()
		}
		out = append(out, a)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].PublishedAt.After(out[j].PublishedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// cleanHTML strips HTML tags from a string using goquery.
func cleanHTML(s string) string {
	if s == "" {
		return ""
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader("<body>" + s + "</body>"))
	if err != nil {
		return s
	}
	return strings.Join(strings.Fields(doc.Text()), " ")
}

// mentions reports whether the article text names the symbol.
func mentions(a models.NewsArticle, symbol string) bool {
	text := strings.ToUpper(a.Title + " " + a.Summary)
	for _, field := range strings.FieldsFunc(text, func(r rune) bool {
		return !(r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' || r == '.' || r == '-')
	}) {
		if strings.Trim(field, ".") == symbol {
			return true
		}
	}
	return false
}
