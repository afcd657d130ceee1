package main

import (
	"context"
	"errors"

	"github.com/seenimoa/sentidash/internal/analysis"
	"github.com/seenimoa/sentidash/internal/cache"
	"github.com/seenimoa/sentidash/internal/dashboard"
	"github.com/seenimoa/sentidash/internal/infra"
	"github.com/seenimoa/sentidash/internal/llm"
	"github.com/seenimoa/sentidash/internal/marketdata"
	"github.com/seenimoa/sentidash/internal/news"
)

// app holds the long-lived collaborators built from cfg.
type app struct {
	queue  *infra.Queue
	router *llm.Router
	svc    *dashboard.Service
}

// newApp wires the queue, upstream clients, analyzer and caches. All
// outbound market-data and feed requests share one rate-limited queue.
func newApp(ctx context.Context) *app {
	queue := infra.NewQueue(
		infra.WithLimit(cfg.Queue.Limit),
		infra.WithWindow(cfg.Queue.Window),
		infra.WithQueueLogger(logger),
	)
	market := marketdata.NewFromConfig(cfg, queue, logger)

	router, err := llm.NewRouterFromConfig(cfg, logger)
	if err != nil {
		if !errors.Is(err, llm.ErrNoProviders) {
			logger.Warn("llm router unavailable", "error", err)
		}
		router = nil
	}

	tiers := cache.NewTiers(ctx, cache.Options{
		QuoteTTL:     cfg.Cache.QuoteTTL,
		NewsTTL:      cfg.Cache.NewsTTL,
		SentimentTTL: cfg.Cache.SentimentTTL,
		LookupTTL:    cfg.Cache.LookupTTL,
		RedisURL:     cfg.Cache.RedisURL,
		RedisPrefix:  cfg.Cache.RedisPrefix,
		Logger:       logger,
	})

	svc := dashboard.NewService(dashboard.Deps{
		Tiers:       tiers,
		Market:      market,
		News:        news.NewSource(cfg, market, queue, logger),
		Analyzer:    analysis.NewFromConfig(cfg, router, logger),
		MaxArticles: cfg.News.MaxArticles,
		Logger:      logger,
	})
	return &app{queue: queue, router: router, svc: svc}
}

// Close stops the request queue and releases the cache tiers.
func (a *app) Close() {
	a.queue.Close()
	if err := a.svc.Tiers().Close(); err != nil {
		infra.OrDefault(logger).Warn("close cache tiers", "error", err)
	}
}
