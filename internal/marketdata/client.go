// Package marketdata is the client for the market-data proxy. Every call
// is a POST with query parameters, serialized through the shared request
// queue and retried with backoff.
package marketdata

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/seenimoa/sentidash/internal/config"
	"github.com/seenimoa/sentidash/internal/infra"
	"github.com/seenimoa/sentidash/pkg/models"
	"github.com/seenimoa/sentidash/pkg/utils"
)

// ErrTickerNotFound is returned when the proxy has no data for a symbol.
var ErrTickerNotFound = errors.New("marketdata: ticker not found")

// ErrNoData is returned by Candles when the proxy reports "no_data".
var ErrNoData = errors.New("marketdata: no data")

// maxBody caps a single proxy response.
const maxBody = 8 << 20

// Client talks to the market-data proxy.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
	queue   *infra.Queue
	retries int
	delay   time.Duration
	logger  *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithQueue routes requests through q instead of a private queue.
func WithQueue(q *infra.Queue) Option {
	return func(c *Client) { c.queue = q }
}

// WithRetry sets the retry count and initial backoff.
func WithRetry(retries int, delay time.Duration) Option {
	return func(c *Client) { c.retries, c.delay = retries, delay }
}

// WithHTTPClient sets the HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// New creates a client for the proxy rooted at baseURL.
func New(baseURL, token string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http:    &http.Client{Timeout: 15 * time.Second},
		retries: infra.DefaultRetries,
		delay:   infra.DefaultRetryDelay,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.queue == nil {
		c.queue = infra.NewQueue(infra.WithQueueLogger(c.logger))
	}
	c.logger = infra.OrDefault(c.logger)
	return c
}

// NewFromConfig builds a client from the application config, sharing q.
func NewFromConfig(cfg *config.Config, q *infra.Queue, logger *slog.Logger) *Client {
	timeout := cfg.MarketData.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return New(cfg.MarketData.BaseURL, cfg.MarketData.Token,
		WithQueue(q),
		WithRetry(cfg.Retry.Retries, cfg.Retry.Delay),
		WithHTTPClient(&http.Client{Timeout: timeout}),
		WithLogger(logger),
	)
}

// --- proxy response types ---

type searchResponse struct {
	Count  int `json:"count"`
	Result []struct {
		Description   string `json:"description"`
		DisplaySymbol string `json:"displaySymbol"`
		Symbol        string `json:"symbol"`
		Type          string `json:"type"`
	} `json:"result"`
}

type quoteResponse struct {
	Current   float64 `json:"c"`
	Change    float64 `json:"d"`
	ChangePct float64 `json:"dp"`
	PrevClose float64 `json:"pc"`
	Timestamp int64   `json:"t"`
}

type profileResponse struct {
	Name      string   `json:"name"`
	Ticker    string   `json:"ticker"`
	Exchange  string   `json:"exchange"`
	Industry  string   `json:"finnhubIndustry"`
	MarketCap *float64 `json:"marketCapitalization"`
}

type candleResponse struct {
	Status string    `json:"s"`
	Time   []int64   `json:"t"`
	Open   []float64 `json:"o"`
	High   []float64 `json:"h"`
	Low    []float64 `json:"l"`
	Close  []float64 `json:"c"`
	Volume []float64 `json:"v"`
}

type newsItem struct {
	ID       int64  `json:"id"`
	Headline string `json:"headline"`
	Summary  string `json:"summary"`
	URL      string `json:"url"`
	Source   string `json:"source"`
	Datetime int64  `json:"datetime"`
	Image    string `json:"image"`
}

// --- Public methods ---

// Search returns symbols matching q.
func (c *Client) Search(ctx context.Context, q string) ([]models.SymbolMatch, error) {
	q = strings.TrimSpace(q)
	if q == "" {
		return []models.SymbolMatch{}, nil
	}
	var resp searchResponse
	if err := c.call(ctx, "search", url.Values{"q": {q}}, &resp); err != nil {
		return nil, fmt.Errorf("marketdata search %q: %w", q, err)
	}
	out := make([]models.SymbolMatch, 0, len(resp.Result))
	for _, r := range resp.Result {
		out = append(out, models.SymbolMatch{
			Symbol:        r.Symbol,
			DisplaySymbol: r.DisplaySymbol,
			Description:   r.Description,
			Type:          r.Type,
		})
	}
	return out, nil
}

// Quote fetches the quote and company profile for symbol and merges them.
// A zero price with a zero previous close means the symbol is unknown.
func (c *Client) Quote(ctx context.Context, symbol string) (models.StockQuote, error) {
	symbol = utils.NormalizeTicker(symbol)

	var q quoteResponse
	if err := c.call(ctx, "quote", url.Values{"symbol": {symbol}}, &q); err != nil {
		return models.StockQuote{}, fmt.Errorf("marketdata quote %s: %w", symbol, err)
	}
	if q.Current == 0 && q.PrevClose == 0 {
		return models.StockQuote{}, fmt.Errorf("%w: %s", ErrTickerNotFound, symbol)
	}

	// The profile only adds display fields, so a failure keeps the quote.
	var p profileResponse
	if err := c.call(ctx, "stock/profile2", url.Values{"symbol": {symbol}}, &p); err != nil {
		c.logger.Warn("profile lookup failed", "symbol", symbol, "error", err)
	}

	quote := models.StockQuote{
		Symbol:        symbol,
		Name:          coalesce(p.Name, symbol),
		Price:         q.Current,
		Change:        q.Change,
		ChangePercent: q.ChangePct,
		PrevClose:     q.PrevClose,
		Exchange:      p.Exchange,
		Industry:      p.Industry,
		MarketCap:     p.MarketCap,
		FetchedAt:     time.Now(),
	}
	return quote, nil
}

// Candles returns price candles for symbol over rng ending at now.
func (c *Client) Candles(ctx context.Context, symbol string, rng models.TimeRange, now time.Time) ([]models.Candle, error) {
	symbol = utils.NormalizeTicker(symbol)
	from := now.Add(-rng.Duration())
	params := url.Values{
		"symbol":     {symbol},
		"resolution": {Resolution(rng)},
		"from":       {strconv.FormatInt(from.Unix(), 10)},
		"to":         {strconv.FormatInt(now.Unix(), 10)},
	}
	var resp candleResponse
	if err := c.call(ctx, "stock/candle", params, &resp); err != nil {
		return nil, fmt.Errorf("marketdata candles %s: %w", symbol, err)
	}
	if resp.Status == "no_data" {
		return nil, fmt.Errorf("%w: %s %s", ErrNoData, symbol, rng)
	}
	return parseCandles(resp), nil
}

// CompanyNews returns raw news for symbol published between from and to.
func (c *Client) CompanyNews(ctx context.Context, symbol string, from, to time.Time) ([]models.NewsArticle, error) {
	symbol = utils.NormalizeTicker(symbol)
	params := url.Values{
		"symbol": {symbol},
		"from":   {utils.FormatDate(from, time.UTC)},
		"to":     {utils.FormatDate(to, time.UTC)},
	}
	var items []newsItem
	if err := c.call(ctx, "company-news", params, &items); err != nil {
		return nil, fmt.Errorf("marketdata news %s: %w", symbol, err)
	}
	out := make([]models.NewsArticle, 0, len(items))
	for _, it := range items {
		a := models.NewsArticle{
			Title:       strings.TrimSpace(it.Headline),
			Summary:     strings.TrimSpace(it.Summary),
			URL:         it.URL,
			Source:      it.Source,
			PublishedAt: time.Unix(it.Datetime, 0).UTC(),
			ImageURL:    it.Image,
		}
		if it.ID != 0 {
			a.ID = strconv.FormatInt(it.ID, 10)
		}
		out = append(out, a)
	}
	return out, nil
}

// Resolution maps a time range to the candle resolution it is charted at.
func Resolution(rng models.TimeRange) string {
	switch rng {
	case models.Range30d:
		return "D"
	default:
		return "60"
	}
}

// --- Internal helpers ---

// call runs one proxy request through the queue. The retry loop runs
// inside the queued task so a retried call holds its place in line.
func (c *Client) call(ctx context.Context, endpoint string, params url.Values, dst any) error {
	target := c.baseURL + "/" + strings.TrimLeft(endpoint, "/")
	if len(params) > 0 {
		target += "?" + params.Encode()
	}

	data, err := infra.Enqueue(ctx, c.queue, func(ctx context.Context) ([]byte, error) {
		resp, err := infra.RetryHTTP(ctx, c.http, c.retries, c.delay, func(ctx context.Context) (*http.Request, error) {
			req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, nil)
			if err != nil {
				return nil, fmt.Errorf("create request: %w", err)
			}
			req.Header.Set("Accept", "application/json")
			if c.token != "" {
				req.Header.Set("Authorization", "Bearer "+c.token)
			}
			return req, nil
		})
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()
		return io.ReadAll(io.LimitReader(resp.Body, maxBody))
	})
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("parse %s: %w", endpoint, err)
	}
	return nil
}

func parseCandles(r candleResponse) []models.Candle {
	n := len(r.Time)
	for _, s := range [][]float64{r.Open, r.High, r.Low, r.Close} {
		if len(s) < n {
			n = len(s)
		}
	}
	candles := make([]models.Candle, 0, n)
	for i := 0; i < n; i++ {
		var vol int64
		if i < len(r.Volume) {
			vol = int64(r.Volume[i])
		}
		candles = append(candles, models.Candle{
			Time:   time.Unix(r.Time[i], 0).UTC(),
			Open:   r.Open[i],
			High:   r.High[i],
			Low:    r.Low[i],
			Close:  r.Close[i],
			Volume: vol,
		})
	}
	return candles
}

func coalesce(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
