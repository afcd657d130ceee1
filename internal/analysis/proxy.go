package analysis

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/seenimoa/sentidash/internal/infra"
	"github.com/seenimoa/sentidash/pkg/models"
)

// Proxy calls a remote analysis endpoint with POST {"articles": [...]}.
type Proxy struct {
	url     string
	token   string
	http    *http.Client
	retries int
	delay   time.Duration
}

// ProxyOption configures a Proxy.
type ProxyOption func(*Proxy)

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) ProxyOption {
	return func(p *Proxy) {
		if d > 0 {
			p.http = &http.Client{Timeout: d}
		}
	}
}

// WithRetry sets the retry count and initial backoff.
func WithRetry(retries int, delay time.Duration) ProxyOption {
	return func(p *Proxy) { p.retries, p.delay = retries, delay }
}

// WithProxyHTTPClient sets the HTTP client.
func WithProxyHTTPClient(hc *http.Client) ProxyOption {
	return func(p *Proxy) { p.http = hc }
}

// NewProxy creates a client for the analysis endpoint at url.
func NewProxy(url, token string, opts ...ProxyOption) *Proxy {
	p := &Proxy{
		url:     url,
		token:   token,
		http:    &http.Client{Timeout: 60 * time.Second},
		retries: infra.DefaultRetries,
		delay:   infra.DefaultRetryDelay,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

type proxyRequest struct {
	Symbol   string               `json:"symbol,omitempty"`
	Articles []models.NewsArticle `json:"articles"`
}

// Analyze posts articles and merges the returned verdicts. Elements that
// fail to decode are defaulted; a transport or decode failure of the
// whole response is returned as an error.
func (p *Proxy) Analyze(ctx context.Context, symbol string, articles []models.NewsArticle) ([]models.AnalyzedArticle, error) {
	if len(articles) == 0 {
		return []models.AnalyzedArticle{}, nil
	}
	body, err := json.Marshal(proxyRequest{Symbol: symbol, Articles: articles})
	if err != nil {
		return nil, fmt.Errorf("analysis: encode request: %w", err)
	}

	resp, err := infra.RetryHTTP(ctx, p.http, p.retries, p.delay, func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.url, bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		if p.token != "" {
			req.Header.Set("Authorization", "Bearer "+p.token)
		}
		return req, nil
	})
	if err != nil {
		return nil, fmt.Errorf("analysis proxy: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return nil, fmt.Errorf("analysis proxy: read response: %w", err)
	}
	verdicts, err := DecodeVerdicts(data)
	if err != nil {
		return nil, fmt.Errorf("analysis proxy: %w", err)
	}
	return Apply(articles, verdicts), nil
}
