package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/seenimoa/sentidash/internal/config"
	"github.com/seenimoa/sentidash/internal/infra"
)

// Router routes LLM requests to the primary provider and falls back to
// the others in order when it fails.
type Router struct {
	mu         sync.RWMutex
	providers  map[string]LLMProvider
	primary    string
	fallbacks  []string
	maxRetries int
	retryDelay time.Duration
	logger     *slog.Logger
}

// RouterOption configures the router.
type RouterOption func(*Router)

// WithFallbacks sets the fallback provider chain.
func WithFallbacks(providers ...string) RouterOption {
	return func(r *Router) { r.fallbacks = providers }
}

// WithMaxRetries sets the maximum number of retry attempts per provider.
func WithMaxRetries(n int) RouterOption {
	return func(r *Router) { r.maxRetries = n }
}

// WithRetryDelay sets the first retry delay. It doubles on each retry.
func WithRetryDelay(d time.Duration) RouterOption {
	return func(r *Router) { r.retryDelay = d }
}

// WithLogger sets the router's logger.
func WithLogger(l *slog.Logger) RouterOption {
	return func(r *Router) { r.logger = l }
}

// NewRouter creates a new LLM router with the given primary provider.
func NewRouter(primary string, opts ...RouterOption) *Router {
	r := &Router{
		providers:  make(map[string]LLMProvider),
		primary:    primary,
		maxRetries: 2,
		retryDelay: 1 * time.Second,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.logger == nil {
		r.logger = slog.Default()
	}
	return r
}

// RegisterProvider adds a provider to the router.
func (r *Router) RegisterProvider(provider LLMProvider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[provider.Name()] = provider
}

// GetProvider returns a registered provider by name.
func (r *Router) GetProvider(name string) (LLMProvider, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.providers[name]
	return p, ok
}

// Chat routes a chat request through the provider chain with fallback.
func (r *Router) Chat(ctx context.Context, messages []Message, opts *ChatOptions) (*Response, error) {
	chain := r.providerChain()

	var lastErr error
	tried := 0
	for _, name := range chain {
		provider, ok := r.GetProvider(name)
		if !ok {
			continue
		}
		tried++

		resp, err := r.chatWithRetry(ctx, provider, messages, opts)
		if err == nil {
			return resp, nil
		}
		lastErr = err
		r.logger.Warn("llm provider failed", "provider", name, "error", err)

		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if isNonRetryable(err) {
			return nil, err
		}
	}
	if tried == 0 {
		return nil, ErrNoProviders
	}
	return nil, fmt.Errorf("llm/router: all providers failed, last error: %w", lastErr)
}

// HealthCheck pings all registered providers and returns their status.
func (r *Router) HealthCheck(ctx context.Context) map[string]error {
	r.mu.RLock()
	providers := make(map[string]LLMProvider, len(r.providers))
	for k, v := range r.providers {
		providers[k] = v
	}
	r.mu.RUnlock()

	results := make(map[string]error, len(providers))
	var mu sync.Mutex
	var wg sync.WaitGroup
	for name, provider := range providers {
		wg.Add(1)
		go func(n string, p LLMProvider) {
			defer wg.Done()
			pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			err := p.Ping(pingCtx)
			mu.Lock()
			results[n] = err
			mu.Unlock()
		}(name, provider)
	}
	wg.Wait()
	return results
}

// Name returns the name of the primary provider (satisfies LLMProvider).
func (r *Router) Name() string {
	return "router/" + r.primary
}

// Ping checks the primary provider's health (satisfies LLMProvider).
func (r *Router) Ping(ctx context.Context) error {
	p, ok := r.GetProvider(r.primary)
	if !ok {
		return fmt.Errorf("%w: primary provider %q not registered", ErrNoProviders, r.primary)
	}
	return p.Ping(ctx)
}

// ProviderNames returns the provider chain in routing order.
func (r *Router) ProviderNames() []string {
	var names []string
	for _, n := range r.providerChain() {
		if _, ok := r.GetProvider(n); ok {
			names = append(names, n)
		}
	}
	return names
}

// ── Internal Helpers ──

func (r *Router) providerChain() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	chain := []string{r.primary}
	for _, fb := range r.fallbacks {
		if fb != r.primary {
			chain = append(chain, fb)
		}
	}
	return chain
}

func (r *Router) chatWithRetry(ctx context.Context, provider LLMProvider,
	messages []Message, opts *ChatOptions) (*Response, error) {

	var resp *Response
	err := infra.Retry(ctx, r.maxRetries, r.retryDelay, func() error {
		var err error
		resp, err = provider.Chat(ctx, messages, opts)
		if err != nil && isNonRetryable(err) {
			return infra.Permanent(err)
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	return resp, nil
}

// isNonRetryable reports errors that another attempt cannot fix.
func isNonRetryable(err error) bool {
	return errors.Is(err, ErrNoAPIKey) ||
		errors.Is(err, ErrInvalidModel) ||
		errors.Is(err, ErrContextLength)
}

// NewRouterFromConfig creates a Router from the application config. It
// registers every provider whose credentials or URL are present.
func NewRouterFromConfig(cfg *config.Config, logger *slog.Logger) (*Router, error) {
	timeout := cfg.LLM.Timeout
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	router := NewRouter(cfg.LLM.Primary,
		WithMaxRetries(2),
		WithRetryDelay(time.Second),
		WithLogger(logger),
	)

	var fallbacks []string
	registered := 0

	if cfg.LLM.OpenAIKey != "" {
		p, err := NewOpenAIProvider(cfg.LLM.OpenAIKey,
			WithOpenAIBaseURL(cfg.LLM.OpenAIBaseURL),
			WithOpenAIModel(cfg.LLM.Model),
			WithOpenAIHTTPClient(&http.Client{Timeout: timeout}),
		)
		if err == nil {
			router.RegisterProvider(p)
			registered++
			if cfg.LLM.Primary != ProviderOpenAI {
				fallbacks = append(fallbacks, ProviderOpenAI)
			}
		}
	}

	// Ollama needs no key, only a URL.
	if cfg.LLM.OllamaURL != "" {
		p, err := NewOllamaProvider(cfg.LLM.OllamaURL, WithOllamaModel(cfg.LLM.OllamaModel))
		if err == nil {
			router.RegisterProvider(p)
			registered++
			if cfg.LLM.Primary != ProviderOllama {
				fallbacks = append(fallbacks, ProviderOllama)
			}
		}
	}

	if registered == 0 {
		return nil, ErrNoProviders
	}
	router.fallbacks = fallbacks
	return router, nil
}
