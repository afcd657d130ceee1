// Package auth resolves bearer tokens to user IDs.
package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/seenimoa/sentidash/internal/config"
	"github.com/seenimoa/sentidash/internal/infra"
)

var (
	// ErrNoToken is returned when a request carries no bearer token.
	ErrNoToken = errors.New("auth: missing bearer token")
	// ErrInvalidToken is returned when the token is not recognised.
	ErrInvalidToken = errors.New("auth: invalid token")
	// ErrNoVerifier is returned when no auth backend is configured.
	ErrNoVerifier = errors.New("auth: no verifier configured")
)

// Verifier maps a bearer token to the user it belongs to.
type Verifier interface {
	Verify(ctx context.Context, token string) (userID string, err error)
}

// Static verifies tokens against a fixed token to user ID map.
type Static map[string]string

// Verify implements Verifier.
func (s Static) Verify(_ context.Context, token string) (string, error) {
	if id, ok := s[token]; ok && id != "" {
		return id, nil
	}
	return "", ErrInvalidToken
}

// HTTP verifies tokens with GET {url}/user on the auth service. Results
// are cached briefly per token.
type HTTP struct {
	url       string
	publicKey string
	client    *http.Client
	ttl       time.Duration

	mu    sync.Mutex
	known map[string]cachedUser
	now   func() time.Time
}

type cachedUser struct {
	id      string
	expires time.Time
}

// NewHTTP creates a verifier for the auth service at url.
func NewHTTP(url, publicKey string, client *http.Client) *HTTP {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &HTTP{
		url:       strings.TrimRight(url, "/"),
		publicKey: publicKey,
		client:    client,
		ttl:       time.Minute,
		known:     make(map[string]cachedUser),
		now:       time.Now,
	}
}

// Verify implements Verifier.
func (h *HTTP) Verify(ctx context.Context, token string) (string, error) {
	h.mu.Lock()
	if c, ok := h.known[token]; ok && h.now().Before(c.expires) {
		h.mu.Unlock()
		return c.id, nil
	}
	h.mu.Unlock()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.url+"/user", nil)
	if err != nil {
		return "", fmt.Errorf("auth: create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	if h.publicKey != "" {
		req.Header.Set("apikey", h.publicKey)
	}
	resp, err := h.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("auth: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return "", ErrInvalidToken
	case resp.StatusCode != http.StatusOK:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("auth: %w", &infra.ErrHTTP{StatusCode: resp.StatusCode, Status: resp.Status, Body: string(body)})
	}

	var user struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&user); err != nil {
		return "", fmt.Errorf("auth: decode user: %w", err)
	}
	if user.ID == "" {
		return "", ErrInvalidToken
	}

	h.mu.Lock()
	h.known[token] = cachedUser{id: user.ID, expires: h.now().Add(h.ttl)}
	h.mu.Unlock()
	return user.ID, nil
}

// Chain tries each verifier in turn and returns the first success.
type Chain []Verifier

// Verify implements Verifier.
func (c Chain) Verify(ctx context.Context, token string) (string, error) {
	if len(c) == 0 {
		return "", ErrNoVerifier
	}
	err := ErrInvalidToken
	for _, v := range c {
		id, verr := v.Verify(ctx, token)
		if verr == nil {
			return id, nil
		}
		if !errors.Is(verr, ErrInvalidToken) {
			err = verr
		}
	}
	return "", err
}

// NewFromConfig builds the verifier chain: static tokens first, then the
// auth service when auth.url is set.
func NewFromConfig(cfg *config.Config) Verifier {
	var chain Chain
	if len(cfg.Auth.StaticTokens) > 0 {
		chain = append(chain, Static(cfg.Auth.StaticTokens))
	}
	if cfg.Auth.URL != "" {
		chain = append(chain, NewHTTP(cfg.Auth.URL, cfg.Auth.PublicKey, nil))
	}
	return chain
}

// BearerToken extracts the token from an Authorization header.
func BearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if len(h) > 7 && strings.EqualFold(h[:7], "bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return ""
}

type ctxKey struct{}

// WithUser returns ctx carrying userID.
func WithUser(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, ctxKey{}, userID)
}

// UserFrom returns the user ID stored by WithUser, or "".
func UserFrom(ctx context.Context) string {
	id, _ := ctx.Value(ctxKey{}).(string)
	return id
}

// Authenticate resolves the request's bearer token.
func Authenticate(r *http.Request, v Verifier) (string, error) {
	token := BearerToken(r)
	if token == "" {
		// Browsers cannot set headers on WebSocket upgrades.
		token = r.URL.Query().Get("access_token")
	}
	if token == "" {
		return "", ErrNoToken
	}
	return v.Verify(r.Context(), token)
}
