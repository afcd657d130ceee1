package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/seenimoa/sentidash/internal/config"
)

// ════════════════════════════════════════════════════════════════════
// provider.go: Types & Helpers
// ════════════════════════════════════════════════════════════════════

func TestMessageConstructors(t *testing.T) {
	sys := SystemMessage("You are helpful.")
	if sys.Role != RoleSystem || sys.Content != "You are helpful." {
		t.Fatalf("SystemMessage: got %+v", sys)
	}
	user := UserMessage("hello")
	if user.Role != RoleUser || user.Content != "hello" {
		t.Fatalf("UserMessage: got %+v", user)
	}
}

func TestResponseString(t *testing.T) {
	r := &Response{Provider: "openai", Model: "gpt-4o-mini", Usage: Usage{TotalTokens: 42}, Latency: 1500 * time.Millisecond}
	s := r.String()
	if !strings.Contains(s, "openai/gpt-4o-mini") || !strings.Contains(s, "42 tokens") {
		t.Errorf("String() = %q", s)
	}
}

// ════════════════════════════════════════════════════════════════════
// openai.go
// ════════════════════════════════════════════════════════════════════

func TestOpenAIProviderNew(t *testing.T) {
	if _, err := NewOpenAIProvider(""); !errors.Is(err, ErrNoAPIKey) {
		t.Fatalf("empty key: got %v, want ErrNoAPIKey", err)
	}
	p, err := NewOpenAIProvider("sk-test", WithOpenAIModel("gpt-4o"), WithOpenAIBaseURL("http://x/v1/"))
	if err != nil {
		t.Fatal(err)
	}
	if p.Name() != ProviderOpenAI || p.model != "gpt-4o" || p.baseURL != "http://x/v1" {
		t.Errorf("provider = %+v", p)
	}
}

func TestOpenAIChat(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer sk-test" {
			t.Errorf("Authorization = %q", got)
		}
		var req openAIChatRequest
		json.NewDecoder(r.Body).Decode(&req)
		if req.Model != "gpt-4o-mini" || len(req.Messages) != 2 {
			t.Errorf("request = %+v", req)
		}
		if req.ResponseFormat == nil || req.ResponseFormat.Type != "json_object" {
			t.Errorf("json mode not requested: %+v", req.ResponseFormat)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"model": "gpt-4o-mini",
			"choices": []map[string]any{{
				"message":       map[string]any{"role": "assistant", "content": `{"articles":[]}`},
				"finish_reason": "stop",
			}},
			"usage": map[string]any{"prompt_tokens": 10, "completion_tokens": 5, "total_tokens": 15},
		})
	}))
	defer server.Close()

	p, _ := NewOpenAIProvider("sk-test", WithOpenAIBaseURL(server.URL))
	resp, err := p.Chat(context.Background(),
		[]Message{SystemMessage("classify"), UserMessage("news")},
		&ChatOptions{Temperature: 0.1, JSON: true})
	if err != nil {
		t.Fatalf("Chat error: %v", err)
	}
	if resp.Content != `{"articles":[]}` || resp.FinishReason != FinishStop || resp.Usage.TotalTokens != 15 {
		t.Errorf("response = %+v", resp)
	}
}

func TestOpenAIErrorHandling(t *testing.T) {
	tests := []struct {
		status int
		code   string
		want   error
	}{
		{http.StatusUnauthorized, "invalid_api_key", ErrNoAPIKey},
		{http.StatusTooManyRequests, "rate_limit", ErrRateLimit},
		{http.StatusBadRequest, "context_length_exceeded", ErrContextLength},
		{http.StatusNotFound, "model_not_found", ErrInvalidModel},
	}
	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				json.NewEncoder(w).Encode(map[string]any{
					"error": map[string]any{"message": "boom", "code": tt.code},
				})
			}))
			defer server.Close()
			p, _ := NewOpenAIProvider("sk-test", WithOpenAIBaseURL(server.URL))
			_, err := p.Chat(context.Background(), []Message{UserMessage("x")}, nil)
			if !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestOpenAIPing(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer good" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Write([]byte(`{"data":[]}`))
	}))
	defer server.Close()

	good, _ := NewOpenAIProvider("good", WithOpenAIBaseURL(server.URL))
	if err := good.Ping(context.Background()); err != nil {
		t.Errorf("Ping good key: %v", err)
	}
	bad, _ := NewOpenAIProvider("bad", WithOpenAIBaseURL(server.URL))
	if err := bad.Ping(context.Background()); !errors.Is(err, ErrNoAPIKey) {
		t.Errorf("Ping bad key: got %v", err)
	}
}

// ════════════════════════════════════════════════════════════════════
// ollama.go
// ════════════════════════════════════════════════════════════════════

func TestOllamaChat(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/chat" {
			t.Errorf("path = %s", r.URL.Path)
		}
		var req ollamaChatRequest
		json.NewDecoder(r.Body).Decode(&req)
		if req.Stream || req.Format != "json" || req.Model != "llama3.1:8b" {
			t.Errorf("request = %+v", req)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"model":             "llama3.1:8b",
			"message":           map[string]any{"role": "assistant", "content": "[]"},
			"done":              true,
			"done_reason":       "stop",
			"prompt_eval_count": 7,
			"eval_count":        3,
		})
	}))
	defer server.Close()

	p, _ := NewOllamaProvider(server.URL, WithOllamaModel("llama3.1:8b"))
	resp, err := p.Chat(context.Background(), []Message{UserMessage("hi")}, &ChatOptions{JSON: true})
	if err != nil {
		t.Fatalf("Chat error: %v", err)
	}
	if resp.Content != "[]" || resp.Provider != ProviderOllama || resp.Usage.TotalTokens != 10 {
		t.Errorf("response = %+v", resp)
	}
}

func TestOllamaPingDown(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()
	p, _ := NewOllamaProvider(server.URL)
	if err := p.Ping(context.Background()); !errors.Is(err, ErrProviderDown) {
		t.Errorf("Ping = %v, want ErrProviderDown", err)
	}
}

// ════════════════════════════════════════════════════════════════════
// router.go
// ════════════════════════════════════════════════════════════════════

type mockProvider struct {
	name  string
	calls int32
	errs  []error // returned in order; nil entries succeed
}

func (m *mockProvider) Name() string { return m.name }

func (m *mockProvider) Chat(ctx context.Context, messages []Message, opts *ChatOptions) (*Response, error) {
	n := int(atomic.AddInt32(&m.calls, 1)) - 1
	if n < len(m.errs) && m.errs[n] != nil {
		return nil, m.errs[n]
	}
	return &Response{Content: "ok from " + m.name, Provider: m.name}, nil
}

func (m *mockProvider) Ping(ctx context.Context) error { return nil }

func TestRouterRetriesThenSucceeds(t *testing.T) {
	primary := &mockProvider{name: "openai", errs: []error{ErrProviderDown, ErrRateLimit}}
	r := NewRouter("openai", WithRetryDelay(time.Millisecond))
	r.RegisterProvider(primary)

	resp, err := r.Chat(context.Background(), []Message{UserMessage("x")}, nil)
	if err != nil {
		t.Fatalf("Chat error: %v", err)
	}
	if resp.Content != "ok from openai" || primary.calls != 3 {
		t.Errorf("resp=%q calls=%d", resp.Content, primary.calls)
	}
}

func TestRouterRetryBackoffDoubles(t *testing.T) {
	primary := &mockProvider{name: "openai", errs: []error{ErrProviderDown, ErrProviderDown, ErrProviderDown}}
	r := NewRouter("openai", WithMaxRetries(3), WithRetryDelay(20*time.Millisecond))
	r.RegisterProvider(primary)

	start := time.Now()
	if _, err := r.Chat(context.Background(), []Message{UserMessage("x")}, nil); err != nil {
		t.Fatalf("Chat error: %v", err)
	}
	// 20ms + 40ms + 80ms between the four attempts.
	if elapsed := time.Since(start); elapsed < 140*time.Millisecond {
		t.Errorf("three retries took %v, want >= 140ms", elapsed)
	}
	if primary.calls != 4 {
		t.Errorf("calls = %d, want 4", primary.calls)
	}
}

func TestRouterFallsBack(t *testing.T) {
	primary := &mockProvider{name: "openai", errs: []error{ErrProviderDown, ErrProviderDown, ErrProviderDown}}
	fallback := &mockProvider{name: "ollama"}
	r := NewRouter("openai", WithFallbacks("ollama"), WithRetryDelay(time.Millisecond))
	r.RegisterProvider(primary)
	r.RegisterProvider(fallback)

	resp, err := r.Chat(context.Background(), []Message{UserMessage("x")}, nil)
	if err != nil {
		t.Fatalf("Chat error: %v", err)
	}
	if resp.Provider != "ollama" {
		t.Errorf("provider = %q, want ollama", resp.Provider)
	}
	if got := r.ProviderNames(); len(got) != 2 || got[0] != "openai" {
		t.Errorf("ProviderNames = %v", got)
	}
}

func TestRouterStopsOnNonRetryable(t *testing.T) {
	primary := &mockProvider{name: "openai", errs: []error{ErrNoAPIKey}}
	fallback := &mockProvider{name: "ollama"}
	r := NewRouter("openai", WithFallbacks("ollama"), WithRetryDelay(time.Millisecond))
	r.RegisterProvider(primary)
	r.RegisterProvider(fallback)

	if _, err := r.Chat(context.Background(), nil, nil); !errors.Is(err, ErrNoAPIKey) {
		t.Fatalf("err = %v, want ErrNoAPIKey", err)
	}
	if primary.calls != 1 || fallback.calls != 0 {
		t.Errorf("calls primary=%d fallback=%d, want 1/0", primary.calls, fallback.calls)
	}
}

func TestRouterNoProviders(t *testing.T) {
	r := NewRouter("openai")
	if _, err := r.Chat(context.Background(), nil, nil); !errors.Is(err, ErrNoProviders) {
		t.Errorf("err = %v, want ErrNoProviders", err)
	}
	if err := r.Ping(context.Background()); !errors.Is(err, ErrNoProviders) {
		t.Errorf("Ping = %v, want ErrNoProviders", err)
	}
}

func TestRouterHealthCheck(t *testing.T) {
	r := NewRouter("openai")
	r.RegisterProvider(&mockProvider{name: "openai"})
	r.RegisterProvider(&mockProvider{name: "ollama"})
	res := r.HealthCheck(context.Background())
	if len(res) != 2 || res["openai"] != nil {
		t.Errorf("HealthCheck = %v", res)
	}
}

func TestNewRouterFromConfig(t *testing.T) {
	if _, err := NewRouterFromConfig(&config.Config{}, nil); !errors.Is(err, ErrNoProviders) {
		t.Fatalf("empty config: got %v, want ErrNoProviders", err)
	}

	cfg := &config.Config{LLM: config.LLMConfig{
		Primary:   ProviderOpenAI,
		OpenAIKey: "sk-test",
		OllamaURL: "http://localhost:11434",
		Model:     "gpt-4o-mini",
	}}
	r, err := NewRouterFromConfig(cfg, nil)
	if err != nil {
		t.Fatalf("NewRouterFromConfig: %v", err)
	}
	names := r.ProviderNames()
	if len(names) != 2 || names[0] != ProviderOpenAI || names[1] != ProviderOllama {
		t.Errorf("ProviderNames = %v, want [openai ollama]", names)
	}
	if r.Name() != "router/openai" {
		t.Errorf("Name = %q", r.Name())
	}
}
