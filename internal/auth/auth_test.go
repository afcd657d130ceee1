package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/seenimoa/sentidash/internal/config"
	"github.com/seenimoa/sentidash/internal/infra"
)

func TestStatic(t *testing.T) {
	v := Static{"tok-a": "alice"}
	if id, err := v.Verify(context.Background(), "tok-a"); err != nil || id != "alice" {
		t.Errorf("Verify(tok-a) = %q, %v", id, err)
	}
	if _, err := v.Verify(context.Background(), "nope"); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("Verify(nope) = %v, want ErrInvalidToken", err)
	}
}

func TestHTTPVerify(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		if r.URL.Path != "/user" || r.Header.Get("apikey") != "pub" {
			t.Errorf("path=%s apikey=%q", r.URL.Path, r.Header.Get("apikey"))
		}
		switch r.Header.Get("Authorization") {
		case "Bearer good":
			w.Write([]byte(`{"id":"user-1","email":"a@example.com"}`))
		case "Bearer broken":
			w.WriteHeader(http.StatusBadGateway)
		default:
			w.WriteHeader(http.StatusUnauthorized)
		}
	}))
	defer srv.Close()

	v := NewHTTP(srv.URL+"/", "pub", nil)
	for i := 0; i < 2; i++ {
		id, err := v.Verify(context.Background(), "good")
		if err != nil || id != "user-1" {
			t.Fatalf("Verify(good) = %q, %v", id, err)
		}
	}
	if n := atomic.LoadInt32(&calls); n != 1 {
		t.Errorf("calls = %d, want 1 (cached)", n)
	}
	if _, err := v.Verify(context.Background(), "bad"); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("Verify(bad) = %v", err)
	}
	var httpErr *infra.ErrHTTP
	if _, err := v.Verify(context.Background(), "broken"); !errors.As(err, &httpErr) {
		t.Errorf("Verify(broken) = %v, want *infra.ErrHTTP", err)
	}
}

func TestChain(t *testing.T) {
	if _, err := (Chain{}).Verify(context.Background(), "x"); !errors.Is(err, ErrNoVerifier) {
		t.Errorf("empty chain = %v", err)
	}
	c := Chain{Static{"a": "alice"}, Static{"b": "bob"}}
	if id, _ := c.Verify(context.Background(), "b"); id != "bob" {
		t.Errorf("chain(b) = %q", id)
	}
	if _, err := c.Verify(context.Background(), "z"); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("chain(z) = %v", err)
	}
}

func TestNewFromConfig(t *testing.T) {
	cfg := &config.Config{Auth: config.AuthConfig{StaticTokens: map[string]string{"dev": "dev-user"}}}
	id, err := NewFromConfig(cfg).Verify(context.Background(), "dev")
	if err != nil || id != "dev-user" {
		t.Errorf("Verify = %q, %v", id, err)
	}
}

func TestAuthenticate(t *testing.T) {
	v := Static{"tok": "alice"}

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	if _, err := Authenticate(r, v); !errors.Is(err, ErrNoToken) {
		t.Errorf("no header = %v", err)
	}

	r.Header.Set("Authorization", "bearer tok")
	if id, err := Authenticate(r, v); id != "alice" || err != nil {
		t.Errorf("header = %q, %v", id, err)
	}

	r = httptest.NewRequest(http.MethodGet, "/ws?access_token=tok", nil)
	if id, _ := Authenticate(r, v); id != "alice" {
		t.Errorf("query token = %q", id)
	}

	ctx := WithUser(context.Background(), "alice")
	if UserFrom(ctx) != "alice" || UserFrom(context.Background()) != "" {
		t.Error("context round trip failed")
	}
}
