// Package api provides the HTTP and WebSocket API for the sentiment
// dashboard.
//
// It exposes endpoints for symbol search, quotes, the combined dashboard
// fetch, server-side news analysis and per-user watchlists.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/seenimoa/sentidash/internal/auth"
	"github.com/seenimoa/sentidash/internal/config"
	"github.com/seenimoa/sentidash/internal/dashboard"
	"github.com/seenimoa/sentidash/internal/infra"
	"github.com/seenimoa/sentidash/internal/llm"
	"github.com/seenimoa/sentidash/internal/watchlist"
)

// Server is the HTTP API server.
type Server struct {
	router   chi.Router
	cfg      *config.Config
	svc      *dashboard.Service
	store    *watchlist.Store
	verifier auth.Verifier
	llm      *llm.Router
	wsHub    *WSHub
	logger   *slog.Logger
	version  string
}

// Deps are the collaborators of a Server. Store, Verifier and LLM may be
// nil; the routes that need them then answer 503.
type Deps struct {
	Config   *config.Config
	Service  *dashboard.Service
	Store    *watchlist.Store
	Verifier auth.Verifier
	LLM      *llm.Router
	Logger   *slog.Logger
	Version  string
}

// NewServer creates a configured API server with all routes and middleware.
func NewServer(d Deps) *Server {
	cfg := d.Config
	if cfg == nil {
		cfg = &config.Config{}
	}
	srv := &Server{
		cfg:      cfg,
		svc:      d.Service,
		store:    d.Store,
		verifier: d.Verifier,
		llm:      d.LLM,
		wsHub:    NewWSHub(),
		logger:   infra.OrDefault(d.Logger),
		version:  d.Version,
	}
	if srv.svc == nil {
		srv.svc = dashboard.NewService(dashboard.Deps{Logger: srv.logger})
	}
	if srv.version == "" {
		srv.version = "dev"
	}
	srv.router = srv.buildRouter()
	return srv
}

// Router returns the chi router for testing.
func (s *Server) Router() chi.Router {
	return s.router
}

// Hub returns the WebSocket hub.
func (s *Server) Hub() *WSHub { return s.wsHub }

// ListenAndServe serves on addr until ctx is done, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	httpSrv := &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	hubCtx, stopHub := context.WithCancel(context.Background())
	defer stopHub()
	go s.wsHub.Run(hubCtx)

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("api listening", "addr", addr)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("api: listen: %w", err)
		}
		return nil
	case <-ctx.Done():
	}
	s.logger.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return httpSrv.Shutdown(shutdownCtx)
}

// buildRouter configures all routes and middleware.
func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()

	timeout := s.cfg.API.RequestTimeout
	if timeout <= 0 {
		timeout = 120 * time.Second
	}

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(s.logger))
	r.Use(middleware.Recoverer)

	// CORS
	origins := []string{"*"}
	if len(s.cfg.API.CORSOrigins) > 0 {
		origins = s.cfg.API.CORSOrigins
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Health check
	r.Get("/health", s.handleHealth)

	r.Route("/api/v1", func(r chi.Router) {
		// WebSocket connections outlive the request timeout.
		r.Get("/ws", s.handleWebSocket)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(timeout))

			r.Get("/health", s.handleHealth)

			// Market data
			r.Get("/search", s.handleSearch)
			r.Get("/quote/{symbol}", s.handleQuote)
			r.Get("/dashboard/{symbol}", s.handleDashboard)

			// Analysis
			r.Post("/analyze-news", s.handleAnalyzeNews)

			// Caches
			r.Delete("/cache", s.handleClearCache)

			// Config
			r.Get("/config", s.handleGetConfig)
			r.Get("/config/keys", s.handleGetConfigKeys)

			// Watchlist
			r.Route("/watchlist", func(r chi.Router) {
				r.Use(s.requireUser)
				r.Get("/", s.handleWatchlist)
				r.Post("/", s.handleWatchlistAdd)
				r.Delete("/{symbol}", s.handleWatchlistRemove)
				r.Delete("/id/{id}", s.handleWatchlistRemoveByID)
			})
		})
	})

	return r
}

// requestLogger logs one line per request through logger.
func requestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			logger.Info("http request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration", time.Since(start),
				"request_id", middleware.GetReqID(r.Context()),
			)
		})
	}
}

// ============================================================
// Request / Response types
// ============================================================

// APIResponse is the standard JSON envelope.
type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Default().Error("failed to write JSON response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, APIResponse{
		Success: false,
		Error:   msg,
	})
}

// ============================================================
// Handlers
// ============================================================

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	data := map[string]interface{}{
		"status":     "ok",
		"version":    s.version,
		"time":       time.Now().UTC().Format(time.RFC3339),
		"ws_clients": s.wsHub.ClientCount(),
		"analyzer":   fmt.Sprintf("%T", s.svc.Analyzer()),
	}
	if s.llm != nil {
		providers := make(map[string]string)
		for name, err := range s.llm.HealthCheck(r.Context()) {
			if err != nil {
				providers[name] = err.Error()
			} else {
				providers[name] = "ok"
			}
		}
		data["llm"] = providers
	}
	writeJSON(w, http.StatusOK, APIResponse{Success: true, Data: data})
}

func (s *Server) handleClearCache(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.ClearCaches(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.wsHub.Broadcast(WSMessage{Type: "cache_cleared"})
	writeJSON(w, http.StatusOK, APIResponse{Success: true})
}
