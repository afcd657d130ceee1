package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/seenimoa/sentidash/internal/auth"
	"github.com/seenimoa/sentidash/internal/watchlist"
)

// WatchlistAddRequest is the body for POST /api/v1/watchlist.
type WatchlistAddRequest struct {
	Symbol string `json:"symbol"`
	Name   string `json:"name,omitempty"`
}

// requireUser resolves the bearer token and stores the user in the
// request context.
func (s *Server) requireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.verifier == nil || s.store == nil {
			writeError(w, http.StatusServiceUnavailable, "watchlist is not configured")
			return
		}
		userID, err := auth.Authenticate(r, s.verifier)
		switch {
		case errors.Is(err, auth.ErrNoToken), errors.Is(err, auth.ErrInvalidToken):
			writeError(w, http.StatusUnauthorized, err.Error())
			return
		case errors.Is(err, auth.ErrNoVerifier):
			writeError(w, http.StatusServiceUnavailable, err.Error())
			return
		case err != nil:
			writeError(w, http.StatusBadGateway, err.Error())
			return
		}
		next.ServeHTTP(w, r.WithContext(auth.WithUser(r.Context(), userID)))
	})
}

// scoped returns the caller's watchlist view, writing the error response
// when there is none.
func (s *Server) scoped(w http.ResponseWriter, r *http.Request) (*watchlist.Scoped, bool) {
	sc, err := s.store.For(auth.UserFrom(r.Context()))
	if err != nil {
		writeWatchlistError(w, err)
		return nil, false
	}
	return sc, true
}

func (s *Server) handleWatchlist(w http.ResponseWriter, r *http.Request) {
	sc, ok := s.scoped(w, r)
	if !ok {
		return
	}
	entries, err := sc.List(r.Context())
	if err != nil {
		writeWatchlistError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, APIResponse{Success: true, Data: entries})
}

func (s *Server) handleWatchlistAdd(w http.ResponseWriter, r *http.Request) {
	var req WatchlistAddRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	sc, ok := s.scoped(w, r)
	if !ok {
		return
	}
	entry, created, err := sc.Ensure(r.Context(), req.Symbol, req.Name)
	if err != nil {
		writeWatchlistError(w, err)
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	writeJSON(w, status, APIResponse{Success: true, Data: entry})
}

func (s *Server) handleWatchlistRemove(w http.ResponseWriter, r *http.Request) {
	sc, ok := s.scoped(w, r)
	if !ok {
		return
	}
	n, err := sc.Delete(r.Context(), chi.URLParam(r, "symbol"))
	if err != nil {
		writeWatchlistError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, APIResponse{Success: true, Data: map[string]int64{"removed": n}})
}

func (s *Server) handleWatchlistRemoveByID(w http.ResponseWriter, r *http.Request) {
	sc, ok := s.scoped(w, r)
	if !ok {
		return
	}
	if err := sc.DeleteByID(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeWatchlistError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, APIResponse{Success: true, Data: map[string]int64{"removed": 1}})
}

func writeWatchlistError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, watchlist.ErrUnauthenticated):
		writeError(w, http.StatusUnauthorized, err.Error())
	case errors.Is(err, watchlist.ErrForbidden):
		writeError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, watchlist.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, watchlist.ErrInvalidSymbol):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}
