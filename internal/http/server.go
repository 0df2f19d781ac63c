// Package http exposes the budget engine as a JSON API.
package http

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/1fach/einfach-budget/internal/cache"
	"github.com/1fach/einfach-budget/internal/core"
	"github.com/1fach/einfach-budget/internal/log"
	"github.com/1fach/einfach-budget/internal/services"
)

type Server struct {
	http.Server
	budgets *services.BudgetService

	// Derived month views are cheap to recompute but hit several aggregate
	// queries each; a short TTL keeps repeated dashboard polls off SQLite.
	monthlyCache  *cache.LRUCache[core.MonthlyBudget]
	categoryCache *cache.LRUCache[core.CategoryMonth]
	cacheManager  *cache.Manager

	shutdownOnce sync.Once
}

// NewServer configures routes and caches, returning a ready-to-run server.
func NewServer(addr string, budgets *services.BudgetService) *Server {
	mux := http.NewServeMux()

	s := &Server{
		Server: http.Server{
			Addr:    addr,
			Handler: mux,
		},
		budgets:       budgets,
		monthlyCache:  cache.NewLRUCache[core.MonthlyBudget](100, 30*time.Second),
		categoryCache: cache.NewLRUCache[core.CategoryMonth](500, 30*time.Second),
		cacheManager:  cache.NewManager(),
	}

	s.cacheManager.Register(s.monthlyCache)
	s.cacheManager.Register(s.categoryCache)
	s.cacheManager.StartCleanup(10 * time.Minute)

	mux.HandleFunc("/healthz", handleHealth)
	mux.HandleFunc("/readyz", handleReady)

	mux.HandleFunc("POST /api/budgets/{budgetID}/months/{year}/{month}/init", s.withMiddleware(s.handleInitMonth))
	mux.HandleFunc("GET /api/budgets/{budgetID}/months/{year}/{month}", s.withMiddleware(s.handleMonthlyBudget))
	mux.HandleFunc("GET /api/budgets/{budgetID}/months/{year}/{month}/groups", s.withMiddleware(s.handleGroupMonths))
	mux.HandleFunc("GET /api/budgets/{budgetID}/months/{year}/{month}/categories", s.withMiddleware(s.handleCategoryMonths))
	mux.HandleFunc("GET /api/categories/{categoryID}/months/{year}/{month}", s.withMiddleware(s.handleCategoryMonth))
	mux.HandleFunc("PUT /api/categories/{categoryID}/months/{year}/{month}/assigned", s.withMiddleware(s.handleAssign))

	return s
}

// withMiddleware adds security headers, request logging, and the user scope
// check. Every API handler requires an X-User-ID header.
func (s *Server) withMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		requestID := generateRequestID()
		ctx := context.WithValue(r.Context(), requestIDKey, requestID)
		r = r.WithContext(ctx)

		slog.InfoContext(ctx, "Request started",
			log.FieldRequestID, requestID,
			log.FieldMethod, r.Method,
			log.FieldPath, r.URL.Path,
			log.FieldUserID, userID(r))

		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")

		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		if userID(r) == "" {
			writeError(rw, http.StatusUnauthorized, "missing X-User-ID header")
		} else {
			next(rw, r)
		}

		slog.InfoContext(ctx, "Request completed",
			log.FieldRequestID, requestID,
			log.FieldMethod, r.Method,
			log.FieldPath, r.URL.Path,
			log.FieldStatusCode, rw.statusCode,
			log.FieldDuration, time.Since(start).Milliseconds())
	}
}

// responseWriter wraps http.ResponseWriter to capture the status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Shutdown stops the cache sweeper and drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.cacheManager.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func handleReady(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}
