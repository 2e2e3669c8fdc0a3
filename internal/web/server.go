// Package web provides the HTTP server and handlers for the QR label UI.
package web

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/a-h/templ"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/JonMunkholm/labelqr/internal/config"
	"github.com/JonMunkholm/labelqr/internal/core"
	"github.com/JonMunkholm/labelqr/internal/logging"
	"github.com/JonMunkholm/labelqr/internal/metrics"
	"github.com/JonMunkholm/labelqr/internal/store"
	mw "github.com/JonMunkholm/labelqr/internal/web/middleware"
)

// Server is the HTTP server for the label generator.
type Server struct {
	cfg     *config.Config
	service *core.Service
	store   store.Store
	metrics *metrics.Metrics
	limiter *rateLimiter
	router  *chi.Mux
	server  *http.Server
}

// NewServer creates a Server. A nil m disables the metrics middleware and
// endpoint.
func NewServer(cfg *config.Config, service *core.Service, st store.Store, m *metrics.Metrics) *Server {
	s := &Server{
		cfg:     cfg,
		service: service,
		store:   st,
		metrics: m,
		router:  chi.NewRouter(),
	}
	s.setupMiddleware()
	s.setupRoutes()
	return s
}

// setupMiddleware configures middleware for all routes.
func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(mw.TrustedRealIP(s.cfg.Security.TrustedProxies))
	s.router.Use(mw.Logger)
	s.router.Use(middleware.Recoverer)
	if s.metrics != nil {
		s.router.Use(s.metrics.Middleware)
	}
	s.router.Use(middleware.Compress(5))
	if s.cfg.Server.RequestTimeout > 0 {
		s.router.Use(middleware.Timeout(s.cfg.Server.RequestTimeout))
	}

	// Security hardening
	s.router.Use(securityHeaders(s.cfg.Security.EnableCSP))

	if s.cfg.Rate.Enabled {
		s.limiter = newRateLimiter(s.cfg.Rate.RequestsPerMinute, time.Minute)
		s.router.Use(s.limiter.middleware(s))
	}
}

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes() {
	s.router.Get("/healthz", s.handleHealth)
	if s.metrics != nil {
		s.router.Method(http.MethodGet, "/metrics", s.metrics.Handler())
	}

	s.router.Group(func(r chi.Router) {
		r.Use(s.clientMiddleware)

		// Pages
		r.Get("/", s.handleIndex)
		r.Post("/generate", s.handleGenerate)
		r.Post("/upload", s.handleUpload)
		r.Post("/layout", s.handleLayout)
		r.Post("/clear", s.handleClear)
		r.Post("/print", s.handlePrintRequest)

		// Saved sheets
		r.Get("/sheets/{id}/print", s.handlePrint)
		r.Get("/sheets/{id}/labels/{index}.png", s.handleLabel)

		// API routes
		r.Route("/api", func(r chi.Router) {
			r.Post("/generate", s.handleAPIGenerate)
		})
	})
}

// Start begins listening for HTTP requests.
func (s *Server) Start(addr string) error {
	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
		IdleTimeout:  s.cfg.Server.IdleTimeout,
	}

	slog.Info("starting server", "addr", addr)
	return s.server.ListenAndServe()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.limiter != nil {
		s.limiter.Close()
	}
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Router returns the underlying chi router for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// securityHeaders adds security headers to all responses. With csp enabled,
// inline styles and scripts are allowed only with a per-request nonce,
// which is handed to the views through the templ context.
func securityHeaders(csp bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			h.Set("X-Content-Type-Options", "nosniff")
			h.Set("X-Frame-Options", "DENY")
			h.Set("Referrer-Policy", "strict-origin-when-cross-origin")

			if csp {
				nonce := uuid.NewString()
				h.Set("Content-Security-Policy",
					"default-src 'self'; "+
						"script-src 'nonce-"+nonce+"'; "+
						"style-src 'nonce-"+nonce+"'; "+
						"img-src 'self' data:; "+
						"form-action 'self'; "+
						"frame-ancestors 'none'")
				r = r.WithContext(templ.WithNonce(r.Context(), nonce))
			}

			next.ServeHTTP(w, r)
		})
	}
}

// writeJSON encodes v as JSON and writes it to w.
// Logs encoding errors since headers are already sent.
func writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.FromContext(r.Context()).Error("json encode error", "error", err)
	}
}

// render writes a templ component as an HTML response.
func render(w http.ResponseWriter, r *http.Request, status int, c templ.Component) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := c.Render(r.Context(), w); err != nil {
		logging.FromContext(r.Context()).Error("render error", "error", err)
	}
}
