// Package web provides the HTTP server for filterit sessions.
package web

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/JonMunkholm/filterit/internal/audit"
	"github.com/JonMunkholm/filterit/internal/config"
	"github.com/JonMunkholm/filterit/internal/metrics"
	mw "github.com/JonMunkholm/filterit/internal/web/middleware"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Server is the HTTP front end for filtering sessions.
type Server struct {
	cfg      *config.Config
	sessions *Registry
	metrics  *metrics.Metrics
	audit    audit.Recorder
	gatherer prometheus.Gatherer
	limiter  *mw.RateLimiter
	loads    *loadLimiter
	router   *chi.Mux
	server   *http.Server
}

// Options carries the server's collaborators. Zero values get working
// defaults: a private Prometheus registry and audit to the log.
type Options struct {
	Audit    audit.Recorder
	Registry *prometheus.Registry
}

// NewServer creates a Server from cfg.
func NewServer(cfg *config.Config, opts Options) *Server {
	reg := opts.Registry
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	rec := opts.Audit
	if rec == nil {
		rec = audit.NewLogRecorder(nil)
	}
	m := metrics.New(reg)

	s := &Server{
		cfg:      cfg,
		metrics:  m,
		audit:    rec,
		gatherer: reg,
		router:   chi.NewRouter(),
		loads:    newLoadLimiter(cfg.Upload.MaxConcurrent, cfg.Upload.MaxWait),
		sessions: NewRegistry(RegistryConfig{
			Lists:       cfg.Filter.MatchLists(),
			MaxSessions: cfg.Session.MaxSessions,
			IdleTimeout: cfg.Session.IdleTimeout,
			Metrics:     m,
			Audit:       rec,
		}),
	}
	if cfg.Rate.Enabled {
		s.limiter = mw.NewRateLimiter(cfg.Rate.RequestsPerMinute, cfg.Rate.Burst)
	}
	s.setupMiddleware()
	s.setupRoutes()
	return s
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(mw.TrustedRealIP(s.cfg.Security.TrustedProxies))
	s.router.Use(mw.Logger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Compress(5))
	if s.cfg.Server.RequestTimeout > 0 {
		s.router.Use(middleware.Timeout(s.cfg.Server.RequestTimeout))
	}
	s.router.Use(s.securityHeaders)

	if s.limiter != nil {
		s.router.Use(s.limiter.Middleware(func(w http.ResponseWriter, r *http.Request) {
			s.metrics.RateLimited.Inc()
			s.respondError(w, r, errors.New("rate limit exceeded"), http.StatusTooManyRequests)
		}))
	}
}

func (s *Server) setupRoutes() {
	s.router.Get("/", s.handleIndex)
	s.router.Get("/healthz", s.handleHealth)
	s.router.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))

	s.router.Route("/api", func(r chi.Router) {
		r.Use(mw.APIKeyAuth(&s.cfg.Security, s.rejectAPIKey))

		r.Post("/sessions", s.handleCreateSession)
		r.Route("/sessions/{id}", func(r chi.Router) {
			r.Delete("/", s.handleDeleteSession)
			r.Post("/file", s.handleUpload)
			r.Get("/headers", s.handleHeaders)
			r.Post("/filter", s.handleFilter)
			r.Post("/confirm", s.handleConfirm)
			r.Delete("/pending", s.handleDiscard)
			r.Get("/export", s.handleExport)
			r.Get("/status", s.handleStatus)
			r.Get("/history", s.handleHistory)
		})
	})
}

// Start serves until Shutdown is called. The session sweeper and rate
// limiter pruning stop when ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	go s.sessions.StartSweeper(ctx, s.cfg.Session.SweepInterval)
	if s.limiter != nil {
		go s.limiter.Run(ctx, time.Minute)
	}

	s.server = &http.Server{
		Addr:         s.cfg.Server.Addr(),
		Handler:      s.router,
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
		IdleTimeout:  s.cfg.Server.IdleTimeout,
	}

	slog.Info("starting server", "addr", s.server.Addr)
	return s.server.ListenAndServe()
}

// Shutdown waits for in-flight file loads, then gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if n := s.loads.activeCount(); n > 0 {
		slog.Info("waiting for uploads to finish loading", "active", n)
		if err := s.loads.waitForDrain(ctx); err != nil {
			slog.Warn("uploads did not finish in time", "error", err)
		}
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

// Sessions returns the session registry.
func (s *Server) Sessions() *Registry {
	return s.sessions
}

func (s *Server) securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		if s.cfg.Security.EnableCSP {
			w.Header().Set("Content-Security-Policy", "default-src 'self'; style-src 'self' 'unsafe-inline'")
		}
		next.ServeHTTP(w, r)
	})
}

// writeJSON encodes v as JSON with the given status.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("json encode error", "error", err)
	}
}
