// Package server exposes ingestion and chat over HTTP.
//
// Routes:
//
//	POST /ingest           multipart upload, returns {"job_id","status":"queued"}
//	GET  /status/{jobID}   job state, or 404 {"detail":"Job not found"}
//	POST /chat             {"question"} -> {"answer"}
//	GET  /healthz          liveness
//
// Handlers never write job state beyond creating the entry; the runner's
// worker owns every later update.
package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/poiesic/ragline/jobs"
	"github.com/poiesic/ragline/uploads"
)

// DefaultRequestTimeout bounds request handling for every route except
// /ingest, whose uploads may take arbitrarily long. Background jobs are not
// subject to it.
const DefaultRequestTimeout = 60 * time.Second

// Submitter schedules a saved upload for background ingestion.
// *jobs.Runner satisfies it.
type Submitter interface {
	Submit(job jobs.Job) error
}

// Answerer answers a question from indexed content.
// *search.Searcher satisfies it.
type Answerer interface {
	Answer(ctx context.Context, question string) (string, error)
}

// Server routes HTTP requests to the job registry, runner and searcher.
type Server struct {
	registry *jobs.Registry
	runner   Submitter
	uploads  uploads.Store
	chat     Answerer
	logger   *slog.Logger

	router     chi.Router
	httpServer *http.Server
}

type serverConfig struct {
	addr           string
	requestTimeout time.Duration
	allowedOrigins []string
	logger         *slog.Logger
}

// Option configures a Server.
type Option func(*serverConfig)

// WithAddr sets the listen address.
// Default is ":8000".
func WithAddr(addr string) Option {
	return func(c *serverConfig) {
		if addr != "" {
			c.addr = addr
		}
	}
}

// WithRequestTimeout sets the per-request handling timeout. It does not
// apply to /ingest.
// Default is DefaultRequestTimeout.
func WithRequestTimeout(d time.Duration) Option {
	return func(c *serverConfig) {
		if d > 0 {
			c.requestTimeout = d
		}
	}
}

// WithAllowedOrigins sets the CORS origins.
// Default allows any origin.
func WithAllowedOrigins(origins ...string) Option {
	return func(c *serverConfig) {
		if len(origins) > 0 {
			c.allowedOrigins = origins
		}
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(c *serverConfig) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// New creates a server. It does not start listening.
func New(registry *jobs.Registry, runner Submitter, store uploads.Store, chat Answerer, opts ...Option) (*Server, error) {
	if registry == nil {
		return nil, ErrRegistryRequired
	}
	if runner == nil {
		return nil, ErrRunnerRequired
	}
	if store == nil {
		return nil, ErrUploadStoreRequired
	}
	if chat == nil {
		return nil, ErrAnswererRequired
	}

	cfg := serverConfig{
		addr:           ":8000",
		requestTimeout: DefaultRequestTimeout,
		allowedOrigins: []string{"*"},
		logger:         slog.Default(),
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	s := &Server{
		registry: registry,
		runner:   runner,
		uploads:  store,
		chat:     chat,
		logger:   cfg.logger.With("component", "http-server"),
	}
	s.router = s.routes(cfg)
	s.httpServer = &http.Server{
		Addr:              cfg.addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s, nil
}

func (s *Server) routes(cfg serverConfig) chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	// Uploads stream for as long as the client keeps sending.
	r.Post("/ingest", s.handleIngest)

	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(cfg.requestTimeout))
		r.Get("/healthz", s.handleHealth)
		r.Get("/status/{jobID}", s.handleStatus)
		r.Post("/chat", s.handleChat)
	})

	return r
}

// Handler returns the routed handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Addr returns the configured listen address.
func (s *Server) Addr() string {
	return s.httpServer.Addr
}

// ListenAndServe serves until Shutdown is called. It returns nil after a
// clean shutdown.
func (s *Server) ListenAndServe() error {
	s.logger.Info("listening", "addr", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown stops accepting connections and waits for active requests.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down")
	return s.httpServer.Shutdown(ctx)
}
