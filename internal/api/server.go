package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/soreon/mailout/internal/campaign"
	"github.com/soreon/mailout/internal/config"
	"github.com/soreon/mailout/internal/history"
	"github.com/soreon/mailout/internal/metrics"
	"github.com/soreon/mailout/internal/recipient"
	"github.com/soreon/mailout/internal/sender"
	"github.com/soreon/mailout/internal/template"
)

// Deps bundles the services the API server needs
type Deps struct {
	Senders      *sender.Storage
	Groups       *recipient.Storage
	Templates    *template.Storage
	Engine       *template.Engine
	Personalizer *campaign.Personalizer
	Dispatcher   *campaign.Dispatcher
	History      *history.Repository // nil disables history endpoints
	Metrics      http.Handler        // nil disables /metrics
}

// Server is the HTTP API server
type Server struct {
	router     *chi.Mux
	httpServer *http.Server
	deps       Deps
	config     *config.Config
	logger     *slog.Logger
	startTime  time.Time
}

// NewServer creates a new API server
func NewServer(deps Deps, cfg *config.Config, logger *slog.Logger) *Server {
	s := &Server{
		router:    chi.NewRouter(),
		deps:      deps,
		config:    cfg,
		logger:    logger,
		startTime: time.Now(),
	}

	s.setupRoutes()
	return s
}

// setupRoutes configures the HTTP routes
func (s *Server) setupRoutes() {
	// Middleware
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(s.loggingMiddleware)
	s.router.Use(metrics.HTTPMiddleware)
	s.router.Use(middleware.Recoverer)

	// Health check and metrics (no auth required)
	s.router.Get("/health", s.handleHealth)
	if s.deps.Metrics != nil {
		s.router.Method(http.MethodGet, "/metrics", s.deps.Metrics)
	}

	// API v1 routes (auth required)
	s.router.Route("/api/v1", func(r chi.Router) {
		r.Use(s.authMiddleware)

		r.Route("/senders", func(r chi.Router) {
			r.Get("/", s.handleListSenders)
			r.Post("/", s.handleCreateSender)
			r.Get("/default", s.handleGetDefaultSender)
			r.Get("/{id}", s.handleGetSender)
			r.Put("/{id}", s.handleUpdateSender)
			r.Delete("/{id}", s.handleDeleteSender)
		})

		r.Route("/groups", func(r chi.Router) {
			r.Get("/", s.handleListGroups)
			r.Post("/", s.handleCreateGroup)
			r.Post("/upload", s.handleUploadGroup)
			r.Get("/{id}", s.handleGetGroup)
			r.Put("/{id}", s.handleUpdateGroup)
			r.Delete("/{id}", s.handleDeleteGroup)
		})

		r.Route("/templates", func(r chi.Router) {
			r.Get("/", s.handleListTemplates)
			r.Post("/", s.handleCreateTemplate)
			r.Post("/validate", s.handleValidateTemplate)
			r.Post("/preview", s.handlePreviewTemplate)
			r.Get("/{id}", s.handleGetTemplate)
			r.Put("/{id}", s.handleUpdateTemplate)
			r.Delete("/{id}", s.handleDeleteTemplate)
		})

		r.Post("/send", s.handleSend)
		r.Post("/send/test", s.handleSendTest)
		r.Post("/smtp/verify", s.handleVerifySMTP)

		if s.deps.History != nil {
			r.Get("/history", s.handleListHistory)
			r.Get("/history/{id}", s.handleGetHistoryRun)
		}
	})
}

// Router returns the underlying router, used by tests
func (s *Server) Router() http.Handler {
	return s.router
}

// ListenAndServe starts the HTTP server
func (s *Server) ListenAndServe() error {
	s.httpServer = &http.Server{
		Addr:           s.config.API.ListenAddr,
		Handler:        s.router,
		ReadTimeout:    s.config.API.ReadTimeout,
		WriteTimeout:   s.config.API.WriteTimeout,
		IdleTimeout:    s.config.API.IdleTimeout,
		MaxHeaderBytes: s.config.API.MaxHeaderBytes,
	}

	s.logger.Info("starting HTTP API server", "addr", s.config.API.ListenAddr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP API server")
	if s.httpServer != nil {
		return s.httpServer.Shutdown(ctx)
	}
	return nil
}
