package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/soreon/mailout/internal/api"
	"github.com/soreon/mailout/internal/campaign"
	"github.com/soreon/mailout/internal/config"
	"github.com/soreon/mailout/internal/dkim"
	"github.com/soreon/mailout/internal/email"
	"github.com/soreon/mailout/internal/history"
	"github.com/soreon/mailout/internal/metrics"
	"github.com/soreon/mailout/internal/recipient"
	"github.com/soreon/mailout/internal/sender"
	"github.com/soreon/mailout/internal/smtp"
	"github.com/soreon/mailout/internal/store"
	"github.com/soreon/mailout/internal/template"
)

// App is the main application
type App struct {
	config     *config.Config
	db         *bolt.DB
	historyDB  *history.DB
	apiServer  *api.Server
	dispatcher *campaign.Dispatcher
	metrics    *metrics.Metrics
	logger     *slog.Logger
	startTime  time.Time
}

// New creates a new application
func New(cfg *config.Config) (*App, error) {
	logger := setupLogger(cfg.Logging)

	db, err := store.Open(cfg.Storage.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open record store: %w", err)
	}

	engine := template.NewEngine()

	senders, err := sender.NewStorage(db)
	if err != nil {
		return nil, fmt.Errorf("failed to create sender storage: %w", err)
	}
	groups, err := recipient.NewStorage(db)
	if err != nil {
		return nil, fmt.Errorf("failed to create group storage: %w", err)
	}
	templates, err := template.NewStorage(db, engine)
	if err != nil {
		return nil, fmt.Errorf("failed to create template storage: %w", err)
	}

	// Create SMTP client
	smtpClient := smtp.NewClient(smtp.Config{
		Host:     cfg.SMTP.Host,
		Port:     cfg.SMTP.Port,
		Secure:   cfg.SMTP.Secure,
		Username: cfg.SMTP.Username,
		Password: cfg.SMTP.Password,
	}, cfg.Server.Hostname, cfg.SMTP.Timeout, logger.With("component", "smtp_client"))

	if cfg.DKIM.Enabled {
		signer, err := dkim.NewSignerFromFile(cfg.DKIM.KeyFile, cfg.DKIM.Domain, cfg.DKIM.Selector)
		if err != nil {
			return nil, fmt.Errorf("failed to setup DKIM: %w", err)
		}
		smtpClient.SetDKIMSigner(signer)
		logger.Info("DKIM signing enabled", "domain", cfg.DKIM.Domain, "selector", cfg.DKIM.Selector)
	}

	m := metrics.New()
	metrics.SetGlobal(m)

	dispatcher := campaign.NewDispatcher(smtpClient, logger.With("component", "dispatcher"))
	dispatcher.OnProgress(func(p campaign.Progress) {
		domain := email.ExtractDomainOrDefault(p.Result.To, "unknown")
		if p.Result.Success {
			metrics.IncMessagesSent(domain)
		} else {
			metrics.IncMessagesFailed(domain, "delivery")
		}
	})

	// Open send history store when enabled
	var historyDB *history.DB
	var repo *history.Repository
	if cfg.History.Enabled {
		historyDB, err = history.New(cfg.History.Path)
		if err != nil {
			return nil, fmt.Errorf("failed to open history store: %w", err)
		}
		if err := historyDB.Migrate(); err != nil {
			return nil, fmt.Errorf("failed to migrate history store: %w", err)
		}
		repo = history.NewRepository(historyDB)
		logger.Info("send history enabled", "path", cfg.History.Path)
	}

	apiServer := api.NewServer(api.Deps{
		Senders:      senders,
		Groups:       groups,
		Templates:    templates,
		Engine:       engine,
		Personalizer: campaign.NewPersonalizer(engine),
		Dispatcher:   dispatcher,
		History:      repo,
		Metrics:      m.Handler(),
	}, cfg, logger.With("component", "api"))

	return &App{
		config:     cfg,
		db:         db,
		historyDB:  historyDB,
		apiServer:  apiServer,
		dispatcher: dispatcher,
		metrics:    m,
		logger:     logger,
		startTime:  time.Now(),
	}, nil
}

// Run starts all components and waits for shutdown
func (a *App) Run(ctx context.Context) error {
	a.logger.Info("starting mailout",
		"hostname", a.config.Server.Hostname,
		"api_addr", a.config.API.ListenAddr,
		"smtp_host", a.config.SMTP.Host,
		"smtp_port", a.config.SMTP.Port,
	)

	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	errCh := make(chan error, 1)

	go func() {
		if err := a.apiServer.ListenAndServe(); err != nil {
			errCh <- fmt.Errorf("api server: %w", err)
		}
	}()

	// Keep system gauges current
	go a.updateSystemMetrics(ctx)

	select {
	case <-ctx.Done():
		a.logger.Info("shutdown signal received")
	case err := <-errCh:
		a.logger.Error("server error", "error", err)
		cancel()
	}

	return a.Shutdown(context.Background())
}

func (a *App) updateSystemMetrics(ctx context.Context) {
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			a.metrics.UptimeSeconds.Set(time.Since(a.startTime).Seconds())
			a.metrics.Goroutines.Set(float64(runtime.NumGoroutine()))
		}
	}
}

// Shutdown gracefully shuts down all components
func (a *App) Shutdown(ctx context.Context) error {
	a.logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if err := a.apiServer.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("api server shutdown error", "error", err)
	}

	if a.historyDB != nil {
		if err := a.historyDB.Close(); err != nil {
			a.logger.Error("history store close error", "error", err)
		}
	}

	if err := a.db.Close(); err != nil {
		a.logger.Error("record store close error", "error", err)
	}

	a.logger.Info("shutdown complete")
	return nil
}

// setupLogger creates a logger based on configuration
func setupLogger(cfg config.LoggingConfig) *slog.Logger {
	var handler slog.Handler

	level := slog.LevelInfo
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	opts := &slog.HandlerOptions{
		Level: level,
	}

	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	return slog.New(handler)
}
