package daemon

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/astra-mentor/astra/internal/api"
	"github.com/astra-mentor/astra/internal/app/gamification"
	"github.com/astra-mentor/astra/internal/app/mentor"
	"github.com/astra-mentor/astra/internal/domain"
	"github.com/astra-mentor/astra/internal/health"
	"github.com/astra-mentor/astra/internal/infra/logger"
	"github.com/astra-mentor/astra/internal/infra/openai"
	"github.com/astra-mentor/astra/internal/infra/sqlite"
)

// Version is set at build time.
var Version = "0.1.0"

// Daemon is the core Astra runtime. It wires together all services.
type Daemon struct {
	Config        Config
	Log           *logger.Logger
	DB            *sqlite.DB
	Engine        *gamification.Engine
	Notifications *gamification.NotificationService
	Mentor        *mentor.Service
	Chat          *mentor.ChatService
	Health        *health.Checker
	Server        *api.Server
	cancel        context.CancelFunc
}

// New creates and initializes a Daemon with all services wired.
func New() (*Daemon, error) {
	cfg, err := LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	return NewWithConfig(cfg)
}

// NewWithConfig creates a Daemon with the given configuration.
func NewWithConfig(cfg Config) (*Daemon, error) {
	log, err := logger.New(cfg.Logging.Mode, cfg.Logging.Level)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	dataDir := cfg.Database.Dir
	if dataDir == "" {
		dataDir = astraHome()
	}
	db, err := sqlite.Open(dataDir)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// Gamification
	policy := domain.DefaultNotificationPolicy()
	if cfg.Gamification.NotificationsPerDay > 0 {
		policy.MaxPerDay = cfg.Gamification.NotificationsPerDay
	}
	notifs := gamification.NewNotificationServiceWithPolicy(db, policy)
	eng := gamification.NewEngine(db,
		gamification.WithLogger(log.With("component", "gamification")),
		gamification.WithNotifier(notifs),
	)
	if err := eng.SeedBadges(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("seed badges: %w", err)
	}

	// Mentor
	completer := openai.New(openai.Config{
		APIKey:           cfg.Mentor.APIKey,
		BaseURL:          cfg.Mentor.BaseURL,
		Model:            cfg.Mentor.Model,
		MaxTokens:        cfg.Mentor.MaxTokens,
		Temperature:      cfg.Mentor.Temperature,
		PresencePenalty:  cfg.Mentor.PresencePenalty,
		FrequencyPenalty: cfg.Mentor.FrequencyPenalty,
		Timeout:          parseDuration(cfg.Mentor.Timeout, 30*time.Second),
	})
	mentorSvc := mentor.NewService(completer, log.With("component", "mentor"))
	chat := mentor.NewChatService(mentorSvc, eng, log.With("component", "chat"))

	// Health
	checker := health.NewChecker(db, dataDir, eng.SeedBadges, log.With("component", "health"))

	// API server
	srv := api.NewServer(api.Options{
		Version:        Version,
		CORSOrigins:    cfg.API.CORSOrigins,
		RequestTimeout: parseDuration(cfg.API.RequestTimeout, time.Minute),
		JWTSecret:      cfg.Auth.JWTSecret,
		AuthRequired:   cfg.Auth.Required,
	}, eng, chat, log.With("component", "api"))
	srv.SetNotifications(notifs)
	srv.SetHealth(checker)
	if cfg.Telemetry.Prometheus {
		srv.EnableMetrics()
	}

	if !mentorSvc.Configured() {
		log.Warn("mentor is not configured; chat will answer with the setup message",
			"hint", "set OPENAI_API_KEY or mentor.api_key")
	}
	if cfg.Auth.Required && cfg.Auth.JWTSecret == "" {
		log.Warn("auth.required is set without auth.jwt_secret; requests are not authenticated")
	}

	return &Daemon{
		Config:        cfg,
		Log:           log,
		DB:            db,
		Engine:        eng,
		Notifications: notifs,
		Mentor:        mentorSvc,
		Chat:          chat,
		Health:        checker,
		Server:        srv,
	}, nil
}

// Serve starts the HTTP server and blocks until shutdown.
func (d *Daemon) Serve(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	d.cancel = cancel

	go d.Health.Run(ctx)

	addr := fmt.Sprintf("%s:%d", d.Config.API.Host, d.Config.API.Port)

	httpServer := &http.Server{
		Addr:         addr,
		Handler:      d.Server.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 2 * time.Minute,
		IdleTimeout:  2 * time.Minute,
	}

	// Graceful shutdown on signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	go func() {
		select {
		case <-sigCh:
			d.Log.Info("shutdown signal received")
		case <-ctx.Done():
		}
		cancel()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			d.Log.Warn("http shutdown", "error", err)
		}
	}()

	d.Log.Info("astra serving", "addr", "http://"+addr, "metrics", d.Config.Telemetry.Prometheus,
		"mentor_configured", d.Mentor.Configured())

	if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Close shuts down all daemon resources.
func (d *Daemon) Close() {
	if d.cancel != nil {
		d.cancel()
	}
	if d.DB != nil {
		_ = d.DB.Close()
	}
	if d.Log != nil {
		d.Log.Sync()
	}
}
