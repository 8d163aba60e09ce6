// Package main is the entry point for the Amethyst CDN server.
// It serves uploads and downloads over HTTP and runs the expiry and purge sweeps.
package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/prn-tf/amethyst-cdn/internal/auth"
	"github.com/prn-tf/amethyst-cdn/internal/bootstrap"
	"github.com/prn-tf/amethyst-cdn/internal/config"
	"github.com/prn-tf/amethyst-cdn/internal/handler"
	"github.com/prn-tf/amethyst-cdn/internal/logging"
	"github.com/prn-tf/amethyst-cdn/internal/metrics"
	"github.com/prn-tf/amethyst-cdn/internal/service"
	"github.com/prn-tf/amethyst-cdn/internal/throttle"
)

// Version information (set at build time)
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

const firstRunBanner = "Thank you for downloading the Amethyst Studio Content Distribution Service. " +
	"No accounts exist yet: the first account to register becomes the administrator."

func main() {
	zerolog.TimeFieldFormat = time.RFC3339Nano
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	if err := config.LoadEnvFile(os.Getenv("CDN_ENV_FILE")); err != nil {
		log.Fatal().Err(err).Msg("Failed to load env file")
	}
	cfg, err := config.Load(os.Getenv("CDN_CONFIG"))
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logger := logging.New(cfg.Logging)
	log.Logger = logger

	logger.Info().
		Str("version", Version).
		Str("build_time", BuildTime).
		Str("git_commit", GitCommit).
		Msg("Starting Amethyst CDN server")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialize infrastructure")
	}
	defer app.Close()

	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.New()
	}

	group := throttle.NewGroup(cfg.RateLimit.BytesPerSecond, cfg.RateLimit.ChunkSize)
	m.RegisterActiveStreams(group.Active)
	if group.Unlimited() {
		logger.Info().Msg("Bandwidth throttle disabled")
	} else {
		logger.Info().Int64("bytes_per_second", cfg.RateLimit.BytesPerSecond).Msg("Bandwidth throttle enabled")
	}

	identity := service.NewIdentityService(app.Repos.User, app.Repos.Namespace, m, logger, cfg.Identity.NamespaceAttempts)
	content := service.NewContentService(app.Repos.Content, app.Backend, m, logger, cfg.Identity.ContentAttempts)
	delivery := service.NewDeliveryService(app.Repos.Namespace, app.Repos.Content, app.Backend, group, m, logger,
		service.DeliveryConfig{EscapeAllHTML: cfg.Portal.EscapeAllHTML})

	users, err := identity.CountUsers(ctx)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to count users")
	}
	if users == 0 {
		logger.Info().Msg(firstRunBanner)
	}

	lifecycle := service.NewLifecycleService(app.Repos.Content, app.Backend, app.Locker, m, logger, service.LifecycleConfig{
		ExpireInterval: cfg.Lifecycle.ExpireInterval,
		PurgeInterval:  cfg.Lifecycle.PurgeInterval,
		BatchSize:      cfg.Lifecycle.BatchSize,
	})
	if cfg.Lifecycle.Enabled {
		lifecycle.Start()
		defer lifecycle.Stop()
	}

	router := handler.NewRouter(handler.RouterConfig{
		IdentityService: identity,
		ContentService:  content,
		DeliveryService: delivery,
		Guard:           auth.NewGuard(app.Repos.User, logger),
		Metrics:         m,
		Portal:          cfg.Portal,
		Server:          cfg.Server,
		CORS:            cfg.CORS,
		RateLimit:       cfg.RateLimit.Enabled,
		Logger:          logger,
	})

	server := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	var metricsServer *http.Server
	if m != nil {
		mux := chi.NewRouter()
		mux.Handle(cfg.Metrics.Path, m.Handler())
		metricsServer = &http.Server{
			Addr:              net.JoinHostPort(cfg.Server.Host, strconv.Itoa(cfg.Metrics.Port)),
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		}
		go serve(metricsServer, logger, "metrics")
	}

	go serve(server, logger, "http")

	<-ctx.Done()
	logger.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("HTTP server shutdown failed")
	}
	if metricsServer != nil {
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("Metrics server shutdown failed")
		}
	}
	logger.Info().Msg("Server stopped")
}

func serve(server *http.Server, logger zerolog.Logger, name string) {
	logger.Info().Str("server", name).Str("addr", server.Addr).Msg("Listening")
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal().Err(err).Str("server", name).Msg("Server failed")
	}
}
