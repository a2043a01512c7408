// Package main is the entry point for the opsboard dashboard server.
// It wires all dependencies together and starts the HTTP server.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/saborverde/opsboard/internal/config"
	"github.com/saborverde/opsboard/internal/entity"
	"github.com/saborverde/opsboard/internal/observability"
	"github.com/saborverde/opsboard/internal/orders"
	"github.com/saborverde/opsboard/internal/restclient"
	"github.com/saborverde/opsboard/internal/transform"
	"github.com/saborverde/opsboard/internal/transport"
)

// Build-time variables set via ldflags:
//
//	go build -ldflags "-X main.version=1.0.0 -X main.commit=abc1234"
var (
	version = "dev"
	commit  = "unknown"
)

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "config.yaml", "path to configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		return 1
	}

	logger, err := observability.NewLogger(cfg.Observability)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger error: %v\n", err)
		return 1
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	tracingShutdown, err := observability.InitTracing(ctx, cfg.Observability.Tracing, "opsboard", version)
	if err != nil {
		logger.Error("tracing initialization failed", zap.Error(err))
		return 1
	}

	metrics := observability.InitMetrics(prometheus.DefaultRegisterer)

	// Load entity definitions, validate, build registry.
	transforms := transform.NewRegistry()
	loader := entity.NewLoader()
	defs, err := loader.LoadAll(cfg.Definitions.Directories)
	if err != nil {
		logger.Error("definition loading failed", zap.Error(err))
		return 1
	}

	builder := entity.NewBuilder(transforms)
	builder.RegisterWrapper("order_status", orders.Wrap)

	validator := entity.NewValidator(transforms)
	validator.BindTo(builder)
	if verrs := validator.Validate(defs); len(verrs) > 0 {
		for _, ve := range verrs {
			logger.Error("definition validation error", zap.String("error", ve.Error()))
		}
		logger.Error("definition validation failed", zap.Int("errors", len(verrs)))
		return 1
	}

	registry := entity.NewRegistry(defs)
	metrics.SetDefinitionsLoaded(float64(len(defs)))

	// One authenticated REST client per configured backend service.
	backends := make(map[string]transport.Backend, len(cfg.Services))
	backendChecks := make(map[string]observability.HealthChecker, len(cfg.Services))
	for id, svc := range cfg.Services {
		tokens, err := buildTokenSource(svc.Auth)
		if err != nil {
			logger.Error("token source initialization failed",
				zap.String("service_id", id), zap.Error(err))
			return 1
		}
		client := restclient.New(svc, tokens, logger.With(zap.String("service_id", id)))
		backends[id] = client
		backendChecks[id] = client
	}

	dashboard := transport.NewDashboard(registry, builder, backends, metrics, logger)

	jwks := transport.NewJWKSCache(cfg.Identity.JWKSURL, cfg.Identity.JWKSCacheTTL, logger)

	readiness := observability.ReadinessChecks{
		DefinitionsLoaded: func() bool { return len(registry.All()) > 0 },
		Backends:          backendChecks,
	}

	router := transport.NewRouter(transport.Dependencies{
		Config:       cfg,
		Logger:       logger,
		Dashboard:    dashboard,
		Metrics:      metrics,
		Readiness:    readiness,
		Authenticate: transport.Authenticator(cfg.Identity, jwks),
	})

	var handler http.Handler = router
	if cfg.Observability.Tracing.Enabled {
		handler = observability.TracingMiddleware(handler)
	}

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// SIGHUP reloads entity definitions without a restart.
	bgCtx, bgCancel := context.WithCancel(ctx)
	defer bgCancel()
	go runDefinitionReloader(bgCtx, reloaderDeps{
		cfg:       cfg.Definitions,
		loader:    loader,
		validator: validator,
		registry:  registry,
		dashboard: dashboard,
		metrics:   metrics,
		logger:    logger,
	})
	go runSessionSweeper(bgCtx, dashboard, cfg.Sessions.IdleTimeout, logger)

	logger.Info("server started",
		zap.Int("port", cfg.Server.Port),
		zap.String("version", version),
		zap.String("commit", commit),
		zap.Int("definitions", len(defs)),
	)

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown initiated")
	case err := <-errCh:
		logger.Error("server error", zap.Error(err))
		return 1
	}

	shutdownTimeout := cfg.Server.ShutdownTimeout
	if shutdownTimeout == 0 {
		shutdownTimeout = 30 * time.Second
	}
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown error", zap.Error(err))
	}

	bgCancel()

	if err := tracingShutdown(shutdownCtx); err != nil {
		logger.Error("tracing shutdown error", zap.Error(err))
	}

	logger.Info("shutdown complete")
	return 0
}

// buildTokenSource creates the token source declared in a service's auth
// block. The client secret is read from the named environment variable.
func buildTokenSource(cfg config.ServiceAuthConfig) (restclient.TokenSource, error) {
	switch cfg.Strategy {
	case "", "none":
		return restclient.StaticTokenSource(""), nil
	case "static":
		return restclient.StaticTokenSource(os.Getenv(cfg.ClientSecretEnv)), nil
	case "client_credentials":
		secret := os.Getenv(cfg.ClientSecretEnv)
		if secret == "" {
			return nil, fmt.Errorf("auth: %s environment variable not set", cfg.ClientSecretEnv)
		}
		return &restclient.ClientCredentialsSource{
			Endpoint:     cfg.TokenEndpoint,
			ClientID:     cfg.ClientID,
			ClientSecret: secret,
		}, nil
	default:
		return nil, fmt.Errorf("auth: unsupported strategy %q", cfg.Strategy)
	}
}

// runSessionSweeper periodically closes edit sessions that have seen no
// activity for maxIdle. A zero timeout disables the sweep entirely.
func runSessionSweeper(ctx context.Context, dashboard *transport.Dashboard, maxIdle time.Duration, logger *zap.Logger) {
	if maxIdle <= 0 {
		return
	}
	interval := maxIdle / 4
	if interval < time.Minute {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := dashboard.CloseIdleSessions(maxIdle); n > 0 {
				logger.Info("idle edit sessions closed", zap.Int("count", n))
			}
		}
	}
}

type reloaderDeps struct {
	cfg       config.DefinitionsConfig
	loader    *entity.Loader
	validator *entity.Validator
	registry  *entity.Registry
	dashboard *transport.Dashboard
	metrics   *observability.Metrics
	logger    *zap.Logger
}

// runDefinitionReloader swaps the definition registry on SIGHUP. A reload
// that fails to load or validate keeps the current registry untouched.
func runDefinitionReloader(ctx context.Context, deps reloaderDeps) {
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)

	for {
		select {
		case <-ctx.Done():
			return
		case <-hup:
		}

		defs, err := deps.loader.LoadAll(deps.cfg.Directories)
		if err != nil {
			deps.logger.Error("definition reload failed", zap.Error(err))
			deps.metrics.RecordDefinitionReload("failure")
			continue
		}
		if verrs := deps.validator.Validate(defs); len(verrs) > 0 {
			for _, ve := range verrs {
				deps.logger.Error("definition validation error", zap.String("error", ve.Error()))
			}
			deps.metrics.RecordDefinitionReload("failure")
			continue
		}
		if deps.cfg.StrictChecksums {
			if verrs := entity.CheckVersionBumps(deps.registry.All(), defs); len(verrs) > 0 {
				for _, ve := range verrs {
					deps.logger.Error("definition reload rejected", zap.String("error", ve.Error()))
				}
				deps.metrics.RecordDefinitionReload("failure")
				continue
			}
		}

		deps.registry.Replace(defs)
		deps.dashboard.Reset()
		deps.metrics.SetDefinitionsLoaded(float64(len(defs)))
		deps.metrics.RecordDefinitionReload("success")
		deps.logger.Info("definitions reloaded", zap.Int("definitions", len(defs)))
	}
}
