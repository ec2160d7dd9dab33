// Package main runs the address book HTTP service. Startup is
// fail-fast: configuration, identity provider discovery, the contact
// store connection, and the token verifier must all succeed before the
// listener is opened, otherwise the process logs the error and exits
// with a non-zero status.
//
// Configuration is environment-driven with the ADDRESSBOOK_ prefix:
//
//	ADDRESSBOOK_ISSUER_URL          identity provider base URL (required)
//	ADDRESSBOOK_DIRECTORY_BASE_URL  directory service base URL (required)
//	ADDRESSBOOK_STORE_BACKEND       "redis" or "postgres" (default redis)
//	ADDRESSBOOK_REDIS_URI           Redis connection string
//	ADDRESSBOOK_POSTGRES_URI        PostgreSQL connection string
//	ADDRESSBOOK_LISTEN_ADDR         HTTP listen address (default :8080)
//	ADDRESSBOOK_CREDENTIAL_MODE     "forward" or "service-key"
//	ADDRESSBOOK_INTERNAL_API_KEY    service key for service-key mode
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/StricklySoft/addressbook/pkg/addressbook"
	"github.com/StricklySoft/addressbook/pkg/auth"
	"github.com/StricklySoft/addressbook/pkg/clients/directory"
	postgresclient "github.com/StricklySoft/addressbook/pkg/clients/postgres"
	redisclient "github.com/StricklySoft/addressbook/pkg/clients/redis"
	"github.com/StricklySoft/addressbook/pkg/config"
	"github.com/StricklySoft/addressbook/pkg/lifecycle"
)

const (
	serviceName = "addressbook"

	// version is overridable at build time with
	// -ldflags "-X main.version=...".
	defaultVersion = "0.1.0"
)

var version = defaultVersion

const (
	storeBackendRedis    = "redis"
	storeBackendPostgres = "postgres"
)

// ServiceConfig holds the top-level process configuration. Client and
// verifier settings are loaded separately into their own config structs
// using the same environment prefix.
type ServiceConfig struct {
	ListenAddr      string        `env:"LISTEN_ADDR" envDefault:":8080"`
	StoreBackend    string        `env:"STORE_BACKEND" envDefault:"redis"`
	CredentialMode  string        `env:"CREDENTIAL_MODE" envDefault:"forward"`
	InternalAPIKey  string        `env:"INTERNAL_API_KEY"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"15s"`
	ReadTimeout     time.Duration `env:"READ_TIMEOUT" envDefault:"10s"`
	WriteTimeout    time.Duration `env:"WRITE_TIMEOUT" envDefault:"30s"`
}

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := run(logger); err != nil {
		logger.Error("startup failed", "error", err)
		os.Exit(1)
	}
}

func run(logger *slog.Logger) error {
	loader := config.New().WithEnvPrefix("ADDRESSBOOK")

	var cfg ServiceConfig
	if err := loader.Load(&cfg); err != nil {
		return fmt.Errorf("load service configuration: %w", err)
	}
	if cfg.StoreBackend != storeBackendRedis && cfg.StoreBackend != storeBackendPostgres {
		return fmt.Errorf("unsupported store backend %q", cfg.StoreBackend)
	}

	ctx := context.Background()

	// Discovery runs before anything else so an identity provider that
	// does not support RS256 stops the process immediately.
	var verifierCfg auth.VerifierConfig
	if err := loader.Load(&verifierCfg); err != nil {
		return fmt.Errorf("load verifier configuration: %w", err)
	}
	meta, err := auth.Discover(ctx, verifierCfg.IssuerURL, verifierCfg.HTTPClient)
	if err != nil {
		return fmt.Errorf("discover identity provider: %w", err)
	}
	logger.Info("identity provider discovered",
		"issuer", meta.Issuer,
		"jwks_uri", meta.JWKSURI,
	)

	verifier, err := auth.NewVerifier(verifierCfg, meta)
	if err != nil {
		return fmt.Errorf("construct token verifier: %w", err)
	}

	store, closeStore, err := buildStore(ctx, loader, cfg.StoreBackend)
	if err != nil {
		return fmt.Errorf("connect contact store: %w", err)
	}
	logger.Info("contact store connected", "backend", cfg.StoreBackend)

	creds, err := auth.NewCredentialSource(
		auth.CredentialMode(cfg.CredentialMode), auth.Secret(cfg.InternalAPIKey))
	if err != nil {
		closeStore()
		return fmt.Errorf("construct credential source: %w", err)
	}

	var dirCfg directory.Config
	if err := loader.Load(&dirCfg); err != nil {
		closeStore()
		return fmt.Errorf("load directory configuration: %w", err)
	}
	dirClient, err := directory.NewClient(dirCfg, creds)
	if err != nil {
		closeStore()
		return fmt.Errorf("construct directory client: %w", err)
	}

	resolver, err := addressbook.NewResolver(dirClient, store)
	if err != nil {
		closeStore()
		return fmt.Errorf("construct resolver: %w", err)
	}
	handler, err := addressbook.NewHandler(resolver, logger)
	if err != nil {
		closeStore()
		return fmt.Errorf("construct handler: %w", err)
	}

	// Request ID and logging wrap the auth middleware so rejected
	// requests are still logged with a request ID.
	routes := addressbook.RequestIDMiddleware(
		addressbook.LoggingMiddleware(logger)(
			auth.Middleware(verifier)(handler.Routes()),
		),
	)

	srv := &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      routes,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	svc, err := lifecycle.NewServiceBuilder(serviceName, version).
		WithLogger(logger).
		WithOnStart(func(ctx context.Context) error {
			if err := store.Health(ctx); err != nil {
				return err
			}
			return verifier.Health(ctx)
		}).
		WithOnStop(func(ctx context.Context) error {
			closeStore()
			return nil
		}).
		WithHealthCheck("contact-store", store.Health).
		WithHealthCheck("verifier", verifier.Health).
		OnStateChange(func(old, new lifecycle.State) {
			logger.Info("state transition",
				"from", old.String(),
				"to", new.String(),
			)
		}).
		Build()
	if err != nil {
		closeStore()
		return fmt.Errorf("build service: %w", err)
	}

	if err := svc.Start(ctx); err != nil {
		closeStore()
		return fmt.Errorf("start service: %w", err)
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", cfg.ListenAddr)
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info("received signal, shutting down", "signal", sig.String())
	case err := <-errCh:
		_ = svc.SetState(lifecycle.StateFailed)
		closeStore()
		return fmt.Errorf("serve: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown failed", "error", err)
	}
	if err := svc.Stop(shutdownCtx); err != nil {
		return fmt.Errorf("stop service: %w", err)
	}

	logger.Info("service stopped")
	return nil
}

// buildStore connects the configured contact store backend and returns
// the store together with a close function for shutdown. The close
// function is safe to call more than once.
func buildStore(ctx context.Context, loader *config.Loader, backend string) (addressbook.ContactStore, func(), error) {
	switch backend {
	case storeBackendRedis:
		var redisCfg redisclient.Config
		if err := loader.Load(&redisCfg); err != nil {
			return nil, nil, err
		}
		client, err := redisclient.NewClient(ctx, redisCfg)
		if err != nil {
			return nil, nil, err
		}
		store, err := addressbook.NewRedisStore(client)
		if err != nil {
			client.Close()
			return nil, nil, err
		}
		var once sync.Once
		return store, func() { once.Do(func() { client.Close() }) }, nil

	case storeBackendPostgres:
		var pgCfg postgresclient.Config
		if err := loader.Load(&pgCfg); err != nil {
			return nil, nil, err
		}
		client, err := postgresclient.NewClient(ctx, pgCfg)
		if err != nil {
			return nil, nil, err
		}
		store, err := addressbook.NewPostgresStore(client)
		if err != nil {
			client.Close()
			return nil, nil, err
		}
		if err := store.EnsureSchema(ctx); err != nil {
			client.Close()
			return nil, nil, err
		}
		var once sync.Once
		return store, func() { once.Do(func() { client.Close() }) }, nil

	default:
		return nil, nil, fmt.Errorf("unsupported store backend %q", backend)
	}
}
