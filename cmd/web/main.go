package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"orderdesk/internal/backend"
	"orderdesk/internal/config"
	"orderdesk/internal/db"
	"orderdesk/internal/httpserver"
	"orderdesk/internal/identity"
	"orderdesk/internal/migrate"
	"orderdesk/internal/repository/storage"
	customersvc "orderdesk/internal/service/customer"
	ordersvc "orderdesk/internal/service/order"
	"orderdesk/internal/service/profile"

	"github.com/joho/godotenv"
)

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("load .env: %v", err)
	}
	cfg := config.FromEnv()
	logger := log.New(os.Stdout, "[web] ", log.LstdFlags|log.LUTC|log.Lshortfile)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	repo, checks, closeStorage, err := openStorage(ctx, cfg, logger)
	if err != nil {
		logger.Fatalf("open storage: %v", err)
	}
	defer closeStorage()

	verifier, err := newVerifier(ctx, cfg)
	if err != nil {
		logger.Fatalf("init identity verifier: %v", err)
	}

	api := backend.New(cfg.BackendURL, cfg.BackendTimeout, logger)
	checks["backend"] = api.Ping

	registry := profile.NewRegistry(ctx, repo, verifier, profile.Config{
		Identity: identity.Config{
			SignInURL:   cfg.SignInURL,
			CallbackURL: cfg.PublicURL + "/auth/callback",
		},
		CredentialTTL: cfg.CredentialTTL,
		IdleTimeout:   cfg.ProfileIdleTimeout,
	}, logger)
	defer registry.Close()
	go registry.RunSweeper(ctx, time.Minute)

	srv, err := httpserver.New(cfg.HTTPAddr, logger, httpserver.Deps{
		Profiles:      registry,
		Catalog:       api,
		Customers:     customersvc.New(api, repo, logger),
		Orders:        ordersvc.NewService(api, logger),
		ReadyChecks:   checks,
		CORSOrigins:   cfg.CORSOrigins,
		GuardWait:     cfg.GuardWait,
		AuthRateLimit: cfg.AuthRateLimit,
		SecureCookies: strings.HasPrefix(cfg.PublicURL, "https://"),
	})
	if err != nil {
		logger.Fatalf("init server: %v", err)
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Printf("starting http server on %s (storage=%s verifier=%s credential_ttl=%s)",
			cfg.HTTPAddr, cfg.StorageBackend, cfg.IdentityVerifier, cfg.CredentialTTL)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	stopCh := make(chan os.Signal, 1)
	signal.Notify(stopCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-stopCh:
		logger.Printf("received signal %s, shutting down", sig)
	case err := <-serverErr:
		logger.Printf("server error: %v", err)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Printf("graceful shutdown failed: %v", err)
	} else {
		logger.Printf("server stopped")
	}
}

func openStorage(ctx context.Context, cfg config.Config, logger *log.Logger) (storage.Repository, map[string]httpserver.ReadyCheck, func(), error) {
	checks := make(map[string]httpserver.ReadyCheck)
	switch cfg.StorageBackend {
	case "postgres":
		pool, err := db.Connect(ctx, cfg.DBConnString)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("connect db: %w", err)
		}
		if err := migrate.Apply(ctx, pool, logger); err != nil {
			pool.Close()
			return nil, nil, nil, fmt.Errorf("apply migrations: %w", err)
		}
		checks["storage"] = pool.Ping
		return storage.NewPostgres(pool, logger), checks, pool.Close, nil
	case "redis":
		client, err := storage.NewRedisClient(cfg.RedisURL)
		if err != nil {
			return nil, nil, nil, err
		}
		checks["storage"] = func(ctx context.Context) error { return client.Ping(ctx).Err() }
		return storage.NewRedis(client, logger), checks, func() { _ = client.Close() }, nil
	case "memory":
		logger.Printf("using in-memory profile storage; sessions are lost on restart")
		checks["storage"] = func(context.Context) error { return nil }
		return storage.NewMemory(), checks, func() {}, nil
	default:
		return nil, nil, nil, fmt.Errorf("unknown STORAGE_BACKEND %q", cfg.StorageBackend)
	}
}

func newVerifier(ctx context.Context, cfg config.Config) (identity.Verifier, error) {
	switch cfg.IdentityVerifier {
	case "firebase":
		v, err := identity.NewFirebaseVerifier(ctx, cfg.FirebaseProjectID)
		if err != nil {
			return nil, err
		}
		return v, nil
	case "jwt":
		v, err := identity.NewJWTVerifier(identity.JWTConfig{Secret: cfg.JWTSecret, Issuer: cfg.JWTIssuer})
		if err != nil {
			return nil, err
		}
		return v, nil
	default:
		return nil, fmt.Errorf("unknown IDENTITY_VERIFIER %q", cfg.IdentityVerifier)
	}
}
