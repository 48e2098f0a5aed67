package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"fuelstation/backend/internal/app"
	"fuelstation/backend/internal/config"
	"fuelstation/backend/internal/httpapi"
	"fuelstation/backend/pkg/logger"
)

func main() {
	cfg := config.Load()

	log, err := logger.New(logger.Config{Level: cfg.LogLevel, Development: !cfg.IsProduction()})
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	if err := validateRuntimeConfig(cfg); err != nil {
		log.Fatalw("invalid configuration", "error", err)
	}
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	application, err := app.Build(ctx, cfg, log)
	if err != nil {
		log.Fatalw("startup failed", "error", err)
	}
	defer application.Close()

	if application.Postgres != nil {
		if err := application.Postgres.Migrate(ctx); err != nil {
			log.Fatalw("schema migration failed", "error", err)
		}
	}

	auth := httpapi.NewAuthManager(cfg.AuthSecret, cfg.AccessTokenTTL(), application.Repo)
	api := httpapi.New(application.Service, auth, httpapi.Options{
		AllowedOrigins: allowedOrigins(cfg.AllowedOrigin),
		Logger:         log,
	})

	server := &http.Server{
		Addr:              cfg.Address(),
		Handler:           api.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      cfg.OperationTimeout() + 10*time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Infow("station backend listening",
			"addr", cfg.Address(),
			"shift_scope", cfg.ShiftScope,
			"timezone", cfg.Timezone,
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalw("server error", "error", err)
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 8*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Warnw("shutdown error", "error", err)
	}
	log.Infow("server stopped")
}

// validateRuntimeConfig adds the checks that only matter for the long-running
// server on top of config.Validate.
func validateRuntimeConfig(cfg config.Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	if !cfg.IsProduction() {
		return nil
	}
	if cfg.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required in production")
	}
	for _, origin := range allowedOrigins(cfg.AllowedOrigin) {
		if origin == "*" {
			return fmt.Errorf("ALLOWED_ORIGIN must not be a wildcard in production")
		}
	}
	return nil
}

func allowedOrigins(raw string) []string {
	origins := make([]string, 0)
	for _, origin := range strings.Split(raw, ",") {
		if origin = strings.TrimSpace(origin); origin != "" {
			origins = append(origins, origin)
		}
	}
	return origins
}
