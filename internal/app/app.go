// Package app assembles the station backend from configuration. The HTTP
// server and the operator CLI share it so both see the same store, cache and
// reconciliation policy.
package app

import (
	"context"
	"fmt"
	"time"

	"fuelstation/backend/internal/cache"
	"fuelstation/backend/internal/config"
	"fuelstation/backend/internal/reconcile"
	"fuelstation/backend/internal/service"
	"fuelstation/backend/internal/store"
	"fuelstation/backend/internal/store/memory"
	pgstore "fuelstation/backend/internal/store/postgres"
	"fuelstation/backend/pkg/logger"
)

type App struct {
	Config   config.Config
	Repo     store.Repository
	Postgres *pgstore.Store
	Service  *service.Service
	Log      *logger.Logger

	closers []func() error
}

// Build connects the repository and report cache and constructs the service.
// With DATABASE_URL set a postgres failure is fatal; there is no silent
// fallback to memory.
func Build(ctx context.Context, cfg config.Config, log *logger.Logger) (*App, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	policy, err := reconcile.NewPolicy(cfg.CashVariancePolicy, cfg.CashVarianceReject)
	if err != nil {
		return nil, fmt.Errorf("CASH_VARIANCE_POLICY: %w", err)
	}

	a := &App{Config: cfg, Log: log}

	if cfg.DatabaseURL != "" {
		poolCfg := pgstore.DefaultPoolConfig(cfg.DatabaseURL)
		poolCfg.MaxConns = int32(cfg.DBMaxConns)
		if poolCfg.MinConns > poolCfg.MaxConns {
			poolCfg.MinConns = poolCfg.MaxConns
		}
		pg, err := pgstore.New(ctx, poolCfg, pgstore.Options{
			AuditCompressThreshold: cfg.AuditCompressThreshold,
			StatementTimeout:       cfg.OperationTimeout(),
		})
		if err != nil {
			return nil, fmt.Errorf("postgres unavailable and DATABASE_URL is set: %w", err)
		}
		a.Repo = pg
		a.Postgres = pg
		a.closers = append(a.closers, pg.Close)
		log.Infow("repository ready", "backend", "postgres")
	} else {
		a.Repo = memory.NewSeeded()
		log.Infow("repository ready", "backend", "memory")
	}

	var reports cache.ReportCache = cache.NoopReportCache{}
	if cfg.RedisAddr != "" {
		redisCache := cache.NewRedisReportCache(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err := redisCache.Ping(ctx); err != nil {
			log.Warnw("redis unavailable, report cache disabled", "addr", cfg.RedisAddr, "error", err)
			_ = redisCache.Close()
		} else {
			reports = redisCache
			a.closers = append(a.closers, redisCache.Close)
			log.Infow("report cache ready", "backend", "redis")
		}
	}

	a.Service = service.New(a.Repo, reports, service.Options{
		ShiftScope:       cfg.ShiftScope,
		VariancePolicy:   policy,
		OperationTimeout: cfg.OperationTimeout(),
		ReportCacheTTL:   cfg.ReportCacheTTL(),
		Location:         loc,
		Clock:            time.Now,
		Logger:           log,
	})
	return a, nil
}

// Close releases resources in reverse order of acquisition.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.Log.Warnw("close error", "error", err)
		}
	}
	a.closers = nil
}
