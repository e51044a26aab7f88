// Package app wires configuration into a ready PlanService for the server
// and the CLI.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/andresuchdata/netplan/internal/builder"
	"github.com/andresuchdata/netplan/internal/cache"
	"github.com/andresuchdata/netplan/internal/config"
	"github.com/andresuchdata/netplan/internal/engine"
	"github.com/andresuchdata/netplan/internal/metrics"
	"github.com/andresuchdata/netplan/internal/repository"
	"github.com/andresuchdata/netplan/internal/repository/postgres"
	"github.com/andresuchdata/netplan/internal/service"
	"github.com/andresuchdata/netplan/internal/solver"
	"github.com/andresuchdata/netplan/internal/storage"
	"github.com/andresuchdata/netplan/pkg/logger"
)

type App struct {
	Config  *config.Config
	Metrics *metrics.Planner
	Engine  *engine.Engine
	Plans   *service.PlanService
	// DB is nil when the run store runs in memory.
	DB *postgres.DB
}

// SolverOptions converts the configured solver defaults.
func SolverOptions(cfg config.SolverConfig) solver.Options {
	return solver.Options{
		SolverName: cfg.Name,
		TimeLimit:  time.Duration(cfg.TimeLimitSeconds) * time.Second,
		MIPGap:     cfg.MIPGap,
		MaxNodes:   cfg.MaxNodes,
	}.WithDefaults()
}

// EngineConfig converts the configured engine defaults.
func EngineConfig(cfg *config.Config) engine.Config {
	return engine.Config{
		Solver:              SolverOptions(cfg.Solver),
		Builder:             builder.Options{UnmetPenalty: cfg.Planner.UnmetPenalty},
		ScenarioConcurrency: cfg.Planner.ScenarioConcurrency,
	}
}

// New connects the optional backends (Postgres, Redis, object storage) and
// builds the PlanService. Disabled backends fall back to in-memory or no-op
// implementations.
func New(ctx context.Context, cfg *config.Config, m *metrics.Planner) (*App, error) {
	log := logger.Component("app")
	a := &App{Config: cfg, Metrics: m}

	a.Engine = engine.New(solver.NewDispatcher(nil, m), EngineConfig(cfg), m)

	repo := repository.NewMemoryRunRepository()
	if cfg.Database.Enabled {
		db, err := postgres.NewDB(&cfg.Database)
		if err != nil {
			return nil, err
		}
		if err := postgres.MigrateUp(ctx, db.DB.DB); err != nil {
			db.Close()
			return nil, err
		}
		a.DB = db
		repo = postgres.NewRunRepository(db)
		log.Info().Str("driver", cfg.Database.Driver).Msg("run store: postgres")
	} else {
		log.Info().Msg("run store: in memory")
	}

	resultCache, err := cache.NewResultCache(ctx, cfg.Cache)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("result cache: %w", err)
	}

	store, err := storage.New(ctx, cfg.Storage)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("object storage: %w", err)
	}

	a.Plans = service.NewPlanService(a.Engine, resultCache, repo, store, m, service.Options{
		ExportPrefix:     cfg.Storage.Prefix,
		BatchConcurrency: cfg.Planner.ScenarioConcurrency,
	})
	return a, nil
}

func (a *App) Close() error {
	if a.DB != nil {
		return a.DB.Close()
	}
	return nil
}
