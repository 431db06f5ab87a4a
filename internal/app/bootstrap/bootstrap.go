package bootstrap

import (
	"context"
	"log/slog"
	"strings"

	crosswalkpg "meridian/contexts/warehouse-core/crosswalk-builder/adapters/postgres"
	mergepg "meridian/contexts/warehouse-core/field-merge-engine/adapters/postgres"
	pipeline "meridian/contexts/warehouse-core/pipeline"
	pipelinepg "meridian/contexts/warehouse-core/pipeline/adapters/postgres"
	scdpg "meridian/contexts/warehouse-core/scd-historizer/adapters/postgres"
	"meridian/internal/platform/config"
	"meridian/internal/platform/db"
	"meridian/internal/platform/httpserver"
	"meridian/internal/platform/messaging"
	"meridian/internal/platform/metrics"
	"meridian/internal/shared/policy"

	"github.com/prometheus/client_golang/prometheus"
)

// Package bootstrap is the composition root.
// Keep construction/wiring here so module code stays framework-agnostic.

type App struct {
	Pipeline pipeline.Module
	server   *httpserver.Server
	postgres *db.Postgres
	logger   *slog.Logger
}

// Build wires the pipeline against postgres when POSTGRES_DSN is set, and
// against the in-memory warehouse store otherwise. The in-memory path is
// for dry runs and local development only: nothing survives the process.
func Build(process string) (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	logger := slog.Default().With("service", cfg.ServiceName, "process", process)

	pol, err := policy.Load(cfg.PolicyPath)
	if err != nil {
		return nil, err
	}
	if pol.WindowDays == 0 {
		pol.WindowDays = cfg.WindowDays
	}

	bus := messaging.NewBus(logger)
	observer := metrics.New(prometheus.DefaultRegisterer)

	var module pipeline.Module
	var pg *db.Postgres
	if strings.TrimSpace(cfg.PostgresDSN) == "" {
		logger.Warn("no postgres dsn configured, using in-memory store",
			"event", "bootstrap_memory_fallback",
			"module", "internal/app/bootstrap",
			"layer", "platform",
		)
		module = pipeline.NewInMemoryModule(pol, bus, logger)
	} else {
		pg, err = db.Connect(cfg.PostgresDSN)
		if err != nil {
			return nil, err
		}

		crosswalkRepo := crosswalkpg.NewRepository(pg.DB, logger)
		mergeRepo := mergepg.NewRepository(pg.DB, logger)
		scdRepo := scdpg.NewRepository(pg.DB, logger)
		pipelineRepo := pipelinepg.NewRepository(pg.DB, logger)

		module = pipeline.NewModule(pipeline.Dependencies{
			Policy:     pol,
			Sources:    crosswalkRepo,
			Crosswalk:  crosswalkRepo,
			Merged:     mergeRepo,
			Conflicts:  mergeRepo,
			Audit:      mergeRepo,
			Dimensions: scdRepo,
			History:    scdRepo,
			Runs:       pipelineRepo,
			Deps:       crosswalkRepo,
			Bus:        bus,
			Observer:   observer,
			Clock:      pipelinepg.SystemClock{},
			IDGen:      pipelinepg.UUIDGenerator{},
			Logger:     logger,
		})
	}

	return &App{
		Pipeline: module,
		server:   httpserver.New(module, logger, normalizeAddr(cfg.HTTPPort)),
		postgres: pg,
		logger:   logger,
	}, nil
}

// Serve blocks on the admin HTTP surface.
func (a *App) Serve(_ context.Context) error {
	if a.logger != nil {
		a.logger.Info("api app started",
			"event", "bootstrap_api_started",
			"module", "internal/app/bootstrap",
			"layer", "platform",
		)
	}
	return a.server.Start()
}

// RunBatch executes one pipeline run and returns once it reaches a terminal
// status.
func (a *App) RunBatch(ctx context.Context, entityType string, batchID string) error {
	_, err := a.Pipeline.Service.ProcessBatch(ctx, entityType, batchID)
	return err
}

func (a *App) Close() error {
	if a.postgres != nil {
		return a.postgres.Close()
	}
	return nil
}

func normalizeAddr(port string) string {
	value := strings.TrimSpace(port)
	if value == "" {
		return ":8080"
	}
	if strings.HasPrefix(value, ":") {
		return value
	}
	return ":" + value
}
