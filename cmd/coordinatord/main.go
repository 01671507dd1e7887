// Package main provides the entry point for the coordinator daemon.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	conductor "github.com/relaysync/conductor"
	"github.com/relaysync/conductor/application/coordinator"
	domainconfig "github.com/relaysync/conductor/domain/config"
	"github.com/relaysync/conductor/domain/project"
	"github.com/relaysync/conductor/infrastructure/config"
	"github.com/relaysync/conductor/infrastructure/logging"
	"github.com/relaysync/conductor/infrastructure/storage/memory"
	"github.com/relaysync/conductor/infrastructure/telemetry"
	"github.com/relaysync/conductor/interfaces/httpapi"
)

// sweepInterval governs how often sweepLoop checks every known project
// for expired locks, standing in for an operator hitting
// `/fix-expired-locks` on a schedule.
const sweepInterval = time.Minute

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	logging.Init(logging.DefaultConfig())

	cfg := coordinatorConfigFromEnv()

	builder := config.NewCoordinatorBuilder(cfg)
	components, err := builder.Build()
	if err != nil {
		return fmt.Errorf("coordinatord: %w", err)
	}

	shutdownTelemetry, err := telemetry.Setup(context.Background(), cfg.Telemetry, "conductor-coordinator")
	if err != nil {
		return fmt.Errorf("coordinatord: telemetry setup: %w", err)
	}
	defer shutdownTelemetry(context.Background())

	metrics := telemetry.NewMetricsProvider(telemetry.DefaultMetricsConfig())

	projects := memory.NewProjectStore()
	nodes := memory.NewNodeStore()
	interventions := memory.NewInterventionStore()
	synclog := memory.NewSyncLogStore()
	iterations := memory.NewIterationStore()

	handler, err := coordinator.NewHandler(coordinator.Config{
		Tasks:         components.TaskStore,
		Nodes:         nodes,
		Interventions: interventions,
		SyncLog:       synclog,
		Bus:           components.Broadcast,
		SweepLock:     components.Locker,
	})
	if err != nil {
		return fmt.Errorf("coordinatord: %w", err)
	}

	server, err := httpapi.New(httpapi.Config{
		Handler:    handler,
		Tasks:      components.TaskStore,
		Projects:   projects,
		Iterations: iterations,
		Bus:        components.Broadcast,
		Metrics:    metrics,
		Addr:       components.HTTPAddr,
		CORSOrigin: components.CORSOrigin,
	})
	if err != nil {
		return fmt.Errorf("coordinatord: %w", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	go sweepLoop(ctx, handler, projects)

	return server.Start(ctx)
}

// sweepLoop periodically invokes the expired-lock sweeper (§4.4) across
// every known project.
func sweepLoop(ctx context.Context, h *coordinator.Handler, projects project.Store) {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			rows, err := projects.List(ctx)
			if err != nil {
				logging.Warn().
					Add(logging.Component("coordinatord")).
					Add(logging.ErrorField(err)).
					Msg("sweep: list projects")
				continue
			}
			for _, p := range rows {
				if _, err := h.Sweep(ctx, p.ID); err != nil {
					logging.Warn().
						Add(logging.Component("coordinatord")).
						Add(logging.ProjectID(p.ID)).
						Add(logging.ErrorField(err)).
						Msg("sweep failed")
				}
			}
		}
	}
}

func coordinatorConfigFromEnv() *domainconfig.CoordinatorConfig {
	cfg := &domainconfig.CoordinatorConfig{
		Name:    "conductor-coordinator",
		Version: conductor.Version,
		HTTP: domainconfig.HTTPConfig{
			Host:       "0.0.0.0",
			Port:       3344,
			CORSOrigin: "*",
		},
		Storage: domainconfig.StorageConfig{Backend: "memory"},
		Lock:    domainconfig.LockConfig{Backend: "memory"},
	}

	if v := os.Getenv("HOST"); v != "" {
		cfg.HTTP.Host = v
	}
	if v := os.Getenv("PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.HTTP.Port = port
		}
	}
	if v := os.Getenv("CORS_ORIGIN"); v != "" {
		cfg.HTTP.CORSOrigin = v
	}
	if v := os.Getenv("DB_PATH"); v != "" {
		cfg.Storage.Backend = "sqlite"
		cfg.Storage.Path = v
	}

	return cfg
}
