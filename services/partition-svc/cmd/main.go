// Package main is the entry point for partition-svc.
//
// partition-svc splits a region's adjacency graph of territorial units into
// a selected and an unselected part holding a target share of the
// population. For every surface-tension weight λ of a sweep it bisects the
// Lagrange multiplier μ, solving one minimum s-t cut per step, and stores
// the resulting partitions.
//
// # Run
//
// The command loads the graph named by sweep.graph_id from PostgreSQL, runs
// one sweep and exits:
//
//	DISTRICTS_DATABASE_ENABLED=true \
//	DISTRICTS_SWEEP_GRAPH_ID=6f1c... \
//	go run ./services/partition-svc/cmd
//
// # Configuration
//
// Configuration is loaded with the following priority (highest to lowest):
//  1. Environment variables (prefix: DISTRICTS_)
//  2. Config files (CONFIG_PATH, config.yaml, config/config.yaml, /etc/districts/config.yaml)
//  3. Default values
//
// Sweep options (environment variable format):
//
//	DISTRICTS_SWEEP_GRAPH_ID        - Stored graph to partition (required)
//	DISTRICTS_SWEEP_LAMBDAS         - Comma-separated λ set (default: 0.0,0.1,...,0.9)
//	DISTRICTS_SWEEP_TARGET_FRACTION - Target population share (default: 0.5)
//	DISTRICTS_SWEEP_TOLERANCE       - Accepted deviation from the target (default: 0.01)
//	DISTRICTS_SWEEP_MAX_ITERATIONS  - Bisection steps per λ (default: 50)
//	DISTRICTS_SWEEP_MAX_WORKERS     - Concurrent searches, 0 = NumCPU
//	DISTRICTS_SWEEP_FAILURE_POLICY  - fail_fast or continue (default: fail_fast)
//	DISTRICTS_SWEEP_ALGORITHM       - dinic or edmonds_karp (default: dinic)
//	DISTRICTS_SWEEP_TIMEOUT         - Deadline for the whole sweep, 0 = none
//	DISTRICTS_SWEEP_PERSIST         - Store the result (default: true)
//
// # Exit codes
//
//	0 - every λ converged
//	2 - the sweep finished but some λ did not converge (continue policy)
//	1 - the sweep failed: configuration, storage, cancellation or a failed λ under fail_fast
//
// # Observability
//
// Metrics (Prometheus, when DISTRICTS_METRICS_ENABLED=true):
//
//	districts_sweeps_total{outcome}
//	districts_sweep_duration_seconds{policy}
//	districts_search_iterations{converged}
//	districts_search_duration_seconds{algorithm}
//	districts_lambda_failures_total
//	districts_cache_operations_total{operation,result}
//
// Tracing (OpenTelemetry, when DISTRICTS_TRACING_ENABLED=true): spans are
// created for the service call, the sweep, every μ search and every
// repository method.
package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"districts/migrations"
	"districts/pkg/apperror"
	"districts/pkg/cache"
	"districts/pkg/config"
	"districts/pkg/database"
	"districts/pkg/domain"
	"districts/pkg/logger"
	"districts/pkg/metrics"
	"districts/pkg/telemetry"
	"districts/services/partition-svc/internal/algorithms"
	"districts/services/partition-svc/internal/repository"
	"districts/services/partition-svc/internal/search"
	"districts/services/partition-svc/internal/service"
	"districts/services/partition-svc/internal/sweep"
)

const (
	exitConverged = 0
	exitFailed    = 1
	exitPartial   = 2
)

func main() {
	os.Exit(run())
}

func run() int {
	// =========================================================================
	// Configuration Loading
	// =========================================================================
	cfg, err := config.LoadWithServiceDefaults("partition-svc")
	if err != nil {
		log.Printf("failed to load config: %v", err)
		return exitFailed
	}

	// =========================================================================
	// Logger Initialization
	// =========================================================================
	logger.InitWithConfig(logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		FilePath:   cfg.Log.FilePath,
		MaxSize:    cfg.Log.MaxSize,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAge:     cfg.Log.MaxAge,
		Compress:   cfg.Log.Compress,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// =========================================================================
	// Telemetry Initialization (OpenTelemetry)
	// =========================================================================
	if cfg.Tracing.Enabled {
		tp, err := telemetry.Init(ctx, telemetry.Config{
			Enabled:     cfg.Tracing.Enabled,
			Endpoint:    cfg.Tracing.Endpoint,
			ServiceName: cfg.Tracing.ServiceName,
			Version:     cfg.App.Version,
			Environment: cfg.App.Environment,
			SampleRate:  cfg.Tracing.SampleRate,
		})
		if err != nil {
			logger.Log.Warn("Failed to init telemetry", "error", err)
		} else {
			defer func() {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := tp.Shutdown(shutdownCtx); err != nil {
					logger.Log.Warn("Failed to shutdown telemetry", "error", err)
				}
			}()
			logger.Log.Info("Telemetry initialized", "endpoint", cfg.Tracing.Endpoint)
		}
	}

	// =========================================================================
	// Metrics Initialization (Prometheus)
	// =========================================================================
	//
	// Metrics are always collected. The HTTP endpoint starts once the
	// database is reachable and lives as long as the run.
	m := metrics.InitMetrics(cfg.Metrics.Namespace, cfg.Metrics.Subsystem)
	m.SetServiceInfo(cfg.App.Version, cfg.App.Environment)
	prometheus.MustRegister(metrics.NewRuntimeCollector(cfg.Metrics.Namespace, cfg.Metrics.Subsystem))

	// =========================================================================
	// Database Connection and Migrations
	// =========================================================================
	if !cfg.Database.Enabled {
		logger.Log.Error("Database is disabled, nothing to load the graph from",
			"hint", "set DISTRICTS_DATABASE_ENABLED=true",
		)
		return exitFailed
	}
	if cfg.Sweep.GraphID == "" {
		logger.Log.Error("sweep.graph_id is required")
		return exitFailed
	}

	db, err := database.NewPostgresDB(ctx, &cfg.Database)
	if err != nil {
		logger.Log.Error("Failed to connect to database", "error", err)
		return exitFailed
	}
	defer db.Close()

	if err := database.RunMigrations(ctx, db.Pool(), &cfg.Database, migrations.PostgresMigrations, migrations.PostgresDir); err != nil {
		logger.Log.Error("Failed to run migrations", "error", err)
		return exitFailed
	}

	if cfg.Metrics.Enabled {
		metricsServer := metrics.NewServer(cfg.Metrics.Port, db.HealthCheck)
		go func() {
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Log.Error("Metrics server failed", "error", err)
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = metricsServer.Shutdown(shutdownCtx) //nolint:errcheck // process is exiting
		}()
		logger.Log.Info("Metrics server started", "port", cfg.Metrics.Port)
	}

	// =========================================================================
	// Search Pipeline
	// =========================================================================
	algo, err := algorithms.ParseAlgorithm(cfg.Sweep.Algorithm)
	if err != nil {
		logger.Log.Error("Invalid algorithm", "algorithm", cfg.Sweep.Algorithm, "error", err)
		return exitFailed
	}
	solver := algorithms.NewMinCutSolver(algo, algorithms.DefaultSolverOptions().WithTimeout(cfg.Sweep.SolverTimeout))

	muSearch, err := search.New(solver, searchOptions(&cfg.Sweep))
	if err != nil {
		logger.Log.Error("Invalid search options", "error", err)
		return exitFailed
	}

	sweepOpts := []sweep.Option{sweep.WithMetrics(m)}
	serviceOpts := []service.Option{service.WithMetrics(m), service.WithPersist(cfg.Sweep.Persist)}

	// =========================================================================
	// Cache Initialization
	// =========================================================================
	//
	// The cache key covers the graph hash, λ and every search option.
	if cfg.Cache.Enabled {
		baseCache, err := cache.New(cache.FromConfig(&cfg.Cache))
		if err != nil {
			logger.Log.Warn("Failed to create cache, continuing without cache", "error", err)
		} else {
			defer baseCache.Close()

			searchCache := cache.NewSearchCache(baseCache, searchParams(&cfg.Sweep, solver.Algorithm()), cfg.Cache.DefaultTTL)
			sweepOpts = append(sweepOpts, sweep.WithCache(searchCache))
			serviceOpts = append(serviceOpts, service.WithCache(searchCache))
			logger.Log.Info("Search cache initialized",
				"driver", cfg.Cache.Driver,
				"ttl", cfg.Cache.DefaultTTL,
			)
		}
	}

	orchestrator, err := sweep.New(muSearch, sweep.Options{
		Lambdas:    cfg.Sweep.Lambdas,
		MaxWorkers: cfg.Sweep.MaxWorkers,
		Policy:     domain.FailurePolicy(cfg.Sweep.FailurePolicy),
		Algorithm:  string(algo),
	}, sweepOpts...)
	if err != nil {
		logger.Log.Error("Invalid sweep options", "error", err)
		return exitFailed
	}

	svc := service.NewPartitionService(
		repository.NewPostgresPartitionRepository(db),
		orchestrator,
		serviceOpts...,
	)

	// =========================================================================
	// Run
	// =========================================================================
	if cfg.Sweep.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Sweep.Timeout)
		defer cancel()
	}

	effective := orchestrator.Options()
	logger.Info("Starting sweep",
		"graph_id", cfg.Sweep.GraphID,
		"lambdas", effective.Lambdas,
		"workers", effective.MaxWorkers,
		"policy", effective.Policy,
		"algorithm", algo,
		"version", cfg.App.Version,
	)

	report, err := svc.RunSweep(ctx, cfg.Sweep.GraphID)
	return summarize(report, err)
}

// summarize логирует итог прогона и возвращает код выхода
func summarize(report *service.SweepReport, err error) int {
	if report != nil && report.Result != nil {
		for _, lambda := range report.Result.Lambdas() {
			r := report.Result.Results[lambda]
			logger.Info("Lambda result",
				"lambda", lambda,
				"converged", r.Converged,
				"iterations", r.Iterations,
				"mu", r.FinalMu(),
				"population_fraction", r.Partition.PopulationFraction,
				"selected_units", r.Partition.SelectedCount(),
				"energy", r.Partition.Energy,
			)
		}
	}

	if err != nil {
		logger.Error("Sweep failed",
			"error", err,
			"code", apperror.Code(err),
			"critical", apperror.IsCritical(err),
		)
		return exitFailed
	}

	switch report.Outcome {
	case domain.OutcomeConverged:
		logger.Info("Sweep converged",
			"run_id", report.Result.RunID,
			"total_iterations", report.Result.TotalIterations,
			"elapsed", report.Result.Elapsed,
			"persisted", report.Persisted,
		)
		return exitConverged
	case domain.OutcomePartial:
		logger.Warn("Sweep finished with non-converged lambdas",
			"run_id", report.Result.RunID,
			"failed_lambdas", report.Result.FailedLambdas,
			"total_iterations", report.Result.TotalIterations,
			"persisted", report.Persisted,
		)
		return exitPartial
	default:
		return exitFailed
	}
}

// searchOptions переносит параметры поиска из конфигурации
func searchOptions(cfg *config.SweepConfig) search.Options {
	return search.Options{
		TargetFraction:       cfg.TargetFraction,
		Tolerance:            cfg.Tolerance,
		MaxIterations:        cfg.MaxIterations,
		MuMin:                cfg.MuMin,
		MuMax:                cfg.MuMax,
		Headroom:             cfg.Headroom,
		BracketExpansion:     cfg.BracketExpansion,
		BracketGrowth:        cfg.BracketGrowth,
		MaxBracketExpansions: cfg.MaxBracketExpansions,
		ExpandAfter:          cfg.ExpandAfter,
	}
}

// searchParams собирает параметры, входящие в ключ кэша
func searchParams(cfg *config.SweepConfig, algo algorithms.Algorithm) cache.SearchParams {
	return cache.SearchParams{
		Algorithm:            string(algo),
		TargetFraction:       cfg.TargetFraction,
		Tolerance:            cfg.Tolerance,
		MaxIterations:        cfg.MaxIterations,
		MuMin:                cfg.MuMin,
		MuMax:                cfg.MuMax,
		Headroom:             cfg.Headroom,
		BracketExpansion:     cfg.BracketExpansion,
		BracketGrowth:        cfg.BracketGrowth,
		MaxBracketExpansions: cfg.MaxBracketExpansions,
		ExpandAfter:          cfg.ExpandAfter,
	}
}
