// Package service связывает хранилище графов, прогон по сетке λ,
// кэш результатов и метрики.
package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"districts/pkg/apperror"
	"districts/pkg/cache"
	"districts/pkg/domain"
	"districts/pkg/logger"
	"districts/pkg/metrics"
	"districts/pkg/telemetry"
	"districts/services/partition-svc/internal/repository"
	"districts/services/partition-svc/internal/sweep"
)

// Sweeper выполняет прогон по сетке λ. *sweep.Orchestrator реализует его.
type Sweeper interface {
	Run(ctx context.Context, graph *domain.GraphModel) (*domain.SweepResult, error)
	Options() sweep.Options
}

// SweepReport итог RunSweep
type SweepReport struct {
	GraphID    string
	GraphName  string
	Result     *domain.SweepResult // nil при жёсткой ошибке
	Outcome    domain.Outcome
	Statistics *domain.GraphStatistics
	Warnings   []string
	Persisted  bool
}

// PartitionService сервис разбиения
type PartitionService struct {
	repo    repository.Repository
	sweeper Sweeper
	cache   *cache.SearchCache
	metrics *metrics.Metrics
	persist bool
}

// Option настраивает PartitionService
type Option func(*PartitionService)

// WithCache подключает кэш для инвалидации по графу
func WithCache(c *cache.SearchCache) Option {
	return func(s *PartitionService) { s.cache = c }
}

// WithMetrics подключает метрики прогонов
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *PartitionService) { s.metrics = m }
}

// WithPersist включает сохранение результатов прогона
func WithPersist(persist bool) Option {
	return func(s *PartitionService) { s.persist = persist }
}

// NewPartitionService создаёт новый сервис
func NewPartitionService(repo repository.Repository, sweeper Sweeper, opts ...Option) *PartitionService {
	s := &PartitionService{
		repo:    repo,
		sweeper: sweeper,
		persist: true,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ============ GRAPHS ============

// ImportGraph проверяет граф и сохраняет его
func (s *PartitionService) ImportGraph(ctx context.Context, name string, g *domain.GraphModel) (string, error) {
	ctx, span := telemetry.StartSpan(ctx, "PartitionService.ImportGraph")
	defer span.End()

	if strings.TrimSpace(name) == "" {
		return "", apperror.InvalidParameter("name", name, "must not be empty")
	}

	validation, _ := ValidateGraph(g)
	if validation.HasErrors() {
		return "", validationError(validation)
	}

	id, err := s.repo.SaveGraph(ctx, name, g)
	if err != nil {
		telemetry.SetError(ctx, err)
		return "", apperror.Wrap(err, apperror.CodeInternal, "failed to save graph")
	}

	logger.Log.Info("Graph imported",
		"graph_id", id,
		"name", name,
		"nodes", g.NodeCount(),
		"edges", g.EdgeCount(),
		"warnings", validation.WarningMessages(),
	)
	return id, nil
}

// InvalidateCache удаляет закэшированные результаты поиска для графа
func (s *PartitionService) InvalidateCache(ctx context.Context, graphID string) (int64, error) {
	if s.cache == nil {
		return 0, nil
	}

	stored, err := s.loadGraph(ctx, graphID)
	if err != nil {
		return 0, err
	}

	removed, err := s.cache.InvalidateGraph(ctx, stored.Hash)
	if err != nil {
		return 0, apperror.Wrap(err, apperror.CodeInternal, "failed to invalidate cache")
	}

	logger.Log.Info("Search cache invalidated", "graph_id", graphID, "removed", removed)
	return removed, nil
}

// ============ SWEEPS ============

// RunSweep загружает граф, проверяет его, выполняет прогон по сетке λ
// и сохраняет результат.
//
// При жёсткой ошибке прогона возвращается отчёт с OutcomeFailed вместе
// с ошибкой. Ошибка сохранения не отменяет результат: отчёт содержит его,
// Persisted остаётся false.
func (s *PartitionService) RunSweep(ctx context.Context, graphID string) (*SweepReport, error) {
	ctx, span := telemetry.StartSpan(ctx, "PartitionService.RunSweep",
		telemetry.WithAttributes(attribute.String(telemetry.AttrGraphID, graphID)),
	)
	defer span.End()

	report := &SweepReport{GraphID: graphID, Outcome: domain.OutcomeFailed}

	// 1. Граф
	stored, err := s.loadGraph(ctx, graphID)
	if err != nil {
		telemetry.SetError(ctx, err)
		return report, err
	}
	report.GraphName = stored.Name

	// 2. Валидация
	validation, stats := ValidateGraph(stored.Graph)
	report.Warnings = validation.WarningMessages()
	if validation.HasErrors() {
		err := validationError(validation)
		telemetry.SetError(ctx, err)
		return report, err
	}
	report.Statistics = stats

	log := logger.WithContext(ctx, "graph_id", graphID)
	for _, w := range report.Warnings {
		log.Warn("Graph validation warning", "warning", w)
	}

	if s.metrics != nil {
		s.metrics.RecordGraphSize(stored.Graph.NodeCount(), stored.Graph.EdgeCount())
	}

	// 3. Прогон
	start := time.Now()
	result, err := s.sweeper.Run(ctx, stored.Graph)
	report.Outcome = sweep.Classify(result, err)
	report.Result = result

	// 4. Метрики
	if s.metrics != nil {
		s.metrics.RecordSweep(string(report.Outcome), string(s.sweeper.Options().Policy), time.Since(start))
	}
	telemetry.AddEvent(ctx, "sweep_completed", attribute.String("outcome", string(report.Outcome)))

	if err != nil {
		telemetry.SetError(ctx, err)
		return report, err
	}

	// 5. Сохранение
	if s.persist {
		if err := s.repo.SaveSweep(ctx, graphID, result); err != nil {
			telemetry.SetError(ctx, err)
			log.Error("Failed to persist sweep", "run_id", result.RunID, "error", err)
			return report, apperror.Wrap(err, apperror.CodeInternal, "failed to persist sweep")
		}
		report.Persisted = true
	}

	log.Info("Sweep completed",
		"run_id", result.RunID,
		"outcome", report.Outcome,
		"persisted", report.Persisted,
	)
	return report, nil
}

// GetSweep возвращает сохранённый прогон
func (s *PartitionService) GetSweep(ctx context.Context, runID string) (*repository.SweepRecord, error) {
	ctx, span := telemetry.StartSpan(ctx, "PartitionService.GetSweep",
		telemetry.WithAttributes(attribute.String(telemetry.AttrRunID, runID)),
	)
	defer span.End()

	record, err := s.repo.GetSweep(ctx, runID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperror.New(apperror.CodeNotFound, "sweep not found").WithDetails("run_id", runID)
		}
		telemetry.SetError(ctx, err)
		return nil, apperror.Wrap(err, apperror.CodeInternal, "failed to get sweep")
	}
	return record, nil
}

// ListSweeps возвращает последние прогоны графа
func (s *PartitionService) ListSweeps(ctx context.Context, graphID string, limit int) ([]*repository.SweepRun, error) {
	runs, err := s.repo.ListSweeps(ctx, graphID, limit)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.CodeInternal, "failed to list sweeps")
	}
	return runs, nil
}

// ============ HELPERS ============

func (s *PartitionService) loadGraph(ctx context.Context, graphID string) (*repository.StoredGraph, error) {
	if strings.TrimSpace(graphID) == "" {
		return nil, apperror.InvalidParameter("graph_id", graphID, "must not be empty")
	}

	stored, err := s.repo.GetGraph(ctx, graphID)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return nil, apperror.New(apperror.CodeNotFound, "graph not found").WithDetails("graph_id", graphID)
	case errors.Is(err, repository.ErrInvalidGraph):
		return nil, apperror.Wrap(err, apperror.CodeInvalidGraph, "stored graph is corrupted")
	case err != nil:
		return nil, apperror.Wrap(err, apperror.CodeInternal, "failed to load graph")
	}
	return stored, nil
}

// validationError сворачивает ошибки валидации в одну
func validationError(v *apperror.ValidationErrors) error {
	msgs := v.ErrorMessages()
	return apperror.New(apperror.CodeInvalidGraph, "graph validation failed: "+strings.Join(msgs, "; ")).
		WithDetails("errors", len(msgs))
}
