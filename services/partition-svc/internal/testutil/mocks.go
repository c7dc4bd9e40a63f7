// services/partition-svc/internal/testutil/mocks.go
package testutil

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"districts/pkg/cache"
	"districts/pkg/domain"
	"districts/services/partition-svc/internal/repository"
)

// ================== Mock Repository ==================

// MockPartitionRepository хранилище графов и прогонов в памяти
type MockPartitionRepository struct {
	mu     sync.RWMutex
	graphs map[string]*repository.StoredGraph
	sweeps map[string]*repository.SweepRecord
	seq    int

	// Управление поведением
	SaveGraphErr error
	GetGraphErr  error
	SaveSweepErr error
	GetSweepErr  error
	ListErr      error

	// Учёт вызовов
	SaveGraphCalls int
	GetGraphCalls  int
	SaveSweepCalls int
	GetSweepCalls  int
	ListCalls      int
}

func NewMockPartitionRepository() *MockPartitionRepository {
	return &MockPartitionRepository{
		graphs: make(map[string]*repository.StoredGraph),
		sweeps: make(map[string]*repository.SweepRecord),
	}
}

func (m *MockPartitionRepository) SaveGraph(_ context.Context, name string, g *domain.GraphModel) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.SaveGraphCalls++

	if m.SaveGraphErr != nil {
		return "", m.SaveGraphErr
	}
	if g == nil {
		return "", repository.ErrInvalidGraph
	}

	m.seq++
	id := fmt.Sprintf("graph-%d", m.seq)
	m.graphs[id] = &repository.StoredGraph{
		ID:        id,
		Name:      name,
		Hash:      cache.GraphHash(g),
		Graph:     g,
		CreatedAt: time.Now(),
	}
	return id, nil
}

// AddGraph кладёт граф напрямую, минуя валидацию
func (m *MockPartitionRepository) AddGraph(id, name string, g *domain.GraphModel) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.graphs[id] = &repository.StoredGraph{
		ID:        id,
		Name:      name,
		Hash:      cache.GraphHash(g),
		Graph:     g,
		CreatedAt: time.Now(),
	}
}

func (m *MockPartitionRepository) GetGraph(_ context.Context, id string) (*repository.StoredGraph, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.GetGraphCalls++

	if m.GetGraphErr != nil {
		return nil, m.GetGraphErr
	}
	g, ok := m.graphs[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return g, nil
}

func (m *MockPartitionRepository) SaveSweep(_ context.Context, graphID string, result *domain.SweepResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.SaveSweepCalls++

	if m.SaveSweepErr != nil {
		return m.SaveSweepErr
	}
	if _, ok := m.graphs[graphID]; !ok {
		return fmt.Errorf("%w: graph %s", repository.ErrNotFound, graphID)
	}

	record := &repository.SweepRecord{
		Run: repository.SweepRun{
			ID:              result.RunID,
			GraphID:         graphID,
			Outcome:         result.Outcome(),
			AllConverged:    result.AllConverged,
			FailedLambdas:   append([]float64{}, result.FailedLambdas...),
			TotalIterations: result.TotalIterations,
			ElapsedMs:       result.Elapsed.Milliseconds(),
			CreatedAt:       time.Now(),
		},
	}
	for _, lambda := range result.Lambdas() {
		record.Results = append(record.Results, repository.NewLambdaResult(result.Results[lambda]))
	}
	m.sweeps[result.RunID] = record
	return nil
}

func (m *MockPartitionRepository) GetSweep(_ context.Context, runID string) (*repository.SweepRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.GetSweepCalls++

	if m.GetSweepErr != nil {
		return nil, m.GetSweepErr
	}
	record, ok := m.sweeps[runID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return record, nil
}

func (m *MockPartitionRepository) ListSweeps(_ context.Context, graphID string, limit int) ([]*repository.SweepRun, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ListCalls++

	if m.ListErr != nil {
		return nil, m.ListErr
	}

	var runs []*repository.SweepRun
	for _, record := range m.sweeps {
		if record.Run.GraphID == graphID {
			run := record.Run
			runs = append(runs, &run)
		}
	}
	sort.Slice(runs, func(i, j int) bool {
		return runs[i].CreatedAt.After(runs[j].CreatedAt)
	})
	if limit > 0 && len(runs) > limit {
		runs = runs[:limit]
	}
	return runs, nil
}

// SweepCount возвращает количество сохранённых прогонов
func (m *MockPartitionRepository) SweepCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sweeps)
}

// ================== Mock Searcher ==================

// MockSearcher поиск μ, управляемый функцией. Безопасен для конкурентного использования.
type MockSearcher struct {
	calls      atomic.Int64
	SearchFunc func(ctx context.Context, lambda float64) (*domain.SearchResult, error)
}

func (m *MockSearcher) Search(ctx context.Context, _ *domain.GraphModel, lambda float64) (*domain.SearchResult, error) {
	m.calls.Add(1)
	if m.SearchFunc == nil {
		return SearchResult(lambda, true, 1), nil
	}
	return m.SearchFunc(ctx, lambda)
}

// Calls возвращает количество вызовов Search
func (m *MockSearcher) Calls() int64 {
	return m.calls.Load()
}

// ================== Fixtures ==================

// SearchResult собирает правдоподобный результат поиска для λ
func SearchResult(lambda float64, converged bool, iterations int) *domain.SearchResult {
	history := make([]float64, iterations)
	for i := range history {
		history[i] = float64(i + 1)
	}
	return &domain.SearchResult{
		Lambda:     lambda,
		Converged:  converged,
		Iterations: iterations,
		MuHistory:  history,
		Partition: &domain.PartitionResult{
			Selected:           []bool{true, false, false},
			SelectedPopulation: 300,
			TotalPopulation:    600,
			PopulationFraction: 0.5,
			Lambda:             lambda,
			Mu:                 float64(iterations),
		},
	}
}

// LineGraph цепочка из трёх единиц с общим населением 600
func LineGraph() *domain.GraphModel {
	return domain.NewGraphModel(
		[]uint64{300, 200, 100},
		[]float64{1, 1, 1},
		[]domain.Edge{
			{A: 0, B: 1, Length: 1},
			{A: 1, B: 2, Length: 1},
		},
		1,
	)
}
