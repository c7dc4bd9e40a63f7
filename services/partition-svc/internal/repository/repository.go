package repository

import (
	"context"
	"errors"
	"time"

	"districts/pkg/domain"
)

// Стандартные ошибки
var (
	ErrNotFound     = errors.New("not found")
	ErrInvalidGraph = errors.New("invalid graph")
)

// Repository хранилище графов и результатов прогонов
type Repository interface {
	SaveGraph(ctx context.Context, name string, graph *domain.GraphModel) (string, error)
	GetGraph(ctx context.Context, id string) (*StoredGraph, error)
	SaveSweep(ctx context.Context, graphID string, result *domain.SweepResult) error
	GetSweep(ctx context.Context, runID string) (*SweepRecord, error)
	ListSweeps(ctx context.Context, graphID string, limit int) ([]*SweepRun, error)
}

// StoredGraph граф вместе с метаданными хранения
type StoredGraph struct {
	ID        string
	Name      string
	Hash      string
	Graph     *domain.GraphModel
	CreatedAt time.Time
}

// SweepRun сводка одного прогона по сетке λ
type SweepRun struct {
	ID              string
	GraphID         string
	Outcome         domain.Outcome
	AllConverged    bool
	FailedLambdas   []float64
	TotalIterations int
	ElapsedMs       int64
	CreatedAt       time.Time
}

// LambdaResult сохранённый итог поиска для одного λ
type LambdaResult struct {
	Lambda             float64
	Converged          bool
	Iterations         int
	FinalMu            float64
	MuHistory          []float64
	Selected           []bool
	SelectedPopulation int64
	PopulationFraction float64
	BoundaryCost       float64
	AreaCost           float64
	Energy             float64
}

// SweepRecord прогон вместе с результатами по λ (по возрастанию λ)
type SweepRecord struct {
	Run     SweepRun
	Results []LambdaResult
}

// Limits для ListSweeps
const (
	DefaultListLimit = 20
	MaxListLimit     = 100
)

// NewLambdaResult собирает строку результата из SearchResult
func NewLambdaResult(r *domain.SearchResult) LambdaResult {
	lr := LambdaResult{
		Lambda:     r.Lambda,
		Converged:  r.Converged,
		Iterations: r.Iterations,
		FinalMu:    r.FinalMu(),
		MuHistory:  append([]float64{}, r.MuHistory...),
		Selected:   []bool{},
	}
	if p := r.Partition; p != nil {
		lr.Selected = append(lr.Selected, p.Selected...)
		lr.SelectedPopulation = int64(p.SelectedPopulation)
		lr.PopulationFraction = p.PopulationFraction
		lr.BoundaryCost = p.BoundaryCost
		lr.AreaCost = p.AreaCost
		lr.Energy = p.Energy
	}
	return lr
}
