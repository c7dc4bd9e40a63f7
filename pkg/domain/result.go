package domain

import (
	"sort"
	"time"
)

// PartitionResult агрегаты разбиения для одной пары (λ, μ).
// После возврата вызывающему не изменяется.
type PartitionResult struct {
	Selected []bool

	SelectedPopulation uint64
	TotalPopulation    uint64
	SelectedArea       float64
	TotalArea          float64
	PopulationFraction float64

	// Компоненты энергии: Energy = BoundaryCost + AreaCost - PopulationReward
	BoundaryCost     float64
	AreaCost         float64
	PopulationReward float64
	Energy           float64

	// FlowValue значение разреза от решателя, диагностическое
	FlowValue float64

	Lambda float64
	Mu     float64
}

// UnselectedPopulation возвращает население невыбранной стороны
func (r *PartitionResult) UnselectedPopulation() uint64 {
	return r.TotalPopulation - r.SelectedPopulation
}

// SelectedCount возвращает количество выбранных узлов
func (r *PartitionResult) SelectedCount() int {
	count := 0
	for _, s := range r.Selected {
		if s {
			count++
		}
	}
	return count
}

// SearchResult результат поиска μ для одного λ
type SearchResult struct {
	Lambda    float64
	Partition *PartitionResult
	MuHistory []float64
	Converged bool

	Iterations        int
	TargetPopulation  float64
	MuMin             float64
	MuMax             float64
	BracketExpansions int
	Elapsed           time.Duration
}

// FinalMu возвращает последнее опробованное μ
func (r *SearchResult) FinalMu() float64 {
	if len(r.MuHistory) == 0 {
		return 0
	}
	return r.MuHistory[len(r.MuHistory)-1]
}

// Outcome итог прогона по сетке λ
type Outcome string

const (
	OutcomeConverged Outcome = "converged"
	OutcomePartial   Outcome = "partial"
	OutcomeFailed    Outcome = "failed"
)

// FailurePolicy поведение при несходимости одного из λ
type FailurePolicy string

const (
	// FailFast прерывает весь прогон при первой несходимости
	FailFast FailurePolicy = "fail_fast"
	// ContinueOnFailure собирает все результаты, включая несошедшиеся
	ContinueOnFailure FailurePolicy = "continue"
)

// Valid проверяет, что политика известна
func (p FailurePolicy) Valid() bool {
	return p == FailFast || p == ContinueOnFailure
}

// SweepResult снимок результатов прогона по сетке λ
type SweepResult struct {
	RunID           string
	Results         map[float64]*SearchResult
	TotalIterations int
	Elapsed         time.Duration
	AllConverged    bool
	FailedLambdas   []float64
}

// Lambdas возвращает значения λ в порядке возрастания
func (r *SweepResult) Lambdas() []float64 {
	lambdas := make([]float64, 0, len(r.Results))
	for l := range r.Results {
		lambdas = append(lambdas, l)
	}
	sort.Float64s(lambdas)
	return lambdas
}

// Outcome различает полную и частичную сходимость
func (r *SweepResult) Outcome() Outcome {
	if r.AllConverged {
		return OutcomeConverged
	}
	return OutcomePartial
}
