package domain

import "math"

// Математические константы
const (
	Epsilon  = 1e-9
	Infinity = math.MaxFloat64
)

// MaxTotalPopulation верхняя граница суммарного населения графа.
// Население хранится в BIGINT, поэтому граница совпадает с MaxInt64.
const MaxTotalPopulation uint64 = math.MaxInt64

// Параметры поиска по умолчанию
const (
	DefaultTargetFraction = 0.5
	DefaultTolerance      = 0.01
	DefaultMaxIterations  = 50
	DefaultMuHeadroom     = 10.0

	DefaultBracketGrowth        = 10.0
	DefaultMaxBracketExpansions = 8
	DefaultExpandAfter          = 4
)

// DefaultLambdaCount количество значений λ в сетке по умолчанию
const DefaultLambdaCount = 10

// DefaultLambdas возвращает равномерную сетку λ на [0, 1): 0.0, 0.1, ..., 0.9.
// λ = 1 в сетку никогда не попадает.
func DefaultLambdas() []float64 {
	lambdas := make([]float64, DefaultLambdaCount)
	for i := range lambdas {
		lambdas[i] = float64(i) / DefaultLambdaCount
	}
	return lambdas
}

// ValidLambda проверяет λ ∈ [0, 1)
func ValidLambda(lambda float64) bool {
	return !math.IsNaN(lambda) && lambda >= 0 && lambda < 1
}

// ValidMu проверяет μ ≥ 0 и конечность
func ValidMu(mu float64) bool {
	return !math.IsNaN(mu) && !math.IsInf(mu, 0) && mu >= 0
}

// IsFiniteNonNegative проверяет, что значение конечно и неотрицательно
func IsFiniteNonNegative(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0) && v >= 0
}

// IsPositive проверяет, положительно ли значение
func IsPositive(v float64) bool {
	return v > Epsilon
}
