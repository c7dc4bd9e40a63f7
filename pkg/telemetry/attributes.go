package telemetry

import (
	"go.opentelemetry.io/otel/attribute"
)

// Стандартные ключи атрибутов
const (
	// Граф
	AttrGraphID    = "graph.id"
	AttrGraphNodes = "graph.nodes"
	AttrGraphEdges = "graph.edges"
	AttrGraphRho   = "graph.rho"

	// Решатель
	AttrAlgorithm  = "solver.algorithm"
	AttrIterations = "solver.iterations"
	AttrFlowValue  = "solver.flow_value"

	// Поиск mu
	AttrLambda            = "search.lambda"
	AttrMu                = "search.mu"
	AttrSearchIterations  = "search.iterations"
	AttrSearchConverged   = "search.converged"
	AttrBracketExpansions = "search.bracket_expansions"
	AttrPopulationFrac    = "search.population_fraction"

	// Прогон
	AttrRunID         = "sweep.run_id"
	AttrLambdaCount   = "sweep.lambda_count"
	AttrWorkers       = "sweep.workers"
	AttrFailurePolicy = "sweep.failure_policy"
	AttrFailedLambdas = "sweep.failed_lambdas"
	AttrAllConverged  = "sweep.all_converged"
	AttrTotalIters    = "sweep.total_iterations"
)

// GraphAttributes возвращает атрибуты модели графа
func GraphAttributes(nodes, edges int, rho float64) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.Int(AttrGraphNodes, nodes),
		attribute.Int(AttrGraphEdges, edges),
		attribute.Float64(AttrGraphRho, rho),
	}
}

// SolverAttributes возвращает атрибуты одного решения min-cut
func SolverAttributes(algorithm string, iterations int, flowValue float64) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(AttrAlgorithm, algorithm),
		attribute.Int(AttrIterations, iterations),
		attribute.Float64(AttrFlowValue, flowValue),
	}
}

// SearchAttributes возвращает атрибуты итога поиска mu для одного lambda
func SearchAttributes(lambda, mu float64, iterations int, converged bool, fraction float64) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.Float64(AttrLambda, lambda),
		attribute.Float64(AttrMu, mu),
		attribute.Int(AttrSearchIterations, iterations),
		attribute.Bool(AttrSearchConverged, converged),
		attribute.Float64(AttrPopulationFrac, fraction),
	}
}

// SweepAttributes возвращает атрибуты прогона по сетке lambda
func SweepAttributes(runID string, lambdaCount, workers int, policy string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(AttrRunID, runID),
		attribute.Int(AttrLambdaCount, lambdaCount),
		attribute.Int(AttrWorkers, workers),
		attribute.String(AttrFailurePolicy, policy),
	}
}
