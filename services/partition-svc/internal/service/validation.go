package service

import (
	"fmt"

	"districts/pkg/apperror"
	"districts/pkg/domain"
)

// ValidateGraph проверяет граф перед прогоном.
// Структурные ошибки делают граф непригодным, особенности топологии
// (несвязность, изолированные узлы, нулевое население) попадают в предупреждения.
func ValidateGraph(g *domain.GraphModel) (*apperror.ValidationErrors, *domain.GraphStatistics) {
	result := apperror.NewValidationErrors()

	if g == nil {
		result.Add(apperror.ErrNilGraph)
		return result, nil
	}

	// 1. Структура
	for _, err := range g.Validate() {
		result.Add(apperror.New(apperror.CodeInvalidGraph, err.Error()))
	}
	if result.HasErrors() {
		return result, nil
	}

	// 2. Топология
	stats := domain.CalculateGraphStatistics(g)
	if !stats.IsConnected {
		result.AddWarning(apperror.CodeInvalidGraph,
			fmt.Sprintf("graph has %d connected components", stats.Components))
	}
	if stats.IsolatedNodes > 0 {
		result.AddWarning(apperror.CodeInvalidGraph,
			fmt.Sprintf("graph has %d isolated nodes", stats.IsolatedNodes))
	}

	// 3. Население
	if stats.TotalPopulation == 0 {
		result.AddWarning(apperror.CodeEmptyGraph, "total population is zero")
	}

	return result, stats
}
