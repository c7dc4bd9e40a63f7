// Package evaluator turns a raw partition into a PartitionResult.
//
// Aggregates and energy are recomputed from the GraphModel, never taken from
// the solver, so population and area sums can be checked independently of
// the min-cut implementation.
package evaluator

import (
	"fmt"

	"districts/pkg/apperror"
	"districts/pkg/domain"
	"districts/services/partition-svc/internal/energy"
)

// Evaluate computes the aggregates and the energy of selected at (λ, μ).
//
// Selecting no unit or every unit is valid; in both cases no edge crosses
// the cut and the boundary cost is zero. A selected slice whose length
// differs from the node count is a SOLVER_CONTRACT_VIOLATION.
func Evaluate(graph *domain.GraphModel, selected []bool, lambda, mu float64) (*domain.PartitionResult, error) {
	if graph == nil {
		return nil, apperror.ErrNilGraph
	}
	if err := energy.ValidateParameters(lambda, mu); err != nil {
		return nil, err
	}

	n := graph.NodeCount()
	if len(graph.NodeArea) != n {
		return nil, apperror.New(apperror.CodeInvalidGraph,
			fmt.Sprintf("population has %d entries, area has %d", n, len(graph.NodeArea)))
	}
	if err := energy.ValidateRho(graph.Rho); err != nil {
		return nil, err
	}
	if len(selected) != n {
		return nil, apperror.ContractViolation(
			fmt.Sprintf("partition has %d entries, graph has %d nodes", len(selected), n)).
			WithDetails("partition_len", len(selected)).
			WithDetails("node_count", n)
	}

	result := &domain.PartitionResult{
		Selected: append([]bool(nil), selected...),
		Lambda:   lambda,
		Mu:       mu,
	}

	var unselectedPopulation uint64
	for i := 0; i < n; i++ {
		p := graph.NodePopulation[i]
		a := graph.NodeArea[i]
		result.TotalArea += a
		if selected[i] {
			result.SelectedPopulation += p
			result.SelectedArea += a
		} else {
			unselectedPopulation += p
		}
	}
	result.TotalPopulation = result.SelectedPopulation + unselectedPopulation

	if result.TotalPopulation > 0 {
		result.PopulationFraction = float64(result.SelectedPopulation) / float64(result.TotalPopulation)
	}

	rho := graph.Rho
	boundary := 0.0
	for _, e := range graph.Edges {
		if e.A < 0 || e.B < 0 || e.A >= n || e.B >= n {
			return nil, apperror.New(apperror.CodeInvalidGraph,
				fmt.Sprintf("edge %s references non-existent node", e.Key()))
		}
		if selected[e.A] != selected[e.B] {
			boundary += e.Length
		}
	}

	result.BoundaryCost = lambda * boundary / rho
	result.AreaCost = (1 - lambda) * result.SelectedArea / (rho * rho)
	result.PopulationReward = mu * float64(result.SelectedPopulation)
	result.Energy = result.BoundaryCost + result.AreaCost - result.PopulationReward

	return result, nil
}

// Energy returns only the objective value of selected at (λ, μ).
func Energy(graph *domain.GraphModel, selected []bool, lambda, mu float64) (float64, error) {
	r, err := Evaluate(graph, selected, lambda, mu)
	if err != nil {
		return 0, err
	}
	return r.Energy, nil
}
