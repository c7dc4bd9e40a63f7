// Package energy maps the partition energy
//
//	E(X) = λ·Σ_{i~j, xi≠xj} ℓij/ρ + (1−λ)·Σ_i (ai/ρ²)·xi − μ·Σ_i pi·xi
//
// onto an s-t flow network whose minimum cut equals E(X) + μ·Σ pi.
//
// A unit on the source side is selected. Leaving unit i unselected cuts its
// source arc (μ·pi), selecting it cuts its sink arc ((1−λ)·ai/ρ²), and every
// neighbor pair split by the cut pays its n-link (λ·ℓij/ρ). Dividing area by
// ρ² and boundary length by ρ puts both terms on the same dimensionless
// scale.
package energy

import (
	"fmt"
	"math"

	"districts/pkg/apperror"
	"districts/pkg/domain"
)

// ValidateParameters checks λ ∈ [0, 1) and μ ≥ 0.
//
// λ = 1 removes the area term entirely, which makes selecting every unit
// optimal for any μ, so it is rejected rather than clamped.
func ValidateParameters(lambda, mu float64) error {
	if !domain.ValidLambda(lambda) {
		return apperror.InvalidParameter("lambda", lambda, "must be in [0, 1)")
	}
	if !domain.ValidMu(mu) {
		return apperror.InvalidParameter("mu", mu, "must be finite and >= 0")
	}
	return nil
}

// ValidateRho checks that ρ is positive and finite.
func ValidateRho(rho float64) error {
	if math.IsNaN(rho) || math.IsInf(rho, 0) || rho <= 0 {
		return apperror.NewWithField(apperror.CodeInvalidGraph,
			fmt.Sprintf("rho must be positive and finite, got %v", rho), "rho")
	}
	return nil
}

// Build returns the flow network for (graph, λ, μ).
//
// Parameters are validated before any capacity is computed. A capacity that
// comes out NaN, infinite or negative (degenerate ρ, area, length) fails the
// whole build with INVALID_CAPACITY; no partial network is returned.
// Build does not modify graph.
func Build(graph *domain.GraphModel, lambda, mu float64) (*domain.FlowNetworkSpec, error) {
	if graph == nil {
		return nil, apperror.ErrNilGraph
	}
	if err := ValidateParameters(lambda, mu); err != nil {
		return nil, err
	}

	n := graph.NodeCount()
	if len(graph.NodeArea) != n {
		return nil, apperror.New(apperror.CodeInvalidGraph,
			fmt.Sprintf("population has %d entries, area has %d", n, len(graph.NodeArea)))
	}

	rho := graph.Rho
	if err := ValidateRho(rho); err != nil {
		return nil, err
	}
	rho2 := rho * rho
	areaWeight := 1 - lambda

	spec := &domain.FlowNetworkSpec{
		NodeCount:  n,
		SourceCaps: make([]float64, n),
		SinkCaps:   make([]float64, n),
		Edges:      make([]domain.NetworkEdge, 0, len(graph.Edges)),
		Lambda:     lambda,
		Mu:         mu,
	}

	for i := 0; i < n; i++ {
		src := mu * float64(graph.NodePopulation[i])
		snk := areaWeight * graph.NodeArea[i] / rho2
		if !domain.IsFiniteNonNegative(src) {
			return nil, invalidCapacity(fmt.Sprintf("node %d", i), "source", src)
		}
		if !domain.IsFiniteNonNegative(snk) {
			return nil, invalidCapacity(fmt.Sprintf("node %d", i), "sink", snk)
		}
		spec.SourceCaps[i] = src
		spec.SinkCaps[i] = snk
	}

	for _, e := range graph.Edges {
		if e.A < 0 || e.B < 0 || e.A >= n || e.B >= n {
			return nil, apperror.New(apperror.CodeInvalidGraph,
				fmt.Sprintf("edge %s references non-existent node", e.Key()))
		}
		c := lambda * e.Length / rho
		if !domain.IsFiniteNonNegative(c) {
			return nil, invalidCapacity("edge "+e.Key().String(), "n-link", c)
		}
		spec.Edges = append(spec.Edges, domain.NetworkEdge{A: e.A, B: e.B, Capacity: c})
	}

	return spec, nil
}

func invalidCapacity(where, kind string, value float64) *apperror.Error {
	return apperror.New(apperror.CodeInvalidCapacity,
		fmt.Sprintf("%s %s capacity is %v", where, kind, value)).
		WithDetails("location", where).
		WithDetails("value", value)
}

// CutOffset returns μ·Σpi, the constant separating the min-cut value from
// the minimum energy: cut = E + μ·Σpi.
func CutOffset(graph *domain.GraphModel, mu float64) float64 {
	return mu * float64(graph.TotalPopulation())
}

// MuScale returns the area cost per person, (Σa / Σp) / ρ².
// Returns 0 when population, area or ρ make the ratio undefined.
func MuScale(graph *domain.GraphModel) float64 {
	pop := graph.TotalPopulation()
	area := graph.TotalArea()
	rho2 := graph.Rho * graph.Rho
	if pop == 0 || area <= 0 || rho2 <= 0 {
		return 0
	}
	scale := area / float64(pop) / rho2
	if math.IsNaN(scale) || math.IsInf(scale, 0) {
		return 0
	}
	return scale
}
