package domain

import (
	"math"
	"testing"
)

func chainModel() *GraphModel {
	return NewGraphModel(
		[]uint64{100, 200, 300},
		[]float64{1000, 1000, 1000},
		[]Edge{{A: 1, B: 0, Length: 50}, {A: 1, B: 2, Length: 50}},
		100,
	)
}

func TestNewGraphModel_NormalizesEdges(t *testing.T) {
	g := chainModel()

	if g.NodeCount() != 3 {
		t.Fatalf("expected 3 nodes, got %d", g.NodeCount())
	}
	if g.EdgeCount() != 2 {
		t.Fatalf("expected 2 edges, got %d", g.EdgeCount())
	}
	for _, e := range g.Edges {
		if e.A >= e.B {
			t.Errorf("edge %v not normalized", e)
		}
	}
	if g.Edges[0].A != 0 || g.Edges[0].B != 1 {
		t.Errorf("expected first edge 0-1, got %s", g.Edges[0].Key())
	}
}

func TestGraphModel_LengthSymmetric(t *testing.T) {
	g := chainModel()

	l1, ok1 := g.Length(0, 1)
	l2, ok2 := g.Length(1, 0)
	if !ok1 || !ok2 {
		t.Fatal("expected edge 0-1 to exist")
	}
	if l1 != l2 || l1 != 50 {
		t.Errorf("expected symmetric length 50, got %v and %v", l1, l2)
	}

	if _, ok := g.Length(0, 2); ok {
		t.Error("expected no edge between 0 and 2")
	}
}

func TestGraphModel_LengthWithoutIndex(t *testing.T) {
	g := &GraphModel{
		NodePopulation: []uint64{1, 1},
		NodeArea:       []float64{1, 1},
		Edges:          []Edge{{A: 0, B: 1, Length: 7}},
		Rho:            1,
	}

	l, ok := g.Length(1, 0)
	if !ok || l != 7 {
		t.Errorf("expected length 7, got %v (ok=%v)", l, ok)
	}
}

func TestGraphModel_Totals(t *testing.T) {
	g := chainModel()

	if got := g.TotalPopulation(); got != 600 {
		t.Errorf("expected total population 600, got %d", got)
	}
	if got := g.TotalArea(); got != 3000 {
		t.Errorf("expected total area 3000, got %v", got)
	}
}

func TestGraphModel_Validate(t *testing.T) {
	tests := []struct {
		name      string
		graph     *GraphModel
		wantError bool
	}{
		{"valid chain", chainModel(), false},
		{
			name:      "empty",
			graph:     &GraphModel{Rho: 1},
			wantError: true,
		},
		{
			name: "length mismatch",
			graph: &GraphModel{
				NodePopulation: []uint64{1, 2},
				NodeArea:       []float64{1},
				Rho:            1,
			},
			wantError: true,
		},
		{
			name: "zero rho",
			graph: &GraphModel{
				NodePopulation: []uint64{1},
				NodeArea:       []float64{1},
			},
			wantError: true,
		},
		{
			name: "self loop",
			graph: &GraphModel{
				NodePopulation: []uint64{1, 1},
				NodeArea:       []float64{1, 1},
				Edges:          []Edge{{A: 1, B: 1, Length: 1}},
				Rho:            1,
			},
			wantError: true,
		},
		{
			name: "duplicate edge",
			graph: &GraphModel{
				NodePopulation: []uint64{1, 1},
				NodeArea:       []float64{1, 1},
				Edges:          []Edge{{A: 0, B: 1, Length: 1}, {A: 0, B: 1, Length: 2}},
				Rho:            1,
			},
			wantError: true,
		},
		{
			name: "unordered edge",
			graph: &GraphModel{
				NodePopulation: []uint64{1, 1},
				NodeArea:       []float64{1, 1},
				Edges:          []Edge{{A: 1, B: 0, Length: 1}},
				Rho:            1,
			},
			wantError: true,
		},
		{
			name: "out of range node",
			graph: &GraphModel{
				NodePopulation: []uint64{1, 1},
				NodeArea:       []float64{1, 1},
				Edges:          []Edge{{A: 0, B: 5, Length: 1}},
				Rho:            1,
			},
			wantError: true,
		},
		{
			name: "population above int64",
			graph: &GraphModel{
				NodePopulation: []uint64{MaxTotalPopulation + 1},
				NodeArea:       []float64{1},
				Rho:            1,
			},
			wantError: true,
		},
		{
			name: "total population overflows int64",
			graph: &GraphModel{
				NodePopulation: []uint64{MaxTotalPopulation, 1},
				NodeArea:       []float64{1, 1},
				Edges:          []Edge{{A: 0, B: 1, Length: 1}},
				Rho:            1,
			},
			wantError: true,
		},
		{
			name: "population at the bound",
			graph: &GraphModel{
				NodePopulation: []uint64{MaxTotalPopulation - 1, 1},
				NodeArea:       []float64{1, 1},
				Edges:          []Edge{{A: 0, B: 1, Length: 1}},
				Rho:            1,
			},
			wantError: false,
		},
		{
			name: "negative area",
			graph: &GraphModel{
				NodePopulation: []uint64{1},
				NodeArea:       []float64{-1},
				Rho:            1,
			},
			wantError: true,
		},
		{
			name: "NaN length",
			graph: &GraphModel{
				NodePopulation: []uint64{1, 1},
				NodeArea:       []float64{1, 1},
				Edges:          []Edge{{A: 0, B: 1, Length: math.NaN()}},
				Rho:            1,
			},
			wantError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errs := tt.graph.Validate()
			if tt.wantError && len(errs) == 0 {
				t.Error("expected validation errors, got none")
			}
			if !tt.wantError && len(errs) > 0 {
				t.Errorf("expected no errors, got %v", errs)
			}
		})
	}
}

func TestCharacteristicLength(t *testing.T) {
	tests := []struct {
		name     string
		areas    []float64
		expected float64
	}{
		{"empty", nil, 0},
		{"single", []float64{16}, 4},
		{"odd", []float64{100, 1, 25}, 5},
		{"even", []float64{1, 9, 25, 49}, 4},
		{"negative clamped", []float64{-4, 4, 16}, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CharacteristicLength(tt.areas); math.Abs(got-tt.expected) > Epsilon {
				t.Errorf("CharacteristicLength(%v) = %v, want %v", tt.areas, got, tt.expected)
			}
		})
	}
}

func TestConnectedComponents(t *testing.T) {
	g := NewGraphModel(
		[]uint64{1, 1, 1, 1, 1},
		[]float64{1, 1, 1, 1, 1},
		[]Edge{{A: 0, B: 1, Length: 1}, {A: 3, B: 4, Length: 1}},
		1,
	)

	components := ConnectedComponents(g)
	if len(components) != 3 {
		t.Fatalf("expected 3 components, got %d", len(components))
	}
	if len(components[0]) != 2 || components[0][0] != 0 {
		t.Errorf("unexpected first component %v", components[0])
	}
	if IsConnected(g) {
		t.Error("expected graph to be disconnected")
	}
	if !IsConnected(chainModel()) {
		t.Error("expected chain to be connected")
	}
}

func TestCalculateGraphStatistics(t *testing.T) {
	stats := CalculateGraphStatistics(chainModel())

	if stats.NodeCount != 3 || stats.EdgeCount != 2 {
		t.Errorf("unexpected counts: %d nodes, %d edges", stats.NodeCount, stats.EdgeCount)
	}
	if stats.TotalBoundaryLength != 100 {
		t.Errorf("expected boundary length 100, got %v", stats.TotalBoundaryLength)
	}
	if stats.AverageEdgeLength != 50 {
		t.Errorf("expected average edge length 50, got %v", stats.AverageEdgeLength)
	}
	if stats.MaxDegree != 2 || stats.MinDegree != 1 {
		t.Errorf("expected degrees in [1,2], got [%d,%d]", stats.MinDegree, stats.MaxDegree)
	}
	if math.Abs(stats.Density-2.0/3.0) > Epsilon {
		t.Errorf("expected density 2/3, got %v", stats.Density)
	}
	if !stats.IsConnected || stats.Components != 1 {
		t.Error("expected connected graph")
	}
	if stats.IsolatedNodes != 0 {
		t.Errorf("expected no isolated nodes, got %d", stats.IsolatedNodes)
	}
}

func TestSweepResult_LambdasAndOutcome(t *testing.T) {
	r := &SweepResult{
		Results: map[float64]*SearchResult{
			0.5: {Lambda: 0.5},
			0.0: {Lambda: 0.0},
			0.2: {Lambda: 0.2},
		},
		AllConverged: true,
	}

	lambdas := r.Lambdas()
	if len(lambdas) != 3 || lambdas[0] != 0 || lambdas[2] != 0.5 {
		t.Errorf("unexpected lambda order %v", lambdas)
	}
	if r.Outcome() != OutcomeConverged {
		t.Errorf("expected converged outcome, got %s", r.Outcome())
	}

	r.AllConverged = false
	if r.Outcome() != OutcomePartial {
		t.Errorf("expected partial outcome, got %s", r.Outcome())
	}
}

func TestPartitionResult_Closure(t *testing.T) {
	r := &PartitionResult{
		Selected:           []bool{true, false, true},
		SelectedPopulation: 400,
		TotalPopulation:    600,
	}

	if r.SelectedPopulation+r.UnselectedPopulation() != r.TotalPopulation {
		t.Error("population closure violated")
	}
	if r.SelectedCount() != 2 {
		t.Errorf("expected 2 selected nodes, got %d", r.SelectedCount())
	}
}

func TestFailurePolicy_Valid(t *testing.T) {
	if !FailFast.Valid() || !ContinueOnFailure.Valid() {
		t.Error("expected known policies to be valid")
	}
	if FailurePolicy("retry").Valid() {
		t.Error("expected unknown policy to be invalid")
	}
}
