package algorithms

import (
	"context"
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"districts/pkg/domain"
	"districts/services/partition-svc/internal/graph"
)

// =============================================================================
// Helpers
// =============================================================================

// cutCapacity sums the capacity of arcs leaving the source side.
func cutCapacity(spec *domain.FlowNetworkSpec, selected []bool) float64 {
	total := 0.0
	for i := 0; i < spec.NodeCount; i++ {
		if selected[i] {
			total += spec.SinkCaps[i]
		} else {
			total += spec.SourceCaps[i]
		}
	}
	for _, e := range spec.Edges {
		if selected[e.A] != selected[e.B] {
			total += e.Capacity
		}
	}
	return total
}

func randomSpec(rng *rand.Rand, n int) *domain.FlowNetworkSpec {
	spec := &domain.FlowNetworkSpec{
		NodeCount:  n,
		SourceCaps: make([]float64, n),
		SinkCaps:   make([]float64, n),
	}
	for i := 0; i < n; i++ {
		spec.SourceCaps[i] = math.Round(rng.Float64()*100) / 10
		spec.SinkCaps[i] = math.Round(rng.Float64()*100) / 10
	}
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			if rng.Float64() < 0.3 {
				spec.Edges = append(spec.Edges, domain.NetworkEdge{
					A: i, B: j, Capacity: math.Round(rng.Float64()*50) / 10,
				})
			}
		}
	}
	return spec
}

// bruteForceMinCut enumerates all source sides.
func bruteForceMinCut(spec *domain.FlowNetworkSpec) float64 {
	best := math.Inf(1)
	selected := make([]bool, spec.NodeCount)
	for mask := 0; mask < 1<<spec.NodeCount; mask++ {
		for i := range selected {
			selected[i] = mask&(1<<i) != 0
		}
		best = math.Min(best, cutCapacity(spec, selected))
	}
	return best
}

// =============================================================================
// ParseAlgorithm
// =============================================================================

func TestParseAlgorithm(t *testing.T) {
	tests := []struct {
		input   string
		want    Algorithm
		wantErr bool
	}{
		{"", AlgorithmDinic, false},
		{"dinic", AlgorithmDinic, false},
		{"edmonds_karp", AlgorithmEdmondsKarp, false},
		{"push_relabel", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseAlgorithm(tt.input)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrUnknownAlgorithm)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

// =============================================================================
// Solve
// =============================================================================

func TestMinCutSolver_Solve_Simple(t *testing.T) {
	// Node 0 strongly pulled to source, node 1 to sink, weak link between.
	spec := &domain.FlowNetworkSpec{
		NodeCount:  2,
		SourceCaps: []float64{10, 0},
		SinkCaps:   []float64{1, 10},
		Edges:      []domain.NetworkEdge{{A: 0, B: 1, Capacity: 2}},
	}

	for _, algo := range []Algorithm{AlgorithmDinic, AlgorithmEdmondsKarp} {
		t.Run(string(algo), func(t *testing.T) {
			cut, err := NewMinCutSolver(algo, nil).Solve(context.Background(), spec)
			require.NoError(t, err)

			assert.Equal(t, []bool{true, false}, cut.Selected)
			assert.InDelta(t, 3.0, cut.FlowValue, 1e-9)
		})
	}
}

func TestMinCutSolver_Solve_MaximalSourceSide(t *testing.T) {
	// Isolated node with no capacities: both sides are optimal, the maximal
	// source side includes it.
	spec := &domain.FlowNetworkSpec{
		NodeCount:  3,
		SourceCaps: []float64{5, 0, 0},
		SinkCaps:   []float64{0, 5, 0},
	}

	cut, err := NewMinCutSolver(AlgorithmDinic, nil).Solve(context.Background(), spec)
	require.NoError(t, err)

	assert.Equal(t, []bool{true, false, true}, cut.Selected)
	assert.Equal(t, 0.0, cut.FlowValue)
}

func TestMinCutSolver_Solve_Tie(t *testing.T) {
	// Equal source and sink capacity: selecting or not costs the same,
	// the tie resolves to the source side.
	spec := &domain.FlowNetworkSpec{
		NodeCount:  1,
		SourceCaps: []float64{4},
		SinkCaps:   []float64{4},
	}

	for _, algo := range []Algorithm{AlgorithmDinic, AlgorithmEdmondsKarp} {
		cut, err := NewMinCutSolver(algo, nil).Solve(context.Background(), spec)
		require.NoError(t, err)
		assert.Equal(t, []bool{true}, cut.Selected, string(algo))
		assert.InDelta(t, 4.0, cut.FlowValue, 1e-9)
	}
}

func TestMinCutSolver_Solve_MatchesBruteForce(t *testing.T) {
	rng := rand.New(rand.NewSource(7))

	for trial := 0; trial < 40; trial++ {
		spec := randomSpec(rng, 2+trial%6)
		want := bruteForceMinCut(spec)

		var cuts []*domain.Cut
		for _, algo := range []Algorithm{AlgorithmDinic, AlgorithmEdmondsKarp} {
			cut, err := NewMinCutSolver(algo, nil).Solve(context.Background(), spec)
			require.NoError(t, err)

			assert.InDelta(t, want, cut.FlowValue, 1e-6, "trial %d %s flow", trial, algo)
			assert.InDelta(t, want, cutCapacity(spec, cut.Selected), 1e-6, "trial %d %s cut", trial, algo)
			cuts = append(cuts, cut)
		}

		assert.Equal(t, cuts[0].Selected, cuts[1].Selected, "trial %d: algorithms disagree", trial)
	}
}

func TestMinCutSolver_Solve_Deterministic(t *testing.T) {
	spec := randomSpec(rand.New(rand.NewSource(99)), 30)
	solver := NewMinCutSolver(AlgorithmDinic, nil)

	first, err := solver.Solve(context.Background(), spec)
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		again, err := solver.Solve(context.Background(), spec)
		require.NoError(t, err)
		assert.Equal(t, first.Selected, again.Selected)
		assert.Equal(t, first.FlowValue, again.FlowValue)
	}
}

func TestMinCutSolver_Solve_Errors(t *testing.T) {
	solver := NewMinCutSolver(AlgorithmDinic, nil)

	tests := []struct {
		name string
		spec *domain.FlowNetworkSpec
		want error
	}{
		{"nil spec", nil, ErrNilSpec},
		{
			name: "size mismatch",
			spec: &domain.FlowNetworkSpec{NodeCount: 2, SourceCaps: []float64{1}, SinkCaps: []float64{1, 1}},
			want: ErrInvalidSpec,
		},
		{
			name: "negative capacity",
			spec: &domain.FlowNetworkSpec{NodeCount: 1, SourceCaps: []float64{-1}, SinkCaps: []float64{1}},
			want: ErrInvalidSpec,
		},
		{
			name: "NaN edge",
			spec: &domain.FlowNetworkSpec{
				NodeCount:  2,
				SourceCaps: []float64{1, 1},
				SinkCaps:   []float64{1, 1},
				Edges:      []domain.NetworkEdge{{A: 0, B: 1, Capacity: math.NaN()}},
			},
			want: ErrInvalidSpec,
		},
		{
			name: "edge out of range",
			spec: &domain.FlowNetworkSpec{
				NodeCount:  1,
				SourceCaps: []float64{1},
				SinkCaps:   []float64{1},
				Edges:      []domain.NetworkEdge{{A: 0, B: 3, Capacity: 1}},
			},
			want: ErrInvalidSpec,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := solver.Solve(context.Background(), tt.spec)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestMinCutSolver_Solve_Empty(t *testing.T) {
	cut, err := NewMinCutSolver(AlgorithmDinic, nil).Solve(context.Background(), &domain.FlowNetworkSpec{})

	require.NoError(t, err)
	assert.Empty(t, cut.Selected)
	assert.Equal(t, 0.0, cut.FlowValue)
}

func TestMinCutSolver_Solve_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	spec := randomSpec(rand.New(rand.NewSource(1)), 10)
	for _, algo := range []Algorithm{AlgorithmDinic, AlgorithmEdmondsKarp} {
		_, err := NewMinCutSolver(algo, nil).Solve(ctx, spec)
		assert.ErrorIs(t, err, ErrContextCanceled)
		assert.ErrorIs(t, err, context.Canceled)
	}
}

func TestMinCutSolver_Solve_IterationLimit(t *testing.T) {
	// Two disjoint augmenting paths need two Edmonds-Karp iterations.
	spec := &domain.FlowNetworkSpec{
		NodeCount:  2,
		SourceCaps: []float64{1, 1},
		SinkCaps:   []float64{1, 1},
	}
	opts := DefaultSolverOptions().WithMaxIterations(1)

	_, err := NewMinCutSolver(AlgorithmEdmondsKarp, opts).Solve(context.Background(), spec)
	assert.ErrorIs(t, err, ErrIterationLimit)
}

func TestMinCutSolver_UnknownAlgorithm(t *testing.T) {
	spec := &domain.FlowNetworkSpec{NodeCount: 1, SourceCaps: []float64{1}, SinkCaps: []float64{1}}

	_, err := NewMinCutSolver(Algorithm("simplex"), nil).Solve(context.Background(), spec)
	assert.ErrorIs(t, err, ErrUnknownAlgorithm)
}

func TestNewMinCutSolver_Defaults(t *testing.T) {
	s := NewMinCutSolver("", &SolverOptions{})

	assert.Equal(t, AlgorithmDinic, s.Algorithm())
	assert.Equal(t, graph.Epsilon, s.options.Epsilon)
	assert.NotNil(t, s.options.Pool)
}

func TestBuildNetwork_SkipsZeroCapacity(t *testing.T) {
	spec := &domain.FlowNetworkSpec{
		NodeCount:  2,
		SourceCaps: []float64{0, 3},
		SinkCaps:   []float64{2, 0},
		Edges:      []domain.NetworkEdge{{A: 0, B: 1, Capacity: 0}},
	}
	g := graph.NewResidualGraph(4)

	BuildNetwork(g, spec)

	assert.Equal(t, 2, g.EdgeCount())
}
