// Package algorithms provides the min-cut solvers consumed by the μ search.
//
// Each solver turns a domain.FlowNetworkSpec into a residual network with
// two terminals, runs a max-flow algorithm on it and extracts the minimum
// cut.
//
// # Determinism
//
// The selected side is the set of nodes that cannot reach the sink in the
// final residual network. That set is the unique maximal source side of a
// minimum cut, so Dinic and Edmonds-Karp return the same partition for the
// same capacities.
//
// # Thread Safety
//
// MinCutSolver is safe for concurrent use. Every Solve call acquires its own
// residual graph from the pool and releases it before returning.
package algorithms

import (
	"context"
	"errors"
	"fmt"
	"time"

	"districts/pkg/domain"
	"districts/services/partition-svc/internal/graph"
)

// =============================================================================
// Error Definitions
// =============================================================================

var (
	// ErrNilSpec indicates that a nil network spec was passed to the solver.
	ErrNilSpec = errors.New("network spec is nil")

	// ErrInvalidSpec indicates inconsistent sizes or invalid capacities.
	ErrInvalidSpec = errors.New("invalid network spec")

	// ErrContextCanceled indicates that the operation was cancelled via context.
	ErrContextCanceled = errors.New("context canceled")

	// ErrIterationLimit indicates the algorithm stopped before reaching max flow.
	ErrIterationLimit = errors.New("iteration limit reached before max flow")

	// ErrUnknownAlgorithm indicates an unsupported algorithm name.
	ErrUnknownAlgorithm = errors.New("unknown algorithm")
)

// =============================================================================
// Algorithm Selection
// =============================================================================

// Algorithm names a max-flow algorithm.
type Algorithm string

const (
	AlgorithmDinic       Algorithm = "dinic"
	AlgorithmEdmondsKarp Algorithm = "edmonds_karp"
)

// ParseAlgorithm converts a configuration value into an Algorithm.
// An empty string selects Dinic.
func ParseAlgorithm(name string) (Algorithm, error) {
	switch Algorithm(name) {
	case "", AlgorithmDinic:
		return AlgorithmDinic, nil
	case AlgorithmEdmondsKarp:
		return AlgorithmEdmondsKarp, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownAlgorithm, name)
	}
}

// =============================================================================
// Solver Options
// =============================================================================

// SolverOptions configures the behavior of flow algorithms.
//
//	opts := DefaultSolverOptions().
//	    WithTimeout(10 * time.Second).
//	    WithPool(customPool)
type SolverOptions struct {
	// Epsilon is the tolerance for floating-point comparisons.
	// Default: graph.Epsilon (1e-9)
	Epsilon float64

	// MaxIterations limits the number of phases (Dinic) or augmenting paths
	// (Edmonds-Karp). Zero means unlimited.
	MaxIterations int

	// Timeout bounds a single solve. Zero means no timeout (relies on context).
	Timeout time.Duration

	// Pool is the graph pool for memory reuse.
	// If nil, the global pool is used.
	Pool *graph.GraphPool
}

// DefaultSolverOptions returns options with sensible defaults.
func DefaultSolverOptions() *SolverOptions {
	return &SolverOptions{
		Epsilon:       graph.Epsilon,
		MaxIterations: 0,
		Timeout:       0,
		Pool:          graph.GetPool(),
	}
}

// WithPool sets the graph pool and returns the options for chaining.
func (o *SolverOptions) WithPool(pool *graph.GraphPool) *SolverOptions {
	o.Pool = pool
	return o
}

// WithTimeout sets the timeout and returns the options for chaining.
func (o *SolverOptions) WithTimeout(timeout time.Duration) *SolverOptions {
	o.Timeout = timeout
	return o
}

// WithMaxIterations sets the iteration limit and returns the options for chaining.
func (o *SolverOptions) WithMaxIterations(max int) *SolverOptions {
	o.MaxIterations = max
	return o
}

// =============================================================================
// Min-Cut Solver
// =============================================================================

// MinCutSolver computes a globally optimal minimum s-t cut of a
// FlowNetworkSpec.
type MinCutSolver struct {
	algorithm Algorithm
	options   *SolverOptions
}

// NewMinCutSolver creates a solver. nil options use DefaultSolverOptions().
func NewMinCutSolver(algorithm Algorithm, options *SolverOptions) *MinCutSolver {
	if options == nil {
		options = DefaultSolverOptions()
	}
	if options.Pool == nil {
		options.Pool = graph.GetPool()
	}
	if options.Epsilon <= 0 {
		options.Epsilon = graph.Epsilon
	}
	if algorithm == "" {
		algorithm = AlgorithmDinic
	}
	return &MinCutSolver{algorithm: algorithm, options: options}
}

// Algorithm returns the configured algorithm.
func (s *MinCutSolver) Algorithm() Algorithm {
	return s.algorithm
}

// Solve builds the residual network for spec, computes the maximum flow and
// returns the minimum cut. The spec is not modified.
func (s *MinCutSolver) Solve(ctx context.Context, spec *domain.FlowNetworkSpec) (*domain.Cut, error) {
	if spec == nil {
		return nil, ErrNilSpec
	}
	if err := validateSpec(spec); err != nil {
		return nil, err
	}
	if spec.NodeCount == 0 {
		return &domain.Cut{Selected: []bool{}}, nil
	}

	if s.options.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.options.Timeout)
		defer cancel()
	}

	pool := s.options.Pool
	g := pool.AcquireGraph(spec.NodeCount + 2)
	defer pool.ReleaseGraph(g)

	source, sink := spec.SourceID(), spec.SinkID()
	BuildNetwork(g, spec)

	var (
		maxFlow    float64
		iterations int
		canceled   bool
		complete   bool
	)

	switch s.algorithm {
	case AlgorithmEdmondsKarp:
		r := EdmondsKarpWithContext(ctx, g, source, sink, s.options)
		maxFlow, iterations, canceled, complete = r.MaxFlow, r.Iterations, r.Canceled, r.Complete
	case AlgorithmDinic:
		r := DinicWithContext(ctx, g, source, sink, s.options)
		maxFlow, iterations, canceled, complete = r.MaxFlow, r.Iterations, r.Canceled, r.Complete
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownAlgorithm, s.algorithm)
	}

	if canceled {
		return nil, fmt.Errorf("%w: %w", ErrContextCanceled, ctx.Err())
	}
	if !complete {
		return nil, fmt.Errorf("%w after %d iterations", ErrIterationLimit, iterations)
	}

	reach := graph.ReachesSink(g, sink)
	selected := make([]bool, spec.NodeCount)
	for i := range selected {
		selected[i] = !reach[i]
	}

	return &domain.Cut{
		Selected:   selected,
		FlowValue:  maxFlow,
		Iterations: iterations,
	}, nil
}

// =============================================================================
// Network Construction
// =============================================================================

// BuildNetwork adds the terminal and neighbor arcs of spec to g.
// g must have spec.NodeCount+2 nodes. Zero-capacity arcs are skipped.
func BuildNetwork(g *graph.ResidualGraph, spec *domain.FlowNetworkSpec) {
	source, sink := spec.SourceID(), spec.SinkID()

	for i := 0; i < spec.NodeCount; i++ {
		if c := spec.SourceCaps[i]; c > 0 {
			g.AddEdge(source, i, c)
		}
		if c := spec.SinkCaps[i]; c > 0 {
			g.AddEdge(i, sink, c)
		}
	}

	for _, e := range spec.Edges {
		if e.Capacity > 0 {
			g.AddUndirectedEdge(e.A, e.B, e.Capacity)
		}
	}
}

// validateSpec checks sizes, endpoints and capacities.
func validateSpec(spec *domain.FlowNetworkSpec) error {
	n := spec.NodeCount
	if n < 0 {
		return fmt.Errorf("%w: negative node count %d", ErrInvalidSpec, n)
	}
	if len(spec.SourceCaps) != n || len(spec.SinkCaps) != n {
		return fmt.Errorf("%w: %d nodes but %d source and %d sink capacities",
			ErrInvalidSpec, n, len(spec.SourceCaps), len(spec.SinkCaps))
	}

	for i := 0; i < n; i++ {
		if !domain.IsFiniteNonNegative(spec.SourceCaps[i]) {
			return fmt.Errorf("%w: source capacity of node %d is %v", ErrInvalidSpec, i, spec.SourceCaps[i])
		}
		if !domain.IsFiniteNonNegative(spec.SinkCaps[i]) {
			return fmt.Errorf("%w: sink capacity of node %d is %v", ErrInvalidSpec, i, spec.SinkCaps[i])
		}
	}

	for _, e := range spec.Edges {
		if e.A < 0 || e.B < 0 || e.A >= n || e.B >= n || e.A == e.B {
			return fmt.Errorf("%w: edge %d-%d out of range", ErrInvalidSpec, e.A, e.B)
		}
		if !domain.IsFiniteNonNegative(e.Capacity) {
			return fmt.Errorf("%w: edge %d-%d capacity is %v", ErrInvalidSpec, e.A, e.B, e.Capacity)
		}
	}

	return nil
}
