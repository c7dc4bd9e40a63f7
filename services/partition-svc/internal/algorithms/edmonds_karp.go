package algorithms

import (
	"context"

	"districts/services/partition-svc/internal/graph"
)

// =============================================================================
// Edmonds-Karp Algorithm
// =============================================================================
//
// Ford-Fulkerson with BFS-chosen shortest augmenting paths.
//
// Time Complexity: O(V × E²)
// Space Complexity: O(V + E)
//
// Slower than Dinic on large graphs; kept as an independent cross-check of
// the default solver.
// =============================================================================

// EdmondsKarpResult contains the result of the Edmonds-Karp algorithm.
type EdmondsKarpResult struct {
	// MaxFlow is the maximum flow value computed.
	MaxFlow float64

	// Iterations is the number of augmenting paths found.
	Iterations int

	// Canceled indicates whether the operation was canceled via context.
	Canceled bool

	// Complete is true when no augmenting path remains.
	Complete bool
}

// EdmondsKarp executes the Edmonds-Karp algorithm without context cancellation.
func EdmondsKarp(g *graph.ResidualGraph, source, sink int, options *SolverOptions) *EdmondsKarpResult {
	return EdmondsKarpWithContext(context.Background(), g, source, sink, options)
}

// EdmondsKarpWithContext executes the Edmonds-Karp algorithm with context
// cancellation, checked every checkInterval augmentations.
func EdmondsKarpWithContext(ctx context.Context, g *graph.ResidualGraph, source, sink int, options *SolverOptions) *EdmondsKarpResult {
	if options == nil {
		options = DefaultSolverOptions()
	}
	pool := options.Pool
	if pool == nil {
		pool = graph.GetPool()
	}

	parent := make([]*graph.ResidualEdge, g.NodeCount())
	q := pool.AcquireQueue()
	defer pool.ReleaseQueue(q)

	const checkInterval = 64
	result := &EdmondsKarpResult{}

	for options.MaxIterations <= 0 || result.Iterations < options.MaxIterations {
		if result.Iterations%checkInterval == 0 {
			select {
			case <-ctx.Done():
				result.Canceled = true
				return result
			default:
			}
		}

		if !graph.BFSPath(g, source, sink, parent, q) {
			result.Complete = true
			return result
		}

		// Bottleneck along the path, walking back from the sink.
		bottleneck := graph.Infinity
		for v := sink; v != source; v = parent[v].Rev.To {
			bottleneck = min(bottleneck, parent[v].Capacity)
		}
		for v := sink; v != source; v = parent[v].Rev.To {
			g.Push(parent[v], bottleneck)
		}

		result.MaxFlow += bottleneck
		result.Iterations++
	}

	result.Complete = !graph.BFSPath(g, source, sink, parent, q)
	return result
}
