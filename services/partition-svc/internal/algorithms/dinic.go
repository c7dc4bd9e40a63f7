package algorithms

import (
	"context"

	"districts/services/partition-svc/internal/graph"
)

// =============================================================================
// Dinic's Algorithm
// =============================================================================
//
// Dinic's algorithm builds a BFS level graph from the source and saturates it
// with a blocking flow, repeating until the sink is unreachable.
//
// Time Complexity: O(V² × E)
// Space Complexity: O(V + E)
//
// Energy networks are shallow (source → unit → ... → unit → sink), so the
// number of phases stays small even for large graphs.
// =============================================================================

// DinicResult contains the result of Dinic's algorithm.
type DinicResult struct {
	// MaxFlow is the maximum flow value computed.
	MaxFlow float64

	// Iterations is the number of BFS phases executed.
	Iterations int

	// Canceled indicates whether the operation was canceled via context.
	Canceled bool

	// Complete is true when the sink became unreachable, i.e. MaxFlow is
	// the maximum flow.
	Complete bool
}

// Dinic executes Dinic's algorithm without context cancellation support.
func Dinic(g *graph.ResidualGraph, source, sink int, options *SolverOptions) *DinicResult {
	return DinicWithContext(context.Background(), g, source, sink, options)
}

// DinicWithContext executes Dinic's algorithm with context cancellation.
// The context is polled before every phase.
func DinicWithContext(ctx context.Context, g *graph.ResidualGraph, source, sink int, options *SolverOptions) *DinicResult {
	if options == nil {
		options = DefaultSolverOptions()
	}
	pool := options.Pool
	if pool == nil {
		pool = graph.GetPool()
	}

	n := g.NodeCount()
	level := pool.AcquireIntSlice(n)
	defer pool.ReleaseIntSlice(level)
	currentArc := pool.AcquireIntSlice(n)
	defer pool.ReleaseIntSlice(currentArc)
	q := pool.AcquireQueue()
	defer pool.ReleaseQueue(q)

	result := &DinicResult{}

	for options.MaxIterations <= 0 || result.Iterations < options.MaxIterations {
		select {
		case <-ctx.Done():
			result.Canceled = true
			return result
		default:
		}

		// Phase 1: level graph
		if !graph.BFSLevel(g, source, sink, level, q) {
			result.Complete = true
			return result
		}

		// Phase 2: blocking flow
		for i := range currentArc {
			currentArc[i] = 0
		}
		blocking := 0.0
		for {
			pushed := dfsBlockingPath(g, source, sink, level, currentArc, options.Epsilon)
			if pushed <= options.Epsilon {
				break
			}
			blocking += pushed
		}

		result.Iterations++
		if blocking <= options.Epsilon {
			// Level graph reached the sink but nothing could be pushed:
			// remaining capacity is below Epsilon.
			result.Complete = true
			return result
		}
		result.MaxFlow += blocking
	}

	// Iteration limit hit; report whether the flow happens to be maximal.
	result.Complete = !graph.BFSLevel(g, source, sink, level, q)
	return result
}

// dfsBlockingPath finds one augmenting path in the level graph using an
// iterative DFS with current-arc pruning, augments it and returns the
// amount pushed.
func dfsBlockingPath(g *graph.ResidualGraph, source, sink int, level, currentArc []int, epsilon float64) float64 {
	type frame struct {
		node  int
		via   *graph.ResidualEdge
		limit float64
	}

	stack := make([]frame, 0, 16)
	stack = append(stack, frame{node: source, limit: graph.Infinity})

	for len(stack) > 0 {
		top := stack[len(stack)-1]
		u := top.node

		if u == sink {
			bottleneck := top.limit
			for _, f := range stack[1:] {
				g.Push(f.via, bottleneck)
			}
			return bottleneck
		}

		edges := g.GetNeighborsList(u)
		advanced := false
		for ; currentArc[u] < len(edges); currentArc[u]++ {
			e := edges[currentArc[u]]
			if level[e.To] != level[u]+1 || e.Capacity <= epsilon {
				continue
			}
			stack = append(stack, frame{node: e.To, via: e, limit: min(top.limit, e.Capacity)})
			advanced = true
			break
		}

		if !advanced {
			// Dead end: drop the node from the level graph and backtrack.
			level[u] = -1
			stack = stack[:len(stack)-1]
			if len(stack) > 0 {
				currentArc[stack[len(stack)-1].node]++
			}
		}
	}

	return 0
}
