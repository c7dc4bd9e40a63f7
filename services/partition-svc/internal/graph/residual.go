// Package graph provides the residual network used by the min-cut solvers.
package graph

import (
	"districts/pkg/domain"
)

// =============================================================================
// Constants
// =============================================================================

// Epsilon is the tolerance for floating-point comparisons.
// Residual capacities at or below Epsilon are treated as saturated.
const Epsilon = domain.Epsilon

// Infinity represents unlimited capacity.
const Infinity = domain.Infinity

// =============================================================================
// Residual Edge
// =============================================================================

// ResidualEdge is one direction of an arc in the residual network.
//
// Every arc is stored as a pair of ResidualEdges that reference each other
// through Rev. Pushing flow f along an edge decreases its residual capacity
// by f and increases the residual capacity of its pair by f.
//
// For a directed arc u→v with capacity c the pair is (u→v: c, v→u: 0).
// For an undirected n-link with capacity c the pair is (u→v: c, v→u: c),
// so each direction acts as the other's reverse.
type ResidualEdge struct {
	// To is the destination node.
	To int

	// Capacity is the current residual capacity.
	Capacity float64

	// Flow is the net flow pushed along this direction.
	// Negative when flow was pushed along the pair.
	Flow float64

	// OriginalCapacity is the capacity the edge was created with.
	OriginalCapacity float64

	// Rev is the paired edge in the opposite direction.
	Rev *ResidualEdge
}

// HasCapacity returns true if the edge has positive residual capacity.
func (e *ResidualEdge) HasCapacity() bool {
	return e.Capacity > Epsilon
}

// =============================================================================
// Residual Graph
// =============================================================================

// ResidualGraph is a dense adjacency-list residual network.
//
// Nodes are identified by 0..NodeCount()-1. Neighbor lists keep insertion
// order, so every traversal is deterministic for a given construction
// sequence.
//
// ResidualGraph is NOT thread-safe. Each solve acquires its own graph from
// the pool and releases it afterwards.
type ResidualGraph struct {
	adj   [][]*ResidualEdge
	edges int
}

// NewResidualGraph creates a graph with n nodes and no edges.
func NewResidualGraph(n int) *ResidualGraph {
	rg := &ResidualGraph{}
	rg.Reset(n)
	return rg
}

// =============================================================================
// Graph Modification
// =============================================================================

// Reset removes all edges and resizes the graph to n nodes.
// Neighbor slices keep their capacity for reuse through the pool.
func (rg *ResidualGraph) Reset(n int) {
	if cap(rg.adj) < n {
		rg.adj = make([][]*ResidualEdge, n)
	} else {
		rg.adj = rg.adj[:n]
		for i := range rg.adj {
			rg.adj[i] = rg.adj[i][:0]
		}
	}
	rg.edges = 0
}

// AddEdge adds a directed arc from→to with the given capacity and a
// zero-capacity reverse edge.
func (rg *ResidualGraph) AddEdge(from, to int, capacity float64) *ResidualEdge {
	return rg.addPair(from, to, capacity, 0)
}

// AddUndirectedEdge adds an arc usable in both directions with the same
// capacity. Used for n-links between adjacent units.
func (rg *ResidualGraph) AddUndirectedEdge(a, b int, capacity float64) *ResidualEdge {
	return rg.addPair(a, b, capacity, capacity)
}

func (rg *ResidualGraph) addPair(from, to int, forward, backward float64) *ResidualEdge {
	fwd := &ResidualEdge{To: to, Capacity: forward, OriginalCapacity: forward}
	rev := &ResidualEdge{To: from, Capacity: backward, OriginalCapacity: backward}
	fwd.Rev = rev
	rev.Rev = fwd

	rg.adj[from] = append(rg.adj[from], fwd)
	rg.adj[to] = append(rg.adj[to], rev)
	rg.edges++
	return fwd
}

// =============================================================================
// Access
// =============================================================================

// NodeCount returns the number of nodes.
func (rg *ResidualGraph) NodeCount() int {
	return len(rg.adj)
}

// EdgeCount returns the number of arcs added (each arc is one edge pair).
func (rg *ResidualGraph) EdgeCount() int {
	return rg.edges
}

// GetNeighborsList returns outgoing residual edges of a node in insertion
// order.
func (rg *ResidualGraph) GetNeighborsList(node int) []*ResidualEdge {
	return rg.adj[node]
}

// =============================================================================
// Flow Operations
// =============================================================================

// Push sends flow along e and updates the paired edge.
func (rg *ResidualGraph) Push(e *ResidualEdge, flow float64) {
	e.Capacity -= flow
	e.Flow += flow
	e.Rev.Capacity += flow
	e.Rev.Flow -= flow
}

// GetTotalFlow returns the net flow leaving the source node.
func (rg *ResidualGraph) GetTotalFlow(source int) float64 {
	total := 0.0
	for _, e := range rg.adj[source] {
		total += e.Flow
	}
	return total
}

// ResetFlow restores the original capacities and clears all flow.
func (rg *ResidualGraph) ResetFlow() {
	for _, edges := range rg.adj {
		for _, e := range edges {
			e.Capacity = e.OriginalCapacity
			e.Flow = 0
		}
	}
}
