// This file implements the breadth-first traversals used by the flow solvers:
//   - level BFS for Dinic's blocking flows
//   - parent BFS for Edmonds-Karp augmenting paths
//   - reverse BFS from the sink for min-cut extraction
//
// All traversals follow neighbor insertion order and are deterministic.

package graph

// =============================================================================
// Queue Implementation
// =============================================================================

// Queue is a FIFO of node IDs backed by a reusable slice.
type Queue struct {
	data []int
	head int
}

// NewQueue creates a new Queue with the specified initial capacity.
func NewQueue(capacity int) *Queue {
	return &Queue{data: make([]int, 0, capacity)}
}

// Push adds an element to the end of the queue.
func (q *Queue) Push(v int) {
	q.data = append(q.data, v)
}

// Pop removes and returns the element at the front of the queue.
// Panics if the queue is empty.
func (q *Queue) Pop() int {
	v := q.data[q.head]
	q.head++
	return v
}

// Empty returns true if the queue contains no elements.
func (q *Queue) Empty() bool {
	return q.head >= len(q.data)
}

// Len returns the number of elements currently in the queue.
func (q *Queue) Len() int {
	return len(q.data) - q.head
}

// Reset clears the queue, keeping the underlying capacity.
func (q *Queue) Reset() {
	q.data = q.data[:0]
	q.head = 0
}

// =============================================================================
// Level BFS (Dinic)
// =============================================================================

// BFSLevel fills level with the BFS distance from source over edges with
// positive residual capacity. Unreached nodes get -1.
// Returns true if sink was reached.
func BFSLevel(g *ResidualGraph, source, sink int, level []int, q *Queue) bool {
	for i := range level {
		level[i] = -1
	}
	q.Reset()

	level[source] = 0
	q.Push(source)

	for !q.Empty() {
		u := q.Pop()
		for _, e := range g.GetNeighborsList(u) {
			if level[e.To] >= 0 || !e.HasCapacity() {
				continue
			}
			level[e.To] = level[u] + 1
			q.Push(e.To)
		}
	}

	return level[sink] >= 0
}

// =============================================================================
// Parent BFS (Edmonds-Karp)
// =============================================================================

// BFSPath finds a shortest augmenting path from source to sink.
// parent[v] is set to the edge used to enter v. Returns false when the sink
// is unreachable.
func BFSPath(g *ResidualGraph, source, sink int, parent []*ResidualEdge, q *Queue) bool {
	for i := range parent {
		parent[i] = nil
	}
	q.Reset()

	visited := make([]bool, g.NodeCount())
	visited[source] = true
	q.Push(source)

	for !q.Empty() {
		u := q.Pop()
		for _, e := range g.GetNeighborsList(u) {
			if visited[e.To] || !e.HasCapacity() {
				continue
			}
			visited[e.To] = true
			parent[e.To] = e
			if e.To == sink {
				return true
			}
			q.Push(e.To)
		}
	}

	return false
}

// =============================================================================
// Reverse BFS (cut extraction)
// =============================================================================

// ReachesSink returns, for every node, whether the sink is reachable from it
// through edges with positive residual capacity.
//
// After a maximum flow, the nodes that cannot reach the sink form the
// largest source side among all minimum cuts. That side is unique, so the
// cut does not depend on which max-flow algorithm produced the flow.
func ReachesSink(g *ResidualGraph, sink int) []bool {
	reach := make([]bool, g.NodeCount())
	reach[sink] = true

	q := NewQueue(g.NodeCount())
	q.Push(sink)

	for !q.Empty() {
		v := q.Pop()
		// e is v→u, so e.Rev is u→v.
		for _, e := range g.GetNeighborsList(v) {
			u := e.To
			if reach[u] || !e.Rev.HasCapacity() {
				continue
			}
			reach[u] = true
			q.Push(u)
		}
	}

	return reach
}
