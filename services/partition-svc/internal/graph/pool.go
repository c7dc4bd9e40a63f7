package graph

import (
	"sync"
)

// =============================================================================
// Graph Pool
// =============================================================================

// GraphPool recycles residual graphs and scratch buffers between solves.
//
// A sweep builds one network per (λ, μ) pair, so the same shapes are
// allocated thousands of times. The pool is safe for concurrent use.
//
//	pool := graph.GetPool()
//	g := pool.AcquireGraph(n)
//	defer pool.ReleaseGraph(g)
type GraphPool struct {
	graphs    sync.Pool
	intSlices sync.Pool
	queues    sync.Pool
}

var globalPool = NewGraphPool()

// NewGraphPool creates an empty pool.
func NewGraphPool() *GraphPool {
	return &GraphPool{
		graphs: sync.Pool{
			New: func() any {
				return &ResidualGraph{}
			},
		},
		intSlices: sync.Pool{
			New: func() any {
				s := make([]int, 0, 128)
				return &s
			},
		},
		queues: sync.Pool{
			New: func() any {
				return NewQueue(128)
			},
		},
	}
}

// GetPool returns the process-wide pool.
func GetPool() *GraphPool {
	return globalPool
}

// AcquireGraph returns an empty graph with n nodes.
func (p *GraphPool) AcquireGraph(n int) *ResidualGraph {
	g := p.graphs.Get().(*ResidualGraph)
	g.Reset(n)
	return g
}

// ReleaseGraph returns a graph to the pool. Nil is ignored.
func (p *GraphPool) ReleaseGraph(g *ResidualGraph) {
	if g == nil {
		return
	}
	g.Reset(0)
	p.graphs.Put(g)
}

// AcquireIntSlice returns a slice of length n. Contents are not cleared.
func (p *GraphPool) AcquireIntSlice(n int) []int {
	sp := p.intSlices.Get().(*[]int)
	s := *sp
	if cap(s) < n {
		s = make([]int, n)
	}
	return s[:n]
}

// ReleaseIntSlice returns a slice to the pool.
func (p *GraphPool) ReleaseIntSlice(s []int) {
	if s == nil {
		return
	}
	s = s[:0]
	p.intSlices.Put(&s)
}

// AcquireQueue returns an empty queue.
func (p *GraphPool) AcquireQueue() *Queue {
	q := p.queues.Get().(*Queue)
	q.Reset()
	return q
}

// ReleaseQueue returns a queue to the pool.
func (p *GraphPool) ReleaseQueue(q *Queue) {
	if q == nil {
		return
	}
	q.Reset()
	p.queues.Put(q)
}
