package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewResidualGraph(t *testing.T) {
	rg := NewResidualGraph(4)

	require.NotNil(t, rg)
	assert.Equal(t, 4, rg.NodeCount())
	assert.Equal(t, 0, rg.EdgeCount())
	for i := 0; i < 4; i++ {
		assert.Empty(t, rg.GetNeighborsList(i))
	}
}

func TestResidualGraph_AddEdge(t *testing.T) {
	rg := NewResidualGraph(2)
	e := rg.AddEdge(0, 1, 10)

	require.Len(t, rg.GetNeighborsList(0), 1)
	require.Len(t, rg.GetNeighborsList(1), 1)
	assert.Equal(t, 1, rg.EdgeCount())

	assert.Equal(t, 1, e.To)
	assert.Equal(t, 10.0, e.Capacity)
	assert.Equal(t, 0.0, e.Rev.Capacity)
	assert.Same(t, e, e.Rev.Rev)
}

func TestResidualGraph_AddUndirectedEdge(t *testing.T) {
	rg := NewResidualGraph(2)
	e := rg.AddUndirectedEdge(0, 1, 3)

	assert.Equal(t, 3.0, e.Capacity)
	assert.Equal(t, 3.0, e.Rev.Capacity)
	assert.Equal(t, 0, e.Rev.To)
}

func TestResidualGraph_Push(t *testing.T) {
	t.Run("directed", func(t *testing.T) {
		rg := NewResidualGraph(2)
		e := rg.AddEdge(0, 1, 10)

		rg.Push(e, 4)

		assert.Equal(t, 6.0, e.Capacity)
		assert.Equal(t, 4.0, e.Flow)
		assert.Equal(t, 4.0, e.Rev.Capacity)
		assert.Equal(t, -4.0, e.Rev.Flow)
		assert.Equal(t, 4.0, rg.GetTotalFlow(0))
	})

	t.Run("undirected both ways", func(t *testing.T) {
		rg := NewResidualGraph(2)
		e := rg.AddUndirectedEdge(0, 1, 5)

		rg.Push(e, 5)
		assert.False(t, e.HasCapacity())
		assert.Equal(t, 10.0, e.Rev.Capacity)

		rg.Push(e.Rev, 7)
		assert.Equal(t, 7.0, e.Capacity)
		assert.Equal(t, 3.0, e.Rev.Capacity)
		assert.Equal(t, -2.0, e.Flow)
	})
}

func TestResidualGraph_ResetFlow(t *testing.T) {
	rg := NewResidualGraph(3)
	a := rg.AddEdge(0, 1, 5)
	b := rg.AddUndirectedEdge(1, 2, 2)
	rg.Push(a, 2)
	rg.Push(b, 2)

	rg.ResetFlow()

	assert.Equal(t, 5.0, a.Capacity)
	assert.Equal(t, 0.0, a.Rev.Capacity)
	assert.Equal(t, 2.0, b.Capacity)
	assert.Equal(t, 2.0, b.Rev.Capacity)
	assert.Equal(t, 0.0, rg.GetTotalFlow(0))
}

func TestResidualGraph_ResetReusesStorage(t *testing.T) {
	rg := NewResidualGraph(3)
	rg.AddEdge(0, 1, 1)
	rg.AddEdge(1, 2, 1)

	rg.Reset(2)
	assert.Equal(t, 2, rg.NodeCount())
	assert.Equal(t, 0, rg.EdgeCount())
	assert.Empty(t, rg.GetNeighborsList(0))

	rg.Reset(5)
	assert.Equal(t, 5, rg.NodeCount())
	for i := 0; i < 5; i++ {
		assert.Empty(t, rg.GetNeighborsList(i))
	}
}

// =============================================================================
// BFS
// =============================================================================

func TestQueue(t *testing.T) {
	q := NewQueue(2)
	assert.True(t, q.Empty())

	q.Push(1)
	q.Push(2)
	q.Push(3)
	assert.Equal(t, 3, q.Len())
	assert.Equal(t, 1, q.Pop())
	assert.Equal(t, 2, q.Len())

	q.Reset()
	assert.True(t, q.Empty())
}

func TestBFSLevel(t *testing.T) {
	rg := NewResidualGraph(4)
	rg.AddEdge(0, 1, 1)
	rg.AddEdge(1, 2, 1)
	rg.AddEdge(0, 2, 0)
	rg.AddEdge(2, 3, 1)

	level := make([]int, 4)
	found := BFSLevel(rg, 0, 3, level, NewQueue(4))

	require.True(t, found)
	assert.Equal(t, []int{0, 1, 2, 3}, level)
}

func TestBFSLevel_Unreachable(t *testing.T) {
	rg := NewResidualGraph(3)
	rg.AddEdge(0, 1, 1)

	level := make([]int, 3)
	assert.False(t, BFSLevel(rg, 0, 2, level, NewQueue(3)))
	assert.Equal(t, -1, level[2])
}

func TestBFSPath(t *testing.T) {
	rg := NewResidualGraph(4)
	rg.AddEdge(0, 1, 1)
	rg.AddEdge(0, 2, 1)
	rg.AddEdge(1, 3, 1)
	rg.AddEdge(2, 3, 1)

	parent := make([]*ResidualEdge, 4)
	require.True(t, BFSPath(rg, 0, 3, parent, NewQueue(4)))

	// First inserted branch wins.
	require.NotNil(t, parent[3])
	require.NotNil(t, parent[1])
	assert.Equal(t, 0, parent[1].Rev.To)
	assert.Equal(t, 1, parent[3].Rev.To)
}

func TestReachesSink(t *testing.T) {
	// 0 -> 1 -> 3 (sink), 2 isolated from sink, 1 -> 2 saturated direction.
	rg := NewResidualGraph(4)
	rg.AddEdge(0, 1, 1)
	rg.AddEdge(1, 3, 1)
	rg.AddEdge(2, 1, 0)

	reach := ReachesSink(rg, 3)

	assert.Equal(t, []bool{true, true, false, true}, reach)
}

// =============================================================================
// Pool
// =============================================================================

func TestGraphPool(t *testing.T) {
	pool := NewGraphPool()

	g := pool.AcquireGraph(3)
	g.AddEdge(0, 1, 1)
	pool.ReleaseGraph(g)

	g2 := pool.AcquireGraph(2)
	assert.Equal(t, 2, g2.NodeCount())
	assert.Equal(t, 0, g2.EdgeCount())
	pool.ReleaseGraph(g2)
	pool.ReleaseGraph(nil)

	s := pool.AcquireIntSlice(200)
	assert.Len(t, s, 200)
	pool.ReleaseIntSlice(s)

	q := pool.AcquireQueue()
	q.Push(1)
	pool.ReleaseQueue(q)
	assert.True(t, pool.AcquireQueue().Empty())
}

func TestGetPool(t *testing.T) {
	assert.Same(t, GetPool(), GetPool())
}
