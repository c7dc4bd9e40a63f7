package domain

// Adjacency строит списки смежности модели.
// Соседи каждого узла упорядочены так же, как рёбра в модели.
func Adjacency(g *GraphModel) [][]int {
	adj := make([][]int, g.NodeCount())
	for _, e := range g.Edges {
		if e.A < 0 || e.B < 0 || e.A >= len(adj) || e.B >= len(adj) {
			continue
		}
		adj[e.A] = append(adj[e.A], e.B)
		adj[e.B] = append(adj[e.B], e.A)
	}
	return adj
}

// ConnectedComponents возвращает компоненты связности в порядке
// наименьшего индекса узла
func ConnectedComponents(g *GraphModel) [][]int {
	adj := Adjacency(g)
	visited := make([]bool, len(adj))
	var components [][]int

	for start := range adj {
		if visited[start] {
			continue
		}

		component := []int{start}
		visited[start] = true
		queue := []int{start}

		for len(queue) > 0 {
			u := queue[0]
			queue = queue[1:]

			for _, v := range adj[u] {
				if visited[v] {
					continue
				}
				visited[v] = true
				component = append(component, v)
				queue = append(queue, v)
			}
		}

		components = append(components, component)
	}

	return components
}

// IsConnected проверяет связность графа
func IsConnected(g *GraphModel) bool {
	if g.NodeCount() == 0 {
		return true
	}
	return len(ConnectedComponents(g)) == 1
}
