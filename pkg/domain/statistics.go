package domain

// GraphStatistics статистика графа смежности
type GraphStatistics struct {
	NodeCount           int
	EdgeCount           int
	TotalPopulation     uint64
	TotalArea           float64
	TotalBoundaryLength float64
	AverageEdgeLength   float64
	Density             float64
	AverageDegree       float64
	MaxDegree           int
	MinDegree           int
	IsolatedNodes       int
	Components          int
	IsConnected         bool
}

// CalculateGraphStatistics вычисляет статистику графа
func CalculateGraphStatistics(g *GraphModel) *GraphStatistics {
	stats := &GraphStatistics{
		NodeCount:       g.NodeCount(),
		EdgeCount:       g.EdgeCount(),
		TotalPopulation: g.TotalPopulation(),
		TotalArea:       g.TotalArea(),
	}

	for _, e := range g.Edges {
		stats.TotalBoundaryLength += e.Length
	}
	if stats.EdgeCount > 0 {
		stats.AverageEdgeLength = stats.TotalBoundaryLength / float64(stats.EdgeCount)
	}

	// Статистика степеней
	adj := Adjacency(g)
	if len(adj) > 0 {
		stats.MinDegree = len(adj[0])
		totalDegree := 0
		for _, neighbors := range adj {
			d := len(neighbors)
			totalDegree += d
			if d > stats.MaxDegree {
				stats.MaxDegree = d
			}
			if d < stats.MinDegree {
				stats.MinDegree = d
			}
			if d == 0 {
				stats.IsolatedNodes++
			}
		}
		stats.AverageDegree = float64(totalDegree) / float64(len(adj))
	}

	// Плотность неориентированного графа
	if stats.NodeCount > 1 {
		maxEdges := stats.NodeCount * (stats.NodeCount - 1) / 2
		stats.Density = float64(stats.EdgeCount) / float64(maxEdges)
	}

	stats.Components = len(ConnectedComponents(g))
	stats.IsConnected = stats.Components <= 1

	return stats
}
