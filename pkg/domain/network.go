package domain

// NetworkEdge неориентированная n-связь между соседними узлами
type NetworkEdge struct {
	A        int
	B        int
	Capacity float64
}

// FlowNetworkSpec описание сети для одной пары (λ, μ).
// Создаётся заново на каждую оценку и используется один раз.
// Узлы 0..NodeCount-1 соответствуют территориальным единицам,
// терминалы добавляет решатель.
type FlowNetworkSpec struct {
	NodeCount  int
	SourceCaps []float64 // t-связь source -> i
	SinkCaps   []float64 // t-связь i -> sink
	Edges      []NetworkEdge
	Lambda     float64
	Mu         float64
}

// EdgeCount возвращает количество n-связей
func (s *FlowNetworkSpec) EdgeCount() int {
	return len(s.Edges)
}

// SourceID возвращает идентификатор терминала source в сети решателя
func (s *FlowNetworkSpec) SourceID() int {
	return s.NodeCount
}

// SinkID возвращает идентификатор терминала sink в сети решателя
func (s *FlowNetworkSpec) SinkID() int {
	return s.NodeCount + 1
}

// Cut результат решателя минимального разреза
type Cut struct {
	Selected   []bool // true = сторона source
	FlowValue  float64
	Iterations int
}
