package domain

import (
	"fmt"
	"math"
	"sort"
)

// EdgeKey неориентированный ключ ребра, всегда A < B
type EdgeKey struct {
	A int
	B int
}

// NewEdgeKey создаёт нормализованный ключ ребра
func NewEdgeKey(i, j int) EdgeKey {
	if i > j {
		i, j = j, i
	}
	return EdgeKey{A: i, B: j}
}

// String возвращает строковое представление ключа ребра
func (e EdgeKey) String() string {
	return fmt.Sprintf("%d-%d", e.A, e.B)
}

// Edge смежность двух территориальных единиц с длиной общей границы
type Edge struct {
	A      int
	B      int
	Length float64
}

// Key возвращает ключ ребра
func (e Edge) Key() EdgeKey {
	return NewEdgeKey(e.A, e.B)
}

// GraphModel неизменяемая модель графа смежности территориальных единиц.
// Индекс узла совпадает с позицией в NodePopulation и NodeArea.
// После построения модель только читается, поэтому её можно разделять
// между горутинами без блокировок.
type GraphModel struct {
	NodePopulation []uint64
	NodeArea       []float64
	Edges          []Edge
	Rho            float64

	lengths map[EdgeKey]float64
}

// NewGraphModel создаёт модель из рёбер в произвольной ориентации.
// Рёбра нормализуются к A < B и сортируются.
func NewGraphModel(population []uint64, area []float64, edges []Edge, rho float64) *GraphModel {
	normalized := make([]Edge, len(edges))
	for i, e := range edges {
		k := e.Key()
		normalized[i] = Edge{A: k.A, B: k.B, Length: e.Length}
	}
	sort.Slice(normalized, func(i, j int) bool {
		if normalized[i].A != normalized[j].A {
			return normalized[i].A < normalized[j].A
		}
		return normalized[i].B < normalized[j].B
	})

	g := &GraphModel{
		NodePopulation: append([]uint64(nil), population...),
		NodeArea:       append([]float64(nil), area...),
		Edges:          normalized,
		Rho:            rho,
	}
	g.lengths = make(map[EdgeKey]float64, len(normalized))
	for _, e := range normalized {
		g.lengths[e.Key()] = e.Length
	}
	return g
}

// NodeCount возвращает количество узлов
func (g *GraphModel) NodeCount() int {
	return len(g.NodePopulation)
}

// EdgeCount возвращает количество рёбер
func (g *GraphModel) EdgeCount() int {
	return len(g.Edges)
}

// Length возвращает длину общей границы между i и j.
// Порядок аргументов не важен.
func (g *GraphModel) Length(i, j int) (float64, bool) {
	key := NewEdgeKey(i, j)
	if g.lengths != nil {
		l, ok := g.lengths[key]
		return l, ok
	}
	for _, e := range g.Edges {
		if e.Key() == key {
			return e.Length, true
		}
	}
	return 0, false
}

// TotalPopulation возвращает суммарное население
func (g *GraphModel) TotalPopulation() uint64 {
	var total uint64
	for _, p := range g.NodePopulation {
		total += p
	}
	return total
}

// TotalArea возвращает суммарную площадь
func (g *GraphModel) TotalArea() float64 {
	var total float64
	for _, a := range g.NodeArea {
		total += a
	}
	return total
}

// Validate проверяет корректность модели
func (g *GraphModel) Validate() []error {
	var errs []error

	if len(g.NodePopulation) == 0 {
		errs = append(errs, fmt.Errorf("graph has no nodes"))
	}
	if len(g.NodePopulation) != len(g.NodeArea) {
		errs = append(errs, fmt.Errorf("population has %d entries, area has %d",
			len(g.NodePopulation), len(g.NodeArea)))
	}
	if math.IsNaN(g.Rho) || math.IsInf(g.Rho, 0) || g.Rho <= 0 {
		errs = append(errs, fmt.Errorf("rho must be positive and finite, got %v", g.Rho))
	}

	var total uint64
	for i, p := range g.NodePopulation {
		if p > MaxTotalPopulation-total {
			errs = append(errs, fmt.Errorf("population exceeds %d at node %d", MaxTotalPopulation, i))
			break
		}
		total += p
	}

	for i, a := range g.NodeArea {
		if !IsFiniteNonNegative(a) {
			errs = append(errs, fmt.Errorf("node %d has invalid area %v", i, a))
		}
	}

	n := g.NodeCount()
	seen := make(map[EdgeKey]struct{}, len(g.Edges))
	for idx, e := range g.Edges {
		switch {
		case e.A == e.B:
			errs = append(errs, fmt.Errorf("self-loop detected at node %d", e.A))
			continue
		case e.A > e.B:
			errs = append(errs, fmt.Errorf("edge %d (%d, %d) is not ordered", idx, e.A, e.B))
		}
		if e.A < 0 || e.B < 0 || e.A >= n || e.B >= n {
			errs = append(errs, fmt.Errorf("edge %s references non-existent node", e.Key()))
			continue
		}
		if _, dup := seen[e.Key()]; dup {
			errs = append(errs, fmt.Errorf("duplicate edge %s", e.Key()))
		}
		seen[e.Key()] = struct{}{}
		if !IsFiniteNonNegative(e.Length) {
			errs = append(errs, fmt.Errorf("edge %s has invalid length %v", e.Key(), e.Length))
		}
	}

	return errs
}

// CharacteristicLength вычисляет ρ как медиану √area по узлам.
// Для пустого набора возвращает 0.
func CharacteristicLength(areas []float64) float64 {
	if len(areas) == 0 {
		return 0
	}
	roots := make([]float64, len(areas))
	for i, a := range areas {
		roots[i] = math.Sqrt(math.Max(a, 0))
	}
	sort.Float64s(roots)

	mid := len(roots) / 2
	if len(roots)%2 == 1 {
		return roots[mid]
	}
	return (roots[mid-1] + roots[mid]) / 2
}
