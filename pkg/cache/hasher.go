package cache

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"math"
	"sort"
	"strconv"

	"districts/pkg/domain"
)

// GraphHash вычисляет хеш модели графа для использования как ключ кэша.
// Порядок и ориентация рёбер на хеш не влияют.
func GraphHash(graph *domain.GraphModel) string {
	if graph == nil {
		return ""
	}

	hash := sha256.Sum256(graphToCanonical(graph))
	return hex.EncodeToString(hash[:16])
}

// graphToCanonical строит детерминированное бинарное представление графа
func graphToCanonical(graph *domain.GraphModel) []byte {
	edges := make([]domain.Edge, len(graph.Edges))
	for i, e := range graph.Edges {
		k := e.Key()
		edges[i] = domain.Edge{A: k.A, B: k.B, Length: e.Length}
	}
	sort.Slice(edges, func(i, j int) bool {
		if edges[i].A != edges[j].A {
			return edges[i].A < edges[j].A
		}
		return edges[i].B < edges[j].B
	})

	n := len(graph.NodePopulation)
	buf := make([]byte, 0, 8*(3+2*n+3*len(edges)))

	putUint := func(v uint64) { buf = binary.BigEndian.AppendUint64(buf, v) }
	putFloat := func(v float64) { putUint(math.Float64bits(v)) }

	putFloat(graph.Rho)
	putUint(uint64(n))
	for _, p := range graph.NodePopulation {
		putUint(p)
	}
	putUint(uint64(len(graph.NodeArea)))
	for _, a := range graph.NodeArea {
		putFloat(a)
	}
	putUint(uint64(len(edges)))
	for _, e := range edges {
		putUint(uint64(e.A))
		putUint(uint64(e.B))
		putFloat(e.Length)
	}

	return buf
}

// BuildSearchKey строит ключ кэша для результата поиска μ одного λ
func BuildSearchKey(graphHash, paramsHash string, lambda float64) string {
	return "search:" + graphHash + ":" + paramsHash + ":" + strconv.FormatFloat(lambda, 'g', -1, 64)
}

// graphPattern шаблон всех ключей поиска одного графа
func graphPattern(graphHash string) string {
	return "search:" + graphHash + ":*"
}

// ShortHash короткий хеш (16 символов)
func ShortHash(data []byte) string {
	hash := sha256.Sum256(data)
	return hex.EncodeToString(hash[:8])
}
