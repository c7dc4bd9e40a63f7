package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"districts/pkg/domain"
)

// SearchParams параметры поиска, от которых зависит результат.
// Входят в ключ кэша вместе с хешем графа и λ.
type SearchParams struct {
	Algorithm            string  `json:"algorithm"`
	TargetFraction       float64 `json:"target_fraction"`
	Tolerance            float64 `json:"tolerance"`
	MaxIterations        int     `json:"max_iterations"`
	MuMin                float64 `json:"mu_min"`
	MuMax                float64 `json:"mu_max"`
	Headroom             float64 `json:"headroom"`
	BracketExpansion     bool    `json:"bracket_expansion"`
	BracketGrowth        float64 `json:"bracket_growth"`
	MaxBracketExpansions int     `json:"max_bracket_expansions"`
	ExpandAfter          int     `json:"expand_after"`
}

// Fingerprint возвращает короткий хеш параметров
func (p SearchParams) Fingerprint() string {
	data, err := json.Marshal(p)
	if err != nil {
		// Структура из скаляров всегда сериализуется
		return ShortHash([]byte(fmt.Sprintf("%+v", p)))
	}
	return ShortHash(data)
}

// SearchCache кэш результатов поиска μ по (граф, λ, параметры)
type SearchCache struct {
	cache      Cache
	defaultTTL time.Duration
	params     string
}

// CachedSearchResult сериализуемая форма domain.SearchResult
type CachedSearchResult struct {
	Lambda            float64          `json:"lambda"`
	MuHistory         []float64        `json:"mu_history"`
	Converged         bool             `json:"converged"`
	Iterations        int              `json:"iterations"`
	TargetPopulation  float64          `json:"target_population"`
	MuMin             float64          `json:"mu_min"`
	MuMax             float64          `json:"mu_max"`
	BracketExpansions int              `json:"bracket_expansions"`
	ElapsedMs         float64          `json:"elapsed_ms"`
	Partition         *CachedPartition `json:"partition"`
	ComputedAt        time.Time        `json:"computed_at"`
}

// CachedPartition сериализуемая форма domain.PartitionResult
type CachedPartition struct {
	Selected           []bool  `json:"selected"`
	SelectedPopulation uint64  `json:"selected_population"`
	TotalPopulation    uint64  `json:"total_population"`
	SelectedArea       float64 `json:"selected_area"`
	TotalArea          float64 `json:"total_area"`
	PopulationFraction float64 `json:"population_fraction"`
	BoundaryCost       float64 `json:"boundary_cost"`
	AreaCost           float64 `json:"area_cost"`
	PopulationReward   float64 `json:"population_reward"`
	Energy             float64 `json:"energy"`
	FlowValue          float64 `json:"flow_value"`
	Lambda             float64 `json:"lambda"`
	Mu                 float64 `json:"mu"`
}

// NewSearchCache создаёт кэш результатов поиска поверх cache
func NewSearchCache(cache Cache, params SearchParams, defaultTTL time.Duration) *SearchCache {
	if defaultTTL <= 0 {
		defaultTTL = time.Hour
	}
	return &SearchCache{
		cache:      cache,
		defaultTTL: defaultTTL,
		params:     params.Fingerprint(),
	}
}

// Get получает кэшированный результат.
// Повреждённая запись удаляется и считается промахом.
func (sc *SearchCache) Get(ctx context.Context, graphHash string, lambda float64) (*domain.SearchResult, bool, error) {
	key := BuildSearchKey(graphHash, sc.params, lambda)

	data, err := sc.cache.Get(ctx, key)
	if err != nil {
		if errors.Is(err, ErrKeyNotFound) {
			return nil, false, nil
		}
		return nil, false, err
	}

	var cached CachedSearchResult
	if err := json.Unmarshal(data, &cached); err != nil || cached.Partition == nil {
		_ = sc.cache.Delete(ctx, key) //nolint:errcheck // best effort cleanup
		return nil, false, nil
	}

	return cached.ToDomain(), true, nil
}

// Set сохраняет результат; ttl <= 0 использует значение по умолчанию
func (sc *SearchCache) Set(ctx context.Context, graphHash string, result *domain.SearchResult, ttl time.Duration) error {
	if result == nil || result.Partition == nil {
		return nil
	}
	if ttl <= 0 {
		ttl = sc.defaultTTL
	}

	data, err := json.Marshal(FromSearchResult(result))
	if err != nil {
		return fmt.Errorf("marshal search result: %w", err)
	}

	return sc.cache.Set(ctx, BuildSearchKey(graphHash, sc.params, result.Lambda), data, ttl)
}

// InvalidateGraph удаляет все результаты для графа, при любых параметрах
func (sc *SearchCache) InvalidateGraph(ctx context.Context, graphHash string) (int64, error) {
	return sc.cache.DeleteByPattern(ctx, graphPattern(graphHash))
}

// FromSearchResult конвертирует результат поиска в кэшируемую форму
func FromSearchResult(r *domain.SearchResult) *CachedSearchResult {
	p := r.Partition
	return &CachedSearchResult{
		Lambda:            r.Lambda,
		MuHistory:         append([]float64(nil), r.MuHistory...),
		Converged:         r.Converged,
		Iterations:        r.Iterations,
		TargetPopulation:  r.TargetPopulation,
		MuMin:             r.MuMin,
		MuMax:             r.MuMax,
		BracketExpansions: r.BracketExpansions,
		ElapsedMs:         float64(r.Elapsed.Microseconds()) / 1000,
		Partition: &CachedPartition{
			Selected:           append([]bool(nil), p.Selected...),
			SelectedPopulation: p.SelectedPopulation,
			TotalPopulation:    p.TotalPopulation,
			SelectedArea:       p.SelectedArea,
			TotalArea:          p.TotalArea,
			PopulationFraction: p.PopulationFraction,
			BoundaryCost:       p.BoundaryCost,
			AreaCost:           p.AreaCost,
			PopulationReward:   p.PopulationReward,
			Energy:             p.Energy,
			FlowValue:          p.FlowValue,
			Lambda:             p.Lambda,
			Mu:                 p.Mu,
		},
		ComputedAt: time.Now(),
	}
}

// ToDomain конвертирует кэшированный результат обратно
func (c *CachedSearchResult) ToDomain() *domain.SearchResult {
	p := c.Partition
	return &domain.SearchResult{
		Lambda:            c.Lambda,
		MuHistory:         c.MuHistory,
		Converged:         c.Converged,
		Iterations:        c.Iterations,
		TargetPopulation:  c.TargetPopulation,
		MuMin:             c.MuMin,
		MuMax:             c.MuMax,
		BracketExpansions: c.BracketExpansions,
		Elapsed:           time.Duration(c.ElapsedMs * float64(time.Millisecond)),
		Partition: &domain.PartitionResult{
			Selected:           p.Selected,
			SelectedPopulation: p.SelectedPopulation,
			TotalPopulation:    p.TotalPopulation,
			SelectedArea:       p.SelectedArea,
			TotalArea:          p.TotalArea,
			PopulationFraction: p.PopulationFraction,
			BoundaryCost:       p.BoundaryCost,
			AreaCost:           p.AreaCost,
			PopulationReward:   p.PopulationReward,
			Energy:             p.Energy,
			FlowValue:          p.FlowValue,
			Lambda:             p.Lambda,
			Mu:                 p.Mu,
		},
	}
}
