package cache

import (
	"context"
	"testing"
	"time"

	"districts/pkg/domain"
)

func sampleParams() SearchParams {
	return SearchParams{
		Algorithm:            "dinic",
		TargetFraction:       0.5,
		Tolerance:            0.01,
		MaxIterations:        50,
		Headroom:             10,
		BracketExpansion:     true,
		BracketGrowth:        10,
		MaxBracketExpansions: 8,
		ExpandAfter:          4,
	}
}

func sampleResult(lambda float64) *domain.SearchResult {
	return &domain.SearchResult{
		Lambda:           lambda,
		MuHistory:        []float64{0.1, 0.05, 0.075},
		Converged:        true,
		Iterations:       3,
		TargetPopulation: 300,
		MuMin:            0.05,
		MuMax:            0.1,
		Elapsed:          1500 * time.Microsecond,
		Partition: &domain.PartitionResult{
			Selected:           []bool{false, true, true},
			SelectedPopulation: 500,
			TotalPopulation:    600,
			SelectedArea:       2000,
			TotalArea:          3000,
			PopulationFraction: 500.0 / 600.0,
			BoundaryCost:       0.25,
			AreaCost:           0.1,
			PopulationReward:   37.5,
			Energy:             0.25 + 0.1 - 37.5,
			FlowValue:          7.35,
			Lambda:             lambda,
			Mu:                 0.075,
		},
	}
}

func TestSearchCache_SetGet(t *testing.T) {
	mem := NewMemoryCache(nil)
	defer mem.Close()

	sc := NewSearchCache(mem, sampleParams(), time.Minute)
	ctx := context.Background()
	hash := GraphHash(sampleGraph())

	if err := sc.Set(ctx, hash, sampleResult(0.3), 0); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	got, ok, err := sc.Get(ctx, hash, 0.3)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if !ok {
		t.Fatal("expected cache hit")
	}

	want := sampleResult(0.3)
	if got.Lambda != want.Lambda || got.Iterations != want.Iterations || !got.Converged {
		t.Errorf("scalar fields mismatch: %+v", got)
	}
	if len(got.MuHistory) != 3 || got.MuHistory[2] != 0.075 {
		t.Errorf("mu history mismatch: %v", got.MuHistory)
	}
	if got.Elapsed != want.Elapsed {
		t.Errorf("elapsed = %v, want %v", got.Elapsed, want.Elapsed)
	}

	p := got.Partition
	if p.SelectedPopulation != 500 || p.TotalPopulation != 600 {
		t.Errorf("population mismatch: %d / %d", p.SelectedPopulation, p.TotalPopulation)
	}
	if len(p.Selected) != 3 || p.Selected[0] || !p.Selected[1] {
		t.Errorf("selection mismatch: %v", p.Selected)
	}
	if p.Energy != want.Partition.Energy || p.Mu != 0.075 {
		t.Errorf("energy or mu mismatch: %v %v", p.Energy, p.Mu)
	}
}

func TestSearchCache_Miss(t *testing.T) {
	mem := NewMemoryCache(nil)
	defer mem.Close()

	sc := NewSearchCache(mem, sampleParams(), 0)
	ctx := context.Background()
	hash := GraphHash(sampleGraph())

	sc.Set(ctx, hash, sampleResult(0.3), 0)

	if _, ok, err := sc.Get(ctx, hash, 0.4); ok || err != nil {
		t.Errorf("different lambda should miss, ok=%v err=%v", ok, err)
	}
	if _, ok, err := sc.Get(ctx, "otherhash", 0.3); ok || err != nil {
		t.Errorf("different graph should miss, ok=%v err=%v", ok, err)
	}
}

func TestSearchCache_ParamsInKey(t *testing.T) {
	mem := NewMemoryCache(nil)
	defer mem.Close()

	ctx := context.Background()
	hash := GraphHash(sampleGraph())

	NewSearchCache(mem, sampleParams(), 0).Set(ctx, hash, sampleResult(0.3), 0)

	other := sampleParams()
	other.Algorithm = "edmonds_karp"
	if _, ok, _ := NewSearchCache(mem, other, 0).Get(ctx, hash, 0.3); ok {
		t.Error("different algorithm should miss")
	}

	other = sampleParams()
	other.Tolerance = 0.02
	if _, ok, _ := NewSearchCache(mem, other, 0).Get(ctx, hash, 0.3); ok {
		t.Error("different tolerance should miss")
	}

	if _, ok, _ := NewSearchCache(mem, sampleParams(), 0).Get(ctx, hash, 0.3); !ok {
		t.Error("same params should hit")
	}
}

func TestSearchCache_CorruptedEntryDeleted(t *testing.T) {
	mem := NewMemoryCache(nil)
	defer mem.Close()

	params := sampleParams()
	sc := NewSearchCache(mem, params, 0)
	ctx := context.Background()
	key := BuildSearchKey("hash", params.Fingerprint(), 0.3)

	mem.Set(ctx, key, []byte("{not json"), 0)

	_, ok, err := sc.Get(ctx, "hash", 0.3)
	if ok || err != nil {
		t.Fatalf("corrupted entry should be a miss, ok=%v err=%v", ok, err)
	}
	if _, err := mem.Get(ctx, key); err != ErrKeyNotFound {
		t.Errorf("corrupted entry should be deleted, got %v", err)
	}
}

func TestSearchCache_SetNil(t *testing.T) {
	mem := NewMemoryCache(nil)
	defer mem.Close()

	sc := NewSearchCache(mem, sampleParams(), 0)
	if err := sc.Set(context.Background(), "hash", nil, 0); err != nil {
		t.Errorf("Set(nil) error = %v", err)
	}
	if err := sc.Set(context.Background(), "hash", &domain.SearchResult{Lambda: 0.1}, 0); err != nil {
		t.Errorf("Set(no partition) error = %v", err)
	}

	stats, _ := mem.Stats(context.Background())
	if stats.TotalKeys != 0 {
		t.Errorf("nothing should be stored, got %d keys", stats.TotalKeys)
	}
}

func TestSearchCache_InvalidateGraph(t *testing.T) {
	mem := NewMemoryCache(nil)
	defer mem.Close()

	sc := NewSearchCache(mem, sampleParams(), 0)
	ctx := context.Background()

	for _, lambda := range []float64{0, 0.1, 0.2} {
		sc.Set(ctx, "graph-a", sampleResult(lambda), 0)
	}
	sc.Set(ctx, "graph-b", sampleResult(0), 0)

	n, err := sc.InvalidateGraph(ctx, "graph-a")
	if err != nil {
		t.Fatalf("InvalidateGraph() error = %v", err)
	}
	if n != 3 {
		t.Errorf("invalidated %d entries, want 3", n)
	}
	if _, ok, _ := sc.Get(ctx, "graph-b", 0); !ok {
		t.Error("graph-b should survive")
	}
}

func TestSearchParams_Fingerprint(t *testing.T) {
	a := sampleParams().Fingerprint()

	if a != sampleParams().Fingerprint() {
		t.Error("fingerprint should be deterministic")
	}

	changed := sampleParams()
	changed.MaxIterations = 20
	if changed.Fingerprint() == a {
		t.Error("changing max iterations should change the fingerprint")
	}
}
