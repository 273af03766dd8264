package dedup

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
	"sync"
	"testing"

	"github.com/rs/zerolog"

	"horse.fit/finscoop/internal/news"
)

const dims = news.EmbeddingDimensions

func basis(i int) []float64 {
	v := make([]float64, dims)
	v[i] = 1
	return v
}

// blend returns a unit vector with cosine c to basis(0).
func blend(c float64, other int) []float64 {
	v := make([]float64, dims)
	v[0] = c
	v[other] = math.Sqrt(1 - c*c)
	return v
}

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	engine, err := NewEngine(NewIndex(dims), DefaultThreshold, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewEngine() error = %v", err)
	}
	return engine
}

func TestDecide_HDFCDividendScenario(t *testing.T) {
	t.Parallel()

	engine := newTestEngine(t)

	first, err := engine.Decide("hdfc-1", basis(0))
	if err != nil {
		t.Fatalf("Decide(first) error = %v", err)
	}
	if first.IsDuplicate() {
		t.Fatalf("expected first article to be unique, got %+v", first)
	}

	second, err := engine.Decide("hdfc-2", blend(0.9536, 1))
	if err != nil {
		t.Fatalf("Decide(second) error = %v", err)
	}
	if !second.IsDuplicate() || second.DuplicateOf != "hdfc-1" {
		t.Fatalf("expected duplicate of hdfc-1, got %+v", second)
	}
	if math.Abs(second.Similarity-0.9536) > 1e-9 {
		t.Fatalf("expected similarity 0.9536, got %f", second.Similarity)
	}
	if second.Band != BandNearIdentical {
		t.Fatalf("expected near-identical band, got %s", second.Band)
	}
}

func TestDecide_ThresholdIsInclusive(t *testing.T) {
	t.Parallel()

	// (3,4)·(4,3) / 25 is exactly 0.96
	engine, err := NewEngine(NewIndex(2), 0.96, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewEngine() error = %v", err)
	}
	if _, err := engine.Decide("a", []float64{3, 4}); err != nil {
		t.Fatalf("Decide(a) error = %v", err)
	}
	decision, err := engine.Decide("b", []float64{4, 3})
	if err != nil {
		t.Fatalf("Decide(b) error = %v", err)
	}
	if !decision.IsDuplicate() {
		t.Fatalf("expected similarity %v at threshold to be a duplicate", decision.Similarity)
	}
}

func TestDecide_BelowThresholdBothUnique(t *testing.T) {
	t.Parallel()

	engine := newTestEngine(t)
	if _, err := engine.Decide("a", basis(0)); err != nil {
		t.Fatalf("Decide(a) error = %v", err)
	}
	decision, err := engine.Decide("b", blend(0.84, 1))
	if err != nil {
		t.Fatalf("Decide(b) error = %v", err)
	}
	if decision.IsDuplicate() {
		t.Fatalf("expected similarity 0.84 to stay unique, got %+v", decision)
	}
	if decision.Band != BandUnique {
		t.Fatalf("expected unique band, got %s", decision.Band)
	}
	if engine.index.Len() != 2 {
		t.Fatalf("expected both articles indexed, got %d", engine.index.Len())
	}
}

func TestDecide_TieGoesToEarliestInserted(t *testing.T) {
	t.Parallel()

	engine := newTestEngine(t)
	if _, err := engine.Decide("early", basis(1)); err != nil {
		t.Fatal(err)
	}
	if _, err := engine.Decide("late", basis(2)); err != nil {
		t.Fatal(err)
	}

	candidate := make([]float64, dims)
	candidate[1] = 1
	candidate[2] = 1
	// cosine 0.707 to both: below threshold, so use a lower threshold engine
	tied, err := NewEngine(engine.index, 0.7, zerolog.Nop())
	if err != nil {
		t.Fatal(err)
	}
	decision, err := tied.Decide("candidate", candidate)
	if err != nil {
		t.Fatalf("Decide() error = %v", err)
	}
	if decision.DuplicateOf != "early" {
		t.Fatalf("expected tie to resolve to earliest entry, got %+v", decision)
	}
}

func TestDecide_DuplicatesNeverEnterIndex(t *testing.T) {
	t.Parallel()

	engine := newTestEngine(t)
	_, _ = engine.Decide("primary", basis(0))
	_, _ = engine.Decide("dup", blend(0.9, 1))
	if engine.index.Contains("dup") {
		t.Fatal("expected duplicate embedding to stay out of the index")
	}
}

func TestDecide_SameIDTwiceIsIndexRace(t *testing.T) {
	t.Parallel()

	engine := newTestEngine(t)
	if _, err := engine.Decide("a", basis(0)); err != nil {
		t.Fatal(err)
	}
	_, err := engine.Decide("a", basis(3))
	if !errors.Is(err, news.ErrIndexRace) {
		t.Fatalf("expected ErrIndexRace, got %v", err)
	}
}

func TestDecide_WrongDimensionsIsEmbeddingFailure(t *testing.T) {
	t.Parallel()

	engine := newTestEngine(t)
	_, err := engine.Decide("a", []float64{1, 2, 3})
	if !errors.Is(err, news.ErrEmbeddingFailure) {
		t.Fatalf("expected ErrEmbeddingFailure, got %v", err)
	}
}

func TestDecide_ConcurrentSameEventYieldsOneUnique(t *testing.T) {
	t.Parallel()

	engine := newTestEngine(t)
	const writers = 64

	var wg sync.WaitGroup
	decisions := make([]Decision, writers)
	errs := make([]error, writers)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			decisions[i], errs[i] = engine.Decide(fmt.Sprintf("copy-%02d", i), blend(0.99, 1+i%5))
		}(i)
	}
	wg.Wait()

	unique := 0
	for i, decision := range decisions {
		if errs[i] != nil {
			t.Fatalf("Decide(copy-%02d) error = %v", i, errs[i])
		}
		if !decision.IsDuplicate() {
			unique++
		}
	}
	if unique != 1 {
		t.Fatalf("expected exactly one unique decision, got %d", unique)
	}
	stats := engine.Stats()
	if stats.Processed != writers || stats.Duplicates != writers-1 || stats.DuplicateGroups != 1 {
		t.Fatalf("unexpected stats %+v", stats)
	}
}

func TestDecide_PairwiseProperty(t *testing.T) {
	t.Parallel()

	rng := rand.New(rand.NewSource(7))
	for trial := 0; trial < 50; trial++ {
		a := make([]float64, dims)
		b := make([]float64, dims)
		for i := range a {
			a[i] = rng.NormFloat64()
			b[i] = a[i] + rng.NormFloat64()*rng.Float64()
		}
		similarity := Cosine(a, b)

		engine := newTestEngine(t)
		if _, err := engine.Decide("earlier", a); err != nil {
			t.Fatal(err)
		}
		decision, err := engine.Decide("later", b)
		if err != nil {
			t.Fatal(err)
		}
		if (similarity >= DefaultThreshold) != decision.IsDuplicate() {
			t.Fatalf("trial %d: similarity %.4f decided %+v", trial, similarity, decision)
		}
		if decision.IsDuplicate() && decision.DuplicateOf != "earlier" {
			t.Fatalf("trial %d: expected link to earlier article, got %+v", trial, decision)
		}
	}
}

func TestBandFor(t *testing.T) {
	t.Parallel()

	cases := map[float64]Band{
		0.99: BandNearIdentical,
		0.95: BandNearIdentical,
		0.90: BandLikelyDuplicate,
		0.85: BandLikelyDuplicate,
		0.60: BandUnique,
	}
	for similarity, want := range cases {
		if got := BandFor(similarity); got != want {
			t.Fatalf("BandFor(%v) = %s, want %s", similarity, got, want)
		}
	}
}

func TestNewEngineRejectsBadThreshold(t *testing.T) {
	t.Parallel()

	if _, err := NewEngine(NewIndex(dims), 0, zerolog.Nop()); err == nil {
		t.Fatal("expected zero threshold to be rejected")
	}
	if _, err := NewEngine(NewIndex(dims), 1.2, zerolog.Nop()); err == nil {
		t.Fatal("expected threshold above 1 to be rejected")
	}
}
