package story

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"horse.fit/finscoop/internal/news"
)

var baseTime = time.Date(2025, 1, 15, 9, 30, 0, 0, time.UTC)

func article(id string, minutes int, impacts ...news.StockImpact) news.Article {
	return news.Article{
		ID:          id,
		Title:       "title " + id,
		Body:        "body " + id,
		Source:      "wire",
		PublishedAt: baseTime.Add(time.Duration(minutes) * time.Minute),
		Embedding:   []float64{1, 0},
		Entities: []news.Entity{
			{Name: "HDFC Bank", Type: news.EntityCompany, Source: news.SourceRule, Confidence: news.Float(1)},
		},
		Impacts: impacts,
	}
}

func duplicate(id, of string, minutes int, impacts ...news.StockImpact) news.Article {
	a := article(id, minutes, impacts...)
	a.DuplicateOf = of
	return a
}

var (
	hdfcDirect = news.StockImpact{Symbol: "HDFCBANK", CompanyName: "HDFC Bank", Confidence: 1.0, Kind: news.ImpactDirect}
	hdfcSector = news.StockImpact{Symbol: "HDFCBANK", CompanyName: "HDFC Bank", Confidence: 0.75, Kind: news.ImpactSectorWide}
	iciciSec   = news.StockImpact{Symbol: "ICICIBANK", CompanyName: "ICICI Bank", Confidence: 0.75, Kind: news.ImpactSectorWide}
)

func TestAggregate_UniqueThenDuplicateMerges(t *testing.T) {
	t.Parallel()

	agg := NewAggregator(zerolog.Nop())
	opened, err := agg.Aggregate(article("a1", 0, hdfcSector))
	if err != nil {
		t.Fatalf("Aggregate(primary) error = %v", err)
	}
	if opened.ID != IDFor("a1") || len(opened.Duplicates) != 0 || opened.ConfidenceScore != 0.75 {
		t.Fatalf("unexpected opened story %+v", opened)
	}

	merged, err := agg.Aggregate(duplicate("a2", "a1", 5, hdfcDirect, iciciSec))
	if err != nil {
		t.Fatalf("Aggregate(duplicate) error = %v", err)
	}
	if len(merged.Duplicates) != 1 || merged.Duplicates[0].ID != "a2" {
		t.Fatalf("expected one duplicate, got %+v", merged.Duplicates)
	}
	if merged.Impacts[0] != hdfcDirect {
		t.Fatalf("expected direct HDFCBANK to win the merge, got %+v", merged.Impacts[0])
	}
	if len(merged.Impacts) != 2 || merged.ConfidenceScore != 1.0 {
		t.Fatalf("unexpected merged impacts %+v score %v", merged.Impacts, merged.ConfidenceScore)
	}
	if len(merged.Entities) != 1 {
		t.Fatalf("expected entities deduplicated by key, got %+v", merged.Entities)
	}
	if err := agg.Verify(); err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
}

func TestAggregate_SameDuplicateTwiceIsNoop(t *testing.T) {
	t.Parallel()

	agg := NewAggregator(zerolog.Nop())
	_, _ = agg.Aggregate(article("a1", 0, hdfcSector))
	first, _ := agg.Aggregate(duplicate("a2", "a1", 1, hdfcDirect))
	second, err := agg.Aggregate(duplicate("a2", "a1", 1, hdfcDirect))
	if err != nil {
		t.Fatalf("re-attach error = %v", err)
	}
	if len(second.Duplicates) != 1 || len(second.Entities) != len(first.Entities) || second.ConfidenceScore != first.ConfidenceScore {
		t.Fatalf("re-attaching changed the story: %+v vs %+v", first, second)
	}
}

func TestAggregate_PrimaryReplayIsNoop(t *testing.T) {
	t.Parallel()

	agg := NewAggregator(zerolog.Nop())
	_, _ = agg.Aggregate(article("a1", 0, hdfcSector))
	again, err := agg.Aggregate(article("a1", 0, hdfcSector))
	if err != nil {
		t.Fatalf("replay error = %v", err)
	}
	if again.Primary.ID != "a1" || agg.Stats().Stories != 1 {
		t.Fatalf("replay created a new story: %+v", agg.Stats())
	}
}

func TestAggregate_DuplicateMovingStoriesIsInconsistent(t *testing.T) {
	t.Parallel()

	agg := NewAggregator(zerolog.Nop())
	_, _ = agg.Aggregate(article("a1", 0))
	_, _ = agg.Aggregate(article("b1", 0))
	_, _ = agg.Aggregate(duplicate("x", "a1", 1))

	_, err := agg.Aggregate(duplicate("x", "b1", 2))
	if !errors.Is(err, news.ErrInconsistentState) || !news.IsFatal(err) {
		t.Fatalf("expected fatal ErrInconsistentState, got %v", err)
	}
}

func TestAggregate_DuplicateBeforePrimaryUsesShell(t *testing.T) {
	t.Parallel()

	agg := NewAggregator(zerolog.Nop())
	if _, err := agg.Aggregate(duplicate("early", "late-primary", 3, hdfcDirect)); err != nil {
		t.Fatalf("Aggregate(early duplicate) error = %v", err)
	}
	if got := agg.Snapshot(); len(got) != 0 {
		t.Fatalf("expected shell to stay hidden, got %+v", got)
	}
	if stats := agg.Stats(); stats.PendingShells != 1 {
		t.Fatalf("expected one pending shell, got %+v", stats)
	}

	story, err := agg.Aggregate(article("late-primary", 0, hdfcSector))
	if err != nil {
		t.Fatalf("Aggregate(primary) error = %v", err)
	}
	if len(story.Duplicates) != 1 || story.Impacts[0] != hdfcDirect {
		t.Fatalf("expected primary to adopt shell duplicate, got %+v", story)
	}
	if err := agg.Verify(); err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
}

func TestAggregate_ConcurrentDuplicatesNoLostUpdates(t *testing.T) {
	t.Parallel()

	agg := NewAggregator(zerolog.Nop())
	_, _ = agg.Aggregate(article("p", 0))

	const writers = 50
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			symbol := news.StockImpact{Symbol: fmt.Sprintf("SYM%02d", i), Confidence: 0.7, Kind: news.ImpactSectorWide}
			if _, err := agg.Aggregate(duplicate(fmt.Sprintf("d%02d", i), "p", i, symbol)); err != nil {
				t.Errorf("Aggregate(d%02d) error = %v", i, err)
			}
		}(i)
	}
	wg.Wait()

	story, err := agg.Get(IDFor("p"))
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if len(story.Duplicates) != writers || len(story.Impacts) != writers {
		t.Fatalf("lost updates: %d duplicates, %d impacts", len(story.Duplicates), len(story.Impacts))
	}
	if err := agg.Verify(); err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
}

func TestListAndBySymbol(t *testing.T) {
	t.Parallel()

	agg := NewAggregator(zerolog.Nop())
	_, _ = agg.Aggregate(article("old", 0, hdfcSector))
	_, _ = agg.Aggregate(article("new", 60, hdfcDirect))
	_, _ = agg.Aggregate(article("other", 30, iciciSec))

	page, total := agg.List(0, 2)
	if total != 3 || len(page) != 2 || page[0].Primary.ID != "new" || page[1].Primary.ID != "other" {
		t.Fatalf("unexpected page %v total %d", page, total)
	}
	if rest, _ := agg.List(5, 2); len(rest) != 0 {
		t.Fatalf("expected empty page past the end, got %d", len(rest))
	}

	matches := agg.BySymbol("hdfcbank")
	if len(matches) != 2 || matches[0].Story.Primary.ID != "new" || matches[0].Impact.Confidence != 1.0 {
		t.Fatalf("unexpected symbol matches %+v", matches)
	}
	if _, err := agg.Get("missing"); !errors.Is(err, news.ErrStoryNotFound) {
		t.Fatalf("expected ErrStoryNotFound, got %v", err)
	}
}

func TestPayloadRoundTrip(t *testing.T) {
	t.Parallel()

	agg := NewAggregator(zerolog.Nop())
	_, _ = agg.Aggregate(article("a1", 0, hdfcSector, iciciSec))
	_, _ = agg.Aggregate(duplicate("a2", "a1", 1, hdfcDirect))
	original, _ := agg.Get(IDFor("a1"))

	raw, err := Encode(original)
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	decoded, err := Decode(raw)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}

	if fmt.Sprint(decoded.ArticleIDs()) != fmt.Sprint(original.ArticleIDs()) {
		t.Fatalf("article lists differ: %v vs %v", decoded.ArticleIDs(), original.ArticleIDs())
	}
	if len(decoded.Impacts) != len(original.Impacts) {
		t.Fatalf("impact count differs: %d vs %d", len(decoded.Impacts), len(original.Impacts))
	}
	for i := range original.Impacts {
		if decoded.Impacts[i] != original.Impacts[i] {
			t.Fatalf("impact %d differs: %+v vs %+v", i, decoded.Impacts[i], original.Impacts[i])
		}
	}
	if !decoded.Primary.PublishedAt.Equal(original.Primary.PublishedAt) || decoded.ConfidenceScore != original.ConfidenceScore {
		t.Fatalf("primary fields differ after round trip")
	}
}

func TestDecodeRejectsUnknownVersion(t *testing.T) {
	t.Parallel()

	if _, err := Decode([]byte(`{"payload_version": 9, "story": {}}`)); err == nil {
		t.Fatal("expected version error")
	}
}

func TestRestoreFromMemoryStore(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	source := NewAggregator(zerolog.Nop())
	store := NewMemoryStore()

	for _, a := range []news.Article{article("a1", 0, hdfcDirect), duplicate("a2", "a1", 1), article("b1", 2, iciciSec)} {
		saved, err := source.Aggregate(a)
		if err != nil {
			t.Fatalf("Aggregate(%s) error = %v", a.ID, err)
		}
		if err := store.SaveStory(ctx, saved); err != nil {
			t.Fatalf("SaveStory() error = %v", err)
		}
	}

	restored := NewAggregator(zerolog.Nop())
	stories, err := restored.RestoreFrom(ctx, store)
	if err != nil {
		t.Fatalf("RestoreFrom() error = %v", err)
	}
	if len(stories) != 2 || restored.Stats().Articles != 3 {
		t.Fatalf("unexpected restore result: %d stories, %+v", len(stories), restored.Stats())
	}
	if owner, ok := restored.OwnerOf("a2"); !ok || owner != IDFor("a1") {
		t.Fatalf("expected a2 owned by a1's story, got %q", owner)
	}

	// a fresh duplicate of a restored primary lands on the restored story
	story, err := restored.Aggregate(duplicate("a3", "a1", 5))
	if err != nil || len(story.Duplicates) != 2 {
		t.Fatalf("expected attach to restored story, got %+v err %v", story, err)
	}
}

func TestAggregateWith_PersistsInMergeOrder(t *testing.T) {
	t.Parallel()

	agg := NewAggregator(zerolog.Nop())
	var (
		mu    sync.Mutex
		saved []int
	)
	slowSave := make(chan struct{})
	persist := func(story news.UniqueStory) error {
		// a slow save must not let a later merge overtake it
		if len(story.Duplicates) == 1 {
			close(slowSave)
			time.Sleep(100 * time.Millisecond)
		}
		mu.Lock()
		saved = append(saved, len(story.Duplicates))
		mu.Unlock()
		return nil
	}
	if _, err := agg.AggregateWith(article("p", 0), persist); err != nil {
		t.Fatalf("AggregateWith(primary) error = %v", err)
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		if _, err := agg.AggregateWith(duplicate("d1", "p", 1), persist); err != nil {
			t.Errorf("AggregateWith(d1) error = %v", err)
		}
	}()
	go func() {
		defer wg.Done()
		<-slowSave
		if _, err := agg.AggregateWith(duplicate("d2", "p", 2), persist); err != nil {
			t.Errorf("AggregateWith(d2) error = %v", err)
		}
	}()
	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	if fmt.Sprint(saved) != "[0 1 2]" {
		t.Fatalf("saves out of merge order: %v", saved)
	}
}

func TestAggregateWith_ShellIsPersistedOnceReady(t *testing.T) {
	t.Parallel()

	agg := NewAggregator(zerolog.Nop())
	var saves []news.UniqueStory
	persist := func(story news.UniqueStory) error {
		saves = append(saves, story)
		return nil
	}

	if _, err := agg.AggregateWith(duplicate("early", "late", 1), persist); err != nil {
		t.Fatalf("AggregateWith(shell) error = %v", err)
	}
	if len(saves) != 0 {
		t.Fatalf("expected shell to stay unsaved, got %d saves", len(saves))
	}
	if _, err := agg.AggregateWith(article("late", 0), persist); err != nil {
		t.Fatalf("AggregateWith(primary) error = %v", err)
	}
	if len(saves) != 1 || saves[0].Primary.ID != "late" || len(saves[0].Duplicates) != 1 {
		t.Fatalf("expected one save of the filled story, got %+v", saves)
	}
}

func TestAggregateWith_PersistFailureKeepsMerge(t *testing.T) {
	t.Parallel()

	agg := NewAggregator(zerolog.Nop())
	story, err := agg.AggregateWith(article("p", 0), func(news.UniqueStory) error {
		return errors.New("disk full")
	})
	if !errors.Is(err, ErrPersist) {
		t.Fatalf("expected ErrPersist, got %v", err)
	}
	if story.ID != IDFor("p") {
		t.Fatalf("expected merged story alongside the error, got %+v", story)
	}
	if _, err := agg.Get(IDFor("p")); err != nil {
		t.Fatalf("expected merge to survive a failed save: %v", err)
	}
}

func TestMemoryStoreIgnoresStaleSnapshot(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	agg := NewAggregator(zerolog.Nop())
	store := NewMemoryStore()

	_, _ = agg.Aggregate(article("p", 0))
	older, _ := agg.Aggregate(duplicate("d1", "p", 1))
	newer, _ := agg.Aggregate(duplicate("d2", "p", 2))

	if err := store.SaveStory(ctx, newer); err != nil {
		t.Fatalf("SaveStory(newer) error = %v", err)
	}
	if err := store.SaveStory(ctx, older); err != nil {
		t.Fatalf("SaveStory(older) error = %v", err)
	}

	stories, err := store.LoadStories(ctx)
	if err != nil {
		t.Fatalf("LoadStories() error = %v", err)
	}
	if len(stories) != 1 || len(stories[0].Duplicates) != 2 {
		t.Fatalf("stale snapshot replaced newer one: %+v", stories)
	}
}
