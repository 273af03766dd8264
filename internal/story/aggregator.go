package story

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"horse.fit/finscoop/internal/news"
)

var storyNamespace = uuid.MustParse("6f1d2c84-3a57-5e0b-9d61-0c2b8f4e7a19")

// IDFor derives the story id from its primary article id, so a duplicate that
// races ahead of its primary already knows where it belongs.
func IDFor(primaryID string) string {
	return uuid.NewSHA1(storyNamespace, []byte(primaryID)).String()
}

type record struct {
	mu        sync.Mutex
	primaryID string
	ready     bool
	story     news.UniqueStory
}

// Aggregator is the only writer of UniqueStory values. The global lock guards
// the story and ownership maps; each record's lock serializes merges on one
// story. Lock order is always global before record.
type Aggregator struct {
	mu      sync.RWMutex
	stories map[string]*record
	owners  map[string]string
	logger  zerolog.Logger
}

func NewAggregator(logger zerolog.Logger) *Aggregator {
	return &Aggregator{
		stories: make(map[string]*record),
		owners:  make(map[string]string),
		logger:  logger,
	}
}

// ErrPersist marks a merge that succeeded in memory but could not be saved.
var ErrPersist = errors.New("persist story")

// PersistFunc receives a merged story while the story's lock is still held,
// so saves of one story reach the store in merge order.
type PersistFunc func(story news.UniqueStory) error

// Aggregate routes an article by its duplicate link: unique articles open a
// story, duplicates join the story that owns DuplicateOf.
func (a *Aggregator) Aggregate(article news.Article) (news.UniqueStory, error) {
	return a.AggregateWith(article, nil)
}

// AggregateWith is Aggregate with a persist step run under the story lock.
// Shells waiting for their primary are not persisted. A persist failure
// keeps the merge and returns the story with an error wrapping ErrPersist.
func (a *Aggregator) AggregateWith(article news.Article, persist PersistFunc) (news.UniqueStory, error) {
	if strings.TrimSpace(article.ID) == "" {
		return news.UniqueStory{}, fmt.Errorf("%w: article id is required", news.ErrInvalidArticle)
	}
	if article.IsDuplicate() {
		return a.attachDuplicate(article, persist)
	}
	return a.addPrimary(article, persist)
}

// persistLocked must be called with rec.mu held.
func persistLocked(rec *record, persist PersistFunc) (news.UniqueStory, error) {
	merged := rec.story.Clone()
	if persist == nil || !rec.ready {
		return merged, nil
	}
	if err := persist(merged.Clone()); err != nil {
		return merged, fmt.Errorf("%w %s: %w", ErrPersist, merged.ID, err)
	}
	return merged, nil
}

// OwnerOf returns the story that owns an article id.
func (a *Aggregator) OwnerOf(articleID string) (string, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	storyID, ok := a.owners[articleID]
	return storyID, ok
}

func (a *Aggregator) addPrimary(article news.Article, persist PersistFunc) (news.UniqueStory, error) {
	storyID := IDFor(article.ID)

	a.mu.Lock()
	if owner, owned := a.owners[article.ID]; owned && owner != storyID {
		a.mu.Unlock()
		return news.UniqueStory{}, fmt.Errorf("%w: article_id=%s already owned by story %s", news.ErrInconsistentState, article.ID, owner)
	}
	rec, exists := a.stories[storyID]
	if !exists {
		rec = &record{primaryID: article.ID}
		a.stories[storyID] = rec
	}
	a.owners[article.ID] = storyID
	a.mu.Unlock()

	rec.mu.Lock()
	defer rec.mu.Unlock()

	if rec.ready {
		if rec.story.Primary.ID == article.ID {
			return rec.story.Clone(), nil
		}
		return news.UniqueStory{}, fmt.Errorf("%w: story %s already has primary %s", news.ErrIndexRace, storyID, rec.story.Primary.ID)
	}

	rec.story.ID = storyID
	rec.story.Primary = article.Clone()
	rec.ready = true
	recompute(&rec.story)

	a.logger.Debug().
		Str("story_id", storyID).
		Str("article_id", article.ID).
		Int("duplicates", len(rec.story.Duplicates)).
		Msg("story opened")
	return persistLocked(rec, persist)
}

func (a *Aggregator) attachDuplicate(article news.Article, persist PersistFunc) (news.UniqueStory, error) {
	a.mu.Lock()
	storyID, known := a.owners[article.DuplicateOf]
	if !known {
		// primary not aggregated yet: park the duplicate on its shell
		storyID = IDFor(article.DuplicateOf)
		a.owners[article.DuplicateOf] = storyID
	}
	if owner, owned := a.owners[article.ID]; owned && owner != storyID {
		a.mu.Unlock()
		return news.UniqueStory{}, fmt.Errorf("%w: article_id=%s owned by story %s, attaching to %s", news.ErrInconsistentState, article.ID, owner, storyID)
	}
	rec, exists := a.stories[storyID]
	if !exists {
		rec = &record{primaryID: article.DuplicateOf}
		rec.story.ID = storyID
		a.stories[storyID] = rec
	}
	a.owners[article.ID] = storyID
	a.mu.Unlock()

	rec.mu.Lock()
	defer rec.mu.Unlock()

	if rec.story.Primary.ID == article.ID {
		return news.UniqueStory{}, fmt.Errorf("%w: article_id=%s is the primary of story %s", news.ErrInconsistentState, article.ID, storyID)
	}
	for _, existing := range rec.story.Duplicates {
		if existing.ID == article.ID {
			return rec.story.Clone(), nil
		}
	}

	duplicate := article.Clone()
	duplicate.Embedding = nil
	rec.story.Duplicates = append(rec.story.Duplicates, duplicate)
	recompute(&rec.story)

	a.logger.Debug().
		Str("story_id", storyID).
		Str("article_id", article.ID).
		Str("duplicate_of", article.DuplicateOf).
		Bool("shell", !rec.ready).
		Msg("duplicate attached")
	return persistLocked(rec, persist)
}

// Restore installs a persisted story. Ownership conflicts are fatal.
func (a *Aggregator) Restore(story news.UniqueStory) error {
	if story.ID == "" || story.Primary.ID == "" {
		return fmt.Errorf("%w: restored story needs an id and a primary", news.ErrInvalidArticle)
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	for _, articleID := range story.ArticleIDs() {
		if owner, owned := a.owners[articleID]; owned && owner != story.ID {
			return fmt.Errorf("%w: article_id=%s owned by story %s and %s", news.ErrInconsistentState, articleID, owner, story.ID)
		}
	}
	if existing, exists := a.stories[story.ID]; exists && existing.ready {
		return fmt.Errorf("%w: story %s restored twice", news.ErrInconsistentState, story.ID)
	}

	restored := story.Clone()
	recompute(&restored)
	a.stories[story.ID] = &record{primaryID: story.Primary.ID, ready: true, story: restored}
	for _, articleID := range story.ArticleIDs() {
		a.owners[articleID] = story.ID
	}
	return nil
}

func recompute(story *news.UniqueStory) {
	entityLists := make([][]news.Entity, 0, 1+len(story.Duplicates))
	impactLists := make([][]news.StockImpact, 0, 1+len(story.Duplicates))
	if story.Primary.ID != "" {
		entityLists = append(entityLists, story.Primary.Entities)
		impactLists = append(impactLists, story.Primary.Impacts)
	}
	for _, dup := range story.Duplicates {
		entityLists = append(entityLists, dup.Entities)
		impactLists = append(impactLists, dup.Impacts)
	}
	story.Entities = news.MergeEntities(entityLists...)
	story.Impacts = news.MergeImpacts(impactLists...)
	story.ConfidenceScore = news.AggregateConfidence(story.Impacts)
}

// Snapshot returns deep copies of every complete story, most recent primary
// first. Shells waiting for their primary are not visible.
func (a *Aggregator) Snapshot() []news.UniqueStory {
	a.mu.RLock()
	defer a.mu.RUnlock()

	stories := make([]news.UniqueStory, 0, len(a.stories))
	for _, rec := range a.stories {
		rec.mu.Lock()
		if rec.ready {
			stories = append(stories, rec.story.Clone())
		}
		rec.mu.Unlock()
	}
	SortByRecency(stories)
	return stories
}

// SortByRecency orders by primary publish time descending, then id.
func SortByRecency(stories []news.UniqueStory) {
	sort.SliceStable(stories, func(i, j int) bool {
		left, right := stories[i].Primary.PublishedAt, stories[j].Primary.PublishedAt
		if !left.Equal(right) {
			return left.After(right)
		}
		return stories[i].ID < stories[j].ID
	})
}

func (a *Aggregator) Get(storyID string) (news.UniqueStory, error) {
	a.mu.RLock()
	rec, ok := a.stories[storyID]
	a.mu.RUnlock()
	if !ok {
		return news.UniqueStory{}, fmt.Errorf("%w: %s", news.ErrStoryNotFound, storyID)
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()
	if !rec.ready {
		return news.UniqueStory{}, fmt.Errorf("%w: %s", news.ErrStoryNotFound, storyID)
	}
	return rec.story.Clone(), nil
}

// List pages through Snapshot. A non-positive limit returns everything after
// offset.
func (a *Aggregator) List(offset, limit int) ([]news.UniqueStory, int) {
	stories := a.Snapshot()
	total := len(stories)
	if offset < 0 {
		offset = 0
	}
	if offset >= total {
		return []news.UniqueStory{}, total
	}
	end := total
	if limit > 0 && offset+limit < total {
		end = offset + limit
	}
	return stories[offset:end], total
}

type SymbolMatch struct {
	Story  news.UniqueStory `json:"story"`
	Impact news.StockImpact `json:"impact"`
}

// BySymbol lists stories whose merged impacts include symbol, strongest impact
// first.
func (a *Aggregator) BySymbol(symbol string) []SymbolMatch {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	matches := make([]SymbolMatch, 0)
	for _, story := range a.Snapshot() {
		for _, impact := range story.Impacts {
			if impact.Symbol == symbol {
				matches = append(matches, SymbolMatch{Story: story, Impact: impact})
				break
			}
		}
	}
	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Impact.Confidence > matches[j].Impact.Confidence
	})
	return matches
}

type Stats struct {
	Stories       int     `json:"unique_stories"`
	Articles      int     `json:"total_articles"`
	Duplicates    int     `json:"duplicate_articles"`
	PendingShells int     `json:"pending_shells"`
	Symbols       int     `json:"symbols_covered"`
	AvgConfidence float64 `json:"average_confidence"`
}

func (a *Aggregator) Stats() Stats {
	a.mu.RLock()
	defer a.mu.RUnlock()

	var stats Stats
	var confidenceSum float64
	symbols := make(map[string]struct{})
	for _, rec := range a.stories {
		rec.mu.Lock()
		if !rec.ready {
			stats.PendingShells++
			rec.mu.Unlock()
			continue
		}
		stats.Stories++
		stats.Duplicates += len(rec.story.Duplicates)
		stats.Articles += 1 + len(rec.story.Duplicates)
		confidenceSum += rec.story.ConfidenceScore
		for _, impact := range rec.story.Impacts {
			symbols[impact.Symbol] = struct{}{}
		}
		rec.mu.Unlock()
	}
	stats.Symbols = len(symbols)
	if stats.Stories > 0 {
		stats.AvgConfidence = confidenceSum / float64(stats.Stories)
	}
	return stats
}

// Verify checks that every article belongs to exactly one story and that the
// ownership index agrees with story contents.
func (a *Aggregator) Verify() error {
	a.mu.RLock()
	defer a.mu.RUnlock()

	seen := make(map[string]string)
	for storyID, rec := range a.stories {
		rec.mu.Lock()
		ids := make([]string, 0, 1+len(rec.story.Duplicates))
		if rec.ready {
			ids = append(ids, rec.story.Primary.ID)
		}
		for _, dup := range rec.story.Duplicates {
			ids = append(ids, dup.ID)
		}
		rec.mu.Unlock()

		for _, articleID := range ids {
			if other, dup := seen[articleID]; dup {
				return fmt.Errorf("%w: article_id=%s in stories %s and %s", news.ErrInconsistentState, articleID, other, storyID)
			}
			seen[articleID] = storyID
			if a.owners[articleID] != storyID {
				return fmt.Errorf("%w: article_id=%s indexed under %s but stored in %s", news.ErrInconsistentState, articleID, a.owners[articleID], storyID)
			}
		}
	}
	return nil
}
