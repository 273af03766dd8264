package dedup

import (
	"fmt"
	"sync"

	"github.com/rs/zerolog"
)

const (
	DefaultThreshold    = 0.85
	nearIdenticalCosine = 0.95
)

type DecisionKind string

const (
	DecisionUnique    DecisionKind = "unique"
	DecisionDuplicate DecisionKind = "duplicate"
)

// Band classifies a similarity for observability only; it never drives the
// decision.
type Band string

const (
	BandNearIdentical   Band = "near_identical"
	BandLikelyDuplicate Band = "likely_duplicate"
	BandUnique          Band = "unique"
)

func BandFor(similarity float64) Band {
	switch {
	case similarity >= nearIdenticalCosine:
		return BandNearIdentical
	case similarity >= DefaultThreshold:
		return BandLikelyDuplicate
	default:
		return BandUnique
	}
}

type Decision struct {
	Kind        DecisionKind `json:"decision"`
	DuplicateOf string       `json:"duplicate_of,omitempty"`
	Similarity  float64      `json:"similarity"`
	Band        Band         `json:"band"`
}

func (d Decision) IsDuplicate() bool {
	return d.Kind == DecisionDuplicate
}

type Stats struct {
	Processed       int          `json:"total_processed"`
	Unique          int          `json:"unique_articles"`
	Duplicates      int          `json:"duplicates_found"`
	DuplicateRate   float64      `json:"duplicate_rate"`
	DuplicateGroups int          `json:"duplicate_groups"`
	Bands           map[Band]int `json:"similarity_bands"`
	Threshold       float64      `json:"threshold"`
	Indexed         int          `json:"indexed_embeddings"`
}

type Engine struct {
	index     *Index
	threshold float64
	logger    zerolog.Logger

	statsMu    sync.Mutex
	processed  int
	unique     int
	duplicates int
	groups     map[string]int
	bands      map[Band]int
}

func NewEngine(index *Index, threshold float64, logger zerolog.Logger) (*Engine, error) {
	if index == nil {
		return nil, fmt.Errorf("dedup engine requires a similarity index")
	}
	if threshold <= 0 || threshold > 1 {
		return nil, fmt.Errorf("duplicate threshold must be in (0, 1], got %v", threshold)
	}
	return &Engine{
		index:     index,
		threshold: threshold,
		logger:    logger,
		groups:    make(map[string]int),
		bands:     make(map[Band]int),
	}, nil
}

func (e *Engine) Threshold() float64 {
	return e.threshold
}

// Decide classifies a candidate against every accepted embedding. A unique
// candidate is inserted into the index inside the same critical section as the
// scan, so two concurrent copies of one event cannot both come back unique.
func (e *Engine) Decide(articleID string, embedding []float64) (Decision, error) {
	best, inserted, err := e.index.CheckAndInsert(articleID, embedding, func(match Match) bool {
		return !match.Found || match.Similarity < e.threshold
	})
	if err != nil {
		return Decision{}, err
	}

	decision := Decision{
		Kind:       DecisionUnique,
		Similarity: best.Similarity,
		Band:       BandFor(best.Similarity),
	}
	if !inserted {
		decision.Kind = DecisionDuplicate
		decision.DuplicateOf = best.ArticleID
	}
	e.record(decision)

	e.logger.Debug().
		Str("article_id", articleID).
		Str("decision", string(decision.Kind)).
		Str("duplicate_of", decision.DuplicateOf).
		Float64("similarity", decision.Similarity).
		Str("band", string(decision.Band)).
		Msg("dedup decision")
	return decision, nil
}

// Restore re-inserts a previously accepted article, e.g. after reloading
// persisted stories. It does not count toward statistics.
func (e *Engine) Restore(articleID string, embedding []float64) error {
	return e.index.Insert(articleID, embedding)
}

func (e *Engine) record(decision Decision) {
	e.statsMu.Lock()
	defer e.statsMu.Unlock()

	e.processed++
	e.bands[decision.Band]++
	if decision.IsDuplicate() {
		e.duplicates++
		e.groups[decision.DuplicateOf]++
		return
	}
	e.unique++
}

func (e *Engine) Stats() Stats {
	e.statsMu.Lock()
	defer e.statsMu.Unlock()

	bands := make(map[Band]int, len(e.bands))
	for band, count := range e.bands {
		bands[band] = count
	}
	stats := Stats{
		Processed:       e.processed,
		Unique:          e.unique,
		Duplicates:      e.duplicates,
		DuplicateGroups: len(e.groups),
		Bands:           bands,
		Threshold:       e.threshold,
		Indexed:         e.index.Len(),
	}
	if e.processed > 0 {
		stats.DuplicateRate = float64(e.duplicates) / float64(e.processed)
	}
	return stats
}
