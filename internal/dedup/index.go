package dedup

import (
	"fmt"
	"math"
	"sync"

	"horse.fit/finscoop/internal/news"
)

// Match is the nearest indexed embedding for a candidate.
type Match struct {
	ArticleID  string
	Similarity float64
	Found      bool
}

type entry struct {
	articleID string
	vector    []float64
	norm      float64
}

// Index holds the embeddings of accepted (non-duplicate) articles in insertion
// order. Entries are never removed. All access goes through its mutex.
type Index struct {
	mu         sync.Mutex
	dimensions int
	entries    []entry
	positions  map[string]int
}

func NewIndex(dimensions int) *Index {
	if dimensions <= 0 {
		dimensions = news.EmbeddingDimensions
	}
	return &Index{
		dimensions: dimensions,
		positions:  make(map[string]int),
	}
}

func (x *Index) Len() int {
	x.mu.Lock()
	defer x.mu.Unlock()
	return len(x.entries)
}

func (x *Index) Contains(articleID string) bool {
	x.mu.Lock()
	defer x.mu.Unlock()
	_, ok := x.positions[articleID]
	return ok
}

// Nearest scans the index for the best cosine match without mutating it.
func (x *Index) Nearest(vector []float64) (Match, error) {
	norm, err := x.checkVector(vector)
	if err != nil {
		return Match{}, err
	}
	x.mu.Lock()
	defer x.mu.Unlock()
	return x.scanLocked(vector, norm), nil
}

// Insert adds an accepted article. Inserting an id twice reports ErrIndexRace.
func (x *Index) Insert(articleID string, vector []float64) error {
	norm, err := x.checkVector(vector)
	if err != nil {
		return err
	}
	x.mu.Lock()
	defer x.mu.Unlock()
	return x.insertLocked(articleID, vector, norm)
}

// CheckAndInsert runs the nearest-neighbour scan and, when keep reports the
// candidate as unique, the insert as one critical section. No other scan or
// insert can interleave between the two.
func (x *Index) CheckAndInsert(articleID string, vector []float64, keep func(Match) bool) (Match, bool, error) {
	norm, err := x.checkVector(vector)
	if err != nil {
		return Match{}, false, err
	}

	x.mu.Lock()
	defer x.mu.Unlock()

	if _, exists := x.positions[articleID]; exists {
		return Match{}, false, fmt.Errorf("%w: article_id=%s already indexed", news.ErrIndexRace, articleID)
	}

	best := x.scanLocked(vector, norm)
	if !keep(best) {
		return best, false, nil
	}
	if err := x.insertLocked(articleID, vector, norm); err != nil {
		return best, false, err
	}
	return best, true, nil
}

func (x *Index) scanLocked(vector []float64, norm float64) Match {
	var best Match
	for _, candidate := range x.entries {
		similarity := dot(vector, candidate.vector) / (norm * candidate.norm)
		// strict comparison keeps the earliest-inserted entry on ties
		if !best.Found || similarity > best.Similarity {
			best = Match{
				ArticleID:  candidate.articleID,
				Similarity: similarity,
				Found:      true,
			}
		}
	}
	return best
}

func (x *Index) insertLocked(articleID string, vector []float64, norm float64) error {
	if articleID == "" {
		return fmt.Errorf("index insert requires an article id")
	}
	if _, exists := x.positions[articleID]; exists {
		return fmt.Errorf("%w: article_id=%s already indexed", news.ErrIndexRace, articleID)
	}
	x.positions[articleID] = len(x.entries)
	x.entries = append(x.entries, entry{
		articleID: articleID,
		vector:    append([]float64(nil), vector...),
		norm:      norm,
	})
	return nil
}

func (x *Index) checkVector(vector []float64) (float64, error) {
	if len(vector) != x.dimensions {
		return 0, fmt.Errorf("%w: expected %d dimensions, got %d", news.ErrEmbeddingFailure, x.dimensions, len(vector))
	}
	norm := math.Sqrt(dot(vector, vector))
	if norm == 0 || math.IsNaN(norm) || math.IsInf(norm, 0) {
		return 0, fmt.Errorf("%w: embedding has no usable magnitude", news.ErrEmbeddingFailure)
	}
	return norm, nil
}

// Cosine returns the cosine similarity of two equal-length vectors, or 0 when
// either has zero magnitude.
func Cosine(a, b []float64) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	na := math.Sqrt(dot(a, a))
	nb := math.Sqrt(dot(b, b))
	if na == 0 || nb == 0 {
		return 0
	}
	return dot(a, b) / (na * nb)
}

func dot(a, b []float64) float64 {
	var sum float64
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum
}
