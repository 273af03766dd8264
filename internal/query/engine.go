package query

import (
	"sort"
	"strings"
	"time"

	"horse.fit/finscoop/internal/news"
	"horse.fit/finscoop/internal/refdata"
)

const (
	sectorWeight      = 0.7
	titleKeywordScore = 0.5
	bodyKeywordScore  = 0.3
)

// StorySource is the read side of the story aggregator.
type StorySource interface {
	Snapshot() []news.UniqueStory
}

type Result struct {
	Story news.UniqueStory `json:"story"`
	Score float64          `json:"relevance_score"`
}

type Response struct {
	Query            string   `json:"query"`
	Intent           Intent   `json:"intent"`
	Results          []Result `json:"results"`
	TotalResults     int      `json:"total_results"`
	ExpansionApplied bool     `json:"expansion_applied"`
	ProcessingMS     float64  `json:"processing_ms"`
}

// Engine answers queries over a snapshot of the story set. It never mutates
// stories.
type Engine struct {
	catalog *refdata.Catalog
	source  StorySource
	now     func() time.Time
}

func NewEngine(catalog *refdata.Catalog, source StorySource) *Engine {
	if catalog == nil {
		catalog = refdata.Default()
	}
	return &Engine{catalog: catalog, source: source, now: time.Now}
}

func (e *Engine) Search(q news.Query) Response {
	started := e.now()
	intent := Parse(e.catalog, q.Text)
	sectors := activeSectors(intent, q.ExpandSector)

	results := make([]Result, 0)
	for _, story := range e.source.Snapshot() {
		score := e.score(story, intent, sectors)
		if score <= 0 || score < q.MinScore {
			continue
		}
		results = append(results, Result{Story: story, Score: score})
	}
	Rank(results)

	total := len(results)
	if q.Limit > 0 && len(results) > q.Limit {
		results = results[:q.Limit]
	}
	return Response{
		Query:            q.Text,
		Intent:           intent,
		Results:          results,
		TotalResults:     total,
		ExpansionApplied: q.ExpandSector && len(sectors) > 0,
		ProcessingMS:     float64(e.now().Sub(started).Microseconds()) / 1000,
	}
}

// Score exposes the per-story relevance used by Search.
func (e *Engine) Score(story news.UniqueStory, q news.Query) float64 {
	intent := Parse(e.catalog, q.Text)
	return e.score(story, intent, activeSectors(intent, q.ExpandSector))
}

func activeSectors(intent Intent, expand bool) []string {
	sectors := append([]string(nil), intent.NamedSectors...)
	if expand {
		for _, sector := range intent.ImpliedSectors {
			sectors = appendUnique(sectors, sector)
		}
	}
	return sectors
}

func (e *Engine) score(story news.UniqueStory, intent Intent, sectors []string) float64 {
	var score float64

	for _, symbol := range intent.Symbols {
		for _, impact := range story.Impacts {
			if impact.Symbol == symbol {
				score += 1.0 * impact.Confidence
				break
			}
		}
	}

	for _, sector := range sectors {
		for _, impact := range story.Impacts {
			if e.catalog.SectorHasSymbol(sector, impact.Symbol) {
				score += sectorWeight
				break
			}
		}
	}

	title := strings.ToLower(story.Primary.Title)
	body := strings.ToLower(story.Primary.Body)
	for _, keyword := range intent.Keywords {
		if containsKeyword(title, keyword) {
			score += titleKeywordScore
		}
		if containsKeyword(body, keyword) {
			score += bodyKeywordScore
		}
	}
	return score
}

// Rank orders by score, then most recent primary, then story id.
func Rank(results []Result) {
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		left, right := results[i].Story.Primary.PublishedAt, results[j].Story.Primary.PublishedAt
		if !left.Equal(right) {
			return left.After(right)
		}
		return results[i].Story.ID < results[j].Story.ID
	})
}
