package extract

import (
	"context"

	"horse.fit/finscoop/internal/news"
	"horse.fit/finscoop/internal/refdata"
)

const ruleConfidence = 1.0

// RuleExtractor matches text against the reference tables. It never fails.
type RuleExtractor struct {
	catalog *refdata.Catalog
}

func NewRuleExtractor(catalog *refdata.Catalog) *RuleExtractor {
	if catalog == nil {
		catalog = refdata.Default()
	}
	return &RuleExtractor{catalog: catalog}
}

func (r *RuleExtractor) Source() news.ExtractionSource {
	return news.SourceRule
}

func (r *RuleExtractor) Extract(_ context.Context, title, body string) Outcome {
	mentions := r.catalog.Scan(title + "\n" + body)
	entities := make([]news.Entity, 0, len(mentions))
	for _, mention := range mentions {
		entities = append(entities, news.Entity{
			Name:       mention.Name,
			Type:       mention.Type,
			Source:     news.SourceRule,
			Confidence: news.Float(ruleConfidence),
		})
	}
	return Ok(news.MergeEntities(entities))
}
