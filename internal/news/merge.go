package news

import "sort"

// MergeEntities unions entity lists by (name, type) in first-seen order. When the
// same key appears more than once the entry with the highest confidence wins.
func MergeEntities(lists ...[]Entity) []Entity {
	index := make(map[EntityKey]int)
	merged := make([]Entity, 0)
	for _, list := range lists {
		for _, entity := range list {
			if entity.Key().Name == "" {
				continue
			}
			key := entity.Key()
			pos, seen := index[key]
			if !seen {
				index[key] = len(merged)
				merged = append(merged, entity)
				continue
			}
			if entity.ConfidenceValue() > merged[pos].ConfidenceValue() {
				merged[pos] = entity
			}
		}
	}
	return merged
}

// MergeImpacts unions impacts by symbol keeping the highest-confidence impact per
// symbol (stronger impact kind breaks ties) and returns them ranked.
func MergeImpacts(lists ...[]StockImpact) []StockImpact {
	best := make(map[string]StockImpact)
	for _, list := range lists {
		for _, impact := range list {
			if impact.Symbol == "" {
				continue
			}
			current, seen := best[impact.Symbol]
			if !seen || outranks(impact, current) {
				best[impact.Symbol] = impact
			}
		}
	}

	merged := make([]StockImpact, 0, len(best))
	for _, impact := range best {
		merged = append(merged, impact)
	}
	SortImpacts(merged)
	return merged
}

func outranks(candidate, current StockImpact) bool {
	if candidate.Confidence != current.Confidence {
		return candidate.Confidence > current.Confidence
	}
	return candidate.Kind.Rank() < current.Kind.Rank()
}

// SortImpacts orders by descending confidence, then impact kind, then symbol.
func SortImpacts(impacts []StockImpact) {
	sort.SliceStable(impacts, func(i, j int) bool {
		if impacts[i].Confidence != impacts[j].Confidence {
			return impacts[i].Confidence > impacts[j].Confidence
		}
		if impacts[i].Kind.Rank() != impacts[j].Kind.Rank() {
			return impacts[i].Kind.Rank() < impacts[j].Kind.Rank()
		}
		return impacts[i].Symbol < impacts[j].Symbol
	})
}

// AggregateConfidence is the maximum impact confidence, or 0 for no impacts.
func AggregateConfidence(impacts []StockImpact) float64 {
	var maxConfidence float64
	for _, impact := range impacts {
		if impact.Confidence > maxConfidence {
			maxConfidence = impact.Confidence
		}
	}
	return maxConfidence
}
