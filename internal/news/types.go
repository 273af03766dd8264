package news

import (
	"strings"
	"time"
)

// EmbeddingDimensions is the vector length every Article embedding must have.
const EmbeddingDimensions = 384

type EntityType string

const (
	EntityCompany   EntityType = "company"
	EntitySector    EntityType = "sector"
	EntityRegulator EntityType = "regulator"
	EntityPerson    EntityType = "person"
	EntityEvent     EntityType = "event"
)

func (t EntityType) Valid() bool {
	switch t {
	case EntityCompany, EntitySector, EntityRegulator, EntityPerson, EntityEvent:
		return true
	default:
		return false
	}
}

type ExtractionSource string

const (
	SourceLLM  ExtractionSource = "llm"
	SourceRule ExtractionSource = "rule"
)

type ImpactKind string

const (
	ImpactDirect      ImpactKind = "direct"
	ImpactSectorWide  ImpactKind = "sector_wide"
	ImpactRegulatory  ImpactKind = "regulatory"
	ImpactSupplyChain ImpactKind = "supply_chain"
)

// Rank orders impact kinds from strongest (0) to weakest.
func (k ImpactKind) Rank() int {
	switch k {
	case ImpactDirect:
		return 0
	case ImpactSectorWide:
		return 1
	case ImpactRegulatory:
		return 2
	case ImpactSupplyChain:
		return 3
	default:
		return 4
	}
}

// Entity is a value object; two entities are the same when Key() matches.
type Entity struct {
	Name       string           `json:"name"`
	Type       EntityType       `json:"type"`
	Source     ExtractionSource `json:"source"`
	Confidence *float64         `json:"confidence,omitempty"`
}

type EntityKey struct {
	Name string
	Type EntityType
}

func (e Entity) Key() EntityKey {
	return EntityKey{
		Name: strings.ToLower(strings.TrimSpace(e.Name)),
		Type: e.Type,
	}
}

// ConfidenceValue returns the extraction confidence, or -1 when absent so that
// any explicit confidence outranks a missing one.
func (e Entity) ConfidenceValue() float64 {
	if e.Confidence == nil {
		return -1
	}
	return *e.Confidence
}

type StockImpact struct {
	Symbol      string     `json:"symbol"`
	CompanyName string     `json:"company_name"`
	Confidence  float64    `json:"confidence"`
	Kind        ImpactKind `json:"impact_type"`
	Reasoning   string     `json:"reasoning"`
}

type Article struct {
	ID          string        `json:"id"`
	Title       string        `json:"title"`
	Body        string        `json:"content"`
	Source      string        `json:"source"`
	URL         string        `json:"url,omitempty"`
	Author      string        `json:"author,omitempty"`
	Language    string        `json:"language,omitempty"`
	PublishedAt time.Time     `json:"published_date"`
	Embedding   []float64     `json:"embedding,omitempty"`
	DuplicateOf string        `json:"duplicate_of,omitempty"`
	Entities    []Entity      `json:"entities"`
	Impacts     []StockImpact `json:"stock_impacts"`
}

func (a Article) IsDuplicate() bool {
	return a.DuplicateOf != ""
}

// Clone returns a deep copy so stored articles never alias caller slices.
func (a Article) Clone() Article {
	out := a
	if a.Embedding != nil {
		out.Embedding = append([]float64(nil), a.Embedding...)
	}
	if a.Entities != nil {
		out.Entities = make([]Entity, len(a.Entities))
		for i, entity := range a.Entities {
			out.Entities[i] = entity
			if entity.Confidence != nil {
				c := *entity.Confidence
				out.Entities[i].Confidence = &c
			}
		}
	}
	if a.Impacts != nil {
		out.Impacts = append([]StockImpact(nil), a.Impacts...)
	}
	return out
}

type UniqueStory struct {
	ID              string        `json:"id"`
	Primary         Article       `json:"primary_article"`
	Duplicates      []Article     `json:"duplicate_articles"`
	Entities        []Entity      `json:"all_entities"`
	Impacts         []StockImpact `json:"all_stock_impacts"`
	ConfidenceScore float64       `json:"confidence_score"`
}

// ArticleIDs lists the primary id followed by duplicate ids in attach order.
func (s UniqueStory) ArticleIDs() []string {
	ids := make([]string, 0, 1+len(s.Duplicates))
	ids = append(ids, s.Primary.ID)
	for _, dup := range s.Duplicates {
		ids = append(ids, dup.ID)
	}
	return ids
}

func (s UniqueStory) Clone() UniqueStory {
	out := s
	out.Primary = s.Primary.Clone()
	out.Duplicates = make([]Article, len(s.Duplicates))
	for i, dup := range s.Duplicates {
		out.Duplicates[i] = dup.Clone()
	}
	out.Entities = append([]Entity(nil), s.Entities...)
	out.Impacts = append([]StockImpact(nil), s.Impacts...)
	return out
}

type Query struct {
	Text         string  `json:"query"`
	Limit        int     `json:"limit,omitempty"`
	ExpandSector bool    `json:"expand_sector,omitempty"`
	MinScore     float64 `json:"min_score,omitempty"`
}

func Float(v float64) *float64 {
	return &v
}
