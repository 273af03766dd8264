package impact

import (
	"fmt"

	"horse.fit/finscoop/internal/news"
	"horse.fit/finscoop/internal/refdata"
)

const (
	directConfidence  = 1.0
	partialConfidence = 0.95
)

// Mapper turns entities into instrument impacts using the reference tables.
// It holds no mutable state.
type Mapper struct {
	catalog *refdata.Catalog
}

func NewMapper(catalog *refdata.Catalog) *Mapper {
	if catalog == nil {
		catalog = refdata.Default()
	}
	return &Mapper{catalog: catalog}
}

// Map applies the company, sector and regulator rules per entity, keeps the
// strongest impact per symbol and ranks the result. Entities with no mapping
// contribute nothing.
func (m *Mapper) Map(entities []news.Entity) []news.StockImpact {
	impacts := make([]news.StockImpact, 0, len(entities))
	for _, entity := range entities {
		switch entity.Type {
		case news.EntityCompany:
			if impact, ok := m.company(entity.Name); ok {
				impacts = append(impacts, impact)
			}
		case news.EntitySector:
			impacts = append(impacts, m.sector(entity.Name)...)
		case news.EntityRegulator:
			impacts = append(impacts, m.regulator(entity.Name)...)
		}
	}
	return news.MergeImpacts(impacts)
}

func (m *Mapper) company(name string) (news.StockImpact, bool) {
	company, match := m.catalog.Company(name)
	if match == refdata.NoMatch || !company.Tradeable() {
		return news.StockImpact{}, false
	}

	impact := news.StockImpact{
		Symbol:      company.Symbol,
		CompanyName: displayName(company),
		Confidence:  directConfidence,
		Kind:        news.ImpactDirect,
		Reasoning:   fmt.Sprintf("Direct mention of %s in article", name),
	}
	if match == refdata.PartialMatch {
		impact.Confidence = partialConfidence
		impact.Reasoning = fmt.Sprintf("Partial match for %s", name)
	}
	return impact, true
}

func (m *Mapper) sector(name string) []news.StockImpact {
	sector, ok := m.catalog.Sector(name)
	if !ok {
		return nil
	}
	impacts := make([]news.StockImpact, 0, len(sector.Instruments))
	for _, instrument := range sector.Instruments {
		impacts = append(impacts, news.StockImpact{
			Symbol:      instrument.Symbol,
			CompanyName: instrument.Name,
			Confidence:  sector.Confidence,
			Kind:        news.ImpactSectorWide,
			Reasoning:   fmt.Sprintf("Sector-wide %s news", sector.Name),
		})
	}
	return impacts
}

func (m *Mapper) regulator(name string) []news.StockImpact {
	regulator, ok := m.catalog.Regulator(name)
	if !ok {
		return nil
	}
	impacts := make([]news.StockImpact, 0)
	for _, sectorName := range regulator.Sectors {
		sector, ok := m.catalog.SectorNamed(sectorName)
		if !ok {
			continue
		}
		for _, instrument := range sector.Instruments {
			impacts = append(impacts, news.StockImpact{
				Symbol:      instrument.Symbol,
				CompanyName: instrument.Name,
				Confidence:  regulator.Confidence,
				Kind:        news.ImpactRegulatory,
				Reasoning:   fmt.Sprintf("%s regulatory news affects %s sector", regulator.Name, sector.Name),
			})
		}
	}
	return impacts
}

func displayName(company refdata.Company) string {
	if company.LegalName != "" {
		return company.LegalName
	}
	return company.Name
}
