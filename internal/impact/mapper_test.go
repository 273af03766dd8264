package impact

import (
	"testing"

	"horse.fit/finscoop/internal/news"
	"horse.fit/finscoop/internal/refdata"
)

func TestMap_DirectCompany(t *testing.T) {
	t.Parallel()

	impacts := NewMapper(nil).Map([]news.Entity{{Name: "HDFC Bank", Type: news.EntityCompany}})
	if len(impacts) != 1 {
		t.Fatalf("expected one impact, got %+v", impacts)
	}
	got := impacts[0]
	if got.Symbol != "HDFCBANK" || got.Confidence != 1.0 || got.Kind != news.ImpactDirect {
		t.Fatalf("unexpected direct impact %+v", got)
	}
}

func TestMap_PartialCompanyMatch(t *testing.T) {
	t.Parallel()

	impacts := NewMapper(nil).Map([]news.Entity{{Name: "Infosys BPM unit", Type: news.EntityCompany}})
	if len(impacts) != 1 || impacts[0].Symbol != "INFY" || impacts[0].Confidence != 0.95 {
		t.Fatalf("expected partial INFY match at 0.95, got %+v", impacts)
	}
}

func TestMap_BankingSectorWithoutCompany(t *testing.T) {
	t.Parallel()

	impacts := NewMapper(nil).Map([]news.Entity{{Name: "Banking", Type: news.EntitySector}})

	sector, _ := refdata.Default().SectorNamed("Banking")
	if len(impacts) != len(sector.Instruments) {
		t.Fatalf("expected %d banking impacts, got %d", len(sector.Instruments), len(impacts))
	}
	for _, impact := range impacts {
		if impact.Kind != news.ImpactSectorWide {
			t.Fatalf("expected sector_wide impact, got %+v", impact)
		}
		if impact.Confidence < 0.60 || impact.Confidence > 0.80 {
			t.Fatalf("sector confidence %.2f outside [0.60, 0.80]", impact.Confidence)
		}
		if !refdata.Default().SectorHasSymbol("Banking", impact.Symbol) {
			t.Fatalf("unexpected symbol %s in banking impacts", impact.Symbol)
		}
	}
}

func TestMap_RegulatorImpacts(t *testing.T) {
	t.Parallel()

	impacts := NewMapper(nil).Map([]news.Entity{{Name: "RBI", Type: news.EntityRegulator}})
	if len(impacts) == 0 {
		t.Fatal("expected regulatory impacts for RBI")
	}
	for _, impact := range impacts {
		if impact.Kind != news.ImpactRegulatory || impact.Confidence < 0.50 || impact.Confidence > 0.70 {
			t.Fatalf("unexpected regulatory impact %+v", impact)
		}
	}
}

func TestMap_SectorlessRegulatorHasNoImpacts(t *testing.T) {
	t.Parallel()

	for _, name := range []string{"TRAI", "CCI", "DGCA", "PFRDA"} {
		if impacts := NewMapper(nil).Map([]news.Entity{{Name: name, Type: news.EntityRegulator}}); len(impacts) != 0 {
			t.Fatalf("expected no impacts for %s, got %+v", name, impacts)
		}
	}
}

func TestMap_DirectBeatsSectorForSameSymbol(t *testing.T) {
	t.Parallel()

	impacts := NewMapper(nil).Map([]news.Entity{
		{Name: "Banking", Type: news.EntitySector},
		{Name: "RBI", Type: news.EntityRegulator},
		{Name: "HDFC Bank", Type: news.EntityCompany},
	})

	if impacts[0].Symbol != "HDFCBANK" || impacts[0].Kind != news.ImpactDirect {
		t.Fatalf("expected direct HDFCBANK ranked first, got %+v", impacts[0])
	}
	seen := map[string]bool{}
	for i, impact := range impacts {
		if seen[impact.Symbol] {
			t.Fatalf("symbol %s appears twice", impact.Symbol)
		}
		seen[impact.Symbol] = true
		if impact.Symbol == "ICICIBANK" && impact.Kind != news.ImpactSectorWide {
			t.Fatalf("expected sector_wide to beat regulatory for ICICIBANK, got %+v", impact)
		}
		if i > 0 && impacts[i-1].Confidence < impact.Confidence {
			t.Fatalf("impacts not ranked by confidence: %+v", impacts)
		}
	}
}

func TestMap_UnknownEntitiesIgnored(t *testing.T) {
	t.Parallel()

	impacts := NewMapper(nil).Map([]news.Entity{
		{Name: "Acme Widgets", Type: news.EntityCompany},
		{Name: "Underwater Basket Weaving", Type: news.EntitySector},
		{Name: "Sashidhar Jagdishan", Type: news.EntityPerson},
		{Name: "Air India", Type: news.EntityCompany},
		{Name: "Government", Type: news.EntityRegulator},
	})
	if len(impacts) != 0 {
		t.Fatalf("expected no impacts, got %+v", impacts)
	}
}
