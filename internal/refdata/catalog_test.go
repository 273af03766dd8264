package refdata

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"horse.fit/finscoop/internal/news"
)

func TestDefaultTablesBuild(t *testing.T) {
	t.Parallel()

	tables := Default().Tables()
	if len(tables.Companies) < 30 {
		t.Fatalf("expected at least 30 companies, got %d", len(tables.Companies))
	}
	if len(tables.Sectors) != 11 {
		t.Fatalf("expected 11 sectors, got %d", len(tables.Sectors))
	}
	for _, sector := range tables.Sectors {
		if sector.Confidence < MinSectorConfidence || sector.Confidence > MaxSectorConfidence {
			t.Fatalf("sector %s confidence %.2f out of range", sector.Name, sector.Confidence)
		}
	}
}

func TestCompany_ExactAndPartial(t *testing.T) {
	t.Parallel()

	catalog := Default()

	company, kind := catalog.Company("HDFC Bank Ltd")
	if kind != ExactMatch || company.Symbol != "HDFCBANK" {
		t.Fatalf("expected exact HDFCBANK match, got %v %+v", kind, company)
	}

	company, kind = catalog.Company("HDFC Bank board of directors")
	if kind != PartialMatch || company.Symbol != "HDFCBANK" {
		t.Fatalf("expected partial HDFCBANK match, got %v %+v", kind, company)
	}

	if _, kind := catalog.Company("Acme Widgets"); kind != NoMatch {
		t.Fatalf("expected no match for unknown company, got %v", kind)
	}
}

func TestCompany_PartialNeedsWholeWords(t *testing.T) {
	t.Parallel()

	if _, kind := Default().Company("Citcorp"); kind != NoMatch {
		t.Fatalf("expected substring inside a word not to match, got %v", kind)
	}
}

func TestSectorAndRegulatorLookup(t *testing.T) {
	t.Parallel()

	catalog := Default()
	sector, ok := catalog.Sector("banks")
	if !ok || sector.Name != "Banking" {
		t.Fatalf("expected banks alias to resolve to Banking, got %+v", sector)
	}
	regulator, ok := catalog.Regulator("Reserve Bank of India")
	if !ok || regulator.Name != "RBI" || regulator.Sectors[0] != "Banking" {
		t.Fatalf("expected RBI regulator, got %+v", regulator)
	}
	if !catalog.SectorHasSymbol("Banking", "SBIN") {
		t.Fatal("expected SBIN to be in Banking")
	}
}

func TestScan_LongestAliasWins(t *testing.T) {
	t.Parallel()

	mentions := Default().Scan("Tech Mahindra and HDFC Bank rally as RBI holds rates; banking stocks up")

	got := make([]string, 0, len(mentions))
	for _, mention := range mentions {
		got = append(got, string(mention.Type)+":"+mention.Name)
	}
	want := []string{"company:Tech Mahindra", "company:HDFC Bank", "regulator:RBI", "sector:Banking"}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Fatalf("unexpected mentions\nwant %v\ngot  %v", want, got)
	}
}

func TestScan_SectorlessRegulators(t *testing.T) {
	t.Parallel()

	mentions := Default().Scan("TRAI and the CCI weigh in; DGCA grounds jets while PFRDA revises rules")
	got := make([]string, 0, len(mentions))
	for _, mention := range mentions {
		got = append(got, string(mention.Type)+":"+mention.Name)
	}
	want := []string{"regulator:TRAI", "regulator:CCI", "regulator:DGCA", "regulator:PFRDA"}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Fatalf("unexpected mentions\nwant %v\ngot  %v", want, got)
	}

	regulator, ok := Default().Regulator("Telecom Regulatory Authority of India")
	if !ok || regulator.Name != "TRAI" || len(regulator.Sectors) != 0 {
		t.Fatalf("expected sectorless TRAI, got %+v", regulator)
	}
}

func TestScan_CaseInsensitiveWordBoundaries(t *testing.T) {
	t.Parallel()

	mentions := Default().Scan("INFOSYS beats estimates; Infosysian culture praised")
	if len(mentions) != 1 || mentions[0].Name != "Infosys" || mentions[0].Type != news.EntityCompany {
		t.Fatalf("expected one Infosys mention, got %+v", mentions)
	}
}

func TestLoad_YAMLOverride(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "ref.yaml")
	body := `
sectors:
  - name: Banking
    confidence: 0.7
    instruments:
      - {symbol: HDFCBANK, name: HDFC Bank}
companies:
  - name: HDFC Bank
    symbol: HDFCBANK
    sector: Banking
    aliases: [hdfc]
regulators:
  - name: RBI
    sectors: [Banking]
    confidence: 0.6
`
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write yaml: %v", err)
	}

	catalog, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if company, kind := catalog.Company("hdfc"); kind != ExactMatch || company.Symbol != "HDFCBANK" {
		t.Fatalf("expected hdfc alias from yaml, got %v %+v", kind, company)
	}
	if _, kind := catalog.Company("Infosys"); kind != NoMatch {
		t.Fatal("expected yaml tables to replace the built-in ones")
	}
}

func TestBuild_RejectsOutOfRangeSectorConfidence(t *testing.T) {
	t.Parallel()

	_, err := Build(Tables{Sectors: []Sector{{Name: "Banking", Confidence: 0.95}}})
	if err == nil || !strings.Contains(err.Error(), "outside") {
		t.Fatalf("expected confidence range error, got %v", err)
	}
}

func TestBuild_RejectsUnknownCompanySector(t *testing.T) {
	t.Parallel()

	_, err := Build(Tables{Companies: []Company{{Name: "X", Symbol: "X", Sector: "Nowhere"}}})
	if err == nil {
		t.Fatal("expected unknown sector error")
	}
}
