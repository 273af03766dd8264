package query

import (
	"fmt"
	"math"
	"testing"
	"time"

	"horse.fit/finscoop/internal/news"
	"horse.fit/finscoop/internal/refdata"
)

type fakeSource []news.UniqueStory

func (f fakeSource) Snapshot() []news.UniqueStory {
	out := make([]news.UniqueStory, len(f))
	copy(out, f)
	return out
}

var t0 = time.Date(2025, 2, 1, 8, 0, 0, 0, time.UTC)

func story(id, title, body string, minutes int, impacts ...news.StockImpact) news.UniqueStory {
	return news.UniqueStory{
		ID: id,
		Primary: news.Article{
			ID:          id + "-primary",
			Title:       title,
			Body:        body,
			PublishedAt: t0.Add(time.Duration(minutes) * time.Minute),
		},
		Impacts:         impacts,
		ConfidenceScore: news.AggregateConfidence(impacts),
	}
}

func impact(symbol string, confidence float64, kind news.ImpactKind) news.StockImpact {
	return news.StockImpact{Symbol: symbol, Confidence: confidence, Kind: kind}
}

func bankingStories() fakeSource {
	return fakeSource{
		story("hdfc", "HDFC Bank announces 15% dividend", "Board approves buyback.", 0,
			impact("HDFCBANK", 1.0, news.ImpactDirect)),
		story("icici", "ICICI Bank posts record profit", "Lender beats estimates.", 10,
			impact("ICICIBANK", 1.0, news.ImpactDirect)),
		story("sector", "Banking stocks rally", "Lenders gain across the board.", 20,
			impact("SBIN", 0.75, news.ImpactSectorWide), impact("AXISBANK", 0.75, news.ImpactSectorWide)),
		story("infy", "Infosys wins large deal", "IT major signs contract.", 30,
			impact("INFY", 1.0, news.ImpactDirect)),
	}
}

func TestParse_CompanyImpliesSector(t *testing.T) {
	t.Parallel()

	intent := Parse(refdata.Default(), "HDFC Bank news")
	if fmt.Sprint(intent.Symbols) != "[HDFCBANK]" {
		t.Fatalf("unexpected symbols %v", intent.Symbols)
	}
	if fmt.Sprint(intent.ImpliedSectors) != "[Banking]" || len(intent.NamedSectors) != 0 {
		t.Fatalf("unexpected sectors %+v", intent)
	}
	if len(intent.Keywords) != 0 {
		t.Fatalf("expected no residual keywords, got %v", intent.Keywords)
	}
}

func TestParse_KeywordsAndRegulators(t *testing.T) {
	t.Parallel()

	intent := Parse(refdata.Default(), "RBI policy changes on dividend payouts")
	if fmt.Sprint(intent.ImpliedSectors) != "[Banking]" {
		t.Fatalf("expected RBI to imply Banking, got %v", intent.ImpliedSectors)
	}
	want := "[policy changes dividend payouts]"
	if fmt.Sprint(intent.Keywords) != want {
		t.Fatalf("keywords = %v, want %s", intent.Keywords, want)
	}
}

func TestSearch_HDFCWithExpansion(t *testing.T) {
	t.Parallel()

	engine := NewEngine(nil, bankingStories())
	resp := engine.Search(news.Query{Text: "HDFC Bank news", ExpandSector: true})

	if resp.TotalResults != 3 || !resp.ExpansionApplied {
		t.Fatalf("expected 3 results with expansion, got %+v", resp)
	}
	if resp.Results[0].Story.ID != "hdfc" || resp.Results[0].Score < 1.0 {
		t.Fatalf("expected HDFC story first with score >= 1.0, got %+v", resp.Results[0])
	}
	for _, result := range resp.Results[1:] {
		if result.Score != 0.7 {
			t.Fatalf("expected banking stories at 0.7, got %s=%v", result.Story.ID, result.Score)
		}
		if result.Score >= resp.Results[0].Score {
			t.Fatal("results are not strictly ordered behind the direct match")
		}
	}
	// equal scores fall back to recency
	if resp.Results[1].Story.ID != "sector" || resp.Results[2].Story.ID != "icici" {
		t.Fatalf("unexpected tie order %s, %s", resp.Results[1].Story.ID, resp.Results[2].Story.ID)
	}
}

func TestSearch_NoExpansionOnlyDirect(t *testing.T) {
	t.Parallel()

	resp := NewEngine(nil, bankingStories()).Search(news.Query{Text: "HDFC Bank news"})
	if resp.TotalResults != 1 || resp.Results[0].Story.ID != "hdfc" || resp.ExpansionApplied {
		t.Fatalf("expected only the direct story, got %+v", resp)
	}
}

func TestSearch_NamedSectorAlwaysCounts(t *testing.T) {
	t.Parallel()

	resp := NewEngine(nil, bankingStories()).Search(news.Query{Text: "banking sector"})
	if resp.TotalResults != 3 {
		t.Fatalf("expected all three banking stories, got %d", resp.TotalResults)
	}
}

func TestSearch_LimitAndMinScore(t *testing.T) {
	t.Parallel()

	engine := NewEngine(nil, bankingStories())
	resp := engine.Search(news.Query{Text: "HDFC Bank news", ExpandSector: true, Limit: 1})
	if len(resp.Results) != 1 || resp.TotalResults != 3 {
		t.Fatalf("expected limit 1 of 3, got %d of %d", len(resp.Results), resp.TotalResults)
	}

	resp = engine.Search(news.Query{Text: "HDFC Bank news", ExpandSector: true, MinScore: 1.0})
	if resp.TotalResults != 1 {
		t.Fatalf("expected min score to keep only the direct match, got %d", resp.TotalResults)
	}
}

func TestSearch_ZeroScoreExcluded(t *testing.T) {
	t.Parallel()

	resp := NewEngine(nil, bankingStories()).Search(news.Query{Text: "weather forecast"})
	if resp.TotalResults != 0 || len(resp.Results) != 0 {
		t.Fatalf("expected no results, got %+v", resp)
	}
}

func TestScore_KeywordTitleAndBodyBothCount(t *testing.T) {
	t.Parallel()

	engine := NewEngine(nil, fakeSource{})
	s := story("s", "Dividend declared", "The dividend is payable next month.", 0)
	if got := engine.Score(s, news.Query{Text: "dividend"}); math.Abs(got-0.8) > 1e-9 {
		t.Fatalf("expected 0.5 + 0.3, got %v", got)
	}
}

func TestScore_AddingTitleKeywordIsMonotonic(t *testing.T) {
	t.Parallel()

	engine := NewEngine(nil, fakeSource{})
	queries := []news.Query{
		{Text: "buyback dividend"},
		{Text: "HDFC Bank buyback", ExpandSector: true},
		{Text: "banking merger"},
	}
	titles := []string{"Board meets", "HDFC Bank board meets", "Lenders weigh options"}

	for _, q := range queries {
		for _, title := range titles {
			base := story("s", title, "Quarterly results are due.", 0, impact("HDFCBANK", 1.0, news.ImpactDirect))
			before := engine.Score(base, q)
			for _, word := range []string{"buyback", "dividend", "merger", "unrelated"} {
				richer := base
				richer.Primary.Title = title + " " + word
				if after := engine.Score(richer, q); after < before {
					t.Fatalf("query %q: adding %q to %q lowered score %v -> %v", q.Text, word, title, before, after)
				}
			}
		}
	}
}
