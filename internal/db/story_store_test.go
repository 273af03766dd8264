package db

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"horse.fit/finscoop/internal/news"
	"horse.fit/finscoop/internal/story"
)

func sampleStory() news.UniqueStory {
	published := time.Date(2026, 2, 10, 9, 0, 0, 0, time.FixedZone("IST", 5*3600+1800))
	return news.UniqueStory{
		ID: story.IDFor("et-1"),
		Primary: news.Article{
			ID:          "et-1",
			Title:       "HDFC Bank announces 15% dividend",
			Source:      "Economic Times",
			PublishedAt: published,
		},
		Duplicates: []news.Article{
			{ID: "mint-1", Title: "HDFC Bank declares dividend", Source: "Mint", DuplicateOf: "et-1", PublishedAt: published.Add(time.Hour)},
		},
		Impacts: []news.StockImpact{
			{Symbol: "HDFCBANK", CompanyName: "HDFC Bank Ltd", Confidence: 1, Kind: news.ImpactDirect, Reasoning: "Direct mention of HDFC Bank in article"},
			{Symbol: "ICICIBANK", CompanyName: "ICICI Bank", Confidence: 0.75, Kind: news.ImpactSectorWide, Reasoning: "Sector-wide Banking news"},
		},
		ConfidenceScore: 0.875,
	}
}

func TestRowsForStory(t *testing.T) {
	t.Parallel()

	s := sampleStory()
	rows, err := rowsFor(s)
	if err != nil {
		t.Fatalf("rowsFor() error = %v", err)
	}

	if rows.story.StoryID != s.ID || rows.story.PrimaryArticleID != "et-1" || rows.story.ArticleCount != 2 {
		t.Fatalf("unexpected story row %+v", rows.story)
	}
	if rows.story.PrimaryPublishedAt.Location() != time.UTC {
		t.Fatalf("expected UTC timestamp, got %v", rows.story.PrimaryPublishedAt.Location())
	}
	if len(rows.articles) != 2 || !rows.articles[0].IsPrimary || rows.articles[1].IsPrimary {
		t.Fatalf("unexpected article rows %+v", rows.articles)
	}
	if rows.articles[1].DuplicateOf == nil || *rows.articles[1].DuplicateOf != "et-1" {
		t.Fatalf("expected duplicate link on second row, got %+v", rows.articles[1])
	}
	if len(rows.impacts) != 2 || rows.impacts[0].ImpactType != "direct" || rows.impacts[1].Confidence != 0.75 {
		t.Fatalf("unexpected impact rows %+v", rows.impacts)
	}

	decoded, err := story.Decode(rows.story.Payload)
	if err != nil {
		t.Fatalf("Decode(payload) error = %v", err)
	}
	if decoded.ID != s.ID || len(decoded.Duplicates) != 1 || decoded.Impacts[0].Symbol != "HDFCBANK" {
		t.Fatalf("payload did not round trip: %+v", decoded)
	}
}

func TestTableNames(t *testing.T) {
	t.Parallel()

	if (StoryRecord{}).TableName() != "finscoop.stories" ||
		(StoryArticle{}).TableName() != "finscoop.story_articles" ||
		(StoryImpact{}).TableName() != "finscoop.story_impacts" {
		t.Fatal("unexpected table names")
	}
	if len(autoMigrateModels()) != 3 {
		t.Fatalf("expected 3 migrated models, got %d", len(autoMigrateModels()))
	}
}

func TestStoryUpsertGuardsArticleCount(t *testing.T) {
	t.Parallel()

	upsert := storyUpsert()
	if len(upsert.Columns) != 1 || upsert.Columns[0].Name != "story_id" {
		t.Fatalf("unexpected conflict target %+v", upsert.Columns)
	}
	if len(upsert.Where.Exprs) != 1 {
		t.Fatalf("expected one update guard, got %d", len(upsert.Where.Exprs))
	}
	guard, ok := upsert.Where.Exprs[0].(clause.Expr)
	if !ok || !strings.Contains(guard.SQL, "finscoop.stories.article_count <= excluded.article_count") {
		t.Fatalf("unexpected update guard %+v", upsert.Where.Exprs[0])
	}
}

func TestStoryStoreRequiresPool(t *testing.T) {
	t.Parallel()

	store := NewStoryStore(nil, zerolog.Nop())
	if err := store.SaveStory(context.Background(), sampleStory()); err == nil {
		t.Fatal("expected save without pool to fail")
	}
	if _, err := store.LoadStories(context.Background()); err == nil {
		t.Fatal("expected load without pool to fail")
	}
}

func TestResolveGormLogLevel(t *testing.T) {
	t.Parallel()

	if got := resolveGormLogLevel("debug", "production"); got != logger.Info {
		t.Fatalf("expected info level for debug, got %v", got)
	}
	if got := resolveGormLogLevel("error", "local"); got != logger.Error {
		t.Fatalf("expected error level, got %v", got)
	}
}
