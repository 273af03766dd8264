package db

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"horse.fit/finscoop/internal/news"
	"horse.fit/finscoop/internal/story"
)

// StoryStore persists UniqueStory payloads in Postgres.
type StoryStore struct {
	pool   *Pool
	logger zerolog.Logger
}

func NewStoryStore(pool *Pool, logger zerolog.Logger) *StoryStore {
	return &StoryStore{pool: pool, logger: logger}
}

type storyRows struct {
	story    StoryRecord
	articles []StoryArticle
	impacts  []StoryImpact
}

func rowsFor(s news.UniqueStory) (storyRows, error) {
	payload, err := story.Encode(s)
	if err != nil {
		return storyRows{}, err
	}

	rows := storyRows{
		story: StoryRecord{
			StoryID:            s.ID,
			PrimaryArticleID:   s.Primary.ID,
			PayloadVersion:     story.PayloadVersion,
			Payload:            payload,
			ArticleCount:       1 + len(s.Duplicates),
			ConfidenceScore:    s.ConfidenceScore,
			PrimaryPublishedAt: s.Primary.PublishedAt.UTC(),
		},
		articles: make([]StoryArticle, 0, 1+len(s.Duplicates)),
		impacts:  make([]StoryImpact, 0, len(s.Impacts)),
	}

	rows.articles = append(rows.articles, StoryArticle{
		ArticleID:   s.Primary.ID,
		StoryID:     s.ID,
		IsPrimary:   true,
		Source:      s.Primary.Source,
		PublishedAt: s.Primary.PublishedAt.UTC(),
	})
	for _, dup := range s.Duplicates {
		duplicateOf := dup.DuplicateOf
		rows.articles = append(rows.articles, StoryArticle{
			ArticleID:   dup.ID,
			StoryID:     s.ID,
			DuplicateOf: &duplicateOf,
			Source:      dup.Source,
			PublishedAt: dup.PublishedAt.UTC(),
		})
	}
	for _, impact := range s.Impacts {
		rows.impacts = append(rows.impacts, StoryImpact{
			StoryID:     s.ID,
			Symbol:      impact.Symbol,
			CompanyName: impact.CompanyName,
			Confidence:  impact.Confidence,
			ImpactType:  string(impact.Kind),
			Reasoning:   impact.Reasoning,
		})
	}
	return rows, nil
}

// SaveStory upserts the story payload, claims ownership of its articles and
// replaces its impact rows in one transaction. An article already owned by a
// different story aborts with news.ErrInconsistentState.
func (s *StoryStore) SaveStory(ctx context.Context, st news.UniqueStory) error {
	if s == nil || s.pool == nil || s.pool.gdb == nil {
		return fmt.Errorf("story store is not initialized")
	}
	if st.ID == "" || st.Primary.ID == "" {
		return fmt.Errorf("%w: story needs an id and a primary", news.ErrInvalidArticle)
	}

	rows, err := rowsFor(st)
	if err != nil {
		return err
	}

	return s.pool.gdb.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		upsert := tx.Clauses(storyUpsert()).Create(&rows.story)
		if upsert.Error != nil {
			return fmt.Errorf("upsert story %s: %w", st.ID, upsert.Error)
		}
		if upsert.RowsAffected == 0 {
			s.logger.Debug().
				Str("story_id", st.ID).
				Int("articles", len(rows.articles)).
				Msg("stale story snapshot skipped")
			return nil
		}

		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&rows.articles).Error; err != nil {
			return fmt.Errorf("record articles of story %s: %w", st.ID, err)
		}

		ids := st.ArticleIDs()
		var foreign int64
		if err := tx.Model(&StoryArticle{}).
			Where("article_id IN ? AND story_id <> ?", ids, st.ID).
			Count(&foreign).Error; err != nil {
			return fmt.Errorf("check article ownership of story %s: %w", st.ID, err)
		}
		if foreign > 0 {
			return fmt.Errorf("%w: %d article(s) of story %s already persisted under another story", news.ErrInconsistentState, foreign, st.ID)
		}

		if err := tx.Where("story_id = ?", st.ID).Delete(&StoryImpact{}).Error; err != nil {
			return fmt.Errorf("clear impacts of story %s: %w", st.ID, err)
		}
		if len(rows.impacts) > 0 {
			if err := tx.Create(&rows.impacts).Error; err != nil {
				return fmt.Errorf("write impacts of story %s: %w", st.ID, err)
			}
		}

		s.logger.Debug().
			Str("story_id", st.ID).
			Int("articles", len(rows.articles)).
			Int("stock_impacts", len(rows.impacts)).
			Msg("story persisted")
		return nil
	})
}

// storyUpsert never lets a snapshot with fewer articles replace a newer one.
func storyUpsert() clause.OnConflict {
	return clause.OnConflict{
		Columns: []clause.Column{{Name: "story_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"payload_version", "payload", "article_count", "confidence_score", "primary_published_at", "updated_at",
		}),
		Where: clause.Where{Exprs: []clause.Expression{
			clause.Expr{SQL: "finscoop.stories.article_count <= excluded.article_count"},
		}},
	}
}

// LoadStories returns every persisted story, oldest primary first, so that
// restoring them replays the original acceptance order.
func (s *StoryStore) LoadStories(ctx context.Context) ([]news.UniqueStory, error) {
	if s == nil || s.pool == nil || s.pool.gdb == nil {
		return nil, fmt.Errorf("story store is not initialized")
	}

	var records []StoryRecord
	if err := s.pool.gdb.WithContext(ctx).
		Order("primary_published_at ASC").
		Order("story_id ASC").
		Find(&records).Error; err != nil {
		return nil, fmt.Errorf("load stories: %w", err)
	}

	stories := make([]news.UniqueStory, 0, len(records))
	for _, record := range records {
		decoded, err := story.Decode(record.Payload)
		if err != nil {
			return nil, fmt.Errorf("story %s: %w", record.StoryID, err)
		}
		if decoded.ID != record.StoryID {
			return nil, fmt.Errorf("%w: payload of story %s carries id %s", news.ErrInconsistentState, record.StoryID, decoded.ID)
		}
		stories = append(stories, decoded)
	}
	return stories, nil
}
