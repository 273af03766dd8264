package db

import (
	"encoding/json"
	"time"
)

// StoryRecord maps finscoop.stories. Payload holds the full UniqueStory; the
// other columns exist for ordering and inspection.
type StoryRecord struct {
	StoryID            string          `gorm:"column:story_id;type:text;primaryKey"`
	PrimaryArticleID   string          `gorm:"column:primary_article_id;type:text;not null;uniqueIndex"`
	PayloadVersion     int             `gorm:"column:payload_version;type:integer;not null"`
	Payload            json.RawMessage `gorm:"column:payload;type:jsonb;not null"`
	ArticleCount       int             `gorm:"column:article_count;type:integer;not null;default:1"`
	ConfidenceScore    float64         `gorm:"column:confidence_score;type:double precision;not null;default:0"`
	PrimaryPublishedAt time.Time       `gorm:"column:primary_published_at;type:timestamptz;not null"`
	CreatedAt          time.Time       `gorm:"column:created_at;type:timestamptz;not null;default:now()"`
	UpdatedAt          time.Time       `gorm:"column:updated_at;type:timestamptz;not null;default:now()"`
}

func (StoryRecord) TableName() string { return "finscoop.stories" }

// StoryArticle maps finscoop.story_articles: one row per article, so an
// article can never belong to two stories.
type StoryArticle struct {
	ArticleID   string    `gorm:"column:article_id;type:text;primaryKey"`
	StoryID     string    `gorm:"column:story_id;type:text;not null"`
	IsPrimary   bool      `gorm:"column:is_primary;type:boolean;not null;default:false"`
	DuplicateOf *string   `gorm:"column:duplicate_of;type:text"`
	Source      string    `gorm:"column:source;type:text;not null"`
	PublishedAt time.Time `gorm:"column:published_at;type:timestamptz;not null"`
	CreatedAt   time.Time `gorm:"column:created_at;type:timestamptz;not null;default:now()"`
}

func (StoryArticle) TableName() string { return "finscoop.story_articles" }

// StoryImpact maps finscoop.story_impacts, the merged impact list of a story.
type StoryImpact struct {
	StoryID     string  `gorm:"column:story_id;type:text;primaryKey"`
	Symbol      string  `gorm:"column:symbol;type:text;primaryKey"`
	CompanyName string  `gorm:"column:company_name;type:text;not null"`
	Confidence  float64 `gorm:"column:confidence;type:double precision;not null"`
	ImpactType  string  `gorm:"column:impact_type;type:text;not null"`
	Reasoning   string  `gorm:"column:reasoning;type:text;not null;default:''"`
}

func (StoryImpact) TableName() string { return "finscoop.story_impacts" }

func autoMigrateModels() []any {
	return []any{
		&StoryRecord{},
		&StoryArticle{},
		&StoryImpact{},
	}
}
