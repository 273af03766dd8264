package pipeline

import (
	"errors"

	"horse.fit/finscoop/internal/dedup"
	"horse.fit/finscoop/internal/extract"
	"horse.fit/finscoop/internal/news"
)

var (
	// ErrPipelineHalted is returned for every submission after a fatal
	// consistency error.
	ErrPipelineHalted = errors.New("pipeline halted after a fatal consistency error")

	ErrArticleInFlight = errors.New("article is already being processed")
)

type Stage string

const (
	StageIngested     Stage = "ingested"
	StageEmbedded     Stage = "embedded"
	StageExtracted    Stage = "extracted"
	StageScored       Stage = "scored"
	StageDeduplicated Stage = "deduplicated"
	StageAggregated   Stage = "aggregated"
	StageRejected     Stage = "rejected"
)

// State is owned by the one call processing an article and handed from stage
// to stage. Nothing else holds a reference to it.
type State struct {
	Article    news.Article
	Stage      Stage
	Decision   dedup.Decision
	Extraction extract.Result
	StoryID    string
	Replayed   bool
}

// Report is the per-article line of a batch result.
type Report struct {
	ArticleID      string              `json:"article_id"`
	Title          string              `json:"title"`
	Success        bool                `json:"success"`
	Stage          Stage               `json:"stage"`
	Decision       dedup.DecisionKind  `json:"decision,omitempty"`
	DuplicateOf    string              `json:"duplicate_of,omitempty"`
	Similarity     float64             `json:"similarity"`
	StoryID        string              `json:"story_id,omitempty"`
	Strategy       string              `json:"strategy,omitempty"`
	FallbackReason extract.OutcomeKind `json:"fallback_reason,omitempty"`
	Entities       int                 `json:"entities"`
	Impacts        int                 `json:"stock_impacts"`
	Replayed       bool                `json:"replayed,omitempty"`
	Error          string              `json:"error,omitempty"`
}

func NewReport(state State, err error) Report {
	report := Report{
		ArticleID:      state.Article.ID,
		Title:          state.Article.Title,
		Success:        err == nil,
		Stage:          state.Stage,
		Decision:       state.Decision.Kind,
		DuplicateOf:    state.Decision.DuplicateOf,
		Similarity:     state.Decision.Similarity,
		StoryID:        state.StoryID,
		Strategy:       string(state.Extraction.Strategy),
		FallbackReason: state.Extraction.FallbackReason,
		Entities:       len(state.Article.Entities),
		Impacts:        len(state.Article.Impacts),
		Replayed:       state.Replayed,
	}
	if err != nil {
		report.Error = err.Error()
	}
	return report
}

// BatchResult lists one report per submitted article, in submission order.
type BatchResult struct {
	Reports   []Report `json:"results"`
	Processed int      `json:"processed"`
	Failed    int      `json:"failed"`
}
