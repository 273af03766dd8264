package extract

import (
	"context"

	"github.com/rs/zerolog"

	"horse.fit/finscoop/internal/news"
)

// Result is what callers see: entities plus which strategy produced them.
// Fallback failures are visible here for logging only.
type Result struct {
	Entities       []news.Entity         `json:"entities"`
	Strategy       news.ExtractionSource `json:"strategy"`
	FallbackReason OutcomeKind           `json:"fallback_reason,omitempty"`
}

// Chain tries the primary extractor and hands over to the fallback whenever
// NeedsFallback says so. A nil primary always falls back.
type Chain struct {
	primary  TextExtractor
	fallback TextExtractor
	logger   zerolog.Logger
}

func NewChain(primary TextExtractor, fallback TextExtractor, logger zerolog.Logger) *Chain {
	if fallback == nil {
		fallback = NewRuleExtractor(nil)
	}
	return &Chain{primary: primary, fallback: fallback, logger: logger}
}

func (c *Chain) Extract(ctx context.Context, title, body string) Result {
	if c.primary == nil {
		return c.runFallback(ctx, title, body, OutcomeUnavailable)
	}

	outcome := c.primary.Extract(ctx, title, body)
	if !NeedsFallback(outcome) {
		return Result{
			Entities: news.MergeEntities(outcome.Entities),
			Strategy: c.primary.Source(),
		}
	}

	c.logger.Warn().
		Err(outcome.Err).
		Str("strategy", string(c.primary.Source())).
		Str("fallback_reason", string(outcome.Kind)).
		Msg("primary entity extraction failed, using fallback")
	return c.runFallback(ctx, title, body, outcome.Kind)
}

func (c *Chain) runFallback(ctx context.Context, title, body string, reason OutcomeKind) Result {
	outcome := c.fallback.Extract(ctx, title, body)
	if NeedsFallback(outcome) {
		// only reachable with a custom fallback; rule extraction never fails
		c.logger.Error().
			Err(outcome.Err).
			Str("strategy", string(c.fallback.Source())).
			Msg("fallback entity extraction failed")
		return Result{Entities: []news.Entity{}, Strategy: c.fallback.Source(), FallbackReason: reason}
	}
	return Result{
		Entities:       news.MergeEntities(outcome.Entities),
		Strategy:       c.fallback.Source(),
		FallbackReason: reason,
	}
}
