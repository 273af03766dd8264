package extract

import (
	"context"

	"horse.fit/finscoop/internal/news"
)

type OutcomeKind string

const (
	OutcomeOK          OutcomeKind = "ok"
	OutcomeTimedOut    OutcomeKind = "timed_out"
	OutcomeUnavailable OutcomeKind = "unavailable"
	OutcomeMalformed   OutcomeKind = "malformed"
)

// Outcome is the explicit result of one extraction attempt. Err carries the
// cause for any kind other than OutcomeOK.
type Outcome struct {
	Kind     OutcomeKind
	Entities []news.Entity
	Err      error
}

func Ok(entities []news.Entity) Outcome {
	return Outcome{Kind: OutcomeOK, Entities: entities}
}

func Failed(kind OutcomeKind, err error) Outcome {
	return Outcome{Kind: kind, Err: err}
}

// TextExtractor turns article text into typed entities.
type TextExtractor interface {
	Source() news.ExtractionSource
	Extract(ctx context.Context, title, body string) Outcome
}

// NeedsFallback is the selection policy: anything but a successful outcome
// hands over to the fallback strategy.
func NeedsFallback(outcome Outcome) bool {
	return outcome.Kind != OutcomeOK
}
