package news

import "errors"

var (
	// ErrEmbeddingFailure rejects the affected article; other articles in a batch continue.
	ErrEmbeddingFailure = errors.New("embedding failure")
	// ErrExtractionUnavailable is absorbed by the rule fallback and never returned by the pipeline.
	ErrExtractionUnavailable = errors.New("extraction unavailable")
	// ErrIndexRace means two unique decisions were taken for one article id. Fatal.
	ErrIndexRace = errors.New("similarity index race detected")
	// ErrInconsistentState means an article is owned by two stories. Fatal.
	ErrInconsistentState = errors.New("story set is internally inconsistent")
	ErrInvalidArticle    = errors.New("invalid article")
	ErrStoryNotFound     = errors.New("story not found")
)

// IsFatal reports whether err signals a locking or consistency bug.
func IsFatal(err error) bool {
	return errors.Is(err, ErrIndexRace) || errors.Is(err, ErrInconsistentState)
}
