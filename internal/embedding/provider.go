package embedding

import (
	"context"
	"fmt"
	"math"
	"strings"

	"horse.fit/finscoop/internal/news"
)

// bodyPrefixRunes bounds how much of the body contributes to the embedding.
const bodyPrefixRunes = 500

// Provider turns text into a fixed-length vector.
type Provider interface {
	Embed(ctx context.Context, text string) ([]float64, error)
}

type ProviderFunc func(ctx context.Context, text string) ([]float64, error)

func (f ProviderFunc) Embed(ctx context.Context, text string) ([]float64, error) {
	return f(ctx, text)
}

// Input builds the embedding text for an article. The title is repeated so it
// outweighs the body prefix.
func Input(title, body string) string {
	title = strings.TrimSpace(title)
	body = strings.TrimSpace(body)
	if runes := []rune(body); len(runes) > bodyPrefixRunes {
		body = string(runes[:bodyPrefixRunes])
	}
	return strings.TrimSpace(title + " " + title + " " + body)
}

// EmbedArticle embeds an article and validates the vector. Every failure wraps
// news.ErrEmbeddingFailure.
func EmbedArticle(ctx context.Context, provider Provider, article news.Article, dimensions int) ([]float64, error) {
	if provider == nil {
		return nil, fmt.Errorf("%w: no embedding provider configured", news.ErrEmbeddingFailure)
	}
	vector, err := provider.Embed(ctx, Input(article.Title, article.Body))
	if err != nil {
		return nil, fmt.Errorf("%w: article_id=%s: %v", news.ErrEmbeddingFailure, article.ID, err)
	}
	if err := Validate(vector, dimensions); err != nil {
		return nil, fmt.Errorf("%w: article_id=%s: %v", news.ErrEmbeddingFailure, article.ID, err)
	}
	return vector, nil
}

func Validate(values []float64, dimensions int) error {
	if len(values) != dimensions {
		return fmt.Errorf("expected %d dimensions, got %d", dimensions, len(values))
	}
	var norm float64
	for i, value := range values {
		if math.IsNaN(value) || math.IsInf(value, 0) {
			return fmt.Errorf("vector has non-finite value at index %d", i)
		}
		norm += value * value
	}
	if norm == 0 {
		return fmt.Errorf("vector has zero magnitude")
	}
	return nil
}
