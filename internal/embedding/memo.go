package embedding

import (
	"context"
	"fmt"

	lru "github.com/hashicorp/golang-lru"
)

const DefaultMemoSize = 4096

// Memo caches vectors by input text so identical text always yields the same
// vector for the lifetime of the process, even if the upstream model drifts.
type Memo struct {
	next  Provider
	cache *lru.Cache
}

func NewMemo(next Provider, size int) (*Memo, error) {
	if next == nil {
		return nil, fmt.Errorf("memo requires an embedding provider")
	}
	if size <= 0 {
		size = DefaultMemoSize
	}
	cache, err := lru.New(size)
	if err != nil {
		return nil, fmt.Errorf("create embedding memo: %w", err)
	}
	return &Memo{next: next, cache: cache}, nil
}

func (m *Memo) Embed(ctx context.Context, text string) ([]float64, error) {
	if cached, ok := m.cache.Get(text); ok {
		return append([]float64(nil), cached.([]float64)...), nil
	}
	vector, err := m.next.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	m.cache.Add(text, append([]float64(nil), vector...))
	return vector, nil
}

func (m *Memo) Len() int {
	return m.cache.Len()
}
