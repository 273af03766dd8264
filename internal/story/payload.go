package story

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"horse.fit/finscoop/internal/news"
)

const PayloadVersion = 1

// Payload is the persisted form of a UniqueStory.
type Payload struct {
	Version int              `json:"payload_version"`
	Story   news.UniqueStory `json:"story"`
}

func Encode(story news.UniqueStory) ([]byte, error) {
	raw, err := json.Marshal(Payload{Version: PayloadVersion, Story: story})
	if err != nil {
		return nil, fmt.Errorf("encode story %s: %w", story.ID, err)
	}
	return raw, nil
}

func Decode(raw []byte) (news.UniqueStory, error) {
	var payload Payload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return news.UniqueStory{}, fmt.Errorf("decode story payload: %w", err)
	}
	if payload.Version != PayloadVersion {
		return news.UniqueStory{}, fmt.Errorf("unsupported story payload version %d", payload.Version)
	}
	if payload.Story.Duplicates == nil {
		payload.Story.Duplicates = []news.Article{}
	}
	return payload.Story, nil
}

// Store is the durable side of the aggregator.
type Store interface {
	SaveStory(ctx context.Context, story news.UniqueStory) error
	LoadStories(ctx context.Context) ([]news.UniqueStory, error)
}

// MemoryStore keeps encoded payloads in memory, so the payload round trip
// runs without a database. Like the database store it ignores a snapshot
// carrying fewer articles than the one already saved.
type MemoryStore struct {
	mu       sync.Mutex
	order    []string
	payloads map[string][]byte
	counts   map[string]int
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{payloads: make(map[string][]byte), counts: make(map[string]int)}
}

func (m *MemoryStore) SaveStory(ctx context.Context, story news.UniqueStory) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	raw, err := Encode(story)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	count := len(story.ArticleIDs())
	if _, exists := m.payloads[story.ID]; !exists {
		m.order = append(m.order, story.ID)
	} else if count < m.counts[story.ID] {
		return nil
	}
	m.payloads[story.ID] = raw
	m.counts[story.ID] = count
	return nil
}

func (m *MemoryStore) LoadStories(ctx context.Context) ([]news.UniqueStory, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	stories := make([]news.UniqueStory, 0, len(m.order))
	for _, id := range m.order {
		story, err := Decode(m.payloads[id])
		if err != nil {
			return nil, fmt.Errorf("story %s: %w", id, err)
		}
		stories = append(stories, story)
	}
	return stories, nil
}

// RestoreFrom loads every persisted story into the aggregator and returns them
// so callers can rebuild the similarity index.
func (a *Aggregator) RestoreFrom(ctx context.Context, store Store) ([]news.UniqueStory, error) {
	stories, err := store.LoadStories(ctx)
	if err != nil {
		return nil, fmt.Errorf("load persisted stories: %w", err)
	}
	for _, story := range stories {
		if err := a.Restore(story); err != nil {
			return nil, err
		}
	}
	if err := a.Verify(); err != nil {
		return nil, err
	}
	a.logger.Info().Int("stories", len(stories)).Msg("restored persisted stories")
	return stories, nil
}
