package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"horse.fit/finscoop/internal/dedup"
	"horse.fit/finscoop/internal/embedding"
	"horse.fit/finscoop/internal/extract"
	"horse.fit/finscoop/internal/impact"
	"horse.fit/finscoop/internal/news"
	"horse.fit/finscoop/internal/story"
)

const DefaultWorkers = 4

type Options struct {
	Dimensions int
	Workers    int
	// Store receives every story after it changes. Nil keeps stories in
	// memory only.
	Store story.Store
}

// Orchestrator runs articles through embed, extract, score, dedup and
// aggregate. Embedding and extraction run without shared locks; the dedup
// decision and the story merge serialize on their own components.
type Orchestrator struct {
	embedder  embedding.Provider
	dims      int
	dedup     *dedup.Engine
	extractor *extract.Chain
	mapper    *impact.Mapper
	stories   *story.Aggregator
	store     story.Store
	workers   int
	logger    zerolog.Logger

	inflightMu sync.Mutex
	inflight   map[string]struct{}

	statsMu    sync.Mutex
	strategies map[news.ExtractionSource]int
	fallbacks  map[extract.OutcomeKind]int
	rejected   int
	haltErr    error
}

func New(
	embedder embedding.Provider,
	dedupEngine *dedup.Engine,
	extractor *extract.Chain,
	mapper *impact.Mapper,
	stories *story.Aggregator,
	logger zerolog.Logger,
	opts Options,
) (*Orchestrator, error) {
	if embedder == nil {
		return nil, fmt.Errorf("pipeline requires an embedding provider")
	}
	if dedupEngine == nil || extractor == nil || mapper == nil || stories == nil {
		return nil, fmt.Errorf("pipeline requires dedup, extraction, impact and story components")
	}
	dims := opts.Dimensions
	if dims <= 0 {
		dims = news.EmbeddingDimensions
	}
	workers := opts.Workers
	if workers <= 0 {
		workers = DefaultWorkers
	}
	return &Orchestrator{
		embedder:   embedder,
		dims:       dims,
		dedup:      dedupEngine,
		extractor:  extractor,
		mapper:     mapper,
		stories:    stories,
		store:      opts.Store,
		workers:    workers,
		logger:     logger,
		inflight:   make(map[string]struct{}),
		strategies: make(map[news.ExtractionSource]int),
		fallbacks:  make(map[extract.OutcomeKind]int),
	}, nil
}

func (o *Orchestrator) Stories() *story.Aggregator {
	return o.stories
}

// Halted returns the fatal error that stopped the pipeline, if any.
func (o *Orchestrator) Halted() error {
	o.statsMu.Lock()
	defer o.statsMu.Unlock()
	return o.haltErr
}

// Process runs one article through every stage. Resubmitting an article that
// already belongs to a story returns its existing state without side effects.
func (o *Orchestrator) Process(ctx context.Context, article news.Article) (State, error) {
	state := State{Article: article, Stage: StageIngested}
	if err := o.admit(article); err != nil {
		return o.reject(state, err)
	}
	defer o.release(article.ID)

	if replayed, ok := o.replay(article); ok {
		return replayed, nil
	}

	state, err := o.prepare(ctx, state)
	if err != nil {
		return o.reject(state, err)
	}
	return o.commit(ctx, state)
}

// ProcessBatch embeds and extracts articles in parallel, then takes dedup and
// story decisions one at a time in submission order, so the earlier of two
// similar articles in a batch always becomes the primary. One failing article
// never fails the batch.
func (o *Orchestrator) ProcessBatch(ctx context.Context, articles []news.Article) BatchResult {
	states := make([]State, len(articles))
	errs := make([]error, len(articles))
	admitted := make([]bool, len(articles))
	firstSeen := make(map[string]int, len(articles))

	var group errgroup.Group
	group.SetLimit(o.workers)
	for i, article := range articles {
		states[i] = State{Article: article, Stage: StageIngested}
		if _, repeated := firstSeen[article.ID]; repeated && article.ID != "" {
			continue
		}
		firstSeen[article.ID] = i

		if err := o.admit(article); err != nil {
			errs[i] = err
			continue
		}
		admitted[i] = true
		if _, ok := o.stories.OwnerOf(article.ID); ok {
			continue
		}

		group.Go(func() error {
			states[i], errs[i] = o.prepare(ctx, states[i])
			return nil
		})
	}
	_ = group.Wait()

	result := BatchResult{Reports: make([]Report, len(articles))}
	for i := range articles {
		state, err := o.settle(ctx, states[i], errs[i])
		result.Reports[i] = NewReport(state, err)
		result.Processed++
		if err != nil {
			result.Failed++
		}
	}
	for i, article := range articles {
		if admitted[i] {
			o.release(article.ID)
		}
	}
	return result
}

func (o *Orchestrator) settle(ctx context.Context, state State, prepErr error) (State, error) {
	if replayed, ok := o.replay(state.Article); ok {
		return replayed, nil
	}
	if prepErr != nil {
		return o.reject(state, prepErr)
	}
	if state.Stage != StageScored {
		// a repeat of an id earlier in the batch whose first copy failed
		return o.reject(state, fmt.Errorf("%w: article_id=%s repeated in batch", news.ErrInvalidArticle, state.Article.ID))
	}
	// an earlier article of the same batch may have halted the pipeline
	if err := o.Halted(); err != nil {
		return o.reject(state, fmt.Errorf("%w: %v", ErrPipelineHalted, err))
	}
	return o.commit(ctx, state)
}

func (o *Orchestrator) admit(article news.Article) error {
	if err := o.Halted(); err != nil {
		return fmt.Errorf("%w: %v", ErrPipelineHalted, err)
	}
	if strings.TrimSpace(article.ID) == "" {
		return fmt.Errorf("%w: article id is required", news.ErrInvalidArticle)
	}
	if strings.TrimSpace(article.Title) == "" {
		return fmt.Errorf("%w: article_id=%s has no title", news.ErrInvalidArticle, article.ID)
	}

	o.inflightMu.Lock()
	defer o.inflightMu.Unlock()
	if _, busy := o.inflight[article.ID]; busy {
		return fmt.Errorf("%w: article_id=%s", ErrArticleInFlight, article.ID)
	}
	o.inflight[article.ID] = struct{}{}
	return nil
}

func (o *Orchestrator) release(articleID string) {
	o.inflightMu.Lock()
	delete(o.inflight, articleID)
	o.inflightMu.Unlock()
}

func (o *Orchestrator) replay(article news.Article) (State, bool) {
	storyID, ok := o.stories.OwnerOf(article.ID)
	if !ok {
		return State{}, false
	}
	existing, err := o.stories.Get(storyID)
	if err != nil {
		// shell still waiting for its primary: the article is a primary that has
		// not been aggregated yet, so it is not a replay
		return State{}, false
	}

	state := State{Stage: StageAggregated, StoryID: storyID, Replayed: true}
	if existing.Primary.ID == article.ID {
		state.Article = existing.Primary.Clone()
		state.Decision = dedup.Decision{Kind: dedup.DecisionUnique, Band: dedup.BandUnique}
		return state, true
	}
	for _, dup := range existing.Duplicates {
		if dup.ID == article.ID {
			state.Article = dup.Clone()
			state.Decision = dedup.Decision{Kind: dedup.DecisionDuplicate, DuplicateOf: dup.DuplicateOf}
			return state, true
		}
	}
	return State{}, false
}

// prepare runs the stages that touch no shared state.
func (o *Orchestrator) prepare(ctx context.Context, state State) (State, error) {
	vector, err := embedding.EmbedArticle(ctx, o.embedder, state.Article, o.dims)
	if err != nil {
		return state, err
	}
	state.Article.Embedding = vector
	state.Stage = StageEmbedded

	state.Extraction = o.extractor.Extract(ctx, state.Article.Title, state.Article.Body)
	state.Article.Entities = state.Extraction.Entities
	state.Stage = StageExtracted

	state.Article.Impacts = o.mapper.Map(state.Article.Entities)
	state.Stage = StageScored
	return state, nil
}

func (o *Orchestrator) commit(ctx context.Context, state State) (State, error) {
	decision, err := o.dedup.Decide(state.Article.ID, state.Article.Embedding)
	if err != nil {
		return o.reject(state, err)
	}
	state.Decision = decision
	state.Article.DuplicateOf = decision.DuplicateOf
	state.Stage = StageDeduplicated

	var persist story.PersistFunc
	if o.store != nil {
		persist = func(merged news.UniqueStory) error {
			return o.store.SaveStory(ctx, merged)
		}
	}
	aggregated, err := o.stories.AggregateWith(state.Article, persist)
	persistErr := err
	if err != nil && !errors.Is(err, story.ErrPersist) {
		return o.reject(state, err)
	}
	state.StoryID = aggregated.ID
	state.Stage = StageAggregated
	o.countExtraction(state.Extraction)

	o.logger.Info().
		Str("article_id", state.Article.ID).
		Str("story_id", state.StoryID).
		Str("decision", string(decision.Kind)).
		Str("duplicate_of", decision.DuplicateOf).
		Float64("similarity", decision.Similarity).
		Str("strategy", string(state.Extraction.Strategy)).
		Int("stock_impacts", len(state.Article.Impacts)).
		Msg("article processed")

	if persistErr != nil {
		o.logger.Error().Err(persistErr).Str("story_id", aggregated.ID).Msg("persist story failed")
		return state, persistErr
	}
	return state, nil
}

func (o *Orchestrator) reject(state State, err error) (State, error) {
	failedAt := state.Stage
	state.Stage = StageRejected

	o.statsMu.Lock()
	o.rejected++
	if news.IsFatal(err) && o.haltErr == nil {
		o.haltErr = err
	}
	o.statsMu.Unlock()

	event := o.logger.Warn()
	if news.IsFatal(err) {
		event = o.logger.Error()
	}
	event.Err(err).
		Str("article_id", state.Article.ID).
		Str("stage", string(failedAt)).
		Msg("article rejected")

	if news.IsFatal(err) {
		return state, fmt.Errorf("%w: %w", ErrPipelineHalted, err)
	}
	return state, err
}

func (o *Orchestrator) countExtraction(result extract.Result) {
	o.statsMu.Lock()
	defer o.statsMu.Unlock()
	o.strategies[result.Strategy]++
	if result.FallbackReason != "" {
		o.fallbacks[result.FallbackReason]++
	}
}

// Restore reloads persisted stories and puts every primary embedding back in
// the similarity index. Primaries stored without an embedding are embedded
// again.
func (o *Orchestrator) Restore(ctx context.Context) (int, error) {
	if o.store == nil {
		return 0, nil
	}
	stories, err := o.stories.RestoreFrom(ctx, o.store)
	if err != nil {
		return 0, err
	}

	for _, restored := range stories {
		primary := restored.Primary
		vector := primary.Embedding
		if embedding.Validate(vector, o.dims) != nil {
			vector, err = embedding.EmbedArticle(ctx, o.embedder, primary, o.dims)
			if err != nil {
				return 0, fmt.Errorf("re-embed primary of story %s: %w", restored.ID, err)
			}
		}
		if err := o.dedup.Restore(primary.ID, vector); err != nil {
			if errors.Is(err, news.ErrIndexRace) {
				return 0, fmt.Errorf("%w: primary %s indexed twice", news.ErrInconsistentState, primary.ID)
			}
			return 0, fmt.Errorf("restore embedding for story %s: %w", restored.ID, err)
		}
	}
	return len(stories), nil
}

// Stats summarizes every stage.
type Stats struct {
	Dedup      dedup.Stats                   `json:"deduplication"`
	Stories    story.Stats                   `json:"stories"`
	Strategies map[news.ExtractionSource]int `json:"extraction_strategies"`
	Fallbacks  map[extract.OutcomeKind]int   `json:"extraction_fallbacks"`
	Rejected   int                           `json:"rejected_articles"`
	Halted     bool                          `json:"halted"`
}

func (o *Orchestrator) Stats() Stats {
	o.statsMu.Lock()
	strategies := make(map[news.ExtractionSource]int, len(o.strategies))
	for key, count := range o.strategies {
		strategies[key] = count
	}
	fallbacks := make(map[extract.OutcomeKind]int, len(o.fallbacks))
	for key, count := range o.fallbacks {
		fallbacks[key] = count
	}
	rejected := o.rejected
	halted := o.haltErr != nil
	o.statsMu.Unlock()

	return Stats{
		Dedup:      o.dedup.Stats(),
		Stories:    o.stories.Stats(),
		Strategies: strategies,
		Fallbacks:  fallbacks,
		Rejected:   rejected,
		Halted:     halted,
	}
}
