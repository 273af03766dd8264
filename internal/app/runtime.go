package app

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"horse.fit/finscoop/internal/cli"
	"horse.fit/finscoop/internal/config"
	"horse.fit/finscoop/internal/db"
	"horse.fit/finscoop/internal/dedup"
	"horse.fit/finscoop/internal/embedding"
	"horse.fit/finscoop/internal/extract"
	"horse.fit/finscoop/internal/impact"
	"horse.fit/finscoop/internal/ingest"
	"horse.fit/finscoop/internal/llm"
	"horse.fit/finscoop/internal/logging"
	"horse.fit/finscoop/internal/pipeline"
	"horse.fit/finscoop/internal/query"
	"horse.fit/finscoop/internal/refdata"
	"horse.fit/finscoop/internal/story"
)

// components holds every component a command may need, built from one config.
type components struct {
	logger   zerolog.Logger
	pipeline *pipeline.Orchestrator
	ingest   *ingest.Service
	query    *query.Engine
	pool     *db.Pool
	closers  []func() error
}

func loadConfig(envLoader *cli.EnvLoader) (*config.Config, zerolog.Logger, error) {
	if envLoader != nil {
		if _, err := envLoader.Load(); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
		}
	}

	cfg, err := config.Load()
	if err != nil {
		return nil, zerolog.Nop(), fmt.Errorf("failed to load config: %w", err)
	}
	logger, err := logging.New(cfg.Environment, cfg.LogLevel)
	if err != nil {
		return nil, zerolog.Nop(), fmt.Errorf("failed to initialize logger: %w", err)
	}
	return cfg, logger, nil
}

func newEmbeddingProvider(cfg *config.Config) (embedding.Provider, error) {
	var upstream embedding.Provider
	switch strings.ToLower(strings.TrimSpace(cfg.EmbeddingProvider)) {
	case "openai":
		upstream = embedding.NewOpenAIProvider(cfg.OpenAIAPIKey, cfg.EmbeddingModel, cfg.EmbeddingEndpoint, cfg.EmbeddingDimensions)
	default:
		upstream = embedding.NewHTTPProvider(embedding.HTTPOptions{
			Endpoint:       cfg.EmbeddingEndpoint,
			ModelName:      cfg.EmbeddingModel,
			RequestTimeout: cfg.EmbeddingTimeout,
		})
	}
	if cfg.EmbeddingCacheSize == 0 {
		return upstream, nil
	}
	return embedding.NewMemo(upstream, cfg.EmbeddingCacheSize)
}

// buildRuntime wires the pipeline from config and restores persisted stories
// when a database is configured.
func buildRuntime(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*components, error) {
	rt := &components{logger: logger}

	catalog, err := refdata.Load(cfg.ReferenceDataPath)
	if err != nil {
		return nil, err
	}

	embedder, err := newEmbeddingProvider(cfg)
	if err != nil {
		return nil, err
	}

	client, err := llm.New(ctx, llm.Config{
		Provider: cfg.LLMProvider,
		APIKey:   cfg.LLMAPIKey,
		Model:    cfg.LLMModel,
		BaseURL:  cfg.LLMBaseURL,
	})
	if err != nil {
		return nil, fmt.Errorf("build llm client: %w", err)
	}
	if closer, ok := client.(interface{ Close() error }); ok {
		rt.closers = append(rt.closers, closer.Close)
	}
	var primary extract.TextExtractor
	if client != nil {
		primary = extract.NewLLMExtractor(client, catalog, cfg.LLMTimeout)
	}
	chain := extract.NewChain(primary, extract.NewRuleExtractor(catalog), logger)

	engine, err := dedup.NewEngine(dedup.NewIndex(cfg.EmbeddingDimensions), cfg.DuplicateThreshold, logger)
	if err != nil {
		rt.Close()
		return nil, err
	}

	aggregator := story.NewAggregator(logger)
	var store story.Store
	if cfg.HasDatabase() {
		dbCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		pool, err := db.NewPool(dbCtx, cfg)
		cancel()
		if err != nil {
			rt.Close()
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		rt.pool = pool
		rt.closers = append(rt.closers, pool.Close)
		store = db.NewStoryStore(pool, logger)
	}

	orchestrator, err := pipeline.New(embedder, engine, chain, impact.NewMapper(catalog), aggregator, logger, pipeline.Options{
		Dimensions: cfg.EmbeddingDimensions,
		Workers:    cfg.PipelineWorkers,
		Store:      store,
	})
	if err != nil {
		rt.Close()
		return nil, err
	}
	if store != nil {
		restored, err := orchestrator.Restore(ctx)
		if err != nil {
			rt.Close()
			return nil, fmt.Errorf("restore stories: %w", err)
		}
		logger.Info().Int("stories", restored).Msg("restored stories from database")
	}
	rt.pipeline = orchestrator

	rt.ingest = ingest.NewService(logger, ingest.Options{FetchMissingBody: cfg.FetchMissingBody})
	rt.query = query.NewEngine(catalog, aggregator)
	return rt, nil
}

func (rt *components) Close() {
	for i := len(rt.closers) - 1; i >= 0; i-- {
		if err := rt.closers[i](); err != nil {
			rt.logger.Warn().Err(err).Msg("close runtime component failed")
		}
	}
	rt.closers = nil
}
