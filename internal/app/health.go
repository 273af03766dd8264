package app

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"horse.fit/finscoop/internal/cli"
	"horse.fit/finscoop/internal/db"
	"horse.fit/finscoop/internal/embedding"
	"horse.fit/finscoop/internal/refdata"
)

func runHealth(args []string) int {
	fs := flag.NewFlagSet("health", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	timeout := fs.Duration("timeout", 5*time.Second, "Timeout for each check")
	checkEmbedding := fs.Bool("embedding", false, "Also request one embedding from the configured provider")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}

	cfg, logger, err := loadConfig(envLoader)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	if _, err := refdata.Load(cfg.ReferenceDataPath); err != nil {
		logger.Error().Err(err).Msg("health check failed")
		fmt.Fprintf(os.Stderr, "Health check failed: %v\n", err)
		return 1
	}
	fmt.Println("ok: reference data loaded")

	if cfg.HasDatabase() {
		ctx, cancel := context.WithTimeout(context.Background(), *timeout)
		defer cancel()

		pool, err := db.NewPool(ctx, cfg)
		if err != nil {
			logger.Error().Err(err).Msg("health check failed")
			fmt.Fprintf(os.Stderr, "Health check failed: %v\n", err)
			return 1
		}
		defer pool.Close()
		fmt.Println("ok: database ping successful")
	} else {
		fmt.Println("ok: no DATABASE_URL, stories are kept in memory")
	}

	if *checkEmbedding {
		provider, err := newEmbeddingProvider(cfg)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Health check failed: %v\n", err)
			return 1
		}
		ctx, cancel := context.WithTimeout(context.Background(), *timeout)
		defer cancel()

		vector, err := provider.Embed(ctx, "health check")
		if err == nil {
			err = embedding.Validate(vector, cfg.EmbeddingDimensions)
		}
		if err != nil {
			logger.Error().Err(err).Msg("embedding health check failed")
			fmt.Fprintf(os.Stderr, "Health check failed: %v\n", err)
			return 1
		}
		fmt.Printf("ok: embedding provider returned %d dimensions\n", len(vector))
	}

	logger.Info().
		Dur("timeout", *timeout).
		Bool("database", cfg.HasDatabase()).
		Msg("health check passed")
	return 0
}
