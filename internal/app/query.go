package app

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"horse.fit/finscoop/internal/cli"
	"horse.fit/finscoop/internal/news"
	"horse.fit/finscoop/internal/query"
)

func runQuery(args []string) int {
	fs := flag.NewFlagSet("query", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	text := fs.String("q", "", "Natural-language query text")
	path := fs.String("path", "", "Optional article file or directory to process before querying")
	recursive := fs.Bool("recursive", true, "Recursively scan subdirectories of --path")
	limit := fs.Int("limit", 10, "Maximum number of stories (1-100)")
	expand := fs.Bool("expand-sector", true, "Match stories of companies in the queried sector")
	minScore := fs.Float64("min-score", 0, "Drop stories scoring below this value")
	formatRaw := fs.String("format", outputFormatTable, "Output format: table or json")
	timeout := fs.Duration("timeout", 10*time.Minute, "Overall timeout")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}

	q, err := buildQuery(*text, *limit, *expand, *minScore)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 2
	}
	format, err := parseOutputFormat(*formatRaw, outputFormatTable)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 2
	}

	cfg, logger, err := loadConfig(envLoader)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	rt, err := buildRuntime(ctx, cfg, logger)
	if err != nil {
		logger.Error().Err(err).Msg("query failed to initialize")
		fmt.Fprintf(os.Stderr, "Query failed: %v\n", err)
		return 1
	}
	defer rt.Close()

	if strings.TrimSpace(*path) != "" {
		files, err := collectInputFiles(*path, *recursive)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Query setup failed: %v\n", err)
			return 1
		}
		items, err := loadSubmissions(files)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Query setup failed: %v\n", err)
			return 1
		}
		result := processSubmissions(ctx, rt.ingest, rt.pipeline, items)
		fmt.Fprintf(os.Stderr, "loaded processed=%d failed=%d\n", result.Processed, result.Failed)
	}

	response := rt.query.Search(q)
	if format == outputFormatJSON {
		if err := printJSON(response); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to encode output: %v\n", err)
			return 1
		}
		return 0
	}
	if err := printQueryResponse(response); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to render output: %v\n", err)
		return 1
	}
	return 0
}

func buildQuery(text string, limit int, expand bool, minScore float64) (news.Query, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return news.Query{}, fmt.Errorf("--q is required")
	}
	if limit < 1 || limit > 100 {
		return news.Query{}, fmt.Errorf("--limit must be between 1 and 100")
	}
	if minScore < 0 {
		return news.Query{}, fmt.Errorf("--min-score must be >= 0")
	}
	return news.Query{Text: trimmed, Limit: limit, ExpandSector: expand, MinScore: minScore}, nil
}

func printQueryResponse(response query.Response) error {
	fmt.Printf("query=%q symbols=%s sectors=%s implied=%s keywords=%s expansion=%t\n\n",
		response.Query,
		strings.Join(response.Intent.Symbols, ","),
		strings.Join(response.Intent.NamedSectors, ","),
		strings.Join(response.Intent.ImpliedSectors, ","),
		strings.Join(response.Intent.Keywords, ","),
		response.ExpansionApplied,
	)

	headers := []string{"SCORE", "STORY_ID", "PUBLISHED", "SOURCES", "TITLE", "SYMBOLS"}
	rows := make([][]string, 0, len(response.Results))
	for _, result := range response.Results {
		rows = append(rows, []string{
			formatScore(result.Score),
			truncateForTable(result.Story.ID, 24),
			formatUTCTimestamp(result.Story.Primary.PublishedAt),
			strconv.Itoa(1 + len(result.Story.Duplicates)),
			truncateForTable(result.Story.Primary.Title, 60),
			strings.Join(impactSymbols(result.Story.Impacts), ","),
		})
	}
	if err := writeTable(headers, rows); err != nil {
		return err
	}
	fmt.Printf("\ntotal_results=%d processing_ms=%.2f\n", response.TotalResults, response.ProcessingMS)
	return nil
}

func impactSymbols(impacts []news.StockImpact) []string {
	symbols := make([]string, 0, len(impacts))
	for _, impact := range impacts {
		symbols = append(symbols, impact.Symbol)
	}
	return symbols
}
