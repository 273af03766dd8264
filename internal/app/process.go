package app

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"horse.fit/finscoop/internal/cli"
	"horse.fit/finscoop/internal/ingest"
	"horse.fit/finscoop/internal/news"
	"horse.fit/finscoop/internal/pipeline"
)

func runProcess(args []string) int {
	fs := flag.NewFlagSet("process", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	path := fs.String("path", "testdata/articles", "Article JSON file or directory of .json files")
	recursive := fs.Bool("recursive", true, "Recursively scan subdirectories")
	formatRaw := fs.String("format", outputFormatTable, "Output format: table or json")
	timeout := fs.Duration("timeout", 10*time.Minute, "Overall processing timeout")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}

	format, err := parseOutputFormat(*formatRaw, outputFormatTable)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 2
	}
	if *timeout <= 0 {
		fmt.Fprintln(os.Stderr, "--timeout must be > 0")
		return 2
	}

	files, err := collectInputFiles(*path, *recursive)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Process setup failed: %v\n", err)
		return 1
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
		logger.Error().Err(err).Msg("process failed to initialize")
		fmt.Fprintf(os.Stderr, "Process failed: %v\n", err)
		return 1
	}
	defer rt.Close()

	items, err := loadSubmissions(files)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Process failed: %v\n", err)
		return 1
	}

	result := processSubmissions(ctx, rt.ingest, rt.pipeline, items)
	logger.Info().
		Int("files", len(files)).
		Int("processed", result.Processed).
		Int("failed", result.Failed).
		Msg("process completed")

	if format == outputFormatJSON {
		if err := printJSON(result); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to encode output: %v\n", err)
			return 1
		}
	} else if err := printReports(result); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to render output: %v\n", err)
		return 1
	}

	if rt.pipeline.Halted() != nil {
		return 1
	}
	return 0
}

// submission is one article payload and where it came from.
type submission struct {
	Origin string
	Raw    json.RawMessage
}

func loadSubmissions(files []string) ([]submission, error) {
	var items []submission
	for _, path := range files {
		raws, err := readArticleItems(path)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		for i, raw := range raws {
			items = append(items, submission{Origin: fmt.Sprintf("%s[%d]", path, i), Raw: raw})
		}
	}
	return items, nil
}

// processSubmissions ingests every payload and runs the valid ones as one
// batch. Reports keep submission order; payloads that fail validation are
// reported in place without reaching the pipeline.
func processSubmissions(ctx context.Context, svc *ingest.Service, orchestrator *pipeline.Orchestrator, items []submission) pipeline.BatchResult {
	reports := make([]pipeline.Report, len(items))
	valid := make([]news.Article, 0, len(items))
	positions := make([]int, 0, len(items))
	for i, item := range items {
		article, err := svc.FromPayload(ctx, item.Raw)
		if err != nil {
			reports[i] = pipeline.NewReport(pipeline.State{Stage: pipeline.StageRejected}, fmt.Errorf("%s: %w", item.Origin, err))
			continue
		}
		valid = append(valid, article)
		positions = append(positions, i)
	}

	processed := orchestrator.ProcessBatch(ctx, valid)
	for j, report := range processed.Reports {
		reports[positions[j]] = report
	}

	result := pipeline.BatchResult{Reports: reports, Processed: len(reports)}
	for _, report := range reports {
		if !report.Success {
			result.Failed++
		}
	}
	return result
}

func printReports(result pipeline.BatchResult) error {
	headers := []string{"ARTICLE_ID", "TITLE", "STAGE", "DECISION", "DUPLICATE_OF", "SIMILARITY", "STRATEGY", "IMPACTS", "ERROR"}
	rows := make([][]string, 0, len(result.Reports))
	for _, report := range result.Reports {
		rows = append(rows, []string{
			truncateForTable(report.ArticleID, 24),
			truncateForTable(report.Title, 48),
			string(report.Stage),
			string(report.Decision),
			truncateForTable(report.DuplicateOf, 24),
			formatScore(report.Similarity),
			report.Strategy,
			strconv.Itoa(report.Impacts),
			truncateForTable(strings.ReplaceAll(report.Error, "\n", " "), 60),
		})
	}
	if err := writeTable(headers, rows); err != nil {
		return err
	}
	fmt.Printf("\nprocessed=%d failed=%d\n", result.Processed, result.Failed)
	return nil
}
