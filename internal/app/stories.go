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
	"horse.fit/finscoop/internal/story"
)

type storyRow struct {
	StoryID     string  `json:"story_id"`
	Published   string  `json:"published_date"`
	Title       string  `json:"title"`
	Source      string  `json:"source"`
	Articles    int     `json:"article_count"`
	Confidence  float64 `json:"confidence_score"`
	Symbols     string  `json:"symbols"`
	ImpactScore float64 `json:"impact_confidence,omitempty"`
}

func runStories(args []string) int {
	fs := flag.NewFlagSet("stories", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	path := fs.String("path", "", "Optional article file or directory to process first")
	recursive := fs.Bool("recursive", true, "Recursively scan subdirectories of --path")
	symbol := fs.String("symbol", "", "Only stories impacting this NSE symbol")
	limit := fs.Int("limit", 25, "Maximum number of stories")
	offset := fs.Int("offset", 0, "Stories to skip")
	formatRaw := fs.String("format", outputFormatTable, "Output format: table or json")
	timeout := fs.Duration("timeout", 10*time.Minute, "Overall timeout")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}
	if *limit < 1 || *limit > 1000 {
		fmt.Fprintln(os.Stderr, "--limit must be between 1 and 1000")
		return 2
	}
	if *offset < 0 {
		fmt.Fprintln(os.Stderr, "--offset must be >= 0")
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
		logger.Error().Err(err).Msg("stories failed to initialize")
		fmt.Fprintf(os.Stderr, "Stories failed: %v\n", err)
		return 1
	}
	defer rt.Close()

	if strings.TrimSpace(*path) != "" {
		files, err := collectInputFiles(*path, *recursive)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Stories setup failed: %v\n", err)
			return 1
		}
		items, err := loadSubmissions(files)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Stories setup failed: %v\n", err)
			return 1
		}
		processSubmissions(ctx, rt.ingest, rt.pipeline, items)
	}

	rows, total := storyRows(rt.pipeline.Stories(), strings.ToUpper(strings.TrimSpace(*symbol)), *offset, *limit)
	if format == outputFormatJSON {
		if err := printJSON(map[string]any{"items": rows, "total_items": total}); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to encode output: %v\n", err)
			return 1
		}
		return 0
	}

	table := make([][]string, 0, len(rows))
	for _, row := range rows {
		table = append(table, []string{
			truncateForTable(row.StoryID, 24),
			row.Published,
			truncateForTable(row.Source, 20),
			strconv.Itoa(row.Articles),
			formatScore(row.Confidence),
			truncateForTable(row.Title, 60),
			truncateForTable(row.Symbols, 40),
		})
	}
	if err := writeTable([]string{"STORY_ID", "PUBLISHED", "SOURCE", "ARTICLES", "CONFIDENCE", "TITLE", "SYMBOLS"}, table); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to render output: %v\n", err)
		return 1
	}
	fmt.Printf("\nshown=%d total=%d\n", len(rows), total)
	return 0
}

// storyRows pages through every story by recency, or through the stories
// impacting symbol ordered by impact strength.
func storyRows(aggregator *story.Aggregator, symbol string, offset, limit int) ([]storyRow, int) {
	if symbol == "" {
		stories, total := aggregator.List(offset, limit)
		rows := make([]storyRow, 0, len(stories))
		for _, s := range stories {
			rows = append(rows, newStoryRow(s, 0))
		}
		return rows, total
	}

	matches := aggregator.BySymbol(symbol)
	total := len(matches)
	if offset >= total {
		return []storyRow{}, total
	}
	end := offset + limit
	if end > total {
		end = total
	}
	rows := make([]storyRow, 0, end-offset)
	for _, match := range matches[offset:end] {
		rows = append(rows, newStoryRow(match.Story, match.Impact.Confidence))
	}
	return rows, total
}

func newStoryRow(s news.UniqueStory, impactScore float64) storyRow {
	return storyRow{
		StoryID:     s.ID,
		Published:   formatUTCTimestamp(s.Primary.PublishedAt),
		Title:       s.Primary.Title,
		Source:      s.Primary.Source,
		Articles:    1 + len(s.Duplicates),
		Confidence:  s.ConfidenceScore,
		Symbols:     strings.Join(impactSymbols(s.Impacts), ","),
		ImpactScore: impactScore,
	}
}
