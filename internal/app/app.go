package app

import (
	"fmt"
	"os"
	"strings"
)

// Run executes the CLI command and returns a process exit code.
func Run(args []string) int {
	if len(args) == 0 {
		printUsage()
		return 2
	}

	switch strings.ToLower(strings.TrimSpace(args[0])) {
	case "help", "--help", "-h":
		printUsage()
		return 0
	case "health":
		return runHealth(args[1:])
	case "validate":
		return runValidate(args[1:])
	case "process", "run-once":
		return runProcess(args[1:])
	case "query":
		return runQuery(args[1:])
	case "stories":
		return runStories(args[1:])
	case "serve":
		return runServe(args[1:])
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\n", args[0])
		printUsage()
		return 2
	}
}

func printUsage() {
	fmt.Fprintln(os.Stderr, "finscoop CLI")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "Usage:")
	fmt.Fprintln(os.Stderr, "  finscoop <command> [flags]")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "Commands:")
	fmt.Fprintln(os.Stderr, "  health    Check reference data, database and optionally the embedding provider")
	fmt.Fprintln(os.Stderr, "  validate  Validate article JSON files")
	fmt.Fprintln(os.Stderr, "  process   Run article files through dedup, extraction, impact mapping and aggregation")
	fmt.Fprintln(os.Stderr, "  run-once  Alias for process")
	fmt.Fprintln(os.Stderr, "  query     Answer a natural-language query over the story set")
	fmt.Fprintln(os.Stderr, "  stories   List stories, optionally by impacted symbol")
	fmt.Fprintln(os.Stderr, "  serve     Start Echo API server")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "Use \"finscoop <command> -h\" for command-specific flags.")
}
