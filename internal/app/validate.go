package app

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	payloadschema "horse.fit/finscoop/schema"
)

type validateResult struct {
	Files   int
	Scanned int
	Valid   int
	Invalid int
}

func runValidate(args []string) int {
	fs := flag.NewFlagSet("validate", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	path := fs.String("path", "testdata/articles", "Article JSON file or directory of .json files")
	recursive := fs.Bool("recursive", true, "Recursively scan subdirectories")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}

	files, err := collectInputFiles(strings.TrimSpace(*path), *recursive)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Validation setup failed: %v\n", err)
		return 1
	}

	result := validateFiles(files)
	fmt.Printf(
		"validate files=%d scanned=%d valid=%d invalid=%d path=%s recursive=%t\n",
		result.Files,
		result.Scanned,
		result.Valid,
		result.Invalid,
		strings.TrimSpace(*path),
		*recursive,
	)

	if result.Scanned == 0 {
		fmt.Fprintf(os.Stderr, "Validation failed: no articles found under %s\n", strings.TrimSpace(*path))
		return 1
	}
	if result.Invalid > 0 {
		return 1
	}
	return 0
}

// validateFiles checks every article in every file. A file may hold one
// article object or an array of them.
func validateFiles(files []string) validateResult {
	result := validateResult{Files: len(files)}
	for _, path := range files {
		items, err := readArticleItems(path)
		if err != nil {
			result.Scanned++
			result.Invalid++
			fmt.Fprintf(os.Stderr, "INVALID %s: %v\n", path, err)
			continue
		}

		for i, item := range items {
			result.Scanned++
			if _, err := payloadschema.ValidateArticlePayload(item); err != nil {
				result.Invalid++
				fmt.Fprintf(os.Stderr, "INVALID %s[%d]: %v\n", path, i, err)
				continue
			}
			result.Valid++
		}
	}
	return result
}

func readArticleItems(path string) ([]json.RawMessage, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read failed: %w", err)
	}
	if !json.Valid(raw) {
		return nil, fmt.Errorf("malformed JSON")
	}
	return payloadschema.SplitBatch(raw)
}

// collectInputFiles accepts a single file or a directory of .json files.
func collectInputFiles(path string, recursive bool) ([]string, error) {
	cleanPath := strings.TrimSpace(path)
	if cleanPath == "" {
		return nil, fmt.Errorf("path is empty")
	}
	info, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", cleanPath, err)
	}
	if !info.IsDir() {
		return []string{cleanPath}, nil
	}
	return collectJSONFiles(cleanPath, recursive)
}

func collectJSONFiles(root string, recursive bool) ([]string, error) {
	cleanRoot := strings.TrimSpace(root)
	if cleanRoot == "" {
		return nil, fmt.Errorf("directory path is empty")
	}

	info, err := os.Stat(cleanRoot)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", cleanRoot, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s is not a directory", cleanRoot)
	}

	var files []string
	if !recursive {
		entries, err := os.ReadDir(cleanRoot)
		if err != nil {
			return nil, fmt.Errorf("read directory %s: %w", cleanRoot, err)
		}
		for _, entry := range entries {
			if entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
				continue
			}
			if strings.EqualFold(filepath.Ext(entry.Name()), ".json") {
				files = append(files, filepath.Join(cleanRoot, entry.Name()))
			}
		}
		sort.Strings(files)
		return files, nil
	}

	err = filepath.WalkDir(cleanRoot, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() {
			if strings.HasPrefix(d.Name(), ".") && path != cleanRoot {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.HasPrefix(d.Name(), ".") {
			return nil
		}
		if strings.EqualFold(filepath.Ext(d.Name()), ".json") {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk directory %s: %w", cleanRoot, err)
	}

	sort.Strings(files)
	return files, nil
}
