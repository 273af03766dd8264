package cli

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
)

// EnvFileVar names a .env file that wins over the --env flag.
const EnvFileVar = "FINSCOOP_ENV_FILE"

// EnvLoader loads the first readable .env file among its candidates.
type EnvLoader struct {
	value       *string
	defaultPath string
}

// envCandidate is one place a .env file may live and why it is tried.
type envCandidate struct {
	path   string
	origin string
}

// AddEnvFlag registers an --env flag and returns an EnvLoader.
func AddEnvFlag(fs *flag.FlagSet, defaultPath, description string) *EnvLoader {
	if fs == nil {
		fs = flag.CommandLine
	}
	if defaultPath == "" {
		defaultPath = ".env"
	}
	if description == "" {
		description = "Path to the .env file (overridden by " + EnvFileVar + ")"
	}
	return &EnvLoader{
		value:       fs.String("env", defaultPath, description),
		defaultPath: defaultPath,
	}
}

// candidates lists, without repeats: the FINSCOOP_ENV_FILE path, the --env
// path, its basename in the working directory, then the default path.
func (l *EnvLoader) candidates() []envCandidate {
	requested := l.defaultPath
	if l.value != nil && strings.TrimSpace(*l.value) != "" {
		requested = strings.TrimSpace(*l.value)
	}

	list := []envCandidate{
		{path: strings.TrimSpace(os.Getenv(EnvFileVar)), origin: EnvFileVar},
		{path: requested, origin: "--env"},
		{path: filepath.Base(requested), origin: "basename of --env"},
		{path: l.defaultPath, origin: "default"},
	}

	seen := make(map[string]struct{}, len(list))
	out := list[:0]
	for _, c := range list {
		if c.path == "" || c.path == "." {
			continue
		}
		if _, dup := seen[c.path]; dup {
			continue
		}
		seen[c.path] = struct{}{}
		out = append(out, c)
	}
	return out
}

// Load overlays the first loadable candidate onto the process environment
// and returns its path.
func (l *EnvLoader) Load() (string, error) {
	if l == nil {
		return "", fmt.Errorf("env loader is nil")
	}
	log.SetOutput(os.Stderr)

	candidates := l.candidates()
	tried := make([]string, 0, len(candidates))
	for _, c := range candidates {
		if err := godotenv.Overload(c.path); err != nil {
			if c.origin == EnvFileVar {
				log.Printf("Warning: failed to load %s=%s", EnvFileVar, c.path)
			}
			tried = append(tried, c.path)
			continue
		}
		log.Printf("Loaded environment from %s (%s)", c.path, c.origin)
		return c.path, nil
	}
	return "", fmt.Errorf("failed to load env file, tried %s", strings.Join(tried, ", "))
}
