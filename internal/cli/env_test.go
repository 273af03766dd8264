package cli

import (
	"flag"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestEnvLoaderLoadsRequestedFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.env")
	if err := os.WriteFile(path, []byte("FINSCOOP_TEST_VALUE=loaded\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("FINSCOOP_ENV_FILE", "")
	t.Setenv("FINSCOOP_TEST_VALUE", "")

	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	loader := AddEnvFlag(fs, ".env", "")
	if err := fs.Parse([]string{"--env", path}); err != nil {
		t.Fatal(err)
	}

	loaded, err := loader.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if loaded != path || os.Getenv("FINSCOOP_TEST_VALUE") != "loaded" {
		t.Fatalf("expected %s to be loaded, got %s value=%q", path, loaded, os.Getenv("FINSCOOP_TEST_VALUE"))
	}
}

func TestEnvLoaderMissingFile(t *testing.T) {
	t.Setenv("FINSCOOP_ENV_FILE", "")

	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	loader := AddEnvFlag(fs, filepath.Join(t.TempDir(), "absent.env"), "")
	if _, err := loader.Load(); err == nil {
		t.Fatal("expected missing env file to fail")
	}
}

func TestEnvLoaderCandidateOrder(t *testing.T) {
	t.Setenv(EnvFileVar, "/etc/finscoop/override.env")

	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	loader := AddEnvFlag(fs, ".env", "")
	if err := fs.Parse([]string{"--env", "/srv/app/.env"}); err != nil {
		t.Fatal(err)
	}

	got := make([]string, 0, 4)
	for _, c := range loader.candidates() {
		got = append(got, c.path)
	}
	// the basename of /srv/app/.env is the default path, so it appears once
	want := []string{"/etc/finscoop/override.env", "/srv/app/.env", ".env"}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Fatalf("candidates = %v, want %v", got, want)
	}
}

func TestEnvLoaderOverrideVarWins(t *testing.T) {
	dir := t.TempDir()
	override := filepath.Join(dir, "override.env")
	requested := filepath.Join(dir, "requested.env")
	if err := os.WriteFile(override, []byte("FINSCOOP_TEST_ORIGIN=override\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(requested, []byte("FINSCOOP_TEST_ORIGIN=requested\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv(EnvFileVar, override)
	t.Setenv("FINSCOOP_TEST_ORIGIN", "")

	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	loader := AddEnvFlag(fs, ".env", "")
	if err := fs.Parse([]string{"--env", requested}); err != nil {
		t.Fatal(err)
	}

	loaded, err := loader.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if loaded != override || os.Getenv("FINSCOOP_TEST_ORIGIN") != "override" {
		t.Fatalf("expected override file, got %s value=%q", loaded, os.Getenv("FINSCOOP_TEST_ORIGIN"))
	}
}
